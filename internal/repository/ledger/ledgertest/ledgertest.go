// Package ledgertest opens throwaway in-memory SQLite ledgers for tests.
package ledgertest

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/Additional-Code/tabline/internal/config"
	"github.com/Additional-Code/tabline/internal/database"
	"github.com/Additional-Code/tabline/internal/entity"
)

// Models lists every table of the schema in creation order.
var Models = []any{
	(*entity.Table)(nil),
	(*entity.Product)(nil),
	(*entity.Order)(nil),
	(*entity.OrderItem)(nil),
	(*entity.Payment)(nil),
	(*entity.ActivityLog)(nil),
}

// Config returns a configuration with ledger defaults suitable for tests.
func Config() config.Config {
	return config.Config{
		Database: config.Database{Driver: "sqlite"},
		Ledger: config.Ledger{
			TxTimeout:          config.DefaultTxTimeout,
			MergeTimeout:       config.DefaultMergeTimeout,
			HistoryPageSize:    config.DefaultHistoryPageSize,
			HistoryMaxPageSize: 200,
			CurrencySymbol:     "₺",
		},
		Activity: config.Activity{
			Sink:            "noop",
			FlushInterval:   time.Second,
			BufferSize:      16,
			DetailMaxLength: config.DefaultDetailMaxLength,
		},
	}
}

// New opens a fresh database private to the test and creates the schema.
func New(t testing.TB) *database.Connections {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", name, uuid.NewString()[:8])
	sqldb, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	for _, model := range Models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	return &database.Connections{Writer: db, Reader: db}
}

// SeedTable inserts a table.
func SeedTable(t testing.TB, conns *database.Connections, name string) entity.Table {
	t.Helper()
	table := entity.Table{ID: uuid.NewString(), Name: name, CreatedAt: time.Now().UTC()}
	if _, err := conns.Writer.NewInsert().Model(&table).Exec(context.Background()); err != nil {
		t.Fatalf("seed table: %v", err)
	}
	return table
}

// SeedProduct inserts a product.
func SeedProduct(t testing.TB, conns *database.Connections, name string, price int64) entity.Product {
	t.Helper()
	product := entity.Product{ID: uuid.NewString(), Name: name, Price: price, CreatedAt: time.Now().UTC()}
	if _, err := conns.Writer.NewInsert().Model(&product).Exec(context.Background()); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

// Items returns every item row of an order straight from the database.
func Items(t testing.TB, conns *database.Connections, orderID string) []entity.OrderItem {
	t.Helper()
	var items []entity.OrderItem
	err := conns.Reader.NewSelect().Model(&items).
		Where("oi.order_id = ?", orderID).
		OrderExpr("oi.created_at ASC").
		Scan(context.Background())
	if err != nil {
		t.Fatalf("load items: %v", err)
	}
	return items
}

// OrderExists reports whether an order row is present.
func OrderExists(t testing.TB, conns *database.Connections, orderID string) bool {
	t.Helper()
	exists, err := conns.Reader.NewSelect().Model((*entity.Order)(nil)).
		Where("o.id = ?", orderID).
		Exists(context.Background())
	if err != nil {
		t.Fatalf("check order: %v", err)
	}
	return exists
}
