package catalog

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"

	"github.com/Additional-Code/tabline/internal/database"
	"github.com/Additional-Code/tabline/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/tabline/repository/catalog")

var (
	// ErrDuplicate is returned when a table name is already taken.
	ErrDuplicate = errors.New("catalog: duplicate name")
	// ErrNotFound is returned when a product is missing.
	ErrNotFound = errors.New("catalog: not found")
)

// Module provides the catalog repository to Fx.
var Module = fx.Provide(NewRepository)

// Repository reads and writes tables and products.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{writer: conns.Writer, reader: conns.Reader}
}

// CreateTable inserts a table, refusing duplicate names.
func (r *Repository) CreateTable(ctx context.Context, table *entity.Table) error {
	ctx, span := repoTracer.Start(ctx, "CatalogRepository.CreateTable", trace.WithAttributes(attribute.String("table.name", table.Name)))
	defer span.End()

	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().Model((*entity.Table)(nil)).Where("t.name = ?", table.Name).Exists(ctx)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicate
		}
		if table.ID == "" {
			table.ID = uuid.NewString()
		}
		table.CreatedAt = time.Now().UTC()
		_, err = tx.NewInsert().Model(table).Exec(ctx)
		return err
	})
	if err != nil && !errors.Is(err, ErrDuplicate) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// Tables lists every table.
func (r *Repository) Tables(ctx context.Context) ([]entity.Table, error) {
	ctx, span := repoTracer.Start(ctx, "CatalogRepository.Tables")
	defer span.End()

	var tables []entity.Table
	if err := r.reader.NewSelect().Model(&tables).Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return tables, nil
}

// OpenOrders lists every open order; callers index them by table.
func (r *Repository) OpenOrders(ctx context.Context) ([]entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "CatalogRepository.OpenOrders")
	defer span.End()

	var orders []entity.Order
	err := r.reader.NewSelect().Model(&orders).
		Where("o.status = ?", entity.OrderStatusOpen).
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return orders, nil
}

// CreateProduct inserts a product.
func (r *Repository) CreateProduct(ctx context.Context, product *entity.Product) error {
	ctx, span := repoTracer.Start(ctx, "CatalogRepository.CreateProduct", trace.WithAttributes(attribute.String("product.name", product.Name)))
	defer span.End()

	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	product.CreatedAt = time.Now().UTC()
	if _, err := r.writer.NewInsert().Model(product).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return err
	}
	return nil
}

// Products lists the catalog ordered by name.
func (r *Repository) Products(ctx context.Context) ([]entity.Product, error) {
	ctx, span := repoTracer.Start(ctx, "CatalogRepository.Products")
	defer span.End()

	var products []entity.Product
	if err := r.reader.NewSelect().Model(&products).OrderExpr("pr.name ASC").Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return products, nil
}

// Product fetches one product by id.
func (r *Repository) Product(ctx context.Context, id string) (*entity.Product, error) {
	product := new(entity.Product)
	err := r.reader.NewSelect().Model(product).Where("pr.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return product, nil
}
