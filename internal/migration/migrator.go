// Package migration applies the embedded goose migrations for the configured
// database driver.
package migration

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/tabline/internal/config"
	"github.com/Additional-Code/tabline/internal/database"
)

//go:embed sql
var migrations embed.FS

// Module provides the migrator to Fx.
var Module = fx.Provide(New)

// goose keeps its dialect and filesystem in package state.
var gooseMu sync.Mutex

// Migrator wraps goose operations.
type Migrator struct {
	db      *bun.DB
	dialect string
	dir     string
	logger  *zap.Logger
}

// New constructs a goose-backed migrator for the configured driver.
func New(cfg config.Config, conns *database.Connections, logger *zap.Logger) (*Migrator, error) {
	dialect, dir, err := gooseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Migrator{db: conns.Writer, dialect: dialect, dir: dir, logger: logger}, nil
}

func (m *Migrator) run(fn func() error) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	goose.SetLogger(zap.NewStdLog(m.logger.Named("goose")))
	if err := goose.SetDialect(m.dialect); err != nil {
		return err
	}
	return fn()
}

// Up applies all pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	err := m.run(func() error { return goose.UpContext(ctx, m.db.DB, m.dir) })
	if err != nil {
		if isNoMigrationErr(err) {
			m.logger.Info("no migrations to apply")
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}
	m.logger.Info("migrations applied", zap.String("dialect", m.dialect))
	return nil
}

// Down rolls back migrations. Steps <=0 defaults to 1; all=true rolls everything back.
func (m *Migrator) Down(ctx context.Context, steps int, all bool) error {
	if all {
		err := m.run(func() error { return goose.DownToContext(ctx, m.db.DB, m.dir, 0) })
		if err != nil && !isNoMigrationErr(err) {
			return fmt.Errorf("rollback migrations: %w", err)
		}
		m.logger.Info("migrations rolled back", zap.String("mode", "all"))
		return nil
	}

	if steps <= 0 {
		steps = 1
	}
	err := m.run(func() error {
		for i := 0; i < steps; i++ {
			if err := goose.DownContext(ctx, m.db.DB, m.dir); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil && !isNoMigrationErr(err) {
		return fmt.Errorf("rollback migrations: %w", err)
	}
	m.logger.Info("migrations rolled back", zap.Int("steps", steps))
	return nil
}

// Version reports the current schema version.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	var v int64
	err := m.run(func() error {
		var err error
		v, err = goose.GetDBVersionContext(ctx, m.db.DB)
		return err
	})
	return v, err
}

func gooseDialect(driver string) (string, string, error) {
	switch driver {
	case "postgres", "pg":
		return "postgres", path.Join("sql", "postgres"), nil
	case "mysql":
		return "mysql", path.Join("sql", "mysql"), nil
	case "sqlite", "sqlite3":
		return "sqlite3", path.Join("sql", "sqlite"), nil
	default:
		return "", "", fmt.Errorf("unsupported goose dialect for driver %s", driver)
	}
}

func isNoMigrationErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, goose.ErrNoNextVersion) || errors.Is(err, goose.ErrNoMigrationFiles) {
		return true
	}
	return strings.Contains(err.Error(), "no migrations")
}
