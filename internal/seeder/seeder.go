// Package seeder loads a starter floor plan and menu for local setups.
package seeder

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/tabline/internal/entity"
	"github.com/Additional-Code/tabline/internal/repository/catalog"
)

// Module provides the seeder to Fx.
var Module = fx.Provide(New)

// DefaultTableCount is the number of tables created by Tables.
const DefaultTableCount = 12

// DefaultMenu is the starter product list, prices in minor units.
var DefaultMenu = []entity.Product{
	{Name: "Tea", Price: 1500},
	{Name: "Turkish Coffee", Price: 4500},
	{Name: "Espresso", Price: 5000},
	{Name: "Latte", Price: 6500},
	{Name: "Lemonade", Price: 5500},
	{Name: "Water", Price: 1000},
	{Name: "Toast", Price: 9000},
	{Name: "Cheesecake", Price: 11000},
}

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	repo   *catalog.Repository
	logger *zap.Logger
}

// New constructs a Seeder backed by the catalog repository.
func New(repo *catalog.Repository, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{repo: repo, logger: logger}
}

// Run seeds tables and products.
func (s *Seeder) Run(ctx context.Context) error {
	if err := s.Tables(ctx, DefaultTableCount); err != nil {
		return err
	}
	return s.Products(ctx, DefaultMenu)
}

// Tables creates "Table 1".."Table n", skipping names that already exist.
func (s *Seeder) Tables(ctx context.Context, n int) error {
	created := 0
	for i := 1; i <= n; i++ {
		table := &entity.Table{Name: fmt.Sprintf("Table %d", i)}
		err := s.repo.CreateTable(ctx, table)
		switch {
		case errors.Is(err, catalog.ErrDuplicate):
			continue
		case err != nil:
			return fmt.Errorf("seed table %q: %w", table.Name, err)
		}
		created++
	}
	s.logger.Info("seeded tables", zap.Int("created", created), zap.Int("requested", n))
	return nil
}

// Products inserts menu entries whose name is not in the catalog yet.
func (s *Seeder) Products(ctx context.Context, menu []entity.Product) error {
	existing, err := s.repo.Products(ctx)
	if err != nil {
		return fmt.Errorf("load products: %w", err)
	}
	known := make(map[string]struct{}, len(existing))
	for _, p := range existing {
		known[p.Name] = struct{}{}
	}

	created := 0
	for _, item := range menu {
		if _, ok := known[item.Name]; ok {
			continue
		}
		product := &entity.Product{Name: item.Name, Price: item.Price}
		if err := s.repo.CreateProduct(ctx, product); err != nil {
			return fmt.Errorf("seed product %q: %w", item.Name, err)
		}
		known[item.Name] = struct{}{}
		created++
	}
	s.logger.Info("seeded products", zap.Int("created", created))
	return nil
}
