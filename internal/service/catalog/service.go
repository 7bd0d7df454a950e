// Package catalog serves tables and products. Table and product lists are
// cached and invalidated on writes; table status is always read fresh.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/tabline/internal/cache"
	"github.com/Additional-Code/tabline/internal/config"
	"github.com/Additional-Code/tabline/internal/dto"
	"github.com/Additional-Code/tabline/internal/entity"
	repo "github.com/Additional-Code/tabline/internal/repository/catalog"
	"github.com/Additional-Code/tabline/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/tabline/service/catalog")

const (
	tablesKey   = "catalog:tables"
	productsKey = "catalog:products"
)

// Module provides the catalog service to Fx.
var Module = fx.Provide(NewService)

// Service encapsulates table and product catalog logic.
type Service struct {
	repo     *repo.Repository
	cache    cache.Store
	cacheTTL time.Duration
	logger   *zap.Logger
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Cache      cache.Store
	Config     config.Config
	Logger     *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:     p.Repository,
		cache:    p.Cache,
		cacheTTL: p.Config.Cache.DefaultTTL,
		logger:   logger,
	}
}

// CreateTable adds a table with a unique name.
func (s *Service) CreateTable(ctx context.Context, name string) (*dto.TableStatus, error) {
	name = strings.TrimSpace(name)
	ctx, span := serviceTracer.Start(ctx, "CatalogService.CreateTable", trace.WithAttributes(attribute.String("table.name", name)))
	defer span.End()

	if name == "" {
		return nil, errorbank.BadRequest("table name is required")
	}

	table := &entity.Table{Name: name}
	if err := s.repo.CreateTable(ctx, table); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, errorbank.Conflict("a table with this name already exists", errorbank.WithDetail("name", name))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		s.logger.Error("create table failed", zap.String("name", name), zap.Error(err))
		return nil, errorbank.Internal("could not create table", errorbank.WithCause(err))
	}
	s.invalidate(ctx, tablesKey)
	return &dto.TableStatus{ID: table.ID, Name: table.Name}, nil
}

// ListTablesWithStatus returns every table with the state of its open order,
// naturally sorted by name.
func (s *Service) ListTablesWithStatus(ctx context.Context) ([]dto.TableStatus, error) {
	ctx, span := serviceTracer.Start(ctx, "CatalogService.ListTablesWithStatus")
	defer span.End()

	var tables []entity.Table
	if !s.readCache(ctx, tablesKey, &tables) {
		loaded, err := s.repo.Tables(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "repository error")
			s.logger.Error("list tables failed", zap.Error(err))
			return nil, errorbank.Internal("could not load tables", errorbank.WithCause(err))
		}
		tables = loaded
		s.writeCache(ctx, tablesKey, tables)
	}

	open, err := s.repo.OpenOrders(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		s.logger.Error("list open orders failed", zap.Error(err))
		return nil, errorbank.Internal("could not load tables", errorbank.WithCause(err))
	}
	byTable := make(map[string]entity.Order, len(open))
	for _, o := range open {
		byTable[o.TableID] = o
	}

	out := make([]dto.TableStatus, 0, len(tables))
	for _, t := range tables {
		status := dto.TableStatus{ID: t.ID, Name: t.Name}
		if o, ok := byTable[t.ID]; ok {
			status.HasOpenOrder = true
			status.IsLocked = o.IsLocked
			status.OpenOrderID = o.ID
			status.OpenTotal = o.TotalAmount
		}
		out = append(out, status)
	}
	sort.SliceStable(out, func(i, j int) bool { return naturalLess(out[i].Name, out[j].Name) })
	return out, nil
}

// CreateProduct adds a product to the catalog.
func (s *Service) CreateProduct(ctx context.Context, name string, price int64) (*dto.Product, error) {
	name = strings.TrimSpace(name)
	ctx, span := serviceTracer.Start(ctx, "CatalogService.CreateProduct", trace.WithAttributes(attribute.String("product.name", name)))
	defer span.End()

	switch {
	case name == "":
		return nil, errorbank.BadRequest("product name is required")
	case price < 0:
		return nil, errorbank.BadRequest("price cannot be negative", errorbank.WithDetail("price", price))
	}

	product := &entity.Product{Name: name, Price: price}
	if err := s.repo.CreateProduct(ctx, product); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		s.logger.Error("create product failed", zap.String("name", name), zap.Error(err))
		return nil, errorbank.Internal("could not create product", errorbank.WithCause(err))
	}
	s.invalidate(ctx, productsKey)
	return &dto.Product{ID: product.ID, Name: product.Name, Price: product.Price}, nil
}

// ListProducts returns the catalog ordered by name.
func (s *Service) ListProducts(ctx context.Context) ([]dto.Product, error) {
	ctx, span := serviceTracer.Start(ctx, "CatalogService.ListProducts")
	defer span.End()

	var products []dto.Product
	if s.readCache(ctx, productsKey, &products) {
		return products, nil
	}

	rows, err := s.repo.Products(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		s.logger.Error("list products failed", zap.Error(err))
		return nil, errorbank.Internal("could not load products", errorbank.WithCause(err))
	}
	products = make([]dto.Product, 0, len(rows))
	for _, p := range rows {
		products = append(products, dto.Product{ID: p.ID, Name: p.Name, Price: p.Price})
	}
	s.writeCache(ctx, productsKey, products)
	return products, nil
}

// GetProduct returns one product.
func (s *Service) GetProduct(ctx context.Context, id string) (*dto.Product, error) {
	p, err := s.repo.Product(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, errorbank.NotFound("product not found")
	}
	if err != nil {
		s.logger.Error("load product failed", zap.String("id", id), zap.Error(err))
		return nil, errorbank.Internal("could not load product", errorbank.WithCause(err))
	}
	return &dto.Product{ID: p.ID, Name: p.Name, Price: p.Price}, nil
}

func (s *Service) readCache(ctx context.Context, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	bytes, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("catalog cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(bytes, dst); err != nil {
		s.logger.Warn("catalog cache decode failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (s *Service) writeCache(ctx context.Context, key string, value any) {
	if s.cache == nil {
		return
	}
	bytes, err := json.Marshal(value)
	if err == nil {
		err = s.cache.Set(ctx, key, bytes, s.cacheTTL)
	}
	if err != nil {
		s.logger.Warn("catalog cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *Service) invalidate(ctx context.Context, key string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.Warn("catalog cache invalidation failed", zap.String("key", key), zap.Error(err))
	}
}
