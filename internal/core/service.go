package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// StoreTimeout is the maximum duration for a single store operation.
var StoreTimeout = 10 * time.Second

// Service provides the core business logic for product records.
type Service struct {
	store   ProductStore
	catalog Catalog
	log     *slog.Logger
	now     func() time.Time
}

// NewService creates a new Service backed by store.
func NewService(store ProductStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   store,
		catalog: DefaultCatalog(),
		log:     logger,
		now:     time.Now,
	}
}

// Catalog returns the category and unit options for the data-entry form.
func (s *Service) Catalog() Catalog {
	return s.catalog
}

// CreateProduct validates in and stores it as a new product.
// Returns ValidationErrors when the input is rejected.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (Product, error) {
	valid, err := ValidateProduct(in)
	if err != nil {
		return Product{}, err
	}

	p := NewProduct(valid, s.now())

	ctx, cancel := context.WithTimeout(ctx, StoreTimeout)
	defer cancel()

	if err := s.store.Create(ctx, p); err != nil {
		return Product{}, fmt.Errorf("create product: %w", err)
	}

	client := ClientFromContext(ctx)
	s.log.Info("product created",
		"product_id", p.ID,
		"barcode", p.Barcode,
		"ip", client.IPAddress,
	)
	return p, nil
}

// ListProducts returns all products, newest first.
func (s *Service) ListProducts(ctx context.Context) ([]Product, error) {
	ctx, cancel := context.WithTimeout(ctx, StoreTimeout)
	defer cancel()

	products, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	if products == nil {
		products = []Product{}
	}
	return products, nil
}

// Export writes every product in format f to w. Returns ErrNothingToExport
// without writing anything when there are no products.
func (s *Service) Export(ctx context.Context, w io.Writer, f Format) (int, error) {
	products, err := s.ListProducts(ctx)
	if err != nil {
		return 0, err
	}
	if err := WriteExport(w, f, products); err != nil {
		return 0, fmt.Errorf("export products: %w", err)
	}
	s.log.Info("products exported", "format", f, "count", len(products))
	return len(products), nil
}

// Ping checks the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
