package core

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeStore struct {
	mu        sync.Mutex
	products  []Product
	createErr error
}

func (f *fakeStore) Create(_ context.Context, p Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.products = append([]Product{p}, f.products...)
	return nil
}

func (f *fakeStore) List(context.Context) ([]Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Product(nil), f.products...), nil
}

func (f *fakeStore) Ping(context.Context) error { return nil }
func (f *fakeStore) Close() error               { return nil }

func newTestService(store ProductStore) *Service {
	svc := NewService(store, nil)
	svc.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestService_CreateProduct(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store)

	p, err := svc.CreateProduct(context.Background(), validInput())
	if err != nil {
		t.Fatalf("CreateProduct() error = %v", err)
	}
	if p.ID == "" {
		t.Error("CreateProduct() returned empty ID")
	}
	if p.RetailPrice != "89.90" {
		t.Errorf("RetailPrice = %q, want normalized 89.90", p.RetailPrice)
	}
	if !p.CreatedAt.Equal(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("CreatedAt = %v", p.CreatedAt)
	}
	if len(store.products) != 1 {
		t.Errorf("store has %d products, want 1", len(store.products))
	}
}

func TestService_CreateProductRejectsInvalid(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store)

	in := validInput()
	in.Barcode = "123"
	_, err := svc.CreateProduct(context.Background(), in)

	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("error = %v, want ValidationErrors", err)
	}
	if len(store.products) != 0 {
		t.Error("invalid product was stored")
	}
}

func TestService_CreateProductStoreError(t *testing.T) {
	svc := newTestService(&fakeStore{createErr: errors.New("connection refused")})

	_, err := svc.CreateProduct(context.Background(), validInput())
	if err == nil {
		t.Fatal("CreateProduct() error = nil, want store error")
	}
	if got := MapError(err).Code; got != "DB004" {
		t.Errorf("MapError code = %q, want DB004", got)
	}
}

func TestService_ListProductsEmptyIsNotNil(t *testing.T) {
	svc := newTestService(&fakeStore{})

	products, err := svc.ListProducts(context.Background())
	if err != nil {
		t.Fatalf("ListProducts() error = %v", err)
	}
	if products == nil {
		t.Error("ListProducts() = nil, want empty slice")
	}
}

func TestService_Export(t *testing.T) {
	svc := newTestService(&fakeStore{})
	ctx := context.Background()

	var buf bytes.Buffer
	if _, err := svc.Export(ctx, &buf, FormatCSV); !errors.Is(err, ErrNothingToExport) {
		t.Fatalf("Export(empty) error = %v, want ErrNothingToExport", err)
	}

	first := validInput()
	second := validInput()
	second.Barcode = "12345678"
	for _, in := range []ProductInput{first, second} {
		if _, err := svc.CreateProduct(ctx, in); err != nil {
			t.Fatalf("CreateProduct() error = %v", err)
		}
	}

	n, err := svc.Export(ctx, &buf, FormatCSV)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Export() count = %d, want 2", n)
	}

	lines := strings.Split(buf.String(), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header + 2", len(lines))
	}
	if !strings.HasPrefix(lines[1], "12345678;") {
		t.Errorf("first row = %q, want newest product first", lines[1])
	}
}

func TestService_Catalog(t *testing.T) {
	svc := newTestService(&fakeStore{})

	c := svc.Catalog()
	if len(c.Categories) != 15 {
		t.Errorf("categories = %d, want 15", len(c.Categories))
	}
	if c.Units[0] != "шт." {
		t.Errorf("first unit = %q, want шт.", c.Units[0])
	}
}
