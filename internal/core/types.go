package core

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Product is a persisted product record.
type Product struct {
	ID            string    `json:"id"`
	Barcode       string    `json:"barcode"`
	ProductName   string    `json:"productName"`
	RetailPrice   string    `json:"retailPrice"` // decimal with two fraction digits
	Category      string    `json:"category"`
	UnitOfMeasure string    `json:"unitOfMeasure"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ProductInput is the user-supplied part of a product, before validation.
type ProductInput struct {
	Barcode       string `json:"barcode"`
	ProductName   string `json:"productName"`
	RetailPrice   string `json:"retailPrice"`
	Category      string `json:"category"`
	UnitOfMeasure string `json:"unitOfMeasure"`
}

// ExportRecord is the exported shape of a product: no id or timestamp.
type ExportRecord struct {
	Barcode       string `json:"barcode"`
	ProductName   string `json:"productName"`
	RetailPrice   string `json:"retailPrice"`
	Category      string `json:"category"`
	UnitOfMeasure string `json:"unitOfMeasure"`
}

// NewProduct builds a record from validated input, assigning id and timestamp.
func NewProduct(in ProductInput, now time.Time) Product {
	return Product{
		ID:            uuid.New().String(),
		Barcode:       in.Barcode,
		ProductName:   in.ProductName,
		RetailPrice:   in.RetailPrice,
		Category:      in.Category,
		UnitOfMeasure: in.UnitOfMeasure,
		CreatedAt:     now.UTC(),
	}
}

// Export returns the exported shape of p.
func (p Product) Export() ExportRecord {
	return ExportRecord{
		Barcode:       p.Barcode,
		ProductName:   p.ProductName,
		RetailPrice:   p.RetailPrice,
		Category:      p.Category,
		UnitOfMeasure: p.UnitOfMeasure,
	}
}

// ErrDuplicateProduct is returned by stores when a product id is reused.
var ErrDuplicateProduct = errors.New("duplicate key: product already exists")

// ProductStore persists products. Implementations live in internal/store.
type ProductStore interface {
	// Create appends a validated product.
	Create(ctx context.Context, p Product) error

	// List returns all products, newest first.
	List(ctx context.Context) ([]Product, error)

	// Ping checks the backing storage is reachable.
	Ping(ctx context.Context) error

	// Close releases the storage.
	Close() error
}
