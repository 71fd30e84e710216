package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/JonMunkholm/shelfscan/internal/core"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "shelfscan.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), " "); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestCreateListRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	base := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

	older := core.Product{
		ID:            "p-1",
		Barcode:       "4607159730018",
		ProductName:   `Молоко "Домик"`,
		RetailPrice:   "89.90",
		Category:      "Молочные продукты",
		UnitOfMeasure: "шт.",
		CreatedAt:     base,
	}
	newer := older
	newer.ID = "p-2"
	newer.Barcode = "12345678"
	newer.CreatedAt = base.Add(time.Minute)

	for _, p := range []core.Product{older, newer} {
		if err := store.Create(ctx, p); err != nil {
			t.Fatalf("create %s: %v", p.ID, err)
		}
	}

	got, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("list returned %d products, want 2", len(got))
	}
	if got[0].ID != "p-2" || got[1].ID != "p-1" {
		t.Fatalf("order = [%s %s], want newest first", got[0].ID, got[1].ID)
	}
	if !got[1].CreatedAt.Equal(older.CreatedAt) {
		t.Fatalf("created_at = %v, want %v", got[1].CreatedAt, older.CreatedAt)
	}
	got[1].CreatedAt = older.CreatedAt
	if got[1] != older {
		t.Fatalf("round trip = %+v, want %+v", got[1], older)
	}
}

func TestCreateDuplicateID(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	p := core.Product{ID: "dup", Barcode: "12345678", CreatedAt: time.Now()}

	if err := store.Create(ctx, p); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, p); !errors.Is(err, core.ErrDuplicateProduct) {
		t.Fatalf("create duplicate: %v, want ErrDuplicateProduct", err)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "shelfscan.db")
	ctx := context.Background()

	first, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := first.Create(ctx, core.Product{ID: "keep", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer second.Close()

	got, err := second.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != "keep" {
		t.Fatalf("list after reopen = %+v", got)
	}
}

func TestUpSection(t *testing.T) {
	t.Parallel()

	content := "-- +migrate Up\nCREATE TABLE a (x);\n-- +migrate Down\nDROP TABLE a;\n"
	if got := upSection(content); got != "\nCREATE TABLE a (x);\n" {
		t.Fatalf("upSection = %q", got)
	}
	if got := upSection("SELECT 1;"); got != "SELECT 1;" {
		t.Fatalf("upSection without marker = %q", got)
	}
}
