// Package store selects the product storage backend.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/shelfscan/internal/core"
	"github.com/JonMunkholm/shelfscan/internal/store/memory"
	"github.com/JonMunkholm/shelfscan/internal/store/postgres"
	"github.com/JonMunkholm/shelfscan/internal/store/sqlite"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Options configure Open.
type Options struct {
	Driver          string
	URL             string // postgres connection URL or sqlite file path
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Open connects to the configured backend and prepares its schema.
func Open(ctx context.Context, opts Options) (core.ProductStore, error) {
	switch opts.Driver {
	case DriverPostgres:
		s, err := postgres.Connect(ctx, opts.URL, postgres.PoolConfig{
			MaxConns:        opts.MaxConns,
			MinConns:        opts.MinConns,
			MaxConnLifetime: opts.MaxConnLifetime,
			MaxConnIdleTime: opts.MaxConnIdleTime,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverSQLite:
		s, err := sqlite.Open(ctx, opts.URL)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", opts.Driver)
	}
}
