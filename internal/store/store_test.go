package store

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"memory", Options{Driver: DriverMemory}, false},
		{"sqlite", Options{Driver: DriverSQLite, URL: filepath.Join(t.TempDir(), "db.sqlite")}, false},
		{"sqlite without path", Options{Driver: DriverSQLite}, true},
		{"postgres bad url", Options{Driver: DriverPostgres, URL: "://nope"}, true},
		{"unknown", Options{Driver: "mysql"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(ctx, tt.opts)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Open() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer s.Close()
			if err := s.Ping(ctx); err != nil {
				t.Errorf("Ping() error = %v", err)
			}
		})
	}
}
