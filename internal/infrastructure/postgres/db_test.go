package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewPoolWithConfigInvalidURL(t *testing.T) {
	if _, err := NewPoolWithConfig(context.Background(), PoolConfig{DatabaseURL: "not-a-url"}); err == nil {
		t.Fatalf("expected error when parsing invalid URL")
	}
}

func TestNewPoolWithConfigPingFailure(t *testing.T) {
	cfg := PoolConfig{
		DatabaseURL:    "postgres://verifikat@127.0.0.1:1/verifikat?sslmode=disable",
		MaxConns:       1,
		MinConns:       0,
		ConnectTimeout: 500 * time.Millisecond,
	}

	if _, err := NewPoolWithConfig(context.Background(), cfg); err == nil {
		t.Fatalf("expected error when pool cannot connect")
	}
}

func TestNewMigratorRejectsBadSource(t *testing.T) {
	if _, err := NewMigrator("file:///does/not/exist", "postgres://localhost:1/x", nopLogger()); err == nil {
		t.Fatalf("expected error for missing migrations directory")
	}
}

func nopLogger() zerolog.Logger {
	return zerolog.Nop()
}
