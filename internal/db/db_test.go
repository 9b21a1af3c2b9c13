package db

import (
	"context"
	"os"
	"testing"
)

func TestConnect_InvalidURL(t *testing.T) {
	if _, err := Connect(context.Background(), "not-a-url"); err == nil {
		t.Error("expected error for invalid database URL")
	}
}

func TestConnect(t *testing.T) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}

	pool, err := Connect(context.Background(), dbURL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer pool.Close()

	if got := pool.Stats().MaxOpenConnections; got != MaxOpenConns {
		t.Errorf("expected max open conns %d, got %d", MaxOpenConns, got)
	}
}
