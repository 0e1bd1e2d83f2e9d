package sqlite

import (
	"context"
	"path/filepath"
	"testing"
)

func TestClientOpensFileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "fincast.db")
	c, err := NewClient(WithPath(path))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer c.Close()

	if err := c.Health(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
	var mode string
	if err := c.DB().QueryRow("PRAGMA journal_mode;").Scan(&mode); err != nil {
		t.Fatal(err)
	}
	if mode != "wal" {
		t.Fatalf("journal_mode = %q", mode)
	}
}
