package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	applogger "FinCast/pkg/logger"

	_ "modernc.org/sqlite"
)

type ClientOption func(*ClientConfig)

type ClientConfig struct {
	Path        string
	BusyTimeout time.Duration
	Logger      *applogger.Logger
}

func WithPath(path string) ClientOption {
	return func(c *ClientConfig) { c.Path = path }
}

func WithBusyTimeout(d time.Duration) ClientOption {
	return func(c *ClientConfig) { c.BusyTimeout = d }
}

func WithLogger(l *applogger.Logger) ClientOption {
	return func(c *ClientConfig) {
		if l != nil {
			c.Logger = l
		}
	}
}

// Client wraps an embedded SQLite database. Writes are serialized on a
// single connection.
type Client struct {
	db *sql.DB
}

func NewClient(opts ...ClientOption) (*Client, error) {
	cfg := &ClientConfig{
		Path:        ":memory:",
		BusyTimeout: 5 * time.Second,
		Logger:      applogger.NewNop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		fmt.Sprintf("PRAGMA busy_timeout = %d;", cfg.BusyTimeout.Milliseconds()),
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			cfg.Logger.Warn("sqlite pragma failed", applogger.String("pragma", p), applogger.Error(err))
		}
	}

	return &Client{db: db}, nil
}

func (c *Client) DB() *sql.DB { return c.db }

func (c *Client) Health(ctx context.Context) error { return c.db.PingContext(ctx) }

func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
