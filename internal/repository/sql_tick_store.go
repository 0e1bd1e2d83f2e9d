package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"FinCast/internal/domain/models"
	drepo "FinCast/internal/domain/repository"
	applogger "FinCast/pkg/logger"
)

const tickColumns = "symbol, time_frame, ts, open, high, low, close, volume, normalized"

// Dialect captures what differs between the SQL engines a SQLTickStore can
// sit on. Queries are written with ? placeholders and rebound per dialect.
type Dialect struct {
	Name   string
	Schema func(table string) []string
	Insert func(table string) string
	Rebind func(q string) string
	// Source names the relation reads select from. Nil means the table itself.
	Source func(table string) string
}

func questionMarks(q string) string { return q }

// dollarPlaceholders rewrites ? to $1, $2, ...
func dollarPlaceholders(q string) string {
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const upsertSuffix = ` ON CONFLICT (symbol, time_frame, ts) DO UPDATE SET
	open = excluded.open, high = excluded.high, low = excluded.low,
	close = excluded.close, volume = excluded.volume, normalized = excluded.normalized`

// ClickHouse relies on ReplacingMergeTree to collapse rows with the same
// sort key, so a plain insert acts as an upsert once parts merge.
var ClickHouseDialect = Dialect{
	Name: "clickhouse",
	Schema: func(table string) []string {
		return []string{fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	symbol LowCardinality(String),
	time_frame Int64,
	ts Int64,
	open Float64,
	high Float64,
	low Float64,
	close Float64,
	volume Float64,
	normalized Nullable(Float64)
) ENGINE = ReplacingMergeTree ORDER BY (symbol, time_frame, ts)`, table)}
	},
	Insert: func(table string) string {
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)", table, tickColumns)
	},
	Rebind: questionMarks,
	// Unmerged parts still hold superseded rows until FINAL collapses them.
	Source: func(table string) string { return table + " FINAL" },
}

var PostgresDialect = Dialect{
	Name: "postgres",
	Schema: func(table string) []string {
		return []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	symbol TEXT NOT NULL,
	time_frame BIGINT NOT NULL,
	ts BIGINT NOT NULL,
	open DOUBLE PRECISION NOT NULL,
	high DOUBLE PRECISION NOT NULL,
	low DOUBLE PRECISION NOT NULL,
	close DOUBLE PRECISION NOT NULL,
	volume DOUBLE PRECISION NOT NULL,
	normalized DOUBLE PRECISION,
	PRIMARY KEY (symbol, time_frame, ts)
)`, table),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_symbol_ts_idx ON %s (symbol, ts)", table, table),
		}
	},
	Insert: func(table string) string {
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)%s", table, tickColumns, upsertSuffix)
	},
	Rebind: dollarPlaceholders,
}

var SQLiteDialect = Dialect{
	Name: "sqlite",
	Schema: func(table string) []string {
		return []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	symbol TEXT NOT NULL,
	time_frame INTEGER NOT NULL,
	ts INTEGER NOT NULL,
	open REAL NOT NULL,
	high REAL NOT NULL,
	low REAL NOT NULL,
	close REAL NOT NULL,
	volume REAL NOT NULL,
	normalized REAL,
	PRIMARY KEY (symbol, time_frame, ts)
)`, table),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_symbol_ts_idx ON %s (symbol, ts)", table, table),
		}
	},
	Insert: func(table string) string {
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)%s", table, tickColumns, upsertSuffix)
	},
	Rebind: questionMarks,
}

// SQLTickStore implements TickStore over database/sql. Timestamps are
// stored as Unix milliseconds.
type SQLTickStore struct {
	db      *sql.DB
	table   string
	dialect Dialect
	l       *applogger.Logger
}

func NewSQLTickStore(db *sql.DB, table string, dialect Dialect, l *applogger.Logger) *SQLTickStore {
	if l == nil {
		l = applogger.NewNop()
	}
	return &SQLTickStore{db: db, table: table, dialect: dialect, l: l}
}

func (s *SQLTickStore) Init(ctx context.Context) error {
	for _, stmt := range s.dialect.Schema(s.table) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s schema: %w", s.dialect.Name, err)
		}
	}
	return nil
}

func (s *SQLTickStore) Save(ctx context.Context, t models.Tick) error {
	var norm sql.NullFloat64
	if t.Normalized != nil {
		norm = sql.NullFloat64{Float64: *t.Normalized, Valid: true}
	}
	q := s.dialect.Rebind(s.dialect.Insert(s.table))
	_, err := s.db.ExecContext(ctx, q,
		t.Symbol,
		int64(t.TimeFrame),
		t.Timestamp.UnixMilli(),
		t.Open,
		t.High,
		t.Low,
		t.Close,
		t.Volume,
		norm,
	)
	if err != nil {
		s.l.Error("tick insert failed",
			applogger.String("backend", s.dialect.Name),
			applogger.String("key", t.Key().String()),
			applogger.Error(err),
		)
		return fmt.Errorf("save tick: %w", err)
	}
	return nil
}

// where builds the key and time filter shared by every read.
func (s *SQLTickStore) where(key models.SeriesKey, tr drepo.TimeRange) (string, []interface{}) {
	clause := "symbol = ?"
	args := []interface{}{key.Symbol}
	if key.TimeFrame != 0 {
		clause += " AND time_frame = ?"
		args = append(args, int64(key.TimeFrame))
	}
	clause += " AND ts >= ? AND ts <= ?"
	args = append(args, tr.From.UnixMilli(), tr.To.UnixMilli())
	return clause, args
}

func (s *SQLTickStore) source() string {
	if s.dialect.Source == nil {
		return s.table
	}
	return s.dialect.Source(s.table)
}

func (s *SQLTickStore) QueryExtreme(ctx context.Context, key models.SeriesKey, field drepo.Field, order drepo.Order, tr drepo.TimeRange) (*models.Tick, error) {
	if !field.Valid() {
		return nil, errInvalidField(field)
	}
	dir := "ASC"
	if order == drepo.OrderMax {
		dir = "DESC"
	}
	clause, args := s.where(key, tr)
	q := s.dialect.Rebind(fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s ORDER BY %s %s, ts ASC LIMIT 1",
		tickColumns, s.source(), clause, string(field), dir,
	))

	ticks, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query extreme %s: %w", field, err)
	}
	if len(ticks) == 0 {
		return nil, nil
	}
	return &ticks[0], nil
}

func (s *SQLTickStore) QueryOrdered(ctx context.Context, key models.SeriesKey, tr drepo.TimeRange, limit int) ([]models.Tick, error) {
	clause, args := s.where(key, tr)
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY ts DESC", tickColumns, s.source(), clause)
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	ticks, err := s.query(ctx, s.dialect.Rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("query ordered: %w", err)
	}
	for i, j := 0, len(ticks)-1; i < j; i, j = i+1, j-1 {
		ticks[i], ticks[j] = ticks[j], ticks[i]
	}
	return ticks, nil
}

func (s *SQLTickStore) query(ctx context.Context, q string, args ...interface{}) ([]models.Tick, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.l.Error("tick query failed", applogger.String("backend", s.dialect.Name), applogger.Error(err))
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Tick, 0, 64)
	for rows.Next() {
		var (
			t    models.Tick
			tf   int64
			ts   int64
			norm sql.NullFloat64
		)
		if err := rows.Scan(&t.Symbol, &tf, &ts, &t.Open, &t.High, &t.Low, &t.Close, &t.Volume, &norm); err != nil {
			return nil, fmt.Errorf("scan tick: %w", err)
		}
		t.TimeFrame = int(tf)
		t.Timestamp = time.UnixMilli(ts).UTC()
		if norm.Valid {
			v := norm.Float64
			t.Normalized = &v
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	s.l.Debug("tick query",
		applogger.String("backend", s.dialect.Name),
		applogger.Int("rows", len(out)),
		applogger.Duration("took_ms", time.Since(start)),
	)
	return out, nil
}

func (s *SQLTickStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the *sql.DB belongs to whoever opened it.
func (s *SQLTickStore) Close() error { return nil }

func errInvalidField(f drepo.Field) error {
	return fmt.Errorf("unsupported field %q", string(f))
}

var _ drepo.TickStore = (*SQLTickStore)(nil)
