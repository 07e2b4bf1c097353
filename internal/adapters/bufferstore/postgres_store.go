package bufferstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/ghalamif/FactoryBatch/internal/domain"
	"github.com/ghalamif/FactoryBatch/internal/ports"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// PostgresStore keeps the buffer in a table with an indexed event_time column
// so extraction reads only the rows of its window.
type PostgresStore struct {
	db        *sql.DB
	tableName string
}

func NewPostgresStore(db *sql.DB, table string) (*PostgresStore, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid buffer table name %q", table)
	}
	return &PostgresStore{db: db, tableName: table}, nil
}

func (p *PostgresStore) Name() string { return "postgres" }

// EnsureSchema creates the buffer table and its time index if missing.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		"CREATE TABLE IF NOT EXISTS " + p.tableName + ` (
	id TEXT NOT NULL,
	ts TEXT NOT NULL,
	event_time TIMESTAMPTZ,
	message JSONB NOT NULL,
	PRIMARY KEY (id, ts)
)`,
		"CREATE INDEX IF NOT EXISTS " + indexName(p.tableName) + " ON " + p.tableName + " (event_time)",
	}
	for i, stmt := range stmts {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}
	return nil
}

func (p *PostgresStore) Put(ctx context.Context, rec *domain.BufferRecord) error {
	msg, err := json.Marshal(rec.Message)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	// event_time stays NULL for timestamps that do not parse; those rows are
	// only reachable through Scan.
	var eventTime any
	if t, err := rec.EventTime(); err == nil {
		eventTime = t
	}

	// Append-only: an existing (id, ts) row is never touched.
	res, err := p.db.ExecContext(ctx,
		"INSERT INTO "+p.tableName+" (id, ts, event_time, message) VALUES ($1,$2,$3,$4) ON CONFLICT (id, ts) DO NOTHING",
		rec.ID, rec.Timestamp, eventTime, msg)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: id=%s timestamp=%s", ErrDuplicateRecord, rec.ID, rec.Timestamp)
	}
	return nil
}

func (p *PostgresStore) Scan(ctx context.Context, fn func(rec *domain.BufferRecord) error) error {
	return p.query(ctx, fn, "SELECT id, ts, message FROM "+p.tableName)
}

func (p *PostgresStore) ScanRange(ctx context.Context, w domain.TimeWindow, fn func(rec *domain.BufferRecord) error) error {
	return p.query(ctx, fn,
		"SELECT id, ts, message FROM "+p.tableName+" WHERE event_time >= $1 AND event_time < $2",
		w.Start, w.End)
}

func (p *PostgresStore) query(ctx context.Context, fn func(rec *domain.BufferRecord) error, q string, args ...any) error {
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec domain.BufferRecord
			raw []byte
		)
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &raw); err != nil {
			return err
		}
		if err := json.Unmarshal(raw, &rec.Message); err != nil {
			return fmt.Errorf("decode message of %s: %w", rec.ID, err)
		}
		if err := fn(&rec); err != nil {
			return err
		}
	}
	return rows.Err()
}

func indexName(table string) string {
	return regexp.MustCompile(`\W`).ReplaceAllString(table, "_") + "_event_time_idx"
}

var (
	_ ports.BufferStore  = (*PostgresStore)(nil)
	_ ports.RangeScanner = (*PostgresStore)(nil)
)
