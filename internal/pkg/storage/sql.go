package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/Vodeneev/ttmonitor/internal/pkg/models"
)

var _ Transport = (*SQLTransport)(nil)

// Supported SQL dialects.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// SQLTransport stores one row per match: the JSON document plus the columns
// queries filter on.
type SQLTransport struct {
	db      *sql.DB
	dialect string
}

// NewSQLTransport opens dsn with the driver for dialect and creates the
// schema if needed.
func NewSQLTransport(ctx context.Context, dialect, dsn string) (*SQLTransport, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%s DSN is required", dialect)
	}
	if dialect != DialectPostgres && dialect != DialectSQLite {
		return nil, fmt.Errorf("unsupported SQL dialect %q", dialect)
	}

	db, err := sql.Open(dialect, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// every :memory: connection is a separate database
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", dialect, err)
	}

	t := &SQLTransport{db: db, dialect: dialect}
	if err := t.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	slog.Info("SQL match storage initialized", "dialect", dialect)
	return t, nil
}

func (t *SQLTransport) initSchema(ctx context.Context) error {
	docType := "TEXT"
	if t.dialect == DialectPostgres {
		docType = "JSONB"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS match_records (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			last_updated BIGINT NOT NULL,
			doc ` + docType + ` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_match_records_status ON match_records(status)`,
		`CREATE INDEX IF NOT EXISTS idx_match_records_last_updated ON match_records(last_updated)`,
	}
	for _, q := range stmts {
		if _, err := t.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (t *SQLTransport) rebind(q string) string {
	if t.dialect != DialectPostgres {
		return q
	}
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

func (t *SQLTransport) Upsert(ctx context.Context, rec *models.MatchRecord) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	query := t.rebind(`
	INSERT INTO match_records (id, status, last_updated, doc)
	VALUES (?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		status = excluded.status,
		last_updated = excluded.last_updated,
		doc = excluded.doc
	`)
	if _, err := t.db.ExecContext(ctx, query, rec.ID, string(rec.Status), rec.LastUpdated.UnixNano(), string(data)); err != nil {
		return fmt.Errorf("failed to upsert record: %w", err)
	}
	return nil
}

func (t *SQLTransport) Get(ctx context.Context, id string) (*models.MatchRecord, error) {
	var data []byte
	err := t.db.QueryRowContext(ctx, t.rebind(`SELECT doc FROM match_records WHERE id = ?`), id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return decodeRecord(data)
}

func (t *SQLTransport) Query(ctx context.Context, f Filter) ([]*models.MatchRecord, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if !f.UpdatedAfter.IsZero() {
		where = append(where, "last_updated >= ?")
		args = append(args, f.UpdatedAfter.UnixNano())
	}
	if !f.UpdatedBefore.IsZero() {
		where = append(where, "last_updated < ?")
		args = append(args, f.UpdatedBefore.UnixNano())
	}

	query := "SELECT doc FROM match_records"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	rows, err := t.db.QueryContext(ctx, t.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var out []*models.MatchRecord
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec, err := decodeRecord(data)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (t *SQLTransport) Delete(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	res, err := t.db.ExecContext(ctx, t.rebind("DELETE FROM match_records WHERE id IN ("+placeholders+")"), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted records: %w", err)
	}
	return int(n), nil
}

func (t *SQLTransport) Close() error {
	return t.db.Close()
}
