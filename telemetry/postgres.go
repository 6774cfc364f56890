package telemetry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
	logger "github.com/sirupsen/logrus"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// PostgresSubmitter inserts a batch as one row per record with the record
// as jsonb.
type PostgresSubmitter[T any] struct {
	db    execer
	query string
}

// OpenPostgres opens a pooled connection through lib/pq.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return db, nil
}

func NewPostgresSubmitter[T any](db execer, table string) *PostgresSubmitter[T] {
	return &PostgresSubmitter[T]{
		db:    db,
		query: insertQuery(table),
	}
}

func insertQuery(table string) string {
	return fmt.Sprintf("INSERT INTO %s (category, payload) SELECT $1, unnest($2::jsonb[])", pq.QuoteIdentifier(table))
}

func (p *PostgresSubmitter[T]) Submit(ctx context.Context, category string, batch []T) error {
	rows := make([]string, 0, len(batch))
	for _, rec := range batch {
		b, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		rows = append(rows, string(b))
	}
	res, err := p.db.ExecContext(ctx, p.query, category, pq.Array(rows))
	if err != nil {
		return fmt.Errorf("insert %v: %w", category, err)
	}
	if n, err := res.RowsAffected(); err == nil {
		logger.Debugf("Inserted [%v] [%v] rows", n, category)
	}
	return nil
}
