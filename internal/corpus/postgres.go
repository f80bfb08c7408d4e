package corpus

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lib/pq"

	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/postgres"
)

// PostgresSource reads records from a table with docname, title, filename
// and body columns:
//
//	CREATE TABLE documents (
//	    docname  TEXT PRIMARY KEY,
//	    title    TEXT NOT NULL,
//	    filename TEXT NOT NULL,
//	    body     TEXT NOT NULL DEFAULT ''
//	);
type PostgresSource struct {
	db     *postgres.Client
	table  string
	logger *slog.Logger
}

func NewPostgresSource(db *postgres.Client, table string) *PostgresSource {
	if table == "" {
		table = "documents"
	}
	return &PostgresSource{
		db:     db,
		table:  table,
		logger: slog.Default().With("component", "corpus-postgres", "table", table),
	}
}

func (s *PostgresSource) Name() string {
	return "postgres:" + s.table
}

// Records returns every row ordered by docname.
func (s *PostgresSource) Records(ctx context.Context) ([]Record, error) {
	query := fmt.Sprintf(
		`SELECT docname, title, filename, body FROM %s ORDER BY docname`,
		pq.QuoteIdentifier(s.table),
	)
	rows, err := s.db.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", s.table, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		records = append(records, s.scanRecord(rows, len(records)+1))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", s.table, err)
	}
	s.logger.Info("corpus read", "records", len(records))
	return records, nil
}

// scanRecord converts one row. A NULL body reads as empty; a NULL in any
// other column, or a row that cannot be scanned, yields a record carrying
// Err so the build skips it.
func (s *PostgresSource) scanRecord(rows rowScanner, n int) Record {
	var docname, title, filename, body sql.NullString
	if err := rows.Scan(&docname, &title, &filename, &body); err != nil {
		s.logger.Warn("unreadable row", "row", n, "error", err)
		return Record{Err: apperrors.Newf(apperrors.ErrBuildInput, http.StatusBadRequest,
			"%s row %d: %v", s.table, n, err)}
	}
	rec := Record{DocName: docname.String, Title: title.String, FileName: filename.String, Body: body.String}
	var null []string
	for _, c := range []struct {
		name string
		v    sql.NullString
	}{{"docname", docname}, {"title", title}, {"filename", filename}} {
		if !c.v.Valid {
			null = append(null, c.name)
		}
	}
	if len(null) > 0 {
		rec.Err = apperrors.Newf(apperrors.ErrBuildInput, http.StatusBadRequest,
			"%s row %d: NULL %s", s.table, n, strings.Join(null, ", "))
	}
	return rec
}

type rowScanner interface {
	Scan(dest ...any) error
}
