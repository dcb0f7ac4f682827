package rowstore

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore implements Store over a direct Postgres connection.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres opens a connection for a postgres:// endpoint.
func OpenPostgres(dsn *url.URL, accessKey string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", postgresDSN(dsn, accessKey))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(2)
	return NewPostgresStore(db), nil
}

// postgresDSN uses the access key as the password when the DSN has none. A DSN
// without a user connects as "postgres".
func postgresDSN(dsn *url.URL, accessKey string) string {
	u := *dsn
	switch {
	case accessKey == "":
	case u.User == nil:
		u.User = url.UserPassword("postgres", accessKey)
	default:
		if _, hasPassword := u.User.Password(); !hasPassword {
			u.User = url.UserPassword(u.User.Username(), accessKey)
		}
	}
	return u.String()
}

// NewPostgresStore wraps an existing handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Select runs SELECT * against the quoted table name.
func (s *PostgresStore) Select(ctx context.Context, table string, limit int) ([]Row, error) {
	query := "SELECT * FROM " + quoteIdent(table)
	if limit > 0 {
		query += " LIMIT " + strconv.Itoa(limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []Row
	for rows.Next() {
		values, err := scanRow(rows, len(columns))
		if err != nil {
			return nil, err
		}
		out = append(out, NewRow(columns, normalizeRow(values)))
	}
	return out, rows.Err()
}

// Columns reads the table's declared columns from information_schema.
func (s *PostgresStore) Columns(ctx context.Context, table string) ([]Column, error) {
	query := `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable = 'YES' AS nullable
		FROM information_schema.columns c
		WHERE c.table_schema = 'public'
		  AND c.table_name = $1
		ORDER BY c.ordinal_position`

	rows, err := s.db.QueryContext(ctx, query, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var col Column
		if err := rows.Scan(&col.Name, &col.Type, &col.Nullable); err != nil {
			return nil, err
		}
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

// Close closes the underlying pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func scanRow(rows *sql.Rows, numCols int) ([]any, error) {
	values := make([]any, numCols)
	ptrs := make([]any, numCols)
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	return values, nil
}

func normalizeRow(values []any) []any {
	row := make([]any, len(values))
	for i, v := range values {
		switch val := v.(type) {
		case nil:
			row[i] = nil
		case []byte:
			row[i] = string(val)
		case time.Time:
			row[i] = val.Format(time.RFC3339Nano)
		default:
			row[i] = val
		}
	}
	return row
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}
