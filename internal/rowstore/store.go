// Package rowstore reads rows from the backend a user connects Olive to.
//
// Backends expose only a restricted row-fetch API (select all columns of one
// table with an optional limit). There is no raw SQL endpoint, which is why
// generated SQL is never executed as-is.
package rowstore

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Target identifies the backend and table for one request. It is supplied by
// the caller and never persisted.
type Target struct {
	Endpoint  string
	AccessKey string
	Table     string
}

// Validate only checks that every field is present.
func (t Target) Validate() error {
	var missing []string
	if strings.TrimSpace(t.Endpoint) == "" {
		missing = append(missing, "url")
	}
	if strings.TrimSpace(t.AccessKey) == "" {
		missing = append(missing, "key")
	}
	if strings.TrimSpace(t.Table) == "" {
		missing = append(missing, "table")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// Column is a declared column as reported by a backend's own introspection.
type Column struct {
	Name     string
	Type     string
	Nullable bool
}

// Store fetches rows from a single backend.
type Store interface {
	// Select returns the rows of table. A limit <= 0 fetches every row.
	Select(ctx context.Context, table string, limit int) ([]Row, error)

	// Close releases any connection held by the store.
	Close() error
}

// Introspector is implemented by stores that can report a table's declared
// columns without sampling.
type Introspector interface {
	Columns(ctx context.Context, table string) ([]Column, error)
}

// Options tune store construction.
type Options struct {
	// HTTPClient is used by REST backends. Defaults to a client with Timeout.
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Open returns a store for the target's endpoint. http(s) endpoints are
// treated as PostgREST projects; postgres:// endpoints as direct connections.
func Open(target Target, opts Options) (Store, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}

	u, err := url.Parse(strings.TrimSpace(target.Endpoint))
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		client := opts.HTTPClient
		if client == nil {
			timeout := opts.Timeout
			if timeout <= 0 {
				timeout = 30 * time.Second
			}
			client = &http.Client{Timeout: timeout}
		}
		return NewRESTStore(u.String(), target.AccessKey, client), nil

	case "postgres", "postgresql":
		return OpenPostgres(u, target.AccessKey)

	default:
		return nil, fmt.Errorf("unsupported endpoint scheme %q (supported: https, postgres)", u.Scheme)
	}
}
