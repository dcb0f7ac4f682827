package rowstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/iancoleman/orderedmap"
)

const restPath = "/rest/v1"

// RESTStore implements Store for PostgREST-style projects such as Supabase.
type RESTStore struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewRESTStore creates a store rooted at the project URL.
func NewRESTStore(projectURL, apiKey string, client *http.Client) *RESTStore {
	return &RESTStore{
		baseURL: strings.TrimRight(projectURL, "/"),
		apiKey:  apiKey,
		client:  client,
	}
}

// Select issues the equivalent of select("*").limit(n).
func (s *RESTStore) Select(ctx context.Context, table string, limit int) ([]Row, error) {
	q := url.Values{}
	q.Set("select", "*")
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	endpoint := s.baseURL + restPath + "/" + url.PathEscape(table) + "?" + q.Encode()

	body, err := s.get(ctx, endpoint, "application/json")
	if err != nil {
		return nil, err
	}

	var rows []Row
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	return rows, nil
}

// Columns reads the table definition from the project's OpenAPI document.
// Projects that hide the document return an error and callers fall back to
// sampling.
func (s *RESTStore) Columns(ctx context.Context, table string) ([]Column, error) {
	body, err := s.get(ctx, s.baseURL+restPath+"/", "application/openapi+json")
	if err != nil {
		return nil, err
	}

	var doc struct {
		Definitions map[string]struct {
			Properties Row      `json:"properties"`
			Required   []string `json:"required"`
		} `json:"definitions"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode openapi document: %w", err)
	}

	def, ok := doc.Definitions[table]
	if !ok {
		return nil, fmt.Errorf("table %q not found in openapi document", table)
	}

	required := make(map[string]bool, len(def.Required))
	for _, name := range def.Required {
		required[name] = true
	}

	columns := make([]Column, 0, def.Properties.Len())
	for _, name := range def.Properties.Keys() {
		prop, _ := def.Properties.Get(name)
		columns = append(columns, Column{
			Name:     name,
			Type:     propertyType(prop),
			Nullable: !required[name],
		})
	}
	return columns, nil
}

// Close is a no-op; the HTTP client is shared.
func (s *RESTStore) Close() error {
	return nil
}

func (s *RESTStore) get(ctx context.Context, endpoint, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Accept", accept)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp restErrorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Message != "" {
			return nil, fmt.Errorf("%s", errResp.Message)
		}
		return nil, fmt.Errorf("backend returned status %d", resp.StatusCode)
	}
	return body, nil
}

// propertyType prefers the OpenAPI format (e.g. "bigint") over the JSON type.
func propertyType(prop any) string {
	var get func(string) (any, bool)
	switch p := prop.(type) {
	case orderedmap.OrderedMap:
		get = p.Get
	case *orderedmap.OrderedMap:
		get = p.Get
	case map[string]any:
		get = func(k string) (any, bool) {
			v, ok := p[k]
			return v, ok
		}
	default:
		return ""
	}
	for _, key := range []string{"format", "type"} {
		if v, _ := get(key); v != nil {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

type restErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}
