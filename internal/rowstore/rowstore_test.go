package rowstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestRowJSONKeepsKeyOrder(t *testing.T) {
	var row Row
	if err := json.Unmarshal([]byte(`{"zeta":1,"alpha":"a","mid":null}`), &row); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got := row.Keys(); len(got) != 3 || got[0] != "zeta" || got[1] != "alpha" || got[2] != "mid" {
		t.Fatalf("Keys = %v", got)
	}
	if v, _ := row.Get("zeta"); v != json.Number("1") {
		t.Fatalf("zeta = %#v", v)
	}

	out, err := json.Marshal(row)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(out) != `{"zeta":1,"alpha":"a","mid":null}` {
		t.Fatalf("Marshal() = %s", out)
	}
}

func TestRowKeepsNestedObjectOrder(t *testing.T) {
	in := `{"id":10000000000000001,"meta":{"zulu":true,"alpha":[1,2]}}`
	var row Row
	if err := json.Unmarshal([]byte(in), &row); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if v, _ := row.Get("id"); v != json.Number("10000000000000001") {
		t.Fatalf("id = %#v", v)
	}
	out, err := json.Marshal(row)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(out) != in {
		t.Fatalf("Marshal() = %s, want %s", out, in)
	}
}

func TestNewRowAndZeroRow(t *testing.T) {
	row := NewRow([]string{"b", "a"}, []any{1})
	if got := row.Keys(); len(got) != 2 || got[0] != "b" || got[1] != "a" {
		t.Fatalf("Keys() = %v", got)
	}
	if v, ok := row.Get("a"); !ok || v != nil {
		t.Fatalf("Get(a) = %v, %v", v, ok)
	}

	var zero Row
	if zero.Len() != 0 || len(zero.Keys()) != 0 {
		t.Fatalf("zero row = %v", zero.Keys())
	}
	if out, _ := json.Marshal(zero); string(out) != "{}" {
		t.Fatalf("Marshal(zero) = %s", out)
	}
}

func TestRowUnmarshalRejectsNonObject(t *testing.T) {
	var row Row
	if err := json.Unmarshal([]byte(`[1,2]`), &row); err == nil {
		t.Fatal("expected error for array input")
	}
}

func TestTargetValidate(t *testing.T) {
	if err := (Target{Endpoint: "https://x.supabase.co", AccessKey: "k", Table: "t"}).Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	err := (Target{Endpoint: " ", Table: "t"}).Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != "missing url, key" {
		t.Fatalf("Validate() = %q", err.Error())
	}
}

func TestOpenRejectsUnknownScheme(t *testing.T) {
	_, err := Open(Target{Endpoint: "ftp://host", AccessKey: "k", Table: "t"}, Options{})
	if err == nil {
		t.Fatal("expected scheme error")
	}
}

func TestRESTStoreSelect(t *testing.T) {
	var gotPath, gotQuery, gotKey, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotKey = r.Header.Get("apikey")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":1,"name":"Ann"},{"id":2,"name":"Bob"}]`))
	}))
	defer srv.Close()

	store, err := Open(Target{Endpoint: srv.URL, AccessKey: "anon", Table: "people"}, Options{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer store.Close()

	rows, err := store.Select(context.Background(), "people", 3)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d", len(rows))
	}
	if gotPath != "/rest/v1/people" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotQuery != "limit=3&select=%2A" {
		t.Fatalf("query = %q", gotQuery)
	}
	if gotKey != "anon" || gotAuth != "Bearer anon" {
		t.Fatalf("headers apikey=%q auth=%q", gotKey, gotAuth)
	}
}

func TestRESTStoreSelectAllOmitsLimit(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	store := NewRESTStore(srv.URL, "k", srv.Client())
	if _, err := store.Select(context.Background(), "t", 0); err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if gotQuery != "select=%2A" {
		t.Fatalf("query = %q", gotQuery)
	}
}

func TestRESTStoreSurfacesBackendMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"42P01","message":"relation \"public.nope\" does not exist"}`))
	}))
	defer srv.Close()

	store := NewRESTStore(srv.URL, "k", srv.Client())
	_, err := store.Select(context.Background(), "nope", 0)
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != `relation "public.nope" does not exist` {
		t.Fatalf("error = %q", err.Error())
	}
}

func TestRESTStoreColumnsFromOpenAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"definitions":{"people":{
			"required":["id"],
			"properties":{"id":{"format":"bigint","type":"integer"},"name":{"format":"text","type":"string"},"meta":{"type":"object"}}
		}}}`))
	}))
	defer srv.Close()

	store := NewRESTStore(srv.URL, "k", srv.Client())
	cols, err := store.Columns(context.Background(), "people")
	if err != nil {
		t.Fatalf("Columns() error = %v", err)
	}
	want := []Column{
		{Name: "id", Type: "bigint", Nullable: false},
		{Name: "name", Type: "text", Nullable: true},
		{Name: "meta", Type: "object", Nullable: true},
	}
	if len(cols) != len(want) {
		t.Fatalf("columns = %+v", cols)
	}
	for i := range want {
		if cols[i] != want[i] {
			t.Fatalf("columns[%d] = %+v, want %+v", i, cols[i], want[i])
		}
	}

	if _, err := store.Columns(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for unknown table")
	}
}

func TestPostgresStoreSelect(t *testing.T) {
	db, mock := newSQLMock(t)
	store := NewPostgresStore(db)
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "order ""items""" LIMIT 5`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created_at"}).
			AddRow(int64(1), []byte("Ann"), created))

	rows, err := store.Select(context.Background(), `order "items"`, 5)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d", len(rows))
	}
	if got := rows[0].Keys(); got[0] != "id" || got[1] != "name" || got[2] != "created_at" {
		t.Fatalf("Keys = %v", got)
	}
	if v, _ := rows[0].Get("name"); v != "Ann" {
		t.Fatalf("name = %#v", v)
	}
	if v, _ := rows[0].Get("created_at"); v != "2025-01-02T03:04:05Z" {
		t.Fatalf("created_at = %#v", v)
	}
	assertSQLMock(t, mock)
}

func TestPostgresStoreColumns(t *testing.T) {
	db, mock := newSQLMock(t)
	store := NewPostgresStore(db)

	mock.ExpectQuery(`FROM information_schema.columns`).
		WithArgs("people").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "nullable"}).
			AddRow("id", "bigint", false).
			AddRow("name", "text", true))

	cols, err := store.Columns(context.Background(), "people")
	if err != nil {
		t.Fatalf("Columns() error = %v", err)
	}
	if len(cols) != 2 || cols[0].Type != "bigint" || !cols[1].Nullable {
		t.Fatalf("columns = %+v", cols)
	}
	assertSQLMock(t, mock)
}

func TestOpenPostgresUsesAccessKeyAsPassword(t *testing.T) {
	u, _ := url.Parse("postgres://reader@db.example.com:5432/app?sslmode=require")
	store, err := OpenPostgres(u, "s3cret")
	if err != nil {
		t.Fatalf("OpenPostgres() error = %v", err)
	}
	defer store.Close()
	if u.User.String() != "reader" {
		t.Fatalf("input URL mutated: %q", u.User.String())
	}
}

func TestPostgresDSN(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
		key  string
		want string
	}{
		{"adds password", "postgres://reader@db:5432/app", "pw", "postgres://reader:pw@db:5432/app"},
		{"keeps password", "postgres://reader:own@db/app", "pw", "postgres://reader:own@db/app"},
		{"default user", "postgres://db/app", "pw", "postgres://postgres:pw@db/app"},
		{"no key", "postgres://db/app", "", "postgres://db/app"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := url.Parse(tt.dsn)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if got := postgresDSN(u, tt.key); got != tt.want {
				t.Fatalf("postgresDSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}
