// Package schema derives the column list and sample rows used as prompt context.
package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	apperrors "github.com/JonMunkholm/olive/internal/errors"
	"github.com/JonMunkholm/olive/internal/rowstore"
)

// SampleSize is the number of rows fetched for prompt context.
const SampleSize = 3

// Source describes where a sample's column types came from.
type Source string

const (
	SourceDeclared Source = "declared"
	SourceInferred Source = "inferred"
)

// Column represents a table column.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Sample is the schema and rows given to the prompt builder. It is derived
// fresh for every question and never cached.
type Sample struct {
	Table   string         `json:"table"`
	Columns []Column       `json:"columns"`
	Rows    []rowstore.Row `json:"rows"`
	Source  Source         `json:"source"`
}

// Text renders the columns as "name: type" pairs.
func (s Sample) Text() string {
	parts := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		parts[i] = fmt.Sprintf("%s: %s", col.Name, col.Type)
	}
	return strings.Join(parts, ", ")
}

// RowsJSON renders the sample rows as indented JSON.
func (s Sample) RowsJSON() string {
	rows := s.Rows
	if rows == nil {
		rows = []rowstore.Row{}
	}
	out, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(out)
}

// Sampler fetches sample rows for a table.
type Sampler struct {
	// Size lowers the sample below SampleSize when in 1..SampleSize.
	Size int
}

// Sample fetches up to Size rows from table. A failed or empty fetch yields
// NoDataFound. Declared column types are used when the store can introspect;
// otherwise types are inferred from the first row, so columns that only appear
// in later rows are not visible.
func (s Sampler) Sample(ctx context.Context, store rowstore.Store, table string) (Sample, error) {
	size := s.Size
	if size <= 0 || size > SampleSize {
		size = SampleSize
	}

	rows, err := store.Select(ctx, table, size)
	if err != nil {
		return Sample{}, apperrors.Wrap(apperrors.NoDataFound, apperrors.MsgNoDataFound, err)
	}
	if len(rows) == 0 {
		return Sample{}, apperrors.New(apperrors.NoDataFound, apperrors.MsgNoDataFound)
	}
	if len(rows) > size {
		rows = rows[:size]
	}

	sample := Sample{Table: table, Rows: rows}
	if declared := declaredColumns(ctx, store, table); len(declared) > 0 {
		sample.Columns = declared
		sample.Source = SourceDeclared
		return sample, nil
	}

	sample.Columns = InferColumns(rows[0])
	sample.Source = SourceInferred
	return sample, nil
}

func declaredColumns(ctx context.Context, store rowstore.Store, table string) []Column {
	introspector, ok := store.(rowstore.Introspector)
	if !ok {
		return nil
	}
	cols, err := introspector.Columns(ctx, table)
	if err != nil {
		return nil
	}
	out := make([]Column, 0, len(cols))
	for _, c := range cols {
		out = append(out, Column{Name: c.Name, Type: c.Type})
	}
	return out
}

// InferColumns returns the row's columns in key order with inferred types.
func InferColumns(row rowstore.Row) []Column {
	cols := make([]Column, 0, row.Len())
	for _, key := range row.Keys() {
		v, _ := row.Get(key)
		cols = append(cols, Column{Name: key, Type: InferType(v)})
	}
	return cols
}

// InferType maps a runtime value to number, string, boolean or object.
// Nulls report as object.
func InferType(v any) string {
	switch val := v.(type) {
	case nil:
		return "object"
	case string, time.Time:
		return "string"
	case bool:
		return "boolean"
	case json.Number:
		return "number"
	case []byte:
		return "string"
	default:
		switch reflect.ValueOf(val).Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
			reflect.Float32, reflect.Float64:
			return "number"
		case reflect.String:
			return "string"
		case reflect.Bool:
			return "boolean"
		}
		return "object"
	}
}
