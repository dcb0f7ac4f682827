package rowstore

import (
	"github.com/iancoleman/orderedmap"
)

// Row is one record returned by a row store. Column order is the order the
// backend sent, which a plain map would lose. Nested JSON objects decode as
// orderedmap.OrderedMap values and numbers as json.Number.
type Row struct {
	m *orderedmap.OrderedMap
}

// NewRow builds a row from parallel column and value slices.
func NewRow(columns []string, values []any) Row {
	r := Row{m: newMap()}
	for i, col := range columns {
		var v any
		if i < len(values) {
			v = values[i]
		}
		r.m.Set(col, v)
	}
	return r
}

func newMap() *orderedmap.OrderedMap {
	m := orderedmap.New()
	m.SetUseNumber(true)
	m.SetEscapeHTML(false)
	return m
}

// Set assigns a value, appending the key if it is new.
func (r *Row) Set(key string, value any) {
	if r.m == nil {
		r.m = newMap()
	}
	r.m.Set(key, value)
}

// Get returns the value for key.
func (r Row) Get(key string) (any, bool) {
	if r.m == nil {
		return nil, false
	}
	return r.m.Get(key)
}

// Keys returns the column names in order.
func (r Row) Keys() []string {
	if r.m == nil {
		return []string{}
	}
	return append([]string(nil), r.m.Keys()...)
}

// Len returns the number of columns in the row.
func (r Row) Len() int {
	if r.m == nil {
		return 0
	}
	return len(r.m.Keys())
}

func (r Row) MarshalJSON() ([]byte, error) {
	if r.m == nil {
		return []byte("{}"), nil
	}
	return r.m.MarshalJSON()
}

func (r *Row) UnmarshalJSON(data []byte) error {
	m := newMap()
	if err := m.UnmarshalJSON(data); err != nil {
		return err
	}
	r.m = m
	return nil
}
