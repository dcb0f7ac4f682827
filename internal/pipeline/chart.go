package pipeline

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"

	"github.com/JonMunkholm/olive/internal/rowstore"
	"github.com/JonMunkholm/olive/internal/schema"
)

// Chart is bar chart data derived from fetched rows.
type Chart struct {
	LabelColumn string    `json:"labelColumn"`
	ValueColumn string    `json:"valueColumn"`
	Labels      []string  `json:"labels"`
	Values      []float64 `json:"values"`
}

// BuildChart uses the first string column for labels and the first numeric
// column for values, judged from the first row. Without a numeric column each
// row counts as 1. Nil when there are no rows.
func BuildChart(rows []rowstore.Row) *Chart {
	if len(rows) == 0 {
		return nil
	}

	chart := &Chart{}
	for _, key := range rows[0].Keys() {
		first, _ := rows[0].Get(key)
		switch schema.InferType(first) {
		case "string":
			if chart.LabelColumn == "" {
				chart.LabelColumn = key
			}
		case "number":
			if chart.ValueColumn == "" {
				chart.ValueColumn = key
			}
		}
	}

	chart.Labels = make([]string, 0, len(rows))
	chart.Values = make([]float64, 0, len(rows))
	for i, row := range rows {
		label := strconv.Itoa(i + 1)
		if chart.LabelColumn != "" {
			if v, ok := row.Get(chart.LabelColumn); ok && v != nil {
				label = fmt.Sprint(v)
			}
		}
		value := 1.0
		if chart.ValueColumn != "" {
			v, _ := row.Get(chart.ValueColumn)
			value = toFloat(v)
		}
		chart.Labels = append(chart.Labels, label)
		chart.Values = append(chart.Values, value)
	}
	return chart
}

func toFloat(v any) float64 {
	switch val := v.(type) {
	case nil:
		return 0
	case json.Number:
		f, _ := val.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(val, 64)
		return f
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	}
	return 0
}
