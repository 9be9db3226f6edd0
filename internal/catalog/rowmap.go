package catalog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// scanAll maps every row of rows into a []T using the "db" struct tags on T's
// fields as the row factory: columns are matched to fields by tag name, and
// any column whose name ends in "_json" is transparently unmarshaled into a
// map[string]any field instead of being left as a raw string.
//
// T must be one of the catalog entity structs in model.go — flat structs of
// int, int64, string, *int64, *string, and (for "_json" columns) map[string]any
// fields.
func scanAll[T any](rows *sql.Rows) ([]T, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	var zero T
	fieldIndex := tagFieldIndex(reflect.TypeOf(zero))

	var out []T
	for rows.Next() {
		v := reflect.New(reflect.TypeOf(zero)).Elem()

		dests := make([]any, len(cols))
		jsonDests := make(map[int]*sql.NullString) // column index -> holder, for *_json columns

		for i, col := range cols {
			idx, ok := fieldIndex[col]
			if !ok {
				var discard any
				dests[i] = &discard
				continue
			}
			field := v.Field(idx)

			if strings.HasSuffix(col, "_json") {
				holder := new(sql.NullString)
				jsonDests[i] = holder
				dests[i] = holder
				continue
			}

			dests[i] = field.Addr().Interface()
		}

		if err := rows.Scan(dests...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		for i, holder := range jsonDests {
			col := cols[i]
			idx := fieldIndex[col]
			field := v.Field(idx)
			if !holder.Valid || holder.String == "" {
				continue
			}
			target := reflect.New(field.Type())
			if err := json.Unmarshal([]byte(holder.String), target.Interface()); err != nil {
				return nil, fmt.Errorf("failed to parse JSON column %q: %w", col, err)
			}
			field.Set(target.Elem())
		}

		out = append(out, v.Interface().(T))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

// scanOne returns the first row scanned by scanAll, or ok=false if there were
// none.
func scanOne[T any](rows *sql.Rows) (T, bool, error) {
	all, err := scanAll[T](rows)
	var zero T
	if err != nil {
		return zero, false, err
	}
	if len(all) == 0 {
		return zero, false, nil
	}
	return all[0], true, nil
}

// tagFieldIndex maps each "db" struct tag on t to its field index.
func tagFieldIndex(t reflect.Type) map[string]int {
	out := make(map[string]int, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("db")
		if tag == "" {
			continue
		}
		out[tag] = i
	}
	return out
}

// encodeJSONColumn serializes a map[string]any for storage in a "_json"
// column. A nil or empty map is stored as NULL.
func encodeJSONColumn(v map[string]any) (any, error) {
	if len(v) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize JSON column: %w", err)
	}
	return string(b), nil
}
