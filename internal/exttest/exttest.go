// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package exttest provides fixtures for tests
// that build and inspect extents.
package exttest

import (
	"fmt"
	"testing"

	"github.com/SnellerInc/tabular/extent"
)

// Value converts a Go value to an extent.Value:
// nil is null (of kind k), integers, float64,
// bool and string map to the obvious kinds.
func Value(k extent.Kind, v any) extent.Value {
	switch v := v.(type) {
	case nil:
		return extent.Null(k)
	case int:
		return extent.NewInt64(int64(v))
	case int64:
		return extent.NewInt64(v)
	case int32:
		return extent.NewInt32(v)
	case float64:
		return extent.NewDouble(v)
	case bool:
		return extent.NewBool(v)
	case string:
		return extent.NewString(v)
	case []byte:
		return extent.NewBytes(v)
	}
	panic(fmt.Sprintf("exttest: cannot convert %T", v))
}

// Rows builds one extent of s.
func Rows(s *extent.Schema, rows ...[]any) *extent.Extent {
	b := extent.NewBuilder(s)
	for _, r := range rows {
		if len(r) != s.Len() {
			panic(fmt.Sprintf("exttest: %d values for %s", len(r), s))
		}
		b.AddRow()
		for i, v := range r {
			b.Set(i, Value(s.Column(i).Kind, v))
		}
	}
	return b.Build()
}

// Chunks builds one extent of s per group of
// n rows (the last one may be shorter).
func Chunks(s *extent.Schema, n int, rows ...[]any) []*extent.Extent {
	var out []*extent.Extent
	for len(rows) > 0 {
		m := min(n, len(rows))
		out = append(out, Rows(s, rows[:m]...))
		rows = rows[m:]
	}
	return out
}

// Source returns a Source over extents of s.
func Source(s *extent.Schema, extents ...*extent.Extent) extent.Source {
	return extent.NewSliceSource(s, extents...)
}

// Go converts a value back to a Go value:
// null is nil, integer kinds are int,
// Double is float64, Bool is bool and
// Bytes is string.
func Go(v extent.Value) any {
	if v.IsNull() {
		return nil
	}
	switch v.Kind() {
	case extent.Bool:
		return v.Bool()
	case extent.Double:
		return v.Double()
	case extent.Bytes:
		return string(v.Bytes())
	default:
		return int(v.Int64())
	}
}

// Collect drains src and returns every row
// converted with Go, along with the number
// of extents that were produced.
func Collect(t testing.TB, src extent.Source) ([][]any, int) {
	t.Helper()
	var out [][]any
	n := 0
	err := extent.ForEach(src, func(e *extent.Extent) error {
		n++
		for r := 0; r < e.Rows(); r++ {
			row := make([]any, e.Schema().Len())
			for c := range row {
				row[c] = Go(e.Value(r, c))
			}
			out = append(out, row)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	return out, n
}
