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

package sorting

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"testing"

	"github.com/SnellerInc/tabular/extent"
	"github.com/SnellerInc/tabular/internal/exttest"
	"github.com/SnellerInc/tabular/reqerr"
	"github.com/stretchr/testify/require"
)

var schema = extent.MustSchema("t",
	extent.Column{Name: "k", Kind: extent.Int64, Nullable: true},
	extent.Column{Name: "s", Kind: extent.Bytes},
	extent.Column{Name: "seq", Kind: extent.Int64},
)

func randomRows(n int, r *rand.Rand) [][]any {
	rows := make([][]any, n)
	for i := range rows {
		var k any
		if r.Intn(10) > 0 {
			k = r.Intn(20)
		}
		rows[i] = []any{k, fmt.Sprintf("s%d", r.Intn(3)), i}
	}
	return rows
}

// reference ordering: a stable sort of
// the rows with the same rules
func reference(rows [][]any, rules []Column) [][]any {
	out := append([][]any(nil), rows...)
	idx := map[string]int{"k": 0, "s": 1, "seq": 2}
	sort.SliceStable(out, func(i, j int) bool {
		for _, c := range rules {
			a := exttest.Value(extent.Int64, out[i][idx[c.Name]])
			b := exttest.Value(extent.Int64, out[j][idx[c.Name]])
			if r := c.Compare(a, b); r != 0 {
				return r < 0
			}
		}
		return false
	})
	return out
}

func run(t *testing.T, rules []Column, extents ...*extent.Extent) ([][]any, int) {
	return exttest.Collect(t, NewSort(exttest.Source(schema, extents...), rules, nil))
}

func TestSortMerge(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	rows := randomRows(5000, r)
	rules := [][]Column{
		{{Name: "k", Direction: Ascending, Nulls: NullsFirst}},
		{{Name: "k", Direction: Descending, Nulls: NullsLast}},
		{{Name: "s", Direction: Descending}, {Name: "k", Direction: Ascending, Nulls: NullsLast}},
		{{Name: "s"}, {Name: "k", Direction: Descending, Nulls: NullsFirst}},
	}
	for i, rs := range rules {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			want := reference(rows, rs)
			for _, chunk := range []int{1, 7, 100, 5000} {
				got, _ := run(t, rs, exttest.Chunks(schema, chunk, rows...)...)
				// the seq column makes stability observable
				require.Equal(t, want, got, "chunk size %d", chunk)
			}
		})
	}
}

func TestSortSingleFastPath(t *testing.T) {
	rows := [][]any{{3, "a", 0}, {1, "b", 1}, {nil, "c", 2}, {1, "d", 3}, {2, "e", 4}}
	rules := []Column{{Name: "k", Direction: Ascending, Nulls: NullsLast}}
	single, n := run(t, rules, exttest.Rows(schema, rows...))
	require.Equal(t, 1, n)
	many, _ := run(t, rules, exttest.Chunks(schema, 1, rows...)...)
	require.Equal(t, single, many)
	require.Equal(t, [][]any{{1, "b", 1}, {1, "d", 3}, {2, "e", 4}, {3, "a", 0}, {nil, "c", 2}}, single)
}

func TestSortSkipsEmptyExtents(t *testing.T) {
	empty := exttest.Rows(schema)
	rows := [][]any{{2, "x", 0}, {1, "y", 1}}
	got, _ := run(t, []Column{{Name: "k"}}, empty, exttest.Rows(schema, rows...), empty)
	require.Equal(t, [][]any{{1, "y", 1}, {2, "x", 0}}, got)

	got, n := run(t, []Column{{Name: "k"}}, empty)
	require.Empty(t, got)
	require.Zero(t, n)
	got, _ = run(t, []Column{{Name: "k"}})
	require.Empty(t, got)
}

func TestSortFlushes(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	rows := randomRows(20000, r)
	s := NewSort(exttest.Source(schema, exttest.Chunks(schema, 3000, rows...)...),
		[]Column{{Name: "seq", Direction: Descending}}, nil)
	total, count := 0, 0
	for {
		e, err := s.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		require.LessOrEqual(t, e.Size(), extent.TargetSize+64)
		total += e.Rows()
		count++
	}
	require.Equal(t, 20000, total)
	require.Greater(t, count, 1)
	require.True(t, s.Schema().Equal(schema))
}

func TestSortErrors(t *testing.T) {
	rows := exttest.Rows(schema, []any{1, "a", 0})
	_, err := NewSort(exttest.Source(schema, rows), []Column{{Name: "nope"}}, nil).Next()
	_, ok := reqerr.AsRequest(err)
	require.True(t, ok)
	_, err = NewSort(exttest.Source(schema, rows), nil, nil).Next()
	_, ok = reqerr.AsRequest(err)
	require.True(t, ok)
}

func TestRuleJSON(t *testing.T) {
	var cols []Column
	require.NoError(t, json.Unmarshal([]byte(`[{"column":"a","direction":"desc","nulls":"last"},{"column":"b"}]`), &cols))
	require.Equal(t, []Column{
		{Name: "a", Direction: Descending, Nulls: NullsLast},
		{Name: "b"},
	}, cols)
	require.Equal(t, "a desc nulls last", cols[0].String())
	require.Equal(t, "b asc nulls first", cols[1].String())
	require.Error(t, json.Unmarshal([]byte(`[{"column":"a","direction":"up"}]`), &cols))
}
