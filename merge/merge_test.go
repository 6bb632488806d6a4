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

package merge

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/SnellerInc/tabular/extent"
	"github.com/SnellerInc/tabular/internal/exttest"
	"github.com/SnellerInc/tabular/reqerr"
	"github.com/SnellerInc/tabular/sorting"
	"github.com/stretchr/testify/require"
)

func requireRequest(t *testing.T, err error, contains string) {
	t.Helper()
	re, ok := reqerr.AsRequest(err)
	require.True(t, ok, "expected a request error, got %v", err)
	require.Contains(t, re.Message, contains)
}

var (
	usSchema = extent.MustSchema("us",
		extent.Column{Name: "ts", Kind: extent.Int64},
		extent.Column{Name: "city", Kind: extent.Bytes},
		extent.Column{Name: "temp", Kind: extent.Double, Nullable: true},
	)
	euSchema = extent.MustSchema("eu",
		extent.Column{Name: "time", Kind: extent.Int64},
		extent.Column{Name: "town", Kind: extent.Bytes},
		extent.Column{Name: "extra", Kind: extent.Int32},
	)
)

func unionSources(us, eu []*extent.Extent) []UnionSource {
	return []UnionSource{
		{
			Name:    "us",
			Source:  exttest.Source(usSchema, us...),
			Columns: map[string]string{"ts": "at", "city": "place", "temp": "temp"},
		},
		{
			Name:    "eu",
			Source:  exttest.Source(euSchema, eu...),
			Columns: map[string]string{"time": "at", "town": "place"},
		},
	}
}

var byTime = []sorting.Column{{Name: "at", Direction: sorting.Ascending, Nulls: sorting.NullsFirst}}

func TestUnion(t *testing.T) {
	srcs := unionSources(
		exttest.Chunks(usSchema, 2,
			[]any{1, "nyc", 3.5}, []any{4, "sf", nil}, []any{4, "la", 20.0}),
		exttest.Chunks(euSchema, 1,
			[]any{0, "oslo", 1}, []any{4, "rome", 2}, []any{9, "paris", 3}),
	)
	u := NewUnion(srcs, byTime, "weather", nil)
	require.Equal(t, "weather(at int64, place bytes, temp double null)", u.Schema().String())
	rows, _ := exttest.Collect(t, u)
	require.Equal(t, [][]any{
		{0, "oslo", nil},
		{1, "nyc", 3.5},
		{4, "sf", nil},
		{4, "la", 20.0},
		{4, "rome", nil},
		{9, "paris", nil},
	}, rows)
}

func TestUnionOrder(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	var us, eu [][]any
	for i := 0; i < 3000; i++ {
		us = append(us, []any{r.Intn(500), "us", float64(i)})
		eu = append(eu, []any{r.Intn(500), "eu", i})
	}
	sort.SliceStable(us, func(i, j int) bool { return us[i][0].(int) < us[j][0].(int) })
	sort.SliceStable(eu, func(i, j int) bool { return eu[i][0].(int) < eu[j][0].(int) })
	srcs := unionSources(exttest.Chunks(usSchema, 700, us...), exttest.Chunks(euSchema, 900, eu...))
	rows, _ := exttest.Collect(t, NewUnion(srcs, byTime, "weather", nil))
	require.Len(t, rows, 6000)
	for i := 1; i < len(rows); i++ {
		prev, cur := rows[i-1], rows[i]
		require.LessOrEqual(t, prev[0].(int), cur[0].(int))
		if prev[0] == cur[0] {
			// ties: every us row precedes every eu row
			require.False(t, prev[1] == "eu" && cur[1] == "us", "row %d", i)
		}
	}
}

func TestUnionEmptySources(t *testing.T) {
	srcs := unionSources(nil, exttest.Chunks(euSchema, 1, []any{1, "oslo", 1}))
	srcs[0].Source = exttest.Source(usSchema, exttest.Rows(usSchema))
	rows, _ := exttest.Collect(t, NewUnion(srcs, byTime, "w", nil))
	require.Equal(t, [][]any{{1, "oslo", nil}}, rows)

	rows, n := exttest.Collect(t, NewUnion(unionSources(nil, nil), byTime, "w", nil))
	require.Empty(t, rows)
	require.Zero(t, n)
}

func TestUnionErrors(t *testing.T) {
	srcs := unionSources(
		exttest.Chunks(usSchema, 1, []any{1, "nyc", 3.5}),
		exttest.Chunks(euSchema, 1, []any{0, "oslo", 1}),
	)
	srcs[1].Columns = map[string]string{"town": "place"}
	_, err := extent.Drain(NewUnion(srcs, byTime, "w", nil))
	requireRequest(t, err, "not mapped by eu")

	srcs = unionSources(
		exttest.Chunks(usSchema, 1, []any{1, "nyc", 3.5}),
		exttest.Chunks(euSchema, 1, []any{0, "oslo", 1}),
	)
	srcs[1].Columns["extra"] = "temp"
	require.Panics(t, func() { extent.Drain(NewUnion(srcs, byTime, "w", nil)) })
}

var (
	baseSchema = extent.MustSchema("base",
		extent.Column{Name: "id", Kind: extent.Int64},
		extent.Column{Name: "v", Kind: extent.Bytes},
	)
	changeSchema = extent.MustSchema("changes",
		extent.Column{Name: "op", Kind: extent.Byte},
		extent.Column{Name: "v", Kind: extent.Bytes},
		extent.Column{Name: "id", Kind: extent.Int32},
	)
	upsert = UpdateSpec{KindColumn: "op", Key: []string{"id"}}
)

func update(t *testing.T, base [][]any, changes [][]any) [][]any {
	src := exttest.Source(baseSchema, exttest.Chunks(baseSchema, 2, base...)...)
	chg := exttest.Source(changeSchema, exttest.Chunks(changeSchema, 2, changes...)...)
	rows, _ := exttest.Collect(t, NewSortedUpdate(src, chg, upsert, nil))
	return rows
}

func TestSortedUpdate(t *testing.T) {
	rows := update(t,
		[][]any{{1, "a"}, {3, "c"}},
		[][]any{{2, "a2", 1}, {1, "b", 2}, {3, "", 4}},
	)
	require.Equal(t, [][]any{{1, "a2"}, {2, "b"}, {3, "c"}}, rows)
}

func TestSortedUpdateKinds(t *testing.T) {
	base := [][]any{{1, "a"}, {2, "b"}, {3, "c"}, {5, "e"}}
	rows := update(t, base, [][]any{
		{3, "", 1},   // delete 1
		{1, "bb", 2}, // insert a duplicate of 2
		{2, "cc", 3}, // replace 3
		{2, "dd", 4}, // replace of a missing key inserts
		{3, "", 4},   // delete of a missing key is a no-op
		{1, "f", 6},  // insert past the end of the base
		{2, "g", 7},  // replace past the end of the base
		{3, "", 8},   // delete past the end of the base
	})
	require.Equal(t, [][]any{
		{2, "bb"},
		{2, "b"},
		{3, "cc"},
		{4, "dd"},
		{5, "e"},
		{6, "f"},
		{7, "g"},
	}, rows)
}

func TestSortedUpdateEmptyChanges(t *testing.T) {
	var base [][]any
	for i := 0; i < 10000; i++ {
		base = append(base, []any{i, "row"})
	}
	require.Equal(t, base, update(t, base, nil))
}

func TestSortedUpdateMissingBase(t *testing.T) {
	chg := exttest.Source(changeSchema, exttest.Rows(changeSchema, []any{1, "x", 5}))
	u := NewSortedUpdate(extent.NewSliceSource(nil), chg, upsert, nil)
	require.Equal(t, "changes(v bytes, id int32)", u.Schema().String())
	rows, _ := exttest.Collect(t, u)
	require.Equal(t, [][]any{{"x", 5}}, rows)
}

func TestSortedUpdateErrors(t *testing.T) {
	src := func() extent.Source { return exttest.Source(baseSchema, exttest.Rows(baseSchema, []any{1, "a"})) }
	chg := func(op int) extent.Source {
		return exttest.Source(changeSchema, exttest.Rows(changeSchema, []any{op, "x", 0}))
	}
	_, err := extent.Drain(NewSortedUpdate(src(), chg(9), upsert, nil))
	requireRequest(t, err, "invalid change kind 9")

	_, err = extent.Drain(NewSortedUpdate(src(), chg(1), UpdateSpec{KindColumn: "kind", Key: []string{"id"}}, nil))
	requireRequest(t, err, "change kind column")

	_, err = extent.Drain(NewSortedUpdate(src(), chg(1), UpdateSpec{KindColumn: "op", Key: []string{"nope"}}, nil))
	requireRequest(t, err, "key column")

	_, err = extent.Drain(NewSortedUpdate(src(), chg(1), UpdateSpec{KindColumn: "op"}, nil))
	requireRequest(t, err, "no key columns")
}
