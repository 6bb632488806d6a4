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

package keyvec

import (
	"testing"

	"github.com/SnellerInc/tabular/extent"
	"github.com/stretchr/testify/require"
)

func vec(vals ...any) Vec {
	out := make(Vec, len(vals))
	for i, v := range vals {
		switch v := v.(type) {
		case nil:
			out[i] = extent.Null(extent.Int64)
		case int:
			out[i] = extent.NewInt64(int64(v))
		case string:
			out[i] = extent.NewString(v)
		}
	}
	return out
}

func TestVecOrder(t *testing.T) {
	require.True(t, vec(1, "a").Equal(vec(1, "a")))
	require.False(t, vec(1, "a").Equal(vec(1, "b")))
	require.False(t, vec(1).Equal(vec(1, "a")))
	require.Equal(t, -1, vec(1, "b").Compare(vec(2, "a")))
	require.Equal(t, 1, vec(2, "a").Compare(vec(1, "z")))
	require.Equal(t, -1, vec(1).Compare(vec(1, "a")))
	require.Equal(t, -1, vec(nil, "z").Compare(vec(0, "a")))
	require.True(t, vec(1, "a").Less(vec(1, "b")))
	require.Equal(t, `(1, "a", null)`, vec(1, "a", nil).String())

	// hash depends on order and content
	require.Equal(t, vec(1, "a").Hash(), vec(1, "a").Hash())
	require.NotEqual(t, vec(1, "a").Hash(), vec("a", 1).Hash())
	require.NotEqual(t, vec(1, 2).Hash(), vec(2, 1).Hash())
}

func TestExtract(t *testing.T) {
	s := extent.MustSchema("t",
		extent.Column{Name: "a", Kind: extent.Int64},
		extent.Column{Name: "b", Kind: extent.Bytes})
	e := extent.BuildRows(s,
		[]extent.Value{extent.NewInt64(7), extent.NewString("x")},
		[]extent.Value{extent.NewInt64(8), extent.NewString("y")})
	var series extent.Series
	series.SetExtent(e)
	b, err := series.Field("b")
	require.NoError(t, err)
	a, err := series.Field("a")
	require.NoError(t, err)
	var got []Vec
	var buf Vec
	for ; series.More(); series.Next() {
		buf = Extract(buf, []*extent.Field{b, a})
		got = append(got, buf.Clone())
	}
	require.Equal(t, []Vec{vec("x", 7), vec("y", 8)}, got)
}

func TestMap(t *testing.T) {
	m := NewMap[int]()
	m.Append(vec(1, "a"), 10)
	m.Append(vec(1, "a"), 11)
	m.Append(vec(2, "a"), 20)
	require.Equal(t, []int{10, 11}, m.Lookup(vec(1, "a")))
	require.Nil(t, m.Lookup(vec(3)))
	require.Equal(t, 2, m.Keys())
	require.Equal(t, 3, m.Len())

	v, ok := m.Get(vec(1, "a"))
	require.True(t, ok)
	require.Equal(t, 11, v)

	m.Put(vec(1, "a"), 12)
	require.Equal(t, []int{12}, m.Lookup(vec(1, "a")))
	require.Equal(t, 2, m.Len())
	m.Put(vec(9), 90)
	require.Equal(t, 3, m.Keys())

	// numerically equal keys of different kinds collide
	k := Vec{extent.NewInt32(2), extent.NewString("a")}
	require.Equal(t, []int{20}, m.Lookup(k))
	_, ok = m.Get(vec(5))
	require.False(t, ok)

	// large integers only find doubles they equal
	m = NewMap[int]()
	m.Put(Vec{extent.NewDouble(1 << 53)}, 53)
	_, ok = m.Get(Vec{extent.NewInt64(1<<53 + 1)})
	require.False(t, ok)
	v, ok = m.Get(Vec{extent.NewInt64(1 << 53)})
	require.True(t, ok)
	require.Equal(t, 53, v)
}

// force every key into one bucket
func TestMapCollisions(t *testing.T) {
	m := NewMap[string]()
	for i := 0; i < 100; i++ {
		m.Append(vec(i), "v")
	}
	e := m.buckets
	m.buckets = map[uint64][]entry[string]{0: nil}
	for _, b := range e {
		m.buckets[0] = append(m.buckets[0], b...)
	}
	for i := 0; i < 100; i++ {
		require.Equal(t, []string{"v"}, m.find(0, vec(i)).vals)
	}
}
