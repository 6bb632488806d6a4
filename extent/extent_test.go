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

package extent

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"testing"

	"github.com/SnellerInc/tabular/compr"
	"github.com/SnellerInc/tabular/reqerr"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

var testSchema = MustSchema("people",
	Column{Name: "id", Kind: Int64},
	Column{Name: "name", Kind: Bytes, Nullable: true},
	Column{Name: "age", Kind: Int32, Nullable: true},
	Column{Name: "score", Kind: Double},
	Column{Name: "admin", Kind: Bool},
	Column{Name: "flags", Kind: Byte},
)

func testRows() *Extent {
	return BuildRows(testSchema,
		[]Value{NewInt64(1), NewString("ann"), NewInt32(31), NewDouble(1.5), NewBool(true), NewByte(3)},
		[]Value{NewInt64(2), Null(Bytes), Null(Int32), NewDouble(-2), NewBool(false), NewByte(0)},
		[]Value{NewInt64(3), NewString(""), NewInt32(-7), NewDouble(math.Inf(1)), NewBool(false), NewByte(255)},
	)
}

func TestSchema(t *testing.T) {
	_, err := NewSchema("x", []Column{{Name: "a", Kind: Int64}, {Name: "a", Kind: Bytes}})
	require.ErrorContains(t, err, "duplicate")
	_, err = NewSchema("x", []Column{{Name: "", Kind: Int64}})
	require.Error(t, err)
	_, err = NewSchema("x", []Column{{Name: "a"}})
	require.Error(t, err)

	require.Equal(t, 6, testSchema.Len())
	require.Equal(t, 2, testSchema.Index("age"))
	require.Equal(t, -1, testSchema.Index("missing"))
	c, ok := testSchema.Lookup("name")
	require.True(t, ok)
	require.True(t, c.Nullable)

	buf, err := json.Marshal(testSchema)
	require.NoError(t, err)
	var back Schema
	require.NoError(t, json.Unmarshal(buf, &back))
	require.True(t, back.Equal(testSchema))
	require.Equal(t, "people", back.Name())

	// names are not part of equality
	require.True(t, testSchema.WithName("other").Equal(testSchema))
	less := testSchema.Without("people2", "score", "flags")
	require.Equal(t, "people2(id int64, name bytes null, age int32 null, admin bool)", less.String())
	require.False(t, less.Equal(testSchema))
}

func TestParseKind(t *testing.T) {
	for _, name := range []string{"bool", "byte", "int32", "int64", "double", "bytes"} {
		k, err := ParseKind(name)
		require.NoError(t, err)
		require.Equal(t, name, k.String())
	}
	k, err := ParseKind("variable32")
	require.NoError(t, err)
	require.Equal(t, Bytes, k)
	_, err = ParseKind("fixed")
	require.Error(t, err)
}

func TestBuilderValues(t *testing.T) {
	e := testRows()
	require.Equal(t, 3, e.Rows())
	require.Equal(t, "ann", string(e.Value(0, 1).Bytes()))
	require.True(t, e.IsNull(1, 1))
	require.True(t, e.Value(1, 2).IsNull())
	require.False(t, e.IsNull(2, 1))
	require.Equal(t, "", string(e.Value(2, 1).Bytes()))
	require.Equal(t, int32(-7), e.Value(2, 2).Int32())
	require.Equal(t, byte(255), e.Value(2, 5).Byte())
	require.True(t, e.Value(0, 4).Bool())
	require.Equal(t, 3*(8+4+4+8+1+1)+3, e.Size())

	// a fresh builder row is null/zero
	b := NewBuilder(testSchema)
	b.AddRow()
	x := b.Build()
	require.True(t, x.IsNull(0, 1))
	require.Equal(t, int64(0), x.Value(0, 0).Int64())
	require.Zero(t, b.Rows())

	// numeric conversion on Set
	b.AddRow()
	b.Set(2, NewInt64(12))
	b.Set(3, NewInt32(4))
	x = b.Build()
	require.Equal(t, Int32, x.Value(0, 2).Kind())
	require.Equal(t, 4.0, x.Value(0, 3).Double())
}

func TestBuilderMisuse(t *testing.T) {
	b := NewBuilder(testSchema)
	b.AddRow()
	require.Panics(t, func() { b.SetNull(0) })
	require.Panics(t, func() { b.Set(1, NewInt64(3)) })
	require.Panics(t, func() { b.Set(0, NewString("x")) })
	defer func() {
		require.True(t, reqerr.IsAssertion(recover()))
	}()
	b.Set(1, NewString("a"))
	b.Set(1, NewString("b"))
}

func TestCompareHash(t *testing.T) {
	ordered := []Value{
		Null(Int64),
		NewDouble(math.Inf(-1)),
		NewInt32(-4),
		NewBool(false),
		NewByte(1),
		NewDouble(1.5),
		NewInt64(2),
		NewBytes(nil),
		NewString("a"),
		NewString("ab"),
		NewString("b"),
	}
	for i := range ordered {
		for j := range ordered {
			want := 0
			if i < j {
				want = -1
			} else if i > j {
				want = 1
			}
			require.Equal(t, want, Compare(ordered[i], ordered[j]), "%s vs %s", ordered[i], ordered[j])
		}
	}
	// equal values hash the same
	pairs := [][2]Value{
		{NewInt32(5), NewInt64(5)},
		{NewDouble(5), NewInt64(5)},
		{NewDouble(math.NaN()), NewDouble(-math.NaN())},
		{Null(Int64), Null(Bytes)},
		{NewString("x"), NewBytes([]byte("x"))},
	}
	for _, p := range pairs {
		require.True(t, Equal(p[0], p[1]))
		require.Equal(t, p[0].Hash(1942), p[1].Hash(1942))
	}
	require.NotEqual(t, NewInt64(5).Hash(1942), NewInt64(6).Hash(1942))
	require.NotEqual(t, NewInt64(5).Hash(1), NewInt64(5).Hash(2))

	// integers beyond 2^53 are not rounded
	// when compared with doubles
	big := NewInt64(1<<53 + 1)
	require.Equal(t, 1, Compare(big, NewDouble(1<<53)))
	require.Equal(t, -1, Compare(NewDouble(1<<53), big))
	require.Equal(t, -1, Compare(NewInt64(math.MaxInt64), NewDouble(1<<63)))
	require.Equal(t, 1, Compare(NewInt64(math.MinInt64), NewDouble(math.Inf(-1))))
	require.Equal(t, -1, Compare(NewInt64(-2), NewDouble(-1.5)))
	require.Equal(t, 1, Compare(NewInt64(-1), NewDouble(-1.5)))
	lowest := NewInt64(math.MinInt64)
	require.True(t, Equal(lowest, NewDouble(-1<<63)))
	require.Equal(t, lowest.Hash(7), NewDouble(-1<<63).Hash(7))
}

func TestParseText(t *testing.T) {
	for _, tc := range []struct {
		kind Kind
		text string
		ok   bool
	}{
		{Bool, "true", true},
		{Bool, "nope", false},
		{Byte, "255", true},
		{Byte, "256", false},
		{Int32, "-2147483648", true},
		{Int32, "2147483648", false},
		{Int64, "42", true},
		{Double, "2.5", true},
		{Double, "x", false},
		{Bytes, "anything", true},
	} {
		v, err := Parse(tc.kind, tc.text)
		if !tc.ok {
			require.Error(t, err, tc.text)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, tc.text, v.Text())
	}
}

func TestSeries(t *testing.T) {
	e := testRows()
	var s Series
	_, err := s.Field("id")
	require.Error(t, err)
	s.SetExtent(e)
	id, err := s.Field("id")
	require.NoError(t, err)
	name, err := s.Field("name")
	require.NoError(t, err)
	_, err = s.Field("nope")
	require.Error(t, err)

	var ids []int64
	var nulls int
	for ; s.More(); s.Next() {
		ids = append(ids, id.Value().Int64())
		if name.IsNull() {
			nulls++
		}
	}
	require.Equal(t, []int64{1, 2, 3}, ids)
	require.Equal(t, 1, nulls)
	require.Equal(t, "ann", string(name.At(e, 0).Bytes()))

	other := BuildRows(MustSchema("o", Column{Name: "id", Kind: Int64}), []Value{NewInt64(1)})
	require.Panics(t, func() { s.SetExtent(other) })
}

func TestShared(t *testing.T) {
	e := testRows()
	s := NewShared(e)
	s.Retain()
	require.Equal(t, 2, s.Refs())
	require.False(t, s.Release())
	require.Same(t, e, s.Extent())
	require.True(t, s.Release())
	require.Panics(t, func() { s.Extent() })
	require.Panics(t, func() { s.Retain() })
}

func TestCodecRoundTrip(t *testing.T) {
	for _, name := range compr.Names() {
		t.Run(name, func(t *testing.T) {
			codec, err := compr.Compression(name)
			require.NoError(t, err)
			var buf bytes.Buffer
			w, err := NewWriter(&buf, testSchema, codec)
			require.NoError(t, err)
			in := []*Extent{testRows(), NewBuilder(testSchema).Build(), testRows()}
			n, err := w.WriteAll(NewSliceSource(testSchema, in...))
			require.NoError(t, err)
			require.Equal(t, 3, n)
			require.Equal(t, int64(6), w.Rows())

			r, err := NewReader(bytes.NewReader(buf.Bytes()))
			require.NoError(t, err)
			require.Equal(t, name, r.Codec())
			require.True(t, r.Schema().Equal(testSchema))
			out, err := Drain(r)
			require.NoError(t, err)
			require.Len(t, out, 3)
			for i := range in {
				require.Equal(t, in[i].Rows(), out[i].Rows())
				require.Equal(t, in[i].Size(), out[i].Size())
				for row := 0; row < in[i].Rows(); row++ {
					require.Equal(t, in[i].Row(row), out[i].Row(row))
				}
			}
		})
	}
}

func TestCodecCorrupt(t *testing.T) {
	codec, err := compr.Compression("none")
	require.NoError(t, err)
	var buf bytes.Buffer
	w, err := NewWriter(&buf, testSchema, codec)
	require.NoError(t, err)
	require.NoError(t, w.Write(testRows()))
	require.Error(t, w.Write(BuildRows(MustSchema("x", Column{Name: "a", Kind: Bool}))))

	good := buf.Bytes()
	// flip one payload byte: the checksum must catch it
	bad := bytes.Clone(good)
	bad[len(bad)-40] ^= 0xff
	r, err := NewReader(bytes.NewReader(bad))
	require.NoError(t, err)
	_, err = r.Next()
	require.True(t, errors.Is(err, ErrCorrupt))

	// truncation
	r, err = NewReader(bytes.NewReader(good[:len(good)-1]))
	require.NoError(t, err)
	_, err = r.Next()
	require.True(t, errors.Is(err, ErrCorrupt))

	_, err = NewReader(bytes.NewReader([]byte("nope")))
	require.True(t, errors.Is(err, ErrCorrupt))

	r, err = NewReader(bytes.NewReader(good))
	require.NoError(t, err)
	_, err = r.Next()
	require.NoError(t, err)
	_, err = r.Next()
	require.Equal(t, io.EOF, err)
}

func TestConcat(t *testing.T) {
	a, b := testRows(), testRows()
	src := Concat(NewSliceSource(testSchema), NewSliceSource(testSchema, a), NewSliceSource(testSchema, b))
	require.Same(t, testSchema, SchemaOf(src))
	out, err := Drain(src)
	require.NoError(t, err)
	require.Equal(t, []*Extent{a, b}, out)
}
