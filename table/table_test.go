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

package table

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/SnellerInc/tabular/compr"
	"github.com/SnellerInc/tabular/extent"
	"github.com/SnellerInc/tabular/internal/exttest"
	"github.com/SnellerInc/tabular/reqerr"
	"github.com/stretchr/testify/require"
)

var schema = extent.MustSchema("t",
	extent.Column{Name: "id", Kind: extent.Int64},
	extent.Column{Name: "name", Kind: extent.Bytes, Nullable: true},
)

func open(t *testing.T, dir string) *Store {
	t.Helper()
	codec, err := compr.Compression("zstd")
	require.NoError(t, err)
	s, err := Open(dir, codec, nil)
	require.NoError(t, err)
	return s
}

func TestValidateName(t *testing.T) {
	for _, ok := range []string{"a", "orders_2023", "x.y", "..a", strings.Repeat("n", 199), "ünïcode"} {
		require.NoError(t, ValidateName(ok), ok)
	}
	for _, bad := range []string{"", ".", "..", "a/b", "/", strings.Repeat("n", 200), strings.Repeat("é", 100)} {
		err := ValidateName(bad)
		it, ok := reqerr.AsInvalidTable(err)
		require.True(t, ok, "%q: %v", bad, err)
		require.Equal(t, bad, it.Table)
	}
}

func TestMatchPattern(t *testing.T) {
	run := []struct {
		text, pattern string
		match         bool
	}{
		{"orders", "", true},
		{"orders", "%", true},
		{"orders", "orders", true},
		{"orders", "order", false},
		{"orders", "ord%", true},
		{"orders", "%ers", true},
		{"orders", "o_ders", true},
		{"orders", "o_ers", false},
		{"a.b", "a_b", true},
		{"axb", "a.b", false},
		{"line\nbreak", "line%", true},
	}
	for _, r := range run {
		require.Equal(t, r.match, matchPattern(r.text, r.pattern), "%q LIKE %q", r.text, r.pattern)
	}
}

func TestStore(t *testing.T) {
	dir := t.TempDir()
	s := open(t, dir)

	src := exttest.Source(schema,
		exttest.Rows(schema, []any{1, "a"}, []any{2, nil}),
		exttest.Rows(schema, []any{3, "c"}),
	)
	info, err := s.Write("orders", src)
	require.NoError(t, err)
	require.Equal(t, "orders", info.Name)
	require.Equal(t, "zstd", info.Codec)
	require.Equal(t, "orders(id int64, name bytes null)", info.Schema.String())
	require.True(t, s.Has("orders"))

	tbl, err := s.Open("orders")
	require.NoError(t, err)
	rows, _ := exttest.Collect(t, tbl)
	require.NoError(t, tbl.Close())
	require.Equal(t, [][]any{{1, "a"}, {2, nil}, {3, "c"}}, rows)

	_, err = s.Write("empty", exttest.Source(schema))
	require.NoError(t, err)
	_, err = s.Write("other", exttest.Source(schema, exttest.Rows(schema, []any{9, "z"})))
	require.NoError(t, err)

	var names []string
	for _, i := range s.List("o%") {
		names = append(names, i.Name)
	}
	require.Equal(t, []string{"orders", "other"}, names)
	require.Len(t, s.List(""), 3)

	_, err = s.Open("missing")
	_, ok := reqerr.AsInvalidTable(err)
	require.True(t, ok)

	// replacing a table is atomic and leaves
	// no temporary files behind
	_, err = s.Write("orders", exttest.Source(schema, exttest.Rows(schema, []any{7, "q"})))
	require.NoError(t, err)
	tbl, err = s.Open("orders")
	require.NoError(t, err)
	rows, _ = exttest.Collect(t, tbl)
	tbl.Close()
	require.Equal(t, [][]any{{7, "q"}}, rows)
	tmps, err := filepath.Glob(filepath.Join(dir, tempPrefix+"*"))
	require.NoError(t, err)
	require.Empty(t, tmps)

	require.NoError(t, s.Close())

	// a new store finds the same tables
	// and removes stale temporary files
	stale := filepath.Join(dir, tempPrefix+"x.orders")
	require.NoError(t, os.WriteFile(stale, []byte("junk"), 0640))
	require.NoError(t, os.WriteFile(filepath.Join(dir, filePrefix+"broken"), []byte("junk"), 0640))
	s = open(t, dir)
	defer s.Close()
	require.Len(t, s.List(""), 3)
	require.False(t, s.Has("broken"))
	_, err = os.Stat(stale)
	require.True(t, os.IsNotExist(err))
}

func TestStoreAbort(t *testing.T) {
	dir := t.TempDir()
	s := open(t, dir)
	defer s.Close()

	out, err := s.Create("t", schema)
	require.NoError(t, err)
	require.NoError(t, out.Write(exttest.Rows(schema, []any{1, "a"})))
	out.Abort()
	require.False(t, s.Has("t"))
	ents, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, ents, 1) // the lock file

	_, err = s.Create("a/b", schema)
	_, ok := reqerr.AsInvalidTable(err)
	require.True(t, ok)

	// a source with no schema and no extents
	_, err = s.Write("t", extent.Concat())
	_, ok = reqerr.AsRequest(err)
	require.True(t, ok)
}

func TestStoreAdopt(t *testing.T) {
	dir := t.TempDir()
	s := open(t, dir)
	defer s.Close()

	path := s.TempPath("imported")
	f, err := os.Create(path)
	require.NoError(t, err)
	none, err := compr.Compression("none")
	require.NoError(t, err)
	w, err := extent.NewWriter(f, schema, none)
	require.NoError(t, err)
	require.NoError(t, w.Write(exttest.Rows(schema, []any{5, "e"})))
	require.NoError(t, f.Close())

	info, err := s.Adopt("imported", path)
	require.NoError(t, err)
	require.Equal(t, "none", info.Codec)
	require.True(t, s.Has("imported"))

	bad := s.TempPath("junk")
	require.NoError(t, os.WriteFile(bad, []byte("not a table"), 0640))
	_, err = s.Adopt("junk", bad)
	require.ErrorIs(t, err, extent.ErrCorrupt)
	require.False(t, s.Has("junk"))
}

func TestLock(t *testing.T) {
	dir := t.TempDir()
	s := open(t, dir)
	codec, _ := compr.Compression("none")
	_, err := Open(dir, codec, nil)
	require.ErrorContains(t, err, "in use")
	require.NoError(t, s.Close())
	s2, err := Open(dir, codec, nil)
	require.NoError(t, err)
	require.NoError(t, s2.Close())
}
