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

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/SnellerInc/tabular/extent"
	"github.com/SnellerInc/tabular/internal/exttest"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	dir := t.TempDir()
	hint := filepath.Join(dir, "hint.yaml")
	require.NoError(t, os.WriteFile(hint, []byte(`
skipRecords: 1
fields:
  - {name: id, type: int64}
  - {name: city, nullable: true}
`), 0644))
	input := filepath.Join(dir, "in.csv")
	require.NoError(t, os.WriteFile(input, []byte("junk;junk\nid;city\n1;oslo\n# note\n2;\n"), 0644))
	output := filepath.Join(dir, "out")

	opts := &options{schema: hint, sep: ";", comment: "#", skip: 2, codec: "s2"}
	n, err := run(opts, input, output)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	f, err := os.Open(output)
	require.NoError(t, err)
	defer f.Close()
	r, err := extent.NewReader(f)
	require.NoError(t, err)
	require.Equal(t, "csv(id int64, city bytes null)", r.Schema().String())
	rows, _ := exttest.Collect(t, r)
	require.Equal(t, [][]any{{1, "oslo"}, {2, nil}}, rows)

	// the hint alone uses commas and skips one record
	_, err = run(&options{schema: hint, skip: -1, codec: "s2"}, input, output)
	require.ErrorContains(t, err, "record")
	_, err = os.Stat(output)
	require.True(t, os.IsNotExist(err))

	_, err = run(&options{schema: hint, sep: "ab", skip: -1, codec: "s2"}, input, output)
	require.ErrorContains(t, err, "single character")
	_, err = run(&options{schema: hint, skip: -1, codec: "lz4"}, input, output)
	require.Error(t, err)
}
