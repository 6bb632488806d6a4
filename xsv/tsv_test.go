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

package xsv

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTSVChopper(t *testing.T) {
	data := "skip\tme\n" +
		"a\tb\\tc\tlast\n" +
		"\n" +
		"; comment\n" +
		"esc\\\\aped\tnew\\nline\tcr\\r\\x\n"
	ch := NewTSVChopper(strings.NewReader(data), ';', 1)
	var got [][]string
	var lines []int
	for {
		fields, err := ch.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, append([]string(nil), fields...))
		lines = append(lines, ch.Line())
	}
	require.Equal(t, [][]string{
		{"a", "b\tc", "last"},
		{"esc\\aped", "new\nline", "cr\r\\x"},
	}, got)
	require.Equal(t, []int{2, 5}, lines)
}

func TestCSVChopperLines(t *testing.T) {
	data := "a,b\n# note\n1,\"two\nlines\"\n3,x\n"
	ch := NewCSVChopper(strings.NewReader(data), 0, '#', 1)
	var lines []int
	for {
		_, err := ch.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		lines = append(lines, ch.Line())
	}
	require.Equal(t, []int{3, 5}, lines)
}

func TestConvertTSV(t *testing.T) {
	h := mustHint(t, `
separator: "\\t"
nullValues: ["-"]
fields:
  - {name: host}
  - {name: bytes, type: int64, nullable: true}
  - {name: up, type: bool}
`)
	rows := convert(t, "web-1\t1024\ttrue\nweb-2\t-\tf\nweb\\t3\t\t1\n", h)
	require.Equal(t, [][]any{
		{"web-1", 1024, true},
		{"web-2", nil, false},
		{"web\t3", nil, true},
	}, rows)
}

func FuzzTSV(f *testing.F) {
	f.Add("2022-06-01 21:04:04\t1143993974\tPostGresClient\t\t0000:0000:0000:0000:0000:0000:442f:f676")
	f.Fuzz(func(t *testing.T, input string) {
		h := mustHint(t, `{separator: "\\t", fields: [{name: a}, {name: b, type: int64, nullable: true}, {name: c}]}`)
		c, err := NewConverter(h.Chopper(strings.NewReader(input)), h, "t")
		if err != nil {
			t.Fatal(err)
		}
		for {
			if _, err := c.Next(); err != nil {
				break
			}
		}
	})
}
