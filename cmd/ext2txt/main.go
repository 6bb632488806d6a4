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

// Command ext2txt prints table files as
// aligned text.
//
// Usage:
//
//	ext2txt [-n rows] [-schema] [-color] file...
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/SnellerInc/tabular/extent"
	"github.com/fatih/color"
)

var (
	dashn      int
	dashschema bool
	dashcolor  bool
)

func init() {
	flag.IntVar(&dashn, "n", 0, "print at most this many rows per file (0 means all)")
	flag.BoolVar(&dashschema, "schema", false, "only print the schema")
	flag.BoolVar(&dashcolor, "color", false, "force colored output")
}

func exitf(f string, args ...any) {
	fmt.Fprintf(os.Stderr, f, args...)
	os.Exit(1)
}

func main() {
	flag.Parse()
	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: ext2txt [-n rows] [-schema] file...")
		flag.PrintDefaults()
		os.Exit(2)
	}
	if dashcolor {
		color.NoColor = false
	}
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()
	for _, path := range flag.Args() {
		if err := dump(out, path); err != nil {
			out.Flush()
			exitf("ext2txt: %s: %s\n", path, err)
		}
	}
}

func dump(w io.Writer, path string) error {
	var in io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	r, err := extent.NewReader(in)
	if err != nil {
		return err
	}
	if dashschema {
		_, err := fmt.Fprintf(w, "%s codec=%s\n", r.Schema(), r.Codec())
		return err
	}
	_, err = render(w, r, r.Schema(), dashn)
	return err
}

var (
	headerColor = color.New(color.Bold, color.Underline)
	nullColor   = color.New(color.Faint)
)

// render prints up to limit rows of src (all of
// them if limit <= 0) in aligned columns under a
// header line, and returns the number of rows
// printed.
func render(w io.Writer, src extent.Source, schema *extent.Schema, limit int) (int, error) {
	n := schema.Len()
	widths := make([]int, n)
	header := make([]string, n)
	for i := range header {
		header[i] = schema.Column(i).Name
		widths[i] = utf8.RuneCountInString(header[i])
	}
	var rows [][]string
	var nulls [][]bool
	err := extent.ForEach(src, func(e *extent.Extent) error {
		for r := 0; r < e.Rows() && (limit <= 0 || len(rows) < limit); r++ {
			row := make([]string, n)
			isNull := make([]bool, n)
			for c := range row {
				v := e.Value(r, c)
				if v.IsNull() {
					row[c], isNull[c] = "null", true
				} else {
					row[c] = strings.ReplaceAll(v.Text(), "\n", "\\n")
				}
				widths[c] = max(widths[c], utf8.RuneCountInString(row[c]))
			}
			rows = append(rows, row)
			nulls = append(nulls, isNull)
		}
		if limit > 0 && len(rows) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && err != io.EOF {
		return 0, err
	}
	line := func(cells []string, paint func(i int) *color.Color) error {
		var b strings.Builder
		for i, cell := range cells {
			if i > 0 {
				b.WriteString("  ")
			}
			pad := strings.Repeat(" ", widths[i]-utf8.RuneCountInString(cell))
			if c := paint(i); c != nil {
				cell = c.Sprint(cell)
			}
			if i < len(cells)-1 {
				cell += pad
			}
			b.WriteString(cell)
		}
		b.WriteByte('\n')
		_, err := io.WriteString(w, b.String())
		return err
	}
	if err := line(header, func(int) *color.Color { return headerColor }); err != nil {
		return 0, err
	}
	for j, row := range rows {
		err := line(row, func(i int) *color.Color {
			if nulls[j][i] {
				return nullColor
			}
			return nil
		})
		if err != nil {
			return 0, err
		}
	}
	return len(rows), nil
}
