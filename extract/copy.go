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

package extract

import (
	"github.com/SnellerInc/tabular/extent"
	"github.com/SnellerInc/tabular/reqerr"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Rename maps an input column to an output column.
type Rename struct {
	From, To string
}

// SortedRenames flattens a from->to map
// into a list ordered by From.
func SortedRenames(m map[string]string) []Rename {
	out := make([]Rename, 0, len(m))
	for from, to := range m {
		out = append(out, Rename{From: from, To: to})
	}
	slices.SortFunc(out, func(a, b Rename) bool {
		return a.From < b.From
	})
	return out
}

// SortedKeys returns the keys of m in order.
func SortedKeys[V any](m map[string]V) []string {
	out := maps.Keys(m)
	slices.Sort(out)
	return out
}

// RenameCopier copies a fixed set of input
// columns into renamed output columns.
type RenameCopier struct {
	xs []Extractor
}

// NewRenameCopier binds renames against the schema
// of series (input names) and out (output names).
func NewRenameCopier(series *extent.Series, out *extent.Schema, renames []Rename) (*RenameCopier, error) {
	c := &RenameCopier{xs: make([]Extractor, 0, len(renames))}
	for _, r := range renames {
		f, err := series.Field(r.From)
		if err != nil {
			return nil, reqerr.Requestf("invalid extraction: %v", err)
		}
		into := out.Index(r.To)
		if into < 0 {
			return nil, reqerr.Requestf("invalid extraction: no output column %q", r.To)
		}
		oc := out.Column(into)
		if !compatible(f.Column(), oc) {
			return nil, reqerr.Requestf("cannot copy %s column %q into %s column %q",
				f.Kind(), r.From, oc.Kind, r.To)
		}
		c.xs = append(c.xs, FromField(f, into))
	}
	return c, nil
}

// Copy sets the renamed columns of the
// last row of b from the current input row.
func (c *RenameCopier) Copy(b *extent.Builder) { All(b, c.xs, nil) }

// RowCopier copies whole rows between schemas
// by matching column names. Every output
// column must exist in the input.
type RowCopier struct {
	src []int
}

// NewRowCopier matches the columns of dst against src.
func NewRowCopier(src, dst *extent.Schema) (*RowCopier, error) {
	c := &RowCopier{src: make([]int, dst.Len())}
	for i := range c.src {
		oc := dst.Column(i)
		j := src.Index(oc.Name)
		if j < 0 {
			return nil, reqerr.Requestf("column %q of %s missing from %s", oc.Name, dst.Name(), src.Name())
		}
		if !compatible(src.Column(j), oc) {
			return nil, reqerr.Requestf("column %q is %s in %s but %s in %s",
				oc.Name, src.Column(j).Kind, src.Name(), oc.Kind, dst.Name())
		}
		c.src[i] = j
	}
	return c, nil
}

// Append adds a copy of row of e to b.
func (c *RowCopier) Append(b *extent.Builder, e *extent.Extent, row int) {
	b.AddRow()
	for i, j := range c.src {
		b.Set(i, e.Value(row, j))
	}
}

// compatible returns whether values of in
// may be stored in out
func compatible(in, out extent.Column) bool {
	if in.Nullable && !out.Nullable {
		return false
	}
	if in.Kind == out.Kind {
		return true
	}
	return in.Kind.Numeric() && out.Kind.Numeric()
}
