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
	"github.com/SnellerInc/tabular/reqerr"
)

// Builder accumulates rows for a new Extent.
//
// Rows are added with AddRow and then filled in
// with Set and SetNull. A freshly added row holds
// null in every nullable column and the zero
// value in every other column.
type Builder struct {
	schema *Schema
	cols   []column
	rows   int
	size   int
}

// NewBuilder returns an empty Builder for schema s.
func NewBuilder(s *Schema) *Builder {
	b := &Builder{schema: s}
	b.reset()
	return b
}

func (b *Builder) reset() {
	b.cols = make([]column, b.schema.Len())
	for i := range b.cols {
		b.cols[i] = newColumn(b.schema.Column(i))
	}
	b.rows = 0
	b.size = 0
}

// Schema returns the schema of the extents being built.
func (b *Builder) Schema() *Schema { return b.schema }

// Rows returns the number of rows added so far.
func (b *Builder) Rows() int { return b.rows }

// Size returns the approximate encoded size
// of the rows added so far.
func (b *Builder) Size() int { return b.size }

// Full returns whether the builder has grown
// past TargetSize and should be flushed.
func (b *Builder) Full() bool { return b.size > TargetSize }

// AddRow appends a new row.
func (b *Builder) AddRow() {
	row := b.rows
	for i := range b.cols {
		c := &b.cols[i]
		if c.nulls != nil {
			c.nulls.Add(uint32(row))
		}
		switch c.kind {
		case Double:
			c.flts = append(c.flts, 0)
		case Bytes:
			c.offs = append(c.offs, uint32(len(c.data)))
		default:
			c.ints = append(c.ints, 0)
		}
		b.size += c.kind.width()
	}
	b.rows++
}

// Set stores v in column col of the last row.
// Numeric values are converted to the kind of
// the column. Setting a null value is the same
// as calling SetNull.
func (b *Builder) Set(col int, v Value) {
	if v.null {
		b.SetNull(col)
		return
	}
	c := &b.cols[col]
	row := b.rows - 1
	if c.kind == Bytes {
		if v.kind != Bytes {
			panic(reqerr.AssertionFailedf("cannot store %s in bytes column %q",
				v.kind, b.schema.Column(col).Name))
		}
		if c.offs[row+1] != c.offs[row] {
			panic(reqerr.AssertionFailedf("column %q already set", b.schema.Column(col).Name))
		}
		c.data = append(c.data, v.b...)
		c.offs[row+1] = uint32(len(c.data))
		b.size += len(v.b)
	} else {
		if !v.kind.Numeric() {
			panic(reqerr.AssertionFailedf("cannot store %s in %s column %q",
				v.kind, c.kind, b.schema.Column(col).Name))
		}
		switch c.kind {
		case Double:
			c.flts[row] = v.Double()
		case Bool:
			if v.Int64() != 0 {
				c.ints[row] = 1
			} else {
				c.ints[row] = 0
			}
		case Byte:
			c.ints[row] = int64(byte(v.Int64()))
		case Int32:
			c.ints[row] = int64(int32(v.Int64()))
		default:
			c.ints[row] = v.Int64()
		}
	}
	if c.nulls != nil {
		c.nulls.Remove(uint32(row))
	}
}

// SetNull marks column col of the last row as null.
func (b *Builder) SetNull(col int) {
	c := &b.cols[col]
	if c.nulls == nil {
		panic(reqerr.AssertionFailedf("column %q is not nullable", b.schema.Column(col).Name))
	}
	c.nulls.Add(uint32(b.rows - 1))
}

// AppendRow appends a copy of row of e.
// e must have the same column kinds as the builder.
func (b *Builder) AppendRow(e *Extent, row int) {
	b.AddRow()
	for i := range b.cols {
		b.Set(i, e.cols[i].value(row))
	}
}

// Build returns the accumulated rows as an
// Extent and resets the builder.
func (b *Builder) Build() *Extent {
	for i := range b.cols {
		if nb := b.cols[i].nulls; nb != nil {
			nb.RunOptimize()
		}
	}
	e := &Extent{
		schema: b.schema,
		rows:   b.rows,
		size:   b.size,
		cols:   b.cols,
	}
	b.reset()
	return e
}

// BuildRows constructs a single extent from
// a list of rows. Each row must have one value
// per column of s.
func BuildRows(s *Schema, rows ...[]Value) *Extent {
	b := NewBuilder(s)
	for _, r := range rows {
		if len(r) != s.Len() {
			panic(reqerr.AssertionFailedf("row of %d values for %s", len(r), s))
		}
		b.AddRow()
		for i, v := range r {
			b.Set(i, v)
		}
	}
	return b.Build()
}
