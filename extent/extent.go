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

// Package extent implements the columnar batches
// ("extents") that flow between operators, along
// with their schemas, a row cursor, and the
// on-disk table file format.
package extent

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// TargetSize is the approximate encoded size
// at which operators flush an output extent.
const TargetSize = 96 * 1024

type column struct {
	kind Kind
	// nulls is nil for columns that
	// are not nullable
	nulls *roaring.Bitmap
	ints  []int64 // Bool, Byte, Int32, Int64
	flts  []float64
	offs  []uint32 // Bytes: value i is data[offs[i]:offs[i+1]]
	data  []byte
}

func newColumn(c Column) column {
	col := column{kind: c.Kind}
	if c.Nullable {
		col.nulls = roaring.New()
	}
	if c.Kind == Bytes {
		col.offs = []uint32{0}
	}
	return col
}

func (c *column) isNull(row int) bool {
	return c.nulls != nil && c.nulls.Contains(uint32(row))
}

func (c *column) value(row int) Value {
	if c.isNull(row) {
		return Null(c.kind)
	}
	switch c.kind {
	case Double:
		return Value{kind: Double, f: c.flts[row]}
	case Bytes:
		return Value{kind: Bytes, b: c.data[c.offs[row]:c.offs[row+1]:c.offs[row+1]]}
	default:
		return Value{kind: c.kind, i: c.ints[row]}
	}
}

// Extent is an immutable batch of rows
// sharing one Schema. Extents are
// constructed with a Builder.
type Extent struct {
	schema *Schema
	rows   int
	size   int
	cols   []column
}

// Schema returns the schema of the extent.
func (e *Extent) Schema() *Schema { return e.schema }

// Rows returns the number of rows.
func (e *Extent) Rows() int { return e.rows }

// Size returns the approximate encoded size
// of the extent in bytes.
func (e *Extent) Size() int { return e.size }

// IsNull returns whether the value at (row, col) is null.
func (e *Extent) IsNull(row, col int) bool { return e.cols[col].isNull(row) }

// Value returns the value at (row, col).
func (e *Extent) Value(row, col int) Value { return e.cols[col].value(row) }

// Row returns every value of one row.
func (e *Extent) Row(row int) []Value {
	out := make([]Value, len(e.cols))
	for i := range e.cols {
		out[i] = e.cols[i].value(row)
	}
	return out
}
