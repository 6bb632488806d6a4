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
	"fmt"

	"github.com/SnellerInc/tabular/reqerr"
)

// Series is a cursor over the rows of a
// sequence of extents that share one schema.
// The schema is fixed by the first extent
// given to SetExtent.
type Series struct {
	schema *Schema
	e      *Extent
	row    int
}

// SetExtent positions the cursor on
// the first row of e.
func (s *Series) SetExtent(e *Extent) {
	if s.schema == nil {
		s.schema = e.schema
	} else if !s.schema.Equal(e.schema) {
		panic(reqerr.AssertionFailedf("series of %s given extent of %s", s.schema, e.schema))
	}
	s.e = e
	s.row = 0
}

// SetSchema fixes the schema of the series
// before any extent has been seen.
func (s *Series) SetSchema(schema *Schema) {
	if s.schema != nil && !s.schema.Equal(schema) {
		panic(reqerr.AssertionFailedf("series of %s given %s", s.schema, schema))
	}
	s.schema = schema
}

// Clear drops the current extent.
func (s *Series) Clear() {
	s.e = nil
	s.row = 0
}

// Schema returns the schema of the series, or
// nil if no extent has been seen yet.
func (s *Series) Schema() *Schema { return s.schema }

// Extent returns the current extent, if any.
func (s *Series) Extent() *Extent { return s.e }

// HasExtent returns whether there is a current extent.
func (s *Series) HasExtent() bool { return s.e != nil }

// More returns whether the cursor is on a row.
func (s *Series) More() bool { return s.e != nil && s.row < s.e.rows }

// Next advances the cursor by one row.
func (s *Series) Next() { s.row++ }

// Row returns the position of the cursor
// within the current extent.
func (s *Series) Row() int { return s.row }

// Field returns an accessor for the named column.
// The schema of the series must be known.
func (s *Series) Field(name string) (*Field, error) {
	if s.schema == nil {
		return nil, fmt.Errorf("column %q: series has no schema yet", name)
	}
	i := s.schema.Index(name)
	if i < 0 {
		return nil, fmt.Errorf("no column %q in %s", name, s.schema.Name())
	}
	return &Field{s: s, col: i, meta: s.schema.Column(i)}, nil
}

// Field reads one column at the current
// row of a Series.
type Field struct {
	s    *Series
	col  int
	meta Column
}

// Name returns the column name.
func (f *Field) Name() string { return f.meta.Name }

// Kind returns the column kind.
func (f *Field) Kind() Kind { return f.meta.Kind }

// Column returns the column description.
func (f *Field) Column() Column { return f.meta }

// Index returns the column position in the schema.
func (f *Field) Index() int { return f.col }

// IsNull returns whether the current value is null.
func (f *Field) IsNull() bool { return f.s.e.cols[f.col].isNull(f.s.row) }

// Value returns the current value.
func (f *Field) Value() Value { return f.s.e.cols[f.col].value(f.s.row) }

// At returns the value at an arbitrary row of an
// extent with the same schema as the series.
func (f *Field) At(e *Extent, row int) Value { return e.cols[f.col].value(row) }
