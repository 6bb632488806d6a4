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

// Package xsv implements parsing CSV (RFC 4180)
// and TSV (tab separated values) files into extents.
package xsv

import (
	"io"

	"github.com/SnellerInc/tabular/extent"
	"github.com/cockroachdb/errors"
)

// Converter is an extent.Source that converts
// each record of a RowChopper to a row using
// a Hint.
type Converter struct {
	ch     RowChopper
	hint   *Hint
	schema *extent.Schema
	cols   []int // output column of each hinted field, or -1
	out    *extent.Builder
	record int
	done   bool
}

// NewConverter returns a Converter of the records
// of ch into rows of a schema called name.
func NewConverter(ch RowChopper, hint *Hint, name string) (*Converter, error) {
	// cannot convert without hints
	if hint == nil || len(hint.Fields) == 0 {
		return nil, ErrNoHints
	}
	schema, err := hint.Schema(name)
	if err != nil {
		return nil, err
	}
	c := &Converter{
		ch:     ch,
		hint:   hint,
		schema: schema,
		cols:   make([]int, len(hint.Fields)),
		out:    extent.NewBuilder(schema),
	}
	col := 0
	for i := range hint.Fields {
		if hint.Fields[i].Type == TypeIgnore {
			c.cols[i] = -1
			continue
		}
		c.cols[i] = col
		col++
	}
	return c, nil
}

// Schema implements extent.Typed.
func (c *Converter) Schema() *extent.Schema { return c.schema }

// Records returns the number of records converted so far.
func (c *Converter) Records() int { return c.record }

// Next implements extent.Source.
func (c *Converter) Next() (*extent.Extent, error) {
	for !c.done {
		fields, err := c.ch.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return nil, err
			}
			c.done = true
			break
		}
		c.record++
		if err := c.convert(fields); err != nil {
			return nil, err
		}
		if c.out.Full() {
			return c.out.Build(), nil
		}
	}
	if c.out.Rows() > 0 {
		return c.out.Build(), nil
	}
	return nil, io.EOF
}

func (c *Converter) convert(fields []string) error {
	c.out.AddRow()
	for i := range c.hint.Fields {
		col := c.cols[i]
		if col < 0 {
			continue
		}
		field := &c.hint.Fields[i]
		text := ""
		if i < len(fields) {
			text = fields[i]
		}
		if text == "" {
			text = field.Default
		}
		if c.hint.isNull(field, text) {
			continue // new rows start out null
		}
		v, err := field.parse(text)
		if err != nil {
			return errors.Wrapf(err, "record %d (line %d), field %q", c.record, c.ch.Line(), field.Name)
		}
		c.out.Set(col, v)
	}
	return nil
}
