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
	"io"
)

// Source is a pull-based stream of extents.
//
// Next returns the next extent, or io.EOF once
// the stream is exhausted. Every extent returned
// by one Source has the same schema.
type Source interface {
	Next() (*Extent, error)
}

// Typed is implemented by sources that know
// their output schema before the first extent.
// Schema may return nil if the schema is not
// (yet) known.
type Typed interface {
	Schema() *Schema
}

// SchemaOf returns the schema advertised by src, if any.
func SchemaOf(src Source) *Schema {
	if t, ok := src.(Typed); ok {
		return t.Schema()
	}
	return nil
}

// SliceSource is a Source over a fixed list of extents.
type SliceSource struct {
	schema  *Schema
	extents []*Extent
}

// NewSliceSource returns a Source yielding extents in order.
func NewSliceSource(schema *Schema, extents ...*Extent) *SliceSource {
	return &SliceSource{schema: schema, extents: extents}
}

func (s *SliceSource) Schema() *Schema { return s.schema }

func (s *SliceSource) Next() (*Extent, error) {
	if len(s.extents) == 0 {
		return nil, io.EOF
	}
	e := s.extents[0]
	s.extents = s.extents[1:]
	return e, nil
}

// ForEach calls fn for each extent of src.
func ForEach(src Source, fn func(e *Extent) error) error {
	for {
		e, err := src.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
}

// Drain reads every extent of src.
func Drain(src Source) ([]*Extent, error) {
	var out []*Extent
	err := ForEach(src, func(e *Extent) error {
		out = append(out, e)
		return nil
	})
	return out, err
}

type concat struct {
	srcs []Source
}

// Concat returns a Source yielding the extents
// of each of srcs in turn.
func Concat(srcs ...Source) Source {
	return &concat{srcs: srcs}
}

func (c *concat) Schema() *Schema {
	for _, s := range c.srcs {
		if sc := SchemaOf(s); sc != nil {
			return sc
		}
	}
	return nil
}

func (c *concat) Next() (*Extent, error) {
	for len(c.srcs) > 0 {
		e, err := c.srcs[0].Next()
		if err == io.EOF {
			c.srcs = c.srcs[1:]
			continue
		}
		return e, err
	}
	return nil, io.EOF
}
