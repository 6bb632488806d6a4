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
	"io"

	"github.com/SnellerInc/tabular/extent"
	"github.com/SnellerInc/tabular/reqerr"
	"golang.org/x/exp/slices"
)

// Project is an operator that keeps a subset
// of the input columns. Kept columns appear
// in input order.
type Project struct {
	src  extent.Source
	keep []string
	name string

	schema *extent.Schema
	series extent.Series
	copier *RowCopier
	out    *extent.Builder
	done   bool
}

// NewProject returns a Project over src keeping
// the listed columns; the output schema is
// called name.
func NewProject(src extent.Source, keep []string, name string) *Project {
	return &Project{src: src, keep: keep, name: name}
}

// Schema returns the output schema, or nil if the
// input schema is not known yet.
func (p *Project) Schema() *extent.Schema {
	if p.schema == nil {
		if in := extent.SchemaOf(p.src); in != nil {
			p.setup(in) // errors surface again from Next
		}
	}
	return p.schema
}

func (p *Project) setup(in *extent.Schema) error {
	if len(p.keep) == 0 {
		return reqerr.Requestf("project: no columns to keep")
	}
	for _, k := range p.keep {
		if in.Index(k) < 0 {
			return reqerr.Requestf("project: no column %q in %s", k, in.Name())
		}
	}
	var cols []extent.Column
	for _, c := range in.Columns() {
		if slices.Contains(p.keep, c.Name) {
			cols = append(cols, c)
		}
	}
	schema, err := extent.NewSchema(p.name, cols)
	if err != nil {
		return err
	}
	copier, err := NewRowCopier(in, schema)
	if err != nil {
		return err
	}
	p.schema, p.copier = schema, copier
	p.out = extent.NewBuilder(schema)
	return nil
}

// Next implements extent.Source.
func (p *Project) Next() (*extent.Extent, error) {
	for !p.done {
		e, err := p.src.Next()
		if err == io.EOF {
			p.done = true
			break
		}
		if err != nil {
			return nil, err
		}
		if p.copier == nil {
			if err := p.setup(e.Schema()); err != nil {
				return nil, err
			}
		}
		p.series.SetExtent(e)
		for ; p.series.More(); p.series.Next() {
			p.copier.Append(p.out, e, p.series.Row())
		}
		if p.out.Full() {
			return p.out.Build(), nil
		}
	}
	if p.out != nil && p.out.Rows() > 0 {
		return p.out.Build(), nil
	}
	return nil, io.EOF
}
