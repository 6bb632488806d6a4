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
)

// SchemaBuilder assembles an output schema
// one column at a time.
type SchemaBuilder struct {
	name  string
	cols  []extent.Column
	index map[string]int
}

// NewSchemaBuilder returns an empty builder
// for a schema called name.
func NewSchemaBuilder(name string) *SchemaBuilder {
	return &SchemaBuilder{name: name, index: make(map[string]int)}
}

// Add appends c and returns its position.
// Adding the same name twice is a request error.
func (b *SchemaBuilder) Add(c extent.Column) (int, error) {
	if _, ok := b.index[c.Name]; ok {
		return -1, reqerr.Requestf("duplicate output column %q", c.Name)
	}
	b.index[c.Name] = len(b.cols)
	b.cols = append(b.cols, c)
	return len(b.cols) - 1, nil
}

// AddRenamed appends the column from of src under
// the name to and returns its position.
func (b *SchemaBuilder) AddRenamed(src *extent.Schema, from, to string) (int, error) {
	c, ok := src.Lookup(from)
	if !ok {
		return -1, reqerr.Requestf("invalid extraction: no column %q in %s", from, src.Name())
	}
	c.Name = to
	return b.Add(c)
}

// Merge adds c unless a column of the same name
// is already present, in which case both must
// have the same kind and nullability.
func (b *SchemaBuilder) Merge(c extent.Column) int {
	if i, ok := b.index[c.Name]; ok {
		if b.cols[i] != c {
			panic(reqerr.AssertionFailedf("output column %q: %s (nullable=%v) conflicts with %s (nullable=%v)",
				c.Name, c.Kind, c.Nullable, b.cols[i].Kind, b.cols[i].Nullable))
		}
		return i
	}
	i, _ := b.Add(c)
	return i
}

// Len returns the number of columns so far.
func (b *SchemaBuilder) Len() int { return len(b.cols) }

// Build returns the finished schema.
func (b *SchemaBuilder) Build() (*extent.Schema, error) {
	if len(b.cols) == 0 {
		return nil, reqerr.Requestf("output %q has no columns", b.name)
	}
	return extent.NewSchema(b.name, b.cols)
}
