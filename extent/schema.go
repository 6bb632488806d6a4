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
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
)

// Column describes one column of a Schema.
type Column struct {
	Name     string `json:"name"`
	Kind     Kind   `json:"type"`
	Nullable bool   `json:"nullable,omitempty"`
}

// Schema is an immutable, named, ordered
// list of uniquely named columns.
type Schema struct {
	name  string
	cols  []Column
	index map[string]int
}

// NewSchema constructs a Schema.
// Column names must be non-empty and unique.
func NewSchema(name string, cols []Column) (*Schema, error) {
	s := &Schema{
		name:  name,
		cols:  slices.Clone(cols),
		index: make(map[string]int, len(cols)),
	}
	for i := range s.cols {
		c := &s.cols[i]
		if c.Name == "" {
			return nil, fmt.Errorf("schema %q: column %d has no name", name, i)
		}
		if c.Kind == Invalid || c.Kind > Bytes {
			return nil, fmt.Errorf("schema %q: column %q has invalid type", name, c.Name)
		}
		if _, dup := s.index[c.Name]; dup {
			return nil, fmt.Errorf("schema %q: duplicate column %q", name, c.Name)
		}
		s.index[c.Name] = i
	}
	return s, nil
}

// MustSchema is like NewSchema, but
// panics on error.
func MustSchema(name string, cols ...Column) *Schema {
	s, err := NewSchema(name, cols)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the name of the schema.
func (s *Schema) Name() string { return s.name }

// Len returns the number of columns.
func (s *Schema) Len() int { return len(s.cols) }

// Column returns the i'th column.
func (s *Schema) Column(i int) Column { return s.cols[i] }

// Columns returns a copy of the column list.
func (s *Schema) Columns() []Column { return slices.Clone(s.cols) }

// Index returns the position of the named
// column, or -1 if there is no such column.
func (s *Schema) Index(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

// Lookup returns the named column.
func (s *Schema) Lookup(name string) (Column, bool) {
	i, ok := s.index[name]
	if !ok {
		return Column{}, false
	}
	return s.cols[i], true
}

// Equal returns whether s and o have the
// same columns in the same order. The schema
// names are not compared.
func (s *Schema) Equal(o *Schema) bool {
	if s == o {
		return true
	}
	if s == nil || o == nil {
		return false
	}
	return slices.Equal(s.cols, o.cols)
}

// WithName returns a copy of s named name.
func (s *Schema) WithName(name string) *Schema {
	return &Schema{name: name, cols: s.cols, index: s.index}
}

// Without returns a schema named name with
// every column of s except the ones listed.
func (s *Schema) Without(name string, drop ...string) *Schema {
	cols := make([]Column, 0, len(s.cols))
	for _, c := range s.cols {
		if !slices.Contains(drop, c.Name) {
			cols = append(cols, c)
		}
	}
	out, err := NewSchema(name, cols)
	if err != nil {
		// a subset of a valid schema is valid
		panic(err)
	}
	return out
}

func (s *Schema) String() string {
	var b strings.Builder
	b.WriteString(s.name)
	b.WriteByte('(')
	for i, c := range s.cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.Name)
		b.WriteByte(' ')
		b.WriteString(c.Kind.String())
		if c.Nullable {
			b.WriteString(" null")
		}
	}
	b.WriteByte(')')
	return b.String()
}

type jsonSchema struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

func (s *Schema) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonSchema{Name: s.name, Columns: s.cols})
}

func (s *Schema) UnmarshalJSON(b []byte) error {
	var js jsonSchema
	if err := json.Unmarshal(b, &js); err != nil {
		return err
	}
	ns, err := NewSchema(js.Name, js.Columns)
	if err != nil {
		return err
	}
	*s = *ns
	return nil
}
