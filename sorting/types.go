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

package sorting

import (
	"fmt"

	"github.com/SnellerInc/tabular/extent"
)

// Direction encodes a sorting direction of column (SQL: ASC/DESC)
type Direction int

const (
	Ascending  Direction = 1  // Sort ascending
	Descending Direction = -1 // Sort descending
)

func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

func (d Direction) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Direction) UnmarshalText(b []byte) error {
	switch string(b) {
	case "asc", "ASC", "":
		*d = Ascending
	case "desc", "DESC":
		*d = Descending
	default:
		return fmt.Errorf("invalid sort direction %q", b)
	}
	return nil
}

// NullsOrder encodes order of null values (SQL: NULL FIRST/NULLS LAST)
type NullsOrder int

const (
	NullsFirst NullsOrder = iota // Null values goes first
	NullsLast                    // Null values goes last
)

func (n NullsOrder) String() string {
	if n == NullsLast {
		return "last"
	}
	return "first"
}

func (n NullsOrder) MarshalText() ([]byte, error) { return []byte(n.String()), nil }

func (n *NullsOrder) UnmarshalText(b []byte) error {
	switch string(b) {
	case "first", "FIRST", "":
		*n = NullsFirst
	case "last", "LAST":
		*n = NullsLast
	default:
		return fmt.Errorf("invalid nulls order %q", b)
	}
	return nil
}

// Column is one sort rule.
type Column struct {
	Name      string     `json:"column" validate:"required"`
	Direction Direction  `json:"direction,omitempty"`
	Nulls     NullsOrder `json:"nulls,omitempty"`
}

func (c Column) String() string {
	return fmt.Sprintf("%s %s nulls %s", c.Name, c.Direction, c.Nulls)
}

// Compare orders two values of the column
// according to the rule.
func (c *Column) Compare(a, b extent.Value) int {
	an, bn := a.IsNull(), b.IsNull()
	switch {
	case an && bn:
		return 0
	case an:
		if c.Nulls == NullsLast {
			return 1
		}
		return -1
	case bn:
		if c.Nulls == NullsLast {
			return -1
		}
		return 1
	}
	r := extent.Compare(a, b)
	if c.Direction == Descending {
		return -r
	}
	return r
}

// Comparator applies a list of rules to rows
// of extents sharing one schema.
type Comparator struct {
	cols  []int
	rules []Column
}

// NewComparator binds rules to the columns of s.
func NewComparator(s *extent.Schema, rules []Column) (*Comparator, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("no sort columns")
	}
	c := &Comparator{rules: rules, cols: make([]int, len(rules))}
	for i := range rules {
		j := s.Index(rules[i].Name)
		if j < 0 {
			return nil, fmt.Errorf("sort column %q not in %s", rules[i].Name, s.Name())
		}
		c.cols[i] = j
	}
	return c, nil
}

// Compare orders row ra of a against row rb of b.
func (c *Comparator) Compare(a *extent.Extent, ra int, b *extent.Extent, rb int) int {
	for i := range c.rules {
		col := c.cols[i]
		if r := c.rules[i].Compare(a.Value(ra, col), b.Value(rb, col)); r != 0 {
			return r
		}
	}
	return 0
}
