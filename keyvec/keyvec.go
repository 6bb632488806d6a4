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

// Package keyvec implements composite keys
// (fixed-arity tuples of column values) and a
// hash multimap keyed by them.
package keyvec

import (
	"strings"

	"github.com/SnellerInc/tabular/extent"
)

// seed is folded in before the first component
const seed = 1942

// Vec is a composite key or value tuple.
type Vec []extent.Value

// Extract fills a Vec with the current
// values of fields, reusing dst.
func Extract(dst Vec, fields []*extent.Field) Vec {
	dst = dst[:0]
	for _, f := range fields {
		dst = append(dst, f.Value())
	}
	return dst
}

// Equal returns whether v and o are
// component-wise equal.
func (v Vec) Equal(o Vec) bool {
	if len(v) != len(o) {
		return false
	}
	for i := range v {
		if !extent.Equal(v[i], o[i]) {
			return false
		}
	}
	return true
}

// Compare orders vectors lexicographically.
// A shorter vector that is a prefix of a
// longer one sorts first.
func (v Vec) Compare(o Vec) int {
	for i := 0; i < len(v) && i < len(o); i++ {
		if c := extent.Compare(v[i], o[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(v) < len(o):
		return -1
	case len(v) > len(o):
		return 1
	}
	return 0
}

// Less returns whether v sorts before o.
func (v Vec) Less(o Vec) bool { return v.Compare(o) < 0 }

// Hash combines the hashes of the
// components in order.
func (v Vec) Hash() uint64 {
	h := uint64(seed)
	for i := range v {
		h = v[i].Hash(h)
	}
	return h
}

// Clone returns a deep copy of v.
func (v Vec) Clone() Vec {
	out := make(Vec, len(v))
	for i := range v {
		out[i] = v[i].Clone()
	}
	return out
}

func (v Vec) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i := range v {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(v[i].String())
	}
	b.WriteByte(')')
	return b.String()
}
