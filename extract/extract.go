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

// Package extract implements the machinery shared by
// the operators for moving values from input rows
// (or from values captured earlier) into output rows:
// extractors, renaming copiers, row copiers and the
// construction of output schemas.
package extract

import (
	"fmt"

	"github.com/SnellerInc/tabular/extent"
	"github.com/SnellerInc/tabular/keyvec"
)

type origin uint8

const (
	fromField origin = iota
	fromValue
)

// Extractor writes one output column.
// It either reads a live input field at the
// current row of its series, or it reads a
// position of a stored value vector.
type Extractor struct {
	origin origin
	field  *extent.Field
	pos    int
	into   int
}

// FromField returns an Extractor copying
// field into output column into.
func FromField(field *extent.Field, into int) Extractor {
	return Extractor{origin: fromField, field: field, into: into}
}

// FromValue returns an Extractor copying
// position pos of a stored vector into
// output column into.
func FromValue(pos, into int) Extractor {
	return Extractor{origin: fromValue, pos: pos, into: into}
}

// Into returns the output column index.
func (x *Extractor) Into() int { return x.into }

// Extract sets the output column of the last
// row of b. stored is consulted only by
// extractors built with FromValue.
func (x *Extractor) Extract(b *extent.Builder, stored keyvec.Vec) {
	switch x.origin {
	case fromField:
		b.Set(x.into, x.field.Value())
	case fromValue:
		b.Set(x.into, stored[x.pos])
	}
}

func (x Extractor) String() string {
	if x.origin == fromField {
		return fmt.Sprintf("field(%s)->%d", x.field.Name(), x.into)
	}
	return fmt.Sprintf("value(%d)->%d", x.pos, x.into)
}

// All runs every extractor in xs.
func All(b *extent.Builder, xs []Extractor, stored keyvec.Vec) {
	for i := range xs {
		xs[i].Extract(b, stored)
	}
}
