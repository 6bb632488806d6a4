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
)

// Kind is the storage type of a column.
type Kind uint8

const (
	Invalid Kind = iota
	Bool
	Byte
	Int32
	Int64
	Double
	// Bytes is a variable-length byte string.
	Bytes
)

var kindNames = [...]string{
	Invalid: "invalid",
	Bool:    "bool",
	Byte:    "byte",
	Int32:   "int32",
	Int64:   "int64",
	Double:  "double",
	Bytes:   "bytes",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Integer returns whether values of kind k
// are stored as integers (this includes Bool).
func (k Kind) Integer() bool {
	return k >= Bool && k <= Int64
}

// Numeric returns whether values of kind k
// compare numerically.
func (k Kind) Numeric() bool {
	return k.Integer() || k == Double
}

// width is the approximate encoded
// size of one value of kind k
func (k Kind) width() int {
	switch k {
	case Bool, Byte:
		return 1
	case Int32:
		return 4
	case Int64, Double:
		return 8
	default:
		return 4 // length prefix of Bytes
	}
}

// ParseKind parses the name of a kind.
// "string" and "variable32" are accepted
// as aliases of "bytes".
func ParseKind(s string) (Kind, error) {
	switch s {
	case "string", "variable32":
		return Bytes, nil
	}
	for k := Bool; k <= Bytes; k++ {
		if kindNames[k] == s {
			return k, nil
		}
	}
	return Invalid, fmt.Errorf("unknown column type %q", s)
}

func (k Kind) MarshalText() ([]byte, error) {
	if k == Invalid || int(k) >= len(kindNames) {
		return nil, fmt.Errorf("cannot encode column type %d", k)
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}
