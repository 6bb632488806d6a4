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
	"bytes"
	"cmp"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/dchest/siphash"
)

// Value is a single, possibly null, column value.
//
// Bytes values returned from an Extent alias
// the extent storage and must not be modified.
type Value struct {
	kind Kind
	null bool
	i    int64
	f    float64
	b    []byte
}

// Null returns the null value of kind k.
func Null(k Kind) Value { return Value{kind: k, null: true} }

func NewBool(v bool) Value {
	var i int64
	if v {
		i = 1
	}
	return Value{kind: Bool, i: i}
}

func NewByte(v byte) Value { return Value{kind: Byte, i: int64(v)} }

func NewInt32(v int32) Value { return Value{kind: Int32, i: int64(v)} }

func NewInt64(v int64) Value { return Value{kind: Int64, i: v} }

func NewDouble(v float64) Value { return Value{kind: Double, f: v} }

func NewBytes(v []byte) Value { return Value{kind: Bytes, b: v} }

func NewString(v string) Value { return Value{kind: Bytes, b: []byte(v)} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.null }

func (v Value) Bool() bool { return v.i != 0 }

func (v Value) Byte() byte { return byte(v.i) }

func (v Value) Int32() int32 { return int32(v.i) }

func (v Value) Bytes() []byte { return v.b }

// Int64 returns the value as an integer.
// Double values are truncated.
func (v Value) Int64() int64 {
	if v.kind == Double {
		return int64(v.f)
	}
	return v.i
}

// Double returns the value as a float.
func (v Value) Double() float64 {
	if v.kind == Double {
		return v.f
	}
	return float64(v.i)
}

// Clone returns a copy of v that does
// not alias any extent storage.
func (v Value) Clone() Value {
	if v.b != nil {
		v.b = bytes.Clone(v.b)
	}
	return v
}

// Text renders a non-null value as text;
// see also Parse.
func (v Value) Text() string {
	switch v.kind {
	case Bool:
		return strconv.FormatBool(v.i != 0)
	case Byte, Int32, Int64:
		return strconv.FormatInt(v.i, 10)
	case Double:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case Bytes:
		return string(v.b)
	default:
		return ""
	}
}

func (v Value) String() string {
	if v.null {
		return "null"
	}
	if v.kind == Bytes {
		return strconv.Quote(string(v.b))
	}
	return v.Text()
}

// Parse parses text into a value of kind k.
func Parse(k Kind, text string) (Value, error) {
	switch k {
	case Bool:
		switch text {
		case "true", "t", "1", "TRUE", "True", "T":
			return NewBool(true), nil
		case "false", "f", "0", "FALSE", "False", "F":
			return NewBool(false), nil
		}
		return Value{}, fmt.Errorf("cannot parse %q as bool", text)
	case Byte:
		i, err := strconv.ParseUint(text, 10, 8)
		if err != nil {
			return Value{}, err
		}
		return NewByte(byte(i)), nil
	case Int32:
		i, err := strconv.ParseInt(text, 10, 32)
		if err != nil {
			return Value{}, err
		}
		return NewInt32(int32(i)), nil
	case Int64:
		i, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return Value{}, err
		}
		return NewInt64(i), nil
	case Double:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Value{}, err
		}
		return NewDouble(f), nil
	case Bytes:
		return NewString(text), nil
	}
	return Value{}, fmt.Errorf("cannot parse values of type %s", k)
}

// class ranks kinds that compare with each other
func (v Value) class() int {
	if v.kind.Numeric() {
		return 0
	}
	return 1
}

// Compare returns -1, 0 or +1 depending on whether
// a sorts before, equal to or after b.
//
// Nulls sort before every non-null value.
// Numeric kinds compare numerically with each other
// and before Bytes values; Bytes compare bytewise.
func Compare(a, b Value) int {
	switch {
	case a.null && b.null:
		return 0
	case a.null:
		return -1
	case b.null:
		return 1
	}
	if ca, cb := a.class(), b.class(); ca != cb {
		return cmp.Compare(ca, cb)
	}
	if a.kind == Bytes {
		return bytes.Compare(a.b, b.b)
	}
	switch {
	case a.kind == Double && b.kind == Double:
		return cmp.Compare(a.f, b.f)
	case a.kind == Double:
		return -compareIntDouble(b.i, a.f)
	case b.kind == Double:
		return compareIntDouble(a.i, b.f)
	}
	return cmp.Compare(a.i, b.i)
}

// compareIntDouble compares i and f exactly;
// converting i to float64 would round it
// beyond 2^53
func compareIntDouble(i int64, f float64) int {
	switch {
	case math.IsNaN(f):
		return 1
	case f >= 1<<63:
		return -1
	case f < -1<<63:
		return 1
	}
	t := math.Trunc(f)
	if c := cmp.Compare(i, int64(t)); c != 0 {
		return c
	}
	return cmp.Compare(t, f)
}

// Equal returns whether Compare(a, b) == 0.
func Equal(a, b Value) bool { return Compare(a, b) == 0 }

const (
	tagNull uint64 = iota + 0x7ab1e
	tagInt
	tagFloat
	tagBytes
)

// Hash folds v into the hash state seed.
// Values that are Equal hash identically.
func (v Value) Hash(seed uint64) uint64 {
	var buf [8]byte
	switch {
	case v.null:
		return siphash.Hash(seed, tagNull, nil)
	case v.kind == Bytes:
		return siphash.Hash(seed, tagBytes, v.b)
	case v.kind == Double:
		f := v.f
		if f == math.Trunc(f) && f >= -1<<63 && f < 1<<63 {
			// integral doubles equal the matching integer
			binary.LittleEndian.PutUint64(buf[:], uint64(int64(f)))
			return siphash.Hash(seed, tagInt, buf[:])
		}
		bits := math.Float64bits(f)
		if math.IsNaN(f) {
			bits = math.Float64bits(math.NaN())
		}
		binary.LittleEndian.PutUint64(buf[:], bits)
		return siphash.Hash(seed, tagFloat, buf[:])
	default:
		binary.LittleEndian.PutUint64(buf[:], uint64(v.i))
		return siphash.Hash(seed, tagInt, buf[:])
	}
}

// size is the approximate encoded size of v
func (v Value) size() int {
	if v.kind == Bytes {
		return 4 + len(v.b)
	}
	return v.kind.width()
}
