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

package keyvec

type entry[V any] struct {
	key  Vec
	vals []V
}

// Map is a hash multimap from Vec keys
// to values of type V. Keys are bucketed
// by Vec.Hash and compared with Vec.Equal.
type Map[V any] struct {
	buckets map[uint64][]entry[V]
	keys    int
	vals    int
}

// NewMap returns an empty Map.
func NewMap[V any]() *Map[V] {
	return &Map[V]{buckets: make(map[uint64][]entry[V])}
}

func (m *Map[V]) find(h uint64, k Vec) *entry[V] {
	b := m.buckets[h]
	for i := range b {
		if b[i].key.Equal(k) {
			return &b[i]
		}
	}
	return nil
}

// Append adds v to the values stored under k.
// The map keeps a reference to k.
func (m *Map[V]) Append(k Vec, v V) {
	h := k.Hash()
	if e := m.find(h, k); e != nil {
		e.vals = append(e.vals, v)
	} else {
		m.buckets[h] = append(m.buckets[h], entry[V]{key: k, vals: []V{v}})
		m.keys++
	}
	m.vals++
}

// Put replaces the values stored under k with v.
func (m *Map[V]) Put(k Vec, v V) {
	h := k.Hash()
	if e := m.find(h, k); e != nil {
		m.vals -= len(e.vals) - 1
		e.vals = append(e.vals[:0], v)
		return
	}
	m.buckets[h] = append(m.buckets[h], entry[V]{key: k, vals: []V{v}})
	m.keys++
	m.vals++
}

// Lookup returns every value stored under k,
// in insertion order.
func (m *Map[V]) Lookup(k Vec) []V {
	if e := m.find(k.Hash(), k); e != nil {
		return e.vals
	}
	return nil
}

// Get returns the last value stored under k.
func (m *Map[V]) Get(k Vec) (V, bool) {
	if e := m.find(k.Hash(), k); e != nil {
		return e.vals[len(e.vals)-1], true
	}
	var zero V
	return zero, false
}

// Keys returns the number of distinct keys.
func (m *Map[V]) Keys() int { return m.keys }

// Len returns the number of stored values.
func (m *Map[V]) Len() int { return m.vals }
