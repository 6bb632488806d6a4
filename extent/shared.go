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
	"github.com/SnellerInc/tabular/reqerr"
)

// Shared is a reference-counted handle to an
// Extent that is read by more than one consumer
// within an operator. The extent is dropped when
// the last reference is released. A Shared is not
// safe for concurrent use.
type Shared struct {
	e    *Extent
	refs int
}

// NewShared returns a handle holding
// one reference to e.
func NewShared(e *Extent) *Shared {
	return &Shared{e: e, refs: 1}
}

// Retain adds a reference.
func (s *Shared) Retain() *Shared {
	if s.refs <= 0 {
		panic(reqerr.AssertionFailedf("retain of a released extent"))
	}
	s.refs++
	return s
}

// Release drops a reference and returns true
// if it was the last one.
func (s *Shared) Release() bool {
	if s.refs <= 0 {
		panic(reqerr.AssertionFailedf("extent released too many times"))
	}
	s.refs--
	if s.refs == 0 {
		s.e = nil
		return true
	}
	return false
}

// Refs returns the current reference count.
func (s *Shared) Refs() int { return s.refs }

// Extent returns the shared extent.
// It panics if every reference has been released.
func (s *Shared) Extent() *Extent {
	if s.e == nil {
		panic(reqerr.AssertionFailedf("use of a released extent"))
	}
	return s.e
}
