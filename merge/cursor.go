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

// Package merge implements the operators that
// merge pre-sorted inputs: Union and SortedUpdate.
package merge

import (
	"io"

	"github.com/SnellerInc/tabular/extent"
)

// cursor walks the rows of a Source,
// skipping extents without rows.
type cursor struct {
	src    extent.Source
	series extent.Series
	done   bool
}

// fill makes sure the cursor is on a row,
// pulling extents as necessary, and returns
// false once the source is exhausted.
func (c *cursor) fill() (bool, error) {
	for !c.series.More() {
		if c.done {
			return false, nil
		}
		e, err := c.src.Next()
		if err == io.EOF {
			c.done = true
			c.series.Clear()
			return false, nil
		}
		if err != nil {
			return false, err
		}
		c.series.SetExtent(e)
	}
	return true, nil
}

// schema returns the schema of the source as
// far as it is known.
func (c *cursor) schema() *extent.Schema {
	if s := c.series.Schema(); s != nil {
		return s
	}
	return extent.SchemaOf(c.src)
}

func (c *cursor) row() int { return c.series.Row() }

func (c *cursor) extent() *extent.Extent { return c.series.Extent() }
