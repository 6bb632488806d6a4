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

// Package join implements the in-memory
// join operators: HashJoin and StarJoin.
package join

import (
	"strings"

	"github.com/SnellerInc/tabular/reqerr"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Side selects the input of a HashJoin.
type Side int

const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	if s == Right {
		return "b"
	}
	return "a"
}

// OutputColumn is one column of the output of
// a HashJoin: column Column of side Side,
// written as As.
type OutputColumn struct {
	Side   Side
	Column string
	As     string
}

// ParseOutputMap converts the wire form of the
// output map ("a.<left column>" or "b.<right
// column>" to output name) into OutputColumns
// ordered by key.
func ParseOutputMap(m map[string]string) ([]OutputColumn, error) {
	keys := maps.Keys(m)
	slices.Sort(keys)
	out := make([]OutputColumn, 0, len(keys))
	for _, k := range keys {
		var side Side
		switch {
		case strings.HasPrefix(k, "a."):
			side = Left
		case strings.HasPrefix(k, "b."):
			side = Right
		default:
			return nil, reqerr.Requestf("invalid output column %q: expected a.<column> or b.<column>", k)
		}
		col := k[2:]
		if col == "" || m[k] == "" {
			return nil, reqerr.Requestf("invalid output column %q", k)
		}
		out = append(out, OutputColumn{Side: side, Column: col, As: m[k]})
	}
	return out, nil
}
