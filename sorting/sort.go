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
	"io"

	"github.com/SnellerInc/tabular/extent"
	"github.com/SnellerInc/tabular/heap"
	"github.com/SnellerInc/tabular/logging"
	"github.com/SnellerInc/tabular/reqerr"
	"github.com/rs/zerolog"
	"golang.org/x/exp/slices"
)

// sortedExtent is an input extent together
// with the order in which its rows are emitted
type sortedExtent struct {
	e    *extent.Extent
	perm []int32
	pos  int
}

func (s *sortedExtent) done() bool { return s.pos >= len(s.perm) }

func (s *sortedExtent) row() int { return int(s.perm[s.pos]) }

// Sort is an operator that emits every row of
// its input ordered by a list of rules.
type Sort struct {
	src    extent.Source
	rules  []Column
	logger *zerolog.Logger

	schema *extent.Schema
	cmp    *Comparator
	inputs []*sortedExtent
	tree   *heap.LoserTree
	out    *extent.Builder
	loaded bool
	done   bool
}

// NewSort returns a Sort of src by rules.
// logger may be nil.
func NewSort(src extent.Source, rules []Column, logger *zerolog.Logger) *Sort {
	return &Sort{src: src, rules: rules, logger: logging.OrNop(logger)}
}

// Schema returns the output schema (the input
// schema), if it is known.
func (s *Sort) Schema() *extent.Schema {
	if s.schema != nil {
		return s.schema
	}
	return extent.SchemaOf(s.src)
}

func (s *Sort) load() error {
	for {
		e, err := s.src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if s.cmp == nil {
			s.cmp, err = NewComparator(e.Schema(), s.rules)
			if err != nil {
				return reqerr.Requestf("sort: %v", err)
			}
			s.schema = e.Schema()
			s.out = extent.NewBuilder(s.schema)
		} else if !s.schema.Equal(e.Schema()) {
			panic(reqerr.AssertionFailedf("sort: input of %s changed to %s", s.schema, e.Schema()))
		}
		if e.Rows() == 0 {
			continue
		}
		s.inputs = append(s.inputs, s.sortOne(e))
	}
	s.loaded = true
	s.logger.Debug().Int("extents", len(s.inputs)).Msg("sort: input loaded")
	if len(s.inputs) > 1 {
		s.tree = heap.NewLoserTree(len(s.inputs), s.less, s.exhausted)
	}
	return nil
}

func (s *Sort) sortOne(e *extent.Extent) *sortedExtent {
	perm := make([]int32, e.Rows())
	for i := range perm {
		perm[i] = int32(i)
	}
	slices.SortStableFunc(perm, func(a, b int32) bool {
		return s.cmp.Compare(e, int(a), e, int(b)) < 0
	})
	return &sortedExtent{e: e, perm: perm}
}

func (s *Sort) less(a, b int) bool {
	x, y := s.inputs[a], s.inputs[b]
	return s.cmp.Compare(x.e, x.row(), y.e, y.row()) < 0
}

func (s *Sort) exhausted(i int) bool { return s.inputs[i].done() }

// Next implements extent.Source.
func (s *Sort) Next() (*extent.Extent, error) {
	if !s.loaded {
		if err := s.load(); err != nil {
			return nil, err
		}
	}
	for !s.done {
		switch len(s.inputs) {
		case 0:
			s.done = true
		case 1:
			s.emitSingle()
		default:
			s.merge()
		}
		if s.out != nil && s.out.Full() {
			return s.out.Build(), nil
		}
	}
	if s.out != nil && s.out.Rows() > 0 {
		return s.out.Build(), nil
	}
	return nil, io.EOF
}

// emitSingle copies rows of the only input
// until the output is full or the input ends
func (s *Sort) emitSingle() {
	in := s.inputs[0]
	for !in.done() && !s.out.Full() {
		s.out.AppendRow(in.e, in.row())
		in.pos++
	}
	if in.done() {
		s.done = true
	}
}

// merge copies the smallest row across all
// inputs until the output is full or every
// input is exhausted
func (s *Sort) merge() {
	for !s.out.Full() {
		m := s.tree.Min()
		if s.tree.Exhausted(m) {
			s.finish()
			return
		}
		in := s.inputs[m]
		s.out.AppendRow(in.e, in.row())
		in.pos++
		s.tree.Replay(m, in.done())
	}
}

func (s *Sort) finish() {
	for i, in := range s.inputs {
		if !in.done() {
			panic(reqerr.AssertionFailedf("sort: input %d stopped at row %d of %d", i, in.pos, len(in.perm)))
		}
	}
	s.done = true
	s.logger.Debug().Int("extents", len(s.inputs)).Msg("sort: merge complete")
}
