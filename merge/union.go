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

package merge

import (
	"io"

	"github.com/SnellerInc/tabular/extent"
	"github.com/SnellerInc/tabular/extract"
	"github.com/SnellerInc/tabular/heap"
	"github.com/SnellerInc/tabular/logging"
	"github.com/SnellerInc/tabular/reqerr"
	"github.com/SnellerInc/tabular/sorting"
	"github.com/rs/zerolog"
)

// UnionSource is one input of a Union.
// Columns maps input columns to output
// columns; unmapped input columns are dropped.
type UnionSource struct {
	Name    string
	Source  extent.Source
	Columns map[string]string
}

type unionInput struct {
	cursor
	idx     int
	name    string
	renames []extract.Rename
	order   []*extent.Field
	copier  *extract.RenameCopier
}

// Union merges inputs that are each sorted by
// the order columns into one sorted output.
// Rows with equal order keys are emitted in
// the order their inputs were listed.
type Union struct {
	inputs []*unionInput
	order  []sorting.Column
	name   string
	logger *zerolog.Logger

	schema  *extent.Schema
	queue   *heap.Queue[*unionInput]
	out     *extent.Builder
	started bool
}

// NewUnion returns a Union of srcs ordered by the
// order columns, which are named by output column.
// logger may be nil.
func NewUnion(srcs []UnionSource, order []sorting.Column, name string, logger *zerolog.Logger) *Union {
	u := &Union{order: order, name: name, logger: logging.OrNop(logger)}
	for i := range srcs {
		u.inputs = append(u.inputs, &unionInput{
			cursor:  cursor{src: srcs[i].Source},
			idx:     i,
			name:    srcs[i].Name,
			renames: extract.SortedRenames(srcs[i].Columns),
		})
	}
	return u
}

// Schema returns the output schema if the schema
// of every input is known.
func (u *Union) Schema() *extent.Schema {
	if u.schema == nil {
		for _, in := range u.inputs {
			if in.schema() == nil {
				return nil
			}
		}
		u.plan() // errors surface again from Next
	}
	return u.schema
}

// plan computes the output schema from the inputs
// whose schema is known: output columns are sorted
// by name and typed by the first input mapping them
func (u *Union) plan() error {
	if u.schema != nil {
		return nil
	}
	seen := make(map[string]bool)
	for _, in := range u.inputs {
		for _, r := range in.renames {
			seen[r.To] = true
		}
	}
	sb := extract.NewSchemaBuilder(u.name)
	for _, name := range extract.SortedKeys(seen) {
		for _, in := range u.inputs {
			s := in.schema()
			if s == nil {
				continue
			}
			for _, r := range in.renames {
				if r.To != name {
					continue
				}
				c, ok := s.Lookup(r.From)
				if !ok {
					return reqerr.Requestf("union: no column %q in %s", r.From, in.name)
				}
				c.Name = name
				sb.Merge(c)
			}
		}
	}
	schema, err := sb.Build()
	if err != nil {
		return err
	}
	u.schema = schema
	return nil
}

// bind prepares an input that has at least one row
func (u *Union) bind(in *unionInput) error {
	copier, err := extract.NewRenameCopier(&in.series, u.schema, in.renames)
	if err != nil {
		return err
	}
	in.copier = copier
	in.order = in.order[:0]
	for _, o := range u.order {
		from := ""
		for _, r := range in.renames {
			if r.To == o.Name {
				from = r.From
				break
			}
		}
		if from == "" {
			return reqerr.Requestf("union: order column %q is not mapped by %s", o.Name, in.name)
		}
		f, err := in.series.Field(from)
		if err != nil {
			return reqerr.Requestf("union: %v", err)
		}
		in.order = append(in.order, f)
	}
	return nil
}

func (u *Union) less(a, b *unionInput) bool {
	for i := range u.order {
		if c := u.order[i].Compare(a.order[i].Value(), b.order[i].Value()); c != 0 {
			return c < 0
		}
	}
	return a.idx < b.idx
}

// typed returns whether any input schema is known
func (u *Union) typed() bool {
	for _, in := range u.inputs {
		if in.schema() != nil {
			return true
		}
	}
	return false
}

func (u *Union) start() error {
	var live []*unionInput
	for _, in := range u.inputs {
		ok, err := in.fill()
		if err != nil {
			return err
		}
		if ok {
			live = append(live, in)
		}
	}
	u.queue = heap.NewQueue(u.less)
	if len(live) == 0 && !u.typed() {
		return nil
	}
	if err := u.plan(); err != nil {
		return err
	}
	for _, in := range live {
		if err := u.bind(in); err != nil {
			return err
		}
		u.queue.Push(in)
	}
	u.out = extent.NewBuilder(u.schema)
	u.logger.Debug().Int("inputs", len(u.inputs)).Int("live", len(live)).
		Str("output", u.schema.String()).Msg("union: merge started")
	return nil
}

// Next implements extent.Source.
func (u *Union) Next() (*extent.Extent, error) {
	if !u.started {
		if err := u.start(); err != nil {
			return nil, err
		}
		u.started = true
	}
	for u.queue.Len() > 0 {
		in := u.queue.Top()
		u.out.AddRow()
		in.copier.Copy(u.out)
		in.series.Next()
		ok, err := in.fill()
		if err != nil {
			return nil, err
		}
		if ok {
			u.queue.FixTop()
		} else {
			u.queue.Pop()
		}
		if u.out.Full() {
			return u.out.Build(), nil
		}
	}
	if u.out != nil && u.out.Rows() > 0 {
		return u.out.Build(), nil
	}
	return nil, io.EOF
}
