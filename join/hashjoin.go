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

package join

import (
	"io"

	"github.com/SnellerInc/tabular/extent"
	"github.com/SnellerInc/tabular/extract"
	"github.com/SnellerInc/tabular/keyvec"
	"github.com/SnellerInc/tabular/logging"
	"github.com/SnellerInc/tabular/reqerr"
	"github.com/rs/zerolog"
)

// HashJoinSpec configures a HashJoin.
type HashJoinSpec struct {
	// Eq maps each left key column to the
	// right column it must equal.
	Eq map[string]string
	// Output lists the output columns in order.
	Output []OutputColumn
	// MaxLeftRows bounds the size of the
	// left input; it must be positive.
	MaxLeftRows int
	// OutputName names the output schema.
	OutputName string
}

// HashJoin is an equi-join operator. The left
// input is loaded into a hash table when the
// first right extent arrives; each right row
// then produces one output row per matching
// left row.
//
// The output carries no ordering guarantee.
type HashJoin struct {
	left, right extent.Source
	spec        HashJoinSpec
	logger      *zerolog.Logger

	leftSeries  extent.Series
	rightSeries extent.Series
	leftKey     []*extent.Field
	rightKey    []*extent.Field
	leftVals    []*extent.Field
	xs          []extract.Extractor
	schema      *extent.Schema
	planned     bool

	table *keyvec.Map[keyvec.Vec]
	probe keyvec.Vec
	out   *extent.Builder
	done  bool
}

// NewHashJoin returns a join of left and right.
// logger may be nil.
func NewHashJoin(left, right extent.Source, spec HashJoinSpec, logger *zerolog.Logger) *HashJoin {
	return &HashJoin{
		left:   left,
		right:  right,
		spec:   spec,
		logger: logging.OrNop(logger),
	}
}

// Schema returns the output schema if the schemas
// of both inputs are known.
func (h *HashJoin) Schema() *extent.Schema {
	if !h.planned {
		ls, rs := extent.SchemaOf(h.left), extent.SchemaOf(h.right)
		if ls != nil && rs != nil {
			// a bad configuration is reported by Next
			_ = h.plan(ls, rs)
		}
	}
	return h.schema
}

// plan binds the configuration to the two
// input schemas and fixes the output schema
func (h *HashJoin) plan(ls, rs *extent.Schema) error {
	if h.planned {
		return nil
	}
	if h.spec.MaxLeftRows <= 0 {
		return reqerr.Requestf("hash join: max left rows must be > 0")
	}
	if len(h.spec.Eq) == 0 {
		return reqerr.Requestf("hash join: no equality columns")
	}
	h.leftSeries.SetSchema(ls)
	h.rightSeries.SetSchema(rs)

	h.leftKey = h.leftKey[:0]
	h.rightKey = h.rightKey[:0]
	rightOf := make(map[string]*extent.Field)
	for _, r := range extract.SortedRenames(h.spec.Eq) {
		lf, err := h.leftSeries.Field(r.From)
		if err != nil {
			return reqerr.Requestf("hash join: %v", err)
		}
		rf, err := h.rightSeries.Field(r.To)
		if err != nil {
			return reqerr.Requestf("hash join: %v", err)
		}
		if lf.Kind() != rf.Kind() {
			return reqerr.Requestf("hash join: key %q is %s but %q is %s",
				r.From, lf.Kind(), r.To, rf.Kind())
		}
		h.leftKey = append(h.leftKey, lf)
		h.rightKey = append(h.rightKey, rf)
		rightOf[r.From] = rf
	}

	if len(h.spec.Output) == 0 {
		return reqerr.Requestf("hash join: no output columns")
	}
	sb := extract.NewSchemaBuilder(h.spec.OutputName)
	h.leftVals = h.leftVals[:0]
	h.xs = h.xs[:0]
	for _, oc := range h.spec.Output {
		var src *extent.Schema
		if oc.Side == Left {
			src = ls
		} else {
			src = rs
		}
		into, err := sb.AddRenamed(src, oc.Column, oc.As)
		if err != nil {
			return err
		}
		switch {
		case oc.Side == Right:
			f, err := h.rightSeries.Field(oc.Column)
			if err != nil {
				return reqerr.Requestf("hash join: invalid extraction: %v", err)
			}
			h.xs = append(h.xs, extract.FromField(f, into))
		case rightOf[oc.Column] != nil:
			// left key columns are read from the
			// equal right column at probe time
			h.xs = append(h.xs, extract.FromField(rightOf[oc.Column], into))
		default:
			f, err := h.leftSeries.Field(oc.Column)
			if err != nil {
				return reqerr.Requestf("hash join: invalid extraction: %v", err)
			}
			h.xs = append(h.xs, extract.FromValue(len(h.leftVals), into))
			h.leftVals = append(h.leftVals, f)
		}
	}
	schema, err := sb.Build()
	if err != nil {
		return err
	}
	h.schema = schema
	h.planned = true
	return nil
}

// build loads the whole left input into the hash table
func (h *HashJoin) build(rs *extent.Schema) error {
	first, err := h.left.Next()
	if err == io.EOF {
		return reqerr.Requestf("hash join: left input is empty")
	}
	if err != nil {
		return err
	}
	if err := h.plan(first.Schema(), rs); err != nil {
		return err
	}
	h.table = keyvec.NewMap[keyvec.Vec]()
	rows := 0
	for e := first; ; {
		h.leftSeries.SetExtent(e)
		for ; h.leftSeries.More(); h.leftSeries.Next() {
			rows++
			if rows >= h.spec.MaxLeftRows {
				return reqerr.Requestf("hash join: left table too large (limit %d rows)", h.spec.MaxLeftRows)
			}
			h.table.Append(keyvec.Extract(nil, h.leftKey), keyvec.Extract(nil, h.leftVals))
		}
		e, err = h.left.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
	}
	h.leftSeries.Clear()
	h.out = extent.NewBuilder(h.schema)
	h.logger.Debug().Int("rows", rows).Int("keys", h.table.Keys()).
		Str("output", h.schema.String()).Msg("hash join: left input loaded")
	return nil
}

// Next implements extent.Source.
func (h *HashJoin) Next() (*extent.Extent, error) {
	for !h.done {
		if !h.rightSeries.More() {
			e, err := h.right.Next()
			if err == io.EOF {
				h.done = true
				break
			}
			if err != nil {
				return nil, err
			}
			if h.table == nil {
				if err := h.build(e.Schema()); err != nil {
					return nil, err
				}
			}
			h.rightSeries.SetExtent(e)
		}
		for ; h.rightSeries.More(); h.rightSeries.Next() {
			h.probe = keyvec.Extract(h.probe, h.rightKey)
			for _, vals := range h.table.Lookup(h.probe) {
				h.out.AddRow()
				extract.All(h.out, h.xs, vals)
			}
			if h.out.Full() {
				h.rightSeries.Next()
				return h.out.Build(), nil
			}
		}
	}
	if h.out != nil && h.out.Rows() > 0 {
		return h.out.Build(), nil
	}
	return nil, io.EOF
}
