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

// Dimension declares a dimension: a lookup
// table keyed by Key and carrying Values.
// Several dimensions may be loaded from
// the same source table.
type Dimension struct {
	Name   string   `json:"dimension_name" validate:"required"`
	Table  string   `json:"source_table" validate:"required"`
	Key    []string `json:"key_columns" validate:"required,min=1"`
	Values []string `json:"value_columns"`
}

// DimensionJoin looks up one dimension for
// every fact row using FactKey and copies
// the dimension values named by the keys of
// Extract into the output columns they map to.
type DimensionJoin struct {
	Dimension string            `json:"dimension_name" validate:"required"`
	FactKey   []string          `json:"fact_key_columns" validate:"required,min=1"`
	Extract   map[string]string `json:"extract_values"`
}

// StarJoinSpec configures a StarJoin.
type StarJoinSpec struct {
	Dimensions []Dimension
	// FactColumns maps fact columns
	// to output columns.
	FactColumns map[string]string
	Joins       []DimensionJoin
	// MaxDimensionRows bounds the rows loaded
	// into each dimension; zero means no limit.
	MaxDimensionRows int
	OutputName       string
}

type dimension struct {
	*Dimension
	series extent.Series
	key    []*extent.Field
	values []*extent.Field
	table  *keyvec.Map[keyvec.Vec]
	held   *extent.Shared // extent the series is positioned in
}

type dimJoin struct {
	dim     *dimension
	factKey []*extent.Field
	xs      []extract.Extractor
	key     keyvec.Vec
	found   keyvec.Vec
}

// StarJoin joins a fact input against any number
// of in-memory dimensions. Every fact row produces
// exactly one output row. A fact row whose key is
// missing from a dimension is an internal error.
type StarJoin struct {
	fact   extent.Source
	tables map[string]extent.Source
	spec   StarJoinSpec
	logger *zerolog.Logger

	dims    map[string]*dimension
	byTable map[string][]*dimension
	joins   []*dimJoin
	facts   extent.Series
	copier  *extract.RenameCopier
	schema  *extent.Schema
	planned bool
	loaded  bool

	out  *extent.Builder
	done bool
}

// NewStarJoin returns a StarJoin of fact against the
// dimension source tables, keyed by table name.
// logger may be nil.
func NewStarJoin(fact extent.Source, tables map[string]extent.Source, spec StarJoinSpec, logger *zerolog.Logger) *StarJoin {
	own := make(map[string]extent.Source, len(tables))
	for k, v := range tables {
		own[k] = v
	}
	return &StarJoin{
		fact:   fact,
		tables: own,
		spec:   spec,
		logger: logging.OrNop(logger),
	}
}

// Validate checks the parts of the configuration
// that do not depend on any input schema.
func (s *StarJoinSpec) Validate(tables []string) error {
	declared := make(map[string]*Dimension, len(s.Dimensions))
	usesTable := make(map[string]bool)
	for i := range s.Dimensions {
		d := &s.Dimensions[i]
		if _, ok := declared[d.Name]; ok {
			return reqerr.Requestf("star join: duplicate dimension %s", d.Name)
		}
		if len(d.Key) == 0 {
			return reqerr.Requestf("star join: dimension %s has no key columns", d.Name)
		}
		declared[d.Name] = d
		usesTable[d.Table] = true
	}
	used := make(map[string]bool)
	for i := range s.Joins {
		j := &s.Joins[i]
		d, ok := declared[j.Dimension]
		if !ok {
			return reqerr.Requestf("star join: unspecified dimension %s used", j.Dimension)
		}
		if len(j.FactKey) != len(d.Key) {
			return reqerr.Requestf("star join: dimension %s has %d key columns but %d fact key columns were given",
				d.Name, len(d.Key), len(j.FactKey))
		}
		used[j.Dimension] = true
	}
	for i := range s.Dimensions {
		if !used[s.Dimensions[i].Name] {
			return reqerr.Requestf("star join: unused dimension %s specified", s.Dimensions[i].Name)
		}
	}
	have := make(map[string]bool, len(tables))
	for _, t := range tables {
		have[t] = true
		if !usesTable[t] {
			return reqerr.Requestf("star join: missing dimensions using source table %s", t)
		}
	}
	for t := range usesTable {
		if !have[t] {
			return reqerr.Requestf("star join: no source table %s", t)
		}
	}
	return nil
}

// Schema returns the output schema if the schemas
// of the fact input and of all dimension tables
// are known.
func (s *StarJoin) Schema() *extent.Schema {
	if !s.planned {
		fs := extent.SchemaOf(s.fact)
		if fs == nil {
			return nil
		}
		for _, src := range s.tables {
			if extent.SchemaOf(src) == nil {
				return nil
			}
		}
		s.plan(fs) // errors surface again from Next
	}
	return s.schema
}

func (s *StarJoin) tableSchema(name string) *extent.Schema {
	if src, ok := s.tables[name]; ok {
		return extent.SchemaOf(src)
	}
	return nil
}

// peek pulls the first extent of every dimension
// table that does not advertise a schema
func (s *StarJoin) peek() error {
	for t, src := range s.tables {
		if extent.SchemaOf(src) != nil {
			continue
		}
		e, err := src.Next()
		if err == io.EOF {
			return reqerr.Requestf("star join: source table %s is empty", t)
		}
		if err != nil {
			return err
		}
		s.tables[t] = extent.Concat(extent.NewSliceSource(e.Schema(), e), src)
	}
	return nil
}

func bindFields(series *extent.Series, names []string) ([]*extent.Field, error) {
	out := make([]*extent.Field, len(names))
	for i, n := range names {
		f, err := series.Field(n)
		if err != nil {
			return nil, reqerr.Requestf("star join: %v", err)
		}
		out[i] = f
	}
	return out, nil
}

// keysCompatible returns whether values of kinds
// a and b can ever compare equal.
func keysCompatible(a, b extent.Kind) bool {
	return a == b || (a.Numeric() && b.Numeric())
}

// plan binds the configuration to the fact schema
// and to the dimension table schemas.
func (s *StarJoin) plan(fs *extent.Schema) error {
	if s.planned {
		return nil
	}
	names := make([]string, 0, len(s.tables))
	for t := range s.tables {
		names = append(names, t)
	}
	if err := s.spec.Validate(names); err != nil {
		return err
	}
	s.dims = make(map[string]*dimension, len(s.spec.Dimensions))
	s.byTable = make(map[string][]*dimension)
	for i := range s.spec.Dimensions {
		d := &dimension{Dimension: &s.spec.Dimensions[i]}
		ts := s.tableSchema(d.Table)
		if ts == nil {
			return reqerr.Requestf("star join: schema of source table %s unknown", d.Table)
		}
		d.series.SetSchema(ts)
		var err error
		if d.key, err = bindFields(&d.series, d.Key); err != nil {
			return err
		}
		if d.values, err = bindFields(&d.series, d.Values); err != nil {
			return err
		}
		s.dims[d.Name] = d
		s.byTable[d.Table] = append(s.byTable[d.Table], d)
	}

	sb := extract.NewSchemaBuilder(s.spec.OutputName)
	factRenames := extract.SortedRenames(s.spec.FactColumns)
	for _, r := range factRenames {
		if _, err := sb.AddRenamed(fs, r.From, r.To); err != nil {
			return err
		}
	}
	s.facts.SetSchema(fs)
	s.joins = s.joins[:0]
	for i := range s.spec.Joins {
		j := &s.spec.Joins[i]
		d := s.dims[j.Dimension]
		fk, err := bindFields(&s.facts, j.FactKey)
		if err != nil {
			return err
		}
		for k := range fk {
			if !keysCompatible(fk[k].Kind(), d.key[k].Kind()) {
				return reqerr.Requestf("star join: fact key %s (%s) cannot match key %s (%s) of dimension %s",
					fk[k].Name(), fk[k].Kind(), d.key[k].Name(), d.key[k].Kind(), d.Name)
			}
		}
		dj := &dimJoin{dim: d, factKey: fk}
		for _, r := range extract.SortedRenames(j.Extract) {
			pos := -1
			for p, v := range d.Values {
				if v == r.From {
					pos = p
					break
				}
			}
			if pos < 0 {
				return reqerr.Requestf("star join: %s is not a value column of dimension %s", r.From, d.Name)
			}
			into, err := sb.AddRenamed(d.series.Schema(), r.From, r.To)
			if err != nil {
				return err
			}
			dj.xs = append(dj.xs, extract.FromValue(pos, into))
		}
		s.joins = append(s.joins, dj)
	}
	schema, err := sb.Build()
	if err != nil {
		return err
	}
	copier, err := extract.NewRenameCopier(&s.facts, schema, factRenames)
	if err != nil {
		return err
	}
	s.schema, s.copier = schema, copier
	s.planned = true
	return nil
}

// load reads every dimension table once; each
// extent is shared by the dimensions built from it
func (s *StarJoin) load() error {
	for _, t := range extract.SortedKeys(s.tables) {
		dims := s.byTable[t]
		for _, d := range dims {
			d.table = keyvec.NewMap[keyvec.Vec]()
		}
		err := extent.ForEach(s.tables[t], func(e *extent.Extent) error {
			sh := extent.NewShared(e)
			defer sh.Release()
			for _, d := range dims {
				if err := d.add(sh, s.spec.MaxDimensionRows); err != nil {
					return err
				}
			}
			return nil
		})
		for _, d := range dims {
			d.drop()
		}
		if err != nil {
			return err
		}
		for _, d := range dims {
			s.logger.Debug().Str("dimension", d.Name).Str("table", t).
				Int("rows", d.table.Len()).Msg("star join: dimension loaded")
		}
	}
	s.out = extent.NewBuilder(s.schema)
	s.loaded = true
	return nil
}

// hold positions the series at the start of
// the extent of sh, keeping a reference to it
// until the next hold or drop
func (d *dimension) hold(sh *extent.Shared) {
	d.drop()
	d.held = sh.Retain()
	d.series.SetExtent(sh.Extent())
}

func (d *dimension) drop() {
	d.series.Clear()
	if d.held != nil {
		d.held.Release()
		d.held = nil
	}
}

// add loads the rows of sh; a later row replaces
// an earlier one with the same key
func (d *dimension) add(sh *extent.Shared, max int) error {
	d.hold(sh)
	for ; d.series.More(); d.series.Next() {
		d.table.Put(keyvec.Extract(nil, d.key), keyvec.Extract(nil, d.values))
		if max > 0 && d.table.Len() > max {
			return reqerr.Requestf("star join: dimension %s has more than %d rows", d.Name, max)
		}
	}
	return nil
}

// Next implements extent.Source.
func (s *StarJoin) Next() (*extent.Extent, error) {
	for !s.done {
		e, err := s.fact.Next()
		if err == io.EOF {
			s.done = true
			break
		}
		if err != nil {
			return nil, err
		}
		if !s.loaded {
			if err := s.peek(); err != nil {
				return nil, err
			}
			if err := s.plan(e.Schema()); err != nil {
				return nil, err
			}
			if err := s.load(); err != nil {
				return nil, err
			}
		}
		s.facts.SetExtent(e)
		for ; s.facts.More(); s.facts.Next() {
			for _, j := range s.joins {
				j.key = keyvec.Extract(j.key, j.factKey)
				vals, ok := j.dim.table.Get(j.key)
				if !ok {
					panic(reqerr.AssertionFailedf("star join: key %s missing from dimension %s", j.key, j.dim.Name))
				}
				j.found = vals
			}
			s.out.AddRow()
			s.copier.Copy(s.out)
			for _, j := range s.joins {
				extract.All(s.out, j.xs, j.found)
			}
		}
		if s.out.Full() {
			return s.out.Build(), nil
		}
	}
	if s.out != nil && s.out.Rows() > 0 {
		return s.out.Build(), nil
	}
	return nil, io.EOF
}
