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

package filter

import (
	"io"

	"github.com/SnellerInc/tabular/extent"
	"github.com/SnellerInc/tabular/logging"
	"github.com/rs/zerolog"
)

// Select is an operator that keeps the input
// rows for which a predicate is true.
type Select struct {
	src    extent.Source
	where  string
	name   string
	logger *zerolog.Logger

	series extent.Series
	pred   *Predicate
	out    *extent.Builder
	done   bool
}

// NewSelect returns a Select over src. The output
// has the schema of the input renamed to name,
// or unchanged if name is empty. logger may be nil.
func NewSelect(src extent.Source, where, name string, logger *zerolog.Logger) *Select {
	return &Select{src: src, where: where, name: name, logger: logging.OrNop(logger)}
}

func (s *Select) output(in *extent.Schema) *extent.Schema {
	if s.name == "" {
		return in
	}
	return in.WithName(s.name)
}

// Schema returns the output schema, if known.
func (s *Select) Schema() *extent.Schema {
	if s.out != nil {
		return s.out.Schema()
	}
	if in := extent.SchemaOf(s.src); in != nil {
		return s.output(in)
	}
	return nil
}

func (s *Select) setup(in *extent.Schema) error {
	s.series.SetSchema(in)
	pred, err := Compile(s.where, &s.series)
	if err != nil {
		return err
	}
	s.pred = pred
	s.out = extent.NewBuilder(s.output(in))
	s.logger.Debug().Str("where", s.where).Str("input", in.String()).Msg("select: compiled")
	return nil
}

// Next implements extent.Source.
func (s *Select) Next() (*extent.Extent, error) {
	for !s.done {
		e, err := s.src.Next()
		if err == io.EOF {
			s.done = true
			break
		}
		if err != nil {
			return nil, err
		}
		if s.pred == nil {
			if err := s.setup(e.Schema()); err != nil {
				return nil, err
			}
		}
		s.series.SetExtent(e)
		for ; s.series.More(); s.series.Next() {
			if s.pred.Match() {
				s.out.AppendRow(e, s.series.Row())
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
