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

package main

import (
	"io"
	"os"

	"github.com/SnellerInc/tabular/extent"
	"github.com/cockroachdb/errors"
	"github.com/parquet-go/parquet-go"
)

// kindOf maps a parquet leaf type to a column kind
func kindOf(k parquet.Kind) (extent.Kind, bool) {
	switch k {
	case parquet.Boolean:
		return extent.Bool, true
	case parquet.Int32:
		return extent.Int32, true
	case parquet.Int64:
		return extent.Int64, true
	case parquet.Float, parquet.Double:
		return extent.Double, true
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return extent.Bytes, true
	}
	return extent.Invalid, false
}

// source is an extent.Source over the rows
// of a parquet file
type source struct {
	r      *parquet.Reader
	schema *extent.Schema
	rows   []parquet.Row
	out    *extent.Builder
	done   bool
}

func openSource(f *os.File, name string) (*source, error) {
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		return nil, err
	}
	var cols []extent.Column
	for _, field := range pf.Schema().Fields() {
		if !field.Leaf() || field.Repeated() {
			return nil, errors.Newf("column %s is not a scalar", field.Name())
		}
		k, ok := kindOf(field.Type().Kind())
		if !ok {
			return nil, errors.Newf("column %s has unsupported type %s", field.Name(), field.Type())
		}
		cols = append(cols, extent.Column{Name: field.Name(), Kind: k, Nullable: field.Optional()})
	}
	schema, err := extent.NewSchema(name, cols)
	if err != nil {
		return nil, err
	}
	return &source{
		r:      parquet.NewReader(f),
		schema: schema,
		rows:   make([]parquet.Row, 256),
		out:    extent.NewBuilder(schema),
	}, nil
}

func (s *source) Schema() *extent.Schema { return s.schema }

func (s *source) Close() error { return s.r.Close() }

func (s *source) Next() (*extent.Extent, error) {
	for !s.done {
		n, err := s.r.ReadRows(s.rows)
		for _, row := range s.rows[:n] {
			s.add(row)
		}
		if err == io.EOF {
			s.done = true
		} else if err != nil {
			return nil, err
		}
		if s.out.Full() {
			return s.out.Build(), nil
		}
	}
	if s.out.Rows() > 0 {
		return s.out.Build(), nil
	}
	return nil, io.EOF
}

func (s *source) add(row parquet.Row) {
	s.out.AddRow()
	for _, v := range row {
		col := v.Column()
		if v.IsNull() || col < 0 || col >= s.schema.Len() {
			continue
		}
		switch v.Kind() {
		case parquet.Boolean:
			s.out.Set(col, extent.NewBool(v.Boolean()))
		case parquet.Int32:
			s.out.Set(col, extent.NewInt32(v.Int32()))
		case parquet.Int64:
			s.out.Set(col, extent.NewInt64(v.Int64()))
		case parquet.Float:
			s.out.Set(col, extent.NewDouble(float64(v.Float())))
		case parquet.Double:
			s.out.Set(col, extent.NewDouble(v.Double()))
		case parquet.ByteArray, parquet.FixedLenByteArray:
			s.out.Set(col, extent.NewBytes(v.ByteArray()))
		}
	}
}
