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
	"fmt"
	"io"
	"time"

	"github.com/SnellerInc/tabular/extent"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// resultRows is the part of pgx.Rows used here
type resultRows interface {
	FieldDescriptions() []pgconn.FieldDescription
	Next() bool
	Values() ([]any, error)
	Err() error
}

// kindOf maps a PostgreSQL type to a column kind.
// Types without a matching kind are stored as text.
func kindOf(oid uint32) extent.Kind {
	switch oid {
	case pgtype.BoolOID:
		return extent.Bool
	case pgtype.Int2OID, pgtype.Int4OID:
		return extent.Int32
	case pgtype.Int8OID:
		return extent.Int64
	case pgtype.Float4OID, pgtype.Float8OID, pgtype.NumericOID:
		return extent.Double
	default:
		return extent.Bytes
	}
}

func toValue(k extent.Kind, v any) (extent.Value, error) {
	if v == nil {
		return extent.Null(k), nil
	}
	switch k {
	case extent.Bool:
		if b, ok := v.(bool); ok {
			return extent.NewBool(b), nil
		}
	case extent.Int32:
		switch x := v.(type) {
		case int16:
			return extent.NewInt32(int32(x)), nil
		case int32:
			return extent.NewInt32(x), nil
		}
	case extent.Int64:
		if x, ok := v.(int64); ok {
			return extent.NewInt64(x), nil
		}
	case extent.Double:
		switch x := v.(type) {
		case float32:
			return extent.NewDouble(float64(x)), nil
		case float64:
			return extent.NewDouble(x), nil
		case pgtype.Numeric:
			if !x.Valid {
				return extent.Null(k), nil
			}
			f, err := x.Float64Value()
			if err != nil {
				return extent.Value{}, err
			}
			return extent.NewDouble(f.Float64), nil
		}
	case extent.Bytes:
		switch x := v.(type) {
		case string:
			return extent.NewString(x), nil
		case []byte:
			return extent.NewBytes(x), nil
		case time.Time:
			return extent.NewString(x.Format(time.RFC3339Nano)), nil
		case [16]byte:
			return extent.NewString(uuid.UUID(x).String()), nil
		case fmt.Stringer:
			return extent.NewString(x.String()), nil
		default:
			return extent.NewString(fmt.Sprint(x)), nil
		}
	}
	return extent.Value{}, errors.Newf("unexpected %T value in a %s column", v, k)
}

// rowSource is an extent.Source over a query result.
// Every column is nullable.
type rowSource struct {
	rows   resultRows
	schema *extent.Schema
	out    *extent.Builder
	done   bool
}

func newRowSource(rows resultRows, name string) (*rowSource, error) {
	fds := rows.FieldDescriptions()
	cols := make([]extent.Column, len(fds))
	for i := range fds {
		cols[i] = extent.Column{Name: fds[i].Name, Kind: kindOf(fds[i].DataTypeOID), Nullable: true}
	}
	schema, err := extent.NewSchema(name, cols)
	if err != nil {
		return nil, err
	}
	return &rowSource{rows: rows, schema: schema, out: extent.NewBuilder(schema)}, nil
}

func (r *rowSource) Schema() *extent.Schema { return r.schema }

func (r *rowSource) Next() (*extent.Extent, error) {
	for !r.done {
		if !r.rows.Next() {
			if err := r.rows.Err(); err != nil {
				return nil, err
			}
			r.done = true
			break
		}
		vals, err := r.rows.Values()
		if err != nil {
			return nil, err
		}
		r.out.AddRow()
		for i, v := range vals {
			col := r.schema.Column(i)
			x, err := toValue(col.Kind, v)
			if err != nil {
				return nil, errors.Wrapf(err, "column %s", col.Name)
			}
			if !x.IsNull() {
				r.out.Set(i, x)
			}
		}
		if r.out.Full() {
			return r.out.Build(), nil
		}
	}
	if r.out.Rows() > 0 {
		return r.out.Build(), nil
	}
	return nil, io.EOF
}
