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

package service

import (
	"context"
	"io"

	"github.com/SnellerInc/tabular/extent"
	"github.com/SnellerInc/tabular/extract"
	"github.com/SnellerInc/tabular/filter"
	"github.com/SnellerInc/tabular/join"
	"github.com/SnellerInc/tabular/merge"
	"github.com/SnellerInc/tabular/reqerr"
	"github.com/SnellerInc/tabular/sorting"
	"github.com/SnellerInc/tabular/table"
	"github.com/rs/zerolog"
)

// HashJoin joins two tables on equal key columns.
func (s *Service) HashJoin(ctx context.Context, req *HashJoinRequest) (*table.Info, error) {
	return s.write(ctx, "hash-join", req.Output, func(in *inputs, logger *zerolog.Logger) (extent.Source, error) {
		output, err := join.ParseOutputMap(req.Columns)
		if err != nil {
			return nil, err
		}
		left, err := in.open(req.Left)
		if err != nil {
			return nil, err
		}
		right, err := in.open(req.Right)
		if err != nil {
			return nil, err
		}
		return join.NewHashJoin(left, right, join.HashJoinSpec{
			Eq:          req.Eq,
			Output:      output,
			MaxLeftRows: req.MaxLeftRows,
			OutputName:  req.Output,
		}, logger), nil
	})
}

// StarJoin joins a fact table against dimensions
// loaded from other tables.
func (s *Service) StarJoin(ctx context.Context, req *StarJoinRequest) (*table.Info, error) {
	return s.write(ctx, "star-join", req.Output, func(in *inputs, logger *zerolog.Logger) (extent.Source, error) {
		fact, err := in.open(req.Fact)
		if err != nil {
			return nil, err
		}
		tables := make(map[string]extent.Source)
		for i := range req.Dimensions {
			name := req.Dimensions[i].Table
			if _, ok := tables[name]; ok {
				continue
			}
			t, err := in.open(name)
			if err != nil {
				return nil, err
			}
			tables[name] = t
		}
		return join.NewStarJoin(fact, tables, join.StarJoinSpec{
			Dimensions:       req.Dimensions,
			FactColumns:      req.FactColumns,
			Joins:            req.Joins,
			MaxDimensionRows: req.MaxDimensionRows,
			OutputName:       req.Output,
		}, logger), nil
	})
}

// SelectRows keeps the rows matching a
// boolean SQL expression.
func (s *Service) SelectRows(ctx context.Context, req *SelectRowsRequest) (*table.Info, error) {
	return s.write(ctx, "select-rows", req.Output, func(in *inputs, logger *zerolog.Logger) (extent.Source, error) {
		t, err := in.open(req.Table)
		if err != nil {
			return nil, err
		}
		return filter.NewSelect(t, req.Where, req.Output, logger), nil
	})
}

// ProjectTable keeps a subset of the columns of a table.
func (s *Service) ProjectTable(ctx context.Context, req *ProjectTableRequest) (*table.Info, error) {
	return s.write(ctx, "project-table", req.Output, func(in *inputs, _ *zerolog.Logger) (extent.Source, error) {
		t, err := in.open(req.Table)
		if err != nil {
			return nil, err
		}
		return extract.NewProject(t, req.Columns, req.Output), nil
	})
}

// SortTable sorts a table.
func (s *Service) SortTable(ctx context.Context, req *SortTableRequest) (*table.Info, error) {
	return s.write(ctx, "sort-table", req.Output, func(in *inputs, logger *zerolog.Logger) (extent.Source, error) {
		t, err := in.open(req.Table)
		if err != nil {
			return nil, err
		}
		return sorting.NewSort(t, req.Columns, logger), nil
	})
}

// UnionTables merges tables sorted by the same
// order into one sorted table.
func (s *Service) UnionTables(ctx context.Context, req *UnionTablesRequest) (*table.Info, error) {
	return s.write(ctx, "union-tables", req.Output, func(in *inputs, logger *zerolog.Logger) (extent.Source, error) {
		if len(req.Inputs) == 0 {
			return nil, reqerr.Requestf("union: no input tables")
		}
		srcs := make([]merge.UnionSource, len(req.Inputs))
		for i := range req.Inputs {
			t, err := in.open(req.Inputs[i].Table)
			if err != nil {
				return nil, err
			}
			srcs[i] = merge.UnionSource{
				Name:    req.Inputs[i].Table,
				Source:  t,
				Columns: req.Inputs[i].Columns,
			}
		}
		return merge.NewUnion(srcs, req.Order, req.Output, logger), nil
	})
}

// MergeTables concatenates tables of one schema.
func (s *Service) MergeTables(ctx context.Context, req *MergeTablesRequest) (*table.Info, error) {
	return s.write(ctx, "merge-tables", req.Table, func(in *inputs, _ *zerolog.Logger) (extent.Source, error) {
		if len(req.Sources) == 0 {
			return nil, reqerr.Requestf("merge tables: missing source tables")
		}
		var schema *extent.Schema
		srcs := make([]extent.Source, 0, len(req.Sources))
		for _, name := range req.Sources {
			if name == req.Table {
				return nil, reqerr.InvalidTable(name, "source table is the destination table")
			}
			info, err := s.store.Info(name)
			if err != nil {
				return nil, err
			}
			if schema == nil {
				schema = info.Schema
			} else if !schema.Equal(info.Schema) {
				return nil, reqerr.InvalidTable(name, "schema "+info.Schema.String()+" does not match "+schema.String())
			}
			t, err := in.open(name)
			if err != nil {
				return nil, err
			}
			srcs = append(srcs, t)
		}
		return extent.Concat(srcs...), nil
	})
}

// SortedUpdate applies a sorted change table to
// a table sorted on the same key, replacing the
// table. A missing table is treated as empty,
// with the columns of the change table other
// than the change kind column.
func (s *Service) SortedUpdate(ctx context.Context, req *SortedUpdateRequest) (*table.Info, error) {
	var info *table.Info
	err := run(ctx, s, "sorted-update", func(logger *zerolog.Logger) error {
		if err := table.ValidateName(req.Table); err != nil {
			return err
		}
		in := &inputs{store: s.store}
		defer in.close()
		changes, err := in.open(req.Changes)
		if err != nil {
			return err
		}
		var base extent.Source
		if s.store.Has(req.Table) {
			if base, err = in.open(req.Table); err != nil {
				return err
			}
		} else {
			if _, ok := changes.Schema().Lookup(req.KindColumn); !ok {
				return reqerr.Requestf("sorted update: no column %q in %s", req.KindColumn, req.Changes)
			}
			base = extent.NewSliceSource(changes.Schema().Without(req.Table, req.KindColumn))
			logger.Info().Str("table", req.Table).Msg("creating table for sorted update")
		}
		op := merge.NewSortedUpdate(base, changes, merge.UpdateSpec{
			KindColumn: req.KindColumn,
			Key:        req.Key,
		}, logger)
		out, err := s.store.Create(req.Table, op.Schema())
		if err != nil {
			return err
		}
		done := false
		defer func() {
			if !done {
				out.Abort()
			}
		}()
		if err := extent.ForEach(op, out.Write); err != nil {
			return err
		}
		done = true
		info, err = out.Commit()
		if err != nil {
			panic(reqerr.AssertionFailedf("sorted update: replacing table %s: %v", req.Table, err))
		}
		return nil
	})
	return info, err
}

// TableData returns the first rows of a table
// as text, optionally filtered by a boolean
// SQL expression.
func (s *Service) TableData(ctx context.Context, req *TableDataRequest) (*TableData, error) {
	var data *TableData
	err := run(ctx, s, "table-data", func(logger *zerolog.Logger) error {
		if req.MaxRows <= 0 {
			return reqerr.Requestf("max_rows must be > 0")
		}
		in := &inputs{store: s.store}
		defer in.close()
		t, err := in.open(req.Table)
		if err != nil {
			return err
		}
		var src extent.Source = t
		if req.Where != "" {
			src = filter.NewSelect(t, req.Where, "", logger)
		}
		res := &TableData{Rows: [][]*string{}}
		for _, c := range t.Schema().Columns() {
			res.Columns = append(res.Columns, ColumnInfo{Name: c.Name, Type: c.Kind})
		}
		for {
			e, err := src.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				return err
			}
			for r := 0; r < e.Rows(); r++ {
				if len(res.Rows) == req.MaxRows {
					res.MoreRows = true
					data = res
					return nil
				}
				res.Rows = append(res.Rows, textRow(e, r))
			}
		}
		data = res
		return nil
	})
	return data, err
}

func textRow(e *extent.Extent, r int) []*string {
	row := make([]*string, e.Schema().Len())
	for c := range row {
		v := e.Value(r, c)
		if v.IsNull() {
			continue
		}
		text := v.Text()
		row[c] = &text
	}
	return row
}
