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
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/SnellerInc/tabular/extent"
	"github.com/SnellerInc/tabular/reqerr"
	"github.com/SnellerInc/tabular/table"
	"github.com/rs/zerolog"
)

// ImportFiles copies the extents of table
// files, which must share one schema.
func (s *Service) ImportFiles(ctx context.Context, req *ImportFilesRequest) (*table.Info, error) {
	return s.write(ctx, "import-files", req.Table, func(in *inputs, _ *zerolog.Logger) (extent.Source, error) {
		if len(req.Paths) == 0 {
			return nil, reqerr.Requestf("import files: missing source paths")
		}
		var schema *extent.Schema
		srcs := make([]extent.Source, 0, len(req.Paths))
		for _, p := range req.Paths {
			f, err := os.Open(p)
			if err != nil {
				return nil, reqerr.Requestf("import files: %v", err)
			}
			in.closers = append(in.closers, f)
			r, err := extent.NewReader(f)
			if err != nil {
				return nil, reqerr.Requestf("import files: %s: %v", p, err)
			}
			if schema == nil {
				schema = r.Schema()
			} else if !schema.Equal(r.Schema()) {
				return nil, reqerr.Requestf("import files: %s has schema %s, expected %s", p, r.Schema(), schema)
			}
			srcs = append(srcs, r)
		}
		return extent.Concat(srcs...), nil
	})
}

// ImportData builds a table from rows of text.
func (s *Service) ImportData(ctx context.Context, req *ImportDataRequest) (*table.Info, error) {
	return s.write(ctx, "import-data", req.Table, func(_ *inputs, _ *zerolog.Logger) (extent.Source, error) {
		if req.MoreRows {
			return nil, reqerr.Requestf("import data: can not handle more rows")
		}
		schema, err := extent.NewSchema(req.Table, req.Columns)
		if err != nil {
			return nil, reqerr.Requestf("import data: %v", err)
		}
		b := extent.NewBuilder(schema)
		var exts []*extent.Extent
		for i, row := range req.Rows {
			if len(row) != schema.Len() {
				return nil, reqerr.Requestf("import data: row %d has %d fields, expected %d", i, len(row), schema.Len())
			}
			b.AddRow()
			for c, text := range row {
				col := schema.Column(c)
				if text == nil {
					if !col.Nullable {
						return nil, reqerr.Requestf("import data: row %d: column %q is not nullable", i, col.Name)
					}
					continue
				}
				v, err := extent.Parse(col.Kind, *text)
				if err != nil {
					return nil, reqerr.Requestf("import data: row %d, column %q: %v", i, col.Name, err)
				}
				b.Set(c, v)
			}
			if b.Full() {
				exts = append(exts, b.Build())
			}
		}
		if b.Rows() > 0 {
			exts = append(exts, b.Build())
		}
		return extent.NewSliceSource(schema, exts...), nil
	})
}

// ImportCSV converts one delimited text file
// with the csv helper.
func (s *Service) ImportCSV(ctx context.Context, req *ImportCSVRequest) (*table.Info, error) {
	var info *table.Info
	err := run(ctx, s, "import-csv", func(logger *zerolog.Logger) error {
		switch {
		case len(req.Paths) == 0:
			return reqerr.Requestf("import csv: missing source paths")
		case len(req.Paths) > 1:
			return reqerr.Requestf("import csv: only one source path is supported")
		}
		args := []string{"-schema", req.SchemaFile}
		if req.Separator != "" {
			args = append(args, "-sep", req.Separator)
		}
		if req.Comment != "" {
			args = append(args, "-comment", req.Comment)
		}
		if req.Skip > 0 {
			args = append(args, "-skip", strconv.Itoa(req.Skip))
		}
		args = append(args, req.Paths[0])
		var err error
		info, err = s.convert(ctx, logger, s.helpers.CSV, req.Table, args...)
		return err
	})
	return info, err
}

// ImportSQL copies a PostgreSQL table with the sql helper.
func (s *Service) ImportSQL(ctx context.Context, req *ImportSQLRequest) (*table.Info, error) {
	var info *table.Info
	err := run(ctx, s, "import-sql", func(logger *zerolog.Logger) error {
		var err error
		info, err = s.convert(ctx, logger, s.helpers.SQL, req.Table, "-dsn", req.DSN, req.Source)
		return err
	})
	return info, err
}

// ImportParquet converts a parquet file with the parquet helper.
func (s *Service) ImportParquet(ctx context.Context, req *ImportParquetRequest) (*table.Info, error) {
	var info *table.Info
	err := run(ctx, s, "import-parquet", func(logger *zerolog.Logger) error {
		var err error
		info, err = s.convert(ctx, logger, s.helpers.Parquet, req.Table, req.Path)
		return err
	})
	return info, err
}

// convert runs helper with args followed by a
// temporary output path, and publishes the
// result as table name
func (s *Service) convert(ctx context.Context, logger *zerolog.Logger, helper, name string, args ...string) (*table.Info, error) {
	if err := table.ValidateName(name); err != nil {
		return nil, err
	}
	tmp := s.store.TempPath(name)
	args = append([]string{"-codec", s.store.Codec().Name()}, args...)
	cmd := exec.CommandContext(ctx, helper, append(args, tmp)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	logger.Debug().Str("helper", helper).Strs("args", cmd.Args[1:]).Msg("running import helper")
	if err := cmd.Run(); err != nil {
		os.Remove(tmp)
		logger.Warn().Err(err).Str("helper", helper).Str("stderr", stderr.String()).Msg("import helper failed")
		return nil, reqerr.Requestf("%s failed", filepath.Base(helper))
	}
	return s.store.Adopt(name, tmp)
}
