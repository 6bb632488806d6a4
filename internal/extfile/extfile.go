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

// Package extfile writes table files
// for the import commands.
package extfile

import (
	"bufio"
	"os"

	"github.com/SnellerInc/tabular/compr"
	"github.com/SnellerInc/tabular/extent"
	"github.com/cockroachdb/errors"
)

// Write writes every extent of src to a new
// table file at path and returns the number
// of rows written. src must advertise its
// schema. Nothing is left at path on error.
func Write(path string, src extent.Source, codec compr.Codec) (int64, error) {
	schema := extent.SchemaOf(src)
	if schema == nil {
		return 0, errors.New("extfile: source has no schema")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0640)
	if err != nil {
		return 0, err
	}
	buf := bufio.NewWriterSize(f, 256*1024)
	w, err := extent.NewWriter(buf, schema, codec)
	if err == nil {
		_, err = w.WriteAll(src)
	}
	if err == nil {
		err = buf.Flush()
	}
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return 0, err
	}
	return w.Rows(), nil
}
