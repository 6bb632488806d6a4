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

package table

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/SnellerInc/tabular/compr"
	"github.com/SnellerInc/tabular/extent"
	"github.com/SnellerInc/tabular/logging"
	"github.com/SnellerInc/tabular/reqerr"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"
	"golang.org/x/exp/slices"
)

const (
	filePrefix = "table."
	tempPrefix = "tmp."
)

// Info describes a table of the catalog.
type Info struct {
	Name     string         `json:"name"`
	Schema   *extent.Schema `json:"schema"`
	Codec    string         `json:"codec"`
	Size     int64          `json:"size"`
	Modified time.Time      `json:"modified"`
}

// Store is the catalog of the tables
// in a working directory. A Store holds
// an exclusive lock on the directory
// until it is closed.
type Store struct {
	dir    string
	codec  compr.Codec
	logger *zerolog.Logger
	lock   *os.File

	mu     sync.Mutex
	tables map[string]*Info
}

// Open opens (creating it if necessary) the
// working directory dir. New tables are written
// with codec. The catalog is rebuilt from the
// headers of the table files, and temporary
// files left behind by an earlier process are
// removed.
func Open(dir string, codec compr.Codec, logger *zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, errors.Wrapf(err, "creating %s", dir)
	}
	lock, err := lockDir(dir)
	if err != nil {
		return nil, err
	}
	s := &Store{
		dir:    dir,
		codec:  codec,
		logger: logging.OrNop(logger),
		lock:   lock,
		tables: make(map[string]*Info),
	}
	if err := s.rescan(); err != nil {
		unlockDir(lock)
		return nil, err
	}
	return s, nil
}

func (s *Store) rescan() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return errors.Wrapf(err, "reading %s", s.dir)
	}
	for _, ent := range entries {
		name := ent.Name()
		switch {
		case strings.HasPrefix(name, tempPrefix):
			if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
				return errors.Wrapf(err, "removing stale %s", name)
			}
			s.logger.Debug().Str("file", name).Msg("removed stale temporary file")
		case strings.HasPrefix(name, filePrefix) && ent.Type().IsRegular():
			tbl := strings.TrimPrefix(name, filePrefix)
			if ValidateName(tbl) != nil {
				continue
			}
			info, err := readInfo(tbl, s.Path(tbl))
			if err != nil {
				s.logger.Warn().Err(err).Str("file", name).Msg("skipping unreadable table file")
				continue
			}
			s.tables[tbl] = info
		}
	}
	s.logger.Info().Str("dir", s.dir).Int("tables", len(s.tables)).Msg("catalog loaded")
	return nil
}

// readInfo reads the header of the table file at path
func readInfo(name, path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r, err := extent.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return &Info{
		Name:     name,
		Schema:   r.Schema().WithName(name),
		Codec:    r.Codec(),
		Size:     st.Size(),
		Modified: st.ModTime().UTC(),
	}, nil
}

// Close releases the working directory.
func (s *Store) Close() error { return unlockDir(s.lock) }

// Dir returns the working directory.
func (s *Store) Dir() string { return s.dir }

// Codec returns the compression used for new tables.
func (s *Store) Codec() compr.Codec { return s.codec }

// Path returns the path of the file of table name.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, filePrefix+name)
}

// TempPath returns a fresh temporary path
// for the contents of table name.
func (s *Store) TempPath(name string) string {
	return filepath.Join(s.dir, tempPrefix+ksuid.New().String()+"."+name)
}

// Has returns whether table name exists.
func (s *Store) Has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tables[name]
	return ok
}

// Info returns the description of table name.
func (s *Store) Info(name string) (*Info, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.tables[name]
	if !ok {
		return nil, reqerr.InvalidTable(name, "no such table")
	}
	return info, nil
}

// List returns the tables whose names match
// the SQL LIKE pattern, ordered by name.
// An empty pattern matches every table.
func (s *Store) List(pattern string) []*Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Info
	for name, info := range s.tables {
		if matchPattern(name, pattern) {
			out = append(out, info)
		}
	}
	slices.SortFunc(out, func(a, b *Info) bool {
		return a.Name < b.Name
	})
	return out
}

// Table is an open table file. It implements
// extent.Source and extent.Typed.
type Table struct {
	*extent.Reader
	f *os.File
}

// Close closes the table file.
func (t *Table) Close() error { return t.f.Close() }

// Open opens table name for reading.
func (s *Store) Open(name string) (*Table, error) {
	if _, err := s.Info(name); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path(name))
	if err != nil {
		return nil, errors.Wrapf(err, "opening table %s", name)
	}
	r, err := extent.NewReader(f)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "reading table %s", name)
	}
	return &Table{Reader: r, f: f}, nil
}

// Output is a table being written. Its contents
// replace the table only when it is committed.
type Output struct {
	store *Store
	name  string
	tmp   string
	f     *os.File
	buf   *bufio.Writer
	w     *extent.Writer
}

// Create starts writing table name with
// the given schema. The table (if it already
// exists) is unaffected until Commit.
func (s *Store) Create(name string, schema *extent.Schema) (*Output, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	tmp := s.TempPath(name)
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0640)
	if err != nil {
		return nil, errors.Wrapf(err, "creating %s", tmp)
	}
	buf := bufio.NewWriterSize(f, 256*1024)
	w, err := extent.NewWriter(buf, schema.WithName(name), s.codec)
	if err != nil {
		f.Close()
		os.Remove(tmp)
		return nil, err
	}
	return &Output{store: s, name: name, tmp: tmp, f: f, buf: buf, w: w}, nil
}

// Schema returns the schema of the output.
func (o *Output) Schema() *extent.Schema { return o.w.Schema() }

// Write appends e to the output.
func (o *Output) Write(e *extent.Extent) error { return o.w.Write(e) }

// Rows returns the number of rows written so far.
func (o *Output) Rows() int64 { return o.w.Rows() }

// Abort discards the output.
func (o *Output) Abort() {
	o.f.Close()
	os.Remove(o.tmp)
}

// Commit publishes the output as the table,
// atomically replacing any previous contents.
func (o *Output) Commit() (*Info, error) {
	err := o.buf.Flush()
	if err == nil {
		err = o.f.Sync()
	}
	if cerr := o.f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(o.tmp)
		return nil, errors.Wrapf(err, "writing table %s", o.name)
	}
	return o.store.adopt(o.name, o.tmp)
}

// Adopt publishes the table file written by
// someone else at path (which should come from
// TempPath) as table name.
func (s *Store) Adopt(name, path string) (*Info, error) {
	if err := ValidateName(name); err != nil {
		os.Remove(path)
		return nil, err
	}
	return s.adopt(name, path)
}

func (s *Store) adopt(name, path string) (*Info, error) {
	info, err := readInfo(name, path)
	if err != nil {
		os.Remove(path)
		return nil, errors.Wrapf(err, "table %s", name)
	}
	if err := os.Rename(path, s.Path(name)); err != nil {
		os.Remove(path)
		return nil, errors.Wrapf(err, "publishing table %s", name)
	}
	s.mu.Lock()
	s.tables[name] = info
	s.mu.Unlock()
	s.logger.Debug().Str("table", name).Str("schema", info.Schema.String()).
		Int64("size", info.Size).Msg("table published")
	return info, nil
}

// Write writes every extent of src to table name.
// The schema of the table is the schema advertised
// by src or, failing that, the schema of its first
// extent; a source that provides neither is a
// request error.
func (s *Store) Write(name string, src extent.Source) (*Info, error) {
	schema := extent.SchemaOf(src)
	var first *extent.Extent
	if schema == nil {
		e, err := src.Next()
		if err != nil && err != io.EOF {
			return nil, err
		}
		if e == nil {
			return nil, reqerr.Requestf("cannot determine the schema of table %s", name)
		}
		first, schema = e, e.Schema()
	}
	out, err := s.Create(name, schema)
	if err != nil {
		return nil, err
	}
	done := false
	defer func() {
		// also reached when an operator panics
		if !done {
			out.Abort()
		}
	}()
	if first != nil {
		if err := out.Write(first); err != nil {
			return nil, err
		}
	}
	if err := extent.ForEach(src, out.Write); err != nil {
		return nil, err
	}
	done = true
	return out.Commit()
}
