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

package xsv

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"io"
	"strings"
)

// RowChopper splits its input into records
// of fields.
type RowChopper interface {
	// Next returns the fields of the next record,
	// or io.EOF once the input is exhausted. The
	// slice is only valid until the following call.
	Next() ([]string, error)
	// Line returns the line of the input on
	// which the last record returned started.
	Line() int
}

// Chopper returns the chopper of r described
// by the hint: TSV for a tab separator, CSV
// otherwise.
func (h *Hint) Chopper(r io.Reader) RowChopper {
	if h.Separator == '\t' {
		return NewTSVChopper(r, h.Comment, h.SkipRecords)
	}
	return NewCSVChopper(r, h.Separator, h.Comment, h.SkipRecords)
}

type csvChopper struct {
	cr   *csv.Reader
	skip int
	line int
}

// NewCSVChopper returns a chopper of RFC 4180
// records. A zero sep means a comma. Lines
// starting with comment (if not zero) are
// skipped, and so are the first skip records.
// Quoted fields may span several lines.
func NewCSVChopper(r io.Reader, sep, comment Delim, skip int) RowChopper {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	cr.LazyQuotes = true
	if sep != 0 {
		cr.Comma = rune(sep)
	}
	cr.Comment = rune(comment)
	return &csvChopper{cr: cr, skip: skip}
}

func (c *csvChopper) Next() ([]string, error) {
	for {
		fields, err := c.cr.Read()
		if err != nil {
			return nil, err
		}
		c.line, _ = c.cr.FieldPos(0)
		if c.skip > 0 {
			c.skip--
			continue
		}
		return fields, nil
	}
}

func (c *csvChopper) Line() int { return c.line }

type tsvChopper struct {
	s       *bufio.Scanner
	comment []byte
	skip    int
	line    int
	fields  []string
}

// NewTSVChopper returns a chopper of tab
// separated records, one per line. Inside a
// field the escapes \\, \t, \n and \r stand for
// a backslash, tab, newline and carriage return.
// Empty lines and lines starting with comment
// (if not zero) are skipped, and so are the
// first skip records.
func NewTSVChopper(r io.Reader, comment Delim, skip int) RowChopper {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	c := &tsvChopper{s: s, skip: skip}
	if comment != 0 {
		c.comment = []byte(string(rune(comment)))
	}
	return c
}

func (c *tsvChopper) Next() ([]string, error) {
	for c.s.Scan() {
		c.line++
		text := bytes.TrimSuffix(c.s.Bytes(), []byte{'\r'})
		if len(text) == 0 || (c.comment != nil && bytes.HasPrefix(text, c.comment)) {
			continue
		}
		if c.skip > 0 {
			c.skip--
			continue
		}
		c.fields = c.fields[:0]
		for {
			field, rest, more := bytes.Cut(text, []byte{'\t'})
			c.fields = append(c.fields, unescapeTSV(field))
			if !more {
				break
			}
			text = rest
		}
		return c.fields, nil
	}
	if err := c.s.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (c *tsvChopper) Line() int { return c.line }

// unescapeTSV decodes the escapes of a field;
// a backslash before any other byte is kept
func unescapeTSV(b []byte) string {
	i := bytes.IndexByte(b, '\\')
	if i < 0 {
		return string(b)
	}
	var sb strings.Builder
	sb.Grow(len(b))
	for ; i >= 0; i = bytes.IndexByte(b, '\\') {
		sb.Write(b[:i])
		b = b[i+1:]
		if len(b) > 0 {
			if c, ok := tsvEscapes[b[0]]; ok {
				sb.WriteByte(c)
				b = b[1:]
				continue
			}
		}
		sb.WriteByte('\\')
	}
	sb.Write(b)
	return sb.String()
}

var tsvEscapes = map[byte]byte{
	'\\': '\\',
	't':  '\t',
	'n':  '\n',
	'r':  '\r',
}
