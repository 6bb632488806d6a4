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

package extent

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/SnellerInc/tabular/compr"
	"github.com/cockroachdb/errors"
	"golang.org/x/crypto/blake2b"
)

// Table files begin with magic, followed by
// a uvarint-prefixed JSON header. Each extent
// is then stored as a frame:
//
//	uvarint(len(block)) | block | blake2b-256(block)
//
// where block is the compressed column payload.
var magic = []byte("TBX\x01")

// ErrCorrupt is returned when a table
// file fails validation.
var ErrCorrupt = errors.New("extent: corrupt table file")

type fileHeader struct {
	Codec  string  `json:"codec"`
	Schema *Schema `json:"schema"`
}

// Writer writes extents in the table file format.
type Writer struct {
	w      io.Writer
	schema *Schema
	codec  compr.Codec
	raw    []byte
	block  []byte
	rows   int64
}

// NewWriter writes a table file header for
// schema to w and returns a Writer for its
// extents.
func NewWriter(w io.Writer, schema *Schema, codec compr.Codec) (*Writer, error) {
	hdr, err := json.Marshal(fileHeader{Codec: codec.Name(), Schema: schema})
	if err != nil {
		return nil, err
	}
	buf := append([]byte(nil), magic...)
	buf = binary.AppendUvarint(buf, uint64(len(hdr)))
	buf = append(buf, hdr...)
	if _, err := w.Write(buf); err != nil {
		return nil, err
	}
	return &Writer{w: w, schema: schema, codec: codec}, nil
}

// Schema returns the schema of the file.
func (w *Writer) Schema() *Schema { return w.schema }

// Rows returns the number of rows written so far.
func (w *Writer) Rows() int64 { return w.rows }

// Write appends one extent. Its schema
// must equal the schema of the file.
func (w *Writer) Write(e *Extent) error {
	if !w.schema.Equal(e.schema) {
		return fmt.Errorf("extent: writing %s into a file of %s", e.schema, w.schema)
	}
	raw, err := encodeExtent(w.raw[:0], e)
	if err != nil {
		return err
	}
	w.raw = raw
	w.block = w.codec.Compress(raw, w.block[:0])
	sum := blake2b.Sum256(w.block)
	var pfx [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(pfx[:], uint64(len(w.block)))
	if _, err := w.w.Write(pfx[:n]); err != nil {
		return err
	}
	if _, err := w.w.Write(w.block); err != nil {
		return err
	}
	if _, err := w.w.Write(sum[:]); err != nil {
		return err
	}
	w.rows += int64(e.rows)
	return nil
}

// WriteAll writes every extent of src and
// returns the number of extents written.
func (w *Writer) WriteAll(src Source) (int, error) {
	n := 0
	err := ForEach(src, func(e *Extent) error {
		n++
		return w.Write(e)
	})
	return n, err
}

// Reader reads the extents of a table file.
// It implements Source.
type Reader struct {
	r      *bufio.Reader
	schema *Schema
	codec  compr.Codec
	block  []byte
	raw    []byte
}

// NewReader reads the table file header from r.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	var m [4]byte
	if _, err := io.ReadFull(br, m[:]); err != nil {
		return nil, errors.Wrap(ErrCorrupt, "reading magic")
	}
	if !bytes.Equal(m[:], magic) {
		return nil, errors.Wrap(ErrCorrupt, "bad magic")
	}
	n, err := binary.ReadUvarint(br)
	if err != nil || n > 1<<24 {
		return nil, errors.Wrap(ErrCorrupt, "reading header length")
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(br, buf); err != nil {
		return nil, errors.Wrap(ErrCorrupt, "reading header")
	}
	var hdr fileHeader
	if err := json.Unmarshal(buf, &hdr); err != nil {
		return nil, errors.Wrapf(ErrCorrupt, "decoding header: %v", err)
	}
	if hdr.Schema == nil {
		return nil, errors.Wrap(ErrCorrupt, "header has no schema")
	}
	codec, err := compr.Compression(hdr.Codec)
	if err != nil {
		return nil, errors.Wrapf(ErrCorrupt, "%v", err)
	}
	return &Reader{r: br, schema: hdr.Schema, codec: codec}, nil
}

// Schema returns the schema recorded in the header.
func (r *Reader) Schema() *Schema { return r.schema }

// Codec returns the name of the compression
// algorithm used by the file.
func (r *Reader) Codec() string { return r.codec.Name() }

// Next implements Source.
func (r *Reader) Next() (*Extent, error) {
	n, err := binary.ReadUvarint(r.r)
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil || n > math.MaxInt32 {
		return nil, errors.Wrap(ErrCorrupt, "reading frame length")
	}
	if cap(r.block) < int(n)+blake2b.Size256 {
		r.block = make([]byte, int(n)+blake2b.Size256)
	}
	r.block = r.block[:int(n)+blake2b.Size256]
	if _, err := io.ReadFull(r.r, r.block); err != nil {
		return nil, errors.Wrap(ErrCorrupt, "truncated frame")
	}
	body, sum := r.block[:n], r.block[n:]
	got := blake2b.Sum256(body)
	if !bytes.Equal(got[:], sum) {
		return nil, errors.Wrap(ErrCorrupt, "checksum mismatch")
	}
	r.raw, err = r.codec.Decompress(body, r.raw[:0])
	if err != nil {
		return nil, errors.Wrapf(ErrCorrupt, "decompress: %v", err)
	}
	return decodeExtent(r.raw, r.schema)
}

// the uncompressed payload is
//
//	uvarint(rows)
//	per column:
//	  [nullable] uvarint(len(bitmap)) | roaring bitmap
//	  values
func encodeExtent(dst []byte, e *Extent) ([]byte, error) {
	dst = binary.AppendUvarint(dst, uint64(e.rows))
	for i := range e.cols {
		c := &e.cols[i]
		if c.nulls != nil {
			bm, err := c.nulls.ToBytes()
			if err != nil {
				return nil, err
			}
			dst = binary.AppendUvarint(dst, uint64(len(bm)))
			dst = append(dst, bm...)
		}
		switch c.kind {
		case Bool, Byte:
			for _, v := range c.ints {
				dst = append(dst, byte(v))
			}
		case Int32:
			for _, v := range c.ints {
				dst = binary.LittleEndian.AppendUint32(dst, uint32(v))
			}
		case Int64:
			for _, v := range c.ints {
				dst = binary.LittleEndian.AppendUint64(dst, uint64(v))
			}
		case Double:
			for _, v := range c.flts {
				dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(v))
			}
		case Bytes:
			for r := 0; r < e.rows; r++ {
				v := c.data[c.offs[r]:c.offs[r+1]]
				dst = binary.AppendUvarint(dst, uint64(len(v)))
				dst = append(dst, v...)
			}
		}
	}
	return dst, nil
}

type decoder struct {
	buf []byte
	err error
}

func (d *decoder) uvarint() int {
	if d.err != nil {
		return 0
	}
	v, n := binary.Uvarint(d.buf)
	if n <= 0 || v > math.MaxInt32 {
		d.err = errors.Wrap(ErrCorrupt, "bad varint")
		return 0
	}
	d.buf = d.buf[n:]
	return int(v)
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n > len(d.buf) {
		d.err = errors.Wrap(ErrCorrupt, "short extent payload")
		return nil
	}
	b := d.buf[:n:n]
	d.buf = d.buf[n:]
	return b
}

func decodeExtent(raw []byte, schema *Schema) (*Extent, error) {
	d := &decoder{buf: raw}
	rows := d.uvarint()
	e := &Extent{schema: schema, rows: rows, cols: make([]column, schema.Len())}
	for i := range e.cols {
		meta := schema.Column(i)
		c := newColumn(meta)
		if meta.Nullable {
			bm := d.take(d.uvarint())
			if d.err != nil {
				return nil, d.err
			}
			if err := c.nulls.UnmarshalBinary(bm); err != nil {
				return nil, errors.Wrapf(ErrCorrupt, "null bitmap: %v", err)
			}
		}
		switch meta.Kind {
		case Bool, Byte:
			b := d.take(rows)
			c.ints = make([]int64, len(b))
			for j := range b {
				c.ints[j] = int64(b[j])
			}
		case Int32:
			b := d.take(rows * 4)
			c.ints = make([]int64, len(b)/4)
			for j := range c.ints {
				c.ints[j] = int64(int32(binary.LittleEndian.Uint32(b[j*4:])))
			}
		case Int64:
			b := d.take(rows * 8)
			c.ints = make([]int64, len(b)/8)
			for j := range c.ints {
				c.ints[j] = int64(binary.LittleEndian.Uint64(b[j*8:]))
			}
		case Double:
			b := d.take(rows * 8)
			c.flts = make([]float64, len(b)/8)
			for j := range c.flts {
				c.flts[j] = math.Float64frombits(binary.LittleEndian.Uint64(b[j*8:]))
			}
		case Bytes:
			for j := 0; j < rows && d.err == nil; j++ {
				c.data = append(c.data, d.take(d.uvarint())...)
				c.offs = append(c.offs, uint32(len(c.data)))
			}
		}
		if d.err != nil {
			return nil, d.err
		}
		e.cols[i] = c
		e.size += rows * meta.Kind.width()
		e.size += len(c.data)
	}
	if len(d.buf) != 0 {
		return nil, errors.Wrap(ErrCorrupt, "trailing bytes in extent payload")
	}
	return e, nil
}
