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

// Package compr provides a unified interface wrapping
// third-party compression libraries.
package compr

import (
	"fmt"
	"runtime"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Codec compresses and decompresses
// whole blocks of data.
//
// Implementations must be safe to use
// from multiple goroutines simultaneously.
type Codec interface {
	// Name is the name of the compression algorithm.
	// It is recorded in table file headers.
	Name() string
	// Compress appends the compressed contents
	// of src to dst and returns the result.
	Compress(src, dst []byte) []byte
	// Decompress appends the decompressed contents
	// of src to dst and returns the result.
	Decompress(src, dst []byte) ([]byte, error)
}

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	// by default, concurrency is set to min(4, GOMAXPROCS);
	// we'd like it to *always* be GOMAXPROCS
	z, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(runtime.GOMAXPROCS(0)))
	if err != nil {
		panic(err)
	}
	zstdDecoder = z
	w, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	if err != nil {
		panic(err)
	}
	zstdEncoder = w
}

type zstdCodec struct{}

func (zstdCodec) Name() string { return "zstd" }

func (zstdCodec) Compress(src, dst []byte) []byte {
	return zstdEncoder.EncodeAll(src, dst)
}

func (zstdCodec) Decompress(src, dst []byte) ([]byte, error) {
	return zstdDecoder.DecodeAll(src, dst)
}

type s2Codec struct{}

func (s2Codec) Name() string { return "s2" }

func (s2Codec) Compress(src, dst []byte) []byte {
	return append(dst, s2.Encode(nil, src)...)
}

func (s2Codec) Decompress(src, dst []byte) ([]byte, error) {
	n, err := s2.DecodedLen(src)
	if err != nil {
		return dst, err
	}
	out, err := s2.Decode(make([]byte, n), src)
	if err != nil {
		return dst, err
	}
	return append(dst, out...), nil
}

type snappyCodec struct{}

func (snappyCodec) Name() string { return "snappy" }

func (snappyCodec) Compress(src, dst []byte) []byte {
	return append(dst, snappy.Encode(nil, src)...)
}

func (snappyCodec) Decompress(src, dst []byte) ([]byte, error) {
	out, err := snappy.Decode(nil, src)
	if err != nil {
		return dst, err
	}
	return append(dst, out...), nil
}

type noneCodec struct{}

func (noneCodec) Name() string { return "none" }

func (noneCodec) Compress(src, dst []byte) []byte { return append(dst, src...) }

func (noneCodec) Decompress(src, dst []byte) ([]byte, error) { return append(dst, src...), nil }

var codecs = map[string]Codec{
	"zstd":   zstdCodec{},
	"s2":     s2Codec{},
	"snappy": snappyCodec{},
	"none":   noneCodec{},
}

// Compression selects a compression algorithm by name.
// The returned Codec will return the same value
// for Codec.Name as the specified name.
func Compression(name string) (Codec, error) {
	c, ok := codecs[name]
	if !ok {
		return nil, fmt.Errorf("compr: unknown compression %q", name)
	}
	return c, nil
}

// Names lists the supported compression algorithms.
func Names() []string {
	out := maps.Keys(codecs)
	slices.Sort(out)
	return out
}
