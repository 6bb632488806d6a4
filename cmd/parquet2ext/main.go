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

// Command parquet2ext converts a parquet file
// with a flat schema into a table file.
//
// Usage:
//
//	parquet2ext [-codec zstd] input.parquet output
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/SnellerInc/tabular/compr"
	"github.com/SnellerInc/tabular/internal/extfile"
)

var dashcodec string

func init() {
	flag.StringVar(&dashcodec, "codec", "zstd", "compression of the output")
}

func exitf(f string, args ...any) {
	fmt.Fprintf(os.Stderr, f, args...)
	os.Exit(1)
}

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: parquet2ext [-codec zstd] input.parquet output")
		flag.PrintDefaults()
		os.Exit(2)
	}
	codec, err := compr.Compression(dashcodec)
	if err != nil {
		exitf("parquet2ext: %s\n", err)
	}
	f, err := os.Open(args[0])
	if err != nil {
		exitf("parquet2ext: %s\n", err)
	}
	defer f.Close()
	src, err := openSource(f, "parquet")
	if err != nil {
		exitf("parquet2ext: %s: %s\n", args[0], err)
	}
	defer src.Close()
	n, err := extfile.Write(args[1], src, codec)
	if err != nil {
		exitf("parquet2ext: %s\n", err)
	}
	fmt.Fprintf(os.Stderr, "parquet2ext: %d rows\n", n)
}
