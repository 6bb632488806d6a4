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

// Command csv2ext converts a delimited text
// file into a table file.
//
// Usage:
//
//	csv2ext -schema hint.yaml [-sep ,] [-comment #] [-skip n] [-codec zstd] input output
//
// The hint file describes the columns (see
// package xsv); the flags override its
// separator, comment and skip settings.
// An input of "-" reads standard input.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/SnellerInc/tabular/compr"
	"github.com/SnellerInc/tabular/internal/extfile"
	"github.com/SnellerInc/tabular/xsv"
	"github.com/cockroachdb/errors"
)

type options struct {
	schema  string
	sep     string
	comment string
	skip    int
	codec   string
}

func main() {
	var opts options
	flag.StringVar(&opts.schema, "schema", "", "hint file describing the columns (YAML or JSON)")
	flag.StringVar(&opts.sep, "sep", "", "field separator (a character or \\t)")
	flag.StringVar(&opts.comment, "comment", "", "comment line prefix")
	flag.IntVar(&opts.skip, "skip", -1, "number of leading records to skip")
	flag.StringVar(&opts.codec, "codec", "zstd", "compression of the output")
	flag.Parse()
	args := flag.Args()
	if len(args) != 2 || opts.schema == "" {
		fmt.Fprintln(os.Stderr, "usage: csv2ext -schema hint.yaml [flags] input output")
		flag.PrintDefaults()
		os.Exit(2)
	}
	n, err := run(&opts, args[0], args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "csv2ext: %s\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "csv2ext: %d rows\n", n)
}

func loadHint(opts *options) (*xsv.Hint, error) {
	buf, err := os.ReadFile(opts.schema)
	if err != nil {
		return nil, err
	}
	hint, err := xsv.ParseHint(buf)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", opts.schema)
	}
	if opts.sep != "" {
		if hint.Separator, err = xsv.ParseDelim(opts.sep); err != nil {
			return nil, err
		}
	}
	if opts.comment != "" {
		if hint.Comment, err = xsv.ParseDelim(opts.comment); err != nil {
			return nil, err
		}
	}
	if opts.skip >= 0 {
		hint.SkipRecords = opts.skip
	}
	return hint, nil
}

func run(opts *options, input, output string) (int64, error) {
	hint, err := loadHint(opts)
	if err != nil {
		return 0, err
	}
	codec, err := compr.Compression(opts.codec)
	if err != nil {
		return 0, err
	}
	var r io.Reader = os.Stdin
	if input != "-" {
		f, err := os.Open(input)
		if err != nil {
			return 0, err
		}
		defer f.Close()
		r = f
	}
	conv, err := xsv.NewConverter(hint.Chopper(r), hint, "csv")
	if err != nil {
		return 0, err
	}
	return extfile.Write(output, conv, codec)
}
