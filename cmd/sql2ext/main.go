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

// Command sql2ext copies a PostgreSQL table
// into a table file.
//
// Usage:
//
//	sql2ext -dsn postgres://... [-codec zstd] [schema.]table output
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/SnellerInc/tabular/compr"
	"github.com/SnellerInc/tabular/internal/extfile"
	"github.com/jackc/pgx/v5"
)

var (
	dashdsn     string
	dashcodec   string
	dashtimeout time.Duration
)

func init() {
	flag.StringVar(&dashdsn, "dsn", os.Getenv("DATABASE_URL"), "PostgreSQL connection string (default $DATABASE_URL)")
	flag.StringVar(&dashcodec, "codec", "zstd", "compression of the output")
	flag.DurationVar(&dashtimeout, "timeout", 0, "give up after this long (0 means never)")
}

func exitf(f string, args ...any) {
	fmt.Fprintf(os.Stderr, f, args...)
	os.Exit(1)
}

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) != 2 || dashdsn == "" {
		fmt.Fprintln(os.Stderr, "usage: sql2ext -dsn postgres://... [schema.]table output")
		flag.PrintDefaults()
		os.Exit(2)
	}
	codec, err := compr.Compression(dashcodec)
	if err != nil {
		exitf("sql2ext: %s\n", err)
	}
	ctx := context.Background()
	if dashtimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, dashtimeout)
		defer cancel()
	}
	conn, err := pgx.Connect(ctx, dashdsn)
	if err != nil {
		exitf("sql2ext: connecting: %s\n", err)
	}
	defer conn.Close(context.Background())

	query := "SELECT * FROM " + pgx.Identifier(strings.Split(args[0], ".")).Sanitize()
	rows, err := conn.Query(ctx, query)
	if err != nil {
		exitf("sql2ext: %s: %s\n", query, err)
	}
	src, err := newRowSource(rows, args[0])
	if err != nil {
		rows.Close()
		exitf("sql2ext: %s\n", err)
	}
	n, err := extfile.Write(args[1], src, codec)
	rows.Close()
	if err != nil {
		exitf("sql2ext: %s\n", err)
	}
	fmt.Fprintf(os.Stderr, "sql2ext: %d rows\n", n)
}
