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

package main

import (
	"encoding/json"
	"flag"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/SnellerInc/tabular/service"
	"github.com/cockroachdb/errors"
	"sigs.k8s.io/yaml"
)

// duration is a time.Duration written
// as a string ("30s", "5m") in config files
type duration time.Duration

func (d *duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = duration(v)
	return nil
}

func (d duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

type config struct {
	Listen   string          `json:"listen"`
	Dir      string          `json:"dir"`
	Codec    string          `json:"codec"`
	Helpers  service.Helpers `json:"helpers"`
	Timeout  duration        `json:"timeout"`
	LogLevel string          `json:"log_level"`
	Pretty   bool            `json:"pretty"`
}

func defaultConfig() config {
	user := os.Getenv("USER")
	if user == "" {
		user = "nobody"
	}
	return config{
		Listen:  "127.0.0.1:49476",
		Dir:     filepath.Join(os.TempDir(), "tabulard."+user),
		Codec:   "zstd",
		Helpers: service.DefaultHelpers,
	}
}

func loadConfig(path string, cfg *config) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.UnmarshalStrict(buf, cfg); err != nil {
		return errors.Wrapf(err, "parsing %s", path)
	}
	return nil
}

// parseConfig builds the daemon configuration:
// defaults, then the -config file, then flags.
func parseConfig(args []string, stderr io.Writer) (*config, error) {
	fs := flag.NewFlagSet("tabulard", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "YAML configuration file")
	listen := fs.String("e", "", "endpoint to listen on (REST API)")
	dir := fs.String("dir", "", "working directory holding the tables")
	codec := fs.String("codec", "", "compression for new tables (zstd, s2, snappy, none)")
	csvHelper := fs.String("csv2ext", "", "command converting delimited text")
	sqlHelper := fs.String("sql2ext", "", "command importing SQL tables")
	parquetHelper := fs.String("parquet2ext", "", "command converting parquet files")
	timeout := fs.Duration("timeout", 0, "request timeout (0 means none)")
	level := fs.String("log-level", "", "log level (debug, info, warn, error)")
	pretty := fs.Bool("pretty", false, "human readable logs")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, errors.Newf("unexpected argument %q", fs.Arg(0))
	}
	cfg := defaultConfig()
	if *configPath != "" {
		if err := loadConfig(*configPath, &cfg); err != nil {
			return nil, err
		}
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "e":
			cfg.Listen = *listen
		case "dir":
			cfg.Dir = *dir
		case "codec":
			cfg.Codec = *codec
		case "csv2ext":
			cfg.Helpers.CSV = *csvHelper
		case "sql2ext":
			cfg.Helpers.SQL = *sqlHelper
		case "parquet2ext":
			cfg.Helpers.Parquet = *parquetHelper
		case "timeout":
			cfg.Timeout = duration(*timeout)
		case "log-level":
			cfg.LogLevel = *level
		case "pretty":
			cfg.Pretty = *pretty
		}
	})
	return &cfg, nil
}
