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

// Command tabulard serves the table operations
// of a working directory over HTTP.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/SnellerInc/tabular/compr"
	"github.com/SnellerInc/tabular/logging"
	"github.com/SnellerInc/tabular/service"
	"github.com/SnellerInc/tabular/table"
)

var version = "development"

func main() {
	args := os.Args[1:]
	if len(args) > 0 && args[0] == "-version" {
		if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			version = bi.Main.Version
		}
		fmt.Println(version)
		return
	}
	if err := runDaemon(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runDaemon(args []string) error {
	cfg, err := parseConfig(args, os.Stderr)
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Pretty: cfg.Pretty})
	if err != nil {
		return err
	}
	codec, err := compr.Compression(cfg.Codec)
	if err != nil {
		return err
	}
	store, err := table.Open(cfg.Dir, codec, &logger)
	if err != nil {
		return err
	}
	defer store.Close()

	svc := service.New(store, cfg.Helpers, &logger)
	srv := newServer(svc, &logger, time.Duration(cfg.Timeout))
	l, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return err
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info().Str("version", version).Str("addr", l.Addr().String()).
			Str("dir", cfg.Dir).Msg("tabulard listening")
		errc <- srv.Serve(l)
	}()

	// SIGINT, SIGTERM and /shutdown stop the daemon gracefully
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-c:
		logger.Info().Str("signal", sig.String()).Msg("stopping")
	case <-svc.Done():
	case err := <-errc:
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
