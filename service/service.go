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

// Package service implements the table operations
// offered by the daemon on top of a table.Store.
//
// Requests are executed one at a time. Every
// operation reads its inputs from stored tables
// and publishes its result as a new table; an
// output is only visible once it is complete.
package service

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/SnellerInc/tabular/extent"
	"github.com/SnellerInc/tabular/logging"
	"github.com/SnellerInc/tabular/table"
	"github.com/rs/zerolog"
)

// Helpers holds the commands used
// to convert foreign data into tables.
type Helpers struct {
	CSV     string `json:"csv2ext"`
	SQL     string `json:"sql2ext"`
	Parquet string `json:"parquet2ext"`
}

// DefaultHelpers expects the helpers in $PATH.
var DefaultHelpers = Helpers{
	CSV:     "csv2ext",
	SQL:     "sql2ext",
	Parquet: "parquet2ext",
}

// Service executes requests against a Store.
type Service struct {
	store   *table.Store
	helpers Helpers
	logger  *zerolog.Logger

	mu       sync.Mutex
	stopOnce sync.Once
	stopped  chan struct{}
}

// New returns a Service over store.
// logger may be nil.
func New(store *table.Store, helpers Helpers, logger *zerolog.Logger) *Service {
	return &Service{
		store:   store,
		helpers: helpers,
		logger:  logging.OrNop(logger),
		stopped: make(chan struct{}),
	}
}

// Store returns the underlying table store.
func (s *Service) Store() *table.Store { return s.store }

// Ping checks that the service is running.
func (s *Service) Ping(ctx context.Context) error {
	return run(ctx, s, "ping", func(*zerolog.Logger) error { return nil })
}

// Shutdown asks the service to stop; Done is
// closed once Shutdown has been called.
func (s *Service) Shutdown() {
	s.stopOnce.Do(func() {
		s.logger.Info().Msg("shutdown requested")
		close(s.stopped)
	})
}

// Done returns a channel that is closed
// when Shutdown is called.
func (s *Service) Done() <-chan struct{} { return s.stopped }

// HasTable returns whether table name exists.
func (s *Service) HasTable(ctx context.Context, name string) (bool, error) {
	if err := table.ValidateName(name); err != nil {
		return false, err
	}
	return s.store.Has(name), nil
}

// ListTables returns the tables whose names
// match the SQL LIKE pattern.
func (s *Service) ListTables(ctx context.Context, pattern string) []*table.Info {
	return s.store.List(pattern)
}

// TableInfo describes table name.
func (s *Service) TableInfo(ctx context.Context, name string) (*table.Info, error) {
	return s.store.Info(name)
}

// loggerFor prefers the request logger
// carried by ctx
func (s *Service) loggerFor(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return s.logger
}

// run executes fn while holding the request lock
func run(ctx context.Context, s *Service, op string, fn func(logger *zerolog.Logger) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	logger := s.loggerFor(ctx).With().Str("op", op).Logger()
	start := time.Now()
	err := fn(&logger)
	ev := logger.Debug()
	if err != nil {
		ev = logger.Info().Err(err)
	}
	ev.Dur("elapsed", time.Since(start)).Msg("request done")
	return err
}

// write runs fn, which builds the operator whose
// output becomes table name, and closes every
// table fn opened
func (s *Service) write(ctx context.Context, op, name string, fn func(in *inputs, logger *zerolog.Logger) (extent.Source, error)) (*table.Info, error) {
	var info *table.Info
	err := run(ctx, s, op, func(logger *zerolog.Logger) error {
		if err := table.ValidateName(name); err != nil {
			return err
		}
		in := &inputs{store: s.store}
		defer in.close()
		src, err := fn(in, logger)
		if err != nil {
			return err
		}
		info, err = s.store.Write(name, src)
		return err
	})
	return info, err
}

// inputs tracks the files opened by a request
type inputs struct {
	store   *table.Store
	closers []io.Closer
}

func (in *inputs) open(name string) (*table.Table, error) {
	t, err := in.store.Open(name)
	if err != nil {
		return nil, err
	}
	in.closers = append(in.closers, t)
	return t, nil
}

func (in *inputs) close() {
	for _, c := range in.closers {
		c.Close()
	}
	in.closers = nil
}
