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
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/SnellerInc/tabular/logging"
	"github.com/SnellerInc/tabular/reqerr"
	"github.com/SnellerInc/tabular/service"
	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type server struct {
	svc     *service.Service
	logger  *zerolog.Logger
	timeout time.Duration
	echo    *echo.Echo
	// abort is called with the value of a
	// recovered assertion failure
	abort func(v any)
}

func newServer(svc *service.Service, logger *zerolog.Logger, timeout time.Duration) *server {
	s := &server{
		svc:     svc,
		logger:  logging.OrNop(logger),
		timeout: timeout,
	}
	s.abort = func(v any) {
		s.logger.Fatal().Str("panic", fmt.Sprint(v)).Msg("internal assertion failed")
	}
	s.echo = s.handler()
	return s
}

func (s *server) handler() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &customValidator{validator: validator.New()}
	e.HTTPErrorHandler = s.errorHandler
	e.Use(s.abortOnAssertion, s.requestContext, s.logRequest)

	e.GET("/ping", s.pingHandler)
	e.POST("/shutdown", s.shutdownHandler)
	e.GET("/tables", s.tablesHandler)
	e.GET("/tables/:name", s.tableHandler)
	e.GET("/tables/:name/exists", s.hasTableHandler)
	e.POST("/import/files", handle(s.svc.ImportFiles))
	e.POST("/import/csv", handle(s.svc.ImportCSV))
	e.POST("/import/sql", handle(s.svc.ImportSQL))
	e.POST("/import/parquet", handle(s.svc.ImportParquet))
	e.POST("/import/data", handle(s.svc.ImportData))
	e.POST("/merge-tables", handle(s.svc.MergeTables))
	e.POST("/table-data", handle(s.svc.TableData))
	e.POST("/hash-join", handle(s.svc.HashJoin))
	e.POST("/star-join", handle(s.svc.StarJoin))
	e.POST("/select-rows", handle(s.svc.SelectRows))
	e.POST("/project-table", handle(s.svc.ProjectTable))
	e.POST("/sorted-update", handle(s.svc.SortedUpdate))
	e.POST("/union-tables", handle(s.svc.UnionTables))
	e.POST("/sort-table", handle(s.svc.SortTable))
	return e
}

// Serve serves requests on l until Shutdown.
func (s *server) Serve(l net.Listener) error {
	s.echo.Listener = l
	err := s.echo.Start("")
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

type customValidator struct {
	validator *validator.Validate
}

func (cv *customValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return reqerr.Requestf("invalid request: %v", err)
	}
	return nil
}

func validateRequest(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return reqerr.Requestf("invalid request: %v", he.Message)
		}
		return reqerr.Requestf("invalid request: %v", err)
	}
	return c.Validate(req)
}

// handle adapts a service operation to a
// JSON request/response handler
func handle[T, R any](op func(context.Context, *T) (R, error)) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := new(T)
		if err := validateRequest(c, req); err != nil {
			return err
		}
		res, err := op(c.Request().Context(), req)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, res)
	}
}

// requestContext attaches a request id, a
// request logger and the request deadline
func (s *server) requestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		reqID := c.Request().Header.Get(echo.HeaderXRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Response().Header().Set(echo.HeaderXRequestID, reqID)
		logger := s.logger.With().Str(string(logging.ReqIDKey), reqID).Logger()
		ctx := logger.WithContext(c.Request().Context())
		ctx = context.WithValue(ctx, logging.ReqIDKey, reqID)
		if s.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// abortOnAssertion takes the process down when
// a request trips an internal assertion; other
// panics are left to the HTTP server
func (s *server) abortOnAssertion(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		defer func() {
			if v := recover(); v != nil {
				if reqerr.IsAssertion(v) {
					s.abort(v)
				}
				panic(v)
			}
		}()
		return next(c)
	}
}

func (s *server) logRequest(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		if err := next(c); err != nil {
			c.Error(err)
		}
		req, res := c.Request(), c.Response()
		logger := zerolog.Ctx(req.Context())
		ev := logger.Debug()
		if res.Status >= http.StatusInternalServerError {
			ev = logger.Warn()
		}
		ev.Str("method", req.Method).
			Str("path", req.URL.Path).
			Int("status", res.Status).
			Dur("latency", time.Since(start)).
			Int64("bytes_out", res.Size).
			Msg("request")
		return nil
	}
}

type errorBody struct {
	Error   string `json:"error"`
	Table   string `json:"table,omitempty"`
	Message string `json:"message"`
}

func (s *server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status, body := errorResponse(err)
	if status == http.StatusInternalServerError {
		reqID := c.Response().Header().Get(echo.HeaderXRequestID)
		zerolog.Ctx(c.Request().Context()).Error().Err(err).Msg("request failed")
		body.Message = "internal error, request id: " + reqID
	}
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("writing error response")
	}
}

func errorResponse(err error) (int, *errorBody) {
	if it, ok := reqerr.AsInvalidTable(err); ok {
		return http.StatusUnprocessableEntity, &errorBody{Error: "invalid_table_name", Table: it.Table, Message: it.Message}
	}
	if re, ok := reqerr.AsRequest(err); ok {
		return http.StatusBadRequest, &errorBody{Error: "request", Message: re.Message}
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, &errorBody{Error: "http", Message: fmt.Sprint(he.Message)}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable, &errorBody{Error: "timeout", Message: "request timed out"}
	}
	return http.StatusInternalServerError, &errorBody{Error: "internal"}
}
