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
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/SnellerInc/tabular/compr"
	"github.com/SnellerInc/tabular/reqerr"
	"github.com/SnellerInc/tabular/service"
	"github.com/SnellerInc/tabular/table"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T) (*server, *service.Service) {
	t.Helper()
	codec, err := compr.Compression("zstd")
	require.NoError(t, err)
	st, err := table.Open(t.TempDir(), codec, nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	svc := service.New(st, service.DefaultHelpers, nil)
	return newServer(svc, nil, time.Minute), svc
}

func call(t *testing.T, s *server, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	var out map[string]any
	if strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestPing(t *testing.T) {
	s, _ := testServer(t)
	rec, out := call(t, s, http.MethodGet, "/ping", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", out["status"])
	require.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-Id", "abc")
	rec = httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	require.Equal(t, "abc", rec.Header().Get("X-Request-Id"))
}

func TestWorkflow(t *testing.T) {
	s, _ := testServer(t)
	rec, out := call(t, s, http.MethodPost, "/import/data", `{
		"table": "people",
		"columns": [{"name": "id", "type": "int64"}, {"name": "name", "type": "bytes", "nullable": true}],
		"rows": [["2", "bob"], ["1", null], ["3", "cy"]]
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "people", out["name"])

	rec, _ = call(t, s, http.MethodPost, "/sort-table", `{"table": "people", "out_table": "sorted", "sort_by": [{"column": "id"}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, out = call(t, s, http.MethodPost, "/table-data", `{"table": "sorted", "max_rows": 2}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, true, out["more_rows"])
	require.Equal(t, []any{[]any{"1", nil}, []any{"2", "bob"}}, out["rows"])
	require.Equal(t, []any{
		map[string]any{"name": "id", "type": "int64"},
		map[string]any{"name": "name", "type": "bytes"},
	}, out["columns"])

	rec, _ = call(t, s, http.MethodGet, "/tables?pattern=s%25", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	require.Equal(t, "sorted", list[0]["name"])

	rec, out = call(t, s, http.MethodGet, "/tables/sorted/exists", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, out["exists"])
	rec, out = call(t, s, http.MethodGet, "/tables/people", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "zstd", out["codec"])
}

func TestErrors(t *testing.T) {
	s, _ := testServer(t)
	rec, out := call(t, s, http.MethodGet, "/tables/nobody", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, "invalid_table_name", out["error"])
	require.Equal(t, "nobody", out["table"])

	rec, out = call(t, s, http.MethodPost, "/table-data", `{"table": "nobody", "max_rows": 0}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "request", out["error"])
	require.Equal(t, "max_rows must be > 0", out["message"])

	// rejected by validation
	rec, out = call(t, s, http.MethodPost, "/sort-table", `{"table": "x"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "request", out["error"])

	rec, out = call(t, s, http.MethodPost, "/hash-join", `{not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "request", out["error"])

	rec, _ = call(t, s, http.MethodGet, "/nowhere", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestShutdown(t *testing.T) {
	s, svc := testServer(t)
	rec, _ := call(t, s, http.MethodPost, "/shutdown", "")
	require.Equal(t, http.StatusOK, rec.Code)
	select {
	case <-svc.Done():
	default:
		t.Fatal("service not stopped")
	}
}

func TestParseConfig(t *testing.T) {
	cfg, err := parseConfig(nil, io.Discard)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:49476", cfg.Listen)
	require.Equal(t, "zstd", cfg.Codec)
	require.Equal(t, service.DefaultHelpers, cfg.Helpers)
	require.True(t, strings.HasPrefix(filepath.Base(cfg.Dir), "tabulard."))

	path := filepath.Join(t.TempDir(), "tabulard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: 127.0.0.1:9999
codec: s2
timeout: 30s
helpers:
  csv2ext: /opt/bin/csv2ext
`), 0644))
	cfg, err = parseConfig([]string{"-config", path, "-codec", "none", "-dir", "/data"}, io.Discard)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9999", cfg.Listen)
	require.Equal(t, "none", cfg.Codec)
	require.Equal(t, "/data", cfg.Dir)
	require.Equal(t, 30*time.Second, time.Duration(cfg.Timeout))
	require.Equal(t, "/opt/bin/csv2ext", cfg.Helpers.CSV)
	require.Equal(t, "sql2ext", cfg.Helpers.SQL)

	require.NoError(t, os.WriteFile(path, []byte("unknown: 1\n"), 0644))
	_, err = parseConfig([]string{"-config", path}, io.Discard)
	require.Error(t, err)
	_, err = parseConfig([]string{"extra"}, io.Discard)
	require.Error(t, err)
}

func TestAbortOnAssertion(t *testing.T) {
	s, _ := testServer(t)
	var aborted any
	s.abort = func(v any) { aborted = v }
	c := s.echo.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	h := s.abortOnAssertion(func(echo.Context) error {
		panic(reqerr.AssertionFailedf("no dimension row for key"))
	})
	require.Panics(t, func() { h(c) })
	require.True(t, reqerr.IsAssertion(aborted))

	aborted = nil
	h = s.abortOnAssertion(func(echo.Context) error { panic("other") })
	require.PanicsWithValue(t, "other", func() { h(c) })
	require.Nil(t, aborted)
}
