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
	"net/http"

	"github.com/labstack/echo/v4"
)

type statusResponse struct {
	Status string `json:"status"`
}

func (s *server) pingHandler(c echo.Context) error {
	if err := s.svc.Ping(c.Request().Context()); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, statusResponse{Status: "ok"})
}

func (s *server) shutdownHandler(c echo.Context) error {
	s.svc.Shutdown()
	return c.JSON(http.StatusOK, statusResponse{Status: "shutting down"})
}

func (s *server) tablesHandler(c echo.Context) error {
	tables := s.svc.ListTables(c.Request().Context(), c.QueryParam("pattern"))
	if tables == nil {
		return c.JSON(http.StatusOK, []any{})
	}
	return c.JSON(http.StatusOK, tables)
}

func (s *server) tableHandler(c echo.Context) error {
	info, err := s.svc.TableInfo(c.Request().Context(), c.Param("name"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, info)
}

func (s *server) hasTableHandler(c echo.Context) error {
	ok, err := s.svc.HasTable(c.Request().Context(), c.Param("name"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"exists": ok})
}
