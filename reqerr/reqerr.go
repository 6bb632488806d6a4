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

// Package reqerr defines the errors that are
// reported back to the client of a request.
//
// Configuration and capacity problems are
// returned as a *RequestError; problems with
// a named table are returned as an
// *InvalidTableName. Violations of internal
// consistency are not returned at all: they are
// raised with panic(AssertionFailedf(...)).
package reqerr

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// RequestError is an error caused by the
// content of a request.
type RequestError struct {
	Message string
}

func (e *RequestError) Error() string { return e.Message }

// InvalidTableName is an error caused by a
// table name that is malformed or that does
// not name an existing table.
type InvalidTableName struct {
	Table   string
	Message string
}

func (e *InvalidTableName) Error() string {
	return fmt.Sprintf("table %q: %s", e.Table, e.Message)
}

// Requestf constructs a *RequestError
// with a stack trace attached.
func Requestf(format string, args ...any) error {
	return errors.WithStackDepth(&RequestError{Message: fmt.Sprintf(format, args...)}, 1)
}

// InvalidTable constructs an *InvalidTableName
// with a stack trace attached.
func InvalidTable(table, message string) error {
	return errors.WithStackDepth(&InvalidTableName{Table: table, Message: message}, 1)
}

// AsRequest returns the *RequestError in
// the chain of err, if there is one.
func AsRequest(err error) (*RequestError, bool) {
	var re *RequestError
	ok := errors.As(err, &re)
	return re, ok
}

// AsInvalidTable returns the *InvalidTableName
// in the chain of err, if there is one.
func AsInvalidTable(err error) (*InvalidTableName, bool) {
	var it *InvalidTableName
	ok := errors.As(err, &it)
	return it, ok
}

// AssertionFailedf constructs the value that is
// passed to panic when an internal invariant
// does not hold.
func AssertionFailedf(format string, args ...any) error {
	return errors.AssertionFailedWithDepthf(1, format, args...)
}

// IsAssertion returns true if err (or a value
// recovered from panic) is an assertion failure.
func IsAssertion(v any) bool {
	err, ok := v.(error)
	return ok && errors.HasAssertionFailure(err)
}
