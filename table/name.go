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

// Package table implements the working directory
// of the daemon: a catalog of table files, each
// holding the extents of one named table.
package table

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/SnellerInc/tabular/reqerr"
	"github.com/go-playground/validator/v10"
)

// MaxNameLen is the exclusive upper
// bound on the length of a table name.
const MaxNameLen = 200

type tableName struct {
	Name string `validate:"required,max=199,excludes=/,ne=.,ne=.."`
}

var validate = validator.New()

// ValidateName checks that name can be
// used as a table name: it must be non-empty,
// shorter than MaxNameLen bytes, free of '/'
// and must not be "." or "..".
func ValidateName(name string) error {
	// max counts runes; the limit is in bytes
	if err := validate.Struct(tableName{Name: name}); err != nil || len(name) >= MaxNameLen {
		var msg string
		switch {
		case name == "":
			msg = "table name is empty"
		case len(name) >= MaxNameLen:
			msg = fmt.Sprintf("table name is %d bytes long, limit %d", len(name), MaxNameLen-1)
		case strings.ContainsRune(name, '/'):
			msg = "table name contains '/'"
		default:
			msg = "invalid table name"
		}
		return reqerr.InvalidTable(name, msg)
	}
	return nil
}

// matchPattern reports whether text matches a
// SQL LIKE pattern ('%' is any run of characters,
// '_' any single character)
func matchPattern(text, pattern string) bool {
	if pattern == "" || pattern == "%" || pattern == text {
		return true
	}

	// Create a regex based on the pattern
	start := 0
	var regex strings.Builder
	regex.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '_':
			regex.WriteString(regexp.QuoteMeta(pattern[start:i]))
			regex.WriteString("(?s:.)")
			start = i + 1
		case '%':
			regex.WriteString(regexp.QuoteMeta(pattern[start:i]))
			regex.WriteString("(?s:.*)")
			start = i + 1
		}
	}

	// No wildcards, so the fast-path has
	// already detected the only match
	if start == 0 {
		return false
	}

	regex.WriteString(regexp.QuoteMeta(pattern[start:]))
	regex.WriteString("$")

	r := regex.String()
	match, err := regexp.MatchString(r, text)
	if err != nil {
		panic(reqerr.AssertionFailedf("invalid regex generated: %v", r))
	}
	return match
}
