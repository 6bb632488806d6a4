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
	"strings"
	"testing"

	"github.com/SnellerInc/tabular/extent"
	"github.com/SnellerInc/tabular/internal/exttest"
	"github.com/fatih/color"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	color.NoColor = true
	s := extent.MustSchema("t",
		extent.Column{Name: "id", Kind: extent.Int64},
		extent.Column{Name: "name", Kind: extent.Bytes, Nullable: true},
		extent.Column{Name: "ok", Kind: extent.Bool},
	)
	src := func() extent.Source {
		return exttest.Source(s,
			exttest.Rows(s, []any{1, "anne", true}, []any{22, nil, false}),
			exttest.Rows(s, []any{333, "two\nlines", true}),
		)
	}
	var b strings.Builder
	n, err := render(&b, src(), s, 0)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, ""+
		"id   name        ok\n"+
		"1    anne        true\n"+
		"22   null        false\n"+
		"333  two\\nlines  true\n", b.String())

	b.Reset()
	n, err = render(&b, src(), s, 1)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, "id  name  ok\n1   anne  true\n", b.String())
}
