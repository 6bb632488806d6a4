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

/*
Package sorting implements the ORDER BY machinery:
the sort rules shared by the ordering operators and
the Sort operator itself.

# Overview

A sort rule names a column, a direction ('ASC' or
'DESC') and the placement of null values ('NULLS
FIRST' or 'NULLS LAST'). Rules are applied in order;
a later rule only breaks ties left by the earlier
ones. Rows that tie on every rule keep their input
order.

Non-null values are ordered as follows:

  - false, then true,
  - numeric values (precision does not matter),
  - byte strings, compared bytewise.

# Algorithm

Sort reads its whole input. Each input extent is
sorted independently by computing a stable
permutation of its row positions; the extent
storage is never reordered. The sorted extents
are then merged through a tournament tree, with
ties resolved in favor of the earlier extent.
An input that produces a single extent is emitted
directly in permutation order.

Output extents are flushed whenever they grow past
extent.TargetSize.

# Limitations

Every input extent is retained in memory until the
merge completes.
*/
package sorting
