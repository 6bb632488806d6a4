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

package merge

import (
	"fmt"
	"io"

	"github.com/SnellerInc/tabular/extent"
	"github.com/SnellerInc/tabular/extract"
	"github.com/SnellerInc/tabular/logging"
	"github.com/SnellerInc/tabular/reqerr"
	"github.com/rs/zerolog"
)

// ChangeKind is the value of the change-kind
// column of a change row.
type ChangeKind int64

const (
	Insert  ChangeKind = 1
	Replace ChangeKind = 2
	Delete  ChangeKind = 3
)

func (k ChangeKind) String() string {
	switch k {
	case Insert:
		return "insert"
	case Replace:
		return "replace"
	case Delete:
		return "delete"
	}
	return fmt.Sprintf("ChangeKind(%d)", int64(k))
}

// UpdateSpec configures a SortedUpdate.
type UpdateSpec struct {
	// KindColumn names the change-kind column
	// of the change input.
	KindColumn string
	// Key lists the primary key columns; both
	// inputs are sorted ascending by them.
	Key []string
}

// SortedUpdate applies a sorted stream of changes
// to a base input sorted by the same key. The
// output has the schema of the base input and
// remains sorted by the key.
type SortedUpdate struct {
	base, changes cursor
	spec          UpdateSpec
	logger        *zerolog.Logger

	schema    *extent.Schema
	baseKey   []*extent.Field
	changeKey []*extent.Field
	kind      *extent.Field
	copier    *extract.RowCopier
	out       *extent.Builder
	started   bool
}

// NewSortedUpdate returns a SortedUpdate of base
// by changes. logger may be nil.
func NewSortedUpdate(base, changes extent.Source, spec UpdateSpec, logger *zerolog.Logger) *SortedUpdate {
	return &SortedUpdate{
		base:    cursor{src: base},
		changes: cursor{src: changes},
		spec:    spec,
		logger:  logging.OrNop(logger),
	}
}

// Schema returns the output schema, if known.
// Without a base schema the output takes the
// schema of the changes minus the kind column.
func (u *SortedUpdate) Schema() *extent.Schema {
	if u.schema == nil {
		if bs := u.base.schema(); bs != nil {
			u.schema = bs
		} else if cs := u.changes.schema(); cs != nil {
			u.schema = cs.Without(cs.Name(), u.spec.KindColumn)
		}
	}
	return u.schema
}

func bindKey(s *extent.Series, key []string) ([]*extent.Field, error) {
	out := make([]*extent.Field, len(key))
	for i, k := range key {
		f, err := s.Field(k)
		if err != nil {
			return nil, reqerr.Requestf("sorted update: key column: %v", err)
		}
		out[i] = f
	}
	return out, nil
}

func (u *SortedUpdate) start() error {
	if len(u.spec.Key) == 0 {
		return reqerr.Requestf("sorted update: no key columns")
	}
	hasBase, err := u.base.fill()
	if err != nil {
		return err
	}
	hasChange, err := u.changes.fill()
	if err != nil {
		return err
	}
	if u.Schema() == nil {
		return nil
	}
	u.out = extent.NewBuilder(u.schema)
	if hasBase {
		if u.baseKey, err = bindKey(&u.base.series, u.spec.Key); err != nil {
			return err
		}
	}
	if !hasChange {
		return nil
	}
	cs := u.changes.series.Schema()
	if u.changeKey, err = bindKey(&u.changes.series, u.spec.Key); err != nil {
		return err
	}
	for i := range u.baseKey {
		bk, ck := u.baseKey[i].Kind(), u.changeKey[i].Kind()
		if bk != ck && !(bk.Numeric() && ck.Numeric()) {
			return reqerr.Requestf("sorted update: key column %q is %s in the base but %s in the changes",
				u.spec.Key[i], bk, ck)
		}
	}
	if u.kind, err = u.changes.series.Field(u.spec.KindColumn); err != nil {
		return reqerr.Requestf("sorted update: change kind column: %v", err)
	}
	if k := u.kind.Kind(); !k.Integer() || k == extent.Bool {
		return reqerr.Requestf("sorted update: change kind column %q is %s, not an integer", u.spec.KindColumn, u.kind.Kind())
	}
	if u.copier, err = extract.NewRowCopier(cs, u.schema); err != nil {
		return err
	}
	u.logger.Debug().Str("base", u.schema.String()).Str("changes", cs.String()).
		Strs("key", u.spec.Key).Msg("sorted update: started")
	return nil
}

func (u *SortedUpdate) compareKeys() int {
	for i := range u.baseKey {
		if c := extent.Compare(u.baseKey[i].Value(), u.changeKey[i].Value()); c != 0 {
			return c
		}
	}
	return 0
}

func (u *SortedUpdate) changeKind() (ChangeKind, error) {
	v := u.kind.Value()
	if !v.IsNull() {
		switch k := ChangeKind(v.Int64()); k {
		case Insert, Replace, Delete:
			return k, nil
		}
	}
	return 0, reqerr.Requestf("sorted update: invalid change kind %s in column %q", v, u.spec.KindColumn)
}

func (u *SortedUpdate) copyBase() {
	u.out.AppendRow(u.base.extent(), u.base.row())
	u.base.series.Next()
}

func (u *SortedUpdate) copyChange() {
	u.copier.Append(u.out, u.changes.extent(), u.changes.row())
}

// step applies one change row, or copies one base
// row, and returns false when both inputs are done
func (u *SortedUpdate) step() (bool, error) {
	hasBase, err := u.base.fill()
	if err != nil {
		return false, err
	}
	hasChange, err := u.changes.fill()
	if err != nil {
		return false, err
	}
	if !hasChange {
		if !hasBase {
			return false, nil
		}
		u.copyBase()
		return true, nil
	}
	if hasBase && u.compareKeys() < 0 {
		u.copyBase()
		return true, nil
	}
	kind, err := u.changeKind()
	if err != nil {
		return false, err
	}
	same := hasBase && u.compareKeys() == 0
	switch kind {
	case Insert:
		u.copyChange()
	case Replace:
		u.copyChange()
		if same {
			u.base.series.Next()
		}
	case Delete:
		if same {
			u.base.series.Next()
		}
	}
	u.changes.series.Next()
	return true, nil
}

// Next implements extent.Source.
func (u *SortedUpdate) Next() (*extent.Extent, error) {
	if !u.started {
		if err := u.start(); err != nil {
			return nil, err
		}
		u.started = true
	}
	if u.out == nil {
		return nil, io.EOF
	}
	for {
		more, err := u.step()
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
		if u.out.Full() {
			return u.out.Build(), nil
		}
	}
	if u.out.Rows() > 0 {
		return u.out.Build(), nil
	}
	return nil, io.EOF
}
