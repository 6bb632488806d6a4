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

package xsv

import (
	"encoding/json"

	"github.com/SnellerInc/tabular/extent"
	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slices"
	"sigs.k8s.io/yaml"
)

// TypeIgnore marks a field that is
// not imported. Any other type is the
// name of a column kind.
const TypeIgnore = "ignore"

var (
	ErrNoHints                       = errors.New("hints are mandatory")
	ErrIngestEmptyOnlyValidForBytes  = errors.New("only nullable bytes fields can keep empty values")
	ErrBoolValuesOnlyValidForBool    = errors.New("custom true/false values only valid for bool type")
	ErrRequireBothTrueAndFalseValues = errors.New("require both true and false values")
	ErrTrueAndFalseValuesOverlap     = errors.New("true and false values overlap")
)

// Hint specifies the options and
// the fields for parsing CSV/TSV files.
type Hint struct {
	// SkipRecords allows skipping the first
	// N records (useful when headers are used)
	SkipRecords int `json:"skipRecords"`
	// Separator allows specifying a custom
	// separator (only applicable for CSV)
	Separator Delim `json:"separator"`
	// Comment starts lines that are skipped;
	// zero means no comment lines
	Comment Delim `json:"comment"`
	// NullValues are the texts that stand
	// for null in nullable fields
	NullValues []string `json:"nullValues"`
	// Fields specifies the hint for each field
	Fields []FieldHint `json:"fields"`
}

// FieldHint defines if and how a
// field should be imported
type FieldHint struct {
	// Name of the column
	Name string `json:"name,omitempty"`
	// Type of the column (or ignore)
	Type string `json:"type,omitempty"`
	// Nullable columns store null for empty
	// texts and for the null values of the hint
	Nullable bool `json:"nullable,omitempty"`
	// Default value if the field is an empty string
	Default string `json:"default,omitempty"`
	// AllowEmpty keeps empty texts of nullable
	// bytes fields instead of storing null
	AllowEmpty bool `json:"allowEmpty,omitempty"`
	// Optional list of values that represent TRUE
	// (only valid for bool type)
	TrueValues []string `json:"trueValues,omitempty"`
	// Optional list of values that represent FALSE
	// (only valid for bool type)
	FalseValues []string `json:"falseValues,omitempty"`

	kind  extent.Kind
	parse func(string) (extent.Value, error)
}

func (fh *FieldHint) UnmarshalJSON(data []byte) error {
	// base JSON unmarshalling
	type _fieldHint FieldHint
	if err := json.Unmarshal(data, (*_fieldHint)(fh)); err != nil {
		return err
	}
	return fh.init()
}

func (fh *FieldHint) init() error {
	// set type to "ignore" if no name is set
	if fh.Name == "" || fh.Type == TypeIgnore {
		fh.Name = ""
		fh.Type = TypeIgnore
		return nil
	}
	t := fh.Type
	if t == "" {
		t = "bytes"
	}
	k, err := extent.ParseKind(t)
	if err != nil {
		return errors.Wrapf(err, "field %q", fh.Name)
	}
	fh.kind = k
	if fh.AllowEmpty && (k != extent.Bytes || !fh.Nullable) {
		return ErrIngestEmptyOnlyValidForBytes
	}
	if k != extent.Bool && (fh.TrueValues != nil || fh.FalseValues != nil) {
		return ErrBoolValuesOnlyValidForBool
	}
	fh.parse = func(text string) (extent.Value, error) { return extent.Parse(k, text) }
	if k == extent.Bool && (fh.TrueValues != nil || fh.FalseValues != nil) {
		if len(fh.TrueValues) == 0 || len(fh.FalseValues) == 0 {
			return ErrRequireBothTrueAndFalseValues
		}
		// make sure there is no overlap
		for _, tv := range fh.TrueValues {
			if slices.Contains(fh.FalseValues, tv) {
				return ErrTrueAndFalseValuesOverlap
			}
		}
		tv, fv := fh.TrueValues, fh.FalseValues
		fh.parse = func(text string) (extent.Value, error) {
			if slices.Contains(tv, text) {
				return extent.NewBool(true), nil
			}
			if slices.Contains(fv, text) {
				return extent.NewBool(false), nil
			}
			return extent.Value{}, errors.Newf("%q is not one of the true or false values", text)
		}
	}
	return nil
}

// Delim is a single-character delimiter.
// It is written in hints as a one-character
// string, or as an escape like "\t".
type Delim rune

func (d *Delim) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := ParseDelim(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// ParseDelim parses the text form of a Delim.
// The empty string is the zero Delim.
func ParseDelim(s string) (Delim, error) {
	switch s {
	case "":
		return 0, nil
	case "\\t":
		return '\t', nil
	}
	r := []rune(s)
	if len(r) != 1 {
		return 0, errors.Newf("delimiter %q is not a single character", s)
	}
	return Delim(r[0]), nil
}

// Schema returns the schema of the imported
// columns: every field that is not ignored.
func (h *Hint) Schema(name string) (*extent.Schema, error) {
	var cols []extent.Column
	for i := range h.Fields {
		f := &h.Fields[i]
		if f.Type == TypeIgnore {
			continue
		}
		cols = append(cols, extent.Column{Name: f.Name, Kind: f.kind, Nullable: f.Nullable})
	}
	if len(cols) == 0 {
		return nil, ErrNoHints
	}
	return extent.NewSchema(name, cols)
}

// isNull returns whether text stands
// for null in field f
func (h *Hint) isNull(f *FieldHint, text string) bool {
	if !f.Nullable {
		return false
	}
	if text == "" {
		return !f.AllowEmpty
	}
	return slices.Contains(h.NullValues, text)
}

// ParseHint parses a hint. The input may be JSON
// or YAML (a superset of JSON), like:
//
//	skipRecords: 1
//	separator: ";"
//	comment: "#"
//	nullValues: ["null", "NA"]
//	fields:
//	  - {name: id, type: int64}
//	  - {name: name, nullable: true}
//	  - {}
//	  - {name: ok, type: bool, trueValues: ["Y"], falseValues: ["N"]}
//
// The fields are an ordered list naming the column
// each field of a record is stored in. If no 'type'
// is specified then 'bytes' is assumed. Fields of a
// record beyond the list are skipped; missing fields
// are treated as empty. An empty entry (or the type
// "ignore") skips a field.
//
// When a field is empty, its 'default' is used
// instead. Nullable columns store null for empty
// fields and for the hint's 'nullValues'; empty
// fields of other columns fail to parse, except
// for bytes columns, which store the empty string.
func ParseHint(hint []byte) (*Hint, error) {
	var h Hint
	if err := yaml.Unmarshal(hint, &h); err != nil {
		return nil, err
	}
	if len(h.Fields) == 0 {
		return nil, ErrNoHints
	}
	if h.SkipRecords < 0 {
		return nil, errors.Newf("skipRecords %d is negative", h.SkipRecords)
	}
	return &h, nil
}
