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

package service

import (
	"github.com/SnellerInc/tabular/extent"
	"github.com/SnellerInc/tabular/join"
	"github.com/SnellerInc/tabular/sorting"
)

// ImportFilesRequest copies the extents of
// table files into Table.
type ImportFilesRequest struct {
	Table string   `json:"table" validate:"required"`
	Paths []string `json:"paths" validate:"required,min=1"`
}

// ImportCSVRequest converts a delimited text
// file into Table. SchemaFile is a hint file
// (YAML or JSON); Separator, Comment and Skip
// override the values it declares.
type ImportCSVRequest struct {
	Table      string   `json:"table" validate:"required"`
	Paths      []string `json:"paths"`
	SchemaFile string   `json:"schema_file" validate:"required"`
	Separator  string   `json:"separator,omitempty" validate:"max=2"`
	Comment    string   `json:"comment,omitempty" validate:"max=1"`
	Skip       int      `json:"skip,omitempty" validate:"gte=0"`
}

// ImportSQLRequest copies the PostgreSQL table
// Source reachable through DSN into Table.
type ImportSQLRequest struct {
	Table  string `json:"table" validate:"required"`
	DSN    string `json:"dsn" validate:"required"`
	Source string `json:"source_table" validate:"required"`
}

// ImportParquetRequest converts a parquet file into Table.
type ImportParquetRequest struct {
	Table string `json:"table" validate:"required"`
	Path  string `json:"path" validate:"required"`
}

// ImportDataRequest creates Table from rows of text.
// A nil entry is null.
type ImportDataRequest struct {
	Table    string          `json:"table" validate:"required"`
	Columns  []extent.Column `json:"columns" validate:"required,min=1"`
	Rows     [][]*string     `json:"rows"`
	MoreRows bool            `json:"more_rows,omitempty"`
}

// MergeTablesRequest concatenates Sources,
// which must share one schema, into Table.
type MergeTablesRequest struct {
	Table   string   `json:"table" validate:"required"`
	Sources []string `json:"sources"`
}

// TableDataRequest reads up to MaxRows rows of
// Table, optionally only those matching Where.
type TableDataRequest struct {
	Table   string `json:"table" validate:"required"`
	MaxRows int    `json:"max_rows"`
	Where   string `json:"where,omitempty"`
}

// ColumnInfo describes a column of TableData.
type ColumnInfo struct {
	Name string      `json:"name"`
	Type extent.Kind `json:"type"`
}

// TableData is the reply to a TableDataRequest.
type TableData struct {
	Columns  []ColumnInfo `json:"columns"`
	Rows     [][]*string  `json:"rows"`
	MoreRows bool         `json:"more_rows"`
}

// HashJoinRequest joins Left against Right.
// Columns maps "a.col" / "b.col" to output names.
type HashJoinRequest struct {
	Left        string            `json:"a_table" validate:"required"`
	Right       string            `json:"b_table" validate:"required"`
	Output      string            `json:"out_table" validate:"required"`
	Eq          map[string]string `json:"eq_columns" validate:"required,min=1"`
	Columns     map[string]string `json:"keep_columns" validate:"required,min=1"`
	MaxLeftRows int               `json:"max_a_rows" validate:"gt=0"`
}

// StarJoinRequest joins the fact table Fact
// against in-memory dimensions.
type StarJoinRequest struct {
	Fact             string               `json:"fact_table" validate:"required"`
	Output           string               `json:"out_table" validate:"required"`
	Dimensions       []join.Dimension     `json:"dimensions" validate:"required,dive"`
	FactColumns      map[string]string    `json:"fact_columns"`
	Joins            []join.DimensionJoin `json:"joins" validate:"dive"`
	MaxDimensionRows int                  `json:"max_dimension_rows,omitempty" validate:"gte=0"`
}

// SelectRowsRequest keeps the rows of Table matching Where.
type SelectRowsRequest struct {
	Table  string `json:"table" validate:"required"`
	Output string `json:"out_table" validate:"required"`
	Where  string `json:"where" validate:"required"`
}

// ProjectTableRequest keeps Columns of Table.
type ProjectTableRequest struct {
	Table   string   `json:"table" validate:"required"`
	Output  string   `json:"out_table" validate:"required"`
	Columns []string `json:"keep_columns" validate:"required,min=1"`
}

// SortedUpdateRequest applies the change table
// Changes to Table in place. Both are sorted
// by Key.
type SortedUpdateRequest struct {
	Table      string   `json:"base_table" validate:"required"`
	Changes    string   `json:"update_from" validate:"required"`
	KindColumn string   `json:"update_column" validate:"required"`
	Key        []string `json:"primary_key" validate:"required,min=1"`
}

// UnionInput is one input of a UnionTablesRequest.
type UnionInput struct {
	Table   string            `json:"table_name" validate:"required"`
	Columns map[string]string `json:"extract_values"`
}

// UnionTablesRequest merges pre-sorted tables.
type UnionTablesRequest struct {
	Inputs []UnionInput      `json:"in_tables" validate:"required,min=1,dive"`
	Order  []sorting.Column  `json:"order_columns" validate:"dive"`
	Output string            `json:"out_table" validate:"required"`
}

// SortTableRequest sorts Table into Output.
type SortTableRequest struct {
	Table   string           `json:"table" validate:"required"`
	Output  string           `json:"out_table" validate:"required"`
	Columns []sorting.Column `json:"sort_by" validate:"required,min=1,dive"`
}
