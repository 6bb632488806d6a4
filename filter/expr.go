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

// Package filter implements row selection with
// SQL boolean expressions over extent columns.
package filter

import (
	"math"
	"strconv"
	"strings"

	"github.com/SnellerInc/tabular/extent"
	"github.com/SnellerInc/tabular/reqerr"
	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// node is a compiled expression. kind is
// Invalid only for an untyped NULL literal.
type node interface {
	kind() extent.Kind
	eval() extent.Value
}

type column struct{ f *extent.Field }

func (c *column) kind() extent.Kind  { return c.f.Kind() }
func (c *column) eval() extent.Value { return c.f.Value() }

type constant struct{ v extent.Value }

func (c *constant) kind() extent.Kind  { return c.v.Kind() }
func (c *constant) eval() extent.Value { return c.v }

type compare struct {
	op   string
	l, r node
}

func (c *compare) kind() extent.Kind { return extent.Bool }

func (c *compare) eval() extent.Value {
	l, r := c.l.eval(), c.r.eval()
	if l.IsNull() || r.IsNull() {
		return extent.Null(extent.Bool)
	}
	n := extent.Compare(l, r)
	var b bool
	switch c.op {
	case "=":
		b = n == 0
	case "<>", "!=":
		b = n != 0
	case "<":
		b = n < 0
	case "<=":
		b = n <= 0
	case ">":
		b = n > 0
	case ">=":
		b = n >= 0
	}
	return extent.NewBool(b)
}

type arith struct {
	op   byte
	l, r node
	k    extent.Kind
}

func (a *arith) kind() extent.Kind { return a.k }

// eval follows integer arithmetic when both sides
// are integers; division by zero yields null
func (a *arith) eval() extent.Value {
	l, r := a.l.eval(), a.r.eval()
	if l.IsNull() || r.IsNull() {
		return extent.Null(a.k)
	}
	if a.k == extent.Int64 {
		x, y := l.Int64(), r.Int64()
		switch a.op {
		case '+':
			return extent.NewInt64(x + y)
		case '-':
			return extent.NewInt64(x - y)
		case '*':
			return extent.NewInt64(x * y)
		case '/':
			if y == 0 {
				return extent.Null(a.k)
			}
			return extent.NewInt64(x / y)
		default:
			if y == 0 {
				return extent.Null(a.k)
			}
			return extent.NewInt64(x % y)
		}
	}
	x, y := l.Double(), r.Double()
	switch a.op {
	case '+':
		return extent.NewDouble(x + y)
	case '-':
		return extent.NewDouble(x - y)
	case '*':
		return extent.NewDouble(x * y)
	case '/':
		if y == 0 {
			return extent.Null(a.k)
		}
		return extent.NewDouble(x / y)
	default:
		if y == 0 {
			return extent.Null(a.k)
		}
		return extent.NewDouble(math.Mod(x, y))
	}
}

type logical struct {
	and  bool
	args []node
}

func (l *logical) kind() extent.Kind { return extent.Bool }

func (l *logical) eval() extent.Value {
	unknown := false
	for _, a := range l.args {
		v := a.eval()
		switch {
		case v.IsNull():
			unknown = true
		case v.Bool() != l.and:
			// false in a conjunction, or true
			// in a disjunction, decides
			return extent.NewBool(!l.and)
		}
	}
	if unknown {
		return extent.Null(extent.Bool)
	}
	return extent.NewBool(l.and)
}

type not struct{ arg node }

func (n *not) kind() extent.Kind { return extent.Bool }

func (n *not) eval() extent.Value {
	v := n.arg.eval()
	if v.IsNull() {
		return v
	}
	return extent.NewBool(!v.Bool())
}

type isNull struct {
	arg    node
	negate bool
}

func (n *isNull) kind() extent.Kind { return extent.Bool }

func (n *isNull) eval() extent.Value {
	return extent.NewBool(n.arg.eval().IsNull() != n.negate)
}

// Predicate is a compiled boolean expression
// bound to the fields of a Series.
type Predicate struct {
	text string
	root node
}

// Compile parses text as a SQL boolean expression
// whose column references are resolved against
// the schema of series. Errors in the expression
// are request errors.
func Compile(text string, series *extent.Series) (*Predicate, error) {
	if strings.TrimSpace(text) == "" {
		return nil, reqerr.Requestf("filter: empty expression")
	}
	res, err := pg_query.Parse("SELECT * FROM t WHERE " + text)
	if err != nil {
		return nil, reqerr.Requestf("filter: cannot parse %q: %v", text, err)
	}
	if len(res.Stmts) != 1 {
		return nil, reqerr.Requestf("filter: %q is not a single expression", text)
	}
	sel := res.Stmts[0].Stmt.GetSelectStmt()
	if sel == nil || sel.WhereClause == nil || len(sel.SortClause) > 0 ||
		sel.LimitCount != nil || len(sel.GroupClause) > 0 || sel.HavingClause != nil {
		return nil, reqerr.Requestf("filter: %q is not a single expression", text)
	}
	c := compiler{series: series}
	root, err := c.compile(sel.WhereClause)
	if err != nil {
		return nil, err
	}
	if k := root.kind(); k != extent.Bool && k != extent.Invalid {
		return nil, reqerr.Requestf("filter: %q is %s, not boolean", text, k)
	}
	return &Predicate{text: text, root: root}, nil
}

// Match evaluates the predicate at the current
// row of the series; unknown is not a match.
func (p *Predicate) Match() bool {
	v := p.root.eval()
	return !v.IsNull() && v.Bool()
}

func (p *Predicate) String() string { return p.text }

type compiler struct {
	series *extent.Series
}

func (c *compiler) compile(n *pg_query.Node) (node, error) {
	switch {
	case n.GetColumnRef() != nil:
		return c.column(n.GetColumnRef())
	case n.GetAConst() != nil:
		return constantOf(n.GetAConst())
	case n.GetAExpr() != nil:
		return c.operator(n.GetAExpr())
	case n.GetBoolExpr() != nil:
		return c.boolean(n.GetBoolExpr())
	case n.GetNullTest() != nil:
		t := n.GetNullTest()
		arg, err := c.compile(t.Arg)
		if err != nil {
			return nil, err
		}
		return &isNull{arg: arg, negate: t.Nulltesttype == pg_query.NullTestType_IS_NOT_NULL}, nil
	}
	return nil, reqerr.Requestf("filter: unsupported expression %T", n.GetNode())
}

// column resolves a column reference; unquoted
// identifiers are folded to lower case by the
// parser, so a unique case-insensitive match
// is accepted as well
func (c *compiler) column(ref *pg_query.ColumnRef) (node, error) {
	if len(ref.Fields) != 1 || ref.Fields[0].GetString_() == nil {
		return nil, reqerr.Requestf("filter: unsupported column reference")
	}
	name := ref.Fields[0].GetString_().Sval
	s := c.series.Schema()
	if s.Index(name) < 0 {
		found := ""
		for _, col := range s.Columns() {
			if strings.EqualFold(col.Name, name) {
				if found != "" {
					return nil, reqerr.Requestf("filter: column %q is ambiguous", name)
				}
				found = col.Name
			}
		}
		if found == "" {
			return nil, reqerr.Requestf("filter: no column %q in %s", name, s.Name())
		}
		name = found
	}
	f, err := c.series.Field(name)
	if err != nil {
		return nil, reqerr.Requestf("filter: %v", err)
	}
	return &column{f: f}, nil
}

func constantOf(k *pg_query.A_Const) (node, error) {
	switch {
	case k.Isnull:
		return &constant{v: extent.Null(extent.Invalid)}, nil
	case k.GetIval() != nil:
		return &constant{v: extent.NewInt64(int64(k.GetIval().Ival))}, nil
	case k.GetFval() != nil:
		// integers beyond 32 bits arrive as floats
		text := k.GetFval().Fval
		if i, err := strconv.ParseInt(text, 10, 64); err == nil {
			return &constant{v: extent.NewInt64(i)}, nil
		}
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, reqerr.Requestf("filter: bad number %q", text)
		}
		return &constant{v: extent.NewDouble(f)}, nil
	case k.GetBoolval() != nil:
		return &constant{v: extent.NewBool(k.GetBoolval().Boolval)}, nil
	case k.GetSval() != nil:
		return &constant{v: extent.NewString(k.GetSval().Sval)}, nil
	}
	return nil, reqerr.Requestf("filter: unsupported constant")
}

func comparableKinds(a, b extent.Kind) bool {
	return a == b || a == extent.Invalid || b == extent.Invalid ||
		(a.Numeric() && b.Numeric())
}

func (c *compiler) operator(e *pg_query.A_Expr) (node, error) {
	if e.Kind != pg_query.A_Expr_Kind_AEXPR_OP || len(e.Name) != 1 || e.Name[0].GetString_() == nil {
		return nil, reqerr.Requestf("filter: unsupported operator")
	}
	op := e.Name[0].GetString_().Sval
	var l node = &constant{v: extent.NewInt64(0)}
	if e.Lexpr != nil {
		var err error
		if l, err = c.compile(e.Lexpr); err != nil {
			return nil, err
		}
	} else if op != "-" && op != "+" {
		return nil, reqerr.Requestf("filter: unsupported prefix operator %s", op)
	}
	r, err := c.compile(e.Rexpr)
	if err != nil {
		return nil, err
	}
	switch op {
	case "=", "<>", "!=", "<", "<=", ">", ">=":
		if !comparableKinds(l.kind(), r.kind()) {
			return nil, reqerr.Requestf("filter: cannot compare %s with %s", l.kind(), r.kind())
		}
		return &compare{op: op, l: l, r: r}, nil
	case "+", "-", "*", "/", "%":
		lk, rk := l.kind(), r.kind()
		if (lk != extent.Invalid && !lk.Numeric()) || (rk != extent.Invalid && !rk.Numeric()) {
			return nil, reqerr.Requestf("filter: operator %s needs numbers, not %s and %s", op, lk, rk)
		}
		k := extent.Int64
		if lk == extent.Double || rk == extent.Double {
			k = extent.Double
		}
		return &arith{op: op[0], l: l, r: r, k: k}, nil
	}
	return nil, reqerr.Requestf("filter: unsupported operator %s", op)
}

func (c *compiler) boolean(e *pg_query.BoolExpr) (node, error) {
	args := make([]node, 0, len(e.Args))
	for _, a := range e.Args {
		n, err := c.compile(a)
		if err != nil {
			return nil, err
		}
		if k := n.kind(); k != extent.Bool && k != extent.Invalid {
			return nil, reqerr.Requestf("filter: boolean operand is %s", k)
		}
		args = append(args, n)
	}
	switch e.Boolop {
	case pg_query.BoolExprType_AND_EXPR:
		return &logical{and: true, args: args}, nil
	case pg_query.BoolExprType_OR_EXPR:
		return &logical{args: args}, nil
	case pg_query.BoolExprType_NOT_EXPR:
		if len(args) != 1 {
			return nil, reqerr.Requestf("filter: NOT takes one operand")
		}
		return &not{arg: args[0]}, nil
	}
	return nil, reqerr.Requestf("filter: unsupported boolean operator")
}
