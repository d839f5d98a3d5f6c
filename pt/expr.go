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

package pt

import "github.com/sneller-labs/pql/value"

// Expression is the tagged-variant family of expression nodes
// (§3.1). A Path expression is itself an Expression (it roots a
// PathNode under a var and a list of extra bindings); the two
// families meet there.
type Expression interface {
	Node
	expression()
}

// BinOp/UnOp name the operators accepted by Bop/Uop. The set is
// intentionally small -- the evaluator's per-operator dispatch
// table in package eval is authoritative for semantics (§4.11).
type BinOp int

const (
	OpEq BinOp = iota
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte
	OpAnd
	OpOr
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpIn
	OpLike
	OpGrep
	OpUnion
	OpUnionAll
	OpIntersect
	OpExcept
	OpConcat // sequence ++ sequence (§8 scenario 5)
)

type UnOp int

const (
	OpNot UnOp = iota
	OpNeg
	OpNonempty
)

// FuncOp names the Func(op, args) family (§3.1), including the
// aggregate-style reductions used by baseopt (§4.9) and the
// choose() builtin synthesized by normalize's alternates
// handling (§4.2, SPEC_FULL §12).
type FuncOp int

const (
	FCount FuncOp = iota
	FSum
	FMin
	FMax
	FAllTrue
	FAnyTrue
	FChoose
	FNew // backend.NewObject -- see SPEC_FULL §12, F_NEW
)

// Select is `select result [distinct] [from ...] [where ...]`.
// From/Where/Group/Ungroup are modeled as distinct Expression
// wrappers that chain via Sub, mirroring how the original
// evaluator threads a single context tuple through each clause
// in turn (§4.6 "a from-clause item... becomes a chain of lets").
type Select struct {
	Sub      Expression // the FROM/WHERE/GROUP chain, or nil for a valueless select
	Result   Expression
	Distinct bool
	At       Position
}

func (s *Select) expression()     {}
func (s *Select) Pos() Position   { return s.At }
func (s *Select) walk(v Visitor) {
	if s.Sub != nil {
		Walk(v, s.Sub)
	}
	Walk(v, s.Result)
}
func (s *Select) rewrite(r Rewriter) Node {
	if s.Sub != nil {
		s.Sub = Rewrite(r, s.Sub).(Expression)
	}
	s.Result = Rewrite(r, s.Result).(Expression)
	return s
}

// From is a list of from-items, each a Path expression (or,
// before movepaths has run, any expression that evaluates to a
// from-binding). Sub is the enclosing clause (where/group/etc),
// or nil if From is innermost.
type From struct {
	Sub   Expression
	Items []Expression
	At    Position
}

func (f *From) expression()     {}
func (f *From) Pos() Position   { return f.At }
func (f *From) walk(v Visitor) {
	if f.Sub != nil {
		Walk(v, f.Sub)
	}
	for _, it := range f.Items {
		Walk(v, it)
	}
}
func (f *From) rewrite(r Rewriter) Node {
	if f.Sub != nil {
		f.Sub = Rewrite(r, f.Sub).(Expression)
	}
	for i, it := range f.Items {
		f.Items[i] = Rewrite(r, it).(Expression)
	}
	return f
}

// Where filters Sub's rows by Pred.
type Where struct {
	Sub  Expression
	Pred Expression
	At   Position
}

func (w *Where) expression()    {}
func (w *Where) Pos() Position  { return w.At }
func (w *Where) walk(v Visitor) { Walk(v, w.Sub); Walk(v, w.Pred) }
func (w *Where) rewrite(r Rewriter) Node {
	w.Sub = Rewrite(r, w.Sub).(Expression)
	w.Pred = Rewrite(r, w.Pred).(Expression)
	return w
}

// Group nests Sub's rows by Vars under NewVar (§4.6 -> Nest).
type Group struct {
	Sub    Expression
	Vars   []*ColumnVar
	NewVar *ColumnVar
	At     Position
}

func (g *Group) expression()    {}
func (g *Group) Pos() Position  { return g.At }
func (g *Group) walk(v Visitor) { Walk(v, g.Sub) }
func (g *Group) rewrite(r Rewriter) Node {
	g.Sub = Rewrite(r, g.Sub).(Expression)
	return g
}

// Ungroup flattens Var back out of Sub's rows (§4.6 -> Unnest).
type Ungroup struct {
	Sub Expression
	Var *ColumnVar
	At  Position
}

func (u *Ungroup) expression()    {}
func (u *Ungroup) Pos() Position  { return u.At }
func (u *Ungroup) walk(v Visitor) { Walk(v, u.Sub) }
func (u *Ungroup) rewrite(r Rewriter) Node {
	u.Sub = Rewrite(r, u.Sub).(Expression)
	return u
}

// Rename renames Sub's result column, either to a StaticName or
// to the value of ComputedNameExpr evaluated at lowering time.
type Rename struct {
	Sub              Expression
	StaticName       string
	ComputedNameExpr Expression
	At               Position
}

func (rn *Rename) expression()    {}
func (rn *Rename) Pos() Position  { return rn.At }
func (rn *Rename) walk(v Visitor) {
	Walk(v, rn.Sub)
	if rn.ComputedNameExpr != nil {
		Walk(v, rn.ComputedNameExpr)
	}
}
func (rn *Rename) rewrite(r Rewriter) Node {
	rn.Sub = Rewrite(r, rn.Sub).(Expression)
	if rn.ComputedNameExpr != nil {
		rn.ComputedNameExpr = Rewrite(r, rn.ComputedNameExpr).(Expression)
	}
	return rn
}

// Path roots a PathNode under Root (the object the path starts
// from) and carries MoreBindings, a list of extra let-style
// bindings normalize accumulates while simplifying the path
// body (§4.2 "path-composition").
type Path struct {
	Root         Expression
	Body         PathNode
	MoreBindings []Binding
	At           Position
}

// Binding is a single name=value let-binding, used both by
// Path.MoreBindings and by the Assign expression.
type Binding struct {
	Var   *ColumnVar
	Value Expression
}

func (p *Path) expression()    {}
func (p *Path) Pos() Position  { return p.At }
func (p *Path) walk(v Visitor) {
	Walk(v, p.Root)
	Walk(v, p.Body)
	for _, b := range p.MoreBindings {
		Walk(v, b.Value)
	}
}
func (p *Path) rewrite(r Rewriter) Node {
	p.Root = Rewrite(r, p.Root).(Expression)
	p.Body = Rewrite(r, p.Body).(PathNode)
	for i := range p.MoreBindings {
		p.MoreBindings[i].Value = Rewrite(r, p.MoreBindings[i].Value).(Expression)
	}
	return p
}

// Tuple is an ordered tuple constructor.
type Tuple struct {
	Items []Expression
	At    Position
}

func (t *Tuple) expression()    {}
func (t *Tuple) Pos() Position  { return t.At }
func (t *Tuple) walk(v Visitor) {
	for _, it := range t.Items {
		Walk(v, it)
	}
}
func (t *Tuple) rewrite(r Rewriter) Node {
	for i, it := range t.Items {
		t.Items[i] = Rewrite(r, it).(Expression)
	}
	return t
}

// Quantifier is Forall/Exists(Var in Set : Pred), eliminated by
// dequantify into Map+alltrue/anytrue (§4.5 of the pipeline
// table, SPEC_FULL §13 note on dequantify).
type Quantifier struct {
	Forall bool // false => Exists
	Var    *ColumnVar
	Set    Expression
	Pred   Expression
	At     Position
}

func (q *Quantifier) expression()    {}
func (q *Quantifier) Pos() Position  { return q.At }
func (q *Quantifier) walk(v Visitor) { Walk(v, q.Set); Walk(v, q.Pred) }
func (q *Quantifier) rewrite(r Rewriter) Node {
	q.Set = Rewrite(r, q.Set).(Expression)
	q.Pred = Rewrite(r, q.Pred).(Expression)
	return q
}

// Map is `map Var in Set: Result`.
type Map struct {
	Var    *ColumnVar
	Set    Expression
	Result Expression
	At     Position
}

func (m *Map) expression()    {}
func (m *Map) Pos() Position  { return m.At }
func (m *Map) walk(v Visitor) { Walk(v, m.Set); Walk(v, m.Result) }
func (m *Map) rewrite(r Rewriter) Node {
	m.Set = Rewrite(r, m.Set).(Expression)
	m.Result = Rewrite(r, m.Result).(Expression)
	return m
}

// Assign is `let Var = Value [in Body]`; Body is nil when the
// assignment is a statement-level binding whose scope is the
// remainder of its enclosing block rather than an explicit
// sub-expression (§4.1 "assign without body in an outer scope").
type Assign struct {
	Var   *ColumnVar
	Value Expression
	Body  Expression // may be nil
	At    Position
}

func (a *Assign) expression()    {}
func (a *Assign) Pos() Position  { return a.At }
func (a *Assign) walk(v Visitor) {
	Walk(v, a.Value)
	if a.Body != nil {
		Walk(v, a.Body)
	}
}
func (a *Assign) rewrite(r Rewriter) Node {
	a.Value = Rewrite(r, a.Value).(Expression)
	if a.Body != nil {
		a.Body = Rewrite(r, a.Body).(Expression)
	}
	return a
}

// Bop is a binary operator application.
type Bop struct {
	Op    BinOp
	Left  Expression
	Right Expression
	At    Position
}

func (b *Bop) expression()    {}
func (b *Bop) Pos() Position  { return b.At }
func (b *Bop) walk(v Visitor) { Walk(v, b.Left); Walk(v, b.Right) }
func (b *Bop) rewrite(r Rewriter) Node {
	b.Left = Rewrite(r, b.Left).(Expression)
	b.Right = Rewrite(r, b.Right).(Expression)
	return b
}

// Uop is a unary operator application.
type Uop struct {
	Op  UnOp
	Sub Expression
	At  Position
}

func (u *Uop) expression()    {}
func (u *Uop) Pos() Position  { return u.At }
func (u *Uop) walk(v Visitor) { Walk(v, u.Sub) }
func (u *Uop) rewrite(r Rewriter) Node {
	u.Sub = Rewrite(r, u.Sub).(Expression)
	return u
}

// Func is an n-ary named function/aggregate application.
type Func struct {
	Op   FuncOp
	Args []Expression
	At   Position
}

func (f *Func) expression()    {}
func (f *Func) Pos() Position  { return f.At }
func (f *Func) walk(v Visitor) {
	for _, a := range f.Args {
		Walk(v, a)
	}
}
func (f *Func) rewrite(r Rewriter) Node {
	for i, a := range f.Args {
		f.Args[i] = Rewrite(r, a).(Expression)
	}
	return f
}

// ReadAnyVar is an unresolved identifier reference; resolve
// replaces every occurrence with a ReadColumnVar or
// ReadGlobalVar (§4.1). No ReadAnyVar may survive resolve (§8.1).
type ReadAnyVar struct {
	Name string
	At   Position
}

func (r *ReadAnyVar) expression()   {}
func (r *ReadAnyVar) Pos() Position { return r.At }
func (r *ReadAnyVar) walk(Visitor)  {}

// ReadColumnVar reads a bound column variable.
type ReadColumnVar struct {
	Var *ColumnVar
	At  Position
}

func (r *ReadColumnVar) expression()   {}
func (r *ReadColumnVar) Pos() Position { return r.At }
func (r *ReadColumnVar) walk(Visitor)  {}

// ReadGlobalVar reads a named graph root via the backend.
type ReadGlobalVar struct {
	Var *GlobalVar
	At  Position
}

func (r *ReadGlobalVar) expression()   {}
func (r *ReadGlobalVar) Pos() Position { return r.At }
func (r *ReadGlobalVar) walk(Visitor)  {}

// Value wraps a constant value::value.Value as an Expression
// leaf (§3.1 Value(constant)).
type Value struct {
	Const value.Value
	At    Position
}

func (c *Value) expression()   {}
func (c *Value) Pos() Position { return c.At }
func (c *Value) walk(Visitor)  {}
