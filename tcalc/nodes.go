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

package tcalc

import (
	"github.com/sneller-labs/pql/colname"
	"github.com/sneller-labs/pql/value"
)

// Filter drops elements of Sub for which Pred evaluates to nil
// or false (§4.6, §4.11).
type Filter struct {
	Meta
	Sub  Node
	Pred Node // a Lambda
}

func (f *Filter) walk(v Visitor) { Walk(v, f.Sub); Walk(v, f.Pred) }
func (f *Filter) rewrite(r Rewriter) Node {
	f.Sub = Rewrite(r, f.Sub)
	f.Pred = Rewrite(r, f.Pred)
	return f
}

// Project keeps only the named columns, in order (§4.6, §4.7).
type Project struct {
	Meta
	Sub  Node
	Cols *colname.ColSet
}

func (p *Project) walk(v Visitor)         { Walk(v, p.Sub) }
func (p *Project) rewrite(r Rewriter) Node { p.Sub = Rewrite(r, p.Sub); return p }

// Strip removes the named columns, keeping the rest (§4.6).
type Strip struct {
	Meta
	Sub  Node
	Cols *colname.ColSet
}

func (s *Strip) walk(v Visitor)         { Walk(v, s.Sub) }
func (s *Strip) rewrite(r Rewriter) Node { s.Sub = Rewrite(r, s.Sub); return s }

// Rename renames Old to New; eliminated entirely by norenames
// (§4.6, §8.1 invariant 7).
type Rename struct {
	Meta
	Sub      Node
	Old, New *colname.ColName
}

func (rn *Rename) walk(v Visitor)         { Walk(v, rn.Sub) }
func (rn *Rename) rewrite(r Rewriter) Node { rn.Sub = Rewrite(r, rn.Sub); return rn }

// Join is the cross product of Left and Right filtered by Pred
// (a Lambda over the concatenated tuple, or nil for an
// unconstrained cross join) (§4.6, §4.11).
type Join struct {
	Meta
	Left, Right Node
	Pred        Node // a Lambda, or nil
}

func (j *Join) walk(v Visitor) {
	Walk(v, j.Left)
	Walk(v, j.Right)
	if j.Pred != nil {
		Walk(v, j.Pred)
	}
}
func (j *Join) rewrite(r Rewriter) Node {
	j.Left = Rewrite(r, j.Left)
	j.Right = Rewrite(r, j.Right)
	if j.Pred != nil {
		j.Pred = Rewrite(r, j.Pred)
	}
	return j
}

// Order sorts Sub by Cols (all columns if Cols is empty); the
// result type becomes sequence(T) (§4.7, §4.11).
type Order struct {
	Meta
	Sub  Node
	Cols *colname.ColSet
}

func (o *Order) walk(v Visitor)         { Walk(v, o.Sub) }
func (o *Order) rewrite(r Rewriter) Node { o.Sub = Rewrite(r, o.Sub); return o }

// Uniq removes consecutive duplicates by Cols from a sorted
// Sub (§4.6, §4.11).
type Uniq struct {
	Meta
	Sub  Node
	Cols *colname.ColSet
}

func (u *Uniq) walk(v Visitor)         { Walk(v, u.Sub) }
func (u *Uniq) rewrite(r Rewriter) Node { u.Sub = Rewrite(r, u.Sub); return u }

// Nest groups Sub by the complement of Cols, appending a new
// column NewCol holding the set of Cols values per group
// (§4.6, §4.7, §4.11).
type Nest struct {
	Meta
	Sub    Node
	Cols   *colname.ColSet
	NewCol *colname.ColName
}

func (n *Nest) walk(v Visitor)         { Walk(v, n.Sub) }
func (n *Nest) rewrite(r Rewriter) Node { n.Sub = Rewrite(r, n.Sub); return n }

// Unnest flattens Col (a set/sequence column) back into rows
// (§4.6, §4.7, §4.11).
type Unnest struct {
	Meta
	Sub Node
	Col *colname.ColName
}

func (u *Unnest) walk(v Visitor)         { Walk(v, u.Sub) }
func (u *Unnest) rewrite(r Rewriter) Node { u.Sub = Rewrite(r, u.Sub); return u }

// Distinguish appends a fresh distinguisher column to defeat
// de-duplication (§4.6, §4.7, §4.11).
type Distinguish struct {
	Meta
	Sub    Node
	NewCol *colname.ColName
}

func (d *Distinguish) walk(v Visitor)         { Walk(v, d.Sub) }
func (d *Distinguish) rewrite(r Rewriter) Node { d.Sub = Rewrite(r, d.Sub); return d }

// Adjoin appends the result of applying Lambda to each row of
// Left as a new column NewCol (§4.6, §4.7, §4.11).
type Adjoin struct {
	Meta
	Left   Node
	Lambda Node
	NewCol *colname.ColName
}

func (a *Adjoin) walk(v Visitor) { Walk(v, a.Left); Walk(v, a.Lambda) }
func (a *Adjoin) rewrite(r Rewriter) Node {
	a.Left = Rewrite(r, a.Left)
	a.Lambda = Rewrite(r, a.Lambda)
	return a
}

// Step is an atomic, optimized graph traversal corresponding to
// one named (or computed) edge from SubCol of Sub (§4.6, §4.10,
// §4.11, GLOSSARY "Step"). Recognized by stepjoins from a
// Join(Sub, Scan, pred) pattern.
type Step struct {
	Meta
	Sub       Node
	SubCol    *colname.ColName
	EdgeName  string // "" if computed/unconstrained
	Reversed  bool
	LeftCol   *colname.ColName
	EdgeCol   *colname.ColName
	RightCol  *colname.ColName
	Pred      Node // residual predicate (a Lambda), or nil
}

func (s *Step) walk(v Visitor) {
	Walk(v, s.Sub)
	if s.Pred != nil {
		Walk(v, s.Pred)
	}
}
func (s *Step) rewrite(r Rewriter) Node {
	s.Sub = Rewrite(r, s.Sub)
	if s.Pred != nil {
		s.Pred = Rewrite(r, s.Pred)
	}
	return s
}

// Repeat is the fixed-point transitive-closure operator (§4.8).
// LoopVar is bound to CurrentObj each iteration and Body (the
// walked subpath, evaluated once per iteration) is re-evaluated
// under it; BodyStartCol/BodyEndCol/BodyPathCol name the
// columns of Body's result that carry the per-step start
// object, end object and (optionally) accumulated path.
type Repeat struct {
	Meta
	Sub            Node
	SubEndCol      *colname.ColName
	LoopVar        *Var
	BodyStartCol   *colname.ColName
	Body           Node
	BodyPathCol    *colname.ColName // nil if paths are not being collected
	BodyEndCol     *colname.ColName
	RepeatPathCol  *colname.ColName // nil if paths are not being collected
	RepeatEndCol   *colname.ColName
}

func (rp *Repeat) walk(v Visitor) { Walk(v, rp.Sub); Walk(v, rp.Body) }
func (rp *Repeat) rewrite(r Rewriter) Node {
	rp.Sub = Rewrite(r, rp.Sub)
	rp.Body = Rewrite(r, rp.Body)
	return rp
}

// Scan is the unconstrained enumeration of (left, edge, right)
// triples in the graph (§4.6, §4.7 "set(tuple(dbobj,dbedge,
// dbobj))", GLOSSARY "Scan").
type Scan struct {
	Meta
	LeftCol, EdgeCol, RightCol *colname.ColName
	Pred                       Node // a Lambda, or nil
}

func (s *Scan) walk(v Visitor) {
	if s.Pred != nil {
		Walk(v, s.Pred)
	}
}
func (s *Scan) rewrite(r Rewriter) Node {
	if s.Pred != nil {
		s.Pred = Rewrite(r, s.Pred)
	}
	return s
}

// BinOp/UnOp/FuncOp re-export pt's operator vocabulary so
// tuplify can lower 1:1 without a separate enum.
type BinOp int
type UnOp int
type FuncOp int

// Bop/Uop/Func mirror pt's expression operators, now operating
// on TC sub-expressions under the current row context.
type Bop struct {
	Meta
	Op          BinOp
	Left, Right Node
}

func (b *Bop) walk(v Visitor)         { Walk(v, b.Left); Walk(v, b.Right) }
func (b *Bop) rewrite(r Rewriter) Node { b.Left = Rewrite(r, b.Left); b.Right = Rewrite(r, b.Right); return b }

type Uop struct {
	Meta
	Op  UnOp
	Sub Node
}

func (u *Uop) walk(v Visitor)         { Walk(v, u.Sub) }
func (u *Uop) rewrite(r Rewriter) Node { u.Sub = Rewrite(r, u.Sub); return u }

type FuncNode struct {
	Meta
	Op   FuncOp
	Args []Node
}

func (f *FuncNode) walk(v Visitor) {
	for _, a := range f.Args {
		Walk(v, a)
	}
}
func (f *FuncNode) rewrite(r Rewriter) Node {
	for i, a := range f.Args {
		f.Args[i] = Rewrite(r, a)
	}
	return f
}

// Map applies Result once per element of Set, binding Var;
// result type is set(T) (§4.6, §4.7, §4.11).
type MapNode struct {
	Meta
	Var    *Var
	Set    Node
	Result Node
}

func (m *MapNode) walk(v Visitor)         { Walk(v, m.Set); Walk(v, m.Result) }
func (m *MapNode) rewrite(r Rewriter) Node { m.Set = Rewrite(r, m.Set); m.Result = Rewrite(r, m.Result); return m }

// Let binds Var to Value for the evaluation of Body.
type Let struct {
	Meta
	Var   *Var
	Value Node
	Body  Node
}

func (l *Let) walk(v Visitor)         { Walk(v, l.Value); Walk(v, l.Body) }
func (l *Let) rewrite(r Rewriter) Node { l.Value = Rewrite(r, l.Value); l.Body = Rewrite(r, l.Body); return l }

// Lambda is a held, unapplied expression over Var; it becomes a
// value.Lambda when evaluated as a value (predicates, Adjoin
// functions) (§3.5).
type Lambda struct {
	Meta
	Var  *Var
	Body Node
}

func (lm *Lambda) walk(v Visitor)         { Walk(v, lm.Body) }
func (lm *Lambda) rewrite(r Rewriter) Node { lm.Body = Rewrite(r, lm.Body); return lm }

// Apply invokes Fn (a Lambda) on Arg.
type Apply struct {
	Meta
	Fn  Node
	Arg Node
}

func (a *Apply) walk(v Visitor)         { Walk(v, a.Fn); Walk(v, a.Arg) }
func (a *Apply) rewrite(r Rewriter) Node { a.Fn = Rewrite(r, a.Fn); a.Arg = Rewrite(r, a.Arg); return a }

// ReadVar reads a bound TC variable.
type ReadVar struct {
	Meta
	Var *Var
}

func (rv *ReadVar) walk(Visitor)          {}
func (rv *ReadVar) rewrite(Rewriter) Node { return rv }

// ReadGlobal reads a named graph root via the backend.
type ReadGlobal struct {
	Meta
	Global *Global
}

func (rg *ReadGlobal) walk(Visitor)          {}
func (rg *ReadGlobal) rewrite(Rewriter) Node { return rg }

// CreatePathElement constructs a pathelement(l,e,r) value from
// the named columns of the current row (§4.11).
type CreatePathElement struct {
	Meta
	LeftCol, EdgeCol, RightCol *colname.ColName
}

func (c *CreatePathElement) walk(Visitor)          {}
func (c *CreatePathElement) rewrite(Rewriter) Node { return c }

// Splatter adjoins Value as a scalar under Name in the current
// row; used internally by tuplify when materializing computed
// edge names into the join context (§4.6 "computed edge names
// are first adjoined as an extra column of the context").
type Splatter struct {
	Meta
	Value Node
	Name  *colname.ColName
}

func (s *Splatter) walk(v Visitor)         { Walk(v, s.Value) }
func (s *Splatter) rewrite(r Rewriter) Node { s.Value = Rewrite(r, s.Value); return s }

// TupleNode builds a fresh tuple from Exprs, with a matching
// coltree list Cols.
type TupleNode struct {
	Meta
	Exprs []Node
	Cols  []*colname.ColName
}

func (t *TupleNode) walk(v Visitor) {
	for _, e := range t.Exprs {
		Walk(v, e)
	}
}
func (t *TupleNode) rewrite(r Rewriter) Node {
	for i, e := range t.Exprs {
		t.Exprs[i] = Rewrite(r, e)
	}
	return t
}

// ValueNode is a constant value leaf.
type ValueNode struct {
	Meta
	Const value.Value
}

func (vn *ValueNode) walk(Visitor)          {}
func (vn *ValueNode) rewrite(Rewriter) Node { return vn }
