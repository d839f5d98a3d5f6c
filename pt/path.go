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

// PathNode is the tagged-variant family of path expressions
// (§3.1). Every variant embeds Bindings for the three optional
// binding columns shared by all path nodes, plus the dontMerge/
// parens flags.
type PathNode interface {
	Node
	Binds() *Bindings
	pathnode()
}

// Bindings holds the three binding columns and flags that every
// path node carries in addition to its variant-specific payload
// (§3.1): bindObjBefore, bindObjAfter, bindPath, dontMerge, parens.
type Bindings struct {
	BindObjBefore *ColumnVar
	BindObjAfter  *ColumnVar
	BindPath      *ColumnVar
	DontMerge     bool
	Parens        bool
}

func (b *Bindings) Binds() *Bindings { return b }

// Sequence is ordered concatenation of subpaths.
type Sequence struct {
	Bindings
	Items []PathNode
	At    Position
}

func (s *Sequence) pathnode()      {}
func (s *Sequence) Pos() Position  { return s.At }
func (s *Sequence) walk(v Visitor) {
	for _, it := range s.Items {
		Walk(v, it)
	}
}
func (s *Sequence) rewrite(r Rewriter) Node {
	for i, it := range s.Items {
		s.Items[i] = Rewrite(r, it).(PathNode)
	}
	return s
}

// Alternates is set union of subpaths; TailVar, if non-nil,
// names the object reached by whichever alternative matched.
type Alternates struct {
	Bindings
	Items   []PathNode
	TailVar *ColumnVar
	At      Position
}

func (a *Alternates) pathnode()      {}
func (a *Alternates) Pos() Position  { return a.At }
func (a *Alternates) walk(v Visitor) {
	for _, it := range a.Items {
		Walk(v, it)
	}
}
func (a *Alternates) rewrite(r Rewriter) Node {
	for i, it := range a.Items {
		a.Items[i] = Rewrite(r, it).(PathNode)
	}
	return a
}

// Optional marks Sub as skippable; NilColumns lists the column
// vars that are nil-bound when Sub is skipped (populated by
// bindnil, §4.5).
type Optional struct {
	Bindings
	Sub        PathNode
	NilColumns []*ColumnVar
	At         Position
}

func (o *Optional) pathnode()      {}
func (o *Optional) Pos() Position  { return o.At }
func (o *Optional) walk(v Visitor) { Walk(v, o.Sub) }
func (o *Optional) rewrite(r Rewriter) Node {
	o.Sub = Rewrite(r, o.Sub).(PathNode)
	return o
}

// Repeated is Kleene-plus over Sub. PathFromInside/PathOnOutside
// name the path-accumulator column inside/outside the loop when
// the surrounding query asks for the traversed path (§3.1,
// "repetition... the inside path column is lifted to the
// outside column under repetition").
type Repeated struct {
	Bindings
	Sub            PathNode
	PathFromInside *ColumnVar
	PathOnOutside  *ColumnVar
	At             Position
}

func (r *Repeated) pathnode()      {}
func (r *Repeated) Pos() Position  { return r.At }
func (r *Repeated) walk(v Visitor) { Walk(v, r.Sub) }
func (r *Repeated) rewrite(rw Rewriter) Node {
	r.Sub = Rewrite(rw, r.Sub).(PathNode)
	return r
}

// NilBind binds Before and After to nil around Sub; produced by
// bindnil to make an alternative's complementary bindings
// explicit (§4.5).
type NilBind struct {
	Bindings
	Before []*ColumnVar
	Sub    PathNode
	After  []*ColumnVar
	At     Position
}

func (n *NilBind) pathnode()      {}
func (n *NilBind) Pos() Position  { return n.At }
func (n *NilBind) walk(v Visitor) { Walk(v, n.Sub) }
func (n *NilBind) rewrite(r Rewriter) Node {
	n.Sub = Rewrite(r, n.Sub).(PathNode)
	return n
}

// Edge is an atomic edge step: a literal Name, or a computed
// NameExpr (an Expression evaluated per-row to produce the edge
// name, per §4.6's "computed edge names are first adjoined...").
// Reversed walks the edge backwards (from right to left).
type Edge struct {
	Bindings
	Name     string // "" if NameExpr is set
	NameExpr Expression
	Reversed bool
	At       Position
}

func (e *Edge) pathnode()     {}
func (e *Edge) Pos() Position { return e.At }
func (e *Edge) walk(v Visitor) {
	if e.NameExpr != nil {
		Walk(v, e.NameExpr)
	}
}
func (e *Edge) rewrite(r Rewriter) Node {
	if e.NameExpr != nil {
		e.NameExpr = Rewrite(r, e.NameExpr).(Expression)
	}
	return e
}
