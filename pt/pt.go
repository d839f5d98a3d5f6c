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

// Package pt implements the parse-tree (PT) data model (§3.1):
// the surface-language tree produced by the minimal front end in
// pt/parser, and consumed by resolve, normalize, unify, movepaths,
// bindnil, dequantify and finally lowered by tuplify.
//
// The node/visitor/rewriter shape here follows expr/node.go's
// Visitor/Rewriter/Walk/Rewrite pattern: every non-leaf node
// implements an unexported walk/rewrite pair, and the package-
// level Walk/Rewrite functions drive the recursion so that
// passes only need to implement node-local logic.
package pt

import "fmt"

// Position is a source location, used for diagnostics (§7).
type Position struct {
	Line, Col int
}

func (p Position) String() string { return fmt.Sprintf("%d:%d", p.Line, p.Col) }

// Node is implemented by every PT node: global vars, column
// vars, path nodes, and expressions.
type Node interface {
	Pos() Position
	walk(Visitor)
}

type nonleaf interface {
	rewrite(Rewriter) Node
}

// Visitor mirrors expr.Visitor: Visit is called for each node
// Walk encounters; if the returned Visitor is non-nil, Walk
// recurses into the node's children with it.
type Visitor interface {
	Visit(Node) Visitor
}

// Walk traverses a PT in depth-first order.
func Walk(v Visitor, n Node) {
	if n == nil {
		return
	}
	w := v.Visit(n)
	if w != nil {
		n.walk(w)
	}
}

// Rewriter mirrors expr.Rewriter.
type Rewriter interface {
	Rewrite(Node) Node
	Walk(Node) Rewriter
}

// Rewrite recursively applies r to n in depth-first order.
func Rewrite(r Rewriter, n Node) Node {
	if n == nil {
		return nil
	}
	if nl, ok := n.(nonleaf); ok {
		if rc := r.Walk(n); rc != nil {
			n = nl.rewrite(rc)
		}
	}
	return r.Rewrite(n)
}

// visitfn/rewritefn adapt a plain func to Visitor/Rewriter,
// matching the teacher's visitfn/rewritefn helper pattern used
// throughout plan/pir (e.g. build.go's hasAggregate).
type visitfn func(Node) bool

func (f visitfn) Visit(n Node) Visitor {
	if f(n) {
		return f
	}
	return nil
}

type rewritefn func(Node) Node

func (f rewritefn) Rewrite(n Node) Node   { return f(n) }
func (f rewritefn) Walk(Node) Rewriter    { return f }

// GlobalVar is a named reference to a graph root, resolved via
// the backend's ReadGlobal (§3.1, §4.1, §6.2).
type GlobalVar struct {
	Name string
	At   Position
}

func (g *GlobalVar) Pos() Position { return g.At }
func (g *GlobalVar) walk(Visitor)  {}
func (g *GlobalVar) String() string { return "$" + g.Name }

// ColumnVar is a column variable, distinguished by identity:
// two ColumnVars with the same Name are different variables
// unless they are the same pointer (§3.1).
type ColumnVar struct {
	Name string
	ID   uint64
	At   Position
}

func (c *ColumnVar) Pos() Position  { return c.At }
func (c *ColumnVar) walk(Visitor)   {}
func (c *ColumnVar) String() string { return c.Name }

var colVarCounter uint64

// NewColumnVar allocates a fresh, globally-unique column var
// with the given surface name.
func NewColumnVar(name string, at Position) *ColumnVar {
	colVarCounter++
	return &ColumnVar{Name: name, ID: colVarCounter, At: at}
}

// FreshColumnVar synthesizes a system-chosen column var, used by
// normalize and pt/parser whenever a binding needs a name that
// did not appear in the surface syntax (§3.1).
func FreshColumnVar(hint string) *ColumnVar {
	colVarCounter++
	return &ColumnVar{Name: fmt.Sprintf("$%s%d", hint, colVarCounter), ID: colVarCounter}
}
