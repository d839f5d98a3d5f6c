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

// Package tcalc implements the tuple-calculus algebra (§3.4,
// §4.6): the small relational algebra extended with path
// operators that tuplify lowers the parse tree into, and that
// typeinf/typecheck/norenames/baseopt/stepjoins/eval all
// operate over.
//
// Every node embeds Meta, which carries the datatype and
// coltree attached by typeinf (§4.7), the way every pir.Step in
// the teacher embeds a `parented`/`binds` mixin for its shared
// bookkeeping rather than repeating it per node type.
package tcalc

import (
	"github.com/sneller-labs/pql/colname"
	"github.com/sneller-labs/pql/types"
)

// Node is implemented by every TC node.
type Node interface {
	Type() *types.Type
	ColTree() *colname.ColTree
	SetType(*types.Type, *colname.ColTree)
	walk(Visitor)
	rewrite(Rewriter) Node
}

// Meta is embedded by every TC node to carry its datatype and
// coltree, filled in by typeinf (§4.7) and consulted by every
// later pass and by eval.
type Meta struct {
	typ *types.Type
	ct  *colname.ColTree
}

func (m *Meta) Type() *types.Type    { return m.typ }
func (m *Meta) ColTree() *colname.ColTree { return m.ct }
func (m *Meta) SetType(t *types.Type, ct *colname.ColTree) {
	m.typ, m.ct = t, ct
}

// Var is a TC variable: a unique id, refcount, datatype and
// coltree (§3.4). TC vars are explicitly refcounted (not
// region-owned) since a TC tree outlives any one pass.
type Var struct {
	ID   uint64
	Name string
	refs int32
	Meta
}

var varCounter uint64

// NewVar allocates a fresh TC var.
func NewVar(hint string) *Var {
	varCounter++
	return &Var{ID: varCounter, Name: hint}
}

func (v *Var) Ref() *Var { v.refs++; return v }
func (v *Var) Unref()    { v.refs-- }

// Global is a TC global reference: a name and a refcount.
type Global struct {
	Name string
	refs int32
	Meta
}

func (g *Global) Ref() *Global { g.refs++; return g }
func (g *Global) Unref()       { g.refs-- }

// Visitor/Rewriter/Walk/Rewrite mirror pt's and expr's pattern.
type Visitor interface {
	Visit(Node) Visitor
}

func Walk(v Visitor, n Node) {
	if n == nil {
		return
	}
	if w := v.Visit(n); w != nil {
		n.walk(w)
	}
}

type Rewriter interface {
	Rewrite(Node) Node
	Walk(Node) Rewriter
}

func Rewrite(r Rewriter, n Node) Node {
	if n == nil {
		return nil
	}
	if rc := r.Walk(n); rc != nil {
		n = n.rewrite(rc)
	}
	return r.Rewrite(n)
}

type visitfn func(Node) bool

func (f visitfn) Visit(n Node) Visitor {
	if f(n) {
		return f
	}
	return nil
}

type rewritefn func(Node) Node

func (f rewritefn) Rewrite(n Node) Node { return f(n) }
func (f rewritefn) Walk(Node) Rewriter  { return f }
