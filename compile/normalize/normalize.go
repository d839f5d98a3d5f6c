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

// Package normalize implements §4.2: path and expression-level
// simplifications that preserve semantics and give later passes
// (unify, movepaths, bindnil, tuplify) a smaller set of shapes to
// handle.
//
// The handful of path/expression laws §4.2 names are applied in a
// single bottom-up recursive walk, children before parents; unlike
// plan/pir/optimize.go's "apply every rule, reprocess on change"
// driver in the teacher, nothing is re-run to a fixpoint.
package normalize

import (
	"github.com/sneller-labs/pql/pt"
	"github.com/sneller-labs/pql/value"
)

// Normalize rewrites root in place per §4.2 and returns the
// (possibly different) root node.
func Normalize(root pt.Expression) pt.Expression {
	n := &normalizer{}
	return n.expr(root)
}

type normalizer struct {
	// pending holds let-bindings synthesized by path-composition
	// (§4.2 "Path-composition") that must be spliced back in by
	// the caller that owns the enclosing expression.
	pending []pt.Binding
}

func (n *normalizer) expr(e pt.Expression) pt.Expression {
	if e == nil {
		return nil
	}
	switch x := e.(type) {
	case *pt.Select:
		if x.Sub != nil {
			x.Sub = n.expr(x.Sub)
		}
		x.Result = n.expr(x.Result)
		return x
	case *pt.From:
		if x.Sub != nil {
			x.Sub = n.expr(x.Sub)
		}
		for i, it := range x.Items {
			x.Items[i] = n.expr(it)
		}
		return x
	case *pt.Where:
		x.Sub = n.expr(x.Sub)
		x.Pred = n.expr(x.Pred)
		if isTrueLiteral(x.Pred) {
			// "where true" is deleted (§4.2).
			return x.Sub
		}
		return x
	case *pt.Group:
		x.Sub = n.expr(x.Sub)
		if x.NewVar == nil {
			// "group-by synthesizes a fresh bound variable if
			// none was named" (§4.2).
			x.NewVar = pt.FreshColumnVar("grp")
		}
		return x
	case *pt.Ungroup:
		x.Sub = n.expr(x.Sub)
		return x
	case *pt.Rename:
		x.Sub = n.expr(x.Sub)
		if x.ComputedNameExpr != nil {
			x.ComputedNameExpr = n.expr(x.ComputedNameExpr)
		}
		return x
	case *pt.Path:
		x.Root = n.expr(x.Root)
		sub := &normalizer{}
		x.Body = sub.path(x.Body)
		x.MoreBindings = append(x.MoreBindings, sub.pending...)
		for i := range x.MoreBindings {
			x.MoreBindings[i].Value = n.expr(x.MoreBindings[i].Value)
		}
		return x
	case *pt.Tuple:
		for i, it := range x.Items {
			x.Items[i] = n.expr(it)
		}
		if len(x.Items) == 1 {
			// "arity-1 tuples collapse to their element" (§4.2).
			return x.Items[0]
		}
		return x
	case *pt.Quantifier:
		x.Set = n.expr(x.Set)
		x.Pred = n.expr(x.Pred)
		return x
	case *pt.Map:
		x.Set = n.expr(x.Set)
		x.Result = n.expr(x.Result)
		return x
	case *pt.Assign:
		x.Value = n.expr(x.Value)
		if x.Body != nil {
			x.Body = n.expr(x.Body)
		}
		return x
	case *pt.Bop:
		x.Left = n.expr(x.Left)
		x.Right = n.expr(x.Right)
		return x
	case *pt.Uop:
		x.Sub = n.expr(x.Sub)
		return x
	case *pt.Func:
		for i, a := range x.Args {
			x.Args[i] = n.expr(a)
		}
		return x
	}
	return e
}

func isTrueLiteral(e pt.Expression) bool {
	v, ok := e.(*pt.Value)
	if !ok {
		return false
	}
	b, ok := v.Const.(value.Bool)
	return ok && bool(b)
}

// path applies the Kleene-style repetition laws and sequence/
// alternates hygiene (§4.2) to a single PathNode, recursively.
func (n *normalizer) path(p pt.PathNode) pt.PathNode {
	switch x := p.(type) {
	case *pt.Sequence:
		flat := make([]pt.PathNode, 0, len(x.Items))
		for _, it := range x.Items {
			it = n.path(it)
			if s, ok := it.(*pt.Sequence); ok && !s.DontMerge {
				flat = append(flat, s.Items...)
				continue
			}
			flat = append(flat, it)
		}
		x.Items = flat
		if len(x.Items) == 1 && !x.DontMerge {
			return reassign(x.Items[0], &x.Bindings)
		}
		n.composePath(x, &x.Bindings)
		return x

	case *pt.Alternates:
		flat := make([]pt.PathNode, 0, len(x.Items))
		for _, it := range x.Items {
			it = n.path(it)
			if a, ok := it.(*pt.Alternates); ok && !a.DontMerge {
				flat = append(flat, a.Items...)
				continue
			}
			flat = append(flat, it)
		}
		x.Items = flat
		if len(x.Items) == 1 && !x.DontMerge {
			return reassign(x.Items[0], &x.Bindings)
		}
		// Each alternative must bind an after-object var so the
		// tailVar choose() can reference it (§4.2).
		choices := make([]pt.Expression, 0, len(x.Items))
		for _, it := range x.Items {
			b := it.Binds()
			if b.BindObjAfter == nil {
				b.BindObjAfter = pt.FreshColumnVar("alt")
			}
			choices = append(choices, &pt.ReadColumnVar{Var: b.BindObjAfter})
		}
		if x.TailVar == nil {
			x.TailVar = pt.FreshColumnVar("tail")
		}
		n.pending = append(n.pending, pt.Binding{
			Var:   x.TailVar,
			Value: &pt.Func{Op: pt.FChoose, Args: choices},
		})
		n.composePath(x, &x.Bindings)
		return x

	case *pt.Optional:
		x.Sub = n.path(x.Sub)
		n.composePath(x, &x.Bindings)
		return reassign(collapseRepetition(x), &x.Bindings)

	case *pt.Repeated:
		x.Sub = n.path(x.Sub)
		n.composePath(x, &x.Bindings)
		return reassign(collapseRepetition(x), &x.Bindings)

	case *pt.NilBind:
		x.Sub = n.path(x.Sub)
		n.composePath(x, &x.Bindings)
		return x

	case *pt.Edge:
		if x.NameExpr != nil {
			x.NameExpr = n.expr(x.NameExpr)
		}
		n.composePath(x, &x.Bindings)
		return x
	}
	return p
}

// collapseRepetition rewrites repeated(optional(P)), optional(optional(P))
// and repeated(repeated(P)) per the §4.2 table; canonical "zero or
// more" is optional(repeated(P)).
func collapseRepetition(p pt.PathNode) pt.PathNode {
	switch x := p.(type) {
	case *pt.Optional:
		if inner, ok := x.Sub.(*pt.Optional); ok {
			return collapseRepetition(inner)
		}
	case *pt.Repeated:
		if inner, ok := x.Sub.(*pt.Repeated); ok {
			return collapseRepetition(inner)
		}
		if inner, ok := x.Sub.(*pt.Optional); ok {
			return &pt.Optional{
				Bindings: x.Bindings,
				Sub:      collapseRepetition(&pt.Repeated{Sub: inner.Sub, At: x.At}),
				At:       x.At,
			}
		}
	}
	return p
}

// reassign transfers outer's bindings onto inner when a length-1
// sequence/alternates collapses to its single element (§4.2
// "reassigning any bindings").
func reassign(inner pt.PathNode, outer *pt.Bindings) pt.PathNode {
	b := inner.Binds()
	if b.BindObjBefore == nil {
		b.BindObjBefore = outer.BindObjBefore
	}
	if b.BindObjAfter == nil {
		b.BindObjAfter = outer.BindObjAfter
	}
	if b.BindPath == nil {
		b.BindPath = outer.BindPath
	}
	return inner
}

// composePath synthesizes the bindPath value, when requested, by
// concatenating/choosing the sub-path values of children (§4.2
// "Path-composition"). The synthesized value is queued onto
// n.pending as a let-binding for the caller to splice in.
func (n *normalizer) composePath(p pt.PathNode, b *pt.Bindings) {
	if b.BindPath == nil {
		return
	}
	var val pt.Expression
	switch x := p.(type) {
	case *pt.Sequence:
		for _, it := range x.Items {
			if c := it.Binds().BindPath; c != nil {
				var part pt.Expression = &pt.ReadColumnVar{Var: c}
				if val != nil {
					part = &pt.Bop{Op: pt.OpConcat, Left: val, Right: part}
				}
				val = part
			}
		}
		if val == nil {
			val = &pt.Value{}
		}
	case *pt.Alternates:
		parts := make([]pt.Expression, 0, len(x.Items))
		for _, it := range x.Items {
			if c := it.Binds().BindPath; c != nil {
				parts = append(parts, &pt.ReadColumnVar{Var: c})
			}
		}
		val = &pt.Func{Op: pt.FChoose, Args: parts}
	case *pt.Edge:
		val = &pt.Value{}
	default:
		return
	}
	n.pending = append(n.pending, pt.Binding{Var: b.BindPath, Value: val})
}
