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

// Package movepaths implements §4.4: after unify, every Path
// expression is hoisted into the nearest enclosing From clause,
// and the original site is replaced by a ReadColumnVar naming the
// path's tail variable. If no From clause exists, one is
// synthesized.
//
// Grounded on plan/pir/decorrelate.go's hoist-into-the-enclosing-
// FROM pattern in the teacher (there: hoisting a correlated
// subquery's free variables into a join; here: hoisting a path
// expression itself).
package movepaths

import (
	"github.com/sneller-labs/pql/compile"
	"github.com/sneller-labs/pql/pt"
)

type mover struct {
	errs compile.Errors
}

// Move hoists every Path expression reachable from root into the
// nearest From clause (§4.4). Returns the (possibly rewritten)
// root and the accumulated diagnostics.
func Move(root pt.Expression) (pt.Expression, *compile.Errors) {
	m := &mover{}
	out := m.selectLike(root)
	return out, &m.errs
}

// selectLike processes one Select, synthesizing a From clause if
// none is present and hoisting every Path found in Where/Group/
// Result into it.
func (m *mover) selectLike(e pt.Expression) pt.Expression {
	sel, ok := e.(*pt.Select)
	if !ok {
		return m.walkOther(e)
	}
	var hoisted []pt.Expression
	if sel.Sub != nil {
		sel.Sub = m.hoistChain(sel.Sub, &hoisted)
	}
	sel.Result = m.hoistExpr(sel.Result, &hoisted)
	if len(hoisted) > 0 {
		from := findFrom(sel.Sub)
		if from == nil {
			from = &pt.From{}
			sel.Sub = chainFrom(sel.Sub, from)
		}
		from.Items = append(from.Items, hoisted...)
	}
	return sel
}

func (m *mover) walkOther(e pt.Expression) pt.Expression {
	switch x := e.(type) {
	case *pt.Assign:
		x.Value = m.selectLike(x.Value)
		if x.Body != nil {
			x.Body = m.selectLike(x.Body)
		}
		return x
	}
	return e
}

func findFrom(e pt.Expression) *pt.From {
	for cur := e; cur != nil; {
		switch x := cur.(type) {
		case *pt.From:
			return x
		case *pt.Where:
			cur = x.Sub
		case *pt.Group:
			cur = x.Sub
		case *pt.Ungroup:
			cur = x.Sub
		case *pt.Rename:
			cur = x.Sub
		default:
			return nil
		}
	}
	return nil
}

// chainFrom appends a synthesized From at the bottom of the
// Where/Group/... chain rooted at e.
func chainFrom(e pt.Expression, from *pt.From) pt.Expression {
	if e == nil {
		return from
	}
	switch x := e.(type) {
	case *pt.Where:
		x.Sub = chainFrom(x.Sub, from)
		return x
	case *pt.Group:
		x.Sub = chainFrom(x.Sub, from)
		return x
	case *pt.Ungroup:
		x.Sub = chainFrom(x.Sub, from)
		return x
	case *pt.Rename:
		x.Sub = chainFrom(x.Sub, from)
		return x
	}
	return e
}

// hoistChain walks the Where/Group/... chain above a From,
// hoisting any Path expressions it finds in predicates etc.
func (m *mover) hoistChain(e pt.Expression, hoisted *[]pt.Expression) pt.Expression {
	switch x := e.(type) {
	case *pt.From:
		for i, it := range x.Items {
			// Items of the From itself are already in from
			// position: a path item stays where it is and only its
			// root is searched for further paths to hoist.
			if p, ok := it.(*pt.Path); ok {
				p.Root = m.hoistExpr(p.Root, hoisted)
				continue
			}
			x.Items[i] = m.hoistExpr(it, hoisted)
		}
		return x
	case *pt.Where:
		x.Sub = m.hoistChain(x.Sub, hoisted)
		x.Pred = m.hoistExpr(x.Pred, hoisted)
		return x
	case *pt.Group:
		x.Sub = m.hoistChain(x.Sub, hoisted)
		return x
	case *pt.Ungroup:
		x.Sub = m.hoistChain(x.Sub, hoisted)
		return x
	case *pt.Rename:
		x.Sub = m.hoistChain(x.Sub, hoisted)
		return x
	}
	return e
}

// hoistExpr replaces any Path found in e with a ReadColumnVar
// naming its tail, queuing the Path itself onto hoisted. Before
// hoisting, it checks that the path's root depends only on
// from-bound variables (§4.4); the check here is necessarily
// coarse since full dependency analysis belongs to typeinf's
// environment -- a path whose root is anything other than a
// global-variable or column-variable read is flagged.
func (m *mover) hoistExpr(e pt.Expression, hoisted *[]pt.Expression) pt.Expression {
	if e == nil {
		return nil
	}
	switch x := e.(type) {
	case *pt.Path:
		if _, ok := x.Root.(*pt.ReadGlobalVar); !ok {
			if _, ok := x.Root.(*pt.ReadColumnVar); !ok {
				m.errs.Add(compile.Errorf(x, "path root depends on a variable that cannot be moved to the from-clause"))
				return x
			}
		}
		*hoisted = append(*hoisted, x)
		tail := x.Body.Binds().BindObjAfter
		if tail == nil {
			tail = x.Body.Binds().BindObjBefore
		}
		return &pt.ReadColumnVar{Var: tail, At: x.At}
	case *pt.Tuple:
		for i, it := range x.Items {
			x.Items[i] = m.hoistExpr(it, hoisted)
		}
		return x
	case *pt.Bop:
		x.Left = m.hoistExpr(x.Left, hoisted)
		x.Right = m.hoistExpr(x.Right, hoisted)
		return x
	case *pt.Uop:
		x.Sub = m.hoistExpr(x.Sub, hoisted)
		return x
	case *pt.Func:
		for i, a := range x.Args {
			x.Args[i] = m.hoistExpr(a, hoisted)
		}
		return x
	case *pt.Select:
		return m.selectLike(x)
	case *pt.Map:
		x.Set = m.hoistExpr(x.Set, hoisted)
		x.Result = m.hoistExpr(x.Result, hoisted)
		return x
	case *pt.Quantifier:
		x.Set = m.hoistExpr(x.Set, hoisted)
		x.Pred = m.hoistExpr(x.Pred, hoisted)
		return x
	case *pt.Rename:
		x.Sub = m.hoistExpr(x.Sub, hoisted)
		return x
	}
	return e
}
