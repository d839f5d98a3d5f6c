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

// Package bindnil implements §4.5: makes sure every variable
// bound inside a conditionally-skipped subpath has a definite
// (nil) value on the path through which it is skipped, so that
// every execution path through an Alternates or Optional binds
// the same set of columns (§8.1 invariant 3).
package bindnil

import "github.com/sneller-labs/pql/pt"

// BindNil rewrites every Optional and Alternates reachable from
// root so their nilColumns/NilBind wrapping is filled in (§4.5).
func BindNil(root pt.Expression) pt.Expression {
	return exprWalk(root)
}

func exprWalk(e pt.Expression) pt.Expression {
	if e == nil {
		return nil
	}
	switch x := e.(type) {
	case *pt.Select:
		if x.Sub != nil {
			x.Sub = exprWalk(x.Sub)
		}
		x.Result = exprWalk(x.Result)
	case *pt.From:
		if x.Sub != nil {
			x.Sub = exprWalk(x.Sub)
		}
		for i, it := range x.Items {
			x.Items[i] = exprWalk(it)
		}
	case *pt.Where:
		x.Sub = exprWalk(x.Sub)
		x.Pred = exprWalk(x.Pred)
	case *pt.Group:
		x.Sub = exprWalk(x.Sub)
	case *pt.Ungroup:
		x.Sub = exprWalk(x.Sub)
	case *pt.Rename:
		x.Sub = exprWalk(x.Sub)
	case *pt.Path:
		x.Root = exprWalk(x.Root)
		x.Body = pathWalk(x.Body)
	case *pt.Tuple:
		for i, it := range x.Items {
			x.Items[i] = exprWalk(it)
		}
	case *pt.Quantifier:
		x.Set = exprWalk(x.Set)
		x.Pred = exprWalk(x.Pred)
	case *pt.Map:
		x.Set = exprWalk(x.Set)
		x.Result = exprWalk(x.Result)
	case *pt.Assign:
		x.Value = exprWalk(x.Value)
		if x.Body != nil {
			x.Body = exprWalk(x.Body)
		}
	case *pt.Bop:
		x.Left = exprWalk(x.Left)
		x.Right = exprWalk(x.Right)
	case *pt.Uop:
		x.Sub = exprWalk(x.Sub)
	case *pt.Func:
		for i, a := range x.Args {
			x.Args[i] = exprWalk(a)
		}
	}
	return e
}

// boundVars collects every column var a path node binds,
// including transitively through its children.
func boundVars(p pt.PathNode) []*pt.ColumnVar {
	var out []*pt.ColumnVar
	add := func(v *pt.ColumnVar) {
		if v != nil {
			out = append(out, v)
		}
	}
	var walk func(pt.PathNode)
	walk = func(n pt.PathNode) {
		b := n.Binds()
		add(b.BindObjBefore)
		add(b.BindObjAfter)
		add(b.BindPath)
		switch x := n.(type) {
		case *pt.Sequence:
			for _, it := range x.Items {
				walk(it)
			}
		case *pt.Alternates:
			add(x.TailVar)
			for _, it := range x.Items {
				walk(it)
			}
		case *pt.Optional:
			walk(x.Sub)
		case *pt.Repeated:
			add(x.PathFromInside)
			add(x.PathOnOutside)
			walk(x.Sub)
		case *pt.NilBind:
			out = append(out, x.Before...)
			out = append(out, x.After...)
			walk(x.Sub)
		}
	}
	walk(p)
	return out
}

func pathWalk(p pt.PathNode) pt.PathNode {
	switch x := p.(type) {
	case *pt.Sequence:
		for i, it := range x.Items {
			x.Items[i] = pathWalk(it)
		}
		return x

	case *pt.Optional:
		x.Sub = pathWalk(x.Sub)
		x.NilColumns = boundVars(x.Sub)
		return x

	case *pt.Repeated:
		x.Sub = pathWalk(x.Sub)
		return x

	case *pt.Alternates:
		perAlt := make([][]*pt.ColumnVar, len(x.Items))
		var all []*pt.ColumnVar
		for i, it := range x.Items {
			it = pathWalk(it)
			x.Items[i] = it
			perAlt[i] = boundVars(it)
			all = append(all, perAlt[i]...)
		}
		for i, it := range x.Items {
			complement := complementOf(all, perAlt[i])
			if len(complement) == 0 {
				continue
			}
			x.Items[i] = &pt.NilBind{
				Before: complement,
				Sub:    it,
			}
		}
		return x

	case *pt.NilBind:
		x.Sub = pathWalk(x.Sub)
		return x

	case *pt.Edge:
		if x.NameExpr != nil {
			x.NameExpr = exprWalk(x.NameExpr)
		}
		return x
	}
	return p
}

// complementOf returns the vars in all that are not in mine, by
// identity.
func complementOf(all, mine []*pt.ColumnVar) []*pt.ColumnVar {
	skip := map[*pt.ColumnVar]bool{}
	for _, v := range mine {
		skip[v] = true
	}
	seen := map[*pt.ColumnVar]bool{}
	var out []*pt.ColumnVar
	for _, v := range all {
		if skip[v] || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
