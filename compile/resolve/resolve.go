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

// Package resolve implements the first pipeline stage (§4.1):
// it walks the PT with a stack of lexical scopes, binds every
// ReadAnyVar to the ColumnVar or GlobalVar it names, and flags
// shadowing, rebinding and group/ungroup-of-non-column-variable
// mistakes.
//
// The scope-stack shape is grounded on plan/pir/scope.go's
// Scope/push/pop bookkeeping in the teacher, adapted from
// "resolve a table/column name against a lexical binding stack"
// to "resolve an identifier against a stack of column-var
// bindings introduced by from-items, group/ungroup, map,
// forall/exists and let".
package resolve

import (
	"github.com/sneller-labs/pql/compile"
	"github.com/sneller-labs/pql/pt"
)

type scope struct {
	vars   map[string]*pt.ColumnVar
	parent *scope
}

func newScope(parent *scope) *scope {
	return &scope{vars: map[string]*pt.ColumnVar{}, parent: parent}
}

func (s *scope) lookup(name string) (*pt.ColumnVar, *scope) {
	for sc := s; sc != nil; sc = sc.parent {
		if v, ok := sc.vars[name]; ok {
			return v, sc
		}
	}
	return nil, nil
}

func (s *scope) has(v *pt.ColumnVar) bool {
	for sc := s; sc != nil; sc = sc.parent {
		for _, cand := range sc.vars {
			if cand == v {
				return true
			}
		}
	}
	return false
}

type resolver struct {
	top     *scope
	globals map[string]*pt.GlobalVar
	errs    compile.Errors
}

// Resolve binds every ReadAnyVar in root to a ReadColumnVar or
// ReadGlobalVar (§4.1). On success (errs.Failed() == false) no
// ReadAnyVar node remains anywhere in the result (§8.1 invariant 1).
func Resolve(root pt.Expression) (pt.Expression, *compile.Errors) {
	r := &resolver{top: newScope(nil), globals: map[string]*pt.GlobalVar{}}
	out := r.expr(root)
	return out, &r.errs
}

// bind registers name->v in the current scope, warning on
// rebind-in-same-scope or shadow-of-enclosing-scope (§4.1).
func (r *resolver) bind(name string, v *pt.ColumnVar, at pt.Position) {
	if name == "" || v == nil {
		return
	}
	if prev, already := r.top.vars[name]; already {
		w := compile.Warnf(v, "variable %q is rebound in the same scope", name)
		w.Also = &prev.At
		r.errs.Add(w)
	} else if prev, sc := r.top.parent.lookup(name); sc != nil {
		w := compile.Warnf(v, "binding of %q shadows a visible outer binding", name)
		w.Also = &prev.At
		r.errs.Add(w)
	}
	r.top.vars[name] = v
}

func (r *resolver) push()    { r.top = newScope(r.top) }
func (r *resolver) pop()     { r.top = r.top.parent }

func (r *resolver) global(name string, at pt.Position) *pt.GlobalVar {
	if g, ok := r.globals[name]; ok {
		return g
	}
	g := &pt.GlobalVar{Name: name, At: at}
	r.globals[name] = g
	return g
}

// checkBound emits the group/ungroup-of-non-column-variable error
// (§4.1) when v is not visible in the current scope chain.
func (r *resolver) checkBound(v *pt.ColumnVar, at pt.Position, verb string) {
	if v == nil || !r.top.has(v) {
		r.errs.Add(compile.Errorf(&pt.ColumnVar{At: at}, "%s of a variable that is not a visible column binding", verb))
	}
}

// bindPath registers a path node's own binding columns, then
// recurses into its children in source order.
func (r *resolver) bindPath(p pt.PathNode) pt.PathNode {
	switch n := p.(type) {
	case *pt.Sequence:
		for i, it := range n.Items {
			n.Items[i] = r.bindPath(it)
		}
		r.bindBindings(&n.Bindings)
		return n
	case *pt.Alternates:
		for i, it := range n.Items {
			n.Items[i] = r.bindPath(it)
		}
		if n.TailVar != nil {
			r.bind(n.TailVar.Name, n.TailVar, n.At)
		}
		r.bindBindings(&n.Bindings)
		return n
	case *pt.Optional:
		n.Sub = r.bindPath(n.Sub)
		for _, c := range n.NilColumns {
			r.bind(c.Name, c, n.At)
		}
		r.bindBindings(&n.Bindings)
		return n
	case *pt.Repeated:
		n.Sub = r.bindPath(n.Sub)
		if n.PathFromInside != nil {
			r.bind(n.PathFromInside.Name, n.PathFromInside, n.At)
		}
		if n.PathOnOutside != nil {
			r.bind(n.PathOnOutside.Name, n.PathOnOutside, n.At)
		}
		r.bindBindings(&n.Bindings)
		return n
	case *pt.NilBind:
		for _, c := range n.Before {
			r.bind(c.Name, c, n.At)
		}
		n.Sub = r.bindPath(n.Sub)
		for _, c := range n.After {
			r.bind(c.Name, c, n.At)
		}
		r.bindBindings(&n.Bindings)
		return n
	case *pt.Edge:
		if n.NameExpr != nil {
			n.NameExpr = r.expr(n.NameExpr)
		}
		r.bindBindings(&n.Bindings)
		return n
	}
	return p
}

func (r *resolver) bindBindings(b *pt.Bindings) {
	if b.BindObjBefore != nil {
		r.bind(b.BindObjBefore.Name, b.BindObjBefore, pt.Position{})
	}
	if b.BindObjAfter != nil {
		r.bind(b.BindObjAfter.Name, b.BindObjAfter, pt.Position{})
	}
	if b.BindPath != nil {
		r.bind(b.BindPath.Name, b.BindPath, pt.Position{})
	}
}

func (r *resolver) expr(e pt.Expression) pt.Expression {
	if e == nil {
		return nil
	}
	switch n := e.(type) {
	case *pt.Select:
		r.push()
		if n.Sub != nil {
			n.Sub = r.expr(n.Sub)
		}
		n.Result = r.expr(n.Result)
		r.pop()
		return n

	case *pt.From:
		if n.Sub != nil {
			n.Sub = r.expr(n.Sub)
		}
		for i, it := range n.Items {
			n.Items[i] = r.expr(it)
		}
		return n

	case *pt.Where:
		n.Sub = r.expr(n.Sub)
		n.Pred = r.expr(n.Pred)
		return n

	case *pt.Group:
		n.Sub = r.expr(n.Sub)
		for _, v := range n.Vars {
			r.checkBound(v, n.At, "group-by")
		}
		if n.NewVar != nil {
			r.bind(n.NewVar.Name, n.NewVar, n.At)
		}
		return n

	case *pt.Ungroup:
		n.Sub = r.expr(n.Sub)
		r.checkBound(n.Var, n.At, "ungroup")
		return n

	case *pt.Rename:
		n.Sub = r.expr(n.Sub)
		if n.ComputedNameExpr != nil {
			n.ComputedNameExpr = r.expr(n.ComputedNameExpr)
		}
		return n

	case *pt.Path:
		n.Root = r.expr(n.Root)
		n.Body = r.bindPath(n.Body)
		for i := range n.MoreBindings {
			n.MoreBindings[i].Value = r.expr(n.MoreBindings[i].Value)
			r.bind(n.MoreBindings[i].Var.Name, n.MoreBindings[i].Var, n.At)
		}
		return n

	case *pt.Tuple:
		for i, it := range n.Items {
			n.Items[i] = r.expr(it)
		}
		return n

	case *pt.Quantifier:
		n.Set = r.expr(n.Set)
		r.push()
		r.bind(n.Var.Name, n.Var, n.At)
		n.Pred = r.expr(n.Pred)
		r.pop()
		return n

	case *pt.Map:
		n.Set = r.expr(n.Set)
		r.push()
		r.bind(n.Var.Name, n.Var, n.At)
		n.Result = r.expr(n.Result)
		r.pop()
		return n

	case *pt.Assign:
		n.Value = r.expr(n.Value)
		if n.Body != nil {
			r.push()
			r.bind(n.Var.Name, n.Var, n.At)
			n.Body = r.expr(n.Body)
			r.pop()
		} else {
			// Assign without a body binds into the enclosing
			// scope for the remainder of its block (§4.1).
			r.bind(n.Var.Name, n.Var, n.At)
		}
		return n

	case *pt.Bop:
		n.Left = r.expr(n.Left)
		n.Right = r.expr(n.Right)
		return n

	case *pt.Uop:
		n.Sub = r.expr(n.Sub)
		return n

	case *pt.Func:
		for i, a := range n.Args {
			n.Args[i] = r.expr(a)
		}
		return n

	case *pt.ReadAnyVar:
		if v, _ := r.top.lookup(n.Name); v != nil {
			return &pt.ReadColumnVar{Var: v, At: n.At}
		}
		return &pt.ReadGlobalVar{Var: r.global(n.Name, n.At), At: n.At}

	case *pt.ReadColumnVar, *pt.ReadGlobalVar, *pt.Value:
		return n
	}
	return e
}
