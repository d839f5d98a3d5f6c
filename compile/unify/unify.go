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

// Package unify implements §4.3: prefix merging of path
// expressions sharing a root and a common body prefix, within
// each select scope.
//
// Grounded on plan/pir/decorrelate.go's "find the longest shared
// computation between two branches and factor it out" shape in
// the teacher, specialized from join-branch factoring to
// path-prefix factoring.
package unify

import "github.com/sneller-labs/pql/pt"

// live is one previously-seen path within the current scope: its
// root and body, plus the var bound at the end of it.
type live struct {
	root pt.Expression
	body pt.PathNode
	tail *pt.ColumnVar
}

type unifier struct {
	fromLive  []live // paths seen in from-clause position
	whereLive []live // paths seen in where-clause position, when no from exists
}

// Unify merges path prefixes within root's select scopes (§4.3).
func Unify(root pt.Expression) pt.Expression {
	u := &unifier{}
	return u.expr(root, false)
}

func (u *unifier) expr(e pt.Expression, inResult bool) pt.Expression {
	if e == nil {
		return nil
	}
	switch x := e.(type) {
	case *pt.Select:
		inner := &unifier{}
		if x.Sub != nil {
			x.Sub = inner.expr(x.Sub, false)
		}
		// Paths in the result clause are never merged with where (§4.3).
		resultU := &unifier{}
		x.Result = resultU.expr(x.Result, true)
		return x
	case *pt.From:
		if x.Sub != nil {
			x.Sub = u.expr(x.Sub, false)
		}
		for i, it := range x.Items {
			x.Items[i] = u.mergeItem(it, true)
		}
		return x
	case *pt.Where:
		x.Sub = u.expr(x.Sub, false)
		hasFrom := containsFrom(x.Sub)
		x.Pred = u.mergeItem(x.Pred, !hasFrom)
		return x
	case *pt.Group:
		x.Sub = u.expr(x.Sub, false)
		return x
	case *pt.Ungroup:
		x.Sub = u.expr(x.Sub, false)
		return x
	case *pt.Rename:
		x.Sub = u.expr(x.Sub, false)
		return x
	case *pt.Tuple:
		for i, it := range x.Items {
			x.Items[i] = u.mergeItem(it, inResult)
		}
		return x
	case *pt.Assign:
		x.Value = u.mergeItem(x.Value, inResult)
		if x.Body != nil {
			x.Body = u.expr(x.Body, inResult)
		}
		return x
	case *pt.Bop:
		x.Left = u.mergeItem(x.Left, inResult)
		x.Right = u.mergeItem(x.Right, inResult)
		return x
	case *pt.Uop:
		x.Sub = u.mergeItem(x.Sub, inResult)
		return x
	case *pt.Func:
		for i, a := range x.Args {
			x.Args[i] = u.mergeItem(a, inResult)
		}
		return x
	}
	return e
}

func containsFrom(e pt.Expression) bool {
	for cur := e; cur != nil; {
		switch x := cur.(type) {
		case *pt.From:
			return true
		case *pt.Where:
			cur = x.Sub
		case *pt.Group:
			cur = x.Sub
		case *pt.Ungroup:
			cur = x.Sub
		case *pt.Rename:
			cur = x.Sub
		default:
			return false
		}
	}
	return false
}

// mergeItem tries to unify a single path expression against the
// live set appropriate to its position (from vs. where-with-no-from),
// and otherwise just records it as newly live.
func (u *unifier) mergeItem(e pt.Expression, fromPosition bool) pt.Expression {
	p, ok := e.(*pt.Path)
	if !ok {
		return e
	}
	set := &u.whereLive
	if fromPosition {
		set = &u.fromLive
	}
	for i, l := range *set {
		if l.tail == nil {
			continue
		}
		if !sameRoot(l.root, p.Root) {
			continue
		}
		prefix := commonPrefixLen(l.body, p.Body)
		if prefix == 0 {
			continue
		}
		// Elide the shared prefix: rewrite p's root to read the
		// tail var of the matched live path, and drop that many
		// leading sequence items from p's body.
			if seq, ok := p.Body.(*pt.Sequence); ok && prefix <= len(seq.Items) {
			p.Root = &pt.ReadColumnVar{Var: l.tail}
			seq.Items = seq.Items[prefix:]
			if len(seq.Items) == 0 {
				p.Body = &pt.Sequence{Bindings: seq.Bindings}
			} else {
				p.Body = seq
			}
		}
		_ = i
		break
	}
	tail := p.Body.Binds().BindObjAfter
	if tail == nil {
		tail = p.Body.Binds().BindObjBefore
	}
	*set = append(*set, live{root: p.Root, body: p.Body, tail: tail})
	return p
}

// sameRoot reports whether two path roots are the same global or
// the same column var (§4.3 "compares its root... against each
// live path").
func sameRoot(a, b pt.Expression) bool {
	switch av := a.(type) {
	case *pt.ReadColumnVar:
		bv, ok := b.(*pt.ReadColumnVar)
		return ok && av.Var == bv.Var
	case *pt.ReadGlobalVar:
		bv, ok := b.(*pt.ReadGlobalVar)
		return ok && av.Var == bv.Var
	}
	return false
}

// commonPrefixLen returns the number of leading sequence items a
// and b share, comparing structurally and treating dontMerge nodes
// as never equal (§4.3 "equality ... not both tagged dontMerge").
func commonPrefixLen(a, b pt.PathNode) int {
	as, aok := a.(*pt.Sequence)
	bs, bok := b.(*pt.Sequence)
	if !aok || !bok {
		if structEqual(a, b) {
			return 1
		}
		return 0
	}
	n := 0
	for n < len(as.Items) && n < len(bs.Items) && structEqual(as.Items[n], bs.Items[n]) {
		n++
	}
	return n
}

func structEqual(a, b pt.PathNode) bool {
	if a.Binds().DontMerge || b.Binds().DontMerge {
		return false
	}
	ae, aok := a.(*pt.Edge)
	be, bok := b.(*pt.Edge)
	if aok && bok {
		return ae.Name == be.Name && ae.Reversed == be.Reversed && ae.NameExpr == nil && be.NameExpr == nil
	}
	return false
}
