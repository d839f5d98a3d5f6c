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

// Package dequantify eliminates Forall/Exists quantifiers before
// tuplify, rewriting them to Func(FAllTrue/FAnyTrue, Map(var, set,
// pred)) (SPEC_FULL §13 pipeline note; referenced by §4.6's
// "Quantifiers must already be gone" precondition). alltrue/anytrue
// on an empty set are true/false respectively (§8 boundary
// behaviors), which is exactly what FAllTrue/FAnyTrue's eval-time
// fold-identity already gives for free.
package dequantify

import "github.com/sneller-labs/pql/pt"

// Dequantify rewrites every Quantifier reachable from root into a
// Map wrapped in Func(FAllTrue) or Func(FAnyTrue).
func Dequantify(root pt.Expression) pt.Expression {
	return walk(root)
}

func walk(e pt.Expression) pt.Expression {
	if e == nil {
		return nil
	}
	switch x := e.(type) {
	case *pt.Select:
		if x.Sub != nil {
			x.Sub = walk(x.Sub)
		}
		x.Result = walk(x.Result)
	case *pt.From:
		if x.Sub != nil {
			x.Sub = walk(x.Sub)
		}
		for i, it := range x.Items {
			x.Items[i] = walk(it)
		}
	case *pt.Where:
		x.Sub = walk(x.Sub)
		x.Pred = walk(x.Pred)
	case *pt.Group:
		x.Sub = walk(x.Sub)
	case *pt.Ungroup:
		x.Sub = walk(x.Sub)
	case *pt.Rename:
		x.Sub = walk(x.Sub)
		if x.ComputedNameExpr != nil {
			x.ComputedNameExpr = walk(x.ComputedNameExpr)
		}
	case *pt.Path:
		x.Root = walk(x.Root)
		for i := range x.MoreBindings {
			x.MoreBindings[i].Value = walk(x.MoreBindings[i].Value)
		}
	case *pt.Tuple:
		for i, it := range x.Items {
			x.Items[i] = walk(it)
		}
	case *pt.Quantifier:
		set := walk(x.Set)
		pred := walk(x.Pred)
		m := &pt.Map{Var: x.Var, Set: set, Result: pred, At: x.At}
		op := pt.FAnyTrue
		if x.Forall {
			op = pt.FAllTrue
		}
		return &pt.Func{Op: op, Args: []pt.Expression{m}, At: x.At}
	case *pt.Map:
		x.Set = walk(x.Set)
		x.Result = walk(x.Result)
	case *pt.Assign:
		x.Value = walk(x.Value)
		if x.Body != nil {
			x.Body = walk(x.Body)
		}
	case *pt.Bop:
		x.Left = walk(x.Left)
		x.Right = walk(x.Right)
	case *pt.Uop:
		x.Sub = walk(x.Sub)
	case *pt.Func:
		for i, a := range x.Args {
			x.Args[i] = walk(a)
		}
	}
	return e
}
