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

// Package norenames eliminates every tcalc.Rename node from a TC
// tree (§8.1 invariant 7: "no Rename node survives past
// norenames"). Since a ColName's identity, not its surface name,
// is what every other node actually references, a Rename's effect
// can always be folded away by substituting its New identity for
// its Old identity at every later reference and splicing the
// Rename node out in favor of its Sub -- there is never a need to
// materialize an actual column copy.
//
// Grounded on plan/pir/rewrite.go's pass of folding trivial
// Bind/Rebind steps out of a finished plan in the teacher.
package norenames

import (
	"github.com/sneller-labs/pql/colname"
	"github.com/sneller-labs/pql/tcalc"
)

// Eliminate rewrites root in place, removing every Rename node.
func Eliminate(root tcalc.Node) tcalc.Node {
	subst := map[*colname.ColName]*colname.ColName{}
	collect(root, subst)
	return splice(root, subst)
}

// resolve follows a possibly-chained substitution to its end
// (Rename(Rename(x,A,B),B,C) must map A all the way to C).
func resolve(subst map[*colname.ColName]*colname.ColName, c *colname.ColName) *colname.ColName {
	seen := map[*colname.ColName]bool{}
	for {
		n, ok := subst[c]
		if !ok || seen[c] {
			return c
		}
		seen[c] = true
		c = n
	}
}

func collect(n tcalc.Node, subst map[*colname.ColName]*colname.ColName) {
	if n == nil {
		return
	}
	if rn, ok := n.(*tcalc.Rename); ok {
		subst[rn.Old] = rn.New
		collect(rn.Sub, subst)
		return
	}
	for _, child := range children(n) {
		collect(child, subst)
	}
}

// children returns every direct Node child of n, for the
// collection pass only (splice below has to do its own
// type-specific reconstruction since it also rewrites column
// references, not just recurse).
func children(n tcalc.Node) []tcalc.Node {
	switch x := n.(type) {
	case *tcalc.Filter:
		return []tcalc.Node{x.Sub, x.Pred}
	case *tcalc.Project:
		return []tcalc.Node{x.Sub}
	case *tcalc.Strip:
		return []tcalc.Node{x.Sub}
	case *tcalc.Join:
		out := []tcalc.Node{x.Left, x.Right}
		if x.Pred != nil {
			out = append(out, x.Pred)
		}
		return out
	case *tcalc.Order:
		return []tcalc.Node{x.Sub}
	case *tcalc.Uniq:
		return []tcalc.Node{x.Sub}
	case *tcalc.Nest:
		return []tcalc.Node{x.Sub}
	case *tcalc.Unnest:
		return []tcalc.Node{x.Sub}
	case *tcalc.Distinguish:
		return []tcalc.Node{x.Sub}
	case *tcalc.Adjoin:
		return []tcalc.Node{x.Left, x.Lambda}
	case *tcalc.Scan:
		if x.Pred != nil {
			return []tcalc.Node{x.Pred}
		}
	case *tcalc.Step:
		out := []tcalc.Node{x.Sub}
		if x.Pred != nil {
			out = append(out, x.Pred)
		}
		return out
	case *tcalc.Repeat:
		return []tcalc.Node{x.Sub, x.Body}
	case *tcalc.Bop:
		return []tcalc.Node{x.Left, x.Right}
	case *tcalc.Uop:
		return []tcalc.Node{x.Sub}
	case *tcalc.FuncNode:
		return x.Args
	case *tcalc.MapNode:
		return []tcalc.Node{x.Set, x.Result}
	case *tcalc.Let:
		return []tcalc.Node{x.Value, x.Body}
	case *tcalc.Lambda:
		return []tcalc.Node{x.Body}
	case *tcalc.Apply:
		return []tcalc.Node{x.Fn, x.Arg}
	case *tcalc.Splatter:
		return []tcalc.Node{x.Value}
	case *tcalc.TupleNode:
		return x.Exprs
	}
	return nil
}

// splice rebuilds the tree, dropping Rename nodes and remapping
// every column reference through subst.
func splice(n tcalc.Node, subst map[*colname.ColName]*colname.ColName) tcalc.Node {
	if n == nil {
		return nil
	}
	if rn, ok := n.(*tcalc.Rename); ok {
		return splice(rn.Sub, subst)
	}
	r := func(c *colname.ColName) *colname.ColName { return resolve(subst, c) }
	rs := func(s *colname.ColSet) *colname.ColSet {
		if s == nil {
			return nil
		}
		cols := make([]*colname.ColName, len(s.Cols()))
		for i, c := range s.Cols() {
			cols[i] = r(c)
		}
		if s.IsComplement() {
			return colname.Complement(cols...)
		}
		return colname.NewColSet(cols...)
	}

	switch x := n.(type) {
	case *tcalc.Filter:
		x.Sub = splice(x.Sub, subst)
		x.Pred = splice(x.Pred, subst)
	case *tcalc.Project:
		x.Sub = splice(x.Sub, subst)
		x.Cols = rs(x.Cols)
	case *tcalc.Strip:
		x.Sub = splice(x.Sub, subst)
		x.Cols = rs(x.Cols)
	case *tcalc.Join:
		x.Left = splice(x.Left, subst)
		x.Right = splice(x.Right, subst)
		if x.Pred != nil {
			x.Pred = splice(x.Pred, subst)
		}
	case *tcalc.Order:
		x.Sub = splice(x.Sub, subst)
		x.Cols = rs(x.Cols)
	case *tcalc.Uniq:
		x.Sub = splice(x.Sub, subst)
		x.Cols = rs(x.Cols)
	case *tcalc.Nest:
		x.Sub = splice(x.Sub, subst)
		x.Cols = rs(x.Cols)
		x.NewCol = r(x.NewCol)
	case *tcalc.Unnest:
		x.Sub = splice(x.Sub, subst)
		x.Col = r(x.Col)
	case *tcalc.Distinguish:
		x.Sub = splice(x.Sub, subst)
		x.NewCol = r(x.NewCol)
	case *tcalc.Adjoin:
		x.Left = splice(x.Left, subst)
		x.Lambda = splice(x.Lambda, subst)
		x.NewCol = r(x.NewCol)
	case *tcalc.Scan:
		x.LeftCol, x.EdgeCol, x.RightCol = r(x.LeftCol), r(x.EdgeCol), r(x.RightCol)
		if x.Pred != nil {
			x.Pred = splice(x.Pred, subst)
		}
	case *tcalc.Step:
		x.Sub = splice(x.Sub, subst)
		x.SubCol = r(x.SubCol)
		x.LeftCol, x.EdgeCol, x.RightCol = r(x.LeftCol), r(x.EdgeCol), r(x.RightCol)
		if x.Pred != nil {
			x.Pred = splice(x.Pred, subst)
		}
	case *tcalc.Repeat:
		x.Sub = splice(x.Sub, subst)
		x.SubEndCol = r(x.SubEndCol)
		x.BodyStartCol = r(x.BodyStartCol)
		x.Body = splice(x.Body, subst)
		if x.BodyPathCol != nil {
			x.BodyPathCol = r(x.BodyPathCol)
		}
		x.BodyEndCol = r(x.BodyEndCol)
		if x.RepeatPathCol != nil {
			x.RepeatPathCol = r(x.RepeatPathCol)
		}
		x.RepeatEndCol = r(x.RepeatEndCol)
	case *tcalc.Bop:
		x.Left = splice(x.Left, subst)
		x.Right = splice(x.Right, subst)
	case *tcalc.Uop:
		x.Sub = splice(x.Sub, subst)
	case *tcalc.FuncNode:
		for i, a := range x.Args {
			x.Args[i] = splice(a, subst)
		}
	case *tcalc.MapNode:
		x.Set = splice(x.Set, subst)
		x.Result = splice(x.Result, subst)
	case *tcalc.Let:
		x.Value = splice(x.Value, subst)
		x.Body = splice(x.Body, subst)
	case *tcalc.Lambda:
		x.Body = splice(x.Body, subst)
	case *tcalc.Apply:
		x.Fn = splice(x.Fn, subst)
		x.Arg = splice(x.Arg, subst)
	case *tcalc.CreatePathElement:
		x.LeftCol, x.EdgeCol, x.RightCol = r(x.LeftCol), r(x.EdgeCol), r(x.RightCol)
	case *tcalc.Splatter:
		x.Value = splice(x.Value, subst)
		x.Name = r(x.Name)
	case *tcalc.TupleNode:
		for i, e := range x.Exprs {
			x.Exprs[i] = splice(e, subst)
		}
		for i, c := range x.Cols {
			x.Cols[i] = r(c)
		}
	}
	return n
}
