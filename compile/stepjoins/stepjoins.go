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

// Package stepjoins implements §4.10: it recognizes the
// Strip(Join(sub, Scan, pred), cols) shape that tuplify's edge
// lowering deliberately produces (one Scan per traversed edge,
// joined against the running context and immediately stripped of
// its match/edge-name columns) and folds it into a single Step
// node, so a backend can later recognize "traverse this edge"
// as one operation instead of a generic cross-join-then-filter.
//
// Runs after norenames, so every Rename this shape would
// otherwise have carried has already been spliced away and the
// Scan's own column fields already name the post-rename identity.
//
// Grounded on plan/pir/rewrite.go's peephole folding of a
// generic Join+Filter pair into a purpose-built step in the
// teacher's physical planner.
package stepjoins

import (
	"github.com/sneller-labs/pql/colname"
	"github.com/sneller-labs/pql/compile"
	"github.com/sneller-labs/pql/pt"
	"github.com/sneller-labs/pql/tcalc"
	"github.com/sneller-labs/pql/value"
)

type nilNode struct{}

func (nilNode) Pos() pt.Position { return pt.Position{} }

type folder struct {
	errs compile.Errors
}

// Fold rewrites every recognizable Strip(Join(_, Scan, _), _)
// pattern in root into a Step, bottom-up, and returns the
// (possibly replaced) root plus any diagnostics.
func Fold(root tcalc.Node) (tcalc.Node, *compile.Errors) {
	f := &folder{}
	return f.node(root), &f.errs
}

func (f *folder) node(n tcalc.Node) tcalc.Node {
	if n == nil {
		return nil
	}
	switch x := n.(type) {
	case *tcalc.Filter:
		x.Sub = f.node(x.Sub)
		x.Pred = f.node(x.Pred)
	case *tcalc.Project:
		x.Sub = f.node(x.Sub)
	case *tcalc.Strip:
		x.Sub = f.node(x.Sub)
		if step := f.tryFold(x); step != nil {
			return step
		}
	case *tcalc.Join:
		x.Left = f.node(x.Left)
		x.Right = f.node(x.Right)
		if x.Pred != nil {
			x.Pred = f.node(x.Pred)
		}
	case *tcalc.Order:
		x.Sub = f.node(x.Sub)
	case *tcalc.Uniq:
		x.Sub = f.node(x.Sub)
	case *tcalc.Nest:
		x.Sub = f.node(x.Sub)
	case *tcalc.Unnest:
		x.Sub = f.node(x.Sub)
	case *tcalc.Distinguish:
		x.Sub = f.node(x.Sub)
	case *tcalc.Adjoin:
		x.Left = f.node(x.Left)
		x.Lambda = f.node(x.Lambda)
	case *tcalc.Scan:
		if x.Pred != nil {
			x.Pred = f.node(x.Pred)
		}
	case *tcalc.Step:
		x.Sub = f.node(x.Sub)
	case *tcalc.Repeat:
		x.Sub = f.node(x.Sub)
		x.Body = f.node(x.Body)
	case *tcalc.Bop:
		x.Left = f.node(x.Left)
		x.Right = f.node(x.Right)
	case *tcalc.Uop:
		x.Sub = f.node(x.Sub)
	case *tcalc.FuncNode:
		for i, a := range x.Args {
			x.Args[i] = f.node(a)
		}
	case *tcalc.MapNode:
		x.Set = f.node(x.Set)
		x.Result = f.node(x.Result)
	case *tcalc.Let:
		x.Value = f.node(x.Value)
		x.Body = f.node(x.Body)
	case *tcalc.Lambda:
		x.Body = f.node(x.Body)
	case *tcalc.Apply:
		x.Fn = f.node(x.Fn)
		x.Arg = f.node(x.Arg)
	case *tcalc.Splatter:
		x.Value = f.node(x.Value)
	case *tcalc.TupleNode:
		for i, e := range x.Exprs {
			x.Exprs[i] = f.node(e)
		}
	}
	return n
}

// tryFold recognizes Strip(Join(work, Scan, Lambda{predVar,
// eqFrom [AND nameEq]}), {matchCol, edgeCol[, edgeNameCol]}) and
// returns the folded Step, or nil if strip doesn't sit directly
// atop this exact shape (left alone as a generic join -- §4.10
// is explicitly "representative, not exhaustive").
func (f *folder) tryFold(strip *tcalc.Strip) *tcalc.Step {
	join, ok := strip.Sub.(*tcalc.Join)
	if !ok {
		return nil
	}
	scan, ok := join.Right.(*tcalc.Scan)
	if !ok {
		return nil
	}
	lam, ok := join.Pred.(*tcalc.Lambda)
	if !ok {
		return nil
	}
	eqFrom, nameEq := splitBody(lam.Body)
	fromCol, matchCol, ok := matchCols(eqFrom)
	if !ok {
		return nil
	}
	var reversed bool
	switch matchCol {
	case scan.LeftCol:
		reversed = false
	case scan.RightCol:
		reversed = true
	default:
		return nil
	}
	stripped := strip.Cols.Resolve(strip.Sub.ColTree())
	if !containsCol(stripped, matchCol) || !containsCol(stripped, scan.EdgeCol) {
		return nil
	}

	edgeName := ""
	if nameEq != nil {
		lit, ok := literalEdgeName(nameEq, scan.EdgeCol)
		if !ok {
			f.errs.Add(compile.Warnf(nilNode{}, "stepjoins: computed edge name not folded into a single step; left as a generic join"))
			return nil
		}
		edgeName = lit
	}

	afterCol := scan.RightCol
	if reversed {
		afterCol = scan.LeftCol
	}
	return &tcalc.Step{
		Sub:      join.Left,
		SubCol:   fromCol,
		EdgeName: edgeName,
		Reversed: reversed,
		LeftCol:  scan.LeftCol,
		EdgeCol:  scan.EdgeCol,
		RightCol: afterCol,
	}
}

// splitBody splits a predicate body of the shape `eqFrom` or
// `eqFrom and nameEq` (as produced by tuplify's step()) into its
// two conjuncts; nameEq is nil if there was no name constraint.
func splitBody(body tcalc.Node) (eqFrom, nameEq tcalc.Node) {
	if b, ok := body.(*tcalc.Bop); ok && pt.BinOp(b.Op) == pt.OpAnd {
		return b.Left, b.Right
	}
	return body, nil
}

// matchCols extracts (fromCol, matchCol) from an equality of two
// single-column Projects over the same row var, as produced by
// tuplify's eqFrom.
func matchCols(n tcalc.Node) (from, match *colname.ColName, ok bool) {
	b, ok := n.(*tcalc.Bop)
	if !ok || pt.BinOp(b.Op) != pt.OpEq {
		return nil, nil, false
	}
	l, lok := singleProjectedCol(b.Left)
	r, rok := singleProjectedCol(b.Right)
	if !lok || !rok {
		return nil, nil, false
	}
	return l, r, true
}

func singleProjectedCol(n tcalc.Node) (*colname.ColName, bool) {
	p, ok := n.(*tcalc.Project)
	if !ok {
		return nil, false
	}
	cols := p.Cols.Cols()
	if len(cols) != 1 {
		return nil, false
	}
	return cols[0], true
}

// literalEdgeName reports whether nameEq compares edgeCol against
// a constant string, returning that string.
func literalEdgeName(nameEq tcalc.Node, edgeCol *colname.ColName) (string, bool) {
	b, ok := nameEq.(*tcalc.Bop)
	if !ok || pt.BinOp(b.Op) != pt.OpEq {
		return "", false
	}
	col, lok := singleProjectedCol(b.Left)
	if !lok || col != edgeCol {
		return "", false
	}
	vn, ok := b.Right.(*tcalc.ValueNode)
	if !ok {
		return "", false
	}
	s, ok := vn.Const.(value.String)
	if !ok {
		return "", false
	}
	return string(s), true
}

func containsCol(cols []*colname.ColName, c *colname.ColName) bool {
	for _, x := range cols {
		if x == c {
			return true
		}
	}
	return false
}
