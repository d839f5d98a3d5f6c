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

// Package typeinf implements §4.7: bottom-up type and column
// inference over a TC tree, assigning every node a *types.Type
// and a *colname.ColTree (via Node.SetType). A ColTree always
// describes the shape of one row (types.Arity already treats
// set(T)/sequence(T)'s arity as T's arity, so the coltree never
// needs its own "this is wrapped in a set" marker).
//
// Grounded on plan/pir/cardinality.go's bottom-up shape-inference
// walk in the teacher (there: row-count/cardinality estimates
// attached per pir.Step; here: datatype/coltree attached per TC
// node), generalized from a single scalar estimate to a full
// recursive type.
package typeinf

import (
	"github.com/sneller-labs/pql/colname"
	"github.com/sneller-labs/pql/compile"
	"github.com/sneller-labs/pql/pt"
	"github.com/sneller-labs/pql/tcalc"
	"github.com/sneller-labs/pql/types"
	"github.com/sneller-labs/pql/value"
)

type rowShape struct {
	typ *types.Type
	ct  *colname.ColTree
}

type inferer struct {
	vars    map[*tcalc.Var]rowShape
	globals map[*tcalc.Global]rowShape
	errs    compile.Errors
}

// Infer walks n bottom-up, setting each node's Type/ColTree, and
// returns n's own shape plus any diagnostics raised along the way
// (an arity mismatch between a node's datatype and its coltree is
// an internal-invariant violation, §8.1 invariant 6, not a normal
// typecheck error -- but we still record it rather than panic, so
// a caller in debug mode can report it as a bug).
func Infer(n tcalc.Node) (*types.Type, *colname.ColTree, *compile.Errors) {
	inf := &inferer{vars: map[*tcalc.Var]rowShape{}, globals: map[*tcalc.Global]rowShape{}}
	t, ct := inf.infer(n)
	return t, ct, &inf.errs
}

func tupleOf(elems ...*types.Type) *types.Type {
	if len(elems) == 1 {
		return elems[0]
	}
	return types.Tuple(elems...)
}

func treeOf(cols ...*colname.ColName) *colname.ColTree {
	if len(cols) == 1 {
		return colname.Leaf(cols[0])
	}
	children := make([]*colname.ColTree, len(cols))
	for i, c := range cols {
		children[i] = colname.Leaf(c)
	}
	return colname.Node(colname.Fresh("row"), children...)
}

// concatTrees builds the coltree of a's row concatenated with
// b's row (mirrors types.TupleConcat's flattening).
func concatTrees(a, b *colname.ColTree) *colname.ColTree {
	var leaves []*colname.ColName
	if a != nil {
		leaves = append(leaves, a.Leaves()...)
	}
	if b != nil {
		leaves = append(leaves, b.Leaves()...)
	}
	return treeOf(leaves...)
}

func (inf *inferer) infer(n tcalc.Node) (*types.Type, *colname.ColTree) {
	if n == nil {
		return types.AbsTop(), nil
	}
	t, ct := inf.inferNode(n)
	if ct != nil && t.Kind != types.AbsTop && types.Arity(t) != ct.Arity() {
		inf.errs.Add(compile.Errorf(nilNode{}, "internal: datatype arity %d does not match coltree arity %d", types.Arity(t), ct.Arity()))
	}
	n.SetType(t, ct)
	return t, ct
}

// nilNode is a throwaway pt.Node used only to carry a position
// (none) for internal-invariant diagnostics raised mid-TC-tree,
// where there is no surface-syntax location to point at.
type nilNode struct{}

func (nilNode) Pos() pt.Position { return pt.Position{} }

func (inf *inferer) inferNode(n tcalc.Node) (*types.Type, *colname.ColTree) {
	switch x := n.(type) {
	case *tcalc.Filter:
		t, ct := inf.infer(x.Sub)
		elem := elemOf(t)
		inf.bindLambda(x.Pred, elem, ct)
		return t, ct

	case *tcalc.Project:
		t, ct := inf.infer(x.Sub)
		cols := x.Cols.Resolve(ct)
		comps := make([]*types.Type, len(cols))
		for i, c := range cols {
			comps[i] = componentType(elemOf(t), ct, c)
		}
		proj := tupleOf(comps...)
		if isSet(t) {
			return types.Set(proj), treeOf(cols...)
		}
		// Project on a non-set directly returns the projected
		// tuple (§4.7) -- this is how tuplify reads a single
		// field out of "the current row" without a dedicated
		// field-read node.
		return proj, treeOf(cols...)

	case *tcalc.Strip:
		t, ct := inf.infer(x.Sub)
		drop := x.Cols.Resolve(ct)
		kept := keep(ct, drop)
		comps := make([]*types.Type, len(kept))
		for i, c := range kept {
			comps[i] = componentType(elemOf(t), ct, c)
		}
		stripped := tupleOf(comps...)
		if isSet(t) {
			return types.Set(stripped), treeOf(kept...)
		}
		return stripped, treeOf(kept...)

	case *tcalc.Rename:
		t, ct := inf.infer(x.Sub)
		return t, renameTree(ct, x.Old, x.New)

	case *tcalc.Join:
		lt, lct := inf.infer(x.Left)
		rt, rct := inf.infer(x.Right)
		ct := concatTrees(lct, rct)
		joined := tupleOf(append(flat(elemOf(lt)), flat(elemOf(rt))...)...)
		if x.Pred != nil {
			inf.bindLambda(x.Pred, joined, ct)
		}
		return types.Set(joined), ct

	case *tcalc.Order:
		t, ct := inf.infer(x.Sub)
		return types.Sequence(elemOf(t)), ct

	case *tcalc.Uniq:
		return inf.infer(x.Sub)

	case *tcalc.Nest:
		t, ct := inf.infer(x.Sub)
		elem := elemOf(t)
		nested := x.Cols.Resolve(ct)
		kept := keep(ct, nested)
		keptComps := make([]*types.Type, len(kept))
		for i, c := range kept {
			keptComps[i] = componentType(elem, ct, c)
		}
		nestedComps := make([]*types.Type, len(nested))
		for i, c := range nested {
			nestedComps[i] = componentType(elem, ct, c)
		}
		newColType := types.Set(tupleOf(nestedComps...))
		comps := append(keptComps, newColType)
		resultCT := treeOf(append(append([]*colname.ColName{}, kept...), x.NewCol)...)
		return types.Set(tupleOf(comps...)), resultCT

	case *tcalc.Unnest:
		// Ungroup keeps x.Col's own identity: the same column
		// that held the nested set now holds one element per
		// row, repeated once per member (§4.6 "ungroup"). No
		// fresh column is minted -- tuplify threads the same
		// col through Group/Ungroup on purpose.
		t, ct := inf.infer(x.Sub)
		elem := elemOf(t)
		setT := componentType(elem, ct, x.Col)
		innerT := elemOf(setT)
		rest := keep(ct, []*colname.ColName{x.Col})
		restComps := make([]*types.Type, len(rest))
		for i, c := range rest {
			restComps[i] = componentType(elem, ct, c)
		}
		comps := append(restComps, innerT)
		resultCT := treeOf(append(append([]*colname.ColName{}, rest...), x.Col)...)
		return types.Set(tupleOf(comps...)), resultCT

	case *tcalc.Distinguish:
		t, ct := inf.infer(x.Sub)
		elem := elemOf(t)
		comps := append(flat(elem), types.DistinguisherT())
		resultCT := treeOf(append(append([]*colname.ColName{}, ct.Leaves()...), x.NewCol)...)
		return types.Set(tupleOf(comps...)), resultCT

	case *tcalc.Adjoin:
		t, ct := inf.infer(x.Left)
		elem := elemOf(t)
		bt, _ := inf.bindLambda(x.Lambda, elem, ct)
		// bt becomes exactly one new component, even if it is
		// itself a tuple type -- Adjoin always introduces a
		// single NewCol, never one column per component of bt.
		comps := append(flat(elem), bt)
		resultCT := treeOf(append(append([]*colname.ColName{}, ct.Leaves()...), x.NewCol)...)
		return types.Set(tupleOf(comps...)), resultCT

	case *tcalc.Scan:
		tup := types.Tuple(types.DBObjT(), types.DBEdgeT(), types.DBObjT())
		ct := treeOf(x.LeftCol, x.EdgeCol, x.RightCol)
		if x.Pred != nil {
			inf.bindLambda(x.Pred, tup, ct)
		}
		return types.Set(tup), ct

	case *tcalc.Step:
		// A Step's output row is Sub plus exactly one new column:
		// the object reached by the traversal (RightCol, or LeftCol
		// when Reversed). EdgeCol and the starting-end column are
		// never part of the output row; Pred (a residual
		// computed-edge-name check, when present) is typed against
		// Sub's row plus EdgeCol and RightCol -- a path step never exposes the edge
		// label or restates the starting object unless the query
		// explicitly asked for it via its own Adjoin/rename.
		t, ct := inf.infer(x.Sub)
		elem := elemOf(t)
		afterCol := x.RightCol
		if x.Reversed {
			afterCol = x.LeftCol
		}
		comps := append(flat(elem), types.DBObjT())
		resultCT := treeOf(append(append([]*colname.ColName{}, ct.Leaves()...), afterCol)...)
		if x.Pred != nil {
			predComps := append(append([]*types.Type{}, flat(elem)...), types.DBEdgeT(), types.DBObjT())
			predCT := treeOf(append(append([]*colname.ColName{}, ct.Leaves()...), x.EdgeCol, x.RightCol)...)
			inf.bindLambda(x.Pred, tupleOf(predComps...), predCT)
		}
		return types.Set(tupleOf(comps...)), resultCT

	case *tcalc.Repeat:
		subT, subCT := inf.infer(x.Sub)
		elem := elemOf(subT)
		inf.vars[x.LoopVar] = rowShape{typ: types.DBObjT()}
		bodyT, bodyCT := inf.infer(x.Body)
		bodyElem := elemOf(bodyT)
		endT := componentType(bodyElem, bodyCT, x.BodyEndCol)
		comps := append(flat(elem), endT)
		leaves := append([]*colname.ColName{}, subCT.Leaves()...)
		leaves = append(leaves, x.RepeatEndCol)
		return types.Set(tupleOf(comps...)), treeOf(leaves...)

	case *tcalc.Bop:
		lt, _ := inf.infer(x.Left)
		rt, _ := inf.infer(x.Right)
		return binOpType(x.Op, lt, rt), nil

	case *tcalc.Uop:
		st, sct := inf.infer(x.Sub)
		return unOpType(x.Op, st), sct

	case *tcalc.FuncNode:
		var argTypes []*types.Type
		for _, a := range x.Args {
			at, _ := inf.infer(a)
			argTypes = append(argTypes, at)
		}
		return funcType(x.Op, argTypes), nil

	case *tcalc.MapNode:
		st, sct := inf.infer(x.Set)
		elem := elemOf(st)
		inf.vars[x.Var] = rowShape{typ: elem, ct: sct}
		rt, _ := inf.infer(x.Result)
		return types.Set(rt), nil

	case *tcalc.Let:
		vt, vct := inf.infer(x.Value)
		inf.vars[x.Var] = rowShape{typ: vt, ct: vct}
		return inf.infer(x.Body)

	case *tcalc.Lambda:
		if _, ok := inf.vars[x.Var]; !ok {
			inf.vars[x.Var] = rowShape{typ: types.AbsTop()}
		}
		bt, _ := inf.infer(x.Body)
		return types.Lambda(inf.vars[x.Var].typ, bt), nil

	case *tcalc.Apply:
		ft, _ := inf.infer(x.Fn)
		inf.infer(x.Arg)
		if ft.Kind == types.LambdaKind {
			return ft.Elem, nil
		}
		return types.AbsTop(), nil

	case *tcalc.ReadVar:
		sh, ok := inf.vars[x.Var]
		if !ok {
			return types.AbsTop(), nil
		}
		return sh.typ, sh.ct

	case *tcalc.ReadGlobal:
		sh, ok := inf.globals[x.Global]
		if !ok {
			sh = rowShape{typ: types.DBObjT(), ct: colname.Leaf(colname.New(x.Global.Name))}
			inf.globals[x.Global] = sh
		}
		return sh.typ, sh.ct

	case *tcalc.CreatePathElement:
		return types.PathElementT(), nil

	case *tcalc.Splatter:
		inf.infer(x.Value)
		return types.AbsTop(), colname.Leaf(x.Name)

	case *tcalc.TupleNode:
		comps := make([]*types.Type, len(x.Exprs))
		for i, e := range x.Exprs {
			comps[i], _ = inf.infer(e)
		}
		return tupleOf(comps...), treeOf(x.Cols...)

	case *tcalc.ValueNode:
		return valueType(x.Const), nil
	}
	return types.AbsTop(), nil
}

// bindLambda types a Lambda node's Var against (argT, argCT) and
// infers its body, returning the body's shape. Called at every
// site a Lambda is held as a predicate/mapper (Filter.Pred,
// Join.Pred, Scan.Pred, Step.Pred, Adjoin.Lambda) so the Lambda's
// own Meta also gets set consistently with its call site.
func (inf *inferer) bindLambda(n tcalc.Node, argT *types.Type, argCT *colname.ColTree) (*types.Type, *colname.ColTree) {
	lam, ok := n.(*tcalc.Lambda)
	if !ok {
		return inf.infer(n)
	}
	inf.vars[lam.Var] = rowShape{typ: argT, ct: argCT}
	bt, bct := inf.infer(lam.Body)
	lam.SetType(types.Lambda(argT, bt), nil)
	return bt, bct
}

func isSet(t *types.Type) bool {
	return t != nil && (t.Kind == types.SetKind || t.Kind == types.SequenceKind)
}

func elemOf(t *types.Type) *types.Type {
	if t == nil {
		return types.AbsTop()
	}
	if isSet(t) {
		return t.Elem
	}
	return t
}

func flat(t *types.Type) []*types.Type {
	if t == nil {
		return nil
	}
	if t.Kind == types.TupleKind {
		return t.Components
	}
	return []*types.Type{t}
}

// componentType looks up the type of column c within row type
// elem, using ct's leaf order to find c's position.
func componentType(elem *types.Type, ct *colname.ColTree, c *colname.ColName) *types.Type {
	if ct == nil {
		return types.AbsTop()
	}
	comps := flat(elem)
	for i, leaf := range ct.Leaves() {
		if leaf == c && i < len(comps) {
			return comps[i]
		}
	}
	return types.AbsTop()
}

func keep(ct *colname.ColTree, drop []*colname.ColName) []*colname.ColName {
	skip := map[*colname.ColName]bool{}
	for _, c := range drop {
		skip[c] = true
	}
	var out []*colname.ColName
	for _, c := range ct.Leaves() {
		if !skip[c] {
			out = append(out, c)
		}
	}
	return out
}

func renameTree(ct *colname.ColTree, old, new_ *colname.ColName) *colname.ColTree {
	leaves := ct.Leaves()
	out := make([]*colname.ColName, len(leaves))
	for i, l := range leaves {
		if l == old {
			out[i] = new_
		} else {
			out[i] = l
		}
	}
	return treeOf(out...)
}

// binOpType assigns a result type to a Bop per §4.9's argument
// constraints; an ill-typed operand is caught later by typecheck,
// so here we just pick the most informative result type we can
// without erroring.
func binOpType(op tcalc.BinOp, l, r *types.Type) *types.Type {
	switch pt.BinOp(op) {
	case pt.OpEq, pt.OpNeq, pt.OpLt, pt.OpLte, pt.OpGt, pt.OpGte,
		pt.OpAnd, pt.OpOr, pt.OpIn, pt.OpLike, pt.OpGrep:
		return types.Bool_()
	case pt.OpAdd, pt.OpSub, pt.OpMul, pt.OpDiv, pt.OpMod:
		if (l != nil && l.Kind == types.Double) || (r != nil && r.Kind == types.Double) {
			return types.Double_()
		}
		return types.AbsNumberT()
	case pt.OpUnion, pt.OpUnionAll, pt.OpIntersect, pt.OpExcept:
		return types.MatchGeneralize(nonNilT(l), nonNilT(r))
	case pt.OpConcat:
		return nonNilT(l)
	}
	return types.AbsTop()
}

func nonNilT(t *types.Type) *types.Type {
	if t == nil {
		return types.AbsTop()
	}
	return t
}

func unOpType(op tcalc.UnOp, sub *types.Type) *types.Type {
	switch pt.UnOp(op) {
	case pt.OpNot, pt.OpNonempty:
		return types.Bool_()
	case pt.OpNeg:
		return nonNilT(sub)
	}
	return types.AbsTop()
}

// funcType assigns a result type to a Func(op, args) node per
// §4.9's reduction semantics: aggregates over a set of scalars
// reduce to the scalar type, count/alltrue/anytrue/new have
// fixed result kinds, and choose generalizes over its arguments'
// types.
func funcType(op tcalc.FuncOp, args []*types.Type) *types.Type {
	switch pt.FuncOp(op) {
	case pt.FCount:
		return types.Int_()
	case pt.FSum, pt.FMin, pt.FMax:
		if len(args) > 0 {
			return elemOf(args[0])
		}
		return types.AbsNumberT()
	case pt.FAllTrue, pt.FAnyTrue:
		return types.Bool_()
	case pt.FChoose:
		if len(args) == 0 {
			return types.AbsTop()
		}
		t := args[0]
		for _, a := range args[1:] {
			t = types.MatchGeneralize(t, a)
		}
		return t
	case pt.FNew:
		return types.DBObjT()
	}
	return types.AbsTop()
}

// valueType infers the static type of a constant from its runtime
// Kind; composite constants (Set/Sequence/Tuple) generalize over
// their elements via MatchGeneralize.
func valueType(v value.Value) *types.Type {
	if v == nil {
		return types.AbsTop()
	}
	switch v.Kind() {
	case value.KindNil:
		return types.AbsTop()
	case value.KindBool:
		return types.Bool_()
	case value.KindInt:
		return types.Int_()
	case value.KindFloat:
		return types.Double_()
	case value.KindString:
		return types.String_()
	case value.KindDistinguisher:
		return types.DistinguisherT()
	case value.KindPathElement:
		return types.PathElementT()
	case value.KindStruct:
		return types.StructT()
	case value.KindLambda:
		return types.AbsTop()
	case value.KindTuple:
		t := v.(value.Tuple)
		comps := make([]*types.Type, len(t))
		for i, e := range t {
			comps[i] = valueType(e)
		}
		return tupleOf(comps...)
	case value.KindSet:
		s := v.(*value.Set)
		return types.Set(generalizeAll(s.Items()))
	case value.KindSequence:
		sq := v.(value.Sequence)
		return types.Sequence(generalizeAll(sq))
	}
	return types.AbsTop()
}

func generalizeAll(items []value.Value) *types.Type {
	if len(items) == 0 {
		return types.AbsBottomT()
	}
	t := valueType(items[0])
	for _, it := range items[1:] {
		t = types.MatchGeneralize(t, valueType(it))
	}
	return t
}
