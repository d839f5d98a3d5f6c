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

// Package eval implements §4.11: the single-threaded, recursive
// evaluator that walks a fully-lowered, typed, optimized TC tree
// (post-stepjoins) and produces a value.Value, talking to the
// graph only through the backend.Backend interface.
//
// A row is represented the same way typeinf's coltree shape
// implies: arity 1 is a bare value.Value, arity > 1 is a
// value.Tuple -- there is never a 1-element value.Tuple, mirroring
// tupleOf/treeOf's convention in package typeinf.
//
// Because backend.Backend only exposes traversal from a known
// starting object (Follow/FollowAll), an unconstrained
// tcalc.Scan -- the global enumeration of every (left, edge,
// right) triple in the graph -- has no way to run against it.
// tuplify always produces a Scan wrapped in a Join against a
// concrete left-hand context, and stepjoins folds the recognized
// shape into a Step that resolves through Follow/FollowAll; a
// Join whose operand is still a bare Scan after stepjoins (e.g.
// stepjoins declined to fold a computed edge name) is reported as
// a runtime error rather than attempted, matching §4.10's note
// that stepjoins is representative, not exhaustive.
//
// Grounded on the teacher's plan/vm execution loop: a flat,
// recursive walk over an already-optimized plan tree, dispatching
// per node kind, with no separate bytecode or staged compilation
// step of its own.
package eval

import (
	"fmt"
	"sort"

	"github.com/sneller-labs/pql/backend"
	"github.com/sneller-labs/pql/colname"
	"github.com/sneller-labs/pql/pt"
	"github.com/sneller-labs/pql/regexp2"
	"github.com/sneller-labs/pql/tcalc"
	"github.com/sneller-labs/pql/value"
)

// Evaluator holds the mutable state threaded through one
// evaluation of a TC tree: the backend to traverse with, and the
// bindings currently in scope for TC vars/globals.
type Evaluator struct {
	be      backend.Backend
	vars    map[*tcalc.Var]value.Value
	globals map[*tcalc.Global]value.Value
}

// Eval evaluates root against be and returns its value.
func Eval(root tcalc.Node, be backend.Backend) (value.Value, error) {
	e := &Evaluator{
		be:      be,
		vars:    map[*tcalc.Var]value.Value{},
		globals: map[*tcalc.Global]value.Value{},
	}
	return e.eval(root)
}

func (e *Evaluator) eval(n tcalc.Node) (value.Value, error) {
	switch x := n.(type) {
	case *tcalc.Filter:
		return e.evalFilter(x)
	case *tcalc.Project:
		return e.evalProject(x)
	case *tcalc.Strip:
		return e.evalStrip(x)
	case *tcalc.Rename:
		return e.eval(x.Sub)
	case *tcalc.Join:
		return e.evalJoin(x)
	case *tcalc.Order:
		return e.evalOrder(x)
	case *tcalc.Uniq:
		return e.evalUniq(x)
	case *tcalc.Nest:
		return e.evalNest(x)
	case *tcalc.Unnest:
		return e.evalUnnest(x)
	case *tcalc.Distinguish:
		return e.evalDistinguish(x)
	case *tcalc.Adjoin:
		return e.evalAdjoin(x)
	case *tcalc.Scan:
		return nil, fmt.Errorf("eval: unconstrained graph scan cannot be evaluated; expected stepjoins to fold this traversal into a step")
	case *tcalc.Step:
		return e.evalStep(x)
	case *tcalc.Repeat:
		return e.evalRepeat(x)
	case *tcalc.Bop:
		return e.evalBop(x)
	case *tcalc.Uop:
		return e.evalUop(x)
	case *tcalc.FuncNode:
		return e.evalFunc(x)
	case *tcalc.MapNode:
		return e.evalMap(x)
	case *tcalc.Let:
		v, err := e.eval(x.Value)
		if err != nil {
			return nil, err
		}
		e.vars[x.Var] = v
		defer delete(e.vars, x.Var)
		return e.eval(x.Body)
	case *tcalc.Lambda:
		return value.Lambda{Expr: x}, nil
	case *tcalc.Apply:
		return e.evalApply(x)
	case *tcalc.ReadVar:
		v, ok := e.vars[x.Var]
		if !ok {
			return value.Nil{}, nil
		}
		return v, nil
	case *tcalc.ReadGlobal:
		return e.evalReadGlobal(x)
	case *tcalc.CreatePathElement:
		return nil, fmt.Errorf("eval: create-path-element requires a bound row; not reachable as a standalone node")
	case *tcalc.Splatter:
		return e.eval(x.Value)
	case *tcalc.TupleNode:
		return e.evalTuple(x)
	case *tcalc.ValueNode:
		return x.Const, nil
	}
	return nil, fmt.Errorf("eval: unhandled node type %T", n)
}

// evalLambda binds lam.Var to arg for the evaluation of lam.Body.
func (e *Evaluator) evalLambda(lam *tcalc.Lambda, arg value.Value) (value.Value, error) {
	e.vars[lam.Var] = arg
	defer delete(e.vars, lam.Var)
	return e.eval(lam.Body)
}

func (e *Evaluator) asLambda(n tcalc.Node) (*tcalc.Lambda, error) {
	lam, ok := n.(*tcalc.Lambda)
	if !ok {
		return nil, fmt.Errorf("eval: expected a lambda, got %T", n)
	}
	return lam, nil
}

// --- row representation helpers -------------------------------

// rowValues returns the per-leaf component values of row in ct's
// leaf order; a scalar (arity-1) row is returned as its own
// single-element slice.
func rowValues(row value.Value, ct *colname.ColTree) []value.Value {
	if !ct.IsTuple() {
		return []value.Value{row}
	}
	t, ok := row.(value.Tuple)
	if !ok {
		return []value.Value{row}
	}
	return []value.Value(t)
}

// fromValues is the inverse of flattening a row into components:
// a single value stays bare, more than one becomes a value.Tuple.
func fromValues(vals []value.Value) value.Value {
	if len(vals) == 1 {
		return vals[0]
	}
	return value.Tuple(vals)
}

// getCol reads the value of column c out of row, using ct to find
// its position.
func getCol(row value.Value, ct *colname.ColTree, c *colname.ColName) value.Value {
	if !ct.IsTuple() {
		return row
	}
	idx := ct.IndexOf(c)
	if idx < 0 {
		return value.Nil{}
	}
	t, ok := row.(value.Tuple)
	if !ok || idx >= len(t) {
		return value.Nil{}
	}
	return t[idx]
}

// keepCols returns ct's leaves excluding drop, preserving order.
func keepCols(ct *colname.ColTree, drop []*colname.ColName) []*colname.ColName {
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

// rowProject builds the value of projecting cols out of row.
func rowProject(row value.Value, ct *colname.ColTree, cols []*colname.ColName) value.Value {
	vals := make([]value.Value, len(cols))
	for i, c := range cols {
		vals[i] = getCol(row, ct, c)
	}
	return fromValues(vals)
}

// rebuildColl wraps items back up in whatever collection kind sub
// originally was (Set vs. Sequence), matching the operator's
// input cardinality/ordering semantics.
func rebuildColl(sub value.Value, items []value.Value) value.Value {
	switch sub.(type) {
	case value.Sequence:
		return value.Sequence(items)
	default:
		return value.NewSet(items...)
	}
}

// truthy reports whether v counts as "true" in a predicate
// position; nil and anything that isn't value.Bool(true) counts
// as false (§4.11 "Filter drops elements for which Pred
// evaluates to nil or false").
func truthy(v value.Value) bool {
	b, ok := v.(value.Bool)
	return ok && bool(b)
}

// --- row-set operators ------------------------------------------

func (e *Evaluator) evalFilter(x *tcalc.Filter) (value.Value, error) {
	sub, err := e.eval(x.Sub)
	if err != nil {
		return nil, err
	}
	coll, ok := value.AsColl(sub)
	if !ok {
		return nil, fmt.Errorf("eval: filter requires a set/sequence, got %s", sub.Kind())
	}
	lam, err := e.asLambda(x.Pred)
	if err != nil {
		return nil, err
	}
	var out []value.Value
	for _, item := range coll.Elements() {
		r, err := e.evalLambda(lam, item)
		if err != nil {
			return nil, err
		}
		if truthy(r) {
			out = append(out, item)
		}
	}
	return rebuildColl(sub, out), nil
}

func (e *Evaluator) evalProject(x *tcalc.Project) (value.Value, error) {
	sub, err := e.eval(x.Sub)
	if err != nil {
		return nil, err
	}
	subCT := x.Sub.ColTree()
	cols := x.Cols.Resolve(subCT)
	if coll, ok := value.AsColl(sub); ok {
		out := make([]value.Value, 0, len(coll.Elements()))
		for _, item := range coll.Elements() {
			out = append(out, rowProject(item, subCT, cols))
		}
		return rebuildColl(sub, out), nil
	}
	// Project on a non-set value reads a field off the current
	// row directly (§4.7's Project-as-field-read design).
	return rowProject(sub, subCT, cols), nil
}

func (e *Evaluator) evalStrip(x *tcalc.Strip) (value.Value, error) {
	sub, err := e.eval(x.Sub)
	if err != nil {
		return nil, err
	}
	subCT := x.Sub.ColTree()
	drop := x.Cols.Resolve(subCT)
	kept := keepCols(subCT, drop)
	if coll, ok := value.AsColl(sub); ok {
		out := make([]value.Value, 0, len(coll.Elements()))
		for _, item := range coll.Elements() {
			out = append(out, rowProject(item, subCT, kept))
		}
		return rebuildColl(sub, out), nil
	}
	return rowProject(sub, subCT, kept), nil
}

func (e *Evaluator) evalJoin(x *tcalc.Join) (value.Value, error) {
	if _, ok := x.Left.(*tcalc.Scan); ok {
		return nil, fmt.Errorf("eval: unconstrained graph scan cannot be evaluated; expected stepjoins to fold this traversal into a step")
	}
	if _, ok := x.Right.(*tcalc.Scan); ok {
		return nil, fmt.Errorf("eval: unconstrained graph scan cannot be evaluated; expected stepjoins to fold this traversal into a step")
	}
	left, err := e.eval(x.Left)
	if err != nil {
		return nil, err
	}
	right, err := e.eval(x.Right)
	if err != nil {
		return nil, err
	}
	leftColl, ok := value.AsColl(left)
	if !ok {
		return nil, fmt.Errorf("eval: join left requires a set/sequence, got %s", left.Kind())
	}
	rightColl, ok := value.AsColl(right)
	if !ok {
		return nil, fmt.Errorf("eval: join right requires a set/sequence, got %s", right.Kind())
	}
	leftCT, rightCT := x.Left.ColTree(), x.Right.ColTree()
	var lam *tcalc.Lambda
	if x.Pred != nil {
		lam, err = e.asLambda(x.Pred)
		if err != nil {
			return nil, err
		}
	}
	var out []value.Value
	for _, l := range leftColl.Elements() {
		for _, r := range rightColl.Elements() {
			joined := fromValues(append(append([]value.Value{}, rowValues(l, leftCT)...), rowValues(r, rightCT)...))
			if lam != nil {
				res, err := e.evalLambda(lam, joined)
				if err != nil {
					return nil, err
				}
				if !truthy(res) {
					continue
				}
			}
			out = append(out, joined)
		}
	}
	return value.NewSet(out...), nil
}

func (e *Evaluator) evalOrder(x *tcalc.Order) (value.Value, error) {
	sub, err := e.eval(x.Sub)
	if err != nil {
		return nil, err
	}
	coll, ok := value.AsColl(sub)
	if !ok {
		return nil, fmt.Errorf("eval: order requires a set/sequence, got %s", sub.Kind())
	}
	subCT := x.Sub.ColTree()
	cols := x.Cols.Resolve(subCT)
	items := append([]value.Value{}, coll.Elements()...)
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if len(cols) > 0 {
			a, b = rowProject(a, subCT, cols), rowProject(b, subCT, cols)
		}
		return a.Compare(b) < 0
	})
	return value.Sequence(items), nil
}

func (e *Evaluator) evalUniq(x *tcalc.Uniq) (value.Value, error) {
	sub, err := e.eval(x.Sub)
	if err != nil {
		return nil, err
	}
	coll, ok := value.AsColl(sub)
	if !ok {
		return nil, fmt.Errorf("eval: uniq requires a set/sequence, got %s", sub.Kind())
	}
	subCT := x.Sub.ColTree()
	cols := x.Cols.Resolve(subCT)
	var out []value.Value
	for _, item := range coll.Elements() {
		if len(out) > 0 {
			prev, cur := out[len(out)-1], item
			if len(cols) > 0 {
				prev, cur = rowProject(prev, subCT, cols), rowProject(cur, subCT, cols)
			}
			if prev.Equal(cur) {
				continue
			}
		}
		out = append(out, item)
	}
	return rebuildColl(sub, out), nil
}

func (e *Evaluator) evalNest(x *tcalc.Nest) (value.Value, error) {
	sub, err := e.eval(x.Sub)
	if err != nil {
		return nil, err
	}
	coll, ok := value.AsColl(sub)
	if !ok {
		return nil, fmt.Errorf("eval: nest requires a set/sequence, got %s", sub.Kind())
	}
	subCT := x.Sub.ColTree()
	nested := x.Cols.Resolve(subCT)
	kept := keepCols(subCT, nested)

	type group struct {
		key   value.Value
		items *value.Set
	}
	var groups []*group
	for _, row := range coll.Elements() {
		key := rowProject(row, subCT, kept)
		member := rowProject(row, subCT, nested)
		var g *group
		for _, cand := range groups {
			if cand.key.Equal(key) {
				g = cand
				break
			}
		}
		if g == nil {
			g = &group{key: key, items: value.NewSet()}
			groups = append(groups, g)
		}
		g.items.Add(member)
	}
	out := make([]value.Value, len(groups))
	for i, g := range groups {
		out[i] = fromValues(append(rowValues(g.key, treeOf(kept...)), g.items))
	}
	return value.NewSet(out...), nil
}

func (e *Evaluator) evalUnnest(x *tcalc.Unnest) (value.Value, error) {
	sub, err := e.eval(x.Sub)
	if err != nil {
		return nil, err
	}
	coll, ok := value.AsColl(sub)
	if !ok {
		return nil, fmt.Errorf("eval: unnest requires a set/sequence, got %s", sub.Kind())
	}
	subCT := x.Sub.ColTree()
	rest := keepCols(subCT, []*colname.ColName{x.Col})
	var out []value.Value
	for _, row := range coll.Elements() {
		setVal := getCol(row, subCT, x.Col)
		inner, ok := value.AsColl(setVal)
		if !ok {
			continue
		}
		restVals := rowValues(rowProject(row, subCT, rest), treeOf(rest...))
		for _, item := range inner.Elements() {
			out = append(out, fromValues(append(append([]value.Value{}, restVals...), item)))
		}
	}
	return value.NewSet(out...), nil
}

func (e *Evaluator) evalDistinguish(x *tcalc.Distinguish) (value.Value, error) {
	sub, err := e.eval(x.Sub)
	if err != nil {
		return nil, err
	}
	coll, ok := value.AsColl(sub)
	if !ok {
		return nil, fmt.Errorf("eval: distinguish requires a set/sequence, got %s", sub.Kind())
	}
	subCT := x.Sub.ColTree()
	var out []value.Value
	for _, row := range coll.Elements() {
		out = append(out, fromValues(append(append([]value.Value{}, rowValues(row, subCT)...), value.NewDistinguisher())))
	}
	return rebuildColl(sub, out), nil
}

func (e *Evaluator) evalAdjoin(x *tcalc.Adjoin) (value.Value, error) {
	left, err := e.eval(x.Left)
	if err != nil {
		return nil, err
	}
	coll, ok := value.AsColl(left)
	if !ok {
		return nil, fmt.Errorf("eval: adjoin requires a set/sequence, got %s", left.Kind())
	}
	leftCT := x.Left.ColTree()
	lam, err := e.asLambda(x.Lambda)
	if err != nil {
		return nil, err
	}
	var out []value.Value
	for _, row := range coll.Elements() {
		extra, err := e.evalLambda(lam, row)
		if err != nil {
			return nil, err
		}
		out = append(out, fromValues(append(append([]value.Value{}, rowValues(row, leftCT)...), extra)))
	}
	return rebuildColl(left, out), nil
}

func (e *Evaluator) evalStep(x *tcalc.Step) (value.Value, error) {
	sub, err := e.eval(x.Sub)
	if err != nil {
		return nil, err
	}
	coll, ok := value.AsColl(sub)
	if !ok {
		return nil, fmt.Errorf("eval: step requires a set/sequence, got %s", sub.Kind())
	}
	subCT := x.Sub.ColTree()
	var lam *tcalc.Lambda
	if x.Pred != nil {
		lam, err = e.asLambda(x.Pred)
		if err != nil {
			return nil, err
		}
	}
	var out []value.Value
	for _, row := range coll.Elements() {
		startObj := getCol(row, subCT, x.SubCol)
		var results *value.Set
		var err error
		if x.EdgeName != "" {
			results, err = e.be.Follow(startObj, x.EdgeName, x.Reversed)
		} else {
			results, err = e.be.FollowAll(startObj, x.Reversed)
		}
		if err != nil {
			return nil, err
		}
		rowVals := rowValues(row, subCT)
		for _, rv := range results.Items() {
			edgeName := ""
			farObj := rv
			if pe, ok := rv.(value.PathElement); ok {
				edgeName = pe.Edge
				if x.Reversed {
					farObj = pe.Left
				} else {
					farObj = pe.Right
				}
			}
			if lam != nil {
				predRow := fromValues(append(append(append([]value.Value{}, rowVals...), value.String(edgeName)), farObj))
				res, err := e.evalLambda(lam, predRow)
				if err != nil {
					return nil, err
				}
				if !truthy(res) {
					continue
				}
			}
			out = append(out, fromValues(append(append([]value.Value{}, rowVals...), farObj)))
		}
	}
	return value.NewSet(out...), nil
}

// evalRepeat evaluates the §4.8 fixed-point operator: for each
// row of Sub, compute the transitive (one or more applications)
// closure of Body (re-bound to LoopVar on each application)
// starting from SubEndCol, and emit one output row per object
// reached.
func (e *Evaluator) evalRepeat(x *tcalc.Repeat) (value.Value, error) {
	sub, err := e.eval(x.Sub)
	if err != nil {
		return nil, err
	}
	coll, ok := value.AsColl(sub)
	if !ok {
		return nil, fmt.Errorf("eval: repeat requires a set/sequence, got %s", sub.Kind())
	}
	subCT := x.Sub.ColTree()
	var out []value.Value
	for _, row := range coll.Elements() {
		start := getCol(row, subCT, x.SubEndCol)
		ends, err := e.repeatClosure(x, start)
		if err != nil {
			return nil, err
		}
		rowVals := rowValues(row, subCT)
		for _, end := range ends {
			out = append(out, fromValues(append(append([]value.Value{}, rowVals...), end)))
		}
	}
	return value.NewSet(out...), nil
}

// repeatClosure computes every object reachable from start by
// one or more applications of Body, re-binding LoopVar to the
// current frontier object each time; start itself is in the result
// only when a cycle leads back to it. A seen list (by Equal) both
// dedupes the result and breaks cycles (§4.8).
func (e *Evaluator) repeatClosure(x *tcalc.Repeat, start value.Value) ([]value.Value, error) {
	var seen []value.Value
	contains := func(v value.Value) bool {
		for _, s := range seen {
			if s.Equal(v) {
				return true
			}
		}
		return false
	}
	frontier := []value.Value{start}
	bodyCT := x.Body.ColTree()
	for len(frontier) > 0 {
		var next []value.Value
		for _, obj := range frontier {
			e.vars[x.LoopVar] = obj
			bodyVal, err := e.eval(x.Body)
			delete(e.vars, x.LoopVar)
			if err != nil {
				return nil, err
			}
			bodyColl, ok := value.AsColl(bodyVal)
			if !ok {
				continue
			}
			for _, bodyRow := range bodyColl.Elements() {
				end := getCol(bodyRow, bodyCT, x.BodyEndCol)
				if !contains(end) {
					seen = append(seen, end)
					next = append(next, end)
				}
			}
		}
		frontier = next
	}
	return seen, nil
}

// treeOf mirrors typeinf's helper of the same name: a single
// column collapses to a leaf, matching rowValues/fromValues'
// arity-1-is-bare convention.
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

// --- scalar operators --------------------------------------------

func (e *Evaluator) evalBop(x *tcalc.Bop) (value.Value, error) {
	op := pt.BinOp(x.Op)
	if op == pt.OpAnd || op == pt.OpOr {
		return e.evalShortCircuit(op, x)
	}
	l, err := e.eval(x.Left)
	if err != nil {
		return nil, err
	}
	r, err := e.eval(x.Right)
	if err != nil {
		return nil, err
	}
	if _, ok := l.(value.Nil); ok {
		return value.Nil{}, nil
	}
	if _, ok := r.(value.Nil); ok {
		return value.Nil{}, nil
	}
	switch op {
	case pt.OpEq:
		return value.Bool(l.Equal(r)), nil
	case pt.OpNeq:
		return value.Bool(!l.Equal(r)), nil
	case pt.OpLt:
		return value.Bool(l.Compare(r) < 0), nil
	case pt.OpLte:
		return value.Bool(l.Compare(r) <= 0), nil
	case pt.OpGt:
		return value.Bool(l.Compare(r) > 0), nil
	case pt.OpGte:
		return value.Bool(l.Compare(r) >= 0), nil
	case pt.OpAdd, pt.OpSub, pt.OpMul, pt.OpDiv, pt.OpMod:
		v, err := arith(op, l, r)
		if err != nil {
			return nil, err
		}
		return v, nil
	case pt.OpIn:
		coll, ok := value.AsColl(r)
		if !ok {
			return nil, fmt.Errorf("eval: in requires a set/sequence right operand, got %s", r.Kind())
		}
		return value.Bool(coll.(interface{ Contains(value.Value) bool }).Contains(l)), nil
	case pt.OpLike, pt.OpGrep:
		return e.evalPattern(op, l, r)
	case pt.OpUnion:
		return setUnion(l, r, false), nil
	case pt.OpUnionAll:
		return setUnion(l, r, true), nil
	case pt.OpIntersect:
		return setIntersect(l, r), nil
	case pt.OpExcept:
		return setExcept(l, r), nil
	case pt.OpConcat:
		lsq, lok := l.(value.Sequence)
		rsq, rok := r.(value.Sequence)
		if !lok || !rok {
			return nil, fmt.Errorf("eval: ++ requires sequence operands, got %s and %s", l.Kind(), r.Kind())
		}
		return value.Concat(lsq, rsq), nil
	}
	return nil, fmt.Errorf("eval: unhandled binary operator %d", x.Op)
}

// evalShortCircuit implements three-valued and/or: nil only
// survives to the result when the other operand can't already
// decide it (false for and, true for or).
func (e *Evaluator) evalShortCircuit(op pt.BinOp, x *tcalc.Bop) (value.Value, error) {
	l, err := e.eval(x.Left)
	if err != nil {
		return nil, err
	}
	decisive := value.Bool(op == pt.OpOr)
	if lb, ok := l.(value.Bool); ok && bool(lb) == bool(decisive) {
		return decisive, nil
	}
	r, err := e.eval(x.Right)
	if err != nil {
		return nil, err
	}
	if rb, ok := r.(value.Bool); ok && bool(rb) == bool(decisive) {
		return decisive, nil
	}
	if _, ok := l.(value.Nil); ok {
		return value.Nil{}, nil
	}
	if _, ok := r.(value.Nil); ok {
		return value.Nil{}, nil
	}
	if _, ok := r.(value.Bool); ok {
		return l, nil
	}
	return value.Bool(!decisive), nil
}

func arith(op pt.BinOp, l, r value.Value) (value.Value, error) {
	li, liok := l.(value.Int)
	ri, riok := r.(value.Int)
	if liok && riok {
		switch op {
		case pt.OpAdd:
			return li + ri, nil
		case pt.OpSub:
			return li - ri, nil
		case pt.OpMul:
			return li * ri, nil
		case pt.OpDiv:
			if ri == 0 {
				return value.Nil{}, nil
			}
			return li / ri, nil
		case pt.OpMod:
			if ri == 0 {
				return value.Nil{}, nil
			}
			return li % ri, nil
		}
	}
	lf, lfok := asFloat(l)
	rf, rfok := asFloat(r)
	if !lfok || !rfok {
		return nil, fmt.Errorf("eval: arithmetic requires numeric operands, got %s and %s", l.Kind(), r.Kind())
	}
	switch op {
	case pt.OpAdd:
		return value.Float(lf + rf), nil
	case pt.OpSub:
		return value.Float(lf - rf), nil
	case pt.OpMul:
		return value.Float(lf * rf), nil
	case pt.OpDiv:
		if rf == 0 {
			return value.Nil{}, nil
		}
		return value.Float(lf / rf), nil
	case pt.OpMod:
		return nil, fmt.Errorf("eval: %% requires integer operands")
	}
	return nil, fmt.Errorf("eval: unhandled arithmetic operator %d", op)
}

func asFloat(v value.Value) (float64, bool) {
	switch x := v.(type) {
	case value.Float:
		return float64(x), true
	case value.Int:
		return float64(x), true
	}
	return 0, false
}

// evalPattern grounds LIKE/GREP on the same regexp2 compiler
// baseopt uses for literal folding: LIKE is SQL-style %/_
// wildcard syntax, GREP is a Go regular expression.
func (e *Evaluator) evalPattern(op pt.BinOp, l, r value.Value) (value.Value, error) {
	ls, lok := l.(value.String)
	rs, rok := r.(value.String)
	if !lok || !rok {
		return nil, fmt.Errorf("eval: %s requires string operands, got %s and %s", opName(op), l.Kind(), r.Kind())
	}
	kind := regexp2.GolangSimilarTo
	if op == pt.OpGrep {
		kind = regexp2.GolangRegexp
	}
	re, err := regexp2.Compile(string(rs), kind)
	if err != nil {
		return nil, fmt.Errorf("eval: invalid %s pattern %q: %w", opName(op), string(rs), err)
	}
	return value.Bool(re.MatchString(string(ls))), nil
}

func opName(op pt.BinOp) string {
	if op == pt.OpGrep {
		return "grep"
	}
	return "like"
}

func setUnion(l, r value.Value, all bool) value.Value {
	lc, _ := value.AsColl(l)
	rc, _ := value.AsColl(r)
	if !all {
		out := value.NewSet()
		if lc != nil {
			for _, v := range lc.Elements() {
				out.Add(v)
			}
		}
		if rc != nil {
			for _, v := range rc.Elements() {
				out.Add(v)
			}
		}
		return out
	}
	var items []value.Value
	if lc != nil {
		items = append(items, lc.Elements()...)
	}
	if rc != nil {
		items = append(items, rc.Elements()...)
	}
	return value.Sequence(items)
}

func setIntersect(l, r value.Value) value.Value {
	lc, lok := value.AsColl(l)
	rc, rok := value.AsColl(r)
	out := value.NewSet()
	if !lok || !rok {
		return out
	}
	for _, v := range lc.Elements() {
		for _, w := range rc.Elements() {
			if v.Equal(w) {
				out.Add(v)
				break
			}
		}
	}
	return out
}

func setExcept(l, r value.Value) value.Value {
	lc, lok := value.AsColl(l)
	rc, rok := value.AsColl(r)
	out := value.NewSet()
	if !lok {
		return out
	}
	for _, v := range lc.Elements() {
		found := false
		if rok {
			for _, w := range rc.Elements() {
				if v.Equal(w) {
					found = true
					break
				}
			}
		}
		if !found {
			out.Add(v)
		}
	}
	return out
}

func (e *Evaluator) evalUop(x *tcalc.Uop) (value.Value, error) {
	v, err := e.eval(x.Sub)
	if err != nil {
		return nil, err
	}
	switch pt.UnOp(x.Op) {
	case pt.OpNot:
		if _, ok := v.(value.Nil); ok {
			return value.Nil{}, nil
		}
		b, ok := v.(value.Bool)
		if !ok {
			return nil, fmt.Errorf("eval: not requires bool, got %s", v.Kind())
		}
		return value.Bool(!bool(b)), nil
	case pt.OpNeg:
		switch n := v.(type) {
		case value.Int:
			return -n, nil
		case value.Float:
			return -n, nil
		case value.Nil:
			return value.Nil{}, nil
		}
		return nil, fmt.Errorf("eval: negation requires a number, got %s", v.Kind())
	case pt.OpNonempty:
		coll, ok := value.AsColl(v)
		if !ok {
			return nil, fmt.Errorf("eval: nonempty requires a set/sequence, got %s", v.Kind())
		}
		return value.Bool(len(coll.Elements()) > 0), nil
	}
	return nil, fmt.Errorf("eval: unhandled unary operator %d", x.Op)
}

func (e *Evaluator) evalFunc(x *tcalc.FuncNode) (value.Value, error) {
	switch pt.FuncOp(x.Op) {
	case pt.FCount:
		v, err := e.eval(x.Args[0])
		if err != nil {
			return nil, err
		}
		coll, ok := value.AsColl(v)
		if !ok {
			return nil, fmt.Errorf("eval: count requires a set/sequence, got %s", v.Kind())
		}
		return value.Int(len(coll.Elements())), nil
	case pt.FSum, pt.FMin, pt.FMax:
		return e.evalAggregate(pt.FuncOp(x.Op), x.Args[0])
	case pt.FAllTrue, pt.FAnyTrue:
		return e.evalQuantifier(pt.FuncOp(x.Op), x.Args[0])
	case pt.FChoose:
		return e.evalChoose(x.Args)
	case pt.FNew:
		obj, err := e.be.NewObject()
		if err != nil {
			return nil, err
		}
		return obj, nil
	}
	return nil, fmt.Errorf("eval: unhandled function %d", x.Op)
}

func (e *Evaluator) evalAggregate(op pt.FuncOp, n tcalc.Node) (value.Value, error) {
	v, err := e.eval(n)
	if err != nil {
		return nil, err
	}
	coll, ok := value.AsColl(v)
	if !ok {
		return nil, fmt.Errorf("eval: aggregate requires a set/sequence, got %s", v.Kind())
	}
	items := coll.Elements()
	if len(items) == 0 {
		return value.Nil{}, nil
	}
	switch op {
	case pt.FSum:
		var sum value.Value = value.Int(0)
		for _, it := range items {
			sum, err = arith(pt.OpAdd, sum, it)
			if err != nil {
				return nil, err
			}
		}
		return sum, nil
	case pt.FMin:
		best := items[0]
		for _, it := range items[1:] {
			if it.Compare(best) < 0 {
				best = it
			}
		}
		return best, nil
	case pt.FMax:
		best := items[0]
		for _, it := range items[1:] {
			if it.Compare(best) > 0 {
				best = it
			}
		}
		return best, nil
	}
	return nil, fmt.Errorf("eval: unhandled aggregate %d", op)
}

func (e *Evaluator) evalQuantifier(op pt.FuncOp, n tcalc.Node) (value.Value, error) {
	v, err := e.eval(n)
	if err != nil {
		return nil, err
	}
	coll, ok := value.AsColl(v)
	if !ok {
		return nil, fmt.Errorf("eval: alltrue/anytrue requires a set/sequence, got %s", v.Kind())
	}
	for _, it := range coll.Elements() {
		if !truthy(it) {
			if op == pt.FAllTrue {
				return value.Bool(false), nil
			}
			continue
		}
		if op == pt.FAnyTrue {
			return value.Bool(true), nil
		}
	}
	return value.Bool(op == pt.FAllTrue), nil
}

// evalChoose returns the first non-nil argument, left to right,
// grounding normalize's synthesized choose() over path alternates
// (§4.2, SPEC_FULL §12).
func (e *Evaluator) evalChoose(args []tcalc.Node) (value.Value, error) {
	for _, a := range args {
		v, err := e.eval(a)
		if err != nil {
			return nil, err
		}
		if _, ok := v.(value.Nil); !ok {
			return v, nil
		}
	}
	return value.Nil{}, nil
}

func (e *Evaluator) evalMap(x *tcalc.MapNode) (value.Value, error) {
	sub, err := e.eval(x.Set)
	if err != nil {
		return nil, err
	}
	coll, ok := value.AsColl(sub)
	if !ok {
		return nil, fmt.Errorf("eval: map requires a set/sequence, got %s", sub.Kind())
	}
	var out []value.Value
	for _, item := range coll.Elements() {
		e.vars[x.Var] = item
		r, err := e.eval(x.Result)
		delete(e.vars, x.Var)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return rebuildColl(sub, out), nil
}

func (e *Evaluator) evalApply(x *tcalc.Apply) (value.Value, error) {
	fv, err := e.eval(x.Fn)
	if err != nil {
		return nil, err
	}
	lv, ok := fv.(value.Lambda)
	if !ok {
		return nil, fmt.Errorf("eval: apply target is not a lambda, got %s", fv.Kind())
	}
	lam, ok := lv.Expr.(*tcalc.Lambda)
	if !ok {
		return nil, fmt.Errorf("eval: apply target lambda has no TC expression")
	}
	arg, err := e.eval(x.Arg)
	if err != nil {
		return nil, err
	}
	return e.evalLambda(lam, arg)
}

func (e *Evaluator) evalReadGlobal(x *tcalc.ReadGlobal) (value.Value, error) {
	if v, ok := e.globals[x.Global]; ok {
		return v, nil
	}
	v, err := e.be.ReadGlobal(x.Global.Name)
	if err != nil {
		return nil, err
	}
	e.globals[x.Global] = v
	return v, nil
}

func (e *Evaluator) evalTuple(x *tcalc.TupleNode) (value.Value, error) {
	vals := make([]value.Value, len(x.Exprs))
	for i, expr := range x.Exprs {
		v, err := e.eval(expr)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return fromValues(vals), nil
}
