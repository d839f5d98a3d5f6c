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

// Package baseopt implements the base optimizer (§4.9): a fixed
// battery of representative, not exhaustive, algebraic rewrites
// applied bottom-up to a fixed point -- boolean identity
// simplification, constant folding (including LIKE/GREP literal
// folding via regexp2, the same pattern-compiler the teacher uses
// for SQL LIKE/regex predicates), adjacent Filter/Strip
// combination, and alltrue/anytrue distribution over a plain
// union -- distribution is NOT applied over intersect/except,
// since alltrue(A-B) and alltrue(A∩B) do not decompose into a
// pointwise combination of alltrue(A) and alltrue(B) (see
// DESIGN.md's Open Question decision).
//
// Grounded on plan/pir/simplify.go's fixed-point peephole rewrite
// loop in the teacher.
package baseopt

import (
	"github.com/sneller-labs/pql/colname"
	"github.com/sneller-labs/pql/compile"
	"github.com/sneller-labs/pql/pt"
	"github.com/sneller-labs/pql/regexp2"
	"github.com/sneller-labs/pql/tcalc"
	"github.com/sneller-labs/pql/value"
)

type nilNode struct{}

func (nilNode) Pos() pt.Position { return pt.Position{} }

type optimizer struct {
	errs    compile.Errors
	changed bool
}

// Optimize rewrites root to a fixed point under the rule set
// below and returns the (possibly replaced) root.
func Optimize(root tcalc.Node) (tcalc.Node, *compile.Errors) {
	o := &optimizer{}
	for i := 0; i < 64; i++ {
		o.changed = false
		root = o.node(root)
		if !o.changed {
			break
		}
	}
	return root, &o.errs
}

func (o *optimizer) node(n tcalc.Node) tcalc.Node {
	if n == nil {
		return nil
	}
	switch x := n.(type) {
	case *tcalc.Filter:
		x.Sub = o.node(x.Sub)
		x.Pred = o.node(x.Pred)
		if inner, ok := x.Sub.(*tcalc.Filter); ok {
			x.Sub = inner.Sub
			x.Pred = andLambdas(inner.Pred, x.Pred)
			o.changed = true
			return o.node(x)
		}
		if lit, ok := lambdaConstBool(x.Pred); ok {
			if lit {
				o.changed = true
				return x.Sub
			}
		}
	case *tcalc.Project:
		x.Sub = o.node(x.Sub)
	case *tcalc.Strip:
		x.Sub = o.node(x.Sub)
		if inner, ok := x.Sub.(*tcalc.Strip); ok {
			merged := append([]*colname.ColName{}, inner.Cols.Resolve(inner.Sub.ColTree())...)
			merged = append(merged, x.Cols.Resolve(x.Sub.ColTree())...)
			x.Sub = inner.Sub
			x.Cols = colname.NewColSet(merged...)
			o.changed = true
			return o.node(x)
		}
	case *tcalc.Rename:
		x.Sub = o.node(x.Sub)
	case *tcalc.Join:
		x.Left = o.node(x.Left)
		x.Right = o.node(x.Right)
		if x.Pred != nil {
			x.Pred = o.node(x.Pred)
		}
	case *tcalc.Order:
		x.Sub = o.node(x.Sub)
	case *tcalc.Uniq:
		x.Sub = o.node(x.Sub)
	case *tcalc.Nest:
		x.Sub = o.node(x.Sub)
	case *tcalc.Unnest:
		x.Sub = o.node(x.Sub)
	case *tcalc.Distinguish:
		x.Sub = o.node(x.Sub)
	case *tcalc.Adjoin:
		x.Left = o.node(x.Left)
		x.Lambda = o.node(x.Lambda)
	case *tcalc.Scan:
		if x.Pred != nil {
			x.Pred = o.node(x.Pred)
		}
	case *tcalc.Step:
		x.Sub = o.node(x.Sub)
		if x.Pred != nil {
			x.Pred = o.node(x.Pred)
		}
	case *tcalc.Repeat:
		x.Sub = o.node(x.Sub)
		x.Body = o.node(x.Body)
	case *tcalc.Bop:
		x.Left = o.node(x.Left)
		x.Right = o.node(x.Right)
		if folded := o.foldBop(x); folded != nil {
			o.changed = true
			return folded
		}
	case *tcalc.Uop:
		x.Sub = o.node(x.Sub)
		if folded := o.foldUop(x); folded != nil {
			o.changed = true
			return folded
		}
	case *tcalc.FuncNode:
		for i, a := range x.Args {
			x.Args[i] = o.node(a)
		}
		if folded := o.distribute(x); folded != nil {
			o.changed = true
			return folded
		}
	case *tcalc.MapNode:
		x.Set = o.node(x.Set)
		x.Result = o.node(x.Result)
	case *tcalc.Let:
		x.Value = o.node(x.Value)
		x.Body = o.node(x.Body)
	case *tcalc.Lambda:
		x.Body = o.node(x.Body)
	case *tcalc.Apply:
		x.Fn = o.node(x.Fn)
		x.Arg = o.node(x.Arg)
	case *tcalc.Splatter:
		x.Value = o.node(x.Value)
	case *tcalc.TupleNode:
		for i, e := range x.Exprs {
			x.Exprs[i] = o.node(e)
		}
	}
	return n
}

func constOf(n tcalc.Node) (value.Value, bool) {
	vn, ok := n.(*tcalc.ValueNode)
	if !ok {
		return nil, false
	}
	return vn.Const, true
}

func lit(v value.Value) *tcalc.ValueNode { return &tcalc.ValueNode{Const: v} }

func lambdaConstBool(n tcalc.Node) (bool, bool) {
	lam, ok := n.(*tcalc.Lambda)
	if !ok {
		return false, false
	}
	c, ok := constOf(lam.Body)
	if !ok {
		return false, false
	}
	b, ok := c.(value.Bool)
	return bool(b), ok
}

// andLambdas combines two row-predicate Lambdas (sharing the same
// bound var, since both came from the same Filter chain's row
// binding) into one Lambda testing both bodies.
func andLambdas(a, b tcalc.Node) tcalc.Node {
	la, aok := a.(*tcalc.Lambda)
	lb, bok := b.(*tcalc.Lambda)
	if !aok || !bok {
		return b
	}
	body := lb.Body
	substVar(body, lb.Var, la.Var)
	return &tcalc.Lambda{Var: la.Var, Body: &tcalc.Bop{Op: tcalc.BinOp(pt.OpAnd), Left: la.Body, Right: body}}
}

// substVar rewrites every ReadVar(old) reachable from n in place
// to ReadVar(new); used only to align two Lambdas' bound vars
// before merging their bodies (both Lambdas here were built by
// the same tuplify row-binding pattern, so this never needs to
// cross a shadowing boundary).
func substVar(n tcalc.Node, old, new_ *tcalc.Var) {
	switch x := n.(type) {
	case *tcalc.ReadVar:
		if x.Var == old {
			x.Var = new_
		}
	case *tcalc.Bop:
		substVar(x.Left, old, new_)
		substVar(x.Right, old, new_)
	case *tcalc.Uop:
		substVar(x.Sub, old, new_)
	case *tcalc.Project:
		substVar(x.Sub, old, new_)
	case *tcalc.FuncNode:
		for _, a := range x.Args {
			substVar(a, old, new_)
		}
	case *tcalc.TupleNode:
		for _, e := range x.Exprs {
			substVar(e, old, new_)
		}
	}
}

func (o *optimizer) foldBop(x *tcalc.Bop) tcalc.Node {
	lc, lok := constOf(x.Left)
	rc, rok := constOf(x.Right)
	switch pt.BinOp(x.Op) {
	case pt.OpAnd:
		if lok {
			if b, ok := lc.(value.Bool); ok {
				if !bool(b) {
					return lit(value.Bool(false))
				}
				return x.Right
			}
		}
		if rok {
			if b, ok := rc.(value.Bool); ok {
				if !bool(b) {
					return lit(value.Bool(false))
				}
				return x.Left
			}
		}
	case pt.OpOr:
		if lok {
			if b, ok := lc.(value.Bool); ok {
				if bool(b) {
					return lit(value.Bool(true))
				}
				return x.Right
			}
		}
		if rok {
			if b, ok := rc.(value.Bool); ok {
				if bool(b) {
					return lit(value.Bool(true))
				}
				return x.Left
			}
		}
	case pt.OpEq:
		if lok && rok {
			return lit(value.Bool(lc.Equal(rc)))
		}
	case pt.OpNeq:
		if lok && rok {
			return lit(value.Bool(!lc.Equal(rc)))
		}
	case pt.OpLt:
		if lok && rok {
			return lit(value.Bool(lc.Compare(rc) < 0))
		}
	case pt.OpLte:
		if lok && rok {
			return lit(value.Bool(lc.Compare(rc) <= 0))
		}
	case pt.OpGt:
		if lok && rok {
			return lit(value.Bool(lc.Compare(rc) > 0))
		}
	case pt.OpGte:
		if lok && rok {
			return lit(value.Bool(lc.Compare(rc) >= 0))
		}
	case pt.OpAdd, pt.OpSub, pt.OpMul, pt.OpDiv, pt.OpMod:
		if lok && rok {
			if v, ok := foldArith(pt.BinOp(x.Op), lc, rc); ok {
				return lit(v)
			}
		}
	case pt.OpLike, pt.OpGrep:
		if lok && rok {
			ls, lsOk := lc.(value.String)
			rs, rsOk := rc.(value.String)
			if lsOk && rsOk {
				kind := regexp2.GolangSimilarTo
				if pt.BinOp(x.Op) == pt.OpGrep {
					kind = regexp2.GolangRegexp
				}
				re, err := regexp2.Compile(string(rs), kind)
				if err == nil {
					return lit(value.Bool(re.MatchString(string(ls))))
				}
				o.errs.Add(compile.Warnf(nilNode{}, "baseopt: could not fold literal pattern %q: %s", string(rs), err))
			}
		}
	}
	return nil
}

func foldArith(op pt.BinOp, l, r value.Value) (value.Value, bool) {
	li, liok := l.(value.Int)
	ri, riok := r.(value.Int)
	if liok && riok {
		switch op {
		case pt.OpAdd:
			return li + ri, true
		case pt.OpSub:
			return li - ri, true
		case pt.OpMul:
			return li * ri, true
		case pt.OpDiv:
			if ri == 0 {
				return nil, false
			}
			return li / ri, true
		case pt.OpMod:
			if ri == 0 {
				return nil, false
			}
			return li % ri, true
		}
	}
	lf, lfok := asFloat(l)
	rf, rfok := asFloat(r)
	if lfok && rfok {
		switch op {
		case pt.OpAdd:
			return value.Float(lf + rf), true
		case pt.OpSub:
			return value.Float(lf - rf), true
		case pt.OpMul:
			return value.Float(lf * rf), true
		case pt.OpDiv:
			if rf == 0 {
				return nil, false
			}
			return value.Float(lf / rf), true
		}
	}
	return nil, false
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

func (o *optimizer) foldUop(x *tcalc.Uop) tcalc.Node {
	c, ok := constOf(x.Sub)
	if !ok {
		if pt.UnOp(x.Op) == pt.OpNot {
			if inner, ok := x.Sub.(*tcalc.Uop); ok && pt.UnOp(inner.Op) == pt.OpNot {
				return inner.Sub
			}
		}
		return nil
	}
	switch pt.UnOp(x.Op) {
	case pt.OpNot:
		if b, ok := c.(value.Bool); ok {
			return lit(value.Bool(!bool(b)))
		}
	case pt.OpNeg:
		switch v := c.(type) {
		case value.Int:
			return lit(-v)
		case value.Float:
			return lit(-v)
		}
	case pt.OpNonempty:
		if coll, ok := value.AsColl(c); ok {
			return lit(value.Bool(len(coll.Elements()) > 0))
		}
	}
	return nil
}

// distribute pushes alltrue/anytrue through a Map whose Set is a
// plain union (OpUnion/OpUnionAll), since testing every element
// of A∪B is the same as testing every element of A and every
// element of B separately (§4.9). This is NOT valid for
// intersect/except (see package doc).
func (o *optimizer) distribute(x *tcalc.FuncNode) tcalc.Node {
	if len(x.Args) != 1 {
		return nil
	}
	m, ok := x.Args[0].(*tcalc.MapNode)
	if !ok {
		return nil
	}
	b, ok := m.Set.(*tcalc.Bop)
	if !ok {
		return nil
	}
	if pt.BinOp(b.Op) != pt.OpUnion && pt.BinOp(b.Op) != pt.OpUnionAll {
		return nil
	}
	leftMap := &tcalc.MapNode{Var: m.Var, Set: b.Left, Result: m.Result}
	rightMap := &tcalc.MapNode{Var: m.Var, Set: b.Right, Result: cloneResult(m.Result)}
	leftFunc := &tcalc.FuncNode{Op: x.Op, Args: []tcalc.Node{leftMap}}
	rightFunc := &tcalc.FuncNode{Op: x.Op, Args: []tcalc.Node{rightMap}}
	switch pt.FuncOp(x.Op) {
	case pt.FAllTrue:
		return &tcalc.Bop{Op: tcalc.BinOp(pt.OpAnd), Left: leftFunc, Right: rightFunc}
	case pt.FAnyTrue:
		return &tcalc.Bop{Op: tcalc.BinOp(pt.OpOr), Left: leftFunc, Right: rightFunc}
	}
	return nil
}

// cloneResult is a shallow structural copy of a Map's Result
// expression, used so the two distributed Maps don't share Meta
// pointers that a later pass might mutate independently.
func cloneResult(n tcalc.Node) tcalc.Node {
	switch x := n.(type) {
	case *tcalc.Bop:
		c := *x
		return &c
	case *tcalc.Uop:
		c := *x
		return &c
	case *tcalc.Project:
		c := *x
		return &c
	case *tcalc.ReadVar:
		c := *x
		return &c
	case *tcalc.ValueNode:
		c := *x
		return &c
	}
	return n
}
