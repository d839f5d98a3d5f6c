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

// Package typecheck implements the checking half of §4.7 plus
// the §7 error catalog: it walks an already-typeinf'd TC tree and
// reports every site where an operator's argument has the wrong
// datatype, a Project/Strip/Rename/Nest/Unnest mentions a column
// not present in its child's coltree, a set is required but a
// scalar was given (or vice versa), or the arity(datatype) ==
// arity(coltree) invariant (§8.1 invariant 6) does not hold.
//
// Grounded on plan/pir/postcheck.go's post-build invariant sweep
// in the teacher: a second, independent walk that only checks,
// never rewrites, and accumulates every violation it finds rather
// than stopping at the first one (§7 "errors are accumulated").
package typecheck

import (
	"github.com/sneller-labs/pql/colname"
	"github.com/sneller-labs/pql/compile"
	"github.com/sneller-labs/pql/pt"
	"github.com/sneller-labs/pql/tcalc"
	"github.com/sneller-labs/pql/types"
)

type nilNode struct{}

func (nilNode) Pos() pt.Position { return pt.Position{} }

type checker struct {
	errs    compile.Errors
	visited map[tcalc.Node]bool
	// debugAsserts gates internal-invariant diagnostics (arity
	// mismatches, dangling column references produced by a
	// pass bug rather than a user error) as typecheck errors;
	// with it false they are silently tolerated, matching §7's
	// "internal invariant violations: debug-assert in
	// development builds, typecheck error otherwise" note --
	// we default to true since this is the reference
	// implementation's sole checking pass.
	debugAsserts bool
}

// Check walks root (already annotated by typeinf) and returns
// every diagnostic found. It never mutates the tree.
func Check(root tcalc.Node) *compile.Errors {
	c := &checker{visited: map[tcalc.Node]bool{}, debugAsserts: true}
	c.node(root)
	return &c.errs
}

func (c *checker) node(n tcalc.Node) {
	if n == nil || c.visited[n] {
		return
	}
	c.visited[n] = true
	c.checkArity(n)

	switch x := n.(type) {
	case *tcalc.Filter:
		c.node(x.Sub)
		c.requireSet(x.Sub, "filter")
		c.node(x.Pred)
		c.requireBool(bodyType(x.Pred), x.Pred, "filter predicate")

	case *tcalc.Project:
		c.node(x.Sub)
		c.checkCols(x.Sub, x.Cols, "project")

	case *tcalc.Strip:
		c.node(x.Sub)
		c.checkCols(x.Sub, x.Cols, "strip")

	case *tcalc.Rename:
		c.node(x.Sub)
		if x.Sub.ColTree() != nil && !x.Sub.ColTree().Find(x.Old) {
			c.errs.Add(compile.Errorf(nilNode{}, "rename: column %q not present in child", x.Old))
		}

	case *tcalc.Join:
		c.node(x.Left)
		c.node(x.Right)
		c.requireSet(x.Left, "join left")
		c.requireSet(x.Right, "join right")
		if x.Pred != nil {
			c.node(x.Pred)
			c.requireBool(bodyType(x.Pred), x.Pred, "join predicate")
		}

	case *tcalc.Order:
		c.node(x.Sub)
		c.requireSet(x.Sub, "order")

	case *tcalc.Uniq:
		c.node(x.Sub)

	case *tcalc.Nest:
		c.node(x.Sub)
		c.requireSet(x.Sub, "nest")
		c.checkCols(x.Sub, x.Cols, "nest")

	case *tcalc.Unnest:
		c.node(x.Sub)
		c.requireSet(x.Sub, "unnest")
		if x.Sub.ColTree() != nil && !x.Sub.ColTree().Find(x.Col) {
			c.errs.Add(compile.Errorf(nilNode{}, "unnest: column %q not present in child", x.Col))
		}

	case *tcalc.Distinguish:
		c.node(x.Sub)
		c.requireSet(x.Sub, "distinguish")

	case *tcalc.Adjoin:
		c.node(x.Left)
		c.requireSet(x.Left, "adjoin")
		c.node(x.Lambda)

	case *tcalc.Scan:
		if x.Pred != nil {
			c.node(x.Pred)
			c.requireBool(bodyType(x.Pred), x.Pred, "scan predicate")
		}

	case *tcalc.Step:
		c.node(x.Sub)
		c.requireSet(x.Sub, "step")
		if x.Pred != nil {
			c.node(x.Pred)
			c.requireBool(bodyType(x.Pred), x.Pred, "step predicate")
		}

	case *tcalc.Repeat:
		c.node(x.Sub)
		c.requireSet(x.Sub, "repeat")
		c.node(x.Body)
		c.requireSet(x.Body, "repeat body")

	case *tcalc.Bop:
		c.node(x.Left)
		c.node(x.Right)
		c.checkBop(x)

	case *tcalc.Uop:
		c.node(x.Sub)
		c.checkUop(x)

	case *tcalc.FuncNode:
		for _, a := range x.Args {
			c.node(a)
		}
		c.checkFunc(x)

	case *tcalc.MapNode:
		c.node(x.Set)
		c.requireSet(x.Set, "map")
		c.node(x.Result)

	case *tcalc.Let:
		c.node(x.Value)
		c.node(x.Body)

	case *tcalc.Lambda:
		c.node(x.Body)

	case *tcalc.Apply:
		c.node(x.Fn)
		c.node(x.Arg)
		if x.Fn.Type() != nil && x.Fn.Type().Kind != types.LambdaKind && x.Fn.Type().Kind != types.AbsTop {
			c.errs.Add(compile.Errorf(nilNode{}, "apply: target is not a lambda"))
		}

	case *tcalc.ReadVar, *tcalc.ReadGlobal, *tcalc.CreatePathElement, *tcalc.ValueNode:
		// leaves; nothing further to check

	case *tcalc.Splatter:
		c.node(x.Value)

	case *tcalc.TupleNode:
		for _, e := range x.Exprs {
			c.node(e)
		}
	}
}

func bodyType(n tcalc.Node) *types.Type {
	if lam, ok := n.(*tcalc.Lambda); ok {
		lt := lam.Type()
		if lt != nil {
			return lt.Elem
		}
	}
	return types.AbsTop()
}

func (c *checker) requireSet(n tcalc.Node, where string) {
	t := n.Type()
	if t == nil || t.Kind == types.AbsTop {
		return
	}
	if t.Kind != types.SetKind && t.Kind != types.SequenceKind {
		c.errs.Add(compile.Errorf(nilNode{}, "%s: expected a set, got %s", where, t))
	}
}

func (c *checker) requireBool(t *types.Type, n tcalc.Node, where string) {
	if t == nil || t.Kind == types.AbsTop {
		return
	}
	if t.Kind != types.Bool {
		c.errs.Add(compile.Errorf(nilNode{}, "%s: expected bool, got %s", where, t))
	}
}

func (c *checker) checkCols(sub tcalc.Node, cols *colname.ColSet, where string) {
	ct := sub.ColTree()
	if ct == nil {
		return
	}
	for _, col := range cols.Resolve(ct) {
		if !ct.Find(col) {
			c.errs.Add(compile.Errorf(nilNode{}, "%s: column %q not present in child's coltree", where, col))
		}
	}
}

func (c *checker) checkArity(n tcalc.Node) {
	if !c.debugAsserts {
		return
	}
	t, ct := n.Type(), n.ColTree()
	if t == nil || ct == nil || t.Kind == types.AbsTop {
		return
	}
	if types.Arity(t) != ct.Arity() {
		c.errs.Add(compile.Errorf(nilNode{}, "internal: datatype arity %d does not match coltree arity %d", types.Arity(t), ct.Arity()))
	}
}

func (c *checker) checkBop(x *tcalc.Bop) {
	lt, rt := x.Left.Type(), x.Right.Type()
	if lt == nil || rt == nil || lt.Kind == types.AbsTop || rt.Kind == types.AbsTop {
		return
	}
	switch pt.BinOp(x.Op) {
	case pt.OpAdd, pt.OpSub, pt.OpMul, pt.OpDiv, pt.OpMod, pt.OpLt, pt.OpLte, pt.OpGt, pt.OpGte:
		if !isNumberish(lt) || !isNumberish(rt) {
			c.errs.Add(compile.Errorf(nilNode{}, "operator requires numeric operands, got %s and %s", lt, rt))
		}
	case pt.OpAnd, pt.OpOr:
		if lt.Kind != types.Bool || rt.Kind != types.Bool {
			c.errs.Add(compile.Errorf(nilNode{}, "operator requires bool operands, got %s and %s", lt, rt))
		}
	case pt.OpLike, pt.OpGrep:
		if lt.Kind != types.String || rt.Kind != types.String {
			c.errs.Add(compile.Errorf(nilNode{}, "operator requires string operands, got %s and %s", lt, rt))
		}
	case pt.OpUnion, pt.OpUnionAll, pt.OpIntersect, pt.OpExcept:
		if lt.Kind != types.SetKind && lt.Kind != types.SequenceKind {
			c.errs.Add(compile.Errorf(nilNode{}, "set operator requires a set/sequence operand, got %s", lt))
		}
	case pt.OpConcat:
		if lt.Kind != types.SequenceKind || rt.Kind != types.SequenceKind {
			c.errs.Add(compile.Errorf(nilNode{}, "++ requires sequence operands, got %s and %s", lt, rt))
		}
	}
}

func (c *checker) checkUop(x *tcalc.Uop) {
	st := x.Sub.Type()
	if st == nil || st.Kind == types.AbsTop {
		return
	}
	switch pt.UnOp(x.Op) {
	case pt.OpNot:
		if st.Kind != types.Bool {
			c.errs.Add(compile.Errorf(nilNode{}, "not: expected bool, got %s", st))
		}
	case pt.OpNeg:
		if !isNumberish(st) {
			c.errs.Add(compile.Errorf(nilNode{}, "negation: expected number, got %s", st))
		}
	case pt.OpNonempty:
		if st.Kind != types.SetKind && st.Kind != types.SequenceKind {
			c.errs.Add(compile.Errorf(nilNode{}, "nonempty: expected a set/sequence, got %s", st))
		}
	}
}

func (c *checker) checkFunc(x *tcalc.FuncNode) {
	switch pt.FuncOp(x.Op) {
	case pt.FCount, pt.FSum, pt.FMin, pt.FMax:
		if len(x.Args) != 1 {
			c.errs.Add(compile.Errorf(nilNode{}, "aggregate expects exactly one argument"))
			return
		}
		t := x.Args[0].Type()
		if t != nil && t.Kind != types.AbsTop && t.Kind != types.SetKind && t.Kind != types.SequenceKind {
			c.errs.Add(compile.Errorf(nilNode{}, "aggregate requires a set/sequence argument, got %s", t))
		}
	case pt.FAllTrue, pt.FAnyTrue:
		if len(x.Args) != 1 {
			c.errs.Add(compile.Errorf(nilNode{}, "alltrue/anytrue expects exactly one argument"))
		}
	}
}

func isNumberish(t *types.Type) bool {
	switch t.Kind {
	case types.Int, types.Double, types.AbsNumber:
		return true
	}
	return false
}
