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

// Package tuplify implements §4.6: lowers the parse tree into the
// tuple-calculus algebra (package tcalc). After this pass no PT
// node type remains (§8.1 invariant 5).
//
// The "current context" a from-clause builds up is represented
// directly as a tcalc Node of type set(tuple(...)); a bound
// column var is read back out of it with Project(ReadVar(row),
// {col}) -- Project's §4.7 rule ("result is the projected tuple
// type directly" when the child is a plain tuple, not a set)
// is exactly a field read, so tuplify does not need a separate
// "read one field" node. Positional resolution of ColName
// identities into real offsets is left entirely to typeinf/eval,
// per §4.7's "translate the named columns into positional
// indexes" wording -- tuplify only needs to reuse the same
// *colname.ColName pointer everywhere a logical column recurs.
//
// Grounded on plan/pir/build.go's expression-to-Step lowering in
// the teacher (there: SQL AST -> pir.Step chain; here: PT -> TC),
// and on plan/pir/itervalue.go's per-row binding-variable pattern
// (there: IterValue's binding var for map/reduce; here: the
// Lambda/Map binder introduced at every row-context boundary).
package tuplify

import (
	"github.com/sneller-labs/pql/colname"
	"github.com/sneller-labs/pql/compile"
	"github.com/sneller-labs/pql/pt"
	"github.com/sneller-labs/pql/tcalc"
	"github.com/sneller-labs/pql/value"
)

type lowerer struct {
	cols    map[*pt.ColumnVar]*colname.ColName
	direct  map[*pt.ColumnVar]*tcalc.Var
	globals map[*pt.GlobalVar]*tcalc.Global
	errs    compile.Errors
}

// Tuplify lowers root (normally a *pt.Select) into a TC tree.
func Tuplify(root pt.Expression) (tcalc.Node, *compile.Errors) {
	l := &lowerer{
		cols:    map[*pt.ColumnVar]*colname.ColName{},
		direct:  map[*pt.ColumnVar]*tcalc.Var{},
		globals: map[*pt.GlobalVar]*tcalc.Global{},
	}
	out := l.selectExpr(root)
	return out, &l.errs
}

func (l *lowerer) colFor(v *pt.ColumnVar) *colname.ColName {
	if c, ok := l.cols[v]; ok {
		return c
	}
	c := colname.New(v.Name)
	l.cols[v] = c
	return c
}

func (l *lowerer) globalFor(v *pt.GlobalVar) *tcalc.Global {
	if g, ok := l.globals[v]; ok {
		return g
	}
	g := &tcalc.Global{Name: v.Name}
	l.globals[v] = g
	return g
}

// selectExpr lowers any Expression at the position a query result
// is expected, most commonly a *pt.Select.
func (l *lowerer) selectExpr(e pt.Expression) tcalc.Node {
	sel, ok := e.(*pt.Select)
	if !ok {
		// A valueless expression used directly as a query (no
		// from/where chain): evaluate it with no row context.
		return l.lowerScalar(nil, e)
	}
	ctx, col, hasCtx := l.chain(sel.Sub)
	row := tcalc.NewVar("row")
	var result tcalc.Node
	if hasCtx {
		result = l.lowerScalar(row, sel.Result)
	} else {
		result = l.lowerScalar(nil, sel.Result)
		col = nil
	}
	_ = col
	if !hasCtx {
		// No from-clause survived to this select (a constant
		// query); just return the scalar result.
		return result
	}
	m := &tcalc.MapNode{Var: row, Set: ctx, Result: result}
	if sel.Distinct {
		return &tcalc.Uniq{Sub: &tcalc.Order{Sub: m}}
	}
	return m
}

// chain lowers the From/Where/Group/Ungroup/Rename chain under a
// Select, returning the resulting context set, the column naming
// its "current" row (best-effort, used by nothing outside this
// package), and whether any context was built at all.
func (l *lowerer) chain(e pt.Expression) (tcalc.Node, *colname.ColName, bool) {
	switch x := e.(type) {
	case nil:
		return nil, nil, false
	case *pt.From:
		var ctx tcalc.Node
		var col *colname.ColName
		var ok bool
		if x.Sub != nil {
			ctx, col, ok = l.chain(x.Sub)
		}
		for _, it := range x.Items {
			p, isPath := it.(*pt.Path)
			if !isPath {
				continue
			}
			ctx, col = l.fromItem(ctx, col, ok, p)
			ok = true
		}
		return ctx, col, ok

	case *pt.Where:
		ctx, col, ok := l.chain(x.Sub)
		if !ok {
			l.errs.Add(compile.Errorf(x, "where clause with no from-clause context"))
			return ctx, col, ok
		}
		row := tcalc.NewVar("row")
		pred := &tcalc.Lambda{Var: row, Body: l.lowerScalar(row, x.Pred)}
		return &tcalc.Filter{Sub: ctx, Pred: pred}, col, true

	case *pt.Group:
		ctx, _, ok := l.chain(x.Sub)
		if !ok {
			l.errs.Add(compile.Errorf(x, "group with no from-clause context"))
			return ctx, nil, ok
		}
		set := colname.NewColSet()
		for _, v := range x.Vars {
			set.Add(l.colFor(v))
		}
		newCol := l.colFor(x.NewVar)
		return &tcalc.Nest{Sub: ctx, Cols: set, NewCol: newCol}, newCol, true

	case *pt.Ungroup:
		ctx, _, ok := l.chain(x.Sub)
		if !ok {
			l.errs.Add(compile.Errorf(x, "ungroup with no from-clause context"))
			return ctx, nil, ok
		}
		col := l.colFor(x.Var)
		return &tcalc.Unnest{Sub: ctx, Col: col}, col, true

	case *pt.Rename:
		ctx, col, ok := l.chain(x.Sub)
		if !ok {
			return ctx, col, ok
		}
		newCol := colname.Fresh("renamed")
		if x.StaticName != "" {
			newCol = colname.New(x.StaticName)
		}
		return &tcalc.Rename{Sub: ctx, Old: col, New: newCol}, newCol, true
	}
	// An expression in from-position that is not a Path (should
	// not occur after movepaths, §8.1 invariant 4) is treated as
	// a scalar producing a singleton context.
	return l.seed(l.lowerScalar(nil, e))
}

// seed wraps a scalar object-valued expression (a from-clause
// item's root, or a degenerate from-position expression) into a
// one-row context set via a Map over a one-element dummy set.
func (l *lowerer) seed(rootVal tcalc.Node) (tcalc.Node, *colname.ColName, bool) {
	col := colname.Fresh("root")
	marker := tcalc.NewVar("_")
	dummy := value.NewSet()
	dummy.Add(value.Nil{})
	m := &tcalc.MapNode{
		Var: marker,
		Set: &tcalc.ValueNode{Const: dummy},
		Result: &tcalc.TupleNode{
			Exprs: []tcalc.Node{rootVal},
			Cols:  []*colname.ColName{col},
		},
	}
	return m, col, true
}

// fromItem advances (ctx, fromCol) across one from-clause path
// item p, seeding a fresh one-row context first when there is no
// incoming ctx.
func (l *lowerer) fromItem(ctx tcalc.Node, fromCol *colname.ColName, hasCtx bool, p *pt.Path) (tcalc.Node, *colname.ColName) {
	if !hasCtx {
		ctx, fromCol, _ = l.seed(l.lowerScalar(nil, p.Root))
	} else {
		// root must already be a column of ctx (unify/movepaths
		// guarantee this for a chained from-item).
		if rc, ok := p.Root.(*pt.ReadColumnVar); ok {
			fromCol = l.colFor(rc.Var)
		}
	}
	for i := range p.MoreBindings {
		b := p.MoreBindings[i]
		row := tcalc.NewVar("row")
		newCol := l.colFor(b.Var)
		ctx = &tcalc.Adjoin{Left: ctx, Lambda: &tcalc.Lambda{Var: row, Body: l.lowerScalar(row, b.Value)}, NewCol: newCol}
	}
	newCtx, after := l.pathBody(ctx, fromCol, p.Body)
	l.registerBinds(p.Body.Binds(), fromCol, after)
	return newCtx, after
}

func (l *lowerer) registerBinds(b *pt.Bindings, before, after *colname.ColName) {
	if b.BindObjBefore != nil {
		l.cols[b.BindObjBefore] = before
	}
	if b.BindObjAfter != nil {
		l.cols[b.BindObjAfter] = after
	}
}

// pathBody lowers one PathNode given the incoming (ctx, fromCol),
// returning the new context and the column naming the object
// reached at the end of this path node.
func (l *lowerer) pathBody(ctx tcalc.Node, fromCol *colname.ColName, p pt.PathNode) (tcalc.Node, *colname.ColName) {
	switch n := p.(type) {
	case *pt.Sequence:
		cur, col := ctx, fromCol
		for _, it := range n.Items {
			next, after := l.pathBody(cur, col, it)
			l.registerBinds(it.Binds(), col, after)
			cur, col = next, after
		}
		return cur, col

	case *pt.Edge:
		return l.step(ctx, fromCol, n)

	case *pt.Optional:
		subCtx, subAfter := l.pathBody(ctx, fromCol, n.Sub)
		result := colname.Fresh("opt")
		left := &tcalc.Rename{Sub: subCtx, Old: subAfter, New: result}

		right := ctx
		for _, nc := range n.NilColumns {
			col := l.colFor(nc)
			right = l.adjoinConst(right, col, value.Nil{})
		}
		right = l.adjoinCopy(right, fromCol, result)
		return &tcalc.Bop{Op: tcalc.BinOp(pt.OpUnionAll), Left: left, Right: right}, result

	case *pt.Repeated:
		loopVar := tcalc.NewVar("cur")
		bodyStart := colname.Fresh("start")
		seed := &tcalc.TupleNode{Exprs: []tcalc.Node{&tcalc.ReadVar{Var: loopVar}}, Cols: []*colname.ColName{bodyStart}}
		bodyCtx, bodyEnd := l.pathBody(seed, bodyStart, n.Sub)
		end := colname.Fresh("end")
		rep := &tcalc.Repeat{
			Sub:          ctx,
			SubEndCol:    fromCol,
			LoopVar:      loopVar,
			BodyStartCol: bodyStart,
			Body:         bodyCtx,
			BodyEndCol:   bodyEnd,
			RepeatEndCol: end,
		}
		if n.PathFromInside != nil || n.PathOnOutside != nil {
			// Path accumulation through Repeat is left
			// unimplemented; flagged so callers asking for a
			// traversed-edge sequence get a clear diagnostic
			// rather than a silently empty one.
			l.errs.Add(compile.Warnf(n, "repeated path accumulation (pathFromInside/pathOnOutside) is not lowered; results will omit the traversed-edge sequence"))
		}
		return rep, end

	case *pt.Alternates:
		result := colname.Fresh("tail")
		if n.TailVar != nil {
			result = l.colFor(n.TailVar)
		}
		var acc tcalc.Node
		for _, it := range n.Items {
			subCtx, after := l.pathBody(ctx, fromCol, it)
			l.registerBinds(it.Binds(), fromCol, after)
			renamed := &tcalc.Rename{Sub: subCtx, Old: after, New: result}
			if acc == nil {
				acc = renamed
			} else {
				acc = &tcalc.Bop{Op: tcalc.BinOp(pt.OpUnionAll), Left: acc, Right: renamed}
			}
		}
		return acc, result

	case *pt.NilBind:
		cur := ctx
		for _, v := range n.Before {
			cur = l.adjoinConst(cur, l.colFor(v), value.Nil{})
		}
		subCtx, after := l.pathBody(cur, fromCol, n.Sub)
		for _, v := range n.After {
			subCtx = l.adjoinConst(subCtx, l.colFor(v), value.Nil{})
		}
		return subCtx, after
	}
	return ctx, fromCol
}

func (l *lowerer) adjoinConst(ctx tcalc.Node, col *colname.ColName, v value.Value) tcalc.Node {
	row := tcalc.NewVar("_")
	return &tcalc.Adjoin{Left: ctx, Lambda: &tcalc.Lambda{Var: row, Body: &tcalc.ValueNode{Const: v}}, NewCol: col}
}

func (l *lowerer) adjoinCopy(ctx tcalc.Node, from, to *colname.ColName) tcalc.Node {
	row := tcalc.NewVar("row")
	return &tcalc.Adjoin{
		Left:   ctx,
		Lambda: &tcalc.Lambda{Var: row, Body: &tcalc.Project{Sub: &tcalc.ReadVar{Var: row}, Cols: colname.NewColSet(from)}},
		NewCol: to,
	}
}

// step lowers a single atomic Edge (§4.6's fold-over-edges rule):
// Join(context, Scan(...), pred matching context.fromCol against
// the scan's left/right column and, for a literal or computed
// edge name, the scan's edge column), then Strip the join-
// introduced duplicate and the edge column, then Rename the far
// object to a fresh after-column. stepjoins later recognizes this
// exact shape and folds it back into a single Step node (§4.10).
func (l *lowerer) step(ctx tcalc.Node, fromCol *colname.ColName, e *pt.Edge) (tcalc.Node, *colname.ColName) {
	leftCol := colname.Fresh("left")
	edgeCol := colname.Fresh("edge")
	rightCol := colname.Fresh("right")
	scan := &tcalc.Scan{LeftCol: leftCol, EdgeCol: edgeCol, RightCol: rightCol}

	matchCol, afterColOnScan := leftCol, rightCol
	if e.Reversed {
		matchCol, afterColOnScan = rightCol, leftCol
	}

	work := ctx
	var edgeNameCol *colname.ColName
	if e.NameExpr != nil {
		edgeNameCol = colname.Fresh("edgename")
		row := tcalc.NewVar("row")
		work = &tcalc.Adjoin{Left: work, Lambda: &tcalc.Lambda{Var: row, Body: l.lowerScalar(row, e.NameExpr)}, NewCol: edgeNameCol}
	}

	predVar := tcalc.NewVar("j")
	eqFrom := &tcalc.Bop{
		Op:    tcalc.BinOp(pt.OpEq),
		Left:  &tcalc.Project{Sub: &tcalc.ReadVar{Var: predVar}, Cols: colname.NewColSet(fromCol)},
		Right: &tcalc.Project{Sub: &tcalc.ReadVar{Var: predVar}, Cols: colname.NewColSet(matchCol)},
	}
	var body tcalc.Node = eqFrom
	switch {
	case e.Name != "":
		nameEq := &tcalc.Bop{
			Op:    tcalc.BinOp(pt.OpEq),
			Left:  &tcalc.Project{Sub: &tcalc.ReadVar{Var: predVar}, Cols: colname.NewColSet(edgeCol)},
			Right: &tcalc.ValueNode{Const: value.String(e.Name)},
		}
		body = &tcalc.Bop{Op: tcalc.BinOp(pt.OpAnd), Left: body, Right: nameEq}
	case edgeNameCol != nil:
		nameEq := &tcalc.Bop{
			Op:    tcalc.BinOp(pt.OpEq),
			Left:  &tcalc.Project{Sub: &tcalc.ReadVar{Var: predVar}, Cols: colname.NewColSet(edgeCol)},
			Right: &tcalc.Project{Sub: &tcalc.ReadVar{Var: predVar}, Cols: colname.NewColSet(edgeNameCol)},
		}
		body = &tcalc.Bop{Op: tcalc.BinOp(pt.OpAnd), Left: body, Right: nameEq}
	}
	pred := &tcalc.Lambda{Var: predVar, Body: body}

	joined := &tcalc.Join{Left: work, Right: scan, Pred: pred}
	stripCols := colname.NewColSet(matchCol, edgeCol)
	if edgeNameCol != nil {
		stripCols.Add(edgeNameCol)
	}
	stripped := &tcalc.Strip{Sub: joined, Cols: stripCols}
	afterCol := colname.Fresh("obj")
	renamed := &tcalc.Rename{Sub: stripped, Old: afterColOnScan, New: afterCol}
	return renamed, afterCol
}

// lowerScalar lowers e as a scalar (non-context-building)
// expression. row, if non-nil, is the tcalc.Var bound to the
// current context row, used to resolve ReadColumnVar references
// into column vars of that row; it is nil when e has no
// surrounding row context (a constant query, or an Adjoin/Map
// body that introduces its own row var instead).
func (l *lowerer) lowerScalar(row *tcalc.Var, e pt.Expression) tcalc.Node {
	switch n := e.(type) {
	case nil:
		return nil
	case *pt.ReadColumnVar:
		if dv, ok := l.direct[n.Var]; ok {
			return &tcalc.ReadVar{Var: dv}
		}
		col := l.colFor(n.Var)
		return &tcalc.Project{Sub: &tcalc.ReadVar{Var: row}, Cols: colname.NewColSet(col)}
	case *pt.ReadGlobalVar:
		return &tcalc.ReadGlobal{Global: l.globalFor(n.Var)}
	case *pt.Value:
		return &tcalc.ValueNode{Const: n.Const}
	case *pt.Bop:
		return &tcalc.Bop{Op: tcalc.BinOp(n.Op), Left: l.lowerScalar(row, n.Left), Right: l.lowerScalar(row, n.Right)}
	case *pt.Uop:
		return &tcalc.Uop{Op: tcalc.UnOp(n.Op), Sub: l.lowerScalar(row, n.Sub)}
	case *pt.Func:
		args := make([]tcalc.Node, len(n.Args))
		for i, a := range n.Args {
			args[i] = l.lowerScalar(row, a)
		}
		return &tcalc.FuncNode{Op: tcalc.FuncOp(n.Op), Args: args}
	case *pt.Map:
		setNode := l.lowerScalar(row, n.Set)
		v := tcalc.NewVar(n.Var.Name)
		l.direct[n.Var] = v
		result := l.lowerScalar(row, n.Result)
		delete(l.direct, n.Var)
		return &tcalc.MapNode{Var: v, Set: setNode, Result: result}
	case *pt.Tuple:
		exprs := make([]tcalc.Node, len(n.Items))
		cols := make([]*colname.ColName, len(n.Items))
		for i, it := range n.Items {
			exprs[i] = l.lowerScalar(row, it)
			cols[i] = colname.Fresh("elem")
		}
		return &tcalc.TupleNode{Exprs: exprs, Cols: cols}
	case *pt.Assign:
		v := tcalc.NewVar(n.Var.Name)
		val := l.lowerScalar(row, n.Value)
		l.direct[n.Var] = v
		var body tcalc.Node
		if n.Body != nil {
			body = l.lowerScalar(row, n.Body)
		} else {
			body = &tcalc.ReadVar{Var: v}
		}
		delete(l.direct, n.Var)
		return &tcalc.Let{Var: v, Value: val, Body: body}
	case *pt.Select:
		return l.selectExpr(n)
	case *pt.Path:
		// A Path surviving to scalar position means movepaths
		// could not hoist it (already reported as an error
		// there); lower its root as a best-effort fallback.
		return l.lowerScalar(row, n.Root)
	}
	l.errs.Add(compile.Errorf(e, "tuplify: unsupported expression"))
	return &tcalc.ValueNode{Const: value.Nil{}}
}
