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

package pt

// Copy returns a deep copy of n, duplicating a subtree without
// aliasing ColumnVar pointers that remain distinct bindings (no
// compiler pass in this module calls it), the way the teacher's
// expr.Copy does for its tree (there via an ion encode/decode
// roundtrip; here via a direct structural copy, since pt has no
// wire codec).
func Copy(n Node) Node {
	if n == nil {
		return nil
	}
	switch e := n.(type) {
	case *GlobalVar:
		cp := *e
		return &cp
	case *ColumnVar:
		cp := *e
		return &cp
	case *Sequence:
		cp := *e
		cp.Items = copyPaths(e.Items)
		return &cp
	case *Alternates:
		cp := *e
		cp.Items = copyPaths(e.Items)
		return &cp
	case *Optional:
		cp := *e
		cp.Sub = Copy(e.Sub).(PathNode)
		cp.NilColumns = append([]*ColumnVar(nil), e.NilColumns...)
		return &cp
	case *Repeated:
		cp := *e
		cp.Sub = Copy(e.Sub).(PathNode)
		return &cp
	case *NilBind:
		cp := *e
		cp.Sub = Copy(e.Sub).(PathNode)
		cp.Before = append([]*ColumnVar(nil), e.Before...)
		cp.After = append([]*ColumnVar(nil), e.After...)
		return &cp
	case *Edge:
		cp := *e
		if e.NameExpr != nil {
			cp.NameExpr = Copy(e.NameExpr).(Expression)
		}
		return &cp
	case *Select:
		cp := *e
		if e.Sub != nil {
			cp.Sub = Copy(e.Sub).(Expression)
		}
		cp.Result = Copy(e.Result).(Expression)
		return &cp
	case *From:
		cp := *e
		if e.Sub != nil {
			cp.Sub = Copy(e.Sub).(Expression)
		}
		cp.Items = copyExprs(e.Items)
		return &cp
	case *Where:
		cp := *e
		cp.Sub = Copy(e.Sub).(Expression)
		cp.Pred = Copy(e.Pred).(Expression)
		return &cp
	case *Group:
		cp := *e
		cp.Sub = Copy(e.Sub).(Expression)
		cp.Vars = append([]*ColumnVar(nil), e.Vars...)
		return &cp
	case *Ungroup:
		cp := *e
		cp.Sub = Copy(e.Sub).(Expression)
		return &cp
	case *Rename:
		cp := *e
		cp.Sub = Copy(e.Sub).(Expression)
		if e.ComputedNameExpr != nil {
			cp.ComputedNameExpr = Copy(e.ComputedNameExpr).(Expression)
		}
		return &cp
	case *Path:
		cp := *e
		cp.Root = Copy(e.Root).(Expression)
		cp.Body = Copy(e.Body).(PathNode)
		cp.MoreBindings = append([]Binding(nil), e.MoreBindings...)
		for i := range cp.MoreBindings {
			cp.MoreBindings[i].Value = Copy(cp.MoreBindings[i].Value).(Expression)
		}
		return &cp
	case *Tuple:
		cp := *e
		cp.Items = copyExprs(e.Items)
		return &cp
	case *Quantifier:
		cp := *e
		cp.Set = Copy(e.Set).(Expression)
		cp.Pred = Copy(e.Pred).(Expression)
		return &cp
	case *Map:
		cp := *e
		cp.Set = Copy(e.Set).(Expression)
		cp.Result = Copy(e.Result).(Expression)
		return &cp
	case *Assign:
		cp := *e
		cp.Value = Copy(e.Value).(Expression)
		if e.Body != nil {
			cp.Body = Copy(e.Body).(Expression)
		}
		return &cp
	case *Bop:
		cp := *e
		cp.Left = Copy(e.Left).(Expression)
		cp.Right = Copy(e.Right).(Expression)
		return &cp
	case *Uop:
		cp := *e
		cp.Sub = Copy(e.Sub).(Expression)
		return &cp
	case *Func:
		cp := *e
		cp.Args = copyExprs(e.Args)
		return &cp
	case *ReadAnyVar:
		cp := *e
		return &cp
	case *ReadColumnVar:
		cp := *e
		return &cp
	case *ReadGlobalVar:
		cp := *e
		return &cp
	case *Value:
		cp := *e
		cp.Const = e.Const.Clone()
		return &cp
	}
	panic("pt.Copy: unhandled node type")
}

func copyPaths(items []PathNode) []PathNode {
	out := make([]PathNode, len(items))
	for i, it := range items {
		out[i] = Copy(it).(PathNode)
	}
	return out
}

func copyExprs(items []Expression) []Expression {
	out := make([]Expression, len(items))
	for i, it := range items {
		out[i] = Copy(it).(Expression)
	}
	return out
}

// CopyColumnVar duplicates a ColumnVar's identity as a *new*,
// distinct variable with the same surface name and position. No
// compiler pass in this module calls it.
func CopyColumnVar(c *ColumnVar) *ColumnVar {
	return NewColumnVar(c.Name, c.At)
}
