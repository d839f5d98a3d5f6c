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

package pqlcontext

import (
	"fmt"
	"strings"

	"github.com/sneller-labs/pql/pt"
	"github.com/sneller-labs/pql/tcalc"
)

// dumpPT renders root as an indented tree of node labels, one
// per pipeline stage (§6.4), via pt.Walk/pt.Visitor -- the same
// Visitor shape every compile pass already drives, reused here
// purely for diagnostics rather than rewriting.
func dumpPT(root pt.Expression) string {
	var b strings.Builder
	if root != nil {
		pt.Walk(&ptDumper{w: &b}, root)
	}
	return b.String()
}

type ptDumper struct {
	w     *strings.Builder
	depth int
}

func (d *ptDumper) Visit(n pt.Node) pt.Visitor {
	fmt.Fprintf(d.w, "%s%s\n", strings.Repeat("  ", d.depth), describePT(n))
	return &ptDumper{w: d.w, depth: d.depth + 1}
}

func describePT(n pt.Node) string {
	switch x := n.(type) {
	case *pt.GlobalVar:
		return "GlobalVar " + x.Name
	case *pt.ColumnVar:
		return fmt.Sprintf("ColumnVar %s#%d", x.Name, x.ID)
	case *pt.Edge:
		dir := "->"
		if x.Reversed {
			dir = "<-"
		}
		if x.NameExpr != nil {
			return "Edge " + dir + " {computed}"
		}
		return "Edge " + dir + " " + x.Name
	case *pt.Bop:
		return fmt.Sprintf("Bop %v", x.Op)
	case *pt.Uop:
		return fmt.Sprintf("Uop %v", x.Op)
	case *pt.Func:
		return fmt.Sprintf("Func %v", x.Op)
	case *pt.Value:
		return "Value " + x.Const.String()
	case *pt.ReadGlobalVar:
		return "ReadGlobalVar"
	case *pt.ReadColumnVar:
		return "ReadColumnVar"
	case *pt.ReadAnyVar:
		return "ReadAnyVar " + x.Name
	case *pt.Select:
		return fmt.Sprintf("Select distinct=%v", x.Distinct)
	default:
		return fmt.Sprintf("%T", n)
	}
}

// dumpTC renders root the same way dumpPT does, for the stages
// that operate over tcalc.Node (tuplify onward).
func dumpTC(root tcalc.Node) string {
	var b strings.Builder
	if root != nil {
		tcalc.Walk(&tcDumper{w: &b}, root)
	}
	return b.String()
}

type tcDumper struct {
	w     *strings.Builder
	depth int
}

func (d *tcDumper) Visit(n tcalc.Node) tcalc.Visitor {
	fmt.Fprintf(d.w, "%s%s\n", strings.Repeat("  ", d.depth), describeTC(n))
	return &tcDumper{w: d.w, depth: d.depth + 1}
}

func describeTC(n tcalc.Node) string {
	switch x := n.(type) {
	case *tcalc.Bop:
		return fmt.Sprintf("Bop %v", x.Op)
	case *tcalc.Uop:
		return fmt.Sprintf("Uop %v", x.Op)
	case *tcalc.FuncNode:
		return fmt.Sprintf("Func %v", x.Op)
	case *tcalc.ValueNode:
		if x.Const != nil {
			return "Value " + x.Const.String()
		}
		return "Value"
	case *tcalc.ReadGlobal:
		if x.Global != nil {
			return "ReadGlobal " + x.Global.Name
		}
		return "ReadGlobal"
	case *tcalc.ReadVar:
		return "ReadVar"
	case *tcalc.Step:
		return "Step"
	case *tcalc.Scan:
		return "Scan"
	case *tcalc.Repeat:
		return "Repeat"
	case *tcalc.Project:
		return "Project"
	case *tcalc.Strip:
		return "Strip"
	case *tcalc.Rename:
		return "Rename"
	case *tcalc.Join:
		return "Join"
	case *tcalc.Filter:
		return "Filter"
	default:
		return fmt.Sprintf("%T", n)
	}
}
