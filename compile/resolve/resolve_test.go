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

package resolve

import (
	"strings"
	"testing"

	"github.com/sneller-labs/pql/pt"
	"github.com/sneller-labs/pql/pt/parser"
	"github.com/sneller-labs/pql/region"
)

func parseQuery(t *testing.T, src string) pt.Expression {
	t.Helper()
	reg := region.New()
	e, err := parser.Parse(strings.NewReader(src), "test", reg)
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	return e
}

// hasReadAnyVar walks the resolved tree by hand (pt.Walk is
// unavailable to an external package in a way convenient for this
// assertion), looking through the node kinds the test queries
// produce: Select, From, Where, Path roots, Assign, Bop and Tuple.
func hasReadAnyVar(e pt.Expression) bool {
	switch n := e.(type) {
	case *pt.ReadAnyVar:
		return true
	case *pt.Select:
		return hasReadAnyVar(n.Sub) || hasReadAnyVar(n.Result)
	case *pt.From:
		if hasReadAnyVar(n.Sub) {
			return true
		}
		for _, it := range n.Items {
			if hasReadAnyVar(it) {
				return true
			}
		}
		return false
	case *pt.Where:
		return hasReadAnyVar(n.Sub) || hasReadAnyVar(n.Pred)
	case *pt.Path:
		return hasReadAnyVar(n.Root)
	case *pt.Assign:
		return hasReadAnyVar(n.Value) || (n.Body != nil && hasReadAnyVar(n.Body))
	case *pt.Bop:
		return hasReadAnyVar(n.Left) || hasReadAnyVar(n.Right)
	case *pt.Tuple:
		for _, it := range n.Items {
			if hasReadAnyVar(it) {
				return true
			}
		}
		return false
	}
	return false
}

func TestResolveEliminatesReadAnyVar(t *testing.T) {
	e := parseQuery(t, "select X from A.friend as X where X = B")
	out, errs := Resolve(e)
	if errs.Failed() {
		t.Fatalf("unexpected resolve errors: %v", errs.List())
	}
	if hasReadAnyVar(out) {
		t.Fatal("Resolve should eliminate every ReadAnyVar (§8.1 invariant 1)")
	}
}

func TestResolveBindsBareIdentifierToGlobal(t *testing.T) {
	e := parseQuery(t, "select A")
	out, errs := Resolve(e)
	if errs.Failed() {
		t.Fatalf("unexpected resolve errors: %v", errs.List())
	}
	sel := out.(*pt.Select)
	rv, ok := sel.Result.(*pt.ReadGlobalVar)
	if !ok {
		t.Fatalf("bare identifier 'A' resolved to %T, want *pt.ReadGlobalVar", sel.Result)
	}
	if rv.Var.Name != "A" {
		t.Fatalf("resolved global name = %q, want %q", rv.Var.Name, "A")
	}
}

func TestResolveBindsPathVarToColumn(t *testing.T) {
	e := parseQuery(t, "select X from A.friend as X")
	out, errs := Resolve(e)
	if errs.Failed() {
		t.Fatalf("unexpected resolve errors: %v", errs.List())
	}
	sel := out.(*pt.Select)
	if _, ok := sel.Result.(*pt.ReadColumnVar); !ok {
		t.Fatalf("X bound by a from-item should resolve to *pt.ReadColumnVar, got %T", sel.Result)
	}
}

func TestResolveWarnsOnShadowing(t *testing.T) {
	e := parseQuery(t, "select X from A.friend as X, X.friend as X")
	_, errs := Resolve(e)
	if errs.Failed() {
		t.Fatalf("shadowing should warn, not fail: %v", errs.List())
	}
	foundWarning := false
	for _, d := range errs.List() {
		if d.Severity.String() == "warning" {
			foundWarning = true
		}
	}
	if !foundWarning {
		t.Fatal("expected a shadowing warning when a from-item rebinds an in-scope variable name")
	}
}
