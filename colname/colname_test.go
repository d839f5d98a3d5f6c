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

package colname

import "testing"

func TestColNamesCompareByIdentityNotName(t *testing.T) {
	a := New("x")
	b := New("x")
	if a == b {
		t.Fatal("two separately-created ColNames with the same name must be distinct identities")
	}
	set := NewColSet(a)
	if set.Contains(b) {
		t.Fatal("ColSet.Contains should use identity, not name, equality")
	}
}

func TestFreshNamesAreUnique(t *testing.T) {
	a := Fresh("row")
	b := Fresh("row")
	if a == b || a.Name == b.Name {
		t.Fatal("Fresh should mint distinct identities with distinct names")
	}
}

func TestColSetDedupsByIdentity(t *testing.T) {
	a := New("a")
	s := NewColSet(a, a, a)
	if len(s.Cols()) != 1 {
		t.Fatalf("got %d entries, want 1 after de-duplication", len(s.Cols()))
	}
}

func TestComplementResolve(t *testing.T) {
	a, b, c := New("a"), New("b"), New("c")
	tree := Node(New("row"), Leaf(a), Leaf(b), Leaf(c))

	comp := Complement(b)
	resolved := comp.Resolve(tree)
	if len(resolved) != 2 || resolved[0] != a || resolved[1] != c {
		t.Fatalf("Complement(b).Resolve = %v, want [a, c]", resolved)
	}
}

func TestColTreeArityAndLeaves(t *testing.T) {
	a, b := New("a"), New("b")
	scalar := Leaf(a)
	if scalar.Arity() != 1 {
		t.Fatalf("scalar arity = %d, want 1", scalar.Arity())
	}

	tup := Node(New("row"), Leaf(a), Leaf(b))
	if tup.Arity() != 2 {
		t.Fatalf("tuple arity = %d, want 2", tup.Arity())
	}
	leaves := tup.Leaves()
	if len(leaves) != 2 || leaves[0] != a || leaves[1] != b {
		t.Fatalf("Leaves() = %v, want [a, b]", leaves)
	}
}

func TestColTreeFindAndIndexOf(t *testing.T) {
	a, b, other := New("a"), New("b"), New("other")
	tup := Node(New("row"), Leaf(a), Leaf(b))

	if !tup.Find(a) {
		t.Error("Find should locate a direct leaf")
	}
	if tup.Find(other) {
		t.Error("Find should not locate an unrelated ColName")
	}
	if idx := tup.IndexOf(b); idx != 1 {
		t.Fatalf("IndexOf(b) = %d, want 1", idx)
	}
	if idx := tup.IndexOf(other); idx != -1 {
		t.Fatalf("IndexOf(other) = %d, want -1", idx)
	}
}

func TestNestedColTreeFindFlattens(t *testing.T) {
	a, b, c := New("a"), New("b"), New("c")
	inner := Node(New("inner"), Leaf(b), Leaf(c))
	outer := Node(New("row"), Leaf(a), inner)

	if !outer.Find(c) {
		t.Error("Find should descend into nested tuple children")
	}
	leaves := outer.Leaves()
	if len(leaves) != 3 || leaves[2] != c {
		t.Fatalf("Leaves() = %v, want [a, b, c]", leaves)
	}
}
