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

package memgraph

import (
	"testing"

	"github.com/sneller-labs/pql/value"
)

func TestFollowRespectsEdgeNameAndDirection(t *testing.T) {
	g := New()
	a := g.Object("A")
	g.AddEdge("A", "friend", "B")
	g.AddEdge("A", "parent", "C")

	friends, err := g.Follow(a, "friend", false)
	if err != nil {
		t.Fatal(err)
	}
	if friends.Len() != 1 || !friends.Contains(value.Struct{ID: "B"}) {
		t.Fatalf("Follow(A, friend) = %v, want {B}", friends)
	}

	none, err := g.Follow(a, "friend", true)
	if err != nil {
		t.Fatal(err)
	}
	if none.Len() != 0 {
		t.Fatalf("reversed Follow(A, friend) = %v, want empty", none)
	}
}

func TestFollowReversed(t *testing.T) {
	g := New()
	b := g.Object("B")
	g.AddEdge("A", "friend", "B")

	back, err := g.Follow(b, "friend", true)
	if err != nil {
		t.Fatal(err)
	}
	if back.Len() != 1 || !back.Contains(value.Struct{ID: "A"}) {
		t.Fatalf("reversed Follow(B, friend) = %v, want {A}", back)
	}
}

func TestFollowAllReturnsPathElements(t *testing.T) {
	g := New()
	a := g.Object("A")
	g.AddEdge("A", "friend", "B")
	g.AddEdge("A", "parent", "C")

	all, err := g.FollowAll(a, false)
	if err != nil {
		t.Fatal(err)
	}
	if all.Len() != 2 {
		t.Fatalf("FollowAll(A) = %v, want 2 edges", all)
	}
	for _, v := range all.Items() {
		if _, ok := v.(value.PathElement); !ok {
			t.Fatalf("FollowAll element %v is a %T, want value.PathElement", v, v)
		}
	}
}

func TestReadGlobalUndefined(t *testing.T) {
	g := New()
	if _, err := g.ReadGlobal("nope"); err == nil {
		t.Fatal("expected an error reading an undefined global")
	}
	g.SetGlobal("A", g.Object("A"))
	v, err := g.ReadGlobal("A")
	if err != nil {
		t.Fatal(err)
	}
	if !v.Equal(value.Struct{ID: "A"}) {
		t.Fatalf("ReadGlobal(A) = %v, want #obj:A", v)
	}
}

func TestNewObjectAndAssign(t *testing.T) {
	g := New()
	obj, err := g.NewObject()
	if err != nil {
		t.Fatal(err)
	}
	if err := g.Assign(obj, "field", value.Int(42)); err != nil {
		t.Fatal(err)
	}
	out, err := g.Follow(obj, "field", false)
	if err != nil {
		t.Fatal(err)
	}
	if out.Len() != 1 {
		t.Fatalf("Follow after Assign of a literal = %v, want exactly one edge", out)
	}
}

func TestAssignToNonStructFails(t *testing.T) {
	g := New()
	if err := g.Assign(value.Int(1), "field", value.Int(2)); err == nil {
		t.Fatal("expected Assign on a non-struct object to fail")
	}
}
