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

// Package colname implements identity-bearing column handles
// (§3.2): ColName, the ordered ColSet, and the nested ColTree
// that mirrors a TC node's datatype shape.
package colname

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/exp/slices"
)

// ColName is an identity-bearing handle with a human-readable
// name and a reference count. Two ColNames compare by identity,
// never by name (§3.2).
type ColName struct {
	Name string
	refs int32
}

var anonCounter uint64

// Fresh creates a new, uniquely-named anonymous ColName, used
// wherever normalize/tuplify need to synthesize a binding that
// has no surface-syntax name (§3.1 "fresh vars can be
// synthesized with system-chosen names"). The name embeds a
// short UUID suffix so dumps stay readable without colliding
// across concurrent compilations sharing a process.
func Fresh(hint string) *ColName {
	n := atomic.AddUint64(&anonCounter, 1)
	if hint == "" {
		hint = "tmp"
	}
	return &ColName{Name: fmt.Sprintf("$%s_%d_%s", hint, n, uuid.New().String()[:8])}
}

// New creates a ColName for a surface-syntax identifier.
func New(name string) *ColName { return &ColName{Name: name} }

// Ref increments the refcount and returns the receiver, so
// callers can write `c := src.Ref()` at the point a new owner
// is created (mirrors the teacher's general pattern of
// explicit retain calls on shared, identity-bearing handles).
func (c *ColName) Ref() *ColName {
	atomic.AddInt32(&c.refs, 1)
	return c
}

// Unref decrements the refcount. The core never frees a
// ColName eagerly (Go's GC reclaims it once unreachable); Unref
// exists so passes can assert balanced retain/release during
// development, matching the discipline described in §9.
func (c *ColName) Unref() {
	atomic.AddInt32(&c.refs, -1)
}

func (c *ColName) String() string { return c.Name }

// ColSet is an ordered multiset of distinct ColName handles
// (by identity), used where order matters -- e.g. a Project's
// target list (§3.2).
type ColSet struct {
	cols []*ColName
	// complement marks this set as "all columns except cols",
	// to be resolved later against a context ColTree.
	complement bool
}

// NewColSet builds an ordered ColSet from cols, de-duplicating
// by identity.
func NewColSet(cols ...*ColName) *ColSet {
	s := &ColSet{}
	for _, c := range cols {
		s.Add(c)
	}
	return s
}

// Complement marks a ColSet as "all but these", to be resolved
// later via Resolve.
func Complement(cols ...*ColName) *ColSet {
	s := NewColSet(cols...)
	s.complement = true
	return s
}

// Add appends c if not already present (by identity).
func (s *ColSet) Add(c *ColName) {
	if !s.Contains(c) {
		s.cols = append(s.cols, c)
	}
}

// Contains reports identity membership.
func (s *ColSet) Contains(c *ColName) bool {
	return slices.Contains(s.cols, c)
}

// Cols returns the ordered member list (the marked set itself,
// if Complement was used -- callers must Resolve first).
func (s *ColSet) Cols() []*ColName { return s.cols }

// IsComplement reports whether this set still needs Resolve.
func (s *ColSet) IsComplement() bool { return s.complement }

// Resolve turns a complement-marked set into the concrete,
// ordered list of columns in ctx that are not members of s,
// in ctx's order. Calling Resolve on a non-complement set
// simply returns its own members.
func (s *ColSet) Resolve(ctx *ColTree) []*ColName {
	if !s.complement {
		return s.cols
	}
	var out []*ColName
	ctx.EachLeaf(func(c *ColName) {
		if !s.Contains(c) {
			out = append(out, c)
		}
	})
	return out
}

// ColTree is the per-expression column shape (§3.2): either a
// scalar whole-column name, or a tuple containing a whole-
// column name and an ordered sequence of child ColTrees.
type ColTree struct {
	Whole    *ColName
	Children []*ColTree // nil for a scalar leaf
}

// Leaf builds a scalar ColTree.
func Leaf(c *ColName) *ColTree { return &ColTree{Whole: c} }

// Node builds a tuple ColTree with the given whole-column name
// and children, mirroring the nested tuple shape of a datatype.
func Node(whole *ColName, children ...*ColTree) *ColTree {
	return &ColTree{Whole: whole, Children: children}
}

// IsTuple reports whether t has children (a tuple shape).
func (t *ColTree) IsTuple() bool { return t != nil && t.Children != nil }

// Arity returns the ColTree arity: 1 for a scalar, or the
// number of children for a tuple (§3.2 invariant: this must
// equal the datatype arity).
func (t *ColTree) Arity() int {
	if t == nil {
		return 0
	}
	if !t.IsTuple() {
		return 1
	}
	return len(t.Children)
}

// At returns the i'th child of a tuple ColTree.
func (t *ColTree) At(i int) *ColTree {
	if !t.IsTuple() || i < 0 || i >= len(t.Children) {
		return nil
	}
	return t.Children[i]
}

// EachLeaf calls fn once per leaf ColName reachable from t, in
// left-to-right order, flattening any nested tuple shape.
func (t *ColTree) EachLeaf(fn func(*ColName)) {
	if t == nil {
		return
	}
	if !t.IsTuple() {
		fn(t.Whole)
		return
	}
	for _, c := range t.Children {
		c.EachLeaf(fn)
	}
}

// Leaves collects EachLeaf's output into a slice.
func (t *ColTree) Leaves() []*ColName {
	var out []*ColName
	t.EachLeaf(func(c *ColName) { out = append(out, c) })
	return out
}

// Find reports whether name (by identity) occurs anywhere in t,
// at any depth; it does not report where (used by typecheck to
// validate Project/Strip
// column references, §7 "column name mentioned... that is not
// present in the child's coltree").
func (t *ColTree) Find(name *ColName) bool {
	found := false
	t.EachLeaf(func(c *ColName) {
		if c == name {
			found = true
		}
	})
	return found
}

// IndexOf returns the direct child index of name in a tuple
// ColTree, or -1 if name is not a direct child.
func (t *ColTree) IndexOf(name *ColName) int {
	if !t.IsTuple() {
		if t != nil && t.Whole == name {
			return 0
		}
		return -1
	}
	for i, c := range t.Children {
		if !c.IsTuple() && c.Whole == name {
			return i
		}
	}
	return -1
}

func (t *ColTree) String() string {
	if t == nil {
		return "<nil>"
	}
	if !t.IsTuple() {
		return t.Whole.String()
	}
	s := t.Whole.String() + "("
	for i, c := range t.Children {
		if i > 0 {
			s += ","
		}
		s += c.String()
	}
	return s + ")"
}
