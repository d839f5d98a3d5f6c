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

// Package memgraph is a small in-memory reference
// implementation of backend.Backend, used by the end-to-end
// tests in §8 and by cmd/pql for quick experimentation. The
// database backend proper is out of scope (§1); this is a
// fixture, not a spec'd component.
package memgraph

import (
	"fmt"
	"sync"

	"github.com/sneller-labs/pql/backend"
	"github.com/sneller-labs/pql/value"
)

type edge struct {
	name  string
	left  string
	right string
}

// Graph is a mutable, in-process object graph keyed by object
// id strings, plus a table of named globals.
type Graph struct {
	mu      sync.Mutex
	objects map[string]bool
	edges   []edge
	globals map[string]value.Value
	nextID  int
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		objects: map[string]bool{},
		globals: map[string]value.Value{},
	}
}

var _ backend.Backend = (*Graph)(nil)

// Object returns a Struct value naming an existing or newly
// registered node id.
func (g *Graph) Object(id string) value.Value {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.objects[id] = true
	return value.Struct{ID: id}
}

// SetGlobal registers a named graph root, for use by
// ReadGlobal and by test fixtures that build a graph by hand.
func (g *Graph) SetGlobal(name string, v value.Value) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.globals[name] = v
}

// AddEdge adds a directed edge left -name-> right.
func (g *Graph) AddEdge(left, name, right string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.objects[left] = true
	g.objects[right] = true
	g.edges = append(g.edges, edge{name: name, left: left, right: right})
}

func idOf(v value.Value) (string, error) {
	s, ok := v.(value.Struct)
	if !ok {
		return "", fmt.Errorf("memgraph: expected a struct value, got %s", v.Kind())
	}
	return s.ID, nil
}

func (g *Graph) Follow(obj value.Value, edgeName string, reversed bool) (*value.Set, error) {
	id, err := idOf(obj)
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	out := value.NewSet()
	for _, e := range g.edges {
		if e.name != edgeName {
			continue
		}
		if !reversed && e.left == id {
			out.Add(value.Struct{ID: e.right})
		} else if reversed && e.right == id {
			out.Add(value.Struct{ID: e.left})
		}
	}
	return out, nil
}

func (g *Graph) FollowAll(obj value.Value, reversed bool) (*value.Set, error) {
	id, err := idOf(obj)
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	out := value.NewSet()
	for _, e := range g.edges {
		switch {
		case !reversed && e.left == id:
			out.Add(value.PathElement{Left: obj, Edge: e.name, Right: value.Struct{ID: e.right}})
		case reversed && e.right == id:
			out.Add(value.PathElement{Left: value.Struct{ID: e.left}, Edge: e.name, Right: obj})
		}
	}
	return out, nil
}

func (g *Graph) ReadGlobal(name string) (value.Value, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	v, ok := g.globals[name]
	if !ok {
		return nil, fmt.Errorf("memgraph: undefined global %q", name)
	}
	return v, nil
}

func (g *Graph) NewObject() (value.Value, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	id := fmt.Sprintf("$new%d", g.nextID)
	g.objects[id] = true
	return value.Struct{ID: id}, nil
}

func (g *Graph) Assign(obj value.Value, edgeName string, val value.Value) error {
	id, err := idOf(obj)
	if err != nil {
		return err
	}
	rid, err := idOf(val)
	if err != nil {
		// Non-struct values are attached as a synthetic literal
		// node so that F_NEW's "all components under a fixed
		// 'default' edge name" behavior (SPEC_FULL §12) has
		// somewhere to point; the literal itself isn't
		// traversable further.
		g.mu.Lock()
		g.nextID++
		rid = fmt.Sprintf("$lit%d", g.nextID)
		g.objects[rid] = true
		g.mu.Unlock()
	}
	g.AddEdge(id, edgeName, rid)
	return nil
}
