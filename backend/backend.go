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

// Package backend declares the small operations interface the
// core consumes to talk to the graph database (§6.2); the
// database itself is explicitly out of scope (§1).
package backend

import "github.com/sneller-labs/pql/value"

// Backend is the trait the evaluator (during ReadGlobal and
// Step) and Func(F_NEW) call into (§5 "Shared resources", §6.2,
// §9 "Backend interface: a trait with the five operations").
// No global state is threaded through a Backend: the evaluator
// passes a handle through explicitly.
type Backend interface {
	// Follow returns the set of single-column dbobj tuples
	// reached from obj by edges named edgeName, in the given
	// direction.
	Follow(obj value.Value, edgeName string, reversed bool) (*value.Set, error)

	// FollowAll returns the set of value.PathElement{Left, Edge,
	// Right} triples for the edges reachable from obj in the
	// given direction.
	FollowAll(obj value.Value, reversed bool) (*value.Set, error)

	// ReadGlobal resolves a named graph root.
	ReadGlobal(name string) (value.Value, error)

	// NewObject allocates a fresh struct. Assign(obj, edgeName,
	// value) must be called afterwards to be observable; the
	// allocation itself must be idempotent with respect to any
	// prior observable state (§5).
	NewObject() (value.Value, error)

	// Assign attaches an edge from obj labeled edgeName to
	// val. This is the one backend call that creates graph
	// state (§5).
	Assign(obj value.Value, edgeName string, val value.Value) error
}
