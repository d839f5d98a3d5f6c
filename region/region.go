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

// Package region implements the per-query arena that owns every
// PT node, array, and string for the lifetime of one
// compilation (§3.1 "Ownership", §9 "Region-allocated PT").
//
// The source this spec was distilled from batch-frees the whole
// parse tree at query end; this package models that with a Go
// arena that just accumulates owned objects and drops its
// reference to all of them at Close, letting the garbage
// collector reclaim whatever has become unreachable. Region
// does not prevent nodes from escaping (Go has no notion of a
// borrowed pointer), but every pass in this module is written
// to treat region-owned PT pointers as non-owning handles, per
// §9's "nodes holding non-owning handles to each other."
package region

import "sync/atomic"

// Region owns every object allocated during one compilation.
type Region struct {
	bytes  int64
	peak   int64
	closed bool
	// retained keeps every bulk allocation reachable until
	// Close, so that Go's GC cannot reclaim arena memory out
	// from under a pass mid-compilation even if all outstanding
	// references are (incorrectly) dropped.
	retained []interface{}
}

// New creates a fresh, open Region.
func New() *Region {
	return &Region{}
}

// Track records n additional owned bytes against the region's
// accounting (used by New[T]/NewSlice to approximate memory
// use for the ceiling check in §5; this is a best-effort
// estimate, not a precise allocator).
func (r *Region) Track(n int64) {
	b := atomic.AddInt64(&r.bytes, n)
	for {
		p := atomic.LoadInt64(&r.peak)
		if b <= p || atomic.CompareAndSwapInt64(&r.peak, p, b) {
			break
		}
	}
}

// Bytes returns the current estimated bytes owned by the region.
func (r *Region) Bytes() int64 { return atomic.LoadInt64(&r.bytes) }

// PeakBytes returns the high-water mark of Bytes over the
// region's lifetime (§6.1 pql_context_free's peak_memory_bytes).
func (r *Region) PeakBytes() int64 { return atomic.LoadInt64(&r.peak) }

// New allocates a zero-valued *T owned by r.
func New[T any](r *Region) *T {
	v := new(T)
	r.retained = append(r.retained, v)
	r.Track(int64(sizeofApprox[T]()))
	return v
}

// NewSlice allocates a []T of length n owned by r.
func NewSlice[T any](r *Region, n int) []T {
	v := make([]T, n)
	r.retained = append(r.retained, v)
	r.Track(int64(n) * int64(sizeofApprox[T]()))
	return v
}

func sizeofApprox[T any]() int {
	var z T
	switch any(z).(type) {
	case string:
		return 16
	default:
		return 32
	}
}

// Close drops the region's retaining references. Once Close
// returns, PT pointers allocated from r are only as alive as
// whatever else in the program still references them (normally
// nothing, once the pipeline has produced its TC output and the
// PT is no longer needed, per §5 "earlier stages' state is
// dropped before the next stage begins").
func (r *Region) Close() {
	r.retained = nil
	r.closed = true
}

// Closed reports whether Close has been called.
func (r *Region) Closed() bool { return r.closed }
