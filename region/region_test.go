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

package region

import "testing"

func TestNewTAllocatesZeroValue(t *testing.T) {
	r := New()
	defer r.Close()
	p := New[int](r)
	if *p != 0 {
		t.Fatalf("New[int] = %d, want 0", *p)
	}
	*p = 5
	if *p != 5 {
		t.Fatal("pointer returned by New should be writable")
	}
}

func TestNewSliceLength(t *testing.T) {
	r := New()
	defer r.Close()
	s := NewSlice[string](r, 3)
	if len(s) != 3 {
		t.Fatalf("NewSlice length = %d, want 3", len(s))
	}
}

func TestBytesTracksAllocations(t *testing.T) {
	r := New()
	defer r.Close()
	if r.Bytes() != 0 {
		t.Fatalf("fresh region should have 0 bytes, got %d", r.Bytes())
	}
	New[int](r)
	if r.Bytes() <= 0 {
		t.Fatal("allocating through the region should increase Bytes()")
	}
}

func TestPeakBytesNeverDecreases(t *testing.T) {
	r := New()
	defer r.Close()
	New[int](r)
	peak1 := r.PeakBytes()
	New[int](r)
	peak2 := r.PeakBytes()
	if peak2 < peak1 {
		t.Fatalf("peak bytes decreased from %d to %d", peak1, peak2)
	}
}

func TestCloseMarksClosed(t *testing.T) {
	r := New()
	if r.Closed() {
		t.Fatal("a fresh region should not be closed")
	}
	r.Close()
	if !r.Closed() {
		t.Fatal("Close should mark the region closed")
	}
}
