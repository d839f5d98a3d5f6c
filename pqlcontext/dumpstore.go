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
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// compressThreshold is the dump text size, per stage, above which
// dumpStore compresses the retained bytes instead of keeping them
// verbatim -- so a pathological query's diagnostic dumps don't
// dominate the memory cap in §5 ("hundreds of MB"), the same
// concern the teacher's compr package exists to address for
// on-disk columnar data.
const compressThreshold = 32 * 1024

type dumpEntry struct {
	raw        []byte // set when len(text) < compressThreshold
	compressed []byte // set otherwise
}

func newDumpEntry(text string) dumpEntry {
	data := []byte(text)
	if len(data) < compressThreshold {
		return dumpEntry{raw: data}
	}
	var buf bytes.Buffer
	zw, _ := flate.NewWriter(&buf, flate.BestSpeed)
	zw.Write(data)
	zw.Close()
	return dumpEntry{compressed: buf.Bytes()}
}

func (e dumpEntry) text() (string, error) {
	if e.compressed == nil {
		return string(e.raw), nil
	}
	zr := flate.NewReader(bytes.NewReader(e.compressed))
	defer zr.Close()
	data, err := io.ReadAll(zr)
	if err != nil {
		return "", fmt.Errorf("pqlcontext: decompressing dump: %w", err)
	}
	return string(data), nil
}

// dumpStore holds one dumpEntry per pipeline stage name (§6.4).
type dumpStore struct {
	entries map[string]dumpEntry
}

func newDumpStore() *dumpStore { return &dumpStore{entries: map[string]dumpEntry{}} }

func (s *dumpStore) store(stage, text string) {
	s.entries[stage] = newDumpEntry(text)
}

func (s *dumpStore) get(stage string) (string, error) {
	e, ok := s.entries[stage]
	if !ok {
		return "", fmt.Errorf("pqlcontext: no dump retained for stage %q", stage)
	}
	return e.text()
}
