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

// Package pqlconfig loads the declarative configuration consumed
// by cmd/pql and pqlcontext.Context: the memory cap ceiling (§5),
// the default set of pipeline stages to dump (§6.4), and the
// backend to connect to (§6.2). Grounded on the teacher's use of
// sigs.k8s.io/yaml for manifest-style config (SPEC_FULL §10.3);
// like the teacher's own YAML-backed types, fields are tagged
// with `json`, not `yaml`, since sigs.k8s.io/yaml works by
// converting YAML to JSON and unmarshaling that with
// encoding/json.
package pqlconfig

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// DefaultMemoryCapBytes is the ceiling applied when a config
// omits MemoryCapBytes: "hundreds of MB" per §5.
const DefaultMemoryCapBytes = 512 * 1024 * 1024

// Backend names the backend.Backend implementation cmd/pql wires
// up. Only "memgraph" (backend/memgraph, the reference in-memory
// fixture) exists in this module; a real graph database backend
// is explicitly out of scope (§1).
type Backend struct {
	Kind string `json:"kind"`
	DSN  string `json:"dsn"`
}

// Config is the top-level configuration document.
type Config struct {
	// MemoryCapBytes is the dead-man ceiling on region/value
	// memory in use before a compilation or evaluation aborts
	// the process (§5, §7 "Memory cap exceeded — fatal").
	MemoryCapBytes int64 `json:"memoryCapBytes"`

	// DumpStages lists the pipeline stage names (§6.4) whose
	// diagnostic dump text pqlcontext.Context retains after
	// Compile. An empty list means "no dumps retained".
	DumpStages []string `json:"dumpStages"`

	Backend Backend `json:"backend"`
}

// Default returns the configuration cmd/pql uses when no config
// file is given: the full §6.4 dump stage list, the §5 default
// memory cap, and the memgraph reference backend.
func Default() Config {
	return Config{
		MemoryCapBytes: DefaultMemoryCapBytes,
		DumpStages:     append([]string(nil), DumpStages...),
		Backend:        Backend{Kind: "memgraph"},
	}
}

// DumpStages is the exact stage name list from §6.4, in pipeline
// order (typecheck has no dump of its own: it only produces
// diagnostics, never a rewritten tree).
var DumpStages = []string{
	"parser", "resolve", "normalize", "unify", "movepaths",
	"bindnil", "dequantify", "tuplify", "typeinf", "norenames",
	"baseopt", "stepjoins",
}

// Load reads and parses a YAML (or JSON, which is valid YAML)
// config file at path, filling in defaults for anything the file
// omits.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("pqlconfig: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("pqlconfig: parsing %s: %w", path, err)
	}
	if cfg.MemoryCapBytes <= 0 {
		cfg.MemoryCapBytes = DefaultMemoryCapBytes
	}
	if cfg.Backend.Kind == "" {
		cfg.Backend.Kind = "memgraph"
	}
	return cfg, nil
}
