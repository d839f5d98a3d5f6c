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

// Command pql compiles and runs one query against an in-memory
// provenance graph, grounded on cmd/dump's flag-args-stdin shape.
// It exists to exercise pqlcontext/pqlconfig end to end, not as a
// production server -- the graph is always memgraph and has no
// persistence (§13 "cmd/pql: minimal CLI").
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sneller-labs/pql/backend/memgraph"
	"github.com/sneller-labs/pql/pqlconfig"
	"github.com/sneller-labs/pql/pqlcontext"
)

func main() {
	configPath := flag.String("config", "", "path to a pqlconfig YAML file (optional)")
	dumpStage := flag.String("dump", "", "print the diagnostic dump for this pipeline stage and exit")
	flag.Parse()

	cfg := pqlconfig.Default()
	if *configPath != "" {
		var err error
		cfg, err = pqlconfig.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	args := flag.Args()
	if len(args) == 0 {
		args = []string{"-"}
	}

	g := memgraph.New()
	ctx := pqlcontext.New(g, cfg)

	status := 0
	for _, arg := range args {
		if err := run(ctx, arg, *dumpStage); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %s\n", arg, err)
			status = 1
		}
	}
	peak := ctx.Close()
	fmt.Fprintf(os.Stderr, "peak memory: %d bytes\n", peak)
	os.Exit(status)
}

func run(ctx *pqlcontext.Context, arg, dumpStage string) error {
	var src *os.File
	if arg == "-" {
		src = os.Stdin
	} else {
		f, err := os.Open(arg)
		if err != nil {
			return fmt.Errorf("can't open %q: %w", arg, err)
		}
		defer f.Close()
		src = f
	}
	text, err := io.ReadAll(src)
	if err != nil {
		return fmt.Errorf("reading %q: %w", arg, err)
	}

	q, err := ctx.Compile(string(text))
	if err != nil {
		fmt.Fprint(os.Stderr, ctx.ErrorText())
		return err
	}
	defer q.Close()

	if dumpStage != "" {
		text, err := ctx.Dump(dumpStage)
		if err != nil {
			return err
		}
		fmt.Println(text)
		return nil
	}

	v, err := ctx.Run(q)
	if err != nil {
		return err
	}
	fmt.Println(v.String())
	return nil
}
