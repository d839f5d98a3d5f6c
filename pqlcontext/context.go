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

// Package pqlcontext implements the context API (§6.1): one
// *Context per backend connection, compiling query text into a
// *Query by driving the full pipeline, then running a *Query
// against the backend. It owns the diagnostic dump store (§6.4),
// the evaluation trace lines, the compile-error accumulator
// (§7), and the memory-cap dead man (§5).
//
// Grounded on cmd/sneller/main.go's top-level driver shape (parse
// flags/config, build one long-lived object, dispatch per
// request) and on plan/pir/build.go's "run every rewrite pass in
// a fixed order, stop at the first failure" discipline -- here
// applied to the pql 13-stage pipeline instead of pir's rewrite
// rule table.
package pqlcontext

import (
	"fmt"
	"log"
	"strings"

	"github.com/sneller-labs/pql/backend"
	"github.com/sneller-labs/pql/colname"
	"github.com/sneller-labs/pql/compile"
	"github.com/sneller-labs/pql/compile/baseopt"
	"github.com/sneller-labs/pql/compile/bindnil"
	"github.com/sneller-labs/pql/compile/dequantify"
	"github.com/sneller-labs/pql/compile/movepaths"
	"github.com/sneller-labs/pql/compile/norenames"
	"github.com/sneller-labs/pql/compile/normalize"
	"github.com/sneller-labs/pql/compile/resolve"
	"github.com/sneller-labs/pql/compile/stepjoins"
	"github.com/sneller-labs/pql/compile/tuplify"
	"github.com/sneller-labs/pql/compile/typecheck"
	"github.com/sneller-labs/pql/compile/typeinf"
	"github.com/sneller-labs/pql/compile/unify"
	"github.com/sneller-labs/pql/eval"
	"github.com/sneller-labs/pql/pqlconfig"
	"github.com/sneller-labs/pql/pt"
	"github.com/sneller-labs/pql/pt/parser"
	"github.com/sneller-labs/pql/region"
	"github.com/sneller-labs/pql/tcalc"
	"github.com/sneller-labs/pql/types"
	"github.com/sneller-labs/pql/value"
)

// Context is one pql_context: a backend handle plus the
// diagnostics and memory accounting accumulated across every
// Compile/Run call made through it (§6.1, §5).
type Context struct {
	be     backend.Backend
	cfg    pqlconfig.Config
	logger *log.Logger

	dumps *dumpStore
	errs  *compile.Errors
	trace []string
	peak  int64
}

// New creates a context bound to be, pql_context_new's Go form.
// The returned context owns no resources besides its diagnostic
// buffers, so a zero pqlconfig.Config (via pqlconfig.Default)
// works for ad hoc use.
func New(be backend.Backend, cfg pqlconfig.Config) *Context {
	return &Context{
		be:     be,
		cfg:    cfg,
		logger: log.Default(),
		dumps:  newDumpStore(),
	}
}

// SetLogger overrides the context's logger (default log.Default,
// per SPEC_FULL §10.2); used for the evaluation trace lines and
// non-fatal backend warnings.
func (c *Context) SetLogger(l *log.Logger) {
	if l != nil {
		c.logger = l
	}
}

// Close releases the context and reports the peak memory usage
// observed across every Compile/Run performed through it --
// pql_context_free's documented `peak_memory_bytes` return value
// (§6.1).
func (c *Context) Close() int64 { return c.peak }

// Errors returns every diagnostic (error or warning) recorded by
// the most recent Compile (§7 "accumulated in a per-context
// list").
func (c *Context) Errors() []*compile.Error {
	if c.errs == nil {
		return nil
	}
	return c.errs.List()
}

// ErrorCount returns the number of SeverityError diagnostics from
// the most recent Compile (§6.1 "number ... of compile errors").
func (c *Context) ErrorCount() int {
	if c.errs == nil {
		return 0
	}
	return c.errs.Count()
}

// ErrorText renders every recorded diagnostic as one line each.
func (c *Context) ErrorText() string {
	var b strings.Builder
	for _, e := range c.Errors() {
		e.WriteTo(&b)
		b.WriteByte('\n')
	}
	return b.String()
}

// Dump returns the retained diagnostic text for stage (one of
// pqlconfig.DumpStages), decompressing it if necessary.
func (c *Context) Dump(stage string) (string, error) {
	return c.dumps.get(stage)
}

// TraceLines returns the evaluation trace lines recorded by Run
// calls made through this context so far (§6.1 "evaluation trace
// lines").
func (c *Context) TraceLines() []string { return c.trace }

func (c *Context) mergeErrs(errs *compile.Errors) {
	if errs == nil {
		return
	}
	for _, e := range errs.List() {
		c.errs.Add(e)
	}
}

func (c *Context) wantDump(stage string) bool {
	for _, s := range c.cfg.DumpStages {
		if s == stage {
			return true
		}
	}
	return false
}

func (c *Context) dumpPTStage(stage string, root pt.Expression) {
	if c.wantDump(stage) {
		c.dumps.store(stage, dumpPT(root))
	}
}

func (c *Context) dumpTCStage(stage string, root tcalc.Node) {
	if c.wantDump(stage) {
		c.dumps.store(stage, dumpTC(root))
	}
}

// failed reports whether any SeverityError diagnostic has been
// recorded so far during the current Compile.
func (c *Context) failed() bool { return c.errs.Failed() }

func (c *Context) compileErr() error {
	return fmt.Errorf("pqlcontext: compile failed with %d error(s):\n%s", c.ErrorCount(), c.ErrorText())
}

// Query is an opaque compiled query (pql_compile's return value):
// a fully lowered, type-checked, optimized TC tree ready for Run.
type Query struct {
	tc  tcalc.Node
	typ *types.Type
	ct  *colname.ColTree
}

// Type returns the query's top-level inferred datatype (§4.7).
func (q *Query) Type() *types.Type { return q.typ }

// ColTree returns the query's top-level column tree (§4.7).
func (q *Query) ColTree() *colname.ColTree { return q.ct }

// Close releases q -- pql_query_free's Go form. The TC tree is
// ordinary garbage-collected Go data (§9's refcount fields exist
// for the pass-local Ref/Unref discipline, not for an external
// free), so Close only drops this Context's reference to it.
func (q *Query) Close() { q.tc = nil }

// Compile drives queryText through every pipeline stage in order
// (§2), aborting at the first stage to record a SeverityError
// diagnostic (§7 "the pipeline driver aborts before the next
// pass whenever the failure flag is set"). On success it returns
// a *Query ready for Run; on failure it returns a nil *Query and
// an error, but the authoritative diagnostics -- per §6.1's "on
// null the caller reads errors from the context" -- are Errors()/
// ErrorText(), not the Go error value alone.
func (c *Context) Compile(queryText string) (*Query, error) {
	c.errs = &compile.Errors{}

	reg := region.New()
	root, perr := parser.Parse(strings.NewReader(queryText), "query", reg)
	if perr != nil {
		c.errs.Add(compile.Errorf(nil, "parse error: %v", perr))
		reg.Close()
		return nil, c.compileErr()
	}
	c.dumpPTStage("parser", root)

	var errs *compile.Errors

	root, errs = resolve.Resolve(root)
	c.mergeErrs(errs)
	c.dumpPTStage("resolve", root)
	if c.failed() {
		reg.Close()
		return nil, c.compileErr()
	}

	root = normalize.Normalize(root)
	c.dumpPTStage("normalize", root)

	root = unify.Unify(root)
	c.dumpPTStage("unify", root)

	root, errs = movepaths.Move(root)
	c.mergeErrs(errs)
	c.dumpPTStage("movepaths", root)
	if c.failed() {
		reg.Close()
		return nil, c.compileErr()
	}

	root = bindnil.BindNil(root)
	c.dumpPTStage("bindnil", root)

	root = dequantify.Dequantify(root)
	c.dumpPTStage("dequantify", root)

	tc, terrs := tuplify.Tuplify(root)
	c.mergeErrs(terrs)
	c.dumpTCStage("tuplify", tc)

	// The PT is fully consumed by tuplify (§8.1 invariant 5); drop
	// the arena now rather than holding it until Close (§5 "earlier
	// stages' state is dropped before the next stage begins").
	c.trackMemory(reg.PeakBytes())
	reg.Close()

	if c.failed() {
		return nil, c.compileErr()
	}

	typ, ct, ierrs := typeinf.Infer(tc)
	c.mergeErrs(ierrs)
	c.dumpTCStage("typeinf", tc)
	if c.failed() {
		return nil, c.compileErr()
	}

	c.mergeErrs(typecheck.Check(tc))
	if c.failed() {
		return nil, c.compileErr()
	}

	tc = norenames.Eliminate(tc)
	c.dumpTCStage("norenames", tc)

	tc, oerrs := baseopt.Optimize(tc)
	c.mergeErrs(oerrs)
	c.dumpTCStage("baseopt", tc)
	if c.failed() {
		return nil, c.compileErr()
	}

	tc, serrs := stepjoins.Fold(tc)
	c.mergeErrs(serrs)
	c.dumpTCStage("stepjoins", tc)
	if c.failed() {
		return nil, c.compileErr()
	}

	c.checkMemCap()
	return &Query{tc: tc, typ: typ, ct: ct}, nil
}

// Run evaluates q against the context's backend (pql_run) and
// appends one evaluation trace line (§6.1) recording the result
// or error.
func (c *Context) Run(q *Query) (value.Value, error) {
	v, err := eval.Eval(q.tc, c.be)
	if err != nil {
		line := fmt.Sprintf("eval: error: %v", err)
		c.trace = append(c.trace, line)
		c.logger.Printf("%s", line)
		return nil, err
	}
	line := fmt.Sprintf("eval: result = %s", v.String())
	c.trace = append(c.trace, line)
	c.logger.Printf("%s", line)
	c.checkMemCap()
	return v, nil
}
