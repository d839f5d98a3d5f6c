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

// Package compile holds the pieces shared by every pipeline
// pass package (resolve, normalize, unify, movepaths, bindnil,
// dequantify, tuplify, typeinf, typecheck, norenames, baseopt,
// stepjoins): the diagnostic Error type (§7) and the per-
// compilation Errors accumulator, grounded on
// plan/pir/build.go's CompileError and the
// accumulate-then-abort discipline in plan/pir/postcheck.go.
package compile

import (
	"fmt"
	"io"

	"github.com/sneller-labs/pql/pt"
)

// Severity distinguishes a hard compile error from a warning
// (§7 "shadowing -> warning").
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Error is one compile-time diagnostic: the offending node (if
// any), its severity, a message, and -- for diagnostics that
// reference two locations (e.g. duplicate binding, shadowing,
// §7) -- a second position.
type Error struct {
	In       pt.Node
	Severity Severity
	Message  string
	Also     *pt.Position // second location, for two-location diagnostics
}

func (e *Error) Error() string { return e.Message }

// WriteTo renders the diagnostic, including the offending
// node's source position, the way pir.CompileError.WriteTo does.
func (e *Error) WriteTo(dst io.Writer) (int64, error) {
	var pos pt.Position
	if e.In != nil {
		pos = e.In.Pos()
	}
	n, err := fmt.Fprintf(dst, "%s at %s: %s", e.Severity, pos, e.Message)
	if err == nil && e.Also != nil {
		var m int
		m, err = fmt.Fprintf(dst, " (also see %s)", *e.Also)
		n += m
	}
	return int64(n), err
}

func Errorf(in pt.Node, format string, args ...interface{}) *Error {
	return &Error{In: in, Severity: SeverityError, Message: fmt.Sprintf(format, args...)}
}

func Warnf(in pt.Node, format string, args ...interface{}) *Error {
	return &Error{In: in, Severity: SeverityWarning, Message: fmt.Sprintf(format, args...)}
}

// Errors accumulates diagnostics across one compilation (§7
// "errors are accumulated in a per-context list with (line,
// column, text)"). A pass appends to Errors with Add, which marks
// the list failed for an error (not a warning); once Failed is
// true the pipeline driver aborts before the
// next stage (§7, §8 invariant list).
type Errors struct {
	list   []*Error
	failed bool
}

// Add appends an error or warning; Add only sets the Failed
// flag for SeverityError diagnostics.
func (e *Errors) Add(err *Error) {
	e.list = append(e.list, err)
	if err.Severity == SeverityError {
		e.failed = true
	}
}

// Failed reports whether any SeverityError diagnostic has been
// recorded.
func (e *Errors) Failed() bool { return e.failed }

// List returns every recorded diagnostic, in recording order.
func (e *Errors) List() []*Error { return e.list }

// Count returns the number of SeverityError diagnostics (§6.1
// "number ... of compile errors").
func (e *Errors) Count() int {
	n := 0
	for _, d := range e.list {
		if d.Severity == SeverityError {
			n++
		}
	}
	return n
}
