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

package parser

import (
	"strings"
	"testing"

	"github.com/sneller-labs/pql/pt"
	"github.com/sneller-labs/pql/region"
)

func parse(t *testing.T, src string) pt.Expression {
	t.Helper()
	reg := region.New()
	e, err := Parse(strings.NewReader(src), "test", reg)
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	return e
}

// TestScenarioQueriesParse checks that every §8 end-to-end
// scenario query parses to a *pt.Select without error.
func TestScenarioQueriesParse(t *testing.T) {
	queries := []string{
		"select X from A.friend as X",
		"select X from A.friend+ as X",
		"select X from A.friend as X where exists Y in X.friend: Y = D",
		"select count(Y) from A.friend as X, X.friend as Y",
		"select X.friend ++ X.parent from A.friend as X",
		"select distinct E from A.friend as X, X.(friend|parent) as Y as E",
	}
	for _, q := range queries {
		e := parse(t, q)
		sel, ok := e.(*pt.Select)
		if !ok {
			t.Fatalf("%q: root is %T, want *pt.Select", q, e)
		}
		if sel.Sub == nil {
			t.Fatalf("%q: Select.Sub is nil", q)
		}
	}
}

func TestDistinctFlag(t *testing.T) {
	e := parse(t, "select distinct X from A.friend as X")
	sel := e.(*pt.Select)
	if !sel.Distinct {
		t.Fatal("expected Distinct to be set")
	}

	e = parse(t, "select X from A.friend as X")
	sel = e.(*pt.Select)
	if sel.Distinct {
		t.Fatal("expected Distinct to be unset")
	}
}

func TestSyntaxErrorIsReported(t *testing.T) {
	reg := region.New()
	_, err := Parse(strings.NewReader(""), "test", reg)
	if err == nil {
		t.Fatal("expected a syntax error for empty input")
	}
}

func TestTrailingTokenIsRejected(t *testing.T) {
	reg := region.New()
	_, err := Parse(strings.NewReader("select X from A.friend as X )"), "test", reg)
	if err == nil {
		t.Fatal("expected an error for a trailing stray token")
	}
}
