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

package lexer

import (
	"strings"
	"testing"
)

func tokens(t *testing.T, src string) []Token {
	t.Helper()
	l := New(strings.NewReader(src), "test")
	var out []Token
	for {
		tok := l.Next()
		out = append(out, tok)
		if tok.Kind == EOF {
			break
		}
	}
	if err := l.Err(); err != nil {
		t.Fatalf("scan error: %v", err)
	}
	return out
}

func TestTwoRuneOperators(t *testing.T) {
	cases := map[string][]string{
		"a ++ b":  {"a", "++", "b"},
		"x != y":  {"x", "!=", "y"},
		"x <= y":  {"x", "<=", "y"},
		"x >= y":  {"x", ">=", "y"},
		"x < y":   {"x", "<", "y"},
		"a+b":     {"a", "+", "b"},
	}
	for src, want := range cases {
		toks := tokens(t, src)
		if len(toks) != len(want)+1 {
			t.Fatalf("%q: got %d tokens, want %d", src, len(toks), len(want)+1)
		}
		for i, w := range want {
			if toks[i].Text != w {
				t.Errorf("%q: token %d = %q, want %q", src, i, toks[i].Text, w)
			}
		}
	}
}

func TestKinds(t *testing.T) {
	toks := tokens(t, `foo 42 3.5 "bar"`)
	want := []Kind{Ident, Number, Number, String, EOF}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d", len(toks), len(want))
	}
	for i, k := range want {
		if toks[i].Kind != k {
			t.Errorf("token %d: kind %v, want %v", i, toks[i].Kind, k)
		}
	}
}

func TestPeekDoesNotConsume(t *testing.T) {
	l := New(strings.NewReader("a b"), "test")
	first := l.Peek()
	second := l.Peek()
	if first != second {
		t.Fatalf("Peek() not idempotent: %+v != %+v", first, second)
	}
	if got := l.Next(); got.Text != "a" {
		t.Fatalf("Next() = %q, want %q", got.Text, "a")
	}
	if got := l.Next(); got.Text != "b" {
		t.Fatalf("Next() = %q, want %q", got.Text, "b")
	}
}
