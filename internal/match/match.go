// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

/*
Package match turns free-form user text into a full-text search expression
that is safe to pass to MATCH. Malformed operator usage is neutralised rather
than rejected.

The expression language is the boolean full-text syntax: words, the prefix
operators + - < > ~, double quoted phrases, a trailing * wildcard and
parenthesised groups.

Sanitize runs a fixed pipeline of passes. The order matters: later passes
assume earlier ones have already removed or collapsed specific patterns. Each
pass looks only at its own input, in the way a global regular expression
replacement would. The pipeline is repeated until its output no longer
changes.
*/
package match

import (
	"strings"
	"unicode"
)

// pass is a single rewriting step of the sanitizer.
type pass struct {
	name string
	fn   func(string) string
}

// pipeline is the ordered list of passes applied by Sanitize.
var pipeline = []pass{
	{"trimSpace", trimSpace},
	{"stripDisallowed", stripDisallowed},
	{"dropDanglingOperators", dropDanglingOperators},
	{"dropUnanchoredQuoteStar", dropUnanchoredQuoteStar},
	{"dropInWordQuoteStar", dropInWordQuoteStar},
	{"dropUnanchoredOpenParen", dropUnanchoredOpenParen},
	{"dropUnanchoredCloseParen", dropUnanchoredCloseParen},
	{"dropUnbalancedQuotes", dropUnbalancedQuotes},
	{"dropUnbalancedParens", dropUnbalancedParens},
	{"collapseOperatorRuns", collapseOperatorRuns},
	// Collapsing can leave an operator with nothing to operate on.
	{"dropDanglingOperators", dropDanglingOperators},
	{"dropLeadingWildcard", dropLeadingWildcard},
	{"dropEmptyExpression", dropEmptyExpression},
}

// Sanitize returns a version of s that is a syntactically valid full-text
// search expression. Sanitize is idempotent.
func Sanitize(s string) string {
	for {
		next := runPipeline(s)
		if next == s {
			return next
		}
		s = next
	}
}

func runPipeline(s string) string {
	for _, p := range pipeline {
		s = p.fn(s)
	}
	return s
}

func isWord(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

func isOperator(r rune) bool {
	switch r {
	case '+', '-', '<', '>', '~':
		return true
	}
	return false
}

func isGlyph(r rune) bool {
	switch r {
	case '(', ')', '"', '*':
		return true
	}
	return isOperator(r)
}

func isQuoteStar(r rune) bool {
	return r == '"' || r == '*'
}

// dropWhere removes every rune of s for which drop returns true. drop sees the
// runes of the unmodified input.
func dropWhere(s string, drop func(rs []rune, i int) bool) string {
	rs := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i, r := range rs {
		if !drop(rs, i) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func trimSpace(s string) string {
	return strings.TrimFunc(s, unicode.IsSpace)
}

func stripDisallowed(s string) string {
	return strings.Map(func(r rune) rune {
		if isWord(r) || isGlyph(r) || r == ' ' {
			return r
		}
		return -1
	}, s)
}

// dropDanglingOperators removes every run of prefix operators that is
// followed by a space or the end of the text.
func dropDanglingOperators(s string) string {
	rs := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(rs); {
		if !isOperator(rs[i]) {
			b.WriteRune(rs[i])
			i++
			continue
		}
		j := i
		for j < len(rs) && isOperator(rs[j]) {
			j++
		}
		if j < len(rs) && rs[j] != ' ' {
			b.WriteString(string(rs[i:j]))
		}
		i = j
	}
	return b.String()
}

// dropUnanchoredQuoteStar removes a " or * unless it starts the text or
// follows a word character or a space.
func dropUnanchoredQuoteStar(s string) string {
	return dropWhere(s, func(rs []rune, i int) bool {
		if !isQuoteStar(rs[i]) || i == 0 {
			return false
		}
		prev := rs[i-1]
		return !isWord(prev) && prev != ' '
	})
}

// dropInWordQuoteStar removes a " or * placed between two word characters.
func dropInWordQuoteStar(s string) string {
	return dropWhere(s, func(rs []rune, i int) bool {
		if !isQuoteStar(rs[i]) || i == 0 || i == len(rs)-1 {
			return false
		}
		return isWord(rs[i-1]) && isWord(rs[i+1])
	})
}

// dropUnanchoredOpenParen removes a ( unless it starts the text or follows a
// space.
func dropUnanchoredOpenParen(s string) string {
	return dropWhere(s, func(rs []rune, i int) bool {
		return rs[i] == '(' && i > 0 && rs[i-1] != ' '
	})
}

// dropUnanchoredCloseParen removes a ) unless it follows a word character and
// is followed by a space or the end of the text.
func dropUnanchoredCloseParen(s string) string {
	return dropWhere(s, func(rs []rune, i int) bool {
		if rs[i] != ')' {
			return false
		}
		if i == 0 || !isWord(rs[i-1]) {
			return true
		}
		return i < len(rs)-1 && rs[i+1] != ' '
	})
}

// dropUnbalancedQuotes removes all quotes when a phrase is left open.
func dropUnbalancedQuotes(s string) string {
	if strings.Count(s, `"`)%2 == 0 {
		return s
	}
	return strings.ReplaceAll(s, `"`, "")
}

// dropUnbalancedParens removes all parentheses when they do not pair up.
func dropUnbalancedParens(s string) string {
	if strings.Count(s, "(") == strings.Count(s, ")") {
		return s
	}
	return strings.NewReplacer("(", "", ")", "").Replace(s)
}

// collapseOperatorRuns keeps only the first operator of each run of
// operators, so "--+" becomes "-".
func collapseOperatorRuns(s string) string {
	return dropWhere(s, func(rs []rune, i int) bool {
		return i > 0 && isOperator(rs[i]) && isOperator(rs[i-1])
	})
}

func dropLeadingWildcard(s string) string {
	return strings.TrimPrefix(s, "*")
}

// dropEmptyExpression trims the result and returns "" when no word character
// is left.
func dropEmptyExpression(s string) string {
	s = strings.Trim(s, " ")
	if strings.IndexFunc(s, isWord) < 0 {
		return ""
	}
	return s
}
