package rules

import (
	"regexp"
	"strings"
)

// pattern is a compiled sender pattern. Compilation never fails: a string
// that is not a valid glob or regular expression degrades to a
// case-insensitive literal so that one bad pattern cannot take down
// evaluation of the rule set.
type pattern struct {
	raw     string
	literal string         // lowercased literal, when re is nil
	re      *regexp.Regexp // compiled glob or regex, when non-nil
}

// compilePattern classifies a configured pattern string and compiles it.
// Three forms are tried in order:
//  1. no wildcard and no regex metacharacter: case-insensitive literal
//     containment
//  2. contains * or ?: glob matched against the full string
//  3. contains regex metacharacters (^ $ [ \ ( ): compiled as a regular
//     expression; on compile failure it falls back to a literal
func compilePattern(raw string) pattern {
	hasWildcard := strings.ContainsAny(raw, "*?")
	hasRegexMeta := strings.ContainsAny(raw, `^$[\()`)

	switch {
	case hasWildcard:
		if re, err := regexp.Compile(globToRegex(raw)); err == nil {
			return pattern{raw: raw, re: re}
		}
	case hasRegexMeta:
		if re, err := regexp.Compile("(?i)" + raw); err == nil {
			return pattern{raw: raw, re: re}
		}
	}

	return pattern{raw: raw, literal: strings.ToLower(raw)}
}

// match reports whether the pattern matches the given text.
func (p pattern) match(text string) bool {
	if p.re != nil {
		return p.re.MatchString(text)
	}
	return strings.Contains(strings.ToLower(text), p.literal)
}

// globToRegex converts a glob pattern (* matches any run of characters,
// ? matches a single character) to an anchored, case-insensitive regular
// expression over the full string.
func globToRegex(glob string) string {
	var b strings.Builder
	b.WriteString("(?i)^")
	for _, r := range glob {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return b.String()
}
