// Package codec implements the small, self-contained translations the
// fileserver core needs at its boundary with the wire and with the host
// filesystem: the dotted-namespace <-> host-path escaping, date packing,
// permission-bit remapping, and wildcard-to-regexp translation. None of these depend on session or resolver state.
package codec

import (
	"regexp"
	"strings"
)

// NativeToDotted escapes a host path component for the dotted namespace by
// substituting ':' for '/', since '/' is forbidden in the dotted namespace
// and '.' is its component separator.
func NativeToDotted(name string) string {
	return strings.ReplaceAll(name, "/", ":")
}

// DottedToNative is the inverse of NativeToDotted.
func DottedToNative(name string) string {
	return strings.ReplaceAll(name, ":", "/")
}

// wildcardPunct is the fixed punctuation set the single-character wildcard
// ('#') matches, in addition to alphanumerics. ']' is placed first in the
// resulting character class so that it is interpreted literally rather than
// closing the class early; '-' is placed last, immediately before the
// closing ']', so it can't be read as a range operator against its
// neighbour.
const wildcardPunct = `]\*#+_;:[?/£!@%^{}+~,=<>|`

var wildcardClassPattern = "[" + regexp.QuoteMeta(wildcardPunct) + "a-zA-Z0-9-]"

// WildcardToPattern converts an Econet glob ('#' = exactly one character
// from the fixed class, '*' = zero or more) into an anchored,
// case-insensitive regular expression. A literal with no '#'/'*' compiles to
// a pattern that matches that literal and nothing else.
func WildcardToPattern(glob string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("(?i)^")
	for _, r := range glob {
		switch r {
		case '#':
			b.WriteString(wildcardClassPattern)
		case '*':
			b.WriteString(wildcardClassPattern + "*")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// HasWildcard reports whether s contains a wildcard metacharacter.
func HasWildcard(s string) bool {
	return strings.ContainsAny(s, "#*")
}
