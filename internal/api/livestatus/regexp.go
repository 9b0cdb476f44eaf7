package livestatus

import (
	"strings"

	"github.com/grafana/regexp"
	"github.com/pkg/errors"
)

// RegExp is a compiled filter value. Literal values are quoted so that both
// exact comparisons and regex searches go through the same matcher.
type RegExp struct {
	pattern string
	search  *regexp.Regexp
	full    *regexp.Regexp
}

// NewRegExp compiles pattern. With literal the pattern matches itself only,
// with icase letters match regardless of case.
func NewRegExp(pattern string, icase, literal bool) (*RegExp, error) {
	expr := pattern
	if literal {
		expr = regexp.QuoteMeta(pattern)
	}
	flags := ""
	if icase {
		flags = "(?i)"
	}
	search, err := regexp.Compile(flags + expr)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid regular expression '%s'", pattern)
	}
	full, err := regexp.Compile(flags + `^(?:` + expr + `)$`)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid regular expression '%s'", pattern)
	}
	return &RegExp{pattern: pattern, search: search, full: full}, nil
}

// Match reports whether the whole of s matches.
func (r *RegExp) Match(s string) bool { return r.full.MatchString(s) }

// Search reports whether s contains a match.
func (r *RegExp) Search(s string) bool { return r.search.MatchString(s) }

func (r *RegExp) String() string { return r.pattern }

// alternatives turns "a,b{1,2}" into "(?:a)|(?:b{1,2})". Commas inside
// braces belong to repetition counts and do not split.
func alternatives(value string) string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(value); i++ {
		switch value[i] {
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, value[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, value[start:])
	if len(parts) == 1 {
		return value
	}
	for i, p := range parts {
		parts[i] = "(?:" + p + ")"
	}
	return strings.Join(parts, "|")
}
