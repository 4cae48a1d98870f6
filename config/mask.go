package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// matchTimeout bounds a single rule evaluation; rules come from the operator's config file,
// but backtracking patterns should never stall the controller tick.
const matchTimeout = 100 * time.Millisecond

// Mask is a compiled operator-grant rule.
//
// Two forms are accepted:
//
//	*!*@*.example.org          IRC hostmask glob, '*' and '?' wildcards, anchored
//	/^alice!.*@trusted\.host$/ delimited regular expression with optional flags (i, m, s, x)
//
// Matching is case-sensitive unless the regex form carries the i flag.
type Mask struct {
	raw string
	re  *regexp2.Regexp
}

// CompileMask parses a rule. An empty rule is an error; callers treat "no rule" as a nil *Mask.
func CompileMask(rule string) (*Mask, error) {
	rule = strings.TrimSpace(rule)
	if rule == "" {
		return nil, fmt.Errorf("%w: empty rule", ErrInvalidRule)
	}
	var (
		expr string
		opts regexp2.RegexOptions
	)
	if pat, flags, ok := splitDelimited(rule); ok {
		expr = pat
		for _, f := range flags {
			switch f {
			case 'i':
				opts |= regexp2.IgnoreCase
			case 'm':
				opts |= regexp2.Multiline
			case 's':
				opts |= regexp2.Singleline
			case 'x':
				opts |= regexp2.IgnorePatternWhitespace
			default:
				return nil, fmt.Errorf("%w: unsupported flag %q in %s", ErrInvalidRule, f, rule)
			}
		}
	} else {
		expr = globToRegexp(rule)
	}
	re, err := regexp2.Compile(expr, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRule, rule, err)
	}
	re.MatchTimeout = matchTimeout
	return &Mask{raw: rule, re: re}, nil
}

// Match reports whether origin (nick!user@host) satisfies the rule.
// A nil Mask never matches. Evaluation errors (timeouts) count as no match.
func (m *Mask) Match(origin string) bool {
	if m == nil || m.re == nil {
		return false
	}
	ok, err := m.re.MatchString(origin)
	return err == nil && ok
}

// String returns the rule as written in the config file.
func (m *Mask) String() string {
	if m == nil {
		return ""
	}
	return m.raw
}

// splitDelimited recognizes /pattern/flags. The delimiter may be any of / # ~ % | @ (e.g.
// #...#), as long as the rule ends with the same delimiter plus lowercase flags.
func splitDelimited(rule string) (pattern, flags string, ok bool) {
	if len(rule) < 2 {
		return "", "", false
	}
	d := rule[0]
	if !isDelimiter(d) {
		return "", "", false
	}
	end := strings.LastIndexByte(rule, d)
	if end <= 0 {
		return "", "", false
	}
	flags = rule[end+1:]
	for _, f := range flags {
		if f < 'a' || f > 'z' {
			return "", "", false
		}
	}
	return rule[1:end], flags, true
}

func isDelimiter(c byte) bool {
	switch c {
	case '/', '#', '~', '%', '|', '@':
		return true
	}
	return false
}

// globToRegexp anchors an IRC hostmask: '*' is any run, '?' any single character, the rest literal.
func globToRegexp(mask string) string {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range mask {
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
