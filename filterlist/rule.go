// Package filterlist parses Adblock Plus network filters and matches request
// URLs against them. Cosmetic filters, comments and list headers are
// skipped; filters carrying options the matcher does not implement are
// rejected with ErrUnsupported.
package filterlist

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnsupported is returned for network filters whose options the matcher
// cannot honour (csp=, redirect=, rewrite= and the like).
var ErrUnsupported = errors.New("filterlist: unsupported filter")

// Party restricts a rule to first- or third-party requests.
type Party int8

const (
	AnyParty   Party = 0
	ThirdParty Party = 1
	FirstParty Party = -1
)

// Rule is one parsed network filter.
type Rule struct {
	Raw       string
	Exception bool
	MatchCase bool
	// Important blocks are not lifted by ordinary exceptions.
	Important bool
	Party     Party

	pattern     string
	hostAnchor  bool
	startAnchor bool
	endAnchor   bool
	re          *regexp.Regexp
	literal     string

	types    ResourceType
	notTypes ResourceType

	domains    []string
	notDomains []string
}

func (r *Rule) String() string { return r.Raw }

// Parse parses one line of a filter list. It returns (nil, nil) for lines
// that are not network filters: blanks, comments, headers and cosmetic
// rules.
func Parse(line string) (*Rule, error) {
	line = strings.TrimSpace(line)
	if line == "" || line[0] == '!' || line[0] == '[' || isCosmetic(line) {
		return nil, nil
	}

	r := &Rule{Raw: line}
	s := line
	if strings.HasPrefix(s, "@@") {
		r.Exception = true
		s = s[2:]
	}

	if i := strings.LastIndexByte(s, '$'); i >= 0 && isOptionList(s[i+1:]) {
		if err := r.parseOptions(s[i+1:]); err != nil {
			return nil, err
		}
		s = s[:i]
	}

	if len(s) > 2 && s[0] == '/' && s[len(s)-1] == '/' {
		expr := s[1 : len(s)-1]
		if !r.MatchCase {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("filterlist: parse %q: %w", line, err)
		}
		r.re = re
		return r, nil
	}

	switch {
	case strings.HasPrefix(s, "||"):
		r.hostAnchor = true
		s = s[2:]
	case strings.HasPrefix(s, "|"):
		r.startAnchor = true
		s = s[1:]
	}
	if strings.HasSuffix(s, "|") {
		r.endAnchor = true
		s = s[:len(s)-1]
	}
	if !r.MatchCase {
		s = strings.ToLower(s)
	}
	r.pattern = s
	r.literal = longestLiteral(s)
	return r, nil
}

var cosmeticMarkers = []string{"##", "#@#", "#?#", "#$#", "#%#", "#@?#", "#@$#"}

func isCosmetic(line string) bool {
	for _, m := range cosmeticMarkers {
		if strings.Contains(line, m) {
			return true
		}
	}
	return false
}

// isOptionList reports whether s looks like the option part of a filter.
// A '$' inside a regex or a path is not followed by one.
func isOptionList(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case strings.IndexByte("~=|,._-*", c) >= 0:
		default:
			return false
		}
	}
	return true
}

func (r *Rule) parseOptions(opts string) error {
	for _, opt := range strings.Split(opts, ",") {
		opt = strings.ToLower(strings.TrimSpace(opt))
		if opt == "" {
			continue
		}
		neg := strings.HasPrefix(opt, "~")
		name := strings.TrimPrefix(opt, "~")

		switch {
		case name == "match-case":
			r.MatchCase = true
		case name == "third-party" || name == "3p":
			r.Party = ThirdParty
			if neg {
				r.Party = FirstParty
			}
		case name == "first-party" || name == "1p":
			r.Party = FirstParty
			if neg {
				r.Party = ThirdParty
			}
		case strings.HasPrefix(name, "domain=") && !neg:
			for _, d := range strings.Split(strings.TrimPrefix(name, "domain="), "|") {
				if strings.HasPrefix(d, "~") {
					r.notDomains = append(r.notDomains, d[1:])
				} else if d != "" {
					r.domains = append(r.domains, d)
				}
			}
		case name == "important":
			r.Important = true
		case name == "collapse":
		default:
			t, ok := typeOptions[name]
			if !ok {
				return fmt.Errorf("%w: option %q in %q", ErrUnsupported, opt, r.Raw)
			}
			if neg {
				r.notTypes |= t
			} else {
				r.types |= t
			}
		}
	}
	return nil
}

// longestLiteral returns the longest run of s free of wildcards and
// separators. Every URL a rule matches contains it.
func longestLiteral(s string) string {
	var best string
	for _, part := range strings.FieldsFunc(s, func(c rune) bool { return c == '*' || c == '^' }) {
		if len(part) > len(best) {
			best = part
		}
	}
	return best
}
