package filterlist

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Request is one URL to classify.
type Request struct {
	// URL is the requested resource.
	URL string
	// Domain is the host of the page issuing the request. A full URL is
	// accepted too.
	Domain string
	Type   ResourceType
}

// prepared caches the per-request values every rule needs.
type prepared struct {
	url, lower string
	host       string
	hostStart  int
	docHost    string
	party      Party
	typ        ResourceType
}

func prepare(req Request) *prepared {
	p := &prepared{url: req.URL, lower: lowerASCII(req.URL), typ: req.Type}
	p.host, p.hostStart = splitHost(p.lower)
	p.docHost = documentHost(req.Domain)
	p.party = party(p.host, p.docHost)
	return p
}

// splitHost returns the host of u and its offset in u.
func splitHost(u string) (string, int) {
	i := strings.Index(u, "://")
	if i < 0 {
		return "", -1
	}
	start := i + 3
	rest := u[start:]
	end := strings.IndexAny(rest, "/?#")
	if end < 0 {
		end = len(rest)
	}
	hostport := rest[:end]
	if at := strings.LastIndexByte(hostport, '@'); at >= 0 {
		start += at + 1
		hostport = hostport[at+1:]
	}
	host := hostport
	if c := strings.LastIndexByte(host, ':'); c >= 0 && !strings.HasSuffix(host, "]") {
		host = host[:c]
	}
	return host, start
}

func documentHost(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	if strings.Contains(d, "://") {
		if u, err := url.Parse(d); err == nil {
			return u.Hostname()
		}
	}
	return strings.TrimSuffix(d, ".")
}

// party compares registrable domains. An unknown document gives AnyParty,
// to which neither party restriction applies.
func party(host, docHost string) Party {
	if host == "" || docHost == "" || docHost == "none" {
		return AnyParty
	}
	if registrable(host) == registrable(docHost) {
		return FirstParty
	}
	return ThirdParty
}

func registrable(host string) string {
	if d, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return d
	}
	return host
}

func (r *Rule) matches(p *prepared) bool {
	if !r.appliesToType(p.typ) || !r.appliesToParty(p.party) || !r.appliesToDomain(p.docHost) {
		return false
	}
	s := p.lower
	if r.MatchCase || r.re != nil {
		s = p.url
	}
	if r.re != nil {
		return r.re.MatchString(s)
	}
	if r.literal != "" && !strings.Contains(s, r.literal) {
		return false
	}

	switch {
	case r.hostAnchor:
		if p.hostStart < 0 {
			return false
		}
		// The pattern may start at the host or after any dot in it.
		if globMatch(r.pattern, s[p.hostStart:], r.endAnchor) {
			return true
		}
		for i := 0; i < len(p.host); i++ {
			if p.host[i] == '.' && globMatch(r.pattern, s[p.hostStart+i+1:], r.endAnchor) {
				return true
			}
		}
		return false
	case r.startAnchor:
		return globMatch(r.pattern, s, r.endAnchor)
	}
	for i := 0; i <= len(s); i++ {
		if globMatch(r.pattern, s[i:], r.endAnchor) {
			return true
		}
	}
	return false
}

func (r *Rule) appliesToType(t ResourceType) bool {
	switch {
	case r.types != 0:
		return t&r.types != 0
	case t == TypeNone:
		return true
	case r.notTypes != 0:
		return t&r.notTypes == 0
	}
	return t&defaultTypes != 0
}

func (r *Rule) appliesToParty(p Party) bool {
	return r.Party == AnyParty || r.Party == p
}

func (r *Rule) appliesToDomain(host string) bool {
	for _, d := range r.notDomains {
		if isSubdomain(host, d) {
			return false
		}
	}
	if len(r.domains) == 0 {
		return true
	}
	for _, d := range r.domains {
		if isSubdomain(host, d) {
			return true
		}
	}
	return false
}

func isSubdomain(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// globMatch matches pattern against a prefix of s, or all of s when
// anchorEnd is set. '*' matches any run and '^' a separator or the end.
func globMatch(pattern, s string, anchorEnd bool) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case '*':
			pattern = strings.TrimLeft(pattern, "*")
			if pattern == "" {
				return true
			}
			for i := 0; i <= len(s); i++ {
				if globMatch(pattern, s[i:], anchorEnd) {
					return true
				}
			}
			return false
		case '^':
			if s == "" {
				pattern = pattern[1:]
				continue
			}
			if !isSeparator(s[0]) {
				return false
			}
		default:
			if s == "" || pattern[0] != s[0] {
				return false
			}
		}
		pattern, s = pattern[1:], s[1:]
	}
	return !anchorEnd || s == ""
}

// lowerASCII keeps byte offsets valid between a URL and its lowered form.
func lowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}

func isSeparator(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return false
	}
	return strings.IndexByte("_-.%", c) < 0
}
