package observer

import (
	"strings"

	"github.com/hazyhaar/cvwatch/domwatch/mutation"
)

// Marker defaults used by ad-block extensions to tag the markup they hide.
const (
	DefaultBlockedMarker = "abp-blocked-element"
	DefaultSnippetMarker = "abp-blocked-snippet"
)

// DefaultExcluded are URL substrings of browser-internal pages.
var DefaultExcluded = []string{"chrome", "dev", "newtab"}

// Filter decides which events leave the page.
type Filter struct {
	BlockedMarker      string   // attribute name set on hidden elements
	SnippetMarker      string   // class token of injected snippets
	ExcludedSubstrings []string // pages whose URL contains one are never logged
}

// DefaultFilter returns the filter with the ad-block marker defaults.
func DefaultFilter() Filter {
	return Filter{
		BlockedMarker:      DefaultBlockedMarker,
		SnippetMarker:      DefaultSnippetMarker,
		ExcludedSubstrings: append([]string(nil), DefaultExcluded...),
	}
}

// Excluded reports whether pageURL must not be logged at all.
func (f Filter) Excluded(pageURL string) bool {
	for _, s := range f.ExcludedSubstrings {
		if s != "" && strings.Contains(pageURL, s) {
			return true
		}
	}
	return false
}

// Allow reports whether ev may be sent. Before DOM-ready only marker
// events pass: a change of the blocked-marker attribute, or added nodes
// whose first node has a class containing the snippet marker.
func (f Filter) Allow(ev *mutation.Event, domReady bool) bool {
	if domReady {
		return true
	}
	switch ev.Type {
	case mutation.KindAttributeChanged:
		return f.BlockedMarker != "" && ev.Attribute == f.BlockedMarker
	case mutation.KindNodesAdded:
		class, ok := ev.FirstNodeAttr("class")
		return ok && f.SnippetMarker != "" && strings.Contains(class, f.SnippetMarker)
	}
	return false
}
