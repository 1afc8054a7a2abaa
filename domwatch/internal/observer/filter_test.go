package observer

import (
	"testing"

	"github.com/hazyhaar/cvwatch/domwatch/mutation"
)

func TestFilterBeforeReady(t *testing.T) {
	f := DefaultFilter()
	tests := []struct {
		name string
		ev   mutation.Event
		want bool
	}{
		{"other attribute", mutation.Event{Type: mutation.KindAttributeChanged, Attribute: "style"}, false},
		{"blocked marker", mutation.Event{Type: mutation.KindAttributeChanged, Attribute: DefaultBlockedMarker}, true},
		{"snippet on first node", mutation.Event{Type: mutation.KindNodesAdded, Nodes: []mutation.NodeRef{
			{Attributes: []mutation.Attr{{"class", "x abp-blocked-snippet"}}},
		}}, true},
		{"snippet on second node only", mutation.Event{Type: mutation.KindNodesAdded, Nodes: []mutation.NodeRef{
			{Attributes: []mutation.Attr{{"class", "plain"}}},
			{Attributes: []mutation.Attr{{"class", DefaultSnippetMarker}}},
		}}, false},
		{"nodes added without class", mutation.Event{Type: mutation.KindNodesAdded, Nodes: []mutation.NodeRef{{}}}, false},
		{"text changed", mutation.Event{Type: mutation.KindTextChanged}, false},
		{"nodes removed", mutation.Event{Type: mutation.KindNodesRemoved}, false},
	}
	for _, tt := range tests {
		if got := f.Allow(&tt.ev, false); got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
		if !f.Allow(&tt.ev, true) {
			t.Errorf("%s after ready: want allowed", tt.name)
		}
	}
}

func TestFilterExcluded(t *testing.T) {
	f := DefaultFilter()
	for _, u := range []string{"chrome://newtab/", "https://dev.example.com/", "about:newtab"} {
		if !f.Excluded(u) {
			t.Errorf("Excluded(%q): want true", u)
		}
	}
	if f.Excluded("https://example.com/") {
		t.Error("Excluded(example.com): want false")
	}
}
