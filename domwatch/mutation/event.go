// Package mutation defines the structured types exchanged between the
// in-page observer, the transport and the collector. Message and artifact
// envelopes and the kind strings keep the names the extension emitted.
// Node descriptions are cvwatch's own: a selector, a registry id and the
// sorted attributes, in place of the extension's nodeInfo/recd objects.
package mutation

// Kind is the type tag of an Event.
type Kind string

const (
	KindNodesAdded       Kind = "nodes added"
	KindNodesRemoved     Kind = "nodes removed"
	KindAttributeChanged Kind = "attribute changed"
	KindTextChanged      Kind = "text changed"
	KindDOMContentLoaded Kind = "DOMContentLoaded" // DOM-ready lifecycle signal
	KindWindowLoaded     Kind = "WindowLoaded"     // load-complete lifecycle signal
	KindPageDump         Kind = "page dump"

	// Collector-side tab events, sent as message types of their own.
	KindTabActivated Kind = "onTabActivated"
	KindTabRemoved   Kind = "onTabRemoved"
)

// Attr is one serialised attribute: [name, value].
type Attr [2]string

// Name returns the attribute name.
func (a Attr) Name() string { return a[0] }

// Value returns the attribute value.
func (a Attr) Value() string { return a[1] }

// NodeRef describes one node at event time.
type NodeRef struct {
	Selector   string `json:"selector"`
	NodeID     int    `json:"nodeId"`
	Attributes []Attr `json:"attributes,omitempty"`
}

// Event is a single normalised DOM observation. Which fields are set
// depends on Type.
type Event struct {
	Type      Kind     `json:"type"`
	Timestamp int64    `json:"timestamp"` // epoch milliseconds at emission
	Target    *NodeRef `json:"target,omitempty"`

	// nodes added / nodes removed.
	Nodes []NodeRef `json:"nodes,omitempty"`

	// attribute changed.
	TargetType string  `json:"targetType,omitempty"`
	ParentNode string  `json:"parentNode,omitempty"`
	Attribute  string  `json:"attribute,omitempty"`
	Attributes []Attr  `json:"attributes,omitempty"`
	OldValue   *string `json:"oldValue,omitempty"` // also text changed
	NewValue   *string `json:"newValue,omitempty"` // also text changed

	// Dialog message for the synthetic alert event.
	Record string `json:"record,omitempty"`

	// page dump.
	DOM       string `json:"DOM,omitempty"`
	InnerHTML string `json:"innerHTML,omitempty"`
	InnerText string `json:"innerText,omitempty"`
}

// FirstNodeAttr returns the value of attribute name on the first node of a
// nodes-added/removed event.
func (e *Event) FirstNodeAttr(name string) (string, bool) {
	if len(e.Nodes) == 0 {
		return "", false
	}
	for _, a := range e.Nodes[0].Attributes {
		if a.Name() == name {
			return a.Value(), true
		}
	}
	return "", false
}
