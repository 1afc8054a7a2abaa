package dom

import "golang.org/x/net/html"

// RecordType is the kind of a raw mutation record.
type RecordType string

const (
	ChildList     RecordType = "childList"
	Attributes    RecordType = "attributes"
	CharacterData RecordType = "characterData"
)

// Record is one raw change notification, shaped like a browser
// MutationRecord. For childList records Target is the parent whose
// children changed, not the added or removed nodes.
type Record struct {
	Type          RecordType
	Target        *html.Node
	AddedNodes    []*html.Node
	RemovedNodes  []*html.Node
	AttributeName string
	// OldValue is nil when old values were not requested or the attribute
	// did not exist before the change.
	OldValue *string
}

// ObserveOptions selects what a subscription reports.
type ObserveOptions struct {
	ChildList             bool
	Attributes            bool
	AttributeOldValue     bool
	CharacterData         bool
	CharacterDataOldValue bool
	Subtree               bool
}

// AllMutations observes every change under a root, with old values.
var AllMutations = ObserveOptions{
	ChildList:             true,
	Attributes:            true,
	AttributeOldValue:     true,
	CharacterData:         true,
	CharacterDataOldValue: true,
	Subtree:               true,
}

// Callback receives one batch of records in arrival order.
type Callback func(records []Record)

// Watcher is a host able to report DOM changes: the in-memory Document in
// this package, or a live browser page.
type Watcher interface {
	// Document returns the document node of the observed page.
	Document() *html.Node
	// ShadowRoot returns the open shadow root hosted by n, or nil.
	ShadowRoot(n *html.Node) *html.Node
	// Observe subscribes fn to changes under root.
	Observe(root *html.Node, opts ObserveOptions, fn Callback) error
}
