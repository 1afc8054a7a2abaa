package dom

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/net/html"
)

// ErrNotChild is returned when a node is removed from a parent it does not
// belong to.
var ErrNotChild = errors.New("dom: node is not a child of parent")

// Document is an in-memory DOM host. Mutations made through its methods are
// queued as records and delivered to matching subscriptions on Flush, the
// way a browser delivers MutationObserver batches at a microtask checkpoint.
// A record goes to the subscriptions that match when it is queued, so a
// node removed later in the same batch is still reported.
// It backs offline replays and tests.
type Document struct {
	mu      sync.Mutex
	root    *html.Node
	shadows map[*html.Node]*html.Node
	subs    []*subscription
	queued  int
}

type subscription struct {
	root    *html.Node
	opts    ObserveOptions
	fn      Callback
	pending []Record
}

// New wraps the tree under root.
func New(root *html.Node) *Document {
	return &Document{root: root, shadows: make(map[*html.Node]*html.Node)}
}

// Parse builds a Document from HTML.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("dom: parse: %w", err)
	}
	return New(root), nil
}

// ParseString is Parse over a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Document returns the document node.
func (d *Document) Document() *html.Node { return d.root }

// ShadowRoot returns the shadow root attached to host, or nil.
func (d *Document) ShadowRoot(host *html.Node) *html.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shadows[host]
}

// Observe subscribes fn to records whose target lies under root.
func (d *Document) Observe(root *html.Node, opts ObserveOptions, fn Callback) error {
	if root == nil {
		return errors.New("dom: observe: nil root")
	}
	if !opts.ChildList && !opts.Attributes && !opts.CharacterData {
		return errors.New("dom: observe: no record type selected")
	}
	d.mu.Lock()
	d.subs = append(d.subs, &subscription{root: root, opts: opts, fn: fn})
	d.mu.Unlock()
	return nil
}

// AttachShadow gives host an open shadow root and returns it. The root is
// a detached fragment: observers of the document do not see its changes.
func (d *Document) AttachShadow(host *html.Node) *html.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	if sr, ok := d.shadows[host]; ok {
		return sr
	}
	sr := &html.Node{Type: html.DocumentNode, Data: NameFragment}
	d.shadows[host] = sr
	return sr
}

// AppendChild appends child to parent, moving it first if it already has
// a parent.
func (d *Document) AppendChild(parent, child *html.Node) {
	d.InsertBefore(parent, child, nil)
}

// InsertBefore inserts child before ref under parent; a nil ref appends.
func (d *Document) InsertBefore(parent, child, ref *html.Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.detach(child)
	parent.InsertBefore(child, ref)
	d.queue(Record{Type: ChildList, Target: parent, AddedNodes: []*html.Node{child}})
}

// detach removes n from its current parent, if any, and queues the removal.
func (d *Document) detach(n *html.Node) {
	if old := n.Parent; old != nil {
		d.queue(Record{Type: ChildList, Target: old, RemovedNodes: []*html.Node{n}})
		old.RemoveChild(n)
	}
}

// RemoveChild detaches child from parent.
func (d *Document) RemoveChild(parent, child *html.Node) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if child.Parent != parent {
		return ErrNotChild
	}
	d.queue(Record{Type: ChildList, Target: parent, RemovedNodes: []*html.Node{child}})
	parent.RemoveChild(child)
	return nil
}

// ChangeChildren removes the children of parent listed in removed and
// inserts added before ref (nil appends), queuing one record for the
// whole change. Nodes in removed that are not children of parent are
// skipped. Added nodes attached elsewhere are moved first. It reports
// whether anything changed.
func (d *Document) ChangeChildren(parent *html.Node, added, removed []*html.Node, ref *html.Node) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec := Record{Type: ChildList, Target: parent}
	for _, n := range removed {
		if n.Parent == parent {
			parent.RemoveChild(n)
			rec.RemovedNodes = append(rec.RemovedNodes, n)
		}
	}
	if ref != nil && ref.Parent != parent {
		ref = nil
	}
	for _, n := range added {
		if n == ref {
			continue
		}
		if n.Parent != nil {
			d.detach(n)
		}
		parent.InsertBefore(n, ref)
		rec.AddedNodes = append(rec.AddedNodes, n)
	}
	if len(rec.AddedNodes) == 0 && len(rec.RemovedNodes) == 0 {
		return false
	}
	d.queue(rec)
	return true
}

// ReplaceChildren removes every child of parent and appends nodes, queuing
// a single record that both removes and adds.
func (d *Document) ReplaceChildren(parent *html.Node, nodes ...*html.Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var removed []*html.Node
	for c := parent.FirstChild; c != nil; c = parent.FirstChild {
		parent.RemoveChild(c)
		removed = append(removed, c)
	}
	for _, n := range nodes {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
		parent.AppendChild(n)
	}
	d.queue(Record{Type: ChildList, Target: parent, AddedNodes: nodes, RemovedNodes: removed})
}

// SetAttribute sets an attribute on an element.
func (d *Document) SetAttribute(n *html.Node, key, val string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec := Record{Type: Attributes, Target: n, AttributeName: key}
	if old, ok := GetAttribute(n, key); ok {
		rec.OldValue = &old
	}
	SetAttribute(n, key, val)
	d.queue(rec)
}

// RemoveAttribute removes an attribute; removing a missing attribute
// queues nothing.
func (d *Document) RemoveAttribute(n *html.Node, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	old, ok := GetAttribute(n, key)
	if !ok {
		return
	}
	RemoveAttribute(n, key)
	d.queue(Record{Type: Attributes, Target: n, AttributeName: key, OldValue: &old})
}

// SetText replaces the data of a text or comment node.
func (d *Document) SetText(n *html.Node, text string) error {
	if !IsCharacterData(n) {
		return fmt.Errorf("dom: set text: %s is not character data", NodeName(n))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	old := n.Data
	n.Data = text
	d.queue(Record{Type: CharacterData, Target: n, OldValue: &old})
	return nil
}

// queue hands r to every subscription that selects it now. Callers hold
// d.mu and, for removals, call it while the node is still attached.
func (d *Document) queue(r Record) {
	d.queued++
	for _, s := range d.subs {
		if rec, ok := s.selects(r); ok {
			s.pending = append(s.pending, rec)
		}
	}
}

// Flush delivers queued records. Each subscription receives one batch
// holding the records it selected, in the order they were queued. It
// returns the number of records that were queued.
func (d *Document) Flush() int {
	type delivery struct {
		fn    Callback
		batch []Record
	}
	d.mu.Lock()
	n := d.queued
	d.queued = 0
	var out []delivery
	for _, s := range d.subs {
		if len(s.pending) > 0 {
			out = append(out, delivery{s.fn, s.pending})
			s.pending = nil
		}
	}
	d.mu.Unlock()

	for _, o := range out {
		o.fn(o.batch)
	}
	return n
}

func (s *subscription) selects(r Record) (Record, bool) {
	if s.opts.Subtree {
		if !Contains(s.root, r.Target) {
			return r, false
		}
	} else if r.Target != s.root {
		return r, false
	}
	switch r.Type {
	case ChildList:
		return r, s.opts.ChildList
	case Attributes:
		if !s.opts.Attributes {
			return r, false
		}
		if !s.opts.AttributeOldValue {
			r.OldValue = nil
		}
		return r, true
	case CharacterData:
		if !s.opts.CharacterData {
			return r, false
		}
		if !s.opts.CharacterDataOldValue {
			r.OldValue = nil
		}
		return r, true
	}
	return r, false
}

// Element builds a detached element. attrs are name, value pairs.
func Element(tag string, attrs ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, Data: strings.ToLower(tag)}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

// Text builds a detached text node.
func Text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// Comment builds a detached comment node.
func Comment(s string) *html.Node {
	return &html.Node{Type: html.CommentNode, Data: s}
}

// Find returns the first element under root for which match is true.
func Find(root *html.Node, match func(*html.Node) bool) *html.Node {
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && match(c) {
			return c
		}
		if n := Find(c, match); n != nil {
			return n
		}
	}
	return nil
}

// ByID returns the element under root with the given id attribute.
func ByID(root *html.Node, id string) *html.Node {
	return Find(root, func(n *html.Node) bool { return ID(n) == id })
}

// ByTag returns the first element under root with the given tag.
func ByTag(root *html.Node, tag string) *html.Node {
	tag = strings.ToLower(tag)
	return Find(root, func(n *html.Node) bool { return n.Data == tag })
}
