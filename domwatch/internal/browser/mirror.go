package browser

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/cvwatch/domwatch/internal/dom"
)

// DOM node types as the page hook reports them.
const (
	nodeElement  = 1
	nodeText     = 3
	nodeComment  = 8
	nodeDocument = 9
	nodeDoctype  = 10
)

// wireNode is a node serialised by the page hook.
type wireNode struct {
	ID       int64       `json:"i"`
	Type     int         `json:"t"`
	Name     string      `json:"n,omitempty"`
	Attrs    [][2]string `json:"a,omitempty"`
	Data     string      `json:"d,omitempty"`
	Children []wireNode  `json:"c,omitempty"`
	Shadow   *wireNode   `json:"s,omitempty"`
}

// wireRecord is a MutationRecord reduced to what the mirror replays.
// Value and Data hold the state right after the record, not at report
// time, so a batch replays step by step.
type wireRecord struct {
	Type    string     `json:"t"`
	Target  int64      `json:"g"`
	Added   []wireNode `json:"a,omitempty"`
	Removed []int64    `json:"x,omitempty"`
	Next    int64      `json:"n,omitempty"`
	Name    string     `json:"k,omitempty"`
	Value   *string    `json:"v,omitempty"`
	Data    string     `json:"d,omitempty"`
}

// Mirror is a Go copy of a live page's DOM. The page hook reports the
// document once and then every mutation batch; replaying a batch through
// a dom.Document produces the records observers receive.
type Mirror struct {
	doc *dom.Document

	nodes   map[int64]*html.Node
	ids     map[*html.Node]int64
	shadows map[*html.Node]bool
}

// NewMirror builds a mirror from the serialised document.
func NewMirror(w wireNode) (*Mirror, error) {
	if w.Type != nodeDocument {
		return nil, fmt.Errorf("browser: mirror root has node type %d", w.Type)
	}
	m := &Mirror{
		nodes:   make(map[int64]*html.Node),
		ids:     make(map[*html.Node]int64),
		shadows: make(map[*html.Node]bool),
	}
	root := &html.Node{Type: html.DocumentNode}
	m.track(w.ID, root)
	m.doc = dom.New(root)
	m.appendChildren(root, w.Children, true)
	return m, nil
}

func (m *Mirror) Document() *html.Node { return m.doc.Document() }

func (m *Mirror) ShadowRoot(host *html.Node) *html.Node { return m.doc.ShadowRoot(host) }

func (m *Mirror) Observe(root *html.Node, opts dom.ObserveOptions, fn dom.Callback) error {
	return m.doc.Observe(root, opts, fn)
}

// Node returns the mirror node with the page hook id.
func (m *Mirror) Node(id int64) *html.Node { return m.nodes[id] }

func (m *Mirror) track(id int64, n *html.Node) {
	m.nodes[id] = n
	m.ids[n] = id
}

// build creates the detached subtree for w, reusing nodes already known.
// Shadow roots are only mirrored from the initial snapshot; the hook does
// not observe roots attached later.
func (m *Mirror) build(w wireNode, withShadow bool) *html.Node {
	if n, ok := m.nodes[w.ID]; ok {
		return n
	}
	var n *html.Node
	switch w.Type {
	case nodeElement:
		n = &html.Node{Type: html.ElementNode, Data: strings.ToLower(w.Name)}
		for _, a := range w.Attrs {
			n.Attr = append(n.Attr, html.Attribute{Key: a[0], Val: a[1]})
		}
	case nodeText:
		n = &html.Node{Type: html.TextNode, Data: w.Data}
	case nodeComment:
		n = &html.Node{Type: html.CommentNode, Data: w.Data}
	case nodeDoctype:
		n = &html.Node{Type: html.DoctypeNode, Data: w.Name}
	default:
		return nil
	}
	m.track(w.ID, n)
	m.appendChildren(n, w.Children, withShadow)
	if withShadow && w.Shadow != nil {
		sr := m.doc.AttachShadow(n)
		m.shadows[sr] = true
		m.track(w.Shadow.ID, sr)
		m.appendChildren(sr, w.Shadow.Children, true)
	}
	return n
}

// appendChildren attaches the subtrees of ws to n without queuing records.
// Nodes already attached elsewhere stay where they are.
func (m *Mirror) appendChildren(n *html.Node, ws []wireNode, withShadow bool) {
	for _, c := range ws {
		if cn := m.build(c, withShadow); cn != nil && cn.Parent == nil {
			n.AppendChild(cn)
		}
	}
}

var errUnknownTarget = errors.New("browser: mutation target not mirrored")

// Apply replays a batch and delivers the resulting records. It returns
// the number of records the batch could not replay.
func (m *Mirror) Apply(batch []wireRecord) int {
	var failed int
	var removed []*html.Node
	for _, r := range batch {
		rm, err := m.apply(r)
		if err != nil {
			failed++
		}
		removed = append(removed, rm...)
	}
	m.doc.Flush()
	for _, n := range removed {
		if !m.attached(n) {
			m.forget(n)
		}
	}
	return failed
}

func (m *Mirror) apply(r wireRecord) ([]*html.Node, error) {
	target := m.nodes[r.Target]
	if target == nil {
		return nil, errUnknownTarget
	}
	switch r.Type {
	case "childList":
		// One browser record stays one record: additions and removals
		// together, whatever the node count.
		var removed []*html.Node
		for _, id := range r.Removed {
			if n := m.nodes[id]; n != nil && n.Parent == target {
				removed = append(removed, n)
			}
		}
		var added []*html.Node
		for _, w := range r.Added {
			if n := m.build(w, false); n != nil {
				added = append(added, n)
			}
		}
		m.doc.ChangeChildren(target, added, removed, m.nodes[r.Next])
		return removed, nil
	case "attributes":
		if r.Value == nil {
			m.doc.RemoveAttribute(target, r.Name)
		} else {
			m.doc.SetAttribute(target, r.Name, *r.Value)
		}
		return nil, nil
	case "characterData":
		return nil, m.doc.SetText(target, r.Data)
	}
	return nil, fmt.Errorf("browser: unknown record type %q", r.Type)
}

func (m *Mirror) attached(n *html.Node) bool {
	for n.Parent != nil {
		n = n.Parent
	}
	return n == m.doc.Document() || m.shadows[n]
}

// forget drops the ids of a detached subtree. If the page re-inserts it
// later, the hook serialises it again.
func (m *Mirror) forget(n *html.Node) {
	if id, ok := m.ids[n]; ok {
		delete(m.ids, n)
		delete(m.nodes, id)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		m.forget(c)
	}
}
