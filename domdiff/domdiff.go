// Package domdiff compares the DOM mutations recorded by control (vanilla)
// and variant (ad-block) visits of the same page and keeps the events only
// one side produced.
//
// Every event is reduced to a key built from its selectors and the shape of
// the nodes it touches. Keys seen on one side only keep all their events;
// keys seen on both keep the surplus of the side that saw them more often.
package domdiff

import (
	"slices"
	"strconv"
	"strings"

	"github.com/hazyhaar/cvwatch/domwatch/mutation"
)

// Markers set by the ad-block extension and the page observer.
const (
	BlockedSnippet = "abp-blocked-snippet"
	BlockedElement = "abp-blocked-element"
	annotation     = "anticv-"
)

const (
	delimiter       = "__"
	truncateLength  = 15
	maxStyleKeys    = 10
	textSelector    = "(text)"
	selectorDivider = " > "
)

// Attributes whose values vary between otherwise identical SVG nodes.
var ignoredAttrs = []string{"transform", "d", "x", "x1", "x2", "y", "y1", "y2", "r"}

// Category names one bucket of a Side.
type Category string

const (
	NodeAdded        Category = "node_added"
	NodeRemoved      Category = "node_removed"
	AttributeChanged Category = "attribute_changed"
	TextChanged      Category = "text_changed"
	TextNodeAdded    Category = "text_node_added"
	TextNodeRemoved  Category = "text_node_removed"
)

// Categories lists the buckets compared between sides, in report order.
var Categories = []Category{NodeAdded, NodeRemoved, AttributeChanged, TextChanged, TextNodeAdded, TextNodeRemoved}

// Trial is one recorded visit: its crawl instance and stored messages.
type Trial struct {
	InstanceID string
	Messages   []mutation.Message
}

// Ref points at one event of a trial. Node is the index within the nodes
// of an added/removed event. Text is the attribute and its new value for
// attribute changes and the word difference for text changes.
type Ref struct {
	Key      string `json:"key"`
	Instance string `json:"crawl_instance_id"`
	Seq      int    `json:"seq"`
	Node     int    `json:"node_index"`
	Text     string `json:"text,omitempty"`
}

// Side is what one set of trials recorded that the other did not.
type Side struct {
	Instances []string           `json:"crawl_instance_ids"`
	Only      map[Category][]Ref `json:"only"`
	Blocked   []Ref              `json:"blocked,omitempty"` // variant only
}

// Len returns the number of events left on the side, blocked ones excluded.
func (s *Side) Len() int {
	n := 0
	for _, refs := range s.Only {
		n += len(refs)
	}
	return n
}

// bucket keeps refs grouped by key in first-seen key order.
type bucket struct {
	keys []string
	refs map[string][]Ref
}

func (b *bucket) add(r Ref) {
	if b.refs == nil {
		b.refs = make(map[string][]Ref)
	}
	if _, ok := b.refs[r.Key]; !ok {
		b.keys = append(b.keys, r.Key)
	}
	b.refs[r.Key] = append(b.refs[r.Key], r)
}

// minus returns the refs of b the other bucket does not account for.
func (b *bucket) minus(other *bucket) []Ref {
	out := []Ref{}
	for _, k := range b.keys {
		mine := b.refs[k]
		theirs := other.refs[k]
		if d := len(mine) - len(theirs); d > 0 {
			out = append(out, mine[len(mine)-d:]...)
		}
	}
	return out
}

type collected struct {
	ids     []string
	buckets map[Category]*bucket
	blocked bucket
}

func collect(trials []Trial, variant bool) *collected {
	c := &collected{ids: []string{}, buckets: make(map[Category]*bucket)}
	for _, cat := range Categories {
		c.buckets[cat] = &bucket{}
	}
	for _, t := range trials {
		c.ids = append(c.ids, t.InstanceID)
		for seq, m := range t.Messages {
			if m.Event == nil {
				continue
			}
			c.event(t.InstanceID, seq, m.Event, variant)
		}
	}
	return c
}

func (c *collected) event(instance string, seq int, ev *mutation.Event, variant bool) {
	switch ev.Type {
	case mutation.KindNodesAdded, mutation.KindNodesRemoved:
		cat, textCat := NodeAdded, TextNodeAdded
		if ev.Type == mutation.KindNodesRemoved {
			cat, textCat = NodeRemoved, TextNodeRemoved
		}
		for i, n := range ev.Nodes {
			r := Ref{Key: NodeKey(ev.Target, n), Instance: instance, Seq: seq, Node: i}
			switch {
			case variant && ev.Type == mutation.KindNodesAdded && strings.Contains(n.Selector, BlockedSnippet):
				r.Key += BlockedSnippet
				c.blocked.add(r)
			case isTextNode(n):
				c.buckets[textCat].add(r)
			default:
				c.buckets[cat].add(r)
			}
		}

	case mutation.KindAttributeChanged:
		if len(ev.Attribute) <= 2 || strings.Contains(ev.Attribute, annotation) {
			return
		}
		key, text := AttributeKey(ev)
		r := Ref{Key: key, Instance: instance, Seq: seq, Text: text}
		if variant && ev.Attribute == BlockedElement {
			r.Key += BlockedElement
			c.blocked.add(r)
			return
		}
		c.buckets[AttributeChanged].add(r)

	case mutation.KindTextChanged:
		key, diff := TextKey(ev)
		c.buckets[TextChanged].add(Ref{Key: key, Instance: instance, Seq: seq, Text: diff})
	}
}

// Compare reduces the control and variant trials of one page to the events
// each side has beyond the other.
func Compare(control, variant []Trial) (controlOnly, variantOnly *Side) {
	c := collect(control, false)
	v := collect(variant, true)

	controlOnly = &Side{Instances: c.ids, Only: make(map[Category][]Ref)}
	variantOnly = &Side{Instances: v.ids, Only: make(map[Category][]Ref)}
	for _, cat := range Categories {
		controlOnly.Only[cat] = c.buckets[cat].minus(v.buckets[cat])
		variantOnly.Only[cat] = v.buckets[cat].minus(c.buckets[cat])
	}
	for _, k := range v.blocked.keys {
		variantOnly.Blocked = append(variantOnly.Blocked, v.blocked.refs[k]...)
	}
	return controlOnly, variantOnly
}

// NodeKey identifies an added or removed node by its parent's selector,
// its own selector and its attribute shape.
func NodeKey(target *mutation.NodeRef, n mutation.NodeRef) string {
	var targetSel, parent string
	if target != nil {
		targetSel = target.Selector
		parent = lastSelector(targetSel)
	}
	sel := n.Selector
	if sel == "" {
		sel = "nsnull"
	}
	key := targetSel + delimiter + sel + delimiter + parent + delimiter + NodeInfo(n.Attributes)
	return strings.ToLower(key)
}

// AttributeKey identifies an attribute change and returns its defining
// text: the attribute name and its new value.
func AttributeKey(ev *mutation.Event) (key, text string) {
	attr := ev.Attribute
	if strings.Contains(attr, "data") {
		attr = "data"
	}
	text = attr + delimiter + "null"
	if ev.NewValue != nil {
		text = attr + delimiter + *ev.NewValue
	}
	var targetSel string
	if ev.Target != nil {
		targetSel = ev.Target.Selector
	}
	var info string
	if len(ev.Attributes) > 0 {
		info = NodeInfo(ev.Attributes)
	}
	key = attr + delimiter + targetSel + delimiter + ev.TargetType + delimiter + delimiter + info
	return strings.ToLower(key), text
}

// TextKey identifies a text change by its target and the first characters
// of both values, and returns the words the new value added.
func TextKey(ev *mutation.Event) (key, diff string) {
	oldKey, newKey := "null", "null"
	var oldValue, newValue string
	if ev.OldValue != nil {
		oldValue = *ev.OldValue
		oldKey = truncate(oldValue, truncateLength)
	}
	if ev.NewValue != nil {
		newValue = *ev.NewValue
		newKey = truncate(newValue, truncateLength)
	}
	var targetSel string
	if ev.Target != nil {
		targetSel = ev.Target.Selector
	}
	key = targetSel + delimiter + "oldvalue" + oldKey + delimiter + "newvalue" + newKey
	return strings.ToLower(key), wordDiff(oldValue, newValue)
}

// NodeInfo summarises attributes by name: style lists its property names,
// other attributes the length of their value.
func NodeInfo(attrs []mutation.Attr) string {
	var b strings.Builder
	for _, a := range attrs {
		name := a.Name()
		if len(name) <= 2 {
			continue
		}
		b.WriteString(name)
		switch {
		case name == "style":
			for i, k := range styleKeys(a.Value()) {
				if i > maxStyleKeys {
					break
				}
				b.WriteString("[" + k + "]")
			}
		case !slices.Contains(ignoredAttrs, name):
			b.WriteString(strconv.Itoa(len(a.Value())))
		}
	}
	if b.Len() == 0 {
		return "ninfonull"
	}
	return b.String()
}

func styleKeys(css string) []string {
	var keys []string
	for _, decl := range strings.Split(css, ";") {
		k, _, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		if !slices.Contains(keys, k) {
			keys = append(keys, k)
		}
	}
	return keys
}

func isTextNode(n mutation.NodeRef) bool {
	return lastSelector(n.Selector) == textSelector
}

func lastSelector(sel string) string {
	if i := strings.LastIndex(sel, selectorDivider); i >= 0 {
		sel = sel[i+len(selectorDivider):]
	}
	return strings.ToLower(strings.TrimSpace(sel))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}

// wordDiff returns the words of newValue missing from oldValue, or the
// whole non-empty side when the other has no words.
func wordDiff(oldValue, newValue string) string {
	oldWords := strings.Fields(oldValue)
	newWords := strings.Fields(newValue)
	switch {
	case len(oldWords) == 0 && len(newWords) > 0:
		return newValue
	case len(newWords) == 0 && len(oldWords) > 0:
		return oldValue
	}
	var added []string
	for _, w := range newWords {
		if !slices.Contains(oldWords, w) && !slices.Contains(added, w) {
			added = append(added, w)
		}
	}
	return strings.Join(added, " ")
}
