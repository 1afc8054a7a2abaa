package observer

import (
	"errors"
	"fmt"

	"golang.org/x/net/html"

	"github.com/hazyhaar/cvwatch/domwatch/internal/dom"
	"github.com/hazyhaar/cvwatch/domwatch/mutation"
)

// ErrUnknownRecord is returned for a record type the normaliser does not
// handle.
var ErrUnknownRecord = errors.New("observer: unknown record type")

// Normalizer turns raw records into events. Node handles come from its
// registry; selectors are recomputed on every call.
type Normalizer struct {
	reg *Registry
}

// NewNormalizer returns a normaliser backed by reg.
func NewNormalizer(reg *Registry) *Normalizer {
	return &Normalizer{reg: reg}
}

// Normalize maps one record to its events. A childList record that both
// adds and removes nodes yields the added event first. Timestamps are left
// zero; they are assigned at emission.
func (n *Normalizer) Normalize(rec dom.Record) ([]mutation.Event, error) {
	switch rec.Type {
	case dom.ChildList:
		target := n.ref(rec.Target, nil)
		var out []mutation.Event
		if len(rec.AddedNodes) > 0 {
			out = append(out, mutation.Event{
				Type:   mutation.KindNodesAdded,
				Target: &target,
				Nodes:  n.refs(rec.AddedNodes, rec.Target),
			})
		}
		if len(rec.RemovedNodes) > 0 {
			out = append(out, mutation.Event{
				Type:   mutation.KindNodesRemoved,
				Target: &target,
				Nodes:  n.refs(rec.RemovedNodes, rec.Target),
			})
		}
		return out, nil

	case dom.Attributes:
		target := n.ref(rec.Target, nil)
		ev := mutation.Event{
			Type:       mutation.KindAttributeChanged,
			Target:     &target,
			TargetType: dom.NodeName(rec.Target),
			Attribute:  rec.AttributeName,
			OldValue:   rec.OldValue,
			Attributes: attrs(rec.Target),
		}
		if rec.Target != nil && rec.Target.Parent != nil {
			ev.ParentNode = n.ref(rec.Target.Parent, nil).Selector
		}
		if v, ok := dom.GetAttribute(rec.Target, rec.AttributeName); ok {
			ev.NewValue = &v
		}
		return []mutation.Event{ev}, nil

	case dom.CharacterData:
		target := n.ref(rec.Target, nil)
		ev := mutation.Event{
			Type:     mutation.KindTextChanged,
			Target:   &target,
			OldValue: rec.OldValue,
		}
		if rec.Target != nil {
			data := rec.Target.Data
			ev.NewValue = &data
		}
		return []mutation.Event{ev}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownRecord, rec.Type)
}

func (n *Normalizer) ref(node, context *html.Node) mutation.NodeRef {
	return mutation.NodeRef{Selector: Selector(node, context), NodeID: n.reg.ID(node)}
}

func (n *Normalizer) refs(nodes []*html.Node, context *html.Node) []mutation.NodeRef {
	out := make([]mutation.NodeRef, 0, len(nodes))
	for _, node := range nodes {
		r := n.ref(node, context)
		r.Attributes = attrs(node)
		out = append(out, r)
	}
	return out
}

func attrs(n *html.Node) []mutation.Attr {
	pairs := dom.AttributeList(n)
	if len(pairs) == 0 {
		return nil
	}
	out := make([]mutation.Attr, len(pairs))
	for i, p := range pairs {
		out[i] = mutation.Attr(p)
	}
	return out
}
