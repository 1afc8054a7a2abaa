package observer

import (
	"strings"

	"github.com/hazyhaar/cvwatch/domwatch/internal/dom"
	"golang.org/x/net/html"
)

// Selector returns a CSS-like path for n, computed from the current tree.
// An id wins, then the class list; otherwise the path walks up parent
// elements until one is identifiable or context is reached.
func Selector(n, context *html.Node) string {
	if n == nil {
		return "(unknown)"
	}
	if id := dom.ID(n); id != "" {
		return "#" + id
	}
	if classes := dom.ClassList(n); len(classes) > 0 {
		return dom.TagName(n) + "." + strings.Join(classes, ".")
	}
	if parent := dom.ParentElement(n); parent != nil && parent != context {
		return Selector(parent, context) + " > " + selectorName(n)
	}
	return selectorName(n)
}

func selectorName(n *html.Node) string {
	switch name := dom.NodeName(n); name {
	case dom.NameText:
		return "(text)"
	case dom.NameComment:
		return "(comment)"
	case "":
		return "(unknown)"
	default:
		return name
	}
}
