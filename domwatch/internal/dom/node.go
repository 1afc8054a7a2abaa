// Package dom is the DOM capability the observer is written against. Nodes
// are golang.org/x/net/html nodes: the in-memory Document host builds them
// by parsing, the rod host mirrors live page nodes into them. Node identity
// is pointer identity.
package dom

import (
	"sort"
	"strings"

	"golang.org/x/net/html"
)

// Node names for non-element nodes, as a browser reports them.
const (
	NameText     = "#text"
	NameComment  = "#comment"
	NameDocument = "#document"
	NameFragment = "#document-fragment"
	NameDoctype  = "#doctype"
)

// NodeName returns the browser nodeName of n: upper-case tag for HTML
// elements, "#text"/"#comment" for character data, "#document" for the
// document (or the fragment name stored in Data for shadow roots).
func NodeName(n *html.Node) string {
	if n == nil {
		return ""
	}
	switch n.Type {
	case html.ElementNode:
		return TagName(n)
	case html.TextNode:
		return NameText
	case html.CommentNode:
		return NameComment
	case html.DocumentNode:
		if n.Data != "" {
			return n.Data
		}
		return NameDocument
	case html.DoctypeNode:
		return NameDoctype
	}
	return ""
}

// TagName returns the element's tagName. HTML elements are upper-cased;
// foreign (SVG, MathML) elements keep their case.
func TagName(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	if n.Namespace == "" {
		return strings.ToUpper(n.Data)
	}
	return n.Data
}

// GetAttribute returns the value of attribute key and whether it is present.
func GetAttribute(n *html.Node, key string) (string, bool) {
	if n == nil || n.Type != html.ElementNode {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttribute sets key to val, adding the attribute when missing.
func SetAttribute(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttribute deletes key from n.
func RemoveAttribute(n *html.Node, key string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

// ID returns the element's id attribute.
func ID(n *html.Node) string {
	v, _ := GetAttribute(n, "id")
	return v
}

// ClassList returns the element's class names in document order.
func ClassList(n *html.Node) []string {
	v, _ := GetAttribute(n, "class")
	return strings.Fields(v)
}

// ParentElement returns n's parent when it is an element, else nil.
func ParentElement(n *html.Node) *html.Node {
	if n == nil || n.Parent == nil || n.Parent.Type != html.ElementNode {
		return nil
	}
	return n.Parent
}

// AttributeList returns n's attributes as sorted [name, value] pairs.
func AttributeList(n *html.Node) [][2]string {
	if n == nil || n.Type != html.ElementNode || len(n.Attr) == 0 {
		return nil
	}
	out := make([][2]string, 0, len(n.Attr))
	for _, a := range n.Attr {
		key := a.Key
		if a.Namespace != "" {
			key = a.Namespace + ":" + a.Key
		}
		out = append(out, [2]string{key, a.Val})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0] < out[j][0]
		}
		return out[i][1] < out[j][1]
	})
	return out
}

// IsCharacterData reports whether n holds text (text or comment).
func IsCharacterData(n *html.Node) bool {
	return n != nil && (n.Type == html.TextNode || n.Type == html.CommentNode)
}

// Contains reports whether n is root or one of its descendants. Shadow
// roots are detached fragments, so a document never contains their nodes.
func Contains(root, n *html.Node) bool {
	for c := n; c != nil; c = c.Parent {
		if c == root {
			return true
		}
	}
	return false
}

// Body returns the document's body element, or nil.
func Body(doc *html.Node) *html.Node {
	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil && found == nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.Data == "body" && c.Namespace == "" {
				found = c
				return
			}
			walk(c)
		}
	}
	walk(doc)
	return found
}
