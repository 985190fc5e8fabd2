// Package ui models the accessibility element tree captured alongside a
// screenshot: bounding boxes, clickability, text labels, and parent/child
// links. Trees are parsed from uiautomator XML dumps.
package ui

import (
	"encoding/xml"
	"fmt"
	"image"
	"regexp"
	"strconv"
	"strings"
)

// Node is a single element in the captured tree. Nodes behave like
// platform handles: once Release is called the node must not be used
// again, and every node inspected during an ancestor climb has to be
// released by the inspector.
type Node struct {
	Bounds    image.Rectangle
	Class     string
	Text      string
	Desc      string
	Clickable bool
	Focusable bool

	parent   *Node
	children []*Node
	released bool
}

// Parent returns the parent node, or nil at the root.
func (n *Node) Parent() *Node { return n.parent }

// Children returns the child nodes.
func (n *Node) Children() []*Node { return n.children }

// Released reports whether the handle has been discarded.
func (n *Node) Released() bool { return n.released }

// Release discards the handle. The node detaches from its links so the
// subtree it anchored can be collected.
func (n *Node) Release() {
	if n == nil || n.released {
		return
	}
	n.released = true
	n.parent = nil
	n.children = nil
}

// Center returns the midpoint of the node's bounds, the point gestures
// are dispatched at.
func (n *Node) Center() (int, int) {
	return (n.Bounds.Min.X + n.Bounds.Max.X) / 2, (n.Bounds.Min.Y + n.Bounds.Max.Y) / 2
}

// Label returns the node's visible text, falling back to its
// content description.
func (n *Node) Label() string {
	if n.Text != "" {
		return n.Text
	}
	return n.Desc
}

// --- XML parsing ---

type xmlNode struct {
	Text      string    `xml:"text,attr"`
	Desc      string    `xml:"content-desc,attr"`
	Class     string    `xml:"class,attr"`
	Clickable string    `xml:"clickable,attr"`
	Focusable string    `xml:"focusable,attr"`
	Bounds    string    `xml:"bounds,attr"`
	Nodes     []xmlNode `xml:"node"`
}

type xmlHierarchy struct {
	XMLName xml.Name  `xml:"hierarchy"`
	Nodes   []xmlNode `xml:"node"`
}

var boundsRe = regexp.MustCompile(`\[(-?\d+),(-?\d+)\]\[(-?\d+),(-?\d+)\]`)

// Parse decodes a uiautomator XML dump into an element tree. The dump's
// single top-level node becomes the root; an empty hierarchy is an error.
func Parse(data []byte) (*Node, error) {
	var h xmlHierarchy
	if err := xml.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("parse ui dump: %w", err)
	}
	if len(h.Nodes) == 0 {
		return nil, fmt.Errorf("parse ui dump: empty hierarchy")
	}
	return build(&h.Nodes[0], nil), nil
}

func build(x *xmlNode, parent *Node) *Node {
	n := &Node{
		Text:      x.Text,
		Desc:      x.Desc,
		Class:     x.Class,
		Clickable: x.Clickable == "true",
		Focusable: x.Focusable == "true",
		Bounds:    parseBounds(x.Bounds),
		parent:    parent,
	}
	for i := range x.Nodes {
		n.children = append(n.children, build(&x.Nodes[i], n))
	}
	return n
}

func parseBounds(s string) image.Rectangle {
	m := boundsRe.FindStringSubmatch(s)
	if m == nil {
		return image.Rectangle{}
	}
	atoi := func(v string) int { n, _ := strconv.Atoi(v); return n }
	return image.Rect(atoi(m[1]), atoi(m[2]), atoi(m[3]), atoi(m[4]))
}

// --- lookup ---

// FindByText locates the first node whose text or description matches the
// query, preferring exact matches over substring matches. Returns nil if
// nothing matches.
func FindByText(root *Node, query string) *Node {
	if root == nil || query == "" {
		return nil
	}
	if n := find(root, func(n *Node) bool {
		return n.Text == query || n.Desc == query
	}); n != nil {
		return n
	}
	return find(root, func(n *Node) bool {
		return strings.Contains(n.Text, query) || strings.Contains(n.Desc, query)
	})
}

func find(n *Node, match func(*Node) bool) *Node {
	if match(n) {
		return n
	}
	for _, c := range n.children {
		if found := find(c, match); found != nil {
			return found
		}
	}
	return nil
}

// ClimbClickable walks from the node up its ancestor chain and returns
// the first clickable node, or nil when the chain is exhausted. Every
// non-clickable intermediate node it inspects is released; the returned
// node is not.
func ClimbClickable(n *Node) *Node {
	for cur := n; cur != nil; {
		if cur.Clickable {
			return cur
		}
		parent := cur.parent
		cur.Release()
		cur = parent
	}
	return nil
}
