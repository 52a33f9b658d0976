package live

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/net/html"
)

// anchorPrefix starts every anchor attribute.
const anchorPrefix = "_l"

// PatchAction available actions to take by a patch.
type PatchAction uint32

// Actions available.
const (
	Noop PatchAction = iota
	Replace
	Append
)

// Patch a location in the frontend dom.
type Patch struct {
	Anchor string
	Action PatchAction
	HTML   string
}

func (p Patch) String() string {
	action := ""
	switch p.Action {
	case Noop:
		action = "NO"
	case Replace:
		action = "RE"
	case Append:
		action = "AP"
	}
	return fmt.Sprintf("%s %s %s", p.Anchor, action, p.HTML)
}

// Diff compares two anchored html trees and returns the patches that turn
// current into proposed.
func Diff(current, proposed *html.Node) ([]Patch, error) {
	anchorTree(current)
	anchorTree(proposed)
	patches := []Patch{}
	if err := diffNode(current, proposed, &patches); err != nil {
		return nil, err
	}
	return patches, nil
}

func diffNode(current, proposed *html.Node, patches *[]Patch) error {
	if proposed.Type == html.ElementNode && !sameElement(current, proposed) {
		out, err := renderNode(proposed)
		if err != nil {
			return err
		}
		*patches = append(*patches, Patch{Anchor: anchorOf(proposed), Action: Replace, HTML: out})
		return nil
	}

	cur, prop := elementChildren(current), elementChildren(proposed)
	for i := 0; i < len(cur) && i < len(prop); i++ {
		if err := diffNode(cur[i], prop[i], patches); err != nil {
			return err
		}
	}
	for _, extra := range prop[min(len(cur), len(prop)):] {
		out, err := renderNode(extra)
		if err != nil {
			return err
		}
		*patches = append(*patches, Patch{Anchor: anchorOf(proposed), Action: Append, HTML: out})
	}
	for _, gone := range cur[min(len(cur), len(prop)):] {
		*patches = append(*patches, Patch{Anchor: anchorOf(gone), Action: Replace, HTML: ""})
	}
	return nil
}

// sameElement reports whether a and b match in tag, attributes and
// their non element children. Element children are compared separately.
func sameElement(a, b *html.Node) bool {
	if a.Type != b.Type || a.Data != b.Data {
		return false
	}
	if !cmp.Equal(a.Attr, b.Attr) {
		return false
	}
	return cmp.Equal(leaves(a), leaves(b))
}

// leaves describes the child layout of n, with the content of every
// text and comment node and a placeholder for each element. Trailing
// elements are left out, they are appended or removed individually.
func leaves(n *html.Node) []string {
	out := []string{}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.ElementNode:
			out = append(out, "<>")
		case html.TextNode:
			out = append(out, "t:"+c.Data)
		case html.CommentNode:
			out = append(out, "c:"+c.Data)
		}
	}
	for len(out) > 0 && out[len(out)-1] == "<>" {
		out = out[:len(out)-1]
	}
	return out
}

func elementChildren(n *html.Node) []*html.Node {
	out := []*html.Node{}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, c)
		}
	}
	return out
}

func renderNode(n *html.Node) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", fmt.Errorf("could not render node: %w", err)
	}
	return buf.String(), nil
}

// anchorTree marks every element with an attribute naming its position
// among element siblings, e.g. `_l_0_1_0` for the first element in body.
func anchorTree(root *html.Node) {
	var walk func(n *html.Node, path []int)
	walk = func(n *html.Node, path []int) {
		idx := 0
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			p := append(append([]int{}, path...), idx)
			setAnchor(c, anchorKey(p))
			walk(c, p)
			idx++
		}
	}
	walk(root, []int{})
}

func anchorKey(path []int) string {
	parts := make([]string, 0, len(path)+1)
	parts = append(parts, anchorPrefix)
	for _, p := range path {
		parts = append(parts, strconv.Itoa(p))
	}
	return strings.Join(parts, "_")
}

func setAnchor(n *html.Node, key string) {
	attrs := n.Attr[:0]
	for _, a := range n.Attr {
		if strings.HasPrefix(a.Key, anchorPrefix+"_") {
			continue
		}
		attrs = append(attrs, a)
	}
	n.Attr = append(attrs, html.Attribute{Key: key})
}

func anchorOf(n *html.Node) string {
	for _, a := range n.Attr {
		if strings.HasPrefix(a.Key, anchorPrefix+"_") {
			return a.Key
		}
	}
	return ""
}

// shapeTree drops whitespace only text nodes so formatting does not show
// up as a difference.
func shapeTree(root *html.Node) {
	var next *html.Node
	for c := root.FirstChild; c != nil; c = next {
		next = c.NextSibling
		if c.Type == html.TextNode && strings.TrimSpace(c.Data) == "" {
			root.RemoveChild(c)
			continue
		}
		shapeTree(c)
	}
}
