package extract

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// cloneNode makes a deep copy of n, result has no parent or siblings.
func cloneNode(n *html.Node) *html.Node {
	type pair struct{ src, dst *html.Node }

	root := shallowCopy(n)
	stack := []pair{{n, root}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for c := p.src.FirstChild; c != nil; c = c.NextSibling {
			cc := shallowCopy(c)
			p.dst.AppendChild(cc)
			stack = append(stack, pair{c, cc})
		}
	}
	return root
}

func shallowCopy(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
	}
	if len(n.Attr) > 0 {
		c.Attr = make([]html.Attribute, len(n.Attr))
		copy(c.Attr, n.Attr)
	}
	return c
}

// textContent concatenates all text nodes under n in document order.
func textContent(n *html.Node) string {
	if n == nil {
		return ""
	}
	if n.Type == html.TextNode {
		return n.Data
	}

	var b strings.Builder
	stack := []*html.Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		switch cur.Type {
		case html.TextNode:
			b.WriteString(cur.Data)
			continue
		case html.CommentNode, html.DoctypeNode:
			continue
		}
		for c := cur.LastChild; c != nil; c = c.PrevSibling {
			stack = append(stack, c)
		}
	}
	return b.String()
}

// separated elements start a new line of text when rendered
var separated = map[atom.Atom]bool{
	atom.Ul: true, atom.Ol: true, atom.Li: true, atom.P: true, atom.Div: true,
	atom.Br: true, atom.Blockquote: true, atom.Pre: true, atom.Table: true,
	atom.Tr: true, atom.Td: true, atom.Th: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
}

// itemText is textContent of list item with nested block elements, nested
// lists included, set apart by spaces.
func itemText(li *html.Node) string {
	type step struct {
		n     *html.Node
		close bool
	}

	var b strings.Builder
	stack := []step{}
	for c := li.LastChild; c != nil; c = c.PrevSibling {
		stack = append(stack, step{n: c})
	}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur.close {
			b.WriteByte(' ')
			continue
		}
		switch cur.n.Type {
		case html.TextNode:
			b.WriteString(cur.n.Data)
			continue
		case html.ElementNode:
			if separated[cur.n.DataAtom] {
				b.WriteByte(' ')
				stack = append(stack, step{n: cur.n, close: true})
			}
		default:
			continue
		}
		for c := cur.n.LastChild; c != nil; c = c.PrevSibling {
			stack = append(stack, step{n: c})
		}
	}
	return b.String()
}

// directText returns text of immediate text children only.
func directText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

// innerHTML renders children of n.
func innerHTML(n *html.Node) string {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return textContent(n)
		}
	}
	return buf.String()
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, name) {
			return a.Val
		}
	}
	return ""
}

func isElement(n *html.Node, a atom.Atom) bool {
	return n != nil && n.Type == html.ElementNode && n.DataAtom == a
}

// firstDescendant returns first element of type a under n in document order.
func firstDescendant(n *html.Node, a atom.Atom) *html.Node {
	stack := []*html.Node{}
	for c := n.LastChild; c != nil; c = c.PrevSibling {
		stack = append(stack, c)
	}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if isElement(cur, a) {
			return cur
		}
		for c := cur.LastChild; c != nil; c = c.PrevSibling {
			stack = append(stack, c)
		}
	}
	return nil
}

func headingLevel(n *html.Node) int {
	switch n.DataAtom {
	case atom.H1:
		return 1
	case atom.H2:
		return 2
	case atom.H3:
		return 3
	case atom.H4:
		return 4
	case atom.H5:
		return 5
	case atom.H6:
		return 6
	}
	return 0
}

// visited is the set of elements already turned into blocks.
type visited map[*html.Node]struct{}

func (v visited) mark(n *html.Node) {
	v[n] = struct{}{}
}

// covered reports whether n or any of its ancestors has been emitted.
func (v visited) covered(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if _, ok := v[p]; ok {
			return true
		}
	}
	return false
}
