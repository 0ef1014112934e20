package extract

import (
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"webepub/content"
)

// Selection extracts blocks from every range in order. Range which cannot be
// cloned contributes its plain text only.
func (e *Extractor) Selection(ranges []Range) []content.Block {
	var (
		blocks []content.Block
		all    []string
	)
	for i, r := range ranges {
		if r == nil {
			continue
		}
		raw := r.String()
		all = append(all, raw)

		nodes, err := r.CloneContents()
		if err != nil {
			e.log.Debug("Unable to clone selection, using its text", zap.Int("range", i), zap.Error(err))
			blocks = append(blocks, fallbackBlocks(raw)...)
			continue
		}
		scratch := &html.Node{Type: html.DocumentNode}
		for _, n := range nodes {
			if n.Parent != nil {
				n.Parent.RemoveChild(n)
			}
			scratch.AppendChild(n)
		}
		blocks = append(blocks, walk(scratch)...)
	}

	if len(blocks) == 0 {
		e.log.Debug("No structured content in selection, splitting text")
		return fallbackBlocks(strings.Join(all, "\n\n"))
	}
	return blocks
}

// walk visits tree in document order without recursion. Element is turned
// into block at most once and nothing under emitted element is visited.
func walk(root *html.Node) []content.Block {
	var (
		blocks []content.Block
		seen   = visited{}
		stack  = []*html.Node{root}
	)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if n.Type == html.ElementNode && !seen.covered(n) {
			if b, emitted := convertElement(n); emitted {
				blocks = append(blocks, b)
				if n.DataAtom != atom.Div {
					seen.mark(n)
				}
			}
		}
		for c := n.LastChild; c != nil; c = c.PrevSibling {
			stack = append(stack, c)
		}
	}
	return blocks
}

// convertElement maps a whitelisted element to block, returns false for
// anything else or when resulting block is empty.
func convertElement(n *html.Node) (content.Block, bool) {
	var b content.Block
	switch n.DataAtom {
	case atom.P, atom.Span:
		b = content.Paragraph(textContent(n))
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		b = content.Heading(headingLevel(n), textContent(n))
	case atom.Ul, atom.Ol:
		var items []string
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if isElement(c, atom.Li) {
				items = append(items, itemText(c))
			}
		}
		b = content.List(n.DataAtom == atom.Ol, items)
	case atom.Blockquote:
		b = content.Blockquote(textContent(n))
	case atom.Pre:
		b = preBlock(n)
	case atom.Code:
		b = content.Code(textContent(n))
	case atom.Div:
		// nested elements are handled when walk reaches them
		b = content.Paragraph(directText(n))
	case atom.Img:
		b = imageBlock(n)
	default:
		return b, false
	}
	return b, !b.Empty()
}

// preBlock prefers highlighted markup of nested code element.
func preBlock(n *html.Node) content.Block {
	code := firstDescendant(n, atom.Code)
	if code == nil {
		return content.Code(textContent(n))
	}
	if highlighted(code) {
		return content.HighlightedCode(textContent(code), innerHTML(code))
	}
	return content.Code(textContent(code))
}

func highlighted(code *html.Node) bool {
	class := strings.ToLower(attr(code, "class"))
	if strings.Contains(class, "hljs") || strings.Contains(class, "language-") || strings.Contains(class, "highlight") {
		return true
	}
	for c := code.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return true
		}
	}
	return false
}

func imageBlock(n *html.Node) content.Block {
	src := strings.TrimSpace(attr(n, "src"))
	if src == "" {
		src = attr(n, "data-src")
	}
	return content.Image(content.ImageRef{
		Src:    src,
		Alt:    attr(n, "alt"),
		Width:  content.ParseDimension(attr(n, "width")),
		Height: content.ParseDimension(attr(n, "height")),
	})
}
