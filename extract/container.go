package extract

import (
	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"webepub/content"
)

var containerBlocks = cascadia.MustCompile("p, h1, h2, h3, h4, h5, h6, li, blockquote, pre, code")

// Container extracts blocks from a copy of root with unwanted subtrees
// removed, root itself is never modified.
func (e *Extractor) Container(root *html.Node) []content.Block {
	return e.blocksOf(e.Clean(root))
}

// Clean returns a copy of root without unwanted subtrees.
func (e *Extractor) Clean(root *html.Node) *html.Node {
	clone := cloneNode(root)
	if e.unwanted != nil {
		if removed := goquery.NewDocumentFromNode(clone).FindMatcher(e.unwanted).Remove(); removed.Length() > 0 {
			e.log.Debug("Removed unwanted elements", zap.Int("count", removed.Length()))
		}
	}
	return clone
}

func (e *Extractor) blocksOf(clone *html.Node) []content.Block {
	doc := goquery.NewDocumentFromNode(clone)

	var (
		blocks   []content.Block
		seen     = visited{}
		listFrom *html.Node
	)
	doc.FindMatcher(containerBlocks).Each(func(_ int, s *goquery.Selection) {
		n := s.Get(0)
		if seen.covered(n) {
			return
		}

		if n.DataAtom == atom.Li {
			item := content.List(isElement(n.Parent, atom.Ol), []string{itemText(n)})
			if item.Empty() {
				return
			}
			seen.mark(n)
			// consecutive items of the same list form one block
			if last := len(blocks) - 1; last >= 0 && listFrom == n.Parent && blocks[last].Kind == content.KindList {
				blocks[last].Items = append(blocks[last].Items, item.Items...)
				return
			}
			blocks = append(blocks, item)
			listFrom = n.Parent
			return
		}

		var b content.Block
		switch n.DataAtom {
		case atom.P:
			b = content.Paragraph(textContent(n))
		case atom.Blockquote:
			b = content.Blockquote(textContent(n))
		case atom.Pre:
			b = preBlock(n)
		case atom.Code:
			b = content.Code(textContent(n))
		default:
			b = content.Heading(headingLevel(n), textContent(n))
		}
		if b.Empty() {
			return
		}
		seen.mark(n)
		blocks = append(blocks, b)
		listFrom = nil
	})

	if len(blocks) == 0 {
		e.log.Debug("No structured content in container, splitting text")
		return fallbackBlocks(textContent(clone))
	}
	return blocks
}
