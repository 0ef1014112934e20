package epub

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"webepub/content"
	"webepub/images"
)

func (p *Packager) chapter(doc *content.Document, entries []manifestEntry) *etree.Document {
	out := newXMLDocument()
	out.CreateDirective(`DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.1//EN" "http://www.w3.org/TR/xhtml11/DTD/xhtml11.dtd"`)

	root := out.CreateElement("html")
	root.CreateAttr("xmlns", "http://www.w3.org/1999/xhtml")

	head := root.CreateElement("head")
	head.CreateElement("title").SetText(doc.Title)
	link := head.CreateElement("link")
	link.CreateAttr("rel", "stylesheet")
	link.CreateAttr("type", "text/css")
	link.CreateAttr("href", stylesFile)

	body := root.CreateElement("body")
	body.CreateElement("h1").SetText(doc.Title)

	for i := range doc.Blocks {
		p.appendBlock(body, &doc.Blocks[i], doc.SourceURL, entries)
	}
	return out
}

func (p *Packager) appendBlock(parent *etree.Element, b *content.Block, pageURL string, entries []manifestEntry) {
	switch b.Kind {
	case content.KindHeading:
		parent.CreateElement("h" + strconv.Itoa(min(max(b.Level, 1), 6))).SetText(b.Text)
	case content.KindParagraph:
		parent.CreateElement("p").SetText(b.Text)
	case content.KindBlockquote:
		// XHTML 1.1 does not allow text directly inside blockquote
		parent.CreateElement("blockquote").CreateElement("p").SetText(b.Text)
	case content.KindCode:
		code := parent.CreateElement("pre").CreateElement("code")
		if b.PreserveMarkup && b.Markup != "" {
			if appendMarkup(code, b.Markup) {
				return
			}
			p.log.Debug("Unable to parse highlighted code, using plain text")
		}
		code.SetText(b.Text)
	case content.KindList:
		tag := "ul"
		if b.Ordered {
			tag = "ol"
		}
		list := parent.CreateElement(tag)
		for _, item := range b.Items {
			list.CreateElement("li").SetText(item)
		}
	case content.KindImage:
		if b.Image == nil {
			return
		}
		entry := matchImage(entries, b.Image.Src, pageURL)
		if entry == nil {
			p.log.Debug("Image without data omitted", zap.String("src", b.Image.Src))
			return
		}
		div := parent.CreateElement("div")
		div.CreateAttr("class", "image")
		img := div.CreateElement("img")
		img.CreateAttr("src", entry.href())
		alt := b.Image.Alt
		if alt == "" {
			alt = entry.image.Alt
		}
		img.CreateAttr("alt", alt)
	}
}

func matchImage(entries []manifestEntry, src, pageURL string) *manifestEntry {
	for _, v := range images.Variants(src, pageURL) {
		for i := range entries {
			if entries[i].image.Matches(v) {
				return &entries[i]
			}
		}
	}
	return nil
}

// phrasing elements kept from highlighted markup, others are unwrapped
var keepTags = map[atom.Atom]bool{
	atom.Span: true, atom.B: true, atom.I: true, atom.Em: true, atom.Strong: true,
	atom.Sub: true, atom.Sup: true, atom.Small: true, atom.Big: true, atom.Code: true,
	atom.Kbd: true, atom.Samp: true, atom.Var: true, atom.Br: true,
}

var keepAttrs = map[string]bool{"class": true, "title": true}

// appendMarkup re-parses markup as content of code element and appends it
// to parent as XHTML.
func appendMarkup(parent *etree.Element, markup string) bool {
	ctx := &html.Node{Type: html.ElementNode, Data: "code", DataAtom: atom.Code}
	nodes, err := html.ParseFragment(strings.NewReader(markup), ctx)
	if err != nil {
		return false
	}

	type item struct {
		n      *html.Node
		parent *etree.Element
	}
	stack := make([]item, 0, len(nodes))
	for i := len(nodes) - 1; i >= 0; i-- {
		stack = append(stack, item{nodes[i], parent})
	}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		target := it.parent
		switch it.n.Type {
		case html.TextNode:
			it.parent.CreateText(it.n.Data)
			continue
		case html.ElementNode:
			if it.n.DataAtom == atom.Script || it.n.DataAtom == atom.Style {
				continue
			}
			if keepTags[it.n.DataAtom] {
				target = it.parent.CreateElement(it.n.DataAtom.String())
				for _, a := range it.n.Attr {
					if a.Namespace == "" && keepAttrs[a.Key] {
						target.CreateAttr(a.Key, a.Val)
					}
				}
			}
		default:
			continue
		}
		for c := it.n.LastChild; c != nil; c = c.PrevSibling {
			stack = append(stack, item{c, target})
		}
	}
	return true
}
