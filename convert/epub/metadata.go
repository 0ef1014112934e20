package epub

import (
	"strconv"
	"time"

	"github.com/beevik/etree"
	"golang.org/x/text/language"

	"webepub/content"
)

func newXMLDocument() *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	return doc
}

func containerXML() *etree.Document {
	doc := newXMLDocument()
	container := doc.CreateElement("container")
	container.CreateAttr("version", "1.0")
	container.CreateAttr("xmlns", "urn:oasis:names:tc:opendocument:xmlns:container")

	rootfile := container.CreateElement("rootfiles").CreateElement("rootfile")
	rootfile.CreateAttr("full-path", oebpsDir+"/content.opf")
	rootfile.CreateAttr("media-type", "application/oebps-package+xml")
	return doc
}

// languageTag returns canonical form of configured language.
func (p *Packager) languageTag() string {
	tag, err := language.Parse(p.cfg.Language)
	if err != nil {
		return p.cfg.Language
	}
	return tag.String()
}

func (p *Packager) opf(doc *content.Document, id string, ts time.Time, entries []manifestEntry) *etree.Document {
	out := newXMLDocument()

	pkg := out.CreateElement("package")
	pkg.CreateAttr("version", "2.0")
	pkg.CreateAttr("xmlns", "http://www.idpf.org/2007/opf")
	pkg.CreateAttr("unique-identifier", "BookId")

	metadata := pkg.CreateElement("metadata")
	metadata.CreateAttr("xmlns:dc", "http://purl.org/dc/elements/1.1/")
	metadata.CreateAttr("xmlns:opf", "http://www.idpf.org/2007/opf")

	ident := metadata.CreateElement("dc:identifier")
	ident.CreateAttr("id", "BookId")
	ident.CreateAttr("opf:scheme", "UUID")
	ident.SetText(id)

	metadata.CreateElement("dc:title").SetText(doc.Title)
	creator := metadata.CreateElement("dc:creator")
	creator.CreateAttr("opf:role", "aut")
	creator.SetText(p.cfg.Creator)
	metadata.CreateElement("dc:language").SetText(p.languageTag())
	metadata.CreateElement("dc:date").SetText(ts.UTC().Format(time.RFC3339))
	if doc.SourceURL != "" {
		metadata.CreateElement("dc:source").SetText(doc.SourceURL)
	}

	manifest := pkg.CreateElement("manifest")
	addItem := func(id, href, mediaType string) {
		item := manifest.CreateElement("item")
		item.CreateAttr("id", id)
		item.CreateAttr("href", href)
		item.CreateAttr("media-type", mediaType)
	}
	addItem("ncx", "toc.ncx", "application/x-dtbncx+xml")
	addItem("css", stylesFile, "text/css")
	addItem("chapter1", chapterFile, "application/xhtml+xml")
	for i := range entries {
		addItem(entries[i].ID, entries[i].href(), entries[i].MediaType)
	}

	spine := pkg.CreateElement("spine")
	spine.CreateAttr("toc", "ncx")
	spine.CreateElement("itemref").CreateAttr("idref", "chapter1")
	return out
}

func ncx(title, id string) *etree.Document {
	doc := newXMLDocument()

	root := doc.CreateElement("ncx")
	root.CreateAttr("xmlns", "http://www.daisy.org/z3986/2005/ncx/")
	root.CreateAttr("version", "2005-1")

	head := root.CreateElement("head")
	for _, m := range [...][2]string{
		{"dtb:uid", id},
		{"dtb:depth", "1"},
		{"dtb:totalPageCount", "0"},
		{"dtb:maxPageNumber", "0"},
	} {
		meta := head.CreateElement("meta")
		meta.CreateAttr("name", m[0])
		meta.CreateAttr("content", m[1])
	}

	root.CreateElement("docTitle").CreateElement("text").SetText(title)

	navPoint := root.CreateElement("navMap").CreateElement("navPoint")
	navPoint.CreateAttr("id", "navpoint-1")
	navPoint.CreateAttr("playOrder", strconv.Itoa(1))
	navPoint.CreateElement("navLabel").CreateElement("text").SetText(title)
	navPoint.CreateElement("content").CreateAttr("src", chapterFile)
	return doc
}
