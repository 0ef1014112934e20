// Package content defines document model produced by extraction and
// consumed by packaging.
package content

import (
	"encoding/base64"
	"fmt"
	"html"
	"slices"
	"strconv"
	"strings"
	"time"

	"webepub/content/text"
)

// BlockKind is the type of a structural unit of extracted content.
type BlockKind int

const (
	KindHeading BlockKind = iota + 1
	KindParagraph
	KindList
	KindBlockquote
	KindCode
	KindImage
)

func (k BlockKind) String() string {
	switch k {
	case KindHeading:
		return "heading"
	case KindParagraph:
		return "paragraph"
	case KindList:
		return "list"
	case KindBlockquote:
		return "blockquote"
	case KindCode:
		return "code"
	case KindImage:
		return "image"
	}
	return "unknown(" + strconv.Itoa(int(k)) + ")"
}

// Dimension is image width or height as declared in markup, either a pixel
// value or "auto" when absent or not numeric.
type Dimension struct {
	Value int
	Known bool
}

func Pixels(n int) Dimension {
	return Dimension{Value: n, Known: true}
}

// ParseDimension accepts plain numbers and numbers with "px" suffix,
// everything else (percentages, "auto", empty) is unknown.
func ParseDimension(s string) Dimension {
	s = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "px")
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return Dimension{}
	}
	return Pixels(n)
}

func (d Dimension) String() string {
	if !d.Known {
		return "auto"
	}
	return strconv.Itoa(d.Value)
}

// Below reports whether dimension is known and strictly less than n.
func (d Dimension) Below(n int) bool {
	return d.Known && d.Value < n
}

// ImageRef is an image as it appears in the source markup.
type ImageRef struct {
	Src    string
	Alt    string
	Width  Dimension
	Height Dimension
}

// Block is one structural unit of the chapter. Only fields relevant to Kind
// are set.
type Block struct {
	Kind BlockKind
	// Level is 1-6 for headings
	Level int
	Text  string
	// Ordered and Items are used by lists
	Ordered bool
	Items   []string
	// Markup is raw highlighted code, used only when PreserveMarkup is set
	Markup         string
	PreserveMarkup bool
	Image          *ImageRef
}

func Heading(level int, s string) Block {
	return Block{Kind: KindHeading, Level: min(max(level, 1), 6), Text: text.Normalize(s)}
}

func Paragraph(s string) Block {
	return Block{Kind: KindParagraph, Text: text.Normalize(s)}
}

func Blockquote(s string) Block {
	return Block{Kind: KindBlockquote, Text: text.Normalize(s)}
}

func Code(s string) Block {
	return Block{Kind: KindCode, Text: text.Normalize(s)}
}

// HighlightedCode keeps markup of syntax highlighted code verbatim.
func HighlightedCode(s, markup string) Block {
	return Block{Kind: KindCode, Text: text.Normalize(s), Markup: markup, PreserveMarkup: true}
}

// List normalizes items and drops empty ones.
func List(ordered bool, items []string) Block {
	b := Block{Kind: KindList, Ordered: ordered}
	for _, item := range items {
		if item = text.Normalize(item); item != "" {
			b.Items = append(b.Items, item)
		}
	}
	return b
}

func Image(ref ImageRef) Block {
	ref.Src = strings.TrimSpace(ref.Src)
	ref.Alt = text.Normalize(ref.Alt)
	return Block{Kind: KindImage, Image: &ref}
}

// Empty reports whether block carries nothing worth emitting.
func (b *Block) Empty() bool {
	switch b.Kind {
	case KindList:
		return len(b.Items) == 0
	case KindImage:
		return b.Image == nil || b.Image.Src == ""
	}
	return b.Text == ""
}

// KnownImage is an image already captured by the caller, Data is a data URI
// when the caller was able to read image bytes.
type KnownImage struct {
	Src    string
	Data   string
	Alt    string
	Width  Dimension
	Height Dimension
}

// ResolvedImage is an acquired image ready to be packaged.
type ResolvedImage struct {
	// Key is identity used for deduplication
	Key         string
	OriginalRef string
	ResolvedRef string
	MIME        string
	Data        []byte
	Alt         string
	Width       Dimension
	Height      Dimension
	// Refs are all references which should be treated as this image
	Refs []string
}

// DataURI returns image in "data:<mime>;base64,<payload>" form.
func (r *ResolvedImage) DataURI() string {
	return "data:" + r.MIME + ";base64," + base64.StdEncoding.EncodeToString(r.Data)
}

// AddRef records additional reference, duplicates and empty values are ignored.
func (r *ResolvedImage) AddRef(refs ...string) {
	for _, ref := range refs {
		if ref != "" && !slices.Contains(r.Refs, ref) {
			r.Refs = append(r.Refs, ref)
		}
	}
}

// Matches reports whether ref is one of the image references.
func (r *ResolvedImage) Matches(ref string) bool {
	return ref != "" && slices.Contains(r.Refs, ref)
}

// Document is the result of extraction and image resolution.
type Document struct {
	Title      string
	Blocks     []Block
	Images     []ResolvedImage
	SourceURL  string
	CapturedAt time.Time
}

// ContentHTML renders blocks as HTML fragment, images keep their source
// references.
func (d *Document) ContentHTML() string {
	var b strings.Builder
	for i := range d.Blocks {
		writeBlockHTML(&b, &d.Blocks[i])
	}
	return b.String()
}

func writeBlockHTML(b *strings.Builder, blk *Block) {
	switch blk.Kind {
	case KindHeading:
		fmt.Fprintf(b, "<h%d>%s</h%d>\n", blk.Level, html.EscapeString(blk.Text), blk.Level)
	case KindParagraph:
		fmt.Fprintf(b, "<p>%s</p>\n", html.EscapeString(blk.Text))
	case KindBlockquote:
		fmt.Fprintf(b, "<blockquote>%s</blockquote>\n", html.EscapeString(blk.Text))
	case KindCode:
		body := html.EscapeString(blk.Text)
		if blk.PreserveMarkup {
			body = blk.Markup
		}
		fmt.Fprintf(b, "<pre><code>%s</code></pre>\n", body)
	case KindList:
		tag := "ul"
		if blk.Ordered {
			tag = "ol"
		}
		b.WriteString("<" + tag + ">")
		for _, item := range blk.Items {
			fmt.Fprintf(b, "<li>%s</li>", html.EscapeString(item))
		}
		b.WriteString("</" + tag + ">\n")
	case KindImage:
		if blk.Image == nil {
			return
		}
		fmt.Fprintf(b, `<img src="%s" alt="%s"`, html.EscapeString(blk.Image.Src), html.EscapeString(blk.Image.Alt))
		if blk.Image.Width.Known {
			fmt.Fprintf(b, ` width="%d"`, blk.Image.Width.Value)
		}
		if blk.Image.Height.Known {
			fmt.Fprintf(b, ` height="%d"`, blk.Image.Height.Value)
		}
		b.WriteString("/>\n")
	}
}
