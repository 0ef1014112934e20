package content

import (
	"strings"
	"testing"
)

func TestParseDimension(t *testing.T) {
	tests := []struct {
		in   string
		want Dimension
	}{
		{"120", Pixels(120)},
		{" 80px ", Pixels(80)},
		{"0", Pixels(0)},
		{"", Dimension{}},
		{"auto", Dimension{}},
		{"50%", Dimension{}},
		{"-3", Dimension{}},
	}
	for _, tt := range tests {
		if got := ParseDimension(tt.in); got != tt.want {
			t.Errorf("ParseDimension(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
	if s := (Dimension{}).String(); s != "auto" {
		t.Errorf("unknown dimension String() = %q, want auto", s)
	}
	if s := Pixels(7).String(); s != "7" {
		t.Errorf("Pixels(7).String() = %q", s)
	}
}

func TestDimension_Below(t *testing.T) {
	if !Pixels(10).Below(50) {
		t.Error("10 must be below 50")
	}
	if Pixels(50).Below(50) {
		t.Error("50 must not be below 50")
	}
	if (Dimension{}).Below(50) {
		t.Error("unknown dimension is never below")
	}
}

func TestBlockConstructors(t *testing.T) {
	if b := Paragraph("  a \n b "); b.Text != "a b" || b.Empty() {
		t.Errorf("Paragraph() = %+v", b)
	}
	if b := Heading(9, "x"); b.Level != 6 {
		t.Errorf("Heading level must be clamped, got %d", b.Level)
	}
	if b := Heading(0, "x"); b.Level != 1 {
		t.Errorf("Heading level must be clamped, got %d", b.Level)
	}
	if b := List(true, []string{" one ", "  ", "two"}); len(b.Items) != 2 || !b.Ordered {
		t.Errorf("List() = %+v", b)
	}
	if b := List(false, []string{" "}); !b.Empty() {
		t.Error("list without items must be empty")
	}
	if b := Image(ImageRef{Src: "  "}); !b.Empty() {
		t.Error("image without source must be empty")
	}
	if b := Code("  "); !b.Empty() {
		t.Error("blank code must be empty")
	}
	if b := Paragraph("\uFEFF \uFEFF"); !b.Empty() {
		t.Errorf("BOM only paragraph must be empty, got %q", b.Text)
	}
}

func TestResolvedImage_Refs(t *testing.T) {
	img := ResolvedImage{MIME: "image/png", Data: []byte{1, 2, 3}}
	img.AddRef("a.png", "", "https://x/a.png", "a.png")

	if len(img.Refs) != 2 {
		t.Fatalf("Refs = %v, want two unique entries", img.Refs)
	}
	if !img.Matches("https://x/a.png") || img.Matches("") || img.Matches("b.png") {
		t.Error("Matches() returned unexpected result")
	}
	if got := img.DataURI(); got != "data:image/png;base64,AQID" {
		t.Errorf("DataURI() = %q", got)
	}
}

func TestDocument_ContentHTML(t *testing.T) {
	doc := Document{Blocks: []Block{
		Heading(2, "Tom & Jerry"),
		Paragraph("<b>not bold</b>"),
		List(true, []string{"first"}),
		HighlightedCode("x", `<span class="hljs-keyword">x</span>`),
		Image(ImageRef{Src: "a.png", Alt: "A", Width: Pixels(10)}),
	}}

	got := doc.ContentHTML()
	for _, want := range []string{
		"<h2>Tom &amp; Jerry</h2>",
		"<p>&lt;b&gt;not bold&lt;/b&gt;</p>",
		"<ol><li>first</li></ol>",
		`<pre><code><span class="hljs-keyword">x</span></code></pre>`,
		`<img src="a.png" alt="A" width="10"/>`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("ContentHTML() missing %q in:\n%s", want, got)
		}
	}
}

func TestBlockKind_String(t *testing.T) {
	if KindCode.String() != "code" || BlockKind(42).String() != "unknown(42)" {
		t.Error("unexpected BlockKind names")
	}
}
