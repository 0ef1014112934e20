package extract

import (
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"golang.org/x/net/html"

	"webepub/config"
	"webepub/content"
)

func testConfig() *config.DocumentConfig {
	return &config.DocumentConfig{
		DefaultTitle:       "Exported article",
		ContainerSelectors: []string{".step-dynamic-container", "article", "main", "body"},
		TitleSelectors:     []string{"h1", ".step-dynamic-container h1", ".step-dynamic-container h2", ".title", ".page-title", "title"},
		UnwantedSelectors: []string{
			"script", "style", "nav", "header", "footer", ".nav", ".navigation", ".menu", ".sidebar",
			".ads", ".advertisement", ".social-share", ".comments", ".related-posts", ".popup",
			"[class*='ad-']", "[id*='ad-']",
		},
	}
}

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	e, err := New(testConfig(), zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller())))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e
}

func parsePage(t *testing.T, markup string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		t.Fatalf("unable to parse page: %v", err)
	}
	return doc
}

// describe renders blocks compactly for comparison.
func describe(blocks []content.Block) []string {
	res := make([]string, 0, len(blocks))
	for _, b := range blocks {
		switch b.Kind {
		case content.KindList:
			res = append(res, b.Kind.String()+":"+strings.Join(b.Items, "|"))
		case content.KindImage:
			res = append(res, "image:"+b.Image.Src)
		case content.KindHeading:
			res = append(res, "h"+string(rune('0'+b.Level))+":"+b.Text)
		default:
			res = append(res, b.Kind.String()+":"+b.Text)
		}
	}
	return res
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestNew_BadSelector(t *testing.T) {
	cfg := testConfig()
	cfg.UnwantedSelectors = append(cfg.UnwantedSelectors, "[[[")
	if _, err := New(cfg, zaptest.NewLogger(t)); err == nil {
		t.Error("expected error for malformed selector")
	}
}

func TestContainer(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		want   []string
	}{
		{
			name:   "nested paragraph emitted once",
			markup: `<div id="root"><div><p>X</p></div></div>`,
			want:   []string{"paragraph:X"},
		},
		{
			name: "unwanted removed",
			markup: `<div id="root"><nav><p>menu</p></nav><p>Body</p><div class="ad-banner"><p>Buy</p></div>
				<div id="top-ad-slot"><p>Ad</p></div><script>var x;</script><footer><p>foot</p></footer></div>`,
			want: []string{"paragraph:Body"},
		},
		{
			name:   "headings and quotes",
			markup: `<div id="root"><h2> Part  one </h2><blockquote>Quote <b>bold</b></blockquote><h7>no</h7></div>`,
			want:   []string{"h2:Part one", "blockquote:Quote bold"},
		},
		{
			name:   "list items grouped",
			markup: `<div id="root"><ol><li>one</li><li> </li><li>two</li></ol><ul><li>three</li></ul></div>`,
			want:   []string{"list:one|two", "list:three"},
		},
		{
			name:   "nested list text kept apart",
			markup: `<div id="root"><ul><li>A<ul><li>B</li></ul></li><li>Hel<b>lo</b></li></ul></div>`,
			want:   []string{"list:A B|Hello"},
		},
		{
			name:   "pre with code once",
			markup: `<div id="root"><pre><code>x := 1</code></pre><p>inline <code>y</code></p></div>`,
			want:   []string{"code:x := 1", "paragraph:inline y"},
		},
		{
			name:   "fallback splits text",
			markup: "<div id=\"root\">First.\n\n  Second.<span></span></div>",
			want:   []string{"paragraph:First.", "paragraph:Second."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestExtractor(t)
			page := parsePage(t, tt.markup)
			root := findByID(page, "root")
			if root == nil {
				t.Fatal("no root element")
			}
			got := describe(e.Container(root))
			if !equal(got, tt.want) {
				t.Errorf("Container() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestContainer_DoesNotModifyRoot(t *testing.T) {
	e := newTestExtractor(t)
	page := parsePage(t, `<div id="root"><script>x()</script><p>Text</p></div>`)
	root := findByID(page, "root")

	e.Container(root)
	if !strings.Contains(renderNode(t, root), "<script>") {
		t.Error("source tree was modified")
	}
}

func TestSelection(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		want   []string
	}{
		{
			name:   "paragraph not duplicated",
			markup: `<div><p>X <span>inner</span></p></div>`,
			want:   []string{"paragraph:X inner"},
		},
		{
			name:   "div direct text",
			markup: `<div>Direct text<span>Nested text</span> More direct</div>`,
			want:   []string{"paragraph:Direct text More direct", "paragraph:Nested text"},
		},
		{
			name:   "span as paragraph",
			markup: `<span>Loose text</span><span> </span>`,
			want:   []string{"paragraph:Loose text"},
		},
		{
			name:   "lists use direct items",
			markup: `<ul><li>a</li><li></li><li>b</li></ul><ol></ol>`,
			want:   []string{"list:a|b"},
		},
		{
			name:   "nested list inside item",
			markup: `<ol><li>A<ul><li>B</li><li>C</li></ul></li><li>D</li></ol>`,
			want:   []string{"list:A B C|D"},
		},
		{
			name:   "image in empty paragraph",
			markup: `<p><img data-src="lazy.png" alt="Lazy"></p><img src="a.png" data-src="b.png">`,
			want:   []string{"image:lazy.png", "image:a.png"},
		},
		{
			name:   "heading levels",
			markup: `<h1>One</h1><h3>Three</h3>`,
			want:   []string{"h1:One", "h3:Three"},
		},
		{
			name:   "plain text falls back",
			markup: "First.\n\nSecond.",
			want:   []string{"paragraph:First.", "paragraph:Second."},
		},
		{
			name:   "single blob",
			markup: "OneBlob",
			want:   []string{"paragraph:OneBlob"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestExtractor(t)
			got := describe(e.Selection([]Range{FragmentRange{HTML: tt.markup}}))
			if !equal(got, tt.want) {
				t.Errorf("Selection() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSelection_HighlightedCode(t *testing.T) {
	e := newTestExtractor(t)
	markup := `<pre><code class="hljs language-go"><span class="hljs-keyword">func</span> main() {}</code></pre>`

	blocks := e.Selection([]Range{FragmentRange{HTML: markup}})
	if len(blocks) != 1 {
		t.Fatalf("expected one block, got %d", len(blocks))
	}
	b := blocks[0]
	if b.Kind != content.KindCode || !b.PreserveMarkup {
		t.Fatalf("expected highlighted code block, got %+v", b)
	}
	if b.Markup != `<span class="hljs-keyword">func</span> main() {}` {
		t.Errorf("Markup = %q", b.Markup)
	}
	if b.Text != "func main() {}" {
		t.Errorf("Text = %q", b.Text)
	}
}

func TestSelection_PlainCode(t *testing.T) {
	e := newTestExtractor(t)
	blocks := e.Selection([]Range{FragmentRange{HTML: "<pre>a\n  b</pre>"}})
	if len(blocks) != 1 || blocks[0].PreserveMarkup || blocks[0].Text != "a b" {
		t.Errorf("unexpected blocks %+v", blocks)
	}
}

func TestSelection_ImageAttributes(t *testing.T) {
	e := newTestExtractor(t)
	blocks := e.Selection([]Range{FragmentRange{HTML: `<img src="//cdn.example.com/photo.png" alt="Sample" width="120" height="80"/>`}})
	if len(blocks) != 1 {
		t.Fatalf("expected one block, got %d", len(blocks))
	}
	img := blocks[0].Image
	if img.Src != "//cdn.example.com/photo.png" || img.Alt != "Sample" {
		t.Errorf("unexpected image %+v", img)
	}
	if img.Width != content.Pixels(120) || img.Height != content.Pixels(80) {
		t.Errorf("unexpected dimensions %v x %v", img.Width, img.Height)
	}
}

type brokenRange struct{ text string }

func (r brokenRange) CloneContents() ([]*html.Node, error) {
	return nil, errors.New("detached range")
}

func (r brokenRange) String() string { return r.text }

func TestSelection_BrokenRangeDegrades(t *testing.T) {
	e := newTestExtractor(t)
	got := describe(e.Selection([]Range{
		FragmentRange{HTML: "<p>Good</p>"},
		brokenRange{text: "Plain one\n\nPlain two"},
	}))
	want := []string{"paragraph:Good", "paragraph:Plain one", "paragraph:Plain two"}
	if !equal(got, want) {
		t.Errorf("Selection() = %q, want %q", got, want)
	}
}

func TestExtract_Errors(t *testing.T) {
	e := newTestExtractor(t)

	if _, err := e.Extract(Input{}); !errors.Is(err, ErrNoSelection) {
		t.Errorf("empty input error = %v, want NoSelection", err)
	}
	if _, err := e.Extract(Input{Ranges: []Range{FragmentRange{HTML: "  <b> </b> "}}}); !errors.Is(err, ErrNoSelection) {
		t.Errorf("blank selection error = %v, want NoSelection", err)
	}

	page := parsePage(t, `<div id="root"><script>only script</script></div>`)
	_, err := e.Extract(Input{Container: findByID(page, "root")})
	if !errors.Is(err, ErrEmptyContent) {
		t.Errorf("empty container error = %v, want EmptyContent", err)
	}
	var ee *ExtractionError
	if !errors.As(err, &ee) || ee.Reason != EmptyContent || ee.Error() == "" {
		t.Errorf("unexpected error value %#v", err)
	}
}

func TestExtract_Cleaned(t *testing.T) {
	e := newTestExtractor(t)
	page := parsePage(t, `<div id="root"><nav><img src="menu.png"></nav><p>Text</p><div class="ads"><img src="ad.png"></div></div>`)
	root := findByID(page, "root")

	res, err := e.Extract(Input{Container: root})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if res.Cleaned == nil || res.Cleaned == root {
		t.Fatalf("Cleaned = %v, want container copy", res.Cleaned)
	}
	var b strings.Builder
	if err := html.Render(&b, res.Cleaned); err != nil {
		t.Fatal(err)
	}
	if got := b.String(); got != `<div id="root"><p>Text</p></div>` {
		t.Errorf("Cleaned = %q", got)
	}
	b.Reset()
	_ = html.Render(&b, root)
	if !strings.Contains(b.String(), "ad.png") {
		t.Errorf("source container was modified: %q", b.String())
	}

	sel, err := e.Extract(Input{Ranges: []Range{FragmentRange{HTML: "<p>Text</p>"}}})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if sel.Cleaned != nil {
		t.Errorf("selection mode Cleaned = %v, want nil", sel.Cleaned)
	}
}

func TestExtract_Title(t *testing.T) {
	e := newTestExtractor(t)
	page := parsePage(t, `<html><head><title>Page title</title></head><body><h1>  </h1><div class="title">Real  title</div><p>Text</p></body></html>`)

	res, err := e.Extract(Input{Page: page, Container: findByID(page, "")})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if res.Title != "Real title" {
		t.Errorf("Title = %q, want %q", res.Title, "Real title")
	}

	res, err = e.Extract(Input{Ranges: []Range{FragmentRange{HTML: "<p>x</p>"}}, Title: " Given "})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if res.Title != "Given" {
		t.Errorf("Title = %q, want Given", res.Title)
	}

	if got := e.Title(nil); got != "Exported article" {
		t.Errorf("Title(nil) = %q", got)
	}
}

func TestFindContainer(t *testing.T) {
	e := newTestExtractor(t)
	page := parsePage(t, `<body><main><article id="a"><p>x</p></article></main></body>`)
	if n := e.FindContainer(page); n == nil || attr(n, "id") != "a" {
		t.Errorf("FindContainer() = %v, want article", n)
	}
}

func TestWalk_DeepTree(t *testing.T) {
	// deep nesting must not be a problem for iterative walk
	markup := strings.Repeat("<div>", 2000) + "<p>deep</p>" + strings.Repeat("</div>", 2000)
	root := &html.Node{Type: html.DocumentNode}
	nodes, err := FragmentRange{HTML: markup}.CloneContents()
	if err != nil {
		t.Fatalf("CloneContents() error = %v", err)
	}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	got := describe(walk(root))
	if len(got) != 1 || got[0] != "paragraph:deep" {
		t.Errorf("walk() = %q", got)
	}
}

// findByID returns element with given id, empty id means body.
func findByID(n *html.Node, id string) *html.Node {
	stack := []*html.Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur.Type == html.ElementNode {
			if id == "" && cur.Data == "body" || id != "" && attr(cur, "id") == id {
				return cur
			}
		}
		for c := cur.LastChild; c != nil; c = c.PrevSibling {
			stack = append(stack, c)
		}
	}
	return nil
}

func renderNode(t *testing.T, n *html.Node) string {
	t.Helper()
	var b strings.Builder
	if err := html.Render(&b, n); err != nil {
		t.Fatalf("render: %v", err)
	}
	return b.String()
}
