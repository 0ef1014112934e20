package convert

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"golang.org/x/net/html"

	"webepub/config"
	"webepub/content"
	"webepub/convert/epub"
	"webepub/extract"
	"webepub/images"
)

type stubFetcher struct {
	mu    sync.Mutex
	serve map[string]string
	calls []string
}

func (f *stubFetcher) Name() string {
	return "stub"
}

func (f *stubFetcher) Fetch(_ context.Context, ref, _ string) (*images.Payload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ref)
	if mt, ok := f.serve[ref]; ok {
		return &images.Payload{MIME: mt, Data: []byte("image:" + ref)}, nil
	}
	return nil, errors.New("404 Not Found")
}

var testNow = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	return cfg
}

func newTestExporter(t *testing.T, f images.Fetcher) *Exporter {
	t.Helper()
	ex, err := NewExporter(testConfig(t), nil, zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller())),
		WithFetchers(f, nil),
		WithNow(func() time.Time { return testNow }),
		WithPackagerOptions(epub.WithIDGenerator(func() (string, error) { return "urn:uuid:test", nil })),
	)
	if err != nil {
		t.Fatalf("NewExporter() error = %v", err)
	}
	return ex
}

func chapterOf(t *testing.T, data []byte) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("zip.NewReader() error = %v", err)
	}
	for _, f := range zr.File {
		if f.Name != "OEBPS/chapter1.xhtml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open chapter: %v", err)
		}
		defer rc.Close()
		b, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("read chapter: %v", err)
		}
		return string(b)
	}
	t.Fatal("archive has no chapter")
	return ""
}

func TestExport_RawSelection(t *testing.T) {
	f := &stubFetcher{serve: map[string]string{"https://example.com/img/a.png": "image/png"}}
	ex := newTestExporter(t, f)

	res, doc, err := ex.Export(context.Background(), Input{
		RawHTML: `<p>Hello   world</p><img src="/img/a.png" width="100" height="100" alt="A">` +
			`<img src="/icon.png" width="16" height="16">`,
		PageURL: "https://example.com/post/1",
		Title:   "  My   post ",
	})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	if doc.Title != "My post" || !doc.CapturedAt.Equal(testNow) || doc.SourceURL != "https://example.com/post/1" {
		t.Errorf("document = %+v", doc)
	}
	if len(doc.Blocks) != 3 {
		t.Fatalf("blocks = %+v", doc.Blocks)
	}
	if len(doc.Images) != 1 || doc.Images[0].Key != "https://example.com/img/a.png" {
		t.Fatalf("images = %+v", doc.Images)
	}
	if len(f.calls) != 1 {
		t.Errorf("fetches = %q", f.calls)
	}

	if res.Filename != "My_post_2025-01-02.epub" {
		t.Errorf("Filename = %q", res.Filename)
	}
	chapter := chapterOf(t, res.Data)
	if !strings.Contains(chapter, `src="images/img_1.png"`) || strings.Contains(chapter, "/img/a.png") {
		t.Errorf("image not rewritten:\n%s", chapter)
	}
	if strings.Contains(chapter, "icon.png") {
		t.Errorf("icon block is not omitted:\n%s", chapter)
	}
}

func TestExport_KnownImages(t *testing.T) {
	f := &stubFetcher{}
	ex := newTestExporter(t, f)

	doc, err := ex.ExtractDocument(context.Background(), Input{
		RawHTML: `<p>text</p><img src="https://cdn.example.com/x.png">`,
		Images:  []content.KnownImage{{Src: "https://cdn.example.com/x.png", Data: "data:image/gif;base64,R0lGODlh"}},
	})
	if err != nil {
		t.Fatalf("ExtractDocument() error = %v", err)
	}
	if len(doc.Images) != 1 || doc.Images[0].MIME != "image/gif" {
		t.Fatalf("images = %+v", doc.Images)
	}
	if len(f.calls) != 0 {
		t.Errorf("known image data was fetched: %q", f.calls)
	}
}

func TestExport_Container(t *testing.T) {
	page, err := html.Parse(strings.NewReader(`<html><head><title>Page title</title></head><body>
		<nav><p>menu</p></nav>
		<article><h2>Sub</h2><div><p>Body text</p></div><ul><li>a</li><li>b</li></ul></article>
		</body></html>`))
	if err != nil {
		t.Fatal(err)
	}
	ex := newTestExporter(t, &stubFetcher{})
	container := ex.Extractor().FindContainer(page)
	if container == nil || container.Data != "article" {
		t.Fatalf("FindContainer() = %v", container)
	}

	doc, err := ex.ExtractDocument(context.Background(), Input{Page: page, Container: container})
	if err != nil {
		t.Fatalf("ExtractDocument() error = %v", err)
	}
	if doc.Title != "Page title" {
		t.Errorf("Title = %q", doc.Title)
	}
	want := "<h2>Sub</h2>\n<p>Body text</p>\n<ul><li>a</li><li>b</li></ul>\n"
	if got := doc.ContentHTML(); got != want {
		t.Errorf("ContentHTML() = %q, want %q", got, want)
	}
}

func TestExport_ContainerSkipsUnwantedImages(t *testing.T) {
	page, err := html.Parse(strings.NewReader(`<html><body><article>
		<nav><img src="https://example.com/nav.png" width="300" height="300"></nav>
		<p>Body text</p><img src="https://example.com/photo.png" width="300" height="300">
		<div class="ads"><img src="https://ads.example.com/banner.png" width="600" height="300"></div>
		</article></body></html>`))
	if err != nil {
		t.Fatal(err)
	}
	f := &stubFetcher{serve: map[string]string{
		"https://example.com/photo.png":      "image/png",
		"https://example.com/nav.png":        "image/png",
		"https://ads.example.com/banner.png": "image/png",
	}}
	ex := newTestExporter(t, f)
	container := ex.Extractor().FindContainer(page)
	if container == nil {
		t.Fatal("FindContainer() = nil")
	}

	doc, err := ex.ExtractDocument(context.Background(), Input{Page: page, Container: container})
	if err != nil {
		t.Fatalf("ExtractDocument() error = %v", err)
	}
	if len(doc.Images) != 1 || doc.Images[0].Key != "https://example.com/photo.png" {
		t.Fatalf("images = %+v", doc.Images)
	}
	if len(f.calls) != 1 || f.calls[0] != "https://example.com/photo.png" {
		t.Errorf("fetches = %q", f.calls)
	}
	if got := len(imagesIn(container)); got != 3 {
		t.Errorf("source container was modified, %d images left", got)
	}
}

func imagesIn(n *html.Node) []*html.Node {
	var res []*html.Node
	if n.Type == html.ElementNode && n.Data == "img" {
		res = append(res, n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		res = append(res, imagesIn(c)...)
	}
	return res
}

func TestExport_Errors(t *testing.T) {
	ex := newTestExporter(t, &stubFetcher{})
	tests := []struct {
		name string
		in   Input
		want error
	}{
		{"nothing", Input{}, extract.ErrNoSelection},
		{"blank raw", Input{RawHTML: "  \n "}, extract.ErrNoSelection},
		{"blank fragment", Input{Ranges: []extract.Range{extract.FragmentRange{HTML: "<p> </p>"}}}, extract.ErrNoSelection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ex.Export(context.Background(), tt.in)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Export() error = %v, want %v", err, tt.want)
			}
			var ee *extract.ExtractionError
			if !errors.As(err, &ee) {
				t.Fatalf("error is not ExtractionError: %T", err)
			}
		})
	}
}
