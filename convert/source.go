package convert

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"webepub/config"
)

// maxPageBytes limits page download.
const maxPageBytes = 32 << 20

// page is parsed source document.
type page struct {
	root *html.Node
	// url is page address when source was fetched
	url string
}

func isURL(src string) bool {
	u, err := url.Parse(src)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// loadPage reads local file or fetches page, charset is detected from
// response headers and document itself.
func loadPage(ctx context.Context, src string, cfg *config.ImagesConfig) (*page, error) {
	if isURL(src) {
		return fetchPage(ctx, src, cfg)
	}

	f, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("unable to open source: %w", err)
	}
	defer f.Close()

	root, err := parsePage(f, "")
	if err != nil {
		return nil, err
	}
	return &page{root: root}, nil
}

func fetchPage(ctx context.Context, src string, cfg *config.ImagesConfig) (*page, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("bad source url: %w", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch source: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unable to fetch source: %s", resp.Status)
	}
	ct := resp.Header.Get("Content-Type")
	if ct != "" && !strings.Contains(ct, "html") {
		return nil, fmt.Errorf("source is not html: %s", ct)
	}

	root, err := parsePage(io.LimitReader(resp.Body, maxPageBytes), ct)
	if err != nil {
		return nil, err
	}
	// redirects change base for relative references
	return &page{root: root, url: resp.Request.URL.String()}, nil
}

func parsePage(r io.Reader, contentType string) (*html.Node, error) {
	utf8, err := charset.NewReader(r, contentType)
	if err != nil {
		return nil, fmt.Errorf("unable to detect page encoding: %w", err)
	}
	root, err := html.Parse(utf8)
	if err != nil {
		return nil, fmt.Errorf("unable to parse page: %w", err)
	}
	return root, nil
}
