package images

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"

	"github.com/h2non/filetype"
	"golang.org/x/net/proxy"

	"webepub/config"
)

// Payload is fetched image.
type Payload struct {
	MIME string
	Data []byte
}

// Fetcher is a single transport strategy.
type Fetcher interface {
	Fetch(ctx context.Context, ref, referer string) (*Payload, error)
	Name() string
}

// HTTPFetcher fetches images over HTTP and validates response.
type HTTPFetcher struct {
	name        string
	client      *http.Client
	userAgent   string
	maxBytes    int64
	sendReferer bool
	// lenient allows responses without content type, type is sniffed then
	lenient bool
}

func (f *HTTPFetcher) Name() string {
	return f.name
}

// NewPrimaryFetcher returns strategy using pooled keep-alive connections
// which looks like a browser to the origin.
func NewPrimaryFetcher(cfg *config.ImagesConfig) *HTTPFetcher {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.MaxIdleConnsPerHost = max(cfg.Concurrency, 2)
	return &HTTPFetcher{
		name:        "primary",
		client:      &http.Client{Transport: tr},
		userAgent:   cfg.UserAgent,
		maxBytes:    cfg.MaxBytes,
		sendReferer: true,
	}
}

// NewSecondaryFetcher returns strategy with its own transport: HTTP/1.1
// only, no connection reuse, optionally through SOCKS5 proxy.
func NewSecondaryFetcher(cfg *config.ImagesConfig) (*HTTPFetcher, error) {
	tr := &http.Transport{
		Proxy:             nil,
		DisableKeepAlives: true,
		ForceAttemptHTTP2: false,
		TLSNextProto:      map[string]func(string, *tls.Conn) http.RoundTripper{},
	}

	sec := &cfg.Secondary
	if sec.Proxy != "" {
		var auth *proxy.Auth
		if sec.ProxyUser != "" {
			auth = &proxy.Auth{User: sec.ProxyUser, Password: sec.ProxyPassword.Reveal()}
		}
		dialer, err := proxy.SOCKS5("tcp", sec.Proxy, auth, &net.Dialer{Timeout: cfg.Timeout})
		if err != nil {
			return nil, fmt.Errorf("unable to create socks5 dialer for %s: %w", sec.Proxy, err)
		}
		cd, ok := dialer.(proxy.ContextDialer)
		if !ok {
			return nil, errors.New("socks5 dialer does not support context")
		}
		tr.DialContext = cd.DialContext
	} else {
		tr.DialContext = (&net.Dialer{Timeout: cfg.Timeout}).DialContext
	}

	return &HTTPFetcher{
		name:      "secondary",
		client:    &http.Client{Transport: tr},
		userAgent: sec.UserAgent,
		maxBytes:  cfg.MaxBytes,
		lenient:   true,
	}, nil
}

// Fetch gets ref, anything other than 2xx response with image content is an
// error.
func (f *HTTPFetcher) Fetch(ctx context.Context, ref, referer string) (*Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: bad request: %w", f.name, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "image/avif,image/webp,image/png,image/svg+xml,image/*;q=0.8,*/*;q=0.5")
	if f.sendReferer && referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%s: unexpected status %s", f.name, resp.Status)
	}

	mt, err := f.mediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to read body: %w", f.name, err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("%s: image larger than %d bytes", f.name, f.maxBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s: empty body", f.name)
	}

	if mt == "" {
		if mt, err = sniff(data); err != nil {
			return nil, fmt.Errorf("%s: %w", f.name, err)
		}
	}
	return &Payload{MIME: mt, Data: data}, nil
}

// mediaType returns empty string when lenient fetcher got no content type.
func (f *HTTPFetcher) mediaType(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		if f.lenient {
			return "", nil
		}
		return "", fmt.Errorf("%s: no content type", f.name)
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return "", fmt.Errorf("%s: bad content type %q: %w", f.name, header, err)
	}
	if !strings.HasPrefix(mt, "image/") {
		return "", fmt.Errorf("%s: not an image, content type %q", f.name, mt)
	}
	return mt, nil
}

// svgSniffLen is how far into markup the svg root element is looked for
const svgSniffLen = 1024

// sniff detects image type of untyped body. Unrecognized bytes default to
// image/jpeg unless they are markup other than SVG, error pages are often
// served without content type.
func sniff(data []byte) (string, error) {
	if kind, err := filetype.Image(data); err == nil && kind != filetype.Unknown {
		return kind.MIME.Value, nil
	}
	trimmed := bytes.TrimLeft(data, " \t\r\n\ufeff")
	if len(trimmed) == 0 || trimmed[0] != '<' {
		return "image/jpeg", nil
	}
	if bytes.Contains(bytes.ToLower(trimmed[:min(len(trimmed), svgSniffLen)]), []byte("<svg")) {
		return "image/svg+xml", nil
	}
	return "", errors.New("untyped body is markup, not an image")
}
