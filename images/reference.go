package images

import (
	"encoding/base64"
	"errors"
	"fmt"
	"html"
	"mime"
	"net/url"
	"strings"
)

// IsDataURI reports whether ref carries image inline.
func IsDataURI(ref string) bool {
	return len(ref) > 5 && strings.EqualFold(ref[:5], "data:")
}

func isHTTP(u *url.URL) bool {
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// ResolveRef returns absolute form of image reference. Data URIs and
// absolute http(s) URLs are returned unchanged, protocol relative references
// inherit scheme of the page (https when unknown), relative ones are resolved
// against the page. Empty result means reference cannot be used.
func ResolveRef(ref, pageURL string) string {
	ref = strings.TrimSpace(html.UnescapeString(ref))
	if ref == "" {
		return ""
	}
	if IsDataURI(ref) {
		return ref
	}

	var base *url.URL
	if pageURL != "" {
		if u, err := url.Parse(pageURL); err == nil && isHTTP(u) {
			base = u
		}
	}

	if strings.HasPrefix(ref, "//") {
		scheme := "https"
		if base != nil {
			scheme = base.Scheme
		}
		abs := scheme + ":" + ref
		if u, err := url.Parse(abs); err != nil || !isHTTP(u) {
			return ""
		}
		return abs
	}

	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if u.IsAbs() {
		if !isHTTP(u) {
			// javascript:, blob:, file: and the like
			return ""
		}
		return ref
	}
	if base == nil {
		return ""
	}
	return base.ResolveReference(u).String()
}

// StripScheme turns absolute http(s) URL into protocol relative form.
func StripScheme(ref string) string {
	for _, prefix := range []string{"https:", "http:"} {
		if len(ref) > len(prefix) && strings.EqualFold(ref[:len(prefix)], prefix) && strings.HasPrefix(ref[len(prefix):], "//") {
			return ref[len(prefix):]
		}
	}
	return ""
}

// Variants lists forms under which reference may appear in the markup: as
// authored, absolute and protocol relative.
func Variants(ref, pageURL string) []string {
	var res []string
	add := func(s string) {
		for _, v := range res {
			if v == s {
				return
			}
		}
		if s != "" {
			res = append(res, s)
		}
	}
	add(strings.TrimSpace(ref))
	abs := ResolveRef(ref, pageURL)
	add(abs)
	add(StripScheme(abs))
	return res
}

// IdentityKey is resolved reference when known, else normalized original
// reference, else lowercased raw string.
func IdentityKey(original, resolved string) string {
	if resolved != "" {
		return resolved
	}
	ref := strings.TrimSpace(html.UnescapeString(original))
	if ref == "" {
		return strings.ToLower(original)
	}
	u, err := url.Parse(ref)
	if err != nil {
		return strings.ToLower(original)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	return u.String()
}

// ParseDataURI decodes "data:[<media type>][;base64],<data>". Missing media
// type defaults to text/plain as RFC 2397 says, caller decides if it is
// acceptable.
func ParseDataURI(ref string) (string, []byte, error) {
	if !IsDataURI(ref) {
		return "", nil, errors.New("not a data URI")
	}
	header, payload, ok := strings.Cut(ref[5:], ",")
	if !ok {
		return "", nil, errors.New("malformed data URI: no payload separator")
	}

	isBase64 := false
	if h, found := strings.CutSuffix(header, ";base64"); found {
		header, isBase64 = h, true
	}
	mediaType := "text/plain"
	if header != "" {
		mt, _, err := mime.ParseMediaType(header)
		if err != nil {
			return "", nil, fmt.Errorf("malformed data URI media type: %w", err)
		}
		mediaType = mt
	}

	var (
		data []byte
		err  error
	)
	if isBase64 {
		payload = strings.Map(func(r rune) rune {
			if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
				return -1
			}
			return r
		}, payload)
		if data, err = base64.StdEncoding.DecodeString(payload); err != nil {
			if data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "=")); err != nil {
				return "", nil, fmt.Errorf("malformed data URI payload: %w", err)
			}
		}
	} else {
		s, err := url.PathUnescape(payload)
		if err != nil {
			return "", nil, fmt.Errorf("malformed data URI payload: %w", err)
		}
		data = []byte(s)
	}
	if len(data) == 0 {
		return "", nil, errors.New("empty data URI payload")
	}
	return mediaType, data, nil
}

// shortRef keeps log records readable when reference is a data URI.
func shortRef(ref string) string {
	const limit = 96
	if len(ref) <= limit {
		return ref
	}
	return ref[:limit] + "..."
}
