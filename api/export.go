package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"webepub/content"
	"webepub/convert"
	"webepub/extract"
)

// ExportRequest is body of POST /api/export. HTML is the whole page,
// Selections are serialized selection ranges.
type ExportRequest struct {
	URL        string         `json:"url"`
	Title      string         `json:"title"`
	HTML       string         `json:"html"`
	Selector   string         `json:"selector"`
	Selections []string       `json:"selections"`
	Images     []ImageRequest `json:"images"`
}

// ImageRequest describes image captured by the client.
type ImageRequest struct {
	Src    string    `json:"src"`
	Data   string    `json:"data"`
	Alt    string    `json:"alt"`
	Width  dimension `json:"width"`
	Height dimension `json:"height"`
}

// dimension accepts both numbers and attribute strings like "120px".
type dimension content.Dimension

func (d *dimension) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*d = dimension{}
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*d = dimension(content.ParseDimension(s))
		return nil
	}
	n, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("bad image dimension %s: %w", b, err)
	}
	if n < 0 {
		*d = dimension{}
		return nil
	}
	*d = dimension(content.Pixels(int(n)))
	return nil
}

func (r *ExportRequest) input() (convert.Input, error) {
	in := convert.Input{PageURL: strings.TrimSpace(r.URL), Title: r.Title}

	for _, img := range r.Images {
		in.Images = append(in.Images, content.KnownImage{
			Src:    img.Src,
			Data:   img.Data,
			Alt:    img.Alt,
			Width:  content.Dimension(img.Width),
			Height: content.Dimension(img.Height),
		})
	}

	if strings.TrimSpace(r.HTML) != "" {
		root, err := html.Parse(strings.NewReader(r.HTML))
		if err != nil {
			return in, fmt.Errorf("unable to parse page: %w", err)
		}
		in.Page = root
	}

	for _, s := range r.Selections {
		if strings.TrimSpace(s) == "" {
			continue
		}
		in.Ranges = append(in.Ranges, extract.FragmentRange{HTML: s})
	}
	if len(in.Ranges) > 0 || in.Page == nil {
		return in, nil
	}

	if r.Selector != "" {
		sel := goquery.NewDocumentFromNode(in.Page).Find(r.Selector).First()
		if sel.Length() > 0 {
			in.Container = sel.Get(0)
		}
	}
	return in, nil
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxRequestBytes)

	var req ExportRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			jsonError(w, fmt.Sprintf("request exceeds max size (%d bytes)", tooBig.Limit), http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, "invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}

	in, err := req.input()
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Selector != "" && len(in.Ranges) == 0 && in.Container == nil && in.Page != nil {
		jsonError(w, fmt.Sprintf("no element matches selector %q", req.Selector), http.StatusUnprocessableEntity)
		return
	}
	if in.Container == nil && len(in.Ranges) == 0 && in.Page != nil {
		in.Container = s.exporter.Extractor().FindContainer(in.Page)
	}

	res, _, err := s.exporter.Export(r.Context(), in)
	if err != nil {
		var exErr *extract.ExtractionError
		if errors.As(err, &exErr) {
			jsonError(w, exErr.Error(), http.StatusUnprocessableEntity)
			return
		}
		s.log.Error("Export failed", zap.Error(err))
		jsonError(w, "export failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/epub+zip")
	w.Header().Set("Content-Disposition", contentDisposition(res.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}

// contentDisposition keeps plain quoted form for ASCII names and falls back
// to RFC 2231 encoding otherwise.
func contentDisposition(name string) string {
	for i := 0; i < len(name); i++ {
		if c := name[i]; c < 0x20 || c > 0x7e || c == '"' || c == '\\' {
			return mime.FormatMediaType("attachment", map[string]string{"filename": name})
		}
	}
	return `attachment; filename="` + name + `"`
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
