package images

import (
	"html"
	"io"
	"regexp"
	"strings"

	"github.com/tdewolff/parse/v2"
	thtml "github.com/tdewolff/parse/v2/html"
	"go.uber.org/zap"

	"webepub/content"
)

// FromMarkup finds img elements in raw markup. Tolerant lexer is used first,
// regular expression scan only when lexer finds nothing.
func (c *Collector) FromMarkup(markup string) []Candidate {
	if strings.TrimSpace(markup) == "" {
		return nil
	}
	res, err := lexImages(markup)
	if err != nil {
		c.log.Debug("Markup lexer stopped early", zap.Error(err))
	}
	if len(res) == 0 {
		if res = scanImages(markup); len(res) > 0 {
			c.log.Debug("Images recovered by pattern scan", zap.Int("count", len(res)))
		}
	}
	return res
}

// imgAttrs keeps first occurrence of each interesting attribute.
type imgAttrs map[string]string

func (a imgAttrs) set(key, val string) {
	switch key {
	case "src", "data-src", "alt", "width", "height":
		if _, ok := a[key]; !ok {
			a[key] = val
		}
	}
}

func (a imgAttrs) candidate() (Candidate, bool) {
	ref := strings.TrimSpace(a["src"])
	if ref == "" {
		ref = strings.TrimSpace(a["data-src"])
	}
	if ref == "" {
		return Candidate{}, false
	}
	return newCandidate(ref, a["alt"], content.ParseDimension(a["width"]), content.ParseDimension(a["height"]), SourceMarkup), true
}

func lexImages(markup string) ([]Candidate, error) {
	var (
		res   []Candidate
		attrs imgAttrs
	)
	l := thtml.NewLexer(parse.NewInputString(markup))
	for {
		tt, _ := l.Next()
		switch tt {
		case thtml.ErrorToken:
			if err := l.Err(); err != nil && err != io.EOF {
				return res, err
			}
			return res, nil
		case thtml.StartTagToken:
			attrs = nil
			if strings.EqualFold(string(l.Text()), "img") {
				attrs = imgAttrs{}
			}
		case thtml.AttributeToken:
			if attrs != nil {
				attrs.set(strings.ToLower(string(l.Text())), html.UnescapeString(unquote(string(l.AttrVal()))))
			}
		case thtml.StartTagCloseToken, thtml.StartTagVoidToken:
			if attrs != nil {
				if cand, ok := attrs.candidate(); ok {
					res = append(res, cand)
				}
			}
			attrs = nil
		}
	}
}

func unquote(v string) string {
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1]
	}
	return v
}

var (
	imgTagRe  = regexp.MustCompile(`(?is)<img\b[^>]*>`)
	imgAttrRe = regexp.MustCompile(`(?is)\b(data-src|src|alt|width|height)\s*=\s*(?:"([^"]*)"|'([^']*)')`)
)

// scanImages is best effort, it does not understand unquoted values or
// markup inside attribute values.
func scanImages(markup string) []Candidate {
	var res []Candidate
	for _, tag := range imgTagRe.FindAllString(markup, -1) {
		attrs := imgAttrs{}
		for _, m := range imgAttrRe.FindAllStringSubmatch(tag, -1) {
			val := m[2]
			if val == "" {
				val = m[3]
			}
			attrs.set(strings.ToLower(m[1]), html.UnescapeString(val))
		}
		if cand, ok := attrs.candidate(); ok {
			res = append(res, cand)
		}
	}
	return res
}
