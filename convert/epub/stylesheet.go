package epub

import (
	"bytes"
	"errors"
	"io"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

// sanitizeStylesheet drops @import rules since imported sheets are never
// packaged. Other references to external resources are only reported.
// Stylesheet which could not be tokenized is returned as is.
func sanitizeStylesheet(data []byte, log *zap.Logger) []byte {
	l := css.NewLexer(parse.NewInput(bytes.NewReader(data)))

	var (
		out       bytes.Buffer
		importing bool
		inURL     bool
	)
	for {
		tt, text := l.Next()
		switch tt {
		case css.ErrorToken:
			if err := l.Err(); err != nil && !errors.Is(err, io.EOF) {
				log.Warn("Unable to check stylesheet, using it unchanged", zap.Error(err))
				return data
			}
			return out.Bytes()
		case css.AtKeywordToken:
			if strings.EqualFold(string(text), "@import") {
				importing = true
			}
		case css.SemicolonToken:
			if importing {
				importing = false
				continue
			}
		case css.URLToken:
			ref := urlValue(text)
			if importing {
				log.Warn("Dropping stylesheet import", zap.String("url", ref))
			} else {
				reportReference(ref, log)
			}
		case css.FunctionToken:
			inURL = strings.EqualFold(string(text), "url(")
		case css.StringToken:
			ref := unquote(string(text))
			switch {
			case importing:
				log.Warn("Dropping stylesheet import", zap.String("url", ref))
			case inURL:
				reportReference(ref, log)
			}
			inURL = false
		}
		if !importing {
			out.Write(text)
		}
	}
}

func reportReference(ref string, log *zap.Logger) {
	if ref == "" || strings.HasPrefix(strings.ToLower(ref), "data:") {
		return
	}
	log.Warn("Stylesheet references resource which is not packaged", zap.String("url", ref))
}

// urlValue returns reference from url(...) token.
func urlValue(text []byte) string {
	s := string(text)
	if i := strings.IndexByte(s, '('); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(s, ")")
	return unquote(strings.TrimSpace(s))
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
