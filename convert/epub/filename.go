package epub

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"text/template"
	"time"

	sprig "github.com/go-task/slim-sprig/v3"
	"github.com/gosimple/slug"

	"webepub/config"
	"webepub/content"
)

const (
	maxNameLen  = 50
	defaultName = "book"
)

var (
	nonNameRe = regexp.MustCompile(`[^\w\s-]`)
	spacesRe  = regexp.MustCompile(`\s+`)
)

// Values are available to output name template.
type Values struct {
	Context string
	Title   string
	// Date is capture date, YYYY-MM-DD
	Date string
	// Host is page host name when known
	Host string
	// Name is default file name without extension
	Name string
}

// baseName keeps word characters, spaces and hyphens of title, spaces
// become underscores.
func baseName(title string, transliterate bool) string {
	if transliterate {
		title = strings.ReplaceAll(slug.Make(title), "-", " ")
	}
	name := spacesRe.ReplaceAllString(nonNameRe.ReplaceAllString(title, ""), "_")
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	if strings.Trim(name, "_-") == "" {
		return defaultName
	}
	return name
}

// Filename returns archive file name for the document captured at ts.
func Filename(doc *content.Document, ts time.Time, cfg *config.DocumentConfig) (string, error) {
	date := ts.UTC().Format(time.DateOnly)
	name := baseName(doc.Title, cfg.FileNameTransliterate) + "_" + date
	if cfg.OutputNameTemplate == "" {
		return name + ".epub", nil
	}

	values := Values{
		Context: string(config.OutputNameTemplateFieldName),
		Title:   doc.Title,
		Date:    date,
		Name:    name,
	}
	if u, err := url.Parse(doc.SourceURL); err == nil {
		values.Host = u.Hostname()
	}
	expanded, err := expandTemplate(config.OutputNameTemplateFieldName, cfg.OutputNameTemplate, values)
	if err != nil {
		return "", err
	}
	expanded = config.CleanFileName(strings.TrimSuffix(strings.TrimSpace(expanded), ".epub"))
	return expanded + ".epub", nil
}

func expandTemplate(name config.TemplateFieldName, field string, values Values) (string, error) {
	tmpl, err := template.New(string(name)).Funcs(sprig.FuncMap()).Parse(field)
	if err != nil {
		return "", fmt.Errorf("unable to parse template field %s: %w", name, err)
	}
	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, values); err != nil {
		return "", fmt.Errorf("unable to expand template field %s: %w", name, err)
	}
	return buf.String(), nil
}
