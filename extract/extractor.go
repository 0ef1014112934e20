// Package extract turns DOM subtree or user selection into ordered sequence
// of content blocks.
package extract

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"webepub/config"
	"webepub/content"
	"webepub/content/text"
)

// Input describes what to extract. Container takes precedence over Ranges.
type Input struct {
	// Page is the whole document, used for title detection only
	Page      *html.Node
	Container *html.Node
	Ranges    []Range
	Title     string
}

// Result is extracted title and blocks in document order. In container
// mode Cleaned is the container copy blocks were taken from.
type Result struct {
	Title   string
	Blocks  []content.Block
	Cleaned *html.Node
}

type Extractor struct {
	defaultTitle string
	titles       []cascadia.Selector
	unwanted     cascadia.Selector
	containers   []cascadia.Selector
	log          *zap.Logger
}

func compile(list []string) ([]cascadia.Selector, error) {
	res := make([]cascadia.Selector, 0, len(list))
	for _, s := range list {
		sel, err := cascadia.Compile(s)
		if err != nil {
			return nil, fmt.Errorf("bad selector %q: %w", s, err)
		}
		res = append(res, sel)
	}
	return res, nil
}

// New prepares extractor, all configured selectors are compiled once here.
func New(cfg *config.DocumentConfig, log *zap.Logger) (*Extractor, error) {
	e := &Extractor{defaultTitle: cfg.DefaultTitle, log: log.Named("extract")}

	var err error
	if e.titles, err = compile(cfg.TitleSelectors); err != nil {
		return nil, fmt.Errorf("unable to prepare title selectors: %w", err)
	}
	if e.containers, err = compile(cfg.ContainerSelectors); err != nil {
		return nil, fmt.Errorf("unable to prepare container selectors: %w", err)
	}
	if _, err = compile(cfg.UnwantedSelectors); err != nil {
		return nil, fmt.Errorf("unable to prepare unwanted selectors: %w", err)
	}
	if len(cfg.UnwantedSelectors) > 0 {
		// single group keeps removal to one pass over the tree
		e.unwanted = cascadia.MustCompile(strings.Join(cfg.UnwantedSelectors, ", "))
	}
	return e, nil
}

// Extract runs container or selection mode and detects title.
func (e *Extractor) Extract(in Input) (*Result, error) {
	var (
		blocks  []content.Block
		cleaned *html.Node
	)
	switch {
	case in.Container != nil:
		cleaned = e.Clean(in.Container)
		blocks = e.blocksOf(cleaned)
	case len(in.Ranges) > 0:
		if !hasText(in.Ranges) {
			return nil, ErrNoSelection
		}
		blocks = e.Selection(in.Ranges)
	default:
		return nil, ErrNoSelection
	}
	if len(blocks) == 0 {
		return nil, ErrEmptyContent
	}

	title := text.Normalize(in.Title)
	if title == "" {
		title = e.Title(in.Page)
	}
	e.log.Debug("Content extracted", zap.String("title", title), zap.Int("blocks", len(blocks)))
	return &Result{Title: title, Blocks: blocks, Cleaned: cleaned}, nil
}

func hasText(ranges []Range) bool {
	for _, r := range ranges {
		if r != nil && strings.TrimSpace(r.String()) != "" {
			return true
		}
	}
	return false
}

// Title returns text of the first configured title selector which matches
// non-empty element, or default title.
func (e *Extractor) Title(page *html.Node) string {
	if page != nil {
		for _, sel := range e.titles {
			if n := cascadia.Query(page, sel); n != nil {
				if t := text.Normalize(textContent(n)); t != "" {
					return t
				}
			}
		}
	}
	return e.defaultTitle
}

// FindContainer returns the first element matching configured container
// selectors in their priority order.
func (e *Extractor) FindContainer(page *html.Node) *html.Node {
	if page == nil {
		return nil
	}
	for _, sel := range e.containers {
		if n := cascadia.Query(page, sel); n != nil {
			return n
		}
	}
	return nil
}
