// Package convert is the export boundary: it ties extraction, image
// resolution and packaging together.
package convert

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"webepub/config"
	"webepub/content"
	"webepub/convert/epub"
	"webepub/extract"
	"webepub/images"
)

// Input is everything known about a single export request.
type Input struct {
	// Page is the whole document, used for title detection
	Page      *html.Node
	Container *html.Node
	Ranges    []extract.Range
	// RawHTML is serialized selection markup, used as selection when
	// neither Container nor Ranges are given
	RawHTML string
	PageURL string
	Title   string
	// Images were captured upstream
	Images []content.KnownImage
}

// Exporter runs export pipeline. It keeps no per request state.
type Exporter struct {
	extractor *extract.Extractor
	collector *images.Collector
	resolver  *images.Resolver
	packager  *epub.Packager
	now       func() time.Time
	log       *zap.Logger
}

type exporterOptions struct {
	primary   images.Fetcher
	secondary images.Fetcher
	packager  []epub.Option
	now       func() time.Time
}

type ExporterOption func(*exporterOptions)

// WithFetchers replaces transport strategies built from configuration.
func WithFetchers(primary, secondary images.Fetcher) ExporterOption {
	return func(o *exporterOptions) {
		o.primary, o.secondary = primary, secondary
	}
}

func WithPackagerOptions(opts ...epub.Option) ExporterOption {
	return func(o *exporterOptions) {
		o.packager = append(o.packager, opts...)
	}
}

// WithNow sets clock used for capture timestamps.
func WithNow(now func() time.Time) ExporterOption {
	return func(o *exporterOptions) {
		o.now = now
	}
}

// NewExporter builds pipeline from configuration.
func NewExporter(cfg *config.Config, style []byte, log *zap.Logger, opts ...ExporterOption) (*Exporter, error) {
	o := exporterOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	ex, err := extract.New(&cfg.Document, log)
	if err != nil {
		return nil, err
	}

	if o.primary == nil {
		o.primary = images.NewPrimaryFetcher(&cfg.Images)
		secondary, err := images.NewSecondaryFetcher(&cfg.Images)
		if err != nil {
			return nil, err
		}
		o.secondary = secondary
	}
	ropts := []images.ResolverOption{
		images.WithConcurrency(cfg.Images.Concurrency),
		images.WithTimeout(cfg.Images.Timeout),
	}
	if cfg.Images.Transcode {
		ropts = append(ropts, images.WithTranscoder(images.NewTranscoder(cfg.Images.JPEGQuality, log)))
	}

	pk, err := epub.New(&cfg.Document, style, log, o.packager...)
	if err != nil {
		return nil, fmt.Errorf("unable to prepare packager: %w", err)
	}

	return &Exporter{
		extractor: ex,
		collector: images.NewCollector(cfg.Images.MinSize, log),
		resolver:  images.NewResolver(o.primary, o.secondary, log, ropts...),
		packager:  pk,
		now:       o.now,
		log:       log.Named("export"),
	}, nil
}

// Extractor gives access to container lookup and title detection.
func (e *Exporter) Extractor() *extract.Extractor {
	return e.extractor
}

// ExtractDocument extracts blocks and resolves images. ExtractionError is
// returned when there is nothing to export.
func (e *Exporter) ExtractDocument(ctx context.Context, in Input) (*content.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ranges := in.Ranges
	if in.Container == nil && len(ranges) == 0 && strings.TrimSpace(in.RawHTML) != "" {
		ranges = []extract.Range{extract.FragmentRange{HTML: in.RawHTML}}
	}

	res, err := e.extractor.Extract(extract.Input{
		Page:      in.Page,
		Container: in.Container,
		Ranges:    ranges,
		Title:     in.Title,
	})
	if err != nil {
		return nil, err
	}

	// images of removed unwanted subtrees are not collected
	markup := in.RawHTML
	if markup == "" {
		markup = renderMarkup(res.Cleaned, ranges)
	}
	candidates := e.collector.Collect(res.Blocks, in.Images, markup)
	resolved := e.resolver.Resolve(ctx, candidates, in.PageURL)

	return &content.Document{
		Title:      res.Title,
		Blocks:     res.Blocks,
		Images:     resolved,
		SourceURL:  in.PageURL,
		CapturedAt: e.now().UTC(),
	}, nil
}

// PackageEpub produces archive for extracted document.
func (e *Exporter) PackageEpub(ctx context.Context, doc *content.Document) (*epub.Result, error) {
	return e.packager.Package(ctx, doc)
}

// Export runs whole pipeline.
func (e *Exporter) Export(ctx context.Context, in Input) (*epub.Result, *content.Document, error) {
	start := time.Now()
	doc, err := e.ExtractDocument(ctx, in)
	if err != nil {
		return nil, nil, err
	}
	res, err := e.PackageEpub(ctx, doc)
	if err != nil {
		return nil, doc, err
	}
	e.log.Info("Export completed",
		zap.String("title", doc.Title),
		zap.String("file", res.Filename),
		zap.Int("blocks", len(doc.Blocks)),
		zap.Int("images", len(doc.Images)),
		zap.Duration("elapsed", time.Since(start)))
	return res, doc, nil
}

// renderMarkup serializes what image scanner should look at.
func renderMarkup(container *html.Node, ranges []extract.Range) string {
	var b strings.Builder
	if container != nil {
		_ = html.Render(&b, container)
		return b.String()
	}
	for _, r := range ranges {
		if r == nil {
			continue
		}
		nodes, err := r.CloneContents()
		if err != nil {
			continue
		}
		for _, n := range nodes {
			_ = html.Render(&b, n)
		}
	}
	return b.String()
}
