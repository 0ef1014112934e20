// Package images collects image references from extracted content, resolves
// and fetches them.
package images

import (
	"strings"

	"go.uber.org/zap"

	"webepub/content"
)

// Source tells where candidate was found.
type Source int

const (
	SourceBlock Source = iota + 1
	SourceKnown
	SourceMarkup
)

func (s Source) String() string {
	switch s {
	case SourceBlock:
		return "block"
	case SourceKnown:
		return "known"
	case SourceMarkup:
		return "markup"
	}
	return "unknown"
}

// Candidate is an image reference not yet resolved.
type Candidate struct {
	// Original is reference as authored
	Original string
	// Resolved is absolute form, empty until resolution
	Resolved string
	Alt      string
	Width    content.Dimension
	Height   content.Dimension
	// Inline is a data URI with image bytes when already known
	Inline string
	Source Source
}

// Collector gathers candidates from blocks, upstream metadata and raw
// markup. Duplicates are kept, Resolver merges them.
type Collector struct {
	minSize int
	log     *zap.Logger
}

// NewCollector returns collector which drops candidates with both known
// dimensions below minSize.
func NewCollector(minSize int, log *zap.Logger) *Collector {
	return &Collector{minSize: minSize, log: log.Named("images")}
}

// Collect concatenates candidates from all sources in order: image blocks,
// known images, markup.
func (c *Collector) Collect(blocks []content.Block, known []content.KnownImage, markup string) []Candidate {
	var all []Candidate
	all = append(all, FromBlocks(blocks)...)
	all = append(all, FromKnown(known)...)
	all = append(all, c.FromMarkup(markup)...)

	res := all[:0]
	for _, cand := range all {
		if cand.Original == "" && cand.Inline == "" {
			continue
		}
		if c.icon(cand) {
			c.log.Debug("Skipping small image", zap.String("ref", shortRef(cand.Original)),
				zap.Stringer("width", cand.Width), zap.Stringer("height", cand.Height))
			continue
		}
		res = append(res, cand)
	}
	c.log.Debug("Image candidates collected", zap.Int("total", len(all)), zap.Int("kept", len(res)))
	return res
}

// icon requires both dimensions to be known, runtime measurements of images
// which were never rendered report zero and must not count.
func (c *Collector) icon(cand Candidate) bool {
	return cand.Width.Below(c.minSize) && cand.Height.Below(c.minSize)
}

// FromBlocks returns candidate for every image block.
func FromBlocks(blocks []content.Block) []Candidate {
	var res []Candidate
	for _, b := range blocks {
		if b.Kind != content.KindImage || b.Image == nil {
			continue
		}
		res = append(res, newCandidate(b.Image.Src, b.Image.Alt, b.Image.Width, b.Image.Height, SourceBlock))
	}
	return res
}

// FromKnown converts images captured upstream.
func FromKnown(known []content.KnownImage) []Candidate {
	res := make([]Candidate, 0, len(known))
	for _, k := range known {
		ref := k.Src
		if strings.TrimSpace(ref) == "" {
			ref = k.Data
		}
		cand := newCandidate(ref, k.Alt, k.Width, k.Height, SourceKnown)
		if IsDataURI(k.Data) {
			cand.Inline = k.Data
		}
		res = append(res, cand)
	}
	return res
}

func newCandidate(ref, alt string, w, h content.Dimension, src Source) Candidate {
	ref = strings.TrimSpace(ref)
	cand := Candidate{Original: ref, Alt: alt, Width: w, Height: h, Source: src}
	if IsDataURI(ref) {
		cand.Inline = ref
	}
	return cand
}
