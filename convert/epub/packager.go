// Package epub packages extracted documents as EPUB 2.0.1 archives.
package epub

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"webepub/config"
	"webepub/content"
)

//go:embed default.css
var defaultStylesheet []byte

// DefaultStylesheet returns built-in styles.css content.
func DefaultStylesheet() []byte {
	return bytes.Clone(defaultStylesheet)
}

const (
	mimetypeContent = "application/epub+zip"
	oebpsDir        = "OEBPS"
	imagesDir       = "images"
	chapterFile     = "chapter1.xhtml"
	stylesFile      = "styles.css"
)

// PackagingError is returned when archive could not be produced.
type PackagingError struct {
	Err error
}

func (e *PackagingError) Error() string {
	return "unable to package epub: " + e.Err.Error()
}

func (e *PackagingError) Unwrap() error {
	return e.Err
}

// Result is produced archive.
type Result struct {
	Data     []byte
	Filename string
}

// manifestEntry is derived from resolved image, owned by packager.
type manifestEntry struct {
	ID        string
	Filename  string
	MediaType string
	image     *content.ResolvedImage
}

func (m *manifestEntry) href() string {
	return imagesDir + "/" + m.Filename
}

// Packager produces archives. It keeps no per document state and may be
// used concurrently.
type Packager struct {
	cfg     *config.DocumentConfig
	style   []byte
	factory ArchiveFactory
	now     func() time.Time
	newID   func() (string, error)
	log     *zap.Logger
}

type Option func(*Packager)

func WithArchiveFactory(f ArchiveFactory) Option {
	return func(p *Packager) {
		p.factory = f
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Packager) {
		p.now = now
	}
}

// WithIDGenerator replaces generator of book unique identifier.
func WithIDGenerator(gen func() (string, error)) Option {
	return func(p *Packager) {
		p.newID = gen
	}
}

func newUUID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return "urn:uuid:" + id.String(), nil
}

// New returns packager, empty style selects built-in style sheet.
func New(cfg *config.DocumentConfig, style []byte, log *zap.Logger, opts ...Option) (*Packager, error) {
	p := &Packager{
		cfg:     cfg,
		style:   style,
		factory: NewZipArchive,
		now:     time.Now,
		newID:   newUUID,
		log:     log.Named("epub"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.factory == nil {
		return nil, errors.New("no archive factory")
	}
	if p.now == nil || p.newID == nil {
		return nil, errors.New("clock and id generator are required")
	}
	if len(p.style) == 0 {
		p.style = defaultStylesheet
	} else {
		p.style = sanitizeStylesheet(p.style, p.log)
	}
	return p, nil
}

// Package builds archive for doc.
func (p *Packager) Package(ctx context.Context, doc *content.Document) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id, err := p.newID()
	if err != nil {
		return nil, &PackagingError{Err: fmt.Errorf("unable to generate book id: %w", err)}
	}
	ts := doc.CapturedAt
	if ts.IsZero() {
		ts = p.now()
	}

	entries := manifestEntries(doc.Images)
	chapter := p.chapter(doc, entries)

	buf := new(bytes.Buffer)
	if err := p.write(buf, doc, id, ts, entries, chapter); err != nil {
		return nil, &PackagingError{Err: err}
	}

	data := buf.Bytes()
	if p.cfg.FixZip {
		if data, err = withoutDataDescriptors(data); err != nil {
			return nil, &PackagingError{Err: err}
		}
	}

	name, err := Filename(doc, ts, p.cfg)
	if err != nil {
		p.log.Warn("Unable to expand output name template, using default name", zap.Error(err))
		name = baseName(doc.Title, p.cfg.FileNameTransliterate) + "_" + ts.UTC().Format(time.DateOnly) + ".epub"
	}

	p.log.Debug("EPUB packaged",
		zap.String("file", name),
		zap.Int("blocks", len(doc.Blocks)),
		zap.Int("images", len(entries)),
		zap.Int("size", len(data)))
	return &Result{Data: data, Filename: name}, nil
}

func (p *Packager) write(buf *bytes.Buffer, doc *content.Document, id string, ts time.Time, entries []manifestEntry, chapter *etree.Document) error {
	arc, err := p.factory(buf, ts)
	if err != nil {
		return fmt.Errorf("unable to create archive: %w", err)
	}
	if arc == nil {
		return errors.New("archive factory returned nothing")
	}

	if err := arc.WriteStored("mimetype", []byte(mimetypeContent)); err != nil {
		return fmt.Errorf("unable to write mimetype: %w", err)
	}

	files := []struct {
		name string
		doc  *etree.Document
	}{
		{"META-INF/container.xml", containerXML()},
		{oebpsDir + "/content.opf", p.opf(doc, id, ts, entries)},
		{oebpsDir + "/toc.ncx", ncx(doc.Title, id)},
	}
	for _, f := range files {
		if err := writeXML(arc, f.name, f.doc); err != nil {
			return fmt.Errorf("unable to write %s: %w", f.name, err)
		}
	}

	if err := arc.Write(oebpsDir+"/"+stylesFile, p.style); err != nil {
		return fmt.Errorf("unable to write stylesheet: %w", err)
	}
	if err := writeXML(arc, oebpsDir+"/"+chapterFile, chapter); err != nil {
		return fmt.Errorf("unable to write chapter: %w", err)
	}
	for i := range entries {
		if err := arc.Write(oebpsDir+"/"+entries[i].href(), entries[i].image.Data); err != nil {
			return fmt.Errorf("unable to write image %s: %w", entries[i].Filename, err)
		}
	}

	if err := arc.Close(); err != nil {
		return fmt.Errorf("unable to close archive: %w", err)
	}
	return nil
}

func writeXML(arc Archive, name string, doc *etree.Document) error {
	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		return err
	}
	return arc.Write(name, buf.Bytes())
}

func manifestEntries(images []content.ResolvedImage) []manifestEntry {
	res := make([]manifestEntry, 0, len(images))
	for i := range images {
		ext, mt := imageType(images[i].MIME)
		id := fmt.Sprintf("img_%d", i+1)
		res = append(res, manifestEntry{
			ID:        id,
			Filename:  id + "." + ext,
			MediaType: mt,
			image:     &images[i],
		})
	}
	return res
}

// imageType returns file extension and manifest media type, anything not
// recognized is treated as jpeg.
func imageType(mimeType string) (string, string) {
	switch mt := strings.ToLower(mimeType); mt {
	case "image/png":
		return "png", mt
	case "image/gif":
		return "gif", mt
	case "image/webp":
		return "webp", mt
	case "image/svg+xml":
		return "svg", mt
	}
	return "jpg", "image/jpeg"
}
