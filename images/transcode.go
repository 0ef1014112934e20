package images

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Transcoder converts images EPUB 2 readers are not required to support
// into JPEG or PNG. Core media types are returned untouched.
type Transcoder struct {
	quality int
	log     *zap.Logger
}

func NewTranscoder(quality int, log *zap.Logger) *Transcoder {
	return &Transcoder{quality: quality, log: log.Named("transcode")}
}

// Convert returns new mime type and data. On error original data must be
// used by caller.
func (t *Transcoder) Convert(data []byte, mimeType string) (string, []byte, error) {
	mt := strings.ToLower(mimeType)
	switch mt {
	case "image/webp", "image/bmp", "image/x-ms-bmp", "image/tiff":
		img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
		if err != nil {
			return mimeType, data, fmt.Errorf("unable to decode %s: %w", mt, err)
		}
		return t.encode(img)
	case "image/svg+xml":
		img, err := RasterizeSVG(data, 0, 0)
		if err != nil {
			return mimeType, data, fmt.Errorf("unable to rasterize svg: %w", err)
		}
		return t.encodePNG(img)
	}
	return mimeType, data, nil
}

type opaquer interface {
	Opaque() bool
}

func (t *Transcoder) encode(img image.Image) (string, []byte, error) {
	if o, ok := img.(opaquer); ok && !o.Opaque() {
		return t.encodePNG(img)
	}
	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(t.quality)); err != nil {
		return "", nil, fmt.Errorf("unable to encode jpeg: %w", err)
	}
	out, added, err := EnsureJFIFAPP0(buf.Bytes(), DensityPerInch, 300, 300)
	if err != nil {
		return "", nil, err
	}
	if added {
		t.log.Debug("Inserted JFIF APP0 segment")
	}
	return "image/jpeg", out, nil
}

func (t *Transcoder) encodePNG(img image.Image) (string, []byte, error) {
	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression)); err != nil {
		return "", nil, fmt.Errorf("unable to encode png: %w", err)
	}
	return "image/png", buf.Bytes(), nil
}
