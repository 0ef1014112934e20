package images

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// defaultSVGSize is used when viewBox does not give size.
const defaultSVGSize = 1024

// maxRasterDim limits either side of rasterized SVG, viewBox values are
// attacker controlled and RGBA buffer grows quadratically.
var maxRasterDim = 4096

// RasterizeSVG renders SVG on white background. Zero target dimensions keep
// intrinsic size, a single one scales keeping aspect ratio, both fit into box.
func RasterizeSVG(data []byte, targetW, targetH int) (image.Image, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	iw, ih := int(math.Ceil(icon.ViewBox.W)), int(math.Ceil(icon.ViewBox.H))
	if iw <= 0 {
		iw = defaultSVGSize
	}
	if ih <= 0 {
		ih = defaultSVGSize
	}
	w, h := fitSize(iw, ih, targetW, targetH)

	icon.SetTarget(0, 0, float64(w), float64(h))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(w, h, dst, dst.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1.0)
	return dst, nil
}

func fitSize(iw, ih, tw, th int) (int, int) {
	w, h := iw, ih
	switch {
	case tw > 0 && th > 0:
		s := math.Min(float64(tw)/float64(iw), float64(th)/float64(ih))
		w, h = int(math.Round(float64(iw)*s)), int(math.Round(float64(ih)*s))
	case tw > 0:
		w, h = tw, int(math.Round(float64(tw)*float64(ih)/float64(iw)))
	case th > 0:
		w, h = int(math.Round(float64(th)*float64(iw)/float64(ih))), th
	}
	w, h = max(w, 1), max(h, 1)
	if w > maxRasterDim || h > maxRasterDim {
		s := math.Min(float64(maxRasterDim)/float64(w), float64(maxRasterDim)/float64(h))
		w, h = max(int(math.Round(float64(w)*s)), 1), max(int(math.Round(float64(h)*s)), 1)
	}
	return w, h
}
