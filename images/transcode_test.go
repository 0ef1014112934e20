package images

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"go.uber.org/zap/zaptest"
	"golang.org/x/image/bmp"
)

func TestTranscoder_Convert(t *testing.T) {
	tr := NewTranscoder(85, zaptest.NewLogger(t))

	t.Run("core type untouched", func(t *testing.T) {
		data := pngBytes(t)
		mt, out, err := tr.Convert(data, "image/png")
		if err != nil || mt != "image/png" || !bytes.Equal(out, data) {
			t.Fatalf("Convert() = %q, %d bytes, %v", mt, len(out), err)
		}
	})

	t.Run("opaque bmp to jpeg", func(t *testing.T) {
		img := image.NewRGBA(image.Rect(0, 0, 4, 4))
		for x := range 4 {
			for y := range 4 {
				img.Set(x, y, color.RGBA{R: 10, G: 200, B: 30, A: 255})
			}
		}
		buf := new(bytes.Buffer)
		if err := bmp.Encode(buf, img); err != nil {
			t.Fatalf("bmp.Encode() error = %v", err)
		}
		mt, out, err := tr.Convert(buf.Bytes(), "image/bmp")
		if err != nil {
			t.Fatalf("Convert() error = %v", err)
		}
		if mt != "image/jpeg" || !bytes.Equal(out[:4], []byte{0xFF, 0xD8, 0xFF, 0xE0}) {
			t.Fatalf("Convert() = %q, % x", mt, out[:4])
		}
		if _, err := jpeg.Decode(bytes.NewReader(out)); err != nil {
			t.Errorf("result is not decodable: %v", err)
		}
	})

	t.Run("svg to png", func(t *testing.T) {
		svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 50"><rect width="100" height="50"/></svg>`)
		mt, out, err := tr.Convert(svg, "image/svg+xml")
		if err != nil || mt != "image/png" {
			t.Fatalf("Convert() = %q, %v", mt, err)
		}
		img, err := png.Decode(bytes.NewReader(out))
		if err != nil {
			t.Fatalf("png.Decode() error = %v", err)
		}
		if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 50 {
			t.Errorf("bounds = %v", img.Bounds())
		}
	})

	t.Run("broken input keeps original", func(t *testing.T) {
		data := []byte("garbage")
		mt, out, err := tr.Convert(data, "image/webp")
		if err == nil {
			t.Fatal("expected error")
		}
		if mt != "image/webp" || !bytes.Equal(out, data) {
			t.Errorf("Convert() = %q, %q", mt, out)
		}
	})
}

func TestFitSize(t *testing.T) {
	tests := []struct {
		name           string
		iw, ih, tw, th int
		w, h           int
	}{
		{"intrinsic", 100, 50, 0, 0, 100, 50},
		{"by width", 100, 50, 200, 0, 200, 100},
		{"by height", 100, 50, 0, 200, 400, 200},
		{"fit box", 100, 50, 150, 150, 150, 75},
		{"clamped", 100000, 50000, 0, 0, 4096, 2048},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := fitSize(tt.iw, tt.ih, tt.tw, tt.th)
			if w != tt.w || h != tt.h {
				t.Errorf("fitSize() = %dx%d, want %dx%d", w, h, tt.w, tt.h)
			}
		})
	}
}

func TestEnsureJFIFAPP0(t *testing.T) {
	data := []byte{0xFF, 0xD8, 0xFF, 0xDB, 0x00, 0x04}
	out, added, err := EnsureJFIFAPP0(data, DensityPerInch, 300, 300)
	if err != nil || !added {
		t.Fatalf("EnsureJFIFAPP0() added=%v err=%v", added, err)
	}
	if len(out) != len(data)+18 || !bytes.Equal(out[2:4], []byte{0xFF, 0xE0}) || string(out[6:10]) != "JFIF" {
		t.Fatalf("unexpected segment % x", out)
	}

	again, added, err := EnsureJFIFAPP0(out, DensityPerInch, 300, 300)
	if err != nil || added || !bytes.Equal(again, out) {
		t.Fatalf("second call changed data")
	}

	if _, _, err := EnsureJFIFAPP0([]byte{0x89, 'P', 'N', 'G'}, DensityNone, 0, 0); err == nil {
		t.Fatal("expected error for non jpeg data")
	}
}
