package bookcompiler

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// maxCoverPixels bounds the longer side of an embedded cover.
const maxCoverPixels = 2400

type preparedCover struct {
	Type          string
	Data          []byte
	Width, Height int
}

// prepareCover turns the cover bytes into something the painter can embed.
// JPEGs within bounds are embedded as-is; everything else is re-encoded as an
// 8-bit PNG, downscaled when larger than maxCoverPixels.
func prepareCover(c *CoverImage) (preparedCover, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(c.Data))
	if err != nil {
		return preparedCover{}, fmt.Errorf("decoding cover %q: %w", c.Name, err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return preparedCover{}, fmt.Errorf("cover %q has no pixels", c.Name)
	}

	if format == "jpeg" && max(cfg.Width, cfg.Height) <= maxCoverPixels {
		return preparedCover{Type: "JPG", Data: c.Data, Width: cfg.Width, Height: cfg.Height}, nil
	}

	src, _, err := image.Decode(bytes.NewReader(c.Data))
	if err != nil {
		return preparedCover{}, fmt.Errorf("decoding cover %q: %w", c.Name, err)
	}

	w, h := fitPixels(cfg.Width, cfg.Height, maxCoverPixels)
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	if w == cfg.Width && h == cfg.Height {
		draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return preparedCover{}, fmt.Errorf("encoding cover %q: %w", c.Name, err)
	}
	return preparedCover{Type: "PNG", Data: buf.Bytes(), Width: w, Height: h}, nil
}

// fitPixels scales w x h down so that neither side exceeds limit.
func fitPixels(w, h, limit int) (int, int) {
	longest := max(w, h)
	if longest <= limit {
		return w, h
	}
	return max(1, w*limit/longest), max(1, h*limit/longest)
}

// fitBox centers an image of iw x ih pixels inside the box, keeping its
// aspect ratio.
func fitBox(iw, ih int, x, y, w, h float64) (float64, float64, float64, float64) {
	scale := min(w/float64(iw), h/float64(ih))
	dw, dh := float64(iw)*scale, float64(ih)*scale
	return x + (w-dw)/2, y + (h-dh)/2, dw, dh
}
