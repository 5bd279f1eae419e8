package bookcompiler

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

func pngCover(t *testing.T, w, h int) *CoverImage {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return &CoverImage{Name: "cover.png", Data: buf.Bytes()}
}

func lines(n int, prefix string) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s line %d", prefix, i+1)
	}
	return out
}

func testBook(t *testing.T, chapters ...Chapter) Book {
	t.Helper()
	return Book{
		Title:    "My Book",
		Author:   "Author Name",
		Cover:    pngCover(t, 40, 60),
		Chapters: chapters,
	}
}

// gridLayout uses whole-number line heights so page capacities are exact:
// 65 body lines on a first page, 70 on a continuation page.
func gridLayout() Layout {
	l := DefaultLayout()
	l.LineHeight = 10
	l.TOCLineHeight = 10
	l.Wrap = false
	return l
}
