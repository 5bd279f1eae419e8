package bookcompiler

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	pdfread "github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	doRef    = regexp.MustCompile(`/([^\s/\[\]()<>{}]+)\s+Do\b`)
	showText = regexp.MustCompile(`\(((?:[^()\\]|\\.)*)\)\s*Tj`)
	unescape = strings.NewReplacer(`\(`, "(", `\)`, ")", `\\`, `\`, `\r`, "\r")
)

// pageTexts returns the strings shown on each page of a finished container.
// Pages hold imported templates, so every XObject drawn by the page content
// is resolved and its text operators are read in painting order.
func pageTexts(t *testing.T, path string) [][]string {
	t.Helper()
	f, r, err := pdfread.Open(path)
	require.NoError(t, err)
	defer f.Close()

	pages := make([][]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		xobjects := page.Resources().Key("XObject")

		var texts []string
		for _, ref := range doRef.FindAllStringSubmatch(streamText(t, page.V.Key("Contents")), -1) {
			form := xobjects.Key(ref[1])
			require.False(t, form.IsNull(), "page %d draws unknown XObject %s", i, ref[1])
			texts = append(texts, shownStrings(streamText(t, form))...)
		}
		pages = append(pages, texts)
	}
	return pages
}

func streamText(t *testing.T, v pdfread.Value) string {
	t.Helper()
	if v.Kind() == pdfread.Array {
		var b strings.Builder
		for i := 0; i < v.Len(); i++ {
			b.WriteString(streamText(t, v.Index(i)))
			b.WriteByte('\n')
		}
		return b.String()
	}
	rc := v.Reader()
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func shownStrings(content string) []string {
	var out []string
	for _, m := range showText.FindAllStringSubmatch(content, -1) {
		out = append(out, unescape.Replace(m[1]))
	}
	return out
}

func TestContainerPageOrderSingleChapter(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "book.pdf")
	book := testBook(t, Chapter{Title: "Only", Content: []string{"short"}})

	_, err := quietCompiler(t).Compile(context.Background(), book, dest)
	require.NoError(t, err)

	pages := pageTexts(t, dest)
	require.Len(t, pages, 3)
	assert.Equal(t, []string{"My Book", "by Author Name"}, pages[0])
	assert.Equal(t, []string{DefaultToCTitle, "Only ........ Page 2", "Page 3"}, pages[1])
	assert.Equal(t, []string{"Only", "short", "Page 2"}, pages[2])
}

func TestContainerPageOrderTOCOverflow(t *testing.T) {
	const n = 60
	chapters := make([]Chapter, n)
	for i := range chapters {
		chapters[i] = Chapter{
			Title:   fmt.Sprintf("Chap%d", i+1),
			Content: []string{fmt.Sprintf("body%d", i+1)},
		}
	}
	dest := filepath.Join(t.TempDir(), "long.pdf")

	res, err := quietCompiler(t).Compile(context.Background(), testBook(t, chapters...), dest)
	require.NoError(t, err)
	require.Equal(t, 2, res.Bounds.TOC)

	pages := pageTexts(t, dest)
	require.Len(t, pages, n+3)

	assert.Equal(t, []string{"My Book", "by Author Name"}, pages[0])

	// Both TOC pages sit between the cover and the first chapter and keep
	// the footer numbers they were generated with.
	var toc []string
	for i, footer := range []string{"Page 62", "Page 63"} {
		page := pages[1+i]
		require.NotEmpty(t, page)
		assert.Equal(t, footer, page[len(page)-1])
		toc = append(toc, page[:len(page)-1]...)
	}
	require.Equal(t, DefaultToCTitle, toc[0])
	require.Len(t, toc, n+1)
	for i, line := range toc[1:] {
		assert.Equal(t, fmt.Sprintf("Chap%d ........ Page %d", i+1, i+2), line)
	}

	// Chapter pages follow in order; each printed number is the physical
	// position minus the TOC page count.
	for i := 0; i < n; i++ {
		pos := 3 + i
		assert.Equal(t,
			[]string{fmt.Sprintf("Chap%d", i+1), fmt.Sprintf("body%d", i+1), fmt.Sprintf("Page %d", pos+1-res.Bounds.TOC)},
			pages[pos], "physical page %d", pos+1)
	}
}
