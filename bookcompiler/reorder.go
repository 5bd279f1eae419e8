package bookcompiler

import "fmt"

// FooterNumbersStale records that footer page numbers are assigned during
// linear rendering and are not recomputed when Reorder moves the table of
// contents. Every page after the TOC shows a number that is off by the TOC
// page count; Assembled.FooterOffset reports the exact difference.
const FooterNumbersStale = true

// Assembled is the document in reading order.
type Assembled struct {
	Pages  []RenderedPage
	Order  []int // generation index of the page at each final position
	Bounds RegionBounds
}

// Reorder permutes a rendered document from generation order
// (cover, chapters, toc) into reading order (cover, toc, chapters). Regions
// are located by the page counts in doc.Bounds, so a TOC of any length is
// moved as a whole. Pages are not modified.
func Reorder(doc *RenderedDocument) (*Assembled, error) {
	b := doc.Bounds
	if b.Cover < 0 || b.Chapters < 0 || b.TOC < 0 || b.Total() != len(doc.Pages) {
		return nil, fmt.Errorf("%w: %d+%d+%d bounds for %d pages",
			ErrBoundsMismatch, b.Cover, b.Chapters, b.TOC, len(doc.Pages))
	}

	coverEnd := b.Cover
	chapterEnd := coverEnd + b.Chapters

	regions := []struct {
		region     Region
		start, end int
	}{
		{RegionCover, 0, coverEnd},
		{RegionTOC, chapterEnd, len(doc.Pages)},
		{RegionChapter, coverEnd, chapterEnd},
	}

	asm := &Assembled{
		Pages:  make([]RenderedPage, 0, len(doc.Pages)),
		Order:  make([]int, 0, len(doc.Pages)),
		Bounds: b,
	}
	for _, r := range regions {
		for i := r.start; i < r.end; i++ {
			if doc.Pages[i].Region != r.region {
				return nil, fmt.Errorf("%w: page %d is %s, expected %s",
					ErrBoundsMismatch, i, doc.Pages[i].Region, r.region)
			}
			asm.Pages = append(asm.Pages, doc.Pages[i])
			asm.Order = append(asm.Order, i)
		}
	}
	return asm, nil
}

// FooterOffset returns the physical page number (1-based) at final position
// pos minus the number printed in that page's footer. It is 0 for the cover,
// Bounds.TOC for chapter pages and -Bounds.Chapters for TOC pages. ok is
// false when pos is not a position in the document.
func (a *Assembled) FooterOffset(pos int) (offset int, ok bool) {
	if pos < 0 || pos >= len(a.Pages) {
		return 0, false
	}
	return pos + 1 - a.Pages[pos].Number, true
}
