package bookcompiler

// Segment is a run of text flowed onto its own pages: a chapter or the
// table of contents.
type Segment struct {
	Region  Region
	Chapter int
	Heading string
	Lines   []string
	// Cursor is the baseline of the first line on the segment's first page.
	Cursor     float64
	LineHeight float64
	Style      LineStyle
}

// Flow lays out seg starting at page number counter. The heading goes on the
// first page, whose number is the segment's start page. A line that would sit
// below layout.Bottom() closes the current page and opens a new one with the
// cursor back at the top margin. Flow returns the pages and the number the
// next page will get; every page consumes exactly one number.
//
// Lines are placed as given. Horizontal overflow is the Wrapper's concern.
func Flow(seg Segment, counter int, layout Layout) ([]RenderedPage, int) {
	var pages []RenderedPage

	page := openPage(seg, counter)
	page.Lines = append(page.Lines, PlacedLine{
		Text:  seg.Heading,
		Y:     layout.TopMargin,
		Style: StyleHeading,
		Align: AlignCenter,
	})

	y := seg.Cursor
	for _, line := range seg.Lines {
		if y > layout.Bottom() {
			pages = append(pages, page)
			counter++
			page = openPage(seg, counter)
			y = layout.TopMargin
		}
		page.Lines = append(page.Lines, PlacedLine{
			Text:  line,
			X:     layout.LeftMargin,
			Y:     y,
			Style: seg.Style,
		})
		y += seg.LineHeight
	}

	pages = append(pages, page)
	return pages, counter + 1
}

func openPage(seg Segment, number int) RenderedPage {
	return RenderedPage{
		Index:   number - 1,
		Region:  seg.Region,
		Chapter: seg.Chapter,
		Number:  number,
	}
}
