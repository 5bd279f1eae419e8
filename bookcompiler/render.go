package bookcompiler

import (
	"fmt"
)

// Cover text baselines, from the top edge.
const (
	coverTitleY    = 100
	coverSubtitleY = 130
)

func validate(book Book) error {
	if book.Cover == nil || len(book.Cover.Data) == 0 {
		return ErrMissingCover
	}
	if len(book.Chapters) == 0 {
		return ErrNoChapters
	}
	return nil
}

// Render lays out the book in generation order: one cover page, the chapter
// pages, then the table of contents. The TOC comes last because it needs the
// chapter start pages; Reorder moves it behind the cover.
func (bc *BookCompiler) Render(book Book) (*RenderedDocument, error) {
	if err := validate(book); err != nil {
		return nil, err
	}
	if err := bc.layout.Validate(); err != nil {
		return nil, &RenderError{Chapter: -1, Err: fmt.Errorf("inconsistent layout: %w", err)}
	}
	bc.emit(Event{Kind: EventValidated, Chapter: -1, Pages: len(book.Chapters)})

	doc := &RenderedDocument{Title: book.Title, Author: book.Author}

	cover, err := bc.renderCover(book)
	if err != nil {
		return nil, err
	}
	doc.Pages = append(doc.Pages, cover)
	doc.Bounds.Cover = 1
	bc.emit(Event{Kind: EventCover, Chapter: -1, Title: book.Title, StartPage: cover.Number, Pages: 1})

	counter := cover.Number + 1
	wrapper := bc.lineWrapper()

	for i, chapter := range book.Chapters {
		if err := checkGlyphs(chapter.Title); err != nil {
			return nil, &RenderError{Region: RegionChapter, Chapter: i, Title: chapter.Title, Err: fmt.Errorf("heading: %w", err)}
		}
		if err := checkGlyphs(chapter.Content...); err != nil {
			return nil, &RenderError{Region: RegionChapter, Chapter: i, Title: chapter.Title, Err: err}
		}

		pages, next := Flow(Segment{
			Region:     RegionChapter,
			Chapter:    i,
			Heading:    chapter.Title,
			Lines:      wrapLines(wrapper, chapter.Content),
			Cursor:     bc.layout.BodyTop,
			LineHeight: bc.layout.LineHeight,
			Style:      StyleBody,
		}, counter, bc.layout)

		entry := ChapterIndexEntry{Ordinal: i, Title: chapter.Title, StartPage: pages[0].Number}
		doc.Index = append(doc.Index, entry)
		doc.Pages = append(doc.Pages, pages...)
		doc.Bounds.Chapters += len(pages)
		counter = next

		bc.logger.Debug().
			Int("chapter", i+1).
			Str("title", chapter.Title).
			Int("start_page", entry.StartPage).
			Int("pages", len(pages)).
			Msg("chapter laid out")
		bc.emit(Event{Kind: EventChapter, Chapter: i, Title: chapter.Title, StartPage: entry.StartPage, Pages: len(pages)})
	}

	if err := checkGlyphs(bc.tocTitle); err != nil {
		return nil, &RenderError{Region: RegionTOC, Chapter: -1, Title: bc.tocTitle, Err: err}
	}
	tocPages, _ := Flow(Segment{
		Region:     RegionTOC,
		Chapter:    -1,
		Heading:    bc.tocTitle,
		Lines:      tocLines(doc.Index),
		Cursor:     bc.layout.BodyTop,
		LineHeight: bc.layout.TOCLineHeight,
		Style:      StyleTOC,
	}, counter, bc.layout)
	doc.Pages = append(doc.Pages, tocPages...)
	doc.Bounds.TOC = len(tocPages)
	bc.emit(Event{Kind: EventTOC, Chapter: -1, StartPage: tocPages[0].Number, Pages: len(tocPages)})

	bc.logger.Debug().
		Int("cover_pages", doc.Bounds.Cover).
		Int("chapter_pages", doc.Bounds.Chapters).
		Int("toc_pages", doc.Bounds.TOC).
		Msg("document rendered")
	return doc, nil
}

func (bc *BookCompiler) renderCover(book Book) (RenderedPage, error) {
	subtitle := fmt.Sprintf("by %s", book.Author)
	if err := checkGlyphs(book.Title, subtitle); err != nil {
		return RenderedPage{}, &RenderError{Region: RegionCover, Chapter: -1, Title: book.Title, Err: err}
	}

	img, err := prepareCover(book.Cover)
	if err != nil {
		return RenderedPage{}, &RenderError{Region: RegionCover, Chapter: -1, Title: book.Title, Err: err}
	}

	bx, by, bw, bh := bc.layout.CoverBox()
	x, y, w, h := fitBox(img.Width, img.Height, bx, by, bw, bh)

	return RenderedPage{
		Index:   0,
		Region:  RegionCover,
		Chapter: -1,
		Number:  1,
		Lines: []PlacedLine{
			{Text: book.Title, Y: coverTitleY, Style: StyleTitle, Align: AlignCenter},
			{Text: subtitle, Y: coverSubtitleY, Style: StyleSubtitle, Align: AlignCenter},
		},
		Image: &PlacedImage{X: x, Y: y, W: w, H: h, Type: img.Type, Data: img.Data},
	}, nil
}
