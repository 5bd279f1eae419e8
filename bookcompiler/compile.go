package bookcompiler

import (
	"context"
	"fmt"
	"time"
)

// Result summarizes a successful Compile.
type Result struct {
	Path   string
	Pages  int
	Bounds RegionBounds
	Index  []ChapterIndexEntry
}

// GenerateDocument compiles book into a PDF at dest with a compiler built
// from opts. See BookCompiler.Compile.
func GenerateDocument(ctx context.Context, book Book, dest string, opts ...Option) error {
	_, err := NewBookCompiler(opts...).Compile(ctx, book, dest)
	return err
}

// Compile renders the book, moves the table of contents behind the cover and
// writes the PDF to dest. Validation errors (ErrMissingCover, ErrNoChapters)
// are returned before any page is rendered or any file is created. On failure
// dest is left untouched.
func (bc *BookCompiler) Compile(ctx context.Context, book Book, dest string) (*Result, error) {
	start := time.Now()

	doc, err := bc.Render(book)
	if err != nil {
		return nil, err
	}

	asm, err := Reorder(doc)
	if err != nil {
		return nil, &RenderError{Chapter: -1, Err: err}
	}
	bc.emit(Event{Kind: EventAssembled, Chapter: -1, Pages: len(asm.Pages)})

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, cleanup, err := bc.writeIntermediate(doc)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	if err := bc.writeAssembled(ctx, src, doc, asm, dest); err != nil {
		return nil, fmt.Errorf("writing %s: %w", dest, err)
	}
	bc.emit(Event{Kind: EventWritten, Chapter: -1, Pages: len(asm.Pages), Path: dest})

	bc.logger.Info().
		Str("path", dest).
		Int("pages", len(asm.Pages)).
		Int("chapters", len(doc.Index)).
		Int("toc_pages", doc.Bounds.TOC).
		Dur("elapsed", time.Since(start)).
		Msg("document generated")

	return &Result{Path: dest, Pages: len(asm.Pages), Bounds: doc.Bounds, Index: doc.Index}, nil
}
