package bookcompiler

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCover is returned when the book carries no cover image.
	ErrMissingCover = errors.New("cover image is required")
	// ErrNoChapters is returned when the book has an empty chapter list.
	ErrNoChapters = errors.New("book has no chapters")
	// ErrBoundsMismatch is returned by Reorder when the region bounds do not
	// describe the page sequence.
	ErrBoundsMismatch = errors.New("region bounds do not match pages")
)

// RenderError reports a layout or painting failure. Chapter is the chapter
// ordinal, or -1 when the failure is outside the chapter region.
type RenderError struct {
	Region  Region
	Chapter int
	Title   string
	Err     error
}

func (e *RenderError) Error() string {
	switch {
	case e.Chapter >= 0:
		return fmt.Sprintf("rendering %s %d (%q): %v", e.Region, e.Chapter+1, e.Title, e.Err)
	case e.Region != "":
		return fmt.Sprintf("rendering %s: %v", e.Region, e.Err)
	default:
		return fmt.Sprintf("rendering: %v", e.Err)
	}
}

func (e *RenderError) Unwrap() error { return e.Err }

// IOError reports a failure while writing, verifying or publishing a
// container file.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// GlyphError reports a rune that the built-in fonts cannot encode.
type GlyphError struct {
	Rune rune
	Text string
}

func (e *GlyphError) Error() string {
	return fmt.Sprintf("character %q (U+%04X) cannot be rendered with the built-in fonts", e.Rune, e.Rune)
}
