package manifest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/opd-ai/bookmaker/bookcompiler"
)

// ValidationError reports a missing or blank book field.
type ValidationError struct {
	Field string
	Msg   string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Validate checks the fields a book needs before it can be compiled. All
// problems are reported, joined. A missing cover wraps
// bookcompiler.ErrMissingCover and an empty chapter list
// bookcompiler.ErrNoChapters.
func Validate(book bookcompiler.Book) error {
	var errs []error
	if strings.TrimSpace(book.Title) == "" {
		errs = append(errs, &ValidationError{Field: "title", Msg: "is required"})
	}
	if strings.TrimSpace(book.Author) == "" {
		errs = append(errs, &ValidationError{Field: "author", Msg: "is required"})
	}
	if book.Cover == nil || len(book.Cover.Data) == 0 {
		errs = append(errs, &ValidationError{Field: "cover", Msg: "is required", Err: bookcompiler.ErrMissingCover})
	}
	if len(book.Chapters) == 0 {
		errs = append(errs, &ValidationError{Field: "chapters", Msg: "at least one chapter is required", Err: bookcompiler.ErrNoChapters})
	}
	for i, ch := range book.Chapters {
		field := fmt.Sprintf("chapters[%d]", i)
		if strings.TrimSpace(ch.Title) == "" {
			errs = append(errs, &ValidationError{Field: field + ".title", Msg: "is required"})
		}
		if blank(ch.Content) {
			errs = append(errs, &ValidationError{Field: field + ".content", Msg: "is empty"})
		}
	}
	return errors.Join(errs...)
}

func blank(lines []string) bool {
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			return false
		}
	}
	return true
}
