package bookcompiler

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultToCTitle is the heading of the first table of contents page.
const DefaultToCTitle = "Table of Contents"

// BookCompiler turns a Book into a PDF. A compiler holds configuration only;
// every call to Compile is independent.
type BookCompiler struct {
	layout   Layout
	wrapper  Wrapper
	tocTitle string
	creator  string
	tempDir  string
	logger   zerolog.Logger
	progress func(Event)
}

// Option configures a BookCompiler.
type Option func(*BookCompiler)

// WithLayout replaces the default layout.
func WithLayout(l Layout) Option {
	return func(bc *BookCompiler) { bc.layout = l }
}

// WithWrapper sets the collaborator used to wrap chapter lines. It takes
// precedence over Layout.Wrap.
func WithWrapper(w Wrapper) Option {
	return func(bc *BookCompiler) { bc.wrapper = w }
}

// WithToCTitle sets the heading of the table of contents.
func WithToCTitle(title string) Option {
	return func(bc *BookCompiler) { bc.tocTitle = title }
}

// WithCreator sets the PDF creator metadata.
func WithCreator(creator string) Option {
	return func(bc *BookCompiler) { bc.creator = creator }
}

// WithTempDir sets where the intermediate container is written.
func WithTempDir(dir string) Option {
	return func(bc *BookCompiler) { bc.tempDir = dir }
}

// WithLogger sets the logger. The global zerolog logger is used otherwise.
func WithLogger(l zerolog.Logger) Option {
	return func(bc *BookCompiler) { bc.logger = l }
}

// WithProgress registers a callback receiving generation events.
func WithProgress(fn func(Event)) Option {
	return func(bc *BookCompiler) { bc.progress = fn }
}

// NewBookCompiler creates a new instance of BookCompiler
func NewBookCompiler(opts ...Option) *BookCompiler {
	bc := &BookCompiler{
		layout:   DefaultLayout(),
		tocTitle: DefaultToCTitle,
		creator:  "bookmaker",
		tempDir:  os.TempDir(),
		logger:   log.Logger,
	}
	for _, opt := range opts {
		opt(bc)
	}
	return bc
}

// Layout returns the compiler's layout.
func (bc *BookCompiler) Layout() Layout {
	return bc.layout
}

func (bc *BookCompiler) lineWrapper() Wrapper {
	if bc.wrapper != nil {
		return bc.wrapper
	}
	if !bc.layout.Wrap {
		return nil
	}
	return NewMetricWrapper(bc.layout.Style(StyleBody), bc.layout.BodyWidth())
}

// tocLines formats one line per index entry, in chapter order.
func tocLines(index []ChapterIndexEntry) []string {
	lines := make([]string, 0, len(index))
	for _, entry := range index {
		lines = append(lines, fmt.Sprintf("%s ........ Page %d", entry.Title, entry.StartPage))
	}
	return lines
}
