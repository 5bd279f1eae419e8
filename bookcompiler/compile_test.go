package bookcompiler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietCompiler(t *testing.T, opts ...Option) *BookCompiler {
	t.Helper()
	base := []Option{WithLogger(zerolog.Nop()), WithTempDir(t.TempDir())}
	return NewBookCompiler(append(base, opts...)...)
}

func TestCompileSingleChapter(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "book.pdf")
	book := testBook(t, Chapter{Title: "Only", Content: []string{"short"}})

	res, err := quietCompiler(t).Compile(context.Background(), book, dest)
	require.NoError(t, err)

	assert.Equal(t, dest, res.Path)
	assert.Equal(t, 3, res.Pages)
	assert.Equal(t, RegionBounds{Cover: 1, Chapters: 1, TOC: 1}, res.Bounds)
	require.Len(t, res.Index, 1)
	assert.Equal(t, 2, res.Index[0].StartPage)

	n, err := CountPages(dest)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestCompileManyChapters(t *testing.T) {
	chapters := make([]Chapter, 60)
	for i := range chapters {
		chapters[i] = Chapter{Title: fmt.Sprintf("Chapter %d", i+1), Content: []string{"text"}}
	}
	dest := filepath.Join(t.TempDir(), "long.pdf")

	res, err := quietCompiler(t).Compile(context.Background(), testBook(t, chapters...), dest)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Bounds.TOC)
	assert.Equal(t, 63, res.Pages)

	n, err := CountPages(dest)
	require.NoError(t, err)
	assert.Equal(t, 63, n)
}

func TestGenerateDocumentNoChapters(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "empty.pdf")
	book := testBook(t)

	err := GenerateDocument(context.Background(), book, dest, WithLogger(zerolog.Nop()))
	assert.ErrorIs(t, err, ErrNoChapters)
	assert.NoFileExists(t, dest)
}

func TestGenerateDocumentMissingCover(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "nocover.pdf")
	book := testBook(t, Chapter{Title: "One", Content: []string{"x"}})
	book.Cover = nil

	err := GenerateDocument(context.Background(), book, dest, WithLogger(zerolog.Nop()))
	assert.ErrorIs(t, err, ErrMissingCover)
	assert.NoFileExists(t, dest)
}

func TestCompileFailureLeavesDestUntouched(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "book.pdf")
	require.NoError(t, os.WriteFile(dest, []byte("previous"), 0o644))

	book := testBook(t, Chapter{Title: "Snow ☃", Content: []string{"x"}})
	_, err := quietCompiler(t).Compile(context.Background(), book, dest)

	var rerr *RenderError
	require.ErrorAs(t, err, &rerr)
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))
}

func TestCompileRemovesIntermediate(t *testing.T) {
	tmp := t.TempDir()
	dest := filepath.Join(t.TempDir(), "book.pdf")
	bc := NewBookCompiler(WithLogger(zerolog.Nop()), WithTempDir(tmp))

	_, err := bc.Compile(context.Background(), testBook(t, Chapter{Title: "One", Content: lines(200, "x")}), dest)
	require.NoError(t, err)

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCompileCancelled(t *testing.T) {
	tmp := t.TempDir()
	dest := filepath.Join(t.TempDir(), "book.pdf")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bc := NewBookCompiler(WithLogger(zerolog.Nop()), WithTempDir(tmp))
	_, err := bc.Compile(ctx, testBook(t, Chapter{Title: "One", Content: []string{"x"}}), dest)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, dest)

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCompileMissingDestDir(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "missing", "book.pdf")
	_, err := quietCompiler(t).Compile(context.Background(), testBook(t, Chapter{Title: "One", Content: []string{"x"}}), dest)

	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, dest, ioErr.Path)
	assert.NoFileExists(t, dest)
}

func TestCompileMissingTempDir(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "book.pdf")
	bc := NewBookCompiler(WithLogger(zerolog.Nop()), WithTempDir(filepath.Join(t.TempDir(), "gone")))

	_, err := bc.Compile(context.Background(), testBook(t, Chapter{Title: "One", Content: []string{"x"}}), dest)
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "create intermediate", ioErr.Op)
	assert.NoFileExists(t, dest)
}

func TestCompileEmitsWrittenEvent(t *testing.T) {
	var events []Event
	dest := filepath.Join(t.TempDir(), "book.pdf")
	bc := quietCompiler(t, WithProgress(func(e Event) { events = append(events, e) }))

	_, err := bc.Compile(context.Background(), testBook(t, Chapter{Title: "One", Content: []string{"x"}}), dest)
	require.NoError(t, err)

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, EventWritten, last.Kind)
	assert.Equal(t, dest, last.Path)
	assert.Equal(t, 3, last.Pages)
	assert.Equal(t, EventAssembled, events[len(events)-2].Kind)
}
