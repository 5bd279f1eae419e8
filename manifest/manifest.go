// Package manifest loads a book from a directory holding a book.yaml
// manifest, a cover image and chapter files.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/opd-ai/bookmaker/bookcompiler"
)

// FileName is the manifest looked up in a book directory.
const FileName = "book.yaml"

// ChaptersDir is scanned for chapter files when the manifest lists none.
const ChaptersDir = "chapters"

// Manifest is the on-disk description of a book.
type Manifest struct {
	Title    string         `yaml:"title"`
	Author   string         `yaml:"author"`
	Cover    string         `yaml:"cover"`
	Chapters []ChapterEntry `yaml:"chapters"`
}

// ChapterEntry names a chapter's title and where its body comes from:
// a file relative to the book directory or inline text.
type ChapterEntry struct {
	Title string `yaml:"title"`
	File  string `yaml:"file,omitempty"`
	Text  string `yaml:"text,omitempty"`
}

var coverCandidates = []string{"cover.jpg", "cover.jpeg", "cover.png", "cover.gif", "cover.webp"}

// Load reads dir/book.yaml and the files it references and returns the
// validated book.
func Load(dir string) (bookcompiler.Book, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return bookcompiler.Book{}, fmt.Errorf("reading manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return bookcompiler.Book{}, fmt.Errorf("failed to unmarshal %s: %w", FileName, err)
	}

	if len(m.Chapters) == 0 {
		m.Chapters, err = discoverChapters(filepath.Join(dir, ChaptersDir), dir)
		if err != nil {
			return bookcompiler.Book{}, err
		}
	}
	if m.Cover == "" {
		m.Cover = findCover(dir)
	}

	return m.Book(dir)
}

// Book resolves the manifest against dir.
func (m Manifest) Book(dir string) (bookcompiler.Book, error) {
	book := bookcompiler.Book{
		Title:  strings.TrimSpace(m.Title),
		Author: strings.TrimSpace(m.Author),
	}

	if m.Cover != "" {
		path := filepath.Join(dir, m.Cover)
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return book, &ValidationError{Field: "cover", Msg: fmt.Sprintf("%s does not exist", m.Cover), Err: bookcompiler.ErrMissingCover}
			}
			return book, fmt.Errorf("reading cover: %w", err)
		}
		book.Cover = &bookcompiler.CoverImage{Name: filepath.Base(m.Cover), Data: data}
	}

	for i, entry := range m.Chapters {
		chapter, err := entry.load(dir)
		if err != nil {
			return book, fmt.Errorf("chapter %d: %w", i+1, err)
		}
		book.Chapters = append(book.Chapters, chapter)
	}

	if err := Validate(book); err != nil {
		return book, err
	}
	return book, nil
}

func (e ChapterEntry) load(dir string) (bookcompiler.Chapter, error) {
	chapter := bookcompiler.Chapter{Title: strings.TrimSpace(e.Title)}

	if e.File == "" {
		chapter.Content = SplitLines(e.Text)
		return chapter, nil
	}

	data, err := os.ReadFile(filepath.Join(dir, e.File))
	if err != nil {
		return chapter, fmt.Errorf("error reading file %s: %w", e.File, err)
	}

	switch strings.ToLower(filepath.Ext(e.File)) {
	case ".md", ".markdown":
		flat, err := FlattenMarkdown(data, chapter.Title == "")
		if err != nil {
			return chapter, fmt.Errorf("%s: %w", e.File, err)
		}
		if chapter.Title == "" {
			chapter.Title = flat.Heading
		}
		chapter.Content = flat.Lines
	default:
		chapter.Content = SplitLines(string(data))
	}
	if chapter.Title == "" {
		chapter.Title = titleFromFile(e.File)
	}
	return chapter, nil
}

// SplitLines splits plain text into chapter lines, dropping trailing blank
// lines.
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return trimBlank(strings.Split(text, "\n"))
}

var leadingNumber = regexp.MustCompile(`^(\d+)`)

func chapterNumber(name string) int {
	if m := leadingNumber.FindStringSubmatch(name); len(m) > 1 {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	return 0
}

// discoverChapters lists the .md and .txt files of dir in numeric order of
// their leading digits, then by name.
func discoverChapters(dir, root string) ([]ChapterEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("error reading chapters directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".md", ".markdown", ".txt":
			names = append(names, entry.Name())
		}
	}
	sort.Slice(names, func(i, j int) bool {
		ni, nj := chapterNumber(names[i]), chapterNumber(names[j])
		if ni != nj {
			return ni < nj
		}
		return names[i] < names[j]
	})

	rel, err := filepath.Rel(root, dir)
	if err != nil {
		rel = dir
	}
	chapters := make([]ChapterEntry, 0, len(names))
	for _, name := range names {
		chapters = append(chapters, ChapterEntry{File: filepath.Join(rel, name)})
	}
	return chapters, nil
}

func findCover(dir string) string {
	for _, name := range coverCandidates {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return name
		}
	}
	return ""
}

// titleFromFile turns "03-the_long_road.txt" into "The long road".
func titleFromFile(file string) string {
	name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	name = strings.TrimLeft(name, "0123456789")
	name = strings.Trim(strings.NewReplacer("_", " ", "-", " ").Replace(name), " ")
	if name == "" {
		return ""
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
