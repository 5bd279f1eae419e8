package bookcompiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricWrapper(t *testing.T) {
	layout := DefaultLayout()
	w := NewMetricWrapper(layout.Style(StyleBody), layout.BodyWidth())

	t.Run("short line untouched", func(t *testing.T) {
		assert.Equal(t, []string{"a short line"}, w.Wrap("a short line"))
	})

	t.Run("blank line kept", func(t *testing.T) {
		assert.Equal(t, []string{""}, w.Wrap(""))
	})

	t.Run("long line split on spaces", func(t *testing.T) {
		src := strings.TrimSpace(strings.Repeat("lorem ipsum ", 80))
		out := w.Wrap(src)
		require.Greater(t, len(out), 1)
		for _, line := range out {
			assert.LessOrEqual(t, w.measure(line), layout.BodyWidth())
		}
		assert.Equal(t, strings.Fields(src), strings.Fields(strings.Join(out, " ")))
	})

	t.Run("indent repeated on wrapped lines", func(t *testing.T) {
		indent := "    "
		src := indent + "• " + strings.TrimSpace(strings.Repeat("nested item ", 60))
		out := w.Wrap(src)
		require.Greater(t, len(out), 1)
		assert.True(t, strings.HasPrefix(out[0], indent+"• nested item"), "first line %q", out[0])
		for _, line := range out {
			assert.True(t, strings.HasPrefix(line, indent), "line %q lost its indent", line)
			assert.False(t, strings.HasPrefix(line, indent+" "), "line %q has extra indent", line)
			assert.LessOrEqual(t, w.measure(line), layout.BodyWidth())
		}
		assert.Equal(t, strings.Fields(src), strings.Fields(strings.Join(out, " ")))
	})

	t.Run("over-long word on its own line", func(t *testing.T) {
		word := strings.Repeat("m", 200)
		out := w.Wrap("before " + word + " after")
		assert.Equal(t, []string{"before", word, "after"}, out)
	})
}

type fixedWrapper struct{ width int }

func (f fixedWrapper) Wrap(line string) []string {
	var out []string
	for len(line) > f.width {
		out = append(out, line[:f.width])
		line = line[f.width:]
	}
	return append(out, line)
}

func TestWrapLines(t *testing.T) {
	in := []string{"abcdefgh", "ab"}
	assert.Equal(t, in, wrapLines(nil, in))
	assert.Equal(t, []string{"abc", "def", "gh", "ab"}, wrapLines(fixedWrapper{width: 3}, in))
}

func TestCustomWrapperTakesPrecedence(t *testing.T) {
	layout := DefaultLayout()
	layout.Wrap = false
	book := testBook(t, Chapter{Title: "One", Content: []string{"abcdefgh"}})

	doc, err := NewBookCompiler(WithLayout(layout), WithWrapper(fixedWrapper{width: 3})).Render(book)
	require.NoError(t, err)

	var body []string
	for _, line := range doc.Pages[1].Lines {
		if line.Style == StyleBody {
			body = append(body, line.Text)
		}
	}
	assert.Equal(t, []string{"abc", "def", "gh"}, body)
}
