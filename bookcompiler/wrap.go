package bookcompiler

import (
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// Wrapper breaks a source line into lines that fit the body width.
type Wrapper interface {
	Wrap(line string) []string
}

// MetricWrapper wraps on spaces using the metrics of a core font.
type MetricWrapper struct {
	pdf   *gofpdf.Fpdf
	width float64
}

// NewMetricWrapper returns a wrapper measuring text in style against width
// points.
func NewMetricWrapper(style TextStyle, width float64) *MetricWrapper {
	pdf := gofpdf.New("P", "pt", "Letter", "")
	pdf.SetFont(style.FontFamily, style.Style, style.Size)
	return &MetricWrapper{pdf: pdf, width: width}
}

func (w *MetricWrapper) measure(text string) float64 {
	enc, err := encodeText(text)
	if err != nil {
		enc = text
	}
	return w.pdf.GetStringWidth(enc)
}

// Wrap splits line greedily. A single word wider than the body stays on its
// own line. Blank lines are kept. Leading indentation is repeated on every
// wrapped line.
func (w *MetricWrapper) Wrap(line string) []string {
	if w.measure(line) <= w.width {
		return []string{line}
	}

	body := strings.TrimLeft(line, " \t")
	indent := line[:len(line)-len(body)]

	var lines []string
	currentLine := ""

	for _, word := range strings.Fields(body) {
		testLine := currentLine
		if testLine != "" {
			testLine += " "
		}
		testLine += word

		if w.measure(indent+testLine) > w.width && currentLine != "" {
			lines = append(lines, indent+currentLine)
			currentLine = word
		} else {
			currentLine = testLine
		}
	}

	if currentLine != "" {
		lines = append(lines, indent+currentLine)
	}
	return lines
}

func wrapLines(w Wrapper, lines []string) []string {
	if w == nil {
		return lines
	}
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, w.Wrap(line)...)
	}
	return out
}
