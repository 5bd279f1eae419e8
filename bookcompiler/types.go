package bookcompiler

// Book is the content handed to the compiler. The compiler never mutates it.
type Book struct {
	Title    string
	Author   string
	Cover    *CoverImage
	Chapters []Chapter
}

// Chapter represents one chapter of body text. Content holds the lines in
// reading order.
type Chapter struct {
	Title   string
	Content []string
}

// CoverImage carries the encoded bytes of the cover (PNG, JPEG, GIF, BMP,
// TIFF or WebP).
type CoverImage struct {
	Name string
	Data []byte
}

// Region identifies a contiguous block of pages.
type Region string

const (
	RegionCover   Region = "cover"
	RegionChapter Region = "chapter"
	RegionTOC     Region = "toc"
)

// LineStyle selects the font used to paint a placed line.
type LineStyle int

const (
	StyleBody LineStyle = iota
	StyleTitle
	StyleSubtitle
	StyleHeading
	StyleTOC
)

// Alignment of a placed line relative to the page.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignCenter
)

// PlacedLine is a line of text at its final position. Y is the baseline,
// measured in points from the top edge of the page.
type PlacedLine struct {
	Text  string
	X     float64
	Y     float64
	Style LineStyle
	Align Alignment
}

// PlacedImage is the cover image fitted into its bounding box.
type PlacedImage struct {
	X, Y, W, H float64
	Type       string // gofpdf image type: "PNG" or "JPG"
	Data       []byte
}

// RenderedPage is one laid-out page. Index is the position in generation
// order (0-based); Number is the page number printed in the footer.
type RenderedPage struct {
	Index   int
	Region  Region
	Chapter int // chapter ordinal, -1 outside the chapter region
	Lines   []PlacedLine
	Image   *PlacedImage
	Number  int
}

// ChapterIndexEntry records where a chapter starts. Entries are keyed by
// ordinal so repeated titles stay distinct.
type ChapterIndexEntry struct {
	Ordinal   int
	Title     string
	StartPage int
}

// RegionBounds holds the number of pages in each region.
type RegionBounds struct {
	Cover    int
	Chapters int
	TOC      int
}

// Total returns the page count covered by the bounds.
func (b RegionBounds) Total() int {
	return b.Cover + b.Chapters + b.TOC
}

// RenderedDocument is the linear output of the renderer: pages in
// generation order (cover, chapters, toc) plus the chapter index.
type RenderedDocument struct {
	Title  string
	Author string
	Pages  []RenderedPage
	Bounds RegionBounds
	Index  []ChapterIndexEntry
}

// TextStyle holds the font selection for a LineStyle.
type TextStyle struct {
	FontFamily string
	Style      string
	Size       float64
}
