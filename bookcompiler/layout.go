package bookcompiler

import (
	"errors"
	"fmt"
)

// Letter page size in points. Page size is fixed.
const (
	PageWidth  = 612.0
	PageHeight = 792.0
)

// Layout holds the geometry used by the flow engine and the painter. All
// distances are points; vertical positions are measured from the top edge.
type Layout struct {
	PageWidth  float64
	PageHeight float64

	// TopMargin is the heading baseline and the first body baseline on
	// continuation pages.
	TopMargin float64
	// BodyTop is the first body baseline on the first page of a segment.
	BodyTop float64
	// BottomMargin is the distance from the bottom edge below which no line
	// is placed.
	BottomMargin float64
	LeftMargin   float64
	// FooterOffset is the distance from the bottom edge to the footer
	// baseline.
	FooterOffset float64

	LineHeight    float64
	TOCLineHeight float64

	Styles map[LineStyle]TextStyle
	Footer TextStyle

	// Wrap enables the width-based line wrapper for chapter bodies.
	Wrap bool
}

// DefaultLayout returns the Letter layout used when no overrides are given.
func DefaultLayout() Layout {
	return Layout{
		PageWidth:     PageWidth,
		PageHeight:    PageHeight,
		TopMargin:     50,
		BodyTop:       100,
		BottomMargin:  50,
		LeftMargin:    50,
		FooterOffset:  30,
		LineHeight:    14.4,
		TOCLineHeight: 20,
		Styles: map[LineStyle]TextStyle{
			StyleTitle:    {FontFamily: "Times", Style: "B", Size: 24},
			StyleSubtitle: {FontFamily: "Times", Style: "", Size: 16},
			StyleHeading:  {FontFamily: "Times", Style: "B", Size: 18},
			StyleBody:     {FontFamily: "Times", Style: "", Size: 12},
			StyleTOC:      {FontFamily: "Times", Style: "", Size: 12},
		},
		Footer: TextStyle{FontFamily: "Times", Style: "", Size: 10},
		Wrap:   true,
	}
}

// Bottom returns the lowest baseline a line may occupy.
func (l Layout) Bottom() float64 {
	return l.PageHeight - l.BottomMargin
}

// BodyWidth returns the horizontal space available to body text.
func (l Layout) BodyWidth() float64 {
	return l.PageWidth - 2*l.LeftMargin
}

// CoverBox returns the bounding box the cover image is fitted into.
func (l Layout) CoverBox() (x, y, w, h float64) {
	return 100, 150, l.PageWidth - 200, 300
}

// Style returns the text style for s, falling back to the body style.
func (l Layout) Style(s LineStyle) TextStyle {
	if st, ok := l.Styles[s]; ok {
		return st
	}
	return l.Styles[StyleBody]
}

// Validate checks that the layout constants are consistent.
func (l Layout) Validate() error {
	var errs []error
	if l.PageWidth != PageWidth || l.PageHeight != PageHeight {
		errs = append(errs, fmt.Errorf("page size %gx%g is not supported", l.PageWidth, l.PageHeight))
	}
	if l.LineHeight <= 0 || l.TOCLineHeight <= 0 {
		errs = append(errs, errors.New("line heights must be positive"))
	}
	if l.TopMargin < 0 || l.BottomMargin < 0 || l.LeftMargin < 0 {
		errs = append(errs, errors.New("margins must not be negative"))
	}
	if l.TopMargin > l.Bottom() {
		errs = append(errs, fmt.Errorf("top margin %g is below the bottom margin threshold %g", l.TopMargin, l.Bottom()))
	}
	if l.BodyTop < l.TopMargin || l.BodyTop > l.Bottom() {
		errs = append(errs, fmt.Errorf("body top %g must lie between %g and %g", l.BodyTop, l.TopMargin, l.Bottom()))
	}
	if l.BodyWidth() <= 0 {
		errs = append(errs, fmt.Errorf("left margin %g leaves no room for text", l.LeftMargin))
	}
	if _, ok := l.Styles[StyleBody]; !ok {
		errs = append(errs, errors.New("body text style is missing"))
	}
	return errors.Join(errs...)
}
