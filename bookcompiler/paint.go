package bookcompiler

import (
	"bytes"
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
)

const coverImageName = "cover"

// newPDF returns an empty document with the fixed page size and metadata.
// Page breaks are driven by the flow engine, never by gofpdf.
func (bc *BookCompiler) newPDF(title, author string) *gofpdf.Fpdf {
	pdf := gofpdf.New("P", "pt", "Letter", "")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle(title, true)
	pdf.SetAuthor(author, true)
	pdf.SetCreator(bc.creator, true)
	return pdf
}

// paintLinear writes the rendered pages, in generation order, as a PDF.
func (bc *BookCompiler) paintLinear(doc *RenderedDocument, w io.Writer) error {
	pdf := bc.newPDF(doc.Title, doc.Author)

	for _, page := range doc.Pages {
		pdf.AddPage()
		if err := bc.paintPage(pdf, page); err != nil {
			return &RenderError{Region: page.Region, Chapter: page.Chapter, Err: err}
		}
	}
	if err := pdf.Output(w); err != nil {
		return &RenderError{Chapter: -1, Err: fmt.Errorf("producing PDF: %w", err)}
	}
	return nil
}

func (bc *BookCompiler) paintPage(pdf *gofpdf.Fpdf, page RenderedPage) error {
	if page.Image != nil {
		opt := gofpdf.ImageOptions{ImageType: page.Image.Type}
		pdf.RegisterImageOptionsReader(coverImageName, opt, bytes.NewReader(page.Image.Data))
		pdf.ImageOptions(coverImageName, page.Image.X, page.Image.Y, page.Image.W, page.Image.H, false, opt, 0, "")
		if err := pdf.Error(); err != nil {
			return fmt.Errorf("drawing cover image: %w", err)
		}
	}

	for _, line := range page.Lines {
		style := bc.layout.Style(line.Style)
		pdf.SetFont(style.FontFamily, style.Style, style.Size)

		text, err := encodeText(line.Text)
		if err != nil {
			return err
		}
		x := line.X
		if line.Align == AlignCenter {
			x = (bc.layout.PageWidth - pdf.GetStringWidth(text)) / 2
		}
		pdf.Text(x, line.Y, text)
	}

	if page.Region != RegionCover {
		bc.paintFooter(pdf, page.Number)
	}
	return pdf.Error()
}

// paintFooter draws the right-aligned page number.
func (bc *BookCompiler) paintFooter(pdf *gofpdf.Fpdf, number int) {
	style := bc.layout.Footer
	pdf.SetFont(style.FontFamily, style.Style, style.Size)
	text := fmt.Sprintf("Page %d", number)
	x := bc.layout.PageWidth - bc.layout.LeftMargin - pdf.GetStringWidth(text)
	pdf.Text(x, bc.layout.PageHeight-bc.layout.FooterOffset, text)
}
