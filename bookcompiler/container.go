package bookcompiler

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/renameio/v2"
	"github.com/jung-kurt/gofpdf"
	"github.com/jung-kurt/gofpdf/contrib/gofpdi"
	pdfread "github.com/ledongthuc/pdf"
)

// writeIntermediate paints the linear document into a temporary file. The
// returned cleanup removes it and is safe to call on every exit path.
func (bc *BookCompiler) writeIntermediate(doc *RenderedDocument) (path string, cleanup func(), err error) {
	f, err := os.CreateTemp(bc.tempDir, "bookmaker-linear-*.pdf")
	if err != nil {
		return "", func() {}, &IOError{Op: "create intermediate", Path: bc.tempDir, Err: err}
	}
	path = f.Name()
	cleanup = func() {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			bc.logger.Warn().Err(rmErr).Str("path", path).Msg("removing intermediate container")
		}
	}

	if err := bc.paintLinear(doc, f); err != nil {
		f.Close()
		cleanup()
		return "", func() {}, err
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", func() {}, &IOError{Op: "write intermediate", Path: path, Err: err}
	}
	return path, cleanup, nil
}

// importPages places the pages of the intermediate file into pdf in the
// assembled order. gofpdi reports parse failures by panicking.
func importPages(ctx context.Context, pdf *gofpdf.Fpdf, src string, order []int, w, h float64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("importing pages from %s: %v", src, r)
		}
	}()

	imp := gofpdi.NewImporter()
	for _, idx := range order {
		if err := ctx.Err(); err != nil {
			return err
		}
		pdf.AddPage()
		tpl := imp.ImportPage(pdf, src, idx+1, "/MediaBox")
		imp.UseImportedTemplate(pdf, tpl, 0, 0, w, h)
	}
	return pdf.Error()
}

// writeAssembled builds the final container from the intermediate file and
// publishes it at dest atomically. Nothing is visible at dest unless the
// whole document was written and verified.
func (bc *BookCompiler) writeAssembled(ctx context.Context, src string, doc *RenderedDocument, asm *Assembled, dest string) error {
	pdf := bc.newPDF(doc.Title, doc.Author)
	if err := importPages(ctx, pdf, src, asm.Order, bc.layout.PageWidth, bc.layout.PageHeight); err != nil {
		return &RenderError{Chapter: -1, Err: err}
	}

	pending, err := renameio.NewPendingFile(dest, renameio.WithPermissions(0o644))
	if err != nil {
		return &IOError{Op: "create", Path: dest, Err: err}
	}
	defer pending.Cleanup()

	if err := pdf.Output(pending); err != nil {
		return &IOError{Op: "write", Path: dest, Err: err}
	}
	if err := verifyPageCount(pending.File, len(asm.Order)); err != nil {
		return &IOError{Op: "verify", Path: dest, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return &IOError{Op: "publish", Path: dest, Err: err}
	}
	return nil
}

// verifyPageCount reads the written container back and checks its page
// count.
func verifyPageCount(f *os.File, want int) error {
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}
	r, err := pdfread.NewReader(f, size)
	if err != nil {
		return fmt.Errorf("reading back container: %w", err)
	}
	if got := r.NumPage(); got != want {
		return fmt.Errorf("container has %d pages, expected %d", got, want)
	}
	return nil
}

// CountPages opens a PDF and returns its page count.
func CountPages(path string) (int, error) {
	f, r, err := pdfread.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return r.NumPage(), nil
}
