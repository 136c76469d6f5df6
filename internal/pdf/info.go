// Package pdf wraps the page-level PDF operations of the binding
// pipeline: cropping to trim size, gutter shifts, page-number stamps,
// concatenation, rotation, and N-up imposition. All operations preserve
// page order; page counts change only where documented.
package pdf

import (
	"os"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"book-binder/internal/types"
)

func newConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// PageCount returns the number of pages in a PDF file.
func PageCount(path string) (int, error) {
	if _, err := os.Stat(path); err != nil {
		return 0, types.NewAppError(types.ErrFileNotFound, "PDF file not found", err)
	}
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, types.NewAppErrorWithDetails(types.ErrTool, "failed to read PDF page count", path, err)
	}
	return n, nil
}

// VerifyPageCount cross-checks the pdfcpu page count against an
// independent read. Renderer output is occasionally malformed in ways
// one parser tolerates and the other does not; a disagreement means the
// file cannot be trusted for pagination math.
func VerifyPageCount(path string) (int, error) {
	n, err := PageCount(path)
	if err != nil {
		return 0, err
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		// Secondary reader failing alone is not fatal.
		return n, nil
	}
	defer f.Close()

	if m := r.NumPage(); m != n {
		return 0, types.NewAppErrorWithDetails(types.ErrTool,
			"page count disagreement between PDF readers", path, nil)
	}
	return n, nil
}
