package pdf

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"book-binder/internal/logger"
	"book-binder/internal/types"
)

// ImposedPageCount returns the sheet count after N-up imposition.
func ImposedPageCount(rawPages, n int) int {
	if n < 1 || rawPages < 1 {
		return rawPages
	}
	return (rawPages + n - 1) / n
}

// validNUp holds the grid sizes pdfcpu can impose.
var validNUp = map[int]bool{2: true, 3: true, 4: true, 6: true, 8: true, 9: true, 12: true, 16: true}

// Impose lays n consecutive pages of in onto each sheet of out
// (newspaper mode). Sheets are sheetWidth x sheetHeight points. The
// resulting page count is ceil(input/n), which is returned.
func Impose(in, out string, n int, sheetWidth, sheetHeight float64) (int, error) {
	if !validNUp[n] {
		return 0, types.NewAppErrorWithDetails(types.ErrInvalidInput, "unsupported n-up value",
			fmt.Sprintf("%d", n), nil)
	}

	rawPages, err := PageCount(in)
	if err != nil {
		return 0, err
	}

	logger.Info("imposing pages",
		logger.String("in", in),
		logger.Int("n", n),
		logger.Int("rawPages", rawPages))

	desc := fmt.Sprintf("dimensions:%.0f %.0f, border:off", sheetWidth, sheetHeight)
	nup, err := api.PDFNUpConfig(n, desc, newConfiguration())
	if err != nil {
		return 0, types.NewAppError(types.ErrInternal, "failed to build n-up configuration", err)
	}

	if err := api.NUpFile([]string{in}, out, nil, nup, newConfiguration()); err != nil {
		return 0, types.NewAppErrorWithDetails(types.ErrTool, "imposition failed", in, err)
	}

	want := ImposedPageCount(rawPages, n)
	got, err := PageCount(out)
	if err != nil {
		return 0, err
	}
	if got != want {
		return 0, types.NewAppErrorWithDetails(types.ErrTool, "imposition page count mismatch",
			fmt.Sprintf("got %d sheets, want %d", got, want), nil)
	}
	return got, nil
}
