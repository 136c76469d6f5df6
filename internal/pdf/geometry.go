package pdf

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdftypes "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"book-binder/internal/logger"
	"book-binder/internal/types"
)

// TrimSpec describes the geometry pass over one document section.
type TrimSpec struct {
	// Trim box dimensions in points.
	Width, Height float64
	// Source (rendered) page dimensions in points; the trim box is
	// centered within them.
	SourceWidth, SourceHeight float64
	// Gutter is the binding shift in points. Zero disables shifting.
	Gutter float64
	// ParityOffset is the number of pages preceding this section in
	// the final merged document. Gutter alternation is keyed to final
	// page parity, so the offset keeps the shift continuous across the
	// front-matter/body boundary.
	ParityOffset int
	// SpineRight shifts content toward a right-hand spine instead of a
	// left-hand one (right-to-left books).
	SpineRight bool
}

// Validate reports caller input defects: a trim box that does not fit
// the source page, or a gutter too large to leave any printable width.
func (s TrimSpec) Validate() error {
	if s.Width <= 0 || s.Height <= 0 {
		return types.NewAppErrorWithDetails(types.ErrGeometry, "trim size must be positive",
			fmt.Sprintf("%.1fx%.1f", s.Width, s.Height), nil)
	}
	if s.Width > s.SourceWidth || s.Height > s.SourceHeight {
		return types.NewAppErrorWithDetails(types.ErrGeometry, "trim box larger than source page",
			fmt.Sprintf("trim %.1fx%.1f source %.1fx%.1f", s.Width, s.Height, s.SourceWidth, s.SourceHeight), nil)
	}
	if g := s.Gutter; g < 0 || g >= s.Width/2 {
		return types.NewAppErrorWithDetails(types.ErrGeometry, "invalid gutter offset",
			fmt.Sprintf("gutter %.1f for trim width %.1f", g, s.Width), nil)
	}
	return nil
}

// boxDesc returns the pdfcpu box descriptor for a trim box centered in
// the source page and shifted horizontally by dx points.
func (s TrimSpec) boxDesc(dx float64) string {
	if dx == 0 {
		return fmt.Sprintf("pos:c, dim:%.2f %.2f", s.Width, s.Height)
	}
	return fmt.Sprintf("pos:c, off:%.2f 0, dim:%.2f %.2f", dx, s.Width, s.Height)
}

// shiftFor returns the crop-window offset for a page at 1-indexed final
// position. Content moves opposite to the window: shifting the window
// by -g pushes content +g toward a left-hand spine on recto pages.
func (s TrimSpec) shiftFor(finalPage int) float64 {
	recto := finalPage%2 == 1
	if s.SpineRight {
		recto = !recto
	}
	if recto {
		return -s.Gutter
	}
	return s.Gutter
}

// oddEvenSelections maps final-parity selections onto this section's
// local page numbering. When an odd number of pages precede the
// section, local parity is inverted.
func (s TrimSpec) oddEvenSelections() (oddFinal, evenFinal string) {
	if s.ParityOffset%2 == 0 {
		return "odd", "even"
	}
	return "even", "odd"
}

// Crop crops every page of in to the trim box and, when a gutter is
// set, alternates the horizontal shift by final page parity. The page
// count is preserved.
func Crop(in, out string, spec TrimSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}

	logger.Info("cropping to trim size",
		logger.String("in", in),
		logger.Float64("width", spec.Width),
		logger.Float64("height", spec.Height),
		logger.Float64("gutter", spec.Gutter))

	conf := newConfiguration()

	if spec.Gutter == 0 {
		box, err := api.Box(spec.boxDesc(0), pdftypes.POINTS)
		if err != nil {
			return types.NewAppError(types.ErrInternal, "failed to build crop box", err)
		}
		if err := api.CropFile(in, out, nil, box, conf); err != nil {
			return types.NewAppErrorWithDetails(types.ErrTool, "crop failed", in, err)
		}
		return nil
	}

	// Two passes: crop pages at odd final positions with the recto
	// box, then pages at even final positions with the verso box.
	oddSel, evenSel := spec.oddEvenSelections()

	rectoBox, err := api.Box(spec.boxDesc(spec.shiftFor(1)), pdftypes.POINTS)
	if err != nil {
		return types.NewAppError(types.ErrInternal, "failed to build recto crop box", err)
	}
	versoBox, err := api.Box(spec.boxDesc(spec.shiftFor(2)), pdftypes.POINTS)
	if err != nil {
		return types.NewAppError(types.ErrInternal, "failed to build verso crop box", err)
	}

	mid := out + ".gutter.tmp.pdf"
	if err := api.CropFile(in, mid, []string{oddSel}, rectoBox, conf); err != nil {
		return types.NewAppErrorWithDetails(types.ErrTool, "gutter crop (recto pass) failed", in, err)
	}
	if err := api.CropFile(mid, out, []string{evenSel}, versoBox, conf); err != nil {
		return types.NewAppErrorWithDetails(types.ErrTool, "gutter crop (verso pass) failed", in, err)
	}
	removeQuiet(mid)

	return nil
}
