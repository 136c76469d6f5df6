package pdf

import (
	"fmt"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	pdftypes "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"book-binder/internal/logger"
	"book-binder/internal/types"
)

// NumberStyle selects the numeral system for a numbering pass.
type NumberStyle string

const (
	// StyleRomanLower numbers pages i, ii, iii, ... (front matter).
	StyleRomanLower NumberStyle = "roman-lower"
	// StyleArabic numbers pages 1, 2, 3, ... (body).
	StyleArabic NumberStyle = "arabic"
)

var romanValues = []struct {
	value  int
	symbol string
}{
	{1000, "m"}, {900, "cm"}, {500, "d"}, {400, "cd"},
	{100, "c"}, {90, "xc"}, {50, "l"}, {40, "xl"},
	{10, "x"}, {9, "ix"}, {5, "v"}, {4, "iv"}, {1, "i"},
}

// Roman converts n to a lowercase roman numeral. Values below 1 return
// the empty string.
func Roman(n int) string {
	if n < 1 {
		return ""
	}
	var sb strings.Builder
	for _, rv := range romanValues {
		for n >= rv.value {
			sb.WriteString(rv.symbol)
			n -= rv.value
		}
	}
	return sb.String()
}

// Labels produces the ordered page labels for a numbering pass of count
// pages starting at start. Overrides maps 1-indexed positions within
// the pass to a replacement label; an empty override skips the stamp on
// that page entirely. Overridden pages still consume their numeral so
// the sequence order never changes.
func Labels(style NumberStyle, start, count int, overrides map[int]string) ([]string, error) {
	if start < 1 {
		return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput, "numbering must start at 1 or above",
			fmt.Sprintf("start %d", start), nil)
	}
	if count < 0 {
		return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput, "negative page count",
			fmt.Sprintf("count %d", count), nil)
	}

	labels := make([]string, count)
	for i := 0; i < count; i++ {
		if label, ok := overrides[i+1]; ok {
			labels[i] = label
			continue
		}
		n := start + i
		switch style {
		case StyleRomanLower:
			labels[i] = Roman(n)
		case StyleArabic:
			labels[i] = fmt.Sprintf("%d", n)
		default:
			return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput, "unknown numbering style", string(style), nil)
		}
	}
	return labels, nil
}

// stampDesc places the numeral centered in the bottom margin. The
// stamp is an absolute-scale text overlay; it never alters page
// geometry.
const stampDesc = "font:Helvetica, points:11, pos:bc, off:0 18, scale:1 abs, rot:0, fillcolor:#000000"

// StampLabels stamps one label per page, in page order. The label
// slice length must equal the page count of in; pages with an empty
// label are left unstamped.
func StampLabels(in, out string, labels []string) error {
	count, err := PageCount(in)
	if err != nil {
		return err
	}
	if count != len(labels) {
		return types.NewAppErrorWithDetails(types.ErrNumberingMismatch,
			"label count does not match page count",
			fmt.Sprintf("%d labels for %d pages", len(labels), count), nil)
	}

	logger.Info("stamping page numbers",
		logger.String("in", in),
		logger.Int("pages", count))

	stamps := make(map[int]*model.Watermark, count)
	for i, label := range labels {
		if label == "" {
			continue
		}
		wm, err := api.TextWatermark(label, stampDesc, true, false, pdftypes.POINTS)
		if err != nil {
			return types.NewAppError(types.ErrInternal, "failed to build page number stamp", err)
		}
		stamps[i+1] = wm
	}

	if len(stamps) == 0 {
		return copyFile(in, out)
	}

	if err := api.AddWatermarksMapFile(in, out, stamps, newConfiguration()); err != nil {
		return types.NewAppErrorWithDetails(types.ErrTool, "page number stamping failed", in, err)
	}
	return nil
}
