package config

import (
	"sort"

	"book-binder/internal/types"
)

// Unit conversions. PDF user space is 72 points per inch.
const (
	MMToPoint   = 72.0 / 25.4
	PointToMM   = 25.4 / 72.0
	InchToPoint = 72.0
)

// Margin and gutter defaults. Margins grow with the page's short edge,
// the gutter with its width.
const (
	BaseMargin         = 22.0 // points
	ProportionalMargin = 0.04
	BaseGutter         = 15.0 // points
	ProportionalGutter = 0.011
)

// MinColumnWidth is the narrowest column the newspaper layout accepts.
const MinColumnWidth = 110 * MMToPoint

// PageSize describes one named entry of the trim-size catalogue.
type PageSize struct {
	Name      string
	Width     float64 // points
	Height    float64 // points
	Newspaper bool    // eligible as a newspaper sheet size
}

// pageSizes is the trim-size catalogue. Widths and heights are points.
var pageSizes = map[string]PageSize{
	"COMICBOOK":   {Name: "COMICBOOK", Width: 6.625 * InchToPoint, Height: 10.25 * InchToPoint},
	"POCKET":      {Name: "POCKET", Width: 4.25 * InchToPoint, Height: 6.875 * InchToPoint},
	"USLETTER":    {Name: "USLETTER", Width: 8.5 * InchToPoint, Height: 11 * InchToPoint},
	"USTRADE":     {Name: "USTRADE", Width: 6 * InchToPoint, Height: 9 * InchToPoint},
	"ROYAL":       {Name: "ROYAL", Width: 6.139 * InchToPoint, Height: 9.21 * InchToPoint},
	"CROWNQUARTO": {Name: "CROWNQUARTO", Width: 7.444 * InchToPoint, Height: 9.681 * InchToPoint},
	"DIGEST":      {Name: "DIGEST", Width: 5.5 * InchToPoint, Height: 8.5 * InchToPoint},
	"US5x8":       {Name: "US5x8", Width: 5 * InchToPoint, Height: 8 * InchToPoint},
	"US7x10":      {Name: "US7x10", Width: 7 * InchToPoint, Height: 10 * InchToPoint},
	"A5":          {Name: "A5", Width: 148 * MMToPoint, Height: 210 * MMToPoint},
	"A4":          {Name: "A4", Width: 210 * MMToPoint, Height: 297 * MMToPoint},
	"A3":          {Name: "A3", Width: 297 * MMToPoint, Height: 420 * MMToPoint, Newspaper: true},
	"A2":          {Name: "A2", Width: 420 * MMToPoint, Height: 594 * MMToPoint, Newspaper: true},
	"A1":          {Name: "A1", Width: 594 * MMToPoint, Height: 841 * MMToPoint},
	"B5":          {Name: "B5", Width: 176 * MMToPoint, Height: 250 * MMToPoint},
	"B4":          {Name: "B4", Width: 250 * MMToPoint, Height: 353 * MMToPoint},
	"UKTABLOID":   {Name: "UKTABLOID", Width: 11 * InchToPoint, Height: 17 * InchToPoint, Newspaper: true},
	"BERLINER":    {Name: "BERLINER", Width: 315 * MMToPoint, Height: 470 * MMToPoint, Newspaper: true},
	"FOOLSCAP":    {Name: "FOOLSCAP", Width: 210 * MMToPoint, Height: 330 * MMToPoint},
}

// DefaultPageSize is used when a job names no trim size.
const DefaultPageSize = "COMICBOOK"

// LookupPageSize resolves a catalogue name. Unknown names are an input
// defect, reported as INVALID_INPUT.
func LookupPageSize(name string) (PageSize, error) {
	if name == "" {
		name = DefaultPageSize
	}
	ps, ok := pageSizes[name]
	if !ok {
		return PageSize{}, types.NewAppErrorWithDetails(types.ErrInvalidInput, "unknown page size", name, nil)
	}
	return ps, nil
}

// PageSizeNames returns the catalogue names in sorted order.
func PageSizeNames() []string {
	names := make([]string, 0, len(pageSizes))
	for name := range pageSizes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultMargin returns the default outer margin for a trim size.
func DefaultMargin(ps PageSize) float64 {
	short := ps.Width
	if ps.Height < short {
		short = ps.Height
	}
	return BaseMargin + ProportionalMargin*short
}

// DefaultGutter returns the default binding gutter for a trim size.
func DefaultGutter(ps PageSize) float64 {
	return BaseGutter + ProportionalGutter*ps.Width
}

// Parameter extrema, in points. Maxima are based on B0 paper.
var paramExtrema = map[string][2]float64{
	"page_width":  {1 * MMToPoint, 1000 * MMToPoint},
	"page_height": {1 * MMToPoint, 1414 * MMToPoint},
	"gutter":      {-1000 * MMToPoint, 1000 * MMToPoint},
	"margin":      {0, 1500 * MMToPoint},
}

// ClampParam limits a geometry parameter to its allowed range. Unknown
// parameter names pass through unchanged.
func ClampParam(name string, v float64) float64 {
	ex, ok := paramExtrema[name]
	if !ok {
		return v
	}
	if v < ex[0] {
		return ex[0]
	}
	if v > ex[1] {
		return ex[1]
	}
	return v
}
