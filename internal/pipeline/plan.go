// Package pipeline orchestrates one conversion job: fetch, assemble,
// render, paginate, number, merge, export.
package pipeline

import (
	"fmt"

	"book-binder/internal/config"
	"book-binder/internal/types"
)

// Plan is the resolved geometry for one job, fixed before any
// rendering happens. All dimensions are points.
type Plan struct {
	Mode types.OutputMode

	// Final page (or sheet, in newspaper mode) trim size.
	TrimWidth  float64
	TrimHeight float64

	// Gutter shift for booklet binding; zero otherwise.
	Gutter float64

	// Render sizes. The body and front matter are rendered oversized
	// by the gutter on both edges so the shifted crop window always
	// stays inside the page.
	BodyRenderWidth   float64
	BodyRenderHeight  float64
	FrontRenderWidth  float64
	FrontRenderHeight float64

	// Newspaper imposition.
	NUp int

	SpineRight bool
	RotateFlip bool
}

// nupGrid gives columns x rows for the supported imposition counts.
var nupGrid = map[int][2]int{
	2: {2, 1}, 3: {3, 1}, 4: {2, 2}, 6: {3, 2},
	8: {4, 2}, 9: {3, 3}, 12: {4, 3}, 16: {4, 4},
}

// ComputePlan resolves a job request against the page-size catalogue.
// Explicit trim dimensions win over the named size; out-of-range
// values are clamped rather than rejected.
func ComputePlan(req types.JobRequest, dir types.TextDirection) (*Plan, error) {
	ps, err := config.LookupPageSize(req.PageSize)
	if err != nil {
		return nil, err
	}

	trimW, trimH := ps.Width, ps.Height
	if req.TrimWidth > 0 {
		trimW = config.ClampParam("page_width", req.TrimWidth)
	}
	if req.TrimHeight > 0 {
		trimH = config.ClampParam("page_height", req.TrimHeight)
	}

	plan := &Plan{
		Mode:       req.Mode,
		TrimWidth:  trimW,
		TrimHeight: trimH,
		SpineRight: dir == types.DirectionRTL,
		RotateFlip: req.RotateFlip,
	}

	switch req.Mode {
	case types.ModePDF, types.ModeODT, types.ModeEpub:
		plan.BodyRenderWidth, plan.BodyRenderHeight = trimW, trimH
		plan.FrontRenderWidth, plan.FrontRenderHeight = trimW, trimH

	case types.ModeBooklet:
		gutter := req.Gutter
		if gutter <= 0 {
			gutter = config.DefaultGutter(ps)
		}
		gutter = config.ClampParam("gutter", gutter)
		if gutter < 0 {
			gutter = 0
		}
		if gutter >= trimW/2 {
			return nil, types.NewAppErrorWithDetails(types.ErrGeometry,
				"gutter leaves no printable width",
				fmt.Sprintf("gutter %.1f, trim width %.1f", gutter, trimW), nil)
		}
		plan.Gutter = gutter
		plan.BodyRenderWidth = trimW + 2*gutter
		plan.BodyRenderHeight = trimH
		plan.FrontRenderWidth = trimW + 2*gutter
		plan.FrontRenderHeight = trimH

	case types.ModeNewspaper:
		if !ps.Newspaper {
			return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput,
				"page size is not a newspaper sheet", ps.Name, nil)
		}
		n := req.NUp
		if n == 0 {
			n = 4
		}
		grid, ok := nupGrid[n]
		if !ok {
			return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput,
				"unsupported n-up count", fmt.Sprintf("%d", n), nil)
		}
		plan.NUp = n

		colW := req.ColumnWidth
		if colW <= 0 {
			colW = trimW / float64(grid[0])
		}
		if colW < config.MinColumnWidth {
			return nil, types.NewAppErrorWithDetails(types.ErrGeometry,
				"column narrower than minimum",
				fmt.Sprintf("%.1f < %.1f points", colW, config.MinColumnWidth), nil)
		}
		plan.BodyRenderWidth = colW
		plan.BodyRenderHeight = trimH / float64(grid[1])
		plan.FrontRenderWidth, plan.FrontRenderHeight = trimW, trimH

	default:
		return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput,
			"unknown output mode", string(req.Mode), nil)
	}

	return plan, nil
}
