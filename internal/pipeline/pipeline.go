package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"book-binder/internal/assemble"
	"book-binder/internal/book"
	"book-binder/internal/downloader"
	"book-binder/internal/export"
	"book-binder/internal/logger"
	"book-binder/internal/pdf"
	"book-binder/internal/render"
	"book-binder/internal/toc"
	"book-binder/internal/types"
)

// StatusFunc receives progress updates. Nil is allowed.
type StatusFunc func(types.Status)

// Pipeline runs conversion jobs. One Run is strictly sequential; a
// Pipeline may run jobs concurrently because all per-job state lives
// in the job's scratch directory and request value.
type Pipeline struct {
	cfg *types.Config

	source   Source
	editor   PageEditor
	merger   Merger
	imposer  Imposer
	exporter Exporter

	// startDisplay allocates a virtual display for the renderer; nil
	// means the environment already provides one. newRenderer builds
	// the renderer bound to that display.
	startDisplay func(ctx context.Context) (*render.Display, error)
	newRenderer  func(d *render.Display) render.Renderer

	status StatusFunc
}

// New builds the production pipeline from configuration.
func New(cfg *types.Config, status StatusFunc) *Pipeline {
	tools := pdfTools{}
	timeout := render.DefaultTimeout
	if cfg.ToolTimeoutSecs > 0 {
		timeout = time.Duration(cfg.ToolTimeoutSecs) * time.Second
	}
	return &Pipeline{
		cfg:      cfg,
		source:   NewPackageSource(downloader.NewFetcher(filepath.Join(cfg.TmpRoot, "fetch")), cfg.PackageServer),
		editor:   tools,
		merger:   tools,
		imposer:  tools,
		exporter: export.NewExporter(cfg.SofficePath, cfg.EbookConvert, timeout),
		startDisplay: func(ctx context.Context) (*render.Display, error) {
			return render.StartDisplay(ctx, cfg.XvfbPath)
		},
		newRenderer: func(d *render.Display) render.Renderer {
			return render.NewWkRenderer(cfg.WkhtmltopdfPath, d, timeout, pdf.PageCount)
		},
		status: status,
	}
}

func (p *Pipeline) report(phase types.JobPhase, progress int, msg string) {
	if p.status != nil {
		p.status(types.Status{Phase: phase, Progress: progress, Message: msg})
	}
}

func (p *Pipeline) fail(phase types.JobPhase, err error) (*types.JobResult, error) {
	diag := err.Error()
	logger.Error("job failed", err, logger.String("stage", string(phase)))
	if p.status != nil {
		p.status(types.Status{Phase: types.PhaseFailed, Message: string(phase), Error: diag})
	}
	return &types.JobResult{
		FailedStage: phase,
		Diagnostic:  diag,
	}, err
}

// Run executes one job. Failure at any stage aborts the job with the
// stage recorded; there is no automatic retry.
func (p *Pipeline) Run(ctx context.Context, req types.JobRequest) (*types.JobResult, error) {
	scratchDir, err := os.MkdirTemp(p.cfg.TmpRoot, "bind-*")
	if err != nil {
		return p.fail(types.PhaseIdle, types.NewAppError(types.ErrInternal, "cannot create scratch directory", err))
	}
	defer func() {
		if p.cfg.KeepScratch {
			logger.Info("scratch kept", logger.String("dir", scratchDir))
			return
		}
		os.RemoveAll(scratchDir)
	}()

	p.report(types.PhaseFetch, 5, "fetching book package")
	pkg, err := p.source.Load(ctx, req)
	if err != nil {
		return p.fail(types.PhaseFetch, err)
	}

	p.report(types.PhasePlan, 10, "planning layout")
	plan, err := ComputePlan(req, pkg.Direction)
	if err != nil {
		return p.fail(types.PhasePlan, err)
	}

	bodyHTMLPath, err := assemble.WriteScratch(pkg, scratchDir)
	if err != nil {
		return p.fail(types.PhasePlan, err)
	}

	// The converter formats bypass pagination entirely.
	if plan.Mode == types.ModeODT || plan.Mode == types.ModeEpub {
		return p.runExport(ctx, plan, pkg, scratchDir, req.OutputPath)
	}

	var display *render.Display
	if p.startDisplay != nil {
		display, err = p.startDisplay(ctx)
		if err != nil {
			return p.fail(types.PhaseRenderBody, err)
		}
		defer display.Release()
	}
	renderer := p.newRenderer(display)

	// Body pass. The outline dump feeds the TOC build.
	p.report(types.PhaseRenderBody, 15, "rendering body")
	outlinePath := filepath.Join(scratchDir, "outline.xml")
	bodyPDF := filepath.Join(scratchDir, "body.pdf")
	bodyRes, err := renderer.Render(ctx, render.Request{
		HTMLPath:    bodyHTMLPath,
		OutPath:     bodyPDF,
		PageWidth:   plan.BodyRenderWidth,
		PageHeight:  plan.BodyRenderHeight,
		OutlinePath: outlinePath,
	})
	if err != nil {
		return p.fail(types.PhaseRenderBody, err)
	}
	rawBodyPages := bodyRes.PageCount

	p.report(types.PhaseExtractOutline, 30, "extracting outline")
	entries := toc.ExtractOutline(outlinePath, rawBodyPages)

	// The front-matter page count is fixed here, before the front
	// matter exists. Everything downstream depends on it.
	p.report(types.PhaseBuildTOC, 35, "building table of contents")
	frontPlanned := toc.FrontMatterPages(len(entries))
	fragment := toc.BuildFragment(entries, "", pkg.Direction)

	prelimPath := filepath.Join(scratchDir, assemble.PreliminaryFileName)
	if err := os.WriteFile(prelimPath, []byte(assemble.PreliminaryHTML(pkg, fragment)), 0644); err != nil {
		return p.fail(types.PhaseBuildTOC, types.NewAppError(types.ErrInternal, "cannot write preliminary document", err))
	}

	p.report(types.PhaseRenderPreliminary, 45, "rendering front matter")
	frontPDF := filepath.Join(scratchDir, "front.pdf")
	frontRes, err := renderer.Render(ctx, render.Request{
		HTMLPath:   prelimPath,
		OutPath:    frontPDF,
		PageWidth:  plan.FrontRenderWidth,
		PageHeight: plan.FrontRenderHeight,
	})
	if err != nil {
		return p.fail(types.PhaseRenderPreliminary, err)
	}
	if frontRes.PageCount != frontPlanned {
		return p.fail(types.PhaseRenderPreliminary, types.NewAppErrorWithDetails(
			types.ErrNumberingMismatch,
			"front matter page count differs from plan",
			fmt.Sprintf("planned %d, rendered %d", frontPlanned, frontRes.PageCount),
			nil))
	}

	// Body geometry, or imposition in newspaper mode.
	bodyFinal := filepath.Join(scratchDir, "body-final.pdf")
	bodyPages := rawBodyPages
	if plan.Mode == types.ModeNewspaper {
		p.report(types.PhaseImpose, 55, "imposing newspaper sheets")
		imposed, err := p.imposer.Impose(bodyPDF, bodyFinal, plan.NUp, plan.TrimWidth, plan.TrimHeight)
		if err != nil {
			return p.fail(types.PhaseImpose, err)
		}
		if want := pdf.ImposedPageCount(rawBodyPages, plan.NUp); imposed != want {
			return p.fail(types.PhaseImpose, types.NewAppErrorWithDetails(
				types.ErrGeometry, "imposed sheet count differs from plan",
				fmt.Sprintf("want %d, got %d", want, imposed), nil))
		}
		bodyPages = imposed
	} else {
		p.report(types.PhaseGeometryBody, 55, "cropping body")
		err := p.editor.Crop(bodyPDF, bodyFinal, pdf.TrimSpec{
			Width:        plan.TrimWidth,
			Height:       plan.TrimHeight,
			SourceWidth:  plan.BodyRenderWidth,
			SourceHeight: plan.BodyRenderHeight,
			Gutter:       plan.Gutter,
			ParityOffset: frontPlanned,
			SpineRight:   plan.SpineRight,
		})
		if err != nil {
			return p.fail(types.PhaseGeometryBody, err)
		}
	}

	p.report(types.PhaseGeometryFront, 65, "cropping front matter")
	frontFinal := filepath.Join(scratchDir, "front-final.pdf")
	err = p.editor.Crop(frontPDF, frontFinal, pdf.TrimSpec{
		Width:        plan.TrimWidth,
		Height:       plan.TrimHeight,
		SourceWidth:  plan.FrontRenderWidth,
		SourceHeight: plan.FrontRenderHeight,
		Gutter:       frontGutter(plan),
		SpineRight:   plan.SpineRight,
	})
	if err != nil {
		return p.fail(types.PhaseGeometryFront, err)
	}

	p.report(types.PhaseNumberFront, 75, "numbering front matter")
	frontNumbered := filepath.Join(scratchDir, "front-numbered.pdf")
	frontLabels, err := pdf.Labels(pdf.StyleRomanLower, 1, frontPlanned, nil)
	if err != nil {
		return p.fail(types.PhaseNumberFront, err)
	}
	if err := p.editor.StampLabels(frontFinal, frontNumbered, frontLabels); err != nil {
		return p.fail(types.PhaseNumberFront, err)
	}

	p.report(types.PhaseNumberBody, 80, "numbering body")
	bodyNumbered := filepath.Join(scratchDir, "body-numbered.pdf")
	bodyLabels, err := pdf.Labels(pdf.StyleArabic, 1, bodyPages, nil)
	if err != nil {
		return p.fail(types.PhaseNumberBody, err)
	}
	if err := p.editor.StampLabels(bodyFinal, bodyNumbered, bodyLabels); err != nil {
		return p.fail(types.PhaseNumberBody, err)
	}

	p.report(types.PhaseMerge, 88, "merging document")
	merged := filepath.Join(scratchDir, "merged.pdf")
	if err := p.merger.Merge([]string{frontNumbered, bodyNumbered}, merged); err != nil {
		return p.fail(types.PhaseMerge, err)
	}
	total, err := p.merger.PageCount(merged)
	if err != nil {
		return p.fail(types.PhaseMerge, err)
	}
	if total != frontPlanned+bodyPages {
		return p.fail(types.PhaseMerge, types.NewAppErrorWithDetails(
			types.ErrNumberingMismatch,
			"merged page count differs from plan",
			fmt.Sprintf("front %d + body %d != total %d", frontPlanned, bodyPages, total),
			nil))
	}

	final := merged
	if plan.RotateFlip {
		p.report(types.PhaseRotate, 93, "rotating for reversed binding")
		rotated := filepath.Join(scratchDir, "rotated.pdf")
		if err := p.merger.Rotate180(merged, rotated); err != nil {
			return p.fail(types.PhaseRotate, err)
		}
		final = rotated
	}

	outPath := req.OutputPath
	if outPath == "" {
		outPath = filepath.Join(p.cfg.TmpRoot, "book.pdf")
	}
	if err := moveFile(final, outPath); err != nil {
		return p.fail(types.PhaseMerge, types.NewAppError(types.ErrInternal, "cannot place artifact", err))
	}

	p.report(types.PhaseDone, 100, "done")
	logger.Info("job complete",
		logger.String("artifact", outPath),
		logger.Int("frontPages", frontPlanned),
		logger.Int("bodyPages", bodyPages))
	return &types.JobResult{
		ArtifactPath: outPath,
		Format:       types.ModePDF,
		Done:         true,
		FrontPages:   frontPlanned,
		BodyPages:    bodyPages,
		TotalPages:   frontPlanned + bodyPages,
	}, nil
}

func (p *Pipeline) runExport(ctx context.Context, plan *Plan, pkg *book.BookPackage, scratchDir, outPath string) (*types.JobResult, error) {
	p.report(types.PhaseExport, 50, "converting")
	var err error
	switch plan.Mode {
	case types.ModeODT:
		err = p.exporter.ToODT(ctx, pkg, scratchDir, outPath)
	case types.ModeEpub:
		err = p.exporter.ToEpub(ctx, pkg, scratchDir, outPath)
	}
	if err != nil {
		return p.fail(types.PhaseExport, err)
	}
	p.report(types.PhaseDone, 100, "done")
	return &types.JobResult{
		ArtifactPath: outPath,
		Format:       plan.Mode,
		Done:         true,
	}, nil
}

// frontGutter returns the gutter for the front-matter geometry pass.
// The front matter starts the final document, so its parity offset is
// zero and its gutter matches the body's in booklet mode.
func frontGutter(plan *Plan) float64 {
	if plan.Mode == types.ModeBooklet {
		return plan.Gutter
	}
	return 0
}

func moveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	// Rename fails across filesystems; fall back to a copy.
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
