package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"book-binder/internal/book"
	"book-binder/internal/pdf"
	"book-binder/internal/render"
	"book-binder/internal/types"
)

// fakeRenderer produces empty files and scripted page counts. The
// body render (recognized by its outline request) also writes the
// outline dump.
type fakeRenderer struct {
	bodyPages  int
	outlineXML string
	// frontPages overrides the computed front page count when > 0, to
	// provoke mismatches.
	frontPages int
	planFront  func() int
	// pages is the fake tools' page table, so downstream passes see
	// the rendered counts.
	pages map[string]int
}

func (f *fakeRenderer) Render(ctx context.Context, req render.Request) (*render.Result, error) {
	if err := os.WriteFile(req.OutPath, []byte("%PDF-fake"), 0644); err != nil {
		return nil, err
	}
	if req.OutlinePath != "" {
		if f.outlineXML != "" {
			if err := os.WriteFile(req.OutlinePath, []byte(f.outlineXML), 0644); err != nil {
				return nil, err
			}
		}
		f.pages[req.OutPath] = f.bodyPages
		return &render.Result{PDFPath: req.OutPath, PageCount: f.bodyPages}, nil
	}
	pages := f.frontPages
	if pages == 0 {
		pages = f.planFront()
	}
	f.pages[req.OutPath] = pages
	return &render.Result{PDFPath: req.OutPath, PageCount: pages}, nil
}

// fakeTools records the editing passes and tracks page counts per
// file so the merge invariant can be asserted without real PDFs.
type fakeTools struct {
	pages       map[string]int
	cropSpecs   []pdf.TrimSpec
	stamped     map[string][]string
	merged      [][]string
	rotated     int
	imposeCalls int
}

func newFakeTools() *fakeTools {
	return &fakeTools{pages: make(map[string]int), stamped: make(map[string][]string)}
}

func (f *fakeTools) Crop(in, out string, spec pdf.TrimSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	f.cropSpecs = append(f.cropSpecs, spec)
	f.pages[out] = f.pages[in]
	return copyFake(in, out)
}

func (f *fakeTools) StampLabels(in, out string, labels []string) error {
	if got := f.pages[in]; got != len(labels) {
		return types.NewAppErrorWithDetails(types.ErrNumberingMismatch, "label count mismatch",
			fmt.Sprintf("%d labels for %d pages", len(labels), got), nil)
	}
	f.stamped[filepath.Base(out)] = labels
	f.pages[out] = f.pages[in]
	return copyFake(in, out)
}

func (f *fakeTools) Merge(inputs []string, out string) error {
	f.merged = append(f.merged, inputs)
	total := 0
	for _, in := range inputs {
		total += f.pages[in]
	}
	f.pages[out] = total
	return os.WriteFile(out, []byte("%PDF-merged"), 0644)
}

func (f *fakeTools) Rotate180(in, out string) error {
	f.rotated++
	f.pages[out] = f.pages[in]
	return copyFake(in, out)
}

func (f *fakeTools) PageCount(path string) (int, error) { return f.pages[path], nil }

func (f *fakeTools) Impose(in, out string, n int, w, h float64) (int, error) {
	f.imposeCalls++
	imposed := pdf.ImposedPageCount(f.pages[in], n)
	f.pages[out] = imposed
	return imposed, copyFake(in, out)
}

func copyFake(in, out string) error {
	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	return os.WriteFile(out, data, 0644)
}

// fakeSource returns a prebuilt package without any fetching.
type fakeSource struct{ pkg *book.BookPackage }

func (s fakeSource) Load(ctx context.Context, req types.JobRequest) (*book.BookPackage, error) {
	return s.pkg, nil
}

func testBook() *book.BookPackage {
	pkg := &book.BookPackage{
		Metadata:  make(book.Metadata),
		Direction: types.DirectionLTR,
		Manifest:  map[string]book.ManifestItem{},
		Spine: []book.Chapter{
			{ID: "ch1", Title: "One", HTML: "<p>1</p>"},
			{ID: "ch2", Title: "Two", HTML: "<p>2</p>"},
		},
	}
	pkg.Metadata.Set(book.NamespaceDC, "title", "", "Test Book")
	return pkg
}

// outlineFor builds a renderer outline dump with headings at the given
// 1-indexed pages.
func outlineFor(pages ...int) string {
	var sb strings.Builder
	sb.WriteString(`<outline>`)
	for i, p := range pages {
		fmt.Fprintf(&sb, `<item title="Chapter %d" page="%d"/>`, i+1, p)
	}
	sb.WriteString(`</outline>`)
	return sb.String()
}

type testEnv struct {
	pipeline *Pipeline
	tools    *fakeTools
	renderer *fakeRenderer
	statuses []types.Status
}

func newTestEnv(t *testing.T, bodyPages int, outline string) *testEnv {
	t.Helper()
	env := &testEnv{tools: newFakeTools()}
	env.renderer = &fakeRenderer{bodyPages: bodyPages, outlineXML: outline, pages: env.tools.pages}

	cfg := &types.Config{TmpRoot: t.TempDir()}
	env.pipeline = &Pipeline{
		cfg:     cfg,
		source:  fakeSource{pkg: testBook()},
		editor:  env.tools,
		merger:  env.tools,
		imposer: env.tools,
		newRenderer: func(d *render.Display) render.Renderer {
			return env.renderer
		},
		status: func(s types.Status) { env.statuses = append(env.statuses, s) },
	}
	return env
}

func (e *testEnv) run(t *testing.T, req types.JobRequest) *types.JobResult {
	t.Helper()
	res, err := e.pipeline.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return res
}

func TestRunSingleModeTenPages(t *testing.T) {
	// Ten raw body pages with headings on raw pages 1, 4 and 8 give
	// three outline entries, a one-page TOC and three front pages.
	env := newTestEnv(t, 10, outlineFor(1, 4, 8))
	env.renderer.planFront = func() int { return 3 }

	out := filepath.Join(t.TempDir(), "book.pdf")
	res := env.run(t, types.JobRequest{Mode: types.ModePDF, OutputPath: out})

	if res.FrontPages != 3 || res.BodyPages != 10 || res.TotalPages != 13 {
		t.Errorf("pages = %d front, %d body, %d total", res.FrontPages, res.BodyPages, res.TotalPages)
	}
	if !res.Done {
		t.Error("job should report done")
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("artifact missing: %v", err)
	}

	// Roman front labels in order from i, arabic body labels.
	front := env.tools.stamped["front-numbered.pdf"]
	if len(front) != 3 || front[0] != "i" || front[1] != "ii" || front[2] != "iii" {
		t.Errorf("front labels = %v", front)
	}
	body := env.tools.stamped["body-numbered.pdf"]
	if len(body) != 10 || body[0] != "1" || body[9] != "10" {
		t.Errorf("body labels = %v", body)
	}
}

func TestRunBookletCarriesParityOffset(t *testing.T) {
	env := newTestEnv(t, 6, outlineFor(1))
	env.renderer.planFront = func() int { return 3 }

	env.run(t, types.JobRequest{
		Mode:       types.ModeBooklet,
		PageSize:   "A5",
		OutputPath: filepath.Join(t.TempDir(), "b.pdf"),
	})

	if len(env.tools.cropSpecs) != 2 {
		t.Fatalf("expected body and front crop, got %d", len(env.tools.cropSpecs))
	}
	bodySpec, frontSpec := env.tools.cropSpecs[0], env.tools.cropSpecs[1]
	if bodySpec.ParityOffset != 3 {
		t.Errorf("body parity offset = %d, want 3 (front pages)", bodySpec.ParityOffset)
	}
	if frontSpec.ParityOffset != 0 {
		t.Errorf("front parity offset = %d, want 0", frontSpec.ParityOffset)
	}
	if bodySpec.Gutter <= 0 || frontSpec.Gutter != bodySpec.Gutter {
		t.Errorf("gutters: body %f front %f", bodySpec.Gutter, frontSpec.Gutter)
	}
}

func TestRunPlanFailureReportsPlanStage(t *testing.T) {
	env := newTestEnv(t, 6, outlineFor(1))

	// A5 is 419.5pt wide; a 500pt gutter can never fit beside the trim.
	res, err := env.pipeline.Run(context.Background(), types.JobRequest{
		Mode:       types.ModeBooklet,
		PageSize:   "A5",
		Gutter:     500,
		OutputPath: filepath.Join(t.TempDir(), "b.pdf"),
	})
	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code != types.ErrGeometry {
		t.Fatalf("want GEOMETRY error, got %v", err)
	}
	if res.FailedStage != types.PhasePlan {
		t.Errorf("failed stage = %q, want %q", res.FailedStage, types.PhasePlan)
	}

	last := env.statuses[len(env.statuses)-1]
	if last.Phase != types.PhaseFailed || last.Message != string(types.PhasePlan) {
		t.Errorf("failure status = %+v", last)
	}
}

func TestRunFrontMismatchFails(t *testing.T) {
	env := newTestEnv(t, 10, outlineFor(1, 4, 8))
	env.renderer.frontPages = 5 // plan says 3

	_, err := env.pipeline.Run(context.Background(), types.JobRequest{
		Mode:       types.ModePDF,
		OutputPath: filepath.Join(t.TempDir(), "b.pdf"),
	})
	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code != types.ErrNumberingMismatch {
		t.Fatalf("want NUMBERING_MISMATCH, got %v", err)
	}

	last := env.statuses[len(env.statuses)-1]
	if last.Phase != types.PhaseFailed || last.Message != string(types.PhaseRenderPreliminary) {
		t.Errorf("failure status = %+v", last)
	}
}

func TestRunNewspaperImposes(t *testing.T) {
	env := newTestEnv(t, 10, outlineFor(1))
	env.renderer.planFront = func() int { return 3 }

	res := env.run(t, types.JobRequest{
		Mode:       types.ModeNewspaper,
		PageSize:   "A3",
		NUp:        4,
		OutputPath: filepath.Join(t.TempDir(), "n.pdf"),
	})

	if env.tools.imposeCalls != 1 {
		t.Fatalf("impose called %d times", env.tools.imposeCalls)
	}
	// ceil(10/4) = 3 sheets.
	if res.BodyPages != 3 || res.TotalPages != 6 {
		t.Errorf("pages = %+v", res)
	}
	// Only the front matter is cropped in newspaper mode.
	if len(env.tools.cropSpecs) != 1 {
		t.Errorf("crops = %d, want 1", len(env.tools.cropSpecs))
	}
}

func TestRunRotateFlip(t *testing.T) {
	env := newTestEnv(t, 4, outlineFor(1))
	env.renderer.planFront = func() int { return 3 }

	env.run(t, types.JobRequest{
		Mode:       types.ModePDF,
		RotateFlip: true,
		OutputPath: filepath.Join(t.TempDir(), "r.pdf"),
	})
	if env.tools.rotated != 1 {
		t.Errorf("rotate called %d times, want 1", env.tools.rotated)
	}
}

func TestRunNoRotateByDefault(t *testing.T) {
	env := newTestEnv(t, 4, outlineFor(1))
	env.renderer.planFront = func() int { return 3 }

	env.run(t, types.JobRequest{Mode: types.ModePDF, OutputPath: filepath.Join(t.TempDir(), "r.pdf")})
	if env.tools.rotated != 0 {
		t.Errorf("rotate called %d times, want 0", env.tools.rotated)
	}
}

func TestRunEmptyOutlineStillPaginates(t *testing.T) {
	// No outline: one-page TOC, three front pages.
	env := newTestEnv(t, 5, "")
	env.renderer.planFront = func() int { return 3 }

	res := env.run(t, types.JobRequest{Mode: types.ModePDF, OutputPath: filepath.Join(t.TempDir(), "e.pdf")})
	if res.FrontPages != 3 || res.TotalPages != 8 {
		t.Errorf("pages = %+v", res)
	}
}

func TestRunLongOutlineGrowsTOC(t *testing.T) {
	// 25 headings need a two-page TOC, so four front pages.
	pages := make([]int, 25)
	for i := range pages {
		pages[i] = i + 1
	}
	env := newTestEnv(t, 30, outlineFor(pages...))
	env.renderer.planFront = func() int { return 4 }

	res := env.run(t, types.JobRequest{Mode: types.ModePDF, OutputPath: filepath.Join(t.TempDir(), "l.pdf")})
	if res.FrontPages != 4 {
		t.Errorf("front pages = %d, want 4", res.FrontPages)
	}
}

type fakeExporter struct{ odt, epub int }

func (f *fakeExporter) ToODT(ctx context.Context, pkg *book.BookPackage, scratchDir, outPath string) error {
	f.odt++
	return os.WriteFile(outPath, []byte("odt"), 0644)
}

func (f *fakeExporter) ToEpub(ctx context.Context, pkg *book.BookPackage, scratchDir, outPath string) error {
	f.epub++
	return os.WriteFile(outPath, []byte("epub"), 0644)
}

func TestRunExportModes(t *testing.T) {
	env := newTestEnv(t, 0, "")
	exp := &fakeExporter{}
	env.pipeline.exporter = exp

	res := env.run(t, types.JobRequest{Mode: types.ModeEpub, OutputPath: filepath.Join(t.TempDir(), "b.epub")})
	if exp.epub != 1 || res.Format != types.ModeEpub || !res.Done {
		t.Errorf("epub export: %+v, calls %d", res, exp.epub)
	}

	res = env.run(t, types.JobRequest{Mode: types.ModeODT, OutputPath: filepath.Join(t.TempDir(), "b.odt")})
	if exp.odt != 1 || res.Format != types.ModeODT {
		t.Errorf("odt export: %+v, calls %d", res, exp.odt)
	}
}

func TestRunScratchRemoved(t *testing.T) {
	env := newTestEnv(t, 4, outlineFor(1))
	env.renderer.planFront = func() int { return 3 }

	env.run(t, types.JobRequest{Mode: types.ModePDF, OutputPath: filepath.Join(t.TempDir(), "s.pdf")})

	entries, err := os.ReadDir(env.pipeline.cfg.TmpRoot)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "bind-") {
			t.Errorf("scratch dir %s not removed", e.Name())
		}
	}
}

func TestComputePlan(t *testing.T) {
	t.Run("booklet oversizes render by gutter", func(t *testing.T) {
		plan, err := ComputePlan(types.JobRequest{Mode: types.ModeBooklet, PageSize: "A5", Gutter: 20}, types.DirectionLTR)
		if err != nil {
			t.Fatal(err)
		}
		if plan.Gutter != 20 {
			t.Errorf("gutter = %f", plan.Gutter)
		}
		if plan.BodyRenderWidth != plan.TrimWidth+40 {
			t.Errorf("render width %f, trim %f", plan.BodyRenderWidth, plan.TrimWidth)
		}
	})

	t.Run("pdf mode has no gutter", func(t *testing.T) {
		plan, err := ComputePlan(types.JobRequest{Mode: types.ModePDF, PageSize: "A5"}, types.DirectionLTR)
		if err != nil {
			t.Fatal(err)
		}
		if plan.Gutter != 0 || plan.BodyRenderWidth != plan.TrimWidth {
			t.Errorf("plan = %+v", plan)
		}
	})

	t.Run("rtl books bind on the right", func(t *testing.T) {
		plan, err := ComputePlan(types.JobRequest{Mode: types.ModeBooklet, PageSize: "A5"}, types.DirectionRTL)
		if err != nil {
			t.Fatal(err)
		}
		if !plan.SpineRight {
			t.Error("SpineRight should be set for RTL")
		}
	})

	t.Run("newspaper requires newspaper sheet", func(t *testing.T) {
		_, err := ComputePlan(types.JobRequest{Mode: types.ModeNewspaper, PageSize: "A5", NUp: 4}, types.DirectionLTR)
		var appErr *types.AppError
		if !errors.As(err, &appErr) || appErr.Code != types.ErrInvalidInput {
			t.Fatalf("want INVALID_INPUT, got %v", err)
		}
	})

	t.Run("newspaper column from grid", func(t *testing.T) {
		plan, err := ComputePlan(types.JobRequest{Mode: types.ModeNewspaper, PageSize: "A2", NUp: 4}, types.DirectionLTR)
		if err != nil {
			t.Fatal(err)
		}
		if plan.BodyRenderWidth != plan.TrimWidth/2 || plan.BodyRenderHeight != plan.TrimHeight/2 {
			t.Errorf("column = %fx%f for sheet %fx%f", plan.BodyRenderWidth, plan.BodyRenderHeight, plan.TrimWidth, plan.TrimHeight)
		}
	})

	t.Run("unknown size rejected", func(t *testing.T) {
		if _, err := ComputePlan(types.JobRequest{Mode: types.ModePDF, PageSize: "NOPE"}, types.DirectionLTR); err == nil {
			t.Error("unknown page size should be rejected")
		}
	})

	t.Run("default gutter applied in booklet mode", func(t *testing.T) {
		plan, err := ComputePlan(types.JobRequest{Mode: types.ModeBooklet, PageSize: "A5"}, types.DirectionLTR)
		if err != nil {
			t.Fatal(err)
		}
		if plan.Gutter <= 0 {
			t.Errorf("default gutter = %f, want > 0", plan.Gutter)
		}
	})
}
