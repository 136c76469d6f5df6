// Package render invokes the external HTML-to-PDF renderer. The
// renderer is deterministic for identical input and fonts; everything
// page-geometry related happens downstream in the pdf package.
package render

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"book-binder/internal/config"
	"book-binder/internal/logger"
	"book-binder/internal/types"
)

// DefaultTimeout bounds one render invocation.
const DefaultTimeout = 5 * time.Minute

// Request describes one render invocation.
type Request struct {
	HTMLPath string
	OutPath  string
	// Page size in points. The renderer is driven in millimetres; the
	// conversion happens here.
	PageWidth  float64
	PageHeight float64
	// OutlinePath, when set, asks the renderer to dump the heading
	// outline XML to this path alongside the PDF.
	OutlinePath string
}

// Result is the outcome of a successful render.
type Result struct {
	PDFPath   string
	PageCount int
}

// Renderer renders HTML documents to PDF.
type Renderer interface {
	Render(ctx context.Context, req Request) (*Result, error)
}

// PageCounter reads the page count of a produced PDF. It is injected
// so the renderer does not depend on the pdf package directly.
type PageCounter func(path string) (int, error)

// WkRenderer drives wkhtmltopdf under an isolated virtual display.
type WkRenderer struct {
	binPath   string
	display   *Display
	timeout   time.Duration
	pageCount PageCounter
}

// NewWkRenderer creates a renderer using the given binary and display.
// The display may be nil when the environment already provides one.
func NewWkRenderer(binPath string, display *Display, timeout time.Duration, pageCount PageCounter) *WkRenderer {
	if binPath == "" {
		binPath = config.DefaultWkhtmltopdf
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &WkRenderer{
		binPath:   binPath,
		display:   display,
		timeout:   timeout,
		pageCount: pageCount,
	}
}

// buildArgs assembles the renderer command line. Margins are zero:
// the page is rendered oversized and uncropped, and the downstream
// geometry pass owns all trimming.
func buildArgs(req Request) []string {
	args := []string{
		"-q",
		"--encoding", "UTF-8",
		"--page-width", formatMM(req.PageWidth),
		"--page-height", formatMM(req.PageHeight),
		"--margin-top", "0",
		"--margin-bottom", "0",
		"--margin-left", "0",
		"--margin-right", "0",
	}
	if req.OutlinePath != "" {
		args = append(args, "--outline", "--dump-outline", req.OutlinePath)
	}
	return append(args, req.HTMLPath, req.OutPath)
}

func formatMM(points float64) string {
	return strconv.FormatFloat(points*config.PointToMM, 'f', 2, 64) + "mm"
}

// Render runs the renderer with a bounded timeout. A non-zero exit or
// a deadline produces a RenderError carrying the captured tool output.
func (r *WkRenderer) Render(ctx context.Context, req Request) (*Result, error) {
	if _, err := os.Stat(req.HTMLPath); err != nil {
		return nil, types.NewAppError(types.ErrFileNotFound, "render input not found", err)
	}

	logger.Info("rendering HTML",
		logger.String("html", req.HTMLPath),
		logger.Float64("pageWidth", req.PageWidth),
		logger.Float64("pageHeight", req.PageHeight),
		logger.Bool("outline", req.OutlinePath != ""))

	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, r.binPath, buildArgs(req)...)
	cmd.Env = os.Environ()
	if r.display != nil {
		cmd.Env = append(cmd.Env, r.display.Env())
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	diag := combineOutput(stdout.String(), stderr.String())

	if cctx.Err() == context.DeadlineExceeded {
		return nil, types.NewAppErrorWithDetails(types.ErrTool, "render timed out", diag, cctx.Err())
	}
	if err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrRender, "renderer failed", diag, err)
	}
	if _, statErr := os.Stat(req.OutPath); statErr != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrRender, "renderer produced no output", diag, statErr)
	}

	pages := 0
	if r.pageCount != nil {
		pages, err = r.pageCount(req.OutPath)
		if err != nil {
			return nil, err
		}
	}

	logger.Info("render complete", logger.String("pdf", req.OutPath), logger.Int("pages", pages))
	return &Result{PDFPath: req.OutPath, PageCount: pages}, nil
}

func combineOutput(stdout, stderr string) string {
	switch {
	case stdout == "":
		return stderr
	case stderr == "":
		return stdout
	default:
		return fmt.Sprintf("%s\n--- stderr ---\n%s", stdout, stderr)
	}
}
