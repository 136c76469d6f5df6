// Package export produces the non-paginated artifact formats: ODT via
// LibreOffice and EPUB via calibre. Both are thin wrappers around the
// external converters; a converter failure is fatal for the job.
package export

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"book-binder/internal/assemble"
	"book-binder/internal/book"
	"book-binder/internal/logger"
	"book-binder/internal/types"
)

// DefaultTimeout bounds one conversion.
const DefaultTimeout = 5 * time.Minute

// Exporter drives the external converters.
type Exporter struct {
	sofficePath      string
	ebookConvertPath string
	timeout          time.Duration
}

// NewExporter creates an Exporter with the given binaries; empty
// paths fall back to the commands on PATH.
func NewExporter(sofficePath, ebookConvertPath string, timeout time.Duration) *Exporter {
	if sofficePath == "" {
		sofficePath = "soffice"
	}
	if ebookConvertPath == "" {
		ebookConvertPath = "ebook-convert"
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Exporter{
		sofficePath:      sofficePath,
		ebookConvertPath: ebookConvertPath,
		timeout:          timeout,
	}
}

// writeSourceHTML assembles the book into a single HTML document in
// the scratch dir, the common input for both converters.
func writeSourceHTML(pkg *book.BookPackage, scratchDir string) (string, error) {
	return assemble.WriteScratch(pkg, scratchDir)
}

// ToODT converts the book to an ODT document at outPath.
func (e *Exporter) ToODT(ctx context.Context, pkg *book.BookPackage, scratchDir, outPath string) error {
	srcPath, err := writeSourceHTML(pkg, scratchDir)
	if err != nil {
		return err
	}

	// soffice names its output after the input; convert into the
	// scratch dir and move the result where asked.
	args := []string{
		"--headless",
		"--convert-to", "odt",
		"--outdir", scratchDir,
		srcPath,
	}
	if err := e.run(ctx, e.sofficePath, args, "odt conversion"); err != nil {
		return err
	}

	produced := strings.TrimSuffix(srcPath, filepath.Ext(srcPath)) + ".odt"
	if err := os.Rename(produced, outPath); err != nil {
		return types.NewAppError(types.ErrTool, "odt output missing after conversion", err)
	}
	logger.Info("odt exported", logger.String("path", outPath))
	return nil
}

// ToEpub converts the book to an EPUB at outPath, carrying title and
// author metadata into the converter.
func (e *Exporter) ToEpub(ctx context.Context, pkg *book.BookPackage, scratchDir, outPath string) error {
	srcPath, err := writeSourceHTML(pkg, scratchDir)
	if err != nil {
		return err
	}

	args := []string{srcPath, outPath}
	if title := pkg.Title(); title != "" {
		args = append(args, "--title", title)
	}
	if creators := pkg.Metadata.Creators(); len(creators) > 0 {
		args = append(args, "--authors", strings.Join(creators, " & "))
	}
	if lang := pkg.Metadata.Language(); lang != "" {
		args = append(args, "--language", lang)
	}
	if err := e.run(ctx, e.ebookConvertPath, args, "epub conversion"); err != nil {
		return err
	}

	if _, err := os.Stat(outPath); err != nil {
		return types.NewAppError(types.ErrTool, "epub output missing after conversion", err)
	}
	logger.Info("epub exported", logger.String("path", outPath))
	return nil
}

func (e *Exporter) run(ctx context.Context, bin string, args []string, what string) error {
	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	logger.Info("running converter",
		logger.String("bin", bin), logger.String("what", what))

	cmd := exec.CommandContext(cctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if cctx.Err() == context.DeadlineExceeded {
			return types.NewAppError(types.ErrTool, what+" timed out", cctx.Err())
		}
		return types.NewAppErrorWithDetails(types.ErrTool, what+" failed",
			fmt.Sprintf("%s\n%s", stdout.String(), stderr.String()), err)
	}
	return nil
}
