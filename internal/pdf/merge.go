package pdf

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"book-binder/internal/logger"
	"book-binder/internal/types"
)

// Merge concatenates the input PDFs into out, in order. The output
// page count is the sum of the input page counts; each page keeps its
// own geometry and stamps.
func Merge(inputs []string, out string) error {
	if len(inputs) == 0 {
		return types.NewAppError(types.ErrInvalidInput, "nothing to merge", nil)
	}

	logger.Info("merging PDFs",
		logger.Int("count", len(inputs)),
		logger.String("out", filepath.Base(out)))

	if err := api.MergeCreateFile(inputs, out, false, newConfiguration()); err != nil {
		return types.NewAppErrorWithDetails(types.ErrTool, "merge failed", out, err)
	}
	return nil
}

// Rotate180 rotates every page of in by 180 degrees for reversed
// binding. Page order is unchanged; only the visual orientation flips.
func Rotate180(in, out string) error {
	logger.Info("rotating document 180 degrees", logger.String("in", filepath.Base(in)))

	if err := api.RotateFile(in, out, 180, nil, newConfiguration()); err != nil {
		return types.NewAppErrorWithDetails(types.ErrTool, "rotation failed", in, err)
	}
	return nil
}

// copyFile duplicates a PDF without modification, used when an
// operation turns out to be a no-op but the caller expects its output
// path to exist.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return types.NewAppError(types.ErrFileNotFound, "failed to open source PDF", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return types.NewAppError(types.ErrInternal, "failed to create output PDF", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return types.NewAppError(types.ErrInternal, "failed to copy PDF", err)
	}
	return nil
}

func removeQuiet(path string) {
	if err := os.Remove(path); err != nil {
		logger.Warn("failed to remove temp file", logger.String("path", path), logger.Err(err))
	}
}
