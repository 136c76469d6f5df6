package pipeline

import (
	"context"

	"book-binder/internal/book"
	"book-binder/internal/downloader"
	"book-binder/internal/pdf"
	"book-binder/internal/types"
)

// Source resolves a job's book reference into a loaded package.
type Source interface {
	Load(ctx context.Context, req types.JobRequest) (*book.BookPackage, error)
}

// PageEditor performs the per-page geometry and numbering passes.
type PageEditor interface {
	Crop(in, out string, spec pdf.TrimSpec) error
	StampLabels(in, out string, labels []string) error
}

// Merger assembles and transforms whole documents.
type Merger interface {
	Merge(inputs []string, out string) error
	Rotate180(in, out string) error
	PageCount(path string) (int, error)
}

// Imposer lays body pages onto newspaper sheets.
type Imposer interface {
	Impose(in, out string, n int, sheetWidth, sheetHeight float64) (int, error)
}

// Exporter produces the non-paginated artifact formats.
type Exporter interface {
	ToODT(ctx context.Context, pkg *book.BookPackage, scratchDir, outPath string) error
	ToEpub(ctx context.Context, pkg *book.BookPackage, scratchDir, outPath string) error
}

// pdfTools implements PageEditor, Merger and Imposer on the pdf
// package.
type pdfTools struct{}

func (pdfTools) Crop(in, out string, spec pdf.TrimSpec) error { return pdf.Crop(in, out, spec) }
func (pdfTools) StampLabels(in, out string, labels []string) error {
	return pdf.StampLabels(in, out, labels)
}
func (pdfTools) Merge(inputs []string, out string) error { return pdf.Merge(inputs, out) }
func (pdfTools) Rotate180(in, out string) error { return pdf.Rotate180(in, out) }

// The merged count is the invariant the whole plan hangs on, so it
// gets the cross-checked reader rather than the plain one.
func (pdfTools) PageCount(path string) (int, error) { return pdf.VerifyPageCount(path) }
func (pdfTools) Impose(in, out string, n int, w, h float64) (int, error) {
	return pdf.Impose(in, out, n, w, h)
}

// packageSource fetches the referenced package and loads it in the
// format the fetch detected.
type packageSource struct {
	fetcher *downloader.Fetcher
	server  string
}

// NewPackageSource builds the production Source: download (or local
// file), then bookizip or EPUB load.
func NewPackageSource(fetcher *downloader.Fetcher, server string) Source {
	return &packageSource{fetcher: fetcher, server: server}
}

func (s *packageSource) Load(ctx context.Context, req types.JobRequest) (*book.BookPackage, error) {
	info, err := s.fetcher.Fetch(s.server, req.BookRef)
	if err != nil {
		return nil, err
	}
	if info.Format == downloader.FormatEpub {
		return book.ImportEpub(info.Path)
	}
	return book.LoadBookizip(info.Path)
}
