package book

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"book-binder/internal/logger"
	"book-binder/internal/types"
)

// InfoFileName is the descriptor every bookizip carries at its root.
const InfoFileName = "info.json"

// infoJSON mirrors the bookizip descriptor.
type infoJSON struct {
	Version  string                  `json:"version"`
	Spine    []string                `json:"spine"`
	TOC      []TOCEntry              `json:"TOC"`
	Manifest map[string]ManifestItem `json:"manifest"`
	Metadata Metadata                `json:"metadata"`
}

// LoadBookizip reads a bookizip from disk into a BookPackage. Spine
// entries without a manifest mapping default to "<id>.html". A spine
// document missing from the archive is an invalid package.
func LoadBookizip(path string) (*BookPackage, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, types.NewAppError(types.ErrInvalidInput, "cannot open book package", err)
	}
	defer zr.Close()
	return loadBookizip(&zr.Reader)
}

func loadBookizip(zr *zip.Reader) (*BookPackage, error) {
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	infoFile, ok := files[InfoFileName]
	if !ok {
		return nil, types.NewAppError(types.ErrInvalidInput, "book package has no info.json", nil)
	}
	infoData, err := readZipFile(infoFile)
	if err != nil {
		return nil, types.NewAppError(types.ErrInvalidInput, "cannot read info.json", err)
	}

	var info infoJSON
	if err := json.Unmarshal(infoData, &info); err != nil {
		return nil, types.NewAppError(types.ErrInvalidInput, "info.json is not valid JSON", err)
	}
	if len(info.Spine) == 0 {
		return nil, types.NewAppError(types.ErrInvalidInput, "book package has an empty spine", nil)
	}

	pkg := &BookPackage{
		Metadata: info.Metadata,
		TOC:      info.TOC,
		Manifest: make(map[string]ManifestItem, len(info.Manifest)),
	}
	if pkg.Metadata == nil {
		pkg.Metadata = make(Metadata)
	}

	tocTitles := tocTitlesByURL(info.TOC)

	for _, id := range info.Spine {
		url := id + ".html"
		if item, ok := info.Manifest[id]; ok && item.URL != "" {
			url = item.URL
		}
		zf, ok := files[url]
		if !ok {
			return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput,
				"spine document missing from package",
				fmt.Sprintf("id %q, file %q", id, url), nil)
		}
		data, err := readZipFile(zf)
		if err != nil {
			return nil, types.NewAppError(types.ErrInvalidInput, "cannot read spine document", err)
		}

		markup := string(data)
		title := tocTitles[url]
		if title == "" {
			title = chapterTitle(markup)
		}
		pkg.Spine = append(pkg.Spine, Chapter{
			ID:    id,
			Title: title,
			HTML:  bodyHTML(markup),
		})
	}

	// Non-spine manifest entries (images, stylesheets) travel along so
	// the assembled document can reference them from the scratch dir.
	for id, item := range info.Manifest {
		if zf, ok := files[item.URL]; ok {
			data, err := readZipFile(zf)
			if err != nil {
				return nil, types.NewAppError(types.ErrInvalidInput, "cannot read manifest file", err)
			}
			item.Contents = data
		}
		pkg.Manifest[id] = item
	}

	pkg.Direction = DetectDirection(pkg)
	logger.Info("book package loaded",
		logger.String("title", pkg.Title()),
		logger.Int("chapters", len(pkg.Spine)),
		logger.String("direction", string(pkg.Direction)))
	return pkg, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func tocTitlesByURL(entries []TOCEntry) map[string]string {
	titles := make(map[string]string)
	var walk func([]TOCEntry)
	walk = func(entries []TOCEntry) {
		for _, e := range entries {
			url := e.URL
			if i := strings.IndexByte(url, '#'); i >= 0 {
				url = url[:i]
			}
			if url != "" && e.Title != "" {
				if _, seen := titles[url]; !seen {
					titles[url] = e.Title
				}
			}
			walk(e.Children)
		}
	}
	walk(entries)
	return titles
}
