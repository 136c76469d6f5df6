package book

import (
	"archive/zip"
	"fmt"
	"path"
	"strings"

	"github.com/simp-lee/epub"

	"book-binder/internal/logger"
	"book-binder/internal/types"
)

// ImportEpub converts an EPUB file into a BookPackage. Non-linear
// spine items and recognized boilerplate license chapters are dropped,
// matching what the package format expects: a spine of real content.
func ImportEpub(epubPath string) (*BookPackage, error) {
	bk, err := epub.Open(epubPath)
	if err != nil {
		return nil, types.NewAppError(types.ErrInvalidInput, "cannot open EPUB", err)
	}
	defer bk.Close()

	for _, w := range bk.Warnings() {
		logger.Warn("epub import warning", logger.String("detail", w))
	}

	pkg := &BookPackage{
		Metadata: make(Metadata),
		Manifest: make(map[string]ManifestItem),
	}
	copyEpubMetadata(bk.Metadata(), pkg.Metadata)

	chapters := bk.ContentChapters()
	for i, ch := range chapters {
		markup, err := ch.BodyHTML()
		if err != nil {
			logger.Warn("epub chapter unreadable, skipped",
				logger.String("href", ch.Href), logger.Err(err))
			continue
		}
		id := ch.ID
		if id == "" {
			id = fmt.Sprintf("chapter-%d", i+1)
		}
		title := ch.Title
		if title == "" {
			title = chapterTitle(markup)
		}
		pkg.Spine = append(pkg.Spine, Chapter{ID: id, Title: title, HTML: markup})
	}
	if len(pkg.Spine) == 0 {
		return nil, types.NewAppError(types.ErrInvalidInput, "EPUB has no content chapters", nil)
	}

	pkg.TOC = convertEpubTOC(bk.TOC())

	// Carry non-markup resources (images, styles) so chapter
	// references still resolve after assembly. The reader library has
	// no manifest enumeration, so the archive is walked directly.
	if err := importEpubResources(epubPath, pkg); err != nil {
		logger.Warn("epub resources not imported", logger.Err(err))
	}

	pkg.Direction = DetectDirection(pkg)
	logger.Info("epub imported",
		logger.String("path", epubPath),
		logger.String("title", pkg.Title()),
		logger.Int("chapters", len(pkg.Spine)))
	return pkg, nil
}

func copyEpubMetadata(md epub.Metadata, out Metadata) {
	for _, t := range md.Titles {
		out.Set(NamespaceDC, "title", "", t)
	}
	for _, a := range md.Authors {
		out.Set(NamespaceDC, "creator", a.Role, a.Name)
	}
	for _, l := range md.Language {
		out.Set(NamespaceDC, "language", "", l)
	}
	for _, id := range md.Identifiers {
		out.Set(NamespaceDC, "identifier", id.Scheme, id.Value)
	}
	if md.Publisher != "" {
		out.Set(NamespaceDC, "publisher", "", md.Publisher)
	}
	if md.Date != "" {
		out.Set(NamespaceDC, "date", "", md.Date)
	}
	if md.Rights != "" {
		out.Set(NamespaceDC, "rights", "", md.Rights)
	}
	for _, s := range md.Subjects {
		out.Set(NamespaceDC, "subject", "", s)
	}
}

func convertEpubTOC(items []epub.TOCItem) []TOCEntry {
	var out []TOCEntry
	for _, it := range items {
		out = append(out, TOCEntry{
			Title:    it.Title,
			URL:      it.Href,
			Children: convertEpubTOC(it.Children),
		})
	}
	return out
}

// markupExtensions are chapter and packaging formats; everything else
// in the archive is treated as a supporting resource.
var markupExtensions = map[string]bool{
	".html": true, ".xhtml": true, ".htm": true,
	".opf": true, ".ncx": true, ".xml": true,
}

// resourceMimeTypes maps resource extensions to their media types.
var resourceMimeTypes = map[string]string{
	".css":  "text/css",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".ttf":  "font/ttf",
	".otf":  "font/otf",
}

func importEpubResources(epubPath string, pkg *BookPackage) error {
	zr, err := zip.OpenReader(epubPath)
	if err != nil {
		return err
	}
	defer zr.Close()

	for _, f := range zr.File {
		ext := strings.ToLower(path.Ext(f.Name))
		if markupExtensions[ext] || f.Name == "mimetype" ||
			strings.HasPrefix(f.Name, "META-INF/") || f.FileInfo().IsDir() {
			continue
		}
		data, err := readZipFile(f)
		if err != nil {
			return err
		}
		mime := resourceMimeTypes[ext]
		if mime == "" {
			mime = "application/octet-stream"
		}
		pkg.Manifest[f.Name] = ManifestItem{URL: f.Name, MimeType: mime, Contents: data}
	}
	return nil
}
