// Package assemble turns a loaded book package into the HTML
// documents the renderer consumes: the body document (all spine
// chapters in order) and the preliminary document (title page,
// copyright page, table of contents, in that fixed order).
package assemble

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"book-binder/internal/book"
	"book-binder/internal/logger"
	"book-binder/internal/toc"
	"book-binder/internal/types"
)

// File names written into the job scratch directory.
const (
	BodyFileName        = "body.html"
	PreliminaryFileName = "preliminary.html"
)

var bodyTemplate = template.Must(template.New("body").Parse(`<!DOCTYPE html>
<html dir="{{.Dir}}">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: serif; margin: 0; }
div.chapter { page-break-before: always; }
div.chapter:first-child { page-break-before: avoid; }
h1.chapter-title { font-size: 22pt; }
img { max-width: 100%; }
</style>
</head>
<body>
{{- range .Chapters}}
<div class="chapter" id="{{.ID}}">
{{- if .Title}}
<h1 class="chapter-title">{{.Title}}</h1>
{{- end}}
{{.Body}}
</div>
{{- end}}
</body>
</html>
`))

var preliminaryTemplate = template.Must(template.New("preliminary").Parse(`<!DOCTYPE html>
<html dir="{{.Dir}}">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: serif; margin: 0; }
div.page { page-break-after: always; }
div.page:last-child { page-break-after: avoid; }
h1.book-title { font-size: 28pt; margin-top: 30%; text-align: center; }
p.authors { font-size: 14pt; text-align: center; }
div.copyright { font-size: 10pt; margin-top: 60%; }
{{.TOCStyle}}
</style>
</head>
<body>
<div class="page title-page">
<h1 class="book-title">{{.Title}}</h1>
{{- if .Authors}}
<p class="authors">{{.Authors}}</p>
{{- end}}
</div>
<div class="page copyright-page">
<div class="copyright">
{{- if .License}}
<p>{{.License}}</p>
{{- end}}
{{- if .Contributors}}
<p>Contributors: {{.Contributors}}</p>
{{- end}}
{{- if .Server}}
<p>Published with {{.Server}}.</p>
{{- end}}
<p>Produced {{.Date}}.</p>
</div>
</div>
<div class="page toc-page">
{{.TOCBody}}
</div>
</body>
</html>
`))

type chapterData struct {
	ID    string
	Title string
	Body  template.HTML
}

type bodyData struct {
	Title    string
	Dir      string
	Chapters []chapterData
}

type preliminaryData struct {
	Title        string
	Dir          string
	Authors      string
	License      string
	Contributors string
	Server       string
	Date         string
	TOCStyle     template.CSS
	TOCBody      template.HTML
}

func dirAttr(dir types.TextDirection) string {
	if dir == types.DirectionRTL {
		return "rtl"
	}
	return "ltr"
}

// BodyHTML builds the single body document from the package spine.
// Chapter markup is trusted book content and embedded unescaped;
// titles go through the template escaper.
func BodyHTML(pkg *book.BookPackage) string {
	data := bodyData{
		Title: pkg.Title(),
		Dir:   dirAttr(pkg.Direction),
	}
	for _, ch := range pkg.Spine {
		data.Chapters = append(data.Chapters, chapterData{
			ID:    ch.ID,
			Title: ch.Title,
			Body:  template.HTML(ch.HTML),
		})
	}

	var sb strings.Builder
	if err := bodyTemplate.Execute(&sb, data); err != nil {
		logger.Error("body template execution failed", err)
		return ""
	}
	return sb.String()
}

// PreliminaryHTML builds the front-matter document: title page, then
// copyright page, then the already-built TOC fragment. The order is
// fixed; the planned front-matter page count depends on it.
func PreliminaryHTML(pkg *book.BookPackage, tocFragment string) string {
	data := preliminaryData{
		Title:        pkg.Title(),
		Dir:          dirAttr(pkg.Direction),
		Authors:      strings.Join(pkg.Metadata.Creators(), ", "),
		License:      pkg.Metadata.License(),
		Contributors: strings.Join(pkg.Metadata.Contributors(), ", "),
		Server:       pkg.Metadata.Server(),
		Date:         time.Now().Format("2006-01-02"),
		TOCStyle:     template.CSS(toc.Style(pkg.Direction)),
		TOCBody:      template.HTML(tocFragment),
	}

	var sb strings.Builder
	if err := preliminaryTemplate.Execute(&sb, data); err != nil {
		logger.Error("preliminary template execution failed", err)
		return ""
	}
	return sb.String()
}

// WriteScratch writes the body document and the package's supporting
// resources (images, stylesheets) into the scratch directory so
// relative references in chapter markup resolve during rendering.
// It returns the body document path.
func WriteScratch(pkg *book.BookPackage, scratchDir string) (string, error) {
	for id, item := range pkg.Manifest {
		if len(item.Contents) == 0 || item.URL == "" {
			continue
		}
		dest, err := scratchPath(scratchDir, item.URL)
		if err != nil {
			logger.Warn("manifest resource skipped",
				logger.String("id", id), logger.Err(err))
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return "", types.NewAppError(types.ErrInternal, "cannot create resource directory", err)
		}
		if err := os.WriteFile(dest, item.Contents, 0644); err != nil {
			return "", types.NewAppError(types.ErrInternal, "cannot write resource", err)
		}
	}

	bodyPath := filepath.Join(scratchDir, BodyFileName)
	if err := os.WriteFile(bodyPath, []byte(BodyHTML(pkg)), 0644); err != nil {
		return "", types.NewAppError(types.ErrInternal, "cannot write body document", err)
	}
	logger.Info("scratch assembled",
		logger.String("dir", scratchDir),
		logger.Int("chapters", len(pkg.Spine)),
		logger.Int("resources", len(pkg.Manifest)))
	return bodyPath, nil
}

// scratchPath joins a manifest URL onto the scratch dir, rejecting
// entries that would escape it.
func scratchPath(scratchDir, url string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(url))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("resource path %q escapes scratch directory", url)
	}
	return filepath.Join(scratchDir, clean), nil
}
