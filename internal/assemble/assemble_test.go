package assemble

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"book-binder/internal/book"
	"book-binder/internal/toc"
	"book-binder/internal/types"
)

func samplePackage() *book.BookPackage {
	pkg := &book.BookPackage{
		Metadata:  make(book.Metadata),
		Direction: types.DirectionLTR,
		Manifest: map[string]book.ManifestItem{
			"style": {URL: "static/style.css", MimeType: "text/css", Contents: []byte("body{}")},
		},
		Spine: []book.Chapter{
			{ID: "ch1", Title: "First", HTML: "<p>one</p>"},
			{ID: "ch2", Title: "Second", HTML: "<p>two</p>"},
		},
	}
	pkg.Metadata.Set(book.NamespaceDC, "title", "", "Sample Book")
	pkg.Metadata.Set(book.NamespaceDC, "creator", "", "Ada Author")
	pkg.Metadata.Set(book.NamespaceDC, "rights", "", "CC BY-SA")
	pkg.Metadata.Set(book.NamespaceFM, "server", "", "www.booki.cc")
	return pkg
}

func TestBodyHTML(t *testing.T) {
	html := BodyHTML(samplePackage())

	if !strings.Contains(html, `<h1 class="chapter-title">First</h1>`) {
		t.Error("chapter heading missing")
	}
	if !strings.Contains(html, "<p>one</p>") || !strings.Contains(html, "<p>two</p>") {
		t.Error("chapter bodies missing")
	}
	if strings.Index(html, "<p>one</p>") > strings.Index(html, "<p>two</p>") {
		t.Error("chapters out of spine order")
	}
	if !strings.Contains(html, `dir="ltr"`) {
		t.Error("direction attribute missing")
	}
}

func TestBodyHTMLDoesNotEscapeChapterMarkup(t *testing.T) {
	pkg := samplePackage()
	pkg.Spine[0].HTML = `<em>kept</em>`
	html := BodyHTML(pkg)
	if !strings.Contains(html, "<em>kept</em>") {
		t.Error("chapter markup must be embedded unescaped")
	}
}

func TestPreliminaryHTMLOrder(t *testing.T) {
	pkg := samplePackage()
	fragment := toc.BuildFragment([]toc.Entry{{Title: "First", SourcePage: 0}}, "", pkg.Direction)
	html := PreliminaryHTML(pkg, fragment)

	title := strings.Index(html, "title-page")
	copyright := strings.Index(html, "copyright-page")
	tocIdx := strings.Index(html, "toc-page")
	if title < 0 || copyright < 0 || tocIdx < 0 {
		t.Fatalf("missing sections: %d %d %d", title, copyright, tocIdx)
	}
	if !(title < copyright && copyright < tocIdx) {
		t.Error("front matter must be title, copyright, toc in that order")
	}

	if !strings.Contains(html, "Sample Book") || !strings.Contains(html, "Ada Author") {
		t.Error("title page content missing")
	}
	if !strings.Contains(html, "CC BY-SA") || !strings.Contains(html, "www.booki.cc") {
		t.Error("copyright page content missing")
	}
	if !strings.Contains(html, `<span class="page">1</span>First`) {
		t.Error("toc fragment missing")
	}
	// The contents list styling travels with the fragment.
	if !strings.Contains(html, "ol.toc li { height: 24pt") {
		t.Error("toc style missing")
	}
}

func TestWriteScratch(t *testing.T) {
	dir := t.TempDir()
	bodyPath, err := WriteScratch(samplePackage(), dir)
	if err != nil {
		t.Fatalf("WriteScratch: %v", err)
	}
	if bodyPath != filepath.Join(dir, BodyFileName) {
		t.Errorf("body path = %q", bodyPath)
	}
	if _, err := os.Stat(bodyPath); err != nil {
		t.Errorf("body document not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "static", "style.css")); err != nil {
		t.Errorf("resource not written: %v", err)
	}
}

func TestWriteScratchRejectsEscapingResource(t *testing.T) {
	pkg := samplePackage()
	pkg.Manifest["evil"] = book.ManifestItem{URL: "../evil.css", Contents: []byte("x")}

	dir := t.TempDir()
	if _, err := WriteScratch(pkg, dir); err != nil {
		t.Fatalf("WriteScratch: %v", err)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(dir), "evil.css")); err == nil {
		t.Error("escaping resource must not be written outside scratch")
	}
}

func TestScratchPath(t *testing.T) {
	if _, err := scratchPath("/scratch", "../up.css"); err == nil {
		t.Error("parent traversal should be rejected")
	}
	if _, err := scratchPath("/scratch", "/abs.css"); err == nil {
		t.Error("absolute path should be rejected")
	}
	got, err := scratchPath("/scratch", "static/ok.css")
	if err != nil || got != filepath.Join("/scratch", "static", "ok.css") {
		t.Errorf("scratchPath = %q, %v", got, err)
	}
}
