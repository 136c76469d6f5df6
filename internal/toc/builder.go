package toc

import (
	"html/template"
	"strings"

	"book-binder/internal/logger"
	"book-binder/internal/types"
)

// LinesPerPage is the fixed number of contents lines per rendered TOC
// page. The TOC layout uses a fixed line height precisely so its page
// count is computable from the entry count alone, before anything is
// rendered. That breaks the circular dependency between the TOC's own
// length and the page numbers it prints.
const LinesPerPage = 20

// TitlePages and CopyrightPages are the fixed lengths of the front
// matter preceding the TOC.
const (
	TitlePages     = 1
	CopyrightPages = 1
)

// TOCPages returns the page count of the rendered TOC for a given
// entry count. An empty outline still occupies one page so downstream
// numbering stays stable.
func TOCPages(entryCount int) int {
	if entryCount < 1 {
		return 1
	}
	return (entryCount + LinesPerPage - 1) / LinesPerPage
}

// FrontMatterPages returns the total front-matter page count for a
// given outline. It is fixed before the front matter is rendered and
// is never recomputed afterwards; a disagreement with the rendered
// result is a build defect surfaced as NUMBERING_MISMATCH.
func FrontMatterPages(entryCount int) int {
	return TitlePages + CopyrightPages + TOCPages(entryCount)
}

// The fixed 24pt line height is what makes TOCPages exact: every
// contents line occupies the same vertical space regardless of title
// length or depth.
var styleTemplate = template.Must(template.New("tocstyle").Parse(`h1.toc-title { font-size: 20pt; margin: 0 0 18pt 0; }
ol.toc { list-style: none; margin: 0; padding: 0; }
ol.toc li { height: 24pt; line-height: 24pt; overflow: hidden; white-space: nowrap; }
ol.toc li .page { float: {{.PageSide}}; }
ol.toc li.depth-1 { padding-{{.IndentSide}}: 16pt; }
ol.toc li.depth-2 { padding-{{.IndentSide}}: 32pt; }
ol.toc li.depth-3 { padding-{{.IndentSide}}: 48pt; }`))

var fragmentTemplate = template.Must(template.New("tocfragment").Parse(`<h1 class="toc-title">{{.Heading}}</h1>
<ol class="toc">
{{- range .Lines}}
<li class="depth-{{.Depth}}"><span class="page">{{.Page}}</span>{{.Title}}</li>
{{- end}}
</ol>`))

var tocTemplate = template.Must(template.New("toc").Parse(`<!DOCTYPE html>
<html dir="{{.Dir}}">
<head>
<meta charset="utf-8">
<title>{{.Heading}}</title>
<style>
body { font-family: serif; margin: 0; }
{{.Style}}
</style>
</head>
<body>
{{.Fragment}}
</body>
</html>
`))

type tocLine struct {
	Title string
	Depth int
	Page  int
}

type tocData struct {
	Heading    string
	Dir        string
	PageSide   string
	IndentSide string
	Lines      []tocLine
}

type tocDocData struct {
	Heading  string
	Dir      string
	Style    template.CSS
	Fragment template.HTML
}

func buildData(entries []Entry, heading string, dir types.TextDirection) tocData {
	if heading == "" {
		heading = "Table of Contents"
	}
	data := tocData{
		Heading:    heading,
		Dir:        "ltr",
		PageSide:   "right",
		IndentSide: "left",
	}
	if dir == types.DirectionRTL {
		data.Dir = "rtl"
		data.PageSide = "left"
		data.IndentSide = "right"
	}
	for _, e := range entries {
		depth := e.Depth
		if depth > 3 {
			depth = 3
		}
		data.Lines = append(data.Lines, tocLine{
			Title: e.Title,
			Depth: depth,
			Page:  e.SourcePage + 1,
		})
	}
	return data
}

func execute(t *template.Template, data any) string {
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		// The templates are static and the data plain; execution cannot
		// fail at runtime, but log rather than panic if it ever does.
		logger.Error("toc template execution failed", err)
		return ""
	}
	return sb.String()
}

// Style returns the contents-list CSS for the given direction, for
// embedding wherever the fragment is embedded.
func Style(dir types.TextDirection) string {
	return execute(styleTemplate, buildData(nil, "", dir))
}

// BuildFragment renders the contents heading and list as an embeddable
// fragment. Each entry's printed page number is the numeral stamped on
// its target page: body pages are numbered with arabic numerals
// restarting at 1, so an entry anchored at 0-indexed source page p
// prints p+1. Depths beyond three levels are flattened to three.
func BuildFragment(entries []Entry, heading string, dir types.TextDirection) string {
	fragment := execute(fragmentTemplate, buildData(entries, heading, dir))
	logger.Info("toc built",
		logger.Int("entries", len(entries)),
		logger.Int("tocPages", TOCPages(len(entries))))
	return fragment
}

// BuildHTML renders the table of contents as a standalone document.
// See BuildFragment for the numbering rule.
func BuildHTML(entries []Entry, heading string, dir types.TextDirection) string {
	data := buildData(entries, heading, dir)
	return execute(tocTemplate, tocDocData{
		Heading:  data.Heading,
		Dir:      data.Dir,
		Style:    template.CSS(Style(dir)),
		Fragment: template.HTML(BuildFragment(entries, heading, dir)),
	})
}
