// Package book loads book packages for binding. A book arrives either
// as a bookizip (a zip with an info.json describing spine, manifest,
// metadata and contents) or as an EPUB, which is converted into the
// same in-memory form on import.
package book

import (
	"strings"

	"golang.org/x/net/html"

	"book-binder/internal/types"
)

// Metadata namespaces used in info.json. Dublin Core carries the
// standard bibliographic fields; the booki namespace carries server
// and book identifiers.
const (
	NamespaceDC = "http://purl.org/dc/elements/1.1/"
	NamespaceFM = "http://booki.cc/"
)

// Metadata is namespace -> key -> scheme -> values. The empty scheme
// holds unqualified values.
type Metadata map[string]map[string]map[string][]string

func (m Metadata) values(ns, key string) []string {
	var out []string
	for _, vals := range m[ns][key] {
		out = append(out, vals...)
	}
	return out
}

func (m Metadata) first(ns, key string) string {
	if v := m.values(ns, key); len(v) > 0 {
		return v[0]
	}
	return ""
}

// Title returns the primary title, or empty.
func (m Metadata) Title() string { return m.first(NamespaceDC, "title") }

// Language returns the primary language tag, or empty.
func (m Metadata) Language() string { return m.first(NamespaceDC, "language") }

// Creators returns all dc:creator values.
func (m Metadata) Creators() []string { return m.values(NamespaceDC, "creator") }

// Contributors returns creators followed by dc:contributor values.
func (m Metadata) Contributors() []string {
	return append(m.Creators(), m.values(NamespaceDC, "contributor")...)
}

// Identifier returns the primary identifier, or empty.
func (m Metadata) Identifier() string { return m.first(NamespaceDC, "identifier") }

// License returns the rights statement, or empty.
func (m Metadata) License() string { return m.first(NamespaceDC, "rights") }

// Server returns the originating package server, or empty.
func (m Metadata) Server() string { return m.first(NamespaceFM, "server") }

// Set records a value under the given namespace, key and scheme.
func (m Metadata) Set(ns, key, scheme, value string) {
	if m[ns] == nil {
		m[ns] = make(map[string]map[string][]string)
	}
	if m[ns][key] == nil {
		m[ns][key] = make(map[string][]string)
	}
	m[ns][key][scheme] = append(m[ns][key][scheme], value)
}

// Chapter is one spine document of the book.
type Chapter struct {
	ID    string
	Title string
	// HTML is the chapter body markup, without surrounding html/head.
	HTML string
}

// TOCEntry is one node of the package's declared contents tree.
type TOCEntry struct {
	Title    string     `json:"title,omitempty"`
	URL      string     `json:"url,omitempty"`
	Children []TOCEntry `json:"children,omitempty"`
}

// ManifestItem is one file of the package.
type ManifestItem struct {
	URL      string `json:"url"`
	MimeType string `json:"mimetype"`
	Contents []byte `json:"-"`
}

// BookPackage is the loaded, format-independent book.
type BookPackage struct {
	Metadata  Metadata
	Spine     []Chapter
	TOC       []TOCEntry
	Manifest  map[string]ManifestItem
	Direction types.TextDirection
}

// Title returns the metadata title, falling back to the first chapter
// title when the metadata is silent.
func (b *BookPackage) Title() string {
	if t := b.Metadata.Title(); t != "" {
		return t
	}
	for _, ch := range b.Spine {
		if ch.Title != "" {
			return ch.Title
		}
	}
	return ""
}

// chapterTitle extracts a chapter's display title from its markup:
// the <title> element if present, otherwise the first h1.
func chapterTitle(markup string) string {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	if t := findElementText(doc, "title"); t != "" {
		return t
	}
	return findElementText(doc, "h1")
}

func findElementText(n *html.Node, tag string) string {
	if n.Type == html.ElementNode && n.Data == tag {
		return strings.TrimSpace(nodeText(n))
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findElementText(c, tag); t != "" {
			return t
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// bodyHTML returns the inner markup of the document's body element,
// or the input unchanged when no body wrapper is present.
func bodyHTML(markup string) string {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return markup
	}
	body := findElement(doc, "body")
	if body == nil {
		return markup
	}
	var sb strings.Builder
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		html.Render(&sb, c)
	}
	return sb.String()
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}
