// Package toc extracts the rendered body's heading outline and builds
// the front-matter table of contents from it.
package toc

import (
	"encoding/xml"
	"os"
	"strconv"

	"book-binder/internal/logger"
)

// Entry is one heading of the rendered body document.
type Entry struct {
	Title string
	// Depth is the nesting level, 0 for top-level headings.
	Depth int
	// SourcePage is the 0-indexed page of the raw body document the
	// heading starts on.
	SourcePage int
}

// outlineItem mirrors the renderer's outline dump format: nested
// <item> elements carrying title and page attributes.
type outlineItem struct {
	Title string        `xml:"title,attr"`
	Page  string        `xml:"page,attr"`
	Items []outlineItem `xml:"item"`
}

type outlineDoc struct {
	XMLName xml.Name      `xml:"outline"`
	Items   []outlineItem `xml:"item"`
}

// ExtractOutline parses the outline dump the renderer wrote next to
// the body PDF. An unreadable or malformed dump degrades to an empty
// outline with a warning; a heading without a usable page anchor is
// skipped, not fatal. Only an impossible page index (beyond the body)
// is reported, and still only as a skip.
func ExtractOutline(dumpPath string, bodyPages int) []Entry {
	data, err := os.ReadFile(dumpPath)
	if err != nil {
		logger.Warn("outline dump unreadable, continuing with empty outline",
			logger.String("path", dumpPath), logger.Err(err))
		return nil
	}
	return ParseOutline(data, bodyPages)
}

// ParseOutline parses outline dump bytes. See ExtractOutline.
func ParseOutline(data []byte, bodyPages int) []Entry {
	var doc outlineDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		logger.Warn("outline dump malformed, continuing with empty outline", logger.Err(err))
		return nil
	}

	var entries []Entry
	walkOutline(doc.Items, 0, bodyPages, &entries)
	logger.Info("outline extracted", logger.Int("entries", len(entries)))
	return entries
}

func walkOutline(items []outlineItem, depth, bodyPages int, out *[]Entry) {
	for _, item := range items {
		page, err := strconv.Atoi(item.Page)
		switch {
		case item.Title == "":
			logger.Warn("outline heading without title skipped")
		case err != nil || page < 1:
			// The renderer could not anchor this heading to a page.
			logger.Warn("outline heading without page anchor skipped",
				logger.String("title", item.Title))
		case page > bodyPages && bodyPages > 0:
			logger.Warn("outline heading beyond document end skipped",
				logger.String("title", item.Title),
				logger.Int("page", page))
		default:
			// Dump pages are 1-indexed; entries carry 0-indexed
			// source pages.
			*out = append(*out, Entry{Title: item.Title, Depth: depth, SourcePage: page - 1})
		}
		walkOutline(item.Items, depth+1, bodyPages, out)
	}
}
