package toc

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleDump = `<?xml version="1.0" encoding="UTF-8"?>
<outline xmlns="http://wkhtmltopdf.org/outline">
  <item title="Introduction" page="1" link="__WKANCHOR_0">
    <item title="History" page="2" link="__WKANCHOR_2"/>
    <item title="Scope" page="2" link="__WKANCHOR_4"/>
  </item>
  <item title="Getting Started" page="4" link="__WKANCHOR_6">
    <item title="Installation" page="5" link="__WKANCHOR_8">
      <item title="From Source" page="6" link="__WKANCHOR_a"/>
    </item>
  </item>
  <item title="Appendix" page="8" link="__WKANCHOR_c"/>
</outline>`

func TestParseOutline(t *testing.T) {
	entries := ParseOutline([]byte(sampleDump), 10)

	want := []Entry{
		{Title: "Introduction", Depth: 0, SourcePage: 0},
		{Title: "History", Depth: 1, SourcePage: 1},
		{Title: "Scope", Depth: 1, SourcePage: 1},
		{Title: "Getting Started", Depth: 0, SourcePage: 3},
		{Title: "Installation", Depth: 1, SourcePage: 4},
		{Title: "From Source", Depth: 2, SourcePage: 5},
		{Title: "Appendix", Depth: 0, SourcePage: 7},
	}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d: %+v", len(entries), len(want), entries)
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, entries[i], want[i])
		}
	}
}

func TestParseOutlineSkipsUnanchoredHeadings(t *testing.T) {
	dump := `<outline>
  <item title="Anchored" page="1"/>
  <item title="No Anchor" page="">
    <item title="Child Of Unanchored" page="2"/>
  </item>
  <item title="" page="3"/>
  <item title="Beyond End" page="99"/>
</outline>`

	entries := ParseOutline([]byte(dump), 10)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2: %+v", len(entries), entries)
	}
	if entries[0].Title != "Anchored" {
		t.Errorf("entries[0] = %+v", entries[0])
	}
	// Children of a skipped heading survive with their own depth.
	if entries[1].Title != "Child Of Unanchored" || entries[1].Depth != 1 {
		t.Errorf("entries[1] = %+v", entries[1])
	}
}

func TestParseOutlineMalformedIsEmpty(t *testing.T) {
	if entries := ParseOutline([]byte("<outline><item"), 10); entries != nil {
		t.Errorf("malformed dump should yield empty outline, got %+v", entries)
	}
}

func TestExtractOutlineMissingFile(t *testing.T) {
	if entries := ExtractOutline(filepath.Join(t.TempDir(), "missing.xml"), 10); entries != nil {
		t.Errorf("missing dump should yield empty outline, got %+v", entries)
	}
}

func TestExtractOutlineFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outline.xml")
	if err := os.WriteFile(path, []byte(sampleDump), 0644); err != nil {
		t.Fatal(err)
	}
	entries := ExtractOutline(path, 10)
	if len(entries) != 7 {
		t.Errorf("got %d entries, want 7", len(entries))
	}
}
