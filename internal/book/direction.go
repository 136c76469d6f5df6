package book

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/unicode/bidi"

	"book-binder/internal/types"
)

// rtlBases are base languages written right to left. The metadata
// language tag decides direction when present; content is only
// consulted when the tag is missing or unparsable.
var rtlBases = map[string]bool{
	"ar": true, // Arabic
	"he": true, // Hebrew
	"fa": true, // Persian
	"ur": true, // Urdu
	"ps": true, // Pashto
	"sd": true, // Sindhi
	"ug": true, // Uyghur
	"yi": true, // Yiddish
	"dv": true, // Dhivehi
}

// DetectDirection decides the book's writing direction. The metadata
// language wins; otherwise the chapters' strong bidi classes are
// counted and the majority decides, defaulting to left-to-right.
func DetectDirection(pkg *BookPackage) types.TextDirection {
	if tag := pkg.Metadata.Language(); tag != "" {
		if dir, ok := directionForLanguage(tag); ok {
			return dir
		}
	}

	var sample strings.Builder
	for _, ch := range pkg.Spine {
		sample.WriteString(ch.Title)
		sample.WriteString(ch.HTML)
		if sample.Len() > 1<<16 {
			break
		}
	}
	return directionForText(sample.String())
}

func directionForLanguage(tag string) (types.TextDirection, bool) {
	parsed, err := language.Parse(tag)
	if err != nil {
		return types.DirectionLTR, false
	}
	base, conf := parsed.Base()
	if conf == language.No {
		return types.DirectionLTR, false
	}
	if rtlBases[base.String()] {
		return types.DirectionRTL, true
	}
	return types.DirectionLTR, true
}

func directionForText(text string) types.TextDirection {
	ltr, rtl := 0, 0
	for s := text; len(s) > 0; {
		props, size := bidi.LookupString(s)
		s = s[size:]
		switch props.Class() {
		case bidi.L:
			ltr++
		case bidi.R, bidi.AL:
			rtl++
		}
	}
	if rtl > ltr {
		return types.DirectionRTL
	}
	return types.DirectionLTR
}
