// Package language normalizes the language tags ffprobe reports on audio
// and subtitle streams. Containers carry a mix of ISO 639-1 ("en"),
// ISO 639-2/3 ("eng", "fre"), and free-form names ("English"); everything
// collapses to the shortest BCP 47 base code.
package language

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// wordForms maps free-form track titles to codes for the handful of cases
// BCP 47 parsing cannot handle.
var wordForms = map[string]string{
	"english":    "en",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"japanese":   "ja",
	"korean":     "ko",
	"chinese":    "zh",
	"russian":    "ru",
	"dutch":      "nl",
	"polish":     "pl",
	"swedish":    "sv",
	"danish":     "da",
	"norwegian":  "no",
	"finnish":    "fi",
}

// biblioForms covers the ISO 639-2 bibliographic codes that differ from the
// terminology codes BCP 47 parsing accepts.
var biblioForms = map[string]string{
	"fre": "fr",
	"ger": "de",
	"dut": "nl",
	"chi": "zh",
	"cze": "cs",
	"gre": "el",
	"rum": "ro",
	"per": "fa",
	"slo": "sk",
	"ice": "is",
	"may": "ms",
	"wel": "cy",
}

// Canonical returns the canonical base code ("en", "ja") for a reported
// language tag, or "" when the language is unknown or undetermined.
func Canonical(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	lowered := strings.ToLower(code)
	switch lowered {
	// BCP 47 parses these, but Base() then guesses a real language for
	// them. They mean "no usable language" and must stay empty.
	case "und", "zxx", "mis", "mul":
		return ""
	}
	if mapped, ok := wordForms[lowered]; ok {
		return mapped
	}
	if mapped, ok := biblioForms[lowered]; ok {
		return mapped
	}
	tag, err := language.Parse(code)
	if err != nil {
		return ""
	}
	base, conf := tag.Base()
	if conf == language.No {
		return ""
	}
	normalized := base.String()
	if normalized == "und" {
		return ""
	}
	return normalized
}

// Display returns the English display name for a reported language tag, or
// the input unchanged when it cannot be parsed.
func Display(code string) string {
	canonical := Canonical(code)
	if canonical == "" {
		return code
	}
	tag, err := language.Parse(canonical)
	if err != nil {
		return code
	}
	name := display.English.Languages().Name(tag)
	if name == "" {
		return code
	}
	return name
}
