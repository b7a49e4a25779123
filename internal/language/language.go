// Package language normalizes language identifiers across the pipeline.
// Whisper, the translation packages, and the voice catalog all speak
// ISO 639-1, while user input arrives as anything from "English" to
// "pt-BR".
package language

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

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
	"arabic":     "ar",
	"hebrew":     "he",
	"hindi":      "hi",
	"bengali":    "bn",
	"thai":       "th",
	"turkish":    "tr",
	"ukrainian":  "uk",
	"uzbek":      "uz",
	"dutch":      "nl",
	"polish":     "pl",
	"vietnamese": "vi",
	"indonesian": "id",
}

// ToISO2 converts any recognized language identifier (BCP 47 tag, ISO code,
// or English word form) to ISO 639-1. Returns empty string for
// unrecognized input.
func ToISO2(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return ""
	}
	if mapped, ok := wordForms[code]; ok {
		return mapped
	}
	tag, err := language.Parse(code)
	if err != nil {
		if len(code) == 2 {
			return code
		}
		return ""
	}
	base, conf := tag.Base()
	if conf == language.No {
		return ""
	}
	normalized := base.String()
	if len(normalized) != 2 {
		// Languages without a two-letter code keep the ISO 639-3 form.
		return normalized
	}
	return normalized
}

// DisplayName returns a human-readable English language name for any
// recognized code. Returns "Unknown" for empty input, or the uppercased
// code for unrecognized input.
func DisplayName(code string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "Unknown"
	}
	normalized := ToISO2(trimmed)
	if normalized == "" {
		return strings.ToUpper(trimmed)
	}
	tag, err := language.Parse(normalized)
	if err != nil {
		return strings.ToUpper(trimmed)
	}
	name := display.English.Languages().Name(tag)
	if name == "" {
		return strings.ToUpper(trimmed)
	}
	return name
}

// Same reports whether two language identifiers refer to the same language.
func Same(a, b string) bool {
	na, nb := ToISO2(a), ToISO2(b)
	if na == "" || nb == "" {
		return false
	}
	return na == nb
}

// NormalizeList deduplicates and normalizes a list of language codes to
// ISO 639-1, dropping unrecognized entries.
func NormalizeList(codes []string) []string {
	if len(codes) == 0 {
		return nil
	}
	normalized := make([]string, 0, len(codes))
	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		mapped := ToISO2(code)
		if mapped == "" {
			continue
		}
		if _, ok := seen[mapped]; ok {
			continue
		}
		seen[mapped] = struct{}{}
		normalized = append(normalized, mapped)
	}
	return normalized
}
