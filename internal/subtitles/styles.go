package subtitles

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultStyleID is used when the requester picks no style.
const DefaultStyleID = "modern_bold"

// DefaultPosition is used when the requester picks no placement.
const DefaultPosition = "bottom"

// StyleParams holds the libass style fields burned into the video via the
// subtitles filter's force_style argument. Colours use the ASS &HAABBGGRR
// notation.
type StyleParams struct {
	FontName      string
	FontSize      int
	Bold          int
	Italic        int
	Spacing       float64
	MarginL       int
	MarginR       int
	Outline       int
	Shadow        int
	BorderStyle   int
	PrimaryColour string
	OutlineColour string
	BackColour    string
}

// Style couples an identifier with its presentation metadata and render
// parameters.
type Style struct {
	ID          string
	DisplayName string
	Description string
	Params      StyleParams
}

// Position adjusts caption placement. Alignment follows the ASS numpad
// convention.
type Position struct {
	Alignment int
	MarginV   int
}

var styleCatalog = []Style{
	{
		ID:          "modern_bold",
		DisplayName: "Modern Bold",
		Description: "Trendy bold font with bright outline for short-form video",
		Params: StyleParams{
			FontName: "Arial Black", FontSize: 34, Bold: 1, Spacing: 0.3,
			MarginL: 40, MarginR: 40, Outline: 3, Shadow: 2, BorderStyle: 1,
			PrimaryColour: "&H00FFFFFF", OutlineColour: "&H00FF6B35", BackColour: "&H80000000",
		},
	},
	{
		ID:          "neon_glow",
		DisplayName: "Neon Glow",
		Description: "Glowing effect with neon backlight for dynamic videos",
		Params: StyleParams{
			FontName: "Arial", FontSize: 30, Bold: 1, Spacing: 0.2,
			MarginL: 40, MarginR: 40, Outline: 4, Shadow: 0, BorderStyle: 1,
			PrimaryColour: "&H00FFFFFF", OutlineColour: "&H00FF00FF", BackColour: "&H00000000",
		},
	},
	{
		ID:          "clean_minimal",
		DisplayName: "Clean Minimal",
		Description: "Minimalist style for professional videos",
		Params: StyleParams{
			FontName: "Arial", FontSize: 28, Spacing: 0.1,
			MarginL: 50, MarginR: 50, Outline: 2, Shadow: 1, BorderStyle: 1,
			PrimaryColour: "&H00FFFFFF", OutlineColour: "&H00000000", BackColour: "&H80000000",
		},
	},
	{
		ID:          "gaming_style",
		DisplayName: "Gaming Style",
		Description: "Aggressive style with contrasting outline for gaming videos",
		Params: StyleParams{
			FontName: "Impact", FontSize: 36, Bold: 1, Spacing: 0.4,
			MarginL: 35, MarginR: 35, Outline: 4, Shadow: 3, BorderStyle: 1,
			PrimaryColour: "&H0000FFFF", OutlineColour: "&H00000000", BackColour: "&H80FF0000",
		},
	},
	{
		ID:          "elegant_serif",
		DisplayName: "Elegant Classic",
		Description: "Classic serif font for educational and cultural videos",
		Params: StyleParams{
			FontName: "Times New Roman", FontSize: 28,
			MarginL: 60, MarginR: 60, Outline: 2, Shadow: 1, BorderStyle: 1,
			PrimaryColour: "&H00F0F0F0", OutlineColour: "&H00404040", BackColour: "&H90000000",
		},
	},
	{
		ID:          "retro_wave",
		DisplayName: "Retro Wave",
		Description: "80s-inspired style with gradient colors",
		Params: StyleParams{
			FontName: "Courier New", FontSize: 32, Bold: 1, Spacing: 0.5,
			MarginL: 45, MarginR: 45, Outline: 3, Shadow: 2, BorderStyle: 1,
			PrimaryColour: "&H00FF80FF", OutlineColour: "&H0080FFFF", BackColour: "&H80000040",
		},
	},
	{
		ID:          "social_media",
		DisplayName: "Social Media",
		Description: "Optimized style for Instagram, TikTok and other platforms",
		Params: StyleParams{
			FontName: "Arial", FontSize: 30, Bold: 1, Spacing: 0.2,
			MarginL: 30, MarginR: 30, Outline: 3, Shadow: 2, BorderStyle: 1,
			PrimaryColour: "&H00FFFFFF", OutlineColour: "&H00000000", BackColour: "&H80000000",
		},
	},
	{
		ID:          "cinematic",
		DisplayName: "Cinematic",
		Description: "Cinematic style with soft shadows for artistic videos",
		Params: StyleParams{
			FontName: "Arial", FontSize: 26, Spacing: 0.1,
			MarginL: 80, MarginR: 80, Outline: 1, Shadow: 3, BorderStyle: 1,
			PrimaryColour: "&H00F5F5F5", OutlineColour: "&H00202020", BackColour: "&H60000000",
		},
	},
}

var positionPresets = map[string]Position{
	"top":    {Alignment: 8, MarginV: 120},
	"middle": {Alignment: 5, MarginV: 60},
	"bottom": {Alignment: 2, MarginV: 90},
}

// fontByLanguage overrides the style font for scripts the default fonts
// cannot render.
var fontByLanguage = map[string]string{
	"zh": "Noto Sans CJK SC",
	"ja": "Noto Sans CJK JP",
	"ko": "Noto Sans CJK KR",
	"ar": "Noto Naskh Arabic",
	"he": "Noto Sans Hebrew",
	"hi": "Noto Sans Devanagari",
	"bn": "Noto Sans Bengali",
	"th": "Noto Sans Thai",
}

var stylesByID = func() map[string]Style {
	index := make(map[string]Style, len(styleCatalog))
	for _, style := range styleCatalog {
		index[style.ID] = style
	}
	return index
}()

// Styles returns the catalog in presentation order.
func Styles() []Style {
	cp := make([]Style, len(styleCatalog))
	copy(cp, styleCatalog)
	return cp
}

// StyleByID looks up a style. Unknown identifiers fall back to the default
// style, mirroring how a bad inline choice should degrade rather than fail
// the task.
func StyleByID(id string) Style {
	if style, ok := stylesByID[strings.ToLower(strings.TrimSpace(id))]; ok {
		return style
	}
	return stylesByID[DefaultStyleID]
}

// ValidStyle reports whether the identifier names a catalog style.
func ValidStyle(id string) bool {
	_, ok := stylesByID[strings.ToLower(strings.TrimSpace(id))]
	return ok
}

// PositionByName resolves a placement preset, defaulting to bottom.
func PositionByName(name string) Position {
	if preset, ok := positionPresets[strings.ToLower(strings.TrimSpace(name))]; ok {
		return preset
	}
	return positionPresets[DefaultPosition]
}

// ValidPosition reports whether the name is a known placement preset.
func ValidPosition(name string) bool {
	_, ok := positionPresets[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// PositionNames returns the known placement presets sorted alphabetically.
func PositionNames() []string {
	names := make([]string, 0, len(positionPresets))
	for name := range positionPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FontForLanguage returns the script-specific font override for a language,
// or empty when the style's own font is fine.
func FontForLanguage(code string) string {
	return fontByLanguage[strings.ToLower(strings.TrimSpace(code))]
}

// ForceStyle renders the complete libass force_style value for a style,
// position, and target language. Field order is stable so commands remain
// reproducible.
func ForceStyle(styleID, position, targetLanguage string) string {
	style := StyleByID(styleID)
	params := style.Params
	if font := FontForLanguage(targetLanguage); font != "" {
		params.FontName = font
	}
	preset := PositionByName(position)

	fields := []string{
		fmt.Sprintf("FontName=%s", params.FontName),
		fmt.Sprintf("FontSize=%d", params.FontSize),
		fmt.Sprintf("Bold=%d", params.Bold),
		fmt.Sprintf("Italic=%d", params.Italic),
		fmt.Sprintf("Spacing=%.1f", params.Spacing),
		fmt.Sprintf("MarginL=%d", params.MarginL),
		fmt.Sprintf("MarginR=%d", params.MarginR),
		fmt.Sprintf("MarginV=%d", preset.MarginV),
		fmt.Sprintf("Alignment=%d", preset.Alignment),
		fmt.Sprintf("Outline=%d", params.Outline),
		fmt.Sprintf("Shadow=%d", params.Shadow),
		fmt.Sprintf("BorderStyle=%d", params.BorderStyle),
		fmt.Sprintf("PrimaryColour=%s", params.PrimaryColour),
		fmt.Sprintf("OutlineColour=%s", params.OutlineColour),
		fmt.Sprintf("BackColour=%s", params.BackColour),
	}
	return strings.Join(fields, ",")
}
