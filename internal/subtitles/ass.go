package subtitles

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// ASS playback resolution the margins in the style catalog are tuned for.
const (
	assPlayResX = 1080
	assPlayResY = 1920
)

// FormatASS renders segments as a styled ASS subtitle track. The resolved
// style carries its font, colours, and placement inside the file, so the
// burn-in filter needs no force_style override.
func FormatASS(segments []Segment, styleID, position, targetLanguage string) []byte {
	style := StyleByID(styleID)
	params := style.Params
	if font := FontForLanguage(targetLanguage); font != "" {
		params.FontName = font
	}
	preset := PositionByName(position)

	var b strings.Builder
	b.WriteString("[Script Info]\n")
	b.WriteString("ScriptType: v4.00+\n")
	fmt.Fprintf(&b, "PlayResX: %d\n", assPlayResX)
	fmt.Fprintf(&b, "PlayResY: %d\n", assPlayResY)
	b.WriteString("WrapStyle: 0\n")
	b.WriteString("ScaledBorderAndShadow: yes\n\n")

	b.WriteString("[V4+ Styles]\n")
	b.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, " +
		"Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, " +
		"Alignment, MarginL, MarginR, MarginV, Encoding\n")
	fmt.Fprintf(&b, "Style: Default,%s,%d,%s,%s,%s,%s,%d,%d,0,0,100,100,%.1f,0,%d,%d,%d,%d,%d,%d,%d,1\n\n",
		params.FontName, params.FontSize,
		params.PrimaryColour, params.PrimaryColour, params.OutlineColour, params.BackColour,
		assBool(params.Bold), assBool(params.Italic),
		params.Spacing, params.BorderStyle, params.Outline, params.Shadow,
		preset.Alignment, params.MarginL, params.MarginR, preset.MarginV)

	b.WriteString("[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	for _, segment := range segments {
		if segment.IsEmpty() {
			continue
		}
		fmt.Fprintf(&b, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n",
			assTimestamp(segment.Start), assTimestamp(segment.End), escapeASSText(segment.Text))
	}
	return []byte(b.String())
}

// WriteASSFile writes the styled track to path.
func WriteASSFile(path string, segments []Segment, styleID, position, targetLanguage string) error {
	return os.WriteFile(path, FormatASS(segments, styleID, position, targetLanguage), 0o644)
}

// assTimestamp renders h:mm:ss.cs, the format's centisecond precision.
func assTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := d / time.Millisecond
	cs := (total % 1000) / 10
	seconds := total / 1000
	return fmt.Sprintf("%d:%02d:%02d.%02d", seconds/3600, (seconds%3600)/60, seconds%60, cs)
}

// escapeASSText protects override-block characters and maps newlines onto
// forced line breaks.
func escapeASSText(text string) string {
	escaped := strings.ReplaceAll(text, "\\", "\\\\")
	escaped = strings.ReplaceAll(escaped, "{", "\\{")
	escaped = strings.ReplaceAll(escaped, "}", "\\}")
	escaped = strings.ReplaceAll(escaped, "\r\n", "\n")
	return strings.ReplaceAll(escaped, "\n", "\\N")
}

// In ASS, boolean style flags use -1 for true.
func assBool(flag int) int {
	if flag != 0 {
		return -1
	}
	return 0
}
