package subtitles_test

import (
	"strings"
	"testing"

	"clipdub/internal/subtitles"
)

func TestStyleCatalogHasEightStyles(t *testing.T) {
	styles := subtitles.Styles()
	if len(styles) != 8 {
		t.Fatalf("expected 8 styles, got %d", len(styles))
	}
	seen := map[string]bool{}
	for _, style := range styles {
		if seen[style.ID] {
			t.Fatalf("duplicate style id %q", style.ID)
		}
		seen[style.ID] = true
		if style.Params.FontName == "" || style.Params.FontSize == 0 {
			t.Fatalf("style %q missing font settings", style.ID)
		}
	}
	if !seen[subtitles.DefaultStyleID] {
		t.Fatalf("default style %q missing from catalog", subtitles.DefaultStyleID)
	}
}

func TestStyleByIDFallsBackToDefault(t *testing.T) {
	style := subtitles.StyleByID("no_such_style")
	if style.ID != subtitles.DefaultStyleID {
		t.Fatalf("expected default fallback, got %q", style.ID)
	}
	if subtitles.ValidStyle("no_such_style") {
		t.Fatal("unknown style should not validate")
	}
	if !subtitles.ValidStyle("NEON_GLOW") {
		t.Fatal("style lookup should be case insensitive")
	}
}

func TestPositionPresets(t *testing.T) {
	cases := []struct {
		name      string
		alignment int
		marginV   int
	}{
		{"top", 8, 120},
		{"middle", 5, 60},
		{"bottom", 2, 90},
	}
	for _, tc := range cases {
		preset := subtitles.PositionByName(tc.name)
		if preset.Alignment != tc.alignment || preset.MarginV != tc.marginV {
			t.Errorf("%s preset = %+v", tc.name, preset)
		}
	}
	if got := subtitles.PositionByName("sideways"); got != subtitles.PositionByName("bottom") {
		t.Fatalf("unknown position should fall back to bottom, got %+v", got)
	}
}

func TestForceStyleAppliesPositionAndLanguageFont(t *testing.T) {
	value := subtitles.ForceStyle("modern_bold", "top", "ja")
	if !strings.Contains(value, "FontName=Noto Sans CJK JP") {
		t.Fatalf("expected Japanese font override, got %q", value)
	}
	if !strings.Contains(value, "Alignment=8") || !strings.Contains(value, "MarginV=120") {
		t.Fatalf("expected top placement fields, got %q", value)
	}
	if !strings.Contains(value, "OutlineColour=&H00FF6B35") {
		t.Fatalf("expected style outline colour, got %q", value)
	}

	plain := subtitles.ForceStyle("modern_bold", "bottom", "en")
	if !strings.Contains(plain, "FontName=Arial Black") {
		t.Fatalf("expected catalog font without override, got %q", plain)
	}
}
