package language_test

import (
	"testing"

	"clipdub/internal/language"
)

func TestToISO2(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"en", "en"},
		{"EN", "en"},
		{" English ", "en"},
		{"pt-BR", "pt"},
		{"zh-Hans", "zh"},
		{"rus", "ru"},
		{"", ""},
		{"not-a-language", ""},
	}
	for _, tc := range cases {
		if got := language.ToISO2(tc.in); got != tc.want {
			t.Errorf("ToISO2(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDisplayName(t *testing.T) {
	if got := language.DisplayName("de"); got != "German" {
		t.Fatalf("DisplayName(de) = %q", got)
	}
	if got := language.DisplayName(""); got != "Unknown" {
		t.Fatalf("DisplayName(empty) = %q", got)
	}
}

func TestSame(t *testing.T) {
	if !language.Same("pt-BR", "pt") {
		t.Fatal("expected pt-BR and pt to match")
	}
	if language.Same("en", "de") {
		t.Fatal("expected en and de to differ")
	}
	if language.Same("", "en") {
		t.Fatal("empty input should never match")
	}
}

func TestNormalizeList(t *testing.T) {
	got := language.NormalizeList([]string{"EN", "english", "de", "bogus", ""})
	want := []string{"en", "de"}
	if len(got) != len(want) {
		t.Fatalf("NormalizeList = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("NormalizeList = %v, want %v", got, want)
		}
	}
}
