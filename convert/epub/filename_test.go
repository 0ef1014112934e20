package epub

import (
	"strings"
	"testing"

	"webepub/content"
)

func TestFilename(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		url      string
		translit bool
		template string
		want     string
	}{
		{"plain", "Hello, World! Test", "", false, "", "Hello_World_Test_2024-05-01.epub"},
		{"hyphen kept", "Go - the  language", "", false, "", "Go_-_the_language_2024-05-01.epub"},
		{"truncated", strings.Repeat("abcde ", 20), "", false, "", strings.Repeat("abcde_", 8) + "ab_2024-05-01.epub"},
		{"non ascii", "Привет", "", false, "", "book_2024-05-01.epub"},
		{"transliterated", "Привет мир", "", true, "", "privet_mir_2024-05-01.epub"},
		{"template", "My Post", "https://example.com/a", false, "{{ .Host }}-{{ .Title | lower }}", "example.com-my post.epub"},
		{"template name", "My Post", "", false, "{{ .Name }}.epub", "My_Post_2024-05-01.epub"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.FileNameTransliterate = tt.translit
			cfg.OutputNameTemplate = tt.template
			got, err := Filename(&content.Document{Title: tt.title, SourceURL: tt.url}, captured, cfg)
			if err != nil {
				t.Fatalf("Filename() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Filename() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFilename_BadTemplate(t *testing.T) {
	cfg := testConfig()
	cfg.OutputNameTemplate = "{{ .Missing"
	if _, err := Filename(&content.Document{Title: "x"}, captured, cfg); err == nil {
		t.Fatal("expected error")
	}
}
