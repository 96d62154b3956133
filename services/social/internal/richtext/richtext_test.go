package richtext

import (
	"strings"
	"testing"
)

func TestPlain(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text untouched", "hello world", "hello world"},
		{"trims", "  hi  ", "hi"},
		{"strips tags", "<b>bold</b> move", "bold move"},
		{"drops scripts", "<script>alert(1)</script>ok", "ok"},
		{"keeps ampersand", "salt & pepper", "salt & pepper"},
		{"only markup", "<img src=x>", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Plain(tt.in); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestHTML_RendersMarkdown(t *testing.T) {
	out := HTML("**launch** day")
	if !strings.Contains(out, "<strong>launch</strong>") {
		t.Fatalf("expected bold markup, got %q", out)
	}
}

func TestHTML_SanitizesRawHTML(t *testing.T) {
	out := HTML("hi <script>alert(1)</script>")
	if strings.Contains(out, "<script>") {
		t.Fatalf("expected script to be removed, got %q", out)
	}
}

func TestHTML_Empty(t *testing.T) {
	if HTML("") != "" {
		t.Fatal("expected empty output for empty input")
	}
}
