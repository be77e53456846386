package piston

import "testing"

func TestMapLanguage(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"javascript", "javascript"},
		{"js", "javascript"},
		{"typescript", "typescript"},
		{"ts", "typescript"},
		{"python", "python"},
		{"py", "python"},
		{"java", "java"},
		{"cpp", "cpp"},
		{"c++", "cpp"},
		{"c", "c"},
		{"csharp", "csharp"},
		{"c#", "csharp"},
		{"go", "go"},
		{"rust", "rust"},
		{"php", "php"},
		{"ruby", "ruby"},
		{"swift", "swift"},
		{"kotlin", "kotlin"},
		{"scala", "scala"},
		{"bash", "bash"},
		{"sh", "bash"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := MapLanguage(tt.in); got != tt.want {
				t.Errorf("MapLanguage(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestMapLanguage_CaseInsensitive(t *testing.T) {
	if got := MapLanguage("PYTHON"); got != "python" {
		t.Errorf("MapLanguage(PYTHON) = %q, want python", got)
	}
	if got := MapLanguage("Py"); got != "python" {
		t.Errorf("MapLanguage(Py) = %q, want python", got)
	}
	if MapLanguage("C++") != MapLanguage("c++") {
		t.Error("MapLanguage is not case-insensitive for c++")
	}
}

func TestMapLanguage_UnknownPassesThroughLowercased(t *testing.T) {
	if got := MapLanguage("Brainfuck"); got != "brainfuck" {
		t.Errorf("MapLanguage(Brainfuck) = %q, want brainfuck", got)
	}
}

func TestMapLanguage_Pure(t *testing.T) {
	first := MapLanguage("js")
	second := MapLanguage("js")
	if first != second {
		t.Errorf("MapLanguage not idempotent: %q then %q", first, second)
	}
}
