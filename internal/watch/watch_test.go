package watch

import (
	"path/filepath"
	"testing"
)

func TestOwningRoot(t *testing.T) {
	a := filepath.Join("/", "exports", "facebook")
	b := filepath.Join("/", "exports", "messenger")
	roots := []string{a, b}

	tests := []struct {
		name   string
		want   string
		wantOK bool
	}{
		{filepath.Join(a, "inbox", "chat", "message_1.json"), a, true},
		{a, a, true},
		{filepath.Join(b, "media", "pic.png"), b, true},
		{filepath.Join("/", "exports", "facebook-old", "x.json"), "", false},
		{filepath.Join("/", "somewhere", "else"), "", false},
	}
	for _, tt := range tests {
		got, ok := owningRoot(roots, tt.name)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("owningRoot(%q) = %q, %v; want %q, %v", tt.name, got, ok, tt.want, tt.wantOK)
		}
	}
}
