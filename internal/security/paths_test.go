package security

import (
	"path/filepath"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"forest_A", "forest_A"},
		{"2025-01-01 12:00:00", "2025-01-01_12_00_00"},
		{"../../etc", "etc"},
		{"scène  dense", "sc_ne_dense"},
		{"", "unknown"},
		{"...", "unknown"},
		{"a//b", "a_b"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := SanitizeFilename(tt.in); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeFilename_Length(t *testing.T) {
	long := make([]byte, 400)
	for i := range long {
		long[i] = 'a'
	}
	if got := SanitizeFilename(string(long)); len(got) != maxNameLen {
		t.Errorf("len = %d, want %d", len(got), maxNameLen)
	}
}

func TestJoinWithin(t *testing.T) {
	root := filepath.Join("/", "out")

	tests := []struct {
		name      string
		elems     []string
		want      string
		wantError bool
	}{
		{"nested", []string{"scene", "scene_plot_0_annotated.ply"}, "/out/scene/scene_plot_0_annotated.ply", false},
		{"root itself", nil, "/out", false},
		{"dotdot escape", []string{"..", "etc", "passwd"}, "", true},
		{"dotdot inside", []string{"scene", "..", "other"}, "/out/other", false},
		{"deep escape", []string{"a", "..", "..", "b"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := JoinWithin(root, tt.elems...)
			if (err != nil) != tt.wantError {
				t.Fatalf("JoinWithin error = %v, wantError %v", err, tt.wantError)
			}
			if !tt.wantError && got != filepath.FromSlash(tt.want) {
				t.Errorf("JoinWithin = %q, want %q", got, tt.want)
			}
		})
	}
}
