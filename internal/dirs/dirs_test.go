package dirs

import (
	"path/filepath"
	"runtime"
	"testing"
)

func TestLinuxXDGOverrides(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG layout only applies on linux")
	}
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(base, "cfg"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(base, "data"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(base, "state"))

	tests := []struct {
		name string
		fn   func() (string, error)
		want string
	}{
		{name: "config", fn: ConfigDir, want: filepath.Join(base, "cfg", "layerkit")},
		{name: "data", fn: DataDir, want: filepath.Join(base, "data", "layerkit")},
		{name: "state", fn: StateDir, want: filepath.Join(base, "state", "layerkit")},
		{name: "scripts", fn: ScriptsDir, want: filepath.Join(base, "data", "layerkit", "scripts")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}

	if err := EnsureAll(); err != nil {
		t.Fatalf("EnsureAll() error = %v", err)
	}
}

func TestLinuxHomeFallback(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG layout only applies on linux")
	}
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")

	got, err := ConfigDir()
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(home, ".config", "layerkit"); got != want {
		t.Errorf("ConfigDir() = %q, want %q", got, want)
	}
}

func TestEnsureEmpty(t *testing.T) {
	if err := Ensure(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}
