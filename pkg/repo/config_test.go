package repo

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func TestConfig_WrittenAsTOML(t *testing.T) {
	r := newTestRepo(t)

	data, err := afero.ReadFile(r.FS, filepath.Join(r.GitDir, "config"))
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	for _, want := range []string{"[core]", "bare = false", `objectformat = "sha256"`, `compression = "zstd"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("config missing %q:\n%s", want, data)
		}
	}
}

func TestConfig_UserNameRoundTrip(t *testing.T) {
	r := newTestRepo(t)
	if err := r.SetUserName("grace"); err != nil {
		t.Fatalf("SetUserName: %v", err)
	}

	cfg, err := r.ReadConfig()
	if err != nil {
		t.Fatalf("ReadConfig: %v", err)
	}
	if cfg.User.Name != "grace" {
		t.Errorf("User.Name = %q, want %q", cfg.User.Name, "grace")
	}
	if cfg.Core.ObjectFormat != "sha256" {
		t.Errorf("Core.ObjectFormat = %q, want sha256", cfg.Core.ObjectFormat)
	}
}

func TestConfig_MissingFileUsesDefaults(t *testing.T) {
	fsys := afero.NewMemMapFs()
	cfg, err := readConfig(fsys, "/nowhere")
	if err != nil {
		t.Fatalf("readConfig: %v", err)
	}
	if cfg.Core.Bare || cfg.Core.ObjectFormat != "sha256" || cfg.Core.Compression != compressionZstd {
		t.Errorf("defaults = %+v", cfg.Core)
	}
}

func TestConfig_RejectsInvalidValues(t *testing.T) {
	fsys := afero.NewMemMapFs()
	if err := afero.WriteFile(fsys, "/g/config", []byte("[core]\ncompression = \"lz4\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := readConfig(fsys, "/g"); err == nil {
		t.Fatal("expected error for unknown compression")
	}

	if err := afero.WriteFile(fsys, "/g/config", []byte("[core\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := readConfig(fsys, "/g"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestConfig_RejectsMultilineUserName(t *testing.T) {
	r := newTestRepo(t)
	if err := r.SetUserName("ada\nparent 0000"); err == nil {
		t.Fatal("SetUserName accepted a name with a newline")
	}
	cfg, err := r.ReadConfig()
	if err != nil {
		t.Fatalf("ReadConfig: %v", err)
	}
	if cfg.User.Name != "" {
		t.Errorf("User.Name = %q after refusal, want empty", cfg.User.Name)
	}
}
