package repo

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/afero"

	"github.com/odvcencio/gitlet/pkg/object"
)

// Config stores repository-local settings.
type Config struct {
	Core CoreConfig `toml:"core"`
	User UserConfig `toml:"user"`
}

// CoreConfig holds the settings fixed when the repository is created.
type CoreConfig struct {
	Bare         bool   `toml:"bare"`
	ObjectFormat string `toml:"objectformat"`
	Compression  string `toml:"compression"` // "zstd" or "none"
}

// UserConfig names the author recorded in new commits.
type UserConfig struct {
	Name string `toml:"name,omitempty"`
}

const (
	compressionZstd = "zstd"
	compressionNone = "none"
)

func defaultConfig() *Config {
	return &Config{Core: CoreConfig{
		ObjectFormat: string(object.FormatSHA256),
		Compression:  compressionZstd,
	}}
}

func (c *Config) validate() error {
	if strings.ContainsAny(c.User.Name, "\r\n") {
		return fmt.Errorf("user name %q contains a line break", c.User.Name)
	}
	if _, err := object.ParseFormat(c.Core.ObjectFormat); err != nil {
		return err
	}
	switch c.Core.Compression {
	case "", compressionZstd, compressionNone:
		return nil
	default:
		return fmt.Errorf("unknown compression %q", c.Core.Compression)
	}
}

func (c *Config) storeOptions() []object.StoreOption {
	format, _ := object.ParseFormat(c.Core.ObjectFormat)
	return []object.StoreOption{
		object.WithFormat(format),
		object.WithCompression(c.Core.Compression != compressionNone),
	}
}

func configPath(gitDir string) string {
	return filepath.Join(gitDir, "config")
}

// readConfig reads <gitdir>/config. Missing config returns defaults.
func readConfig(fsys afero.Fs, gitDir string) (*Config, error) {
	cfg := defaultConfig()
	data, err := afero.ReadFile(fsys, configPath(gitDir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("read config: decode: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return cfg, nil
}

// writeConfig atomically writes <gitdir>/config.
func writeConfig(fsys afero.Fs, gitDir string, cfg *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("write config: encode: %w", err)
	}
	if err := writeFileAtomic(fsys, configPath(gitDir), buf.Bytes()); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// ReadConfig re-reads the repository configuration from disk.
func (r *Repo) ReadConfig() (*Config, error) {
	return readConfig(r.FS, r.GitDir)
}

// SetUserName records the author name used for new commits.
func (r *Repo) SetUserName(name string) error {
	cfg, err := r.ReadConfig()
	if err != nil {
		return err
	}
	cfg.User.Name = name
	if err := cfg.validate(); err != nil {
		return err
	}
	if err := writeConfig(r.FS, r.GitDir, cfg); err != nil {
		return err
	}
	r.Config = cfg
	return nil
}
