package repo

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

// DefaultBranch is the branch an unborn HEAD points at after Init.
const DefaultBranch = "master"

// InitOptions configures a new repository.
type InitOptions struct {
	Bare         bool   // no working copy; the repository lives at path itself
	ObjectFormat string // "sha256" (default) or "blake2b"
	Compression  string // "zstd" (default) or "none"
}

// Init creates a new gitlet repository at path. It creates HEAD, config,
// objects/ and refs/heads/ under .gitlet/ (or directly under path when
// bare). HEAD starts unborn, pointing at refs/heads/master. Returns
// ErrRepositoryExists if path already holds a repository.
func Init(fsys afero.Fs, path string, opts InitOptions) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("init: abs path: %w", err)
	}

	gitDir := filepath.Join(abs, GitDirName)
	if opts.Bare {
		gitDir = abs
	}

	if ok, _ := afero.Exists(fsys, filepath.Join(gitDir, "HEAD")); ok {
		return nil, fmt.Errorf("init: %w at %s", ErrRepositoryExists, gitDir)
	}

	cfg := defaultConfig()
	cfg.Core.Bare = opts.Bare
	if opts.ObjectFormat != "" {
		cfg.Core.ObjectFormat = opts.ObjectFormat
	}
	if opts.Compression != "" {
		cfg.Core.Compression = opts.Compression
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}

	// Create directory structure.
	dirs := []string{
		filepath.Join(gitDir, "objects"),
		filepath.Join(gitDir, "refs", "heads"),
	}
	for _, d := range dirs {
		if err := fsys.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("init: mkdir %s: %w", d, err)
		}
	}

	if err := writeConfig(fsys, gitDir, cfg); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}

	// Write default HEAD.
	headPath := filepath.Join(gitDir, "HEAD")
	if err := afero.WriteFile(fsys, headPath, []byte(symrefPrefix+branchRefName(DefaultBranch)+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("init: write HEAD: %w", err)
	}

	root := abs
	return newRepo(fsys, root, gitDir, cfg), nil
}

// Open searches upward from path for a repository and opens it. A
// directory counts as a repository if it contains .gitlet/, or if it is
// itself a bare repository. Returns ErrNotARepository if none is found.
func Open(fsys afero.Fs, path string) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("open: abs path: %w", err)
	}

	cur := abs
	for {
		gitDir := filepath.Join(cur, GitDirName)
		if ok, _ := afero.DirExists(fsys, gitDir); ok {
			cfg, err := readConfig(fsys, gitDir)
			if err != nil {
				return nil, fmt.Errorf("open: %w", err)
			}
			return newRepo(fsys, cur, gitDir, cfg), nil
		}

		if isBareDir(fsys, cur) {
			cfg, err := readConfig(fsys, cur)
			if err != nil {
				return nil, fmt.Errorf("open: %w", err)
			}
			if cfg.Core.Bare {
				return newRepo(fsys, cur, cur, cfg), nil
			}
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			// Reached filesystem root without finding a repository.
			return nil, fmt.Errorf("open: %w (or any parent up to /)", ErrNotARepository)
		}
		cur = parent
	}
}

func isBareDir(fsys afero.Fs, dir string) bool {
	for _, name := range []string{"HEAD", "config"} {
		if ok, _ := afero.Exists(fsys, filepath.Join(dir, name)); !ok {
			return false
		}
	}
	ok, _ := afero.DirExists(fsys, filepath.Join(dir, "objects"))
	return ok
}
