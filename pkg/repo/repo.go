package repo

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/odvcencio/gitlet/pkg/object"
)

// Repo represents an opened gitlet repository. Every operation goes through
// FS; nothing reads the process working directory.
type Repo struct {
	FS      afero.Fs
	RootDir string        // working copy root; equals GitDir when bare
	GitDir  string        // .gitlet/ directory, or the root of a bare repo
	Store   *object.Store // content-addressed object store
	Config  *Config
	Logger  log.FieldLogger
	Now     func() time.Time // commit timestamps
}

// GitDirName is the name of the repository directory inside a working copy.
const GitDirName = ".gitlet"

func newRepo(fsys afero.Fs, root, gitDir string, cfg *Config) *Repo {
	return &Repo{
		FS:      fsys,
		RootDir: root,
		GitDir:  gitDir,
		Store:   object.NewStore(fsys, gitDir, cfg.storeOptions()...),
		Config:  cfg,
		Logger:  discardLogger(),
		Now:     time.Now,
	}
}

// discardLogger returns a logger that drops every entry.
func discardLogger() *log.Logger {
	l := log.New()
	l.Out = io.Discard
	return l
}

// IsBare reports whether the repository has no working copy.
func (r *Repo) IsBare() bool {
	return r.Config.Core.Bare
}

// assertWorkingCopy fails operations that read or write the working copy
// on a bare repository.
func (r *Repo) assertWorkingCopy(op string) error {
	if r.IsBare() {
		return fmt.Errorf("%s: %w", op, ErrBareRepository)
	}
	return nil
}

// gitPath joins elem under the git directory.
func (r *Repo) gitPath(elem ...string) string {
	return filepath.Join(append([]string{r.GitDir}, elem...)...)
}

// workPath maps a repo-relative slash path to its location on FS.
func (r *Repo) workPath(rel string) string {
	return filepath.Join(r.RootDir, filepath.FromSlash(rel))
}

// writeFileAtomic writes data to path via temp file + rename so readers
// never see a partially written file.
func writeFileAtomic(fsys afero.Fs, path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp, err := afero.TempFile(fsys, dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		fsys.Remove(tmpName)
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		fsys.Remove(tmpName)
		return fmt.Errorf("sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		fsys.Remove(tmpName)
		return fmt.Errorf("close: %w", err)
	}
	if err := fsys.Rename(tmpName, path); err != nil {
		fsys.Remove(tmpName)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
