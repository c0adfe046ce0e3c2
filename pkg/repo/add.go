package repo

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/odvcencio/gitlet/pkg/object"
)

// RelPath converts p (absolute, or relative to the repository root) into
// a clean slash path relative to the root. The root itself is ".".
func (r *Repo) RelPath(p string) (string, error) {
	if filepath.IsAbs(p) {
		rel, err := filepath.Rel(r.RootDir, p)
		if err != nil {
			return "", fmt.Errorf("cannot make %q relative to %q: %w", p, r.RootDir, err)
		}
		p = rel
	}
	rel := path.Clean(filepath.ToSlash(p))
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%q is outside repository at %s", p, r.RootDir)
	}
	return rel, nil
}

// under reports whether p is dir or lies below it. "." contains everything.
func under(p, dir string) bool {
	return dir == "." || p == dir || strings.HasPrefix(p, dir+"/")
}

// Add stages the given paths. Directories are walked (ignore rules
// apply), each file's content is written as a blob and staged at stage 0.
// Indexed files that no longer exist on disk are unstaged. Returns the
// changed paths; if nothing matched, ErrNoMatchingFiles.
func (r *Repo) Add(paths []string) ([]string, error) {
	if err := r.assertWorkingCopy("add"); err != nil {
		return nil, err
	}
	ix, err := r.ReadIndex()
	if err != nil {
		return nil, fmt.Errorf("add: %w", err)
	}
	ig := r.ignorer()

	touched := make(map[string]bool)
	stageFile := func(rel string) error {
		if strings.Contains(rel, "\n") {
			return fmt.Errorf("add: path %q contains a newline", rel)
		}
		data, err := afero.ReadFile(r.FS, r.workPath(rel))
		if err != nil {
			return fmt.Errorf("add: read %q: %w", rel, err)
		}
		h, err := r.Store.WriteBlob(&object.Blob{Data: data})
		if err != nil {
			return fmt.Errorf("add: write blob %q: %w", rel, err)
		}
		ix.Stage(rel, h)
		touched[rel] = true
		return nil
	}

	var unmatched []string
	for _, p := range paths {
		rel, err := r.RelPath(p)
		if err != nil {
			return nil, fmt.Errorf("add: %w", err)
		}
		before := len(touched)

		info, err := r.FS.Stat(r.workPath(rel))
		switch {
		case err != nil && !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("add: stat %q: %w", rel, err)
		case err == nil && info.IsDir():
			walkErr := afero.Walk(r.FS, r.workPath(rel), func(abs string, fi os.FileInfo, walkErr error) error {
				if walkErr != nil {
					return walkErr
				}
				sub, err := r.RelPath(abs)
				if err != nil {
					return err
				}
				if fi.IsDir() {
					if sub != "." && ig.IgnoredDir(sub) {
						return filepath.SkipDir
					}
					return nil
				}
				if !fi.Mode().IsRegular() || ig.Ignored(sub) {
					return nil
				}
				return stageFile(sub)
			})
			if walkErr != nil {
				return nil, walkErr
			}
		case err == nil:
			if !ig.Ignored(rel) || ix.Has(rel) {
				if err := stageFile(rel); err != nil {
					return nil, err
				}
			}
		}

		// Indexed files under rel that vanished from disk are staged as
		// deletions.
		for _, tracked := range ix.Paths() {
			if !under(tracked, rel) || touched[tracked] {
				continue
			}
			state, err := r.fileState(tracked)
			if err != nil {
				return nil, fmt.Errorf("add: %w", err)
			}
			if state == "" || state == dirMarker {
				ix.Unstage(tracked)
				touched[tracked] = true
			}
		}

		if len(touched) == before && !r.matchesIndexed(ix, rel) {
			unmatched = append(unmatched, p)
		}
	}
	if len(unmatched) > 0 {
		return nil, fmt.Errorf("add: pathspec %s: %w", strings.Join(unmatched, ", "), ErrNoMatchingFiles)
	}

	if err := r.WriteIndex(ix); err != nil {
		return nil, fmt.Errorf("add: %w", err)
	}
	out := make([]string, 0, len(touched))
	for p := range touched {
		out = append(out, p)
	}
	sort.Strings(out)
	r.Logger.WithField("paths", out).Debug("add")
	return out, nil
}

// matchesIndexed reports whether rel names an indexed file or directory.
func (r *Repo) matchesIndexed(ix *Index, rel string) bool {
	for _, p := range ix.Paths() {
		if under(p, rel) {
			return true
		}
	}
	return false
}

// Remove deletes the given paths from the working copy and the index.
// Paths are matched against the index; a directory needs recursive. The
// whole call is refused with a *LocalChangesError when any matched file's
// on-disk content was added or modified relative to HEAD.
func (r *Repo) Remove(paths []string, recursive bool) ([]string, error) {
	if err := r.assertWorkingCopy("rm"); err != nil {
		return nil, err
	}
	ix, err := r.ReadIndex()
	if err != nil {
		return nil, fmt.Errorf("rm: %w", err)
	}

	seen := make(map[string]bool)
	var targets []string
	var unmatched []string
	for _, p := range paths {
		rel, err := r.RelPath(p)
		if err != nil {
			return nil, fmt.Errorf("rm: %w", err)
		}
		var matched []string
		if ix.Has(rel) {
			matched = []string{rel}
		} else {
			for _, tracked := range ix.Paths() {
				if under(tracked, rel) {
					matched = append(matched, tracked)
				}
			}
			if len(matched) > 0 && !recursive {
				return nil, fmt.Errorf("rm: not removing %q recursively without -r", p)
			}
		}
		if len(matched) == 0 {
			unmatched = append(unmatched, p)
			continue
		}
		for _, m := range matched {
			if !seen[m] {
				seen[m] = true
				targets = append(targets, m)
			}
		}
	}
	if len(unmatched) > 0 {
		return nil, fmt.Errorf("rm: pathspec %s: %w", strings.Join(unmatched, ", "), ErrNoMatchingFiles)
	}
	sort.Strings(targets)

	_, headSnap, err := r.headSnapshot()
	if err != nil {
		return nil, fmt.Errorf("rm: %w", err)
	}
	var changed []string
	for _, t := range targets {
		state, err := r.fileState(t)
		if err != nil {
			return nil, fmt.Errorf("rm: %w", err)
		}
		if state != "" && state != dirMarker && state != headSnap[t] {
			changed = append(changed, t)
		}
	}
	if len(changed) > 0 {
		return nil, &LocalChangesError{Op: "rm", Paths: changed}
	}

	for _, t := range targets {
		if err := r.removeWorkFile(t); err != nil {
			return nil, fmt.Errorf("rm: %w", err)
		}
		ix.Unstage(t)
	}
	if err := r.WriteIndex(ix); err != nil {
		return nil, fmt.Errorf("rm: %w", err)
	}
	r.Logger.WithField("paths", targets).Debug("rm")
	return targets, nil
}
