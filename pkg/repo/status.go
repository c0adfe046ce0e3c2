package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"github.com/odvcencio/gitlet/pkg/diff"
	"github.com/odvcencio/gitlet/pkg/object"
)

// Status summarises HEAD, the index and the working copy.
type Status struct {
	Branch     string      // "" when detached
	Head       object.Hash // "" when unborn
	Merging    bool
	Conflicted []string
	Staged     []diff.Change // HEAD vs index
	Unstaged   []diff.Change // index vs working copy
	Untracked  []string
}

// Status computes the working tree status for the repository.
//
// Algorithm:
//  1. Read the index and HEAD's tree.
//  2. Compare the index against HEAD (staged changes).
//  3. Compare indexed files on disk against the index (unstaged changes).
//  4. Walk the working copy for files the index does not know, skipping
//     ignored paths.
func (r *Repo) Status() (*Status, error) {
	if err := r.assertWorkingCopy("status"); err != nil {
		return nil, err
	}
	ix, err := r.ReadIndex()
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	head, headSnap, err := r.headSnapshot()
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	branch, err := r.CurrentBranch()
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}

	st := &Status{
		Branch:     branch,
		Head:       head,
		Merging:    r.InMergeState(),
		Conflicted: ix.ConflictedPaths(),
	}
	conflicted := make(map[string]bool, len(st.Conflicted))
	for _, p := range st.Conflicted {
		conflicted[p] = true
	}

	indexSnap := ix.Snapshot()
	for _, c := range diff.Snapshots(headSnap, indexSnap) {
		if !conflicted[c.Path] {
			st.Staged = append(st.Staged, c)
		}
	}

	work, err := r.workingSnapshot(ix)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	for _, c := range diff.Snapshots(indexSnap, work) {
		if !conflicted[c.Path] {
			st.Unstaged = append(st.Unstaged, c)
		}
	}

	ig := r.ignorer()
	err = afero.Walk(r.FS, r.RootDir, func(abs string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := r.RelPath(abs)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if info.IsDir() {
			if ig.IgnoredDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !ix.Has(rel) && !ig.Ignored(rel) {
			st.Untracked = append(st.Untracked, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("status: walk: %w", err)
	}
	sort.Strings(st.Untracked)
	return st, nil
}

// Clean reports whether nothing is staged, modified, conflicted or
// untracked.
func (s *Status) Clean() bool {
	return len(s.Conflicted) == 0 && len(s.Staged) == 0 && len(s.Unstaged) == 0 && len(s.Untracked) == 0
}
