package repo

import (
	"fmt"

	"github.com/odvcencio/gitlet/pkg/diff"
	"github.com/odvcencio/gitlet/pkg/object"
)

// DiffCommits compares the trees of two commits. An empty hash stands for
// the empty tree.
func (r *Repo) DiffCommits(a, b object.Hash) ([]diff.Change, error) {
	ta, err := r.commitTree(a)
	if err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}
	tb, err := r.commitTree(b)
	if err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}
	return diff.Trees(r.Store, ta, tb)
}

// Diff compares two states. An empty ref1 means HEAD's tree (empty while
// HEAD is unborn). An empty ref2 means the working copy of every indexed
// file. Otherwise each ref is resolved to a commit.
func (r *Repo) Diff(ref1, ref2 string) ([]diff.Change, error) {
	var before diff.Snapshot
	if ref1 == "" {
		_, snap, err := r.headSnapshot()
		if err != nil {
			return nil, fmt.Errorf("diff: %w", err)
		}
		before = snap
	} else {
		h, err := r.resolveCommit(ref1)
		if err != nil {
			return nil, fmt.Errorf("diff: %w", err)
		}
		if before, err = r.commitSnapshot(h); err != nil {
			return nil, fmt.Errorf("diff: %w", err)
		}
	}

	var after diff.Snapshot
	if ref2 == "" {
		if err := r.assertWorkingCopy("diff"); err != nil {
			return nil, err
		}
		ix, err := r.ReadIndex()
		if err != nil {
			return nil, fmt.Errorf("diff: %w", err)
		}
		if after, err = r.workingSnapshot(ix); err != nil {
			return nil, fmt.Errorf("diff: %w", err)
		}
	} else {
		h, err := r.resolveCommit(ref2)
		if err != nil {
			return nil, fmt.Errorf("diff: %w", err)
		}
		if after, err = r.commitSnapshot(h); err != nil {
			return nil, fmt.Errorf("diff: %w", err)
		}
	}

	return diff.Snapshots(before, after), nil
}
