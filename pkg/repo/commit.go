package repo

import (
	"errors"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/odvcencio/gitlet/pkg/object"
)

// DefaultAuthor is recorded when the config names no user.
const DefaultAuthor = "gitlet"

const mergeMsgFile = "MERGE_MSG"

// resolveCommit resolves rev and checks that it names a commit.
func (r *Repo) resolveCommit(rev string) (object.Hash, error) {
	h, err := r.Resolve(rev)
	if err != nil {
		return "", err
	}
	kind, err := r.Store.Kind(h)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", rev, err)
	}
	if kind != object.TypeCommit {
		return "", fmt.Errorf("resolve %q: %s is a %s: %w", rev, h.Short(), kind, ErrNotACommit)
	}
	return h, nil
}

func (r *Repo) author() string {
	if name := strings.TrimSpace(r.Config.User.Name); name != "" {
		return name
	}
	return DefaultAuthor
}

// WriteCommit writes a commit object for tree with the given parents and
// returns its hash. It does not move any ref.
func (r *Repo) WriteCommit(tree object.Hash, message string, parents []object.Hash) (object.Hash, error) {
	h, err := r.Store.WriteCommit(&object.CommitObj{
		TreeHash:  tree,
		Parents:   parents,
		Author:    r.author(),
		Timestamp: r.Now().Unix(),
		Message:   message,
	})
	if err != nil {
		return "", fmt.Errorf("write commit: %w", err)
	}
	return h, nil
}

// Commit records the index as a new commit on the current branch (or on
// the detached HEAD).
//
//  1. Refuse while conflict stages remain.
//  2. Build the tree from the index.
//  3. Outside a merge, refuse a tree identical to HEAD's.
//  4. Write the commit with ParentHashesForNextCommit as parents.
//  5. Advance the branch with a compare-and-swap on the old head.
//  6. Clear MERGE_HEAD and MERGE_MSG.
//
// While merging, an empty message falls back to MERGE_MSG.
func (r *Repo) Commit(message string) (object.Hash, error) {
	if err := r.assertWorkingCopy("commit"); err != nil {
		return "", err
	}
	ix, err := r.ReadIndex()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	if conflicted := ix.ConflictedPaths(); len(conflicted) > 0 {
		return "", &ConflictsError{Op: "commit", Paths: conflicted}
	}

	merging := r.InMergeState()
	if merging && strings.TrimSpace(message) == "" {
		msg, err := afero.ReadFile(r.FS, r.gitPath(mergeMsgFile))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("commit: read %s: %w", mergeMsgFile, err)
		}
		message = string(msg)
	}

	parents, err := r.ParentHashesForNextCommit()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	tree, err := r.BuildTree(ix)
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	if !merging {
		if len(parents) == 0 && ix.Len() == 0 {
			return "", fmt.Errorf("commit: %w", ErrNothingToCommit)
		}
		if len(parents) > 0 {
			headTree, err := r.commitTree(parents[0])
			if err != nil {
				return "", fmt.Errorf("commit: %w", err)
			}
			if headTree == tree {
				return "", fmt.Errorf("commit: %w", ErrNothingToCommit)
			}
		}
	}

	h, err := r.WriteCommit(tree, message, parents)
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	var old object.Hash
	if len(parents) > 0 {
		old = parents[0]
	}
	if err := r.advanceHead(h, old); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	if merging {
		if err := r.clearMergeState(); err != nil {
			return "", fmt.Errorf("commit: %w", err)
		}
	}

	r.Logger.WithFields(log.Fields{"hash": h, "parents": len(parents), "tree": tree}).Debug("commit")
	return h, nil
}

// advanceHead moves the current branch (or a detached HEAD) from old to h.
// An empty old means the branch must not exist yet.
func (r *Repo) advanceHead(h, old object.Hash) error {
	head, err := r.Head()
	if err != nil {
		return err
	}
	if strings.HasPrefix(head, "refs/") {
		return r.UpdateRefCAS(head, h, old)
	}
	return r.UpdateRefCAS(headRef, h, old)
}

func (r *Repo) writeMergeState(theirs object.Hash, message string) error {
	if err := r.UpdateRef(mergeHeadRef, theirs); err != nil {
		return err
	}
	if err := writeFileAtomic(r.FS, r.gitPath(mergeMsgFile), []byte(message)); err != nil {
		return fmt.Errorf("write %s: %w", mergeMsgFile, err)
	}
	return nil
}

func (r *Repo) clearMergeState() error {
	if err := r.DeleteRef(mergeHeadRef); err != nil {
		return err
	}
	if err := r.FS.Remove(r.gitPath(mergeMsgFile)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", mergeMsgFile, err)
	}
	return nil
}

// LogEntry is one commit in history order.
type LogEntry struct {
	Hash object.Hash
	*object.CommitObj
}

// Log walks first-parent history from start (HEAD when empty), newest
// first, returning at most limit commits (all when limit <= 0). An unborn
// HEAD has no history.
func (r *Repo) Log(start string, limit int) ([]LogEntry, error) {
	var current object.Hash
	if start == "" {
		h, err := r.HeadHash()
		if err != nil {
			return nil, fmt.Errorf("log: %w", err)
		}
		if h == "" {
			return nil, nil
		}
		current = h
	} else {
		h, err := r.resolveCommit(start)
		if err != nil {
			return nil, fmt.Errorf("log: %w", err)
		}
		current = h
	}

	var entries []LogEntry
	for current != "" && (limit <= 0 || len(entries) < limit) {
		c, err := r.Store.ReadCommit(current)
		if err != nil {
			return nil, fmt.Errorf("log: read commit %s: %w", current, err)
		}
		entries = append(entries, LogEntry{Hash: current, CommitObj: c})
		current = ""
		if len(c.Parents) > 0 {
			current = c.Parents[0]
		}
	}
	return entries, nil
}
