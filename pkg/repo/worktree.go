package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/afero"

	"github.com/odvcencio/gitlet/pkg/diff"
	"github.com/odvcencio/gitlet/pkg/object"
)

// WorkState summarises how the working copy relates to HEAD.
type WorkState int

const (
	StateClean WorkState = iota
	StateDirty
	StateConflicted
)

func (s WorkState) String() string {
	switch s {
	case StateClean:
		return "clean"
	case StateDirty:
		return "dirty"
	case StateConflicted:
		return "conflicted"
	default:
		return fmt.Sprintf("WorkState(%d)", int(s))
	}
}

// dirMarker stands in for a directory found where a file path was expected.
// It never equals a real blob hash.
const dirMarker object.Hash = "<directory>"

// fileState returns the blob hash the on-disk content of rel would have,
// or "" when nothing is there.
func (r *Repo) fileState(rel string) (object.Hash, error) {
	abs := r.workPath(rel)
	info, err := r.FS.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
			return "", nil
		}
		return "", fmt.Errorf("stat %q: %w", rel, err)
	}
	if info.IsDir() {
		return dirMarker, nil
	}
	data, err := afero.ReadFile(r.FS, abs)
	if err != nil {
		return "", fmt.Errorf("read %q: %w", rel, err)
	}
	return r.Store.HashOf(object.TypeBlob, data), nil
}

// workingSnapshot hashes the on-disk content of every indexed path. Paths
// missing from disk are left out.
func (r *Repo) workingSnapshot(ix *Index) (diff.Snapshot, error) {
	snap := make(diff.Snapshot)
	for _, p := range ix.Paths() {
		h, err := r.fileState(p)
		if err != nil {
			return nil, err
		}
		if h != "" && h != dirMarker {
			snap[p] = h
		}
	}
	return snap, nil
}

// headSnapshot flattens HEAD's tree; an unborn HEAD is empty.
func (r *Repo) headSnapshot() (object.Hash, diff.Snapshot, error) {
	head, err := r.HeadHash()
	if err != nil {
		return "", nil, err
	}
	snap, err := r.commitSnapshot(head)
	if err != nil {
		return "", nil, err
	}
	return head, snap, nil
}

// OverwriteConflicts returns the sorted paths whose working-copy state
// differs from HEAD and which moving to target would change. A non-empty
// result means checking out or merging target could lose local work.
func (r *Repo) OverwriteConflicts(target object.Hash) ([]string, error) {
	head, headSnap, err := r.headSnapshot()
	if err != nil {
		return nil, fmt.Errorf("overwrite check: %w", err)
	}
	headTree, err := r.commitTree(head)
	if err != nil {
		return nil, fmt.Errorf("overwrite check: %w", err)
	}
	targetTree, err := r.commitTree(target)
	if err != nil {
		return nil, fmt.Errorf("overwrite check: %w", err)
	}
	changes, err := diff.Trees(r.Store, headTree, targetTree)
	if err != nil {
		return nil, fmt.Errorf("overwrite check: %w", err)
	}
	return r.overwriteConflicts(headSnap, changes)
}

func (r *Repo) overwriteConflicts(headSnap diff.Snapshot, changes []diff.Change) ([]string, error) {
	var out []string
	for _, c := range changes {
		wc, err := r.fileState(c.Path)
		if err != nil {
			return nil, fmt.Errorf("overwrite check: %w", err)
		}
		if wc == dirMarker && headSnap[c.Path] == "" {
			// Tracked files below the directory show up as their own
			// removals; only untracked content blocks the move.
			wc, err = r.untrackedBelow(c.Path, headSnap)
			if err != nil {
				return nil, fmt.Errorf("overwrite check: %w", err)
			}
		}
		if wc != headSnap[c.Path] {
			out = append(out, c.Path)
		}
	}
	sort.Strings(out)
	return out, nil
}

var errStopWalk = errors.New("stop walk")

// untrackedBelow returns dirMarker if the directory rel holds a file HEAD
// does not track, and "" otherwise.
func (r *Repo) untrackedBelow(rel string, headSnap diff.Snapshot) (object.Hash, error) {
	var found object.Hash
	err := afero.Walk(r.FS, r.workPath(rel), func(abs string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() {
			return nil
		}
		sub, err := r.RelPath(abs)
		if err != nil {
			return err
		}
		if _, ok := headSnap[sub]; !ok {
			found = dirMarker
			return errStopWalk
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopWalk) {
		return "", fmt.Errorf("walk %q: %w", rel, err)
	}
	return found, nil
}

// State reports whether the working copy is clean, has uncommitted
// changes, or is in the middle of a conflicted merge.
func (r *Repo) State() (WorkState, error) {
	if r.IsBare() {
		return StateClean, nil
	}
	ix, err := r.ReadIndex()
	if err != nil {
		return 0, err
	}
	if r.InMergeState() || len(ix.ConflictedPaths()) > 0 {
		return StateConflicted, nil
	}
	_, headSnap, err := r.headSnapshot()
	if err != nil {
		return 0, err
	}
	indexSnap := ix.Snapshot()
	if len(diff.Snapshots(headSnap, indexSnap)) > 0 {
		return StateDirty, nil
	}
	work, err := r.workingSnapshot(ix)
	if err != nil {
		return 0, err
	}
	if len(diff.Snapshots(indexSnap, work)) > 0 {
		return StateDirty, nil
	}
	return StateClean, nil
}

// loadBlobs reads every blob the changes will write, so a missing object
// fails the operation before anything on disk is touched.
func (r *Repo) loadBlobs(changes []diff.Change) (map[object.Hash][]byte, error) {
	blobs := make(map[object.Hash][]byte)
	for _, c := range changes {
		if c.Type == diff.Removed {
			continue
		}
		if _, ok := blobs[c.After]; ok {
			continue
		}
		b, err := r.Store.ReadBlob(c.After)
		if err != nil {
			return nil, fmt.Errorf("read blob for %q: %w", c.Path, err)
		}
		blobs[c.After] = b.Data
	}
	return blobs, nil
}

// applyChanges brings the working copy and ix in line with changes.
// Removals run first so a file can give way to a directory of the same
// name.
func (r *Repo) applyChanges(ix *Index, changes []diff.Change, blobs map[object.Hash][]byte) error {
	for _, c := range changes {
		if c.Type != diff.Removed {
			continue
		}
		if err := r.removeWorkFile(c.Path); err != nil {
			return err
		}
		ix.Unstage(c.Path)
	}
	for _, c := range changes {
		if c.Type == diff.Removed {
			continue
		}
		if err := r.writeWorkFile(c.Path, blobs[c.After]); err != nil {
			return err
		}
		ix.Stage(c.Path, c.After)
	}
	return nil
}

func (r *Repo) writeWorkFile(rel string, data []byte) error {
	abs := r.workPath(rel)
	if info, err := r.FS.Stat(abs); err == nil && info.IsDir() {
		if err := r.FS.Remove(abs); err != nil {
			return fmt.Errorf("replace directory %q: %w", rel, err)
		}
	}
	if err := r.FS.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("mkdir for %q: %w", rel, err)
	}
	if err := afero.WriteFile(r.FS, abs, data, 0o644); err != nil {
		return fmt.Errorf("write %q: %w", rel, err)
	}
	return nil
}

// removeWorkFile deletes the file at rel and prunes emptied parents. A
// directory at rel is left alone; its files are tracked separately.
func (r *Repo) removeWorkFile(rel string) error {
	abs := r.workPath(rel)
	if info, err := r.FS.Stat(abs); err == nil && info.IsDir() {
		return nil
	}
	err := r.FS.Remove(abs)
	if err != nil && !errors.Is(err, os.ErrNotExist) && !errors.Is(err, syscall.ENOTDIR) {
		return fmt.Errorf("remove %q: %w", rel, err)
	}
	r.removeEmptyParents(filepath.Dir(abs))
	return nil
}

// removeEmptyParents removes empty directories up to (but not including)
// the repository root.
func (r *Repo) removeEmptyParents(dir string) {
	for {
		if dir == r.RootDir || !strings.HasPrefix(dir, r.RootDir+string(filepath.Separator)) {
			return
		}
		entries, err := afero.ReadDir(r.FS, dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := r.FS.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
