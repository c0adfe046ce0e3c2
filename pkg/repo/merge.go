package repo

import (
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/odvcencio/gitlet/pkg/diff"
	"github.com/odvcencio/gitlet/pkg/merge"
	"github.com/odvcencio/gitlet/pkg/object"
)

// MergeOutcome classifies how a merge ended.
type MergeOutcome int

const (
	MergeAlreadyUpToDate MergeOutcome = iota
	MergeFastForward
	MergeClean
	MergeConflicted
)

func (o MergeOutcome) String() string {
	switch o {
	case MergeAlreadyUpToDate:
		return "already up to date"
	case MergeFastForward:
		return "fast-forward"
	case MergeClean:
		return "merged"
	case MergeConflicted:
		return "conflicted"
	default:
		return fmt.Sprintf("MergeOutcome(%d)", int(o))
	}
}

// MergeReport is the overall result of a repository-level merge.
type MergeReport struct {
	Outcome   MergeOutcome
	Base      object.Hash // merge base; "" for fast-forwards and unrelated histories
	Ours      object.Hash
	Theirs    object.Hash
	Commit    object.Hash   // new HEAD for fast-forward and clean merges
	Changes   []diff.Change // applied to the working copy, conflicts excluded
	Conflicts []string      // paths left with conflict stages
}

// Merge merges ref into HEAD.
//
// Algorithm:
//  1. Refuse on a bare repository or while another merge is in progress.
//  2. Resolve ref to a commit. If it is HEAD or an ancestor of HEAD there
//     is nothing to do.
//  3. Refuse if any path ref would change has local changes. A three-way
//     merge also refuses when the index differs from HEAD.
//  4. If HEAD is unborn or an ancestor of ref, fast-forward.
//  5. Otherwise merge three-way against the merge base, write the result
//     to the index and working copy, and record MERGE_HEAD and MERGE_MSG.
//     A clean result is committed with parents [HEAD, ref]; conflicts are
//     left as index stages 1-3 and marked files. A path that is a file on
//     one side and a directory on the other keeps the ours side on disk.
func (r *Repo) Merge(ref string) (*MergeReport, error) {
	if err := r.assertWorkingCopy("merge"); err != nil {
		return nil, err
	}
	if r.InMergeState() {
		return nil, fmt.Errorf("merge: %w", ErrMergeInProgress)
	}

	theirs, err := r.resolveCommit(ref)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	ours, err := r.HeadHash()
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	report := &MergeReport{Ours: ours, Theirs: theirs}

	w := r.newHistoryWalk()
	if ours != "" {
		upToDate, err := w.isAncestor(theirs, ours)
		if err != nil {
			return nil, fmt.Errorf("merge: %w", err)
		}
		if upToDate {
			report.Outcome = MergeAlreadyUpToDate
			report.Commit = ours
			return report, nil
		}
	}

	headSnap, err := r.commitSnapshot(ours)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	moving, err := r.DiffCommits(ours, theirs)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	overwritten, err := r.overwriteConflicts(headSnap, moving)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	if len(overwritten) > 0 {
		return nil, &LocalChangesError{Op: "merge", Paths: overwritten}
	}

	fastForward := ours == ""
	if !fastForward {
		if fastForward, err = w.isAncestor(ours, theirs); err != nil {
			return nil, fmt.Errorf("merge: %w", err)
		}
	}
	if fastForward {
		return r.fastForward(report, moving)
	}
	return r.mergeThreeWay(report, ref, headSnap)
}

func (r *Repo) fastForward(report *MergeReport, changes []diff.Change) (*MergeReport, error) {
	blobs, err := r.loadBlobs(changes)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	ix, err := r.ReadIndex()
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	if err := r.applyChanges(ix, changes, blobs); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	if err := r.WriteIndex(ix); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	if err := r.advanceHead(report.Theirs, report.Ours); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	report.Outcome = MergeFastForward
	report.Commit = report.Theirs
	report.Changes = changes
	r.Logger.WithFields(log.Fields{"from": report.Ours, "to": report.Theirs}).Debug("merge fast-forward")
	return report, nil
}

func (r *Repo) mergeThreeWay(report *MergeReport, ref string, oursSnap diff.Snapshot) (*MergeReport, error) {
	ix, err := r.ReadIndex()
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	// The merge commit is built from the index, so it must start at HEAD.
	if staged := stagedPaths(oursSnap, ix); len(staged) > 0 {
		return nil, &LocalChangesError{Op: "merge", Paths: staged}
	}

	base, err := r.FindMergeBase(report.Ours, report.Theirs)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	report.Base = base

	baseSnap, err := r.commitSnapshot(base)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	theirsSnap, err := r.commitSnapshot(report.Theirs)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	res := merge.ThreeWay(baseSnap, oursSnap, theirsSnap)
	if err := checkTreeShape(res.Merged); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	conflicted := make(map[string]bool, len(res.Conflicts))
	for _, c := range res.Conflicts {
		conflicted[c.Path] = true
	}
	var changes []diff.Change
	for _, c := range diff.Snapshots(oursSnap, res.Merged) {
		if !conflicted[c.Path] {
			changes = append(changes, c)
		}
	}

	// Read everything before the first write.
	blobs, err := r.loadBlobs(changes)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	readBlob := func(h object.Hash) ([]byte, error) {
		b, err := r.Store.ReadBlob(h)
		if err != nil {
			return nil, err
		}
		return b.Data, nil
	}
	rendered := make(map[string][]byte, len(res.Conflicts))
	for _, c := range res.Conflicts {
		if c.DirectoryClash {
			continue
		}
		data, err := merge.RenderConflict(c, readBlob)
		if err != nil {
			return nil, fmt.Errorf("merge: %w", err)
		}
		rendered[c.Path] = data
	}

	if err := r.applyChanges(ix, changes, blobs); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	for _, c := range res.Conflicts {
		if data, ok := rendered[c.Path]; ok {
			if err := r.writeWorkFile(c.Path, data); err != nil {
				return nil, fmt.Errorf("merge: %w", err)
			}
		}
		ix.SetConflict(c)
	}
	if err := r.WriteIndex(ix); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	message, err := r.mergeMessage(ref)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	if err := r.writeMergeState(report.Theirs, message); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	report.Changes = changes

	if res.HasConflicts() {
		report.Outcome = MergeConflicted
		report.Conflicts = res.ConflictPaths()
		r.Logger.WithFields(log.Fields{"base": base, "theirs": report.Theirs, "conflicts": len(report.Conflicts)}).Debug("merge conflicted")
		return report, nil
	}

	h, err := r.Commit(message)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	report.Outcome = MergeClean
	report.Commit = h
	r.Logger.WithFields(log.Fields{"base": base, "theirs": report.Theirs, "commit": h}).Debug("merge committed")
	return report, nil
}

// stagedPaths returns the sorted paths where ix differs from head,
// conflicted paths included.
func stagedPaths(head diff.Snapshot, ix *Index) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range diff.Snapshots(head, ix.Snapshot()) {
		seen[c.Path] = true
		out = append(out, c.Path)
	}
	for _, p := range ix.ConflictedPaths() {
		if !seen[p] {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

func (r *Repo) mergeMessage(ref string) (string, error) {
	branch, err := r.CurrentBranch()
	if err != nil {
		return "", err
	}
	if branch == "" {
		branch = headRef
	}
	return fmt.Sprintf("Merge %s into %s", ref, branch), nil
}
