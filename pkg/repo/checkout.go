package repo

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/odvcencio/gitlet/pkg/diff"
	"github.com/odvcencio/gitlet/pkg/object"
)

// CheckoutResult describes what Checkout did.
type CheckoutResult struct {
	Target    object.Hash
	Branch    string // branch HEAD is now attached to; "" when detached
	AlreadyOn bool   // HEAD was already at ref; nothing changed
	Changes   []diff.Change
}

// Checkout switches HEAD, the index and the working copy to ref. A branch
// name attaches HEAD to the branch; a hash or MERGE_HEAD detaches it.
//
// Algorithm:
//  1. Refuse on a bare repository or while a merge is in progress.
//  2. Resolve ref to a commit.
//  3. Return early when ref is HEAD or is already checked out.
//  4. Refuse if any path the move would change has local changes.
//  5. Load every blob the move needs before touching disk.
//  6. Apply diff(HEAD, target) to the working copy and the index.
//  7. Move HEAD.
func (r *Repo) Checkout(ref string) (*CheckoutResult, error) {
	if err := r.assertWorkingCopy("checkout"); err != nil {
		return nil, err
	}
	if r.InMergeState() {
		return nil, fmt.Errorf("checkout: %w", ErrMergeInProgress)
	}

	rev, err := r.resolveRevision(ref)
	if err != nil {
		return nil, fmt.Errorf("checkout: %w", err)
	}
	kind, err := r.Store.Kind(rev.Hash)
	if err != nil {
		return nil, fmt.Errorf("checkout: %w", err)
	}
	if kind != object.TypeCommit {
		return nil, fmt.Errorf("checkout: %s is a %s: %w", rev.Hash.Short(), kind, ErrNotACommit)
	}
	target := rev.Hash

	current, err := r.CurrentBranch()
	if err != nil {
		return nil, fmt.Errorf("checkout: %w", err)
	}
	head, err := r.HeadHash()
	if err != nil {
		return nil, fmt.Errorf("checkout: %w", err)
	}
	if strings.TrimSpace(ref) == headRef || (rev.Branch != "" && rev.Branch == current) {
		return &CheckoutResult{Target: target, Branch: current, AlreadyOn: true}, nil
	}
	if rev.Branch == "" && current == "" && head == target {
		return &CheckoutResult{Target: target, AlreadyOn: true}, nil
	}

	headSnap, err := r.commitSnapshot(head)
	if err != nil {
		return nil, fmt.Errorf("checkout: %w", err)
	}
	changes, err := r.DiffCommits(head, target)
	if err != nil {
		return nil, fmt.Errorf("checkout: %w", err)
	}
	conflicts, err := r.overwriteConflicts(headSnap, changes)
	if err != nil {
		return nil, fmt.Errorf("checkout: %w", err)
	}
	if len(conflicts) > 0 {
		return nil, &LocalChangesError{Op: "checkout", Paths: conflicts}
	}

	blobs, err := r.loadBlobs(changes)
	if err != nil {
		return nil, fmt.Errorf("checkout: %w", err)
	}
	ix, err := r.ReadIndex()
	if err != nil {
		return nil, fmt.Errorf("checkout: %w", err)
	}

	if err := r.applyChanges(ix, changes, blobs); err != nil {
		return nil, fmt.Errorf("checkout: %w", err)
	}
	if err := r.WriteIndex(ix); err != nil {
		return nil, fmt.Errorf("checkout: %w", err)
	}

	if rev.Branch != "" {
		err = r.SetSymbolicRef(headRef, branchRefName(rev.Branch))
	} else {
		err = r.UpdateRef(headRef, target)
	}
	if err != nil {
		return nil, fmt.Errorf("checkout: update HEAD: %w", err)
	}

	r.Logger.WithFields(log.Fields{"ref": ref, "target": target, "branch": rev.Branch, "changes": len(changes)}).Debug("checkout")
	return &CheckoutResult{Target: target, Branch: rev.Branch, Changes: changes}, nil
}
