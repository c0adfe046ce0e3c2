package repo

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotARepository       = errors.New("not a gitlet repository")
	ErrRepositoryExists     = errors.New("repository already exists")
	ErrBareRepository       = errors.New("operation requires a working copy; repository is bare")
	ErrUnknownRevision      = errors.New("unknown revision")
	ErrNotACommit           = errors.New("not a commit")
	ErrNoMatchingFiles      = errors.New("did not match any files")
	ErrUnstagedLocalChanges = errors.New("local changes would be lost")
	ErrNothingToCommit      = errors.New("nothing to commit, working directory clean")
	ErrUnresolvedConflicts  = errors.New("unresolved merge conflicts")
	ErrMergeInProgress      = errors.New("merge in progress")
	ErrRefCASMismatch       = errors.New("ref compare-and-swap mismatch")
	ErrSymrefDepth          = errors.New("symbolic ref chain too deep")
)

// LocalChangesError lists the paths whose uncommitted changes an operation
// refused to overwrite or discard.
type LocalChangesError struct {
	Op    string
	Paths []string
}

func (e *LocalChangesError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s: %s:\n%s", e.Op, ErrUnstagedLocalChanges, strings.Join(e.Paths, "\n"))
}

func (e *LocalChangesError) Is(target error) bool {
	return target == ErrUnstagedLocalChanges
}

// ConflictsError lists the paths that still carry conflict stages.
type ConflictsError struct {
	Op    string
	Paths []string
}

func (e *ConflictsError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Op, ErrUnresolvedConflicts)
	for _, p := range e.Paths {
		fmt.Fprintf(&b, "\nU %s", p)
	}
	return b.String()
}

func (e *ConflictsError) Is(target error) bool {
	return target == ErrUnresolvedConflicts
}
