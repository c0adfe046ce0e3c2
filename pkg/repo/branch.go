package repo

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/odvcencio/gitlet/pkg/object"
)

// validBranchName rejects names that cannot live as a single file under
// refs/heads/ or that would be mistaken for a special ref.
func validBranchName(name string) bool {
	if name == "" || name == headRef || name == mergeHeadRef {
		return false
	}
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "-") || strings.HasSuffix(name, ".lock") {
		return false
	}
	return !strings.ContainsAny(name, "/\\ \t\n:~^?*[") && !strings.Contains(name, "..")
}

// CreateBranch creates a new branch pointing at the given target hash.
// It writes the hash to refs/heads/<name>. Returns an error if the
// branch already exists.
func (r *Repo) CreateBranch(name string, target object.Hash) error {
	if !validBranchName(name) {
		return fmt.Errorf("create branch: %q is not a valid branch name", name)
	}
	if err := r.UpdateRefCAS(branchRefName(name), target, ""); err != nil {
		if errors.Is(err, ErrRefCASMismatch) {
			return fmt.Errorf("create branch: branch %q already exists", name)
		}
		return fmt.Errorf("create branch %q: %w", name, err)
	}
	return nil
}

// CreateBranchAt resolves rev and creates a branch there. An empty rev
// means HEAD, which must not be unborn.
func (r *Repo) CreateBranchAt(name, rev string) (object.Hash, error) {
	if rev == "" {
		rev = headRef
	}
	h, err := r.resolveCommit(rev)
	if err != nil {
		return "", fmt.Errorf("create branch %q: %w", name, err)
	}
	if err := r.CreateBranch(name, h); err != nil {
		return "", err
	}
	return h, nil
}

// DeleteBranch removes the branch ref file refs/heads/<name>.
// Returns an error if the branch is the current branch or does not exist.
func (r *Repo) DeleteBranch(name string) error {
	current, err := r.CurrentBranch()
	if err != nil {
		return fmt.Errorf("delete branch: %w", err)
	}
	if current == name {
		return fmt.Errorf("delete branch: cannot delete current branch %q", name)
	}
	if !validBranchName(name) || !r.refExists(branchRefName(name)) {
		return fmt.Errorf("delete branch: branch %q does not exist", name)
	}
	return r.DeleteRef(branchRefName(name))
}

// ListBranches reads refs/heads/ and returns the branch names sorted
// alphabetically.
func (r *Repo) ListBranches() ([]string, error) {
	entries, err := afero.ReadDir(r.FS, r.gitPath("refs", "heads"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list branches: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), ".lock") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
