package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/odvcencio/gitlet/pkg/object"
)

const (
	headRef      = "HEAD"
	mergeHeadRef = "MERGE_HEAD"
	symrefPrefix = "ref: "
	branchPrefix = "refs/heads/"

	// A symbolic ref may point at a ref holding a hash, never at another
	// symbolic ref.
	maxSymrefHops = 1

	refLockRetryDelay = 5 * time.Millisecond
)

// refLockWaitLimit bounds how long a writer waits for a held ref lock.
var refLockWaitLimit = 2 * time.Second

func branchRefName(name string) string {
	return branchPrefix + name
}

// refFile maps a ref name to its file under the git directory.
func (r *Repo) refFile(name string) string {
	return r.gitPath(filepath.FromSlash(name))
}

// readRef returns the trimmed content of the named ref and whether it
// exists.
func (r *Repo) readRef(name string) (string, bool, error) {
	data, err := afero.ReadFile(r.FS, r.refFile(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read ref %q: %w", name, err)
	}
	return strings.TrimSpace(string(data)), true, nil
}

func (r *Repo) refExists(name string) bool {
	ok, _ := afero.Exists(r.FS, r.refFile(name))
	return ok
}

// Head reads HEAD. If the content starts with "ref: ", it returns the ref
// path (e.g., "refs/heads/master"). Otherwise it returns the raw content
// as a detached hash string.
func (r *Repo) Head() (string, error) {
	content, ok, err := r.readRef(headRef)
	if err != nil {
		return "", fmt.Errorf("head: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("head: %w: missing HEAD", ErrNotARepository)
	}
	return strings.TrimPrefix(content, symrefPrefix), nil
}

// IsDetached reports whether HEAD holds a raw commit hash.
func (r *Repo) IsDetached() (bool, error) {
	content, ok, err := r.readRef(headRef)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, fmt.Errorf("head: %w: missing HEAD", ErrNotARepository)
	}
	return !strings.HasPrefix(content, symrefPrefix), nil
}

// CurrentBranch returns the branch name HEAD is attached to, or "" when
// HEAD is detached.
func (r *Repo) CurrentBranch() (string, error) {
	head, err := r.Head()
	if err != nil {
		return "", fmt.Errorf("current branch: %w", err)
	}
	if strings.HasPrefix(head, branchPrefix) {
		return strings.TrimPrefix(head, branchPrefix), nil
	}
	return "", nil
}

// HeadHash returns the commit HEAD resolves to, or "" when HEAD is unborn.
func (r *Repo) HeadHash() (object.Hash, error) {
	h, ok, err := r.chase(headRef)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return h, nil
}

// chase follows symbolic refs from name with a bounded number of hops. It
// reports false when the final ref does not exist (an unborn branch).
func (r *Repo) chase(name string) (object.Hash, bool, error) {
	seen := map[string]bool{}
	for hops := 0; ; hops++ {
		if seen[name] {
			return "", false, fmt.Errorf("resolve %q: %w: cycle", name, ErrSymrefDepth)
		}
		seen[name] = true

		content, ok, err := r.readRef(name)
		if err != nil {
			return "", false, err
		}
		if !ok {
			return "", false, nil
		}
		if !strings.HasPrefix(content, symrefPrefix) {
			return object.Hash(content), true, nil
		}
		if hops >= maxSymrefHops {
			return "", false, fmt.Errorf("resolve %q: %w", name, ErrSymrefDepth)
		}
		name = strings.TrimPrefix(content, symrefPrefix)
	}
}

// revision is a resolved name: the object it points at and, when the name
// was a branch, the branch.
type revision struct {
	Hash   object.Hash
	Branch string
}

// Resolve resolves a ref name or hash to an object hash.
//
// Resolution order:
//  1. "HEAD" and "MERGE_HEAD", following HEAD's symbolic ref.
//  2. A full hash of a stored object.
//  3. "refs/..." names, then branch names under refs/heads/.
//  4. An unambiguous abbreviated hash.
//
// Unborn HEAD and unknown names fail with ErrUnknownRevision.
func (r *Repo) Resolve(name string) (object.Hash, error) {
	rev, err := r.resolveRevision(name)
	if err != nil {
		return "", err
	}
	return rev.Hash, nil
}

func (r *Repo) resolveRevision(name string) (revision, error) {
	name = strings.TrimSpace(name)
	unknown := func() (revision, error) {
		return revision{}, fmt.Errorf("resolve %q: %w", name, ErrUnknownRevision)
	}
	if name == "" {
		return unknown()
	}

	lookup := func(ref string) (object.Hash, bool, error) {
		h, ok, err := r.chase(ref)
		if err != nil || !ok {
			return "", false, err
		}
		return h, true, nil
	}

	switch {
	case name == headRef || name == mergeHeadRef:
		h, ok, err := lookup(name)
		if err != nil {
			return revision{}, err
		}
		if !ok {
			return unknown()
		}
		return revision{Hash: h}, nil

	case object.ValidHash(name) && r.Store.Has(object.Hash(name)):
		return revision{Hash: object.Hash(name)}, nil

	case strings.HasPrefix(name, "refs/"):
		h, ok, err := lookup(name)
		if err != nil {
			return revision{}, err
		}
		if !ok {
			return unknown()
		}
		rev := revision{Hash: h}
		if strings.HasPrefix(name, branchPrefix) {
			rev.Branch = strings.TrimPrefix(name, branchPrefix)
		}
		return rev, nil
	}

	if validBranchName(name) {
		h, ok, err := lookup(branchRefName(name))
		if err != nil {
			return revision{}, err
		}
		if ok {
			return revision{Hash: h, Branch: name}, nil
		}
	}

	h, err := r.Store.Expand(name)
	if err != nil {
		if errors.Is(err, object.ErrAmbiguousPrefix) {
			return revision{}, fmt.Errorf("resolve %q: %w: %v", name, ErrUnknownRevision, err)
		}
		return unknown()
	}
	return revision{Hash: h}, nil
}

// WriteRef points ref at target. A target of the form "ref: <name>" makes
// ref symbolic; anything else must be the hash of a stored commit. Writing
// a hash to HEAD detaches it.
func (r *Repo) WriteRef(ref, target string) error {
	if strings.HasPrefix(target, symrefPrefix) {
		return r.SetSymbolicRef(ref, strings.TrimPrefix(target, symrefPrefix))
	}
	return r.UpdateRef(ref, object.Hash(strings.TrimSpace(target)))
}

// SetSymbolicRef makes name point at the ref target. The target must be a
// refs/ name that is not itself symbolic.
func (r *Repo) SetSymbolicRef(name, target string) error {
	target = strings.TrimSpace(target)
	if !strings.HasPrefix(target, "refs/") {
		return fmt.Errorf("set symbolic ref %q: target %q is not under refs/", name, target)
	}
	content, ok, err := r.readRef(target)
	if err != nil {
		return fmt.Errorf("set symbolic ref %q: %w", name, err)
	}
	if ok && strings.HasPrefix(content, symrefPrefix) {
		return fmt.Errorf("set symbolic ref %q -> %q: %w", name, target, ErrSymrefDepth)
	}
	return r.writeRef(name, symrefPrefix+target, nil)
}

// UpdateRef writes a commit hash to the named ref file under the git
// directory. Parent directories are created as needed.
func (r *Repo) UpdateRef(name string, h object.Hash) error {
	return r.UpdateRefCAS(name, h)
}

// UpdateRefCAS writes a commit hash to the named ref using lockfile +
// rename atomic semantics. If expectedOld is provided, the update only
// succeeds when the current ref content matches it ("" meaning absent).
// The commit must already be stored.
func (r *Repo) UpdateRefCAS(name string, h object.Hash, expectedOld ...object.Hash) error {
	if len(expectedOld) > 1 {
		return fmt.Errorf("update ref %q: expected at most one old hash", name)
	}
	kind, err := r.Store.Kind(h)
	if err != nil {
		return fmt.Errorf("update ref %q: %w", name, err)
	}
	if kind != object.TypeCommit {
		return fmt.Errorf("update ref %q: %s is a %s: %w", name, h, kind, ErrNotACommit)
	}
	var want *object.Hash
	if len(expectedOld) == 1 {
		want = &expectedOld[0]
	}
	return r.writeRef(name, string(h), want)
}

func (r *Repo) writeRef(name, content string, expectedOld *object.Hash) error {
	refPath := r.refFile(name)

	dir := filepath.Dir(refPath)
	if err := r.FS.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("update ref %q: mkdir: %w", name, err)
	}

	lockPath := refPath + ".lock"
	lockFile, err := acquireRefLock(r.FS, lockPath)
	if err != nil {
		return fmt.Errorf("update ref %q: lock: %w", name, err)
	}
	cleanupLock := true
	defer func() {
		if lockFile != nil {
			_ = lockFile.Close()
		}
		if cleanupLock {
			_ = r.FS.Remove(lockPath)
		}
	}()

	old, _, err := r.readRef(name)
	if err != nil {
		return fmt.Errorf("update ref %q: read old value: %w", name, err)
	}
	if expectedOld != nil && object.Hash(old) != *expectedOld {
		return fmt.Errorf(
			"update ref %q: %w (expected %s, found %s)",
			name,
			ErrRefCASMismatch,
			*expectedOld,
			old,
		)
	}

	if _, err := lockFile.WriteString(content + "\n"); err != nil {
		return fmt.Errorf("update ref %q: write: %w", name, err)
	}
	if err := lockFile.Sync(); err != nil {
		return fmt.Errorf("update ref %q: sync: %w", name, err)
	}
	if err := lockFile.Close(); err != nil {
		lockFile = nil
		return fmt.Errorf("update ref %q: close: %w", name, err)
	}
	lockFile = nil

	if err := r.FS.Rename(lockPath, refPath); err != nil {
		return fmt.Errorf("update ref %q: rename: %w", name, err)
	}
	cleanupLock = false

	r.Logger.WithFields(log.Fields{"ref": name, "old": old, "new": content}).Debug("ref updated")
	return nil
}

func acquireRefLock(fsys afero.Fs, lockPath string) (afero.File, error) {
	deadline := time.Now().Add(refLockWaitLimit)
	for {
		f, err := fsys.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, nil
		}
		if os.IsExist(err) || errors.Is(err, os.ErrExist) {
			if time.Now().After(deadline) {
				return nil, fmt.Errorf("timeout waiting for lock %q", lockPath)
			}
			time.Sleep(refLockRetryDelay)
			continue
		}
		return nil, err
	}
}

// DeleteRef removes the named ref. Deleting a missing ref is not an error.
func (r *Repo) DeleteRef(name string) error {
	if err := r.FS.Remove(r.refFile(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete ref %q: %w", name, err)
	}
	r.Logger.WithField("ref", name).Debug("ref deleted")
	return nil
}

// ListRefs lists references under refs/.
// Names are returned relative to refs root, e.g. "heads/master".
func (r *Repo) ListRefs(prefix string) (map[string]object.Hash, error) {
	root := r.gitPath("refs")
	dir := root
	if strings.TrimSpace(prefix) != "" {
		dir = filepath.Join(root, filepath.FromSlash(prefix))
	}

	refs := make(map[string]object.Hash)
	err := afero.Walk(r.FS, dir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() || strings.HasSuffix(path, ".lock") {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		data, err := afero.ReadFile(r.FS, path)
		if err != nil {
			return err
		}
		refs[filepath.ToSlash(rel)] = object.Hash(strings.TrimSpace(string(data)))
		return nil
	})
	if errors.Is(err, os.ErrNotExist) {
		return refs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	return refs, nil
}

// InMergeState reports whether a merge is waiting to be committed.
func (r *Repo) InMergeState() bool {
	return r.refExists(mergeHeadRef)
}

// ParentHashesForNextCommit returns the parents a commit made now would
// get: none on an unborn HEAD, [HEAD] normally, [HEAD, MERGE_HEAD] while
// a merge is pending.
func (r *Repo) ParentHashesForNextCommit() ([]object.Hash, error) {
	head, err := r.HeadHash()
	if err != nil {
		return nil, err
	}
	if head == "" {
		return nil, nil
	}
	parents := []object.Hash{head}
	if r.InMergeState() {
		mergeHead, ok, err := r.chase(mergeHeadRef)
		if err != nil {
			return nil, err
		}
		if ok {
			parents = append(parents, mergeHead)
		}
	}
	return parents, nil
}
