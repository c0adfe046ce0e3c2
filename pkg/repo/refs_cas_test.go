package repo

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/odvcencio/gitlet/pkg/object"
)

func TestResolve_Names(t *testing.T) {
	r := newTestRepo(t)
	h := commitFiles(t, r, "first", map[string]string{"a.txt": "v1"})

	for _, name := range []string{"HEAD", "master", "refs/heads/master", string(h), string(h[:8]), string(h[:4])} {
		got, err := r.Resolve(name)
		if err != nil {
			t.Errorf("Resolve(%q): %v", name, err)
			continue
		}
		if got != h {
			t.Errorf("Resolve(%q) = %s, want %s", name, got, h)
		}
	}

	for _, name := range []string{"", "nope", "MERGE_HEAD", "refs/heads/nope", "abc"} {
		if _, err := r.Resolve(name); !errors.Is(err, ErrUnknownRevision) {
			t.Errorf("Resolve(%q): got %v, want ErrUnknownRevision", name, err)
		}
	}
}

func TestResolve_SymbolicRefDepthIsBounded(t *testing.T) {
	r := newTestRepo(t)
	commitFiles(t, r, "first", map[string]string{"a.txt": "v1"})

	// refs/heads/alias -> refs/heads/master is one hop from its own name,
	// but HEAD -> alias -> master is two.
	aliasPath := filepath.Join(r.GitDir, "refs", "heads", "alias")
	if err := afero.WriteFile(r.FS, aliasPath, []byte("ref: refs/heads/master\n"), 0o644); err != nil {
		t.Fatalf("write alias: %v", err)
	}
	if _, err := r.Resolve("alias"); err != nil {
		t.Fatalf("Resolve(alias): %v", err)
	}

	headPath := filepath.Join(r.GitDir, "HEAD")
	if err := afero.WriteFile(r.FS, headPath, []byte("ref: refs/heads/alias\n"), 0o644); err != nil {
		t.Fatalf("write HEAD: %v", err)
	}
	if _, err := r.Resolve("HEAD"); !errors.Is(err, ErrSymrefDepth) {
		t.Fatalf("Resolve(HEAD): got %v, want ErrSymrefDepth", err)
	}

	// A self-referencing ref is a cycle.
	if err := afero.WriteFile(r.FS, aliasPath, []byte("ref: refs/heads/alias\n"), 0o644); err != nil {
		t.Fatalf("write alias: %v", err)
	}
	if _, err := r.Resolve("refs/heads/alias"); !errors.Is(err, ErrSymrefDepth) {
		t.Fatalf("Resolve(cycle): got %v, want ErrSymrefDepth", err)
	}
}

func TestWriteRef_DetachAndAttach(t *testing.T) {
	r := newTestRepo(t)
	h := commitFiles(t, r, "first", map[string]string{"a.txt": "v1"})

	if err := r.WriteRef("HEAD", string(h)); err != nil {
		t.Fatalf("WriteRef(hash): %v", err)
	}
	detached, err := r.IsDetached()
	if err != nil {
		t.Fatalf("IsDetached: %v", err)
	}
	if !detached {
		t.Fatal("HEAD should be detached")
	}
	branch, err := r.CurrentBranch()
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}
	if branch != "" {
		t.Errorf("CurrentBranch = %q, want empty", branch)
	}

	if err := r.WriteRef("HEAD", "ref: refs/heads/master"); err != nil {
		t.Fatalf("WriteRef(symbolic): %v", err)
	}
	if detached, _ := r.IsDetached(); detached {
		t.Fatal("HEAD should be attached")
	}
	if branch, _ := r.CurrentBranch(); branch != "master" {
		t.Errorf("CurrentBranch = %q, want master", branch)
	}
}

func TestWriteRef_RejectsMissingAndNonCommitObjects(t *testing.T) {
	r := newTestRepo(t)
	missing := object.Hash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	if err := r.UpdateRef("refs/heads/x", missing); !errors.Is(err, object.ErrObjectNotFound) {
		t.Errorf("UpdateRef(missing): got %v, want ErrObjectNotFound", err)
	}

	blob, err := r.Store.WriteBlob(&object.Blob{Data: []byte("x")})
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	if err := r.UpdateRef("refs/heads/x", blob); !errors.Is(err, ErrNotACommit) {
		t.Errorf("UpdateRef(blob): got %v, want ErrNotACommit", err)
	}
	if err := r.WriteRef("HEAD", "ref: HEAD"); err == nil {
		t.Error("expected error for symbolic ref outside refs/")
	}
}

func TestUpdateRefCAS_Mismatch(t *testing.T) {
	r := newTestRepo(t)
	first := commitFiles(t, r, "first", map[string]string{"a.txt": "v1"})
	second := commitFiles(t, r, "second", map[string]string{"a.txt": "v2"})

	err := r.UpdateRefCAS("refs/heads/master", first, first)
	if !errors.Is(err, ErrRefCASMismatch) {
		t.Fatalf("UpdateRefCAS(stale): got %v, want ErrRefCASMismatch", err)
	}
	got, err := r.Resolve("master")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != second {
		t.Fatalf("master = %s, want unchanged %s", got, second)
	}

	if err := r.UpdateRefCAS("refs/heads/master", first, second); err != nil {
		t.Fatalf("UpdateRefCAS(current): %v", err)
	}
	if ok, _ := afero.Exists(r.FS, filepath.Join(r.GitDir, "refs", "heads", "master.lock")); ok {
		t.Error("lock file left behind")
	}
}

func TestUpdateRefCAS_StaleLockTimesOut(t *testing.T) {
	prev := refLockWaitLimit
	refLockWaitLimit = 20 * time.Millisecond
	t.Cleanup(func() { refLockWaitLimit = prev })

	r := newTestRepo(t)
	h := commitFiles(t, r, "first", map[string]string{"a.txt": "v1"})

	lock := filepath.Join(r.GitDir, "refs", "heads", "side.lock")
	if err := afero.WriteFile(r.FS, lock, nil, 0o644); err != nil {
		t.Fatalf("write lock: %v", err)
	}
	if err := r.UpdateRef("refs/heads/side", h); err == nil {
		t.Fatal("expected lock timeout")
	}
}

func TestParentHashesForNextCommit(t *testing.T) {
	r := newTestRepo(t)
	parents, err := r.ParentHashesForNextCommit()
	if err != nil {
		t.Fatalf("ParentHashesForNextCommit: %v", err)
	}
	if len(parents) != 0 {
		t.Fatalf("unborn parents = %v", parents)
	}

	first := commitFiles(t, r, "first", map[string]string{"a.txt": "v1"})
	parents, _ = r.ParentHashesForNextCommit()
	if len(parents) != 1 || parents[0] != first {
		t.Fatalf("parents = %v, want [%s]", parents, first)
	}

	other, err := r.WriteCommit(r.mustTree(t, first), "other", nil)
	if err != nil {
		t.Fatalf("WriteCommit: %v", err)
	}
	if err := r.UpdateRef(mergeHeadRef, other); err != nil {
		t.Fatalf("UpdateRef(MERGE_HEAD): %v", err)
	}
	if !r.InMergeState() {
		t.Fatal("InMergeState = false")
	}
	parents, _ = r.ParentHashesForNextCommit()
	if len(parents) != 2 || parents[0] != first || parents[1] != other {
		t.Fatalf("parents = %v, want [%s %s]", parents, first, other)
	}
}

func TestListRefs(t *testing.T) {
	r := newTestRepo(t)
	h := commitFiles(t, r, "first", map[string]string{"a.txt": "v1"})
	if err := r.CreateBranch("dev", h); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}

	refs, err := r.ListRefs("heads")
	if err != nil {
		t.Fatalf("ListRefs: %v", err)
	}
	if len(refs) != 2 || refs["heads/master"] != h || refs["heads/dev"] != h {
		t.Fatalf("refs = %v", refs)
	}
}

// mustTree returns the tree of commit h.
func (r *Repo) mustTree(t *testing.T, h object.Hash) object.Hash {
	t.Helper()
	tree, err := r.commitTree(h)
	if err != nil {
		t.Fatalf("commitTree(%s): %v", h, err)
	}
	return tree
}
