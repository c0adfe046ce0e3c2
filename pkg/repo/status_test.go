package repo

import (
	"reflect"
	"testing"

	"github.com/odvcencio/gitlet/pkg/diff"
)

func changePaths(changes []diff.Change) []string {
	var out []string
	for _, c := range changes {
		out = append(out, c.Type.String()+" "+c.Path)
	}
	return out
}

// Test 1: a fresh repository is clean and on an unborn master.
func TestStatus_FreshRepository(t *testing.T) {
	r := newTestRepo(t)
	st, err := r.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Branch != "master" || st.Head != "" {
		t.Fatalf("Branch, Head = %q, %q; want master on unborn HEAD", st.Branch, st.Head)
	}
	if !st.Clean() {
		t.Fatalf("fresh repository not clean: %+v", st)
	}
}

// Test 2: staged additions, modifications and deletions are reported
// against HEAD.
func TestStatus_Staged(t *testing.T) {
	r := newTestRepo(t)
	commitFiles(t, r, "base", map[string]string{"keep.txt": "1", "gone.txt": "1", "edit.txt": "1"})

	writeFile(t, r, "edit.txt", "2")
	writeFile(t, r, "new.txt", "new")
	if err := r.FS.Remove(r.workPath("gone.txt")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := r.Add([]string{"edit.txt", "new.txt", "gone.txt"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	st, err := r.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	want := []string{"modified edit.txt", "removed gone.txt", "added new.txt"}
	if got := changePaths(st.Staged); !reflect.DeepEqual(got, want) {
		t.Fatalf("Staged = %v, want %v", got, want)
	}
	if len(st.Unstaged) != 0 || len(st.Untracked) != 0 {
		t.Fatalf("Unstaged = %v, Untracked = %v; want none", st.Unstaged, st.Untracked)
	}
	if st.Clean() {
		t.Fatal("Clean() = true with staged changes")
	}
}

// Test 3: edits and deletions of tracked files not yet staged.
func TestStatus_Unstaged(t *testing.T) {
	r := newTestRepo(t)
	commitFiles(t, r, "base", map[string]string{"a.txt": "1", "b.txt": "1"})

	writeFile(t, r, "a.txt", "2")
	if err := r.FS.Remove(r.workPath("b.txt")); err != nil {
		t.Fatalf("remove: %v", err)
	}

	st, err := r.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	want := []string{"modified a.txt", "removed b.txt"}
	if got := changePaths(st.Unstaged); !reflect.DeepEqual(got, want) {
		t.Fatalf("Unstaged = %v, want %v", got, want)
	}
	if len(st.Staged) != 0 {
		t.Fatalf("Staged = %v, want none", st.Staged)
	}
}

// Test 4: untracked files are listed sorted; ignored files and the
// repository directory are not.
func TestStatus_UntrackedHonoursIgnoreRules(t *testing.T) {
	r := newTestRepo(t)
	commitFiles(t, r, "base", map[string]string{"a.txt": "a"})

	writeFile(t, r, IgnoreFile, "*.log\nbuild/\n")
	writeFile(t, r, "z.txt", "z")
	writeFile(t, r, "dir/b.txt", "b")
	writeFile(t, r, "debug.log", "noise")
	writeFile(t, r, "build/out.bin", "bin")

	st, err := r.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	want := []string{IgnoreFile, "dir/b.txt", "z.txt"}
	if !reflect.DeepEqual(st.Untracked, want) {
		t.Fatalf("Untracked = %v, want %v", st.Untracked, want)
	}
}

// Test 5: conflicted paths are reported apart from staged changes until
// resolved.
func TestStatus_Conflicted(t *testing.T) {
	r := divergedRepo(t,
		map[string]string{"shared.txt": "ours\n"},
		map[string]string{"shared.txt": "theirs\n"},
	)
	if _, err := r.Merge("feature"); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	st, err := r.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !st.Merging {
		t.Error("Merging = false during a conflicted merge")
	}
	if !reflect.DeepEqual(st.Conflicted, []string{"shared.txt"}) {
		t.Fatalf("Conflicted = %v, want [shared.txt]", st.Conflicted)
	}
	for _, c := range append(st.Staged, st.Unstaged...) {
		if c.Path == "shared.txt" {
			t.Fatalf("conflicted path also reported as %s", c.Type)
		}
	}

	writeFile(t, r, "shared.txt", "resolved\n")
	if _, err := r.Add([]string{"shared.txt"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	st, err = r.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(st.Conflicted) != 0 {
		t.Fatalf("Conflicted after resolve = %v", st.Conflicted)
	}
	if got := changePaths(st.Staged); !reflect.DeepEqual(got, []string{"modified shared.txt"}) {
		t.Fatalf("Staged after resolve = %v", got)
	}
}

// Test 6: a detached HEAD reports no branch.
func TestStatus_DetachedHead(t *testing.T) {
	r := newTestRepo(t)
	h := commitFiles(t, r, "base", map[string]string{"a.txt": "a"})
	if _, err := r.Checkout(string(h)); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	st, err := r.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Branch != "" || st.Head != h {
		t.Fatalf("Branch, Head = %q, %q; want detached at %s", st.Branch, st.Head, h)
	}
	if !st.Clean() {
		t.Fatalf("status not clean: %+v", st)
	}
}
