package repo

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/odvcencio/gitlet/pkg/object"
)

func setMergeBaseLimitsForTest(t *testing.T, maxSteps, maxDepth int) {
	t.Helper()

	prevSteps := mergeBaseStepsLimit
	prevDepth := mergeBaseDepthLimit
	mergeBaseStepsLimit = maxSteps
	mergeBaseDepthLimit = maxDepth

	t.Cleanup(func() {
		mergeBaseStepsLimit = prevSteps
		mergeBaseDepthLimit = prevDepth
	})
}

func writeGraphCommit(t *testing.T, r *Repo, treeHash object.Hash, parents []object.Hash, message string) object.Hash {
	t.Helper()

	h, err := r.Store.WriteCommit(&object.CommitObj{
		TreeHash:  treeHash,
		Parents:   parents,
		Author:    "test-author",
		Timestamp: 1_700_000_000,
		Message:   message,
	})
	if err != nil {
		t.Fatalf("WriteCommit(%q): %v", message, err)
	}
	return h
}

func writeCorruptCommitAtHash(t *testing.T, r *Repo, h object.Hash, commit *object.CommitObj) {
	t.Helper()

	data := object.MarshalCommit(commit)
	raw := []byte(fmt.Sprintf("%s %d\x00", object.TypeCommit, len(data)))
	raw = append(raw, data...)

	objPath := filepath.Join(r.GitDir, "objects", string(h[:2]), string(h[2:]))
	if err := afero.WriteFile(r.FS, objPath, raw, 0o644); err != nil {
		t.Fatalf("WriteFile(%s): %v", objPath, err)
	}
}

func emptyTree(t *testing.T, r *Repo) object.Hash {
	t.Helper()
	treeHash, err := r.Store.WriteTree(&object.TreeObj{})
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	return treeHash
}

func buildDivergedTips(t *testing.T, r *Repo) (base, leftTip, rightTip object.Hash) {
	t.Helper()
	tree := emptyTree(t, r)

	base = writeGraphCommit(t, r, tree, nil, "base")
	left1 := writeGraphCommit(t, r, tree, []object.Hash{base}, "left-1")
	leftTip = writeGraphCommit(t, r, tree, []object.Hash{left1}, "left-2")

	right1 := writeGraphCommit(t, r, tree, []object.Hash{base}, "right-1")
	rightTip = writeGraphCommit(t, r, tree, []object.Hash{right1}, "right-2")

	return base, leftTip, rightTip
}

func TestFindMergeBase_DivergedBranches(t *testing.T) {
	r := newTestRepo(t)
	base, left, right := buildDivergedTips(t, r)

	got, err := r.FindMergeBase(left, right)
	if err != nil {
		t.Fatalf("FindMergeBase: %v", err)
	}
	if got != base {
		t.Fatalf("FindMergeBase = %s, want %s", got, base)
	}
	if back, _ := r.FindMergeBase(right, left); back != got {
		t.Fatalf("FindMergeBase is not symmetric: %s vs %s", back, got)
	}
}

func TestFindMergeBase_AncestorIsItsOwnBase(t *testing.T) {
	r := newTestRepo(t)
	base, left, _ := buildDivergedTips(t, r)

	got, err := r.FindMergeBase(base, left)
	if err != nil {
		t.Fatalf("FindMergeBase: %v", err)
	}
	if got != base {
		t.Fatalf("FindMergeBase = %s, want %s", got, base)
	}
	ok, err := r.IsAncestor(base, left)
	if err != nil || !ok {
		t.Fatalf("IsAncestor(base, left) = %v, %v", ok, err)
	}
	ok, err = r.IsAncestor(left, base)
	if err != nil || ok {
		t.Fatalf("IsAncestor(left, base) = %v, %v", ok, err)
	}
}

func TestFindMergeBase_UnrelatedHistories(t *testing.T) {
	r := newTestRepo(t)
	tree := emptyTree(t, r)
	a := writeGraphCommit(t, r, tree, nil, "root a")
	b := writeGraphCommit(t, r, tree, nil, "root b")

	got, err := r.FindMergeBase(a, b)
	if err != nil {
		t.Fatalf("FindMergeBase: %v", err)
	}
	if got != "" {
		t.Fatalf("FindMergeBase = %s, want none", got)
	}
}

// Criss-cross: both tips merge the same two commits, which tie on
// generation and distance; the lower hash wins.
func TestFindMergeBase_CrissCrossTieBreak(t *testing.T) {
	r := newTestRepo(t)
	tree := emptyTree(t, r)
	root := writeGraphCommit(t, r, tree, nil, "root")
	a1 := writeGraphCommit(t, r, tree, []object.Hash{root}, "a1")
	b1 := writeGraphCommit(t, r, tree, []object.Hash{root}, "b1")
	a2 := writeGraphCommit(t, r, tree, []object.Hash{a1, b1}, "a2")
	b2 := writeGraphCommit(t, r, tree, []object.Hash{b1, a1}, "b2")

	want := min(a1, b1)
	for i := 0; i < 3; i++ {
		got, err := r.FindMergeBase(a2, b2)
		if err != nil {
			t.Fatalf("FindMergeBase: %v", err)
		}
		if got != want {
			t.Fatalf("FindMergeBase = %s, want %s", got, want)
		}
	}
}

// Equal generations: the candidate closer to both tips wins.
func TestFindMergeBase_PrefersNearerCandidate(t *testing.T) {
	r := newTestRepo(t)
	tree := emptyTree(t, r)
	root := writeGraphCommit(t, r, tree, nil, "root")
	x := writeGraphCommit(t, r, tree, []object.Hash{root}, "x")
	y := writeGraphCommit(t, r, tree, []object.Hash{root}, "y")
	p := writeGraphCommit(t, r, tree, []object.Hash{y}, "p")
	a := writeGraphCommit(t, r, tree, []object.Hash{x, p}, "a")
	b := writeGraphCommit(t, r, tree, []object.Hash{x, y}, "b")

	got, err := r.FindMergeBase(a, b)
	if err != nil {
		t.Fatalf("FindMergeBase: %v", err)
	}
	if got != x {
		t.Fatalf("FindMergeBase = %s, want x %s (y is %s)", got, x, y)
	}
}

func TestFindMergeBase_CorruptCycleGraphReturnsError(t *testing.T) {
	r := newTestRepo(t)
	tree := emptyTree(t, r)

	commitA := writeGraphCommit(t, r, tree, nil, "A")
	commitB := writeGraphCommit(t, r, tree, []object.Hash{commitA}, "B")

	corruptA, err := r.Store.ReadCommit(commitA)
	if err != nil {
		t.Fatalf("ReadCommit(A): %v", err)
	}
	corruptA.Parents = []object.Hash{commitB}
	writeCorruptCommitAtHash(t, r, commitA, corruptA)

	_, err = r.FindMergeBase(commitA, commitB)
	if err == nil {
		t.Fatal("expected cycle error, got nil")
	}
	if !strings.Contains(err.Error(), "cycle detected") {
		t.Fatalf("FindMergeBase cycle error = %q, want to contain %q", err, "cycle detected")
	}
}

func TestFindMergeBase_TraversalDepthLimit(t *testing.T) {
	r := newTestRepo(t)
	_, leftTip, rightTip := buildDivergedTips(t, r)
	setMergeBaseLimitsForTest(t, maxMergeBaseSteps, 1)

	_, err := r.FindMergeBase(leftTip, rightTip)
	if err == nil {
		t.Fatal("expected depth-limit error, got nil")
	}
	if !strings.Contains(err.Error(), "maximum depth") {
		t.Fatalf("FindMergeBase depth-limit error = %q, want to contain %q", err, "maximum depth")
	}
}

func TestFindMergeBase_TraversalStepLimit(t *testing.T) {
	r := newTestRepo(t)
	_, leftTip, rightTip := buildDivergedTips(t, r)
	setMergeBaseLimitsForTest(t, 1, maxMergeBaseDepth)

	_, err := r.FindMergeBase(leftTip, rightTip)
	if err == nil {
		t.Fatal("expected step-limit error, got nil")
	}
	if !strings.Contains(err.Error(), "maximum steps") {
		t.Fatalf("FindMergeBase step-limit error = %q, want to contain %q", err, "maximum steps")
	}
}

func TestMergeBaseLimits_AreBounded(t *testing.T) {
	setMergeBaseLimitsForTest(t, maxMergeBaseSteps+42, maxMergeBaseDepth+42)

	steps, depth := mergeBaseLimits()
	if steps != maxMergeBaseSteps {
		t.Fatalf("steps limit = %d, want hard max %d", steps, maxMergeBaseSteps)
	}
	if depth != maxMergeBaseDepth {
		t.Fatalf("depth limit = %d, want hard max %d", depth, maxMergeBaseDepth)
	}

	setMergeBaseLimitsForTest(t, 0, -1)
	steps, depth = mergeBaseLimits()
	if steps != maxMergeBaseSteps {
		t.Fatalf("non-positive steps limit fallback = %d, want %d", steps, maxMergeBaseSteps)
	}
	if depth != maxMergeBaseDepth {
		t.Fatalf("non-positive depth limit fallback = %d, want %d", depth, maxMergeBaseDepth)
	}
}
