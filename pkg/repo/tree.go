package repo

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/odvcencio/gitlet/pkg/diff"
	"github.com/odvcencio/gitlet/pkg/object"
)

// treeNode is one directory of the tree being built: files by name and
// subdirectories by name.
type treeNode struct {
	files map[string]object.Hash
	dirs  map[string]*treeNode
}

func newTreeNode() *treeNode {
	return &treeNode{files: map[string]object.Hash{}, dirs: map[string]*treeNode{}}
}

func (n *treeNode) insert(p string, h object.Hash) error {
	cur := n
	parts := strings.Split(p, "/")
	for i, name := range parts {
		if err := object.CheckEntryName(name); err != nil {
			return fmt.Errorf("invalid path %q: %w", p, err)
		}
		if i == len(parts)-1 {
			if _, ok := cur.dirs[name]; ok {
				return fmt.Errorf("path %q is both a file and a directory", p)
			}
			cur.files[name] = h
			return nil
		}
		if _, ok := cur.files[name]; ok {
			return fmt.Errorf("path %q is both a file and a directory", path.Join(parts[:i+1]...))
		}
		next, ok := cur.dirs[name]
		if !ok {
			next = newTreeNode()
			cur.dirs[name] = next
		}
		cur = next
	}
	return nil
}

// BuildTree writes the stage-0 entries of ix as nested tree objects and
// returns the root hash. Subtrees are written before the trees that name
// them. An empty index yields the empty tree. Fails with
// ErrUnresolvedConflicts if any path still has conflict stages.
func (r *Repo) BuildTree(ix *Index) (object.Hash, error) {
	if conflicted := ix.ConflictedPaths(); len(conflicted) > 0 {
		return "", &ConflictsError{Op: "build tree", Paths: conflicted}
	}
	return r.writeSnapshotTree(ix.Snapshot())
}

func (r *Repo) writeSnapshotTree(snap diff.Snapshot) (object.Hash, error) {
	root, err := snapshotTree(snap)
	if err != nil {
		return "", err
	}
	return r.writeTreeNode(root, "")
}

func snapshotTree(snap diff.Snapshot) (*treeNode, error) {
	root := newTreeNode()
	paths := make([]string, 0, len(snap))
	for p := range snap {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		if err := root.insert(p, snap[p]); err != nil {
			return nil, fmt.Errorf("build tree: %w", err)
		}
	}
	return root, nil
}

// checkTreeShape fails if snap could not be written as a tree.
func checkTreeShape(snap diff.Snapshot) error {
	_, err := snapshotTree(snap)
	return err
}

func (r *Repo) writeTreeNode(n *treeNode, prefix string) (object.Hash, error) {
	entries := make([]object.TreeEntry, 0, len(n.files)+len(n.dirs))
	for name, h := range n.files {
		entries = append(entries, object.TreeEntry{Name: name, Type: object.TypeBlob, Hash: h})
	}
	for name, child := range n.dirs {
		sub, err := r.writeTreeNode(child, path.Join(prefix, name))
		if err != nil {
			return "", err
		}
		entries = append(entries, object.TreeEntry{Name: name, Type: object.TypeTree, Hash: sub})
	}

	h, err := r.Store.WriteTree(&object.TreeObj{Entries: entries})
	if err != nil {
		return "", fmt.Errorf("write tree (prefix=%q): %w", prefix, err)
	}
	return h, nil
}

// FlattenTree walks a tree object recursively and returns every file as
// full slash path -> blob hash. The empty hash flattens to nothing.
func (r *Repo) FlattenTree(h object.Hash) (diff.Snapshot, error) {
	snap := make(diff.Snapshot)
	if h == "" {
		return snap, nil
	}
	if err := r.flattenTreeRec(h, "", snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func (r *Repo) flattenTreeRec(h object.Hash, prefix string, out diff.Snapshot) error {
	treeObj, err := r.Store.ReadTree(h)
	if err != nil {
		return fmt.Errorf("flatten tree: read %s: %w", h, err)
	}
	for _, entry := range treeObj.Entries {
		fullPath := path.Join(prefix, entry.Name)
		if entry.IsDir() {
			if err := r.flattenTreeRec(entry.Hash, fullPath, out); err != nil {
				return err
			}
			continue
		}
		out[fullPath] = entry.Hash
	}
	return nil
}

// commitTree returns the tree hash of commit h, or "" for the empty commit
// hash.
func (r *Repo) commitTree(h object.Hash) (object.Hash, error) {
	if h == "" {
		return "", nil
	}
	c, err := r.Store.ReadCommit(h)
	if err != nil {
		return "", err
	}
	return c.TreeHash, nil
}

// commitSnapshot flattens the tree of commit h.
func (r *Repo) commitSnapshot(h object.Hash) (diff.Snapshot, error) {
	tree, err := r.commitTree(h)
	if err != nil {
		return nil, err
	}
	return r.FlattenTree(tree)
}
