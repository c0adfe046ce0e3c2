// Package diff computes path-level change sets between tree states.
package diff

import (
	"fmt"
	"path"
	"sort"

	"github.com/odvcencio/gitlet/pkg/object"
)

// ChangeType classifies what happened to a path between two states.
type ChangeType int

const (
	Added    ChangeType = iota // Path exists only in the after state.
	Removed                    // Path exists only in the before state.
	Modified                   // Path exists in both states with different content.
)

// Label returns the single-letter status code of the change.
func (c ChangeType) Label() string {
	switch c {
	case Added:
		return "A"
	case Removed:
		return "D"
	case Modified:
		return "M"
	default:
		return "?"
	}
}

func (c ChangeType) String() string {
	switch c {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Modified:
		return "modified"
	default:
		return fmt.Sprintf("ChangeType(%d)", int(c))
	}
}

// Change records a single path-level change. Before is empty for Added,
// After is empty for Removed.
type Change struct {
	Path   string
	Type   ChangeType
	Before object.Hash
	After  object.Hash
}

// Snapshot is a flat view of a tree state: file path to blob hash.
type Snapshot map[string]object.Hash

// TreeReader reads tree objects. *object.Store satisfies it.
type TreeReader interface {
	ReadTree(h object.Hash) (*object.TreeObj, error)
}

// Snapshots compares two flat snapshots. A path is reported iff it exists
// on only one side or its blob hash differs.
func Snapshots(before, after Snapshot) []Change {
	var changes []Change
	for p, bh := range before {
		ah, ok := after[p]
		switch {
		case !ok:
			changes = append(changes, Change{Path: p, Type: Removed, Before: bh})
		case ah != bh:
			changes = append(changes, Change{Path: p, Type: Modified, Before: bh, After: ah})
		}
	}
	for p, ah := range after {
		if _, ok := before[p]; !ok {
			changes = append(changes, Change{Path: p, Type: Added, After: ah})
		}
	}
	sortChanges(changes)
	return changes
}

// Trees compares two tree objects. An empty hash stands for the empty tree.
// Subtrees with equal hashes are skipped without being read.
func Trees(r TreeReader, before, after object.Hash) ([]Change, error) {
	var changes []Change
	if err := compareTrees(r, before, after, "", &changes); err != nil {
		return nil, err
	}
	sortChanges(changes)
	return changes, nil
}

func compareTrees(r TreeReader, before, after object.Hash, prefix string, out *[]Change) error {
	if before == after {
		return nil
	}
	bt, err := readTree(r, before)
	if err != nil {
		return err
	}
	at, err := readTree(r, after)
	if err != nil {
		return err
	}

	names := make(map[string]struct{}, len(bt.Entries)+len(at.Entries))
	for _, e := range bt.Entries {
		names[e.Name] = struct{}{}
	}
	for _, e := range at.Entries {
		names[e.Name] = struct{}{}
	}

	for name := range names {
		full := join(prefix, name)
		be, inBefore := bt.Entry(name)
		ae, inAfter := at.Entry(name)

		switch {
		case inBefore && inAfter && be.Type == ae.Type:
			if be.Hash == ae.Hash {
				continue
			}
			if be.IsDir() {
				if err := compareTrees(r, be.Hash, ae.Hash, full, out); err != nil {
					return err
				}
				continue
			}
			*out = append(*out, Change{Path: full, Type: Modified, Before: be.Hash, After: ae.Hash})

		default:
			// Existence or kind differs: everything under the old entry
			// is removed and everything under the new one is added.
			if inBefore {
				if err := emit(r, be, full, Removed, out); err != nil {
					return err
				}
			}
			if inAfter {
				if err := emit(r, ae, full, Added, out); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func emit(r TreeReader, e object.TreeEntry, full string, typ ChangeType, out *[]Change) error {
	if !e.IsDir() {
		c := Change{Path: full, Type: typ}
		if typ == Removed {
			c.Before = e.Hash
		} else {
			c.After = e.Hash
		}
		*out = append(*out, c)
		return nil
	}
	if typ == Removed {
		return compareTrees(r, e.Hash, "", full, out)
	}
	return compareTrees(r, "", e.Hash, full, out)
}

func readTree(r TreeReader, h object.Hash) (*object.TreeObj, error) {
	if h == "" {
		return &object.TreeObj{}, nil
	}
	t, err := r.ReadTree(h)
	if err != nil {
		return nil, fmt.Errorf("diff: read tree %s: %w", h, err)
	}
	return t, nil
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

func sortChanges(changes []Change) {
	sort.Slice(changes, func(i, j int) bool {
		if changes[i].Path != changes[j].Path {
			return changes[i].Path < changes[j].Path
		}
		return changes[i].Type < changes[j].Type
	})
}

// Paths returns the paths touched by changes, in order.
func Paths(changes []Change) []string {
	out := make([]string, len(changes))
	for i, c := range changes {
		out[i] = c.Path
	}
	return out
}

// ByPath indexes changes by path.
func ByPath(changes []Change) map[string]Change {
	m := make(map[string]Change, len(changes))
	for _, c := range changes {
		m[c.Path] = c
	}
	return m
}
