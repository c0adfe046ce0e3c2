package object

import (
	"fmt"
	"strings"
)

// Hash is a 64-character hex-encoded digest.
type Hash string

// Short returns the first 8 characters of h, for display.
func (h Hash) Short() string {
	if len(h) > 8 {
		return string(h[:8])
	}
	return string(h)
}

// ObjectType identifies the kind of object stored.
type ObjectType uint8

const (
	TypeBlob ObjectType = iota + 1
	TypeTree
	TypeCommit
)

// String returns the envelope name of the type.
func (t ObjectType) String() string {
	switch t {
	case TypeBlob:
		return "blob"
	case TypeTree:
		return "tree"
	case TypeCommit:
		return "commit"
	default:
		return fmt.Sprintf("ObjectType(%d)", uint8(t))
	}
}

// ParseObjectType maps an envelope name back to its ObjectType.
func ParseObjectType(s string) (ObjectType, error) {
	switch s {
	case "blob":
		return TypeBlob, nil
	case "tree":
		return TypeTree, nil
	case "commit":
		return TypeCommit, nil
	default:
		return 0, fmt.Errorf("unknown object type %q", s)
	}
}

// Blob holds raw file data.
type Blob struct {
	Data []byte
}

// TreeEntry is one entry in a tree object. Hash names a blob when Type is
// TypeBlob and a subtree when Type is TypeTree.
type TreeEntry struct {
	Name string
	Type ObjectType
	Hash Hash
}

// CheckEntryName reports whether name can be recorded as a tree entry.
// Tree and commit encodings are line based, so names may not contain
// newlines; they are single path segments, so they may not contain '/'.
func CheckEntryName(name string) error {
	switch {
	case name == "" || name == "." || name == "..":
		return fmt.Errorf("invalid entry name %q", name)
	case strings.ContainsAny(name, "/\n"):
		return fmt.Errorf("invalid entry name %q: contains '/' or a newline", name)
	}
	return nil
}

// IsDir reports whether the entry points at a subtree.
func (e TreeEntry) IsDir() bool { return e.Type == TypeTree }

// TreeObj holds a sorted list of tree entries.
type TreeObj struct {
	Entries []TreeEntry // sorted by Name
}

// Entry returns the entry called name.
func (t *TreeObj) Entry(name string) (TreeEntry, bool) {
	for _, e := range t.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return TreeEntry{}, false
}

// CommitObj represents a commit pointing to a tree with metadata.
type CommitObj struct {
	TreeHash  Hash
	Parents   []Hash
	Author    string
	Timestamp int64
	Message   string
}
