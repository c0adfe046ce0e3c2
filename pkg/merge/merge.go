// Package merge reconciles three snapshots of a tree (base, ours, theirs)
// path by path.
package merge

import (
	"bytes"
	"fmt"
	"path"
	"sort"

	"github.com/odvcencio/gitlet/pkg/diff"
	"github.com/odvcencio/gitlet/pkg/object"
)

// Stage numbers of the index entries derived from a Conflict.
const (
	StageBase   = 1
	StageOurs   = 2
	StageTheirs = 3
)

// Conflict is the single record of an unresolved path. Index stages and
// the marked-up working-copy file are both derived from it. An empty hash
// means the path is absent on that side.
type Conflict struct {
	Path   string
	Base   object.Hash
	Ours   object.Hash
	Theirs object.Hash

	// DirectoryClash is set when the path is a file in the merged result
	// and also a parent directory of another merged path. Such conflicts
	// have no marked-up file; the working copy keeps the ours side.
	DirectoryClash bool
}

// StageEntry is one conflict stage of a path.
type StageEntry struct {
	Stage int
	Hash  object.Hash
}

// Stages returns the stage 1/2/3 entries for the sides present.
func (c Conflict) Stages() []StageEntry {
	var out []StageEntry
	if c.Base != "" {
		out = append(out, StageEntry{Stage: StageBase, Hash: c.Base})
	}
	if c.Ours != "" {
		out = append(out, StageEntry{Stage: StageOurs, Hash: c.Ours})
	}
	if c.Theirs != "" {
		out = append(out, StageEntry{Stage: StageTheirs, Hash: c.Theirs})
	}
	return out
}

// Result is the outcome of a three-way merge. Merged holds every resolved
// path; conflicted paths appear only in Conflicts.
type Result struct {
	Merged    diff.Snapshot
	Conflicts []Conflict
}

// HasConflicts reports whether any path is unresolved.
func (r *Result) HasConflicts() bool { return len(r.Conflicts) > 0 }

// ConflictPaths returns the unresolved paths in order.
func (r *Result) ConflictPaths() []string {
	out := make([]string, len(r.Conflicts))
	for i, c := range r.Conflicts {
		out[i] = c.Path
	}
	return out
}

// ThreeWay merges ours and theirs against their common base:
//
//   - changed on one side only: take that side
//   - changed identically on both: take either
//   - changed differently on both: conflict
//   - unchanged on both: keep base
//
// Deleting a path counts as a change, so modify/delete and add/add with
// different content are conflicts. A file that would also be the parent
// directory of another path conflicts together with every path below it,
// so Merged always describes a valid tree.
func ThreeWay(base, ours, theirs diff.Snapshot) *Result {
	oursChanges := diff.ByPath(diff.Snapshots(base, ours))
	theirsChanges := diff.ByPath(diff.Snapshots(base, theirs))

	res := &Result{Merged: make(diff.Snapshot, len(base))}
	for p, h := range base {
		res.Merged[p] = h
	}

	touched := make(map[string]struct{}, len(oursChanges)+len(theirsChanges))
	for p := range oursChanges {
		touched[p] = struct{}{}
	}
	for p := range theirsChanges {
		touched[p] = struct{}{}
	}

	for p := range touched {
		oc, oursChanged := oursChanges[p]
		tc, theirsChanged := theirsChanges[p]

		switch {
		case oursChanged && !theirsChanged:
			apply(res.Merged, oc)
		case !oursChanged && theirsChanged:
			apply(res.Merged, tc)
		case oc.After == tc.After:
			apply(res.Merged, oc)
		default:
			delete(res.Merged, p)
			res.Conflicts = append(res.Conflicts, Conflict{
				Path:   p,
				Base:   base[p],
				Ours:   ours[p],
				Theirs: theirs[p],
			})
		}
	}
	res.splitDirectoryClashes(base, ours, theirs)

	sort.Slice(res.Conflicts, func(i, j int) bool {
		return res.Conflicts[i].Path < res.Conflicts[j].Path
	})
	return res
}

// splitDirectoryClashes moves every path involved in a file/directory
// clash out of Merged and into Conflicts.
func (r *Result) splitDirectoryClashes(base, ours, theirs diff.Snapshot) {
	paths := make(map[string]bool, len(r.Merged)+len(r.Conflicts))
	for p := range r.Merged {
		paths[p] = true
	}
	for _, c := range r.Conflicts {
		paths[c.Path] = true
	}
	clash := make(map[string]bool)
	for p := range paths {
		for dir := path.Dir(p); dir != "."; dir = path.Dir(dir) {
			if paths[dir] {
				clash[p] = true
				clash[dir] = true
			}
		}
	}
	if len(clash) == 0 {
		return
	}

	for i := range r.Conflicts {
		if clash[r.Conflicts[i].Path] {
			r.Conflicts[i].DirectoryClash = true
			delete(clash, r.Conflicts[i].Path)
		}
	}
	for p := range clash {
		delete(r.Merged, p)
		r.Conflicts = append(r.Conflicts, Conflict{
			Path:           p,
			Base:           base[p],
			Ours:           ours[p],
			Theirs:         theirs[p],
			DirectoryClash: true,
		})
	}
}

func apply(s diff.Snapshot, c diff.Change) {
	if c.Type == diff.Removed {
		delete(s, c.Path)
		return
	}
	s[c.Path] = c.After
}

// BlobReader loads blob content by hash.
type BlobReader func(h object.Hash) ([]byte, error)

// RenderConflict produces the working-copy content of a conflicted path:
// the ours side and the theirs side between conflict markers. A side that
// is absent renders as empty.
func RenderConflict(c Conflict, read BlobReader) ([]byte, error) {
	ours, err := readSide(c.Ours, read)
	if err != nil {
		return nil, fmt.Errorf("render conflict %q: ours: %w", c.Path, err)
	}
	theirs, err := readSide(c.Theirs, read)
	if err != nil {
		return nil, fmt.Errorf("render conflict %q: theirs: %w", c.Path, err)
	}
	return renderFileConflict(ours, theirs), nil
}

func readSide(h object.Hash, read BlobReader) ([]byte, error) {
	if h == "" {
		return nil, nil
	}
	return read(h)
}

func renderFileConflict(ours, theirs []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("<<<<<<< ours\n")
	buf.Write(ours)
	if len(ours) > 0 && ours[len(ours)-1] != '\n' {
		buf.WriteByte('\n')
	}
	buf.WriteString("=======\n")
	buf.Write(theirs)
	if len(theirs) > 0 && theirs[len(theirs)-1] != '\n' {
		buf.WriteByte('\n')
	}
	buf.WriteString(">>>>>>> theirs\n")
	return buf.Bytes()
}
