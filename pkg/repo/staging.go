package repo

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/afero"

	"github.com/odvcencio/gitlet/pkg/diff"
	"github.com/odvcencio/gitlet/pkg/merge"
	"github.com/odvcencio/gitlet/pkg/object"
)

// IndexEntry records the staged state of a single path. Stage 0 is a
// normal entry; stages 1, 2 and 3 hold the base, ours and theirs sides of
// an unresolved conflict.
type IndexEntry struct {
	Path  string      `json:"path"`
	Stage int         `json:"stage"`
	Hash  object.Hash `json:"hash"`
}

type indexKey struct {
	path  string
	stage int
}

// Index is the staging area: the snapshot the next commit will record.
type Index struct {
	entries map[indexKey]object.Hash
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{entries: make(map[indexKey]object.Hash)}
}

// indexFromSnapshot builds an index holding snap at stage 0.
func indexFromSnapshot(snap diff.Snapshot) *Index {
	ix := NewIndex()
	for p, h := range snap {
		ix.entries[indexKey{p, 0}] = h
	}
	return ix
}

// Entries returns every entry sorted by path, then stage.
func (ix *Index) Entries() []IndexEntry {
	out := make([]IndexEntry, 0, len(ix.entries))
	for k, h := range ix.entries {
		out = append(out, IndexEntry{Path: k.path, Stage: k.stage, Hash: h})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Stage < out[j].Stage
	})
	return out
}

// Len returns the number of entries across all stages.
func (ix *Index) Len() int { return len(ix.entries) }

// Entry returns the hash staged for path at stage.
func (ix *Index) Entry(path string, stage int) (object.Hash, bool) {
	h, ok := ix.entries[indexKey{path, stage}]
	return h, ok
}

// Has reports whether path has an entry at any stage.
func (ix *Index) Has(path string) bool {
	for stage := 0; stage <= merge.StageTheirs; stage++ {
		if _, ok := ix.entries[indexKey{path, stage}]; ok {
			return true
		}
	}
	return false
}

// Paths returns every indexed path once, sorted.
func (ix *Index) Paths() []string {
	seen := make(map[string]bool, len(ix.entries))
	var out []string
	for k := range ix.entries {
		if !seen[k.path] {
			seen[k.path] = true
			out = append(out, k.path)
		}
	}
	sort.Strings(out)
	return out
}

// Stage records blob h for path at stage 0. Any conflict stages for the
// path are dropped, which marks it resolved.
func (ix *Index) Stage(path string, h object.Hash) {
	ix.Unstage(path)
	ix.entries[indexKey{path, 0}] = h
}

// Unstage removes every entry for path. It reports whether any existed.
func (ix *Index) Unstage(path string) bool {
	removed := false
	for stage := 0; stage <= merge.StageTheirs; stage++ {
		k := indexKey{path, stage}
		if _, ok := ix.entries[k]; ok {
			delete(ix.entries, k)
			removed = true
		}
	}
	return removed
}

// SetConflict replaces the entries for c.Path with its conflict stages.
func (ix *Index) SetConflict(c merge.Conflict) {
	ix.Unstage(c.Path)
	for _, s := range c.Stages() {
		ix.entries[indexKey{c.Path, s.Stage}] = s.Hash
	}
}

// ConflictedPaths returns the sorted paths that have stage 1-3 entries.
func (ix *Index) ConflictedPaths() []string {
	seen := make(map[string]bool)
	var out []string
	for k := range ix.entries {
		if k.stage > 0 && !seen[k.path] {
			seen[k.path] = true
			out = append(out, k.path)
		}
	}
	sort.Strings(out)
	return out
}

// Snapshot returns the stage-0 entries as path -> blob hash.
func (ix *Index) Snapshot() diff.Snapshot {
	snap := make(diff.Snapshot)
	for k, h := range ix.entries {
		if k.stage == 0 {
			snap[k.path] = h
		}
	}
	return snap
}

func (ix *Index) MarshalJSON() ([]byte, error) {
	return json.Marshal(ix.Entries())
}

func (ix *Index) UnmarshalJSON(data []byte) error {
	var list []IndexEntry
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	ix.entries = make(map[indexKey]object.Hash, len(list))
	for _, e := range list {
		if e.Path == "" || e.Stage < 0 || e.Stage > merge.StageTheirs {
			return fmt.Errorf("invalid index entry %q stage %d", e.Path, e.Stage)
		}
		ix.entries[indexKey{e.Path, e.Stage}] = e.Hash
	}
	return nil
}

// indexPath returns the filesystem path to the staging index file.
func (r *Repo) indexPath() string {
	return r.gitPath("index")
}

// ReadIndex loads the index. If the file does not exist, an empty index is
// returned (no error).
func (r *Repo) ReadIndex() (*Index, error) {
	data, err := afero.ReadFile(r.FS, r.indexPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewIndex(), nil
		}
		return nil, fmt.Errorf("read index: %w", err)
	}

	ix := NewIndex()
	if err := json.Unmarshal(data, ix); err != nil {
		return nil, fmt.Errorf("read index: unmarshal: %w", err)
	}
	return ix, nil
}

// WriteIndex atomically writes the index.
func (r *Repo) WriteIndex(ix *Index) error {
	data, err := json.MarshalIndent(ix.Entries(), "", "  ")
	if err != nil {
		return fmt.Errorf("write index: marshal: %w", err)
	}
	if err := writeFileAtomic(r.FS, r.indexPath(), data); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}
