package object

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

var (
	// ErrObjectNotFound is returned when a hash names no stored object.
	ErrObjectNotFound = errors.New("object not found")

	// ErrTypeMismatch is returned when an object is read as the wrong kind.
	ErrTypeMismatch = errors.New("object type mismatch")

	// ErrAmbiguousPrefix is returned when an abbreviated hash matches
	// more than one object.
	ErrAmbiguousPrefix = errors.New("ambiguous object prefix")
)

// MinPrefixLen is the shortest abbreviated hash Expand accepts.
const MinPrefixLen = 4

// Store is a content-addressed object store with a 2-character fan-out
// directory layout: objects/ab/cdef0123...
type Store struct {
	fs       afero.Fs
	root     string
	format   Format
	compress bool
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithFormat selects the digest used to name objects.
func WithFormat(f Format) StoreOption {
	return func(s *Store) { s.format = f }
}

// WithCompression toggles zstd encoding of newly written objects. Reads
// accept both encodings regardless.
func WithCompression(on bool) StoreOption {
	return func(s *Store) { s.compress = on }
}

// NewStore creates a Store rooted at the given directory on fsys. The
// objects/ subdirectory is created lazily on first write.
func NewStore(fsys afero.Fs, root string, opts ...StoreOption) *Store {
	s := &Store{fs: fsys, root: root, format: FormatSHA256, compress: true}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Format returns the digest format of the store.
func (s *Store) Format() Format { return s.format }

// HashOf returns the hash data would be stored under, without writing it.
func (s *Store) HashOf(objType ObjectType, data []byte) Hash {
	return s.format.Sum(objType, data)
}

// objectPath returns the filesystem path for a given hash.
func (s *Store) objectPath(h Hash) string {
	return filepath.Join(s.root, "objects", string(h[:2]), string(h[2:]))
}

// Has reports whether the store contains an object with the given hash.
func (s *Store) Has(h Hash) bool {
	if !ValidHash(string(h)) {
		return false
	}
	_, err := s.fs.Stat(s.objectPath(h))
	return err == nil
}

// Write stores an object and returns its content hash. The on-disk format
// is "type len\0content", zstd-compressed unless compression is off.
// Writes are atomic and durable: data is written to a temp file, synced,
// and then renamed into place.
func (s *Store) Write(objType ObjectType, data []byte) (Hash, error) {
	h := s.format.Sum(objType, data)

	// Fast path: already exists.
	if s.Has(h) {
		return h, nil
	}

	raw := append(envelopeHeader(objType, len(data)), data...)
	if s.compress {
		enc, err := compressZstd(raw)
		if err != nil {
			return "", fmt.Errorf("object write compress: %w", err)
		}
		raw = enc
	}

	dir := filepath.Join(s.root, "objects", string(h[:2]))
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("object write mkdir: %w", err)
	}

	// Atomic write via temp + rename.
	tmp, err := afero.TempFile(s.fs, dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("object write tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return "", fmt.Errorf("object write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return "", fmt.Errorf("object write sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return "", fmt.Errorf("object write close: %w", err)
	}

	dest := s.objectPath(h)
	if err := s.fs.Rename(tmpName, dest); err != nil {
		s.fs.Remove(tmpName)
		return "", fmt.Errorf("object write rename: %w", err)
	}

	return h, nil
}

// Read retrieves an object by hash, returning its type and raw content.
func (s *Store) Read(h Hash) (ObjectType, []byte, error) {
	if !ValidHash(string(h)) {
		return 0, nil, fmt.Errorf("object read %q: %w", h, ErrObjectNotFound)
	}
	raw, err := afero.ReadFile(s.fs, s.objectPath(h))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil, fmt.Errorf("object read %s: %w", h, ErrObjectNotFound)
		}
		return 0, nil, fmt.Errorf("object read %s: %w", h, err)
	}
	if isZstdEncoded(raw) {
		raw, err = decompressZstd(raw)
		if err != nil {
			return 0, nil, fmt.Errorf("object read %s: decompress: %w", h, err)
		}
	}

	// Parse envelope: "type len\0content"
	nulIdx := bytes.IndexByte(raw, 0)
	if nulIdx < 0 {
		return 0, nil, fmt.Errorf("object read %s: invalid format (no NUL)", h)
	}
	header := string(raw[:nulIdx])
	content := raw[nulIdx+1:]

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return 0, nil, fmt.Errorf("object read %s: invalid header %q", h, header)
	}
	objType, err := ParseObjectType(parts[0])
	if err != nil {
		return 0, nil, fmt.Errorf("object read %s: %w", h, err)
	}
	length, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, nil, fmt.Errorf("object read %s: invalid length %q: %w", h, parts[1], err)
	}
	if len(content) != length {
		return 0, nil, fmt.Errorf("object read %s: length mismatch (header=%d, actual=%d)", h, length, len(content))
	}

	return objType, content, nil
}

// Kind returns the type of the object named by h.
func (s *Store) Kind(h Hash) (ObjectType, error) {
	objType, _, err := s.Read(h)
	if err != nil {
		return 0, err
	}
	return objType, nil
}

// Expand resolves an abbreviated hex prefix to the full hash of the one
// stored object it names.
func (s *Store) Expand(prefix string) (Hash, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if len(prefix) < MinPrefixLen || len(prefix) > 64 || !isHex(prefix) {
		return "", fmt.Errorf("expand %q: %w", prefix, ErrObjectNotFound)
	}
	if len(prefix) == 64 {
		if s.Has(Hash(prefix)) {
			return Hash(prefix), nil
		}
		return "", fmt.Errorf("expand %q: %w", prefix, ErrObjectNotFound)
	}

	dir := filepath.Join(s.root, "objects", prefix[:2])
	infos, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("expand %q: %w", prefix, ErrObjectNotFound)
		}
		return "", fmt.Errorf("expand %q: %w", prefix, err)
	}

	var matches []Hash
	for _, info := range infos {
		name := info.Name()
		if info.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if strings.HasPrefix(name, prefix[2:]) {
			matches = append(matches, Hash(prefix[:2]+name))
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("expand %q: %w", prefix, ErrObjectNotFound)
	case 1:
		return matches[0], nil
	default:
		sort.Slice(matches, func(i, j int) bool { return matches[i] < matches[j] })
		return "", fmt.Errorf("expand %q: %w (%d candidates)", prefix, ErrAmbiguousPrefix, len(matches))
	}
}

// ---------------------------------------------------------------------------
// Typed convenience methods
// ---------------------------------------------------------------------------

func (s *Store) readTyped(h Hash, want ObjectType) ([]byte, error) {
	objType, data, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	if objType != want {
		return nil, fmt.Errorf("object %s: %w: got %s, want %s", h, ErrTypeMismatch, objType, want)
	}
	return data, nil
}

// WriteBlob serializes and stores a Blob.
func (s *Store) WriteBlob(b *Blob) (Hash, error) {
	return s.Write(TypeBlob, MarshalBlob(b))
}

// ReadBlob reads and deserializes a Blob.
func (s *Store) ReadBlob(h Hash) (*Blob, error) {
	data, err := s.readTyped(h, TypeBlob)
	if err != nil {
		return nil, err
	}
	return UnmarshalBlob(data)
}

// WriteTree serializes and stores a TreeObj. Every entry must already be
// in the store so a tree never references a missing child.
func (s *Store) WriteTree(tr *TreeObj) (Hash, error) {
	for _, e := range tr.Entries {
		if err := CheckEntryName(e.Name); err != nil {
			return "", fmt.Errorf("write tree: %w", err)
		}
		if !s.Has(e.Hash) {
			return "", fmt.Errorf("write tree: entry %q: %s: %w", e.Name, e.Hash, ErrObjectNotFound)
		}
	}
	return s.Write(TypeTree, MarshalTree(tr))
}

// ReadTree reads and deserializes a TreeObj.
func (s *Store) ReadTree(h Hash) (*TreeObj, error) {
	data, err := s.readTyped(h, TypeTree)
	if err != nil {
		return nil, err
	}
	return UnmarshalTree(data)
}

// WriteCommit serializes and stores a CommitObj. The tree and parents must
// already be in the store.
func (s *Store) WriteCommit(c *CommitObj) (Hash, error) {
	if strings.Contains(c.Author, "\n") {
		return "", fmt.Errorf("write commit: author %q contains a newline", c.Author)
	}
	if !s.Has(c.TreeHash) {
		return "", fmt.Errorf("write commit: tree %s: %w", c.TreeHash, ErrObjectNotFound)
	}
	for _, p := range c.Parents {
		if !s.Has(p) {
			return "", fmt.Errorf("write commit: parent %s: %w", p, ErrObjectNotFound)
		}
	}
	return s.Write(TypeCommit, MarshalCommit(c))
}

// ReadCommit reads and deserializes a CommitObj.
func (s *Store) ReadCommit(h Hash) (*CommitObj, error) {
	data, err := s.readTyped(h, TypeCommit)
	if err != nil {
		return nil, err
	}
	return UnmarshalCommit(data)
}
