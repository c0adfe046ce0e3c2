package repo

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"

	"github.com/odvcencio/gitlet/pkg/object"
)

func assertDir(t *testing.T, fsys afero.Fs, path string) {
	t.Helper()
	ok, err := afero.DirExists(fsys, path)
	if err != nil || !ok {
		t.Errorf("expected directory %s (err=%v)", path, err)
	}
}

// Test 1: Init creates the repository layout with an unborn master.
func TestInit_CreatesStructure(t *testing.T) {
	fsys := afero.NewMemMapFs()
	r, err := Init(fsys, testRoot, InitOptions{})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if r.RootDir != testRoot {
		t.Errorf("RootDir = %q, want %q", r.RootDir, testRoot)
	}
	gitDir := filepath.Join(testRoot, GitDirName)
	if r.GitDir != gitDir {
		t.Errorf("GitDir = %q, want %q", r.GitDir, gitDir)
	}
	assertDir(t, fsys, filepath.Join(gitDir, "objects"))
	assertDir(t, fsys, filepath.Join(gitDir, "refs", "heads"))

	head, err := afero.ReadFile(fsys, filepath.Join(gitDir, "HEAD"))
	if err != nil {
		t.Fatalf("read HEAD: %v", err)
	}
	if string(head) != "ref: refs/heads/master\n" {
		t.Errorf("HEAD = %q", head)
	}

	h, err := r.HeadHash()
	if err != nil {
		t.Fatalf("HeadHash: %v", err)
	}
	if h != "" {
		t.Errorf("HeadHash = %q, want unborn", h)
	}
	if _, err := r.Resolve("HEAD"); !errors.Is(err, ErrUnknownRevision) {
		t.Errorf("Resolve(HEAD) on unborn: got %v, want ErrUnknownRevision", err)
	}

	objects, err := afero.ReadDir(fsys, filepath.Join(gitDir, "objects"))
	if err != nil {
		t.Fatalf("ReadDir(objects): %v", err)
	}
	if len(objects) != 0 {
		t.Errorf("objects/ has %d entries, want 0", len(objects))
	}

	ix, err := r.ReadIndex()
	if err != nil {
		t.Fatalf("ReadIndex: %v", err)
	}
	if ix.Len() != 0 {
		t.Errorf("index has %d entries, want 0", ix.Len())
	}

	state, err := r.State()
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if state != StateClean {
		t.Errorf("State = %v, want clean", state)
	}
}

// Test 2: Init on an existing repository fails.
func TestInit_ExistingRepo_Error(t *testing.T) {
	fsys := afero.NewMemMapFs()
	if _, err := Init(fsys, testRoot, InitOptions{}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := Init(fsys, testRoot, InitOptions{}); !errors.Is(err, ErrRepositoryExists) {
		t.Fatalf("second Init: got %v, want ErrRepositoryExists", err)
	}
}

// Test 3: Open finds the repository from a subdirectory.
func TestOpen_FromSubdirectory(t *testing.T) {
	fsys := afero.NewMemMapFs()
	if _, err := Init(fsys, testRoot, InitOptions{}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	sub := filepath.Join(testRoot, "a", "b")
	if err := fsys.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	r, err := Open(fsys, sub)
	if err != nil {
		t.Fatalf("Open(%s): %v", sub, err)
	}
	if r.RootDir != testRoot {
		t.Errorf("RootDir = %q, want %q", r.RootDir, testRoot)
	}
	if r.IsBare() {
		t.Error("IsBare = true, want false")
	}
}

// Test 4: Open outside any repository fails.
func TestOpen_NotARepository(t *testing.T) {
	fsys := afero.NewMemMapFs()
	if err := fsys.MkdirAll("/elsewhere", 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if _, err := Open(fsys, "/elsewhere"); !errors.Is(err, ErrNotARepository) {
		t.Fatalf("Open: got %v, want ErrNotARepository", err)
	}
}

// Test 5: a bare repository keeps its layout at the root and reopens bare.
func TestInit_Bare(t *testing.T) {
	fsys := afero.NewMemMapFs()
	if _, err := Init(fsys, "/srv/repo", InitOptions{Bare: true}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	assertDir(t, fsys, "/srv/repo/objects")
	if ok, _ := afero.DirExists(fsys, "/srv/repo/"+GitDirName); ok {
		t.Errorf("bare repository created %s", GitDirName)
	}

	r, err := Open(fsys, "/srv/repo")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !r.IsBare() || r.GitDir != "/srv/repo" {
		t.Errorf("IsBare = %v, GitDir = %q", r.IsBare(), r.GitDir)
	}
	if _, err := r.State(); err != nil {
		t.Errorf("State on bare: %v", err)
	}
}

// Test 6: the object format chosen at init names every object.
func TestInit_Blake2bFormat(t *testing.T) {
	fsys := afero.NewMemMapFs()
	r, err := Init(fsys, testRoot, InitOptions{ObjectFormat: "blake2b", Compression: "none"})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	h, err := r.Store.WriteBlob(&object.Blob{Data: []byte("hello")})
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	if want := object.FormatBLAKE2b.Sum(object.TypeBlob, []byte("hello")); h != want {
		t.Errorf("hash = %s, want %s", h, want)
	}

	reopened, err := Open(fsys, testRoot)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if reopened.Store.Format() != object.FormatBLAKE2b {
		t.Errorf("Format = %q, want blake2b", reopened.Store.Format())
	}
}

// Test 7: unknown formats are rejected before anything is written.
func TestInit_InvalidOptions(t *testing.T) {
	fsys := afero.NewMemMapFs()
	if _, err := Init(fsys, testRoot, InitOptions{ObjectFormat: "md5"}); err == nil {
		t.Fatal("expected error for unknown object format")
	}
	if _, err := Init(fsys, testRoot, InitOptions{Compression: "lz4"}); err == nil {
		t.Fatal("expected error for unknown compression")
	}
	if ok, _ := afero.Exists(fsys, filepath.Join(testRoot, GitDirName, "HEAD")); ok {
		t.Fatal("HEAD written despite invalid options")
	}
}
