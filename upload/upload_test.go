package upload

import (
	"bytes"
	"testing"

	"github.com/inkframe/firmware/fat"
)

// fakeFS is a minimal in-memory stand-in for *fat.Volume, enough to drive
// Manager's Begin/Chunk/Commit/Abort contract in isolation.
type fakeFS struct {
	files map[string][]byte
}

func newFakeFS() *fakeFS {
	return &fakeFS{files: make(map[string][]byte)}
}

func (f *fakeFS) WriteFile(path string, data []byte) error {
	cp := append([]byte(nil), data...)
	f.files[path] = cp
	return nil
}

func (f *fakeFS) AppendFile(path string, data []byte) error {
	f.files[path] = append(f.files[path], data...)
	return nil
}

func (f *fakeFS) ReadFile(path string) ([]byte, error) {
	data, ok := f.files[path]
	if !ok {
		return nil, &fat.Error{Code: fat.CodeNotFound, Op: "read_file", Path: path}
	}
	return data, nil
}

func (f *fakeFS) Remove(path string) error {
	if _, ok := f.files[path]; !ok {
		return &fat.Error{Code: fat.CodeNotFound, Op: "remove", Path: path}
	}
	delete(f.files, path)
	return nil
}

func (f *fakeFS) Rename(src, dst string) error {
	data, ok := f.files[src]
	if !ok {
		return &fat.Error{Code: fat.CodeNotFound, Op: "rename", Path: src}
	}
	f.files[dst] = data
	delete(f.files, src)
	return nil
}

func TestBeginChunkCommitRoundTrip(t *testing.T) {
	fs := newFakeFS()
	m := NewManager(fs)
	if err := m.Begin("/assets/pic.bin", 6); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := m.Chunk([]byte("hel")); err != nil {
		t.Fatal(err)
	}
	if err := m.Chunk([]byte("lo!")); err != nil {
		t.Fatal(err)
	}
	if err := m.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	got, err := fs.ReadFile("/assets/pic.bin")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte("hello!")) {
		t.Fatalf("got %q", got)
	}
	if _, err := fs.ReadFile("/assets/pic.bin.tmp"); err == nil {
		t.Fatal("expected temp file removed after commit")
	}
}

func TestBeginWhileOpenIsBusy(t *testing.T) {
	m := NewManager(newFakeFS())
	if err := m.Begin("/a", 1); err != nil {
		t.Fatal(err)
	}
	if err := m.Begin("/b", 1); err != ErrBusy {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
}

func TestChunkExceedingExpectedSizeRejected(t *testing.T) {
	m := NewManager(newFakeFS())
	if err := m.Begin("/a", 2); err != nil {
		t.Fatal(err)
	}
	if err := m.Chunk([]byte("abc")); err == nil {
		t.Fatal("expected rejection of oversized chunk")
	}
}

func TestCommitBeforeExpectedSizeReached(t *testing.T) {
	m := NewManager(newFakeFS())
	if err := m.Begin("/a", 5); err != nil {
		t.Fatal(err)
	}
	if err := m.Chunk([]byte("ab")); err != nil {
		t.Fatal(err)
	}
	if err := m.Commit(); err == nil {
		t.Fatal("expected Commit to fail before expected size reached")
	}
}

func TestAbortIsIdempotent(t *testing.T) {
	m := NewManager(newFakeFS())
	if err := m.Begin("/a", 3); err != nil {
		t.Fatal(err)
	}
	if err := m.Abort(); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if err := m.Abort(); err != nil {
		t.Fatalf("second Abort should be a no-op, got %v", err)
	}
	if m.Active() {
		t.Fatal("expected no session active after abort")
	}
}

func TestBeginRemovesStaleTempFile(t *testing.T) {
	fs := newFakeFS()
	fs.files["/a.tmp"] = []byte("stale")
	m := NewManager(fs)
	if err := m.Begin("/a", 2); err != nil {
		t.Fatal(err)
	}
	if err := m.Chunk([]byte("hi")); err != nil {
		t.Fatal(err)
	}
	if err := m.Commit(); err != nil {
		t.Fatal(err)
	}
	got, _ := fs.ReadFile("/a")
	if string(got) != "hi" {
		t.Fatalf("expected stale temp contents discarded, got %q", got)
	}
}
