package devstate

import (
	"testing"

	"github.com/inkframe/firmware/fat"
)

type memFS struct {
	files map[string][]byte
}

func (m *memFS) ReadFile(path string) ([]byte, error) {
	data, ok := m.files[path]
	if !ok {
		return nil, &fat.Error{Code: fat.CodeNotFound, Op: "read_file", Path: path}
	}
	return data, nil
}

func (m *memFS) WriteFile(path string, data []byte) error {
	m.files[path] = append([]byte(nil), data...)
	return nil
}

func TestFATBackendLoadMissingReturnsEmpty(t *testing.T) {
	b := NewFATBackend(&memFS{files: map[string][]byte{}}, "/system/state.cbor")
	data, err := b.Load()
	if err != nil || data != nil {
		t.Fatalf("got data=%v err=%v", data, err)
	}
}

func TestFATBackendRoundTripsThroughStore(t *testing.T) {
	fs := &memFS{files: map[string][]byte{}}
	b := NewFATBackend(fs, "/system/state.cbor")
	store, err := Open(b)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Update(func(s *State) { s.Flags.BaseMode = BaseModeMarble }); err != nil {
		t.Fatalf("Update: %v", err)
	}

	reopened, err := Open(b)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.State().Flags.BaseMode != BaseModeMarble {
		t.Fatalf("got %+v", reopened.State().Flags)
	}
}
