// Package upload implements the single in-flight upload session (§3, §4.F):
// a temp-file write followed by an atomic rename commit, with idempotent
// abort and Busy-on-concurrent-Begin semantics. It sits on top of fat for
// storage and is driven by httpupload at the HTTP boundary.
package upload

import (
	"fmt"

	"github.com/inkframe/firmware/fat"
)

// ErrBusy is returned by Begin when a session is already open.
var ErrBusy = fmt.Errorf("upload: session already open")

// FileSystem is the subset of *fat.Volume the upload session needs.
type FileSystem interface {
	WriteFile(path string, data []byte) error
	AppendFile(path string, data []byte) error
	ReadFile(path string) ([]byte, error)
	Remove(path string) error
	Rename(src, dst string) error
}

// Session is the device-wide upload session (§3's UploadSession). Exactly
// one exists at a time; Manager enforces that.
type Session struct {
	finalPath    string
	tempPath     string
	expectedSize uint32
	bytesWritten uint32
}

// Manager owns at most one open Session and serializes Begin/Chunk/
// Commit/Abort against it.
type Manager struct {
	fs      FileSystem
	session *Session
}

func NewManager(fs FileSystem) *Manager {
	return &Manager{fs: fs}
}

// Active reports whether a session is currently open.
func (m *Manager) Active() bool {
	return m.session != nil
}

// Begin opens a new session at path, truncating any stale temp file left
// over from a prior crashed session.
func (m *Manager) Begin(path string, expectedSize uint32) error {
	if m.session != nil {
		return ErrBusy
	}
	tempPath := path + ".tmp"
	if err := m.fs.Remove(tempPath); err != nil {
		if fe, ok := err.(*fat.Error); !ok || fe.Code != fat.CodeNotFound {
			return err
		}
	}
	if err := m.fs.WriteFile(tempPath, nil); err != nil {
		return err
	}
	m.session = &Session{
		finalPath:    path,
		tempPath:     tempPath,
		expectedSize: expectedSize,
	}
	return nil
}

// Chunk appends data to the open session's temp file.
func (m *Manager) Chunk(data []byte) error {
	s := m.session
	if s == nil {
		return fmt.Errorf("upload: no session open")
	}
	if s.bytesWritten+uint32(len(data)) > s.expectedSize {
		return fmt.Errorf("upload: chunk would exceed expected size %d", s.expectedSize)
	}
	if err := m.fs.AppendFile(s.tempPath, data); err != nil {
		return err
	}
	s.bytesWritten += uint32(len(data))
	return nil
}

// Commit requires the full expected size was written, then renames the
// temp file onto the final path and clears the session.
func (m *Manager) Commit() error {
	s := m.session
	if s == nil {
		return fmt.Errorf("upload: no session open")
	}
	if s.bytesWritten != s.expectedSize {
		return fmt.Errorf("upload: incomplete upload: %d of %d bytes", s.bytesWritten, s.expectedSize)
	}
	if err := m.fs.Remove(s.finalPath); err != nil {
		if fe, ok := err.(*fat.Error); !ok || fe.Code != fat.CodeNotFound {
			return err
		}
	}
	if err := m.fs.Rename(s.tempPath, s.finalPath); err != nil {
		return err
	}
	m.session = nil
	return nil
}

// Abort removes the temp file, ignoring NotFound, and clears the session.
// Safe to call even after a failed Commit.
func (m *Manager) Abort() error {
	s := m.session
	if s == nil {
		return nil
	}
	if err := m.fs.Remove(s.tempPath); err != nil {
		if fe, ok := err.(*fat.Error); !ok || fe.Code != fat.CodeNotFound {
			return err
		}
	}
	m.session = nil
	return nil
}

// BytesWritten reports the open session's progress, or 0 if none is open.
func (m *Manager) BytesWritten() uint32 {
	if m.session == nil {
		return 0
	}
	return m.session.bytesWritten
}
