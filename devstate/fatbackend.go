package devstate

import "github.com/inkframe/firmware/fat"

// FileSystem is the subset of *fat.Volume a FATBackend persists through.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
}

// FATBackend persists devstate to a fixed file on the mounted FAT volume,
// so the device needs no separate flash/NVS API: the same SD card that
// backs everything else in §4.B-E also backs the one state record the
// rest of the firmware consults across a power cycle.
type FATBackend struct {
	FS   FileSystem
	Path string
}

// NewFATBackend returns a Backend storing its record at path (e.g.
// "/system/state.cbor") on fs.
func NewFATBackend(fs FileSystem, path string) *FATBackend {
	return &FATBackend{FS: fs, Path: path}
}

// Load reads the persisted record, returning an empty (not an error)
// result when the file does not exist yet, matching a freshly formatted
// card.
func (b *FATBackend) Load() ([]byte, error) {
	data, err := b.FS.ReadFile(b.Path)
	if err != nil {
		if fe, ok := err.(*fat.Error); ok && fe.Code == fat.CodeNotFound {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

func (b *FATBackend) Save(data []byte) error {
	return b.FS.WriteFile(b.Path, data)
}
