// Package devstate holds the firmware's persisted state: runtime mode
// flags, an outstanding diagnostics request, and WiFi credentials. It is
// the O component of the firmware: everything here survives a power cycle
// and is the only mutable configuration the rest of the system consults.
//
// State is encoded with github.com/fxamacker/cbor/v2 using a deterministic
// core encoding, so one flash image format serves both compact size and
// stable round-tripping.
package devstate

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// DiagTarget is a bitmask of subsystems a diagnostic run exercises.
type DiagTarget uint8

const (
	DiagSD DiagTarget = 1 << iota
	DiagWiFi
	DiagTouch
)

// DiagKind selects which diagnostic routine STATE DIAG runs.
type DiagKind uint8

const (
	DiagNone DiagKind = iota
	DiagSelfTest
	DiagSensorSweep
)

// BaseMode selects the idle-screen rendering mode.
type BaseMode uint8

const (
	BaseModeClock BaseMode = iota
	BaseModeMarble
	BaseModeShanshui
	BaseModeSumiSun
)

// Flags is the packed set of mode bits persisted to flash.
type Flags struct {
	BaseMode         BaseMode `cbor:"1,keyasint"`
	DayBackground    bool     `cbor:"2,keyasint"`
	OverlayMode      bool     `cbor:"3,keyasint"`
	UploadEnabled    bool     `cbor:"4,keyasint"`
	AssetReadEnabled bool     `cbor:"5,keyasint"`
	DiagKind         DiagKind `cbor:"6,keyasint"`
	DiagTargetMask   DiagTarget `cbor:"7,keyasint"`
}

// WiFiCredentials is the persisted WiFi join configuration.
type WiFiCredentials struct {
	SSID     string `cbor:"1,keyasint"`
	Password string `cbor:"2,keyasint"`
}

// State is the full persisted record.
type State struct {
	Flags Flags           `cbor:"1,keyasint"`
	WiFi  WiFiCredentials `cbor:"2,keyasint"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	encMode = em
	dm, err := cbor.DecOptions{
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic(err)
	}
	decMode = dm
}

// Marshal encodes s into its flash-ready form.
func Marshal(s State) ([]byte, error) {
	b, err := encMode.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("devstate: marshal: %w", err)
	}
	return b, nil
}

// Unmarshal decodes a flash image written by Marshal. An empty or all-zero
// buffer decodes to the zero State, matching a freshly erased flash sector.
func Unmarshal(data []byte) (State, error) {
	var s State
	allZero := true
	for _, b := range data {
		if b != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return s, nil
	}
	if err := decMode.Unmarshal(data, &s); err != nil {
		return State{}, fmt.Errorf("devstate: unmarshal: %w", err)
	}
	return s, nil
}

// Store is a loaded, mutable State backed by a flash-like persistence
// interface. It is the component the rest of the firmware (runtime,
// console) reads and writes; only Update writes through to the Backend.
type Store struct {
	backend Backend
	state   State
}

// Backend abstracts the storage backing a Store. cmd/firmware uses
// FATBackend, which keeps the encoded state in a file on the SD card;
// MemBackend keeps it in an in-memory buffer for tests.
type Backend interface {
	Load() ([]byte, error)
	Save(data []byte) error
}

// Open loads persisted state from backend, falling back to zero-value
// defaults if the stored data is empty or does not decode. An error from
// backend.Load is returned.
func Open(backend Backend) (*Store, error) {
	data, err := backend.Load()
	if err != nil {
		return nil, fmt.Errorf("devstate: open: %w", err)
	}
	s, err := Unmarshal(data)
	if err != nil {
		// A corrupt sector should not brick the device: fall back to
		// defaults rather than failing Open.
		s = State{}
	}
	return &Store{backend: backend, state: s}, nil
}

// State returns the current in-memory state.
func (s *Store) State() State {
	return s.state
}

// Update replaces the in-memory state and persists it.
func (s *Store) Update(fn func(*State)) error {
	next := s.state
	fn(&next)
	data, err := Marshal(next)
	if err != nil {
		return err
	}
	if err := s.backend.Save(data); err != nil {
		return fmt.Errorf("devstate: save: %w", err)
	}
	s.state = next
	return nil
}

// MemBackend is an in-memory Backend, used by the host build and by tests.
type MemBackend struct {
	data []byte
}

func (m *MemBackend) Load() ([]byte, error) {
	return append([]byte(nil), m.data...), nil
}

func (m *MemBackend) Save(data []byte) error {
	m.data = append([]byte(nil), data...)
	return nil
}
