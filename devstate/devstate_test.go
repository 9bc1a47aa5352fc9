package devstate

import "testing"

func TestMarshalRoundTrip(t *testing.T) {
	in := State{
		Flags: Flags{
			BaseMode:      BaseModeMarble,
			UploadEnabled: true,
			DiagKind:      DiagSelfTest,
			DiagTargetMask: DiagSD | DiagTouch,
		},
		WiFi: WiFiCredentials{SSID: "studio", Password: "hunter2"},
	}
	data, err := Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	out, err := Unmarshal(data)
	if err != nil {
		t.Fatal(err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestUnmarshalEmptyIsZeroValue(t *testing.T) {
	s, err := Unmarshal(nil)
	if err != nil {
		t.Fatal(err)
	}
	if s != (State{}) {
		t.Fatalf("expected zero value, got %+v", s)
	}
}

func TestStoreOpenUpdateSave(t *testing.T) {
	backend := &MemBackend{}
	store, err := Open(backend)
	if err != nil {
		t.Fatal(err)
	}
	if store.State().Flags.UploadEnabled {
		t.Fatal("expected default UploadEnabled=false")
	}
	if err := store.Update(func(s *State) {
		s.Flags.UploadEnabled = true
		s.WiFi.SSID = "home"
	}); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(backend)
	if err != nil {
		t.Fatal(err)
	}
	if !reopened.State().Flags.UploadEnabled {
		t.Fatal("expected persisted UploadEnabled=true after reopen")
	}
	if reopened.State().WiFi.SSID != "home" {
		t.Fatalf("SSID = %q, want %q", reopened.State().WiFi.SSID, "home")
	}
}

func TestOpenRecoversFromCorruptSector(t *testing.T) {
	backend := &MemBackend{data: []byte{0xff, 0xff, 0xff}}
	store, err := Open(backend)
	if err != nil {
		t.Fatal(err)
	}
	if store.State() != (State{}) {
		t.Fatalf("expected zero-value recovery, got %+v", store.State())
	}
}
