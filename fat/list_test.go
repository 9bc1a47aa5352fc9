package fat

import "testing"

func TestListDirReportsChildren(t *testing.T) {
	v := newTestVolume(t, 64)
	if err := v.Mkdir("/notes"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := v.WriteFile("/notes/a.txt", []byte("hello")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := v.Mkdir("/notes/sub"); err != nil {
		t.Fatalf("Mkdir sub: %v", err)
	}

	entries, err := v.ListDir("/notes")
	if err != nil {
		t.Fatalf("ListDir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2: %+v", len(entries), entries)
	}
	var gotFile, gotDir bool
	for _, e := range entries {
		switch e.Name {
		case "a.txt":
			gotFile = true
			if e.IsDir || e.Size != 5 {
				t.Fatalf("a.txt: got %+v", e)
			}
		case "sub":
			gotDir = true
			if !e.IsDir {
				t.Fatalf("sub: expected IsDir, got %+v", e)
			}
		default:
			t.Fatalf("unexpected entry %+v", e)
		}
	}
	if !gotFile || !gotDir {
		t.Fatalf("missing expected entries: gotFile=%v gotDir=%v", gotFile, gotDir)
	}
}

func TestListDirOfRoot(t *testing.T) {
	v := newTestVolume(t, 64)
	if err := v.Mkdir("/top"); err != nil {
		t.Fatal(err)
	}
	entries, err := v.ListDir("/")
	if err != nil {
		t.Fatalf("ListDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "top" {
		t.Fatalf("got %+v", entries)
	}
}

func TestStatReportsSizeAndKind(t *testing.T) {
	v := newTestVolume(t, 64)
	if err := v.WriteFile("/a.bin", []byte("abcdef")); err != nil {
		t.Fatal(err)
	}
	info, err := v.Stat("/a.bin")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.IsDir || info.Size != 6 {
		t.Fatalf("got %+v", info)
	}
}

func TestStatMissingReturnsNotFound(t *testing.T) {
	v := newTestVolume(t, 64)
	if _, err := v.Stat("/missing"); err == nil {
		t.Fatal("expected error")
	} else if fe, ok := err.(*Error); !ok || fe.Code != CodeNotFound {
		t.Fatalf("got %v, want CodeNotFound", err)
	}
}
