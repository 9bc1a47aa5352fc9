package fat

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// memBlockDevice is an in-memory BlockDevice for exercising the volume,
// cluster, directory, and file layers without sdspi.
type memBlockDevice struct {
	sectors map[uint32][]byte
}

func newMemBlockDevice() *memBlockDevice {
	return &memBlockDevice{sectors: make(map[uint32][]byte)}
}

func (m *memBlockDevice) ReadSector(lba uint32, buf *[SectorSize]byte) error {
	if s, ok := m.sectors[lba]; ok {
		copy(buf[:], s)
	} else {
		for i := range buf {
			buf[i] = 0
		}
	}
	return nil
}

func (m *memBlockDevice) WriteSector(lba uint32, data []byte) error {
	buf := make([]byte, SectorSize)
	copy(buf, data)
	m.sectors[lba] = buf
	return nil
}

// formatTestVolume writes a minimal, valid FAT32 BPB directly to sector 0
// of dev and mounts it: one FAT, one sector per cluster, totalClusters
// data clusters starting at cluster 2.
func formatTestVolume(t *testing.T, dev *memBlockDevice, totalClusters uint32) *Volume {
	t.Helper()
	const reservedSectors = 32
	const sectorsPerFAT = 4 // generous for small test volumes
	const sectorsPerCluster = 1
	const numFATs = 1

	clusterHeapOffset := uint32(reservedSectors + numFATs*sectorsPerFAT)
	totalSectors := clusterHeapOffset + totalClusters*sectorsPerCluster

	var sector [SectorSize]byte
	binary.LittleEndian.PutUint16(sector[11:13], SectorSize)
	sector[13] = sectorsPerCluster
	binary.LittleEndian.PutUint16(sector[14:16], reservedSectors)
	sector[16] = numFATs
	binary.LittleEndian.PutUint32(sector[32:36], totalSectors)
	binary.LittleEndian.PutUint32(sector[36:40], sectorsPerFAT)
	binary.LittleEndian.PutUint32(sector[44:48], 2)
	copy(sector[82:90], "FAT32   ")
	sector[510], sector[511] = 0x55, 0xaa
	if err := dev.WriteSector(0, sector[:]); err != nil {
		t.Fatal(err)
	}

	// FAT[0] and FAT[1] are reserved; FAT[2] is the root directory's
	// single-cluster chain, so it must not read as free.
	var fatSector [SectorSize]byte
	binary.LittleEndian.PutUint32(fatSector[0:4], 0x0ffffff8)
	binary.LittleEndian.PutUint32(fatSector[4:8], 0x0fffffff)
	binary.LittleEndian.PutUint32(fatSector[8:12], 0x0fffffff)
	if err := dev.WriteSector(reservedSectors, fatSector[:]); err != nil {
		t.Fatal(err)
	}

	v, err := Mount(dev)
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	return v
}

func newTestVolume(t *testing.T, totalClusters uint32) *Volume {
	t.Helper()
	dev := newMemBlockDevice()
	return formatTestVolume(t, dev, totalClusters)
}

func TestMountParsesBPB(t *testing.T) {
	v := newTestVolume(t, 64)
	if v.rootCluster != 2 {
		t.Fatalf("rootCluster = %d, want 2", v.rootCluster)
	}
	if v.totalClusters != 64 {
		t.Fatalf("totalClusters = %d, want 64", v.totalClusters)
	}
}

func TestMkdirThenRemove(t *testing.T) {
	v := newTestVolume(t, 64)
	if err := v.Mkdir("/notes"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := v.Mkdir("/notes"); err == nil {
		t.Fatal("expected AlreadyExists on second Mkdir")
	} else if fe, ok := err.(*Error); !ok || fe.Code != CodeAlreadyExists {
		t.Fatalf("expected CodeAlreadyExists, got %v", err)
	}
	if err := v.Remove("/notes"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := v.Remove("/notes"); err == nil {
		t.Fatal("expected NotFound on second Remove")
	} else if fe, ok := err.(*Error); !ok || fe.Code != CodeNotFound {
		t.Fatalf("expected CodeNotFound, got %v", err)
	}
}

func TestRemoveNonEmptyDirectoryFails(t *testing.T) {
	v := newTestVolume(t, 64)
	if err := v.Mkdir("/notes"); err != nil {
		t.Fatal(err)
	}
	if err := v.WriteFile("/notes/a.txt", []byte("hi")); err != nil {
		t.Fatal(err)
	}
	if err := v.Remove("/notes"); err == nil {
		t.Fatal("expected NotEmpty")
	} else if fe, ok := err.(*Error); !ok || fe.Code != CodeNotEmpty {
		t.Fatalf("expected CodeNotEmpty, got %v", err)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	v := newTestVolume(t, 64)
	want := bytes.Repeat([]byte("0123456789"), 200) // spans multiple clusters
	if err := v.WriteFile("/data.bin", want); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := v.ReadFile("/data.bin")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d", len(got), len(want))
	}
}

func TestScenarioS5FatRoundTrip(t *testing.T) {
	v := newTestVolume(t, 64)
	if err := v.Mkdir("/notes"); err != nil {
		t.Fatal(err)
	}
	if err := v.WriteFile("/notes/a.txt", []byte("hello")); err != nil {
		t.Fatal(err)
	}
	got, err := v.ReadFile("/notes/a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}

	if err := v.AppendFile("/notes/a.txt", []byte(" world")); err != nil {
		t.Fatal(err)
	}
	got, err = v.ReadFile("/notes/a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello world" {
		t.Fatalf("got %q, want %q", got, "hello world")
	}

	if err := v.TruncateFile("/notes/a.txt", 5); err != nil {
		t.Fatal(err)
	}
	got, err = v.ReadFile("/notes/a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}

	if err := v.Remove("/notes/a.txt"); err != nil {
		t.Fatal(err)
	}
	if err := v.Remove("/notes"); err != nil {
		t.Fatal(err)
	}
}

func TestTruncateGrowZeroFills(t *testing.T) {
	v := newTestVolume(t, 64)
	if err := v.WriteFile("/x.bin", []byte("ab")); err != nil {
		t.Fatal(err)
	}
	if err := v.TruncateFile("/x.bin", 10); err != nil {
		t.Fatal(err)
	}
	got, err := v.ReadFile("/x.bin")
	if err != nil {
		t.Fatal(err)
	}
	want := append([]byte("ab"), make([]byte, 8)...)
	if !bytes.Equal(got, want) {
		t.Fatalf("got %x, want %x", got, want)
	}
}

func TestTruncateToZeroFreesChain(t *testing.T) {
	v := newTestVolume(t, 64)
	if err := v.WriteFile("/x.bin", bytes.Repeat([]byte{1}, 2000)); err != nil {
		t.Fatal(err)
	}
	if err := v.TruncateFile("/x.bin", 0); err != nil {
		t.Fatal(err)
	}
	got, err := v.ReadFile("/x.bin")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty file, got %d bytes", len(got))
	}
}

func TestDotDotPathComponentRejected(t *testing.T) {
	v := newTestVolume(t, 64)
	if err := v.Mkdir("/sub"); err != nil {
		t.Fatal(err)
	}
	if err := v.WriteFile("/secret.bin", []byte("x")); err != nil {
		t.Fatal(err)
	}
	_, err := v.ReadFile("/sub/../secret.bin")
	if err == nil {
		t.Fatal("expected .. path component to be rejected")
	}
	if fe, ok := err.(*Error); !ok || fe.Code != CodeInvalidInput {
		t.Fatalf("expected CodeInvalidInput, got %v", err)
	}
}

func TestRenameInPlace(t *testing.T) {
	v := newTestVolume(t, 64)
	if err := v.WriteFile("/a.txt", []byte("content")); err != nil {
		t.Fatal(err)
	}
	if err := v.Rename("/a.txt", "/b.txt"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if _, _, err := v.resolveEntry("/a.txt"); err == nil {
		t.Fatal("expected src name gone")
	}
	got, err := v.ReadFile("/b.txt")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "content" {
		t.Fatalf("got %q", got)
	}
}

func TestRenameCrossDirectoryRejected(t *testing.T) {
	v := newTestVolume(t, 64)
	if err := v.Mkdir("/sub"); err != nil {
		t.Fatal(err)
	}
	if err := v.Mkdir("/sub/child"); err != nil {
		t.Fatal(err)
	}
	if err := v.Rename("/sub/child", "/child2"); err == nil {
		t.Fatal("expected CrossDirectoryRenameUnsupported")
	} else if fe, ok := err.(*Error); !ok || fe.Code != CodeCrossDirectoryRenameUnsupported {
		t.Fatalf("expected CodeCrossDirectoryRenameUnsupported, got %v", err)
	}
}

func TestLongFileNameRoundTrip(t *testing.T) {
	v := newTestVolume(t, 64)
	name := "a very long lowercase filename.txt"
	if err := v.WriteFile("/"+name, []byte("data")); err != nil {
		t.Fatal(err)
	}
	res, err := v.scanDirectory(v.rootCluster, name, 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.found == nil {
		t.Fatal("expected to find entry by long display name")
	}
	if res.found.name != name {
		t.Fatalf("got display name %q, want %q", res.found.name, name)
	}
}

func TestShortNameChecksumStable(t *testing.T) {
	name := canonicalShortName("HELLO.TXT")
	a := shortNameChecksum(name)
	b := shortNameChecksum(name)
	if a != b {
		t.Fatal("checksum not stable across calls")
	}
}

func TestLFNSlotBoundaryCounts(t *testing.T) {
	for _, n := range []int{1, 13, 14, 20} {
		units := make([]uint16, n)
		for i := range units {
			units[i] = 'a'
		}
		slots := utf16PadUnits(units)
		want := (n + 13) / 13
		if len(slots) != want {
			t.Errorf("n=%d: got %d slots, want %d", n, len(slots), want)
		}
	}
}
