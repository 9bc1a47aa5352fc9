package fat

import "encoding/binary"

// Raw 32-byte directory slot layout (§4.D, §9).
const dirEntrySize = 32

const (
	attrReadOnly = 0x01
	attrHidden   = 0x02
	attrSystem   = 0x04
	attrVolumeID = 0x08
	attrDirectory = 0x10
	attrArchive  = 0x20
	attrLongName = 0x0f // read-only | hidden | system | volume-id, all set

	entryFreeMarker    = 0x00
	entryDeletedMarker = 0xe5

	lfnLastFlag = 0x40
	lfnSeqMask  = 0x1f
	lfnMaxSlots = 20 // 20 * 13 = 260 UTF-16 units, comfortably above any real name
)

// lfnCodeUnitOffsets lists the 13 byte offsets (as 2-byte little-endian
// UTF-16 code units) within an LFN slot, in the three disjoint ranges
// [1,11) [14,26) [28,32).
var lfnCodeUnitOffsets = [13]int{1, 3, 5, 7, 9, 14, 16, 18, 20, 22, 24, 28, 30}

// shortEntry is the decoded form of an 8.3 directory slot.
type shortEntry struct {
	name         [11]byte
	attr         byte
	firstCluster uint32
	size         uint32
}

func decodeShortEntry(slot []byte) shortEntry {
	var e shortEntry
	copy(e.name[:], slot[0:11])
	e.attr = slot[11]
	hi := uint32(binary.LittleEndian.Uint16(slot[20:22]))
	lo := uint32(binary.LittleEndian.Uint16(slot[26:28]))
	e.firstCluster = hi<<16 | lo
	e.size = binary.LittleEndian.Uint32(slot[28:32])
	return e
}

func encodeShortEntry(slot []byte, e shortEntry) {
	copy(slot[0:11], e.name[:])
	slot[11] = e.attr
	slot[12] = 0
	binary.LittleEndian.PutUint16(slot[20:22], uint16(e.firstCluster>>16))
	binary.LittleEndian.PutUint16(slot[26:28], uint16(e.firstCluster))
	binary.LittleEndian.PutUint32(slot[28:32], e.size)
}

// shortNameChecksum is the standard FAT LFN checksum over the 11-byte
// short name, invariant under the exact byte sequence (§8.5).
func shortNameChecksum(name [11]byte) byte {
	var sum byte
	for _, b := range name {
		sum = (sum>>1 | sum<<7) + b
	}
	return sum
}

// lfnSlot holds one decoded long-name directory slot.
type lfnSlot struct {
	order    byte
	checksum byte
	units    [13]uint16
}

func decodeLFNSlot(slot []byte) lfnSlot {
	var l lfnSlot
	l.order = slot[0]
	l.checksum = slot[13]
	for i, off := range lfnCodeUnitOffsets {
		l.units[i] = binary.LittleEndian.Uint16(slot[off : off+2])
	}
	return l
}

func encodeLFNSlot(slot []byte, order byte, checksum byte, units [13]uint16) {
	slot[0] = order
	slot[11] = attrLongName
	slot[12] = 0
	slot[13] = checksum
	binary.LittleEndian.PutUint16(slot[26:28], 0)
	for i, off := range lfnCodeUnitOffsets {
		binary.LittleEndian.PutUint16(slot[off:off+2], units[i])
	}
}

// utf16PadUnits packs a UTF-16 name into len/13+1 slots of 13 units each
// (so there is always room for the terminator), terminating with 0x0000
// and padding the remainder with 0xFFFF, per the standard LFN convention.
func utf16PadUnits(name []uint16) [][13]uint16 {
	n := len(name)
	slots := (n + 13) / 13
	if slots == 0 {
		slots = 1
	}
	out := make([][13]uint16, slots)
	pos := 0
	for s := 0; s < slots; s++ {
		for i := 0; i < 13; i++ {
			switch {
			case pos < n:
				out[s][i] = name[pos]
			case pos == n:
				out[s][i] = 0x0000
			default:
				out[s][i] = 0xffff
			}
			pos++
		}
	}
	return out
}

// decodeLFNName reconstructs UTF-8 text from accumulated LFN parts,
// stopping at the first terminator or padding code unit.
func decodeLFNName(parts [][13]uint16) string {
	units := make([]uint16, 0, len(parts)*13)
loop:
	for _, p := range parts {
		for _, u := range p {
			if u == 0x0000 || u == 0xffff {
				break loop
			}
			units = append(units, u)
		}
	}
	return utf16ToString(units)
}
