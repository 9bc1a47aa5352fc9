package fat

import (
	"fmt"
	"strings"
)

// slotRef addresses one physical 32-byte directory slot by sector LBA and
// byte offset within that sector.
type slotRef struct {
	lba    uint32
	offset int
}

// dirEntry is a decoded directory entry: the display name (LFN-reconstructed
// or falling back to the short name), plus enough to locate and rewrite its
// physical slots.
type dirEntry struct {
	name         string
	shortName    [11]byte
	attr         byte
	firstCluster uint32
	size         uint32
	slots        []slotRef
}

func isDirEntryFree(raw []byte) bool {
	return raw[0] == entryFreeMarker || raw[0] == entryDeletedMarker
}

// isDirEntrySlotEnd reports whether raw is the 0x00 marker that terminates
// the directory's slot sequence: nothing beyond it has ever been written,
// so a walk must stop here rather than read past it into stale content.
// 0xE5 marks a single deleted slot only; more entries may still follow it.
func isDirEntrySlotEnd(raw []byte) bool {
	return raw[0] == entryFreeMarker
}

// walkDirSlots visits every 32-byte slot of the directory's cluster chain
// in order, calling fn with a copy of the slot bytes. fn's stop return
// ends the walk early.
func (v *Volume) walkDirSlots(first uint32, fn func(ref slotRef, raw []byte) (stop bool, err error)) (tail uint32, err error) {
	if first == 0 {
		// A ".." entry whose parent is the volume root stores firstCluster
		// 0 by convention (no real cluster is ever numbered below 2).
		first = v.rootCluster
	}
	c := first
	visited := uint32(0)
	maxVisits := v.totalClusters + 2
	slotsPerSector := SectorSize / dirEntrySize
	for {
		visited++
		if visited > maxVisits {
			return 0, errf(CodeClusterChainTooLong, "walkDirSlots", "", nil)
		}
		for s := uint32(0); s < v.sectorsPerCluster; s++ {
			lba := v.clusterToLBA(c) + s
			var sector [SectorSize]byte
			if err := v.readSector(lba, &sector); err != nil {
				return 0, err
			}
			for i := 0; i < slotsPerSector; i++ {
				off := i * dirEntrySize
				raw := sector[off : off+dirEntrySize]
				stop, err := fn(slotRef{lba: lba, offset: off}, raw)
				if err != nil {
					return 0, err
				}
				if stop {
					return c, nil
				}
			}
		}
		next, ok, err := v.nextCluster(c)
		if err != nil {
			return 0, err
		}
		if !ok {
			return c, nil
		}
		c = next
	}
}

func (v *Volume) readSlot(ref slotRef) ([dirEntrySize]byte, error) {
	var sector [SectorSize]byte
	if err := v.readSector(ref.lba, &sector); err != nil {
		return [dirEntrySize]byte{}, err
	}
	var out [dirEntrySize]byte
	copy(out[:], sector[ref.offset:ref.offset+dirEntrySize])
	return out, nil
}

func (v *Volume) writeSlot(ref slotRef, data []byte) error {
	var sector [SectorSize]byte
	if err := v.readSector(ref.lba, &sector); err != nil {
		return err
	}
	copy(sector[ref.offset:ref.offset+dirEntrySize], data)
	return v.writeSector(ref.lba, sector[:])
}

// lfnAccum tracks the in-progress long-name slot run while scanning.
type lfnAccum struct {
	active        bool
	expectedSlots int
	checksum      byte
	seenMask      uint32
	parts         [lfnMaxSlots][13]uint16
	slots         []slotRef
}

func (a *lfnAccum) reset() {
	a.active = false
	a.expectedSlots = 0
	a.checksum = 0
	a.seenMask = 0
	a.slots = a.slots[:0]
}

func (a *lfnAccum) feed(ref slotRef, l lfnSlot) {
	seq := l.order & lfnSeqMask
	if l.order&lfnLastFlag != 0 {
		a.reset()
		a.active = true
		a.expectedSlots = int(seq)
		a.checksum = l.checksum
		a.slots = append(a.slots, ref)
		if seq >= 1 && int(seq) <= lfnMaxSlots {
			a.parts[seq-1] = l.units
			a.seenMask |= 1 << (seq - 1)
		}
		return
	}
	if !a.active || int(seq) < 1 || int(seq) > a.expectedSlots || l.checksum != a.checksum {
		a.reset()
		return
	}
	a.parts[seq-1] = l.units
	a.seenMask |= 1 << (seq - 1)
	a.slots = append(a.slots, ref)
}

func (a *lfnAccum) complete(shortChecksum byte) ([][13]uint16, []slotRef, bool) {
	if !a.active || a.expectedSlots == 0 {
		return nil, nil, false
	}
	want := uint32(1)<<uint(a.expectedSlots) - 1
	if a.seenMask != want || a.checksum != shortChecksum {
		return nil, nil, false
	}
	parts := make([][13]uint16, a.expectedSlots)
	copy(parts, a.parts[:a.expectedSlots])
	return parts, a.slots, true
}

// scanResult is scanDirectory's full report: the matched entry (if any),
// a free slot run satisfying the request (if any), and the chain's tail
// cluster (always, for growth when the free run comes up short).
type scanResult struct {
	found     *dirEntry
	freeSlots []slotRef
	tail      uint32
}

// scanDirectory performs the single linear pass §4.D and §9 describe:
// it maintains an LFN accumulator alongside a free-run tracker as it walks
// every slot of the directory's cluster chain once.
func (v *Volume) scanDirectory(cluster uint32, needle string, neededFreeSlots int) (*scanResult, error) {
	res := &scanResult{}
	var accum lfnAccum
	var freeRun []slotRef
	needleFold := strings.ToUpper(needle)

	ended := false
	tail, err := v.walkDirSlots(cluster, func(ref slotRef, raw []byte) (bool, error) {
		if ended || isDirEntryFree(raw) {
			freeRun = append(freeRun, ref)
			if res.freeSlots == nil && neededFreeSlots > 0 && len(freeRun) >= neededFreeSlots {
				res.freeSlots = append([]slotRef(nil), freeRun[len(freeRun)-neededFreeSlots:]...)
			}
			accum.reset()
			if ended || isDirEntrySlotEnd(raw) {
				// 0x00 terminates the slot sequence; nothing past it was
				// ever written, so every later slot counts as free without
				// being decoded, and the walk stops once no more free
				// slots are needed.
				ended = true
				return res.freeSlots != nil || neededFreeSlots <= 0, nil
			}
			return false, nil
		}
		freeRun = freeRun[:0]

		if raw[11] == attrLongName {
			accum.feed(ref, decodeLFNSlot(raw))
			return false, nil
		}

		short := decodeShortEntry(raw)
		slots := []slotRef{ref}
		var displayName string
		if parts, lfnSlots, ok := accum.complete(shortNameChecksum(short.name)); ok {
			displayName = decodeLFNName(parts)
			slots = append(append([]slotRef(nil), lfnSlots...), ref)
		} else {
			displayName = shortNameString(short.name)
		}
		accum.reset()

		if short.attr&attrVolumeID != 0 {
			return false, nil
		}

		if res.found == nil && needle != "" {
			if strings.ToUpper(displayName) == needleFold || strings.ToUpper(shortNameString(short.name)) == needleFold {
				res.found = &dirEntry{
					name:         displayName,
					shortName:    short.name,
					attr:         short.attr,
					firstCluster: short.firstCluster,
					size:         short.size,
					slots:        slots,
				}
			}
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	res.tail = tail

	if neededFreeSlots > 0 && res.freeSlots == nil {
		grown, err := v.growDirectory(tail, neededFreeSlots-len(freeRun))
		if err != nil {
			return nil, err
		}
		res.freeSlots = append(append([]slotRef(nil), freeRun...), grown...)
	}
	return res, nil
}

// growDirectory allocates one more zero-initialised cluster onto the
// directory's chain and returns the first neededFreeSlots slots of it,
// per §4.D's note that scanning extends the directory when the existing
// chain is exhausted.
func (v *Volume) growDirectory(tail uint32, neededFreeSlots int) ([]slotRef, error) {
	slotsPerCluster := int(v.sectorsPerCluster) * (SectorSize / dirEntrySize)
	if neededFreeSlots > slotsPerCluster {
		return nil, errf(CodeDirFull, "growDirectory", "", fmt.Errorf("entry too large for one cluster"))
	}
	newCluster, err := v.extendChain(tail, 1)
	if err != nil {
		return nil, err
	}
	if err := v.zeroCluster(newCluster); err != nil {
		return nil, err
	}
	var slots []slotRef
	for s := uint32(0); s < v.sectorsPerCluster; s++ {
		lba := v.clusterToLBA(newCluster) + s
		for i := 0; i < SectorSize/dirEntrySize; i++ {
			slots = append(slots, slotRef{lba: lba, offset: i * dirEntrySize})
			if len(slots) == neededFreeSlots {
				return slots, nil
			}
		}
	}
	return slots, nil
}

func (v *Volume) zeroCluster(c uint32) error {
	var zero [SectorSize]byte
	for s := uint32(0); s < v.sectorsPerCluster; s++ {
		if err := v.writeSector(v.clusterToLBA(c)+s, zero[:]); err != nil {
			return err
		}
	}
	return nil
}

// writeNewEntry writes the LFN slots (in decreasing sequence order,
// first-from-end first) followed by the SFN slot, across the given free
// slots, per §4.D.
func (v *Volume) writeNewEntry(freeSlots []slotRef, short shortEntry, lfnUnits [][13]uint16) error {
	if len(freeSlots) != len(lfnUnits)+1 {
		return errf(CodeInvalidInput, "writeNewEntry", "", fmt.Errorf("slot/lfn count mismatch"))
	}
	checksum := shortNameChecksum(short.name)
	n := len(lfnUnits)
	for i := 0; i < n; i++ {
		seq := n - i
		order := byte(seq)
		if i == 0 {
			order |= lfnLastFlag
		}
		var slot [dirEntrySize]byte
		encodeLFNSlot(slot[:], order, checksum, lfnUnits[seq-1])
		if err := v.writeSlot(freeSlots[i], slot[:]); err != nil {
			return err
		}
	}
	var sfn [dirEntrySize]byte
	encodeShortEntry(sfn[:], short)
	return v.writeSlot(freeSlots[n], sfn[:])
}

// markFoundDeleted writes the deleted marker into every physical slot
// (LFN run plus SFN) a scanDirectory match occupies.
func (v *Volume) markFoundDeleted(found *dirEntry) error {
	for _, ref := range found.slots {
		slot, err := v.readSlot(ref)
		if err != nil {
			return err
		}
		slot[0] = entryDeletedMarker
		if err := v.writeSlot(ref, slot[:]); err != nil {
			return err
		}
	}
	return nil
}

// selectNewEntryName tries the canonical 8.3 encoding of desired first; on
// collision with an existing short name it synthesizes NAME~n aliases,
// n ascending from 1 through 9999.
func (v *Volume) selectNewEntryName(parent uint32, desired string) ([11]byte, error) {
	base, ext := splitBaseExt(desired)
	baseFold := strings.ToUpper(base)
	extFold := strings.ToUpper(ext)
	if len(baseFold) > 8 {
		baseFold = baseFold[:8]
	}

	candidate := canonicalShortName(desired)
	for n := 0; n <= 9999; n++ {
		if n > 0 {
			candidate = numericTailName(baseFold, extFold, n)
		}
		collided, err := v.shortNameCollides(parent, candidate)
		if err != nil {
			return [11]byte{}, err
		}
		if !collided {
			return candidate, nil
		}
	}
	return [11]byte{}, errf(CodeDirFull, "selectNewEntryName", desired, fmt.Errorf("exhausted numeric tail aliases"))
}

func (v *Volume) shortNameCollides(parent uint32, name [11]byte) (bool, error) {
	found := false
	_, err := v.walkDirSlots(parent, func(ref slotRef, raw []byte) (bool, error) {
		if isDirEntrySlotEnd(raw) {
			return true, nil
		}
		if isDirEntryFree(raw) || raw[11] == attrLongName {
			return false, nil
		}
		short := decodeShortEntry(raw)
		if short.name == name {
			found = true
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return false, err
	}
	return found, nil
}
