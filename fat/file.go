package fat

import (
	"fmt"
	"strings"
)

const maxPathDepth = 16

func splitPath(path string) ([]string, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, nil
	}
	parts := strings.Split(trimmed, "/")
	if len(parts) > maxPathDepth {
		return nil, errf(CodePathTooDeep, "resolve", path, nil)
	}
	for _, p := range parts {
		if p == "" || len(p) > 255 {
			return nil, errf(CodeNameTooLong, "resolve", path, nil)
		}
		if p == "." || p == ".." {
			// These APIs address entries by explicit path from the volume
			// root; "." and ".." are real on-disk directory entries but are
			// not a navigable alias any caller here is meant to traverse.
			return nil, errf(CodeInvalidInput, "resolve", path, fmt.Errorf("path component %q not allowed", p))
		}
	}
	return parts, nil
}

// resolveParent walks every path component but the last, returning the
// cluster of the containing directory and the final component's name.
func (v *Volume) resolveParent(path string) (parentCluster uint32, name string, err error) {
	parts, err := splitPath(path)
	if err != nil {
		return 0, "", err
	}
	if len(parts) == 0 {
		return 0, "", errf(CodeInvalidInput, "resolve", path, fmt.Errorf("empty path"))
	}
	cluster := v.rootCluster
	for _, p := range parts[:len(parts)-1] {
		res, err := v.scanDirectory(cluster, p, 0)
		if err != nil {
			return 0, "", err
		}
		if res.found == nil {
			return 0, "", errf(CodeNotFound, "resolve", path, nil)
		}
		if res.found.attr&attrDirectory == 0 {
			return 0, "", errf(CodeInvalidInput, "resolve", path, fmt.Errorf("%q is not a directory", p))
		}
		cluster = res.found.firstCluster
	}
	return cluster, parts[len(parts)-1], nil
}

func (v *Volume) resolveEntry(path string) (*dirEntry, uint32, error) {
	parentCluster, name, err := v.resolveParent(path)
	if err != nil {
		return nil, 0, err
	}
	res, err := v.scanDirectory(parentCluster, name, 0)
	if err != nil {
		return nil, 0, err
	}
	if res.found == nil {
		return nil, parentCluster, errf(CodeNotFound, "resolve", path, nil)
	}
	return res.found, parentCluster, nil
}

// planNewEntryName decides whether name needs an LFN run (and how many
// slots it occupies) and returns the chosen short name plus the packed
// LFN units to write, if any.
func (v *Volume) planNewEntryName(parent uint32, name string) (short [11]byte, lfnUnits [][13]uint16, err error) {
	short, err = v.selectNewEntryName(parent, name)
	if err != nil {
		return short, nil, err
	}
	if needsLFN(name) || shortNameString(short) != strings.ToUpper(name) {
		units := stringToUTF16(name)
		if len(units) == 0 || len(units) > lfnMaxSlots*13 {
			return short, nil, errf(CodeInvalidLongName, "planNewEntryName", name, nil)
		}
		lfnUnits = utf16PadUnits(units)
	}
	return short, lfnUnits, nil
}

func (v *Volume) insertEntry(parent uint32, name string, attr byte, firstCluster, size uint32) error {
	short, lfnUnits, err := v.planNewEntryName(parent, name)
	if err != nil {
		return err
	}
	res, err := v.scanDirectory(parent, "", len(lfnUnits)+1)
	if err != nil {
		return err
	}
	return v.writeNewEntry(res.freeSlots, shortEntry{
		name:         short,
		attr:         attr,
		firstCluster: firstCluster,
		size:         size,
	}, lfnUnits)
}

// Mkdir creates an empty directory at path, seeded with "." and ".."
// entries, per §4.E.
func (v *Volume) Mkdir(path string) error {
	parentCluster, name, err := v.resolveParent(path)
	if err != nil {
		return err
	}
	existing, err := v.scanDirectory(parentCluster, name, 0)
	if err != nil {
		return err
	}
	if existing.found != nil {
		return errf(CodeAlreadyExists, "mkdir", path, nil)
	}

	newCluster, err := v.allocateChain(1)
	if err != nil {
		return err
	}
	if err := v.zeroCluster(newCluster); err != nil {
		return err
	}
	if err := v.writeDotEntries(newCluster, parentCluster); err != nil {
		return err
	}
	if err := v.insertEntry(parentCluster, name, attrDirectory, newCluster, 0); err != nil {
		return err
	}
	return nil
}

func (v *Volume) writeDotEntries(self, parent uint32) error {
	dotSlots := []slotRef{{lba: v.clusterToLBA(self), offset: 0}, {lba: v.clusterToLBA(self), offset: dirEntrySize}}
	var dot [11]byte
	copy(dot[:], ".          ")
	var dotdot [11]byte
	copy(dotdot[:], "..         ")
	// ".." for a directory whose parent is the volume root conventionally
	// stores first_cluster 0, not the root cluster number.
	parentRef := parent
	if parent == v.rootCluster {
		parentRef = 0
	}
	if err := v.writeNewEntry(dotSlots[:1], shortEntry{name: dot, attr: attrDirectory, firstCluster: self}, nil); err != nil {
		return err
	}
	return v.writeNewEntry(dotSlots[1:], shortEntry{name: dotdot, attr: attrDirectory, firstCluster: parentRef}, nil)
}

// directoryIsEmpty reports whether cluster, a directory's first cluster,
// contains nothing beyond "." and "..".
func (v *Volume) directoryIsEmpty(cluster uint32) (bool, error) {
	empty := true
	skip := 0
	_, err := v.walkDirSlots(cluster, func(ref slotRef, raw []byte) (bool, error) {
		if raw[0] == entryFreeMarker {
			return true, nil
		}
		if skip < 2 && raw[11]&attrDirectory != 0 && raw[0] == '.' {
			skip++
			return false, nil
		}
		if isDirEntryFree(raw) || raw[11] == attrLongName {
			return false, nil
		}
		empty = false
		return true, nil
	})
	return empty, err
}

// Remove deletes the file or empty directory at path.
func (v *Volume) Remove(path string) error {
	found, _, err := v.resolveEntry(path)
	if err != nil {
		return err
	}
	if found.attr&attrDirectory != 0 {
		empty, err := v.directoryIsEmpty(found.firstCluster)
		if err != nil {
			return err
		}
		if !empty {
			return errf(CodeNotEmpty, "remove", path, nil)
		}
	}
	if found.firstCluster != 0 {
		if err := v.freeChain(found.firstCluster); err != nil {
			return err
		}
	}
	return v.markFoundDeleted(found)
}

// Rename moves src to dst. Directories can only be renamed within the
// same parent; a crash between the insert and the delete below leaves a
// "ghost" second name, a known, accepted non-atomicity (§4.E).
func (v *Volume) Rename(src, dst string) error {
	srcEntry, srcParent, err := v.resolveEntry(src)
	if err != nil {
		return err
	}
	dstParent, dstName, err := v.resolveParent(dst)
	if err != nil {
		return err
	}
	if srcEntry.attr&attrDirectory != 0 && srcParent != dstParent {
		return errf(CodeCrossDirectoryRenameUnsupported, "rename", dst, nil)
	}
	existing, err := v.scanDirectory(dstParent, dstName, 0)
	if err != nil {
		return err
	}
	if existing.found != nil {
		return errf(CodeAlreadyExists, "rename", dst, nil)
	}
	if err := v.insertEntry(dstParent, dstName, srcEntry.attr, srcEntry.firstCluster, srcEntry.size); err != nil {
		return err
	}
	return v.markFoundDeleted(srcEntry)
}

// ReadFile returns the file's full contents.
func (v *Volume) ReadFile(path string) ([]byte, error) {
	found, _, err := v.resolveEntry(path)
	if err != nil {
		return nil, err
	}
	if found.attr&attrDirectory != 0 {
		return nil, errf(CodeIsDirectory, "read_file", path, nil)
	}
	return v.readClusterData(found.firstCluster, found.size)
}

func (v *Volume) readClusterData(first uint32, size uint32) ([]byte, error) {
	out := make([]byte, 0, size)
	if size == 0 {
		return out, nil
	}
	c := first
	remaining := size
	for remaining > 0 {
		if c < 2 {
			return nil, errf(CodeIoError, "read_file", "", fmt.Errorf("short cluster chain"))
		}
		for s := uint32(0); s < v.sectorsPerCluster && remaining > 0; s++ {
			var sector [SectorSize]byte
			if err := v.readSector(v.clusterToLBA(c)+s, &sector); err != nil {
				return nil, err
			}
			n := uint32(SectorSize)
			if remaining < n {
				n = remaining
			}
			out = append(out, sector[:n]...)
			remaining -= n
		}
		if remaining == 0 {
			break
		}
		next, ok, err := v.nextCluster(c)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errf(CodeIoError, "read_file", "", fmt.Errorf("cluster chain shorter than size"))
		}
		c = next
	}
	return out, nil
}

// WriteFile replaces the file's entire contents, creating it if absent.
func (v *Volume) WriteFile(path string, data []byte) error {
	found, parentCluster, err := v.lookupOrNil(path)
	if err != nil {
		return err
	}
	if found != nil && found.attr&attrDirectory != 0 {
		return errf(CodeIsDirectory, "write_file", path, nil)
	}
	if found != nil && found.firstCluster != 0 {
		if err := v.freeChain(found.firstCluster); err != nil {
			return err
		}
	}
	var firstCluster uint32
	if len(data) > 0 {
		n := clustersForSize(uint32(len(data)), v.bytesPerCluster())
		firstCluster, err = v.allocateChain(n)
		if err != nil {
			return err
		}
		if err := v.writeDataAt(firstCluster, 0, 0, data); err != nil {
			return err
		}
	}
	if found != nil {
		found.firstCluster = firstCluster
		found.size = uint32(len(data))
		return v.rewriteEntry(found)
	}
	_, name, err := v.resolveParent(path)
	if err != nil {
		return err
	}
	return v.insertEntry(parentCluster, name, attrArchive, firstCluster, uint32(len(data)))
}

func (v *Volume) lookupOrNil(path string) (*dirEntry, uint32, error) {
	parentCluster, name, err := v.resolveParent(path)
	if err != nil {
		return nil, 0, err
	}
	res, err := v.scanDirectory(parentCluster, name, 0)
	if err != nil {
		return nil, 0, err
	}
	return res.found, parentCluster, nil
}

// rewriteEntry rewrites only the SFN slot's first-cluster and size fields,
// leaving the name and any LFN run untouched.
func (v *Volume) rewriteEntry(e *dirEntry) error {
	sfnRef := e.slots[len(e.slots)-1]
	var slot [dirEntrySize]byte
	raw, err := v.readSlot(sfnRef)
	if err != nil {
		return err
	}
	slot = raw
	encodeShortEntry(slot[:], shortEntry{name: e.shortName, attr: e.attr, firstCluster: e.firstCluster, size: e.size})
	return v.writeSlot(sfnRef, slot[:])
}

// writeDataAt performs a read-modify-write of data into the file's
// cluster chain starting at byte offset, walking from first's head,
// handling an unaligned head sector and a partial final sector.
func (v *Volume) writeDataAt(first uint32, offset uint32, skipFromFirst uint32, data []byte) error {
	bpc := v.bytesPerCluster()
	clusterIndex := (offset + skipFromFirst) / bpc
	inClusterOffset := (offset + skipFromFirst) % bpc

	c, err := v.clusterAtIndex(first, clusterIndex)
	if err != nil {
		return err
	}

	pos := 0
	for pos < len(data) {
		sectorInCluster := inClusterOffset / SectorSize
		byteInSector := inClusterOffset % SectorSize
		lba := v.clusterToLBA(c) + sectorInCluster

		var sector [SectorSize]byte
		if byteInSector != 0 || len(data)-pos < SectorSize {
			if err := v.readSector(lba, &sector); err != nil {
				return err
			}
		}
		n := SectorSize - int(byteInSector)
		if remaining := len(data) - pos; n > remaining {
			n = remaining
		}
		copy(sector[byteInSector:], data[pos:pos+n])
		if err := v.writeSector(lba, sector[:]); err != nil {
			return err
		}
		pos += n
		inClusterOffset += uint32(n)

		if inClusterOffset >= bpc && pos < len(data) {
			inClusterOffset = 0
			next, ok, err := v.nextCluster(c)
			if err != nil {
				return err
			}
			if !ok {
				return errf(CodeIoError, "writeDataAt", "", fmt.Errorf("cluster chain exhausted mid-write"))
			}
			c = next
		}
	}
	return nil
}

// AppendFile appends data to the end of the file at path, growing its
// cluster chain as needed. For repeated appends, an AppendSession avoids
// rescanning the directory per chunk.
func (v *Volume) AppendFile(path string, data []byte) error {
	sess, err := v.OpenAppendSession(path)
	if err != nil {
		return err
	}
	return sess.Write(data)
}

// AppendSession caches a file's directory location and in-memory record
// across repeated writes, per §3's FatAppendSession.
type AppendSession struct {
	v     *Volume
	entry *dirEntry
}

// OpenAppendSession resolves path once and returns a session whose Write
// method can be called repeatedly without rescanning the directory.
func (v *Volume) OpenAppendSession(path string) (*AppendSession, error) {
	found, _, err := v.resolveEntry(path)
	if err != nil {
		return nil, err
	}
	if found.attr&attrDirectory != 0 {
		return nil, errf(CodeIsDirectory, "append_file", path, nil)
	}
	return &AppendSession{v: v, entry: found}, nil
}

// Write appends data and persists the updated size/first-cluster.
func (s *AppendSession) Write(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	v := s.v
	oldSize := s.entry.size
	newSize := oldSize + uint32(len(data))
	bpc := v.bytesPerCluster()
	oldClusters := clustersForSize(oldSize, bpc)
	newClusters := clustersForSize(newSize, bpc)

	first := s.entry.firstCluster
	if first == 0 {
		var err error
		first, err = v.allocateChain(newClusters)
		if err != nil {
			return err
		}
		s.entry.firstCluster = first
	} else if newClusters > oldClusters {
		tail, err := v.clusterAtIndex(first, oldClusters-1)
		if err != nil {
			return err
		}
		if _, err := v.extendChain(tail, newClusters-oldClusters); err != nil {
			return err
		}
	}

	if err := v.writeDataAt(first, oldSize, 0, data); err != nil {
		return err
	}
	s.entry.size = newSize
	return v.rewriteEntry(s.entry)
}

// TruncateFile resizes the file at path to newSize, per §4.E.
func (v *Volume) TruncateFile(path string, newSize uint32) error {
	found, _, err := v.resolveEntry(path)
	if err != nil {
		return err
	}
	if found.attr&attrDirectory != 0 {
		return errf(CodeIsDirectory, "truncate_file", path, nil)
	}
	bpc := v.bytesPerCluster()
	oldSize := found.size

	switch {
	case newSize == 0:
		if found.firstCluster != 0 {
			if err := v.freeChain(found.firstCluster); err != nil {
				return err
			}
		}
		found.firstCluster = 0

	case newSize > oldSize:
		oldClusters := clustersForSize(oldSize, bpc)
		newClusters := clustersForSize(newSize, bpc)
		if found.firstCluster == 0 {
			first, err := v.allocateChain(newClusters)
			if err != nil {
				return err
			}
			found.firstCluster = first
		} else if newClusters > oldClusters {
			tail, err := v.clusterAtIndex(found.firstCluster, oldClusters-1)
			if err != nil {
				return err
			}
			if _, err := v.extendChain(tail, newClusters-oldClusters); err != nil {
				return err
			}
		}
		if err := v.zeroFillRange(found.firstCluster, oldSize, newSize-oldSize); err != nil {
			return err
		}

	default: // newSize < oldSize, newSize > 0
		targetClusters := clustersForSize(newSize, bpc)
		keepTail, err := v.clusterAtIndex(found.firstCluster, targetClusters-1)
		if err != nil {
			return err
		}
		next, ok, err := v.nextCluster(keepTail)
		if err != nil {
			return err
		}
		if err := v.setFatEntry(keepTail, ClusterEOC); err != nil {
			return err
		}
		if ok {
			if err := v.freeChain(next); err != nil {
				return err
			}
		}
		if err := v.zeroTailOfCluster(keepTail, newSize, bpc); err != nil {
			return err
		}
	}

	found.size = newSize
	return v.rewriteEntry(found)
}

// zeroFillRange writes length zero bytes starting at offset, one sector's
// worth of scratch buffer at a time, so growing a file by a large amount
// never allocates a buffer proportional to the grow size.
func (v *Volume) zeroFillRange(first uint32, offset, length uint32) error {
	var zero [SectorSize]byte
	for length > 0 {
		n := uint32(SectorSize)
		if n > length {
			n = length
		}
		if err := v.writeDataAt(first, offset, 0, zero[:n]); err != nil {
			return err
		}
		offset += n
		length -= n
	}
	return nil
}

func (v *Volume) zeroTailOfCluster(cluster uint32, newSize uint32, bpc uint32) error {
	offsetInCluster := newSize % bpc
	if offsetInCluster == 0 {
		return nil
	}
	tailLen := bpc - offsetInCluster
	var zero [SectorSize]byte
	for tailLen > 0 {
		n := uint32(SectorSize)
		if n > tailLen {
			n = tailLen
		}
		if err := v.writeDataAt(cluster, 0, offsetInCluster, zero[:n]); err != nil {
			return err
		}
		offsetInCluster += n
		tailLen -= n
	}
	return nil
}
