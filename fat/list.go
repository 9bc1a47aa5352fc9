package fat

import "fmt"

// DirEntryInfo is the client-facing shape of one directory entry, returned
// by ListDir and Stat; console's SDFATLS/SDFATSTAT render it as text.
type DirEntryInfo struct {
	Name  string
	IsDir bool
	Size  uint32
}

// ListDir enumerates path's immediate children in on-disk slot order,
// skipping the "." and ".." self/parent entries.
func (v *Volume) ListDir(path string) ([]DirEntryInfo, error) {
	cluster, err := v.resolveDirCluster(path)
	if err != nil {
		return nil, err
	}
	var out []DirEntryInfo
	var accum lfnAccum
	_, err = v.walkDirSlots(cluster, func(ref slotRef, raw []byte) (bool, error) {
		if isDirEntryFree(raw) {
			accum.reset()
			if isDirEntrySlotEnd(raw) {
				return true, nil
			}
			return false, nil
		}
		if raw[11] == attrLongName {
			accum.feed(ref, decodeLFNSlot(raw))
			return false, nil
		}
		short := decodeShortEntry(raw)
		var displayName string
		if parts, _, ok := accum.complete(shortNameChecksum(short.name)); ok {
			displayName = decodeLFNName(parts)
		} else {
			displayName = shortNameString(short.name)
		}
		accum.reset()
		if short.attr&attrVolumeID != 0 {
			return false, nil
		}
		if displayName == "." || displayName == ".." {
			return false, nil
		}
		out = append(out, DirEntryInfo{
			Name:  displayName,
			IsDir: short.attr&attrDirectory != 0,
			Size:  short.size,
		})
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Stat reports name/size/is-dir for path.
func (v *Volume) Stat(path string) (DirEntryInfo, error) {
	e, _, err := v.resolveEntry(path)
	if err != nil {
		return DirEntryInfo{}, err
	}
	return DirEntryInfo{Name: e.name, IsDir: e.attr&attrDirectory != 0, Size: e.size}, nil
}

// resolveDirCluster resolves path to the cluster of the directory it names,
// treating "/" (and "") as the root directory.
func (v *Volume) resolveDirCluster(path string) (uint32, error) {
	if path == "/" || path == "" {
		return v.rootCluster, nil
	}
	e, _, err := v.resolveEntry(path)
	if err != nil {
		return 0, err
	}
	if e.attr&attrDirectory == 0 {
		return 0, errf(CodeInvalidInput, "list", path, fmt.Errorf("not a directory"))
	}
	return e.firstCluster, nil
}
