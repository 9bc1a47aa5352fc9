package fat

import (
	"encoding/binary"
	"fmt"
)

const fatEntriesPerSector = SectorSize / 4

func (v *Volume) fatEntrySector(c uint32) (lba uint32, offset int) {
	lba = v.fatStartLBA + c/fatEntriesPerSector
	offset = int(c%fatEntriesPerSector) * 4
	return
}

// getFatEntry reads one FAT32 entry, masking off the reserved high 4 bits.
func (v *Volume) getFatEntry(c uint32) (uint32, error) {
	lba, off := v.fatEntrySector(c)
	var sector [SectorSize]byte
	if err := v.readSector(lba, &sector); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(sector[off:off+4]) & 0x0fffffff, nil
}

// setFatEntry writes one FAT32 entry, preserving the reserved high 4 bits
// of whatever was stored there.
func (v *Volume) setFatEntry(c uint32, val uint32) error {
	lba, off := v.fatEntrySector(c)
	var sector [SectorSize]byte
	if err := v.readSector(lba, &sector); err != nil {
		return err
	}
	old := binary.LittleEndian.Uint32(sector[off : off+4])
	merged := (old & 0xf0000000) | (val & 0x0fffffff)
	binary.LittleEndian.PutUint32(sector[off:off+4], merged)
	return v.writeSector(lba, sector[:])
}

// nextCluster returns the successor cluster, or false if c is the chain's
// end-of-chain marker.
func (v *Volume) nextCluster(c uint32) (uint32, bool, error) {
	entry, err := v.getFatEntry(c)
	if err != nil {
		return 0, false, err
	}
	if entry >= ClusterEOC || entry == ClusterFree || entry == ClusterBad {
		return 0, false, nil
	}
	return entry, true, nil
}

// clusterAtIndex walks i steps forward from first, guarding against FAT
// corruption loops per §4.C.
func (v *Volume) clusterAtIndex(first uint32, i uint32) (uint32, error) {
	c := first
	maxVisits := v.totalClusters + 2
	for step := uint32(0); step < i; step++ {
		if step > maxVisits {
			return 0, errf(CodeClusterChainTooLong, "clusterAtIndex", "", nil)
		}
		next, ok, err := v.nextCluster(c)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, errf(CodeInvalidInput, "clusterAtIndex", "", fmt.Errorf("index %d out of range", i))
		}
		c = next
	}
	return c, nil
}

// chainLength counts the clusters in the chain starting at first.
func (v *Volume) chainLength(first uint32) (uint32, error) {
	if first == 0 {
		return 0, nil
	}
	n := uint32(0)
	c := first
	maxVisits := v.totalClusters + 2
	for {
		n++
		if n > maxVisits {
			return 0, errf(CodeClusterChainTooLong, "chainLength", "", nil)
		}
		next, ok, err := v.nextCluster(c)
		if err != nil {
			return 0, err
		}
		if !ok {
			return n, nil
		}
		c = next
	}
}

// allocateChain allocates n free clusters and links them into a chain,
// writing successor links before the tail's EOC marker (§4.C ordering
// guarantee: a crash mid-allocation leaves either an intact linked prefix
// pointing at still-free clusters, or a fully linked chain).
func (v *Volume) allocateChain(n uint32) (uint32, error) {
	if n == 0 {
		return 0, nil
	}
	found := make([]uint32, 0, n)
	start := v.nextFreeHint
	if start < 2 {
		start = 2
	}
	wrapped := false
	c := start
	for uint32(len(found)) < n {
		entry, err := v.getFatEntry(c)
		if err != nil {
			return 0, err
		}
		if entry == ClusterFree {
			found = append(found, c)
		}
		c++
		if c >= v.totalClusters+2 {
			if wrapped {
				return 0, errf(CodeDirFull, "allocateChain", "", fmt.Errorf("volume full"))
			}
			wrapped = true
			c = 2
		}
		if wrapped && c >= start {
			return 0, errf(CodeDirFull, "allocateChain", "", fmt.Errorf("volume full"))
		}
	}
	for i, cluster := range found {
		if i == len(found)-1 {
			if err := v.setFatEntry(cluster, ClusterEOC); err != nil {
				return 0, err
			}
		} else {
			if err := v.setFatEntry(cluster, found[i+1]); err != nil {
				return 0, err
			}
		}
	}
	v.nextFreeHint = found[len(found)-1] + 1
	return found[0], nil
}

// freeChain walks the chain clearing each entry to FREE and lowers the
// allocation hint to the minimum cluster observed.
func (v *Volume) freeChain(first uint32) error {
	if first == 0 {
		return nil
	}
	c := first
	visited := uint32(0)
	maxVisits := v.totalClusters + 2
	minSeen := first
	for {
		visited++
		if visited > maxVisits {
			return errf(CodeClusterChainTooLong, "freeChain", "", nil)
		}
		if c < minSeen {
			minSeen = c
		}
		next, ok, err := v.nextCluster(c)
		if err != nil {
			return err
		}
		if err := v.setFatEntry(c, ClusterFree); err != nil {
			return err
		}
		if !ok {
			break
		}
		c = next
	}
	if minSeen < v.nextFreeHint {
		v.nextFreeHint = minSeen
	}
	return nil
}

// extendChain appends delta new clusters after the chain's current tail
// and returns the first newly allocated cluster.
func (v *Volume) extendChain(tail uint32, delta uint32) (uint32, error) {
	newFirst, err := v.allocateChain(delta)
	if err != nil {
		return 0, err
	}
	if err := v.setFatEntry(tail, newFirst); err != nil {
		return 0, err
	}
	return newFirst, nil
}

func clustersForSize(size uint32, bytesPerCluster uint32) uint32 {
	if size == 0 {
		return 0
	}
	return (size + bytesPerCluster - 1) / bytesPerCluster
}
