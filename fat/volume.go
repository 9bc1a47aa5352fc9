// Package fat implements the FAT32 volume stack: mounting (B), the cluster
// chain engine (C), the directory engine with 8.3 + long-name entries (D),
// and the file operations built on top of them (E). It is written against
// a single BlockDevice and targets exactly one mounted volume, per the
// firmware's non-goals (no general-purpose multi-volume support).
package fat

import (
	"encoding/binary"
	"fmt"
)

const SectorSize = 512

// BlockDevice is the block driver interface the FAT engine needs: the A
// component (sdspi.Driver satisfies it) or a test fake.
type BlockDevice interface {
	ReadSector(lba uint32, buf *[SectorSize]byte) error
	WriteSector(lba uint32, data []byte) error
}

// Cluster values, per §3.
type Cluster = uint32

const (
	ClusterFree Cluster = 0
	ClusterBad  Cluster = 0x0ffffff7
	ClusterEOC  Cluster = 0x0ffffff8 // >= this is end-of-chain.
)

// Volume is an immutable, mounted FAT32 volume description plus the mutable
// next-free-cluster allocation hint (§3).
type Volume struct {
	dev BlockDevice

	partitionLBA      uint32
	fatStartLBA       uint32
	dataStartLBA      uint32
	sectorsPerCluster uint32
	rootCluster       uint32
	totalClusters     uint32
	numFATs           uint32
	sectorsPerFAT     uint32

	nextFreeHint uint32
}

// Mount reads the boot sector (directly, or via an MBR/GPT partition
// pointer) and parses the BPB, per §4.B. It fails on any inconsistency
// rather than guessing.
func Mount(dev BlockDevice) (*Volume, error) {
	var sector [SectorSize]byte
	if err := dev.ReadSector(0, &sector); err != nil {
		return nil, errf(CodeIoError, "mount", "", err)
	}

	partitionLBA := uint32(0)
	if !looksLikeVBR(sector[:]) {
		lba, err := findPartitionLBA(dev, sector[:])
		if err != nil {
			return nil, err
		}
		partitionLBA = lba
		if err := dev.ReadSector(partitionLBA, &sector); err != nil {
			return nil, errf(CodeIoError, "mount", "", err)
		}
		if !looksLikeVBR(sector[:]) {
			return nil, errf(CodeInvalidInput, "mount", "", fmt.Errorf("no FAT32 VBR at partition start"))
		}
	}

	bps := binary.LittleEndian.Uint16(sector[11:13])
	if bps != SectorSize {
		return nil, errf(CodeInvalidInput, "mount", "", fmt.Errorf("unsupported bytes-per-sector %d", bps))
	}
	sectorsPerCluster := uint32(sector[13])
	if sectorsPerCluster == 0 {
		return nil, errf(CodeInvalidInput, "mount", "", fmt.Errorf("sectors-per-cluster is 0"))
	}
	reservedSectors := uint32(binary.LittleEndian.Uint16(sector[14:16]))
	numFATs := uint32(sector[16])
	if numFATs == 0 {
		return nil, errf(CodeInvalidInput, "mount", "", fmt.Errorf("num-fats is 0"))
	}
	totalSectors16 := uint32(binary.LittleEndian.Uint16(sector[19:21]))
	sectorsPerFAT32 := binary.LittleEndian.Uint32(sector[36:40])
	rootCluster := binary.LittleEndian.Uint32(sector[44:48])
	totalSectors32 := binary.LittleEndian.Uint32(sector[32:36])
	totalSectors := totalSectors32
	if totalSectors == 0 {
		totalSectors = totalSectors16
	}
	if sectorsPerFAT32 == 0 || totalSectors == 0 || rootCluster < 2 {
		return nil, errf(CodeInvalidInput, "mount", "", fmt.Errorf("inconsistent BPB"))
	}

	fatStartLBA := partitionLBA + reservedSectors
	dataStartLBA := fatStartLBA + numFATs*sectorsPerFAT32
	clusterHeapOffset := dataStartLBA - partitionLBA
	if totalSectors < clusterHeapOffset {
		return nil, errf(CodeInvalidInput, "mount", "", fmt.Errorf("inconsistent BPB: negative data area"))
	}
	totalClusters := (totalSectors - clusterHeapOffset) / sectorsPerCluster

	return &Volume{
		dev:               dev,
		partitionLBA:      partitionLBA,
		fatStartLBA:       fatStartLBA,
		dataStartLBA:      dataStartLBA,
		sectorsPerCluster: sectorsPerCluster,
		rootCluster:       rootCluster,
		totalClusters:     totalClusters,
		numFATs:           numFATs,
		sectorsPerFAT:     sectorsPerFAT32,
		nextFreeHint:      2,
	}, nil
}

func looksLikeVBR(sector []byte) bool {
	if len(sector) < 512 {
		return false
	}
	if sector[510] != 0x55 || sector[511] != 0xaa {
		return false
	}
	// Extended BPB FS-type field at offset 82, for FAT32.
	fsType := string(sector[82:90])
	return fsType == "FAT32   "
}

func findPartitionLBA(dev BlockDevice, mbr []byte) (uint32, error) {
	for i := 0; i < 4; i++ {
		entry := mbr[446+i*16 : 446+i*16+16]
		typ := entry[4]
		if typ == 0 {
			continue
		}
		if typ == 0xee {
			return findGPTFirstPartitionLBA(dev)
		}
		lba := binary.LittleEndian.Uint32(entry[8:12])
		return lba, nil
	}
	return 0, errf(CodeInvalidInput, "mount", "", fmt.Errorf("no usable partition entry"))
}

func findGPTFirstPartitionLBA(dev BlockDevice) (uint32, error) {
	var sector [SectorSize]byte
	if err := dev.ReadSector(2, &sector); err != nil {
		return 0, errf(CodeIoError, "mount", "", err)
	}
	lba := binary.LittleEndian.Uint64(sector[32:40])
	return uint32(lba), nil
}

func (v *Volume) readSector(lba uint32, buf *[SectorSize]byte) error {
	if err := v.dev.ReadSector(lba, buf); err != nil {
		return errf(CodeIoError, "io", "", err)
	}
	return nil
}

func (v *Volume) writeSector(lba uint32, data []byte) error {
	if err := v.dev.WriteSector(lba, data); err != nil {
		return errf(CodeIoError, "io", "", err)
	}
	return nil
}

// clusterToLBA returns the first sector LBA of a data cluster.
func (v *Volume) clusterToLBA(c uint32) uint32 {
	return v.dataStartLBA + (c-2)*v.sectorsPerCluster
}

func (v *Volume) bytesPerCluster() uint32 {
	return v.sectorsPerCluster * SectorSize
}
