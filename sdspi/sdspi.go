// Package sdspi implements the SD-card block driver (component A): the SPI
// command protocol used to initialize a card and perform single-sector
// reads and writes, plus a one-sector cache. It is the lowest layer of the
// FAT stack; every error from it is fatal for the current operation and
// propagates unchanged to the caller (see fat and upload), and the cache is
// cleared on any I/O error so a caller that reinitializes starts clean.
package sdspi

import (
	"errors"
	"fmt"

	"github.com/inkframe/firmware/hal"
)

const (
	SectorSize = 512

	cmd0  = 0
	cmd8  = 8
	cmd9  = 9
	cmd16 = 16
	cmd17 = 17
	cmd24 = 24
	cmd55 = 55
	cmd58 = 58
	acmd41 = 41

	cmd0CRC = 0x95
	cmd8CRC = 0x87

	dataToken     = 0xfe
	dataAccepted  = 0x05
	dataCRCError  = 0x0b
	dataWriteErr  = 0x0d

	cmd0Retries      = 16
	acmd41Polls      = 200
	dataTokenPolls   = 50_000
	writeBusyPolls   = 200_000
)

// Errors, per the firmware's error taxonomy (§7): bubbled unchanged, never
// retried silently by a higher layer.
var (
	ErrNotReady          = errors.New("sdspi: not ready")
	ErrTimeout           = errors.New("sdspi: timeout")
	ErrNoResponse        = errors.New("sdspi: card did not respond")
	ErrVoltageMismatch   = errors.New("sdspi: unsupported voltage range")
	ErrBusyTimeout       = errors.New("sdspi: write busy timeout")
)

// DataRejectedError reports the SD data-response token returned for a
// rejected write (§7 DataRejected).
type DataRejectedError struct {
	Code byte
}

func (e *DataRejectedError) Error() string {
	return fmt.Sprintf("sdspi: write data rejected: code=%#02x", e.Code)
}

// Driver is the block driver. It owns the SPI bus, the card's chip-select
// line, and a single-sector cache keyed by LBA.
type Driver struct {
	bus hal.SPIBus
	cs  hal.OutPin

	v2  bool // CMD8 accepted: SDHC/SDXC-capable card.
	hcs bool // Card uses block (not byte) addressing.

	cacheLBA   uint32
	cacheValid bool
	cache      [SectorSize]byte
}

// New constructs a driver over the given SPI bus and chip-select pin. The
// bus must already be configured to the card's safe init-time clock rate;
// Init assumes it can be used at speed after CMD9/CMD58, per the on-wire
// description in §4.A ("raise SPI clock to data rate").
func New(bus hal.SPIBus, cs hal.OutPin) *Driver {
	return &Driver{bus: bus, cs: cs}
}

func (d *Driver) chipSelect(sel bool) {
	if sel {
		d.cs.Set(hal.Low)
	} else {
		d.cs.Set(hal.High)
	}
}

// txByte clocks a single byte and returns what the card shifted back.
func (d *Driver) txByte(out byte) (byte, error) {
	tx := [1]byte{out}
	var rx [1]byte
	if err := d.bus.Tx(tx[:], rx[:]); err != nil {
		return 0, err
	}
	return rx[0], nil
}

func (d *Driver) txIdle(n int) error {
	tx := make([]byte, n)
	for i := range tx {
		tx[i] = 0xff
	}
	return d.bus.Tx(tx, make([]byte, n))
}

// sendCmd writes a 6-byte SD command frame and polls for R1, per §4.A's
// "CMD0 with CRC 0x95 retried..." description: the frame is sent once, and
// the R1 byte is read by clocking 0xFF until a byte with the top bit clear
// arrives (or the poll budget is exhausted).
func (d *Driver) sendCmd(idx byte, arg uint32, crc byte, maxPolls int) (r1 byte, err error) {
	frame := [6]byte{
		0x40 | idx,
		byte(arg >> 24), byte(arg >> 16), byte(arg >> 8), byte(arg),
		crc | 0x01,
	}
	if err := d.bus.Tx(frame[:], make([]byte, 6)); err != nil {
		return 0, err
	}
	for i := 0; i < maxPolls; i++ {
		b, err := d.txByte(0xff)
		if err != nil {
			return 0, err
		}
		if b&0x80 == 0 {
			return b, nil
		}
	}
	return 0, ErrNoResponse
}

func (d *Driver) readBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if err := d.bus.Tx(make([]byte, n), buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Init brings up the card following the SD SPI init sequence of §4.A.
func (d *Driver) Init() error {
	d.cacheValid = false
	d.chipSelect(false)
	// >= 74 idle clocks with CS deasserted.
	if err := d.txIdle(10); err != nil {
		return fmt.Errorf("sdspi: init: idle clocks: %w", err)
	}
	d.chipSelect(true)
	defer d.chipSelect(false)

	var r1 byte
	var err error
	for i := 0; i < cmd0Retries; i++ {
		r1, err = d.sendCmd(cmd0, 0, cmd0CRC, 8)
		if err == nil && r1 == 0x01 {
			break
		}
	}
	if r1 != 0x01 {
		d.cacheValid = false
		if err != nil {
			return fmt.Errorf("sdspi: init: CMD0: %w", err)
		}
		return fmt.Errorf("sdspi: init: CMD0: %w", ErrNoResponse)
	}

	r1, err = d.sendCmd(cmd8, 0x000001aa, cmd8CRC, 8)
	if err != nil {
		return fmt.Errorf("sdspi: init: CMD8: %w", err)
	}
	switch {
	case r1 == 0x01:
		echo, err := d.readBytes(4)
		if err != nil {
			return fmt.Errorf("sdspi: init: CMD8 echo: %w", err)
		}
		if echo[2] != 0x01 || echo[3] != 0xaa {
			return fmt.Errorf("sdspi: init: %w", ErrVoltageMismatch)
		}
		d.v2 = true
	case r1&0x04 != 0:
		// Illegal-command bit set: v1 card.
		d.v2 = false
	default:
		return fmt.Errorf("sdspi: init: CMD8: %w", ErrNoResponse)
	}

	hcsArg := uint32(0)
	if d.v2 {
		hcsArg = 1 << 30
	}
	ready := false
	for i := 0; i < acmd41Polls; i++ {
		if _, err := d.sendCmd(cmd55, 0, 0x01, 8); err != nil {
			return fmt.Errorf("sdspi: init: CMD55: %w", err)
		}
		r1, err = d.sendCmd(acmd41, hcsArg, 0x01, 8)
		if err != nil {
			return fmt.Errorf("sdspi: init: ACMD41: %w", err)
		}
		if r1 == 0x00 {
			ready = true
			break
		}
	}
	if !ready {
		return fmt.Errorf("sdspi: init: ACMD41: %w", ErrTimeout)
	}

	r1, err = d.sendCmd(cmd58, 0, 0x01, 8)
	if err != nil {
		return fmt.Errorf("sdspi: init: CMD58: %w", err)
	}
	ocr, err := d.readBytes(4)
	if err != nil {
		return fmt.Errorf("sdspi: init: CMD58 OCR: %w", err)
	}
	d.hcs = d.v2 && ocr[0]&0x40 != 0

	if !d.v2 {
		if _, err := d.sendCmd(cmd16, SectorSize, 0x01, 8); err != nil {
			return fmt.Errorf("sdspi: init: CMD16: %w", err)
		}
	}

	if _, err := d.sendCmd(cmd9, 0, 0x01, 8); err != nil {
		return fmt.Errorf("sdspi: init: CMD9: %w", err)
	}
	// Consume the CSD register (token + 16 bytes + 2 CRC); capacity
	// decoding is not needed by the FAT layer, which derives its own
	// geometry from the BPB.
	if err := d.consumeBlock(16); err != nil {
		return fmt.Errorf("sdspi: init: CSD: %w", err)
	}

	return nil
}

// consumeBlock reads a data-token-framed block of n bytes and discards it
// along with its 2 trailing CRC bytes.
func (d *Driver) consumeBlock(n int) error {
	if err := d.waitDataToken(); err != nil {
		return err
	}
	_, err := d.readBytes(n + 2)
	return err
}

func (d *Driver) waitDataToken() error {
	for i := 0; i < dataTokenPolls; i++ {
		b, err := d.txByte(0xff)
		if err != nil {
			return err
		}
		if b == dataToken {
			return nil
		}
	}
	return ErrTimeout
}

func (d *Driver) addrArg(lba uint32) uint32 {
	if d.hcs {
		return lba
	}
	return lba * SectorSize
}

// ReadSector reads one 512-byte sector, serving it from the one-sector
// cache when the LBA matches.
func (d *Driver) ReadSector(lba uint32, buf *[SectorSize]byte) error {
	if d.cacheValid && d.cacheLBA == lba {
		*buf = d.cache
		return nil
	}
	if err := d.readSectorUncached(lba, buf); err != nil {
		d.cacheValid = false
		return err
	}
	d.cache = *buf
	d.cacheLBA = lba
	d.cacheValid = true
	return nil
}

func (d *Driver) readSectorUncached(lba uint32, buf *[SectorSize]byte) error {
	d.chipSelect(true)
	defer d.chipSelect(false)

	r1, err := d.sendCmd(cmd17, d.addrArg(lba), 0x01, 8)
	if err != nil {
		return fmt.Errorf("sdspi: read %d: %w", lba, err)
	}
	if r1 != 0x00 {
		return fmt.Errorf("sdspi: read %d: card error r1=%#02x", lba, r1)
	}
	if err := d.waitDataToken(); err != nil {
		return fmt.Errorf("sdspi: read %d: data token: %w", lba, err)
	}
	data, err := d.readBytes(SectorSize + 2)
	if err != nil {
		return fmt.Errorf("sdspi: read %d: %w", lba, err)
	}
	copy(buf[:], data[:SectorSize])
	return nil
}

// WriteSector writes one 512-byte sector and, on success, makes it the
// cached sector, so a previously cached different LBA is no longer cached.
func (d *Driver) WriteSector(lba uint32, data []byte) error {
	if len(data) != SectorSize {
		return fmt.Errorf("sdspi: write %d: buffer must be %d bytes", lba, SectorSize)
	}
	if err := d.writeSectorUncached(lba, data); err != nil {
		d.cacheValid = false
		return err
	}
	copy(d.cache[:], data)
	d.cacheLBA = lba
	d.cacheValid = true
	return nil
}

func (d *Driver) writeSectorUncached(lba uint32, data []byte) error {
	d.chipSelect(true)
	defer d.chipSelect(false)

	r1, err := d.sendCmd(cmd24, d.addrArg(lba), 0x01, 8)
	if err != nil {
		return fmt.Errorf("sdspi: write %d: %w", lba, err)
	}
	if r1 != 0x00 {
		return fmt.Errorf("sdspi: write %d: card error r1=%#02x", lba, r1)
	}

	packet := make([]byte, 0, 1+SectorSize+2)
	packet = append(packet, dataToken)
	packet = append(packet, data...)
	packet = append(packet, 0xff, 0xff)
	if err := d.bus.Tx(packet, make([]byte, len(packet))); err != nil {
		return fmt.Errorf("sdspi: write %d: %w", lba, err)
	}

	resp, err := d.txByte(0xff)
	if err != nil {
		return fmt.Errorf("sdspi: write %d: %w", lba, err)
	}
	switch resp & 0x1f {
	case dataAccepted:
	case dataCRCError, dataWriteErr:
		return fmt.Errorf("sdspi: write %d: %w", lba, &DataRejectedError{Code: resp & 0x1f})
	default:
		return fmt.Errorf("sdspi: write %d: unexpected data response %#02x", lba, resp)
	}

	for i := 0; i < writeBusyPolls; i++ {
		b, err := d.txByte(0xff)
		if err != nil {
			return fmt.Errorf("sdspi: write %d: %w", lba, err)
		}
		if b == 0xff {
			return nil
		}
	}
	return fmt.Errorf("sdspi: write %d: %w", lba, ErrBusyTimeout)
}
