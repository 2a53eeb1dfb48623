package fwimage

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// Constants for the packed image container.
const (
	// Magic identifies an image container.
	Magic = "GFWI"

	// IVSize is the length of the encryption initialization vector.
	IVSize = 14

	// VersionSize is the width of the embedded firmware version string.
	VersionSize = 120

	// RecordDataSize is the payload of one flash block.
	RecordDataSize = 128

	// recordSize is address(2) + length(1) + data.
	recordSize = 3 + RecordDataSize

	headerSize = len(Magic) + 4 + IVSize + VersionSize
)

var (
	ErrBadMagic      = errors.New("fwimage: not an image container")
	ErrInvalidRecord = errors.New("fwimage: invalid record")
)

// Record is one 128 byte flash block.
type Record struct {
	Address uint16
	Length  uint8
	Data    [RecordDataSize]byte
}

// Image is a loader or library image ready to be flashed.
type Image struct {
	IV      [IVSize]byte
	Version [VersionSize]byte
	Records []Record
}

// VersionString returns the version up to its first NUL.
func (img *Image) VersionString() string {
	v := img.Version[:]
	if i := bytes.IndexByte(v, 0); i >= 0 {
		v = v[:i]
	}
	return string(v)
}

// SetVersion stores v, truncated to VersionSize.
func (img *Image) SetVersion(v string) {
	img.Version = [VersionSize]byte{}
	copy(img.Version[:], v)
}

// Validate checks every record's alignment and length.
func (img *Image) Validate() error {
	for i, r := range img.Records {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return nil
}

// Validate checks that the block is aligned and fits in one record.
func (r Record) Validate() error {
	if r.Address%RecordDataSize != 0 {
		return fmt.Errorf("%w: address 0x%04X is not %d byte aligned", ErrInvalidRecord, r.Address, RecordDataSize)
	}
	if r.Length > RecordDataSize {
		return fmt.Errorf("%w: length %d exceeds %d", ErrInvalidRecord, r.Length, RecordDataSize)
	}
	return nil
}

// Size returns the number of payload bytes across all records.
func (img *Image) Size() int {
	var n int
	for _, r := range img.Records {
		n += int(r.Length)
	}
	return n
}

// Split cuts a flat binary into aligned records starting at base.
// base must be 128 byte aligned; the last record is zero padded.
func Split(base uint16, data []byte) ([]Record, error) {
	if base%RecordDataSize != 0 {
		return nil, fmt.Errorf("%w: base 0x%04X is not %d byte aligned", ErrInvalidRecord, base, RecordDataSize)
	}
	if int(base)+len(data) > 0x10000 {
		return nil, fmt.Errorf("%w: %d bytes at 0x%04X overflow the address space", ErrInvalidRecord, len(data), base)
	}

	records := make([]Record, 0, (len(data)+RecordDataSize-1)/RecordDataSize)
	for off := 0; off < len(data); off += RecordDataSize {
		end := min(off+RecordDataSize, len(data))
		r := Record{
			Address: base + uint16(off),
			Length:  uint8(end - off),
		}
		copy(r.Data[:], data[off:end])
		records = append(records, r)
	}
	return records, nil
}

// Parse reads an image container from the given file path.
//
// Example:
//
//	img, err := fwimage.Parse("library.gfw")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(img.VersionString())
func Parse(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ParseReader(f)
}

// ParseReader reads an image container from any io.Reader.
func ParseReader(r io.Reader) (*Image, error) {
	br := bufio.NewReader(r)

	header := make([]byte, headerSize)
	if _, err := io.ReadFull(br, header); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if string(header[:len(Magic)]) != Magic {
		return nil, ErrBadMagic
	}

	img := &Image{}
	off := len(Magic)
	count := binary.LittleEndian.Uint32(header[off:])
	off += 4
	copy(img.IV[:], header[off:off+IVSize])
	off += IVSize
	copy(img.Version[:], header[off:off+VersionSize])

	img.Records = make([]Record, 0, min(int(count), 512))
	buf := make([]byte, recordSize)
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, fmt.Errorf("failed to read record %d of %d: %w", i, count, err)
		}
		rec := Record{
			Address: binary.LittleEndian.Uint16(buf[0:2]),
			Length:  buf[2],
		}
		copy(rec.Data[:], buf[3:])
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		img.Records = append(img.Records, rec)
	}

	return img, nil
}

// WriteTo encodes the image container.
func (img *Image) WriteTo(w io.Writer) (int64, error) {
	buf := make([]byte, 0, headerSize+len(img.Records)*recordSize)
	buf = append(buf, Magic...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(img.Records)))
	buf = append(buf, img.IV[:]...)
	buf = append(buf, img.Version[:]...)
	for _, r := range img.Records {
		buf = binary.LittleEndian.AppendUint16(buf, r.Address)
		buf = append(buf, r.Length)
		buf = append(buf, r.Data[:]...)
	}

	n, err := w.Write(buf)
	return int64(n), err
}
