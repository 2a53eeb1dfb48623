package gestic

import (
	"hash/crc32"
	"sync"
)

// The loader checks flash messages with the reflected 0xEDB88320 polynomial
// seeded with 0xFFFFFFFF, which is the IEEE table in hash/crc32.
var crcTable = sync.OnceValue(func() *crc32.Table {
	return crc32.MakeTable(crc32.IEEE)
})

func checksum(b []byte) uint32 {
	return crc32.Checksum(b, crcTable())
}

// crcOffset and crcStart frame the checksum in every Fw_Update message:
// the CRC is stored at byte 4 and covers everything from byte 8 on.
const (
	crcOffset = 4
	crcStart  = 8
)

func (m Message) sealCRC() {
	m.putU32(crcOffset, checksum(m[crcStart:]))
}
