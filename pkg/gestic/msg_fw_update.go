package gestic

import (
	"fmt"

	"github.com/seagrayinc/gestic/pkg/fwimage"
)

// UpdateFunction selects what the loader does with update messages.
type UpdateFunction byte

const (
	UpdateProgramFlash UpdateFunction = 0
	UpdateVerifyOnly   UpdateFunction = 1
	UpdateRestart      UpdateFunction = 3
)

func (f UpdateFunction) String() string {
	switch f {
	case UpdateProgramFlash:
		return "ProgramFlash"
	case UpdateVerifyOnly:
		return "VerifyOnly"
	case UpdateRestart:
		return "Restart"
	}
	return fmt.Sprintf("UpdateFunction(%d)", byte(f))
}

const (
	fwUpdateStartSize     = 28
	fwUpdateBlockSize     = 140
	fwUpdateCompletedSize = 136
)

// FwUpdateStartMessage opens a flash session.
func FwUpdateStartMessage(sessionID uint32, iv [fwimage.IVSize]byte, mode UpdateFunction) Message {
	m := newMessage(MsgFwUpdateStart, fwUpdateStartSize)
	m.putU32(8, sessionID)
	copy(m[12:26], iv[:])
	m[26] = byte(mode)
	m.sealCRC()
	return m
}

// FwUpdateBlockMessage carries one 128 byte record.
func FwUpdateBlockMessage(rec fwimage.Record, mode UpdateFunction) Message {
	m := newMessage(MsgFwUpdateBlock, fwUpdateBlockSize)
	m.putU16(8, rec.Address)
	m[10] = rec.Length
	m[11] = byte(mode)
	copy(m[12:], rec.Data[:])
	m.sealCRC()
	return m
}

// FwUpdateCompletedMessage closes a session and stores the version string.
func FwUpdateCompletedMessage(sessionID uint32, mode UpdateFunction, version [fwimage.VersionSize]byte) Message {
	m := newMessage(MsgFwUpdateCompleted, fwUpdateCompletedSize)
	m.putU32(8, sessionID)
	m[12] = byte(mode)
	copy(m[13:13+fwimage.VersionSize], version[:])
	m.sealCRC()
	return m
}

// VerifyCRC reports whether a Fw_Update message carries a valid checksum.
func VerifyCRC(m Message) bool {
	stored, err := m.U32(crcOffset)
	if err != nil || len(m) < crcStart {
		return false
	}
	return stored == checksum(m[crcStart:])
}
