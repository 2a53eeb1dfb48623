package gestic

import (
	"bytes"
	"fmt"
)

const (
	fwVersionInfoSize = 132
	versionStringOff  = 12

	// VersionStringSize is the fixed width of a firmware version string.
	VersionStringSize = 120

	// fwValidUnknown never appears in a real Fw_Version_Info message.
	fwValidUnknown = 0xFF
)

type FwVersionInfo struct {
	FwValid byte
	Version string
}

// FwVersionInfoMessage builds the message a device sends after reset or on request.
func FwVersionInfoMessage(fwValid byte, version string) Message {
	m := newMessage(MsgFwVersionInfo, fwVersionInfoSize)
	m[4] = fwValid
	copy(m[versionStringOff:], version)
	return m
}

func parseFwVersionInfo(m Message) (FwVersionInfo, error) {
	if len(m) != fwVersionInfoSize {
		return FwVersionInfo{}, fmt.Errorf("%w: Fw_Version_Info is %d bytes, want %d", ErrProtocol, len(m), fwVersionInfoSize)
	}
	raw, _ := m.Bytes(versionStringOff, VersionStringSize)
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	return FwVersionInfo{FwValid: m[4], Version: string(raw)}, nil
}
