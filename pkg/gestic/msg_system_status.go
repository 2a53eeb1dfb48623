package gestic

import "fmt"

const systemStatusSize = 16

type SystemStatus struct {
	MessageID MessageID
	ErrorCode SystemErrorCode
}

// SystemStatusMessage builds the acknowledgement a device sends for id.
func SystemStatusMessage(id MessageID, code SystemErrorCode) Message {
	m := newMessage(MsgSystemStatus, systemStatusSize)
	m[4] = byte(id)
	m.putU16(6, uint16(code))
	return m
}

func parseSystemStatus(m Message) (SystemStatus, error) {
	if len(m) != systemStatusSize {
		return SystemStatus{}, fmt.Errorf("%w: System_Status is %d bytes, want %d", ErrProtocol, len(m), systemStatusSize)
	}
	id, _ := m.U8(4)
	code, _ := m.U16(6)
	return SystemStatus{MessageID: MessageID(id), ErrorCode: SystemErrorCode(code)}, nil
}
