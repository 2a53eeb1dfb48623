package gestic

import (
	"encoding/binary"
	"fmt"
	"math"
)

// MessageID is the type tag stored in byte 3 of every message.
type MessageID byte

// From the MGC3X30 message reference, message IDs.
const (
	MsgRequestMessage      MessageID = 0x06
	MsgSystemStatus        MessageID = 0x15
	MsgFwUpdateStart       MessageID = 0x80
	MsgFwUpdateBlock       MessageID = 0x81
	MsgFwUpdateCompleted   MessageID = 0x82
	MsgFwVersionInfo       MessageID = 0x83
	MsgSensorDataOutput    MessageID = 0x91
	MsgSetRuntimeParameter MessageID = 0xA2
)

var messageIDStrings = map[MessageID]string{
	MsgRequestMessage:      "Request_Message",
	MsgSystemStatus:        "System_Status",
	MsgFwUpdateStart:       "Fw_Update_Start",
	MsgFwUpdateBlock:       "Fw_Update_Block",
	MsgFwUpdateCompleted:   "Fw_Update_Completed",
	MsgFwVersionInfo:       "Fw_Version_Info",
	MsgSensorDataOutput:    "Sensor_Data_Output",
	MsgSetRuntimeParameter: "Set_Runtime_Parameter",
}

func (id MessageID) String() string {
	if s, ok := messageIDStrings[id]; ok {
		return s
	}
	return fmt.Sprintf("Message(0x%02X)", byte(id))
}

const headerSize = 4

// Message is a single protocol message without the wire marker.
// Byte 0 holds the total size, byte 3 the MessageID.
type Message []byte

func newMessage(id MessageID, size int) Message {
	m := make(Message, size)
	m[0] = byte(size)
	m[3] = byte(id)
	return m
}

// ID returns the type tag, or 0 for a message shorter than its header.
func (m Message) ID() MessageID {
	if len(m) < headerSize {
		return 0
	}
	return MessageID(m[3])
}

func (m Message) field(off, n int) ([]byte, error) {
	if off < 0 || off+n > len(m) {
		return nil, fmt.Errorf("%w: %d byte field at offset %d exceeds %d byte %s", ErrProtocol, n, off, len(m), m.ID())
	}
	return m[off : off+n], nil
}

func (m Message) U8(off int) (uint8, error) {
	b, err := m.field(off, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (m Message) U16(off int) (uint16, error) {
	b, err := m.field(off, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (m Message) U32(off int) (uint32, error) {
	b, err := m.field(off, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (m Message) F32(off int) (float32, error) {
	v, err := m.U32(off)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// Bytes returns n bytes starting at off.
func (m Message) Bytes(off, n int) ([]byte, error) {
	return m.field(off, n)
}

// builders only write inside the fixed size they allocated.

func (m Message) putU16(off int, v uint16) {
	binary.LittleEndian.PutUint16(m[off:], v)
}

func (m Message) putU32(off int, v uint32) {
	binary.LittleEndian.PutUint32(m[off:], v)
}
