// Package sim is an in-process GestIC device. It answers requests, stores
// runtime parameters, accepts flash sessions and can stream synthetic
// sensor frames, which makes it usable as a transport in tests and demos.
package sim

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/transport/v3/packetio"

	"github.com/seagrayinc/gestic/internal/frame"
)

const (
	msgRequestMessage      = 0x06
	msgSystemStatus        = 0x15
	msgFwUpdateStart       = 0x80
	msgFwUpdateBlock       = 0x81
	msgFwUpdateCompleted   = 0x82
	msgFwVersionInfo       = 0x83
	msgSensorDataOutput    = 0x91
	msgSetRuntimeParameter = 0xA2

	errUnknownCommand     = 0x01
	errInvalidSessionID   = 0x02
	errInvalidCRC         = 0x03
	errInvalidLength      = 0x04
	errInvalidAddress     = 0x05
	errContentMismatch    = 0x08
	errUnknownParameterID = 0x15

	modeProgram = 0
	modeVerify  = 1
	modeRestart = 3

	// FwValidLibrary is reported by a loader that holds a valid library.
	FwValidLibrary = 0xAA

	// FlashSize is the addressable flash of the simulated part.
	FlashSize = 0x8000
)

// DefaultVersion is reported until Version is changed.
const DefaultVersion = "1.3.14;p:HillstarV01;x:Hillstar;DSP:ID9000r3010;i:B;f:22500;nMsg;s:Merlot"

var ErrClosed = errors.New("sim: device closed")

// Device simulates a sensor behind a byte stream transport.
type Device struct {
	mu sync.Mutex

	out       *packetio.Buffer
	leftover  []byte
	scratch   []byte
	extractor frame.Extractor

	// ReadTimeout bounds how long Read waits for device output.
	ReadTimeout time.Duration

	version        string
	fwValid        byte
	restartFwValid byte
	params         map[uint16][2]uint32

	dropAcks        int
	failCodes       []uint16
	suppressReplies bool
	resetErr        error
	resets          int

	session     uint32
	sessionMode byte
	inSession   bool
	flash       []byte
	blocks      int

	streaming   bool
	streamEvery time.Duration
	nextFrame   time.Time
	streamMask  uint16
	frameSeq    uint8

	received [][]byte
	closed   bool
}

// New returns a device with a valid library and the default parameters.
func New() *Device {
	return &Device{
		out:            packetio.NewBuffer(),
		scratch:        make([]byte, 4096),
		ReadTimeout:    time.Millisecond,
		version:        DefaultVersion,
		fwValid:        FwValidLibrary,
		restartFwValid: FwValidLibrary,
		params:         defaultParams(),
		flash:          make([]byte, FlashSize),
	}
}

func defaultParams() map[uint16][2]uint32 {
	return map[uint16][2]uint32{
		0x0080: {0x00, 0x3F},     // dspCalOpMode: auto calibration on
		0x0082: {5, 0x01234},     // transFreqSelect: all five
		0x0085: {0x7F, 0x7F},     // dspGestureMask
		0x0090: {0x20, 0x20},     // dspAirWheelConfig
		0x0097: {0x09, 0x09},     // dspTouchConfig and approach detection
		0x00A0: {0x001F, 0x001F}, // dataOutputEnableMask
		0x00A1: {0x0000, 0x001F}, // dataOutputLockMask
	}
}

// Read returns device output. It returns 0, nil when nothing arrives
// within ReadTimeout.
func (d *Device) Read(p []byte) (int, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return 0, ErrClosed
	}
	if len(d.leftover) > 0 {
		n := copy(p, d.leftover)
		d.leftover = d.leftover[n:]
		d.mu.Unlock()
		return n, nil
	}
	d.streamTick()
	timeout := d.ReadTimeout
	d.mu.Unlock()

	if err := d.out.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, err
	}
	n, err := d.out.Read(d.scratch)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, ErrClosed
		}
		// Deadline expired.
		return 0, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	c := copy(p, d.scratch[:n])
	d.leftover = append(d.leftover[:0], d.scratch[c:n]...)
	return c, nil
}

// Write accepts host bytes; every complete message is answered immediately.
func (d *Device) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return 0, ErrClosed
	}

	d.extractor.Feed(p)
	for {
		msg, ok := d.extractor.Next()
		if !ok {
			break
		}
		d.received = append(d.received, msg)
		d.handle(msg)
	}
	return len(p), nil
}

// Reset restarts the simulated loader, which announces itself with a
// Fw_Version_Info message.
func (d *Device) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.resetErr != nil {
		return d.resetErr
	}
	d.resets++
	d.inSession = false
	d.extractor.Reset()
	d.sendVersionInfo()
	return nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	return d.out.Close()
}

func (d *Device) handle(msg []byte) {
	id := msg[3]
	slog.Debug("sim: received message", slog.Int("id", int(id)), slog.String("bytes", frame.EncodeToString(msg)))

	switch id {
	case msgRequestMessage:
		d.handleRequest(msg)
	case msgSetRuntimeParameter:
		d.handleSetParam(msg)
	case msgFwUpdateStart:
		d.handleUpdateStart(msg)
	case msgFwUpdateBlock:
		d.handleUpdateBlock(msg)
	case msgFwUpdateCompleted:
		d.handleUpdateCompleted(msg)
	default:
		d.ack(id, errUnknownCommand)
	}
}

func (d *Device) handleRequest(msg []byte) {
	if len(msg) != 12 {
		d.ack(msgRequestMessage, errInvalidLength)
		return
	}
	requested := msg[4]
	param := binary.LittleEndian.Uint32(msg[8:])

	switch requested {
	case msgFwVersionInfo:
		if !d.suppressReplies {
			d.sendVersionInfo()
		}
		d.ack(msgRequestMessage, 0)

	case msgSetRuntimeParameter:
		args, ok := d.params[uint16(param)]
		if !ok {
			d.ack(msgRequestMessage, errUnknownParameterID)
			return
		}
		if !d.suppressReplies {
			reply := newMessage(msgSetRuntimeParameter, 16)
			binary.LittleEndian.PutUint16(reply[4:], uint16(param))
			binary.LittleEndian.PutUint32(reply[8:], args[0])
			binary.LittleEndian.PutUint32(reply[12:], args[1])
			d.emit(reply)
		}
		d.ack(msgRequestMessage, 0)

	default:
		d.ack(msgRequestMessage, errUnknownCommand)
	}
}

func (d *Device) handleSetParam(msg []byte) {
	if len(msg) != 16 {
		d.ack(msgSetRuntimeParameter, errInvalidLength)
		return
	}
	id := binary.LittleEndian.Uint16(msg[4:])
	arg0 := binary.LittleEndian.Uint32(msg[8:])
	arg1 := binary.LittleEndian.Uint32(msg[12:])

	switch id {
	case 0x1000:
		// Trigger actions have no stored state.
	case 0x0082:
		// transFreqSelect carries a count and a nibble list, not a mask.
		d.params[id] = [2]uint32{arg0, arg1}
	case 0xFF00:
		if arg0 > 2 {
			d.ack(msgSetRuntimeParameter, errUnknownParameterID)
			return
		}
	default:
		// Masked update: arg1 selects the bits arg0 provides.
		cur := d.params[id]
		cur[0] = cur[0]&^arg1 | arg0&arg1
		cur[1] |= arg1
		d.params[id] = cur
	}
	d.ack(msgSetRuntimeParameter, 0)
}

func validCRC(msg []byte) bool {
	if len(msg) < 8 {
		return false
	}
	return binary.LittleEndian.Uint32(msg[4:]) == crc32.ChecksumIEEE(msg[8:])
}

func (d *Device) handleUpdateStart(msg []byte) {
	switch {
	case len(msg) != 28:
		d.ack(msgFwUpdateStart, errInvalidLength)
	case !validCRC(msg):
		d.ack(msgFwUpdateStart, errInvalidCRC)
	default:
		d.session = binary.LittleEndian.Uint32(msg[8:])
		d.sessionMode = msg[26]
		d.inSession = true
		d.blocks = 0
		d.ack(msgFwUpdateStart, 0)
	}
}

func (d *Device) handleUpdateBlock(msg []byte) {
	if len(msg) != 140 {
		d.ack(msgFwUpdateBlock, errInvalidLength)
		return
	}
	if !validCRC(msg) {
		d.ack(msgFwUpdateBlock, errInvalidCRC)
		return
	}
	if !d.inSession {
		d.ack(msgFwUpdateBlock, errInvalidSessionID)
		return
	}

	addr := int(binary.LittleEndian.Uint16(msg[8:]))
	length := int(msg[10])
	if length > 128 {
		d.ack(msgFwUpdateBlock, errInvalidLength)
		return
	}
	data := msg[12 : 12+length]
	if addr%128 != 0 || addr+length > len(d.flash) {
		d.ack(msgFwUpdateBlock, errInvalidAddress)
		return
	}

	switch msg[11] {
	case modeProgram:
		copy(d.flash[addr:], data)
	case modeVerify:
		if string(d.flash[addr:addr+length]) != string(data) {
			d.ack(msgFwUpdateBlock, errContentMismatch)
			return
		}
	}
	d.blocks++
	d.ack(msgFwUpdateBlock, 0)
}

func (d *Device) handleUpdateCompleted(msg []byte) {
	switch {
	case len(msg) != 136:
		d.ack(msgFwUpdateCompleted, errInvalidLength)
		return
	case !validCRC(msg):
		d.ack(msgFwUpdateCompleted, errInvalidCRC)
		return
	case binary.LittleEndian.Uint32(msg[8:]) != d.session:
		d.ack(msgFwUpdateCompleted, errInvalidSessionID)
		return
	}

	switch msg[12] {
	case modeProgram:
		d.version = cString(msg[13:133])
		d.ack(msgFwUpdateCompleted, 0)
	case modeRestart:
		d.inSession = false
		d.ack(msgFwUpdateCompleted, 0)
		d.fwValid = d.restartFwValid
		d.sendVersionInfo()
	default:
		d.ack(msgFwUpdateCompleted, 0)
	}
}

func (d *Device) sendVersionInfo() {
	m := newMessage(msgFwVersionInfo, 132)
	m[4] = d.fwValid
	copy(m[12:132], d.version)
	d.emit(m)
}

func (d *Device) ack(id byte, code uint16) {
	if d.dropAcks > 0 {
		d.dropAcks--
		return
	}
	if len(d.failCodes) > 0 {
		code = d.failCodes[0]
		d.failCodes = d.failCodes[1:]
	}

	m := newMessage(msgSystemStatus, 16)
	m[4] = id
	binary.LittleEndian.PutUint16(m[6:], code)
	d.emit(m)
}

func (d *Device) emit(m []byte) {
	d.EmitRaw(frame.Encode(m))
}

func newMessage(id byte, size int) []byte {
	m := make([]byte, size)
	m[0] = byte(size)
	m[3] = id
	return m
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
