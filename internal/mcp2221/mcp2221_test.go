package mcp2221

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seagrayinc/gestic/internal/frame"
	"github.com/seagrayinc/gestic/internal/hid"
	"github.com/seagrayinc/gestic/internal/sim"
	"github.com/seagrayinc/gestic/pkg/fwimage"
	"github.com/seagrayinc/gestic/pkg/gestic"
)

// emulator answers bridge commands the way an MCP2221A with a sensor on
// its I2C bus would.
type emulator struct {
	sensor  *sim.Device
	ex      frame.Extractor
	writing []byte
	reading []byte
	pin     byte
	busy    int
}

func (e *emulator) respond(out []byte) [][]byte {
	cmd := out[1:]
	rsp := make([]byte, ReportSize)
	rsp[0] = cmd[0]

	switch cmd[0] {
	case cmdI2CWrite:
		if e.busy > 0 {
			e.busy--
			rsp[1] = 0x01
			break
		}
		total := int(cmd[1]) | int(cmd[2])<<8
		n := min(total-len(e.writing), chunkSize)
		e.writing = append(e.writing, cmd[4:4+n]...)
		if len(e.writing) == total {
			_, _ = e.sensor.Write(frame.Encode(e.writing))
			e.writing = nil
		}

	case cmdI2CRead:
		e.reading = e.next(int(cmd[1]) | int(cmd[2])<<8)

	case cmdI2CReadData:
		if e.reading == nil {
			rsp[3] = readError
			break
		}
		n := min(len(e.reading), chunkSize)
		rsp[3] = byte(n)
		copy(rsp[4:], e.reading[:n])
		e.reading = e.reading[n:]

	case cmdGPIOSet:
		level := cmd[3]
		if e.pin == 0 && level == 1 {
			_ = e.sensor.Reset()
		}
		e.pin = level
	}
	return [][]byte{rsp}
}

// next returns the sensor's next message padded to n bytes, or nil.
func (e *emulator) next(n int) []byte {
	buf := make([]byte, 256)
	for {
		if msg, ok := e.ex.Next(); ok {
			out := make([]byte, n)
			for i := range out {
				out[i] = 0xFF
			}
			copy(out, msg)
			return out
		}
		c, err := e.sensor.Read(buf)
		if err != nil || c == 0 {
			return nil
		}
		e.ex.Feed(buf[:c])
	}
}

func newBridge(t *testing.T) (*Bridge, *emulator, *hid.MockDevice) {
	t.Helper()

	e := &emulator{sensor: sim.New(), pin: 1}
	mock := hid.NewMockDevice(e.respond)
	return New(mock, DefaultConfig()), e, mock
}

func openDevice(t *testing.T, b *Bridge) *gestic.Device {
	t.Helper()

	dev, err := gestic.Open(b,
		gestic.WithTimeout(50*time.Millisecond),
		gestic.WithPollInterval(time.Millisecond),
		gestic.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	return dev
}

func TestQueryVersionThroughBridge(t *testing.T) {
	b, _, mock := newBridge(t)
	dev := openDevice(t, b)

	info, err := dev.QueryFirmwareVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sim.DefaultVersion, info.Version)

	first := mock.Written()[0]
	require.Len(t, first, ReportSize+1)
	assert.Equal(t, byte(0x00), first[0], "report ID")
	assert.Equal(t, cmdI2CWrite, first[1])
	assert.Equal(t, byte(DefaultAddress<<1), first[4])
}

func TestLongMessagesAreChunked(t *testing.T) {
	b, e, _ := newBridge(t)
	dev := openDevice(t, b)
	e.busy = 2

	data := make([]byte, 200)
	for i := range data {
		data[i] = byte(i)
	}
	records, err := fwimage.Split(0x0100, data)
	require.NoError(t, err)

	img := &fwimage.Image{Records: records}
	require.NoError(t, dev.FlashImage(context.Background(), 9, img, gestic.UpdateProgramFlash, time.Second))
	assert.Equal(t, data, e.sensor.Flash(0x0100, 200))
	assert.Equal(t, 1, e.sensor.Resets(), "reset is driven through the GPIO")
}

func TestReadWithoutMessage(t *testing.T) {
	b, _, _ := newBridge(t)

	n, err := b.Read(make([]byte, 256))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestResetWithoutPin(t *testing.T) {
	e := &emulator{sensor: sim.New()}
	b := New(hid.NewMockDevice(e.respond), Config{ResetPin: -1})
	assert.ErrorIs(t, b.Reset(), ErrBridge)
}

func TestUnexpectedResponse(t *testing.T) {
	mock := hid.NewMockDevice(func(out []byte) [][]byte {
		return [][]byte{make([]byte, ReportSize)}
	})
	b := New(mock, DefaultConfig())

	_, err := b.Read(make([]byte, 256))
	assert.ErrorIs(t, err, ErrBridge)
}
