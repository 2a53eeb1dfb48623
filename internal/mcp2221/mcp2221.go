// Package mcp2221 reaches a GestIC sensor through a Microchip MCP2221A
// USB to I2C bridge. Every bridge command is one 64 byte HID report.
package mcp2221

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/seagrayinc/gestic/internal/frame"
	"github.com/seagrayinc/gestic/internal/hid"
)

const (
	VendorID  = 0x04D8
	ProductID = 0x00DD

	DefaultAddress = 0x42

	// ReportSize is the fixed length of every command and response.
	ReportSize = 64

	// chunkSize is the I2C payload one report can carry.
	chunkSize = 60

	// readLength covers the largest message the sensor sends.
	readLength = 138
)

const (
	cmdStatus      byte = 0x10
	cmdI2CWrite    byte = 0x90
	cmdI2CRead     byte = 0x91
	cmdI2CReadData byte = 0x40
	cmdGPIOSet     byte = 0x50
)

const (
	statusOK = 0x00

	// readError marks a get-data response whose transfer failed, usually
	// because the sensor did not acknowledge its address.
	readError = 0x7F

	cancelTransfer = 0x10

	busyRetries = 8
	busyDelay   = 300 * time.Microsecond
)

var ErrBridge = errors.New("mcp2221: bridge error")

// Config selects the sensor address and the GPIO wired to its reset line.
type Config struct {
	Address  uint8
	ResetPin int // GP0..GP3, or -1 without a reset line
}

func DefaultConfig() Config {
	return Config{Address: DefaultAddress, ResetPin: 0}
}

// Bridge is a gestic.Transport over an MCP2221A.
type Bridge struct {
	mu  sync.Mutex
	dev hid.Device
	cfg Config
	ex  frame.Extractor
	rsp []byte
}

// Open finds the first MCP2221A.
func Open(cfg Config) (*Bridge, error) {
	m, err := hid.NewManager()
	if err != nil {
		return nil, err
	}
	dev, err := m.OpenVIDPID(VendorID, ProductID)
	if err != nil {
		return nil, fmt.Errorf("MCP2221A not found (VID:0x%04X PID:0x%04X): %w", VendorID, ProductID, err)
	}
	return New(dev, cfg), nil
}

// New wraps an opened HID device.
func New(dev hid.Device, cfg Config) *Bridge {
	if cfg.Address == 0 {
		cfg.Address = DefaultAddress
	}
	return &Bridge{dev: dev, cfg: cfg, rsp: make([]byte, ReportSize)}
}

// send writes one command report and returns the matching response.
func (b *Bridge) send(cmd [ReportSize]byte) ([]byte, error) {
	out := make([]byte, 0, ReportSize+1)
	out = append(out, 0x00) // report ID
	out = append(out, cmd[:]...)
	if _, err := b.dev.Write(out); err != nil {
		return nil, fmt.Errorf("write command 0x%02X: %w", cmd[0], err)
	}

	n, err := b.dev.Read(b.rsp)
	if err != nil {
		return nil, fmt.Errorf("read response 0x%02X: %w", cmd[0], err)
	}
	if n < 4 || b.rsp[0] != cmd[0] {
		return nil, fmt.Errorf("%w: unexpected response %s to command 0x%02X", ErrBridge, frame.EncodeToString(b.rsp[:n]), cmd[0])
	}
	return b.rsp[:n], nil
}

// cancel aborts a stuck transfer so the next one can start.
func (b *Bridge) cancel() error {
	var cmd [ReportSize]byte
	cmd[0] = cmdStatus
	cmd[2] = cancelTransfer
	_, err := b.send(cmd)
	return err
}

func (b *Bridge) i2cWrite(msg []byte) error {
	for pos := 0; pos < len(msg); {
		var cmd [ReportSize]byte
		cmd[0] = cmdI2CWrite
		cmd[1] = byte(len(msg))
		cmd[2] = byte(len(msg) >> 8)
		cmd[3] = b.cfg.Address << 1
		n := copy(cmd[4:4+chunkSize], msg[pos:])

		var sent bool
		for retry := 0; retry < busyRetries; retry++ {
			rsp, err := b.send(cmd)
			if err != nil {
				return err
			}
			if rsp[1] == statusOK {
				sent = true
				break
			}
			time.Sleep(busyDelay)
		}
		if !sent {
			_ = b.cancel()
			return fmt.Errorf("%w: I2C write stayed busy", ErrBridge)
		}
		pos += n
	}
	return nil
}

// i2cRead reads n bytes. It returns nil without error when the sensor did
// not acknowledge, which means it has nothing to send.
func (b *Bridge) i2cRead(n int) ([]byte, error) {
	var cmd [ReportSize]byte
	cmd[0] = cmdI2CRead
	cmd[1] = byte(n)
	cmd[2] = byte(n >> 8)
	cmd[3] = b.cfg.Address<<1 | 0x01

	rsp, err := b.send(cmd)
	if err != nil {
		return nil, err
	}
	if rsp[1] != statusOK {
		return nil, b.cancel()
	}

	in := make([]byte, 0, n)
	for retry := 0; len(in) < n; {
		var get [ReportSize]byte
		get[0] = cmdI2CReadData
		rsp, err := b.send(get)
		if err != nil {
			return nil, err
		}

		count := int(rsp[3])
		switch {
		case count == readError:
			return nil, b.cancel()
		case rsp[1] != statusOK || count == 0:
			retry++
			if retry >= busyRetries {
				_ = b.cancel()
				return nil, fmt.Errorf("%w: I2C read stalled after %d of %d bytes", ErrBridge, len(in), n)
			}
			time.Sleep(busyDelay)
			continue
		}
		if count > chunkSize || 4+count > len(rsp) {
			return nil, fmt.Errorf("%w: get-data reported %d bytes", ErrBridge, count)
		}
		in = append(in, rsp[4:4+count]...)
	}
	return in, nil
}

// Read fetches one message from the sensor.
func (b *Bridge) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	raw, err := b.i2cRead(readLength)
	if err != nil || raw == nil {
		return 0, err
	}
	wire, ok := frame.Unframed(raw)
	if !ok {
		return 0, nil
	}
	if len(wire) > len(p) {
		return 0, fmt.Errorf("mcp2221: %d byte message does not fit a %d byte read", len(wire), len(p))
	}
	return copy(p, wire), nil
}

// Write sends every complete message in p as one I2C transfer.
func (b *Bridge) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.ex.Feed(p)
	for {
		msg, ok := b.ex.Next()
		if !ok {
			return len(p), nil
		}
		if err := b.i2cWrite(msg); err != nil {
			return 0, err
		}
		slog.Debug("mcp2221: message sent", slog.Int("size", len(msg)))
	}
}

// Reset drives the reset GPIO low and releases it again.
func (b *Bridge) Reset() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cfg.ResetPin < 0 || b.cfg.ResetPin > 3 {
		return fmt.Errorf("%w: no reset pin configured", ErrBridge)
	}
	if err := b.setPin(false); err != nil {
		return err
	}
	time.Sleep(time.Millisecond)
	return b.setPin(true)
}

func (b *Bridge) setPin(high bool) error {
	var cmd [ReportSize]byte
	cmd[0] = cmdGPIOSet
	off := 2 + 4*b.cfg.ResetPin
	cmd[off] = 0x01 // alter output
	if high {
		cmd[off+1] = 0x01
	}
	cmd[off+2] = 0x01 // alter direction
	cmd[off+3] = 0x00 // output

	rsp, err := b.send(cmd)
	if err != nil {
		return err
	}
	if rsp[off] != statusOK {
		return fmt.Errorf("%w: GP%d is not configured as GPIO", ErrBridge, b.cfg.ResetPin)
	}
	return nil
}

func (b *Bridge) Close() error {
	return b.dev.Close()
}
