//go:build linux

// Package i2cdev talks to a GestIC sensor through the Linux i2c-dev
// interface. The bus carries bare messages; this package adds and strips
// the wire marker so the driver sees the same byte stream as on USB.
package i2cdev

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/seagrayinc/gestic/internal/frame"
	"github.com/seagrayinc/gestic/pkg/gestic"
)

const (
	DefaultPath    = "/dev/i2c-1"
	DefaultAddress = 0x42

	// i2cSlave is I2C_SLAVE from linux/i2c-dev.h.
	i2cSlave = 0x0703

	// readLength covers the largest message the sensor sends.
	readLength = 138
)

// Device is a gestic.Transport over an I2C bus.
type Device struct {
	mu  sync.Mutex
	bus io.ReadWriteCloser
	ex  frame.Extractor
	buf []byte
}

// Open binds path to the sensor at addr.
func Open(path string, addr int) (*Device, error) {
	if path == "" {
		path = DefaultPath
	}
	if addr == 0 {
		addr = DefaultAddress
	}

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := unix.IoctlSetInt(fd, i2cSlave, addr); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("select address 0x%02X on %s: %w", addr, path, err)
	}

	return New(os.NewFile(uintptr(fd), path)), nil
}

// New wraps an already addressed bus.
func New(bus io.ReadWriteCloser) *Device {
	return &Device{bus: bus, buf: make([]byte, readLength)}
}

// Read performs one bus read and returns the message it carried, if any.
func (d *Device) Read(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.bus.Read(d.buf)
	if err != nil {
		if idle(err) {
			return 0, nil
		}
		return 0, err
	}

	wire, ok := frame.Unframed(d.buf[:n])
	if !ok {
		return 0, nil
	}
	if len(wire) > len(p) {
		return 0, fmt.Errorf("i2cdev: %d byte message does not fit a %d byte read", len(wire), len(p))
	}
	return copy(p, wire), nil
}

// Write sends every complete message in p as its own bus transfer.
func (d *Device) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.ex.Feed(p)
	for {
		msg, ok := d.ex.Next()
		if !ok {
			break
		}
		if _, err := d.bus.Write(msg); err != nil {
			return 0, err
		}
		slog.Debug("i2c write", slog.String("bytes", frame.EncodeToString(msg)))
	}
	return len(p), nil
}

// Reset is not possible without access to the sensor's reset line.
func (d *Device) Reset() error {
	return gestic.ErrResetUnsupported
}

func (d *Device) Close() error {
	return d.bus.Close()
}

// idle reports errors the bus returns while the sensor has nothing to send.
func idle(err error) bool {
	return errors.Is(err, unix.ENXIO) ||
		errors.Is(err, unix.EREMOTEIO) ||
		errors.Is(err, unix.EAGAIN) ||
		errors.Is(err, unix.ETIMEDOUT)
}
