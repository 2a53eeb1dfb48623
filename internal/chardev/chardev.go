//go:build linux

// Package chardev uses the gestic kernel module, which exposes the sensor
// as a character device speaking the same byte stream as the USB bridge.
package chardev

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

const (
	DefaultPath = "/dev/gestic"
	PollTimeout = 10 * time.Millisecond

	controlReset = 0x11
)

// Device is a gestic.Transport over the character device.
type Device struct {
	fd   int
	path string
}

func Open(path string) (*Device, error) {
	if path == "" {
		path = DefaultPath
	}
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Device{fd: fd, path: path}, nil
}

// Read waits up to PollTimeout for the module to report a pending message.
func (d *Device) Read(p []byte) (int, error) {
	fds := []unix.PollFd{{Fd: int32(d.fd), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(fds, int(PollTimeout/time.Millisecond))
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("poll %s: %w", d.path, err)
		}
		if n == 0 {
			return 0, nil
		}
		break
	}

	n, err := unix.Read(d.fd, p)
	if errors.Is(err, unix.EAGAIN) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (d *Device) Write(p []byte) (int, error) {
	return unix.Write(d.fd, p)
}

// Reset asks the module to pulse the sensor's reset line.
func (d *Device) Reset() error {
	_, err := unix.Write(d.fd, controlMessage(controlReset, 0, 0))
	return err
}

// SetDelays sets the pause, in milliseconds, the module inserts after
// every bus read and write.
func (d *Device) SetDelays(read, write uint8) error {
	_, err := unix.Write(d.fd, controlMessage(0x00, read, write))
	return err
}

func (d *Device) Close() error {
	return unix.Close(d.fd)
}

// controlMessage builds a module command. The zero size byte keeps the
// module from forwarding it to the sensor.
func controlMessage(cmd, arg0, arg1 byte) []byte {
	return []byte{0xFE, 0xFF, 0x00, cmd, arg0, arg1, 0x00, 0x00}
}
