// Package serialport connects to a GestIC sensor behind the USB CDC serial
// bridge of the Hillstar development kit.
package serialport

import (
	"errors"
	"fmt"
	"time"

	"go.bug.st/serial"
)

const (
	DefaultPath     = "/dev/ttyACM0"
	DefaultBaudRate = 115200
	ReadTimeout     = 10 * time.Millisecond
)

// ResetMessage makes the bridge pulse the sensor's reset line. A size byte
// of zero marks it as a bridge control message that is never forwarded.
var ResetMessage = []byte{0xFE, 0xFF, 0x00, 0x11, 0x00, 0x00, 0x00, 0x00}

// Port is a gestic.Transport over a serial device.
type Port struct {
	port serial.Port
	path string
}

// Open opens path as 8N1 with DTR asserted. The bridge only forwards data
// while DTR is on.
func Open(path string, baud int) (*Port, error) {
	if path == "" {
		path = DefaultPath
	}
	if baud <= 0 {
		baud = DefaultBaudRate
	}

	port, err := serial.Open(path, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, describe(path, err)
	}

	if err := port.SetDTR(true); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("set DTR on %s: %w", path, err)
	}
	if err := port.SetReadTimeout(ReadTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", path, err)
	}

	return &Port{port: port, path: path}, nil
}

// Read returns 0, nil once ReadTimeout passes without data.
func (p *Port) Read(b []byte) (int, error) {
	return p.port.Read(b)
}

func (p *Port) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

func (p *Port) Reset() error {
	if err := p.port.ResetInputBuffer(); err != nil {
		return err
	}
	_, err := p.port.Write(ResetMessage)
	return err
}

func (p *Port) Close() error {
	return p.port.Close()
}

func (p *Port) String() string {
	return "serial:" + p.path
}

// List returns the serial ports present on the system.
func List() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, describe("", err)
	}
	return ports, nil
}

func describe(path string, err error) error {
	var portErr *serial.PortError
	if !errors.As(err, &portErr) {
		return fmt.Errorf("open %s: %w", path, err)
	}
	switch portErr.Code() {
	case serial.PortNotFound:
		return fmt.Errorf("serial port %s not found: %w", path, err)
	case serial.PortBusy:
		return fmt.Errorf("serial port %s is busy: %w", path, err)
	case serial.PermissionDenied:
		return fmt.Errorf("no permission to open %s (is the user in the dialout group?): %w", path, err)
	}
	return fmt.Errorf("open %s: %w", path, err)
}
