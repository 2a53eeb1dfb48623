// Package usbcdc opens the GestIC USB bridge directly over its bulk
// endpoints, for hosts where the CDC ACM driver is not bound to it.
package usbcdc

import (
	"fmt"
	"strings"

	"github.com/karalabe/usb"
)

const (
	MicrochipVID = 0x04D8
	BridgePID    = 0x000A
)

// resetMessage is the bridge control message that pulses the sensor's
// reset line. It is never forwarded to the sensor.
var resetMessage = []byte{0xFE, 0xFF, 0x00, 0x11, 0x00, 0x00, 0x00, 0x00}

// Device is a gestic.Transport over the bridge's bulk endpoints.
type Device struct {
	dev  usb.Device
	info usb.DeviceInfo
}

// Open finds and opens the first bridge with the given IDs. Zero IDs
// select the Hillstar defaults.
func Open(vid, pid uint16) (*Device, error) {
	if vid == 0 {
		vid = MicrochipVID
	}
	if pid == 0 {
		pid = BridgePID
	}
	if !usb.Supported() {
		return nil, fmt.Errorf("raw USB access is not supported on this platform")
	}

	infos, err := usb.EnumerateRaw(vid, pid)
	if err != nil {
		return nil, fmt.Errorf("usb enumerate: %w", err)
	}
	if len(infos) == 0 {
		all, allErr := usb.Enumerate(0, 0)
		if allErr != nil {
			return nil, fmt.Errorf("GestIC bridge not found (VID:0x%04X PID:0x%04X); enumerate all failed: %w", vid, pid, allErr)
		}
		return nil, fmt.Errorf("GestIC bridge not found (VID:0x%04X PID:0x%04X); found %d other USB devices", vid, pid, len(all))
	}

	dev, err := infos[0].Open()
	if err != nil {
		return nil, fmt.Errorf("open device: %w", err)
	}
	return &Device{dev: dev, info: infos[0]}, nil
}

// Read returns 0, nil when the endpoint read times out.
func (d *Device) Read(p []byte) (int, error) {
	n, err := d.dev.Read(p)
	if err != nil {
		if isTimeout(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("usb read: %w", err)
	}
	return n, nil
}

func (d *Device) Write(p []byte) (int, error) {
	n, err := d.dev.Write(p)
	if err != nil {
		return n, fmt.Errorf("usb write: %w", err)
	}
	return n, nil
}

func (d *Device) Reset() error {
	_, err := d.Write(resetMessage)
	return err
}

func (d *Device) Close() error {
	return d.dev.Close()
}

func (d *Device) String() string {
	return fmt.Sprintf("usb:%04x:%04x@%s", d.info.VendorID, d.info.ProductID, d.info.Path)
}

// isTimeout recognizes libusb transfer timeouts, which the usb package
// reports as plain errors. LIBUSB_ERROR_TIMEOUT is code -7; the usb package
// formats it from libusb_error_name as "libusb: LIBUSB_ERROR_TIMEOUT [code -7]",
// and libusb_strerror renders it as "Operation timed out".
func isTimeout(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "[code -7]") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "timed out")
}
