// Package hid enumerates and opens USB HID devices.
package hid

import "fmt"

// Device represents an opened HID device capable of report I/O.
type Device interface {
	Write([]byte) (int, error) // send output report, report ID at p[0]
	Read([]byte) (int, error)  // read input report
	Close() error
}

// Info represents a HID device descriptor.
type Info struct {
	Path         string
	VendorID     uint16
	ProductID    uint16
	Product      string
	Manufacturer string
}

// Manager enumerates and opens HID devices.
type Manager interface {
	List() ([]Info, error)
	Open(info Info) (Device, error)
	OpenVIDPID(vendorID, productID uint16) (Device, error)
}

// NewManager returns the OS-specific HID manager.
func NewManager() (Manager, error) {
	return newManager()
}

func (i Info) String() string {
	if i.Product == "" {
		return fmt.Sprintf("%04X:%04X (%s)", i.VendorID, i.ProductID, i.Path)
	}
	return fmt.Sprintf("%04X:%04X %s (%s)", i.VendorID, i.ProductID, i.Product, i.Path)
}
