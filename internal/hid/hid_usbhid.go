package hid

import (
	"fmt"

	usbhid "rafaelmartins.com/p/usbhid"
)

type manager struct{}

func newManager() (Manager, error) { return &manager{}, nil }

func infoOf(d *usbhid.Device) Info {
	return Info{
		Path:         d.Path(),
		VendorID:     d.VendorId(),
		ProductID:    d.ProductId(),
		Product:      d.Product(),
		Manufacturer: d.Manufacturer(),
	}
}

func (m *manager) List() ([]Info, error) {
	devs, err := usbhid.Enumerate(nil)
	if err != nil {
		return nil, fmt.Errorf("enumerate HID devices: %w", err)
	}
	infos := make([]Info, len(devs))
	for i, d := range devs {
		infos[i] = infoOf(d)
	}
	return infos, nil
}

func (m *manager) Open(info Info) (Device, error) {
	return open(func(d *usbhid.Device) bool { return d.Path() == info.Path }, info.String())
}

func (m *manager) OpenVIDPID(vendorID, productID uint16) (Device, error) {
	return open(func(d *usbhid.Device) bool {
		return d.VendorId() == vendorID && d.ProductId() == productID
	}, fmt.Sprintf("%04X:%04X", vendorID, productID))
}

func open(match func(*usbhid.Device) bool, name string) (Device, error) {
	d, err := usbhid.Get(match, true, false)
	if err != nil {
		return nil, fmt.Errorf("open HID device %s: %w", name, err)
	}
	return &device{d: d, outLen: int(d.GetOutputReportLength())}, nil
}

// device adapts a usbhid device to Device. Bridges such as the MCP2221A
// only accept full-length output reports, so short writes are zero padded.
type device struct {
	d      *usbhid.Device
	outLen int
}

func (d *device) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	data := p[1:]
	if len(data) > d.outLen && d.outLen > 0 {
		return 0, fmt.Errorf("%d byte report exceeds the %d byte output report", len(data), d.outLen)
	}
	if len(data) < d.outLen {
		padded := make([]byte, d.outLen)
		copy(padded, data)
		data = padded
	}
	if err := d.d.SetOutputReport(p[0], data); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Read blocks until the next input report arrives.
func (d *device) Read(p []byte) (int, error) {
	_, report, err := d.d.GetInputReport()
	if err != nil {
		return 0, err
	}
	return copy(p, report), nil
}

func (d *device) Close() error { return d.d.Close() }
