package gestic

import (
	"context"
	"fmt"
)

// Version of this driver.
const Version = "1.0.0"

// QueryFirmwareVersion asks the device for its Fw_Version_Info message.
func (d *Device) QueryFirmwareVersion(ctx context.Context) (FwVersionInfo, error) {
	d.txMu.Lock()
	defer d.txMu.Unlock()

	p := d.expectVersion()
	defer d.clearVersion(p)

	if err := d.send(ctx, RequestMessage(MsgFwVersionInfo, 0), d.cfg.Timeout); err != nil {
		return FwVersionInfo{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if !p.received {
		return FwVersionInfo{}, fmt.Errorf("%w: %s", ErrMissingMessage, MsgFwVersionInfo)
	}
	return p.info, nil
}

// FirmwareValid returns the fw_valid field of the last Fw_Version_Info seen.
func (d *Device) FirmwareValid() byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fwValid
}

func (d *Device) expectVersion() *pendingVersion {
	p := &pendingVersion{done: make(chan struct{})}
	d.mu.Lock()
	d.version = p
	d.mu.Unlock()
	return p
}

func (d *Device) clearVersion(p *pendingVersion) {
	d.mu.Lock()
	if d.version == p {
		d.version = nil
	}
	d.mu.Unlock()
}
