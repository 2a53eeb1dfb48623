package main

import (
	"fmt"
	"time"

	"github.com/seagrayinc/gestic/internal/mcp2221"
	"github.com/seagrayinc/gestic/internal/serialport"
	"github.com/seagrayinc/gestic/internal/sim"
	"github.com/seagrayinc/gestic/internal/usbcdc"
	"github.com/seagrayinc/gestic/pkg/gestic"
)

// simFrameInterval matches the sensor's 200 Hz output rate.
const simFrameInterval = 5 * time.Millisecond

func openTransport(cfg Config) (gestic.Transport, error) {
	switch cfg.Transport {
	case "serial", "":
		return serialport.Open(cfg.Device, cfg.Baud)
	case "usb":
		return usbcdc.Open(0, 0)
	case "mcp2221":
		bridge := mcp2221.DefaultConfig()
		bridge.Address = uint8(cfg.Address)
		bridge.ResetPin = cfg.ResetPin
		return mcp2221.Open(bridge)
	case "i2c", "chardev":
		return openPlatformTransport(cfg)
	case "sim":
		d := sim.New()
		d.StartStream(sim.OutputDSPStatus|sim.OutputGesture|sim.OutputTouch|sim.OutputAirWheel|sim.OutputPosition, simFrameInterval)
		return d, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}
