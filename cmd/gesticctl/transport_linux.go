package main

import (
	"github.com/seagrayinc/gestic/internal/chardev"
	"github.com/seagrayinc/gestic/internal/i2cdev"
	"github.com/seagrayinc/gestic/pkg/gestic"
)

func openPlatformTransport(cfg Config) (gestic.Transport, error) {
	if cfg.Transport == "chardev" {
		return chardev.Open(cfg.Device)
	}
	return i2cdev.Open(cfg.Device, cfg.Address)
}
