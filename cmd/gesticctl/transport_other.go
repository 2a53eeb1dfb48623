//go:build !linux

package main

import (
	"fmt"
	"runtime"

	"github.com/seagrayinc/gestic/pkg/gestic"
)

func openPlatformTransport(cfg Config) (gestic.Transport, error) {
	return nil, fmt.Errorf("transport %q is not available on %s", cfg.Transport, runtime.GOOS)
}
