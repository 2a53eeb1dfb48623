package gestic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/seagrayinc/gestic/pkg/fwimage"
)

// Progress reports FlashImage state.
type Progress struct {
	// Phase is one of "starting", "writing", "finishing" or "complete".
	Phase string

	CurrentRecord int
	TotalRecords  int
	BytesWritten  int
	Percentage    float64
	ElapsedTime   time.Duration
}

// ProgressCallback should return quickly; it runs on the flashing goroutine.
type ProgressCallback func(Progress)

// FlashSession is an open firmware update session. Every block and the
// closing message use the mode the session was opened with.
type FlashSession struct {
	dev     *Device
	id      uint32
	mode    UpdateFunction
	timeout time.Duration
	ended   bool
}

func (s *FlashSession) ID() uint32           { return s.id }
func (s *FlashSession) Mode() UpdateFunction { return s.mode }

// BeginFlash resets the device, waits for the loader to announce itself with
// a Fw_Version_Info message and opens an update session. timeout bounds the
// wait for the loader and may be Forever; requests inside the session use
// the same timeout, or the configured one when it is Forever.
func (d *Device) BeginFlash(ctx context.Context, sessionID uint32, iv [fwimage.IVSize]byte, mode UpdateFunction, timeout time.Duration) (*FlashSession, error) {
	if mode != UpdateProgramFlash && mode != UpdateVerifyOnly {
		return nil, fmt.Errorf("%w: cannot open a session with mode %s", ErrBadParam, mode)
	}

	d.txMu.Lock()
	defer d.txMu.Unlock()

	crcTable()

	p := d.expectVersion()
	defer d.clearVersion(p)

	if err := d.Reset(); err != nil {
		return nil, err
	}

	if err := d.await(ctx, p.done, expiry(timeout)); err != nil {
		if errors.Is(err, ErrNoData) {
			return nil, fmt.Errorf("%w: loader did not report its version", ErrNoResponse)
		}
		return nil, err
	}
	d.log.Info("loader ready", slog.String("version", p.info.Version))

	requestTimeout := timeout
	if requestTimeout < 0 {
		requestTimeout = d.cfg.Timeout
	}

	if err := d.send(ctx, FwUpdateStartMessage(sessionID, iv, mode), requestTimeout); err != nil {
		return nil, err
	}

	return &FlashSession{dev: d, id: sessionID, mode: mode, timeout: requestTimeout}, nil
}

// WriteBlock sends one record. Arguments are validated before any I/O.
func (s *FlashSession) WriteBlock(ctx context.Context, rec fwimage.Record, mode UpdateFunction) error {
	if s.ended {
		return fmt.Errorf("%w: session 0x%08X already ended", ErrBadParam, s.id)
	}
	if mode != s.mode {
		return fmt.Errorf("%w: block mode %s in a %s session", ErrBadParam, mode, s.mode)
	}
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrBadParam, err)
	}

	s.dev.txMu.Lock()
	defer s.dev.txMu.Unlock()

	return s.dev.send(ctx, FwUpdateBlockMessage(rec, mode), s.timeout)
}

// End stores version, closes the session and restarts the device. The
// session stays open if the device did not accept the completion, so End
// may be retried.
func (s *FlashSession) End(ctx context.Context, version [fwimage.VersionSize]byte) error {
	if s.ended {
		return fmt.Errorf("%w: session 0x%08X already ended", ErrBadParam, s.id)
	}

	s.dev.txMu.Lock()
	defer s.dev.txMu.Unlock()

	if err := s.dev.send(ctx, FwUpdateCompletedMessage(s.id, s.mode, version), s.timeout); err != nil {
		return err
	}
	s.ended = true
	return s.dev.send(ctx, FwUpdateCompletedMessage(s.id, UpdateRestart, [fwimage.VersionSize]byte{}), s.timeout)
}

// FlashImage programs or verifies a whole image and stops at the first failure.
func (d *Device) FlashImage(ctx context.Context, sessionID uint32, img *fwimage.Image, mode UpdateFunction, timeout time.Duration) error {
	start := time.Now()
	total := len(img.Records)
	report := func(phase string, current, written int) {
		if d.cfg.ProgressCallback == nil {
			return
		}
		pct := 100.0
		if total > 0 {
			pct = float64(current) / float64(total) * 100
		}
		d.cfg.ProgressCallback(Progress{
			Phase:         phase,
			CurrentRecord: current,
			TotalRecords:  total,
			BytesWritten:  written,
			Percentage:    pct,
			ElapsedTime:   time.Since(start),
		})
	}

	report("starting", 0, 0)
	session, err := d.BeginFlash(ctx, sessionID, img.IV, mode, timeout)
	if err != nil {
		return fmt.Errorf("begin session: %w", err)
	}

	var written int
	for i, rec := range img.Records {
		if err := session.WriteBlock(ctx, rec, mode); err != nil {
			return fmt.Errorf("record %d at 0x%04X: %w", i, rec.Address, err)
		}
		written += int(rec.Length)
		report("writing", i+1, written)
	}

	report("finishing", total, written)
	if err := session.End(ctx, img.Version); err != nil {
		return fmt.Errorf("end session: %w", err)
	}

	report("complete", total, written)
	d.log.Info("image flashed",
		slog.String("mode", mode.String()),
		slog.Int("records", total),
		slog.Int("bytes", written),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

// WaitLoaderUpdated waits for a Fw_Version_Info with fw_valid 0. After a
// loader image is flashed the loader updater restarts into the new loader,
// which has no library yet and announces itself that way.
func (d *Device) WaitLoaderUpdated(ctx context.Context, timeout time.Duration) error {
	done := make(chan struct{})

	d.mu.Lock()
	d.fwValid = fwValidUnknown
	d.loaderWait = done
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		if d.loaderWait == done {
			d.loaderWait = nil
		}
		d.mu.Unlock()
	}()

	if err := d.await(ctx, done, expiry(timeout)); err != nil {
		if errors.Is(err, ErrNoData) {
			return fmt.Errorf("%w: loader update not confirmed", ErrNoResponse)
		}
		return err
	}
	return nil
}
