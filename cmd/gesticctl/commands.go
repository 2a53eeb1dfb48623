package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/seagrayinc/gestic/internal/hid"
	"github.com/seagrayinc/gestic/internal/serialport"
	"github.com/seagrayinc/gestic/pkg/fwimage"
	"github.com/seagrayinc/gestic/pkg/gestic"
)

// loaderUpdateTimeout bounds the wait for a freshly flashed loader to
// restart and announce itself.
const loaderUpdateTimeout = 20 * time.Second

func showVersion(ctx context.Context, dev *gestic.Device, out io.Writer) error {
	info, err := dev.QueryFirmwareVersion(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "firmware: %s\n", info.Version)
	fmt.Fprintf(out, "fw_valid: 0x%02X\n", info.FwValid)
	fmt.Fprintf(out, "driver:   %s\n", gestic.Version)
	return nil
}

// stream runs the background reader and prints one line per published
// snapshot until ctx is done or the configured duration expires.
func stream(ctx context.Context, dev *gestic.Device, cfg Config, out io.Writer) error {
	if cfg.OutputMask != 0 {
		mask := gestic.OutputMask(cfg.OutputMask)
		if err := dev.SetOutputEnableMask(ctx, mask, 0, mask); err != nil {
			return fmt.Errorf("set output mask: %w", err)
		}
	}

	if cfg.Duration > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, cfg.Duration)
		defer cancelTimeout()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- dev.Run(ctx) }()

	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var prev gestic.Snapshot
	for {
		select {
		case err := <-done:
			return streamEnded(ctx, err)
		case <-ctx.Done():
			return streamEnded(ctx, <-done)
		case <-ticker.C:
		}

		snap, err := dev.Publish(ctx)
		if errors.Is(err, gestic.ErrNoData) {
			continue
		}
		if err != nil {
			cancel()
			<-done
			return err
		}
		printSnapshot(out, snap, prev)
		prev = snap
	}
}

// streamEnded treats an interrupt or the duration limit as a normal end.
func streamEnded(ctx context.Context, err error) error {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}
	return err
}

func printSnapshot(out io.Writer, s, prev gestic.Snapshot) {
	var b strings.Builder
	fmt.Fprintf(&b, "frame=%d", s.FrameCounter)
	if s.Skipped > 0 {
		fmt.Fprintf(&b, " skipped=%d", s.Skipped)
	}
	if s.Gesture.Gesture != gestic.GestureNone {
		fmt.Fprintf(&b, " gesture=%s", s.Gesture.Gesture)
		if s.Gesture.EdgeFlick() {
			b.WriteString("(edge)")
		}
	}
	if t := s.Touch.Flags.Touch(); t.Active() {
		fmt.Fprintf(&b, " touch=%s", t)
	}
	if t := s.Touch.TapFlags.Tap(); t.Active() {
		fmt.Fprintf(&b, " tap=%s", t)
	}
	if t := s.Touch.TapFlags.DoubleTap(); t.Active() {
		fmt.Fprintf(&b, " doubletap=%s", t)
	}
	if s.AirWheel.Active && prev.FrameCounter > 0 {
		fmt.Fprintf(&b, " wheel=%+d", s.AirWheel.Delta(prev.AirWheel.Counter))
	}
	if s.SystemInfo.Has(gestic.InfoPositionValid) {
		fmt.Fprintf(&b, " pos=%s", s.Position)
	}
	if s.Calibration.Reason != 0 {
		fmt.Fprintf(&b, " calibration=0x%02X", uint8(s.Calibration.Reason))
	}
	if s.Frequency.Changed {
		fmt.Fprintf(&b, " freq=%dkHz", s.Frequency.Frequency)
	}
	fmt.Fprintln(out, b.String())
}

// flash programs the loader first, waits for it to restart without a
// library and then programs the library.
func flash(ctx context.Context, dev *gestic.Device, cfg Config, out io.Writer) error {
	if cfg.Loader == "" && cfg.Library == "" {
		return errors.New("nothing to flash: set --loader and/or --library")
	}
	mode := gestic.UpdateProgramFlash
	if cfg.Verify {
		mode = gestic.UpdateVerifyOnly
	}

	if info, err := dev.QueryFirmwareVersion(ctx); err == nil {
		fmt.Fprintf(out, "running: %s\n", info.Version)
	} else {
		fmt.Fprintf(out, "running version unknown: %v\n", err)
	}

	if cfg.Loader != "" {
		img, err := fwimage.Parse(cfg.Loader)
		if err != nil {
			return fmt.Errorf("loader image: %w", err)
		}
		fmt.Fprintf(out, "loader: %s (%d bytes)\n", img.VersionString(), img.Size())
		if err := dev.FlashImage(ctx, cfg.Session, img, mode, cfg.Timeout); err != nil {
			return fmt.Errorf("flash loader: %w", err)
		}
		if mode == gestic.UpdateProgramFlash {
			fmt.Fprintln(out, "waiting for the loader update")
			if err := dev.WaitLoaderUpdated(ctx, loaderUpdateTimeout); err != nil {
				return err
			}
		}
	}

	if cfg.Library != "" {
		img, err := fwimage.Parse(cfg.Library)
		if err != nil {
			return fmt.Errorf("library image: %w", err)
		}
		fmt.Fprintf(out, "library: %s (%d bytes)\n", img.VersionString(), img.Size())
		if err := dev.FlashImage(ctx, cfg.Session, img, mode, cfg.Timeout); err != nil {
			return fmt.Errorf("flash library: %w", err)
		}
	}

	fmt.Fprintln(out, "done")
	return nil
}

func printProgress(out io.Writer) gestic.ProgressCallback {
	return func(p gestic.Progress) {
		switch p.Phase {
		case "starting":
			fmt.Fprintf(out, "starting session, %d records\n", p.TotalRecords)
		case "writing":
			fmt.Fprintf(out, "\r%5.1f%% %d/%d records %d bytes", p.Percentage, p.CurrentRecord, p.TotalRecords, p.BytesWritten)
		case "finishing":
			fmt.Fprintln(out)
		case "complete":
			fmt.Fprintf(out, "completed in %s\n", p.ElapsedTime.Round(time.Millisecond))
		}
	}
}

func deepSleep(ctx context.Context, dev *gestic.Device, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: sleep <1|2>")
	}
	switch args[0] {
	case "1":
		return dev.EnterDeepSleep(ctx, gestic.TriggerDeepSleep1)
	case "2":
		return dev.EnterDeepSleep(ctx, gestic.TriggerDeepSleep2)
	default:
		return fmt.Errorf("unknown deep sleep mode %q", args[0])
	}
}

func getParam(ctx context.Context, dev *gestic.Device, args []string, out io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: get <param>")
	}

	var (
		on  bool
		err error
	)
	switch args[0] {
	case "touch":
		on, err = dev.TouchDetection(ctx)
	case "airwheel":
		on, err = dev.AirWheelEnabled(ctx)
	case "approach":
		on, err = dev.ApproachDetection(ctx)
	case "autocal":
		on, err = dev.AutoCalibration(ctx)
	case "gestures":
		mask, err := dev.EnabledGestures(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "gestures: 0x%02X\n", mask)
		return nil
	case "output":
		flags, locked, err := dev.OutputEnableMask(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "output: 0x%04X locked: 0x%04X\n", uint16(flags), uint16(locked))
		return nil
	default:
		id, perr := strconv.ParseUint(args[0], 0, 16)
		if perr != nil {
			return fmt.Errorf("unknown parameter %q", args[0])
		}
		arg0, arg1, err := dev.GetParam(ctx, gestic.ParameterID(id))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "0x%04X: 0x%08X 0x%08X\n", id, arg0, arg1)
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %s\n", args[0], onOff(on))
	return nil
}

func setParam(ctx context.Context, dev *gestic.Device, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: set <param> <value>")
	}
	name, value := args[0], args[1]

	switch name {
	case "touch", "airwheel", "approach", "autocal":
		on, err := parseOnOff(value)
		if err != nil {
			return err
		}
		switch name {
		case "touch":
			return dev.SetTouchDetection(ctx, on)
		case "airwheel":
			return dev.SetAirWheelEnabled(ctx, on)
		case "approach":
			return dev.SetApproachDetection(ctx, on)
		default:
			return dev.SetAutoCalibration(ctx, on)
		}
	case "gestures":
		mask, err := strconv.ParseUint(value, 0, 32)
		if err != nil {
			return fmt.Errorf("gesture mask: %w", err)
		}
		return dev.SetEnabledGestures(ctx, uint32(mask))
	case "output":
		mask, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return fmt.Errorf("output mask: %w", err)
		}
		m := gestic.OutputMask(mask)
		return dev.SetOutputEnableMask(ctx, m, 0, m)
	case "freqs":
		freqs, err := parseFrequencies(value)
		if err != nil {
			return err
		}
		return dev.SelectFrequencies(ctx, freqs)
	default:
		return fmt.Errorf("unknown parameter %q", name)
	}
}

func persist(ctx context.Context, dev *gestic.Device, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: persist <afe|dsp|system>")
	}
	categories := map[string]gestic.PersistentCategory{
		"afe":    gestic.PersistentAFE,
		"dsp":    gestic.PersistentDSP,
		"system": gestic.PersistentSystem,
	}
	c, ok := categories[strings.ToLower(args[0])]
	if !ok {
		return fmt.Errorf("unknown category %q", args[0])
	}
	return dev.MakePersistent(ctx, c)
}

func listDevices(out io.Writer) error {
	ports, err := serialport.List()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "serial ports:")
	for _, p := range ports {
		fmt.Fprintf(out, "  %s\n", p)
	}

	m, err := hid.NewManager()
	if err != nil {
		return err
	}
	infos, err := m.List()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "HID devices:")
	for _, info := range infos {
		fmt.Fprintf(out, "  %s\n", info)
	}
	return nil
}

// parseFrequencies reads a comma separated list of frequency numbers 1..5.
func parseFrequencies(s string) (gestic.Frequencies, error) {
	if s == "all" {
		return gestic.FreqAll, nil
	}
	var freqs gestic.Frequencies
	for _, field := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil || n < 1 || n > 5 {
			return 0, fmt.Errorf("frequency %q is not 1..5", field)
		}
		freqs |= gestic.Freq1 << (n - 1)
	}
	return freqs, nil
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "1", "yes":
		return true, nil
	case "off", "false", "0", "no":
		return false, nil
	}
	return false, fmt.Errorf("%q is not on or off", s)
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
