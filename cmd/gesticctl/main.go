// Command gesticctl talks to a GestIC sensor: it reads the firmware version,
// streams sensor state, changes runtime parameters and flashes firmware.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/seagrayinc/gestic/pkg/gestic"
)

const usage = `usage: gesticctl [flags] <command> [args]

commands:
  version                 print the running firmware version
  stream                  print sensor state until interrupted
  flash                   program --loader and/or --library images
  calibrate               force a calibration
  sleep <1|2>             enter deep sleep 1 or 2
  get <param>             read touch, airwheel, approach, gestures, autocal, output or a numeric ID
  set <param> <value>     write touch, airwheel, approach, autocal (on/off),
                          gestures, output (mask), freqs (list like 1,3,5)
  persist <afe|dsp|system>
  devices                 list serial ports and HID devices

flags:
`

func main() {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM, syscall.SIGINT,
	)
	defer stop()

	cfg, args, err := loadConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			fmt.Fprint(os.Stderr, usage)
			newFlagSet().PrintDefaults()
			return
		}
		fmt.Fprintf(os.Stderr, "gesticctl: %v\n", err)
		os.Exit(2)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	if err := run(ctx, cfg, args, os.Stdout); err != nil {
		var sysErr *gestic.SystemError
		switch {
		case errors.As(err, &sysErr):
			slog.Error("device rejected request", slog.String("op", sysErr.Op.String()), slog.String("code", sysErr.Code.String()))
		case errors.Is(err, context.Canceled):
			slog.Info("interrupted")
		default:
			slog.Error("command failed", slog.Any("error", err))
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New("missing command, see --help")
	}
	cmd, args := args[0], args[1:]

	if cmd == "devices" {
		return listDevices(out)
	}

	t, err := openTransport(cfg)
	if err != nil {
		return fmt.Errorf("open %s transport: %w", cfg.Transport, err)
	}

	dev, err := gestic.Open(t,
		gestic.WithTimeout(cfg.Timeout),
		gestic.WithRetries(cfg.Retries),
		gestic.WithPollInterval(cfg.PollInterval),
		gestic.WithLogger(slog.Default()),
		gestic.WithProgressCallback(printProgress(out)),
	)
	if err != nil {
		_ = t.Close()
		return err
	}
	defer dev.Close()

	switch cmd {
	case "version":
		return showVersion(ctx, dev, out)
	case "stream":
		return stream(ctx, dev, cfg, out)
	case "flash":
		return flash(ctx, dev, cfg, out)
	case "calibrate":
		return dev.ForceCalibration(ctx)
	case "sleep":
		return deepSleep(ctx, dev, args)
	case "get":
		return getParam(ctx, dev, args, out)
	case "set":
		return setParam(ctx, dev, args)
	case "persist":
		return persist(ctx, dev, args)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}
