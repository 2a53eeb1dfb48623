package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the resolved command line configuration. Values come from
// flags, then GESTIC_* environment variables, then gestic.yaml.
type Config struct {
	Transport string
	Device    string
	Baud      int
	Address   int
	ResetPin  int

	Timeout      time.Duration
	Retries      int
	PollInterval time.Duration
	LogLevel     slog.Level

	// stream
	Duration   time.Duration
	OutputMask uint16

	// flash
	Loader  string
	Library string
	Verify  bool
	Session uint32
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("gesticctl", pflag.ContinueOnError)
	fs.String("config", "", "configuration file (default ./gestic.yaml)")
	fs.StringP("transport", "t", "serial", "serial, usb, mcp2221, i2c, chardev or sim")
	fs.StringP("device", "d", "", "device path for serial, i2c and chardev transports")
	fs.Int("baud", 115200, "serial baud rate")
	fs.Int("address", 0x42, "I2C address of the sensor")
	fs.Int("reset-pin", 0, "MCP2221A GPIO wired to the sensor reset, -1 for none")
	fs.Duration("timeout", 100*time.Millisecond, "request timeout")
	fs.Int("retries", 3, "attempts per request")
	fs.Duration("poll-interval", 10*time.Millisecond, "sleep between empty reads")
	fs.String("log-level", "info", "debug, info, warn or error")
	fs.Duration("duration", 0, "stop streaming after this long (0 runs until interrupted)")
	fs.Uint16("output-mask", 0, "data output enable mask to set before streaming")
	fs.String("loader", "", "library loader image to flash first")
	fs.String("library", "", "library image to flash")
	fs.Bool("verify", false, "verify the images instead of programming them")
	fs.Uint32("session", 1, "flash session ID")
	return fs
}

// loadConfig parses args and merges the other configuration sources. It
// returns the positional arguments left after the flags.
func loadConfig(args []string) (Config, []string, error) {
	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return Config{}, nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("GESTIC")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return Config{}, nil, fmt.Errorf("bind flags: %w", err)
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("gestic")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "gestic"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, nil, fmt.Errorf("read config: %w", err)
		}
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(v.GetString("log-level"))); err != nil {
		return Config{}, nil, fmt.Errorf("log level: %w", err)
	}

	cfg := Config{
		Transport:    strings.ToLower(v.GetString("transport")),
		Device:       v.GetString("device"),
		Baud:         v.GetInt("baud"),
		Address:      v.GetInt("address"),
		ResetPin:     v.GetInt("reset-pin"),
		Timeout:      v.GetDuration("timeout"),
		Retries:      v.GetInt("retries"),
		PollInterval: v.GetDuration("poll-interval"),
		LogLevel:     level,
		Duration:     v.GetDuration("duration"),
		OutputMask:   v.GetUint16("output-mask"),
		Loader:       v.GetString("loader"),
		Library:      v.GetString("library"),
		Verify:       v.GetBool("verify"),
		Session:      v.GetUint32("session"),
	}
	if cfg.Address <= 0 || cfg.Address > 0x7F {
		return Config{}, nil, fmt.Errorf("address 0x%X is not a 7-bit I2C address", cfg.Address)
	}
	return cfg, fs.Args(), nil
}
