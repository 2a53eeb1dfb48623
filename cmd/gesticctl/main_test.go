package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seagrayinc/gestic/internal/sim"
	"github.com/seagrayinc/gestic/pkg/fwimage"
	"github.com/seagrayinc/gestic/pkg/gestic"
)

func isolateConfig(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", dir)
}

func TestLoadConfigDefaults(t *testing.T) {
	isolateConfig(t)

	cfg, args, err := loadConfig([]string{"version"})
	require.NoError(t, err)

	assert.Equal(t, []string{"version"}, args)
	assert.Equal(t, "serial", cfg.Transport)
	assert.Equal(t, 115200, cfg.Baud)
	assert.Equal(t, 0x42, cfg.Address)
	assert.Equal(t, 100*time.Millisecond, cfg.Timeout)
	assert.Equal(t, 3, cfg.Retries)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, uint32(1), cfg.Session)
}

func TestLoadConfigEnvironment(t *testing.T) {
	isolateConfig(t)
	t.Setenv("GESTIC_TRANSPORT", "SIM")
	t.Setenv("GESTIC_TIMEOUT", "250ms")
	t.Setenv("GESTIC_LOG_LEVEL", "debug")

	cfg, _, err := loadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, "sim", cfg.Transport)
	assert.Equal(t, 250*time.Millisecond, cfg.Timeout)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)

	cfg, _, err = loadConfig([]string{"--timeout", "1s"})
	require.NoError(t, err)
	assert.Equal(t, time.Second, cfg.Timeout, "flags win over the environment")
}

func TestLoadConfigFile(t *testing.T) {
	isolateConfig(t)
	path := filepath.Join(t.TempDir(), "gestic.yaml")
	require.NoError(t, os.WriteFile(path, []byte("transport: mcp2221\naddress: 0x43\nreset-pin: 2\nretries: 5\n"), 0o600))

	cfg, _, err := loadConfig([]string{"--config", path, "-t", "i2c"})
	require.NoError(t, err)
	assert.Equal(t, "i2c", cfg.Transport)
	assert.Equal(t, 0x43, cfg.Address)
	assert.Equal(t, 2, cfg.ResetPin)
	assert.Equal(t, 5, cfg.Retries)
}

func TestLoadConfigErrors(t *testing.T) {
	isolateConfig(t)

	_, _, err := loadConfig([]string{"--log-level", "loud"})
	assert.Error(t, err)

	_, _, err = loadConfig([]string{"--address", "0x80"})
	assert.Error(t, err)

	_, _, err = loadConfig([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err, "an explicit config file must exist")
}

func simConfig() Config {
	return Config{
		Transport:    "sim",
		Address:      0x42,
		Timeout:      50 * time.Millisecond,
		Retries:      3,
		PollInterval: time.Millisecond,
		Session:      1,
	}
}

func TestRunVersion(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), simConfig(), []string{"version"}, &out))

	assert.Contains(t, out.String(), sim.DefaultVersion)
	assert.Contains(t, out.String(), "fw_valid: 0xAA")
}

func TestRunParameters(t *testing.T) {
	ctx := context.Background()
	cfg := simConfig()

	var out bytes.Buffer
	require.NoError(t, run(ctx, cfg, []string{"set", "touch", "off"}, &out))
	require.NoError(t, run(ctx, cfg, []string{"set", "freqs", "1,3"}, &out))
	require.NoError(t, run(ctx, cfg, []string{"calibrate"}, &out))
	require.NoError(t, run(ctx, cfg, []string{"persist", "dsp"}, &out))

	require.NoError(t, run(ctx, cfg, []string{"get", "output"}, &out))
	assert.Contains(t, out.String(), "output: 0x001F")

	out.Reset()
	require.NoError(t, run(ctx, cfg, []string{"get", "0x0090"}, &out))
	assert.Contains(t, out.String(), "0x0090: 0x00000020")

	assert.Error(t, run(ctx, cfg, []string{"set", "touch", "maybe"}, &out))
	assert.Error(t, run(ctx, cfg, []string{"get", "colour"}, &out))
	assert.Error(t, run(ctx, cfg, []string{"frobnicate"}, &out))
	assert.Error(t, run(ctx, cfg, nil, &out))
}

func TestRunStream(t *testing.T) {
	cfg := simConfig()
	cfg.Duration = 50 * time.Millisecond

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), cfg, []string{"stream"}, &out))
	assert.Contains(t, out.String(), "frame=")
}

func TestRunFlashLibrary(t *testing.T) {
	data := make([]byte, 300)
	for i := range data {
		data[i] = byte(i * 7)
	}
	records, err := fwimage.Split(0x2000, data)
	require.NoError(t, err)
	img := &fwimage.Image{Records: records}
	img.SetVersion("1.3.15;p:HillstarV01")

	path := filepath.Join(t.TempDir(), "library.gfw")
	f, err := os.Create(path)
	require.NoError(t, err)
	_, err = img.WriteTo(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	cfg := simConfig()
	cfg.Library = path

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), cfg, []string{"flash"}, &out))
	assert.Contains(t, out.String(), "library: 1.3.15;p:HillstarV01 (300 bytes)")
	assert.Contains(t, out.String(), "3/3 records")
	assert.Contains(t, out.String(), "done")

	cfg.Library = ""
	assert.Error(t, run(context.Background(), cfg, []string{"flash"}, &out))
}

func TestParseFrequencies(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want gestic.Frequencies
		ok   bool
	}{
		{"all", gestic.FreqAll, true},
		{"1", gestic.Freq1, true},
		{"1, 3,5", gestic.Freq1 | gestic.Freq3 | gestic.Freq5, true},
		{"6", 0, false},
		{"", 0, false},
	} {
		got, err := parseFrequencies(tc.in)
		if !tc.ok {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestUnknownTransport(t *testing.T) {
	_, err := openTransport(Config{Transport: "carrier-pigeon"})
	assert.Error(t, err)
}
