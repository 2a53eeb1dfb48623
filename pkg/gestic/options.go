package gestic

import (
	"log/slog"
	"time"
)

// Forever disables a timeout. Only meaningful where a wait may legitimately
// take unbounded time, such as waiting for a freshly flashed loader.
const Forever time.Duration = -1

// Config holds the device session configuration.
type Config struct {
	// Timeout bounds each request/response attempt.
	Timeout time.Duration

	// Retries is the total number of attempts for a request.
	Retries int

	// PollInterval is the sleep between empty transport reads.
	PollInterval time.Duration

	// ReadBufferSize is the size of a single transport read.
	ReadBufferSize int

	// Logger receives protocol diagnostics (optional)
	Logger *slog.Logger

	// ProgressCallback is called while an image is flashed (optional)
	ProgressCallback ProgressCallback
}

func defaultConfig() Config {
	return Config{
		Timeout:        100 * time.Millisecond,
		Retries:        3,
		PollInterval:   10 * time.Millisecond,
		ReadBufferSize: 256,
	}
}

// Option is a functional option for configuring a Device.
type Option func(*Config)

// WithTimeout sets the per-attempt response timeout.
//
// Example:
//
//	dev, err := gestic.Open(t, gestic.WithTimeout(250*time.Millisecond))
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithRetries sets the number of attempts per request. Values below one are ignored.
func WithRetries(retries int) Option {
	return func(c *Config) {
		if retries > 0 {
			c.Retries = retries
		}
	}
}

// WithPollInterval sets how long to sleep when the transport has nothing to read.
func WithPollInterval(interval time.Duration) Option {
	return func(c *Config) {
		if interval > 0 {
			c.PollInterval = interval
		}
	}
}

// WithReadBufferSize sets the size of each transport read.
func WithReadBufferSize(size int) Option {
	return func(c *Config) {
		if size > 0 {
			c.ReadBufferSize = size
		}
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithProgressCallback sets a callback to track FlashImage progress.
//
// Example:
//
//	dev, err := gestic.Open(t,
//	    gestic.WithProgressCallback(func(p gestic.Progress) {
//	        fmt.Printf("[%s] %d/%d\n", p.Phase, p.CurrentRecord, p.TotalRecords)
//	    }),
//	)
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}
