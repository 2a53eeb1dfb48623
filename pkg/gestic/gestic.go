package gestic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/seagrayinc/gestic/internal/frame"
)

// Transport moves raw bytes between the host and the sensor.
// Read returns 0, nil when nothing is available.
type Transport interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Reset() error
	Close() error
}

// Device is a session with one GestIC sensor.
//
// By default every blocking call pumps the transport itself. When the
// integration layer runs Run on its own goroutine, Run owns the transport
// reads and the other calls wait for the messages it dispatches.
type Device struct {
	transport Transport
	cfg       Config
	log       *slog.Logger

	// readMu guards the extractor and read buffer.
	readMu    sync.Mutex
	extractor frame.Extractor
	buf       []byte

	// txMu allows one request transaction at a time.
	txMu sync.Mutex

	mu         sync.Mutex
	status     *pendingStatus
	version    *pendingVersion
	param      *pendingParam
	loaderWait chan struct{}
	fwValid    byte
	decoder    decoder
	runDone    chan struct{}
	closed     bool
}

type pendingStatus struct {
	id   MessageID
	code SystemErrorCode
	done chan struct{}
}

type pendingVersion struct {
	info     FwVersionInfo
	received bool
	done     chan struct{}
}

type pendingParam struct {
	value    RuntimeParameter
	received bool
}

// Open starts a session over t. No I/O is performed.
//
// Example:
//
//	port, err := serialport.Open("/dev/ttyACM0")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	dev, err := gestic.Open(port, gestic.WithTimeout(200*time.Millisecond))
func Open(t Transport, opts ...Option) (*Device, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil transport", ErrBadParam)
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Device{
		transport: t,
		cfg:       cfg,
		log:       logger,
		buf:       make([]byte, cfg.ReadBufferSize),
		fwValid:   fwValidUnknown,
	}, nil
}

// Close closes the transport. Pending waits fail once their timeout expires.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	return d.transport.Close()
}

// Reset asks the transport to reset the sensor. The sensor answers with a
// Fw_Version_Info message once it is up again.
func (d *Device) Reset() error {
	if err := d.transport.Reset(); err != nil {
		if errors.Is(err, ErrResetUnsupported) {
			return err
		}
		return &IOError{Op: "reset", Err: err}
	}
	return nil
}

// Run reads and dispatches messages until ctx is done or the transport fails.
// It blocks; start it on a dedicated goroutine to let Publish and requests
// run concurrently without pumping the transport themselves.
func (d *Device) Run(ctx context.Context) error {
	done := make(chan struct{})
	d.mu.Lock()
	if d.runDone != nil {
		d.mu.Unlock()
		return errors.New("gestic: Run already active")
	}
	d.runDone = done
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.runDone = nil
		d.mu.Unlock()
		close(done)
	}()

	d.log.Debug("background reader started")
	for {
		if err := d.receive(ctx, time.Time{}, nil); err != nil {
			if ctx.Err() != nil {
				d.log.Debug("background reader stopped")
				return ctx.Err()
			}
			d.log.Warn("background reader failed", slog.Any("error", err))
			return err
		}
	}
}

func (d *Device) running() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.runDone
}

// expiry converts a timeout to a deadline. Forever maps to the zero time.
func expiry(timeout time.Duration) time.Time {
	if timeout < 0 {
		return time.Time{}
	}
	return time.Now().Add(timeout)
}

func expired(deadline time.Time) bool {
	return !deadline.IsZero() && !time.Now().Before(deadline)
}

// receive dispatches the next complete message. It returns ErrNoData once
// the deadline passes without one, and nil early if done is closed.
func (d *Device) receive(ctx context.Context, deadline time.Time, done <-chan struct{}) error {
	d.readMu.Lock()
	defer d.readMu.Unlock()

	for {
		if msg, ok := d.extractor.Next(); ok {
			d.dispatch(Message(msg))
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := d.transport.Read(d.buf)
		if err != nil {
			return &IOError{Op: "read", Err: err}
		}
		if n > 0 {
			d.extractor.Feed(d.buf[:n])
			continue
		}

		if expired(deadline) {
			return ErrNoData
		}

		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.cfg.PollInterval):
		}
	}
}

// await blocks until done is closed, pumping the transport unless Run does.
// The deadline holds even while unrelated messages keep arriving.
func (d *Device) await(ctx context.Context, done <-chan struct{}, deadline time.Time) error {
	for {
		select {
		case <-done:
			return nil
		default:
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if stopped := d.running(); stopped != nil {
			var expire <-chan time.Time
			if !deadline.IsZero() {
				timer := time.NewTimer(time.Until(deadline))
				defer timer.Stop()
				expire = timer.C
			}

			select {
			case <-done:
				return nil
			case <-expire:
				return ErrNoData
			case <-ctx.Done():
				return ctx.Err()
			case <-stopped:
				// Run returned; pump the transport from here on.
				continue
			}
		}

		err := d.receive(ctx, deadline, done)
		select {
		case <-done:
			return nil
		default:
		}
		if err != nil {
			return err
		}
		if expired(deadline) {
			return ErrNoData
		}
	}
}

func (d *Device) write(m Message) error {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return ErrClosed
	}

	wire := frame.Encode(m)
	d.log.Debug("writing message",
		slog.String("id", m.ID().String()),
		slog.String("bytes", frame.EncodeToString(wire)))

	if _, err := d.transport.Write(wire); err != nil {
		return &IOError{Op: "write", Err: err}
	}
	return nil
}

// Publish returns the sensor state accumulated since the previous call, or
// ErrNoData if no frame arrived in between. Without Run it first drains
// whatever input the transport already holds.
func (d *Device) Publish(ctx context.Context) (Snapshot, error) {
	if d.running() == nil {
		for !d.framePending() {
			err := d.receive(ctx, time.Now(), nil)
			if errors.Is(err, ErrNoData) {
				break
			}
			if err != nil {
				return Snapshot{}, err
			}
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.decoder.publish()
}

func (d *Device) framePending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.decoder.pending()
}

// Stream publishes snapshots to out until ctx is done, polling every
// interval when nothing new arrived. It blocks.
func (d *Device) Stream(ctx context.Context, out chan<- Snapshot, interval time.Duration) error {
	if interval <= 0 {
		interval = d.cfg.PollInterval
	}

	for {
		snap, err := d.Publish(ctx)
		switch {
		case err == nil:
			select {
			case out <- snap:
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		case !errors.Is(err, ErrNoData):
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
