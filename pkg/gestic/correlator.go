package gestic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// SendMessage writes m and waits for the System_Status that acknowledges it.
// Missing or negative acknowledgements are retried; transport failures are not.
func (d *Device) SendMessage(ctx context.Context, m Message, timeout time.Duration) error {
	d.txMu.Lock()
	defer d.txMu.Unlock()

	return d.send(ctx, m, timeout)
}

// RequestMessage asks the device to send the message id and waits for the
// acknowledgement. The requested message itself is handled by the dispatcher.
func (d *Device) RequestMessage(ctx context.Context, id MessageID, param uint32, timeout time.Duration) error {
	d.txMu.Lock()
	defer d.txMu.Unlock()

	return d.send(ctx, RequestMessage(id, param), timeout)
}

func (d *Device) send(ctx context.Context, m Message, timeout time.Duration) error {
	if len(m) < headerSize || int(m[0]) != len(m) {
		return fmt.Errorf("%w: message size byte %d does not match length %d", ErrBadParam, m.size(), len(m))
	}

	id := m.ID()
	var err error
	for attempt := 1; attempt <= d.cfg.Retries; attempt++ {
		err = d.attempt(ctx, m, timeout)
		if err == nil {
			return nil
		}

		var ioErr *IOError
		if errors.As(err, &ioErr) || errors.Is(err, ErrClosed) || ctx.Err() != nil {
			return err
		}

		d.log.Debug("request attempt failed",
			slog.String("id", id.String()),
			slog.Int("attempt", attempt),
			slog.Any("error", err))
	}

	d.log.Warn("request failed",
		slog.String("id", id.String()),
		slog.Int("attempts", d.cfg.Retries),
		slog.Any("error", err))
	return err
}

func (d *Device) attempt(ctx context.Context, m Message, timeout time.Duration) error {
	p := &pendingStatus{id: m.ID(), done: make(chan struct{})}

	d.mu.Lock()
	d.status = p
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		if d.status == p {
			d.status = nil
		}
		d.mu.Unlock()
	}()

	if err := d.write(m); err != nil {
		return err
	}

	if err := d.await(ctx, p.done, expiry(timeout)); err != nil {
		if errors.Is(err, ErrNoData) {
			return fmt.Errorf("%w: %s", ErrNoResponse, p.id)
		}
		return err
	}

	if p.code != SystemNoError {
		return &SystemError{Op: p.id, Code: p.code}
	}
	return nil
}

func (m Message) size() int {
	if len(m) == 0 {
		return 0
	}
	return int(m[0])
}
