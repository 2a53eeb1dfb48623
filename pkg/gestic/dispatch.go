package gestic

import (
	"log/slog"

	"github.com/seagrayinc/gestic/internal/frame"
)

// dispatch routes a message to its handler by type tag.
func (d *Device) dispatch(m Message) {
	switch m.ID() {
	case MsgSystemStatus:
		d.handleSystemStatus(m)
	case MsgFwVersionInfo:
		d.handleVersionInfo(m)
	case MsgSensorDataOutput:
		d.handleSensorData(m)
	case MsgSetRuntimeParameter:
		d.handleRuntimeParameter(m)
	default:
		d.log.Debug("ignoring message",
			slog.String("id", m.ID().String()),
			slog.String("bytes", frame.EncodeToString(m)))
	}
}

func (d *Device) handleSystemStatus(m Message) {
	st, err := parseSystemStatus(m)
	if err != nil {
		d.log.Warn("dropping malformed message", slog.Any("error", err))
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	p := d.status
	if p == nil {
		d.log.Debug("unsolicited system status",
			slog.String("for", st.MessageID.String()),
			slog.String("code", st.ErrorCode.String()))
		return
	}

	// A wakeup status completes whatever is outstanding.
	if st.MessageID == p.id || st.ErrorCode == SystemWakeupHappened {
		p.code = st.ErrorCode
		d.status = nil
		close(p.done)
	}
}

func (d *Device) handleVersionInfo(m Message) {
	info, err := parseFwVersionInfo(m)
	if err != nil {
		d.log.Warn("dropping malformed message", slog.Any("error", err))
		return
	}
	d.log.Debug("firmware version info",
		slog.Int("fw_valid", int(info.FwValid)),
		slog.String("version", info.Version))

	d.mu.Lock()
	defer d.mu.Unlock()

	d.fwValid = info.FwValid
	if p := d.version; p != nil && !p.received {
		p.info = info
		p.received = true
		close(p.done)
	}
	if d.loaderWait != nil && info.FwValid == 0 {
		close(d.loaderWait)
		d.loaderWait = nil
	}
}

func (d *Device) handleSensorData(m Message) {
	d.mu.Lock()
	err := d.decoder.decode(m)
	d.mu.Unlock()

	if err != nil {
		d.log.Warn("dropping malformed message", slog.Any("error", err))
	}
}

func (d *Device) handleRuntimeParameter(m Message) {
	p, err := parseRuntimeParameter(m)
	if err != nil {
		d.log.Warn("dropping malformed message", slog.Any("error", err))
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if req := d.param; req != nil && req.value.ID == p.ID {
		req.value = p
		req.received = true
	}
}
