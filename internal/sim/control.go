package sim

import (
	"time"
)

// SetVersion changes the string reported in Fw_Version_Info.
func (d *Device) SetVersion(v string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.version = v
}

func (d *Device) Version() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.version
}

// SetRestartFwValid sets the fw_valid value announced after a restart
// that closes a flash session. A freshly updated loader reports 0.
func (d *Device) SetRestartFwValid(v byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.restartFwValid = v
}

// DropResponses silently drops the next n System_Status acknowledgements.
func (d *Device) DropResponses(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dropAcks = n
}

// FailNext makes the next acknowledgements carry the given error codes, in order.
func (d *Device) FailNext(codes ...uint16) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failCodes = append(d.failCodes, codes...)
}

// SuppressReplies acknowledges requests without sending the requested message.
func (d *Device) SuppressReplies(suppress bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.suppressReplies = suppress
}

// FailReset makes Reset return err. A nil err restores normal behavior.
func (d *Device) FailReset(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resetErr = err
}

func (d *Device) Resets() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resets
}

// Received returns every message written by the host so far.
func (d *Device) Received() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][]byte, len(d.received))
	copy(out, d.received)
	return out
}

// Param returns the stored value and mask of a runtime parameter.
func (d *Device) Param(id uint16) (arg0, arg1 uint32, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.params[id]
	return v[0], v[1], ok
}

// SetParam stores a runtime parameter as if it had been written.
func (d *Device) SetParam(id uint16, arg0, arg1 uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.params[id] = [2]uint32{arg0, arg1}
}

// Flash returns a copy of the simulated flash contents.
func (d *Device) Flash(addr, n int) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]byte, n)
	copy(out, d.flash[addr:])
	return out
}

// Blocks returns how many blocks the current or last session accepted.
func (d *Device) Blocks() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.blocks
}

// Session returns the id and mode of the last opened flash session.
func (d *Device) Session() (id uint32, mode byte, open bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.session, d.sessionMode, d.inSession
}

// EmitRaw queues bytes for the host exactly as given, one packet per call.
func (d *Device) EmitRaw(b []byte) {
	_, _ = d.out.Write(b)
}

// Emit queues a message with the wire marker prepended.
func (d *Device) Emit(msg []byte) {
	d.emit(msg)
}

// EmitWakeup sends an unsolicited wakeup System_Status.
func (d *Device) EmitWakeup() {
	m := newMessage(msgSystemStatus, 16)
	m[6] = 0x1A
	d.emit(m)
}

// MinStreamInterval is the shortest frame interval StartStream accepts.
const MinStreamInterval = time.Millisecond

// StartStream emits a synthetic Sensor_Data_Output frame every interval,
// generated lazily while the host reads. Intervals below MinStreamInterval
// are raised to it.
func (d *Device) StartStream(mask uint16, every time.Duration) {
	if every < MinStreamInterval {
		every = MinStreamInterval
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.streaming = true
	d.streamMask = mask
	d.streamEvery = every
	d.nextFrame = time.Now()
}

func (d *Device) StopStream() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.streaming = false
}

// streamTick emits every frame that fell due since the last read.
// Called with d.mu held.
func (d *Device) streamTick() {
	if !d.streaming {
		return
	}
	now := time.Now()
	for !d.nextFrame.After(now) {
		d.frameSeq++
		d.emit(syntheticFrame(d.streamMask, d.frameSeq).Encode())
		d.nextFrame = d.nextFrame.Add(d.streamEvery)
	}
}

// EmitFrame queues one Sensor_Data_Output message.
func (d *Device) EmitFrame(f SensorFrame) {
	d.emit(f.Encode())
}
