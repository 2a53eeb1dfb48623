package gestic

import (
	"fmt"
)

const (
	sensorDataHeaderSize = 8

	dspStatusSize = 2
	gestureSize   = 4
	touchSize     = 4
	airWheelSize  = 2
	positionSize  = 6
	noiseSize     = 4
	channelSize   = 4
)

// electrodeConfig maps the system mode field of the output mask to the
// number of electrodes that deliver CIC and SD signals.
var electrodeConfig = [...]int{4, 5}

// decoder accumulates Sensor_Data_Output frames into a snapshot.
// The caller serializes access.
type decoder struct {
	internal      Snapshot
	lastTimestamp uint8
	published     int
}

func electrodeCount(mask OutputMask) (int, error) {
	mode := int(mask&OutputElectrodeConfig) >> 8
	if mode >= len(electrodeConfig) {
		return 0, fmt.Errorf("%w: unsupported electrode configuration %d", ErrProtocol, mode)
	}
	return electrodeConfig[mode], nil
}

// sensorDataSize returns the length a frame with the given mask must have.
func sensorDataSize(mask OutputMask) (size, electrodes int, err error) {
	size = sensorDataHeaderSize
	for _, block := range []struct {
		bit  OutputMask
		size int
	}{
		{OutputDSPStatus, dspStatusSize},
		{OutputGesture, gestureSize},
		{OutputTouch, touchSize},
		{OutputAirWheel, airWheelSize},
		{OutputPosition, positionSize},
		{OutputNoisePower, noiseSize},
	} {
		if mask&block.bit != 0 {
			size += block.size
		}
	}

	if mask&(OutputCIC|OutputSD) != 0 {
		electrodes, err = electrodeCount(mask)
		if err != nil {
			return 0, 0, err
		}
		if mask&OutputCIC != 0 {
			size += electrodes * channelSize
		}
		if mask&OutputSD != 0 {
			size += electrodes * channelSize
		}
	}
	return size, electrodes, nil
}

// decode applies one frame to the internal snapshot. A frame too short for
// the blocks its mask announces is rejected before anything is applied.
func (d *decoder) decode(m Message) error {
	if len(m) < sensorDataHeaderSize {
		return fmt.Errorf("%w: Sensor_Data_Output is %d bytes", ErrProtocol, len(m))
	}
	rawMask, _ := m.U16(4)
	mask := OutputMask(rawMask)
	timestamp, _ := m.U8(6)
	rawInfo, _ := m.U8(7)
	info := SystemInfo(rawInfo)

	size, electrodes, err := sensorDataSize(mask)
	if err != nil {
		return err
	}
	if len(m) < size {
		return fmt.Errorf("%w: Sensor_Data_Output mask 0x%04X needs %d bytes, got %d", ErrProtocol, uint16(mask), size, len(m))
	}

	dest := &d.internal

	// Timestamps wrap at 256; a repeated timestamp still counts as a frame.
	increment := int(timestamp - d.lastTimestamp)
	if increment == 0 {
		increment = 1
	}
	dest.FrameCounter += increment
	d.lastTimestamp = timestamp
	counter := dest.FrameCounter
	dest.SystemInfo = info

	cursor := sensorDataHeaderSize

	if mask&OutputDSPStatus != 0 {
		calibration, _ := m.U8(cursor)
		frequency, _ := m.U8(cursor + 1)
		if calibration != 0 {
			dest.Calibration.Reason = CalibrationReason(calibration)
			dest.Calibration.LastEvent = counter
		}
		if frequency != dest.Frequency.Frequency {
			dest.Frequency.Frequency = frequency
			dest.Frequency.Changed = true
			dest.Frequency.LastEvent = counter
		}
		cursor += dspStatusSize
	}

	if mask&OutputGesture != 0 {
		gestureInfo, _ := m.U32(cursor)
		raw := gestureInfo & 0xFF
		if raw > 1 {
			dest.Gesture.Gesture = Gesture(raw - 1)
			dest.Gesture.Flags = GestureFlags(gestureInfo) & gestureFlagsMask
			dest.Gesture.LastEvent = counter
		}
		cursor += gestureSize
	}

	if mask&OutputTouch != 0 {
		touchInfo, _ := m.U32(cursor)
		touch := TouchFlags(touchInfo) & touchMask
		tap := TouchFlags(touchInfo) & tapMask
		if touch != dest.Touch.Flags {
			dest.Touch.Flags = touch
			dest.Touch.LastEvent = counter
			dest.Touch.LastTouchEventStart = counter - int((touchInfo&0xFF0000)>>16)
		}
		if tap != 0 {
			dest.Touch.TapFlags = tap
			dest.Touch.LastTapEvent = counter
		}
		cursor += touchSize
	}

	airWheelActive := info.Has(InfoAirWheelValid)
	if mask&OutputAirWheel != 0 {
		if airWheelActive {
			dest.AirWheel.Counter, _ = m.U8(cursor)
		}
		cursor += airWheelSize
	}
	if airWheelActive != dest.AirWheel.Active {
		dest.AirWheel.Active = airWheelActive
		dest.AirWheel.LastEvent = counter
	}

	if mask&OutputPosition != 0 {
		if info.Has(InfoPositionValid) {
			dest.Position.X, _ = m.U16(cursor)
			dest.Position.Y, _ = m.U16(cursor + 2)
			dest.Position.Z, _ = m.U16(cursor + 4)
		}
		cursor += positionSize
	}

	dest.NoisePower.Valid = false
	if mask&OutputNoisePower != 0 {
		if info.Has(InfoNoisePowerValid) {
			dest.NoisePower.Value, _ = m.F32(cursor)
			dest.NoisePower.Valid = true
		}
		cursor += noiseSize
	}

	for _, block := range []struct {
		bit OutputMask
		dst *Signal
	}{
		{OutputCIC, &dest.CIC},
		{OutputSD, &dest.SD},
	} {
		if mask&block.bit == 0 {
			continue
		}
		if info.Has(InfoRawDataValid) {
			for i := 0; i < MaxElectrodes; i++ {
				if i < electrodes {
					block.dst[i], _ = m.F32(cursor + channelSize*i)
				} else {
					block.dst[i] = Undefined
				}
			}
		}
		cursor += electrodes * channelSize
	}

	return nil
}

// publish hands out the accumulated state if at least one frame arrived
// since the previous publish. Event ages become relative to the current
// frame and events that did not fire since the previous publish are reset.
func (d *decoder) publish() (Snapshot, error) {
	last := d.published
	current := d.internal.FrameCounter
	count := current - last
	if count <= 0 {
		return Snapshot{}, ErrNoData
	}

	r := d.internal

	if r.Gesture.LastEvent <= last {
		if r.Gesture.Flags&GestureInProgress == 0 {
			r.Gesture.Gesture = GestureNone
		}
		r.Gesture.Flags &= GestureInProgress
	}
	r.Gesture.LastEvent = current - r.Gesture.LastEvent

	r.Touch.LastEvent = current - r.Touch.LastEvent
	if r.Touch.LastTapEvent <= last {
		r.Touch.TapFlags = 0
	}
	r.Touch.LastTapEvent = current - r.Touch.LastTapEvent
	r.Touch.LastTouchEventStart = current - r.Touch.LastTouchEventStart

	r.AirWheel.LastEvent = current - r.AirWheel.LastEvent

	if r.Calibration.LastEvent <= last {
		r.Calibration.Reason = 0
	}
	r.Calibration.LastEvent = current - r.Calibration.LastEvent

	if r.Frequency.LastEvent <= last {
		r.Frequency.Changed = false
	}
	r.Frequency.LastEvent = current - r.Frequency.LastEvent

	r.Skipped = count - 1
	d.published = current
	return r, nil
}

// pending reports whether a frame arrived since the last publish.
func (d *decoder) pending() bool {
	return d.internal.FrameCounter > d.published
}
