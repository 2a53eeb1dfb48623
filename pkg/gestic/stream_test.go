package gestic

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seagrayinc/gestic/internal/sim"
)

const allValid = sim.InfoDSPRunning | sim.InfoPositionValid | sim.InfoAirWheelValid | sim.InfoRawDataValid | sim.InfoNoisePowerValid

func decodeFrame(t *testing.T, d *decoder, f sim.SensorFrame) {
	t.Helper()
	require.NoError(t, d.decode(Message(f.Encode())))
}

func TestDecodeFullFrame(t *testing.T) {
	var d decoder
	decodeFrame(t, &d, sim.SensorFrame{
		Mask:        sim.OutputDSPStatus | sim.OutputGesture | sim.OutputTouch | sim.OutputAirWheel | sim.OutputPosition | sim.OutputNoisePower,
		Timestamp:   1,
		SystemInfo:  allValid,
		CalibReason: uint8(CalibStartup),
		Frequency:   115,
		GestureInfo: uint32(GestureEdgeFlick) | 3,
		TouchInfo:   uint32(TouchSouth|TapWest) | 2<<16,
		AirWheel:    0x40,
		X:           100, Y: 200, Z: 300,
		NoisePower: 2.5,
	})

	snap, err := d.publish()
	require.NoError(t, err)

	assert.Equal(t, 1, snap.FrameCounter)
	assert.Zero(t, snap.Skipped)
	assert.True(t, snap.SystemInfo.Has(InfoDSPRunning))

	assert.Equal(t, CalibStartup, snap.Calibration.Reason)
	assert.Zero(t, snap.Calibration.LastEvent)
	assert.Equal(t, uint8(115), snap.Frequency.Frequency)
	assert.True(t, snap.Frequency.Changed)

	assert.Equal(t, GestureFlickEastToWest, snap.Gesture.Gesture)
	assert.True(t, snap.Gesture.EdgeFlick())
	assert.False(t, snap.Gesture.InProgress())
	assert.Zero(t, snap.Gesture.LastEvent)

	assert.True(t, snap.Touch.Flags.Touch().South)
	assert.True(t, snap.Touch.TapFlags.Tap().West)
	assert.False(t, snap.Touch.TapFlags.DoubleTap().Active())
	assert.Equal(t, 2, snap.Touch.LastTouchEventStart)

	assert.True(t, snap.AirWheel.Active)
	assert.Equal(t, uint8(0x40), snap.AirWheel.Counter)
	assert.Equal(t, Position{X: 100, Y: 200, Z: 300}, snap.Position)
	assert.Equal(t, NoisePower{Value: 2.5, Valid: true}, snap.NoisePower)
}

func TestDecodeGestureIDs(t *testing.T) {
	tests := []struct {
		name string
		raw  uint32
		want Gesture
	}{
		{"no gesture", 0, GestureNone},
		{"garbage", 1, GestureNone},
		{"first flick", 2, GestureFlickWestToEast},
		{"counter clockwise", 7, GestureCircleCounterClockwise},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d decoder
			decodeFrame(t, &d, sim.SensorFrame{Mask: sim.OutputGesture, Timestamp: 1, GestureInfo: tt.raw})
			snap, err := d.publish()
			require.NoError(t, err)
			assert.Equal(t, tt.want, snap.Gesture.Gesture)
		})
	}
}

func TestDecodeFrameCounter(t *testing.T) {
	var d decoder
	for _, ts := range []uint8{10, 10, 5} {
		decodeFrame(t, &d, sim.SensorFrame{Timestamp: ts})
	}
	// 10, then a repeat counts once, then 5 wraps around from 10.
	assert.Equal(t, 10+1+251, d.internal.FrameCounter)
}

func TestDecodeRejectsShortFrame(t *testing.T) {
	var d decoder
	m := Message(sim.SensorFrame{Mask: sim.OutputPosition, Timestamp: 4, SystemInfo: sim.InfoPositionValid, X: 9}.Encode())

	err := d.decode(m[:len(m)-1])
	assert.ErrorIs(t, err, ErrProtocol)
	assert.Equal(t, Snapshot{}, d.internal, "nothing may be applied")

	assert.ErrorIs(t, d.decode(Message{0x06, 0, 0, 0x91, 0, 0}), ErrProtocol)
}

func TestDecodeElectrodeConfig(t *testing.T) {
	var d decoder
	decodeFrame(t, &d, sim.SensorFrame{
		Mask:       sim.OutputCIC | sim.OutputSD,
		Timestamp:  1,
		SystemInfo: sim.InfoRawDataValid,
		CIC:        []float32{1, 2, 3, 4},
		SD:         []float32{5, 6, 7, 8},
	})
	assert.Equal(t, float32(4), d.internal.CIC[3])
	assert.Equal(t, float32(8), d.internal.SD[3])
	assert.True(t, IsUndefined(d.internal.CIC[4]))
	assert.True(t, IsUndefined(d.internal.SD[4]))

	decodeFrame(t, &d, sim.SensorFrame{
		Mask:       sim.OutputCIC | sim.OutputFiveElectrodes,
		Timestamp:  2,
		SystemInfo: sim.InfoRawDataValid,
		CIC:        []float32{1, 2, 3, 4, 9},
	})
	assert.Equal(t, float32(9), d.internal.CIC[4])

	bad := sim.SensorFrame{Mask: sim.OutputCIC | 0x0200, Timestamp: 3}.Encode()
	assert.ErrorIs(t, d.decode(Message(bad)), ErrProtocol)

	// The electrode mode only matters when signals are present.
	decodeFrame(t, &d, sim.SensorFrame{Mask: 0x0200, Timestamp: 4})
}

func TestDecodeInvalidBlocksKeepState(t *testing.T) {
	var d decoder
	decodeFrame(t, &d, sim.SensorFrame{
		Mask:       sim.OutputAirWheel | sim.OutputPosition | sim.OutputNoisePower,
		Timestamp:  1,
		SystemInfo: allValid,
		AirWheel:   12,
		X:          1, Y: 2, Z: 3,
		NoisePower: 1,
	})
	decodeFrame(t, &d, sim.SensorFrame{
		Mask:      sim.OutputAirWheel | sim.OutputPosition | sim.OutputNoisePower,
		Timestamp: 2,
		AirWheel:  99,
		X:         7, Y: 8, Z: 9,
	})

	assert.False(t, d.internal.AirWheel.Active)
	assert.Equal(t, 2, d.internal.AirWheel.LastEvent)
	assert.Equal(t, uint8(12), d.internal.AirWheel.Counter)
	assert.Equal(t, Position{X: 1, Y: 2, Z: 3}, d.internal.Position)
	assert.False(t, d.internal.NoisePower.Valid)
}

// sensorMessage lays out a Sensor_Data_Output message byte by byte.
func sensorMessage(mask OutputMask, info SystemInfo, blocks ...[]byte) Message {
	m := []byte{0, 0, 0, byte(MsgSensorDataOutput), 0, 0, 1, byte(info)}
	binary.LittleEndian.PutUint16(m[4:], uint16(mask))
	for _, b := range blocks {
		m = append(m, b...)
	}
	m[0] = byte(len(m))
	return Message(m)
}

func le16(vs ...uint16) []byte {
	var b []byte
	for _, v := range vs {
		b = binary.LittleEndian.AppendUint16(b, v)
	}
	return b
}

func le32(v uint32) []byte { return binary.LittleEndian.AppendUint32(nil, v) }

func TestDecodeBlockAlignment(t *testing.T) {
	for _, tc := range []struct {
		name  string
		msg   Message
		check func(t *testing.T, s Snapshot)
	}{
		{
			name: "touch follows gesture without info bits",
			msg: sensorMessage(OutputGesture|OutputTouch, 0,
				le32(0x00000001),
				le32(uint32(TouchNorth))),
			check: func(t *testing.T, s Snapshot) {
				assert.Equal(t, GestureNone, s.Gesture.Gesture)
				assert.True(t, s.Touch.Flags.Touch().North)
				assert.False(t, s.Touch.Flags.Touch().South)
			},
		},
		{
			name: "position follows an invalid air wheel",
			msg: sensorMessage(OutputAirWheel|OutputPosition, InfoPositionValid,
				[]byte{0xAA, 0xBB},
				le16(0x0102, 0x0304, 0x0506)),
			check: func(t *testing.T, s Snapshot) {
				assert.False(t, s.AirWheel.Active)
				assert.Zero(t, s.AirWheel.Counter)
				assert.Equal(t, Position{X: 0x0102, Y: 0x0304, Z: 0x0506}, s.Position)
			},
		},
		{
			name: "noise follows an invalid position",
			msg: sensorMessage(OutputPosition|OutputNoisePower, InfoNoisePowerValid,
				le16(0xFFFF, 0xFFFF, 0xFFFF),
				le32(math.Float32bits(3.25))),
			check: func(t *testing.T, s Snapshot) {
				assert.Equal(t, Position{}, s.Position)
				assert.Equal(t, NoisePower{Value: 3.25, Valid: true}, s.NoisePower)
			},
		},
		{
			name: "every block present with only noise valid",
			msg: sensorMessage(OutputDSPStatus|OutputGesture|OutputTouch|OutputAirWheel|OutputPosition|OutputNoisePower, InfoNoisePowerValid,
				[]byte{0, 90},
				le32(0),
				le32(uint32(TouchSouth)),
				[]byte{0x11, 0},
				le16(7, 8, 9),
				le32(math.Float32bits(-1.5))),
			check: func(t *testing.T, s Snapshot) {
				assert.Equal(t, uint8(90), s.Frequency.Frequency)
				assert.True(t, s.Touch.Flags.Touch().South)
				assert.False(t, s.AirWheel.Active)
				assert.Equal(t, Position{}, s.Position)
				assert.Equal(t, NoisePower{Value: -1.5, Valid: true}, s.NoisePower)
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var d decoder
			require.NoError(t, d.decode(tc.msg))
			snap, err := d.publish()
			require.NoError(t, err)
			tc.check(t, snap)
		})
	}
}

func TestPublishAgesEvents(t *testing.T) {
	var d decoder

	_, err := d.publish()
	assert.ErrorIs(t, err, ErrNoData)

	decodeFrame(t, &d, sim.SensorFrame{
		Mask:        sim.OutputDSPStatus | sim.OutputGesture | sim.OutputTouch,
		Timestamp:   1,
		SystemInfo:  allValid,
		CalibReason: uint8(CalibForced),
		Frequency:   100,
		GestureInfo: 2,
		TouchInfo:   uint32(TouchNorth | DoubleTapEast),
	})
	_, err = d.publish()
	require.NoError(t, err)

	_, err = d.publish()
	assert.ErrorIs(t, err, ErrNoData)

	for ts := uint8(2); ts <= 4; ts++ {
		decodeFrame(t, &d, sim.SensorFrame{
			Mask:       sim.OutputDSPStatus | sim.OutputGesture | sim.OutputTouch,
			Timestamp:  ts,
			SystemInfo: allValid,
			Frequency:  100,
			TouchInfo:  uint32(TouchNorth),
		})
	}

	snap, err := d.publish()
	require.NoError(t, err)
	assert.Equal(t, 4, snap.FrameCounter)
	assert.Equal(t, 2, snap.Skipped)

	assert.Equal(t, GestureNone, snap.Gesture.Gesture)
	assert.Equal(t, 3, snap.Gesture.LastEvent)
	assert.Zero(t, snap.Calibration.Reason)
	assert.Equal(t, 3, snap.Calibration.LastEvent)
	assert.False(t, snap.Frequency.Changed)
	assert.Equal(t, 3, snap.Frequency.LastEvent)

	assert.True(t, snap.Touch.Flags.Touch().North)
	assert.Equal(t, 3, snap.Touch.LastEvent)
	assert.Zero(t, snap.Touch.TapFlags)
	assert.Equal(t, 3, snap.Touch.LastTapEvent)
}

func TestPublishKeepsGestureInProgress(t *testing.T) {
	var d decoder
	decodeFrame(t, &d, sim.SensorFrame{
		Mask:        sim.OutputGesture,
		Timestamp:   1,
		GestureInfo: uint32(GestureInProgress|GestureEdgeFlick) | 6,
	})
	_, err := d.publish()
	require.NoError(t, err)

	decodeFrame(t, &d, sim.SensorFrame{Mask: sim.OutputGesture, Timestamp: 2})
	snap, err := d.publish()
	require.NoError(t, err)

	assert.Equal(t, GestureCircleClockwise, snap.Gesture.Gesture)
	assert.True(t, snap.Gesture.InProgress())
	assert.False(t, snap.Gesture.EdgeFlick())
	assert.Equal(t, 1, snap.Gesture.LastEvent)
}

func TestAirWheelDelta(t *testing.T) {
	a := AirWheelState{Counter: 2}
	assert.Equal(t, int8(4), a.Delta(254))
	assert.Equal(t, int8(-8), a.Delta(10))
}
