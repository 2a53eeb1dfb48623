package sim

import (
	"encoding/binary"
	"math"
)

// Output mask bits of a Sensor_Data_Output message.
const (
	OutputDSPStatus  = 0x0001
	OutputGesture    = 0x0002
	OutputTouch      = 0x0004
	OutputAirWheel   = 0x0008
	OutputPosition   = 0x0010
	OutputNoisePower = 0x0020
	OutputFiveElectrodes = 0x0100
	OutputCIC        = 0x0800
	OutputSD         = 0x1000
)

// System info bits of a Sensor_Data_Output message.
const (
	InfoPositionValid   = 0x01
	InfoAirWheelValid   = 0x02
	InfoRawDataValid    = 0x04
	InfoNoisePowerValid = 0x08
	InfoDSPRunning      = 0x80
)

// SensorFrame describes one Sensor_Data_Output message. Only the blocks
// selected by Mask are encoded.
type SensorFrame struct {
	Mask       uint16
	Timestamp  uint8
	SystemInfo uint8

	CalibReason uint8
	Frequency   uint8
	GestureInfo uint32
	TouchInfo   uint32
	AirWheel    uint8
	X, Y, Z     uint16
	NoisePower  float32
	CIC         []float32
	SD          []float32
}

func (f SensorFrame) electrodes() int {
	if f.Mask&0x0700 == OutputFiveElectrodes {
		return 5
	}
	return 4
}

// Encode builds the message, without the wire marker.
func (f SensorFrame) Encode() []byte {
	b := make([]byte, 8, 64)
	b[3] = msgSensorDataOutput
	binary.LittleEndian.PutUint16(b[4:], f.Mask)
	b[6] = f.Timestamp
	b[7] = f.SystemInfo

	if f.Mask&OutputDSPStatus != 0 {
		b = append(b, f.CalibReason, f.Frequency)
	}
	if f.Mask&OutputGesture != 0 {
		b = binary.LittleEndian.AppendUint32(b, f.GestureInfo)
	}
	if f.Mask&OutputTouch != 0 {
		b = binary.LittleEndian.AppendUint32(b, f.TouchInfo)
	}
	if f.Mask&OutputAirWheel != 0 {
		b = append(b, f.AirWheel, 0)
	}
	if f.Mask&OutputPosition != 0 {
		b = binary.LittleEndian.AppendUint16(b, f.X)
		b = binary.LittleEndian.AppendUint16(b, f.Y)
		b = binary.LittleEndian.AppendUint16(b, f.Z)
	}
	if f.Mask&OutputNoisePower != 0 {
		b = binary.LittleEndian.AppendUint32(b, math.Float32bits(f.NoisePower))
	}
	for _, sig := range []struct {
		bit uint16
		v   []float32
	}{{OutputCIC, f.CIC}, {OutputSD, f.SD}} {
		if f.Mask&sig.bit == 0 {
			continue
		}
		for i := 0; i < f.electrodes(); i++ {
			var v float32
			if i < len(sig.v) {
				v = sig.v[i]
			}
			b = binary.LittleEndian.AppendUint32(b, math.Float32bits(v))
		}
	}

	b[0] = byte(len(b))
	return b
}

// syntheticFrame produces a plausible frame: the hand hovers in a slow
// circle, the air wheel turns and a flick is reported every 64 frames.
func syntheticFrame(mask uint16, seq uint8) SensorFrame {
	phase := float64(seq) / 256 * 2 * math.Pi
	f := SensorFrame{
		Mask:       mask,
		Timestamp:  seq,
		SystemInfo: InfoDSPRunning | InfoPositionValid | InfoAirWheelValid | InfoRawDataValid | InfoNoisePowerValid,
		Frequency:  115,
		AirWheel:   seq * 4,
		X:          uint16(32768 + 20000*math.Cos(phase)),
		Y:          uint16(32768 + 20000*math.Sin(phase)),
		Z:          20000,
		NoisePower: 1.5,
		CIC:        []float32{1000, 1010, 1020, 1030, 1040},
		SD:         []float32{1, 2, 3, 4, 5},
	}
	if seq == 1 {
		f.CalibReason = 0x04
	}
	if seq%64 == 0 {
		f.GestureInfo = 2
	}
	return f
}
