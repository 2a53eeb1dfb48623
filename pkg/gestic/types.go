package gestic

import (
	"fmt"
	"math"
	"strings"
)

// OutputMask is the data-output config mask of a Sensor_Data_Output message.
// The same bits select outputs in the dataOutputEnableMask parameter.
type OutputMask uint16

const (
	OutputDSPStatus       OutputMask = 0x0001
	OutputGesture         OutputMask = 0x0002
	OutputTouch           OutputMask = 0x0004
	OutputAirWheel        OutputMask = 0x0008
	OutputPosition        OutputMask = 0x0010
	OutputNoisePower      OutputMask = 0x0020
	OutputElectrodeConfig OutputMask = 0x0700
	OutputCIC             OutputMask = 0x0800
	OutputSD              OutputMask = 0x1000

	OutputAll OutputMask = 0x183F
)

// SystemInfo flags report which values in a frame are valid.
type SystemInfo uint8

const (
	InfoPositionValid   SystemInfo = 0x01
	InfoAirWheelValid   SystemInfo = 0x02
	InfoRawDataValid    SystemInfo = 0x04
	InfoNoisePowerValid SystemInfo = 0x08
	InfoEnvNoise        SystemInfo = 0x10
	InfoClipping        SystemInfo = 0x20
	InfoDSPRunning      SystemInfo = 0x80
)

func (s SystemInfo) Has(f SystemInfo) bool { return s&f == f }

type Gesture uint8

const (
	GestureNone Gesture = iota
	GestureFlickWestToEast
	GestureFlickEastToWest
	GestureFlickSouthToNorth
	GestureFlickNorthToSouth
	GestureCircleClockwise
	GestureCircleCounterClockwise
)

func (g Gesture) String() string {
	switch g {
	case GestureNone:
		return "None"
	case GestureFlickWestToEast:
		return "FlickWestToEast"
	case GestureFlickEastToWest:
		return "FlickEastToWest"
	case GestureFlickSouthToNorth:
		return "FlickSouthToNorth"
	case GestureFlickNorthToSouth:
		return "FlickNorthToSouth"
	case GestureCircleClockwise:
		return "CircleClockwise"
	case GestureCircleCounterClockwise:
		return "CircleCounterClockwise"
	}
	return fmt.Sprintf("Gesture(%d)", uint8(g))
}

type GestureFlags uint32

const (
	GestureEdgeFlick  GestureFlags = 0x00010000
	GestureInProgress GestureFlags = 0x80000000

	gestureFlagsMask = GestureEdgeFlick | GestureInProgress
)

// TouchFlags hold the touch, tap and double tap bits of the touch info word.
type TouchFlags uint32

const (
	TouchSouth  TouchFlags = 0x0001
	TouchWest   TouchFlags = 0x0002
	TouchNorth  TouchFlags = 0x0004
	TouchEast   TouchFlags = 0x0008
	TouchCenter TouchFlags = 0x0010

	TapSouth  TouchFlags = 0x0020
	TapWest   TouchFlags = 0x0040
	TapNorth  TouchFlags = 0x0080
	TapEast   TouchFlags = 0x0100
	TapCenter TouchFlags = 0x0200

	DoubleTapSouth  TouchFlags = 0x0400
	DoubleTapWest   TouchFlags = 0x0800
	DoubleTapNorth  TouchFlags = 0x1000
	DoubleTapEast   TouchFlags = 0x2000
	DoubleTapCenter TouchFlags = 0x4000

	touchMask TouchFlags = 0x001F
	tapMask   TouchFlags = 0x7FE0
)

func (f TouchFlags) location(shift uint) Location {
	v := f >> shift
	return Location{
		South:  v&0x01 != 0,
		West:   v&0x02 != 0,
		North:  v&0x04 != 0,
		East:   v&0x08 != 0,
		Center: v&0x10 != 0,
	}
}

func (f TouchFlags) Touch() Location     { return f.location(0) }
func (f TouchFlags) Tap() Location       { return f.location(5) }
func (f TouchFlags) DoubleTap() Location { return f.location(10) }

type Location struct {
	North  bool
	East   bool
	South  bool
	West   bool
	Center bool
}

func (l Location) Active() bool {
	return l.North || l.South || l.East || l.West || l.Center
}

func (l Location) String() string {
	var s []string
	if l.North {
		s = append(s, "North")
	}
	if l.South {
		s = append(s, "South")
	}
	if l.East {
		s = append(s, "East")
	}
	if l.West {
		s = append(s, "West")
	}
	if l.Center {
		s = append(s, "Center")
	}
	return "{" + strings.Join(s, ", ") + "}"
}

// CalibrationReason flags why the DSP recalibrated.
type CalibrationReason uint8

const (
	CalibForced     CalibrationReason = 0x02
	CalibStartup    CalibrationReason = 0x04
	CalibGesture    CalibrationReason = 0x08
	CalibNegative   CalibrationReason = 0x10
	CalibIdle       CalibrationReason = 0x20
	CalibInvalidity CalibrationReason = 0x40
	CalibDSPForced  CalibrationReason = 0x80
)

// Frequencies is a bitmask of the five transmit frequencies.
type Frequencies uint8

const (
	Freq1 Frequencies = 0x01
	Freq2 Frequencies = 0x02
	Freq3 Frequencies = 0x04
	Freq4 Frequencies = 0x08
	Freq5 Frequencies = 0x10

	FreqAll Frequencies = 0x1F
)

// Undefined marks signal channels the current electrode configuration does not drive.
var Undefined = float32(math.NaN())

// IsUndefined reports whether v is the Undefined marker.
func IsUndefined(v float32) bool {
	return math.IsNaN(float64(v))
}

const MaxElectrodes = 5

type Signal [MaxElectrodes]float32

func (s Signal) String() string {
	return fmt.Sprintf("[%f,%f,%f,%f,%f]", s[0], s[1], s[2], s[3], s[4])
}

type Position struct {
	X uint16
	Y uint16
	Z uint16
}

func (p Position) String() string {
	return fmt.Sprintf("{X:%d Y:%d Z:%d}", p.X, p.Y, p.Z)
}

// Event ages are absolute frame indices while accumulated and frames since
// the event once published.

type GestureState struct {
	Gesture   Gesture
	Flags     GestureFlags
	LastEvent int
}

func (g GestureState) EdgeFlick() bool  { return g.Flags&GestureEdgeFlick != 0 }
func (g GestureState) InProgress() bool { return g.Flags&GestureInProgress != 0 }

func (g GestureState) String() string {
	return fmt.Sprintf("{Gesture:%s EdgeFlick:%t InProgress:%t LastEvent:%d}", g.Gesture, g.EdgeFlick(), g.InProgress(), g.LastEvent)
}

type TouchState struct {
	Flags               TouchFlags
	LastEvent           int
	TapFlags            TouchFlags
	LastTapEvent        int
	LastTouchEventStart int
}

type AirWheelState struct {
	Counter   uint8
	Active    bool
	LastEvent int
}

// Delta returns the signed rotation since prev, handling counter wraparound.
func (a AirWheelState) Delta(prev uint8) int8 {
	return int8(a.Counter - prev)
}

type CalibrationState struct {
	Reason    CalibrationReason
	LastEvent int
}

type FrequencyState struct {
	// Frequency is the transmit frequency in kHz.
	Frequency uint8
	Changed   bool
	LastEvent int
}

type NoisePower struct {
	Value float32
	Valid bool
}

// Snapshot is the decoded sensor state handed to the application.
type Snapshot struct {
	FrameCounter int
	// Skipped counts frames received but never published.
	Skipped int

	SystemInfo  SystemInfo
	Gesture     GestureState
	Touch       TouchState
	AirWheel    AirWheelState
	Calibration CalibrationState
	Frequency   FrequencyState
	NoisePower  NoisePower
	Position    Position
	CIC         Signal
	SD          Signal
}
