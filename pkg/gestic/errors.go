package gestic

import (
	"errors"
	"fmt"
)

var (
	// ErrNoData means nothing new arrived before the timeout expired.
	ErrNoData = errors.New("gestic: no data")

	// ErrNoResponse means the device never acknowledged a request.
	ErrNoResponse = errors.New("gestic: no response")

	// ErrProtocol is returned for messages that violate the wire layout.
	ErrProtocol = errors.New("gestic: protocol error")

	// ErrBadParam is returned before any I/O when an argument is invalid.
	ErrBadParam = errors.New("gestic: bad parameter")

	// ErrMissingMessage means a request was acknowledged but the expected
	// reply message never arrived.
	ErrMissingMessage = errors.New("gestic: missing message")

	// ErrSystem matches every *SystemError.
	ErrSystem = errors.New("gestic: system error")

	// ErrResetUnsupported is returned by transports without a reset line.
	ErrResetUnsupported = errors.New("gestic: transport cannot reset the device")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("gestic: device closed")
)

// SystemError carries a non-zero error code from a System-Status message.
type SystemError struct {
	Op   MessageID
	Code SystemErrorCode
}

func (e *SystemError) Error() string {
	return fmt.Sprintf("gestic: %s rejected: %s (0x%02X)", e.Op, e.Code, uint16(e.Code))
}

func (e *SystemError) Is(target error) bool {
	return target == ErrSystem
}

// IOError wraps a failure reported by the transport.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("gestic: transport %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// SystemErrorCode is the error field of a System-Status message.
type SystemErrorCode uint16

// From the MGC3X30 message reference, System_Status error codes.
const (
	SystemNoError              SystemErrorCode = 0x0000
	SystemUnknownCommand       SystemErrorCode = 0x0001
	SystemInvalidSessionID     SystemErrorCode = 0x0002
	SystemInvalidCRC           SystemErrorCode = 0x0003
	SystemInvalidLength        SystemErrorCode = 0x0004
	SystemInvalidAddress       SystemErrorCode = 0x0005
	SystemInvalidFunction      SystemErrorCode = 0x0006
	SystemContentMismatch      SystemErrorCode = 0x0008
	SystemWrongParameterAddr   SystemErrorCode = 0x000B
	SystemWrongParameterValue  SystemErrorCode = 0x0014
	SystemUnknownParameterID   SystemErrorCode = 0x0015
	SystemWakeupHappened       SystemErrorCode = 0x001A
	SystemLoaderUpdateStarted  SystemErrorCode = 0x0080
	SystemLoaderUpdateFinished SystemErrorCode = 0x0081
)

var systemErrorStrings = map[SystemErrorCode]string{
	SystemNoError:              "no error",
	SystemUnknownCommand:       "unknown command",
	SystemInvalidSessionID:     "invalid session id",
	SystemInvalidCRC:           "invalid crc",
	SystemInvalidLength:        "invalid length",
	SystemInvalidAddress:       "invalid address",
	SystemInvalidFunction:      "invalid function",
	SystemContentMismatch:      "content mismatch",
	SystemWrongParameterAddr:   "wrong parameter address",
	SystemWrongParameterValue:  "wrong parameter value",
	SystemUnknownParameterID:   "unknown parameter id",
	SystemWakeupHappened:       "wakeup happened",
	SystemLoaderUpdateStarted:  "loader update started",
	SystemLoaderUpdateFinished: "loader update finished",
}

func (c SystemErrorCode) String() string {
	if s, ok := systemErrorStrings[c]; ok {
		return s
	}
	return "unknown error"
}
