package serialport

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/seagrayinc/gestic/internal/frame"
)

func TestResetMessageIsControlMessage(t *testing.T) {
	var ex frame.Extractor
	ex.Feed(ResetMessage)

	_, ok := ex.Next()
	assert.False(t, ok, "a zero size byte must never reach the sensor as a message")
	assert.Len(t, ResetMessage, 8)
	assert.Equal(t, byte(0x11), ResetMessage[3])
}

func TestDescribeKeepsCause(t *testing.T) {
	cause := errors.New("boom")
	err := describe("/dev/ttyACM7", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "/dev/ttyACM7")
}
