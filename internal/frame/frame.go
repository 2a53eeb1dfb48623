package frame

import (
	"encoding/hex"
	"log/slog"
	"strings"
)

const (
	// Every message on the wire is preceded by this two byte marker.
	Magic1 = 0xFE
	Magic2 = 0xFF

	// HeaderSize covers size, flags, sequence and message id.
	HeaderSize = 4

	// MaxMessageSize is bounded by the single size byte.
	MaxMessageSize = 255
)

type state int

const (
	seekMagic1 state = iota
	seekMagic2
	readHeader
	readBody
)

// Extractor reassembles messages from an arbitrarily fragmented byte stream.
// It keeps its state between calls so a message may span any number of reads.
type Extractor struct {
	state  state
	msg    [MaxMessageSize]byte
	cursor int

	pending []byte
}

// Feed appends raw transport bytes to the input queue.
func (e *Extractor) Feed(b []byte) {
	e.pending = append(e.pending, b...)
}

// Buffered returns the number of fed bytes not yet consumed.
func (e *Extractor) Buffered() int {
	return len(e.pending)
}

// Reset drops queued input and partial messages.
func (e *Extractor) Reset() {
	e.state = seekMagic1
	e.cursor = 0
	e.pending = e.pending[:0]
}

// Next returns the next complete message or false when more input is needed.
// The returned slice is a copy owned by the caller.
func (e *Extractor) Next() ([]byte, bool) {
	for len(e.pending) > 0 {
		b := e.pending[0]
		e.pending = e.pending[1:]

		switch e.state {
		case seekMagic1:
			if b == Magic1 {
				e.state = seekMagic2
			}

		case seekMagic2:
			// A mismatch drops the byte; it is not reconsidered as Magic1.
			if b == Magic2 {
				e.state = readHeader
				e.cursor = 0
			} else {
				e.state = seekMagic1
			}

		case readHeader:
			e.msg[e.cursor] = b
			e.cursor++
			if e.cursor < HeaderSize {
				continue
			}
			if e.msg[0] < HeaderSize {
				slog.Debug("discarding undersized message", slog.Int("size", int(e.msg[0])))
				e.state = seekMagic1
				continue
			}
			if e.msg[0] == HeaderSize {
				return e.emit(), true
			}
			e.state = readBody

		case readBody:
			e.msg[e.cursor] = b
			e.cursor++
			if e.cursor == int(e.msg[0]) {
				return e.emit(), true
			}
		}
	}

	e.pending = nil
	return nil, false
}

func (e *Extractor) emit() []byte {
	out := make([]byte, e.cursor)
	copy(out, e.msg[:e.cursor])
	e.state = seekMagic1
	e.cursor = 0
	return out
}

// Encode prefixes a message with the wire marker.
func Encode(msg []byte) []byte {
	out := make([]byte, 0, len(msg)+2)
	out = append(out, Magic1, Magic2)
	return append(out, msg...)
}

// Unframed converts the result of a raw bus read, which carries a single
// message without the wire marker, into wire bytes. A read whose size byte
// is below the header size or beyond the data read holds no message.
func Unframed(b []byte) ([]byte, bool) {
	if len(b) < HeaderSize {
		return nil, false
	}
	size := int(b[0])
	if size < HeaderSize || size > len(b) {
		return nil, false
	}
	return Encode(b[:size]), true
}

// EncodeToString renders bytes as dash separated hex for debug logs.
func EncodeToString(b []byte) string {
	hexDigits := hex.EncodeToString(b)
	var builder strings.Builder
	for i, r := range hexDigits {
		if i > 0 && i%2 == 0 {
			builder.WriteString("-")
		}
		builder.WriteRune(r)
	}
	return builder.String()
}
