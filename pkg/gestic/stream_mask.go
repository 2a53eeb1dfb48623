package gestic

import "context"

// StreamFlags is the output selection of the first SDK generation.
type StreamFlags uint32

const (
	StreamCIC      StreamFlags = 0x01
	StreamSD       StreamFlags = 0x04
	StreamPosition StreamFlags = 0x08
	StreamGesture  StreamFlags = 0x10
	StreamTouch    StreamFlags = 0x20

	streamFlagsAll StreamFlags = 0x3F
)

// streamFlagsOutput translates every StreamFlags combination to an output
// enable mask. DSP status and air wheel are always requested.
var streamFlagsOutput = [64]OutputMask{
	0x0009, 0x0809, 0x0009, 0x0809, 0x1009, 0x1809, 0x1009, 0x1809,
	0x0019, 0x0819, 0x0019, 0x0819, 0x1019, 0x1819, 0x1019, 0x1819,
	0x000B, 0x080B, 0x000B, 0x080B, 0x100B, 0x180B, 0x100B, 0x180B,
	0x001B, 0x081B, 0x001B, 0x081B, 0x101B, 0x181B, 0x101B, 0x181B,
	0x000D, 0x080D, 0x000D, 0x080D, 0x100D, 0x180D, 0x100D, 0x180D,
	0x001D, 0x081D, 0x001D, 0x081D, 0x101D, 0x181D, 0x101D, 0x181D,
	0x000F, 0x080F, 0x000F, 0x080F, 0x100F, 0x180F, 0x100F, 0x180F,
	0x001F, 0x081F, 0x001F, 0x081F, 0x101F, 0x181F, 0x101F, 0x181F,
}

func streamOutputMask(f StreamFlags) OutputMask {
	return streamFlagsOutput[f&streamFlagsAll]
}

// Deprecated: use SetOutputEnableMask.
func (d *Device) UpdateStreamMask(ctx context.Context, flags, mask StreamFlags) error {
	return d.SetOutputEnableMask(ctx, streamOutputMask(flags), 0, streamOutputMask(mask))
}

// Deprecated: use SetOutputEnableMask.
func (d *Device) SetStreamMask(ctx context.Context, flags StreamFlags) error {
	return d.UpdateStreamMask(ctx, flags, streamFlagsAll)
}
