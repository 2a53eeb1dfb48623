package gestic

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seagrayinc/gestic/pkg/fwimage"
)

func testImage(t *testing.T, fill byte) *fwimage.Image {
	t.Helper()

	data := make([]byte, 300)
	for i := range data {
		data[i] = fill + byte(i)
	}
	records, err := fwimage.Split(0x2000, data)
	require.NoError(t, err)

	img := &fwimage.Image{Records: records}
	copy(img.IV[:], "initvector-14b")
	img.SetVersion("1.3.14;p:HillstarV01;x:Hillstar")
	return img
}

func TestChecksum(t *testing.T) {
	assert.Equal(t, uint32(0xCBF43926), checksum([]byte("123456789")))
}

func TestFwUpdateMessages(t *testing.T) {
	var iv [fwimage.IVSize]byte
	copy(iv[:], "initvector-14b")

	start := FwUpdateStartMessage(0x11223344, iv, UpdateVerifyOnly)
	require.Len(t, start, 28)
	assert.Equal(t, byte(28), start[0])
	assert.Equal(t, byte(MsgFwUpdateStart), start[3])
	assert.Equal(t, []byte{0x44, 0x33, 0x22, 0x11}, []byte(start[8:12]))
	assert.Equal(t, "initvector-14b", string(start[12:26]))
	assert.Equal(t, byte(UpdateVerifyOnly), start[26])
	assert.True(t, VerifyCRC(start))

	rec := fwimage.Record{Address: 0x1080, Length: 3}
	copy(rec.Data[:], []byte{7, 8, 9})
	block := FwUpdateBlockMessage(rec, UpdateProgramFlash)
	require.Len(t, block, 140)
	assert.Equal(t, byte(140), block[0])
	assert.Equal(t, []byte{0x80, 0x10, 3, 0, 7, 8, 9}, []byte(block[8:15]))
	assert.True(t, VerifyCRC(block))

	var version [fwimage.VersionSize]byte
	copy(version[:], "2.0")
	done := FwUpdateCompletedMessage(0x11223344, UpdateRestart, version)
	require.Len(t, done, 136)
	assert.Equal(t, byte(136), done[0])
	assert.Equal(t, byte(UpdateRestart), done[12])
	assert.Equal(t, "2.0", string(done[13:16]))
	assert.True(t, VerifyCRC(done))

	done[100] ^= 0x01
	assert.False(t, VerifyCRC(done))
	assert.False(t, VerifyCRC(Message{0x04, 0, 0, 0x82}))
}

func TestFlashImage(t *testing.T) {
	var phases []string
	dev, s := newTestDevice(t, WithProgressCallback(func(p Progress) {
		phases = append(phases, p.Phase)
	}))
	ctx := context.Background()
	img := testImage(t, 0x10)

	require.NoError(t, dev.FlashImage(ctx, 0xBEEF, img, UpdateProgramFlash, 100*time.Millisecond))

	assert.Equal(t, []string{"starting", "writing", "writing", "writing", "finishing", "complete"}, phases)
	assert.Equal(t, 1, s.Resets())
	assert.Equal(t, 3, s.Blocks())
	assert.Equal(t, "1.3.14;p:HillstarV01;x:Hillstar", s.Version())

	want := make([]byte, 300)
	for i := range want {
		want[i] = 0x10 + byte(i)
	}
	assert.Equal(t, want, s.Flash(0x2000, 300))

	id, mode, open := s.Session()
	assert.Equal(t, uint32(0xBEEF), id)
	assert.Equal(t, byte(UpdateProgramFlash), mode)
	assert.False(t, open)

	require.NoError(t, dev.FlashImage(ctx, 0xBEF0, img, UpdateVerifyOnly, Forever))

	err := dev.FlashImage(ctx, 0xBEF1, testImage(t, 0x20), UpdateVerifyOnly, Forever)
	var sysErr *SystemError
	require.ErrorAs(t, err, &sysErr)
	assert.Equal(t, SystemContentMismatch, sysErr.Code)
	assert.Equal(t, MsgFwUpdateBlock, sysErr.Op)
}

func TestWriteBlockValidation(t *testing.T) {
	dev, s := newTestDevice(t)
	ctx := context.Background()

	_, err := dev.BeginFlash(ctx, 1, [fwimage.IVSize]byte{}, UpdateRestart, Forever)
	assert.ErrorIs(t, err, ErrBadParam)
	assert.Zero(t, s.Resets())

	session, err := dev.BeginFlash(ctx, 1, [fwimage.IVSize]byte{}, UpdateProgramFlash, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), session.ID())
	assert.Equal(t, UpdateProgramFlash, session.Mode())

	sent := len(s.Received())
	assert.ErrorIs(t, session.WriteBlock(ctx, fwimage.Record{Address: 0x80}, UpdateVerifyOnly), ErrBadParam)
	assert.ErrorIs(t, session.WriteBlock(ctx, fwimage.Record{Address: 0x81}, UpdateProgramFlash), ErrBadParam)
	assert.ErrorIs(t, session.WriteBlock(ctx, fwimage.Record{Address: 0x80, Length: 129}, UpdateProgramFlash), ErrBadParam)
	assert.Len(t, s.Received(), sent, "invalid blocks must not reach the device")

	require.NoError(t, session.WriteBlock(ctx, fwimage.Record{Address: 0x80, Length: 1}, UpdateProgramFlash))
	require.NoError(t, session.End(ctx, [fwimage.VersionSize]byte{}))

	assert.ErrorIs(t, session.End(ctx, [fwimage.VersionSize]byte{}), ErrBadParam)
	assert.ErrorIs(t, session.WriteBlock(ctx, fwimage.Record{Address: 0x80}, UpdateProgramFlash), ErrBadParam)
}

func TestEndRetriesAfterFailedCompletion(t *testing.T) {
	dev, s := newTestDevice(t)
	ctx := context.Background()

	session, err := dev.BeginFlash(ctx, 7, [fwimage.IVSize]byte{}, UpdateProgramFlash, 50*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, session.WriteBlock(ctx, fwimage.Record{Address: 0x80, Length: 1}, UpdateProgramFlash))

	var version [fwimage.VersionSize]byte
	copy(version[:], "2.0.1;p:HillstarV01")

	s.DropResponses(3)
	assert.ErrorIs(t, session.End(ctx, version), ErrNoResponse)
	_, _, open := s.Session()
	assert.True(t, open)

	require.NoError(t, session.End(ctx, version))
	assert.Equal(t, "2.0.1;p:HillstarV01", s.Version())
	_, _, open = s.Session()
	assert.False(t, open)

	assert.ErrorIs(t, session.End(ctx, version), ErrBadParam)
}

func TestBeginFlashNeedsReset(t *testing.T) {
	dev, err := Open(&brokenTransport{})
	require.NoError(t, err)

	_, err = dev.BeginFlash(context.Background(), 1, [fwimage.IVSize]byte{}, UpdateProgramFlash, Forever)
	assert.ErrorIs(t, err, ErrResetUnsupported)
}

func TestWaitLoaderUpdated(t *testing.T) {
	dev, s := newTestDevice(t)
	ctx := context.Background()

	err := dev.WaitLoaderUpdated(ctx, 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrNoResponse)

	s.SetRestartFwValid(0)
	require.NoError(t, dev.FlashImage(ctx, 7, testImage(t, 0), UpdateProgramFlash, Forever))
	require.NoError(t, dev.WaitLoaderUpdated(ctx, 100*time.Millisecond))
	assert.Zero(t, dev.FirmwareValid())
}
