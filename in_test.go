package audiohw

import (
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gen2brain/audiohw/pcm"
)

func openTestInput(t *testing.T, h *harness, devices, rate uint32) *InputStream {
	t.Helper()

	in, err := h.dev.OpenInputStream(devices, rate, 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = in.Close() })

	return in
}

func TestOpenInputRejectsNonMono(t *testing.T) {
	h := newHarness(t)

	_, err := h.dev.OpenInputStream(DeviceInBuiltinMic, 44100, 2)
	assert.ErrorIs(t, err, ErrInvalidChannels)

	_, err = h.dev.OpenInputStream(DeviceInBuiltinMic, 44100, 0)
	assert.ErrorIs(t, err, ErrInvalidChannels)
}

func TestReadOpensEndpointOnFirstRead(t *testing.T) {
	h := newHarness(t)
	in := openTestInput(t, h, DeviceInBuiltinMic, 44100)

	assert.Empty(t, h.opens)

	buf := make([]int16, 64)
	n, err := in.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)

	require.Len(t, h.opens, 1)
	assert.Equal(t, pcmCard, h.opens[0].card)
	assert.Equal(t, pcmDeviceMMUL, h.opens[0].device)
	assert.Equal(t, Capture, h.opens[0].dir)
	assert.Equal(t, uint32(2), h.opens[0].g.Channels)
	assert.Equal(t, ClientOutRate, h.opens[0].g.Rate)

	_, err = in.Read(buf)
	require.NoError(t, err)
	assert.Len(t, h.opens, 1)
}

func TestReadStereoDiscardsRightChannel(t *testing.T) {
	h := newHarness(t)
	in := openTestInput(t, h, DeviceInBuiltinMic, 44100)

	// The fake endpoint counts samples upward, so the left channel of
	// a stereo read is the even values.
	buf := make([]int16, 8)
	_, err := in.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, []int16{0, 2, 4, 6, 8, 10, 12, 14}, buf)
}

func TestReadSCOGeometry(t *testing.T) {
	h := newHarness(t)
	in := openTestInput(t, h, DeviceInBluetoothSCOHeadset, 8000)

	_, err := in.Read(make([]int16, 64))
	require.NoError(t, err)

	require.Len(t, h.opens, 1)
	assert.Equal(t, pcmDeviceSCOIn, h.opens[0].device)
	assert.Equal(t, scoRate, h.opens[0].g.Rate)
	assert.Equal(t, uint32(1), h.opens[0].g.Channels)
	assert.Equal(t, scoPeriodSize, h.opens[0].g.PeriodSize)
}

func TestMicMuteZeroFillsAfterCapture(t *testing.T) {
	h := newHarness(t)
	in := openTestInput(t, h, DeviceInBuiltinMic, 44100)

	h.dev.SetMicMute(true)

	buf := make([]int16, 16)
	n, err := in.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)

	for i, s := range buf {
		assert.Zero(t, s, "sample %d", i)
	}

	// The endpoint kept capturing: mute means zeroing, not stopping.
	require.Len(t, h.endpoints, 1)
	assert.Equal(t, 0, h.endpoints[0].closed)

	h.dev.SetMicMute(false)
	_, err = in.Read(buf)
	require.NoError(t, err)
	assert.NotEqual(t, int16(0), buf[1])
}

func TestReadAbsorbsErrors(t *testing.T) {
	h := newHarness(t)
	in := openTestInput(t, h, DeviceInBuiltinMic, 44100)

	_, err := in.Read(make([]int16, 64))
	require.NoError(t, err)
	h.sleeps = nil

	h.endpoints[0].readErrs = []error{syscall.EIO}

	buf := make([]int16, 441)
	n, err := in.Read(buf)

	// Full success is reported after a compensating sleep at the
	// client rate.
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	require.Len(t, h.sleeps, 1)
	assert.Equal(t, time.Duration(441)*time.Second/time.Duration(44100), h.sleeps[0])
	assert.Equal(t, 0, h.endpoints[0].closed)
}

func TestReadOpenFailurePropagates(t *testing.T) {
	h := newHarness(t)
	in := openTestInput(t, h, DeviceInBuiltinMic, 44100)

	h.openErr = syscall.EBUSY

	_, err := in.Read(make([]int16, 64))
	assert.ErrorIs(t, err, ErrEndpointUnavailable)

	_, err = in.Read(make([]int16, 64))
	require.NoError(t, err)
	assert.Len(t, h.opens, 2)
}

func TestReadThroughConverter(t *testing.T) {
	h := newHarness(t)
	in := openTestInput(t, h, DeviceInBuiltinMic, 16000)

	// A rate differing from the capture endpoint builds the converter
	// at open.
	require.Len(t, h.converters, 1)
	assert.InDelta(t, 16000.0/44100.0, h.converters[0].ratio, 1e-9)

	buf := make([]int16, 64)
	n, err := in.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)

	// The identity pull converter sees the downmixed left channel.
	assert.Equal(t, []int16{0, 2, 4, 6}, buf[:4])
}

func TestProviderPullsOnePeriodAndAdvances(t *testing.T) {
	h := newHarness(t)
	in := openTestInput(t, h, DeviceInBuiltinMic, 16000)

	// Start the stream so the provider has an endpoint, then drive
	// the protocol directly.
	_, err := in.Read(make([]int16, 8))
	require.NoError(t, err)

	in.mu.Lock()
	defer in.mu.Unlock()

	in.framesIn = 0 // drop whatever the read left behind

	buf, err := in.GetNextBuffer(10)
	require.NoError(t, err)
	assert.Len(t, buf, 10)
	assert.Equal(t, shortPeriodSize, in.framesIn)

	in.ReleaseBuffer(10)
	assert.Equal(t, shortPeriodSize-10, in.framesIn)

	// The next pull continues where the last one stopped, without a
	// hardware read.
	next, err := in.GetNextBuffer(10)
	require.NoError(t, err)
	assert.Equal(t, buf[9]+2, next[0])

	// Asking for more than is buffered returns only what is left.
	in.ReleaseBuffer(10)
	rest, err := in.GetNextBuffer(shortPeriodSize * 2)
	require.NoError(t, err)
	assert.Len(t, rest, int(shortPeriodSize)-20)
}

func TestReleaseBufferNeverGoesNegative(t *testing.T) {
	h := newHarness(t)
	in := openTestInput(t, h, DeviceInBuiltinMic, 16000)

	_, err := in.Read(make([]int16, 8))
	require.NoError(t, err)

	in.mu.Lock()
	defer in.mu.Unlock()

	in.ReleaseBuffer(in.framesIn + 1000)
	assert.Equal(t, uint32(0), in.framesIn)
}

func TestProviderReadErrorMarksFailure(t *testing.T) {
	h := newHarness(t)
	in := openTestInput(t, h, DeviceInBuiltinMic, 16000)

	_, err := in.Read(make([]int16, 8))
	require.NoError(t, err)

	in.mu.Lock()
	in.framesIn = 0
	h.endpoints[0].readErrs = []error{syscall.EIO}

	_, err = in.GetNextBuffer(10)
	assert.ErrorIs(t, err, syscall.EIO)
	assert.ErrorIs(t, in.readErr, syscall.EIO)
	in.mu.Unlock()
}

func TestInputSetDevicesSCOToggleForcesStandby(t *testing.T) {
	h := newHarness(t)
	in := openTestInput(t, h, DeviceInBuiltinMic, 44100)

	_, err := in.Read(make([]int16, 8))
	require.NoError(t, err)
	require.Len(t, h.endpoints, 1)

	in.SetDevices(DeviceBitIn | DeviceInBluetoothSCOHeadset)
	assert.Equal(t, 1, h.endpoints[0].closed)
	assert.Equal(t, DeviceInBluetoothSCOHeadset, h.dev.InputDevices())

	// The next read opens the SCO PCM.
	_, err = in.Read(make([]int16, 8))
	require.NoError(t, err)
	require.Len(t, h.opens, 2)
	assert.Equal(t, pcmDeviceSCOIn, h.opens[1].device)
}

func TestIncompatibleInputForcesOutputStandbyOnce(t *testing.T) {
	h := newHarness(t)
	out := openTestOutput(t, h, DeviceOutSpeaker, false)

	_, err := out.Write(stereoBlock(64))
	require.NoError(t, err)
	require.Len(t, h.endpoints, 1)

	// SCO capture runs at 8000, the active output at 44100: starting
	// the input forces the output into standby exactly once.
	in := openTestInput(t, h, DeviceInBluetoothSCOHeadset, 8000)

	_, err = in.Read(make([]int16, 8))
	require.NoError(t, err)
	assert.Equal(t, 1, h.endpoints[0].closed)

	_, err = in.Read(make([]int16, 8))
	require.NoError(t, err)
	assert.Equal(t, 1, h.endpoints[0].closed)
}

func TestIncompatibleOutputForcesInputStandby(t *testing.T) {
	h := newHarness(t)

	in := openTestInput(t, h, DeviceInBluetoothSCOHeadset, 8000)
	_, err := in.Read(make([]int16, 8))
	require.NoError(t, err)
	require.Len(t, h.endpoints, 1)

	// Starting a 44100 output against the 8000 capture closes the
	// capture endpoint.
	out := openTestOutput(t, h, DeviceOutSpeaker, false)
	_, err = out.Write(stereoBlock(64))
	require.NoError(t, err)
	assert.Equal(t, 1, h.endpoints[0].closed)
}

func TestCompatibleStreamsCoexist(t *testing.T) {
	h := newHarness(t)

	in := openTestInput(t, h, DeviceInBuiltinMic, 44100)
	_, err := in.Read(make([]int16, 8))
	require.NoError(t, err)

	// Both sides run the 11025 family: no forced standby.
	out := openTestOutput(t, h, DeviceOutSpeaker, false)
	_, err = out.Write(stereoBlock(64))
	require.NoError(t, err)

	assert.Equal(t, 0, h.endpoints[0].closed)
	assert.Equal(t, 0, h.endpoints[1].closed)
}

func TestInputAccessors(t *testing.T) {
	h := newHarness(t)
	in := openTestInput(t, h, DeviceInBuiltinMic, 16000)

	assert.Equal(t, uint32(16000), in.SampleRate())
	assert.Equal(t, uint32(1), in.Channels())
	assert.Equal(t, pcm.FormatS16LE, in.Format())

	// Same rounding as Device.InputBufferSize.
	assert.Equal(t, h.dev.InputBufferSize(16000, 1), in.BufferSize())
}

func TestInputCloseReleasesConverter(t *testing.T) {
	h := newHarness(t)

	in, err := h.dev.OpenInputStream(DeviceInBuiltinMic, 16000, 1)
	require.NoError(t, err)
	require.Len(t, h.converters, 1)

	_, err = in.Read(make([]int16, 8))
	require.NoError(t, err)

	require.NoError(t, in.Close())
	assert.True(t, h.converters[0].closed)
	assert.Equal(t, 1, h.endpoints[0].closed)
}
