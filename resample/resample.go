// Package resample converts PCM sample rates using libsamplerate.
//
// Playback paths push source frames with FromInput. Capture paths pull
// frames on demand through a Provider, which lets the converter drain
// the hardware one period at a time.
package resample

import (
	"fmt"

	"github.com/dh1tw/gosamplerate"
)

// Provider supplies source frames to a pull-mode conversion. The
// converter fetches frames with GetNextBuffer and acknowledges
// consumption with ReleaseBuffer.
type Provider interface {
	// GetNextBuffer returns up to frames interleaved samples at the
	// source rate. It may return fewer; it must not return an empty
	// slice with a nil error.
	GetNextBuffer(frames uint32) ([]int16, error)

	// ReleaseBuffer acknowledges that frames frames returned by the
	// last GetNextBuffer have been consumed.
	ReleaseBuffer(frames uint32)
}

// Converter resamples interleaved int16 PCM between two fixed rates.
// It is not safe for concurrent use.
type Converter struct {
	src      gosamplerate.Src
	channels int
	ratio    float64
	stash    []float32

	// process is the resampling kernel, replaceable in tests.
	process func(data []float32, ratio float64, endOfInput bool) ([]float32, error)
}

// New creates a converter from inRate to outRate. SRC_SINC_FASTEST
// keeps latency low enough for voice paths while staying well above
// linear interpolation in quality.
func New(channels int, inRate, outRate uint32) (*Converter, error) {
	if channels < 1 {
		return nil, fmt.Errorf("resample: invalid channel count %d", channels)
	}

	if inRate == 0 || outRate == 0 {
		return nil, fmt.Errorf("resample: invalid rates %d -> %d", inRate, outRate)
	}

	src, err := gosamplerate.New(gosamplerate.SRC_SINC_FASTEST, channels, 65536)
	if err != nil {
		return nil, fmt.Errorf("resample: %w", err)
	}

	c := &Converter{
		src:      src,
		channels: channels,
		ratio:    float64(outRate) / float64(inRate),
	}
	c.process = func(data []float32, ratio float64, endOfInput bool) ([]float32, error) {
		return c.src.Process(data, ratio, endOfInput)
	}

	return c, nil
}

// Ratio returns the output/input rate ratio.
func (c *Converter) Ratio() float64 {
	return c.ratio
}

// Reset drops the converter state and any stashed output. Call it when
// the stream restarts after standby so stale samples never leak into
// the new signal.
func (c *Converter) Reset() error {
	c.stash = c.stash[:0]

	if err := c.src.Reset(); err != nil {
		return fmt.Errorf("resample: reset: %w", err)
	}

	return nil
}

// Close releases the libsamplerate state.
func (c *Converter) Close() error {
	if err := gosamplerate.Delete(c.src); err != nil {
		return fmt.Errorf("resample: close: %w", err)
	}

	return nil
}

// FromInput converts all of in and appends the result to the internal
// stash, then fills out from the stash. It returns the number of
// samples written to out; the remainder stays stashed for the next
// call.
func (c *Converter) FromInput(in []int16, out []int16) (int, error) {
	if len(in) > 0 {
		processed, err := c.process(toFloat32(in), c.ratio, false)
		if err != nil {
			return 0, fmt.Errorf("resample: process: %w", err)
		}

		c.stash = append(c.stash, processed...)
	}

	return c.drain(out), nil
}

// FromProvider fills out completely, pulling source frames from p as
// needed. Every buffer obtained from p is fully consumed and released
// before the next one is requested.
func (c *Converter) FromProvider(p Provider, out []int16) (int, error) {
	written := 0

	for written < len(out) {
		written += c.drain(out[written:])
		if written == len(out) {
			break
		}

		// Ask for enough source frames to cover what is still
		// missing, rounded up against the ratio.
		missing := (len(out) - written) / c.channels
		want := uint32(float64(missing)/c.ratio) + 1

		in, err := p.GetNextBuffer(want)
		if err != nil {
			return written, err
		}

		processed, err := c.process(toFloat32(in), c.ratio, false)
		if err != nil {
			return written, fmt.Errorf("resample: process: %w", err)
		}

		p.ReleaseBuffer(uint32(len(in) / c.channels))
		c.stash = append(c.stash, processed...)
	}

	return written, nil
}

// drain moves stashed samples into out and returns how many were
// copied.
func (c *Converter) drain(out []int16) int {
	if len(c.stash) == 0 {
		return 0
	}

	n := len(c.stash)
	if n > len(out) {
		n = len(out)
	}

	for i := 0; i < n; i++ {
		out[i] = toInt16(c.stash[i])
	}

	c.stash = c.stash[:copy(c.stash, c.stash[n:])]

	return n
}

func toFloat32(in []int16) []float32 {
	out := make([]float32, len(in))
	for i, s := range in {
		out[i] = float32(s) / 32768
	}

	return out
}

func toInt16(f float32) int16 {
	f *= 32768
	switch {
	case f > 32767:
		return 32767
	case f < -32768:
		return -32768
	default:
		return int16(f)
	}
}
