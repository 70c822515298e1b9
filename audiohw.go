// Package audiohw bridges fixed-configuration hardware PCM endpoints
// to variable-configuration clients. A Device owns routing and the
// shared hardware state; OutputStream and InputStream own the
// standby/active lifecycle, sample-rate conversion and channel
// reduction of one playback and one capture channel.
//
// Lock order: when a code path needs the device lock and a stream
// lock, the device lock is always taken first. Cross-stream
// adjustments (one direction forcing the other into standby over a
// rate-family conflict) take the second stream's lock while already
// holding the device lock, never before it.
package audiohw

import (
	"time"

	"github.com/gen2brain/audiohw/resample"
)

// Direction selects playback or capture on an endpoint.
type Direction int

const (
	Playback Direction = iota
	Capture
)

// Geometry is the fixed period configuration an endpoint is opened
// with. A zero StartThreshold or AvailMin leaves the endpoint's own
// default in place.
type Geometry struct {
	Channels       uint32
	Rate           uint32
	PeriodSize     uint32
	PeriodCount    uint32
	StartThreshold uint32
	AvailMin       uint32
}

// Frames returns the total ring buffer size in frames.
func (g Geometry) Frames() uint32 {
	return g.PeriodSize * g.PeriodCount
}

// Endpoint is one open hardware PCM channel. Implemented by *pcm.PCM
// and by test fakes.
type Endpoint interface {
	// Write queues interleaved s16 samples. Underruns surface as an
	// error wrapping syscall.EPIPE.
	Write(data []int16) (int, error)

	// Read blocks until data is filled.
	Read(data []int16) (int, error)

	// Status reports the free space in the ring buffer in frames and
	// the timestamp of the measurement.
	Status() (avail uint32, ts time.Time, err error)

	// BufferSize is the ring buffer size in frames.
	BufferSize() uint32

	Close() error
}

// Opener creates an endpoint on a card/device pair. The default
// opener goes through the pcm package; tests substitute fakes.
type Opener func(card, device uint, dir Direction, g Geometry) (Endpoint, error)

// Router is the routing-table surface the device drives. Implemented
// by *route.Table.
type Router interface {
	ApplyPath(name string) error
	Reset()
	Commit() error
	HasPath(name string) bool
}

// Converter resamples interleaved s16 PCM between two fixed rates,
// either pushed from an input slice or pulled through a Provider.
// Implemented by *resample.Converter.
type Converter interface {
	Reset() error
	FromInput(in, out []int16) (int, error)
	FromProvider(p resample.Provider, out []int16) (int, error)
	Close() error
}

// ConverterFactory creates a Converter for a channel count and rate
// pair.
type ConverterFactory func(channels int, inRate, outRate uint32) (Converter, error)

// Orientation is the device orientation hint consumed by
// SetParameters. Some mixer paths depend on it (dual-mic selection),
// so a change re-runs device selection.
type Orientation int

const (
	OrientationLandscape Orientation = iota
	OrientationPortrait
	OrientationSquare
	OrientationUndefined
)
