package audiohw

import (
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/audiohw/pcm"
	"github.com/gen2brain/audiohw/resample"
	"github.com/gen2brain/audiohw/route"
)

// Device is the coordinator for the shared hardware state: current
// routing masks, mute and power hints, and the at-most-one active
// stream per direction.
type Device struct {
	mu sync.Mutex // always taken before any stream lock

	router Router
	opener Opener

	newConverter ConverterFactory
	sleep        func(time.Duration)

	outDevices  uint32
	inDevices   uint32 // stored without DeviceBitIn
	micMute     bool
	lowPower    bool
	orientation Orientation

	activeOut *OutputStream
	activeIn  *InputStream

	closer func() error
	closed bool
}

// Option configures a Device at open time.
type Option func(*Device)

// WithOpener replaces the endpoint opener.
func WithOpener(o Opener) Option {
	return func(d *Device) { d.opener = o }
}

// WithRouter replaces the routing table. When set, Open does not
// touch the mixer hardware.
func WithRouter(r Router) Option {
	return func(d *Device) { d.router = r }
}

// WithConverterFactory replaces the sample-rate converter
// constructor.
func WithConverterFactory(f ConverterFactory) Option {
	return func(d *Device) { d.newConverter = f }
}

// WithSleep replaces the sleep function used for write throttling and
// error-compensation delays.
func WithSleep(f func(time.Duration)) Option {
	return func(d *Device) { d.sleep = f }
}

// Open creates the device coordinator. pathsFile is the YAML mixer
// path table for the primary card; it is only read when no WithRouter
// option overrides the routing layer. The initial routing is speaker
// out and builtin mic in.
func Open(pathsFile string, opts ...Option) (*Device, error) {
	d := &Device{
		opener:       alsaOpener,
		newConverter: newResampleConverter,
		sleep:        time.Sleep,
		outDevices:   DeviceOutSpeaker,
		inDevices:    DeviceInBuiltinMic,
		orientation:  OrientationUndefined,
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.router == nil {
		mixer, err := route.OpenMixer(pcmCard)
		if err != nil {
			return nil, fmt.Errorf("audiohw: %w", err)
		}

		table, err := route.Load(pathsFile, mixer)
		if err != nil {
			_ = mixer.Close()

			return nil, fmt.Errorf("audiohw: %w", err)
		}

		d.router = table
		d.closer = mixer.Close
	}

	d.mu.Lock()
	d.selectDevicesLocked()
	d.mu.Unlock()

	return d, nil
}

// Close forces both streams into standby and releases the mixer.
func (d *Device) Close() error {
	d.mu.Lock()

	if d.closed {
		d.mu.Unlock()

		return ErrDeviceClosed
	}
	d.closed = true

	if out := d.activeOut; out != nil {
		out.mu.Lock()
		out.standbyLocked()
		out.mu.Unlock()
	}

	if in := d.activeIn; in != nil {
		in.mu.Lock()
		in.standbyLocked()
		in.mu.Unlock()
	}

	closer := d.closer
	d.mu.Unlock()

	if closer != nil {
		return closer()
	}

	return nil
}

// selectDevicesLocked recomputes the active mixer paths from the
// current device masks and commits them. It reconfigures routing only;
// endpoints are opened and closed by the stream engines. Must be
// called with d.mu held.
func (d *Device) selectDevicesLocked() {
	d.router.Reset()

	for _, r := range devicePaths {
		var match bool
		if r.output {
			match = d.outDevices&r.mask != 0
		} else {
			match = d.inDevices&(r.mask&^DeviceBitIn) != 0
		}

		if !match {
			continue
		}

		if err := d.router.ApplyPath(r.path); err != nil {
			log.Debugf("audiohw: path %q not applied: %v", r.path, err)

			continue
		}

		log.Tracef("audiohw: routing += %s", r.path)
	}

	if err := d.router.Commit(); err != nil {
		log.Errorf("audiohw: routing commit: %v", err)
	}
}

// SetParameters consumes already-parsed device parameters. Recognized
// keys: "orientation" (landscape|portrait|square, anything else is
// undefined) and "screen_state" (on disables low power, anything else
// enables it).
func (d *Device) SetParameters(params map[string]string) {
	if value, ok := params["orientation"]; ok {
		var orientation Orientation
		switch value {
		case "landscape":
			orientation = OrientationLandscape
		case "portrait":
			orientation = OrientationPortrait
		case "square":
			orientation = OrientationSquare
		default:
			orientation = OrientationUndefined
		}

		d.mu.Lock()
		if orientation != d.orientation {
			d.orientation = orientation
			// Orientation can change while the input is closed, so
			// the mixer has to be set up here; nothing re-runs device
			// selection when the input is later opened without any
			// other routing change.
			d.selectDevicesLocked()
		}
		d.mu.Unlock()
	}

	if value, ok := params["screen_state"]; ok {
		d.mu.Lock()
		d.lowPower = value != "on"
		d.mu.Unlock()
	}
}

// Orientation returns the current orientation hint.
func (d *Device) Orientation() Orientation {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.orientation
}

// SetMicMute asserts or clears microphone muting. Muting zero-fills
// captured buffers after the read; the capture endpoint keeps
// running.
func (d *Device) SetMicMute(mute bool) {
	d.mu.Lock()
	d.micMute = mute
	d.mu.Unlock()
}

// MicMute reports the mute state.
func (d *Device) MicMute() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.micMute
}

// OutputDevices returns the current output routing mask.
func (d *Device) OutputDevices() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.outDevices
}

// InputDevices returns the current input routing mask, without the
// direction marker bit.
func (d *Device) InputDevices() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.inDevices
}

// SupportedDevices returns the union of the device masks whose mixer
// path exists in the loaded routing table. Input masks carry
// DeviceBitIn.
func (d *Device) SupportedDevices() uint32 {
	var supported uint32
	for _, r := range devicePaths {
		if d.router.HasPath(r.path) {
			supported |= r.mask
		}
	}

	return supported
}

// InputBufferSize returns the client buffer size in bytes for a
// prospective capture stream: one default capture period rescaled to
// the requested rate and rounded up to a multiple of 16 frames.
func (d *Device) InputBufferSize(rate uint32, channels int) int {
	if rate == 0 || channels < 1 {
		return 0
	}

	frames := roundUpFrames(geometryIn.PeriodSize * rate / geometryIn.Rate)

	return int(frames) * channels * 2
}

// alsaOpener is the production Opener backed by the pcm package.
func alsaOpener(card, device uint, dir Direction, g Geometry) (Endpoint, error) {
	pcmDir := pcm.Playback
	if dir == Capture {
		pcmDir = pcm.Capture
	}

	p, err := pcm.Open(card, device, pcmDir, pcm.Config{
		Channels:       g.Channels,
		Rate:           g.Rate,
		PeriodSize:     g.PeriodSize,
		PeriodCount:    g.PeriodCount,
		Format:         pcm.FormatS16LE,
		StartThreshold: g.StartThreshold,
		AvailMin:       g.AvailMin,
	})
	if err != nil {
		return nil, err
	}

	return p, nil
}

// newResampleConverter is the production ConverterFactory.
func newResampleConverter(channels int, inRate, outRate uint32) (Converter, error) {
	return resample.New(channels, inRate, outRate)
}
