package audiohw

import (
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/audiohw/pcm"
)

// InputStream is one client-facing capture channel. Clients always
// see mono s16 at the rate they requested at open; the engine
// downmixes the stereo capture endpoint and resamples through the
// pull-based provider protocol.
type InputStream struct {
	dev *Device

	mu       sync.Mutex // d.mu is always taken first
	endpoint Endpoint
	geometry Geometry
	standby  bool

	requestedRate uint32

	converter Converter

	// scratch holds one hardware period of raw frames. framesIn
	// counts how many of them have not been consumed yet; the oldest
	// unconsumed frame sits at PeriodSize-framesIn.
	scratch  []int16
	framesIn uint32
	readErr  error
}

// OpenInputStream creates a capture stream in standby. Only mono
// clients are supported. devices replaces the input half of the
// current routing mask (the direction marker bit is stripped). A
// requested rate differing from the capture endpoint rate gets a
// converter, built once here against the default capture geometry.
func (d *Device) OpenInputStream(devices uint32, rate uint32, channels int) (*InputStream, error) {
	if channels != 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChannels, channels)
	}

	if rate == 0 {
		return nil, fmt.Errorf("audiohw: invalid sample rate 0")
	}

	in := &InputStream{
		dev:           d,
		standby:       true,
		requestedRate: rate,
		geometry:      geometryIn,
		scratch:       make([]int16, geometryIn.PeriodSize*geometryIn.Channels),
	}

	d.mu.Lock()
	d.inDevices = d.inDevices&^DeviceInAll | devices&^DeviceBitIn
	d.selectDevicesLocked()
	d.mu.Unlock()

	if rate != geometryIn.Rate {
		conv, err := d.newConverter(1, geometryIn.Rate, rate)
		if err != nil {
			return nil, fmt.Errorf("audiohw: input converter: %w", err)
		}

		in.converter = conv
	}

	return in, nil
}

// SampleRate returns the rate requested at open.
func (in *InputStream) SampleRate() uint32 {
	return in.requestedRate
}

// Channels returns the fixed client-facing channel count.
func (in *InputStream) Channels() uint32 {
	return 1
}

// Format returns the fixed client-facing sample format.
func (in *InputStream) Format() pcm.Format {
	return pcm.FormatS16LE
}

// BufferSize returns the client buffer size in bytes: one capture
// period rescaled to the requested rate and rounded up to a multiple
// of 16 frames.
func (in *InputStream) BufferSize() int {
	frames := roundUpFrames(geometryIn.PeriodSize * in.requestedRate / geometryIn.Rate)

	return int(frames) * 2
}

// SetDevices replaces the input routing mask. A zero mask is ignored.
// Toggling the SCO bit forces the stream into standby first: the SCO
// link lives on a different PCM with a different geometry.
func (in *InputStream) SetDevices(devices uint32) {
	d := in.dev
	devices &^= DeviceBitIn

	d.mu.Lock()
	if devices != 0 && devices != d.inDevices {
		if (devices^d.inDevices)&DeviceInAllSCO != 0 {
			in.mu.Lock()
			in.standbyLocked()
			in.mu.Unlock()
		}

		d.inDevices = devices
		d.selectDevicesLocked()
	}
	d.mu.Unlock()
}

// Standby closes the endpoint and releases the hardware until the
// next read.
func (in *InputStream) Standby() {
	d := in.dev

	d.mu.Lock()
	in.mu.Lock()
	in.standbyLocked()
	in.mu.Unlock()
	d.mu.Unlock()
}

// Close forces standby and releases the converter and scratch buffer.
// The stream must not be used afterwards.
func (in *InputStream) Close() error {
	in.Standby()

	if in.converter != nil {
		if err := in.converter.Close(); err != nil {
			return err
		}

		in.converter = nil
	}
	in.scratch = nil

	return nil
}

// standbyLocked tears the endpoint down. Must be called with d.mu and
// in.mu held.
func (in *InputStream) standbyLocked() {
	if in.standby {
		return
	}

	if err := in.endpoint.Close(); err != nil {
		log.Errorf("audiohw: close input endpoint: %v", err)
	}

	in.endpoint = nil
	in.dev.activeIn = nil
	in.standby = true

	log.Debugf("audiohw: input standby")
}

// startLocked opens the endpoint for the current routing. Must be
// called with d.mu and in.mu held.
func (in *InputStream) startLocked() error {
	d := in.dev

	device := pcmDeviceMMUL
	geometry := geometryIn

	// Only the main mic PCM or the SCO PCM may be open at a time.
	if d.inDevices&DeviceInAllSCO != 0 {
		device = pcmDeviceSCOIn
		geometry = geometrySCO
	}

	// The hardware clock runs one rate family at a time. If the
	// playback side holds the other family, it has to let go first.
	if out := d.activeOut; out != nil {
		out.mu.Lock()
		if incompatibleRates(geometry.Rate, out.geometry.Rate) {
			out.standbyLocked()
		}
		out.mu.Unlock()
	}

	log.Debugf("audiohw: open input card=%d device=%d rate=%d period=%d",
		pcmCard, device, geometry.Rate, geometry.PeriodSize)

	endpoint, err := d.opener(pcmCard, device, Capture, geometry)
	if err != nil {
		log.Errorf("audiohw: open input endpoint: %v", err)

		return fmt.Errorf("%w: %v", ErrEndpointUnavailable, err)
	}

	in.endpoint = endpoint
	in.geometry = geometry
	d.activeIn = in

	if need := geometry.PeriodSize * geometry.Channels; uint32(len(in.scratch)) < need {
		in.scratch = make([]int16, need)
	}

	if in.converter != nil {
		if err := in.converter.Reset(); err != nil {
			log.Errorf("audiohw: reset input converter: %v", err)
		}
	}
	in.framesIn = 0

	return nil
}

// Read fills data with mono s16 samples at the requested rate. Read
// errors after a successful start are absorbed: the call sleeps for
// the time the block represents at the client rate and reports full
// success, so the client's pacing loop is never starved. When mic
// mute is asserted the delivered buffer is zero-filled after capture.
func (in *InputStream) Read(data []int16) (int, error) {
	d := in.dev
	frames := uint32(len(data))

	d.mu.Lock()
	in.mu.Lock()

	if in.standby {
		if err := in.startLocked(); err != nil {
			in.mu.Unlock()
			d.mu.Unlock()

			return 0, err
		}
		in.standby = false
	}

	micMute := d.micMute
	d.mu.Unlock()

	var rerr error
	switch {
	case in.converter != nil:
		_, rerr = in.converter.FromProvider(in, data)
	case in.geometry.Channels == 2:
		// Capture twice as many frames and discard the right
		// channel.
		need := frames * 2
		if uint32(len(in.scratch)) < need {
			in.scratch = make([]int16, need)
		}

		_, rerr = in.endpoint.Read(in.scratch[:need])
		if rerr == nil {
			for i := uint32(0); i < frames; i++ {
				data[i] = in.scratch[i*2]
			}
		}
	default:
		_, rerr = in.endpoint.Read(data)
	}

	if rerr == nil && micMute {
		for i := range data {
			data[i] = 0
		}
	}

	in.mu.Unlock()

	if rerr != nil {
		log.Errorf("audiohw: read failed: %v", rerr)
		d.sleep(time.Duration(frames) * time.Second / time.Duration(in.requestedRate))
	}

	return len(data), nil
}

// GetNextBuffer hands raw capture frames to the rate converter. When
// the scratch buffer is drained it blocks on one hardware read of
// exactly one period and downmixes it to mono in place. Must only be
// called from a converter invoked under in.mu.
func (in *InputStream) GetNextBuffer(frames uint32) ([]int16, error) {
	if in.endpoint == nil {
		in.readErr = ErrEndpointUnavailable

		return nil, in.readErr
	}

	if in.framesIn == 0 {
		n := in.geometry.PeriodSize * in.geometry.Channels
		if _, err := in.endpoint.Read(in.scratch[:n]); err != nil {
			in.readErr = err

			return nil, err
		}

		in.framesIn = in.geometry.PeriodSize

		if in.geometry.Channels == 2 {
			// Discard right channel.
			for i := uint32(1); i < in.framesIn; i++ {
				in.scratch[i] = in.scratch[i*2]
			}
		}
	}

	n := frames
	if n > in.framesIn {
		n = in.framesIn
	}

	offset := in.geometry.PeriodSize - in.framesIn

	return in.scratch[offset : offset+n], nil
}

// ReleaseBuffer acknowledges consumed frames. The unconsumed count
// never drops below zero.
func (in *InputStream) ReleaseBuffer(frames uint32) {
	if frames > in.framesIn {
		in.framesIn = 0

		return
	}

	in.framesIn -= frames
}
