package audiohw

import (
	"errors"
	"fmt"
	"sync"
	"syscall"
	"time"

	"github.com/gen2brain/audiohw/pcm"
)

// OutputStream is one client-facing playback channel. Clients always
// see stereo s16 at ClientOutRate; the engine reduces channels,
// resamples and throttles as the routed endpoint requires.
type OutputStream struct {
	dev *Device

	mu       sync.Mutex // d.mu is always taken first
	endpoint Endpoint
	geometry Geometry
	standby  bool

	lowPower       bool
	writeThreshold uint32

	converter Converter
	scratch   []int16
}

// OpenOutputStream creates a playback stream in standby. devices
// replaces the output half of the current routing mask. lowPower
// selects the deep-buffer (long period) endpoint geometry when the
// stream later starts.
func (d *Device) OpenOutputStream(devices uint32, lowPower bool) (*OutputStream, error) {
	o := &OutputStream{
		dev:      d,
		standby:  true,
		lowPower: lowPower,
		geometry: geometryOut,
	}
	if lowPower {
		o.geometry = geometryOutLowPower
	}

	// The SCO link always runs at a rate the client never produces,
	// so build the converter up front instead of on the first write.
	if devices&DeviceOutAllSCO != 0 {
		conv, err := d.newConverter(2, ClientOutRate, fullPowerRate)
		if err != nil {
			return nil, fmt.Errorf("audiohw: output converter: %w", err)
		}

		o.converter = conv
		o.scratch = make([]int16, scratchFrames*2)
	}

	d.mu.Lock()
	d.outDevices = d.outDevices&^DeviceOutAll | devices
	d.selectDevicesLocked()
	d.mu.Unlock()

	return o, nil
}

// SampleRate returns the fixed client-facing rate.
func (o *OutputStream) SampleRate() uint32 {
	return ClientOutRate
}

// Channels returns the fixed client-facing channel count.
func (o *OutputStream) Channels() uint32 {
	return 2
}

// Format returns the fixed client-facing sample format.
func (o *OutputStream) Format() pcm.Format {
	return pcm.FormatS16LE
}

// Latency returns a static playback latency estimate in milliseconds,
// independent of the current buffer occupancy.
func (o *OutputStream) Latency() uint32 {
	o.mu.Lock()
	defer o.mu.Unlock()

	return shortPeriodSize * playbackPeriodCount * 1000 / o.geometry.Rate
}

// BufferSize returns the client buffer size in bytes: one short
// period rescaled from the endpoint rate to the client rate and
// rounded up to a multiple of 16 frames.
func (o *OutputStream) BufferSize() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	frames := roundUpFrames(shortPeriodSize * ClientOutRate / o.geometry.Rate)

	return int(frames) * 2 * 2
}

// SetDevices replaces the output routing mask. A zero mask is
// ignored. Toggling any SCO bit forces the stream into standby first:
// the SCO link lives on a different PCM with a different geometry.
func (o *OutputStream) SetDevices(devices uint32) {
	d := o.dev

	d.mu.Lock()
	if devices != 0 && devices != d.outDevices {
		if (devices^d.outDevices)&DeviceOutAllSCO != 0 {
			o.mu.Lock()
			o.standbyLocked()
			o.mu.Unlock()
		}

		d.outDevices = devices
		d.selectDevicesLocked()
	}
	d.mu.Unlock()
}

// Standby closes the endpoint and releases the hardware until the
// next write.
func (o *OutputStream) Standby() {
	d := o.dev

	d.mu.Lock()
	o.mu.Lock()
	o.standbyLocked()
	o.mu.Unlock()
	d.mu.Unlock()
}

// Close forces standby and releases the converter and scratch buffer.
// The stream must not be used afterwards.
func (o *OutputStream) Close() error {
	o.Standby()

	if o.converter != nil {
		if err := o.converter.Close(); err != nil {
			return err
		}

		o.converter = nil
	}
	o.scratch = nil

	return nil
}

// standbyLocked tears the endpoint down. Must be called with d.mu and
// o.mu held.
func (o *OutputStream) standbyLocked() {
	if o.standby {
		return
	}

	if err := o.endpoint.Close(); err != nil {
		log.Errorf("audiohw: close output endpoint: %v", err)
	}

	o.endpoint = nil
	o.dev.activeOut = nil
	o.standby = true

	log.Debugf("audiohw: output standby")
}

// startLocked opens the endpoint for the current routing. Must be
// called with d.mu and o.mu held.
func (o *OutputStream) startLocked() error {
	d := o.dev

	card := pcmCard
	device := pcmDeviceMM

	switch {
	case d.outDevices&DeviceOutAuxDigital != 0:
		card = pcmCardHDMI
		o.geometry = geometryHDMI
		o.writeThreshold = geometryHDMI.Frames()
	case o.lowPower || d.lowPower:
		device = pcmDeviceMMLP
		o.geometry = geometryOutLowPower
		o.geometry.StartThreshold = longPeriodSize * 2
		o.geometry.AvailMin = longPeriodSize
		o.writeThreshold = playbackPeriodCount * longPeriodSize
	default:
		o.geometry = geometryOut
		o.geometry.StartThreshold = shortPeriodSize * 2
		o.geometry.AvailMin = shortPeriodSize
		o.writeThreshold = playbackPeriodCount * shortPeriodSize
	}

	// The hardware clock runs one rate family at a time. If the
	// capture side holds the other family, it has to let go first.
	if in := d.activeIn; in != nil {
		in.mu.Lock()
		if incompatibleRates(o.geometry.Rate, in.geometry.Rate) {
			in.standbyLocked()
		}
		in.mu.Unlock()
	}

	log.Debugf("audiohw: open output card=%d device=%d rate=%d period=%d",
		card, device, o.geometry.Rate, o.geometry.PeriodSize)

	endpoint, err := d.opener(card, device, Playback, o.geometry)
	if err != nil {
		log.Errorf("audiohw: open output endpoint: %v", err)

		return fmt.Errorf("%w: %v", ErrEndpointUnavailable, err)
	}

	o.endpoint = endpoint
	d.activeOut = o

	if o.converter != nil {
		if err := o.converter.Reset(); err != nil {
			log.Errorf("audiohw: reset output converter: %v", err)
		}
	}

	return nil
}

// Write plays interleaved stereo s16 samples at ClientOutRate. It
// blocks while the endpoint ring buffer holds more than the write
// threshold and recovers from underruns by reopening the endpoint and
// retrying the same block. I/O errors other than an underrun are
// absorbed: the call sleeps for the time the block would have taken
// to play and reports full success, so the client's own pacing loop
// is never starved.
func (o *OutputStream) Write(data []int16) (int, error) {
	d := o.dev
	frames := uint32(len(data) / 2)

	for {
		d.mu.Lock()
		o.mu.Lock()

		if o.standby {
			if err := o.startLocked(); err != nil {
				o.mu.Unlock()
				d.mu.Unlock()

				return 0, err
			}
			o.standby = false
		}

		scoOn := d.outDevices&DeviceOutAllSCO != 0
		d.mu.Unlock()

		werr := o.writeLocked(data, frames, scoOn)
		if werr != nil {
			log.Errorf("audiohw: write failed: %v", werr)

			// Compensate for the lost block so the caller's pacing
			// stays intact, whatever happens next.
			delay := time.Duration(frames) * time.Second / time.Duration(ClientOutRate)
			if delay >= time.Second {
				delay = 999999 * time.Microsecond
			}
			o.mu.Unlock()
			d.sleep(delay)

			if errors.Is(werr, syscall.EPIPE) {
				// Underrun: reopen and replay the same block.
				log.Debugf("audiohw: underrun, restarting output")
				d.mu.Lock()
				o.mu.Lock()
				o.standbyLocked()
				o.mu.Unlock()
				d.mu.Unlock()

				continue
			}

			return len(data), nil
		}

		o.mu.Unlock()

		return len(data), nil
	}
}

// writeLocked performs one write attempt: channel reduction,
// resampling, throttling, endpoint write. Must be called with o.mu
// held (and d.mu released, so control threads are not blocked for the
// duration of the I/O).
func (o *OutputStream) writeLocked(data []int16, frames uint32, scoOn bool) error {
	buf := data

	// Reduce to the endpoint channel count by discarding the right
	// channel in place.
	if o.geometry.Channels == 1 {
		for i := uint32(1); i < frames; i++ {
			buf[i] = buf[i*2]
		}
		buf = buf[:frames]
	}

	// The endpoint rate differs from the client rate only on paths
	// that need the full-power clock; build the converter on first
	// need.
	if o.geometry.Rate != ClientOutRate {
		if o.converter == nil {
			conv, err := o.dev.newConverter(int(o.geometry.Channels), ClientOutRate, o.geometry.Rate)
			if err != nil {
				return fmt.Errorf("audiohw: output converter: %w", err)
			}

			o.converter = conv
			o.scratch = make([]int16, scratchFrames*o.geometry.Channels)
		}

		n, err := o.converter.FromInput(buf, o.scratch)
		if err != nil {
			return err
		}

		buf = o.scratch[:n]
	}

	// Keep at most writeThreshold frames outstanding in the ring
	// buffer. The SCO link runs at 8kHz and never gets ahead, so it
	// skips the throttle.
	if !scoOn {
		for {
			avail, _, err := o.endpoint.Status()
			if err != nil {
				break
			}

			occupied := o.endpoint.BufferSize() - avail
			if occupied <= o.writeThreshold {
				break
			}

			excess := occupied - o.writeThreshold
			sleep := time.Duration(excess) * time.Second / time.Duration(fullPowerRate)
			if sleep < minWriteSleep {
				sleep = minWriteSleep
			}

			o.dev.sleep(sleep)
		}
	}

	_, err := o.endpoint.Write(buf)

	return err
}
