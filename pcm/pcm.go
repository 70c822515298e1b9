// Package pcm provides direct access to ALSA kernel PCM devices, in the
// style of tinyalsa. It opens one hardware sink or source at a fixed
// configuration and exposes blocking interleaved I/O plus buffer
// occupancy reporting.
//
// Underruns are not hidden: a playback write into an underrun condition
// fails with an error wrapping syscall.EPIPE, and it is the caller's
// responsibility to decide whether to reopen or prepare the stream.
package pcm

import (
	"fmt"
	"os"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/gen2brain/audiohw/internal/ioctl"
)

// Direction selects between a playback sink and a capture source.
type Direction int

const (
	Playback Direction = iota
	Capture
)

func (d Direction) String() string {
	if d == Capture {
		return "capture"
	}

	return "playback"
}

// Format defines the sample format of a PCM stream.
// The values correspond to the SNDRV_PCM_FORMAT_* kernel constants.
type Format int32

const (
	FormatS8    Format = 0
	FormatS16LE Format = 2
	FormatS24LE Format = 6
	FormatS32LE Format = 10
)

// FormatBits returns the in-memory size of one sample in bits.
// 24-bit samples live in 32-bit containers.
func FormatBits(f Format) uint32 {
	switch f {
	case FormatS32LE, FormatS24LE:
		return 32
	case FormatS16LE:
		return 16
	case FormatS8:
		return 8
	default:
		return 0
	}
}

// State reflects the kernel's view of a PCM stream.
// The values correspond to the SNDRV_PCM_STATE_* kernel constants.
type State int32

const (
	StateOpen         State = 0
	StateSetup        State = 1
	StatePrepared     State = 2
	StateRunning      State = 3
	StateXrun         State = 4
	StateDraining     State = 5
	StatePaused       State = 6
	StateSuspended    State = 7
	StateDisconnected State = 8
)

// Config holds the hardware and software parameters of a PCM stream.
// Zero threshold values are replaced with direction-appropriate defaults.
type Config struct {
	Channels       uint32
	Rate           uint32
	PeriodSize     uint32
	PeriodCount    uint32
	Format         Format
	StartThreshold uint32
	StopThreshold  uint32
	AvailMin       uint32
}

// PCM is an open ALSA PCM device handle.
type PCM struct {
	file       *os.File
	dir        Direction
	config     Config
	bufferSize uint32 // in frames
	boundary   sndPcmUframesT
	xruns      int
}

// Open opens the hardware PCM device for the given card and device
// number and configures it. Only direct hardware devices are supported
// (/dev/snd/pcmC<card>D<device>[pc]); there is no plugin layer.
func Open(card, device uint, dir Direction, config Config) (*PCM, error) {
	streamChar := byte('p')
	if dir == Capture {
		streamChar = 'c'
	}

	path := fmt.Sprintf("/dev/snd/pcmC%dD%d%c", card, device, streamChar)

	// Open non-blocking so a busy device fails fast, then switch to
	// blocking mode for the actual I/O.
	file, err := os.OpenFile(path, os.O_RDWR|syscall.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("pcm: open %s: %w", path, err)
	}

	flags, err := unix.FcntlInt(file.Fd(), unix.F_GETFL, 0)
	if err != nil {
		_ = file.Close()

		return nil, fmt.Errorf("pcm: fcntl F_GETFL %s: %w", path, err)
	}

	if _, err = unix.FcntlInt(file.Fd(), unix.F_SETFL, flags&^syscall.O_NONBLOCK); err != nil {
		_ = file.Close()

		return nil, fmt.Errorf("pcm: clear O_NONBLOCK on %s: %w", path, err)
	}

	p := &PCM{
		file: file,
		dir:  dir,
	}

	if err := p.setConfig(config); err != nil {
		_ = p.Close()

		return nil, fmt.Errorf("pcm: configure %s: %w", path, err)
	}

	return p, nil
}

// Close closes the device handle.
func (p *PCM) Close() error {
	if p == nil || p.file == nil {
		return nil
	}

	err := p.file.Close()
	p.file = nil
	p.bufferSize = 0

	return err
}

// IsReady reports whether the handle refers to an open device.
func (p *PCM) IsReady() bool {
	return p != nil && p.file != nil
}

// Config returns a copy of the configuration as refined by the driver.
func (p *PCM) Config() Config {
	return p.config
}

// BufferSize returns the total ring buffer size in frames.
func (p *PCM) BufferSize() uint32 {
	return p.bufferSize
}

// Channels returns the channel count of the stream.
func (p *PCM) Channels() uint32 {
	return p.config.Channels
}

// Rate returns the sample rate of the stream in Hz.
func (p *PCM) Rate() uint32 {
	return p.config.Rate
}

// FrameSize returns the size of one frame in bytes.
func (p *PCM) FrameSize() uint32 {
	return p.config.Channels * (FormatBits(p.config.Format) / 8)
}

// Xruns returns the number of underruns (playback) or overruns
// (capture) observed on this handle.
func (p *PCM) Xruns() int {
	return p.xruns
}

// setConfig negotiates hardware and software parameters with the driver
// and records the refined configuration.
func (p *PCM) setConfig(config Config) error {
	p.config = config

	hw := &sndPcmHwParams{}
	paramInit(hw)

	paramSetMask(hw, paramAccess, accessRWInterleaved)
	paramSetMask(hw, paramFormat, uint32(config.Format))
	paramSetInt(hw, paramChannels, config.Channels)
	paramSetInt(hw, paramRate, config.Rate)
	paramSetMin(hw, paramPeriodSize, config.PeriodSize)
	paramSetInt(hw, paramPeriods, config.PeriodCount)

	if err := ioctl.Do(p.file.Fd(), ioctlHwParams, uintptr(unsafe.Pointer(hw))); err != nil {
		return fmt.Errorf("ioctl HW_PARAMS: %w", err)
	}

	// The driver may have narrowed the requested geometry.
	p.config.PeriodSize = paramGetInt(hw, paramPeriodSize)
	p.config.PeriodCount = paramGetInt(hw, paramPeriods)
	p.config.Channels = paramGetInt(hw, paramChannels)
	p.config.Rate = paramGetInt(hw, paramRate)
	p.bufferSize = p.config.PeriodSize * p.config.PeriodCount

	if p.config.Channels == 0 || p.config.Rate == 0 || p.bufferSize == 0 {
		return fmt.Errorf("driver finalized invalid configuration (channels=%d, rate=%d, period=%dx%d)",
			p.config.Channels, p.config.Rate, p.config.PeriodSize, p.config.PeriodCount)
	}

	sw := &sndPcmSwParams{}
	sw.TstampMode = 1 // SNDRV_PCM_TSTAMP_ENABLE
	sw.PeriodStep = 1

	if p.config.AvailMin == 0 {
		p.config.AvailMin = p.config.PeriodSize
	}
	sw.AvailMin = sndPcmUframesT(p.config.AvailMin)

	if p.config.StartThreshold == 0 {
		if p.dir == Capture {
			p.config.StartThreshold = 1
		} else {
			p.config.StartThreshold = p.bufferSize / 2
		}
	}
	sw.StartThreshold = sndPcmUframesT(p.config.StartThreshold)

	if p.config.StopThreshold == 0 {
		if p.dir == Capture {
			p.config.StopThreshold = p.bufferSize * 10
		} else {
			p.config.StopThreshold = p.bufferSize
		}
	}
	sw.StopThreshold = sndPcmUframesT(p.config.StopThreshold)

	sw.XferAlign = sndPcmUframesT(p.config.PeriodSize / 2) // needed by old kernels

	if err := ioctl.Do(p.file.Fd(), ioctlSwParams, uintptr(unsafe.Pointer(sw))); err != nil {
		return fmt.Errorf("ioctl SW_PARAMS: %w", err)
	}

	p.boundary = sw.Boundary

	return nil
}

// Prepare readies the device for I/O, recovering it from SETUP or XRUN.
func (p *PCM) Prepare() error {
	if err := ioctl.Do(p.file.Fd(), ioctlPrepare, 0); err != nil {
		return fmt.Errorf("pcm: ioctl PREPARE: %w", err)
	}

	return nil
}

// State returns the kernel state of the stream.
func (p *PCM) State() State {
	var status sndPcmStatus
	if err := ioctl.Do(p.file.Fd(), ioctlStatus, uintptr(unsafe.Pointer(&status))); err != nil {
		return StateDisconnected
	}

	return status.State
}

// Status returns the number of frames currently available to the
// application (writable space for playback, readable frames for
// capture) and the driver timestamp of that snapshot.
func (p *PCM) Status() (avail uint32, ts time.Time, err error) {
	if !p.IsReady() {
		return 0, time.Time{}, fmt.Errorf("pcm: handle not open")
	}

	var status sndPcmStatus
	if ioctlErr := ioctl.Do(p.file.Fd(), ioctlStatus, uintptr(unsafe.Pointer(&status))); ioctlErr != nil {
		return 0, time.Time{}, fmt.Errorf("pcm: ioctl STATUS: %w", ioctlErr)
	}

	avail = uint32(status.Avail)
	if avail > p.bufferSize {
		avail = p.bufferSize
	}

	ts = time.Unix(int64(status.Tstamp.Sec), int64(status.Tstamp.Nsec))

	return avail, ts, nil
}

// FramesToBytes converts a frame count to a byte count for this stream.
func (p *PCM) FramesToBytes(frames uint32) uint32 {
	return frames * p.FrameSize()
}

// BytesToFrames converts a byte count to a frame count for this stream.
func (p *PCM) BytesToFrames(bytes uint32) uint32 {
	fs := p.FrameSize()
	if fs == 0 {
		return 0
	}

	return bytes / fs
}
