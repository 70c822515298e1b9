package pcm

import (
	"errors"
	"fmt"
	"runtime"
	"syscall"
	"unsafe"

	"github.com/gen2brain/audiohw/internal/ioctl"
)

// Write writes interleaved s16 frames to a playback device, blocking
// until everything has been queued. It returns the number of frames
// written.
//
// When the ring buffer underruns, Write fails with an error wrapping
// syscall.EPIPE without restarting the stream; recovery (prepare or
// reopen) is left to the caller.
func (p *PCM) Write(data []int16) (int, error) {
	if p.dir == Capture {
		return 0, fmt.Errorf("pcm: cannot write to a capture device")
	}

	frames := p.BytesToFrames(uint32(len(data)) * 2)
	if frames == 0 {
		return 0, nil
	}

	if p.State() == StateSetup {
		if err := p.Prepare(); err != nil {
			return 0, err
		}
	}

	defer runtime.KeepAlive(data)
	base := uintptr(unsafe.Pointer(&data[0]))

	written := uint32(0)
	for written < frames {
		xfer := sndXferi{
			Frames: sndPcmUframesT(frames - written),
			Buf:    base + uintptr(p.FramesToBytes(written)),
		}

		err := ioctl.Do(p.file.Fd(), ioctlWriteiFrames, uintptr(unsafe.Pointer(&xfer)))

		if xfer.Result > 0 {
			written += uint32(xfer.Result)
		}

		if err != nil {
			if errors.Is(err, syscall.EPIPE) {
				p.xruns++

				return int(written), fmt.Errorf("pcm: write underrun: %w", syscall.EPIPE)
			}

			return int(written), fmt.Errorf("pcm: ioctl WRITEI_FRAMES: %w", err)
		}
	}

	return int(written), nil
}

// Read reads interleaved s16 frames from a capture device, blocking
// until the buffer is full. It returns the number of frames read.
//
// A capture overrun is recovered in place by re-preparing the stream;
// the lost frames are simply gone.
func (p *PCM) Read(data []int16) (int, error) {
	if p.dir == Playback {
		return 0, fmt.Errorf("pcm: cannot read from a playback device")
	}

	frames := p.BytesToFrames(uint32(len(data)) * 2)
	if frames == 0 {
		return 0, nil
	}

	if p.State() == StateSetup {
		if err := p.Prepare(); err != nil {
			return 0, err
		}
	}

	defer runtime.KeepAlive(data)
	base := uintptr(unsafe.Pointer(&data[0]))

	read := uint32(0)
	for read < frames {
		xfer := sndXferi{
			Frames: sndPcmUframesT(frames - read),
			Buf:    base + uintptr(p.FramesToBytes(read)),
		}

		err := ioctl.Do(p.file.Fd(), ioctlReadiFrames, uintptr(unsafe.Pointer(&xfer)))

		if xfer.Result > 0 {
			read += uint32(xfer.Result)
		}

		if err != nil {
			if errors.Is(err, syscall.EPIPE) {
				p.xruns++

				if prepErr := p.Prepare(); prepErr != nil {
					return int(read), fmt.Errorf("pcm: overrun recovery: %w", prepErr)
				}

				continue
			}

			return int(read), fmt.Errorf("pcm: ioctl READI_FRAMES: %w", err)
		}
	}

	return int(read), nil
}
