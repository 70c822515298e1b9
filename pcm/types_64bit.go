//go:build linux && (amd64 || arm64 || riscv64 || loong64)

package pcm

import (
	"golang.org/x/sys/unix"
)

// sndPcmUframesT is an unsigned long in the ALSA headers; 64 bits here.
type sndPcmUframesT = uint64

// sndPcmSframesT is a signed long in the ALSA headers; 64 bits here.
type sndPcmSframesT = int64

type kernelTimespec = unix.Timespec

// sndXferi describes one interleaved read/write transfer.
type sndXferi struct {
	Result int // C ssize_t
	Buf    uintptr
	Frames sndPcmUframesT
}

// sndPcmStatus mirrors the kernel's snd_pcm_status structure.
type sndPcmStatus struct {
	State          State
	_              [4]byte
	TriggerTstamp  kernelTimespec
	Tstamp         kernelTimespec
	ApplPtr        sndPcmUframesT
	HwPtr          sndPcmUframesT
	Delay          sndPcmSframesT
	Avail          sndPcmUframesT
	AvailMax       sndPcmUframesT
	Overrange      sndPcmUframesT
	SuspendedState State
	_              [28]byte
}

// sndPcmSwParams carries the software parameters; the 64-bit layout has
// 4 bytes of padding after SleepMin to align the uint64 fields.
type sndPcmSwParams struct {
	TstampMode       uint32
	PeriodStep       uint32
	SleepMin         uint32
	_                [4]byte
	AvailMin         sndPcmUframesT
	XferAlign        sndPcmUframesT
	StartThreshold   sndPcmUframesT
	StopThreshold    sndPcmUframesT
	SilenceThreshold sndPcmUframesT
	SilenceSize      sndPcmUframesT
	Boundary         sndPcmUframesT
	Reserved         [64]byte
}
