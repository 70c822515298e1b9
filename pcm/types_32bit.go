//go:build linux && (386 || arm)

package pcm

// sndPcmUframesT is an unsigned long in the ALSA headers; 32 bits here.
type sndPcmUframesT = uint32

// sndPcmSframesT is a signed long in the ALSA headers; 32 bits here.
type sndPcmSframesT = int32

// kernelTimespec matches the legacy 32-bit struct timespec the sound
// core uses on these architectures.
type kernelTimespec struct {
	Sec  int32
	Nsec int32
}

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

// sndPcmSwParams carries the software parameters; on 32-bit layouts the
// unsigned long fields are naturally aligned without extra padding.
type sndPcmSwParams struct {
	TstampMode       uint32
	PeriodStep       uint32
	SleepMin         uint32
	AvailMin         sndPcmUframesT
	XferAlign        sndPcmUframesT
	StartThreshold   sndPcmUframesT
	StopThreshold    sndPcmUframesT
	SilenceThreshold sndPcmUframesT
	SilenceSize      sndPcmUframesT
	Boundary         sndPcmUframesT
	Reserved         [64]byte
}
