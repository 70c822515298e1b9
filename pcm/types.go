package pcm

// Hardware parameter identifiers (SNDRV_PCM_HW_PARAM_*).
type hwParam int

const (
	paramAccess     hwParam = 0
	paramFormat     hwParam = 1
	paramSubformat  hwParam = 2
	paramSampleBits hwParam = 8
	paramChannels   hwParam = 10
	paramRate       hwParam = 11
	paramPeriodSize hwParam = 13
	paramPeriods    hwParam = 15
	paramTickTime   hwParam = 19
)

const accessRWInterleaved = 3 // SNDRV_PCM_ACCESS_RW_INTERLEAVED

const intervalInteger = 1 << 2 // snd_interval.flags integer bit

// sndMask is a bitmask for hardware parameters.
type sndMask struct {
	Bits [8]uint32
}

// sndInterval represents a value range for a hardware parameter.
type sndInterval struct {
	MinVal uint32
	MaxVal uint32
	Flags  uint32
}

// sndPcmHwParams is the hardware parameter negotiation struct shared
// with the kernel.
type sndPcmHwParams struct {
	Flags     uint32
	Masks     [3]sndMask
	Mres      [5]sndMask
	Intervals [12]sndInterval
	Ires      [9]sndInterval
	Rmask     uint32
	Cmask     uint32
	Info      uint32
	Msbits    uint32
	RateNum   uint32
	RateDen   uint32
	FifoSize  sndPcmUframesT
	Reserved  [64]byte
}

// paramInit opens every mask and interval to its full range so the
// driver is free to refine anything not pinned afterwards.
func paramInit(p *sndPcmHwParams) {
	for n := range p.Masks {
		for i := range p.Masks[n].Bits {
			p.Masks[n].Bits[i] = ^uint32(0)
		}
	}

	for n := range p.Mres {
		for i := range p.Mres[n].Bits {
			p.Mres[n].Bits[i] = ^uint32(0)
		}
	}

	for n := range p.Intervals {
		p.Intervals[n].MinVal = 0
		p.Intervals[n].MaxVal = ^uint32(0)
		p.Intervals[n].Flags = 0
	}

	for n := range p.Ires {
		p.Ires[n].MinVal = 0
		p.Ires[n].MaxVal = ^uint32(0)
		p.Ires[n].Flags = 0
	}

	p.Rmask = ^uint32(0)
	p.Info = ^uint32(0)
}

func paramSetMask(p *sndPcmHwParams, param hwParam, bit uint32) {
	if param < paramAccess || param > paramSubformat {
		return
	}

	mask := &p.Masks[param-paramAccess]
	for i := range mask.Bits {
		mask.Bits[i] = 0
	}

	if bit >= 256 { // SNDRV_MASK_MAX
		return
	}

	mask.Bits[bit>>5] |= 1 << (bit & 31)
}

func paramSetInt(p *sndPcmHwParams, param hwParam, val uint32) {
	if param < paramSampleBits || param > paramTickTime {
		return
	}

	interval := &p.Intervals[param-paramSampleBits]
	interval.MinVal = val
	interval.MaxVal = val
	interval.Flags = intervalInteger
}

func paramSetMin(p *sndPcmHwParams, param hwParam, val uint32) {
	if param < paramSampleBits || param > paramTickTime {
		return
	}

	p.Intervals[param-paramSampleBits].MinVal = val
}

// paramGetInt reads the finalized value of an interval parameter. The
// driver narrows intervals to a single value, so MinVal is the result.
func paramGetInt(p *sndPcmHwParams, param hwParam) uint32 {
	if param < paramSampleBits || param > paramTickTime {
		return 0
	}

	return p.Intervals[param-paramSampleBits].MinVal
}
