package audiohw

import "time"

// Logical device selectors, one bit per device. Input selectors carry
// the DeviceBitIn marker; the Device strips it before storing and
// comparing input masks.
const (
	DeviceOutEarpiece        uint32 = 0x1
	DeviceOutSpeaker         uint32 = 0x2
	DeviceOutWiredHeadset    uint32 = 0x4
	DeviceOutWiredHeadphone  uint32 = 0x8
	DeviceOutAllSCO          uint32 = 0x70
	DeviceOutAuxDigital      uint32 = 0x400
	DeviceOutAnlgDockHeadset uint32 = 0x800
	DeviceOutDgtlDockHeadset uint32 = 0x1000

	DeviceOutAll = DeviceOutEarpiece | DeviceOutSpeaker |
		DeviceOutWiredHeadset | DeviceOutWiredHeadphone |
		DeviceOutAllSCO | DeviceOutAuxDigital |
		DeviceOutAnlgDockHeadset | DeviceOutDgtlDockHeadset

	DeviceBitIn uint32 = 0x80000000

	DeviceInCommunication       uint32 = 0x1
	DeviceInAmbient             uint32 = 0x2
	DeviceInBuiltinMic          uint32 = 0x4
	DeviceInBluetoothSCOHeadset uint32 = 0x8
	DeviceInWiredHeadset        uint32 = 0x10
	DeviceInAuxDigital          uint32 = 0x20
	DeviceInBackMic             uint32 = 0x80

	DeviceInAllSCO = DeviceInBluetoothSCOHeadset

	DeviceInAll = DeviceInCommunication | DeviceInAmbient |
		DeviceInBuiltinMic | DeviceInBluetoothSCOHeadset |
		DeviceInWiredHeadset | DeviceInAuxDigital | DeviceInBackMic
)

// Hardware layout. Card 0 carries the multimedia and SCO PCMs, card 1
// is the HDMI transmitter.
const (
	pcmCard     uint = 0
	pcmCardHDMI uint = 1

	pcmDeviceMMLP   uint = 0
	pcmDeviceMM     uint = 1
	pcmDeviceMMUL   uint = 3
	pcmDeviceSCOOut uint = 4
	pcmDeviceSCOIn  uint = 5
)

// Period geometry. The short period is 20ms at 48kHz, the long one
// 40ms; low-power output trades latency for fewer wakeups.
const (
	shortPeriodSize     uint32 = 960
	longPeriodSize      uint32 = shortPeriodSize * 2
	playbackPeriodCount uint32 = 4
	capturePeriodCount  uint32 = 2

	scoPeriodSize  uint32 = 256
	scoPeriodCount uint32 = 4
	scoRate        uint32 = 8000

	// ClientOutRate is the fixed client-facing playback rate.
	ClientOutRate uint32 = 44100

	// fullPowerRate is the reference rate used for write throttling
	// and as the resampler target on the full-power path.
	fullPowerRate uint32 = 48000

	// scratchFrames sizes the playback resampler output buffer.
	scratchFrames = shortPeriodSize * 2
)

// minWriteSleep is the shortest throttling sleep in the write path.
const minWriteSleep = 5 * time.Millisecond

var (
	geometryOut = Geometry{
		Channels:    2,
		Rate:        ClientOutRate,
		PeriodSize:  shortPeriodSize,
		PeriodCount: playbackPeriodCount,
	}

	geometryOutLowPower = Geometry{
		Channels:    2,
		Rate:        ClientOutRate,
		PeriodSize:  longPeriodSize,
		PeriodCount: playbackPeriodCount,
	}

	geometryIn = Geometry{
		Channels:    2,
		Rate:        ClientOutRate,
		PeriodSize:  shortPeriodSize,
		PeriodCount: capturePeriodCount,
	}

	geometrySCO = Geometry{
		Channels:    1,
		Rate:        scoRate,
		PeriodSize:  scoPeriodSize,
		PeriodCount: scoPeriodCount,
	}

	geometryHDMI = Geometry{
		Channels:       2,
		Rate:           fullPowerRate,
		PeriodSize:     longPeriodSize,
		PeriodCount:    playbackPeriodCount,
		StartThreshold: longPeriodSize * 2,
	}
)

// routeRule binds a device mask to a named mixer path. Device
// selection walks the whole list and applies every match; overlapping
// entries are idempotent at the routing-table level.
type routeRule struct {
	mask   uint32
	output bool
	path   string
}

var devicePaths = []routeRule{
	{DeviceOutEarpiece, true, "earpiece"},
	{DeviceOutSpeaker, true, "speaker"},
	{DeviceOutWiredHeadset | DeviceOutWiredHeadphone, true, "headphone"},
	{DeviceOutAuxDigital, true, "aux-digital-out"},
	{DeviceOutAnlgDockHeadset, true, "analog-dock"},
	{DeviceOutDgtlDockHeadset, true, "digital-dock"},
	{DeviceBitIn | DeviceInCommunication, false, "comms"},
	{DeviceBitIn | DeviceInAmbient, false, "ambient"},
	{DeviceBitIn | DeviceInBuiltinMic, false, "builtin-mic"},
	{DeviceBitIn | DeviceInWiredHeadset, false, "headset"},
	{DeviceBitIn | DeviceInAuxDigital, false, "aux-digital-in"},
	{DeviceBitIn | DeviceInBackMic, false, "back-mic"},
}

// incompatibleRates reports whether two rates belong to different
// clock families. The hardware can only run one family at a time:
// multiples of 8000 (8, 16, 32, 48 kHz) or multiples of 11025
// (11.025, 22.05, 44.1 kHz).
func incompatibleRates(a, b uint32) bool {
	return (a%8000 == 0 && b%8000 != 0) || (a%11025 == 0 && b%11025 != 0)
}

// roundUpFrames pads a frame count to the next multiple of 16, the
// granularity client mixers expect buffers in.
func roundUpFrames(frames uint32) uint32 {
	return (frames + 15) / 16 * 16
}
