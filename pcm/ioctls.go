package pcm

import (
	"unsafe"

	"github.com/gen2brain/audiohw/internal/ioctl"
)

// PCM ioctl request codes ('A' is the ALSA PCM ioctl type). The codes
// embed struct sizes, so they are computed at init time per
// architecture.
var (
	ioctlHwParams     uintptr
	ioctlSwParams     uintptr
	ioctlPrepare      uintptr
	ioctlStatus       uintptr
	ioctlWriteiFrames uintptr
	ioctlReadiFrames  uintptr
)

func init() {
	ioctlHwParams = ioctl.IOWR('A', 0x11, unsafe.Sizeof(sndPcmHwParams{}))
	ioctlSwParams = ioctl.IOWR('A', 0x13, unsafe.Sizeof(sndPcmSwParams{}))
	ioctlStatus = ioctl.IOR('A', 0x20, unsafe.Sizeof(sndPcmStatus{}))
	ioctlPrepare = ioctl.IO('A', 0x40)
	ioctlWriteiFrames = ioctl.IOW('A', 0x50, unsafe.Sizeof(sndXferi{}))
	ioctlReadiFrames = ioctl.IOR('A', 0x51, unsafe.Sizeof(sndXferi{}))
}
