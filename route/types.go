package route

import (
	"unsafe"

	"github.com/gen2brain/audiohw/internal/ioctl"
)

// sndCtlElemId identifies a single control element.
type sndCtlElemId struct {
	Numid     uint32
	Iface     int32 // snd_ctl_elem_iface_t
	Device    uint32
	Subdevice uint32
	Name      [44]byte
	Index     uint32
}

// sndCtlElemInfo contains metadata about a control element.
type sndCtlElemInfo struct {
	Id     sndCtlElemId
	Typ    int32 // snd_ctl_elem_type_t
	Access uint32
	Count  uint32
	Owner  int32
	// Union sized to the largest member (unsigned char reserved[128]).
	Value    [128]byte
	Reserved [64]byte
}

// sndCtlEnum is the `enumerated` member of the sndCtlElemInfo value union.
type sndCtlEnum struct {
	Items       uint32
	Item        uint32
	Name        [64]byte
	NamesPtr    uint64
	NamesLength uint32
}

// Control interface ioctl request codes, computed at init from the
// struct sizes of the running architecture.
var (
	ioctlElemList  uintptr
	ioctlElemInfo  uintptr
	ioctlElemRead  uintptr
	ioctlElemWrite uintptr
)

func init() {
	ioctlElemList = ioctl.IOWR('U', 0x10, unsafe.Sizeof(sndCtlElemList{}))
	ioctlElemInfo = ioctl.IOWR('U', 0x11, unsafe.Sizeof(sndCtlElemInfo{}))
	ioctlElemRead = ioctl.IOWR('U', 0x12, unsafe.Sizeof(sndCtlElemValue{}))
	ioctlElemWrite = ioctl.IOWR('U', 0x13, unsafe.Sizeof(sndCtlElemValue{}))
}
