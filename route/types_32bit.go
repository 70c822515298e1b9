//go:build linux && (386 || arm)

package route

type clong = int32

// sndCtlElemValue holds the value of a control element. The value
// union on 32-bit systems is 512 bytes (long long value64[64]).
type sndCtlElemValue struct {
	Id       sndCtlElemId
	_        [4]byte
	Value    [512]byte
	Reserved [128]byte
}

// sndCtlElemList is used to enumerate control elements.
type sndCtlElemList struct {
	Offset   uint32
	Space    uint32
	Used     uint32
	Count    uint32
	Pids     uintptr // *sndCtlElemId
	Reserved [50]byte
}
