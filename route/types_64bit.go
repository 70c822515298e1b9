//go:build linux && (amd64 || arm64 || riscv64 || loong64)

package route

type clong = int64

// sndCtlElemValue holds the value of a control element. The value
// union on 64-bit systems is 1024 bytes (long value[128]).
type sndCtlElemValue struct {
	Id       sndCtlElemId
	_        [8]byte
	Value    [1024]byte
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
