// Package ioctl provides the ioctl syscall wrapper and request-code
// builders shared by the pcm and route packages.
package ioctl

import (
	"syscall"
)

const (
	nrBits   = 8
	typeBits = 8
	sizeBits = 14

	nrShift   = 0
	typeShift = nrShift + nrBits
	sizeShift = typeShift + typeBits
	dirShift  = sizeShift + sizeBits

	dirNone  = 0
	dirWrite = 1
	dirRead  = 2
)

// Do performs a generic ioctl syscall.
func Do(fd uintptr, req uintptr, arg uintptr) error {
	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, fd, req, arg)
	if errno != 0 {
		return errno
	}

	return nil
}

// IO builds an ioctl request code for a command with no data transfer.
func IO(typ, nr uintptr) uintptr {
	return (dirNone << dirShift) | (typ << typeShift) | (nr << nrShift)
}

// IOW builds an ioctl request code for a write-only operation.
func IOW(typ, nr, size uintptr) uintptr {
	return (dirWrite << dirShift) | (typ << typeShift) | (nr << nrShift) | (size << sizeShift)
}

// IOR builds an ioctl request code for a read-only operation.
func IOR(typ, nr, size uintptr) uintptr {
	return (dirRead << dirShift) | (typ << typeShift) | (nr << nrShift) | (size << sizeShift)
}

// IOWR builds an ioctl request code for a read-write operation.
func IOWR(typ, nr, size uintptr) uintptr {
	return ((dirRead | dirWrite) << dirShift) | (typ << typeShift) | (nr << nrShift) | (size << sizeShift)
}
