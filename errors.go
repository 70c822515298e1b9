package audiohw

import "errors"

var (
	// ErrEndpointUnavailable is returned when the hardware endpoint
	// cannot be opened. The stream stays in standby.
	ErrEndpointUnavailable = errors.New("audiohw: endpoint unavailable")

	// ErrInvalidChannels is returned by OpenInputStream for any
	// channel layout other than mono.
	ErrInvalidChannels = errors.New("audiohw: unsupported channel count")

	// ErrDeviceClosed is returned by operations on a closed Device.
	ErrDeviceClosed = errors.New("audiohw: device closed")
)
