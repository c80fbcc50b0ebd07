package w5500

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized is returned when a socket operation is attempted
	// before a successful Init.
	ErrNotInitialized = errors.New("w5500: device not initialized")
	// ErrLinkDown means the ethernet cable is disconnected or the PHY has
	// not negotiated a link.
	ErrLinkDown = errors.New("w5500: ethernet link is down")
	// ErrNoFreeSocket means every hardware socket slot is in use. The
	// caller may retry once a connection has been closed.
	ErrNoFreeSocket = errors.New("w5500: no free hardware socket slot")
	// ErrAlreadyOpen means the slot's polled status was not CLOSED when an
	// open was attempted.
	ErrAlreadyOpen = errors.New("w5500: socket is not closed")
	// ErrOpenFailed means the chip did not reach the expected state after
	// an OPEN or LISTEN command.
	ErrOpenFailed = errors.New("w5500: chip refused to open socket")
	// ErrConnectionRefused means the TCP handshake ended in CLOSED before
	// the connection was established.
	ErrConnectionRefused = errors.New("w5500: connection closed before it was established")
	// ErrConnectionLost means the socket left a connected state in the
	// middle of a transfer. The caller should close and reallocate the
	// slot rather than retry the handle.
	ErrConnectionLost = errors.New("w5500: socket closed during transfer")
	// ErrWouldBlock means the connection is alive but no data has arrived
	// yet; the caller polls again later. End of stream is reported as
	// io.EOF instead.
	ErrWouldBlock = errors.New("w5500: no data available yet")
)

// DetectionError reports an unexpected register value during the
// reset-and-identify handshake. It is fatal at initialization.
type DetectionError struct {
	Register uint16
	Got      byte
	Want     byte
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("w5500: detection failed: register %#06x read %#04x, expected %#04x",
		e.Register, e.Got, e.Want)
}
