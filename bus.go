package wiznet

import "context"

// BusTransport performs one framed transaction against the chip: a 16-bit
// register or buffer address, a control byte selecting bank and transfer
// direction, and the payload shifted while chip select stays asserted.
// Implementations do not retry and do not interpret the frame; a bus
// failure is returned as-is.
type BusTransport interface {
	// ReadFrame shifts out the frame header and reads len(buf) bytes into buf.
	ReadFrame(ctx context.Context, addr uint16, control byte, buf []byte) error
	// WriteFrame shifts out the frame header followed by data.
	WriteFrame(ctx context.Context, addr uint16, control byte, data []byte) error
}
