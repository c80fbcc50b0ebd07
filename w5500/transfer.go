package w5500

import (
	"context"
	"fmt"
	"io"
	"time"
)

// Write copies p into the slot's TX circular buffer and commands the chip
// to send it. Payloads larger than the fixed hardware buffer are silently
// truncated; the returned count is the number of bytes handed to the chip.
// The buffer-space and completion waits are bounded by the configured send
// timeout and the caller's context.
func (s *Socket) Write(ctx context.Context, p []byte) (int, error) {
	s.dev.mx.Lock()
	defer s.dev.mx.Unlock()
	d := s.dev

	n := len(p)
	if n > int(BufferSize) {
		n = int(BufferSize)
	}
	deadline := time.Now().Add(d.config.SendTimeout)

	// Wait until the chip has room for the whole payload. Loss of the
	// connection while waiting aborts with zero bytes written.
	for {
		free, err := d.txFreeSize(ctx, s.num)
		if err != nil {
			return 0, err
		}
		if int(free) >= n {
			break
		}
		st, err := d.status(ctx, s.num)
		if err != nil {
			return 0, err
		}
		if st != StatusEstablished && st != StatusCloseWait {
			return 0, fmt.Errorf("%w: slot %d is %s", ErrConnectionLost, s.num, st)
		}
		if time.Now().After(deadline) {
			return 0, fmt.Errorf("w5500: timed out waiting for %d bytes of TX space on slot %d", n, s.num)
		}
		if err := sleep(ctx, d.config.PollInterval); err != nil {
			return 0, err
		}
	}

	ptr, err := d.readSocketUint16(ctx, s.num, regSnTXWR)
	if err != nil {
		return 0, err
	}
	if err := d.writeBuffer(ctx, s.num, ptr, p[:n]); err != nil {
		return 0, err
	}
	// The write pointer is free-running: advance it by the transferred
	// length and let 16-bit arithmetic wrap, the physical offset is always
	// recovered through the mask.
	if err := d.writeSocketUint16(ctx, s.num, regSnTXWR, ptr+uint16(n)); err != nil {
		return 0, err
	}
	if err := d.command(ctx, s.num, cmdSend); err != nil {
		return 0, err
	}

	for {
		ir, err := d.readSocketByte(ctx, s.num, regSnIR)
		if err != nil {
			return 0, err
		}
		if ir&snirSendOK != 0 {
			break
		}
		st, err := d.status(ctx, s.num)
		if err != nil {
			return 0, err
		}
		if st == StatusClosed {
			if err := d.closeSocket(ctx, s.num); err != nil {
				return 0, err
			}
			return 0, fmt.Errorf("%w: slot %d closed before SEND completed", ErrConnectionLost, s.num)
		}
		if time.Now().After(deadline) {
			return 0, fmt.Errorf("w5500: timed out waiting for SEND completion on slot %d", s.num)
		}
		if err := sleep(ctx, d.config.PollInterval); err != nil {
			return 0, err
		}
	}
	// Acknowledge SEND_OK only; other pending interrupt bits stay set.
	if err := d.writeSocketByte(ctx, s.num, regSnIR, snirSendOK); err != nil {
		return 0, err
	}
	return n, nil
}

// Read returns up to max bytes from the slot's RX buffer; max <= 0 reads
// everything available. With nothing buffered it reports io.EOF when the
// peer has closed its side and ErrWouldBlock when the connection is alive
// but idle. Bytes beyond max stay buffered on the chip for the next call.
func (s *Socket) Read(ctx context.Context, max int) ([]byte, error) {
	s.dev.mx.Lock()
	defer s.dev.mx.Unlock()
	d := s.dev

	avail, err := d.rxReceivedSize(ctx, s.num)
	if err != nil {
		return nil, err
	}
	if avail == 0 {
		st, err := d.status(ctx, s.num)
		if err != nil {
			return nil, err
		}
		switch st {
		case StatusListen, StatusClosed, StatusCloseWait:
			return nil, io.EOF
		}
		return nil, ErrWouldBlock
	}
	n := int(avail)
	if max > 0 && n > max {
		n = max
	}
	ptr, err := d.readSocketUint16(ctx, s.num, regSnRXRD)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if err := d.readBuffer(ctx, s.num, ptr, buf); err != nil {
		return nil, err
	}
	if err := d.writeSocketUint16(ctx, s.num, regSnRXRD, ptr+uint16(n)); err != nil {
		return nil, err
	}
	// Hand the consumed region back to the chip.
	if err := d.command(ctx, s.num, cmdRecv); err != nil {
		return nil, err
	}
	return buf, nil
}

// writeBuffer copies data into the socket's TX memory starting at the
// masked position of ptr, splitting the copy when it runs past the top of
// the bank.
func (d *Device) writeBuffer(ctx context.Context, sock uint8, ptr uint16, data []byte) error {
	offset := ptr & bufferMask
	if end := int(offset) + len(data); end > int(BufferSize) {
		head := int(BufferSize - offset)
		if err := d.writeFrame(ctx, txBufAddr(sock, ptr), ctrlTXWrite(sock), data[:head]); err != nil {
			return err
		}
		return d.writeFrame(ctx, txBufAddr(sock, 0), ctrlTXWrite(sock), data[head:])
	}
	return d.writeFrame(ctx, txBufAddr(sock, ptr), ctrlTXWrite(sock), data)
}

// readBuffer is the RX counterpart of writeBuffer.
func (d *Device) readBuffer(ctx context.Context, sock uint8, ptr uint16, buf []byte) error {
	offset := ptr & bufferMask
	if end := int(offset) + len(buf); end > int(BufferSize) {
		head := int(BufferSize - offset)
		if err := d.readFrame(ctx, rxBufAddr(sock, ptr), ctrlRXRead(sock), buf[:head]); err != nil {
			return err
		}
		return d.readFrame(ctx, rxBufAddr(sock, 0), ctrlRXRead(sock), buf[head:])
	}
	return d.readFrame(ctx, rxBufAddr(sock, ptr), ctrlRXRead(sock), buf)
}

// txFreeSize and rxReceivedSize read their size registers until two
// consecutive reads agree; the chip updates them asynchronously so a
// single read can tear mid-update.
func (d *Device) txFreeSize(ctx context.Context, sock uint8) (uint16, error) {
	return d.stableUint16(ctx, sock, regSnTXFSR)
}

func (d *Device) rxReceivedSize(ctx context.Context, sock uint8) (uint16, error) {
	return d.stableUint16(ctx, sock, regSnRXRSR)
}

func (d *Device) stableUint16(ctx context.Context, sock uint8, offset uint16) (uint16, error) {
	prev, err := d.readSocketUint16(ctx, sock, offset)
	if err != nil {
		return 0, err
	}
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		cur, err := d.readSocketUint16(ctx, sock, offset)
		if err != nil {
			return 0, err
		}
		if cur == prev {
			return cur, nil
		}
		prev = cur
	}
}
