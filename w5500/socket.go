package w5500

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Socket is an opaque handle on one hardware socket slot. It stays valid
// until closed; no slot state survives a close, so a handle must not be
// reused after Close without reallocating.
type Socket struct {
	dev  *Device
	num  uint8
	port uint16 // source port assigned at allocation
}

// ID returns the slot index, mainly for diagnostics.
func (s *Socket) ID() int { return int(s.num) }

// Socket allocates a free hardware slot. Slots polling CLOSED, FIN_WAIT or
// CLOSE_WAIT are treated as reusable even though the chip may not have
// fully released them; the allocation also reserves the next ephemeral
// source port.
func (d *Device) Socket(ctx context.Context) (*Socket, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.variant == "" {
		return nil, ErrNotInitialized
	}
	for n := uint8(0); n < uint8(d.variant.MaxSockets()); n++ {
		st, err := d.status(ctx, n)
		if err != nil {
			return nil, err
		}
		switch st {
		case StatusClosed, StatusFinWait, StatusCloseWait:
			d.srcPort++
			if d.srcPort == 0 {
				// port 0 is reserved, restart above the well-known range
				d.srcPort = 1024
			}
			return &Socket{dev: d, num: n, port: d.srcPort}, nil
		}
	}
	return nil, ErrNoFreeSocket
}

func (d *Device) status(ctx context.Context, sock uint8) (Status, error) {
	b, err := d.readSocketByte(ctx, sock, regSnSR)
	return Status(b), err
}

// command issues a socket command and reads the command register back. The
// register self-clears once the chip accepts the command; the read is
// purely diagnostic.
func (d *Device) command(ctx context.Context, sock uint8, cmd byte) error {
	if err := d.writeSocketByte(ctx, sock, regSnCR, cmd); err != nil {
		return err
	}
	_, err := d.readSocketByte(ctx, sock, regSnCR)
	return err
}

// Status polls the slot's hardware status register.
func (s *Socket) Status(ctx context.Context) (Status, error) {
	s.dev.mx.Lock()
	defer s.dev.mx.Unlock()
	return s.dev.status(ctx, s.num)
}

// Open claims the slot on the chip in the given protocol mode. For TCP the
// destination is used by a subsequent Connect; UDP sockets send to it
// directly. A nil destination leaves the destination registers untouched.
func (s *Socket) Open(ctx context.Context, mode Mode, dest net.IP, destPort uint16) error {
	s.dev.mx.Lock()
	defer s.dev.mx.Unlock()
	return s.dev.open(ctx, s.num, s.port, mode, dest, destPort)
}

func (d *Device) open(ctx context.Context, sock uint8, srcPort uint16, mode Mode, dest net.IP, destPort uint16) error {
	up, err := d.linkUp(ctx)
	if err != nil {
		return err
	}
	if !up {
		return ErrLinkDown
	}
	st, err := d.status(ctx, sock)
	if err != nil {
		return err
	}
	if st != StatusClosed {
		return fmt.Errorf("%w: slot %d is %s", ErrAlreadyOpen, sock, st)
	}
	if err := d.writeSocketByte(ctx, sock, regSnMR, byte(mode)); err != nil {
		return err
	}
	if err := d.writeSocketByte(ctx, sock, regSnIR, 0xFF); err != nil {
		return err
	}
	if srcPort == 0 {
		srcPort = d.config.LocalPort
	}
	if err := d.writeSocketUint16(ctx, sock, regSnPORT, srcPort); err != nil {
		return err
	}
	if dest != nil {
		ip4, err := toIPv4(dest)
		if err != nil {
			return err
		}
		if err := d.writeSocketReg(ctx, sock, regSnDIPR, ip4); err != nil {
			return err
		}
		if err := d.writeSocketUint16(ctx, sock, regSnDPORT, destPort); err != nil {
			return err
		}
	}
	if err := d.command(ctx, sock, cmdOpen); err != nil {
		return err
	}
	st, err = d.status(ctx, sock)
	if err != nil {
		return err
	}
	if st != StatusInit && st != StatusUDP {
		return fmt.Errorf("%w: slot %d status %s after OPEN", ErrOpenFailed, sock, st)
	}
	return nil
}

// Connect opens the slot in TCP mode and drives the chip's handshake until
// the connection is established. The wait is bounded by the configured
// connect timeout and the caller's context, whichever expires first; a
// transition to CLOSED before ESTABLISHED reports ErrConnectionRefused.
func (s *Socket) Connect(ctx context.Context, dest net.IP, destPort uint16) error {
	s.dev.mx.Lock()
	defer s.dev.mx.Unlock()
	d := s.dev
	if err := d.open(ctx, s.num, s.port, ModeTCP, dest, destPort); err != nil {
		return err
	}
	if err := d.command(ctx, s.num, cmdConnect); err != nil {
		return err
	}
	deadline := time.Now().Add(d.config.ConnectTimeout)
	for {
		st, err := d.status(ctx, s.num)
		if err != nil {
			return err
		}
		switch st {
		case StatusEstablished:
			return nil
		case StatusClosed:
			return ErrConnectionRefused
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("w5500: connect to %s:%d timed out in state %s", dest, destPort, st)
		}
		if err := sleep(ctx, d.config.PollInterval); err != nil {
			return err
		}
	}
}

// Listen opens the slot in TCP mode with no destination and puts it into
// LISTEN so a remote peer can connect. A zero port listens on the source
// port assigned at allocation.
func (s *Socket) Listen(ctx context.Context, port uint16) error {
	s.dev.mx.Lock()
	defer s.dev.mx.Unlock()
	d := s.dev
	srcPort := s.port
	if port != 0 {
		srcPort = port
	}
	if err := d.open(ctx, s.num, srcPort, ModeTCP, nil, 0); err != nil {
		return err
	}
	if err := d.command(ctx, s.num, cmdListen); err != nil {
		return err
	}
	st, err := d.status(ctx, s.num)
	if err != nil {
		return err
	}
	if st != StatusListen {
		return fmt.Errorf("%w: slot %d status %s after LISTEN", ErrOpenFailed, s.num, st)
	}
	return nil
}

// Disconnect sends a FIN and lets the chip run the TCP teardown. Use Close
// to force the slot shut.
func (s *Socket) Disconnect(ctx context.Context) error {
	s.dev.mx.Lock()
	defer s.dev.mx.Unlock()
	return s.dev.command(ctx, s.num, cmdDisconnect)
}

// Close force-closes the slot and clears its pending interrupts. Closing
// an already closed slot is a no-op at the chip level.
func (s *Socket) Close(ctx context.Context) error {
	s.dev.mx.Lock()
	defer s.dev.mx.Unlock()
	return s.dev.closeSocket(ctx, s.num)
}

func (d *Device) closeSocket(ctx context.Context, sock uint8) error {
	if err := d.command(ctx, sock, cmdClose); err != nil {
		return err
	}
	return d.writeSocketByte(ctx, sock, regSnIR, 0xFF)
}

// Available reports the number of received bytes waiting in the slot's RX
// buffer.
func (s *Socket) Available(ctx context.Context) (int, error) {
	s.dev.mx.Lock()
	defer s.dev.mx.Unlock()
	n, err := s.dev.rxReceivedSize(ctx, s.num)
	return int(n), err
}
