// Package spi provides a bus transport over a kernel-exposed SPI port
// using periph.io. The chip frames every transaction as a 3-byte header
// (address high, address low, control byte) followed by the payload, with
// chip select asserted for the whole frame.
package spi

import (
	"context"
	"fmt"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/mklimuk/wiznet"
)

var _ wiznet.BusTransport = &Bus{}

type Bus struct {
	port spi.PortCloser
	conn spi.Conn
}

// NewBus opens the named SPI port ("" selects the first available one) and
// configures it for the chip: mode 0, 8 bits per word, 8 MHz.
func NewBus(dev string) (*Bus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	port, err := spireg.Open(dev)
	if err != nil {
		return nil, fmt.Errorf("could not open spi port: %w", err)
	}
	conn, err := port.Connect(8*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("could not configure spi connection: %w", err)
	}
	return &Bus{port: port, conn: conn}, nil
}

func (b *Bus) ReadFrame(ctx context.Context, addr uint16, control byte, buf []byte) error {
	tx := make([]byte, 3+len(buf))
	tx[0] = byte(addr >> 8)
	tx[1] = byte(addr)
	tx[2] = control
	rx := make([]byte, len(tx))
	if err := b.conn.Tx(tx, rx); err != nil {
		return fmt.Errorf("could not read frame at %#06x: %w", addr, err)
	}
	copy(buf, rx[3:])
	return nil
}

func (b *Bus) WriteFrame(ctx context.Context, addr uint16, control byte, data []byte) error {
	tx := make([]byte, 3, 3+len(data))
	tx[0] = byte(addr >> 8)
	tx[1] = byte(addr)
	tx[2] = control
	tx = append(tx, data...)
	if err := b.conn.Tx(tx, nil); err != nil {
		return fmt.Errorf("could not write frame at %#06x: %w", addr, err)
	}
	return nil
}

func (b *Bus) Close() error {
	return b.port.Close()
}
