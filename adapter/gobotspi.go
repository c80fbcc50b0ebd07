// Package adapter bridges third-party bus stacks to the driver's
// transport interface.
package adapter

import (
	"context"
	"fmt"

	"gobot.io/x/gobot/v2/drivers/spi"

	"github.com/mklimuk/wiznet"
)

var _ wiznet.BusTransport = &GobotSPI{}

// GobotSPI adapts a Gobot SPI connection to the chip's framed bus
// transport, so the driver runs on any board with a Gobot SPI adaptor.
type GobotSPI struct {
	*spi.Driver
}

// NewGobotSPI binds the transport to a Gobot SPI adaptor. bus matches the
// board's bus numbering; additional driver options (e.g. speed) may be
// supplied as in other Gobot SPI drivers.
func NewGobotSPI(adaptor spi.Connector, bus string, opts ...func(spi.Config)) *GobotSPI {
	d := spi.NewDriver(adaptor, bus, opts...)

	// Datasheet limits: mode 0, up to 33 MHz variable data length mode.
	d.SetMode(0)
	if d.GetSpeedOrDefault(0) == 0 {
		d.SetSpeed(8_000_000)
	}
	return &GobotSPI{Driver: d}
}

// Start establishes the SPI bus. Required by the Gobot driver interface.
func (g *GobotSPI) Start() error { return g.Driver.Start() }

// Halt releases the bus.
func (g *GobotSPI) Halt() error { return g.Driver.Halt() }

func (g *GobotSPI) ReadFrame(ctx context.Context, addr uint16, control byte, buf []byte) error {
	conn := g.Driver.Connection()
	ops, ok := conn.(interface {
		ReadCommandData(command []byte, data []byte) error
	})
	if !ok {
		return fmt.Errorf("spi connection does not support command reads")
	}
	header := []byte{byte(addr >> 8), byte(addr), control}
	if err := ops.ReadCommandData(header, buf); err != nil {
		return fmt.Errorf("could not read frame at %#06x: %w", addr, err)
	}
	return nil
}

func (g *GobotSPI) WriteFrame(ctx context.Context, addr uint16, control byte, data []byte) error {
	conn := g.Driver.Connection()
	ops, ok := conn.(interface {
		WriteBytes(data []byte) error
	})
	if !ok {
		return fmt.Errorf("spi connection does not support writes")
	}
	frame := make([]byte, 3, 3+len(data))
	frame[0] = byte(addr >> 8)
	frame[1] = byte(addr)
	frame[2] = control
	frame = append(frame, data...)
	if err := ops.WriteBytes(frame); err != nil {
		return fmt.Errorf("could not write frame at %#06x: %w", addr, err)
	}
	return nil
}
