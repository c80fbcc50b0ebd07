package main

import (
	"context"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/wiznet/spi"
	"github.com/mklimuk/wiznet/w5500"
)

var portFlag = &cli.StringFlag{
	Name:  "port",
	Usage: "spi port name, empty selects the first available one",
}

// newDevice opens the SPI transport and runs the chip's reset-and-identify
// handshake. The returned closer releases the port.
func newDevice(ctx context.Context, c *cli.Context) (*w5500.Device, func(), error) {
	bus, err := spi.NewBus(c.String("port"))
	if err != nil {
		return nil, nil, err
	}
	dev := w5500.New(bus)
	if err := dev.Init(ctx); err != nil {
		_ = bus.Close()
		return nil, nil, err
	}
	return dev, func() { _ = bus.Close() }, nil
}
