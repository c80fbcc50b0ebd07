package main

import (
	"context"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/wiznet/cmd/wiznet/console"
)

var detectCmd = cli.Command{
	Name:  "detect",
	Usage: "reset the chip and report variant, addresses and link state",
	Flags: []cli.Flag{
		portFlag,
		&cli.BoolFlag{Name: "verbose,v"},
	},
	Action: func(c *cli.Context) error {
		ctx := console.SetVerbose(context.Background(), c.Bool("verbose"))

		dev, closeBus, err := newDevice(ctx, c)
		if err != nil {
			return console.Exit(1, "chip initialization error: %s", console.Red(err))
		}
		defer closeBus()

		mac, err := dev.MACAddress(ctx)
		if err != nil {
			return console.Exit(1, "error reading mac address: %s", console.Red(err))
		}
		ip, err := dev.IPAddress(ctx)
		if err != nil {
			return console.Exit(1, "error reading ip address: %s", console.Red(err))
		}
		up, err := dev.LinkUp(ctx)
		if err != nil {
			return console.Exit(1, "error reading link status: %s", console.Red(err))
		}
		link := console.Red("down")
		if up {
			link = console.Green("up")
		}
		console.Printf("%s chip: %s (%d sockets)\n", console.PictoChip, console.White(dev.Variant()), dev.Variant().MaxSockets())
		console.Printf("%s mac:  %s\n", console.PictoNetwork, console.White(mac))
		console.Printf("%s ip:   %s\n", console.PictoNetwork, console.White(ip))
		console.Printf("%s link: %s\n", console.PictoLink, link)
		return nil
	},
}
