package main

import (
	"context"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/wiznet/cmd/wiznet/console"
	"github.com/mklimuk/wiznet/netcfg"
)

var ifconfigCmd = cli.Command{
	Name:  "ifconfig",
	Usage: "apply a yaml network configuration to the chip",
	Flags: []cli.Flag{
		portFlag,
		&cli.StringFlag{
			Name:     "config,c",
			Usage:    "path to the yaml network configuration",
			Required: true,
		},
		&cli.BoolFlag{Name: "yes,y", Usage: "skip the confirmation prompt"},
		&cli.BoolFlag{Name: "verbose,v"},
	},
	Action: func(c *cli.Context) error {
		ctx := console.SetVerbose(context.Background(), c.Bool("verbose"))

		cfg, err := netcfg.Load(c.String("config"))
		if err != nil {
			return console.Exit(1, "configuration error: %s", console.Red(err))
		}
		if !c.Bool("yes") {
			answer, err := console.YesOrNo("write network configuration to the chip?")
			if err != nil {
				return console.Exit(1, "prompt error: %s", console.Red(err))
			}
			if answer == console.No {
				console.Printf("%s aborted\n", console.PictoStop)
				return nil
			}
		}

		dev, closeBus, err := newDevice(ctx, c)
		if err != nil {
			return console.Exit(1, "chip initialization error: %s", console.Red(err))
		}
		defer closeBus()

		if err := cfg.Apply(ctx, dev); err != nil {
			return console.Exit(1, "error applying configuration: %s", console.Red(err))
		}
		ip, err := dev.IPAddress(ctx)
		if err != nil {
			return console.Exit(1, "error reading back ip address: %s", console.Red(err))
		}
		console.Printf("%s configured, ip %s\n", console.PictoNetwork, console.Green(ip))
		return nil
	},
}
