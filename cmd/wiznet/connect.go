package main

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/wiznet/cmd/wiznet/console"
	"github.com/mklimuk/wiznet/w5500"
)

var connectCmd = cli.Command{
	Name:  "connect",
	Usage: "open a tcp connection, optionally send a payload and dump the response",
	Flags: []cli.Flag{
		portFlag,
		&cli.StringFlag{
			Name:     "dest,d",
			Usage:    "destination ipv4 address",
			Required: true,
		},
		&cli.UintFlag{
			Name:  "dport",
			Usage: "destination tcp port",
			Value: 80,
		},
		&cli.StringFlag{
			Name:  "send,s",
			Usage: "payload to send once connected",
		},
		&cli.DurationFlag{
			Name:  "timeout,t",
			Usage: "overall read timeout",
			Value: 10 * time.Second,
		},
		&cli.BoolFlag{Name: "verbose,v"},
	},
	Action: func(c *cli.Context) error {
		ctx := console.SetVerbose(context.Background(), c.Bool("verbose"))

		dest := net.ParseIP(c.String("dest"))
		if dest == nil {
			return console.Exit(1, "invalid destination address %s", console.Red(c.String("dest")))
		}

		dev, closeBus, err := newDevice(ctx, c)
		if err != nil {
			return console.Exit(1, "chip initialization error: %s", console.Red(err))
		}
		defer closeBus()

		sock, err := dev.Socket(ctx)
		if err != nil {
			return console.Exit(1, "socket allocation error: %s", console.Red(err))
		}
		console.Debugf(ctx, "allocated socket slot %d", sock.ID())

		if err := sock.Connect(ctx, dest, uint16(c.Uint("dport"))); err != nil {
			return console.Exit(1, "connection error: %s", console.Red(err))
		}
		defer func() { _ = sock.Close(ctx) }()
		console.Printf("%s connected to %s:%d\n", console.PictoLink, console.White(dest), c.Uint("dport"))

		if payload := c.String("send"); payload != "" {
			n, err := sock.Write(ctx, []byte(payload))
			if err != nil {
				return console.Exit(1, "send error: %s", console.Red(err))
			}
			console.Debugf(ctx, "sent %d bytes", n)
		}

		readCtx, cancel := context.WithTimeout(ctx, c.Duration("timeout"))
		defer cancel()
		for {
			data, err := sock.Read(readCtx, 0)
			switch {
			case errors.Is(err, io.EOF):
				console.Printf("%s end of stream\n", console.PictoFinish)
				return nil
			case errors.Is(err, w5500.ErrWouldBlock):
				if sleepErr := sleep(readCtx, 50*time.Millisecond); sleepErr != nil {
					console.Warnf("read timed out")
					return nil
				}
				continue
			case err != nil:
				return console.Exit(1, "read error: %s", console.Red(err))
			}
			console.Printf("%s", data)
		}
	},
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
