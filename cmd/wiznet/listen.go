package main

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/wiznet/cmd/wiznet/console"
	"github.com/mklimuk/wiznet/w5500"
)

var listenCmd = cli.Command{
	Name:  "listen",
	Usage: "accept a single tcp connection and dump everything the peer sends",
	Flags: []cli.Flag{
		portFlag,
		&cli.UintFlag{
			Name:     "lport,l",
			Usage:    "local tcp port to listen on",
			Required: true,
		},
		&cli.BoolFlag{
			Name:  "echo,e",
			Usage: "write received data back to the peer",
		},
		&cli.DurationFlag{
			Name:  "timeout,t",
			Usage: "how long to wait for a peer before giving up",
			Value: 5 * time.Minute,
		},
		&cli.BoolFlag{Name: "verbose,v"},
	},
	Action: func(c *cli.Context) error {
		ctx := console.SetVerbose(context.Background(), c.Bool("verbose"))

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

		lport := uint16(c.Uint("lport"))
		if err := sock.Listen(ctx, lport); err != nil {
			return console.Exit(1, "listen error: %s", console.Red(err))
		}
		defer func() { _ = sock.Close(ctx) }()
		console.Printf("%s listening on port %d\n", console.PictoNetwork, lport)

		waitCtx, cancel := context.WithTimeout(ctx, c.Duration("timeout"))
		defer cancel()
		if err := waitForPeer(waitCtx, sock); err != nil {
			return console.Exit(1, "accept error: %s", console.Red(err))
		}
		console.Printf("%s peer connected\n", console.PictoLink)

		for {
			data, err := sock.Read(ctx, 0)
			switch {
			case errors.Is(err, io.EOF):
				console.Printf("%s peer closed the connection\n", console.PictoFinish)
				return nil
			case errors.Is(err, w5500.ErrWouldBlock):
				if sleepErr := sleep(ctx, 50*time.Millisecond); sleepErr != nil {
					return nil
				}
				continue
			case err != nil:
				return console.Exit(1, "read error: %s", console.Red(err))
			}
			console.Printf("%s", data)
			if c.Bool("echo") {
				if _, err := sock.Write(ctx, data); err != nil {
					return console.Exit(1, "echo error: %s", console.Red(err))
				}
			}
		}
	},
}

// waitForPeer polls the socket until the handshake completes. The chip flips
// the slot from LISTEN straight to ESTABLISHED when a SYN arrives.
func waitForPeer(ctx context.Context, sock *w5500.Socket) error {
	for {
		status, err := sock.Status(ctx)
		if err != nil {
			return err
		}
		switch status {
		case w5500.StatusEstablished:
			return nil
		case w5500.StatusClosed:
			return errors.New("socket closed while waiting for a peer")
		}
		if err := sleep(ctx, 100*time.Millisecond); err != nil {
			return err
		}
	}
}
