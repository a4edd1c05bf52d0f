// Package main runs a courier engine that sends messages through a gRPC relay.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

// newContext returns a cancelable context that is canceled when the process
// receives a SIGTERM or SIGINT.
func newContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sig)

		select {
		case <-ctx.Done():
		case <-sig:
			cancel()
		}
	}()

	return ctx, cancel
}

func main() {
	ctx, cancel := newContext()
	defer cancel()

	app := &cli.App{
		Name:  "courierd",
		Usage: "Deliver outgoing messages and poll open groups",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML configuration file",
				EnvVars: []string{"COURIER_CONFIG"},
			},
			&cli.StringSliceFlag{
				Name:  "env-file",
				Usage: "path to a dotenv file, ignored if it does not exist",
				Value: cli.NewStringSlice(".env"),
			},
		},
		Action: run,
		Commands: []*cli.Command{
			{
				Name:   "sample-config",
				Usage:  "write a sample configuration file to stdout",
				Action: sampleConfig,
			},
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
}
