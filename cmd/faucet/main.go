// Package main launches the token faucet: an HTTP service dispensing a
// fixed amount of the base asset from a single hot wallet, rate limited per
// recipient identity.
package main

import (
	"os"

	"github.com/fuellabs/go-faucet/faucet/flags"
	"github.com/fuellabs/go-faucet/faucet/node"
	"github.com/fuellabs/go-faucet/monitoring/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

var log = logrus.WithField("prefix", "main")

func startFaucet(cliCtx *cli.Context) error {
	level, err := logrus.ParseLevel(cliCtx.String(flags.LogFilterFlag.Name))
	if err != nil {
		return err
	}
	logrus.SetLevel(level)

	faucet, err := node.New(cliCtx)
	if err != nil {
		return err
	}
	faucet.Start()
	return nil
}

func main() {
	app := cli.App{}
	app.Name = "faucet"
	app.Usage = "dispenses base asset tokens to a recipient address, once per identity per day"
	app.Flags = flags.Flags
	app.Action = startFaucet
	app.Before = func(ctx *cli.Context) error {
		if ctx.Bool(flags.HumanLoggingFlag.Name) {
			formatter := new(prefixed.TextFormatter)
			formatter.TimestampFormat = "2006-01-02 15:04:05"
			formatter.FullTimestamp = true
			logrus.SetFormatter(formatter)
		} else {
			logrus.SetFormatter(&logrus.JSONFormatter{})
		}
		logrus.AddHook(prometheus.NewLogrusCollector())
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}
