package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:        "scim-proxy",
		Usage:       "Protocol-upgrading proxy for SCIM 2.0",
		HideVersion: true,
		Commands: []*cli.Command{
			Command(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
