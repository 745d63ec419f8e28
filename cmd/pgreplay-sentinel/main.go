package main

import (
	"context"
	"log"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:  "pgreplay-sentinel",
		Usage: "Streams PostgreSQL logical replication changes to a configurable sink",
		Commands: []*cli.Command{
			runCmd,
			publicationCmd,
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
