// Command mrsdb is a thin CLI wrapper over the databank facade: it
// exists to exercise create/store/query end to end the way a real
// caller would drive them, not as a feature surface in its own right.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "mrsdb",
		Usage: "batch-built sequence databank engine",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to an mrsdb.toml tunables file",
				Value: "mrsdb.toml",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "report batch build progress to stderr",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "lay out a new, empty databank from a field schema",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dir", Usage: "databank directory", Required: true},
					&cli.StringFlag{Name: "schema", Usage: "TOML field schema file", Required: true},
				},
				Action: createCommand,
			},
			{
				Name:  "store",
				Usage: "run a batch build, reading newline-delimited JSON records from stdin",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dir", Usage: "databank directory", Required: true},
				},
				Action: storeCommand,
			},
			{
				Name:    "query",
				Aliases: []string{"find"},
				Usage:   "run a ranked or boolean query against a databank",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dir", Usage: "databank directory", Required: true},
					&cli.IntFlag{Name: "limit", Usage: "maximum ranked hits to return", Value: 20},
					&cli.BoolFlag{Name: "all-required", Usage: "require every ranked term to match"},
					&cli.BoolFlag{Name: "boolean", Usage: "evaluate as a pure boolean query, printing doc numbers only"},
				},
				Action: queryCommand,
			},
			{
				Name:  "complete",
				Usage: "list spell-dictionary completions for a prefix",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dir", Usage: "databank directory", Required: true},
				},
				Action: completeCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "mrsdb: %v\n", err)
		os.Exit(1)
	}
}
