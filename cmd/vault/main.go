// Command vault is the command-line front end for the nuts container and
// archive libraries: plugin/container/archive registry management plus
// the block- and entry-level operations themselves.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/vaultfs/vault"
	"github.com/vaultfs/vault/internal/vlog"
)

var (
	debug     bool
	verbosity int
	log_      *vlog.Logger
)

func main() {
	if err := funcmain(); err != nil {
		if debug {
			fmt.Fprintf(os.Stderr, "%+v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "%v\n", err)
		}
		os.Exit(1)
	}
}

func funcmain() error {
	ctx, canc := vault.InterruptibleContext()
	defer canc()

	app := &cli.App{
		Name:  "vault",
		Usage: "manage encrypted block containers and their archives",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "debug", Usage: "format error messages with additional detail", Destination: &debug},
			&cli.BoolFlag{Name: "v", Aliases: []string{"verbose"}, Usage: "increase log verbosity (repeatable: -v -v -v)", Count: &verbosity},
			&cli.BoolFlag{Name: "q", Aliases: []string{"quiet"}, Usage: "suppress all but error output"},
		},
		Before: func(c *cli.Context) error {
			log_ = vlog.New(verbosityToLevel(verbosity, c.Bool("q")))
			return nil
		},
		Commands: []*cli.Command{
			pluginCommand,
			containerCommand,
			archiveCommand,
		},
	}
	if err := app.RunContext(ctx, os.Args); err != nil {
		return err
	}
	return vault.RunAtExit()
}

// verbosityToLevel maps -v's repeat count and -q down to a vlog.Level,
// vlog.LevelInfo being the default with neither flag given.
func verbosityToLevel(v int, quiet bool) vlog.Level {
	if quiet {
		return vlog.LevelError
	}
	level := vlog.LevelInfo
	for i := 0; i < v; i++ {
		if level == vlog.LevelTrace {
			break
		}
		level--
	}
	return level
}
