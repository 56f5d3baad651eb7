package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"github.com/vaultfs/vault/internal/config"
)

var pluginCommand = &cli.Command{
	Name:  "plugin",
	Usage: "manage the registry of backend plugin executables",
	Subcommands: []*cli.Command{
		{
			Name:      "add",
			Usage:     "register a plugin executable under a name",
			ArgsUsage: "<name> <path> [args...]",
			Action:    pluginAdd,
		},
		{
			Name:      "modify",
			Usage:     "change a registered plugin's path and/or args",
			ArgsUsage: "<name> <path> [args...]",
			Action:    pluginAdd, // add and modify are both upserts
		},
		{
			Name:      "remove",
			Usage:     "drop a registered plugin",
			ArgsUsage: "<name>",
			Action:    pluginRemove,
		},
		{
			Name:   "list",
			Usage:  "list registered plugins",
			Action: pluginList,
		},
		{
			Name:      "info",
			Usage:     "show a registered plugin's path and args",
			ArgsUsage: "<name>",
			Action:    pluginInfo,
		},
	},
}

func pluginAdd(c *cli.Context) error {
	if c.Args().Len() < 2 {
		return xerrors.New("plugin add: need <name> <path> [args...]")
	}
	dir, err := config.Dir()
	if err != nil {
		return err
	}
	plugins, err := config.LoadPlugins(dir)
	if err != nil {
		return err
	}
	args := c.Args().Slice()
	plugins.Upsert(config.PluginEntry{Name: args[0], Path: args[1], Args: args[2:]})
	return config.SavePlugins(dir, plugins)
}

func pluginRemove(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return xerrors.New("plugin remove: need <name>")
	}
	dir, err := config.Dir()
	if err != nil {
		return err
	}
	plugins, err := config.LoadPlugins(dir)
	if err != nil {
		return err
	}
	if !plugins.Remove(c.Args().First()) {
		return xerrors.Errorf("plugin remove: no such plugin %q", c.Args().First())
	}
	return config.SavePlugins(dir, plugins)
}

func pluginList(c *cli.Context) error {
	dir, err := config.Dir()
	if err != nil {
		return err
	}
	plugins, err := config.LoadPlugins(dir)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintln(w, "NAME\tPATH\tARGS")
	for _, p := range plugins.Entries {
		fmt.Fprintf(w, "%s\t%s\t%s\n", p.Name, p.Path, strings.Join(p.Args, " "))
	}
	return nil
}

func pluginInfo(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return xerrors.New("plugin info: need <name>")
	}
	dir, err := config.Dir()
	if err != nil {
		return err
	}
	plugins, err := config.LoadPlugins(dir)
	if err != nil {
		return err
	}
	p := plugins.Find(c.Args().First())
	if p == nil {
		return xerrors.Errorf("plugin info: no such plugin %q", c.Args().First())
	}
	fmt.Printf("name: %s\npath: %s\nargs: %s\n", p.Name, p.Path, strings.Join(p.Args, " "))
	return nil
}
