package main

import (
	"context"
	"strconv"
	"strings"

	"golang.org/x/xerrors"

	"github.com/vaultfs/vault"
	"github.com/vaultfs/vault/backend"
	"github.com/vaultfs/vault/internal/config"
	"github.com/vaultfs/vault/internal/directorybackend"
	"github.com/vaultfs/vault/internal/membackend"
	"github.com/vaultfs/vault/internal/pluginbackend"
	"github.com/vaultfs/vault/internal/vlog"
)

// openBackend resolves a named container entry from the registry to a
// live backend.Backend, per the backend field recorded for it:
// "memory" (test/ephemeral only), "directory", or "plugin" (Location
// names a registered plugin).
func openBackend(ctx context.Context, dir string, entry *config.ContainerEntry, log *vlog.Logger) (backend.Backend, error) {
	switch entry.Backend {
	case "memory":
		bsize, err := strconv.Atoi(entry.Location)
		if err != nil {
			return nil, xerrors.Errorf("backend: memory entry %q: invalid block size %q", entry.Name, entry.Location)
		}
		return membackend.New(uint32(bsize)), nil

	case "directory":
		bsize, err := blockSizeFromArgs(entry.PluginArgs)
		if err != nil {
			return nil, err
		}
		return directorybackend.Open(entry.Location, bsize)

	case "plugin":
		plugins, err := config.LoadPlugins(dir)
		if err != nil {
			return nil, err
		}
		p := plugins.Find(entry.Location)
		if p == nil {
			return nil, xerrors.Errorf("backend: no such plugin %q", entry.Location)
		}
		be, err := pluginbackend.Launch(ctx, p.Path, append(append([]string{}, p.Args...), entry.PluginArgs...), log)
		if err != nil {
			return nil, xerrors.Errorf("backend: launch plugin %q: %w", p.Name, err)
		}
		vault.RegisterAtExit(be.Quit)
		return be, nil

	default:
		return nil, xerrors.Errorf("backend: unknown backend kind %q for container %q", entry.Backend, entry.Name)
	}
}

// blockSizeFromArgs extracts a "bsize=<n>" argument from a directory
// backend entry's plugin_args slot, the only place a fixed-layout
// registry row has left to carry it.
func blockSizeFromArgs(args []string) (uint32, error) {
	for _, a := range args {
		if n, ok := strings.CutPrefix(a, "bsize="); ok {
			v, err := strconv.Atoi(n)
			if err != nil {
				return 0, xerrors.Errorf("backend: invalid bsize %q: %w", n, err)
			}
			return uint32(v), nil
		}
	}
	return 0, xerrors.New("backend: directory entry is missing a bsize=<n> argument")
}
