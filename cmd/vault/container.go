package main

import (
	cryptorand "crypto/rand"
	"fmt"
	"io/ioutil"
	"net"
	"os"
	"os/signal"
	"strconv"
	"text/tabwriter"

	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"
	"google.golang.org/grpc"

	"github.com/vaultfs/vault/backend"
	"github.com/vaultfs/vault/cipher"
	"github.com/vaultfs/vault/container"
	"github.com/vaultfs/vault/internal/config"
	"github.com/vaultfs/vault/internal/rpccontainer"
	"github.com/vaultfs/vault/kdf"
)

var containerCommand = &cli.Command{
	Name:  "container",
	Usage: "create, open and manipulate raw containers",
	Subcommands: []*cli.Command{
		{
			Name:      "create",
			Usage:     "create a new container backend entry and its header",
			ArgsUsage: "<name>",
			Flags: append(passwordFlags,
				&cli.StringFlag{Name: "backend", Value: "directory", Usage: "memory | directory | plugin"},
				&cli.StringFlag{Name: "location", Required: true, Usage: "directory path, memory block size, or plugin name"},
				&cli.StringFlag{Name: "cipher", Value: "aes256-gcm", Usage: "none | aes128-ctr | aes128-gcm | aes192-ctr | aes192-gcm | aes256-ctr | aes256-gcm"},
				&cli.BoolFlag{Name: "overwrite"},
				&cli.UintFlag{Name: "bsize", Value: 4096, Usage: "gross block size (directory/memory backends)"},
			),
			Action: containerCreate,
		},
		{
			Name:      "open",
			Usage:     "verify that a container opens with the given password",
			ArgsUsage: "<name>",
			Flags:     passwordFlags,
			Action:    containerOpen,
		},
		{
			Name:      "info",
			Usage:     "show a container's cipher, KDF, revision and block sizes",
			ArgsUsage: "<name>",
			Flags:     passwordFlags,
			Action:    containerInfo,
		},
		{
			Name:   "list",
			Usage:  "list registered containers",
			Action: containerList,
		},
		{
			Name:      "read",
			Usage:     "decrypt one block to stdout",
			ArgsUsage: "<name> <id>",
			Flags:     passwordFlags,
			Action:    containerRead,
		},
		{
			Name:      "write",
			Usage:     "encrypt stdin into an existing block",
			ArgsUsage: "<name> <id>",
			Flags:     passwordFlags,
			Action:    containerWrite,
		},
		{
			Name:      "aquire",
			Usage:     "allocate a fresh zero block and print its id",
			ArgsUsage: "<name>",
			Flags:     passwordFlags,
			Action:    containerAquire,
		},
		{
			Name:      "release",
			Usage:     "drop a block",
			ArgsUsage: "<name> <id>",
			Flags:     passwordFlags,
			Action:    containerRelease,
		},
		{
			Name:      "delete",
			Usage:     "delete a container's entire backend state and drop it from the registry",
			ArgsUsage: "<name>",
			Action:    containerDelete,
		},
		{
			Name:      "attach",
			Usage:     "serve a container over a local gRPC socket for other processes to dial into",
			ArgsUsage: "<name> <unix-socket-path>",
			Flags:     passwordFlags,
			Action:    containerAttach,
		},
	},
}

func parseCipher(s string) (cipher.ID, error) {
	switch s {
	case "none":
		return cipher.None, nil
	case "aes128-ctr":
		return cipher.Aes128Ctr, nil
	case "aes128-gcm":
		return cipher.Aes128Gcm, nil
	case "aes192-ctr":
		return cipher.Aes192Ctr, nil
	case "aes192-gcm":
		return cipher.Aes192Gcm, nil
	case "aes256-ctr":
		return cipher.Aes256Ctr, nil
	case "aes256-gcm":
		return cipher.Aes256Gcm, nil
	default:
		return 0, xerrors.Errorf("container: unknown cipher %q", s)
	}
}

func resolveEntry(dir, name string) (*config.ContainerEntry, error) {
	containers, err := config.LoadContainers(dir)
	if err != nil {
		return nil, err
	}
	e := containers.Find(name)
	if e == nil {
		return nil, xerrors.Errorf("container: no such container %q", name)
	}
	return e, nil
}

// openNamed resolves a registered container by name, opens its backend,
// and opens the container itself with the resolved password.
func openNamed(c *cli.Context, name string) (*container.Container, error) {
	dir, err := config.Dir()
	if err != nil {
		return nil, err
	}
	entry, err := resolveEntry(dir, name)
	if err != nil {
		return nil, err
	}
	be, err := openBackend(c.Context, dir, entry, log_)
	if err != nil {
		return nil, err
	}
	password, err := resolvePassword(c)
	if err != nil {
		return nil, err
	}
	return container.Open(be, container.OpenOptions{Password: password})
}

func containerCreate(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return xerrors.New("container create: need <name>")
	}
	name := c.Args().First()

	dir, err := config.Dir()
	if err != nil {
		return err
	}

	cipherID, err := parseCipher(c.String("cipher"))
	if err != nil {
		return err
	}

	entry := config.ContainerEntry{Name: name, Backend: c.String("backend"), Location: c.String("location")}
	switch entry.Backend {
	case "memory":
		entry.Location = strconv.Itoa(int(c.Uint("bsize")))
	case "directory":
		entry.PluginArgs = []string{fmt.Sprintf("bsize=%d", c.Uint("bsize"))}
	}

	be, err := openBackend(c.Context, dir, &entry, log_)
	if err != nil {
		return err
	}

	password, err := resolvePassword(c)
	if err != nil {
		return err
	}

	k := kdf.None()
	if cipherID != cipher.None {
		salt := make([]byte, 16)
		if _, err := cryptorand.Read(salt); err != nil {
			return err
		}
		k = kdf.DefaultPbkdf2(salt)
	}

	if _, err := container.Create(be, container.CreateOptions{
		Cipher:    cipherID,
		KDF:       k,
		Password:  password,
		Overwrite: c.Bool("overwrite"),
	}); err != nil {
		return xerrors.Errorf("container create: %w", err)
	}

	containers, err := config.LoadContainers(dir)
	if err != nil {
		return err
	}
	containers.Upsert(entry)
	if err := config.SaveContainers(dir, containers); err != nil {
		return err
	}

	log_.Infof("created container %q (%s)", name, cipherID)
	return nil
}

func containerOpen(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return xerrors.New("container open: need <name>")
	}
	if _, err := openNamed(c, c.Args().First()); err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

func containerInfo(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return xerrors.New("container info: need <name>")
	}
	cont, err := openNamed(c, c.Args().First())
	if err != nil {
		return err
	}
	info, err := cont.Info()
	if err != nil {
		return err
	}
	fmt.Printf("cipher:     %s\n", info.Cipher)
	fmt.Printf("kdf:        %d\n", info.KDF)
	fmt.Printf("revision:   %d\n", info.Revision)
	fmt.Printf("gross size: %d\n", info.GrossSize)
	fmt.Printf("net size:   %d\n", info.NetSize)
	for k, v := range info.BackendInfo {
		fmt.Printf("backend.%s: %s\n", k, v)
	}
	return nil
}

func containerList(c *cli.Context) error {
	dir, err := config.Dir()
	if err != nil {
		return err
	}
	containers, err := config.LoadContainers(dir)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintln(w, "NAME\tBACKEND\tLOCATION")
	for _, e := range containers.Entries {
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.Name, e.Backend, e.Location)
	}
	return nil
}

func containerRead(c *cli.Context) error {
	if c.Args().Len() != 2 {
		return xerrors.New("container read: need <name> <id>")
	}
	cont, err := openNamed(c, c.Args().Get(0))
	if err != nil {
		return err
	}
	id, err := backend.ParseID(c.Args().Get(1))
	if err != nil {
		return xerrors.Errorf("container read: invalid id: %w", err)
	}
	buf := make([]byte, cont.NetSize())
	n, err := cont.Read(id, buf)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(buf[:n])
	return err
}

func containerWrite(c *cli.Context) error {
	if c.Args().Len() != 2 {
		return xerrors.New("container write: need <name> <id>")
	}
	cont, err := openNamed(c, c.Args().Get(0))
	if err != nil {
		return err
	}
	id, err := backend.ParseID(c.Args().Get(1))
	if err != nil {
		return xerrors.Errorf("container write: invalid id: %w", err)
	}
	data, err := ioutil.ReadAll(os.Stdin)
	if err != nil {
		return err
	}
	_, err = cont.Write(id, data)
	return err
}

func containerAquire(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return xerrors.New("container aquire: need <name>")
	}
	cont, err := openNamed(c, c.Args().First())
	if err != nil {
		return err
	}
	id, err := cont.Aquire()
	if err != nil {
		return err
	}
	fmt.Println(id.String())
	return nil
}

func containerRelease(c *cli.Context) error {
	if c.Args().Len() != 2 {
		return xerrors.New("container release: need <name> <id>")
	}
	cont, err := openNamed(c, c.Args().Get(0))
	if err != nil {
		return err
	}
	id, err := backend.ParseID(c.Args().Get(1))
	if err != nil {
		return xerrors.Errorf("container release: invalid id: %w", err)
	}
	return cont.Release(id)
}

func containerDelete(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return xerrors.New("container delete: need <name>")
	}
	name := c.Args().First()
	dir, err := config.Dir()
	if err != nil {
		return err
	}
	entry, err := resolveEntry(dir, name)
	if err != nil {
		return err
	}
	be, err := openBackend(c.Context, dir, entry, log_)
	if err != nil {
		return err
	}
	if err := be.Delete(); err != nil {
		return err
	}
	containers, err := config.LoadContainers(dir)
	if err != nil {
		return err
	}
	containers.Remove(name)
	return config.SaveContainers(dir, containers)
}

func containerAttach(c *cli.Context) error {
	if c.Args().Len() != 2 {
		return xerrors.New("container attach: need <name> <unix-socket-path>")
	}
	cont, err := openNamed(c, c.Args().Get(0))
	if err != nil {
		return err
	}
	socketPath := c.Args().Get(1)

	os.Remove(socketPath)
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return xerrors.Errorf("container attach: listen %s: %w", socketPath, err)
	}

	srv := grpc.NewServer()
	rpccontainer.Register(srv, cont)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		srv.GracefulStop()
	}()

	log_.Infof("serving container %q on %s", c.Args().Get(0), socketPath)
	return srv.Serve(ln)
}
