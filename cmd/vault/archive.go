package main

import (
	cryptorand "crypto/rand"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"github.com/vaultfs/vault/archive"
	"github.com/vaultfs/vault/cipher"
	"github.com/vaultfs/vault/container"
	"github.com/vaultfs/vault/kdf"
)

var archiveCommand = &cli.Command{
	Name:  "archive",
	Usage: "manage a tar-like entry log stored inside a container",
	Subcommands: []*cli.Command{
		{
			Name:      "create",
			Usage:     "open (or lazily initialize) the archive rooted in a container",
			ArgsUsage: "<name>",
			Flags:     passwordFlags,
			Action:    archiveCreate,
		},
		{
			Name:      "add",
			Usage:     "append a local file, directory or symlink as a new entry",
			ArgsUsage: "<name> <path> [entry-name]",
			Flags:     append(passwordFlags, &cli.BoolFlag{Name: "compress", Usage: "s2-compress file content before splitting it into blocks"}),
			Action:    archiveAdd,
		},
		{
			Name:      "get",
			Usage:     "extract a file entry's content to stdout",
			ArgsUsage: "<name> <entry-name>",
			Flags:     passwordFlags,
			Action:    archiveGet,
		},
		{
			Name:      "list",
			Usage:     "list every entry in order",
			ArgsUsage: "<name>",
			Flags:     passwordFlags,
			Action:    archiveList,
		},
		{
			Name:      "info",
			Usage:     "show one entry's metadata",
			ArgsUsage: "<name> <entry-name>",
			Flags:     passwordFlags,
			Action:    archiveInfo,
		},
		{
			Name:      "migrate",
			Usage:     "rewrap a container's password/KDF, leaving every archive entry untouched",
			ArgsUsage: "<name>",
			Flags:     append(passwordFlags, &cli.StringFlag{Name: "new-password-from-file", Usage: "read the new password from this file"}),
			Action:    archiveMigrate,
		},
	},
}

func archiveCreate(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return xerrors.New("archive create: need <name>")
	}
	cont, err := openNamed(c, c.Args().First())
	if err != nil {
		return err
	}
	a, err := archive.Open(cont)
	if err != nil {
		return err
	}
	fmt.Printf("archive ready, %d tree slots in use\n", a.Len())
	return nil
}

func archiveAdd(c *cli.Context) error {
	if c.Args().Len() < 2 {
		return xerrors.New("archive add: need <name> <path> [entry-name]")
	}
	cont, err := openNamed(c, c.Args().Get(0))
	if err != nil {
		return err
	}
	a, err := archive.Open(cont)
	if err != nil {
		return err
	}

	path := c.Args().Get(1)
	entryName := filepath.Base(path)
	if c.Args().Len() >= 3 {
		entryName = c.Args().Get(2)
	}

	fi, err := os.Lstat(path)
	if err != nil {
		return err
	}

	switch {
	case fi.Mode()&os.ModeSymlink != 0:
		target, err := os.Readlink(path)
		if err != nil {
			return err
		}
		_, err = a.AppendSymlink(entryName, target).WithMode(uint32(fi.Mode().Perm())).Build()
		return err

	case fi.IsDir():
		_, err := a.AppendDirectory(entryName).WithMode(uint32(fi.Mode().Perm())).Build()
		return err

	default:
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		builder := a.AppendFile(entryName).WithMode(uint32(fi.Mode().Perm()))
		if c.Bool("compress") {
			builder = builder.WithCompression()
		}
		fw, err := builder.Build()
		if err != nil {
			return err
		}
		buf := make([]byte, 1<<20)
		for {
			n, err := f.Read(buf)
			if n > 0 {
				if _, werr := fw.WriteAll(buf[:n]); werr != nil {
					return werr
				}
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				return err
			}
		}
		if err := fw.Close(); err != nil {
			return err
		}
		log_.Infof("added %s as %q (%d bytes)", path, entryName, fw.Size())
		return nil
	}
}

func archiveGet(c *cli.Context) error {
	if c.Args().Len() != 2 {
		return xerrors.New("archive get: need <name> <entry-name>")
	}
	cont, err := openNamed(c, c.Args().Get(0))
	if err != nil {
		return err
	}
	a, err := archive.Open(cont)
	if err != nil {
		return err
	}
	e, err := a.Lookup(c.Args().Get(1))
	if err != nil {
		return err
	}
	if e == nil {
		return xerrors.Errorf("archive get: no such entry %q", c.Args().Get(1))
	}
	r, err := e.Open()
	if err != nil {
		return err
	}
	_, err = io.Copy(os.Stdout, r)
	return err
}

func archiveList(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return xerrors.New("archive list: need <name>")
	}
	cont, err := openNamed(c, c.Args().First())
	if err != nil {
		return err
	}
	a, err := archive.Open(cont)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintln(w, "KIND\tNAME\tSIZE\tMODE")

	e, err := a.First()
	for e != nil && err == nil {
		fmt.Fprintf(w, "%s\t%s\t%d\t%o\n", e.Kind(), e.Name(), e.Size(), e.Mode().Perm())
		e, err = e.Next()
	}
	return err
}

func archiveInfo(c *cli.Context) error {
	if c.Args().Len() != 2 {
		return xerrors.New("archive info: need <name> <entry-name>")
	}
	cont, err := openNamed(c, c.Args().Get(0))
	if err != nil {
		return err
	}
	a, err := archive.Open(cont)
	if err != nil {
		return err
	}
	e, err := a.Lookup(c.Args().Get(1))
	if err != nil {
		return err
	}
	if e == nil {
		return xerrors.Errorf("archive info: no such entry %q", c.Args().Get(1))
	}
	fmt.Printf("kind:     %s\n", e.Kind())
	fmt.Printf("name:     %s\n", e.Name())
	fmt.Printf("size:     %d\n", e.Size())
	fmt.Printf("mode:     %o\n", e.Mode().Perm())
	fmt.Printf("created:  %s\n", e.Created())
	fmt.Printf("changed:  %s\n", e.Changed())
	fmt.Printf("modified: %s\n", e.Modified())
	if e.Kind() == archive.KindSymlink {
		fmt.Printf("target:   %s\n", e.Target())
	}
	return nil
}

// archiveMigrate re-wraps the underlying container's master secret under
// a new password/KDF without touching a single archive entry block: only
// the header changes.
func archiveMigrate(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return xerrors.New("archive migrate: need <name>")
	}
	cont, err := openNamed(c, c.Args().First())
	if err != nil {
		return err
	}

	newPasswordFile := c.String("new-password-from-file")
	if newPasswordFile == "" {
		return xerrors.New("archive migrate: --new-password-from-file is required")
	}
	newPassword, err := ioutil.ReadFile(newPasswordFile)
	if err != nil {
		return err
	}

	info, err := cont.Info()
	if err != nil {
		return err
	}

	newKDF := kdf.None()
	if info.Cipher != cipher.None {
		salt := make([]byte, 16)
		if _, err := cryptorand.Read(salt); err != nil {
			return err
		}
		newKDF = kdf.DefaultPbkdf2(salt)
	}

	if err := cont.Modify(container.ModifyOptions{KDF: newKDF, NewPassword: trimNewline(newPassword)}); err != nil {
		return err
	}
	log_.Infof("container %q re-wrapped under a new password", c.Args().First())
	return nil
}
