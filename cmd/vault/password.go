package main

import (
	"bufio"
	"fmt"
	"io/ioutil"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"
	"golang.org/x/xerrors"
)

var passwordFlags = []cli.Flag{
	&cli.StringFlag{Name: "password-from-fd", Usage: "read the password from this open file descriptor"},
	&cli.StringFlag{Name: "password-from-file", Usage: "read the password from this file"},
}

// resolvePassword implements the --password-from-fd / --password-from-file
// contract (mutually exclusive), falling back to an interactive,
// echo-free terminal prompt when neither is given and stdin is a tty, or
// to a single line read from stdin otherwise.
func resolvePassword(c *cli.Context) ([]byte, error) {
	fromFD := c.String("password-from-fd")
	fromFile := c.String("password-from-file")
	if fromFD != "" && fromFile != "" {
		return nil, xerrors.New("--password-from-fd and --password-from-file are mutually exclusive")
	}

	switch {
	case fromFD != "":
		n, err := strconv.Atoi(fromFD)
		if err != nil {
			return nil, xerrors.Errorf("invalid --password-from-fd %q: %w", fromFD, err)
		}
		f := os.NewFile(uintptr(n), "password-fd")
		defer f.Close()
		return readPasswordLine(f)

	case fromFile != "":
		b, err := ioutil.ReadFile(fromFile)
		if err != nil {
			return nil, xerrors.Errorf("reading --password-from-file: %w", err)
		}
		return trimNewline(b), nil

	case isatty.IsTerminal(os.Stdin.Fd()):
		fmt.Fprint(os.Stderr, "Password: ")
		pw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, xerrors.Errorf("reading password from terminal: %w", err)
		}
		return pw, nil

	default:
		return readPasswordLine(os.Stdin)
	}
}

func readPasswordLine(r *os.File) ([]byte, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && line == "" {
		return nil, xerrors.Errorf("reading password: %w", err)
	}
	return trimNewline([]byte(line)), nil
}

func trimNewline(b []byte) []byte {
	return []byte(strings.TrimRight(string(b), "\r\n"))
}
