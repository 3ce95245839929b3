package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fahmaliyi/keyvault/auth"
	"github.com/fahmaliyi/keyvault/vault"
	"github.com/pkg/errors"
)

const usage = "Commands: a NAME=add, l=list, s NAME=show, c NAME=copy, setup, gen, q=quit"

// Commands is the line-oriented shell over an authenticated session.
type Commands struct {
	session  *auth.Session
	prompter auth.Prompter
	out      io.Writer
	clip     *clipboardWriter
}

func NewCommands(s *auth.Session, p auth.Prompter, out io.Writer, clearAfter time.Duration) *Commands {
	return &Commands{
		session:  s,
		prompter: p,
		out:      out,
		clip:     newClipboardWriter(clearAfter),
	}
}

// Close empties the clipboard if a copied secret is still waiting to be
// cleared.
func (c *Commands) Close() error {
	return c.clip.Flush()
}

// Run reads commands until q or end of input.
func (c *Commands) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprintln(c.out)
		fmt.Fprintln(c.out, usage)
		line, err := c.prompter.ReadLine("> ")
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		quit, err := c.Exec(ctx, line)
		if err != nil {
			fmt.Fprintln(c.out, "Error:", err)
		}
		if quit {
			return nil
		}
	}
}

// Exec runs a single command line.
func (c *Commands) Exec(ctx context.Context, line string) (quit bool, err error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false, nil
	}
	cmd, args := parts[0], parts[1:]

	switch cmd {
	case "a", "add":
		name, err := argName(args)
		if err != nil {
			return false, err
		}
		return false, AddSecretCLI(c.session, c.prompter, name)
	case "l", "list":
		return false, c.list()
	case "s", "show":
		name, err := argName(args)
		if err != nil {
			return false, err
		}
		return false, c.show(name)
	case "c", "copy":
		name, err := argName(args)
		if err != nil {
			return false, err
		}
		return false, c.copy(name)
	case "setup":
		return false, c.session.EnsureSecrets(ctx)
	case "gen":
		pw, err := c.session.Policy().SuggestPassphrase(4)
		if err != nil {
			return false, err
		}
		fmt.Fprintln(c.out, pw)
		return false, nil
	case "q", "quit", "exit":
		fmt.Fprintln(c.out, "Exiting.")
		return true, nil
	}
	return false, errors.Errorf("unknown command %q", cmd)
}

func argName(args []string) (string, error) {
	if len(args) < 1 {
		return "", errors.New("specify a secret name")
	}
	return args[0], nil
}

func (c *Commands) list() error {
	names, err := c.session.ListSecretNames()
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, "Available secrets:")
	if len(names) == 0 {
		fmt.Fprintln(c.out, "No secrets stored.")
		return nil
	}
	for _, n := range names {
		fmt.Fprintf(c.out, "- %s\n", n)
	}
	return nil
}

func (c *Commands) show(name string) error {
	value, err := c.session.GetSecret(name)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s: %s\n", name, value)
	return nil
}

func (c *Commands) copy(name string) error {
	secret, err := c.session.Secret(name)
	if err != nil {
		return err
	}
	value, err := secret.Resolve()
	if err != nil {
		return err
	}
	defer vault.Zero(value)

	if err := c.clip.Copy(string(value)); err != nil {
		return err
	}
	if c.clip.clearAfter > 0 {
		fmt.Fprintf(c.out, "%s copied to clipboard. Clearing in %s...\n", name, c.clip.clearAfter)
		return nil
	}
	fmt.Fprintf(c.out, "%s copied to clipboard.\n", name)
	return nil
}
