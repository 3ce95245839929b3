package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/fahmaliyi/keyvault/auth"
	"github.com/fahmaliyi/keyvault/cli"
	"github.com/pkg/errors"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	mode, err := parseMode(args)
	if err != nil {
		return err
	}
	dir, err := cli.Dir()
	if err != nil {
		return errors.Wrap(err, "determine vault directory")
	}
	cfg, err := loadConfig(dir, os.Getenv)
	if err != nil {
		return err
	}
	acfg, err := cfg.authConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	prompter := cli.NewTerminalPrompter(os.Stdin, os.Stdout)
	session := auth.NewSession(cfg.File, acfg, prompter, auth.WithLogger(logger))
	defer session.Close()

	if err := session.Authenticate(ctx); err != nil {
		return err
	}

	commands := cli.NewCommands(session, prompter, os.Stdout, cfg.clipboardClear())
	defer commands.Close()

	switch mode {
	case "shell":
		if _, err := commands.Exec(ctx, "l"); err != nil {
			return err
		}
		return commands.Run(ctx)
	case "setup":
		if err := session.EnsureSecrets(ctx); err != nil {
			return err
		}
		_, err := commands.Exec(ctx, "l")
		return err
	case "tui":
		return cli.RunTUI(session, cfg.clipboardClear())
	}
	return nil
}

func parseMode(args []string) (string, error) {
	if len(args) == 0 {
		return "shell", nil
	}
	switch args[0] {
	case "shell", "setup", "tui":
		return args[0], nil
	}
	return "", errors.Errorf("unknown mode %q (want shell, setup or tui)", args[0])
}
