package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/dittovfs/internal/shell"
	"github.com/marmos91/dittovfs/pkg/config"
)

func runShell(args []string) error {
	fs := flag.NewFlagSet("shell", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file (default: "+config.GetDefaultConfigPath()+")")
	command := fs.String("c", "", "Run a single command and exit")
	uid := fs.Uint("uid", 0, "User id of the shell task")
	gid := fs.Uint("gid", 0, "Group id of the shell task")
	noPrompt := fs.Bool("no-prompt", false, "Do not print a prompt (for scripted input)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, k, logCloser, err := bootFromConfig(ctx, *configPath)
	if err != nil {
		return err
	}
	defer shutdown(k, logCloser)

	t := k.NewTask(uint32(*uid), uint32(*gid))
	defer t.Exit()

	sh := shell.New(k.Sys, k.Modules, t, os.Stdout)
	if *command != "" {
		if err := sh.Exec(*command); err != nil && !errors.Is(err, shell.ErrExit) {
			return err
		}
		return nil
	}

	err = sh.Run(ctx, os.Stdin, !*noPrompt)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
