package main

import (
	"fmt"
	"os"
)

const usage = `dittovfs - virtual filesystem layer

Usage:
  dittovfs <command> [flags]

Commands:
  init     Write a default configuration file
  serve    Boot the VFS and expose it through the configured adapters
  shell    Boot the VFS and open an interactive shell on it

Run 'dittovfs <command> -h' for command flags.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "init":
		err = runInit(os.Args[2:])
	case "serve":
		err = runServe(os.Args[2:])
	case "shell":
		err = runShell(os.Args[2:])
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
