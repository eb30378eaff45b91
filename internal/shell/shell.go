// Package shell is a line-oriented command interpreter over the syscall
// layer. Every command goes through pkg/sys with the shell's own task, so
// it sees exactly what a process would.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/google/shlex"

	"github.com/marmos91/dittovfs/pkg/kmod"
	"github.com/marmos91/dittovfs/pkg/sys"
	"github.com/marmos91/dittovfs/pkg/task"
	"github.com/marmos91/dittovfs/pkg/vfs"
)

// ErrExit is returned by Exec for the exit command.
var ErrExit = errors.New("exit")

type command struct {
	usage string
	help  string
	run   func(s *Shell, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"ls":     {"ls [-a] [-l] [path]", "list a directory", (*Shell).ls},
		"cat":    {"cat path...", "print file contents", (*Shell).cat},
		"write":  {"write [-a] path text...", "write text to a file, creating it", (*Shell).write},
		"mkdir":  {"mkdir path...", "create directories", (*Shell).mkdir},
		"rmdir":  {"rmdir path...", "remove empty directories", (*Shell).rmdir},
		"rm":     {"rm path...", "remove files and links", (*Shell).rm},
		"ln":     {"ln -s target link", "create a symbolic link", (*Shell).ln},
		"stat":   {"stat path", "show metadata", (*Shell).stat},
		"chmod":  {"chmod mode path", "change permission bits (octal)", (*Shell).chmod},
		"chown":  {"chown uid[:gid] path", "change owner", (*Shell).chown},
		"cd":     {"cd [path]", "change the working directory", (*Shell).cd},
		"pwd":    {"pwd", "print the working directory", (*Shell).pwd},
		"mount":  {"mount [fstype target]", "mount a filesystem, or list mounts", (*Shell).mount},
		"umount": {"umount target", "unmount a filesystem", (*Shell).umount},
		"insmod": {"insmod name [size]", "load a module", (*Shell).insmod},
		"rmmod":  {"rmmod name", "unload a module", (*Shell).rmmod},
		"lsmod":  {"lsmod", "list loaded modules", (*Shell).lsmod},
		"help":   {"help", "show this list", (*Shell).help},
	}
}

// Shell runs commands as one task.
type Shell struct {
	sys     *sys.Syscalls
	modules *kmod.Registry
	task    *task.Task
	out     io.Writer
}

// New creates a shell acting as t. Output goes to out.
func New(s *sys.Syscalls, modules *kmod.Registry, t *task.Task, out io.Writer) *Shell {
	return &Shell{sys: s, modules: modules, task: t, out: out}
}

// Exec parses and runs one command line. Blank lines and comments are
// no-ops. It returns ErrExit for "exit" and "quit".
func (s *Shell) Exec(line string) error {
	args, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	if len(args) == 0 {
		return nil
	}

	name := args[0]
	if name == "exit" || name == "quit" {
		return ErrExit
	}
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("%s: command not found", name)
	}
	if err := cmd.run(s, args[1:]); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// Run reads commands from in until EOF, exit or ctx is cancelled. Command
// errors are printed and do not stop the loop. A prompt is written before
// each line when prompt is true.
func (s *Shell) Run(ctx context.Context, in io.Reader, prompt bool) error {
	scanner := bufio.NewScanner(in)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if prompt {
			fmt.Fprintf(s.out, "dittovfs:%s$ ", s.cwd())
		}
		if !scanner.Scan() {
			return scanner.Err()
		}

		err := s.Exec(scanner.Text())
		if errors.Is(err, ErrExit) {
			return nil
		}
		if err != nil {
			fmt.Fprintln(s.out, err)
		}
	}
}

func (s *Shell) cwd() string {
	buf := make([]byte, 4096)
	n := s.sys.Getcwd(s.task, buf)
	if n <= 0 {
		return "?"
	}
	return string(buf[:n-1])
}

// check converts a syscall result into an error.
func check(r int64) error {
	if r < 0 {
		return vfs.Errno(-r)
	}
	return nil
}

func usage(name string) error {
	return fmt.Errorf("usage: %s", commands[name].usage)
}

func (s *Shell) help([]string) error {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(s.out, "  %-24s %s\n", commands[name].usage, commands[name].help)
	}
	fmt.Fprintf(s.out, "  %-24s %s\n", "exit", "leave the shell")
	return nil
}

// flags splits leading single-letter options from operands.
func flags(args []string, allowed string) (map[byte]bool, []string, error) {
	set := make(map[byte]bool)
	i := 0
	for ; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			i++
			break
		}
		if len(arg) < 2 || arg[0] != '-' {
			break
		}
		for j := 1; j < len(arg); j++ {
			if !strings.ContainsRune(allowed, rune(arg[j])) {
				return nil, nil, fmt.Errorf("unknown option -%c", arg[j])
			}
			set[arg[j]] = true
		}
	}
	return set, args[i:], nil
}
