package shell

import (
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/marmos91/dittovfs/pkg/kmod"
	"github.com/marmos91/dittovfs/pkg/sys"
	"github.com/marmos91/dittovfs/pkg/vfs"
)

const ioChunk = 4096

func typeChar(t vfs.FileType) byte {
	switch t {
	case vfs.TypeDirectory:
		return 'd'
	case vfs.TypeSymlink:
		return 'l'
	case vfs.TypeRegular:
		return '-'
	default:
		return '?'
	}
}

func (s *Shell) ls(args []string) error {
	opts, operands, err := flags(args, "al")
	if err != nil {
		return err
	}
	if len(operands) > 1 {
		return usage("ls")
	}
	dir := "."
	if len(operands) == 1 {
		dir = operands[0]
	}

	fd := s.sys.Open(s.task, dir, vfs.O_RDONLY|vfs.O_DIRECTORY, 0)
	if err := check(fd); err != nil {
		return fmt.Errorf("%s: %w", dir, err)
	}
	defer s.sys.Close(s.task, int(fd))

	buf := make([]byte, ioChunk)
	for {
		n := s.sys.Getdents(s.task, int(fd), buf)
		if err := check(n); err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		for _, e := range sys.DecodeDirents(buf[:n]) {
			if !opts['a'] && (e.Name == "." || e.Name == "..") {
				continue
			}
			if !opts['l'] {
				fmt.Fprintln(s.out, e.Name)
				continue
			}
			var st vfs.Stat
			if err := check(s.sys.Lstat(s.task, path.Join(dir, e.Name), &st)); err != nil {
				fmt.Fprintf(s.out, "%c????????? %s\n", typeChar(e.Type), e.Name)
				continue
			}
			fmt.Fprintf(s.out, "%c%s %5d %5d %8d %s\n",
				typeChar(st.Type), st.Perm, st.UID, st.GID, st.Size, e.Name)
		}
	}
}

func (s *Shell) cat(args []string) error {
	if len(args) == 0 {
		return usage("cat")
	}
	buf := make([]byte, ioChunk)
	for _, p := range args {
		fd := s.sys.Open(s.task, p, vfs.O_RDONLY, 0)
		if err := check(fd); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		for {
			n := s.sys.Read(s.task, int(fd), buf)
			if n <= 0 {
				s.sys.Close(s.task, int(fd))
				if err := check(n); err != nil {
					return fmt.Errorf("%s: %w", p, err)
				}
				break
			}
			if _, err := s.out.Write(buf[:n]); err != nil {
				s.sys.Close(s.task, int(fd))
				return err
			}
		}
	}
	return nil
}

// write replaces (or with -a appends to) the file with the remaining
// arguments joined by spaces and a trailing newline.
func (s *Shell) write(args []string) error {
	opts, operands, err := flags(args, "a")
	if err != nil {
		return err
	}
	if len(operands) < 1 {
		return usage("write")
	}
	p := operands[0]
	data := []byte(strings.Join(operands[1:], " ") + "\n")

	flag := vfs.O_WRONLY | vfs.O_CREAT
	if opts['a'] {
		flag |= vfs.O_APPEND
	} else {
		flag |= vfs.O_TRUNC
	}
	fd := s.sys.Open(s.task, p, flag, 0o644)
	if err := check(fd); err != nil {
		return fmt.Errorf("%s: %w", p, err)
	}
	defer s.sys.Close(s.task, int(fd))

	for len(data) > 0 {
		n := s.sys.Write(s.task, int(fd), data)
		if err := check(n); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		data = data[n:]
	}
	return nil
}

// eachPath applies call to every operand and reports the first failure
// after trying all of them.
func (s *Shell) eachPath(name string, args []string, call func(string) int64) error {
	if len(args) == 0 {
		return usage(name)
	}
	var first error
	for _, p := range args {
		if err := check(call(p)); err != nil {
			err = fmt.Errorf("%s: %w", p, err)
			if first == nil {
				first = err
			} else {
				fmt.Fprintf(s.out, "%s: %v\n", name, err)
			}
		}
	}
	return first
}

func (s *Shell) mkdir(args []string) error {
	return s.eachPath("mkdir", args, func(p string) int64 { return s.sys.Mkdir(s.task, p, 0o755) })
}

func (s *Shell) rmdir(args []string) error {
	return s.eachPath("rmdir", args, func(p string) int64 { return s.sys.Rmdir(s.task, p) })
}

func (s *Shell) rm(args []string) error {
	return s.eachPath("rm", args, func(p string) int64 { return s.sys.Unlink(s.task, p) })
}

func (s *Shell) ln(args []string) error {
	opts, operands, err := flags(args, "s")
	if err != nil {
		return err
	}
	if !opts['s'] || len(operands) != 2 {
		return usage("ln")
	}
	return check(s.sys.Symlink(s.task, operands[0], operands[1]))
}

func (s *Shell) stat(args []string) error {
	if len(args) != 1 {
		return usage("stat")
	}
	p := args[0]

	var st vfs.Stat
	if err := check(s.sys.Lstat(s.task, p, &st)); err != nil {
		return fmt.Errorf("%s: %w", p, err)
	}

	name := p
	if st.Type == vfs.TypeSymlink {
		buf := make([]byte, ioChunk)
		if n := s.sys.Readlink(s.task, p, buf); n >= 0 {
			name = fmt.Sprintf("%s -> %s", p, buf[:n])
		}
	}

	fmt.Fprintf(s.out, "  File: %s\n", name)
	fmt.Fprintf(s.out, "  Type: %s\n", st.Type)
	fmt.Fprintf(s.out, "  Size: %d\n", st.Size)
	fmt.Fprintf(s.out, "Access: (%04o/%c%s)  Uid: %d  Gid: %d\n",
		uint16(st.Perm), typeChar(st.Type), st.Perm, st.UID, st.GID)
	fmt.Fprintf(s.out, "Access: %s\n", st.AccessTime.Time().Format(time.RFC3339))
	fmt.Fprintf(s.out, "Modify: %s\n", st.ModifyTime.Time().Format(time.RFC3339))
	fmt.Fprintf(s.out, "Change: %s\n", st.ChangeTime.Time().Format(time.RFC3339))
	return nil
}

func (s *Shell) chmod(args []string) error {
	if len(args) != 2 {
		return usage("chmod")
	}
	mode, err := strconv.ParseUint(args[0], 8, 32)
	if err != nil {
		return fmt.Errorf("invalid mode %q", args[0])
	}
	return check(s.sys.Chmod(s.task, args[1], uint32(mode)))
}

// chown accepts "uid" or "uid:gid". A missing gid keeps the current one.
func (s *Shell) chown(args []string) error {
	if len(args) != 2 {
		return usage("chown")
	}
	p := args[1]

	var st vfs.Stat
	if err := check(s.sys.Stat(s.task, p, &st)); err != nil {
		return fmt.Errorf("%s: %w", p, err)
	}

	uidStr, gidStr, hasGID := strings.Cut(args[0], ":")
	uid, err := strconv.ParseUint(uidStr, 10, 32)
	if err != nil {
		return fmt.Errorf("invalid uid %q", uidStr)
	}
	gid := uint64(st.GID)
	if hasGID {
		if gid, err = strconv.ParseUint(gidStr, 10, 32); err != nil {
			return fmt.Errorf("invalid gid %q", gidStr)
		}
	}
	return check(s.sys.Chown(s.task, p, uint32(uid), uint32(gid)))
}

func (s *Shell) cd(args []string) error {
	if len(args) > 1 {
		return usage("cd")
	}
	target := "/"
	if len(args) == 1 {
		target = args[0]
	}
	if err := check(s.sys.Chdir(s.task, target)); err != nil {
		return fmt.Errorf("%s: %w", target, err)
	}
	return nil
}

func (s *Shell) pwd([]string) error {
	fmt.Fprintln(s.out, s.cwd())
	return nil
}

// mount without arguments prints the mount table.
func (s *Shell) mount(args []string) error {
	switch len(args) {
	case 0:
		for _, m := range s.sys.VFS().Mounts() {
			fmt.Fprintf(s.out, "%s on %s (cache=%s)\n", m.FSType, m.Path, m.Policy)
		}
		return nil
	case 2:
		return check(s.sys.Mount(s.task, "none", args[1], args[0]))
	default:
		return usage("mount")
	}
}

func (s *Shell) umount(args []string) error {
	if len(args) != 1 {
		return usage("umount")
	}
	return check(s.sys.Umount(s.task, args[0]))
}

func (s *Shell) insmod(args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return usage("insmod")
	}
	m := kmod.Module{Name: args[0]}
	if len(args) == 2 {
		size, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid size %q", args[1])
		}
		m.Size = size
	}
	return s.modules.Load(m)
}

func (s *Shell) rmmod(args []string) error {
	if len(args) != 1 {
		return usage("rmmod")
	}
	return s.modules.Unload(args[0])
}

func (s *Shell) lsmod([]string) error {
	fmt.Fprintf(s.out, "%-20s %10s  %s\n", "Module", "Size", "Loaded")
	for _, m := range s.modules.List() {
		fmt.Fprintf(s.out, "%-20s %10d  %s\n", m.Name, m.Size, m.LoadedAt.Format(time.DateTime))
	}
	return nil
}
