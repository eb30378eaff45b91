package shell

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/marmos91/dittovfs/pkg/config"
	"github.com/marmos91/dittovfs/pkg/kernel"
	"github.com/marmos91/dittovfs/pkg/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newShell(t *testing.T) (*Shell, *bytes.Buffer, *kernel.Kernel) {
	t.Helper()

	cfg := config.GetDefaultConfig()
	cfg.Content.Stores = map[string]config.ContentStoreConfig{
		config.DefaultContentStore: {Type: "memory"},
	}
	cfg.Filesystems.Badgerfs.Path = ""
	cfg.Filesystems.Badgerfs.InMemory = true
	cfg.Modules = []string{"ext4"}

	k, err := kernel.Boot(context.Background(), cfg)
	require.NoError(t, err)

	tk := k.NewTask(0, 0)
	t.Cleanup(func() {
		tk.Exit()
		_ = k.Shutdown()
	})

	var out bytes.Buffer
	return New(k.Sys, k.Modules, tk, &out), &out, k
}

// run executes line and returns what it printed.
func run(t *testing.T, s *Shell, out *bytes.Buffer, line string) string {
	t.Helper()
	out.Reset()
	require.NoError(t, s.Exec(line), line)
	return out.String()
}

func TestFileCommands(t *testing.T) {
	s, out, _ := newShell(t)

	run(t, s, out, "mkdir /home /home/user")
	run(t, s, out, `write /home/user/note "hello world"`)
	assert.Equal(t, "hello world\n", run(t, s, out, "cat /home/user/note"))

	run(t, s, out, "write -a /home/user/note again")
	assert.Equal(t, "hello world\nagain\n", run(t, s, out, "cat /home/user/note"))

	assert.Equal(t, "note\n", run(t, s, out, "ls /home/user"))
	assert.Equal(t, ".\n..\nnote\n", run(t, s, out, "ls -a /home/user"))

	listing := run(t, s, out, "ls -l /home/user")
	assert.True(t, strings.HasPrefix(listing, "-rw-r--r--"), listing)
	assert.Contains(t, listing, "18 note")

	run(t, s, out, "rm /home/user/note")
	assert.Empty(t, run(t, s, out, "ls /home/user"))
	run(t, s, out, "rmdir /home/user")
}

func TestSymlinkAndStat(t *testing.T) {
	s, out, _ := newShell(t)

	run(t, s, out, "write /target data")
	run(t, s, out, "ln -s /target /link")
	assert.Equal(t, "data\n", run(t, s, out, "cat /link"))

	st := run(t, s, out, "stat /link")
	assert.Contains(t, st, "File: /link -> /target")
	assert.Contains(t, st, "Type: symlink")

	assert.Error(t, s.Exec("ln /target /other"))
}

func TestOwnershipCommands(t *testing.T) {
	s, out, k := newShell(t)

	run(t, s, out, "write /f x")
	run(t, s, out, "chmod 600 /f")
	run(t, s, out, "chown 1000:100 /f")

	st, err := k.VFS.Stat(nil, "/f")
	require.NoError(t, err)
	assert.Equal(t, vfs.Permission(0o600), st.Perm)
	assert.Equal(t, uint32(1000), st.UID)
	assert.Equal(t, uint32(100), st.GID)

	run(t, s, out, "chown 7 /f")
	st, err = k.VFS.Stat(nil, "/f")
	require.NoError(t, err)
	assert.Equal(t, uint32(7), st.UID)
	assert.Equal(t, uint32(100), st.GID)

	assert.Error(t, s.Exec("chmod rwx /f"))
}

func TestWorkingDirectory(t *testing.T) {
	s, out, _ := newShell(t)

	assert.Equal(t, "/\n", run(t, s, out, "pwd"))
	run(t, s, out, "mkdir /work")
	run(t, s, out, "cd /work")
	assert.Equal(t, "/work\n", run(t, s, out, "pwd"))

	run(t, s, out, "write rel content")
	assert.Equal(t, "content\n", run(t, s, out, "cat /work/rel"))

	run(t, s, out, "cd")
	assert.Equal(t, "/\n", run(t, s, out, "pwd"))

	err := s.Exec("cd /missing")
	assert.ErrorIs(t, err, vfs.ENOENT)
}

func TestMountCommands(t *testing.T) {
	s, out, _ := newShell(t)

	table := run(t, s, out, "mount")
	assert.Contains(t, table, "tmpfs on / (cache=")
	assert.Contains(t, table, "sysfs on /sys")

	run(t, s, out, "mkdir /scratch")
	run(t, s, out, "mount tmpfs /scratch")
	assert.Contains(t, run(t, s, out, "mount"), "tmpfs on /scratch")

	assert.ErrorIs(t, s.Exec("mount ext4 /scratch"), vfs.ENODEV)

	run(t, s, out, "umount /scratch")
	assert.NotContains(t, run(t, s, out, "mount"), "/scratch")
}

func TestModuleCommands(t *testing.T) {
	s, out, _ := newShell(t)

	run(t, s, out, "insmod net 4096")
	assert.Equal(t, "ext4\nnet\n", run(t, s, out, "ls /sys/modules"))

	lsmod := run(t, s, out, "lsmod")
	assert.Contains(t, lsmod, "net")
	assert.Contains(t, lsmod, "4096")

	run(t, s, out, "rmmod net")
	assert.Equal(t, "ext4\n", run(t, s, out, "ls /sys/modules"))

	assert.ErrorIs(t, s.Exec("rmmod net"), vfs.ENOENT)
	assert.ErrorIs(t, s.Exec("insmod ext4"), vfs.EEXIST)
}

func TestErrors(t *testing.T) {
	s, _, _ := newShell(t)

	assert.NoError(t, s.Exec(""))
	assert.NoError(t, s.Exec("   "))
	assert.ErrorIs(t, s.Exec("exit"), ErrExit)

	err := s.Exec("frobnicate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "command not found")

	assert.Error(t, s.Exec(`cat "unterminated`))
	assert.ErrorIs(t, s.Exec("cat /nope"), vfs.ENOENT)
	assert.ErrorIs(t, s.Exec("mkdir /sys/modules/x"), vfs.EPERM)
	assert.Error(t, s.Exec("ls -z"))
}

func TestRun(t *testing.T) {
	s, out, _ := newShell(t)

	script := strings.Join([]string{
		"mkdir /tmp",
		"write /tmp/a one",
		"cat /tmp/missing",
		"cat /tmp/a",
		"exit",
		"write /tmp/never x",
	}, "\n")

	out.Reset()
	require.NoError(t, s.Run(context.Background(), strings.NewReader(script), false))

	assert.Contains(t, out.String(), "cat: /tmp/missing:")
	assert.Contains(t, out.String(), "one\n")
	assert.ErrorIs(t, s.Exec("cat /tmp/never"), vfs.ENOENT)
}

func TestRunPrompt(t *testing.T) {
	s, out, _ := newShell(t)

	out.Reset()
	require.NoError(t, s.Run(context.Background(), strings.NewReader("pwd\n"), true))
	assert.Equal(t, "dittovfs:/$ /\ndittovfs:/$ ", out.String())
}
