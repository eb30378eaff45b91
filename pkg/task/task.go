// Package task holds the per-process state the syscall layer needs.
package task

import (
	"sync"

	"github.com/marmos91/dittovfs/pkg/fdtable"
	"github.com/marmos91/dittovfs/pkg/vfs"
)

// Task is a running process as seen by the VFS.
type Task struct {
	PID   int
	UID   uint32
	GID   uint32
	Files *fdtable.Table

	mu  sync.RWMutex
	cwd *vfs.Dentry
}

// New creates a task with an empty descriptor table.
func New(pid int, uid, gid uint32, cwd *vfs.Dentry) *Task {
	return &Task{PID: pid, UID: uid, GID: gid, Files: fdtable.New(), cwd: cwd}
}

// Cwd returns the working directory.
func (t *Task) Cwd() *vfs.Dentry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cwd
}

// SetCwd replaces the working directory.
func (t *Task) SetCwd(d *vfs.Dentry) {
	t.mu.Lock()
	t.cwd = d
	t.mu.Unlock()
}

// Fork returns a child sharing the open files and working directory.
func (t *Task) Fork(pid int) *Task {
	return &Task{
		PID:   pid,
		UID:   t.UID,
		GID:   t.GID,
		Files: t.Files.CloneForFork(),
		cwd:   t.Cwd(),
	}
}

// Exit closes every descriptor the task holds.
func (t *Task) Exit() {
	t.Files.CloseAll()
}
