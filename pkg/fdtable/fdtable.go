// Package fdtable maps per-task descriptor numbers to shared open files.
package fdtable

import (
	"sync"

	"github.com/marmos91/dittovfs/pkg/vfs"
)

// Size is the fixed number of descriptor slots per table.
const Size = 256

// Fd is a validated descriptor index in [0, Size).
type Fd int

// FromInt validates a raw descriptor number.
func FromInt(v int) (Fd, bool) {
	if v < 0 || v >= Size {
		return 0, false
	}
	return Fd(v), true
}

type slot struct {
	file    *vfs.File
	cloexec bool
}

// Table is one task's descriptor table.
type Table struct {
	mu    sync.Mutex
	slots [Size]slot
}

// New returns an empty table.
func New() *Table {
	return &Table{}
}

// Get returns the file stored at fd.
func (t *Table) Get(fd Fd) (*vfs.File, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f := t.slots[fd].file
	return f, f != nil
}

// Alloc stores f in the first free slot. The table takes over the caller's
// reference. Returns false when every slot is used.
func (t *Table) Alloc(f *vfs.File) (Fd, bool) {
	return t.AllocFrom(0, f, false)
}

// AllocFrom stores f in the first free slot at or above min.
func (t *Table) AllocFrom(min Fd, f *vfs.File, cloexec bool) (Fd, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := int(min); i < Size; i++ {
		if t.slots[i].file == nil {
			t.slots[i] = slot{file: f, cloexec: cloexec}
			return Fd(i), true
		}
	}
	return 0, false
}

// Install stores f at fd and returns whatever was there before, which the
// caller must close.
func (t *Table) Install(fd Fd, f *vfs.File) *vfs.File {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.slots[fd].file
	t.slots[fd] = slot{file: f}
	return prev
}

// Close empties fd and returns the file that was stored there. The caller
// drops the table's reference with File.Close.
func (t *Table) Close(fd Fd) (*vfs.File, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	f := t.slots[fd].file
	t.slots[fd] = slot{}
	return f, f != nil
}

// CloseOnExec reports the close-on-exec flag of fd.
func (t *Table) CloseOnExec(fd Fd) (bool, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.slots[fd]
	return s.cloexec, s.file != nil
}

// SetCloseOnExec sets the close-on-exec flag of an occupied slot.
func (t *Table) SetCloseOnExec(fd Fd, on bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.slots[fd].file == nil {
		return false
	}
	t.slots[fd].cloexec = on
	return true
}

// CloneForFork copies the table for a child task. Every shared file gains
// a reference.
func (t *Table) CloneForFork() *Table {
	t.mu.Lock()
	defer t.mu.Unlock()

	child := New()
	for i, s := range t.slots {
		if s.file != nil {
			s.file.IncRef()
			child.slots[i] = s
		}
	}
	return child
}

// Count returns the number of occupied slots.
func (t *Table) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, s := range t.slots {
		if s.file != nil {
			n++
		}
	}
	return n
}

// CloseAll empties the table and drops every reference it held.
func (t *Table) CloseAll() {
	t.mu.Lock()
	var files []*vfs.File
	for i := range t.slots {
		if f := t.slots[i].file; f != nil {
			files = append(files, f)
		}
		t.slots[i] = slot{}
	}
	t.mu.Unlock()

	for _, f := range files {
		_ = f.Close()
	}
}
