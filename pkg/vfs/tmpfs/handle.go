package tmpfs

import (
	"sync"

	"github.com/marmos91/dittovfs/pkg/vfs"
)

type fileHandle struct {
	inode *FileInode

	mu     sync.Mutex
	offset int64
}

func (h *fileHandle) Read(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := h.inode.readAt(p, h.offset)
	h.offset += int64(n)
	h.inode.touchAccess()
	return n, nil
}

func (h *fileHandle) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	n, err := h.inode.writeAt(p, h.offset)
	h.offset += int64(n)
	return n, err
}

func (h *fileHandle) Seek(offset int64, whence int) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var base int64
	switch whence {
	case vfs.SeekStart:
	case vfs.SeekCurrent:
		base = h.offset
	case vfs.SeekEnd:
		base = h.inode.size()
	default:
		return 0, vfs.EINVAL
	}

	pos, err := vfs.SeekPos(base, offset)
	if err != nil {
		return 0, err
	}
	h.offset = pos
	return pos, nil
}

func (h *fileHandle) Truncate(size int64) error {
	if size < 0 {
		return vfs.EINVAL
	}
	return h.inode.truncate(size)
}

func (h *fileHandle) Close() error {
	return nil
}
