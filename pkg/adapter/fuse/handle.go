package fuse

import (
	"context"
	"syscall"

	gofusefs "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/marmos91/dittovfs/pkg/vfs"
)

// handle is an open VFS file seen from the host. The host supplies an
// offset with every read and write.
type handle struct {
	adapter *Adapter
	file    *vfs.File
}

var (
	_ gofusefs.FileReader   = (*handle)(nil)
	_ gofusefs.FileWriter   = (*handle)(nil)
	_ gofusefs.FileFlusher  = (*handle)(nil)
	_ gofusefs.FileReleaser = (*handle)(nil)
)

func (h *handle) Read(_ context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	if errno := h.adapter.admit(); errno != gofusefs.OK {
		return nil, errno
	}
	n, err := h.file.ReadAt(dest, off)
	if err != nil {
		return nil, toErrno(err)
	}
	return fuse.ReadResultData(dest[:n]), gofusefs.OK
}

func (h *handle) Write(_ context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	if errno := h.adapter.admit(); errno != gofusefs.OK {
		return 0, errno
	}
	n, err := h.file.WriteAt(data, off)
	if err != nil {
		return uint32(n), toErrno(err)
	}
	return uint32(n), gofusefs.OK
}

func (h *handle) Flush(context.Context) syscall.Errno {
	return gofusefs.OK
}

func (h *handle) Release(context.Context) syscall.Errno {
	return toErrno(h.file.Close())
}
