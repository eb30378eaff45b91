package sys

import (
	"encoding/binary"
	"time"

	"github.com/marmos91/dittovfs/pkg/task"
	"github.com/marmos91/dittovfs/pkg/vfs"
)

// direntHeader is reclen (u16 little endian) followed by the type byte.
const direntHeader = 3

// maxReclen is the largest record the u16 length field can describe.
const maxReclen = 1<<16 - 1

// DirentLen returns the encoded size of a record for name.
func DirentLen(name string) int {
	return direntHeader + len(name) + 1
}

func putDirent(buf []byte, e vfs.DirEntry) int {
	n := DirentLen(e.Name)
	binary.LittleEndian.PutUint16(buf, uint16(n))
	buf[2] = byte(e.Type)
	copy(buf[direntHeader:], e.Name)
	buf[n-1] = 0
	return n
}

// DecodeDirents parses records written by Getdents. Decoding stops at the
// first malformed record.
func DecodeDirents(buf []byte) []vfs.DirEntry {
	var entries []vfs.DirEntry
	for len(buf) >= direntHeader+1 {
		n := int(binary.LittleEndian.Uint16(buf))
		if n < direntHeader+1 || n > len(buf) {
			break
		}
		entries = append(entries, vfs.DirEntry{
			Type: vfs.FileType(buf[2]),
			Name: string(buf[direntHeader : n-1]),
		})
		buf = buf[n:]
	}
	return entries
}

// Getdents fills buf with as many directory records as fit, resuming where
// the previous call on the same open file stopped. It returns the number of
// bytes written, 0 at the end of the listing, or EINVAL when buf cannot
// hold even the next record.
func (s *Syscalls) Getdents(t *task.Task, fd int, buf []byte) (result int64) {
	defer func(start time.Time) { s.record("getdents", start, result) }(time.Now())

	f, err := GetFile(t, fd)
	if err != nil {
		return ret(err)
	}

	written := 0
	tooSmall := false
	err = f.ReadDir(func(e vfs.DirEntry) bool {
		if DirentLen(e.Name) > maxReclen {
			return true
		}
		if written+DirentLen(e.Name) > len(buf) {
			tooSmall = written == 0
			return false
		}
		written += putDirent(buf[written:], e)
		return true
	})
	if err != nil {
		return ret(err)
	}
	if tooSmall {
		return vfs.EINVAL.Neg()
	}
	return int64(written)
}
