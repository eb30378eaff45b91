package badgerfs

import (
	"bytes"
	"fmt"

	"github.com/marmos91/dittovfs/pkg/vfs"
	xdr "github.com/rasky/go-xdr/xdr2"
)

// timestamp is the on-disk form of vfs.TimeSpec.
type timestamp struct {
	Sec  int64
	Nsec uint32
}

func timestampOf(ts vfs.TimeSpec) timestamp {
	return timestamp{Sec: ts.Sec, Nsec: uint32(ts.Nsec)}
}

func (t timestamp) spec() vfs.TimeSpec {
	return vfs.TimeSpec{Sec: t.Sec, Nsec: int64(t.Nsec)}
}

// record is one inode as stored under i:<uuid>. Size mirrors the content
// store for regular files so Stat never touches the content backend.
type record struct {
	Type   uint32
	Perm   uint32
	UID    uint32
	GID    uint32
	Size   uint64
	Atime  timestamp
	Mtime  timestamp
	Ctime  timestamp
	Target string
}

func newRecord(kind vfs.FileType, perm vfs.Permission, uid, gid uint32) record {
	now := timestampOf(vfs.Now())
	return record{
		Type:  uint32(kind),
		Perm:  uint32(perm & vfs.PermMask),
		UID:   uid,
		GID:   gid,
		Atime: now,
		Mtime: now,
		Ctime: now,
	}
}

func (r *record) kind() vfs.FileType {
	return vfs.FileType(r.Type)
}

func (r *record) stat() vfs.Stat {
	return vfs.Stat{
		Perm:       vfs.Permission(r.Perm),
		UID:        r.UID,
		GID:        r.GID,
		Size:       r.Size,
		Type:       r.kind(),
		AccessTime: r.Atime.spec(),
		ModifyTime: r.Mtime.spec(),
		ChangeTime: r.Ctime.spec(),
	}
}

func (r *record) touchModify() {
	now := timestampOf(vfs.Now())
	r.Mtime, r.Ctime = now, now
}

func (r *record) touchChange() {
	r.Ctime = timestampOf(vfs.Now())
}

func encodeRecord(r *record) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, r); err != nil {
		return nil, fmt.Errorf("failed to encode inode record: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeRecord(data []byte) (record, error) {
	var r record
	if _, err := xdr.Unmarshal(bytes.NewReader(data), &r); err != nil {
		return record{}, fmt.Errorf("failed to decode inode record: %w", err)
	}
	return r, nil
}
