package vfs

import (
	"strings"
	"time"
)

// FileType is the one-byte type tag reported in Stat and directory entries.
type FileType uint8

const (
	TypeUnknown   FileType = 0
	TypeRegular   FileType = 1
	TypeDirectory FileType = 2
	TypeSymlink   FileType = 3
	TypeOther     FileType = 4
)

func (t FileType) String() string {
	switch t {
	case TypeRegular:
		return "regular"
	case TypeDirectory:
		return "directory"
	case TypeSymlink:
		return "symlink"
	case TypeOther:
		return "other"
	default:
		return "unknown"
	}
}

// Permission holds the twelve mode bits: rwx for owner, group and other
// plus setuid, setgid and sticky.
type Permission uint16

const (
	PermMask   Permission = 0o7777
	PermSetUID Permission = 0o4000
	PermSetGID Permission = 0o2000
	PermSticky Permission = 0o1000
)

// NewPermission masks mode down to the permission bits.
func NewPermission(mode uint32) Permission {
	return Permission(mode) & PermMask
}

// String renders the permission in ls style, e.g. "rwxr-x---".
func (p Permission) String() string {
	const rwx = "rwxrwxrwx"
	var b strings.Builder
	for i := 0; i < 9; i++ {
		if p&(1<<uint(8-i)) != 0 {
			b.WriteByte(rwx[i])
		} else {
			b.WriteByte('-')
		}
	}
	out := []byte(b.String())
	if p&PermSetUID != 0 {
		out[2] = special(out[2], 's')
	}
	if p&PermSetGID != 0 {
		out[5] = special(out[5], 's')
	}
	if p&PermSticky != 0 {
		out[8] = special(out[8], 't')
	}
	return string(out)
}

func special(c, lower byte) byte {
	if c == '-' {
		return lower - 'a' + 'A'
	}
	return lower
}

// TimeSpec is a seconds/nanoseconds timestamp.
type TimeSpec struct {
	Sec  int64
	Nsec int64
}

// TimeSpecOf converts t to a TimeSpec.
func TimeSpecOf(t time.Time) TimeSpec {
	return TimeSpec{Sec: t.Unix(), Nsec: int64(t.Nanosecond())}
}

// Now returns the current time as a TimeSpec.
func Now() TimeSpec {
	return TimeSpecOf(time.Now())
}

// Time converts back to time.Time.
func (ts TimeSpec) Time() time.Time {
	return time.Unix(ts.Sec, ts.Nsec)
}

// Stat is the metadata snapshot returned by Metadata.Stat.
type Stat struct {
	Perm       Permission
	UID        uint32
	GID        uint32
	Size       uint64
	Type       FileType
	AccessTime TimeSpec
	ModifyTime TimeSpec
	ChangeTime TimeSpec
}

// DirEntry is one record of a directory listing.
type DirEntry struct {
	Type FileType
	Name string
}
