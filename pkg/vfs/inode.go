package vfs

// Metadata is the attribute contract shared by every inode kind.
type Metadata interface {
	// Stat returns a snapshot of the inode's attributes.
	Stat() (Stat, error)

	// Chown changes the owning user and group.
	Chown(uid, gid uint32) error

	// Chmod replaces the permission bits.
	Chmod(perm Permission) error
}

// FileInode is the capability of a regular file.
type FileInode interface {
	Metadata

	// Open returns a new positioned stream over the file contents.
	// flags carries the O_* bits of the open call.
	Open(flags int) (FileHandle, error)
}

// DirInode is the capability of a directory.
//
// Names passed to a DirInode are single path components. Lookup is never
// called with "." or ".."; the path walk resolves those itself. Listings
// produced by Open must include exactly one "." and one "..".
//
// Consistency:
// Each mutation is atomic with respect to every other operation on the
// same directory. In particular a Create, Mkdir or Symlink racing an
// Rmdir of this directory either lands before the emptiness check (and
// Rmdir fails with ENOTEMPTY) or fails with ENOENT; it is never lost.
// Once a directory has been removed it accepts no new entries.
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines.
type DirInode interface {
	Metadata

	// Open returns a restartable listing of the directory, captured or
	// streamed at the backend's choice.
	//
	// Returns:
	//   - DirHandle: The listing, including "." and ".."
	//   - error: Backend failure only
	Open() (DirHandle, error)

	// Lookup finds a child.
	//
	// Parameters:
	//   - name: A single component, never "." or ".."
	//
	// Returns:
	//   - Inode: The child's capability
	//   - error: ENOENT if no such child exists
	Lookup(name string) (Inode, error)

	// Mkdir creates a subdirectory owned by this directory's owner.
	//
	// Parameters:
	//   - name: The new entry's name
	//   - perm: Permission bits of the new directory
	//
	// Returns:
	//   - DirInode: The created directory
	//   - error: EEXIST if name is taken, EINVAL or ENAMETOOLONG for a
	//     name that cannot be a component, ENOENT if this directory has
	//     been removed
	Mkdir(name string, perm Permission) (DirInode, error)

	// Create creates an empty regular file owned by this directory's owner.
	//
	// Parameters:
	//   - name: The new entry's name
	//   - perm: Permission bits of the new file
	//
	// Returns:
	//   - FileInode: The created file
	//   - error: As for Mkdir
	Create(name string, perm Permission) (FileInode, error)

	// Unlink removes a non-directory child.
	//
	// Returns:
	//   - error: ENOENT if missing, EISDIR if name is a directory
	Unlink(name string) error

	// Rmdir removes an empty subdirectory.
	//
	// Returns:
	//   - error: ENOENT if missing, ENOTDIR if name is not a directory,
	//     ENOTEMPTY if it still has entries
	Rmdir(name string) error

	// Symlink creates a symbolic link. The target is stored verbatim and
	// never resolved by the backend.
	//
	// Parameters:
	//   - target: The link contents
	//   - name: The new entry's name
	//
	// Returns:
	//   - SymlinkInode: The created link
	//   - error: As for Mkdir
	Symlink(target, name string) (SymlinkInode, error)
}

// SymlinkInode is the capability of a symbolic link.
type SymlinkInode interface {
	Metadata

	// Target returns the stored link target, unresolved.
	Target() (string, error)
}

// Inode is a tagged handle to exactly one capability. The zero value is
// invalid; use DirNode, FileNode or SymlinkNode. Inode values are cheap to
// copy and share the underlying backend object.
type Inode struct {
	kind    FileType
	dir     DirInode
	file    FileInode
	symlink SymlinkInode
}

// DirNode wraps a directory capability.
func DirNode(d DirInode) Inode {
	return Inode{kind: TypeDirectory, dir: d}
}

// FileNode wraps a regular file capability.
func FileNode(f FileInode) Inode {
	return Inode{kind: TypeRegular, file: f}
}

// SymlinkNode wraps a symlink capability.
func SymlinkNode(s SymlinkInode) Inode {
	return Inode{kind: TypeSymlink, symlink: s}
}

// Type returns the variant tag.
func (i Inode) Type() FileType {
	return i.kind
}

// IsValid reports whether the handle was built by a constructor.
func (i Inode) IsValid() bool {
	return i.kind != TypeUnknown
}

// IsDir reports whether the inode is a directory.
func (i Inode) IsDir() bool {
	return i.kind == TypeDirectory
}

// Dir returns the directory capability, or ENOTDIR.
func (i Inode) Dir() (DirInode, error) {
	if i.kind != TypeDirectory {
		return nil, ENOTDIR
	}
	return i.dir, nil
}

// File returns the regular file capability. Directories yield EISDIR,
// everything else EINVAL.
func (i Inode) File() (FileInode, error) {
	switch i.kind {
	case TypeRegular:
		return i.file, nil
	case TypeDirectory:
		return nil, EISDIR
	default:
		return nil, EINVAL
	}
}

// Symlink returns the symlink capability, or EINVAL.
func (i Inode) Symlink() (SymlinkInode, error) {
	if i.kind != TypeSymlink {
		return nil, EINVAL
	}
	return i.symlink, nil
}

// Metadata returns the attribute contract of whichever variant is held.
func (i Inode) Metadata() Metadata {
	switch i.kind {
	case TypeDirectory:
		return i.dir
	case TypeRegular:
		return i.file
	case TypeSymlink:
		return i.symlink
	default:
		return invalidMetadata{}
	}
}

// Same reports whether both handles refer to the same backend object.
func (i Inode) Same(other Inode) bool {
	if i.kind != other.kind {
		return false
	}
	switch i.kind {
	case TypeDirectory:
		return i.dir == other.dir
	case TypeRegular:
		return i.file == other.file
	case TypeSymlink:
		return i.symlink == other.symlink
	default:
		return true
	}
}

type invalidMetadata struct{}

func (invalidMetadata) Stat() (Stat, error)        { return Stat{}, EINVAL }
func (invalidMetadata) Chown(uint32, uint32) error { return EINVAL }
func (invalidMetadata) Chmod(Permission) error     { return EINVAL }
