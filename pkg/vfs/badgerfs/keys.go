package badgerfs

import (
	"github.com/google/uuid"
)

// Key layout
//
//	i:<uuid>            inode record (XDR)
//	c:<parent>:<name>   child uuid (16 raw bytes)
//	r:                  root directory uuid (16 raw bytes)
//
// Children of one directory share the prefix c:<parent>:, so a listing is a
// single prefix scan and comes back sorted by name.
const (
	prefixInode = "i:"
	prefixChild = "c:"
	keyRoot     = "r:"
)

func keyInode(id uuid.UUID) []byte {
	return []byte(prefixInode + id.String())
}

func keyChild(parent uuid.UUID, name string) []byte {
	return []byte(prefixChild + parent.String() + ":" + name)
}

func keyChildPrefix(parent uuid.UUID) []byte {
	return []byte(prefixChild + parent.String() + ":")
}
