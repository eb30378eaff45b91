package badgerfs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/marmos91/dittovfs/internal/logger"
	"github.com/marmos91/dittovfs/pkg/content"
	"github.com/marmos91/dittovfs/pkg/vfs"
)

// state is one mounted database.
type state struct {
	db      *badger.DB
	content content.Store
	cache   *expirable.LRU[uuid.UUID, record]

	// mu is held exclusively by mutations and shared by cache fills, so a
	// fill can never overwrite a newer record with an older one.
	mu sync.RWMutex

	// nodes interns inode objects so repeated lookups of one uuid return the
	// same object and the dentry cache recognizes it.
	nodesMu sync.Mutex
	nodes   map[uuid.UUID]vfs.Inode
}

func newState(db *badger.DB, store content.Store, cacheSize int, cacheTTL time.Duration) *state {
	return &state{
		db:      db,
		content: store,
		cache:   expirable.NewLRU[uuid.UUID, record](cacheSize, nil, cacheTTL),
		nodes:   make(map[uuid.UUID]vfs.Inode),
	}
}

func contentID(id uuid.UUID) content.ContentID {
	return content.ContentID(id.String())
}

func readRecord(txn *badger.Txn, id uuid.UUID) (record, error) {
	item, err := txn.Get(keyInode(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return record{}, vfs.ENOENT
	}
	if err != nil {
		return record{}, fmt.Errorf("failed to read inode %s: %w", id, err)
	}
	data, err := item.ValueCopy(nil)
	if err != nil {
		return record{}, fmt.Errorf("failed to read inode %s: %w", id, err)
	}
	return decodeRecord(data)
}

func writeRecord(txn *badger.Txn, id uuid.UUID, r *record) error {
	data, err := encodeRecord(r)
	if err != nil {
		return err
	}
	return txn.Set(keyInode(id), data)
}

func readChild(txn *badger.Txn, parent uuid.UUID, name string) (uuid.UUID, error) {
	item, err := txn.Get(keyChild(parent, name))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return uuid.Nil, vfs.ENOENT
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to read entry %q: %w", name, err)
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to read entry %q: %w", name, err)
	}
	return uuid.FromBytes(raw)
}

func hasChildren(txn *badger.Txn, dir uuid.UUID) bool {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = keyChildPrefix(dir)

	it := txn.NewIterator(opts)
	defer it.Close()
	it.Rewind()
	return it.Valid()
}

// get returns the record for id, from the cache when possible.
func (s *state) get(id uuid.UUID) (record, error) {
	if r, ok := s.cache.Get(id); ok {
		return r, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var r record
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		r, err = readRecord(txn, id)
		return err
	})
	if err != nil {
		return record{}, err
	}
	s.cache.Add(id, r)
	return r, nil
}

// update applies fn to the stored record of id.
func (s *state) update(id uuid.UUID, fn func(r *record) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out record
	err := s.db.Update(func(txn *badger.Txn) error {
		r, err := readRecord(txn, id)
		if err != nil {
			return err
		}
		if err := fn(&r); err != nil {
			return err
		}
		out = r
		return writeRecord(txn, id, &r)
	})
	if err != nil {
		return err
	}
	s.cache.Add(id, out)
	return nil
}

// ensureRoot returns the root directory id, creating the root on first use.
func (s *state) ensureRoot(perm vfs.Permission, uid, gid uint32) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var root uuid.UUID
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyRoot))
		if err == nil {
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			root, err = uuid.FromBytes(raw)
			return err
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		root = uuid.New()
		r := newRecord(vfs.TypeDirectory, perm, uid, gid)
		if err := writeRecord(txn, root, &r); err != nil {
			return err
		}
		logger.Debug("badgerfs: created root directory %s", root)
		return txn.Set([]byte(keyRoot), root[:])
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to load root directory: %w", err)
	}
	return root, nil
}

// lookup resolves name inside parent.
func (s *state) lookup(parent uuid.UUID, name string) (vfs.Inode, error) {
	var id uuid.UUID
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		id, err = readChild(txn, parent, name)
		return err
	})
	if err != nil {
		return vfs.Inode{}, err
	}

	r, err := s.get(id)
	if err != nil {
		return vfs.Inode{}, err
	}
	return s.node(id, r.kind())
}

// list returns the entries of dir, followed by "." and "..".
func (s *state) list(dir uuid.UUID) ([]vfs.DirEntry, error) {
	var entries []vfs.DirEntry
	err := s.db.View(func(txn *badger.Txn) error {
		if _, err := readRecord(txn, dir); err != nil {
			return err
		}

		prefix := keyChildPrefix(dir)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			name := string(item.Key()[len(prefix):])

			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			id, err := uuid.FromBytes(raw)
			if err != nil {
				return err
			}
			r, err := readRecord(txn, id)
			if err != nil {
				return fmt.Errorf("entry %q: %w", name, err)
			}
			entries = append(entries, vfs.DirEntry{Type: r.kind(), Name: name})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return append(entries,
		vfs.DirEntry{Type: vfs.TypeDirectory, Name: "."},
		vfs.DirEntry{Type: vfs.TypeDirectory, Name: ".."},
	), nil
}

// create links a new inode described by r under parent. The child inherits
// the parent's owner.
func (s *state) create(parent uuid.UUID, name string, r record) (uuid.UUID, error) {
	if err := validName(name); err != nil {
		return uuid.Nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New()
	var pr record
	err := s.db.Update(func(txn *badger.Txn) error {
		var err error
		pr, err = readRecord(txn, parent)
		if err != nil {
			return err
		}
		if pr.kind() != vfs.TypeDirectory {
			return vfs.ENOTDIR
		}

		_, err = txn.Get(keyChild(parent, name))
		switch {
		case err == nil:
			return vfs.EEXIST
		case !errors.Is(err, badger.ErrKeyNotFound):
			return fmt.Errorf("failed to check entry %q: %w", name, err)
		}

		r.UID, r.GID = pr.UID, pr.GID
		if err := writeRecord(txn, id, &r); err != nil {
			return err
		}
		if err := txn.Set(keyChild(parent, name), id[:]); err != nil {
			return err
		}
		pr.touchModify()
		return writeRecord(txn, parent, &pr)
	})
	if err != nil {
		return uuid.Nil, err
	}

	s.cache.Add(parent, pr)
	s.cache.Add(id, r)
	return id, nil
}

// remove unlinks name from parent. With wantDir the target must be an empty
// directory, otherwise it must not be a directory.
func (s *state) remove(parent uuid.UUID, name string, wantDir bool) error {
	s.mu.Lock()

	var (
		id   uuid.UUID
		kind vfs.FileType
		pr   record
	)
	err := s.db.Update(func(txn *badger.Txn) error {
		var err error
		id, err = readChild(txn, parent, name)
		if err != nil {
			return err
		}
		cr, err := readRecord(txn, id)
		if err != nil {
			return err
		}
		kind = cr.kind()

		if wantDir {
			if kind != vfs.TypeDirectory {
				return vfs.ENOTDIR
			}
			if hasChildren(txn, id) {
				return vfs.ENOTEMPTY
			}
		} else if kind == vfs.TypeDirectory {
			return vfs.EISDIR
		}

		if err := txn.Delete(keyChild(parent, name)); err != nil {
			return err
		}
		if err := txn.Delete(keyInode(id)); err != nil {
			return err
		}
		pr, err = readRecord(txn, parent)
		if err != nil {
			return err
		}
		pr.touchModify()
		return writeRecord(txn, parent, &pr)
	})
	if err == nil {
		s.cache.Remove(id)
		s.cache.Add(parent, pr)
	}
	s.mu.Unlock()

	if err != nil {
		return err
	}

	s.forget(id)
	if kind == vfs.TypeRegular {
		if err := s.content.Delete(context.Background(), contentID(id)); err != nil {
			logger.Warn("badgerfs: failed to delete content of %s: %v", id, err)
		}
	}
	return nil
}

// node returns the interned inode object for id.
func (s *state) node(id uuid.UUID, kind vfs.FileType) (vfs.Inode, error) {
	s.nodesMu.Lock()
	defer s.nodesMu.Unlock()

	if n, ok := s.nodes[id]; ok && n.Type() == kind {
		return n, nil
	}

	var n vfs.Inode
	switch kind {
	case vfs.TypeDirectory:
		n = vfs.DirNode(&dirInode{node{s: s, id: id}})
	case vfs.TypeRegular:
		n = vfs.FileNode(&fileInode{node{s: s, id: id}})
	case vfs.TypeSymlink:
		n = vfs.SymlinkNode(&symlinkInode{node{s: s, id: id}})
	default:
		return vfs.Inode{}, fmt.Errorf("inode %s has unknown type %d: %w", id, kind, vfs.EIO)
	}
	s.nodes[id] = n
	return n, nil
}

func (s *state) forget(id uuid.UUID) {
	s.nodesMu.Lock()
	delete(s.nodes, id)
	s.nodesMu.Unlock()
}

func (s *state) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Purge()
	s.nodesMu.Lock()
	s.nodes = make(map[uuid.UUID]vfs.Inode)
	s.nodesMu.Unlock()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close BadgerDB: %w", err)
	}
	return nil
}
