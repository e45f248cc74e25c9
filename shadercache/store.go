package shadercache

import (
	"errors"
	"fmt"
	"hash/crc32"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// Store errors.
var (
	// ErrNotFound is returned when a key is not in the store.
	ErrNotFound = errors.New("shadercache: program not found")

	// ErrCorrupt is returned when a stored program fails its checksum.
	// The entry is dropped.
	ErrCorrupt = errors.New("shadercache: stored program corrupt")

	// ErrInvalidBlob is returned when Put receives data that does not decode.
	ErrInvalidBlob = errors.New("shadercache: invalid program blob")
)

const (
	indexName    = "index.msgpack"
	blobDir      = "blobs"
	blobExt      = ".lz4"
	indexVersion = 1
)

// Entry describes one stored program.
type Entry struct {
	RawSize    uint32 `msgpack:"r"`
	StoredSize uint32 `msgpack:"s"`
	Compressed bool   `msgpack:"z"`
	Checksum   uint32 `msgpack:"c"`
	Compiler   string `msgpack:"n"`
	CreatedAt  int64  `msgpack:"t"` // Unix nano
}

type indexFile struct {
	Version int              `msgpack:"v"`
	Entries map[string]Entry `msgpack:"e"`
}

// Store keeps program blobs on disk, LZ4-compressed, with an msgpack index
// and an in-memory LRU in front. It is safe for concurrent use.
type Store struct {
	dir string
	mem *memCache

	mu    sync.Mutex
	index map[Key]Entry
}

// StoreOption configures a Store.
type StoreOption func(*storeOptions)

type storeOptions struct {
	memCapacity int
}

// WithMemCapacity sets how many decoded programs each memory shard keeps.
func WithMemCapacity(n int) StoreOption {
	return func(o *storeOptions) { o.memCapacity = n }
}

// Open opens or creates a store rooted at dir.
func Open(dir string, opts ...StoreOption) (*Store, error) {
	var o storeOptions
	for _, opt := range opts {
		opt(&o)
	}
	if err := os.MkdirAll(filepath.Join(dir, blobDir), 0o755); err != nil {
		return nil, fmt.Errorf("shadercache: open %s: %w", dir, err)
	}
	s := &Store{
		dir:   dir,
		mem:   newMemCache(o.memCapacity),
		index: make(map[Key]Entry),
	}
	if err := s.loadIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) loadIndex() error {
	data, err := os.ReadFile(filepath.Join(s.dir, indexName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("shadercache: read index: %w", err)
	}
	var idx indexFile
	if err := msgpack.Unmarshal(data, &idx); err != nil {
		return fmt.Errorf("shadercache: decode index: %w", err)
	}
	if idx.Version != indexVersion {
		return fmt.Errorf("shadercache: index version %d, want %d", idx.Version, indexVersion)
	}
	for name, e := range idx.Entries {
		k, err := ParseKey(name)
		if err != nil {
			continue
		}
		s.index[k] = e
	}
	return nil
}

// saveIndex writes the index atomically. Callers hold s.mu.
func (s *Store) saveIndex() error {
	idx := indexFile{Version: indexVersion, Entries: make(map[string]Entry, len(s.index))}
	for k, e := range s.index {
		idx.Entries[k.String()] = e
	}
	data, err := msgpack.Marshal(&idx)
	if err != nil {
		return fmt.Errorf("shadercache: encode index: %w", err)
	}
	return writeFileAtomic(filepath.Join(s.dir, indexName), data)
}

func (s *Store) blobPath(k Key) string {
	return filepath.Join(s.dir, blobDir, k.String()+blobExt)
}

// Put stores blob under k. blob must be a valid program blob.
func (s *Store) Put(k Key, compiler string, blob []byte) error {
	if _, err := Decode(blob); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidBlob, err)
	}

	stored := make([]byte, lz4.CompressBlockBound(len(blob)))
	n, err := lz4.CompressBlock(blob, stored, nil)
	if err != nil {
		return fmt.Errorf("shadercache: compress: %w", err)
	}
	compressed := n > 0 && n < len(blob)
	if compressed {
		stored = stored[:n]
	} else {
		stored = blob
	}

	e := Entry{
		RawSize:    uint32(len(blob)),
		StoredSize: uint32(len(stored)),
		Compressed: compressed,
		Checksum:   crc32.ChecksumIEEE(blob),
		Compiler:   compiler,
		CreatedAt:  time.Now().UnixNano(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeFileAtomic(s.blobPath(k), stored); err != nil {
		return err
	}
	s.index[k] = e
	s.mem.set(k, slices.Clone(blob))
	return s.saveIndex()
}

// Get returns the blob stored under k.
func (s *Store) Get(k Key) ([]byte, error) {
	if b, ok := s.mem.get(k); ok {
		return b, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.index[k]
	if !ok {
		return nil, ErrNotFound
	}
	stored, err := os.ReadFile(s.blobPath(k))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.dropLocked(k)
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("shadercache: read %s: %w", k, err)
	}

	blob := stored
	if e.Compressed {
		blob = make([]byte, e.RawSize)
		n, err := lz4.UncompressBlock(stored, blob)
		if err != nil || n != int(e.RawSize) {
			s.dropLocked(k)
			return nil, fmt.Errorf("%w: %s: decompress", ErrCorrupt, k)
		}
	}
	if crc32.ChecksumIEEE(blob) != e.Checksum {
		s.dropLocked(k)
		return nil, fmt.Errorf("%w: %s: checksum mismatch", ErrCorrupt, k)
	}
	s.mem.set(k, blob)
	return blob, nil
}

// Lookup returns the entry metadata for k.
func (s *Store) Lookup(k Key) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.index[k]
	return e, ok
}

// Delete removes k. Deleting a missing key is a no-op.
func (s *Store) Delete(k Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[k]; !ok {
		return nil
	}
	s.dropLocked(k)
	return s.saveIndex()
}

// dropLocked forgets k and removes its file. Callers hold s.mu.
func (s *Store) dropLocked(k Key) {
	delete(s.index, k)
	s.mem.delete(k)
	_ = os.Remove(s.blobPath(k))
}

// Len returns the number of stored programs.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.index)
}

// Keys returns the stored keys in byte order.
func (s *Store) Keys() []Key {
	s.mu.Lock()
	keys := make([]Key, 0, len(s.index))
	for k := range s.index {
		keys = append(keys, k)
	}
	s.mu.Unlock()
	slices.SortFunc(keys, func(a, b Key) int {
		for i := range a {
			if a[i] != b[i] {
				return int(a[i]) - int(b[i])
			}
		}
		return 0
	})
	return keys
}

// CacheStats returns in-memory cache statistics.
func (s *Store) CacheStats() CacheStats { return s.mem.stats() }

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("shadercache: write %s: %w", path, err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("shadercache: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("shadercache: write %s: %w", path, err)
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return fmt.Errorf("shadercache: write %s: %w", path, err)
	}
	return nil
}
