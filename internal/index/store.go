// Package index owns the persisted chunk index: the vector matrix, the
// parallel chunk metadata, and the corpus signature that produced them.
package index

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

const (
	vectorBucket = "vectors"
	metaKeyDim   = "dim"
)

// ChunkMeta is the retrievable metadata stored alongside each vector row.
type ChunkMeta struct {
	Path string `json:"path"`
	Text string `json:"text"`
}

// Snapshot is an immutable view of the index. Readers hold a Snapshot for
// the duration of one request; the builder swaps in a replacement atomically,
// so a half-written index is never observable.
type Snapshot struct {
	Vectors   [][]float32
	Meta      []ChunkMeta
	Signature string
	Dim       int
}

// Empty reports whether the snapshot holds no chunks.
func (s *Snapshot) Empty() bool {
	return s == nil || len(s.Vectors) == 0
}

// PathCount returns the number of distinct source paths in the snapshot.
func (s *Snapshot) PathCount() int {
	if s == nil {
		return 0
	}
	seen := make(map[string]struct{}, len(s.Meta))
	for _, m := range s.Meta {
		seen[m.Path] = struct{}{}
	}
	return len(seen)
}

// Store holds the live snapshot and persists it to a bbolt vector file plus
// a JSON metadata file.
type Store struct {
	vectorPath string
	metaPath   string

	mu      sync.RWMutex
	current *Snapshot
}

// NewStore creates a store persisting to the given file paths. The store
// starts empty; call Load or install a built snapshot to populate it.
func NewStore(vectorPath, metaPath string) *Store {
	return &Store{
		vectorPath: vectorPath,
		metaPath:   metaPath,
		current:    &Snapshot{},
	}
}

// Current returns the live snapshot. The returned value must be treated as
// read-only.
func (s *Store) Current() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Install swaps in a fully built snapshot.
func (s *Store) Install(snap *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = snap
}

// metaFile is the on-disk JSON shape: the signature plus the per-chunk
// {path, text} list.
type metaFile struct {
	Signature string      `json:"signature"`
	Meta      []ChunkMeta `json:"meta"`
}

// Load reads the persisted index and returns its snapshot without installing
// it. ok is false when either cache file is missing or unreadable, when the
// stored signature differs from wantSignature, or when the stored vector
// dimensionality differs from wantDim: a model change invalidates the cache
// the same way a corpus change does.
func (s *Store) Load(wantSignature string, wantDim int) (*Snapshot, bool) {
	raw, err := os.ReadFile(s.metaPath)
	if err != nil {
		return nil, false
	}
	var mf metaFile
	if err := json.Unmarshal(raw, &mf); err != nil {
		return nil, false
	}
	if mf.Signature != wantSignature {
		return nil, false
	}

	vectors, dim, err := s.readVectors(len(mf.Meta))
	if err != nil {
		return nil, false
	}
	if len(vectors) > 0 && dim != wantDim {
		return nil, false
	}

	return &Snapshot{
		Vectors:   vectors,
		Meta:      mf.Meta,
		Signature: mf.Signature,
		Dim:       wantDim,
	}, true
}

// Save persists a snapshot: vectors to the bbolt file, metadata + signature
// to the JSON file. An explicitly empty snapshot is persisted as such so a
// stale cache never survives an empty rebuild.
func (s *Store) Save(snap *Snapshot) error {
	if err := s.writeVectors(snap.Vectors, snap.Dim); err != nil {
		return err
	}

	raw, err := json.Marshal(metaFile{Signature: snap.Signature, Meta: snap.Meta})
	if err != nil {
		return fmt.Errorf("failed to marshal index metadata: %w", err)
	}
	if err := os.WriteFile(s.metaPath, raw, 0644); err != nil {
		return fmt.Errorf("failed to write index metadata: %w", err)
	}
	return nil
}

// Clear removes both cache files. Missing files are not an error.
func (s *Store) Clear() error {
	for _, p := range []string{s.vectorPath, s.metaPath} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove cache file %s: %w", p, err)
		}
	}
	return nil
}

// writeVectors replaces the vector bucket with the given rows. Rows are
// stored row-major as little-endian float32 bits keyed by row index, with
// the dimensionality stored under its own key.
func (s *Store) writeVectors(vectors [][]float32, dim int) error {
	db, err := bbolt.Open(s.vectorPath, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return fmt.Errorf("failed to open vector file: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()

	return db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(vectorBucket)) != nil {
			if err := tx.DeleteBucket([]byte(vectorBucket)); err != nil {
				return err
			}
		}
		b, err := tx.CreateBucket([]byte(vectorBucket))
		if err != nil {
			return err
		}

		var dimKey [8]byte
		binary.LittleEndian.PutUint64(dimKey[:], uint64(dim))
		if err := b.Put([]byte(metaKeyDim), dimKey[:]); err != nil {
			return err
		}

		for i, vec := range vectors {
			var key [8]byte
			binary.BigEndian.PutUint64(key[:], uint64(i))
			buf := make([]byte, 4*len(vec))
			for j, v := range vec {
				binary.LittleEndian.PutUint32(buf[4*j:], math.Float32bits(v))
			}
			if err := b.Put(key[:], buf); err != nil {
				return err
			}
		}
		return nil
	})
}

// readVectors loads wantRows rows from the vector bucket. The row count must
// match the metadata list so vectors and metadata stay parallel.
func (s *Store) readVectors(wantRows int) ([][]float32, int, error) {
	db, err := bbolt.Open(s.vectorPath, 0600, &bbolt.Options{Timeout: 5 * time.Second, ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open vector file: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()

	var vectors [][]float32
	var dim int
	err = db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(vectorBucket))
		if b == nil {
			return fmt.Errorf("vector bucket missing")
		}
		if raw := b.Get([]byte(metaKeyDim)); raw != nil && len(raw) == 8 {
			dim = int(binary.LittleEndian.Uint64(raw))
		}

		vectors = make([][]float32, 0, wantRows)
		for i := 0; i < wantRows; i++ {
			var key [8]byte
			binary.BigEndian.PutUint64(key[:], uint64(i))
			raw := b.Get(key[:])
			if raw == nil {
				return fmt.Errorf("vector row %d missing", i)
			}
			if dim > 0 && len(raw) != 4*dim {
				return fmt.Errorf("vector row %d has %d bytes, want %d", i, len(raw), 4*dim)
			}
			vec := make([]float32, len(raw)/4)
			for j := range vec {
				vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*j:]))
			}
			vectors = append(vectors, vec)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return vectors, dim, nil
}
