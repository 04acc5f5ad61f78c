// Package vector provides a flat, brute-force vector index with metadata
// filtering, logical deletion, and atomic on-disk persistence.
package vector

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/hireloop/recall/internal/models"
	"github.com/hireloop/recall/pkg/utils"
)

// Blob header: magic, format version, dimension, record count.
// Each record is id (uint64) followed by dimension float32 values, little-endian.
var blobMagic = [4]byte{'R', 'I', 'D', 'X'}

const blobVersion uint16 = 1

// Predicate restricts which records a search may return. It is applied before
// ranking, so a search returns exactly min(k, matching) results.
type Predicate func(m models.ChunkMetadata) bool

// ScopeCandidate returns a predicate matching records of one candidate.
func ScopeCandidate(candidateID string) Predicate {
	return func(m models.ChunkMetadata) bool {
		return m.CandidateID == candidateID
	}
}

// Result is a single search hit: record id, squared L2 distance, and metadata.
type Result struct {
	ID       uint64
	Distance float64
	Metadata models.ChunkMetadata
}

// IndexedChunk pairs a record id with its metadata.
type IndexedChunk struct {
	ID       uint64               `json:"vector_id"`
	Metadata models.ChunkMetadata `json:"metadata"`
}

// Stats describes the index contents. Count includes tombstoned records,
// which stay physically resident until an explicit rebuild.
type Stats struct {
	Count      int `json:"count"`
	Dimension  int `json:"dimension"`
	Tombstoned int `json:"tombstoned"`
}

// FlatIndex stores fixed-dimension embeddings with per-record chunk metadata
// and answers nearest-neighbor queries by exhaustive squared-L2 scan. Ids are
// assigned monotonically from 0 and never reused. Deletion is logical: records
// are tombstoned in place and excluded from searches. Safe for concurrent use:
// searches take a read lock, mutations and Save take the write lock.
type FlatIndex struct {
	dimension  int
	ids        []uint64
	vectors    [][]float32
	meta       map[uint64]models.ChunkMetadata
	nextID     uint64
	tombstoned int
	mu         sync.RWMutex
}

// NewFlatIndex creates an empty index with the given dimension.
func NewFlatIndex(dimension int) (*FlatIndex, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dimension)
	}
	return &FlatIndex{
		dimension: dimension,
		meta:      make(map[uint64]models.ChunkMetadata),
	}, nil
}

// Dimension returns the fixed embedding dimension of this index.
func (ix *FlatIndex) Dimension() int {
	return ix.dimension
}

// Add appends one embedding with its metadata and returns the assigned id.
// Returns ErrDimensionMismatch (index untouched) on a wrong-length embedding.
func (ix *FlatIndex) Add(embedding []float32, meta models.ChunkMetadata) (uint64, error) {
	if len(embedding) != ix.dimension {
		return 0, &ErrDimensionMismatch{Expected: ix.dimension, Actual: len(embedding)}
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.appendLocked(embedding, meta), nil
}

// AddBatch appends multiple embeddings and returns their ids in order.
// All-or-nothing: a dimension mismatch on any element leaves the index in its
// pre-call state, and no ids are consumed.
func (ix *FlatIndex) AddBatch(embeddings [][]float32, metas []models.ChunkMetadata) ([]uint64, error) {
	if len(embeddings) != len(metas) {
		return nil, fmt.Errorf("embeddings and metadatas length mismatch: %d vs %d", len(embeddings), len(metas))
	}
	for _, emb := range embeddings {
		if len(emb) != ix.dimension {
			return nil, &ErrDimensionMismatch{Expected: ix.dimension, Actual: len(emb)}
		}
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ids := make([]uint64, len(embeddings))
	for i, emb := range embeddings {
		ids[i] = ix.appendLocked(emb, metas[i])
	}
	return ids, nil
}

func (ix *FlatIndex) appendLocked(embedding []float32, meta models.ChunkMetadata) uint64 {
	vec := make([]float32, ix.dimension)
	copy(vec, embedding)
	id := ix.nextID
	ix.nextID++
	ix.ids = append(ix.ids, id)
	ix.vectors = append(ix.vectors, vec)
	if meta.Removed {
		ix.tombstoned++
	}
	ix.meta[id] = meta
	return id
}

// Search returns the k nearest non-tombstoned records to query, distance
// ascending, ties broken by insertion order (lower id first). When predicate
// is non-nil it is applied before ranking, so exactly min(k, matching) results
// come back; never fewer when enough matches exist.
func (ix *FlatIndex) Search(query []float32, k int, predicate Predicate) ([]Result, error) {
	if len(query) != ix.dimension {
		return nil, &ErrDimensionMismatch{Expected: ix.dimension, Actual: len(query)}
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if k <= 0 || len(ix.ids) == 0 {
		return nil, nil
	}
	candidates := make([]Result, 0, len(ix.ids))
	for i, id := range ix.ids {
		m := ix.meta[id]
		if m.Removed {
			continue
		}
		if predicate != nil && !predicate(m) {
			continue
		}
		candidates = append(candidates, Result{
			ID:       id,
			Distance: utils.SquaredL2(query, ix.vectors[i]),
			Metadata: m,
		})
	}
	// Stable sort keeps insertion order (ascending id) on equal distances.
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].Distance < candidates[b].Distance
	})
	if k > len(candidates) {
		k = len(candidates)
	}
	return candidates[:k], nil
}

// RecordsFor returns all non-tombstoned chunks indexed for a candidate,
// in insertion order.
func (ix *FlatIndex) RecordsFor(candidateID string) []IndexedChunk {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	var chunks []IndexedChunk
	for _, id := range ix.ids {
		m := ix.meta[id]
		if m.Removed || m.CandidateID != candidateID {
			continue
		}
		chunks = append(chunks, IndexedChunk{ID: id, Metadata: m})
	}
	return chunks
}

// Tombstone marks all records of a candidate as removed and returns how many
// were newly tombstoned. Idempotent; storage is not freed.
func (ix *FlatIndex) Tombstone(candidateID string) int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	n := 0
	for id, m := range ix.meta {
		if m.CandidateID != candidateID || m.Removed {
			continue
		}
		m.Removed = true
		ix.meta[id] = m
		ix.tombstoned++
		n++
	}
	return n
}

// Stats returns record count (including tombstones), dimension, and
// tombstoned count.
func (ix *FlatIndex) Stats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return Stats{
		Count:      len(ix.ids),
		Dimension:  ix.dimension,
		Tombstoned: ix.tombstoned,
	}
}

// sidecarPath derives the metadata sidecar path from the blob path,
// e.g. data/vectors.idx -> data/vectors_meta.json.
func sidecarPath(blobPath string) string {
	ext := filepath.Ext(blobPath)
	return strings.TrimSuffix(blobPath, ext) + "_meta.json"
}

// Save writes the vector blob and the metadata sidecar. Both files are written
// to temp files first and renamed into place, so a crash mid-save leaves the
// prior on-disk state intact rather than a half-written pair.
func (ix *FlatIndex) Save(path string) error {
	if path == "" {
		return nil
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	blobTmp := path + ".tmp"
	if err := ix.writeBlobLocked(blobTmp); err != nil {
		return err
	}
	metaPath := sidecarPath(path)
	metaTmp := metaPath + ".tmp"
	if err := ix.writeSidecarLocked(metaTmp); err != nil {
		_ = os.Remove(blobTmp)
		return err
	}
	if err := os.Rename(blobTmp, path); err != nil {
		_ = os.Remove(blobTmp)
		_ = os.Remove(metaTmp)
		return fmt.Errorf("rename vector blob: %w", err)
	}
	if err := os.Rename(metaTmp, metaPath); err != nil {
		_ = os.Remove(metaTmp)
		return fmt.Errorf("rename metadata sidecar: %w", err)
	}
	return nil
}

func (ix *FlatIndex) writeBlobLocked(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create vector blob: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(blobMagic[:]); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, blobVersion); err != nil {
		return fmt.Errorf("write version: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(ix.dimension)); err != nil {
		return fmt.Errorf("write dimension: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(len(ix.ids))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	row := make([]byte, 8+ix.dimension*4)
	for i, id := range ix.ids {
		binary.LittleEndian.PutUint64(row[:8], id)
		for j, v := range ix.vectors[i] {
			binary.LittleEndian.PutUint32(row[8+j*4:], math.Float32bits(v))
		}
		if _, err := f.Write(row); err != nil {
			return fmt.Errorf("write record %d: %w", id, err)
		}
	}
	return f.Sync()
}

func (ix *FlatIndex) writeSidecarLocked(path string) error {
	byID := make(map[string]models.ChunkMetadata, len(ix.meta))
	for id, m := range ix.meta {
		byID[strconv.FormatUint(id, 10)] = m
	}
	data, err := json.MarshalIndent(byID, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write metadata sidecar: %w", err)
	}
	return nil
}

// Load reads the index persisted at path. A missing blob yields an empty index
// with the given dimension. A file that cannot be decoded, or a blob/sidecar
// pair whose id sets disagree, yields ErrCorruptIndex. A persisted dimension
// different from the configured one yields ErrDimensionMismatch.
func Load(path string, dimension int) (*FlatIndex, error) {
	ix, err := NewFlatIndex(dimension)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ix, nil
		}
		return nil, fmt.Errorf("open vector blob: %w", err)
	}
	defer f.Close()

	var magic [4]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		return nil, &ErrCorruptIndex{Path: path, cause: err}
	}
	if magic != blobMagic {
		return nil, &ErrCorruptIndex{Path: path, cause: errors.New("bad magic")}
	}
	var version uint16
	if err := binary.Read(f, binary.LittleEndian, &version); err != nil {
		return nil, &ErrCorruptIndex{Path: path, cause: err}
	}
	if version != blobVersion {
		return nil, &ErrCorruptIndex{Path: path, cause: fmt.Errorf("unsupported version %d", version)}
	}
	var dim, count uint32
	if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
		return nil, &ErrCorruptIndex{Path: path, cause: err}
	}
	if int(dim) != dimension {
		return nil, &ErrDimensionMismatch{Expected: dimension, Actual: int(dim)}
	}
	if err := binary.Read(f, binary.LittleEndian, &count); err != nil {
		return nil, &ErrCorruptIndex{Path: path, cause: err}
	}

	meta, err := loadSidecar(sidecarPath(path))
	if err != nil {
		return nil, &ErrCorruptIndex{Path: path, cause: err}
	}

	row := make([]byte, 8+int(dim)*4)
	var maxID uint64
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(f, row); err != nil {
			return nil, &ErrCorruptIndex{Path: path, cause: fmt.Errorf("truncated record %d: %w", i, err)}
		}
		id := binary.LittleEndian.Uint64(row[:8])
		m, ok := meta[id]
		if !ok {
			return nil, &ErrCorruptIndex{Path: path, cause: fmt.Errorf("record %d has no metadata", id)}
		}
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(row[8+j*4:]))
		}
		ix.ids = append(ix.ids, id)
		ix.vectors = append(ix.vectors, vec)
		ix.meta[id] = m
		if m.Removed {
			ix.tombstoned++
		}
		if id >= maxID {
			maxID = id + 1
		}
	}
	if len(meta) != len(ix.ids) {
		return nil, &ErrCorruptIndex{Path: path, cause: fmt.Errorf("sidecar has %d entries, blob has %d", len(meta), len(ix.ids))}
	}
	ix.nextID = maxID
	return ix, nil
}

func loadSidecar(path string) (map[uint64]models.ChunkMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read metadata sidecar: %w", err)
	}
	var byKey map[string]models.ChunkMetadata
	if err := json.Unmarshal(data, &byKey); err != nil {
		return nil, fmt.Errorf("parse metadata sidecar: %w", err)
	}
	meta := make(map[uint64]models.ChunkMetadata, len(byKey))
	for key, m := range byKey {
		id, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad metadata key %q: %w", key, err)
		}
		meta[id] = m
	}
	return meta, nil
}
