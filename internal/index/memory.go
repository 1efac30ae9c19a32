package index

import (
	"context"
	"path/filepath"
	"sync"

	"audiomark/internal/fingerprint"
)

// MemoryIndex is a degenerate, process-local Index backend grounded on
// spec.md §9's "global fingerprint dict" note: an in-memory hash map
// variant treated as an Index implementation behind the same interface.
// Useful for tests and single-process demo runs; nothing here survives a
// restart.
type MemoryIndex struct {
	mu sync.RWMutex

	nextID     int64
	pathToID   map[string]ReferenceId
	references map[ReferenceId]Reference
	algosSeen  map[ReferenceId]map[fingerprint.Algorithm]bool
	fingerprints map[fingerprint.Algorithm]map[string][]Record
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		pathToID:     make(map[string]ReferenceId),
		references:   make(map[ReferenceId]Reference),
		algosSeen:    make(map[ReferenceId]map[fingerprint.Algorithm]bool),
		fingerprints: make(map[fingerprint.Algorithm]map[string][]Record),
	}
}

func (m *MemoryIndex) EnsureReference(ctx context.Context, filePath, filename string) (ReferenceId, error) {
	if filename == "" {
		filename = filepath.Base(filePath)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.pathToID[filePath]; ok {
		return id, nil
	}

	m.nextID++
	id := ReferenceId(m.nextID)
	m.pathToID[filePath] = id
	m.references[id] = Reference{Id: id, FilePath: filePath, Filename: filename}
	m.algosSeen[id] = make(map[fingerprint.Algorithm]bool)
	return id, nil
}

func (m *MemoryIndex) IsRegistered(ctx context.Context, filePath string, algo fingerprint.Algorithm) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.pathToID[filePath]
	if !ok {
		return false, nil
	}
	return m.algosSeen[id][algo], nil
}

func (m *MemoryIndex) WriteBatch(ctx context.Context, referenceId ReferenceId, algo fingerprint.Algorithm, tuples []fingerprint.Tuple) error {
	if len(tuples) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	bucket, ok := m.fingerprints[algo]
	if !ok {
		bucket = make(map[string][]Record)
		m.fingerprints[algo] = bucket
	}

	for _, tup := range tuples {
		bucket[tup.Hash] = append(bucket[tup.Hash], Record{
			Hash:        tup.Hash,
			ReferenceId: referenceId,
			LocalTime:   tup.LocalTime,
		})
	}

	if m.algosSeen[referenceId] == nil {
		m.algosSeen[referenceId] = make(map[fingerprint.Algorithm]bool)
	}
	m.algosSeen[referenceId][algo] = true

	return nil
}

func (m *MemoryIndex) Lookup(ctx context.Context, algo fingerprint.Algorithm, hashes []string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bucket, ok := m.fingerprints[algo]
	if !ok {
		return nil, nil
	}

	var out []Record
	for _, h := range hashes {
		out = append(out, bucket[h]...)
	}
	return out, nil
}

func (m *MemoryIndex) GetReference(ctx context.Context, id ReferenceId) (Reference, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ref, ok := m.references[id]
	if !ok {
		return Reference{}, ErrNotFound
	}
	return ref, nil
}

func (m *MemoryIndex) ClearAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID = 0
	m.pathToID = make(map[string]ReferenceId)
	m.references = make(map[ReferenceId]Reference)
	m.algosSeen = make(map[ReferenceId]map[fingerprint.Algorithm]bool)
	m.fingerprints = make(map[fingerprint.Algorithm]map[string][]Record)
	return nil
}

// ListReferences returns every registered reference. Not part of the core
// Index contract (spec.md §4.5) — an optional capability httpapi type-asserts
// for.
func (m *MemoryIndex) ListReferences(ctx context.Context) ([]Reference, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Reference, 0, len(m.references))
	for _, ref := range m.references {
		out = append(out, ref)
	}
	return out, nil
}

// Stats reports the total reference and fingerprint counts.
func (m *MemoryIndex) Stats(ctx context.Context) (refCount, fingerprintCount int, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	refCount = len(m.references)
	for _, bucket := range m.fingerprints {
		for _, records := range bucket {
			fingerprintCount += len(records)
		}
	}
	return refCount, fingerprintCount, nil
}

func (m *MemoryIndex) Close() error { return nil }
