package knowledge

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.etcd.io/bbolt"
)

var bucketRecords = []byte("incident_vectors")

// Record is one indexed incident: the embedding plus the document text
// it was derived from and a small metadata map for display.
type Record struct {
	ID       string
	Vector   []float32
	Metadata map[string]string
	Document string
}

// QueryMatch is a scored nearest-neighbor hit against the index.
type QueryMatch struct {
	ID       string
	Score    float64
	Metadata map[string]string
	Document string
}

// VectorIndex is the durable store of incident embeddings.
type VectorIndex interface {
	Upsert(rec Record) error
	Query(vector []float32, k int) ([]QueryMatch, error)
	Count() (int, error)
}

// BoltIndex implements VectorIndex on bbolt with a brute-force cosine
// scan over an in-memory cache. Fine for the fleet sizes an incident
// archive reaches; swap in HNSW if it ever grows past that.
type BoltIndex struct {
	db        *bbolt.DB
	dimension int

	mu      sync.RWMutex
	records map[string]Record
}

type storedRecord struct {
	Vector   []float32         `json:"v"`
	Metadata map[string]string `json:"m,omitempty"`
	Document string            `json:"d,omitempty"`
}

// NewBoltIndex opens the vectors bucket and warms the in-memory cache.
func NewBoltIndex(db *bbolt.DB, dimension int) (*BoltIndex, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive, got %d", dimension)
	}

	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRecords)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create vectors bucket: %w", err)
	}

	idx := &BoltIndex{
		db:        db,
		dimension: dimension,
		records:   make(map[string]Record),
	}
	if err := idx.loadRecords(); err != nil {
		return nil, fmt.Errorf("failed to load vectors: %w", err)
	}
	return idx, nil
}

func (x *BoltIndex) loadRecords() error {
	return x.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRecords)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var stored storedRecord
			if err := json.Unmarshal(v, &stored); err != nil {
				return nil // skip corrupted entries
			}
			if len(stored.Vector) != x.dimension {
				return nil // skip records written under a different model
			}
			x.records[string(k)] = Record{
				ID:       string(k),
				Vector:   stored.Vector,
				Metadata: stored.Metadata,
				Document: stored.Document,
			}
			return nil
		})
	})
}

// Upsert writes a record, replacing any previous entry for the same ID.
func (x *BoltIndex) Upsert(rec Record) error {
	if len(rec.Vector) != x.dimension {
		return fmt.Errorf("vector dimension mismatch: expected %d, got %d", x.dimension, len(rec.Vector))
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	err := x.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRecords)
		if b == nil {
			return fmt.Errorf("vectors bucket not found")
		}
		data, err := json.Marshal(storedRecord{
			Vector:   rec.Vector,
			Metadata: rec.Metadata,
			Document: rec.Document,
		})
		if err != nil {
			return err
		}
		return b.Put([]byte(rec.ID), data)
	})
	if err != nil {
		return err
	}

	x.records[rec.ID] = rec
	return nil
}

// Query returns the k nearest records by cosine similarity, score
// descending with the lexically greater ID first on ties. Incident IDs
// embed their creation date, so the greater ID is the more recent one.
func (x *BoltIndex) Query(vector []float32, k int) ([]QueryMatch, error) {
	if len(vector) != x.dimension {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", x.dimension, len(vector))
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.records) == 0 {
		return nil, nil
	}

	matches := make([]QueryMatch, 0, len(x.records))
	for id, rec := range x.records {
		matches = append(matches, QueryMatch{
			ID:       id,
			Score:    cosineSimilarity(vector, rec.Vector),
			Metadata: rec.Metadata,
			Document: rec.Document,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID > matches[j].ID
	})

	if k > len(matches) {
		k = len(matches)
	}
	return matches[:k], nil
}

// Count reports how many incidents are indexed.
func (x *BoltIndex) Count() (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.records), nil
}

// cosineSimilarity is the cosine of the angle between two vectors,
// clamped to [0,1] so callers can treat it as a plain relevance score.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
