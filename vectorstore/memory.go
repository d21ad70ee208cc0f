package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"
)

// Memory is a brute-force cosine index used in tests and store-less setups.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]map[string]Entry    // namespace -> chunkID -> entry
	docs    map[string]map[string][]string // namespace -> documentID -> chunkIDs
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]map[string]Entry),
		docs:    make(map[string]map[string][]string),
	}
}

func (m *Memory) Upsert(_ context.Context, namespace string, entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.entries[namespace] == nil {
		m.entries[namespace] = make(map[string]Entry)
		m.docs[namespace] = make(map[string][]string)
	}

	for _, entry := range entries {
		if _, exists := m.entries[namespace][entry.ChunkID]; !exists {
			m.docs[namespace][entry.DocumentID] = append(m.docs[namespace][entry.DocumentID], entry.ChunkID)
		}
		m.entries[namespace][entry.ChunkID] = entry
	}

	return nil
}

func (m *Memory) Query(_ context.Context, namespace string, vector []float32, topK int) ([]Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if topK <= 0 {
		topK = 5
	}

	results := make([]Result, 0, len(m.entries[namespace]))
	for _, entry := range m.entries[namespace] {
		results = append(results, Result{
			ChunkID:    entry.ChunkID,
			DocumentID: entry.DocumentID,
			Title:      entry.Title,
			Ordinal:    entry.Ordinal,
			Text:       entry.Text,
			Score:      cosineSimilarity(vector, entry.Vector),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Ordinal < results[j].Ordinal
	})

	if len(results) > topK {
		results = results[:topK]
	}

	return results, nil
}

func (m *Memory) Delete(_ context.Context, namespace, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	chunkIDs, ok := m.docs[namespace][documentID]
	if !ok {
		return nil
	}

	for _, id := range chunkIDs {
		delete(m.entries[namespace], id)
	}
	delete(m.docs[namespace], documentID)

	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

var _ Index = (*Memory)(nil)
