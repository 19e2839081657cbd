package vectorindex

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryIndex implements Index over in-process maps. It is used by pipeline
// unit tests and mirrors the filter/threshold/limit semantics of QdrantIndex
// closely enough that tests written against it also describe the Qdrant
// backend's contract.
type MemoryIndex struct {
	mu        sync.RWMutex
	chunks    map[int64]ChunkPoint
	documents map[int64]DocumentPoint
}

// NewMemoryIndex creates an empty in-memory Index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		chunks:    make(map[int64]ChunkPoint),
		documents: make(map[int64]DocumentPoint),
	}
}

func (m *MemoryIndex) Init(ctx context.Context) error { return nil }

func (m *MemoryIndex) UpsertChunks(ctx context.Context, points []ChunkPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range points {
		m.chunks[p.ID] = p
	}
	return nil
}

func (m *MemoryIndex) UpsertDocument(ctx context.Context, point DocumentPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents[point.ID] = point
	return nil
}

func (m *MemoryIndex) SearchChunks(ctx context.Context, query []float32, limit int, scoreThreshold float64, filter *Filter) ([]ScoredChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 {
		limit = 20
	}

	var out []ScoredChunk
	for _, p := range m.chunks {
		if !matchesChunkFilter(p.Payload, filter) {
			continue
		}
		score := cosineSimilarity(query, p.Vector)
		if score < scoreThreshold {
			continue
		}
		out = append(out, ScoredChunk{ID: p.ID, Score: score, Payload: p.Payload})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryIndex) SearchDocuments(ctx context.Context, query []float32, limit int, scoreThreshold float64, filter *Filter) ([]ScoredDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 {
		limit = 20
	}

	var out []ScoredDocument
	for _, p := range m.documents {
		if !matchesDocumentFilter(p.Payload, filter) {
			continue
		}
		score := cosineSimilarity(query, p.Vector)
		if score < scoreThreshold {
			continue
		}
		out = append(out, ScoredDocument{ID: p.ID, Score: score, Payload: p.Payload})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryIndex) CrossDocSimilarities(ctx context.Context, sourceDocID int64, targetDocIDs []int64, threshold float64, limitPerChunk int) ([]ChunkSimilarity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limitPerChunk <= 0 {
		limitPerChunk = 5
	}

	targets := make(map[int64]bool, len(targetDocIDs))
	for _, id := range targetDocIDs {
		targets[id] = true
	}

	var out []ChunkSimilarity
	for _, src := range m.chunks {
		if src.Payload.DocumentID != sourceDocID {
			continue
		}

		type scored struct {
			ChunkSimilarity
		}
		var candidates []scored
		for _, tgt := range m.chunks {
			if tgt.Payload.DocumentID == sourceDocID {
				continue
			}
			if len(targets) > 0 && !targets[tgt.Payload.DocumentID] {
				continue
			}
			score := cosineSimilarity(src.Vector, tgt.Vector)
			if score < threshold {
				continue
			}
			candidates = append(candidates, scored{ChunkSimilarity{
				SourceChunkID: src.ID,
				TargetChunkID: tgt.ID,
				TargetDocID:   tgt.Payload.DocumentID,
				Score:         score,
				SourcePayload: src.Payload,
				TargetPayload: tgt.Payload,
			}})
		}
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
		perTarget := make(map[int64]int)
		kept := 0
		for _, c := range candidates {
			if len(targets) > 0 {
				if perTarget[c.TargetDocID] >= limitPerChunk {
					continue
				}
				perTarget[c.TargetDocID]++
			} else if kept >= limitPerChunk {
				break
			}
			kept++
			out = append(out, c.ChunkSimilarity)
		}
	}
	return out, nil
}

func (m *MemoryIndex) DeleteByDocument(ctx context.Context, docID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range m.chunks {
		if p.Payload.DocumentID == docID {
			delete(m.chunks, id)
		}
	}
	delete(m.documents, docID)
	return nil
}

func (m *MemoryIndex) CollectionInfo(ctx context.Context, collection string) (CollectionInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	switch collection {
	case "chunks":
		return CollectionInfo{Name: collection, PointsCount: uint64(len(m.chunks)), Distance: "cosine"}, nil
	case "documents":
		return CollectionInfo{Name: collection, PointsCount: uint64(len(m.documents)), Distance: "cosine"}, nil
	default:
		return CollectionInfo{}, ErrCollectionMissing
	}
}

func (m *MemoryIndex) Health(ctx context.Context) error { return nil }

func (m *MemoryIndex) Close() error { return nil }

func matchesChunkFilter(p ChunkPayload, f *Filter) bool {
	if f == nil {
		return true
	}
	for _, c := range f.Must {
		switch c.Field {
		case "document_id":
			if !eqInt64(p.DocumentID, c) {
				return false
			}
		case "document_type":
			if !eqString(p.DocumentType, c) {
				return false
			}
		case "section_level":
			if !inRange(float64(p.SectionLevel), c) {
				return false
			}
		case "page_number":
			if !inRange(float64(p.PageNumber), c) {
				return false
			}
		}
	}
	return true
}

func matchesDocumentFilter(p DocumentPayload, f *Filter) bool {
	if f == nil {
		return true
	}
	for _, c := range f.Must {
		switch c.Field {
		case "document_type":
			if !eqString(p.DocumentType, c) {
				return false
			}
		case "category":
			if !eqString(p.Category, c) {
				return false
			}
		}
	}
	return true
}

func eqInt64(v int64, c Condition) bool {
	switch want := c.Eq.(type) {
	case int64:
		return v == want
	case int:
		return v == int64(want)
	default:
		return true
	}
}

func eqString(v string, c Condition) bool {
	if c.Eq == nil {
		return true
	}
	want, ok := c.Eq.(string)
	if !ok {
		return true
	}
	return v == want
}

func inRange(v float64, c Condition) bool {
	if c.Range == nil {
		return true
	}
	if c.Range.Gte != nil && v < *c.Range.Gte {
		return false
	}
	if c.Range.Lte != nil && v > *c.Range.Lte {
		return false
	}
	return true
}

// cosineSimilarity returns the cosine similarity between a and b normalized
// to [0, 1], per spec: (a·b / (‖a‖·‖b‖) + 1) / 2. Returns 0 when either
// vector has zero norm.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		av, bv := float64(a[i]), float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return (cos + 1) / 2
}
