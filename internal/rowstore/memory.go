package rowstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"regdocs/internal/model"
)

// MemoryStore is an in-process Store used by pipeline tests so they don't
// depend on a live Postgres instance.
type MemoryStore struct {
	mu sync.RWMutex

	nextDocID int64
	documents map[int64]model.Document

	nextChunkID int64
	chunks      map[int64]model.DocumentChunk

	nextRelID    int64
	relationships map[int64]model.DocumentRelationship
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		documents:     make(map[int64]model.Document),
		chunks:        make(map[int64]model.DocumentChunk),
		relationships: make(map[int64]model.DocumentRelationship),
	}
}

func (m *MemoryStore) Close() {}

func (m *MemoryStore) CreateDocument(ctx context.Context, doc *model.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextDocID++
	doc.ID = m.nextDocID
	doc.UploadDate = time.Now().UTC()
	doc.UpdatedAt = doc.UploadDate
	m.documents[doc.ID] = *doc
	return nil
}

func (m *MemoryStore) GetDocument(ctx context.Context, id int64) (model.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.documents[id]
	if !ok {
		return model.Document{}, ErrNotFound
	}
	return d, nil
}

func (m *MemoryStore) UpdateDocumentStatus(ctx context.Context, id int64, status model.DocumentStatus, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.documents[id]
	if !ok {
		return ErrNotFound
	}
	d.Status = status
	d.ErrorMessage = errMsg
	d.UpdatedAt = time.Now().UTC()
	m.documents[id] = d
	return nil
}

func (m *MemoryStore) MarkDocumentProcessed(ctx context.Context, id int64, processedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.documents[id]
	if !ok {
		return ErrNotFound
	}
	d.Status = model.StatusReady
	pd := processedAt
	d.ProcessedDate = &pd
	d.UpdatedAt = time.Now().UTC()
	m.documents[id] = d
	return nil
}

func (m *MemoryStore) ListDocuments(ctx context.Context, documentType string, status model.DocumentStatus) ([]model.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Document
	for _, d := range m.documents {
		if documentType != "" && string(d.DocumentType) != documentType {
			continue
		}
		if status != "" && d.Status != status {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) InsertChunks(ctx context.Context, chunks []*model.DocumentChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		m.nextChunkID++
		c.ID = m.nextChunkID
		c.CreatedAt = time.Now().UTC()
		m.chunks[c.ID] = *c
	}
	return nil
}

func (m *MemoryStore) GetChunksByDocument(ctx context.Context, docID int64) ([]model.DocumentChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.DocumentChunk
	for _, c := range m.chunks {
		if c.DocID == docID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChunkIndex < out[j].ChunkIndex })
	return out, nil
}

func (m *MemoryStore) GetChunk(ctx context.Context, id int64) (model.DocumentChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.chunks[id]
	if !ok {
		return model.DocumentChunk{}, ErrNotFound
	}
	return c, nil
}

func (m *MemoryStore) DeleteChunksByDocument(ctx context.Context, docID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.chunks {
		if c.DocID == docID {
			delete(m.chunks, id)
		}
	}
	return nil
}

func (m *MemoryStore) CreateRelationship(ctx context.Context, rel *model.DocumentRelationship) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.relationships {
		if r.SourceDocID == rel.SourceDocID && r.TargetDocID == rel.TargetDocID {
			return ErrDuplicateRelationship
		}
	}
	m.nextRelID++
	rel.ID = m.nextRelID
	now := time.Now().UTC()
	rel.CreatedAt = now
	rel.UpdatedAt = now
	m.relationships[rel.ID] = *rel
	return nil
}

func (m *MemoryStore) GetRelationship(ctx context.Context, id int64) (model.DocumentRelationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.relationships[id]
	if !ok {
		return model.DocumentRelationship{}, ErrNotFound
	}
	return r, nil
}

func (m *MemoryStore) GetDocumentRelationships(ctx context.Context, docID int64) ([]model.DocumentRelationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.DocumentRelationship
	for _, r := range m.relationships {
		if r.SourceDocID == docID || r.TargetDocID == docID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) RelationshipExists(ctx context.Context, sourceID, targetID int64, relType model.RelationshipType) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.relationships {
		if r.SourceDocID == sourceID && r.TargetDocID == targetID && r.RelationshipType == relType {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) ValidateRelationship(ctx context.Context, id int64, status model.ValidationStatus, validatedBy, notes string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.relationships[id]
	if !ok {
		return ErrNotFound
	}
	r.ValidationStatus = status
	r.ValidatedBy = validatedBy
	r.ValidationNotes = notes
	now := time.Now().UTC()
	r.ValidatedAt = &now
	r.UpdatedAt = now
	m.relationships[id] = r
	return nil
}
