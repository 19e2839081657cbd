package vectorindex

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantIndex implements Index against a Qdrant cluster, keyed on the
// two named collections and integer point ids the data model requires.
type QdrantIndex struct {
	client              *qdrant.Client
	documentsCollection string
	chunksCollection    string
	dimension           int
}

// NewQdrantIndex dials Qdrant's gRPC API (default port 6334). An optional
// api_key query parameter on dsn ("http://host:6334?api_key=...") is
// forwarded as the client's API key.
func NewQdrantIndex(dsn, documentsCollection, chunksCollection string, dimension int) (*QdrantIndex, error) {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: parse dsn: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := parsed.Port()
	if port == "" {
		port = "6334"
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: invalid port in dsn: %w", err)
	}

	cfg := &qdrant.Config{Host: host, Port: portNum}
	if parsed.Scheme == "https" {
		cfg.UseTLS = true
	}
	if apiKey := parsed.Query().Get("api_key"); apiKey != "" {
		cfg.APIKey = apiKey
	}

	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: create client: %w", err)
	}

	return &QdrantIndex{
		client:              client,
		documentsCollection: documentsCollection,
		chunksCollection:    chunksCollection,
		dimension:           dimension,
	}, nil
}

func (q *QdrantIndex) Init(ctx context.Context) error {
	for _, name := range []string{q.documentsCollection, q.chunksCollection} {
		if err := q.ensureCollection(ctx, name); err != nil {
			return fmt.Errorf("vectorindex: ensure collection %q: %w", name, err)
		}
	}
	return nil
}

func (q *QdrantIndex) ensureCollection(ctx context.Context, name string) error {
	exists, err := q.client.CollectionExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if q.dimension <= 0 {
		return fmt.Errorf("dimension must be > 0")
	}
	return q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
}

func (q *QdrantIndex) UpsertChunks(ctx context.Context, points []ChunkPoint) error {
	pts := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		pts = append(pts, &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(p.ID)),
			Vectors: qdrant.NewVectorsDense(p.Vector),
			Payload: qdrant.NewValueMap(chunkPayloadMap(p.Payload)),
		})
	}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.chunksCollection,
		Points:         pts,
	})
	if err != nil {
		return fmt.Errorf("vectorindex: upsert chunks: %w", err)
	}
	return nil
}

func (q *QdrantIndex) UpsertDocument(ctx context.Context, point DocumentPoint) error {
	pt := &qdrant.PointStruct{
		Id:      qdrant.NewIDNum(uint64(point.ID)),
		Vectors: qdrant.NewVectorsDense(point.Vector),
		Payload: qdrant.NewValueMap(documentPayloadMap(point.Payload)),
	}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.documentsCollection,
		Points:         []*qdrant.PointStruct{pt},
	})
	if err != nil {
		return fmt.Errorf("vectorindex: upsert document: %w", err)
	}
	return nil
}

func (q *QdrantIndex) SearchChunks(ctx context.Context, query []float32, limit int, scoreThreshold float64, filter *Filter) ([]ScoredChunk, error) {
	if limit <= 0 {
		limit = 20
	}
	l := uint64(limit)
	threshold := float32(scoreThreshold)
	hits, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.chunksCollection,
		Query:          qdrant.NewQueryDense(query),
		Limit:          &l,
		ScoreThreshold: &threshold,
		Filter:         toQdrantFilter(filter),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("vectorindex: search chunks: %w", err)
	}
	results := make([]ScoredChunk, 0, len(hits))
	for _, h := range hits {
		results = append(results, ScoredChunk{
			ID:      int64(h.Id.GetNum()),
			Score:   float64(h.Score),
			Payload: payloadToChunk(h.Payload),
		})
	}
	return results, nil
}

func (q *QdrantIndex) SearchDocuments(ctx context.Context, query []float32, limit int, scoreThreshold float64, filter *Filter) ([]ScoredDocument, error) {
	if limit <= 0 {
		limit = 20
	}
	l := uint64(limit)
	threshold := float32(scoreThreshold)
	hits, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.documentsCollection,
		Query:          qdrant.NewQueryDense(query),
		Limit:          &l,
		ScoreThreshold: &threshold,
		Filter:         toQdrantFilter(filter),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("vectorindex: search documents: %w", err)
	}
	results := make([]ScoredDocument, 0, len(hits))
	for _, h := range hits {
		results = append(results, ScoredDocument{
			ID:      int64(h.Id.GetNum()),
			Score:   float64(h.Score),
			Payload: payloadToDocument(h.Payload),
		})
	}
	return results, nil
}

// CrossDocSimilarities ports find_cross_document_similarities: scroll the
// chunks of the source document (with vectors), then, per source chunk,
// either query each explicit target document or query once excluding the
// source document. The scroll is a single page of at most 1000 points;
// chunks beyond the first 1000 are not searched.
func (q *QdrantIndex) CrossDocSimilarities(ctx context.Context, sourceDocID int64, targetDocIDs []int64, threshold float64, limitPerChunk int) ([]ChunkSimilarity, error) {
	if limitPerChunk <= 0 {
		limitPerChunk = 5
	}

	scrollLimit := uint32(1000)
	sourcePoints, err := q.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: q.chunksCollection,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatchInt("document_id", sourceDocID)},
		},
		Limit:       &scrollLimit,
		WithVectors: qdrant.NewWithVectors(true),
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("vectorindex: scroll source chunks: %w", err)
	}

	var out []ChunkSimilarity
	l := uint64(limitPerChunk)
	thr := float32(threshold)

	for _, src := range sourcePoints {
		sourceVec := src.GetVectors().GetVector().GetData()
		sourcePayload := payloadToChunk(src.Payload)
		sourceChunkID := int64(src.Id.GetNum())

		var targetFilters []*qdrant.Filter
		if len(targetDocIDs) > 0 {
			for _, tid := range targetDocIDs {
				targetFilters = append(targetFilters, &qdrant.Filter{
					Must: []*qdrant.Condition{qdrant.NewMatchInt("document_id", tid)},
				})
			}
		} else {
			targetFilters = []*qdrant.Filter{{
				MustNot: []*qdrant.Condition{qdrant.NewMatchInt("document_id", sourceDocID)},
			}}
		}

		for _, tf := range targetFilters {
			hits, err := q.client.Query(ctx, &qdrant.QueryPoints{
				CollectionName: q.chunksCollection,
				Query:          qdrant.NewQueryDense(sourceVec),
				Limit:          &l,
				ScoreThreshold: &thr,
				Filter:         tf,
				WithPayload:    qdrant.NewWithPayload(true),
			})
			if err != nil {
				return nil, fmt.Errorf("vectorindex: cross-doc query: %w", err)
			}
			for _, hit := range hits {
				targetPayload := payloadToChunk(hit.Payload)
				out = append(out, ChunkSimilarity{
					SourceChunkID: sourceChunkID,
					TargetChunkID: int64(hit.Id.GetNum()),
					TargetDocID:   targetPayload.DocumentID,
					Score:         float64(hit.Score),
					SourcePayload: sourcePayload,
					TargetPayload: targetPayload,
				})
			}
		}
	}
	return out, nil
}

func (q *QdrantIndex) DeleteByDocument(ctx context.Context, docID int64) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.chunksCollection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatchInt("document_id", docID)},
		}),
	})
	if err != nil {
		return fmt.Errorf("vectorindex: delete chunks for document %d: %w", docID, err)
	}

	// Deleting the document-level point is best-effort: a document that
	// failed before reaching the embedding stage never has one.
	_, _ = q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.documentsCollection,
		Points:         qdrant.NewPointsSelector(qdrant.NewIDNum(uint64(docID))),
	})
	return nil
}

func (q *QdrantIndex) CollectionInfo(ctx context.Context, collection string) (CollectionInfo, error) {
	info, err := q.client.GetCollectionInfo(ctx, collection)
	if err != nil {
		return CollectionInfo{}, fmt.Errorf("vectorindex: collection info %q: %w", collection, err)
	}
	count := uint64(0)
	if info.GetPointsCount() > 0 {
		count = info.GetPointsCount()
	}
	return CollectionInfo{
		Name:        collection,
		PointsCount: count,
		Dimension:   q.dimension,
		Distance:    "cosine",
	}, nil
}

func (q *QdrantIndex) Health(ctx context.Context) error {
	_, err := q.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("vectorindex: health check: %w", err)
	}
	return nil
}

func (q *QdrantIndex) Close() error {
	return q.client.Close()
}

func toQdrantFilter(f *Filter) *qdrant.Filter {
	if f == nil || len(f.Must) == 0 {
		return nil
	}
	must := make([]*qdrant.Condition, 0, len(f.Must))
	for _, c := range f.Must {
		if c.Range != nil {
			r := &qdrant.Range{}
			if c.Range.Gte != nil {
				r.Gte = c.Range.Gte
			}
			if c.Range.Lte != nil {
				r.Lte = c.Range.Lte
			}
			must = append(must, qdrant.NewRange(c.Field, r))
			continue
		}
		switch v := c.Eq.(type) {
		case string:
			must = append(must, qdrant.NewMatch(c.Field, v))
		case int:
			must = append(must, qdrant.NewMatchInt(c.Field, int64(v)))
		case int64:
			must = append(must, qdrant.NewMatchInt(c.Field, v))
		}
	}
	return &qdrant.Filter{Must: must}
}

func chunkPayloadMap(p ChunkPayload) map[string]any {
	return map[string]any{
		"document_id":    p.DocumentID,
		"chunk_index":    p.ChunkIndex,
		"chunk_text":     p.ChunkText,
		"document_type":  p.DocumentType,
		"document_title": p.DocumentTitle,
		"section_title":  p.SectionTitle,
		"section_level":  p.SectionLevel,
		"page_number":    p.PageNumber,
	}
}

func documentPayloadMap(p DocumentPayload) map[string]any {
	return map[string]any{
		"document_type": p.DocumentType,
		"title":         p.Title,
		"category":      p.Category,
	}
}

func payloadToChunk(payload map[string]*qdrant.Value) ChunkPayload {
	var p ChunkPayload
	if payload == nil {
		return p
	}
	if v, ok := payload["document_id"]; ok {
		p.DocumentID = v.GetIntegerValue()
	}
	if v, ok := payload["chunk_index"]; ok {
		p.ChunkIndex = int(v.GetIntegerValue())
	}
	if v, ok := payload["chunk_text"]; ok {
		p.ChunkText = v.GetStringValue()
	}
	if v, ok := payload["document_type"]; ok {
		p.DocumentType = v.GetStringValue()
	}
	if v, ok := payload["document_title"]; ok {
		p.DocumentTitle = v.GetStringValue()
	}
	if v, ok := payload["section_title"]; ok {
		p.SectionTitle = v.GetStringValue()
	}
	if v, ok := payload["section_level"]; ok {
		p.SectionLevel = int(v.GetIntegerValue())
	}
	if v, ok := payload["page_number"]; ok {
		p.PageNumber = int(v.GetIntegerValue())
	}
	return p
}

func payloadToDocument(payload map[string]*qdrant.Value) DocumentPayload {
	var p DocumentPayload
	if payload == nil {
		return p
	}
	if v, ok := payload["document_type"]; ok {
		p.DocumentType = v.GetStringValue()
	}
	if v, ok := payload["title"]; ok {
		p.Title = v.GetStringValue()
	}
	if v, ok := payload["category"]; ok {
		p.Category = v.GetStringValue()
	}
	return p
}
