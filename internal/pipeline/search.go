package pipeline

import (
	"context"
	"fmt"
	"strings"

	"regdocs/internal/model"
	"regdocs/internal/observability"
	"regdocs/internal/vectorindex"
)

// SearchOptions parameterizes a semantic search call.
type SearchOptions struct {
	Query        string
	DocumentType string
	Limit        int
	Threshold    float64
}

// SearchHit is one ranked search result, independent of whether it came
// from the vector index or the degraded substring fallback.
type SearchHit struct {
	ChunkID       int64
	DocumentID    int64
	DocumentTitle string
	DocumentType  string
	ChunkText     string
	Similarity    float64
}

const searchTextTruncateLen = 500

// Search embeds the query, runs a filtered chunk search against the vector
// index, and resolves each hit's text/title either from the vector
// payload or (when the payload is incomplete) from the row store. If the
// vector index is unavailable, it falls back to a case-insensitive
// substring scan over chunk rows with a fixed similarity of 0.5, per the
// read path's degraded-mode contract.
func (p *Pipeline) Search(ctx context.Context, opts SearchOptions) ([]SearchHit, error) {
	if opts.Limit <= 0 {
		opts.Limit = 10
	}

	vectors, err := p.Embedder.EmbedBatch(ctx, []string{opts.Query})
	if err != nil || len(vectors) != 1 {
		return p.substringSearchFallback(ctx, opts)
	}

	var filter *vectorindex.Filter
	if opts.DocumentType != "" {
		filter = &vectorindex.Filter{Must: []vectorindex.Condition{vectorindex.Eq("document_type", opts.DocumentType)}}
	}

	hits, err := p.Vectors.SearchChunks(ctx, vectors[0], opts.Limit, opts.Threshold, filter)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("pipeline: vector search failed, falling back to substring scan")
		return p.substringSearchFallback(ctx, opts)
	}

	out := make([]SearchHit, 0, len(hits))
	for _, h := range hits {
		hit, err := p.resolveSearchHit(ctx, h)
		if err != nil {
			continue
		}
		out = append(out, hit)
	}
	return out, nil
}

func (p *Pipeline) resolveSearchHit(ctx context.Context, h vectorindex.ScoredChunk) (SearchHit, error) {
	text := h.Payload.ChunkText
	title := h.Payload.DocumentTitle
	docType := h.Payload.DocumentType
	docID := h.Payload.DocumentID

	if text == "" || title == "" {
		chunkRow, err := p.Rows.GetChunk(ctx, h.ID)
		if err != nil {
			return SearchHit{}, fmt.Errorf("pipeline: resolve chunk %d: %w", h.ID, err)
		}
		if text == "" {
			text = chunkRow.ChunkText
		}
		if docID == 0 {
			docID = chunkRow.DocID
		}
		if title == "" || docType == "" {
			doc, err := p.Rows.GetDocument(ctx, chunkRow.DocID)
			if err != nil {
				return SearchHit{}, fmt.Errorf("pipeline: resolve document %d: %w", chunkRow.DocID, err)
			}
			title = doc.Title
			docType = string(doc.DocumentType)
			docID = doc.ID
		}
	}

	return SearchHit{
		ChunkID:       h.ID,
		DocumentID:    docID,
		DocumentTitle: title,
		DocumentType:  docType,
		ChunkText:     truncateText(text, searchTextTruncateLen),
		Similarity:    h.Score,
	}, nil
}

func (p *Pipeline) substringSearchFallback(ctx context.Context, opts SearchOptions) ([]SearchHit, error) {
	needle := strings.ToLower(strings.TrimSpace(opts.Query))
	if needle == "" {
		return nil, nil
	}

	docs, err := p.Rows.ListDocuments(ctx, opts.DocumentType, "")
	if err != nil {
		return nil, fmt.Errorf("pipeline: fallback list documents: %w", err)
	}

	var out []SearchHit
	for _, doc := range docs {
		if doc.Status != model.StatusReady {
			continue
		}
		chunks, err := p.Rows.GetChunksByDocument(ctx, doc.ID)
		if err != nil {
			continue
		}
		for _, c := range chunks {
			if !strings.Contains(strings.ToLower(c.ChunkText), needle) {
				continue
			}
			out = append(out, SearchHit{
				ChunkID:       c.ID,
				DocumentID:    doc.ID,
				DocumentTitle: doc.Title,
				DocumentType:  string(doc.DocumentType),
				ChunkText:     truncateText(c.ChunkText, searchTextTruncateLen),
				Similarity:    0.5,
			})
			if len(out) >= opts.Limit {
				return out, nil
			}
		}
	}
	return out, nil
}

func truncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
