package pipeline

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"regdocs/internal/model"
	"regdocs/internal/observability"
	"regdocs/internal/rowstore"
	"regdocs/internal/vectorindex"
)

// maxConcurrentBuckets bounds how many target-document buckets are
// classified and persisted at once; each bucket touches a distinct
// (source, target) relationship row, so they're independent writes.
const maxConcurrentBuckets = 4

// RelationshipOptions parameterizes one extract_relationships run.
type RelationshipOptions struct {
	SourceDocID   int64
	TargetDocIDs  []int64
	Threshold     float64
	LimitPerChunk int
}

const topKConfidenceScores = 10
const topKChunkPairs = 20

type relationshipBucket struct {
	targetDocID int64
	scores      []float64
	pairs       []model.ChunkPair
	sections    map[string]struct{}
}

// ExtractRelationships aggregates cross-document chunk matches into typed
// DocumentRelationship rows, grounded on find_cross_document_similarities'
// bucket-by-target-document aggregation.
func (p *Pipeline) ExtractRelationships(ctx context.Context, opts RelationshipOptions) ([]model.DocumentRelationship, error) {
	if opts.Threshold <= 0 {
		opts.Threshold = 0.75
	}
	if opts.LimitPerChunk <= 0 {
		opts.LimitPerChunk = 5
	}

	source, err := p.Rows.GetDocument(ctx, opts.SourceDocID)
	if err != nil {
		return nil, fmt.Errorf("pipeline: load source document: %w", err)
	}
	if source.Status != model.StatusReady {
		return nil, fmt.Errorf("pipeline: source document %d is not ready", opts.SourceDocID)
	}

	matches, err := p.Vectors.CrossDocSimilarities(ctx, opts.SourceDocID, opts.TargetDocIDs, opts.Threshold, opts.LimitPerChunk)
	if err != nil {
		return nil, fmt.Errorf("pipeline: cross_doc_similarities: %w", err)
	}

	buckets := bucketByTargetDocument(matches)

	logger := observability.LoggerFromContext(ctx)

	// Each bucket is keyed by a distinct target document, so the buckets
	// can be classified and persisted concurrently; errgroup bounds that
	// fan-out instead of opening one goroutine per target.
	results := make([]*model.DocumentRelationship, len(buckets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentBuckets)

	for i, bucket := range buckets {
		i, bucket := i, bucket
		g.Go(func() error {
			target, err := p.Rows.GetDocument(gctx, bucket.targetDocID)
			if err != nil {
				logger.Warn().Int64("target_doc_id", bucket.targetDocID).Msg("pipeline: skipping relationship, target document missing")
				return nil
			}

			relType := classifyRelationship(source, target, bucketAverage(bucket.scores))

			already, err := p.Rows.RelationshipExists(gctx, opts.SourceDocID, bucket.targetDocID, relType)
			if err != nil {
				return fmt.Errorf("pipeline: check existing relationship: %w", err)
			}
			if already {
				return nil
			}

			confidence := confidenceFromScores(bucket.scores)
			summary := renderSummary(relType, source.Title, target.Title, confidence)

			rel := &model.DocumentRelationship{
				SourceDocID:      opts.SourceDocID,
				TargetDocID:      bucket.targetDocID,
				RelationshipType: relType,
				Confidence:       confidence,
				Summary:          summary,
				Details:          buildDetails(bucket),
				ValidationStatus: model.ValidationAutoDetected,
			}
			if err := p.Rows.CreateRelationship(gctx, rel); err != nil {
				if err == rowstore.ErrDuplicateRelationship {
					return nil
				}
				return fmt.Errorf("pipeline: create relationship: %w", err)
			}
			results[i] = rel
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var created []model.DocumentRelationship
	for _, r := range results {
		if r != nil {
			created = append(created, *r)
		}
	}
	return created, nil
}

func bucketByTargetDocument(matches []vectorindex.ChunkSimilarity) []*relationshipBucket {
	index := make(map[int64]*relationshipBucket)
	var order []int64
	for _, m := range matches {
		b, ok := index[m.TargetDocID]
		if !ok {
			b = &relationshipBucket{targetDocID: m.TargetDocID, sections: make(map[string]struct{})}
			index[m.TargetDocID] = b
			order = append(order, m.TargetDocID)
		}
		b.scores = append(b.scores, m.Score)
		b.pairs = append(b.pairs, model.ChunkPair{
			SourceChunkID:      m.SourceChunkID,
			TargetChunkID:      m.TargetChunkID,
			Score:              m.Score,
			SourceSectionTitle: m.SourcePayload.SectionTitle,
			TargetSectionTitle: m.TargetPayload.SectionTitle,
		})
		if m.SourcePayload.SectionTitle != "" {
			b.sections[m.SourcePayload.SectionTitle] = struct{}{}
		}
		if m.TargetPayload.SectionTitle != "" {
			b.sections[m.TargetPayload.SectionTitle] = struct{}{}
		}
	}
	buckets := make([]*relationshipBucket, 0, len(order))
	for _, id := range order {
		buckets = append(buckets, index[id])
	}
	return buckets
}

func bucketAverage(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

// classifyRelationship implements the fixed classification table: NORM→
// GUIDELINE is COMPLIANCE, GUIDELINE→NORM is REFERENCE, NORM→NORM is
// SUPERSEDES when similarity is high and versions strictly decrease
// (otherwise SIMILAR), and GUIDELINE→GUIDELINE is always SIMILAR. CONFLICT
// is never produced by this similarity-only classifier.
func classifyRelationship(source, target model.Document, avgSimilarity float64) model.RelationshipType {
	switch {
	case source.DocumentType == model.DocumentTypeNorm && target.DocumentType == model.DocumentTypeGuideline:
		return model.RelationshipCompliance
	case source.DocumentType == model.DocumentTypeGuideline && target.DocumentType == model.DocumentTypeNorm:
		return model.RelationshipReference
	case source.DocumentType == model.DocumentTypeNorm && target.DocumentType == model.DocumentTypeNorm:
		if avgSimilarity > 0.90 && source.Version != "" && target.Version != "" && source.Version > target.Version {
			return model.RelationshipSupersedes
		}
		return model.RelationshipSimilar
	default:
		return model.RelationshipSimilar
	}
}

// confidenceFromScores averages the top-10 scores in a bucket (or fewer, if
// the bucket is smaller), scaled to a 0-100 percentage and rounded to two
// decimals.
func confidenceFromScores(scores []float64) float64 {
	sorted := append([]float64(nil), scores...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	n := topKConfidenceScores
	if len(sorted) < n {
		n = len(sorted)
	}
	if n == 0 {
		return 0
	}
	var sum float64
	for _, s := range sorted[:n] {
		sum += s
	}
	avg := sum / float64(n) * 100
	return math.Round(avg*100) / 100
}

func buildDetails(b *relationshipBucket) model.RelationshipDetails {
	sorted := append([]model.ChunkPair(nil), b.pairs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })
	if len(sorted) > topKChunkPairs {
		sorted = sorted[:topKChunkPairs]
	}

	sections := make([]string, 0, len(b.sections))
	for s := range b.sections {
		sections = append(sections, s)
	}
	sort.Strings(sections)

	maxS, minS := b.scores[0], b.scores[0]
	for _, s := range b.scores {
		if s > maxS {
			maxS = s
		}
		if s < minS {
			minS = s
		}
	}

	return model.RelationshipDetails{
		MatchedChunksCount: len(b.scores),
		AvgSimilarity:      bucketAverage(b.scores),
		MaxSimilarity:      maxS,
		MinSimilarity:      minS,
		MatchedSections:    sections,
		ChunkPairs:         sorted,
	}
}

// renderSummary produces the deterministic, type-indexed summary template.
// Tests pin this text exactly, so wording must not drift once set.
func renderSummary(relType model.RelationshipType, sourceTitle, targetTitle string, confidence float64) string {
	switch relType {
	case model.RelationshipCompliance:
		return fmt.Sprintf("'%s' appears to implement or comply with requirements from '%s' (confidence: %.1f%%)", targetTitle, sourceTitle, confidence)
	case model.RelationshipReference:
		return fmt.Sprintf("'%s' appears to reference requirements defined in '%s' (confidence: %.1f%%)", sourceTitle, targetTitle, confidence)
	case model.RelationshipSupersedes:
		return fmt.Sprintf("'%s' appears to supersede an earlier version found in '%s' (confidence: %.1f%%)", sourceTitle, targetTitle, confidence)
	case model.RelationshipSimilar:
		return fmt.Sprintf("'%s' and '%s' share substantially similar content (confidence: %.1f%%)", sourceTitle, targetTitle, confidence)
	default:
		return strings.TrimSpace(fmt.Sprintf("'%s' and '%s' are related (confidence: %.1f%%)", sourceTitle, targetTitle, confidence))
	}
}
