// Package model defines the relational entities shared by the row store,
// the vector index, and the processing pipeline.
package model

import "time"

// DocumentType distinguishes authoritative norms from internal guidelines.
type DocumentType string

const (
	DocumentTypeNorm      DocumentType = "norm"
	DocumentTypeGuideline DocumentType = "guideline"
)

// DocumentStatus tracks a Document through the processing state machine.
type DocumentStatus string

const (
	StatusUploading DocumentStatus = "uploading"
	StatusExtracting DocumentStatus = "extracting"
	StatusAnalyzing  DocumentStatus = "analyzing"
	StatusEmbedding  DocumentStatus = "embedding"
	StatusReady      DocumentStatus = "ready"
	StatusError      DocumentStatus = "error"
)

// RelationshipType enumerates the typed edges the pipeline can infer.
type RelationshipType string

const (
	RelationshipCompliance RelationshipType = "compliance"
	RelationshipConflict   RelationshipType = "conflict"
	RelationshipReference  RelationshipType = "reference"
	RelationshipSimilar    RelationshipType = "similar"
	RelationshipSupersedes RelationshipType = "supersedes"
)

// ValidationStatus tracks the review lifecycle of a DocumentRelationship.
type ValidationStatus string

const (
	ValidationAutoDetected  ValidationStatus = "auto_detected"
	ValidationPendingReview ValidationStatus = "pending_review"
	ValidationApproved      ValidationStatus = "approved"
	ValidationRejected      ValidationStatus = "rejected"
)

// Document is a regulatory document tracked through ingestion.
type Document struct {
	ID           int64
	Title        string
	DocumentType DocumentType
	FilePath     string // object key in the blob store
	FileType     string
	FileSize     int64
	Author       string
	Category     string
	Tags         []string
	Description  string
	Version      string
	Status       DocumentStatus
	ErrorMessage string
	UploadDate   time.Time
	ProcessedDate *time.Time
	UpdatedAt    time.Time
}

// DocumentChunk is a bounded contiguous text window carved from a Document.
// Its ID is used verbatim as the point id in the chunks collection of the
// vector index.
type DocumentChunk struct {
	ID            int64
	DocID         int64
	ChunkIndex    int
	ChunkText     string
	CharCount     int
	SectionTitle  string
	SectionLevel  int
	PageNumber    int
	HasSection    bool
	HasPage       bool
	CreatedAt     time.Time
}

// ChunkPair records one matched (source chunk, target chunk) pair for a
// DocumentRelationship's Details, ordered by descending similarity.
type ChunkPair struct {
	SourceChunkID     int64   `json:"source_chunk_id"`
	TargetChunkID     int64   `json:"target_chunk_id"`
	Score             float64 `json:"score"`
	SourceSectionTitle string `json:"source_section_title,omitempty"`
	TargetSectionTitle string `json:"target_section_title,omitempty"`
}

// RelationshipDetails is the structured payload stored alongside a
// DocumentRelationship summary.
type RelationshipDetails struct {
	MatchedChunksCount int         `json:"matched_chunks_count"`
	AvgSimilarity      float64     `json:"avg_similarity"`
	MaxSimilarity      float64     `json:"max_similarity"`
	MinSimilarity      float64     `json:"min_similarity"`
	MatchedSections    []string    `json:"matched_sections,omitempty"`
	ChunkPairs         []ChunkPair `json:"chunk_pairs"`
}

// DocumentRelationship is a directed, typed edge between two documents.
type DocumentRelationship struct {
	ID               int64
	SourceDocID      int64
	TargetDocID      int64
	RelationshipType RelationshipType
	Confidence       float64
	Summary          string
	Details          RelationshipDetails
	ValidationStatus ValidationStatus
	ValidatedBy      string
	ValidationNotes  string
	ValidatedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
