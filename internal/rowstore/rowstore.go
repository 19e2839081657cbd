// Package rowstore is the relational row store backing Document,
// DocumentChunk, and DocumentRelationship records.
package rowstore

import (
	"context"
	"errors"
	"time"

	"regdocs/internal/model"
)

// Errors returned by Store implementations.
var (
	ErrNotFound             = errors.New("rowstore: record not found")
	ErrDuplicateRelationship = errors.New("rowstore: relationship already exists")
	ErrAlreadyProcessed     = errors.New("rowstore: document already processed")
)

// Store is the relational persistence contract the pipeline depends on.
type Store interface {
	CreateDocument(ctx context.Context, doc *model.Document) error
	GetDocument(ctx context.Context, id int64) (model.Document, error)
	UpdateDocumentStatus(ctx context.Context, id int64, status model.DocumentStatus, errMsg string) error
	MarkDocumentProcessed(ctx context.Context, id int64, processedAt time.Time) error
	ListDocuments(ctx context.Context, documentType string, status model.DocumentStatus) ([]model.Document, error)

	// InsertChunks inserts chunks in one transaction and fills in each
	// chunk's generated ID, mirroring the flush-for-ids step in the
	// original task: the pipeline needs chunk IDs before it can upsert
	// vectors keyed by them.
	InsertChunks(ctx context.Context, chunks []*model.DocumentChunk) error
	GetChunksByDocument(ctx context.Context, docID int64) ([]model.DocumentChunk, error)
	GetChunk(ctx context.Context, id int64) (model.DocumentChunk, error)
	DeleteChunksByDocument(ctx context.Context, docID int64) error

	// CreateRelationship inserts a relationship, returning
	// ErrDuplicateRelationship if a relationship for the (source, target)
	// pair already exists, whatever its type.
	CreateRelationship(ctx context.Context, rel *model.DocumentRelationship) error
	GetRelationship(ctx context.Context, id int64) (model.DocumentRelationship, error)
	GetDocumentRelationships(ctx context.Context, docID int64) ([]model.DocumentRelationship, error)
	RelationshipExists(ctx context.Context, sourceID, targetID int64, relType model.RelationshipType) (bool, error)
	ValidateRelationship(ctx context.Context, id int64, status model.ValidationStatus, validatedBy, notes string) error

	Close()
}
