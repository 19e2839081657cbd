// Package jobqueue carries process_document, extract_relationships, and
// health_check job messages between an enqueuing caller and the worker
// pool that runs the pipeline against them.
package jobqueue

import "encoding/json"

// Kind identifies the job message type, mirroring the three message shapes.
type Kind string

const (
	KindProcessDocument      Kind = "process_document"
	KindExtractRelationships Kind = "extract_relationships"
	KindHealthCheck          Kind = "health_check"
)

// ProcessDocumentPayload is the body of a process_document message.
type ProcessDocumentPayload struct {
	DocumentID int64 `json:"document_id"`
}

// ExtractRelationshipsPayload is the body of an extract_relationships
// message.
type ExtractRelationshipsPayload struct {
	DocumentID    int64   `json:"document_id"`
	TargetDocIDs  []int64 `json:"target_doc_ids,omitempty"`
	Threshold     float64 `json:"threshold,omitempty"`
	LimitPerChunk int     `json:"limit_per_chunk,omitempty"`
}

// HealthCheckPayload is the (empty) body of a health_check message.
type HealthCheckPayload struct{}

// Job is one queued unit of work. Payload carries the kind-specific body as
// raw JSON so the queue layer never needs to know the job schemas; only the
// worker's dispatch switch does.
type Job struct {
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// NewProcessDocumentJob builds a process_document Job for documentID.
func NewProcessDocumentJob(documentID int64) (Job, error) {
	return newJob(KindProcessDocument, ProcessDocumentPayload{DocumentID: documentID})
}

// NewExtractRelationshipsJob builds an extract_relationships Job.
func NewExtractRelationshipsJob(p ExtractRelationshipsPayload) (Job, error) {
	return newJob(KindExtractRelationships, p)
}

// NewHealthCheckJob builds a health_check Job.
func NewHealthCheckJob() (Job, error) {
	return newJob(KindHealthCheck, HealthCheckPayload{})
}

func newJob(kind Kind, payload any) (Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Job{}, err
	}
	return Job{Kind: kind, Payload: raw}, nil
}
