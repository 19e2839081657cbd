package jobqueue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueue_EnqueueAndConsume(t *testing.T) {
	t.Parallel()
	q := NewMemoryQueue(4)
	job, err := NewProcessDocumentJob(42)
	require.NoError(t, err)

	require.NoError(t, q.Enqueue(context.Background(), job))

	got, err := q.Consume(context.Background())
	require.NoError(t, err)
	assert.Equal(t, KindProcessDocument, got.Kind)

	var payload ProcessDocumentPayload
	require.NoError(t, decodePayload(got, &payload))
	assert.Equal(t, int64(42), payload.DocumentID)
}

func TestMemoryQueue_ConsumeBlocksUntilContextCanceled(t *testing.T) {
	t.Parallel()
	q := NewMemoryQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Consume(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryQueue_EnqueueAfterCloseFails(t *testing.T) {
	t.Parallel()
	q := NewMemoryQueue(1)
	require.NoError(t, q.Close())

	job, err := NewHealthCheckJob()
	require.NoError(t, err)
	err = q.Enqueue(context.Background(), job)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNewExtractRelationshipsJob_RoundTripsPayload(t *testing.T) {
	t.Parallel()
	job, err := NewExtractRelationshipsJob(ExtractRelationshipsPayload{
		DocumentID:    7,
		TargetDocIDs:  []int64{1, 2},
		Threshold:     0.8,
		LimitPerChunk: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, KindExtractRelationships, job.Kind)

	var payload ExtractRelationshipsPayload
	require.NoError(t, decodePayload(job, &payload))
	assert.Equal(t, int64(7), payload.DocumentID)
	assert.Equal(t, []int64{1, 2}, payload.TargetDocIDs)
	assert.Equal(t, 0.8, payload.Threshold)
	assert.Equal(t, 3, payload.LimitPerChunk)
}

func decodePayload(job Job, v any) error {
	return json.Unmarshal(job.Payload, v)
}
