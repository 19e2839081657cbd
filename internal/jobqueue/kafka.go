package jobqueue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"regdocs/internal/config"
)

// KafkaQueue is the production job-broker backend: process_document and
// extract_relationships messages travel as JSON-encoded Job values on one
// topic, with the worker's consumer group providing the durable,
// cross-process delivery the in-process MemoryQueue can't. Consume commits
// a message's offset as soon as it is decoded, before the job runs, so a
// job whose worker dies mid-run is not redelivered.
type KafkaQueue struct {
	writer *kafka.Writer
	reader *kafka.Reader
}

// NewKafkaQueue builds a KafkaQueue from cfg. Its reader joins cfg.KafkaGroupID
// so multiple worker processes share the partition assignment instead of
// each reading every message.
func NewKafkaQueue(cfg config.JobConfig) *KafkaQueue {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(cfg.KafkaBrokers...),
		Topic:    cfg.KafkaTopic,
		Balancer: &kafka.LeastBytes{},
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic,
		GroupID: cfg.KafkaGroupID,
	})
	return &KafkaQueue{writer: writer, reader: reader}
}

func (q *KafkaQueue) Enqueue(ctx context.Context, job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("jobqueue: marshal job: %w", err)
	}
	return q.writer.WriteMessages(ctx, kafka.Message{Key: []byte(job.Kind), Value: body})
}

func (q *KafkaQueue) Consume(ctx context.Context) (Job, error) {
	msg, err := q.reader.FetchMessage(ctx)
	if err != nil {
		return Job{}, fmt.Errorf("jobqueue: fetch message: %w", err)
	}
	var job Job
	if err := json.Unmarshal(msg.Value, &job); err != nil {
		return Job{}, fmt.Errorf("jobqueue: unmarshal job: %w", err)
	}
	if err := q.reader.CommitMessages(ctx, msg); err != nil {
		return Job{}, fmt.Errorf("jobqueue: commit offset: %w", err)
	}
	return job, nil
}

func (q *KafkaQueue) Close() error {
	werr := q.writer.Close()
	rerr := q.reader.Close()
	if werr != nil {
		return werr
	}
	return rerr
}
