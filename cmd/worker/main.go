// Command worker runs the process-document / extract-relationships job
// loop: it wires the blob store, text extractor, chunker, embedder, vector
// index, and row store into a pipeline.Pipeline, then drains the configured
// job queue until the process is stopped.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"regdocs/internal/blobstore"
	"regdocs/internal/chunk"
	"regdocs/internal/config"
	"regdocs/internal/embed"
	"regdocs/internal/extract"
	"regdocs/internal/jobqueue"
	"regdocs/internal/observability"
	"regdocs/internal/pipeline"
	"regdocs/internal/rowstore"
	"regdocs/internal/vectorindex"
)

func main() {
	logPath := flag.String("log-path", "", "write logs to this file instead of stdout")
	logLevel := flag.String("log-level", "info", "zerolog level: trace|debug|info|warn|error")
	flag.Parse()

	if err := godotenv.Load(".env"); err != nil {
		_ = godotenv.Load("example.env")
	}
	observability.InitLogger(*logPath, *logLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("worker: failed to load config")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	blobs, err := blobstore.NewS3Store(ctx, cfg.S3)
	if err != nil {
		log.Fatal().Err(err).Msg("worker: failed to init blob store")
	}

	rows, err := rowstore.NewPostgresStore(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("worker: failed to init row store")
	}
	defer rows.Close()

	vectors, err := vectorindex.NewQdrantIndex(cfg.Qdrant.DSN, cfg.Qdrant.DocumentsCollection, cfg.Qdrant.ChunksCollection, cfg.Embedding.Dimension)
	if err != nil {
		log.Fatal().Err(err).Msg("worker: failed to init vector index")
	}
	defer vectors.Close()
	if err := vectors.Init(ctx); err != nil {
		log.Fatal().Err(err).Msg("worker: failed to initialize vector collections")
	}

	embedder := newEmbedder(cfg.Embedding)
	if err := embedder.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("worker: embedding backend reachability check failed, continuing")
	}

	registry := extract.NewRegistry(cfg.OCR.Binary)
	chunker := chunk.New(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap)

	p := pipeline.New(blobs, registry, chunker, embedder, vectors, rows, cfg.Job.TempDir)

	queue := newQueue(cfg.Job)
	defer queue.Close()

	workerCount := cfg.Job.WorkerCount
	if workerCount <= 0 {
		workerCount = 4
	}

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			runWorkerLoop(ctx, id, queue, p, cfg.Job)
		}(i)
	}

	log.Info().Int("worker_count", workerCount).Msg("worker: started")
	<-ctx.Done()
	log.Info().Msg("worker: shutting down")
	wg.Wait()
}

// runWorkerLoop keeps replacing a Worker once it hits its per-process job
// limit, the self-restart mechanism that bounds memory growth across a
// long-running worker.
func runWorkerLoop(ctx context.Context, id int, queue jobqueue.Queue, p *pipeline.Pipeline, jobCfg config.JobConfig) {
	for ctx.Err() == nil {
		w := jobqueue.NewWorker(queue, p, jobCfg)
		if err := w.Run(ctx); err != nil {
			log.Error().Err(err).Int("worker_id", id).Msg("worker: run loop exited with error")
		}
	}
}

func newEmbedder(cfg config.EmbeddingConfig) embed.Embedder {
	if cfg.Provider == "remote" {
		return embed.NewRemoteEmbedder(cfg)
	}
	return embed.NewLocalEmbedder(cfg.Dimension)
}

func newQueue(cfg config.JobConfig) jobqueue.Queue {
	if cfg.Broker == "kafka" {
		return jobqueue.NewKafkaQueue(cfg)
	}
	return jobqueue.NewMemoryQueue(256)
}
