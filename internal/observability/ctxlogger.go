package observability

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type ctxLoggerKey struct{}

// WithJobLogger returns a context carrying l, retrievable with LoggerFromContext.
// The worker attaches a job_kind field before dispatching a job, and
// ProcessDocument adds document_id, so log lines emitted downstream are
// already scoped to that job.
func WithJobLogger(ctx context.Context, l zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxLoggerKey{}, l)
}

// LoggerFromContext returns the logger attached by WithJobLogger, or the
// global logger if ctx carries none.
func LoggerFromContext(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxLoggerKey{}).(zerolog.Logger); ok {
			return &l
		}
	}
	l := log.Logger
	return &l
}

