package daisy

import (
	"context"

	"github.com/FrameNetBrasil/daisy/pkg/logger"
	"github.com/FrameNetBrasil/daisy/pkg/metrics"
	"github.com/FrameNetBrasil/daisy/pkg/trace"
)

// observer is what every stage reports degraded store calls to.
type observer struct {
	tracer  trace.Tracer
	metrics *metrics.Collector
}

// degrade records a failed store query that the pipeline continues without.
// It returns the context error once ctx is done, the only failure a run
// aborts on.
func (o observer) degrade(ctx context.Context, component, query string, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	logger.Warn("[Daisy]["+component+"] Store query failed, continuing without results", "query", query, "err", err)
	trace.RecordStoreError(o.tracer, query, err)
	o.metrics.Degraded(query)
	return nil
}
