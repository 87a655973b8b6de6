// Package pipeline dispatches transform requests into the engine under a
// global concurrency cap. Each open document holds its full object graph in
// memory, so the cap is what bounds the service's peak memory; it is the only
// piece of state shared between requests besides the stats tracker.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/dgallion1/pageshift/internal/engine"
)

// ErrBusy is returned when the concurrency cap is reached and the request's
// context expires (or is cancelled) while waiting for a slot.
var ErrBusy = errors.New("transformer at capacity")

// Request describes one page-shift operation.
type Request struct {
	// Move selects the range-move operation; otherwise Offset/Anchor apply.
	Move bool

	Offset int
	Anchor int

	From  int
	Count int
	To    int
}

// Transformer runs transforms with bounded parallelism.
type Transformer struct {
	eng   *engine.Engine
	sem   *semaphore.Weighted
	stats *TransformStats
	log   *slog.Logger
}

// NewTransformer caps concurrent transforms at maxConcurrent.
func NewTransformer(eng *engine.Engine, maxConcurrent int64, stats *TransformStats, log *slog.Logger) *Transformer {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Transformer{
		eng:   eng,
		sem:   semaphore.NewWeighted(maxConcurrent),
		stats: stats,
		log:   log,
	}
}

// Do runs one transform. The caller's context covers the semaphore wait and
// every pipeline stage, so a client disconnect abandons the work at the next
// stage boundary and the document graph is dropped with it.
func (t *Transformer) Do(ctx context.Context, data []byte, req Request) ([]byte, error) {
	if err := t.sem.Acquire(ctx, 1); err != nil {
		t.stats.RecordRejected()
		return nil, ErrBusy
	}
	defer t.sem.Release(1)

	start := time.Now()
	var out []byte
	var err error
	if req.Move {
		out, err = t.eng.Move(ctx, data, req.From, req.Count, req.To)
	} else {
		out, err = t.eng.Shift(ctx, data, req.Offset, req.Anchor)
	}
	elapsed := time.Since(start)
	t.stats.Record(elapsed.Milliseconds(), err == nil)

	if err != nil {
		t.log.Debug("transform failed", "error", err, "duration_ms", elapsed.Milliseconds())
		return nil, err
	}
	t.log.Debug("transform complete", "bytes_in", len(data), "bytes_out", len(out), "duration_ms", elapsed.Milliseconds())
	return out, nil
}

// Stats returns the shared stats tracker.
func (t *Transformer) Stats() *TransformStats { return t.stats }
