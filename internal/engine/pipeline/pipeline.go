// Package pipeline owns the processing loop: pull a raw record from the
// source, drive it through decode, schema validation, and semantic rules,
// and hand the verdict to the router. Bad records never stop the run;
// sink and source failures do, after a best-effort drain.
package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/drblury/recordgate/internal/engine/errors"
	"github.com/drblury/recordgate/internal/engine/logging"
	"github.com/drblury/recordgate/internal/engine/metrics"
	"github.com/drblury/recordgate/internal/engine/record"
	"github.com/drblury/recordgate/internal/engine/router"
	"github.com/drblury/recordgate/internal/engine/rules"
	"github.com/drblury/recordgate/internal/engine/schema"
)

// laneBuffer bounds how far the dispatcher can run ahead of a lane.
const laneBuffer = 16

// State is the coordinator lifecycle.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Source supplies raw records. Next returns errors.ErrSourceExhausted on
// clean end-of-stream; any other error is fatal to the run.
type Source interface {
	Next(ctx context.Context) (record.RawRecord, error)
	Close() error
}

// SourceError wraps a fatal upstream failure.
type SourceError struct {
	Err error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source failed: %v", e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// Options configures a Pipeline.
type Options struct {
	Schema *schema.Descriptor
	Rules  *rules.Engine // nil means no semantic rules
	Router *router.Router
	Logger logging.ServiceLogger

	// Metrics is optional; nil disables Prometheus export.
	Metrics *metrics.PipelineMetrics

	// Lanes is the number of concurrent worker lanes. Records sharing a
	// partition key always land on the same lane. Zero means one lane.
	Lanes int
}

// Pipeline is a single-run coordinator. Construct, Run once, read the
// merged counters.
type Pipeline struct {
	schema  *schema.Descriptor
	rules   *rules.Engine
	router  *router.Router
	logger  logging.ServiceLogger
	metrics *metrics.PipelineMetrics
	lanes   int

	tracer trace.Tracer
	state  atomic.Int32
}

// New validates the options and builds a pipeline in the Idle state.
func New(opts Options) (*Pipeline, error) {
	if opts.Schema == nil {
		return nil, errors.ErrSchemaRequired
	}
	if opts.Router == nil {
		return nil, errors.ErrRouterRequired
	}
	if opts.Logger == nil {
		return nil, errors.ErrLoggerRequired
	}

	eng := opts.Rules
	if eng == nil {
		eng = rules.NewEngine(nil)
	}
	lanes := opts.Lanes
	if lanes <= 0 {
		lanes = 1
	}

	return &Pipeline{
		schema:  opts.Schema,
		rules:   eng,
		router:  opts.Router,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		lanes:   lanes,
		tracer:  otel.Tracer("recordgate-pipeline"),
	}, nil
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

type laneResult struct {
	counters  Counters
	fatal     error
	discarded uint64
}

// Run drives the pipeline until the source is exhausted, the context is
// cancelled, or a fatal sink/source error occurs. Cancellation is
// cooperative: it is checked between records and leads through Draining,
// never through abrupt termination. The merged counters are returned in
// every case.
func (p *Pipeline) Run(ctx context.Context, src Source) (Counters, error) {
	if src == nil {
		return NewCounters(), errors.ErrSourceRequired
	}
	if !p.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return NewCounters(), errors.ErrPipelineNotIdle
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	lanes := make([]chan record.RawRecord, p.lanes)
	results := make([]laneResult, p.lanes)
	var wg sync.WaitGroup
	for i := range lanes {
		lanes[i] = make(chan record.RawRecord, laneBuffer)
		wg.Add(1)
		go func(lane int, in <-chan record.RawRecord) {
			defer wg.Done()
			results[lane] = p.runLane(runCtx, cancel, lane, in)
		}(i, lanes[i])
	}

	var fatal []error
	rr := 0
	for {
		if runCtx.Err() != nil {
			break
		}
		raw, err := src.Next(runCtx)
		if err != nil {
			if stderrors.Is(err, errors.ErrSourceExhausted) ||
				stderrors.Is(err, context.Canceled) ||
				stderrors.Is(err, context.DeadlineExceeded) {
				break
			}
			fatal = append(fatal, &SourceError{Err: err})
			break
		}
		// Once pulled, a record is always handed to a lane; lanes keep
		// draining their channel even after a fatal error, so this send
		// cannot deadlock.
		lanes[p.laneFor(raw, &rr)] <- raw
	}

	p.state.Store(int32(StateDraining))
	p.logger.Debug("Draining pipeline", logging.LogFields{"lanes": p.lanes})

	for _, ch := range lanes {
		close(ch)
	}
	wg.Wait()

	merged := NewCounters()
	var discarded uint64
	for _, res := range results {
		merged.Merge(res.counters)
		discarded += res.discarded
		if res.fatal != nil {
			fatal = append(fatal, res.fatal)
		}
	}

	if err := src.Close(); err != nil {
		fatal = append(fatal, fmt.Errorf("close source: %w", err))
	}
	if err := p.router.Close(); err != nil {
		fatal = append(fatal, fmt.Errorf("close sinks: %w", err))
	}

	p.state.Store(int32(StateStopped))
	p.logger.Info("Pipeline stopped", logging.LogFields{
		"received": merged.Received,
		"valid":    merged.Valid,
		"invalid":  merged.Invalid(),
	})
	if discarded > 0 {
		p.logger.Error("Records left unrouted by fatal sink failure", nil, logging.LogFields{
			"discarded": discarded,
		})
	}

	return merged, stderrors.Join(fatal...)
}

// laneFor picks a lane by partition key so records from the same ordering
// unit stay strictly ordered. Keyless records round-robin.
func (p *Pipeline) laneFor(raw record.RawRecord, rr *int) int {
	if p.lanes == 1 {
		return 0
	}
	key := raw.Source.Key
	if key == "" {
		key = raw.Source.Partition
	}
	if key == "" {
		lane := *rr % p.lanes
		*rr++
		return lane
	}
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(p.lanes))
}

// runLane processes its channel to completion. After a fatal sink error
// it cancels the run and keeps draining the channel without routing, so
// the dispatcher never blocks.
func (p *Pipeline) runLane(ctx context.Context, cancel context.CancelFunc, lane int, in <-chan record.RawRecord) laneResult {
	res := laneResult{counters: NewCounters()}
	log := p.logger.With(logging.LogFields{"lane": lane})

	// Records already pulled from the source must still be routed after a
	// stop signal; routing runs on a non-cancellable context.
	routeCtx := context.WithoutCancel(ctx)

	for raw := range in {
		if res.fatal != nil {
			res.discarded++
			continue
		}

		verdict := p.classify(ctx, raw)

		start := time.Now()
		dest, err := p.router.Route(routeCtx, verdict)
		p.observeStage(metrics.StageRoute, start)
		if err != nil {
			res.fatal = err
			log.Error("Fatal sink failure, draining", err, logging.LogFields{"destination": string(dest)})
			cancel()
			continue
		}

		res.counters.observe(verdict)
		if p.metrics != nil {
			p.metrics.ObserveVerdict(verdict)
		}
		if !verdict.IsValid() {
			log.Debug("Routed invalid record", logging.LogFields{
				"reason":      string(verdict.Reason),
				"detail":      verdict.Detail,
				"destination": string(dest),
			})
		}
	}
	return res
}

// classify runs a record through decode, schema, and rules, producing its
// single terminal verdict. Stage failures are values, never aborts.
func (p *Pipeline) classify(ctx context.Context, raw record.RawRecord) record.Verdict {
	_, span := p.tracer.Start(ctx, "ProcessRecord")
	defer span.End()

	start := time.Now()
	parsed, serr := record.Decode(raw)
	p.observeStage(metrics.StageDecode, start)
	if serr != nil {
		return p.invalid(span, raw, nil, serr)
	}

	start = time.Now()
	serr = p.schema.Validate(parsed.Root)
	p.observeStage(metrics.StageSchema, start)
	if serr != nil {
		return p.invalid(span, raw, parsed, serr)
	}

	start = time.Now()
	serr = p.rules.Evaluate(parsed.Root)
	p.observeStage(metrics.StageRules, start)
	if serr != nil {
		return p.invalid(span, raw, parsed, serr)
	}

	span.SetAttributes(attribute.String("verdict", "valid"))
	return record.ValidVerdict(raw, parsed)
}

func (p *Pipeline) invalid(span trace.Span, raw record.RawRecord, parsed *record.ParsedRecord, serr *record.StageError) record.Verdict {
	span.SetAttributes(
		attribute.String("verdict", "invalid"),
		attribute.String("reason", string(serr.Reason)),
	)
	return record.InvalidVerdict(raw, parsed, serr)
}

func (p *Pipeline) observeStage(stage string, start time.Time) {
	if p.metrics != nil {
		p.metrics.ObserveStage(stage, time.Since(start))
	}
}
