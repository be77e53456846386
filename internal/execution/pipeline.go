package execution

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"code-exec-service/internal/monitor"
	"code-exec-service/internal/piston"
	"code-exec-service/internal/storage"
)

// Sentinel errors surfaced to the boundary layer. Gateway failures never
// escape Submit; they become terminal record statuses instead.
var (
	ErrInvalidRequest = errors.New("invalid execution request")
	ErrNotFound       = storage.ErrNotFound
)

// Fixed messages copied into errorOutput on non-sandbox failures.
const (
	timeoutMessage  = "Code execution timed out"
	internalMessage = "Internal error while executing code"
	// abandonedMessage marks Pending rows reconciled by the sweeper after
	// their in-flight update was lost (crash between dispatch and persist).
	abandonedMessage = "Execution abandoned before a result was recorded"
)

// Request is a caller-supplied execution request.
type Request struct {
	Code     string
	Language string
}

// Pipeline orchestrates the execution lifecycle: it creates the record,
// persists the initial Pending state, dispatches to the sandbox, applies the
// outcome and persists exactly one terminal transition. It is the sole owner
// of record mutation.
type Pipeline struct {
	store   storage.Store
	runner  piston.Runner
	metrics *monitor.Metrics
	tracer  *monitor.Tracer
}

// NewPipeline wires the pipeline to its store and sandbox gateway.
func NewPipeline(store storage.Store, runner piston.Runner, metrics *monitor.Metrics) *Pipeline {
	return &Pipeline{
		store:   store,
		runner:  runner,
		metrics: metrics,
		tracer:  monitor.NewTracer(),
	}
}

// Submit runs one code execution end to end and returns the record in a
// terminal state. Only ErrInvalidRequest is returned before a record exists;
// every other failure is recorded on the returned record. If persisting the
// terminal update fails, the best-known record state is still returned and
// the durable Pending row remains queryable.
func (p *Pipeline) Submit(ctx context.Context, req Request, submitter Submitter) (*storage.ExecutionRecord, error) {
	if strings.TrimSpace(req.Code) == "" {
		return nil, fmt.Errorf("%w: code is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.Language) == "" {
		return nil, fmt.Errorf("%w: language is required", ErrInvalidRequest)
	}

	rec := &storage.ExecutionRecord{
		ID:        uuid.New().String(),
		Code:      req.Code,
		Language:  req.Language,
		Status:    storage.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if submitter.Valid {
		rec.SubmitterID = submitter.ID
	}

	ctx, span := p.tracer.StartSpan(ctx, "submit",
		monitor.AttrExecID.String(rec.ID),
		monitor.AttrLanguage.String(rec.Language),
	)
	defer span.End()

	// Persist Pending before dispatch so a crash mid-flight still leaves a
	// durable, queryable row.
	if err := p.store.Insert(ctx, rec); err != nil {
		return nil, fmt.Errorf("persisting pending record: %w", err)
	}

	if p.metrics != nil {
		p.metrics.ActiveExecutions.Inc()
		defer p.metrics.ActiveExecutions.Dec()
	}

	start := time.Now()
	p.execute(ctx, rec, start)

	span.SetAttributes(monitor.AttrStatus.String(string(rec.Status)))
	if p.metrics != nil {
		p.metrics.RecordExecution(rec.Language, string(rec.Status), time.Since(start).Seconds())
	}

	// Persist the terminal state even if the caller abandoned the request;
	// the Pending row must not be left stuck without an explanation.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := p.store.Update(persistCtx, rec); err != nil {
		// The terminal update is lost but the Pending row survives; the
		// sweeper reconciles it later.
		log.Error().Err(err).Str("exec_id", rec.ID).Msg("failed to persist terminal state")
	}

	return rec, nil
}

// execute invokes the gateway and applies the outcome, leaving rec in a
// terminal state on every path, panics included.
func (p *Pipeline) execute(ctx context.Context, rec *storage.ExecutionRecord, start time.Time) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("exec_id", rec.ID).Msg("panic interpreting execution result")
			rec.Status = storage.StatusFailed
			rec.ErrorOutput = internalMessage
		}
		if !rec.Status.IsTerminal() {
			rec.Status = storage.StatusFailed
			rec.ErrorOutput = internalMessage
		}
	}()

	result, err := p.runner.Run(ctx, rec.Code, rec.Language)
	elapsed := time.Since(start)
	if p.metrics != nil {
		p.metrics.SandboxLatency.Observe(elapsed.Seconds())
	}

	if err != nil {
		p.applyFailure(rec, err)
		return
	}

	rec.Output = result.Stdout
	rec.ErrorOutput = result.Stderr
	rec.SandboxLanguage = result.Language
	rec.SandboxVersion = result.Version

	if result.ExitCode == 0 {
		rec.Status = storage.StatusSucceeded
		rec.ExecutionTimeMs = elapsed.Milliseconds()
	} else {
		rec.Status = storage.StatusFailed
	}
}

func (p *Pipeline) applyFailure(rec *storage.ExecutionRecord, err error) {
	var remote *piston.RemoteError

	switch {
	case errors.Is(err, piston.ErrTimeout):
		rec.Status = storage.StatusTimedOut
		rec.ErrorOutput = timeoutMessage
		if p.metrics != nil {
			p.metrics.RecordError("timeout")
		}
	case errors.As(err, &remote):
		rec.Status = storage.StatusFailed
		rec.ErrorOutput = remote.Detail
		if p.metrics != nil {
			p.metrics.RecordError("remote")
		}
	default:
		log.Error().Err(err).Str("exec_id", rec.ID).Msg("unclassified execution failure")
		rec.Status = storage.StatusFailed
		rec.ErrorOutput = internalMessage
		if p.metrics != nil {
			p.metrics.RecordError("internal")
		}
	}
}

// Get returns a single execution record by id.
func (p *Pipeline) Get(ctx context.Context, id string) (*storage.ExecutionRecord, error) {
	return p.store.Get(ctx, id)
}

// History returns all records for a submitter identity. An unknown identity
// yields an empty slice, never an error; the anonymous identity has no
// history.
func (p *Pipeline) History(ctx context.Context, submitter Submitter) ([]storage.ExecutionRecord, error) {
	if !submitter.Valid {
		return []storage.ExecutionRecord{}, nil
	}
	return p.store.ListBySubmitter(ctx, submitter.ID)
}
