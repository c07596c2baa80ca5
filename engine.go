// Package provision turns free-text infrastructure requests into generated
// terraform configurations, executes them through the terraform CLI, and
// tracks the resulting resources.
//
// The pipeline for a create request is: extract intent, validate into a
// spec, render the configuration, then under the workspace lock write, init,
// plan, apply, and reconcile. Identical concurrent requests coalesce onto a
// single run. The workspace lock is released on every path out of a run.
package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/GoCodeAlone/provision/intent"
	"github.com/GoCodeAlone/provision/observability"
	"github.com/GoCodeAlone/provision/policy"
	"github.com/GoCodeAlone/provision/render"
	"github.com/GoCodeAlone/provision/resource"
	"github.com/GoCodeAlone/provision/state"
	"github.com/GoCodeAlone/provision/terraform"
	"github.com/GoCodeAlone/provision/workspace"
)

// Verifier cross-checks an applied resource against the provider account.
type Verifier interface {
	Verify(ctx context.Context, kind, id string) error
}

// Engine runs provisioning requests end to end.
type Engine struct {
	extractor  *intent.Extractor
	validator  *resource.Validator
	policies   *policy.Engine
	renderer   *render.Renderer
	runner     terraform.Runner
	store      state.Store
	workspaces *workspace.Manager
	locks      *workspace.LockGroup
	reconciler *state.Reconciler
	verifier   Verifier
	metrics    *observability.Metrics
	tracer     trace.Tracer
	logger     *slog.Logger

	lockWait      time.Duration
	planRetries   int
	planBackoff   time.Duration
	maxConcurrent int64

	sem      *semaphore.Weighted
	inflight singleflight.Group
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithDefaults sets the default table the validator fills specs from.
func WithDefaults(d resource.Defaults) Option {
	return func(e *Engine) { e.validator = resource.NewValidator(d) }
}

// WithPolicies sets the guard rules checked after validation.
func WithPolicies(p *policy.Engine) Option {
	return func(e *Engine) { e.policies = p }
}

// WithVerifier enables post-apply existence checks.
func WithVerifier(v Verifier) Option {
	return func(e *Engine) { e.verifier = v }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithTracer sets the tracer runs are traced with.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithLockWait bounds how long a run waits for its workspace lock.
func WithLockWait(d time.Duration) Option {
	return func(e *Engine) { e.lockWait = d }
}

// WithPlanRetries bounds how many times a transient plan failure is retried.
func WithPlanRetries(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.planRetries = n
		}
	}
}

// WithPlanBackoff sets the delay between plan retries.
func WithPlanBackoff(d time.Duration) Option {
	return func(e *Engine) { e.planBackoff = d }
}

// WithMaxConcurrent bounds how many runs may execute at once.
func WithMaxConcurrent(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxConcurrent = int64(n)
		}
	}
}

// WithClock overrides the engine clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an Engine over a terraform runner, a record store, and a
// workspace manager.
func NewEngine(runner terraform.Runner, store state.Store, workspaces *workspace.Manager, opts ...Option) (*Engine, error) {
	if runner == nil {
		return nil, errors.New("provision: runner is required")
	}
	if store == nil {
		return nil, errors.New("provision: store is required")
	}
	if workspaces == nil {
		return nil, errors.New("provision: workspace manager is required")
	}

	e := &Engine{
		extractor:     intent.NewExtractor(),
		validator:     resource.NewValidator(resource.Defaults{}),
		renderer:      render.NewRenderer(),
		runner:        runner,
		store:         store,
		workspaces:    workspaces,
		locks:         workspace.NewLockGroup(),
		metrics:       observability.NewMetrics(),
		tracer:        noop.NewTracerProvider().Tracer("provision"),
		logger:        slog.Default(),
		lockWait:      30 * time.Second,
		planRetries:   2,
		planBackoff:   2 * time.Second,
		maxConcurrent: 4,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.sem = semaphore.NewWeighted(e.maxConcurrent)

	reconciler, err := state.NewReconciler(store, runner, e.logger)
	if err != nil {
		return nil, fmt.Errorf("provision: failed to build reconciler: %w", err)
	}
	e.reconciler = reconciler

	e.locks.OnAcquire = e.metrics.LockAcquired
	e.locks.OnRelease = e.metrics.LockReleased
	return e, nil
}

// Handle interprets a free-text request and executes whatever it asks for.
func (e *Engine) Handle(ctx context.Context, text string) (*Outcome, error) {
	it, err := e.extractor.Extract(text)
	if err != nil {
		e.logger.Warn("request not interpretable", "err", err)
		return nil, err
	}
	e.logger.Debug("request interpreted", "action", it.Action, "kind", it.Kind, "slots", len(it.Slots))

	switch it.Action {
	case intent.ActionCreate:
		return e.Provision(ctx, it.Kind, it.Slots)
	case intent.ActionDelete:
		return e.Destroy(ctx, it.Kind)
	case intent.ActionGenerate:
		cfg, err := e.Generate(ctx, it.Kind, it.Slots)
		if err != nil {
			return nil, err
		}
		r := newRun(uuid.NewString(), OpGenerate, cfg.Kind, "", cfg.Fingerprint, e.now, nil)
		r.outcome.Config = &cfg
		return r.finish(RunSucceeded, nil), nil
	case intent.ActionQuery:
		records, err := e.Records(ctx, it.Kind)
		if err != nil {
			return nil, err
		}
		r := newRun(uuid.NewString(), OpQuery, it.Kind, "", "", e.now, nil)
		r.outcome.Records = records
		return r.finish(RunSucceeded, nil), nil
	default:
		return nil, &intent.ParseError{Text: text, Reason: fmt.Sprintf("unsupported action %q", it.Action)}
	}
}

// Provision validates slots into a spec and runs the create pipeline.
// Identical concurrent requests share one run and one Outcome.
func (e *Engine) Provision(ctx context.Context, kind string, slots map[string]string) (*Outcome, error) {
	spec, err := e.validateSpec(kind, slots)
	if err != nil {
		e.metrics.RecordRequest(kind, string(OpCreate), "rejected")
		return nil, err
	}

	key := string(OpCreate) + ":" + spec.Fingerprint()
	return e.coalesce(key, func() (*Outcome, error) {
		return e.runCreate(ctx, spec)
	})
}

// Generate validates slots into a spec and renders its configuration without
// touching disk, locks, or state.
func (e *Engine) Generate(ctx context.Context, kind string, slots map[string]string) (render.GeneratedConfig, error) {
	_, span := e.tracer.Start(ctx, "provision.generate", trace.WithAttributes(
		attribute.String("resource.kind", kind),
	))
	defer span.End()

	spec, err := e.validateSpec(kind, slots)
	if err != nil {
		e.metrics.RecordRequest(kind, string(OpGenerate), "rejected")
		return render.GeneratedConfig{}, err
	}
	cfg, err := e.renderer.Generate(spec)
	if err != nil {
		e.metrics.RecordRequest(kind, string(OpGenerate), "failed")
		return render.GeneratedConfig{}, err
	}
	e.metrics.RecordRequest(kind, string(OpGenerate), string(RunSucceeded))
	return cfg, nil
}

// Destroy tears down every tracked resource of kind in the engine's
// environment. With nothing tracked it succeeds without invoking terraform.
func (e *Engine) Destroy(ctx context.Context, kind string) (*Outcome, error) {
	if !resource.KnownKind(kind) {
		e.metrics.RecordRequest(kind, string(OpDestroy), "rejected")
		return nil, &resource.ValidationError{Fields: []resource.FieldError{{
			Field:  "resource_kind",
			Reason: fmt.Sprintf("unknown resource kind %q", kind),
		}}}
	}

	key := string(OpDestroy) + ":" + kind + ":" + e.workspaces.Environment()
	return e.coalesce(key, func() (*Outcome, error) {
		return e.runDestroy(ctx, kind)
	})
}

// Records returns the tracked resource records for kind.
func (e *Engine) Records(ctx context.Context, kind string) ([]state.ResourceRecord, error) {
	records, err := e.store.List(ctx, kind)
	if err != nil {
		return nil, infraErr("list records", err)
	}
	return records, nil
}

// AllRecords returns every tracked resource record.
func (e *Engine) AllRecords(ctx context.Context) ([]state.ResourceRecord, error) {
	records, err := e.store.ListAll(ctx)
	if err != nil {
		return nil, infraErr("list records", err)
	}
	return records, nil
}

// Health describes the engine's ability to serve requests.
type Health struct {
	Status             string `json:"status"`
	TerraformAvailable bool   `json:"terraform_available"`
	TerraformVersion   string `json:"terraform_version,omitempty"`
	TrackedResources   int    `json:"tracked_resources"`
	Environment        string `json:"environment"`
}

// CheckHealth reports whether terraform is runnable and the store readable.
func (e *Engine) CheckHealth(ctx context.Context) Health {
	h := Health{Status: "ok", Environment: e.workspaces.Environment()}

	if err := e.runner.IsAvailable(ctx); err != nil {
		h.Status = "degraded"
		e.logger.Warn("terraform unavailable", "err", err)
	} else {
		h.TerraformAvailable = true
		if version, err := e.runner.Version(ctx); err == nil {
			h.TerraformVersion = version
		}
	}

	records, err := e.store.ListAll(ctx)
	if err != nil {
		h.Status = "degraded"
		e.logger.Warn("record store unreadable", "err", err)
	} else {
		h.TrackedResources = len(records)
	}
	return h
}

// validateSpec runs the validator and then the policy rules.
func (e *Engine) validateSpec(kind string, slots map[string]string) (resource.Spec, error) {
	spec, err := e.validator.Validate(kind, slots)
	if err != nil {
		return nil, err
	}
	if err := e.policies.Check(spec); err != nil {
		return nil, err
	}
	return spec, nil
}

// runResult carries a finished run through singleflight.
type runResult struct {
	outcome *Outcome
	err     error
}

// coalesce deduplicates concurrent identical requests onto one run.
func (e *Engine) coalesce(key string, fn func() (*Outcome, error)) (*Outcome, error) {
	v, _, shared := e.inflight.Do(key, func() (any, error) {
		outcome, err := fn()
		return runResult{outcome: outcome, err: err}, nil
	})
	res := v.(runResult)
	if shared && res.outcome != nil {
		e.logger.Debug("coalesced identical request", "key", key)
		// Each caller gets its own copy; the underlying outcome is shared
		// across all of them.
		cp := *res.outcome
		cp.Shared = true
		return &cp, res.err
	}
	return res.outcome, res.err
}

func (e *Engine) runCreate(ctx context.Context, spec resource.Spec) (*Outcome, error) {
	kind := spec.Kind()
	ctx, span := e.tracer.Start(ctx, "provision.create", trace.WithAttributes(
		attribute.String("resource.kind", kind),
		attribute.String("resource.name", spec.Name()),
	))
	defer span.End()

	r := e.newPipelineRun(OpCreate, kind, spec.Name(), spec.Fingerprint())
	logger := e.logger.With("request_id", r.outcome.RequestID, "kind", kind, "operation", string(OpCreate))
	logger.Info("request queued", "name", spec.Name(), "fingerprint", spec.Fingerprint())

	err := e.withLockedWorkspace(ctx, r, kind, func(ctx context.Context, ws workspace.Workspace) error {
		if err := e.reconciler.Accept(ctx, kind, spec.Name(), resource.RegionOf(spec), spec.Fingerprint(), resource.TagsOf(spec)); err != nil {
			return infraErr("record pending resource", err)
		}

		cfg, err := e.renderer.Generate(spec)
		if err != nil {
			return e.markFailed(ctx, kind, err)
		}
		path, err := e.workspaces.WriteConfig(ws, cfg)
		if err != nil {
			return e.markFailed(ctx, kind, infraErr("write config", err))
		}
		r.outcome.ConfigPath = path
		r.advance(StageWritten)

		if _, err := e.runStep(ctx, logger, "init", ws.Dir, e.runner.Init); err != nil {
			return e.markFailed(ctx, kind, err)
		}
		r.advance(StageInitialized)

		if _, err := e.planWithRetry(ctx, logger, ws.Dir); err != nil {
			return e.markFailed(ctx, kind, err)
		}
		r.advance(StagePlanned)

		applyRes, err := e.runStep(ctx, logger, "apply", ws.Dir, e.runner.Apply)
		if err != nil {
			// Apply is never retried; the operator decides what happens to
			// half-applied infrastructure.
			return e.markFailed(ctx, kind, err)
		}
		r.outcome.Changes = terraform.ParseChangeSummary(applyRes.Stdout)
		r.advance(StageApplied)

		records, err := e.reconciler.Reconcile(ctx, state.ReconcileRequest{
			Kind:        kind,
			Dir:         ws.Dir,
			Region:      resource.RegionOf(spec),
			Fingerprint: spec.Fingerprint(),
		})
		if err != nil {
			return err
		}
		r.outcome.Records = records
		r.advance(StageReconciled)
		e.observeRecords(kind, records)

		if r.outcome.Changes.Detected && r.outcome.Changes.Empty() {
			logger.Info("no changes, infrastructure already matches the request")
		}
		e.verifyRecords(ctx, logger, records)
		return nil
	})

	return e.finishRun(r, span, logger, err)
}

func (e *Engine) runDestroy(ctx context.Context, kind string) (*Outcome, error) {
	ctx, span := e.tracer.Start(ctx, "provision.destroy", trace.WithAttributes(
		attribute.String("resource.kind", kind),
	))
	defer span.End()

	r := e.newPipelineRun(OpDestroy, kind, "", "")
	logger := e.logger.With("request_id", r.outcome.RequestID, "kind", kind, "operation", string(OpDestroy))
	logger.Info("request queued")

	err := e.withLockedWorkspace(ctx, r, kind, func(ctx context.Context, ws workspace.Workspace) error {
		records, err := e.store.List(ctx, kind)
		if err != nil {
			return infraErr("list records", err)
		}
		if len(records) == 0 {
			logger.Info("no tracked resources, destroy is a no-op")
			return nil
		}

		if _, err := e.reconciler.BeginDelete(ctx, kind); err != nil {
			return infraErr("mark records deleting", err)
		}

		if _, err := e.runStep(ctx, logger, "init", ws.Dir, e.runner.Init); err != nil {
			return e.markFailed(ctx, kind, err)
		}
		r.advance(StageInitialized)

		destroyRes, err := e.runStep(ctx, logger, "destroy", ws.Dir, e.runner.Destroy)
		if err != nil {
			// Destroy is never retried.
			return e.markFailed(ctx, kind, err)
		}
		r.outcome.Changes = terraform.ParseChangeSummary(destroyRes.Stdout)
		r.advance(StageDestroyed)

		remaining, err := e.reconciler.Reconcile(ctx, state.ReconcileRequest{Kind: kind, Dir: ws.Dir})
		if err != nil {
			return err
		}
		r.outcome.Records = remaining
		r.advance(StageReconciled)
		e.observeRecords(kind, remaining)
		return nil
	})

	return e.finishRun(r, span, logger, err)
}

// newPipelineRun builds a run whose stage timings flow into the metrics.
func (e *Engine) newPipelineRun(op Operation, kind, name, fingerprint string) *run {
	return newRun(uuid.NewString(), op, kind, name, fingerprint, e.now, func(stage Stage, d time.Duration) {
		e.metrics.RecordStage(kind, string(stage), d)
	})
}

// withLockedWorkspace runs body holding the workspace lock for kind. The
// lock is released on every path out, including panics inside body.
func (e *Engine) withLockedWorkspace(ctx context.Context, r *run, kind string, body func(context.Context, workspace.Workspace) error) error {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("failed to queue run: %w", err)
	}
	defer e.sem.Release(1)

	ws := e.workspaces.For(kind)
	release, err := e.locks.Acquire(ctx, ws.Key(), e.lockWait)
	if err != nil {
		return err
	}
	defer release()
	r.advance(StageLocked)

	return body(ctx, ws)
}

// runStep invokes one terraform command and records its metric.
func (e *Engine) runStep(ctx context.Context, logger *slog.Logger, command, dir string, f func(context.Context, string) (terraform.Result, error)) (terraform.Result, error) {
	res, err := f(ctx, dir)
	status := "success"
	switch {
	case terraform.IsTimeout(err):
		status = "timeout"
	case err != nil:
		status = "error"
	}
	e.metrics.RecordTerraformRun(command, status)
	if err != nil {
		logger.Error("terraform step failed", "command", command, "err", err)
		return res, err
	}
	logger.Debug("terraform step finished", "command", command, "duration", res.Duration)
	return res, nil
}

// planWithRetry retries transient plan failures up to the configured bound.
// Timeouts and real plan errors are returned immediately.
func (e *Engine) planWithRetry(ctx context.Context, logger *slog.Logger, dir string) (terraform.Result, error) {
	var res terraform.Result
	var err error
	for attempt := 0; ; attempt++ {
		res, err = e.runStep(ctx, logger, "plan", dir, e.runner.Plan)
		if err == nil {
			return res, nil
		}
		if attempt >= e.planRetries || !terraform.IsTransient(err) {
			return res, err
		}
		logger.Warn("plan hit a transient failure, retrying", "attempt", attempt+1, "retries_left", e.planRetries-attempt)
		select {
		case <-ctx.Done():
			return res, fmt.Errorf("plan retry aborted: %w", ctx.Err())
		case <-time.After(e.planBackoff):
		}
	}
}

// markFailed flips in-flight records to failed and passes err through.
func (e *Engine) markFailed(ctx context.Context, kind string, err error) error {
	if markErr := e.reconciler.MarkFailed(ctx, kind); markErr != nil {
		e.logger.Error("failed to mark records failed", "kind", kind, "err", markErr)
	}
	return err
}

// finishRun closes out a run: terminal status, span status, metrics, log.
// Every stage the run reached becomes a span event at the time it happened.
func (e *Engine) finishRun(r *run, span trace.Span, logger *slog.Logger, err error) (*Outcome, error) {
	for _, ev := range r.outcome.Stages {
		span.AddEvent(string(ev.Stage), trace.WithTimestamp(ev.At))
	}
	if err == nil {
		outcome := r.finish(RunSucceeded, nil)
		span.SetStatus(codes.Ok, "")
		e.metrics.RecordRequest(outcome.Kind, string(outcome.Operation), string(outcome.Status))
		logger.Info("request finished", "status", outcome.Status, "duration", outcome.Duration())
		return outcome, nil
	}

	status := RunFailed
	if terraform.IsTimeout(err) {
		status = RunTimedOut
	}
	outcome := r.finish(status, err)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	e.metrics.RecordRequest(outcome.Kind, string(outcome.Operation), string(outcome.Status))
	logger.Error("request failed", "status", outcome.Status, "stage", outcome.LastStage(), "err", err)
	return outcome, err
}

// observeRecords refreshes the tracked resource gauges for kind.
func (e *Engine) observeRecords(kind string, records []state.ResourceRecord) {
	counts := make(map[state.Status]int)
	for _, rec := range records {
		if rec.Kind == kind {
			counts[rec.Status]++
		}
	}
	for _, st := range []state.Status{state.StatusPending, state.StatusActive, state.StatusDeleting, state.StatusFailed} {
		e.metrics.SetTrackedResources(kind, string(st), float64(counts[st]))
	}
}

// verifyRecords runs the optional post-apply existence check. Verification
// failures are logged, not fatal: the run already applied.
func (e *Engine) verifyRecords(ctx context.Context, logger *slog.Logger, records []state.ResourceRecord) {
	if e.verifier == nil {
		return
	}
	for _, rec := range records {
		if rec.Status != state.StatusActive {
			continue
		}
		if err := e.verifier.Verify(ctx, rec.Kind, rec.ID); err != nil {
			logger.Warn("post-apply verification failed", "resource_id", rec.ID, "err", err)
		}
	}
}
