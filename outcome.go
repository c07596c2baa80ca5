package provision

import (
	"fmt"
	"time"

	"github.com/GoCodeAlone/provision/render"
	"github.com/GoCodeAlone/provision/state"
	"github.com/GoCodeAlone/provision/terraform"
)

// Operation names what a run does.
type Operation string

// Operations.
const (
	OpCreate   Operation = "create"
	OpDestroy  Operation = "destroy"
	OpGenerate Operation = "generate"
	OpQuery    Operation = "query"
)

// Stage is one step of a run's lifecycle.
type Stage string

// Run stages in execution order. Destroy runs skip StageWritten and
// StagePlanned since they act on the workspace as already written.
const (
	StageQueued      Stage = "queued"
	StageLocked      Stage = "locked"
	StageWritten     Stage = "written"
	StageInitialized Stage = "initialized"
	StagePlanned     Stage = "planned"
	StageApplied     Stage = "applied"
	StageDestroyed   Stage = "destroyed"
	StageReconciled  Stage = "reconciled"
)

// stageTransitions is the set of legal stage successions.
var stageTransitions = map[Stage][]Stage{
	StageQueued:      {StageLocked},
	StageLocked:      {StageWritten, StageInitialized},
	StageWritten:     {StageInitialized},
	StageInitialized: {StagePlanned, StageDestroyed},
	StagePlanned:     {StageApplied},
	StageApplied:     {StageReconciled},
	StageDestroyed:   {StageReconciled},
	StageReconciled:  {},
}

func stageAllowed(from, to Stage) bool {
	for _, next := range stageTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// RunStatus is the terminal status of a run.
type RunStatus string

// Terminal run statuses.
const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	RunTimedOut  RunStatus = "timed_out"
)

// StageEvent records one stage transition of a run.
type StageEvent struct {
	Stage Stage         `json:"stage"`
	At    time.Time     `json:"at"`
	Since time.Duration `json:"since"`
}

// Outcome is the result of one run through the pipeline. Shared is set on
// every outcome served by a run that more than one identical request
// coalesced onto.
type Outcome struct {
	RequestID   string                  `json:"request_id"`
	Operation   Operation               `json:"operation"`
	Kind        string                  `json:"kind"`
	Name        string                  `json:"name,omitempty"`
	Fingerprint string                  `json:"fingerprint,omitempty"`
	Status      RunStatus               `json:"status"`
	Shared      bool                    `json:"shared,omitempty"`
	Stages      []StageEvent            `json:"stages"`
	Changes     terraform.ChangeSummary `json:"changes"`
	Records     []state.ResourceRecord  `json:"records,omitempty"`
	Config      *render.GeneratedConfig `json:"config,omitempty"`
	ConfigPath  string                  `json:"config_path,omitempty"`
	Error       string                  `json:"error,omitempty"`
	StartedAt   time.Time               `json:"started_at"`
	FinishedAt  time.Time               `json:"finished_at"`
}

// Duration is the total wall time of the run.
func (o *Outcome) Duration() time.Duration {
	return o.FinishedAt.Sub(o.StartedAt)
}

// LastStage returns the most recently reached stage.
func (o *Outcome) LastStage() Stage {
	if len(o.Stages) == 0 {
		return ""
	}
	return o.Stages[len(o.Stages)-1].Stage
}

// run tracks an in-flight pipeline pass.
type run struct {
	outcome *Outcome
	lastAt  time.Time
	now     func() time.Time
	observe func(stage Stage, d time.Duration)
}

func newRun(id string, op Operation, kind, name, fingerprint string, now func() time.Time, observe func(Stage, time.Duration)) *run {
	start := now()
	r := &run{
		outcome: &Outcome{
			RequestID:   id,
			Operation:   op,
			Kind:        kind,
			Name:        name,
			Fingerprint: fingerprint,
			StartedAt:   start,
		},
		lastAt:  start,
		now:     now,
		observe: observe,
	}
	r.outcome.Stages = append(r.outcome.Stages, StageEvent{Stage: StageQueued, At: start})
	return r
}

// advance moves the run to the next stage. Stage order is fixed; a jump the
// transition table does not allow is a bug in the pipeline itself.
func (r *run) advance(stage Stage) {
	last := r.outcome.LastStage()
	if !stageAllowed(last, stage) {
		panic(fmt.Sprintf("illegal stage transition %s -> %s", last, stage))
	}
	now := r.now()
	since := now.Sub(r.lastAt)
	r.lastAt = now
	r.outcome.Stages = append(r.outcome.Stages, StageEvent{Stage: stage, At: now, Since: since})
	if r.observe != nil {
		r.observe(stage, since)
	}
}

// finish marks the run terminal and returns its outcome.
func (r *run) finish(status RunStatus, err error) *Outcome {
	r.outcome.Status = status
	r.outcome.FinishedAt = r.now()
	if err != nil {
		r.outcome.Error = err.Error()
	}
	return r.outcome
}
