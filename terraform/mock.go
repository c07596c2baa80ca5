package terraform

import (
	"context"
	"sync"
)

// MockRunner is a test double for Runner that records calls and returns
// pre-configured responses. It is safe for concurrent use.
type MockRunner struct {
	// InitFn is called when Init is invoked. If nil, returns an empty Result.
	InitFn func(ctx context.Context, dir string) (Result, error)

	// PlanFn is called when Plan is invoked.
	PlanFn func(ctx context.Context, dir string) (Result, error)

	// ApplyFn is called when Apply is invoked.
	ApplyFn func(ctx context.Context, dir string) (Result, error)

	// DestroyFn is called when Destroy is invoked.
	DestroyFn func(ctx context.Context, dir string) (Result, error)

	// ShowStateFn is called when ShowState is invoked. If nil, returns an
	// empty state.
	ShowStateFn func(ctx context.Context, dir string) (*State, error)

	// VersionFn is called when Version is invoked.
	VersionFn func(ctx context.Context) (string, error)

	// IsAvailableFn is called when IsAvailable is invoked.
	IsAvailableFn func(ctx context.Context) error

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a single runner method invocation.
type MockCall struct {
	Method string
	Dir    string
}

func (m *MockRunner) record(method, dir string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Method: method, Dir: dir})
}

// Calls returns a copy of the recorded invocations in order.
func (m *MockRunner) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times method was invoked.
func (m *MockRunner) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Init implements Runner.
func (m *MockRunner) Init(ctx context.Context, dir string) (Result, error) {
	m.record("Init", dir)
	if m.InitFn != nil {
		return m.InitFn(ctx, dir)
	}
	return Result{Command: "init"}, nil
}

// Plan implements Runner.
func (m *MockRunner) Plan(ctx context.Context, dir string) (Result, error) {
	m.record("Plan", dir)
	if m.PlanFn != nil {
		return m.PlanFn(ctx, dir)
	}
	return Result{Command: "plan"}, nil
}

// Apply implements Runner.
func (m *MockRunner) Apply(ctx context.Context, dir string) (Result, error) {
	m.record("Apply", dir)
	if m.ApplyFn != nil {
		return m.ApplyFn(ctx, dir)
	}
	return Result{Command: "apply", Stdout: "Apply complete! Resources: 1 added, 0 changed, 0 destroyed."}, nil
}

// Destroy implements Runner.
func (m *MockRunner) Destroy(ctx context.Context, dir string) (Result, error) {
	m.record("Destroy", dir)
	if m.DestroyFn != nil {
		return m.DestroyFn(ctx, dir)
	}
	return Result{Command: "destroy", Stdout: "Destroy complete! Resources: 1 destroyed."}, nil
}

// ShowState implements Runner.
func (m *MockRunner) ShowState(ctx context.Context, dir string) (*State, error) {
	m.record("ShowState", dir)
	if m.ShowStateFn != nil {
		return m.ShowStateFn(ctx, dir)
	}
	return &State{}, nil
}

// Version implements Runner.
func (m *MockRunner) Version(ctx context.Context) (string, error) {
	m.record("Version", "")
	if m.VersionFn != nil {
		return m.VersionFn(ctx)
	}
	return "Terraform v1.5.7", nil
}

// IsAvailable implements Runner.
func (m *MockRunner) IsAvailable(ctx context.Context) error {
	m.record("IsAvailable", "")
	if m.IsAvailableFn != nil {
		return m.IsAvailableFn(ctx)
	}
	return nil
}
