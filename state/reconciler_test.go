package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/GoCodeAlone/provision/terraform"
)

func newTestReconciler(t *testing.T, reader StateReader) (*Reconciler, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	r, err := NewReconciler(store, reader, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return r, store
}

func TestReconcilerAccept(t *testing.T) {
	r, store := newTestReconciler(t, &terraform.MockRunner{})
	ctx := context.Background()

	if err := r.Accept(ctx, "ec2", "web-server", "ap-south-1", "abcdef0123456789", map[string]string{"ManagedBy": "terraform"}); err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	rec, err := store.Get(ctx, "ec2", "pending:abcdef012345")
	if err != nil {
		t.Fatalf("pending record missing: %v", err)
	}
	if rec.Status != StatusPending || rec.Name != "web-server" {
		t.Errorf("unexpected record %+v", rec)
	}
	if rec.Tags["ManagedBy"] != "terraform" {
		t.Errorf("pending record must carry the spec tags, got %v", rec.Tags)
	}
}

func TestReconcileAfterApply(t *testing.T) {
	runner := &terraform.MockRunner{
		ShowStateFn: func(ctx context.Context, dir string) (*terraform.State, error) {
			return appliedState(), nil
		},
	}
	r, store := newTestReconciler(t, runner)
	ctx := context.Background()

	if err := r.Accept(ctx, "ec2", "web-server", "ap-south-1", "abcdef0123456789", nil); err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	recs, err := r.Reconcile(ctx, ReconcileRequest{
		Kind: "ec2", Dir: "/tmp/ws", Region: "ap-south-1", Fingerprint: "abcdef0123456789",
	})
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d: %v", len(recs), recs)
	}
	rec := recs[0]
	if rec.ID != "i-0123456789abcdef0" || rec.Status != StatusActive {
		t.Errorf("unexpected record %+v", rec)
	}
	if rec.Region != "ap-south-1" || rec.Fingerprint != "abcdef0123456789" {
		t.Errorf("region and fingerprint must be stamped, got %+v", rec)
	}

	// The synthetic pending record is gone.
	if _, err := store.Get(ctx, "ec2", "pending:abcdef012345"); !errors.Is(err, ErrNotFound) {
		t.Errorf("pending record should be replaced, got %v", err)
	}
}

func TestReconcilePreservesCreatedAt(t *testing.T) {
	runner := &terraform.MockRunner{
		ShowStateFn: func(ctx context.Context, dir string) (*terraform.State, error) {
			return appliedState(), nil
		},
	}
	r, _ := newTestReconciler(t, runner)
	ctx := context.Background()

	first, err := r.Reconcile(ctx, ReconcileRequest{Kind: "ec2", Dir: "/tmp/ws"})
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}

	r.now = func() time.Time { return time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC) }
	second, err := r.Reconcile(ctx, ReconcileRequest{Kind: "ec2", Dir: "/tmp/ws"})
	if err != nil {
		t.Fatalf("second reconcile failed: %v", err)
	}

	if !second[0].CreatedAt.Equal(first[0].CreatedAt) {
		t.Errorf("created_at must survive re-reconciliation: %v vs %v", second[0].CreatedAt, first[0].CreatedAt)
	}
	if !second[0].UpdatedAt.After(first[0].UpdatedAt) {
		t.Errorf("updated_at must advance: %v vs %v", second[0].UpdatedAt, first[0].UpdatedAt)
	}
}

func TestReconcileAfterDestroy(t *testing.T) {
	runner := &terraform.MockRunner{
		ShowStateFn: func(ctx context.Context, dir string) (*terraform.State, error) {
			return &terraform.State{}, nil
		},
	}
	r, store := newTestReconciler(t, runner)
	ctx := context.Background()

	seed := ResourceRecord{ID: "i-0123", Kind: "ec2", Name: "web-server", Status: StatusDeleting}
	if err := store.Upsert(ctx, seed); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	recs, err := r.Reconcile(ctx, ReconcileRequest{Kind: "ec2", Dir: "/tmp/ws"})
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("destroyed resources must be removed, got %v", recs)
	}
}

func TestReconcileReadFailure(t *testing.T) {
	runner := &terraform.MockRunner{
		ShowStateFn: func(ctx context.Context, dir string) (*terraform.State, error) {
			return nil, &terraform.ExecutionError{Command: "show -json", ExitCode: 1, Stderr: "boom"}
		},
	}
	r, store := newTestReconciler(t, runner)
	ctx := context.Background()

	seed := ResourceRecord{ID: "i-0123", Kind: "ec2", Status: StatusActive}
	if err := store.Upsert(ctx, seed); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	_, err := r.Reconcile(ctx, ReconcileRequest{Kind: "ec2", Dir: "/tmp/ws"})
	var recErr *ReconciliationError
	if !errors.As(err, &recErr) {
		t.Fatalf("expected *ReconciliationError, got %T: %v", err, err)
	}

	// Previous records are retained unchanged.
	got, err := store.Get(ctx, "ec2", "i-0123")
	if err != nil {
		t.Fatalf("record lost: %v", err)
	}
	if got.Status != StatusActive {
		t.Errorf("record must be untouched, got %+v", got)
	}
}

func TestBeginDeleteAndMarkFailed(t *testing.T) {
	r, store := newTestReconciler(t, &terraform.MockRunner{})
	ctx := context.Background()

	for _, id := range []string{"i-1", "i-2"} {
		if err := store.Upsert(ctx, ResourceRecord{ID: id, Kind: "ec2", Status: StatusActive}); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	n, err := r.BeginDelete(ctx, "ec2")
	if err != nil {
		t.Fatalf("begin delete failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 marked records, got %d", n)
	}
	recs, _ := store.List(ctx, "ec2")
	for _, rec := range recs {
		if rec.Status != StatusDeleting {
			t.Errorf("expected deleting, got %s for %s", rec.Status, rec.ID)
		}
	}

	if err := r.MarkFailed(ctx, "ec2"); err != nil {
		t.Fatalf("mark failed errored: %v", err)
	}
	recs, _ = store.List(ctx, "ec2")
	for _, rec := range recs {
		if rec.Status != StatusFailed {
			t.Errorf("expected failed, got %s for %s", rec.Status, rec.ID)
		}
	}
}

func TestMarkFailedLeavesActiveAlone(t *testing.T) {
	r, store := newTestReconciler(t, &terraform.MockRunner{})
	ctx := context.Background()

	if err := store.Upsert(ctx, ResourceRecord{ID: "i-1", Kind: "ec2", Status: StatusActive}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if err := store.Upsert(ctx, ResourceRecord{ID: "pending:x", Kind: "ec2", Status: StatusPending}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	if err := r.MarkFailed(ctx, "ec2"); err != nil {
		t.Fatalf("mark failed errored: %v", err)
	}

	active, _ := store.Get(ctx, "ec2", "i-1")
	if active.Status != StatusActive {
		t.Errorf("active records must be untouched, got %s", active.Status)
	}
	pending, _ := store.Get(ctx, "ec2", "pending:x")
	if pending.Status != StatusFailed {
		t.Errorf("pending records must flip to failed, got %s", pending.Status)
	}
}
