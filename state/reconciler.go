package state

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/GoCodeAlone/provision/terraform"
)

// StateReader reads terraform state for a workspace directory.
type StateReader interface {
	ShowState(ctx context.Context, dir string) (*terraform.State, error)
}

// ReconciliationError reports a failed reconciliation pass. The store is
// left untouched when it occurs.
type ReconciliationError struct {
	Workspace string
	Err       error
}

// Error implements the error interface.
func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("failed to reconcile workspace %s: %v", e.Workspace, e.Err)
}

// Unwrap returns the underlying error.
func (e *ReconciliationError) Unwrap() error { return e.Err }

// ReconcileRequest identifies one workspace to fold into the store.
type ReconcileRequest struct {
	Kind        string
	Dir         string
	Region      string
	Fingerprint string
}

// Reconciler is the sole writer of resource records. After every terraform
// run it re-reads the workspace state and folds the result into the store.
type Reconciler struct {
	store     Store
	reader    StateReader
	extractor *Extractor
	logger    *slog.Logger
	now       func() time.Time
}

// NewReconciler creates a Reconciler over store and reader.
func NewReconciler(store Store, reader StateReader, logger *slog.Logger) (*Reconciler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	extractor, err := NewExtractor()
	if err != nil {
		return nil, err
	}
	return &Reconciler{
		store:     store,
		reader:    reader,
		extractor: extractor,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Accept records a pending resource before terraform runs.
func (r *Reconciler) Accept(ctx context.Context, kind, name, region, fingerprint string, tags map[string]string) error {
	now := r.now().UTC()
	rec := ResourceRecord{
		ID:          PendingID(fingerprint),
		Kind:        kind,
		Name:        name,
		Region:      region,
		Tags:        tags,
		Status:      StatusPending,
		Fingerprint: fingerprint,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := r.store.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("failed to record pending resource %s/%s: %w", kind, name, err)
	}
	return nil
}

// BeginDelete marks every record of kind as deleting and returns how many
// were marked.
func (r *Reconciler) BeginDelete(ctx context.Context, kind string) (int, error) {
	recs, err := r.store.List(ctx, kind)
	if err != nil {
		return 0, fmt.Errorf("failed to list %s records: %w", kind, err)
	}
	now := r.now().UTC()
	for _, rec := range recs {
		rec.Status = StatusDeleting
		rec.UpdatedAt = now
		if err := r.store.Upsert(ctx, rec); err != nil {
			return 0, fmt.Errorf("failed to mark %s/%s deleting: %w", kind, rec.ID, err)
		}
	}
	return len(recs), nil
}

// MarkFailed flips kind's in-flight records (pending or deleting) to failed
// after an unsuccessful run. Active records are left alone.
func (r *Reconciler) MarkFailed(ctx context.Context, kind string) error {
	recs, err := r.store.List(ctx, kind)
	if err != nil {
		return fmt.Errorf("failed to list %s records: %w", kind, err)
	}
	now := r.now().UTC()
	for _, rec := range recs {
		if rec.Status != StatusPending && rec.Status != StatusDeleting {
			continue
		}
		rec.Status = StatusFailed
		rec.UpdatedAt = now
		if err := r.store.Upsert(ctx, rec); err != nil {
			return fmt.Errorf("failed to mark %s/%s failed: %w", kind, rec.ID, err)
		}
	}
	return nil
}

// Reconcile re-reads the workspace state and folds it into the store:
// resources present in the state become active records, and tracked records
// absent from it are removed. On failure the store is left as it was and a
// ReconciliationError is returned.
func (r *Reconciler) Reconcile(ctx context.Context, req ReconcileRequest) ([]ResourceRecord, error) {
	st, err := r.reader.ShowState(ctx, req.Dir)
	if err != nil {
		return nil, &ReconciliationError{Workspace: req.Dir, Err: err}
	}

	extracted := r.extractor.Extract(req.Kind, st)
	existing, err := r.store.List(ctx, req.Kind)
	if err != nil {
		return nil, &ReconciliationError{Workspace: req.Dir, Err: err}
	}

	now := r.now().UTC()
	byID := make(map[string]ResourceRecord, len(existing))
	for _, rec := range existing {
		byID[rec.ID] = rec
	}

	seen := make(map[string]bool, len(extracted))
	for _, rec := range extracted {
		seen[rec.ID] = true
		rec.Region = req.Region
		rec.Fingerprint = req.Fingerprint
		rec.CreatedAt = now
		rec.UpdatedAt = now
		if old, ok := byID[rec.ID]; ok {
			rec.CreatedAt = old.CreatedAt
			if rec.Region == "" {
				rec.Region = old.Region
			}
		}
		if err := r.store.Upsert(ctx, rec); err != nil {
			return nil, &ReconciliationError{Workspace: req.Dir, Err: err}
		}
	}

	removed := 0
	for _, old := range existing {
		if seen[old.ID] {
			continue
		}
		if err := r.store.Delete(ctx, req.Kind, old.ID); err != nil {
			return nil, &ReconciliationError{Workspace: req.Dir, Err: err}
		}
		removed++
	}

	r.logger.Info("reconciled workspace",
		"kind", req.Kind, "dir", req.Dir, "active", len(extracted), "removed", removed)
	return r.store.List(ctx, req.Kind)
}
