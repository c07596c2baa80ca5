// Package state tracks provisioned resources and reconciles them against
// terraform's view of the world after every run.
package state

import "time"

// Status is the lifecycle phase of a tracked resource.
type Status string

const (
	// StatusPending marks a resource accepted for creation but not yet applied.
	StatusPending Status = "pending"
	// StatusActive marks a resource confirmed present in terraform state.
	StatusActive Status = "active"
	// StatusDeleting marks a resource queued for destruction.
	StatusDeleting Status = "deleting"
	// StatusFailed marks a resource whose last run failed.
	StatusFailed Status = "failed"
)

// ResourceRecord is one tracked provider resource.
type ResourceRecord struct {
	// ID is the provider-assigned identifier, or a synthetic pending id
	// before the first successful apply.
	ID string `json:"id"`

	// Kind is the resource kind that owns the record.
	Kind string `json:"kind"`

	// Name is the terraform resource name.
	Name string `json:"name"`

	// Region is the provider region the resource lives in.
	Region string `json:"region,omitempty"`

	// Tags are the provider tags on the resource, from the spec while
	// pending and from terraform state once applied.
	Tags map[string]string `json:"tags,omitempty"`

	// Status is the current lifecycle phase.
	Status Status `json:"status"`

	// Fingerprint identifies the spec that last shaped the resource.
	Fingerprint string `json:"fingerprint,omitempty"`

	// Attributes holds a small extracted attribute set, e.g. endpoint or
	// instance type.
	Attributes map[string]string `json:"attributes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PendingID builds the synthetic id used before a provider id exists.
func PendingID(fingerprint string) string {
	if len(fingerprint) > 12 {
		fingerprint = fingerprint[:12]
	}
	return "pending:" + fingerprint
}
