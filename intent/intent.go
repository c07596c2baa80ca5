// Package intent turns free-text operator requests into structured intents.
// The extractor is a constrained slot filler driven by an ordered rule table;
// it knows request vocabulary, not cloud semantics. Defaults and semantic
// checks belong to the resource validator.
package intent

import (
	"fmt"
)

// Action is the operation a request asks for.
type Action string

const (
	ActionCreate   Action = "create"
	ActionDelete   Action = "delete"
	ActionGenerate Action = "generate"
	ActionQuery    Action = "query"
)

// Resource kind tokens recognized by the extractor. The validator owns the
// semantic catalog for each kind; these are lexical markers only.
const (
	KindEC2    = "ec2"
	KindS3     = "s3"
	KindRDS    = "rds"
	KindCustom = "custom"
)

// Intent is the structured form of one request: an action, a resource kind,
// and the raw slot values found in the text. Slots that did not match any
// rule are absent. An Intent is produced once per request and discarded
// after validation.
type Intent struct {
	Action Action            `json:"action"`
	Kind   string            `json:"resource_kind"`
	Slots  map[string]string `json:"raw_slots"`
}

// Slot names filled by the extractor.
const (
	SlotInstanceType  = "instance_type"
	SlotInstanceClass = "instance_class"
	SlotName          = "name"
	SlotRegion        = "region"
	SlotAMI           = "ami"
	SlotSSHCIDR       = "ssh_cidr"
	SlotSSHOverride   = "ssh_open_override"
	SlotBucketName    = "bucket_name"
	SlotVersioning    = "versioning"
	SlotEngine        = "engine"
	SlotDatabaseName  = "database_name"
	SlotResourceID    = "resource_id"
	SlotEnvironment   = "environment"
	SlotRequest       = "request"
)

// ParseError reports a request that could not be interpreted: no action verb
// and no recognizable resource kind.
type ParseError struct {
	Text   string
	Reason string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot interpret request %q: %s", excerpt(e.Text), e.Reason)
}

// excerpt shortens long request text for error messages.
func excerpt(text string) string {
	const max = 60
	if len(text) <= max {
		return text
	}
	return text[:max] + "..."
}
