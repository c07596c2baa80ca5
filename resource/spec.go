// Package resource maps raw request slots onto typed, validated resource
// specifications. The validator reports every failing field at once and
// fills omitted optional fields from per-kind default tables; downstream
// components can rely on a Spec being complete and within constraints.
package resource

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Spec is a validated, normalized resource specification. Each Spec is owned
// by a single request and is never shared across requests.
type Spec interface {
	// Kind names the resource kind the spec describes.
	Kind() string
	// Name is the operator-facing resource name.
	Name() string
	// Fingerprint is a stable hash of the normalized spec. Equal specs
	// produce equal fingerprints, which drives the idempotence check and
	// the coalescing of concurrent identical requests.
	Fingerprint() string
}

// EC2Spec describes a virtual machine instance plus its default network
// stack.
type EC2Spec struct {
	InstanceType    string            `json:"instance_type"`
	InstanceName    string            `json:"instance_name"`
	AMI             string            `json:"ami"`
	Region          string            `json:"region"`
	AllowedSSHCIDRs []string          `json:"allowed_ssh_cidrs"`
	SSHOpenOverride bool              `json:"ssh_open_override,omitempty"`
	Tags            map[string]string `json:"tags"`
}

func (s EC2Spec) Kind() string        { return KindEC2 }
func (s EC2Spec) Name() string        { return s.InstanceName }
func (s EC2Spec) Fingerprint() string { return fingerprint(KindEC2, s) }

// S3Spec describes an object storage bucket.
type S3Spec struct {
	BucketName        string            `json:"bucket_name"`
	Region            string            `json:"region"`
	VersioningEnabled bool              `json:"versioning_enabled"`
	EncryptionEnabled bool              `json:"encryption_enabled"`
	Tags              map[string]string `json:"tags"`
}

func (s S3Spec) Kind() string        { return KindS3 }
func (s S3Spec) Name() string        { return s.BucketName }
func (s S3Spec) Fingerprint() string { return fingerprint(KindS3, s) }

// RDSSpec describes a managed relational database instance.
type RDSSpec struct {
	Engine         string            `json:"engine"`
	EngineVersion  string            `json:"engine_version"`
	InstanceClass  string            `json:"instance_class"`
	DatabaseName   string            `json:"database_name"`
	Region         string            `json:"region"`
	MasterUsername string            `json:"master_username"`
	MasterPassword string            `json:"master_password"`
	Port           int               `json:"port"`
	Tags           map[string]string `json:"tags"`
}

func (s RDSSpec) Kind() string        { return KindRDS }
func (s RDSSpec) Name() string        { return s.DatabaseName }
func (s RDSSpec) Fingerprint() string { return fingerprint(KindRDS, s) }

// CustomSpec carries a free-form request that renders into a scaffold for
// hand-finished configuration.
type CustomSpec struct {
	Request string            `json:"request"`
	Region  string            `json:"region"`
	Tags    map[string]string `json:"tags"`
}

func (s CustomSpec) Kind() string { return KindCustom }

// Name derives a stable name from the request fingerprint since custom
// requests carry no resource name of their own.
func (s CustomSpec) Name() string {
	return "custom-" + s.Fingerprint()[:12]
}

func (s CustomSpec) Fingerprint() string { return fingerprint(KindCustom, s) }

// RegionOf returns the provider region a spec targets.
func RegionOf(s Spec) string {
	switch spec := s.(type) {
	case EC2Spec:
		return spec.Region
	case S3Spec:
		return spec.Region
	case RDSSpec:
		return spec.Region
	case CustomSpec:
		return spec.Region
	default:
		return ""
	}
}

// TagsOf returns the tags a spec carries.
func TagsOf(s Spec) map[string]string {
	switch spec := s.(type) {
	case EC2Spec:
		return spec.Tags
	case S3Spec:
		return spec.Tags
	case RDSSpec:
		return spec.Tags
	case CustomSpec:
		return spec.Tags
	default:
		return nil
	}
}

// fingerprint hashes the canonical JSON encoding of a spec. Struct fields
// marshal in declaration order and map keys sort, so the encoding is stable
// for equal values.
func fingerprint(kind string, spec any) string {
	encoded, err := json.Marshal(spec)
	if err != nil {
		// Specs are plain data; this only fires on a programming error.
		panic(fmt.Sprintf("marshal %s spec: %v", kind, err))
	}
	sum := sha256.Sum256(append([]byte(kind+"\n"), encoded...))
	return hex.EncodeToString(sum[:])
}
