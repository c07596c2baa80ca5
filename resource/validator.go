package resource

import (
	"fmt"
	"net/netip"
	"regexp"
	"strconv"
	"strings"
)

// FieldError names one failing field and the reason it failed.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError collects every failing field of one request so callers can
// report all problems in a single pass.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Reason
	}
	return "invalid specification: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Reason: fmt.Sprintf(format, args...)})
}

func (e *ValidationError) errOrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

var (
	instanceNameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,254}$`)
	bucketNameRe   = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)
	dbIdentifierRe = regexp.MustCompile(`^[a-z][a-z0-9-]{0,62}$`)
	amiRe          = regexp.MustCompile(`^ami-[0-9a-f]{8,17}$`)
	dbUsernameRe   = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]{0,15}$`)
	dbVersionRe    = regexp.MustCompile(`^[0-9][0-9A-Za-z.-]*$`)
)

// Validator maps raw slot values onto typed specs, filling defaults and
// rejecting values outside the allow-lists. It has no side effects.
type Validator struct {
	defaults Defaults
}

// NewValidator builds a Validator; zero fields of defaults fall back to the
// built-in table.
func NewValidator(defaults Defaults) *Validator {
	return &Validator{defaults: defaults.merged()}
}

// Validate builds the typed spec for kind from raw slots. On failure it
// returns a ValidationError listing every invalid field, not just the first.
func (v *Validator) Validate(kind string, slots map[string]string) (Spec, error) {
	if slots == nil {
		slots = map[string]string{}
	}
	switch kind {
	case KindEC2:
		return v.validateEC2(slots)
	case KindS3:
		return v.validateS3(slots)
	case KindRDS:
		return v.validateRDS(slots)
	case KindCustom:
		return v.validateCustom(slots)
	default:
		ve := &ValidationError{}
		ve.add("resource_kind", "unknown resource kind %q", kind)
		return nil, ve
	}
}

func (v *Validator) validateEC2(slots map[string]string) (Spec, error) {
	d := v.defaults.EC2
	ve := &ValidationError{}

	name := pick(slots, "instance_name", "name")
	if name == "" {
		name = d.InstanceName
	}
	if !instanceNameRe.MatchString(name) {
		ve.add("instance_name", "%q must start with a letter or digit and use only letters, digits, dots, underscores, and hyphens (max 255 characters)", name)
	}

	instanceType := pick(slots, "instance_type")
	if instanceType == "" {
		instanceType = d.InstanceType
	}
	family, size, ok := strings.Cut(instanceType, ".")
	if !ok || !instanceTypeFamilies[family] || !instanceTypeSizes[size] {
		ve.add("instance_type", "%q is not an allowed instance type", instanceType)
	}

	ami := pick(slots, "ami")
	if ami == "" {
		ami = d.AMI
	}
	if !amiRe.MatchString(ami) {
		ve.add("ami", "%q is not a valid image id", ami)
	}

	region := v.checkRegion(ve, slots, d.Region)
	override := parseBoolSlot(ve, slots, "ssh_open_override", false)

	var cidrs []string
	if raw := pick(slots, "allowed_ssh_cidrs", "ssh_cidr"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			cidrs = append(cidrs, strings.TrimSpace(part))
		}
	} else {
		cidrs = append(cidrs, d.SSHCIDRs...)
	}
	for _, cidr := range cidrs {
		prefix, err := parseIPv4CIDR(cidr)
		if err != nil {
			ve.add("allowed_ssh_cidrs", "%q: %v", cidr, err)
			continue
		}
		if prefix.Bits() == 0 && !override {
			ve.add("allowed_ssh_cidrs", "0.0.0.0/0 opens ssh to the world and requires the explicit override")
		}
	}

	spec := EC2Spec{
		InstanceType:    instanceType,
		InstanceName:    name,
		AMI:             ami,
		Region:          region,
		AllowedSSHCIDRs: cidrs,
		SSHOpenOverride: override,
		Tags:            v.tags(slots),
	}
	if err := ve.errOrNil(); err != nil {
		return nil, err
	}
	return spec, nil
}

func (v *Validator) validateS3(slots map[string]string) (Spec, error) {
	d := v.defaults.S3
	ve := &ValidationError{}

	name := pick(slots, "bucket_name", "name")
	switch {
	case name == "":
		ve.add("bucket_name", "bucket name is required")
	case !bucketNameRe.MatchString(name):
		ve.add("bucket_name", "%q must be 3-63 lowercase letters, digits, dots, or hyphens and start and end with a letter or digit", name)
	case strings.Contains(name, ".."):
		ve.add("bucket_name", "%q must not contain consecutive dots", name)
	default:
		if addr, err := netip.ParseAddr(name); err == nil && addr.Is4() {
			ve.add("bucket_name", "%q must not be formatted as an IP address", name)
		}
	}

	region := v.checkRegion(ve, slots, d.Region)
	versioning := parseBoolSlot(ve, slots, "versioning", d.Versioning)
	encryption := parseBoolSlot(ve, slots, "encryption", !d.DisableEncryption)

	spec := S3Spec{
		BucketName:        name,
		Region:            region,
		VersioningEnabled: versioning,
		EncryptionEnabled: encryption,
		Tags:              v.tags(slots),
	}
	if err := ve.errOrNil(); err != nil {
		return nil, err
	}
	return spec, nil
}

func (v *Validator) validateRDS(slots map[string]string) (Spec, error) {
	d := v.defaults.RDS
	ve := &ValidationError{}

	name := pick(slots, "database_name", "name")
	switch {
	case name == "":
		ve.add("database_name", "database name is required")
	case !dbIdentifierRe.MatchString(name):
		ve.add("database_name", "%q must be 1-63 lowercase letters, digits, or hyphens and start with a letter", name)
	case strings.HasSuffix(name, "-") || strings.Contains(name, "--"):
		ve.add("database_name", "%q must not end with a hyphen or contain consecutive hyphens", name)
	}

	rawEngine := pick(slots, "engine")
	if rawEngine == "" {
		rawEngine = d.Engine
	}
	engine := NormalizeEngine(rawEngine)
	info, ok := engineCatalog[engine]
	if !ok {
		ve.add("engine", "%q is not an allowed engine (choose from %s)", rawEngine, strings.Join(Engines(), ", "))
	}

	version := pick(slots, "engine_version")
	if version == "" {
		version = info.Version
	} else if !dbVersionRe.MatchString(version) {
		ve.add("engine_version", "%q is not a valid engine version", version)
	}

	class := pick(slots, "instance_class")
	if class == "" {
		class = d.InstanceClass
	}
	rest, hasPrefix := strings.CutPrefix(class, "db.")
	classFamily, classSize, classOK := strings.Cut(rest, ".")
	if !hasPrefix || !classOK || !dbClassFamilies[classFamily] || !instanceTypeSizes[classSize] {
		ve.add("instance_class", "%q is not an allowed database instance class", class)
	}

	region := v.checkRegion(ve, slots, d.Region)

	username := pick(slots, "master_username")
	if username == "" {
		username = d.MasterUsername
	}
	if !dbUsernameRe.MatchString(username) {
		ve.add("master_username", "%q must be 1-16 letters, digits, or underscores and start with a letter", username)
	}

	password := pick(slots, "master_password")
	if password == "" {
		password = d.MasterPassword
	}
	if len(password) < 8 || len(password) > 41 {
		ve.add("master_password", "must be 8-41 characters")
	} else if strings.ContainsAny(password, `/@" `) {
		ve.add("master_password", `must not contain '/', '@', '"', or spaces`)
	}

	spec := RDSSpec{
		Engine:         engine,
		EngineVersion:  version,
		InstanceClass:  class,
		DatabaseName:   name,
		Region:         region,
		MasterUsername: username,
		MasterPassword: password,
		Port:           info.Port,
		Tags:           v.tags(slots),
	}
	if err := ve.errOrNil(); err != nil {
		return nil, err
	}
	return spec, nil
}

func (v *Validator) validateCustom(slots map[string]string) (Spec, error) {
	ve := &ValidationError{}

	request := strings.TrimSpace(pick(slots, "request", "text"))
	if request == "" {
		ve.add("request", "request text is required")
	}
	region := v.checkRegion(ve, slots, v.defaults.EC2.Region)

	spec := CustomSpec{
		Request: request,
		Region:  region,
		Tags:    v.tags(slots),
	}
	if err := ve.errOrNil(); err != nil {
		return nil, err
	}
	return spec, nil
}

// checkRegion applies the region allow-list, falling back to the per-kind
// default when the request names none.
func (v *Validator) checkRegion(ve *ValidationError, slots map[string]string, fallback string) string {
	region := pick(slots, "region")
	if region == "" {
		region = fallback
	}
	if !regionAllowList[region] {
		ve.add("region", "%q is not an allowed region", region)
	}
	return region
}

// tags builds the tag set for a spec: the default table plus the request's
// environment override. Environment and ManagedBy are always present.
func (v *Validator) tags(slots map[string]string) map[string]string {
	tags := make(map[string]string, len(v.defaults.Tags))
	for k, val := range v.defaults.Tags {
		tags[k] = val
	}
	if env := pick(slots, "environment"); env != "" {
		tags["Environment"] = env
	}
	return tags
}

// parseIPv4CIDR parses a CIDR block and rejects anything that is not a
// masked IPv4 network address.
func parseIPv4CIDR(s string) (netip.Prefix, error) {
	prefix, err := netip.ParsePrefix(s)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("not a valid CIDR block")
	}
	if !prefix.Addr().Is4() {
		return netip.Prefix{}, fmt.Errorf("only IPv4 CIDR blocks are accepted")
	}
	if prefix.Masked() != prefix {
		return netip.Prefix{}, fmt.Errorf("host bits set; use the network address")
	}
	return prefix, nil
}

func parseBoolSlot(ve *ValidationError, slots map[string]string, field string, fallback bool) bool {
	raw := pick(slots, field)
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		ve.add(field, "%q is not a boolean value", raw)
		return fallback
	}
	return b
}

// pick returns the first non-empty slot among names.
func pick(slots map[string]string, names ...string) string {
	for _, n := range names {
		if v, ok := slots[n]; ok && v != "" {
			return v
		}
	}
	return ""
}
