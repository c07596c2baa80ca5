// Package policy evaluates operator-defined guard rules against validated
// specs before any configuration is written. Rules are expr expressions over
// the spec's fields; a rule that evaluates false (or fails to evaluate)
// rejects the request.
package policy

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/GoCodeAlone/provision/resource"
)

// Rule is one guard expression.
type Rule struct {
	// Name identifies the rule in violations and logs.
	Name string `json:"name" yaml:"name"`

	// Expr must evaluate to true for the request to proceed. The
	// environment exposes kind, name, region, tags, and attrs.
	Expr string `json:"expr" yaml:"expr"`

	// Message overrides the default violation reason.
	Message string `json:"message,omitempty" yaml:"message,omitempty"`

	// Kinds limits the rule to the named kinds; empty applies everywhere.
	Kinds []string `json:"kinds,omitempty" yaml:"kinds,omitempty"`
}

type compiledRule struct {
	rule    Rule
	kinds   map[string]bool
	program *vm.Program
}

// Engine holds the compiled rule set. A nil or empty engine permits
// everything.
type Engine struct {
	rules []compiledRule
}

// New compiles rules into an Engine.
func New(rules []Rule) (*Engine, error) {
	e := &Engine{}
	for _, rule := range rules {
		if rule.Name == "" {
			return nil, fmt.Errorf("policy rule with expression %q has no name", rule.Expr)
		}
		program, err := expr.Compile(rule.Expr, expr.Env(map[string]any{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("failed to compile policy rule %q: %w", rule.Name, err)
		}
		var kinds map[string]bool
		if len(rule.Kinds) > 0 {
			kinds = make(map[string]bool, len(rule.Kinds))
			for _, k := range rule.Kinds {
				kinds[k] = true
			}
		}
		e.rules = append(e.rules, compiledRule{rule: rule, kinds: kinds, program: program})
	}
	return e, nil
}

// Len returns the number of compiled rules.
func (e *Engine) Len() int {
	if e == nil {
		return 0
	}
	return len(e.rules)
}

// Check evaluates every applicable rule against spec. All violations are
// reported together as a ValidationError.
func (e *Engine) Check(spec resource.Spec) error {
	if e == nil || len(e.rules) == 0 {
		return nil
	}

	env := environment(spec)
	ve := &resource.ValidationError{}
	for _, cr := range e.rules {
		if cr.kinds != nil && !cr.kinds[spec.Kind()] {
			continue
		}
		out, err := expr.Run(cr.program, env)
		if err != nil {
			// Evaluation failures reject the request rather than skipping
			// the rule.
			ve.Fields = append(ve.Fields, resource.FieldError{
				Field:  "policy." + cr.rule.Name,
				Reason: fmt.Sprintf("rule evaluation failed: %v", err),
			})
			continue
		}
		if ok, _ := out.(bool); ok {
			continue
		}
		reason := cr.rule.Message
		if reason == "" {
			reason = fmt.Sprintf("rule %q rejected the request", cr.rule.Name)
		}
		ve.Fields = append(ve.Fields, resource.FieldError{Field: "policy." + cr.rule.Name, Reason: reason})
	}

	if len(ve.Fields) > 0 {
		return ve
	}
	return nil
}

// environment builds the evaluation environment for spec.
func environment(spec resource.Spec) map[string]any {
	tags := resource.TagsOf(spec)
	if tags == nil {
		tags = map[string]string{}
	}
	env := map[string]any{
		"kind":   spec.Kind(),
		"name":   spec.Name(),
		"region": resource.RegionOf(spec),
		"tags":   tags,
		"attrs":  map[string]any{},
	}
	switch s := spec.(type) {
	case resource.EC2Spec:
		env["attrs"] = map[string]any{
			"instance_type":     s.InstanceType,
			"ami":               s.AMI,
			"ssh_cidrs":         s.AllowedSSHCIDRs,
			"ssh_open_override": s.SSHOpenOverride,
		}
	case resource.S3Spec:
		env["attrs"] = map[string]any{
			"bucket_name": s.BucketName,
			"versioning":  s.VersioningEnabled,
			"encryption":  s.EncryptionEnabled,
		}
	case resource.RDSSpec:
		env["attrs"] = map[string]any{
			"engine":         s.Engine,
			"engine_version": s.EngineVersion,
			"instance_class": s.InstanceClass,
			"database_name":  s.DatabaseName,
			"port":           s.Port,
		}
	case resource.CustomSpec:
		env["attrs"] = map[string]any{
			"request": s.Request,
		}
	}
	return env
}
