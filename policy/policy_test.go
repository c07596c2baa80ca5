package policy

import (
	"errors"
	"strings"
	"testing"

	"github.com/GoCodeAlone/provision/resource"
)

func ec2Spec() resource.EC2Spec {
	return resource.EC2Spec{
		InstanceType:    "t2.micro",
		InstanceName:    "web-1",
		AMI:             "ami-03f4878755434977f",
		Region:          "ap-south-1",
		AllowedSSHCIDRs: []string{"10.0.0.0/8"},
		Tags:            map[string]string{"Environment": "development", "ManagedBy": "terraform"},
	}
}

func violations(t *testing.T, err error) map[string]string {
	t.Helper()
	if err == nil {
		t.Fatal("expected a policy violation")
	}
	var ve *resource.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %T: %v", err, err)
	}
	out := make(map[string]string, len(ve.Fields))
	for _, f := range ve.Fields {
		out[f.Field] = f.Reason
	}
	return out
}

func TestEngineAllows(t *testing.T) {
	e, err := New([]Rule{
		{Name: "region-allowed", Expr: `region in ["ap-south-1", "us-east-1"]`},
		{Name: "managed-by", Expr: `tags.ManagedBy == "terraform"`},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := e.Check(ec2Spec()); err != nil {
		t.Fatalf("Check: %v", err)
	}
}

func TestEngineRejects(t *testing.T) {
	e, err := New([]Rule{
		{Name: "no-dev-region", Expr: `region != "ap-south-1"`, Message: "ap-south-1 is frozen"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := violations(t, e.Check(ec2Spec()))
	if got["policy.no-dev-region"] != "ap-south-1 is frozen" {
		t.Fatalf("unexpected violations: %v", got)
	}
}

func TestEngineDefaultMessage(t *testing.T) {
	e, err := New([]Rule{{Name: "deny-all", Expr: `false`}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := violations(t, e.Check(ec2Spec()))
	if !strings.Contains(got["policy.deny-all"], `"deny-all"`) {
		t.Fatalf("default message should name the rule, got %q", got["policy.deny-all"])
	}
}

func TestEngineReportsAllViolations(t *testing.T) {
	e, err := New([]Rule{
		{Name: "first", Expr: `false`},
		{Name: "second", Expr: `true`},
		{Name: "third", Expr: `false`},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := violations(t, e.Check(ec2Spec()))
	if len(got) != 2 {
		t.Fatalf("expected 2 violations, got %v", got)
	}
	if _, ok := got["policy.first"]; !ok {
		t.Error("missing violation for rule first")
	}
	if _, ok := got["policy.third"]; !ok {
		t.Error("missing violation for rule third")
	}
}

func TestEngineKindScoping(t *testing.T) {
	e, err := New([]Rule{
		{Name: "s3-only", Expr: `false`, Kinds: []string{resource.KindS3}},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := e.Check(ec2Spec()); err != nil {
		t.Fatalf("rule scoped to s3 should not fire for ec2: %v", err)
	}
	spec := resource.S3Spec{BucketName: "my-bucket", Region: "ap-south-1", Tags: map[string]string{}}
	if err := e.Check(spec); err == nil {
		t.Fatal("rule scoped to s3 should fire for s3")
	}
}

func TestEngineAttrs(t *testing.T) {
	e, err := New([]Rule{
		{Name: "small-instances", Expr: `attrs.instance_type in ["t2.micro", "t3.micro"]`, Kinds: []string{resource.KindEC2}},
		{Name: "no-world-ssh", Expr: `!("0.0.0.0/0" in attrs.ssh_cidrs)`, Kinds: []string{resource.KindEC2}},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := e.Check(ec2Spec()); err != nil {
		t.Fatalf("Check: %v", err)
	}

	big := ec2Spec()
	big.InstanceType = "m5.large"
	big.AllowedSSHCIDRs = []string{"0.0.0.0/0"}
	big.SSHOpenOverride = true
	got := violations(t, e.Check(big))
	if len(got) != 2 {
		t.Fatalf("expected 2 violations, got %v", got)
	}
}

func TestEngineEvaluationErrorRejects(t *testing.T) {
	e, err := New([]Rule{{Name: "bad-ref", Expr: `attrs.engine == "mysql"`}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// EC2 attrs carry no engine key, so the rule cannot hold and must
	// reject rather than pass silently.
	got := violations(t, e.Check(ec2Spec()))
	if _, ok := got["policy.bad-ref"]; !ok {
		t.Fatalf("expected bad-ref violation, got %v", got)
	}
}

func TestEngineCompileError(t *testing.T) {
	if _, err := New([]Rule{{Name: "broken", Expr: `region ==`}}); err == nil {
		t.Fatal("expected compile error")
	}
	if _, err := New([]Rule{{Expr: `true`}}); err == nil {
		t.Fatal("expected error for unnamed rule")
	}
}

func TestEngineEmpty(t *testing.T) {
	var e *Engine
	if err := e.Check(ec2Spec()); err != nil {
		t.Fatalf("nil engine must permit: %v", err)
	}
	empty, err := New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if empty.Len() != 0 {
		t.Fatalf("expected empty engine, got %d rules", empty.Len())
	}
	if err := empty.Check(ec2Spec()); err != nil {
		t.Fatalf("empty engine must permit: %v", err)
	}
}
