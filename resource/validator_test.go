package resource

import (
	"errors"
	"testing"
)

func fieldNames(t *testing.T, err error) map[string]string {
	t.Helper()
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %T: %v", err, err)
	}
	fields := make(map[string]string, len(ve.Fields))
	for _, f := range ve.Fields {
		fields[f.Field] = f.Reason
	}
	return fields
}

func TestValidateEC2Defaults(t *testing.T) {
	v := NewValidator(Defaults{})

	spec, err := v.Validate(KindEC2, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ec2, ok := spec.(EC2Spec)
	if !ok {
		t.Fatalf("expected EC2Spec, got %T", spec)
	}
	if ec2.InstanceName != "example" {
		t.Errorf("expected default name example, got %q", ec2.InstanceName)
	}
	if ec2.InstanceType != "t2.micro" {
		t.Errorf("expected default type t2.micro, got %q", ec2.InstanceType)
	}
	if ec2.Region != "ap-south-1" {
		t.Errorf("expected default region ap-south-1, got %q", ec2.Region)
	}
	if len(ec2.AllowedSSHCIDRs) != 1 || ec2.AllowedSSHCIDRs[0] != "10.0.0.0/8" {
		t.Errorf("expected default ssh cidr 10.0.0.0/8, got %v", ec2.AllowedSSHCIDRs)
	}
	if ec2.SSHOpenOverride {
		t.Error("override should default to false")
	}
	if ec2.Tags["Environment"] != "development" || ec2.Tags["ManagedBy"] != "terraform" {
		t.Errorf("unexpected default tags: %v", ec2.Tags)
	}
}

func TestValidateReportsAllFields(t *testing.T) {
	v := NewValidator(Defaults{})

	_, err := v.Validate(KindEC2, map[string]string{
		"instance_type": "x9.mega",
		"ami":           "not-an-ami",
		"region":        "mars-central-1",
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
	fields := fieldNames(t, err)
	for _, want := range []string{"instance_type", "ami", "region"} {
		if _, ok := fields[want]; !ok {
			t.Errorf("missing field %q in %v", want, fields)
		}
	}
	if len(fields) != 3 {
		t.Errorf("expected exactly 3 failing fields, got %v", fields)
	}
}

func TestValidateSSHWorldOpen(t *testing.T) {
	v := NewValidator(Defaults{})

	_, err := v.Validate(KindEC2, map[string]string{"ssh_cidr": "0.0.0.0/0"})
	if err == nil {
		t.Fatal("expected world-open ssh to be rejected")
	}
	fields := fieldNames(t, err)
	if _, ok := fields["allowed_ssh_cidrs"]; !ok {
		t.Errorf("expected allowed_ssh_cidrs failure, got %v", fields)
	}

	spec, err := v.Validate(KindEC2, map[string]string{
		"ssh_cidr":          "0.0.0.0/0",
		"ssh_open_override": "true",
	})
	if err != nil {
		t.Fatalf("override should permit 0.0.0.0/0: %v", err)
	}
	ec2 := spec.(EC2Spec)
	if !ec2.SSHOpenOverride {
		t.Error("override flag should be carried on the spec")
	}
	if len(ec2.AllowedSSHCIDRs) != 1 || ec2.AllowedSSHCIDRs[0] != "0.0.0.0/0" {
		t.Errorf("unexpected cidrs: %v", ec2.AllowedSSHCIDRs)
	}
}

func TestValidateCIDRGrammar(t *testing.T) {
	v := NewValidator(Defaults{})

	cases := []struct {
		name string
		cidr string
	}{
		{"malformed", "not-a-cidr"},
		{"host bits", "10.0.0.1/8"},
		{"ipv6", "::/0"},
		{"bare address", "10.0.0.0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Validate(KindEC2, map[string]string{"ssh_cidr": tc.cidr})
			if err == nil {
				t.Fatalf("expected %q to be rejected", tc.cidr)
			}
			if _, ok := fieldNames(t, err)["allowed_ssh_cidrs"]; !ok {
				t.Errorf("expected allowed_ssh_cidrs failure for %q", tc.cidr)
			}
		})
	}

	spec, err := v.Validate(KindEC2, map[string]string{"ssh_cidr": "10.0.0.0/8, 192.168.0.0/16"})
	if err != nil {
		t.Fatalf("comma-separated cidrs should validate: %v", err)
	}
	ec2 := spec.(EC2Spec)
	if len(ec2.AllowedSSHCIDRs) != 2 || ec2.AllowedSSHCIDRs[1] != "192.168.0.0/16" {
		t.Errorf("unexpected cidrs: %v", ec2.AllowedSSHCIDRs)
	}
}

func TestValidateS3(t *testing.T) {
	v := NewValidator(Defaults{})

	cases := []struct {
		name      string
		slots     map[string]string
		wantField string
	}{
		{"missing name", nil, "bucket_name"},
		{"too short", map[string]string{"bucket_name": "ab"}, "bucket_name"},
		{"uppercase", map[string]string{"bucket_name": "MyBucket"}, "bucket_name"},
		{"consecutive dots", map[string]string{"bucket_name": "my..bucket"}, "bucket_name"},
		{"ip address", map[string]string{"bucket_name": "192.168.1.1"}, "bucket_name"},
		{"bad versioning", map[string]string{"bucket_name": "my-bucket", "versioning": "maybe"}, "versioning"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Validate(KindS3, tc.slots)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if _, ok := fieldNames(t, err)[tc.wantField]; !ok {
				t.Errorf("expected %s failure, got %v", tc.wantField, err)
			}
		})
	}

	spec, err := v.Validate(KindS3, map[string]string{
		"bucket_name": "my-data-bucket",
		"versioning":  "true",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s3 := spec.(S3Spec)
	if !s3.VersioningEnabled {
		t.Error("versioning should be enabled")
	}
	if !s3.EncryptionEnabled {
		t.Error("encryption should default to enabled")
	}
}

func TestValidateRDS(t *testing.T) {
	v := NewValidator(Defaults{})

	cases := []struct {
		name      string
		slots     map[string]string
		wantField string
	}{
		{"missing name", nil, "database_name"},
		{"uppercase name", map[string]string{"database_name": "OrdersDB"}, "database_name"},
		{"trailing hyphen", map[string]string{"database_name": "orders-"}, "database_name"},
		{"double hyphen", map[string]string{"database_name": "orders--db"}, "database_name"},
		{"unknown engine", map[string]string{"database_name": "orders", "engine": "db2"}, "engine"},
		{"bad class", map[string]string{"database_name": "orders", "instance_class": "t3.micro"}, "instance_class"},
		{"short password", map[string]string{"database_name": "orders", "master_password": "short"}, "master_password"},
		{"password chars", map[string]string{"database_name": "orders", "master_password": "has@symbol1"}, "master_password"},
		{"bad username", map[string]string{"database_name": "orders", "master_username": "1admin"}, "master_username"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Validate(KindRDS, tc.slots)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if _, ok := fieldNames(t, err)[tc.wantField]; !ok {
				t.Errorf("expected %s failure, got %v", tc.wantField, err)
			}
		})
	}

	spec, err := v.Validate(KindRDS, map[string]string{
		"database_name": "orders-db",
		"engine":        "postgresql",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rds := spec.(RDSSpec)
	if rds.Engine != "postgres" {
		t.Errorf("expected engine alias to normalize, got %q", rds.Engine)
	}
	if rds.EngineVersion != "13.7" || rds.Port != 5432 {
		t.Errorf("expected catalog version/port, got %s/%d", rds.EngineVersion, rds.Port)
	}
	if rds.MasterUsername != "admin" {
		t.Errorf("expected default username admin, got %q", rds.MasterUsername)
	}
}

func TestValidateRDSEngineCatalog(t *testing.T) {
	v := NewValidator(Defaults{})

	cases := []struct {
		engine  string
		version string
		port    int
	}{
		{"mysql", "8.0", 3306},
		{"postgres", "13.7", 5432},
		{"mariadb", "10.6", 3306},
		{"oracle-ee", "19.0.0.0.ru-2022-01.rur-2022-01.r1", 1521},
		{"sqlserver-ex", "15.00.4153.1.v1", 1433},
	}
	for _, tc := range cases {
		t.Run(tc.engine, func(t *testing.T) {
			spec, err := v.Validate(KindRDS, map[string]string{
				"database_name": "catalog-check",
				"engine":        tc.engine,
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			rds := spec.(RDSSpec)
			if rds.EngineVersion != tc.version || rds.Port != tc.port {
				t.Errorf("engine %s: got %s/%d, want %s/%d",
					tc.engine, rds.EngineVersion, rds.Port, tc.version, tc.port)
			}
		})
	}
}

func TestValidateCustom(t *testing.T) {
	v := NewValidator(Defaults{})

	_, err := v.Validate(KindCustom, map[string]string{"request": "   "})
	if err == nil {
		t.Fatal("expected blank request to be rejected")
	}

	spec, err := v.Validate(KindCustom, map[string]string{"request": "two subnets with a nat gateway"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	custom := spec.(CustomSpec)
	if custom.Request != "two subnets with a nat gateway" {
		t.Errorf("request text should be preserved, got %q", custom.Request)
	}
	if custom.Region != "ap-south-1" {
		t.Errorf("expected default region, got %q", custom.Region)
	}
}

func TestValidateEnvironmentTag(t *testing.T) {
	v := NewValidator(Defaults{})

	spec, err := v.Validate(KindEC2, map[string]string{"environment": "production"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tags := spec.(EC2Spec).Tags
	if tags["Environment"] != "production" {
		t.Errorf("expected environment override, got %q", tags["Environment"])
	}
	if tags["ManagedBy"] != "terraform" {
		t.Errorf("ManagedBy tag must survive overrides, got %q", tags["ManagedBy"])
	}
}

func TestValidateUnknownKind(t *testing.T) {
	v := NewValidator(Defaults{})

	_, err := v.Validate("lambda", nil)
	if err == nil {
		t.Fatal("expected unknown kind to be rejected")
	}
	if _, ok := fieldNames(t, err)["resource_kind"]; !ok {
		t.Errorf("expected resource_kind failure, got %v", err)
	}
}

func TestValidateCustomDefaultsOverride(t *testing.T) {
	v := NewValidator(Defaults{
		EC2:  EC2Defaults{Region: "eu-west-1", InstanceType: "t3.small"},
		Tags: map[string]string{"Team": "platform"},
	})

	spec, err := v.Validate(KindEC2, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ec2 := spec.(EC2Spec)
	if ec2.Region != "eu-west-1" || ec2.InstanceType != "t3.small" {
		t.Errorf("configured defaults should win: %+v", ec2)
	}
	if ec2.InstanceName != "example" {
		t.Errorf("unset defaults should fall back to the table, got %q", ec2.InstanceName)
	}
	if ec2.Tags["Team"] != "platform" || ec2.Tags["ManagedBy"] != "terraform" {
		t.Errorf("tag defaults should merge, got %v", ec2.Tags)
	}
}
