package cloud

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

type mockSTS struct {
	fn func(*sts.GetCallerIdentityInput) (*sts.GetCallerIdentityOutput, error)
}

func (m *mockSTS) GetCallerIdentity(_ context.Context, params *sts.GetCallerIdentityInput, _ ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	return m.fn(params)
}

func TestAccountAWSConfigStatic(t *testing.T) {
	a := NewAccount("dev", "ap-south-1", Credentials{
		Type:      "static",
		AccessKey: "AKIAEXAMPLE",
		SecretKey: "secret",
	}, nil)

	cfg, err := a.AWSConfig(context.Background())
	if err != nil {
		t.Fatalf("AWSConfig: %v", err)
	}
	if cfg.Region != "ap-south-1" {
		t.Errorf("expected region ap-south-1, got %q", cfg.Region)
	}
	creds, err := cfg.Credentials.Retrieve(context.Background())
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if creds.AccessKeyID != "AKIAEXAMPLE" {
		t.Errorf("expected static access key, got %q", creds.AccessKeyID)
	}
}

func TestAccountAWSConfigRoleARNRequiresARN(t *testing.T) {
	a := NewAccount("dev", "ap-south-1", Credentials{Type: "role_arn"}, nil)
	if _, err := a.AWSConfig(context.Background()); err == nil {
		t.Fatal("expected error for role_arn without an ARN")
	}
}

func TestAccountAWSConfigUnsupportedType(t *testing.T) {
	a := NewAccount("dev", "ap-south-1", Credentials{Type: "kerberos"}, nil)
	if _, err := a.AWSConfig(context.Background()); err == nil {
		t.Fatal("expected error for unsupported credential type")
	}
}

func TestAccountValidate(t *testing.T) {
	a := NewAccount("dev", "ap-south-1", Credentials{Type: "static", AccessKey: "k", SecretKey: "s"}, nil)
	a.newSTS = func(aws.Config) stsAPI {
		return &mockSTS{fn: func(*sts.GetCallerIdentityInput) (*sts.GetCallerIdentityOutput, error) {
			return &sts.GetCallerIdentityOutput{
				Account: aws.String("123456789012"),
				Arn:     aws.String("arn:aws:iam::123456789012:user/provision"),
				UserId:  aws.String("AIDAEXAMPLE"),
			}, nil
		}}
	}

	id, err := a.Validate(context.Background())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if id.Account != "123456789012" {
		t.Errorf("unexpected account: %q", id.Account)
	}
	if id.ARN != "arn:aws:iam::123456789012:user/provision" {
		t.Errorf("unexpected arn: %q", id.ARN)
	}
}

func TestAccountValidateFailure(t *testing.T) {
	a := NewAccount("dev", "ap-south-1", Credentials{Type: "static", AccessKey: "k", SecretKey: "s"}, nil)
	a.newSTS = func(aws.Config) stsAPI {
		return &mockSTS{fn: func(*sts.GetCallerIdentityInput) (*sts.GetCallerIdentityOutput, error) {
			return nil, errors.New("InvalidClientTokenId")
		}}
	}

	if _, err := a.Validate(context.Background()); err == nil {
		t.Fatal("expected error when STS rejects the credentials")
	}
}
