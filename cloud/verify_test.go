package cloud

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type mockEC2 struct {
	fn func(*ec2.DescribeInstancesInput) (*ec2.DescribeInstancesOutput, error)
}

func (m *mockEC2) DescribeInstances(_ context.Context, params *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	return m.fn(params)
}

type mockS3 struct {
	fn func(*s3.HeadBucketInput) (*s3.HeadBucketOutput, error)
}

func (m *mockS3) HeadBucket(_ context.Context, params *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return m.fn(params)
}

type mockRDS struct {
	fn func(*rds.DescribeDBInstancesInput) (*rds.DescribeDBInstancesOutput, error)
}

func (m *mockRDS) DescribeDBInstances(_ context.Context, params *rds.DescribeDBInstancesInput, _ ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error) {
	return m.fn(params)
}

func instanceOutput(id string, name ec2types.InstanceStateName) *ec2.DescribeInstancesOutput {
	return &ec2.DescribeInstancesOutput{
		Reservations: []ec2types.Reservation{{
			Instances: []ec2types.Instance{{
				InstanceId: aws.String(id),
				State:      &ec2types.InstanceState{Name: name},
			}},
		}},
	}
}

func newTestVerifier() *Verifier {
	return &Verifier{logger: slog.Default()}
}

func TestVerifyInstanceRunning(t *testing.T) {
	v := newTestVerifier()
	v.ec2 = &mockEC2{fn: func(in *ec2.DescribeInstancesInput) (*ec2.DescribeInstancesOutput, error) {
		if len(in.InstanceIds) != 1 || in.InstanceIds[0] != "i-0abc" {
			t.Errorf("unexpected instance ids: %v", in.InstanceIds)
		}
		return instanceOutput("i-0abc", ec2types.InstanceStateNameRunning), nil
	}}

	if err := v.Verify(context.Background(), "ec2", "i-0abc"); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyInstanceTerminated(t *testing.T) {
	v := newTestVerifier()
	v.ec2 = &mockEC2{fn: func(*ec2.DescribeInstancesInput) (*ec2.DescribeInstancesOutput, error) {
		return instanceOutput("i-0abc", ec2types.InstanceStateNameTerminated), nil
	}}

	err := v.Verify(context.Background(), "ec2", "i-0abc")
	if !errors.Is(err, ErrResourceMissing) {
		t.Fatalf("expected ErrResourceMissing, got %v", err)
	}
}

func TestVerifyInstanceAbsent(t *testing.T) {
	v := newTestVerifier()
	v.ec2 = &mockEC2{fn: func(*ec2.DescribeInstancesInput) (*ec2.DescribeInstancesOutput, error) {
		return &ec2.DescribeInstancesOutput{}, nil
	}}

	if err := v.Verify(context.Background(), "ec2", "i-0abc"); !errors.Is(err, ErrResourceMissing) {
		t.Fatalf("expected ErrResourceMissing, got %v", err)
	}
}

func TestVerifyBucket(t *testing.T) {
	v := newTestVerifier()
	v.s3 = &mockS3{fn: func(in *s3.HeadBucketInput) (*s3.HeadBucketOutput, error) {
		if aws.ToString(in.Bucket) != "my-data-bucket" {
			t.Errorf("unexpected bucket: %v", in.Bucket)
		}
		return &s3.HeadBucketOutput{}, nil
	}}

	if err := v.Verify(context.Background(), "s3", "my-data-bucket"); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyBucketMissing(t *testing.T) {
	v := newTestVerifier()
	v.s3 = &mockS3{fn: func(*s3.HeadBucketInput) (*s3.HeadBucketOutput, error) {
		return nil, &s3types.NotFound{}
	}}

	if err := v.Verify(context.Background(), "s3", "my-data-bucket"); !errors.Is(err, ErrResourceMissing) {
		t.Fatalf("expected ErrResourceMissing, got %v", err)
	}
}

func TestVerifyBucketTransportError(t *testing.T) {
	v := newTestVerifier()
	v.s3 = &mockS3{fn: func(*s3.HeadBucketInput) (*s3.HeadBucketOutput, error) {
		return nil, errors.New("dial tcp: connection refused")
	}}

	err := v.Verify(context.Background(), "s3", "my-data-bucket")
	if err == nil || errors.Is(err, ErrResourceMissing) {
		t.Fatalf("transport errors must not read as missing, got %v", err)
	}
}

func TestVerifyDatabase(t *testing.T) {
	v := newTestVerifier()
	v.rds = &mockRDS{fn: func(in *rds.DescribeDBInstancesInput) (*rds.DescribeDBInstancesOutput, error) {
		if aws.ToString(in.DBInstanceIdentifier) != "orders-db" {
			t.Errorf("unexpected identifier: %v", in.DBInstanceIdentifier)
		}
		return &rds.DescribeDBInstancesOutput{
			DBInstances: []rdstypes.DBInstance{{DBInstanceStatus: aws.String("available")}},
		}, nil
	}}

	if err := v.Verify(context.Background(), "rds", "orders-db"); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyDatabaseMissing(t *testing.T) {
	v := newTestVerifier()
	v.rds = &mockRDS{fn: func(*rds.DescribeDBInstancesInput) (*rds.DescribeDBInstancesOutput, error) {
		return nil, &rdstypes.DBInstanceNotFoundFault{}
	}}

	if err := v.Verify(context.Background(), "rds", "orders-db"); !errors.Is(err, ErrResourceMissing) {
		t.Fatalf("expected ErrResourceMissing, got %v", err)
	}
}

func TestVerifyCustomAlwaysPasses(t *testing.T) {
	v := newTestVerifier()
	if err := v.Verify(context.Background(), "custom", "anything"); err != nil {
		t.Fatalf("custom deployments have no primary resource to verify: %v", err)
	}
}

func TestVerifyEmptyID(t *testing.T) {
	v := newTestVerifier()
	if err := v.Verify(context.Background(), "ec2", ""); err == nil {
		t.Fatal("expected error for empty id")
	}
}
