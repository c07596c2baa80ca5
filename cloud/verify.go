package cloud

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ErrResourceMissing reports that a tracked resource does not exist in the
// provider account.
var ErrResourceMissing = errors.New("cloud: resource not found in provider account")

// API slices narrowed to the calls the verifier makes.
type ec2API interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
}

type s3API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

type rdsAPI interface {
	DescribeDBInstances(ctx context.Context, params *rds.DescribeDBInstancesInput, optFns ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error)
}

// Verifier cross-checks tracked resources against the live provider APIs
// after an apply. It answers "does the thing the state file claims actually
// exist", nothing more.
type Verifier struct {
	ec2    ec2API
	s3     s3API
	rds    rdsAPI
	logger *slog.Logger
}

// NewVerifier builds a Verifier with real service clients from cfg.
func NewVerifier(cfg aws.Config, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{
		ec2:    ec2.NewFromConfig(cfg),
		s3:     s3.NewFromConfig(cfg),
		rds:    rds.NewFromConfig(cfg),
		logger: logger,
	}
}

// Verify checks that the identified resource exists. Custom deployments have
// no single primary resource and always pass.
func (v *Verifier) Verify(ctx context.Context, kind, id string) error {
	if id == "" {
		return fmt.Errorf("cloud: cannot verify %s resource with empty id", kind)
	}
	switch kind {
	case "ec2":
		return v.verifyInstance(ctx, id)
	case "s3":
		return v.verifyBucket(ctx, id)
	case "rds":
		return v.verifyDatabase(ctx, id)
	default:
		return nil
	}
}

func (v *Verifier) verifyInstance(ctx context.Context, id string) error {
	out, err := v.ec2.DescribeInstances(ctx, &ec2.DescribeInstancesInput{InstanceIds: []string{id}})
	if err != nil {
		return fmt.Errorf("cloud: DescribeInstances %q failed: %w", id, err)
	}
	for _, res := range out.Reservations {
		for _, inst := range res.Instances {
			if aws.ToString(inst.InstanceId) != id || inst.State == nil {
				continue
			}
			switch inst.State.Name {
			case ec2types.InstanceStateNameTerminated, ec2types.InstanceStateNameShuttingDown:
				return fmt.Errorf("%w: instance %s is %s", ErrResourceMissing, id, inst.State.Name)
			default:
				v.logger.Debug("verified instance", "id", id, "state", inst.State.Name)
				return nil
			}
		}
	}
	return fmt.Errorf("%w: instance %s", ErrResourceMissing, id)
}

func (v *Verifier) verifyBucket(ctx context.Context, name string) error {
	if _, err := v.s3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(name)}); err != nil {
		var notFound *s3types.NotFound
		if errors.As(err, &notFound) {
			return fmt.Errorf("%w: bucket %s", ErrResourceMissing, name)
		}
		return fmt.Errorf("cloud: HeadBucket %q failed: %w", name, err)
	}
	v.logger.Debug("verified bucket", "name", name)
	return nil
}

func (v *Verifier) verifyDatabase(ctx context.Context, id string) error {
	out, err := v.rds.DescribeDBInstances(ctx, &rds.DescribeDBInstancesInput{DBInstanceIdentifier: aws.String(id)})
	if err != nil {
		var notFound *rdstypes.DBInstanceNotFoundFault
		if errors.As(err, &notFound) {
			return fmt.Errorf("%w: database %s", ErrResourceMissing, id)
		}
		return fmt.Errorf("cloud: DescribeDBInstances %q failed: %w", id, err)
	}
	if len(out.DBInstances) == 0 {
		return fmt.Errorf("%w: database %s", ErrResourceMissing, id)
	}
	v.logger.Debug("verified database", "id", id, "status", aws.ToString(out.DBInstances[0].DBInstanceStatus))
	return nil
}
