package vision

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// BucketAPI is the subset of the S3 client used to probe buckets.
type BucketAPI interface {
	GetBucketLocation(ctx context.Context, params *s3.GetBucketLocationInput, optFns ...func(*s3.Options)) (*s3.GetBucketLocationOutput, error)
}

// ErrBucketNotFound is returned when a probed bucket does not exist.
var ErrBucketNotFound = errors.New("vision: bucket not found")

// Buckets probes S3 buckets that hold gallery seed images.
type Buckets struct {
	api BucketAPI
}

// NewBuckets creates a bucket prober from cfg.
func NewBuckets(ctx context.Context, cfg AWSConfig) (*Buckets, error) {
	awsCfg, err := LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewBucketsWithAPI(s3.NewFromConfig(awsCfg)), nil
}

// NewBucketsWithAPI wraps an existing client.
func NewBucketsWithAPI(api BucketAPI) *Buckets {
	return &Buckets{api: api}
}

// Region returns the region a bucket lives in. S3 reports us-east-1 as an
// empty location constraint.
func (b *Buckets) Region(ctx context.Context, bucket string) (string, error) {
	if bucket == "" {
		return "", fmt.Errorf("bucket name required")
	}

	out, err := b.api.GetBucketLocation(ctx, &s3.GetBucketLocationInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchBucket" {
			return "", fmt.Errorf("%w: %s", ErrBucketNotFound, bucket)
		}
		return "", fmt.Errorf("bucket location %s: %w", bucket, err)
	}

	region := string(out.LocationConstraint)
	if region == "" {
		region = DefaultRegion
	}
	return region, nil
}

// CheckRegion verifies bucket lives in want. Rekognition can only read
// S3 objects from its own region.
func (b *Buckets) CheckRegion(ctx context.Context, bucket, want string) error {
	got, err := b.Region(ctx, bucket)
	if err != nil {
		return err
	}
	if want == "" {
		want = DefaultRegion
	}
	if got != want {
		return fmt.Errorf("bucket %s is in %s, provider is in %s", bucket, got, want)
	}
	return nil
}
