package vision

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/teslashibe/go-ppewatch/internal/httpc"
)

// Credential sources for AWS clients.
const (
	CredentialsDefault = "default" // SDK chain: env, shared config, instance role
	CredentialsStatic  = "static"  // access key and secret from config
	CredentialsProfile = "profile" // named shared config profile
)

// DefaultRegion is used when no region is configured.
const DefaultRegion = "us-east-1"

// AWSConfig selects region and credential source for the AWS clients.
type AWSConfig struct {
	Region      string `json:"region"`
	Credentials string `json:"credentials"` // default, static or profile
	AccessKeyID string `json:"access_key_id,omitempty"`
	SecretKey   string `json:"secret_access_key,omitempty"`
	Profile     string `json:"profile,omitempty"`
}

// Validate checks the credential settings are complete.
func (c AWSConfig) Validate() error {
	switch c.Credentials {
	case "", CredentialsDefault:
	case CredentialsStatic:
		if c.AccessKeyID == "" || c.SecretKey == "" {
			return fmt.Errorf("static credentials need access_key_id and secret_access_key")
		}
	case CredentialsProfile:
		if c.Profile == "" {
			return fmt.Errorf("profile credentials need a profile name")
		}
	default:
		return fmt.Errorf("unknown credential source %q", c.Credentials)
	}
	return nil
}

// LoadAWSConfig resolves an aws.Config from cfg, routing all SDK traffic
// through the shared HTTP client.
func LoadAWSConfig(ctx context.Context, cfg AWSConfig) (aws.Config, error) {
	if err := cfg.Validate(); err != nil {
		return aws.Config{}, err
	}

	region := cfg.Region
	if region == "" {
		region = DefaultRegion
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
		awsconfig.WithHTTPClient(httpc.Client),
	}

	switch cfg.Credentials {
	case CredentialsStatic:
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, ""),
		))
	case CredentialsProfile:
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}
