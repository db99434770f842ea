// Package compute provides the EC2 operations of the pipeline: snapshot
// import, image registration, cross-region copy and region discovery. Every
// operation is idempotent against the provider, keyed by a deterministic
// identity (name or client token), so the whole pipeline can be rerun safely
// after a partial failure.
package compute

import (
	"context"
	"log/slog"
	"time"

	"github.com/amiup/amiup/pkg/errors"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
)

const (
	// snapshotWaitTimeout bounds the wait for an import task to finish.
	snapshotWaitTimeout = 60 * time.Minute
	// imageWaitTimeout bounds the wait for an image to become available.
	imageWaitTimeout = 60 * time.Minute
)

// api is the subset of the EC2 client the pipeline needs.
type api interface {
	ImportSnapshot(ctx context.Context, params *ec2.ImportSnapshotInput, optFns ...func(*ec2.Options)) (*ec2.ImportSnapshotOutput, error)
	DescribeImportSnapshotTasks(ctx context.Context, params *ec2.DescribeImportSnapshotTasksInput, optFns ...func(*ec2.Options)) (*ec2.DescribeImportSnapshotTasksOutput, error)
	DescribeImages(ctx context.Context, params *ec2.DescribeImagesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error)
	RegisterImage(ctx context.Context, params *ec2.RegisterImageInput, optFns ...func(*ec2.Options)) (*ec2.RegisterImageOutput, error)
	ModifyImageAttribute(ctx context.Context, params *ec2.ModifyImageAttributeInput, optFns ...func(*ec2.Options)) (*ec2.ModifyImageAttributeOutput, error)
	CopyImage(ctx context.Context, params *ec2.CopyImageInput, optFns ...func(*ec2.Options)) (*ec2.CopyImageOutput, error)
	DescribeRegions(ctx context.Context, params *ec2.DescribeRegionsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeRegionsOutput, error)
}

// Client provides EC2 operations bound to one explicit region.
type Client struct {
	api    api
	region string
}

// NewClient creates an EC2 client for the given region using the default
// credential chain. An empty region defers to the ambient AWS configuration.
func NewClient(ctx context.Context, region string) (*Client, error) {
	slog.Info("ec2_client_init", "region", region)

	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		slog.Error("aws_config_load_failed", "error", err)
		return nil, errors.Wrap(err, "failed to load AWS config")
	}

	return newClient(ec2.NewFromConfig(cfg), cfg.Region), nil
}

func newClient(api api, region string) *Client {
	return &Client{api: api, region: region}
}

// Region returns the region this client operates in.
func (c *Client) Region() string {
	return c.region
}
