package compute

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/amiup/amiup/pkg/errors"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
)

// CopyImageFrom copies an image from another region into this client's
// region, waits for the copy to become available and optionally makes it
// public. The source image id doubles as the client token, so repeating the
// copy for the same source image yields the same copy instead of a duplicate.
func (c *Client) CopyImageFrom(ctx context.Context, sourceImageID, sourceRegion, name string, public bool) (string, error) {
	slog.Info("image_copy_start", "image_id", sourceImageID, "source_region", sourceRegion, "target_region", c.region)

	out, err := c.api.CopyImage(ctx, &ec2.CopyImageInput{
		SourceImageId: aws.String(sourceImageID),
		SourceRegion:  aws.String(sourceRegion),
		Name:          aws.String(name),
		ClientToken:   aws.String(sourceImageID),
	})
	if err != nil {
		slog.Error("image_copy_failed", "image_id", sourceImageID, "target_region", c.region, "error", err)
		return "", errors.Wrap(err, "failed to copy image")
	}
	if out.ImageId == nil {
		return "", fmt.Errorf("copy image response missing image id")
	}
	copyID := *out.ImageId

	if err := c.waitImageAvailable(ctx, copyID); err != nil {
		return "", err
	}

	if public {
		if err := c.MakeImagePublic(ctx, copyID); err != nil {
			return "", err
		}
	}

	slog.Info("image_copy_complete", "image_id", sourceImageID, "target_region", c.region, "copy_id", copyID)
	return copyID, nil
}
