package compute

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/amiup/amiup/pkg/descriptor"
	"github.com/amiup/amiup/pkg/errors"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// Registration policy constants. These are fixed defaults, not computed from
// the descriptor.
const (
	rootDeviceName  = "/dev/xvda"
	virtualization  = "hvm"
	sriovNetSupport = "simple"
)

// FindImageByName looks up an image owned by this account by exact name.
// Returns the empty string when no image matches. More than one match for a
// supposedly-unique name is an invariant violation and aborts rather than
// guessing.
func (c *Client) FindImageByName(ctx context.Context, name string) (string, error) {
	out, err := c.api.DescribeImages(ctx, &ec2.DescribeImagesInput{
		Owners: []string{"self"},
		Filters: []ec2types.Filter{
			{Name: aws.String("name"), Values: []string{name}},
		},
	})
	if err != nil {
		slog.Error("image_lookup_failed", "name", name, "error", err)
		return "", errors.Wrap(err, "failed to look up image by name")
	}

	switch len(out.Images) {
	case 0:
		return "", nil
	case 1:
		if out.Images[0].ImageId == nil {
			return "", fmt.Errorf("image %q has no image id", name)
		}
		return *out.Images[0].ImageId, nil
	default:
		return "", fmt.Errorf("found %d images named %q, expected at most one", len(out.Images), name)
	}
}

// RegisterImageIfAbsent registers a bootable image for the snapshot unless an
// image with the same name already exists, waits for it to become available,
// and, when public, grants the all-accounts launch permission. The grant is
// reapplied on every call, including when the image pre-existed.
func (c *Client) RegisterImageIfAbsent(ctx context.Context, name string, d *descriptor.Descriptor, snapshotID string, public bool) (string, error) {
	imageID, err := c.FindImageByName(ctx, name)
	if err != nil {
		return "", err
	}

	if imageID != "" {
		slog.Info("image_already_registered", "name", name, "image_id", imageID)
	} else {
		architecture, err := d.Architecture()
		if err != nil {
			return "", err
		}

		slog.Info("image_register_start", "name", name, "snapshot_id", snapshotID, "architecture", architecture)

		out, err := c.api.RegisterImage(ctx, &ec2.RegisterImageInput{
			Name:         aws.String(name),
			Architecture: architecture,
			BootMode:     ec2types.BootModeValues(d.BootMode),
			BlockDeviceMappings: []ec2types.BlockDeviceMapping{
				{
					DeviceName: aws.String(rootDeviceName),
					Ebs: &ec2types.EbsBlockDevice{
						SnapshotId: aws.String(snapshotID),
						VolumeType: ec2types.VolumeTypeGp3,
					},
				},
			},
			RootDeviceName:     aws.String(rootDeviceName),
			VirtualizationType: aws.String(virtualization),
			EnaSupport:         aws.Bool(true),
			ImdsSupport:        ec2types.ImdsSupportValuesV20,
			SriovNetSupport:    aws.String(sriovNetSupport),
		})
		if err != nil {
			slog.Error("image_register_failed", "name", name, "error", err)
			return "", errors.Wrap(err, "failed to register image")
		}
		if out.ImageId == nil {
			return "", fmt.Errorf("register image response missing image id")
		}
		imageID = *out.ImageId
	}

	if err := c.waitImageAvailable(ctx, imageID); err != nil {
		return "", err
	}

	if public {
		if err := c.MakeImagePublic(ctx, imageID); err != nil {
			return "", err
		}
	}

	slog.Info("image_registered", "name", name, "image_id", imageID)
	return imageID, nil
}

// MakeImagePublic grants launch permission to all accounts. Safe to reapply.
func (c *Client) MakeImagePublic(ctx context.Context, imageID string) error {
	slog.Info("image_make_public", "image_id", imageID, "region", c.region)

	_, err := c.api.ModifyImageAttribute(ctx, &ec2.ModifyImageAttributeInput{
		ImageId:   aws.String(imageID),
		Attribute: aws.String("launchPermission"),
		LaunchPermission: &ec2types.LaunchPermissionModifications{
			Add: []ec2types.LaunchPermission{
				{Group: ec2types.PermissionGroupAll},
			},
		},
	})
	if err != nil {
		slog.Error("image_make_public_failed", "image_id", imageID, "error", err)
		return errors.Wrap(err, "failed to modify launch permission")
	}
	return nil
}

// ListImagesByPrefix lists images owned by this account whose name starts
// with the given prefix.
func (c *Client) ListImagesByPrefix(ctx context.Context, prefix string) ([]ec2types.Image, error) {
	out, err := c.api.DescribeImages(ctx, &ec2.DescribeImagesInput{
		Owners: []string{"self"},
		Filters: []ec2types.Filter{
			{Name: aws.String("name"), Values: []string{prefix + "*"}},
		},
	})
	if err != nil {
		slog.Error("image_list_failed", "prefix", prefix, "error", err)
		return nil, errors.Wrap(err, "failed to list images")
	}
	return out.Images, nil
}

func (c *Client) waitImageAvailable(ctx context.Context, imageID string) error {
	slog.Info("image_wait_available", "image_id", imageID, "region", c.region)

	waiter := ec2.NewImageAvailableWaiter(c.api)
	if err := waiter.Wait(ctx, &ec2.DescribeImagesInput{
		ImageIds: []string{imageID},
	}, imageWaitTimeout); err != nil {
		slog.Error("image_wait_failed", "image_id", imageID, "error", err)
		return errors.Wrap(err, "failed waiting for image availability")
	}
	return nil
}
