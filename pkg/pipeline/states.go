package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/amiup/amiup/pkg/db"
	"github.com/amiup/amiup/pkg/errors"
	"github.com/superfly/fsm"
)

// guardRetries aborts a transition once the retry budget is spent. The budget
// defaults to 1: transient provider errors surface undecorated and rerunning
// the whole pipeline is the retry mechanism, made safe by per-stage
// idempotency.
func (m *Machine) guardRetries(ctx context.Context, state, imageName string) error {
	if retryCount := fsm.RetryFromContext(ctx); retryCount >= uint64(m.maxRetries) {
		slog.Error("max_retries_exceeded", "state", state, "image_name", imageName, "max_retries", m.maxRetries)
		return fmt.Errorf("max retries (%d) exceeded in state %s", m.maxRetries, state)
	}
	return nil
}

// handleUpload ensures the image file is present in object storage
func (m *Machine) handleUpload(ctx context.Context, req *fsm.Request[PublishRequest, PublishResponse]) (*fsm.Response[PublishResponse], error) {
	slog.Info("fsm_state_upload", "image_name", req.Msg.ImageName, "execution_id", m.executionID)

	if err := m.guardRetries(ctx, StateUpload, req.Msg.ImageName); err != nil {
		return nil, fsm.Abort(err)
	}

	resp := req.W.Msg
	if resp == nil {
		resp = &PublishResponse{}
	}
	resp.ExecutionID = m.executionID
	resp.ImageName = req.Msg.ImageName

	// The S3 key is the logical image name.
	if err := m.store.UploadIfAbsent(ctx, req.Msg.ImageName, req.Msg.Descriptor.File); err != nil {
		slog.Error("upload_failed", "image_name", req.Msg.ImageName, "error", err)
		return nil, errors.Wrap(err, "upload stage failed")
	}

	return fsm.NewResponse(resp), nil
}

// handleImportSnapshot converts the stored object into an EBS snapshot
func (m *Machine) handleImportSnapshot(ctx context.Context, req *fsm.Request[PublishRequest, PublishResponse]) (*fsm.Response[PublishResponse], error) {
	slog.Info("fsm_state_import_snapshot", "image_name", req.Msg.ImageName, "execution_id", m.executionID)

	if err := m.guardRetries(ctx, StateImportSnapshot, req.Msg.ImageName); err != nil {
		return nil, fsm.Abort(err)
	}

	resp := req.W.Msg
	if resp == nil {
		return nil, fsm.Abort(fmt.Errorf("response not initialized"))
	}

	snapshotID, err := m.compute.ImportSnapshot(ctx, req.Msg.Bucket, resp.ImageName, req.Msg.Descriptor.ImageFormat())
	if err != nil {
		slog.Error("snapshot_import_failed", "image_name", resp.ImageName, "error", err)
		return nil, errors.Wrap(err, "snapshot import stage failed")
	}
	resp.SnapshotID = snapshotID

	return fsm.NewResponse(resp), nil
}

// handleRegisterImage registers the bootable image for the snapshot
func (m *Machine) handleRegisterImage(ctx context.Context, req *fsm.Request[PublishRequest, PublishResponse]) (*fsm.Response[PublishResponse], error) {
	slog.Info("fsm_state_register_image", "image_name", req.Msg.ImageName, "execution_id", m.executionID)

	if err := m.guardRetries(ctx, StateRegisterImage, req.Msg.ImageName); err != nil {
		return nil, fsm.Abort(err)
	}

	resp := req.W.Msg
	if resp == nil || resp.SnapshotID == "" {
		return nil, fsm.Abort(fmt.Errorf("no snapshot id from import stage"))
	}

	d := req.Msg.Descriptor
	imageID, err := m.compute.RegisterImageIfAbsent(ctx, resp.ImageName, &d, resp.SnapshotID, req.Msg.Public)
	if err != nil {
		slog.Error("image_registration_failed", "image_name", resp.ImageName, "error", err)
		return nil, errors.Wrap(err, "image registration stage failed")
	}

	resp.ImageID = imageID
	resp.SourceRegion = m.compute.Region()

	return fsm.NewResponse(resp), nil
}

// handleReplicate fans the image out to every other region when requested.
// When replication is off the stage reduces to seeding the result map with
// the source region.
func (m *Machine) handleReplicate(ctx context.Context, req *fsm.Request[PublishRequest, PublishResponse]) (*fsm.Response[PublishResponse], error) {
	slog.Info("fsm_state_replicate", "image_name", req.Msg.ImageName, "copy_to_regions", req.Msg.CopyToRegions, "execution_id", m.executionID)

	if err := m.guardRetries(ctx, StateReplicate, req.Msg.ImageName); err != nil {
		return nil, fsm.Abort(err)
	}

	resp := req.W.Msg
	if resp == nil || resp.ImageID == "" {
		return nil, fsm.Abort(fmt.Errorf("no image id from registration stage"))
	}

	if !req.Msg.CopyToRegions {
		resp.Images = map[string]string{resp.SourceRegion: resp.ImageID}
		return fsm.NewResponse(resp), nil
	}

	targets, err := m.compute.OtherRegions(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "replication stage failed")
	}

	images, err := m.replicate(ctx, resp.ImageID, resp.ImageName, resp.SourceRegion, targets, req.Msg.Public)
	if err != nil {
		slog.Error("replication_failed", "image_name", resp.ImageName, "error", err)
		return nil, errors.Wrap(err, "replication stage failed")
	}
	resp.Images = images

	return fsm.NewResponse(resp), nil
}

// handleComplete journals the publication and marks the run done
func (m *Machine) handleComplete(ctx context.Context, req *fsm.Request[PublishRequest, PublishResponse]) (*fsm.Response[PublishResponse], error) {
	slog.Info("fsm_state_complete", "image_name", req.Msg.ImageName, "execution_id", m.executionID)

	if err := m.guardRetries(ctx, StateComplete, req.Msg.ImageName); err != nil {
		return nil, fsm.Abort(err)
	}

	resp := req.W.Msg
	if resp == nil || len(resp.Images) == 0 {
		return nil, fsm.Abort(fmt.Errorf("no region image map from replication stage"))
	}

	if m.repo != nil {
		regions := make([]string, 0, len(resp.Images))
		for region := range resp.Images {
			regions = append(regions, region)
		}
		sort.Strings(regions)

		for _, region := range regions {
			pub := &db.Publication{
				ExecutionID: m.executionID,
				ImageName:   resp.ImageName,
				SnapshotID:  resp.SnapshotID,
				Region:      region,
				ImageID:     resp.Images[region],
			}
			if err := m.repo.Record(pub); err != nil {
				return nil, errors.Wrap(err, "failed to journal publication")
			}
		}
	}

	resp.Status = StatusPublished
	slog.Info("fsm_complete", "image_name", resp.ImageName, "regions", len(resp.Images), "execution_id", m.executionID)

	return fsm.NewResponse(resp), nil
}
