// Package pipeline implements the publish workflow as a finite state machine:
// upload the image to object storage, import it as an EBS snapshot, register
// the AMI, replicate it across regions. Each stage re-derives existence from the
// provider before creating anything, so rerunning the whole pipeline after a
// partial failure is the recovery mechanism.
package pipeline

import (
	"context"

	"github.com/amiup/amiup/pkg/db"
	"github.com/amiup/amiup/pkg/descriptor"
	"github.com/amiup/amiup/pkg/errors"
	"github.com/google/uuid"
	"github.com/superfly/fsm"
)

// ObjectStore is the storage capability the upload stage consumes.
type ObjectStore interface {
	UploadIfAbsent(ctx context.Context, key, localPath string) error
}

// Compute is the source-region compute capability.
type Compute interface {
	Region() string
	ImportSnapshot(ctx context.Context, bucket, key, format string) (string, error)
	RegisterImageIfAbsent(ctx context.Context, name string, d *descriptor.Descriptor, snapshotID string, public bool) (string, error)
	OtherRegions(ctx context.Context) ([]string, error)
}

// RegionalCompute is the per-target-region capability of the replication stage.
type RegionalCompute interface {
	CopyImageFrom(ctx context.Context, sourceImageID, sourceRegion, name string, public bool) (string, error)
}

// RegionalComputeFunc builds a RegionalCompute for one target region.
type RegionalComputeFunc func(ctx context.Context, region string) (RegionalCompute, error)

// Machine holds dependencies for FSM transitions
type Machine struct {
	store         ObjectStore
	compute       Compute
	regional      RegionalComputeFunc
	repo          *db.Repository
	executionID   string
	maxRetries    int
	maxConcurrent int
}

// NewMachine creates a new FSM machine with dependencies. The repository may
// be nil, in which case no publication journal is written.
func NewMachine(
	store ObjectStore,
	compute Compute,
	regional RegionalComputeFunc,
	repo *db.Repository,
	maxRetries int,
	maxConcurrentCopies int,
) *Machine {
	return &Machine{
		store:         store,
		compute:       compute,
		regional:      regional,
		repo:          repo,
		executionID:   uuid.NewString(),
		maxRetries:    maxRetries,
		maxConcurrent: maxConcurrentCopies,
	}
}

// ExecutionID returns the id correlating this run's log lines and journal rows.
func (m *Machine) ExecutionID() string {
	return m.executionID
}

// Register registers the publish FSM
func (m *Machine) Register(ctx context.Context, manager *fsm.Manager) (fsm.Start[PublishRequest, PublishResponse], fsm.Resume, error) {
	start, resume, err := fsm.Register[PublishRequest, PublishResponse](manager, "publish-ami").
		Start(StateUpload, m.handleUpload).
		To(StateImportSnapshot, m.handleImportSnapshot).
		To(StateRegisterImage, m.handleRegisterImage).
		To(StateReplicate, m.handleReplicate).
		To(StateComplete, m.handleComplete).
		End(StateFailed).
		Build(ctx)

	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to register FSM")
	}

	return start, resume, nil
}
