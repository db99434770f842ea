package pipeline

import "github.com/amiup/amiup/pkg/descriptor"

// PublishRequest is the FSM input
type PublishRequest struct {
	Descriptor descriptor.Descriptor
	Bucket     string
	// ImageName is the logical image name every remote identity derives from.
	ImageName     string
	CopyToRegions bool
	Public        bool
}

// PublishResponse is the FSM output (accumulated across transitions)
type PublishResponse struct {
	ExecutionID string

	// From Upload
	ImageName string

	// From ImportSnapshot
	SnapshotID string

	// From RegisterImage
	ImageID      string
	SourceRegion string

	// From Replicate
	Images map[string]string

	// From Complete
	Status string
}

// State names
const (
	StateUpload         = "upload"
	StateImportSnapshot = "import_snapshot"
	StateRegisterImage  = "register_image"
	StateReplicate      = "replicate"
	StateComplete       = "complete"
	StateFailed         = "failed"
)

// StatusPublished marks a run whose images are live in every target region.
const StatusPublished = "published"
