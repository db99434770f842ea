// Package descriptor loads and validates the image descriptor that drives a
// publish run. The descriptor is a small JSON record produced by the image
// build; it is read once, validated up front, and never mutated.
package descriptor

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/amiup/amiup/pkg/errors"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// DefaultFormat is the disk image format assumed when the descriptor
// does not specify one.
const DefaultFormat = "VHD"

// Descriptor describes a locally built disk image.
type Descriptor struct {
	File     string `json:"file"`
	Label    string `json:"label"`
	System   string `json:"system"`
	BootMode string `json:"boot_mode"`
	Format   string `json:"format,omitempty"`
}

// Load reads and validates a descriptor from a JSON file.
func Load(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read image descriptor")
	}

	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, errors.Wrap(err, "failed to parse image descriptor")
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Validate checks the descriptor for configuration errors. It fails before
// any remote call is made, including on system triples outside the closed
// architecture mapping.
func (d *Descriptor) Validate() error {
	if d.File == "" {
		return fmt.Errorf("descriptor field 'file' cannot be empty")
	}
	if d.Label == "" {
		return fmt.Errorf("descriptor field 'label' cannot be empty")
	}
	if _, err := d.Architecture(); err != nil {
		return err
	}
	switch ec2types.BootModeValues(d.BootMode) {
	case ec2types.BootModeValuesLegacyBios, ec2types.BootModeValuesUefi, ec2types.BootModeValuesUefiPreferred:
	default:
		return fmt.Errorf("unknown boot mode: %q", d.BootMode)
	}
	return nil
}

// Architecture maps the descriptor's system triple to an EC2 architecture.
// The mapping is closed: any triple outside it is a configuration error.
func (d *Descriptor) Architecture() (ec2types.ArchitectureValues, error) {
	switch d.System {
	case "x86_64-linux":
		return ec2types.ArchitectureValuesX8664, nil
	case "aarch64-linux":
		return ec2types.ArchitectureValuesArm64, nil
	default:
		return "", fmt.Errorf("unknown system: %q", d.System)
	}
}

// ImageFormat returns the disk image format, defaulting to DefaultFormat.
func (d *Descriptor) ImageFormat() string {
	if d.Format == "" {
		return DefaultFormat
	}
	return d.Format
}

// ImageName derives the logical image name. Every remote identity in the
// pipeline (S3 key, AMI name, import client token) is derived from it, so the
// same descriptor, prefix and run id always address the same remote resources.
func (d *Descriptor) ImageName(prefix, runID string) string {
	name := prefix + d.Label + "-" + d.System
	if runID != "" {
		name += "." + runID
	}
	return name
}
