package descriptor

import (
	"os"
	"path/filepath"
	"testing"

	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

func TestArchitecture_ClosedMapping(t *testing.T) {
	tests := []struct {
		system    string
		want      ec2types.ArchitectureValues
		shouldErr bool
	}{
		{"x86_64-linux", ec2types.ArchitectureValuesX8664, false},
		{"aarch64-linux", ec2types.ArchitectureValuesArm64, false},
		{"riscv64-linux", "", true},
		{"x86_64-darwin", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.system, func(t *testing.T) {
			d := &Descriptor{System: tt.system}
			got, err := d.Architecture()
			if tt.shouldErr {
				if err == nil {
					t.Fatalf("expected error for system %q", tt.system)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("architecture mismatch: got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestImageName(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		runID  string
		want   string
	}{
		{"with run id", "", "42", "nixos-x86_64-linux.42"},
		{"without run id", "", "", "nixos-x86_64-linux"},
		{"with prefix", "staging-", "7", "staging-nixos-x86_64-linux.7"},
	}

	d := &Descriptor{Label: "nixos", System: "x86_64-linux"}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.ImageName(tt.prefix, tt.runID); got != tt.want {
				t.Errorf("image name mismatch: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestImageFormat_Default(t *testing.T) {
	d := &Descriptor{}
	if got := d.ImageFormat(); got != "VHD" {
		t.Errorf("expected default format VHD, got %q", got)
	}

	d.Format = "RAW"
	if got := d.ImageFormat(); got != "RAW" {
		t.Errorf("expected explicit format RAW, got %q", got)
	}
}

func TestValidate(t *testing.T) {
	valid := Descriptor{
		File:     "disk.img",
		Label:    "nixos",
		System:   "x86_64-linux",
		BootMode: "uefi",
	}

	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected error for valid descriptor: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Descriptor)
	}{
		{"empty file", func(d *Descriptor) { d.File = "" }},
		{"empty label", func(d *Descriptor) { d.Label = "" }},
		{"unknown system", func(d *Descriptor) { d.System = "mips-linux" }},
		{"unknown boot mode", func(d *Descriptor) { d.BootMode = "bios" }},
		{"empty boot mode", func(d *Descriptor) { d.BootMode = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid
			tt.mutate(&d)
			if err := d.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.json")
	content := `{"file": "disk.img", "label": "nixos", "system": "x86_64-linux", "boot_mode": "uefi", "format": "VHD"}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write descriptor: %v", err)
	}

	d, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load descriptor: %v", err)
	}
	if d.Label != "nixos" || d.System != "x86_64-linux" || d.Format != "VHD" {
		t.Errorf("descriptor mismatch: %+v", d)
	}
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.json")
	if err := os.WriteFile(path, []byte(`{"file": "disk.img"}`), 0644); err != nil {
		t.Fatalf("failed to write descriptor: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected error for incomplete descriptor")
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
