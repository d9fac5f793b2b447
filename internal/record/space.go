package record

import (
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/tphakala/adcrec/internal/errors"
)

// DiskSpaceInfo holds detailed disk space information.
type DiskSpaceInfo struct {
	TotalBytes uint64
	FreeBytes  uint64 // available to unprivileged users
}

// UsedPercent returns the used share of the filesystem, 0..100.
func (d DiskSpaceInfo) UsedPercent() float64 {
	if d.TotalBytes == 0 {
		return 0
	}
	return float64(d.TotalBytes-d.FreeBytes) / float64(d.TotalBytes) * 100
}

// GetDiskSpace returns space figures for the filesystem containing dir.
// The directory is created first so a fresh output path can be checked.
func GetDiskSpace(dir string) (DiskSpaceInfo, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return DiskSpaceInfo{}, errors.New(err).
			Component(ComponentRecord).
			Category(errors.CategoryFileIO).
			Context("path", dir).
			Build()
	}
	usage, err := disk.Usage(dir)
	if err != nil {
		return DiskSpaceInfo{}, errors.New(fmt.Errorf("failed to get disk stats: %w", err)).
			Component(ComponentRecord).
			Category(errors.CategorySystem).
			Context("path", dir).
			Build()
	}
	return DiskSpaceInfo{TotalBytes: usage.Total, FreeBytes: usage.Free}, nil
}

// CheckFreeSpace fails with a limit error when dir's filesystem has less than
// minFreeMB mebibytes available. A non-positive minimum disables the check.
func CheckFreeSpace(dir string, minFreeMB int) error {
	if minFreeMB <= 0 {
		return nil
	}
	info, err := GetDiskSpace(dir)
	if err != nil {
		return err
	}
	freeMB := info.FreeBytes / (1024 * 1024)
	if freeMB < uint64(minFreeMB) {
		return errors.New(fmt.Errorf("insufficient disk space: %w", ErrInsufficientSpace)).
			Component(ComponentRecord).
			Category(errors.CategoryLimit).
			Context("path", dir).
			Context("free_mb", freeMB).
			Context("required_mb", minFreeMB).
			Build()
	}
	return nil
}
