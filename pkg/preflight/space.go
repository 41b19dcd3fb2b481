package preflight

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/chainsync/chainsync/pkg/util"
)

// usageFn allows mocking disk usage queries for testing.
var usageFn = disk.Usage

// SpaceCheck is the result of a storage capacity evaluation for a full backup.
type SpaceCheck struct {
	RequiredBytes  uint64 // Bytes currently used on the source filesystem.
	AvailableBytes uint64 // Bytes free on the storage filesystem.
}

// Sufficient reports whether the storage side can hold a complete copy of the
// source.
func (s SpaceCheck) Sufficient() bool {
	return s.AvailableBytes >= s.RequiredBytes
}

// InsufficientSpaceError reports a failed capacity gate with both sides of
// the comparison, so the operator knows how much is missing.
type InsufficientSpaceError struct {
	Required  uint64
	Available uint64
	Target    string
}

func (e *InsufficientSpaceError) Error() string {
	return fmt.Sprintf("not enough space on %s: %s required, %s available",
		e.Target, util.FormatBytes(e.Required), util.FormatBytes(e.Available))
}

// CheckSpaceForFull compares the used bytes of the source filesystem against
// the free bytes of the storage filesystem. Hard-linked incrementals are
// cheap, so only a full backup needs this gate.
//
// The comparison is an estimate: exclusions shrink the real transfer and
// rsync needs no scratch space, so used-vs-free errs on the safe side.
func CheckSpaceForFull(sourcePath, storageRoot string) (SpaceCheck, error) {
	sourceUsage, err := usageFn(sourcePath)
	if err != nil {
		return SpaceCheck{}, fmt.Errorf("could not determine usage of source %s: %w", sourcePath, err)
	}

	// Measure against the deepest existing ancestor: the gate must be able
	// to run before anything creates the storage root.
	storageUsage, err := usageFn(deepestExisting(storageRoot))
	if err != nil {
		return SpaceCheck{}, fmt.Errorf("could not determine free space of storage %s: %w", storageRoot, err)
	}

	check := SpaceCheck{
		RequiredBytes:  sourceUsage.Used,
		AvailableBytes: storageUsage.Free,
	}
	if !check.Sufficient() {
		return check, &InsufficientSpaceError{
			Required:  check.RequiredBytes,
			Available: check.AvailableBytes,
			Target:    storageRoot,
		}
	}
	return check, nil
}

// deepestExisting walks up from path to the closest directory that exists.
func deepestExisting(path string) string {
	for {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(path)
		if parent == path {
			return path
		}
		path = parent
	}
}
