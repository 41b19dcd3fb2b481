//go:build !windows

package preflight

import (
	"fmt"
	"os"
	"strings"
	"syscall"
)

// checkVolumeExists is a Windows concern; on Unix the mount-point validation
// below covers the equivalent failure mode.
func checkVolumeExists(path string) error {
	return nil
}

// mountLocationPrefixes are the conventional directories external drives are
// mounted under. Only paths below one of these are subjected to the ghost
// directory check.
var mountLocationPrefixes = []string{"/mnt", "/media", "/run/media", "/Volumes"}

func underMountLocation(path string) bool {
	for _, prefix := range mountLocationPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// deviceOf returns the device id the path resides on. os.Stat surfaces the
// kernel's stat result as a *syscall.Stat_t on all Unix-like platforms.
func deviceOf(path string) (uint64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, fmt.Errorf("unsupported platform for syscall.Stat_t")
	}
	return uint64(stat.Dev), nil
}

// validateMountPoint checks whether a path that should live on an external
// drive actually does. A path under /mnt or /media that resides on the same
// device as "/" is a ghost directory: the drive is not mounted and a backup
// would silently fill the system disk.
func validateMountPoint(path string) error {
	if !underMountLocation(path) {
		return nil // Storage in arbitrary directories is intentional.
	}

	rootDev, err := deviceOf("/")
	if err != nil {
		return err
	}

	pathDev, err := deviceOf(path)
	if err != nil {
		return err
	}

	if pathDev == rootDev {
		return fmt.Errorf("path '%s' is on the root filesystem (system disk). "+
			"Ensure your backup drive is mounted", path)
	}

	return nil
}
