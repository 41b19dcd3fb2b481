// Package preflight validates the environment before an operation is planned.
// The checks are read-only with one exception: the writability probe creates
// and removes a temporary file in the storage root.
package preflight

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/chainsync/chainsync/pkg/util"
)

// CheckSourceAccessible validates that the source path exists and is a
// directory.
func CheckSourceAccessible(srcPath string) error {
	srcInfo, err := os.Stat(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("source directory %s does not exist", srcPath)
		}
		return fmt.Errorf("cannot stat source directory %s: %w", srcPath, err)
	}

	if !srcInfo.IsDir() {
		return fmt.Errorf("source path %s is not a directory", srcPath)
	}

	return nil
}

// CheckStorageRootAccessible ensures the storage root is usable before any
// snapshot directory is created under it. It provides more user-friendly
// errors than letting os.MkdirAll fail.
//
// The checks include:
//  1. On Windows, verifies that the drive or network share (e.g. "Z:",
//     "\\Server\Share") exists.
//  2. If the storage root exists, confirms it is a directory.
//  3. If it does not exist, confirms its parent directory is accessible.
//  4. On Unix, if the path looks like a mount point, verifies the device is
//     actually mounted, so backups never land on a "ghost" directory sitting
//     on the system disk. This walks up from the storage root to the deepest
//     directory that actually exists.
func CheckStorageRootAccessible(storageRoot string) error {
	if err := checkVolumeExists(storageRoot); err != nil {
		return err
	}

	info, err := os.Stat(storageRoot)
	if os.IsNotExist(err) {
		// The root doesn't exist yet. Find the deepest existing ancestor and
		// validate that one instead.
		ancestor := storageRoot
		for {
			parent := filepath.Dir(ancestor)
			if parent == ancestor {
				break // Hit root.
			}
			if _, err := os.Stat(parent); err == nil {
				ancestor = parent
				break
			}
			ancestor = parent
		}

		if err := validateMountPoint(ancestor); err != nil {
			return err
		}

		// The ancestor is fine, but MkdirAll still needs an accessible
		// immediate parent.
		parentDir := filepath.Dir(storageRoot)
		if _, err := os.Stat(parentDir); os.IsNotExist(err) {
			return fmt.Errorf("storage root and its parent directory do not exist: %s", parentDir)
		} else if err != nil {
			return fmt.Errorf("cannot access parent directory %s: %w", parentDir, err)
		}

		return nil
	} else if err != nil {
		return fmt.Errorf("cannot access storage root: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("storage root exists but is not a directory: %s", storageRoot)
	}

	return validateMountPoint(storageRoot)
}

// CheckStorageRootWritable ensures the storage root can be created and is
// writable by performing filesystem modifications.
func CheckStorageRootWritable(storageRoot string) error {
	if err := os.MkdirAll(storageRoot, util.UserWritableDirPerms); err != nil {
		return fmt.Errorf("failed to create storage root %s: %w", storageRoot, err)
	}

	// A thorough write check: create and delete a temporary file.
	tempFile := filepath.Join(storageRoot, ".chainsync-writetest.tmp")
	f, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("storage root %s is not writable: %w", storageRoot, err)
	}
	f.Close()
	_ = os.Remove(tempFile)
	return nil
}
