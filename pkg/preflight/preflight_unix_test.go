//go:build !windows

package preflight

import (
	"strings"
	"testing"
)

func TestUnderMountLocation(t *testing.T) {
	cases := map[string]bool{
		"/mnt":               true,
		"/mnt/backup":        true,
		"/media/usb/backup":  true,
		"/run/media/u/drive": true,
		"/Volumes/Backup":    true,
		"/tmp/backup":        false,
		"/home/user/backup":  false,
		"/mntx":              false,
		"/":                  false,
	}
	for path, want := range cases {
		if got := underMountLocation(path); got != want {
			t.Errorf("underMountLocation(%q) = %v, want %v", path, got, want)
		}
	}
}

// withMountLocations narrows the mount-location prefixes for a test so the
// device comparison can run against directories the test can actually create.
func withMountLocations(t *testing.T, prefixes []string) {
	t.Helper()
	original := mountLocationPrefixes
	mountLocationPrefixes = prefixes
	t.Cleanup(func() { mountLocationPrefixes = original })
}

func TestDeviceOf(t *testing.T) {
	// The stat result must be usable on every Unix-like platform; a failed
	// type assertion here would reject every storage root under /mnt.
	if _, err := deviceOf("/"); err != nil {
		t.Fatalf("deviceOf(/) failed: %v", err)
	}

	if _, err := deviceOf("/definitely/not/there"); err == nil {
		t.Error("expected an error for a missing path")
	}
}

func TestValidateMountPoint(t *testing.T) {
	t.Run("Outside mount locations passes", func(t *testing.T) {
		if err := validateMountPoint(t.TempDir()); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("Device comparison under a mount location", func(t *testing.T) {
		dir := t.TempDir()
		withMountLocations(t, []string{dir})

		rootDev, err := deviceOf("/")
		if err != nil {
			t.Fatalf("deviceOf(/) failed: %v", err)
		}
		dirDev, err := deviceOf(dir)
		if err != nil {
			t.Fatalf("deviceOf(%s) failed: %v", dir, err)
		}

		err = validateMountPoint(dir)
		if dirDev == rootDev {
			// A directory on the system disk pretending to be a mount point
			// is the ghost case and must be rejected.
			if err == nil || !strings.Contains(err.Error(), "root filesystem") {
				t.Errorf("expected a ghost directory error, got %v", err)
			}
		} else {
			// The directory lives on its own device, i.e. something is
			// mounted there; that is exactly the healthy case.
			if err != nil {
				t.Errorf("expected a mounted device to pass, got %v", err)
			}
		}
	})
}
