// Package catalog enumerates the snapshot directories under a storage root
// and classifies them as full or incremental backups.
//
// A snapshot's kind and creation instant are derived exclusively from its
// directory name, never from filesystem metadata. This keeps the catalog
// portable: a storage root moved to removable media and mounted elsewhere
// still classifies identically.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"
)

// Naming layout constants. Date strings sort chronologically by construction,
// so the lexicographically greatest full name is also the most recent one.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "150405"

	FullSuffix = "-backup-full"
	IncMarker  = "-backup-inc-"
)

var (
	fullNamePattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})-backup-full$`)
	incNamePattern  = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})-backup-inc-(\d{6})$`)
)

// ErrNoFullFound is returned when a storage root contains no full snapshot.
var ErrNoFullFound = errors.New("no full backup found")

// Kind classifies a snapshot directory.
type Kind int

const (
	Full Kind = iota
	Incremental
)

func (k Kind) String() string {
	switch k {
	case Full:
		return "full"
	case Incremental:
		return "incremental"
	default:
		return fmt.Sprintf("unknown_kind(%d)", int(k))
	}
}

// Snapshot describes one backup directory found under the storage root.
type Snapshot struct {
	Kind      Kind
	Name      string    // Directory name, e.g. "2025-01-02-backup-inc-093000".
	Path      string    // Absolute location on disk.
	CreatedAt time.Time // Parsed from the name: date for fulls, date+time for incrementals. UTC.
}

// FullName returns the directory name for a full snapshot created on the
// given date.
func FullName(date time.Time) string {
	return date.Format(DateLayout) + FullSuffix
}

// IncrementalName returns the directory name for an incremental snapshot
// created at the given instant.
func IncrementalName(at time.Time) string {
	return at.Format(DateLayout) + IncMarker + at.Format(TimeLayout)
}

// ParseName classifies a directory name. Names that match neither pattern
// return ok=false; they are never an error, so foreign directories in the
// storage root are simply ignored.
func ParseName(root, name string) (Snapshot, bool) {
	if m := fullNamePattern.FindStringSubmatch(name); m != nil {
		createdAt, err := time.Parse(DateLayout, m[1])
		if err != nil {
			return Snapshot{}, false // Matched shape but not a real date, e.g. month 13.
		}
		return Snapshot{
			Kind:      Full,
			Name:      name,
			Path:      filepath.Join(root, name),
			CreatedAt: createdAt,
		}, true
	}

	if m := incNamePattern.FindStringSubmatch(name); m != nil {
		createdAt, err := time.Parse(DateLayout+"-"+TimeLayout, m[1]+"-"+m[2])
		if err != nil {
			return Snapshot{}, false
		}
		return Snapshot{
			Kind:      Incremental,
			Name:      name,
			Path:      filepath.Join(root, name),
			CreatedAt: createdAt,
		}, true
	}

	return Snapshot{}, false
}

// list scans the storage root and returns all snapshots of the requested
// kind, sorted ascending by creation instant.
func list(root string, kind Kind) ([]Snapshot, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read storage root %s: %w", root, err)
	}

	var snapshots []Snapshot
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		snapshot, ok := ParseName(root, entry.Name())
		if !ok || snapshot.Kind != kind {
			continue
		}
		snapshots = append(snapshots, snapshot)
	}

	sort.Slice(snapshots, func(i, j int) bool {
		if snapshots[i].CreatedAt.Equal(snapshots[j].CreatedAt) {
			return snapshots[i].Name < snapshots[j].Name
		}
		return snapshots[i].CreatedAt.Before(snapshots[j].CreatedAt)
	})
	return snapshots, nil
}

// ListFulls returns all full snapshots under root, oldest first.
func ListFulls(root string) ([]Snapshot, error) {
	return list(root, Full)
}

// ListIncrementals returns all incremental snapshots under root, oldest first.
func ListIncrementals(root string) ([]Snapshot, error) {
	return list(root, Incremental)
}

// LatestFull returns the most recent full snapshot under root, or
// ErrNoFullFound if the storage root holds no full backup.
func LatestFull(root string) (Snapshot, error) {
	fulls, err := ListFulls(root)
	if err != nil {
		return Snapshot{}, err
	}
	if len(fulls) == 0 {
		return Snapshot{}, fmt.Errorf("%w in %s", ErrNoFullFound, root)
	}
	return fulls[len(fulls)-1], nil
}
