// Package chain resolves which snapshots must be replayed to reconstruct
// the source as of a given date.
package chain

import (
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chainsync/chainsync/pkg/catalog"
)

// BackupChain is the ordered structure needed to answer "what did the source
// look like as of date D": a base full snapshot plus the incrementals to
// replay on top of it, ascending by creation instant.
type BackupChain struct {
	Base       catalog.Snapshot
	Increments []catalog.Snapshot
}

// NoFullError is returned when no full snapshot exists on or before the
// requested date.
type NoFullError struct {
	Root string
	Date time.Time
}

func (e *NoFullError) Error() string {
	return fmt.Sprintf("no full backup found in %s on or before %s", e.Root, e.Date.Format(catalog.DateLayout))
}

// Resolve selects the backup chain for a point-in-time recovery.
//
// The base is the most recent full whose creation date is on or before
// targetDate. The increments are every incremental created between the base's
// creation instant and the end of targetDate, inclusive, in replay order.
// Repeated calls against an unchanged storage root return an identical chain.
func Resolve(root string, targetDate time.Time) (BackupChain, error) {
	dayStart := targetDate.Truncate(24 * time.Hour)
	dayEnd := dayStart.Add(24*time.Hour - time.Nanosecond)

	// The two catalog scans are independent reads; run them concurrently.
	var fulls, incs []catalog.Snapshot
	var g errgroup.Group
	g.Go(func() error {
		var err error
		fulls, err = catalog.ListFulls(root)
		return err
	})
	g.Go(func() error {
		var err error
		incs, err = catalog.ListIncrementals(root)
		return err
	})
	if err := g.Wait(); err != nil {
		return BackupChain{}, err
	}

	// Base: latest full with CreatedAt <= targetDate. ListFulls returns
	// ascending order, so walk from the end.
	var base catalog.Snapshot
	found := false
	for i := len(fulls) - 1; i >= 0; i-- {
		if !fulls[i].CreatedAt.After(dayEnd) {
			base = fulls[i]
			found = true
			break
		}
	}
	if !found {
		return BackupChain{}, &NoFullError{Root: root, Date: targetDate}
	}

	// Increments: everything between the base's creation instant and the end
	// of the target day, inclusive on both ends.
	var selected []catalog.Snapshot
	for _, inc := range incs {
		if inc.CreatedAt.Before(base.CreatedAt) || inc.CreatedAt.After(dayEnd) {
			continue
		}
		selected = append(selected, inc)
	}

	sort.Slice(selected, func(i, j int) bool {
		return selected[i].CreatedAt.Before(selected[j].CreatedAt)
	})

	return BackupChain{Base: base, Increments: selected}, nil
}
