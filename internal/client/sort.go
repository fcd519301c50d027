package client

import (
	"sort"
	"time"

	"github.com/kmrl/dochub/internal/jobs"
)

// SortJobs orders list newest first. RFC 3339 timestamps compare as instants; when either
// side does not parse, the raw strings are compared. Ties fall back to id.
func SortJobs(list []jobs.Job) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if c := compareTimestamps(a.Timestamp, b.Timestamp); c != 0 {
			return c > 0
		}
		return a.ID < b.ID
	})
}

func compareTimestamps(a, b string) int {
	ta, errA := time.Parse(time.RFC3339Nano, a)
	tb, errB := time.Parse(time.RFC3339Nano, b)
	if errA == nil && errB == nil {
		return ta.Compare(tb)
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
