package ingest

import "time"

// Result is the per-file ingest outcome.
type Result struct {
	SourcePath   string
	JobID        string
	HashHex      string
	Deduplicated bool
	IngestedAt   time.Time
}

// Stats summarizes an inbox run.
type Stats struct {
	Seen         uint32
	Queued       uint32
	Deduplicated uint32
	Failed       uint32
}
