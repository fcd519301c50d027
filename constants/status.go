package constants

// JobStatus is the lifecycle status of an uploaded document.
type JobStatus string

// Stable values, stored verbatim and exposed on the job API.
const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}
