package constants

// JobStatus is the canonical lifecycle status for rows in jobs.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusPending    JobStatus = "pending"    // created, not yet picked up
	JobStatusProcessing JobStatus = "processing" // a stage is running
	JobStatusCompleted  JobStatus = "completed"  // requested stage finished for every document
	JobStatusFailed     JobStatus = "failed"     // terminal failure, error message set
)

// CanTransition reports whether moving from -> to is a legal status change.
// Processing is always the pivot: there is no pending -> terminal shortcut.
// A completed job may only re-enter processing when a later stage is
// triggered; the only other way out of completed is deletion.
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobStatusPending:
		return to == JobStatusProcessing
	case JobStatusProcessing:
		return to == JobStatusCompleted || to == JobStatusFailed
	case JobStatusCompleted:
		return to == JobStatusProcessing // next stage trigger
	case JobStatusFailed:
		return to == JobStatusPending // explicit retry
	default:
		return false
	}
}
