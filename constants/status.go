package constants

// ProcessingStatus is the lifecycle stage of a document's extraction run.
type ProcessingStatus string

// Stable values (store these exact strings in DB).
const (
	StatusPending    ProcessingStatus = "pending"    // registered, not started
	StatusProcessing ProcessingStatus = "processing" // extraction run in progress
	StatusCompleted  ProcessingStatus = "completed"  // all fields evaluated
	StatusFailed     ProcessingStatus = "failed"     // terminal failure
)

var allStatuses = []ProcessingStatus{StatusPending, StatusProcessing, StatusCompleted, StatusFailed}

// ParseStatus maps a stored string back to a ProcessingStatus.
func ParseStatus(s string) (ProcessingStatus, bool) {
	for _, st := range allStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}
