package task

import "strings"

// Canonical task statuses. External trackers report a looser vocabulary;
// NormalizeStatus folds the observed variants onto this set at the write
// boundary so the rest of the system compares against one enum.
const (
	StatusTodo       = "todo"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
	StatusCancelled  = "cancelled"
)

// NormalizeStatus maps an external tracker status onto the canonical set.
// Unknown values pass through lowercased and count as active.
func NormalizeStatus(status string) string {
	s := strings.ToLower(strings.TrimSpace(status))
	switch s {
	case "", "todo", "open", "pending":
		return StatusTodo
	case "in_progress", "in-progress", "active", "doing", "waiting":
		return StatusInProgress
	case "done", "completed", "complete", "closed":
		return StatusDone
	case "cancelled", "canceled":
		return StatusCancelled
	}
	return s
}

// IsCompleted reports whether a status (raw or normalized) belongs to the
// completed set {done, completed}.
func IsCompleted(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "done", "completed", "complete", "closed":
		return true
	}
	return false
}

// IsTerminal reports whether a status is excluded from further polling.
func IsTerminal(status string) bool {
	if IsCompleted(status) {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "cancelled", "canceled":
		return true
	}
	return false
}
