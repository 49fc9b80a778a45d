package enums

import "fmt"

// ThreadStatus controls whether a forum thread accepts new posts.
type ThreadStatus string

const (
	ThreadStatusOpen   ThreadStatus = "open"
	ThreadStatusLocked ThreadStatus = "locked"
)

var validThreadStatuses = []ThreadStatus{
	ThreadStatusOpen,
	ThreadStatusLocked,
}

// String implements fmt.Stringer.
func (s ThreadStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s ThreadStatus) IsValid() bool {
	for _, candidate := range validThreadStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseThreadStatus converts raw input into a ThreadStatus.
func ParseThreadStatus(value string) (ThreadStatus, error) {
	for _, candidate := range validThreadStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid thread status %q", value)
}
