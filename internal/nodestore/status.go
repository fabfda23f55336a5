package nodestore

import "fmt"

// Status is the execution state of an asset within one run.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusMaterialized
	StatusFailed
	StatusSkipped
)

var statusNames = map[Status]string{
	StatusPending:      "pending",
	StatusRunning:      "running",
	StatusMaterialized: "materialized",
	StatusFailed:       "failed",
	StatusSkipped:      "skipped",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// MarshalText renders the status by name in reports.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a status name.
func (s *Status) UnmarshalText(b []byte) error {
	for st, name := range statusNames {
		if name == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", string(b))
}

// IsTerminal reports whether the status is final for the run.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusMaterialized, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// CanTransition reports whether the lifecycle allows from → to.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusRunning || to == StatusSkipped
	case StatusRunning:
		return to == StatusMaterialized || to == StatusFailed
	default:
		return false
	}
}
