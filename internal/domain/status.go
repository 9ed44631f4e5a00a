package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status is the katcp sensor status. The numeric codes are exported as-is in the
// status metric series.
type Status int

const (
	StatusUnknown     Status = 0
	StatusNominal     Status = 1
	StatusWarn        Status = 2
	StatusError       Status = 3
	StatusFailure     Status = 4
	StatusUnreachable Status = 5
	StatusInactive    Status = 6
)

var statusNames = [...]string{
	StatusUnknown:     "unknown",
	StatusNominal:     "nominal",
	StatusWarn:        "warn",
	StatusError:       "error",
	StatusFailure:     "failure",
	StatusUnreachable: "unreachable",
	StatusInactive:    "inactive",
}

// ValidValue reports whether a reading with this status carries a meaningful value.
func (s Status) ValidValue() bool {
	return s == StatusNominal || s == StatusWarn || s == StatusError
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return statusNames[s]
}

// ParseStatus converts a katcp status name into a Status.
func ParseStatus(name string) (Status, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, candidate := range statusNames {
		if candidate == name {
			return Status(i), nil
		}
	}
	return StatusUnknown, fmt.Errorf("%w: status %q", ErrInvalidValue, name)
}

// Reading is the (value, status, timestamp) triple of a sensor at a point in time.
type Reading struct {
	Timestamp time.Time
	Status    Status
	Value     any
}
