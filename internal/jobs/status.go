package jobs

import (
	"fmt"
	"strings"
)

// Status is the position of a job in the application funnel.
type Status string

const (
	StatusDiscovered Status = "discovered"
	StatusSaved      Status = "saved"
	StatusApplying   Status = "applying"
	StatusApplied    Status = "applied"
	StatusScreening  Status = "screening"
	StatusInterview  Status = "interview"
	StatusOffer      Status = "offer"
	StatusRejected   Status = "rejected"
)

var allStatuses = []Status{
	StatusDiscovered,
	StatusSaved,
	StatusApplying,
	StatusApplied,
	StatusScreening,
	StatusInterview,
	StatusOffer,
	StatusRejected,
}

// Statuses lists every status in funnel order.
func Statuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus converts user input into a Status.
func ParseStatus(s string) (Status, error) {
	v := Status(strings.ToLower(strings.TrimSpace(s)))
	for _, st := range allStatuses {
		if st == v {
			return st, nil
		}
	}
	return "", fmt.Errorf("invalid job status %q", s)
}

func (s Status) String() string { return string(s) }
