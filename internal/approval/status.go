// Package approval models the human-in-the-loop outcome of a run and the
// ways a decision reaches a waiting run.
package approval

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Status is the tri-state approval outcome. The zero value is Pending.
type Status int

const (
	Pending Status = iota
	Approved
	Rejected
)

func (s Status) String() string {
	switch s {
	case Approved:
		return "approved"
	case Rejected:
		return "rejected"
	default:
		return "pending"
	}
}

// Label renders the status the way dashboards display it.
func (s Status) Label() string {
	switch s {
	case Approved:
		return "Approved"
	case Rejected:
		return "Rejected"
	default:
		return "Pending"
	}
}

func (s Status) IsPending() bool { return s == Pending }

// MarshalJSON encodes Approved as true, Rejected as false and Pending as null,
// matching the sidecar format read by external approval tooling.
func (s Status) MarshalJSON() ([]byte, error) {
	switch s {
	case Approved:
		return []byte("true"), nil
	case Rejected:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

func (s *Status) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch string(b) {
	case "true":
		*s = Approved
	case "false":
		*s = Rejected
	case "null", "":
		*s = Pending
	default:
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return fmt.Errorf("approval: invalid status %s", string(b))
		}
		parsed, err := ParseStatus(str)
		if err != nil {
			return err
		}
		*s = parsed
	}
	return nil
}

func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "approved", "approve", "true":
		return Approved, nil
	case "rejected", "reject", "false":
		return Rejected, nil
	case "pending", "", "null":
		return Pending, nil
	default:
		return Pending, fmt.Errorf("approval: unknown status %q", s)
	}
}

// Decision is an operator's verdict. It has no pending state.
type Decision int

const (
	Approve Decision = iota + 1
	Reject
)

func (d Decision) String() string {
	switch d {
	case Approve:
		return "approve"
	case Reject:
		return "reject"
	default:
		return "invalid"
	}
}

// Status converts the decision into the run's approval status.
func (d Decision) Status() Status {
	switch d {
	case Approve:
		return Approved
	case Reject:
		return Rejected
	default:
		return Pending
	}
}

func ParseDecision(s string) (Decision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "approve", "approved", "yes", "y":
		return Approve, nil
	case "reject", "rejected", "no", "n":
		return Reject, nil
	default:
		return 0, fmt.Errorf("approval: decision must be approve or reject, got %q", s)
	}
}
