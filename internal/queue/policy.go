package queue

import (
	"fmt"
	"strings"
)

// FullPolicy selects the behavior of Send on a full queue.
type FullPolicy int

const (
	// Block makes producers wait for room.
	Block FullPolicy = iota
	// Reject fails the Send with domain.ErrQueueFull.
	Reject
	// DropOldest evicts the oldest queued event to make room.
	DropOldest
)

// String returns the configuration name of the policy.
func (p FullPolicy) String() string {
	switch p {
	case Block:
		return "block"
	case Reject:
		return "reject"
	case DropOldest:
		return "drop-oldest"
	default:
		return "unknown"
	}
}

// ParseFullPolicy parses a policy name as produced by String.
func ParseFullPolicy(s string) (FullPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "block", "":
		return Block, nil
	case "reject":
		return Reject, nil
	case "drop-oldest", "drop_oldest", "dropoldest":
		return DropOldest, nil
	default:
		return Block, fmt.Errorf("unknown full policy %q (want block, reject or drop-oldest)", s)
	}
}
