package session

import "strings"

// Decision is a user's answer to a plan proposal.
type Decision int

const (
	// Reject discards the proposed plan.
	Reject Decision = iota
	// Approve applies the proposed plan.
	Approve
)

// String implements fmt.Stringer.
func (d Decision) String() string {
	if d == Approve {
		return "approve"
	}
	return "reject"
}

var (
	affirmative = map[string]struct{}{"yes": {}, "y": {}, "sure": {}, "ok": {}, "okay": {}}
	negative    = map[string]struct{}{"no": {}, "n": {}, "nope": {}, "cancel": {}}
)

// ParseDecision matches the trimmed, lower-cased input exactly against the
// affirmative and negative sets. ok is false for anything else; ambiguous
// replies never default to either answer.
func ParseDecision(text string) (d Decision, ok bool) {
	s := strings.ToLower(strings.TrimSpace(text))
	if _, hit := affirmative[s]; hit {
		return Approve, true
	}
	if _, hit := negative[s]; hit {
		return Reject, true
	}
	return Reject, false
}
