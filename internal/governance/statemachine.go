package governance

import (
	"errors"
	"fmt"
	"strings"
)

// PromotionState is a lifecycle stage of a repository.
type PromotionState string

const (
	StateLocal         PromotionState = "LOCAL"
	StateCandidate     PromotionState = "CANDIDATE"
	StatePublicProcess PromotionState = "PUBLIC_PROCESS"
	StateGraduated     PromotionState = "GRADUATED"
	StateArchived      PromotionState = "ARCHIVED"
)

// DefaultState is assumed for repositories without a promotion_status.
const DefaultState = StateLocal

var ErrUnknownState = errors.New("unknown promotion state")

var states = []PromotionState{StateLocal, StateCandidate, StatePublicProcess, StateGraduated, StateArchived}

var transitions = map[PromotionState][]PromotionState{
	StateLocal:         {StateCandidate, StateArchived},
	StateCandidate:     {StatePublicProcess, StateLocal, StateArchived},
	StatePublicProcess: {StateGraduated, StateCandidate, StateArchived},
	StateGraduated:     {StateArchived},
	StateArchived:      {},
}

// States lists every promotion state in lifecycle order.
func States() []PromotionState {
	return append([]PromotionState(nil), states...)
}

func ParsePromotionState(s string) (PromotionState, error) {
	st := PromotionState(s)
	if _, ok := transitions[st]; !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownState, s)
	}
	return st, nil
}

// ValidTransitions returns the allowed targets of current. Unknown states and
// the terminal state both return an empty list.
func ValidTransitions(current string) []PromotionState {
	return append([]PromotionState(nil), transitions[PromotionState(current)]...)
}

// CheckTransition reports whether current may move to target, with a message
// suitable for display. It never changes any state.
func CheckTransition(current, target string) (bool, string) {
	valid, ok := transitions[PromotionState(current)]
	if !ok {
		return false, fmt.Sprintf("Unknown state '%s'", current)
	}
	for _, v := range valid {
		if string(v) == target {
			return true, fmt.Sprintf("%s -> %s", current, target)
		}
	}

	targets := "none (terminal state)"
	if len(valid) > 0 {
		names := make([]string, len(valid))
		for i, v := range valid {
			names[i] = string(v)
		}
		targets = strings.Join(names, ", ")
	}
	return false, fmt.Sprintf("Cannot transition %s -> %s. Valid targets: %s", current, target, targets)
}
