// Package review drives candidates through auto-approval and an operator review queue.
package review

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/ledger-consolidation/internal/domain/entity"
)

// Action is an operator's answer for one queued candidate
type Action int

const (
	ActionApprove Action = iota + 1
	ActionReject
	ActionOverride
	ActionDefer
	ActionQuit
)

var actionNames = map[Action]string{
	ActionApprove:  "approve",
	ActionReject:   "reject",
	ActionOverride: "override",
	ActionDefer:    "defer",
	ActionQuit:     "quit",
}

// String returns the action name
func (a Action) String() string {
	if n, ok := actionNames[a]; ok {
		return n
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// ParseAction accepts a full action name or its first letter; "skip" means defer
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a", "approve":
		return ActionApprove, nil
	case "r", "reject":
		return ActionReject, nil
	case "m", "manual", "override":
		return ActionOverride, nil
	case "s", "skip", "d", "defer":
		return ActionDefer, nil
	case "q", "quit":
		return ActionQuit, nil
	default:
		return 0, fmt.Errorf("unknown action %q", s)
	}
}

// Decision is returned by a DecisionProvider. Target is only used with ActionOverride.
type Decision struct {
	Action Action
	Target *entity.Account
}

// Approve returns an approve decision
func Approve() Decision { return Decision{Action: ActionApprove} }

// Reject returns a reject decision
func Reject() Decision { return Decision{Action: ActionReject} }

// Defer returns a defer decision
func Defer() Decision { return Decision{Action: ActionDefer} }

// Quit returns a quit decision
func Quit() Decision { return Decision{Action: ActionQuit} }

// Override returns a manual override onto target
func Override(target entity.Account) Decision {
	t := target
	return Decision{Action: ActionOverride, Target: &t}
}

// Item kinds
const (
	KindMapping     = "mapping"
	KindElimination = "elimination"
)

// Item is one queued candidate presented to a DecisionProvider
type Item struct {
	Kind     string
	Position int // 1-based position in the queue
	Total    int

	Mapping      *entity.MappingCandidate
	Elimination  *entity.EliminationCandidate
	Alternatives []entity.Account

	// Problem explains why the previous answer for this item was refused
	Problem string
}

// DecisionProvider supplies review decisions
type DecisionProvider interface {
	Decide(ctx context.Context, item Item) (Decision, error)
}

// DecisionProviderFunc adapts a function to DecisionProvider
type DecisionProviderFunc func(ctx context.Context, item Item) (Decision, error)

// Decide calls f
func (f DecisionProviderFunc) Decide(ctx context.Context, item Item) (Decision, error) {
	return f(ctx, item)
}
