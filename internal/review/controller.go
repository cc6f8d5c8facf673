package review

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/ledger-consolidation/internal/domain/entity"
	"github.com/garyjia/ledger-consolidation/internal/domain/workflow"
	"github.com/garyjia/ledger-consolidation/internal/mapping"
)

// DefaultMaxAttempts is how many refused answers an item tolerates before it is deferred
const DefaultMaxAttempts = 3

// Reviewed is a candidate together with the decision it received this run
type Reviewed[T any] struct {
	Candidate  T
	State      workflow.State
	ApprovedBy string
	DecidedAt  time.Time
}

// Outcome is the result of reviewing a batch of candidates
type Outcome[T any] struct {
	// Decided holds auto-approvals in input order, then queue decisions in input order
	Decided []Reviewed[T]

	// Unreviewed holds queued candidates left untouched by Quit or a missing provider
	Unreviewed []T

	Quit    bool
	Refused int
}

// Count returns the number of decided candidates in the given state
func (o *Outcome[T]) Count(state workflow.State) int {
	n := 0
	for _, r := range o.Decided {
		if r.State == state {
			n++
		}
	}
	return n
}

// Controller classifies candidates and drives the review queue
type Controller struct {
	threshold   Threshold
	logger      *zap.Logger
	maxAttempts int
	now         func() time.Time
}

// NewController creates a review controller
func NewController(threshold Threshold, logger *zap.Logger) *Controller {
	return &Controller{
		threshold:   threshold,
		logger:      logger,
		maxAttempts: DefaultMaxAttempts,
		now:         time.Now,
	}
}

// Threshold returns the controller's threshold configuration
func (c *Controller) Threshold() Threshold {
	return c.threshold
}

// ReviewMappings auto-approves qualifying mapping candidates and queues the rest.
// targets supplies the alternatives offered for manual override.
// A nil provider leaves every queued candidate unreviewed.
func (c *Controller) ReviewMappings(ctx context.Context, cands []entity.MappingCandidate, targets []entity.Account, provider DecisionProvider) (*Outcome[entity.MappingCandidate], error) {
	subjects := make([]subject[entity.MappingCandidate], len(cands))
	for i := range cands {
		cand := cands[i]
		subjects[i] = subject[entity.MappingCandidate]{
			candidate:    cand,
			confidence:   cand.Confidence,
			hasTarget:    cand.HasTarget(),
			alternatives: mapping.Alternatives(cand.Source, targets),
			item:         Item{Kind: KindMapping, Mapping: &cand},
			override: func(target entity.Account) entity.MappingCandidate {
				return cand.WithManualTarget(target)
			},
		}
	}
	return run(ctx, c, subjects, provider)
}

// ReviewEliminations auto-approves qualifying elimination candidates and queues the rest.
// Manual override does not apply to eliminations.
func (c *Controller) ReviewEliminations(ctx context.Context, cands []entity.EliminationCandidate, provider DecisionProvider) (*Outcome[entity.EliminationCandidate], error) {
	subjects := make([]subject[entity.EliminationCandidate], len(cands))
	for i := range cands {
		cand := cands[i]
		subjects[i] = subject[entity.EliminationCandidate]{
			candidate:  cand,
			confidence: cand.Confidence,
			hasTarget:  true,
			item:       Item{Kind: KindElimination, Elimination: &cand},
		}
	}
	return run(ctx, c, subjects, provider)
}

type subject[T any] struct {
	candidate    T
	confidence   int
	hasTarget    bool
	alternatives []entity.Account
	item         Item
	override     func(target entity.Account) T

	machine workflow.StateMachine
	chosen  *entity.Account
}

func (s *subject[T]) guards(threshold Threshold) workflow.Guards {
	return workflow.Guards{
		MeetsThreshold: func(context.Context) bool { return threshold.ShouldAutoApprove(s.confidence, s.hasTarget) },
		HasTarget:      func(context.Context) bool { return s.hasTarget },
		CanOverride: func(context.Context) bool {
			if s.override == nil || s.chosen == nil {
				return false
			}
			for _, alt := range s.alternatives {
				if alt.ID == s.chosen.ID {
					return true
				}
			}
			return false
		},
	}
}

func run[T any](ctx context.Context, c *Controller, subjects []subject[T], provider DecisionProvider) (*Outcome[T], error) {
	out := &Outcome[T]{}
	var queue []*subject[T]

	for i := range subjects {
		s := &subjects[i]
		m, err := workflow.NewCandidateMachine(s.guards(c.threshold))
		if err != nil {
			return nil, err
		}
		s.machine = m

		err = m.Fire(ctx, workflow.TriggerAutoApprove)
		switch {
		case err == nil:
			out.Decided = append(out.Decided, Reviewed[T]{
				Candidate:  s.candidate,
				State:      m.State(),
				ApprovedBy: entity.ApprovedByAuto,
				DecidedAt:  c.now(),
			})
		case errors.Is(err, workflow.ErrGuardFailed):
			queue = append(queue, s)
		default:
			return nil, err
		}
	}

	c.logger.Info("Candidates classified",
		zap.Int("auto_approved", len(out.Decided)),
		zap.Int("queued", len(queue)),
		zap.Int("threshold", c.threshold.AutoApprove))

	if provider == nil {
		for _, s := range queue {
			out.Unreviewed = append(out.Unreviewed, s.candidate)
		}
		return out, nil
	}

	for pos, s := range queue {
		if out.Quit {
			out.Unreviewed = append(out.Unreviewed, s.candidate)
			continue
		}
		if ctx.Err() != nil {
			c.logger.Info("Review cancelled", zap.Error(ctx.Err()))
			out.Quit = true
			out.Unreviewed = append(out.Unreviewed, s.candidate)
			continue
		}

		item := s.item
		item.Position = pos + 1
		item.Total = len(queue)
		item.Alternatives = s.alternatives

		r, quit := decide(ctx, c, s, item, provider, out)
		if quit {
			out.Quit = true
			out.Unreviewed = append(out.Unreviewed, s.candidate)
			continue
		}
		out.Decided = append(out.Decided, r)
	}

	return out, nil
}

// decide asks the provider until the machine accepts an answer.
// After maxAttempts refused answers the item is deferred.
func decide[T any](ctx context.Context, c *Controller, s *subject[T], item Item, provider DecisionProvider, out *Outcome[T]) (Reviewed[T], bool) {
	for attempt := 1; ; attempt++ {
		d, err := provider.Decide(ctx, item)
		if err != nil {
			c.logger.Error("Decision provider failed, stopping review", zap.Error(err))
			return Reviewed[T]{}, true
		}
		if d.Action == ActionQuit {
			return Reviewed[T]{}, true
		}

		trigger, ok := triggerFor(d.Action)
		if ok {
			s.chosen = d.Target
			err = s.machine.Fire(ctx, trigger)
		} else {
			err = workflow.ErrInvalidTransition
		}

		if err == nil {
			return reviewed(c, s, d), false
		}

		out.Refused++
		item.Problem = refusal(d, s)
		c.logger.Info("Decision refused",
			zap.String("kind", item.Kind),
			zap.Int("position", item.Position),
			zap.String("action", d.Action.String()),
			zap.String("reason", item.Problem))

		if attempt >= c.maxAttempts {
			_ = s.machine.Fire(ctx, workflow.TriggerDefer)
			return reviewed(c, s, Defer()), false
		}
	}
}

func reviewed[T any](c *Controller, s *subject[T], d Decision) Reviewed[T] {
	cand := s.candidate
	if d.Action == ActionOverride && s.override != nil && d.Target != nil {
		cand = s.override(*d.Target)
	}
	r := Reviewed[T]{Candidate: cand, State: s.machine.State(), DecidedAt: c.now()}
	if r.State != workflow.StateDeferred {
		r.ApprovedBy = entity.ApprovedByManual
	}
	return r
}

func triggerFor(a Action) (workflow.Trigger, bool) {
	switch a {
	case ActionApprove:
		return workflow.TriggerApprove, true
	case ActionReject:
		return workflow.TriggerReject, true
	case ActionOverride:
		return workflow.TriggerOverride, true
	case ActionDefer:
		return workflow.TriggerDefer, true
	default:
		return "", false
	}
}

func refusal[T any](d Decision, s *subject[T]) string {
	switch d.Action {
	case ActionApprove:
		return "no target to approve; choose manual override or reject"
	case ActionOverride:
		if s.override == nil {
			return "manual override is not available for this item"
		}
		return "choose one of the listed alternatives"
	default:
		return "unknown action"
	}
}
