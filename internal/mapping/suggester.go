// Package mapping suggests how one organization's chart of accounts maps onto another's.
package mapping

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/garyjia/ledger-consolidation/internal/domain/entity"
)

// Strategy confidences
const (
	ExactCodeConfidence = 98
	ExactNameConfidence = 95
	TypeClassConfidence = 50

	// SimilarityWeight scales a similarity in [0,1] into a confidence
	SimilarityWeight = 85.0

	// DefaultSimilarityThreshold is the minimum similarity a name match must reach
	DefaultSimilarityThreshold = 0.70
)

// Suggester evaluates ordered strategies for every active source account.
// It holds no state between calls.
type Suggester struct {
	targetOrgID         string
	similarityThreshold float64
}

// NewSuggester creates a suggester mapping into the given target organization
func NewSuggester(targetOrgID string) *Suggester {
	return &Suggester{
		targetOrgID:         targetOrgID,
		similarityThreshold: DefaultSimilarityThreshold,
	}
}

// Suggest returns exactly one candidate per ACTIVE source account, in source order.
func (s *Suggester) Suggest(sources, targets []entity.Account) []entity.MappingCandidate {
	pool := activeSorted(targets)

	candidates := make([]entity.MappingCandidate, 0, len(sources))
	for _, src := range sources {
		if !src.IsActive() {
			continue
		}
		candidates = append(candidates, s.suggestOne(src, pool))
	}
	return candidates
}

// suggestOne runs the strategies in priority order; the first hit wins
func (s *Suggester) suggestOne(src entity.Account, pool []entity.Account) entity.MappingCandidate {
	if t, ok := exactCode(src, pool); ok {
		return s.candidate(src, t, ExactCodeConfidence, entity.StrategyExactCode,
			fmt.Sprintf("Code %s matches exactly", t.Code))
	}

	if t, ok := exactName(src, pool); ok {
		return s.candidate(src, t, ExactNameConfidence, entity.StrategyExactName,
			fmt.Sprintf("Name %q matches exactly", t.Name))
	}

	if t, sim, ok := s.similarName(src, pool); ok {
		return s.candidate(src, t, int(math.Round(sim*SimilarityWeight)), entity.StrategySimilarName,
			fmt.Sprintf("%q similar to %q (%d%% match)", src.Name, t.Name, int(math.Round(sim*100))))
	}

	if t, ok := typeClass(src, pool); ok {
		return s.candidate(src, t, TypeClassConfidence, entity.StrategyTypeClass,
			fmt.Sprintf("Same type (%s) and class (%s)", src.Type, src.Class))
	}

	return entity.NoTarget(src, s.targetOrgID)
}

func (s *Suggester) candidate(src, target entity.Account, confidence int, strategy, notes string) entity.MappingCandidate {
	c := entity.NewMappingCandidate(src, target, confidence, strategy, notes)
	if s.targetOrgID != "" {
		c.TargetOrgID = s.targetOrgID
	}
	return c
}

func exactCode(src entity.Account, pool []entity.Account) (entity.Account, bool) {
	for _, t := range pool {
		if t.Code == src.Code && t.Type == src.Type {
			return t, true
		}
	}
	return entity.Account{}, false
}

func exactName(src entity.Account, pool []entity.Account) (entity.Account, bool) {
	for _, t := range pool {
		if t.Type == src.Type && strings.EqualFold(t.Name, src.Name) {
			return t, true
		}
	}
	return entity.Account{}, false
}

// similarName picks the highest similarity at or above the threshold.
// The pool is sorted by code, so a strict comparison keeps the smallest code on ties.
func (s *Suggester) similarName(src entity.Account, pool []entity.Account) (entity.Account, float64, bool) {
	var (
		best    entity.Account
		bestSim = -1.0
	)
	for _, t := range pool {
		if t.Type != src.Type {
			continue
		}
		sim := Similarity(src.Name, t.Name)
		if sim >= s.similarityThreshold && sim > bestSim {
			best, bestSim = t, sim
		}
	}
	return best, bestSim, bestSim >= 0
}

// typeClass only applies when the source carries a class
func typeClass(src entity.Account, pool []entity.Account) (entity.Account, bool) {
	if !src.HasClass() {
		return entity.Account{}, false
	}
	for _, t := range pool {
		if t.Type == src.Type && t.Class == src.Class {
			return t, true
		}
	}
	return entity.Account{}, false
}

// activeSorted returns ACTIVE targets ordered by (code, id) so tie-breaks never depend on input order
func activeSorted(targets []entity.Account) []entity.Account {
	pool := make([]entity.Account, 0, len(targets))
	for _, t := range targets {
		if t.IsActive() {
			pool = append(pool, t)
		}
	}
	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].Code != pool[j].Code {
			return pool[i].Code < pool[j].Code
		}
		return pool[i].ID < pool[j].ID
	})
	return pool
}

// Alternatives lists ACTIVE targets of the source's type for manual selection, ordered by code
func Alternatives(src entity.Account, targets []entity.Account) []entity.Account {
	var out []entity.Account
	for _, t := range activeSorted(targets) {
		if t.Type == src.Type {
			out = append(out, t)
		}
	}
	return out
}
