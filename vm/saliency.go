package vm

import "math/rand"

// ---------------------------------------------------------------------------
// Saliency: choosing among line-group candidates
// ---------------------------------------------------------------------------

// Candidate is one buffered line-group member awaiting selection.
type Candidate struct {
	StringID         string
	DestinationLabel string
	Priority         int
	ConditionPassed  bool
}

// SaliencyStrategy picks which eligible candidate runs. Select returns
// an index into candidates, or -1 when nothing is eligible. Candidates
// whose condition failed are passed through so strategies can observe
// them, but must never be selected.
type SaliencyStrategy interface {
	Select(candidates []Candidate, rng *rand.Rand) int
}

// FirstStrategy picks the first eligible candidate in source order,
// ignoring priority. Deterministic and priority-blind.
type FirstStrategy struct{}

// Select implements SaliencyStrategy.
func (FirstStrategy) Select(candidates []Candidate, _ *rand.Rand) int {
	for i, c := range candidates {
		if c.ConditionPassed {
			return i
		}
	}
	return -1
}

// BestStrategy picks the highest-priority eligible candidate, breaking
// ties in favor of the first in source order.
type BestStrategy struct{}

// Select implements SaliencyStrategy.
func (BestStrategy) Select(candidates []Candidate, _ *rand.Rand) int {
	best := -1
	for i, c := range candidates {
		if !c.ConditionPassed {
			continue
		}
		if best == -1 || c.Priority > candidates[best].Priority {
			best = i
		}
	}
	return best
}

// RandomBestStrategy picks uniformly at random among the eligible
// candidates tied at the highest priority. This is the default: groups
// with distinct priorities behave like BestStrategy, and equal-priority
// members add variety between runs.
type RandomBestStrategy struct{}

// Select implements SaliencyStrategy.
func (RandomBestStrategy) Select(candidates []Candidate, rng *rand.Rand) int {
	bestPriority := 0
	found := false
	for _, c := range candidates {
		if c.ConditionPassed && (!found || c.Priority > bestPriority) {
			bestPriority = c.Priority
			found = true
		}
	}
	if !found {
		return -1
	}
	var tied []int
	for i, c := range candidates {
		if c.ConditionPassed && c.Priority == bestPriority {
			tied = append(tied, i)
		}
	}
	return tied[rng.Intn(len(tied))]
}
