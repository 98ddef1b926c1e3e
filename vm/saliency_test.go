package vm

import (
	"math/rand"
	"testing"
)

func saliencyCandidates() []Candidate {
	return []Candidate{
		{StringID: "a", DestinationLabel: "La", Priority: 0, ConditionPassed: true},
		{StringID: "b", DestinationLabel: "Lb", Priority: 2, ConditionPassed: true},
		{StringID: "c", DestinationLabel: "Lc", Priority: 2, ConditionPassed: true},
		{StringID: "d", DestinationLabel: "Ld", Priority: 9, ConditionPassed: false},
	}
}

func TestFirstStrategy(t *testing.T) {
	if got := (FirstStrategy{}).Select(saliencyCandidates(), nil); got != 0 {
		t.Errorf("Select() = %d, want 0", got)
	}

	failed := []Candidate{
		{StringID: "a", ConditionPassed: false},
		{StringID: "b", ConditionPassed: true},
	}
	if got := (FirstStrategy{}).Select(failed, nil); got != 1 {
		t.Errorf("Select() = %d, want first eligible index 1", got)
	}
}

func TestBestStrategy(t *testing.T) {
	// Index 3 has the top priority but its condition failed; the tie at
	// priority 2 resolves to the earlier member.
	if got := (BestStrategy{}).Select(saliencyCandidates(), nil); got != 1 {
		t.Errorf("Select() = %d, want 1", got)
	}
}

func TestRandomBestStrategy(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	counts := make(map[int]int)
	for i := 0; i < 200; i++ {
		idx := (RandomBestStrategy{}).Select(saliencyCandidates(), rng)
		counts[idx]++
	}
	if counts[0] > 0 {
		t.Error("lower-priority candidate selected over higher priority")
	}
	if counts[3] > 0 {
		t.Error("ineligible candidate selected")
	}
	if counts[1] == 0 || counts[2] == 0 {
		t.Errorf("tied candidates not both reachable: %v", counts)
	}
}

func TestStrategiesWithNoEligible(t *testing.T) {
	none := []Candidate{
		{StringID: "a", ConditionPassed: false},
		{StringID: "b", ConditionPassed: false},
	}
	rng := rand.New(rand.NewSource(1))
	strategies := []SaliencyStrategy{FirstStrategy{}, BestStrategy{}, RandomBestStrategy{}}
	for _, s := range strategies {
		if got := s.Select(none, rng); got != -1 {
			t.Errorf("%T.Select() = %d with no eligible candidates, want -1", s, got)
		}
	}
	for _, s := range strategies {
		if got := s.Select(nil, rng); got != -1 {
			t.Errorf("%T.Select() = %d on empty slice, want -1", s, got)
		}
	}
}
