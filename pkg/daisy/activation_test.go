package daisy

import (
	"testing"

	"github.com/FrameNetBrasil/daisy/pkg/common"
)

// activationSet has "cat" alone in window 1 with a single candidate, and
// "feline" with two candidates beside it.
func activationSet(entry *common.PoolEntry) (*common.CandidateSet, *common.FrameCandidate) {
	set := candidateSet(map[int][]wordFixture{
		1: {
			{0, "cat", []string{"Animals"}},
			{1, "feline", []string{"Animals", "Biological_classification"}},
		},
	})
	target := findCandidate(set, 0, "Animals")
	for _, c := range set.Candidates() {
		c.Pool = common.NewPool()
		c.Pool.Put(&common.PoolEntry{Frame: c.FrameEntry, Factor: 1, BaseFrame: c.FrameEntry, Level: levelSelf, IsSelf: true})
	}
	if entry != nil {
		target.Pool.Put(entry)
	}
	return set, target
}

func TestSpread(t *testing.T) {
	contributor := common.Contributor{IWord: 1, Word: "feline", Frame: "Taxonomy", Energy: 0.5, Level: 1, WindowID: 1}

	tests := []struct {
		name     string
		weighted bool
		entry    *common.PoolEntry
		want     float64
	}{
		{
			name: "no contributors keeps the initial energy",
			want: 1.0,
		},
		{
			name:  "contributor energy is added unweighted",
			entry: &common.PoolEntry{Frame: "Taxonomy", Factor: 0.5, Level: 1, Contributors: []common.Contributor{contributor}},
			want:  1.5,
		},
		{
			name:     "contributor energy is scaled by the entry factor",
			weighted: true,
			entry:    &common.PoolEntry{Frame: "Taxonomy", Factor: 0.5, Level: 1, Contributors: []common.Contributor{contributor}},
			want:     1.25,
		},
		{
			name: "a word never activates itself",
			entry: &common.PoolEntry{Frame: "Taxonomy", Factor: 1, Level: 1, Contributors: []common.Contributor{
				{IWord: 0, Word: "cat", Energy: 1.0, WindowID: 1},
			}},
			want: 1.0,
		},
		{
			name: "contributors from another window are ignored",
			entry: &common.PoolEntry{Frame: "Taxonomy", Factor: 1, Level: 1, Contributors: []common.Contributor{
				{IWord: 5, Word: "dog", Energy: 0.5, WindowID: 2},
			}},
			want: 1.0,
		},
		{
			name: "qualia contributors cross windows",
			entry: &common.PoolEntry{Frame: "Taxonomy", Factor: 0.5, Level: levelQualia, IsQualia: true, Contributors: []common.Contributor{
				{IWord: 5, Word: "dog", Energy: 0.5, WindowID: 2, IsQualia: true},
			}},
			want: 1.5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.WeightContributions = tt.weighted
			set, target := activationSet(tt.entry)

			NewActivationEngine(cfg).Spread(set)
			if !closeTo(target.Energy, tt.want) {
				t.Fatalf("got %v, want %v", target.Energy, tt.want)
			}
		})
	}
}

func TestSpreadUsesSnapshotEnergies(t *testing.T) {
	set := candidateSet(map[int][]wordFixture{
		1: {
			{0, "a", []string{"X"}},
			{1, "b", []string{"X"}},
		},
	})
	a, b := findCandidate(set, 0, "X"), findCandidate(set, 1, "X")
	a.Pool, b.Pool = common.NewPool(), common.NewPool()
	a.Pool.Put(&common.PoolEntry{Frame: "X", Factor: 1, IsSelf: true, Level: levelSelf,
		Contributors: []common.Contributor{{IWord: 1, Energy: b.Energy, WindowID: 1}}})
	b.Pool.Put(&common.PoolEntry{Frame: "X", Factor: 1, IsSelf: true, Level: levelSelf,
		Contributors: []common.Contributor{{IWord: 0, Energy: a.Energy, WindowID: 1}}})

	NewActivationEngine(DefaultConfig()).Spread(set)
	if a.Energy != 2.0 || b.Energy != 2.0 {
		t.Fatalf("expected order-independent result, got %v and %v", a.Energy, b.Energy)
	}
}

func TestSpreadBonuses(t *testing.T) {
	tests := []struct {
		name   string
		mwe    bool
		domain bool
		want   float64
	}{
		{"none", false, false, 1.0},
		{"multi-word expression", true, false, 1.5},
		{"domain member", false, true, 1.2},
		{"both", true, true, 1.7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, target := activationSet(nil)
			target.IsMultiWordExpression = tt.mwe
			target.IsDomainMember = tt.domain

			NewActivationEngine(DefaultConfig()).Spread(set)
			if !closeTo(target.Energy, tt.want) {
				t.Fatalf("got %v, want %v", target.Energy, tt.want)
			}
		})
	}
}
