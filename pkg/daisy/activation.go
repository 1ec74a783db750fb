package daisy

import (
	"github.com/FrameNetBrasil/daisy/pkg/common"
)

// ActivationEngine raises each candidate's energy once from the contributors
// recorded in its pool, then adds the fixed bonuses.
type ActivationEngine struct {
	cfg Config
}

func NewActivationEngine(cfg Config) *ActivationEngine {
	return &ActivationEngine{cfg: cfg}
}

// Spread is a single pass over a snapshot: contributor energies were captured
// while pools were built, so the order candidates are visited in does not
// matter.
func (a *ActivationEngine) Spread(set *common.CandidateSet) {
	for _, c := range set.Candidates() {
		c.Energy += a.spreadEnergy(c) + a.bonus(c)
	}
}

func (a *ActivationEngine) spreadEnergy(c *common.FrameCandidate) float64 {
	total := 0.0
	for _, entry := range c.Pool.Entries() {
		for _, contributor := range entry.Contributors {
			if contributor.IWord == c.IWord {
				continue
			}
			if !contributor.IsQualia && contributor.WindowID != c.WindowID {
				continue
			}
			if a.cfg.WeightContributions {
				total += contributor.Energy * entry.Factor
			} else {
				total += contributor.Energy
			}
		}
	}
	return total
}

func (a *ActivationEngine) bonus(c *common.FrameCandidate) float64 {
	bonus := 0.0
	if c.IsMultiWordExpression {
		bonus += a.cfg.Bonuses.MWE
	}
	if c.IsDomainMember {
		bonus += a.cfg.Bonuses.Domain
	}
	return bonus
}
