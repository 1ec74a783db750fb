package daisy

import (
	"fmt"
	"strings"

	"github.com/FrameNetBrasil/daisy/pkg/common"
)

type SelectOptions struct {
	GregNet bool
	// Adjustments are extra energies per lexical unit id, added before
	// comparing.
	Adjustments map[int64]float64
}

// Selection is the outcome of winner selection.
type Selection struct {
	Winners map[int][]common.WinnerRecord
	Weights map[int][]common.CandidateWeight
	Graph   common.Graph
}

// WinnerSelector picks the highest-energy candidate of every word.
type WinnerSelector struct {
	cfg Config
}

func NewWinnerSelector(cfg Config) *WinnerSelector {
	return &WinnerSelector{cfg: cfg}
}

type scored struct {
	candidate *common.FrameCandidate
	energy    float64
	excluded  bool
}

// Select compares unrounded energies and reports them rounded to two
// decimals. Strictly greater energy replaces the winner; an equal one is
// ignored, or appended as a co-winner in GregNet mode. Verb senses are skipped
// entirely when verbs are excluded.
func (s *WinnerSelector) Select(set *common.CandidateSet, words []common.ParsedToken, opts SelectOptions) Selection {
	sel := Selection{
		Winners: make(map[int][]common.WinnerRecord),
		Weights: make(map[int][]common.CandidateWeight),
	}
	winners := make(map[int][]*common.FrameCandidate)

	for _, word := range set.Words() {
		all := make([]scored, 0, len(word.Candidates))
		var best []scored
		maxEnergy := 0.0
		for _, c := range word.Candidates {
			sc := scored{
				candidate: c,
				energy:    c.Energy + opts.Adjustments[c.LexicalUnitID],
				excluded:  s.excluded(c),
			}
			all = append(all, sc)
			if sc.excluded {
				continue
			}
			switch {
			case len(best) == 0 || sc.energy > maxEnergy:
				best = []scored{sc}
				maxEnergy = sc.energy
			case sc.energy == maxEnergy && opts.GregNet:
				best = append(best, sc)
			}
		}

		weights := make([]common.CandidateWeight, 0, len(all))
		for _, sc := range all {
			weights = append(weights, common.CandidateWeight{
				IDLexicalUnit:   sc.candidate.LexicalUnitID,
				LexicalUnitName: sc.candidate.LexicalUnitName,
				FrameEntry:      sc.candidate.FrameEntry,
				Energy:          round2(sc.energy),
				Excluded:        sc.excluded,
			})
		}
		sel.Weights[word.IWord] = weights

		if len(best) == 0 {
			continue
		}
		records := make([]common.WinnerRecord, 0, len(best))
		for _, w := range best {
			records = append(records, common.WinnerRecord{
				IDLexicalUnit:    w.candidate.LexicalUnitID,
				LexicalUnitName:  w.candidate.LexicalUnitName,
				FrameEntry:       w.candidate.FrameEntry,
				FrameName:        w.candidate.FrameName,
				Energy:           round2(w.energy),
				EquivalenceLabel: equivalence(w, all),
			})
			winners[word.IWord] = append(winners[word.IWord], w.candidate)
		}
		sel.Winners[word.IWord] = records
	}

	sel.Graph = buildGraph(words, set, winners)
	return sel
}

func (s *WinnerSelector) excluded(c *common.FrameCandidate) bool {
	marker := s.cfg.Winner.VerbMarker
	return s.cfg.Winner.ExcludeVerbs && marker != "" && strings.Contains(c.LexicalUnitName, marker)
}

// equivalence lists the word's other lexical units whose rounded energy equals
// the winner's rounded energy.
func equivalence(w scored, all []scored) string {
	target := round2(w.energy)
	var names []string
	for _, sc := range all {
		if sc.excluded || sc.candidate == w.candidate {
			continue
		}
		if round2(sc.energy) == target {
			names = append(names, sc.candidate.LexicalUnitName)
		}
	}
	return strings.Join(names, ", ")
}

const (
	graphNodeWord  = "word"
	graphNodeFrame = "frame"
	graphLinkRel   = "related"
)

func wordNodeID(position int) string { return fmt.Sprintf("w%d", position) }

func frameNodeID(entry string) string { return "f_" + entry }

// buildGraph links each word to its winning frames and links winning frames
// that are direct relations of one another.
func buildGraph(words []common.ParsedToken, set *common.CandidateSet, winners map[int][]*common.FrameCandidate) common.Graph {
	g := common.Graph{Nodes: []common.GraphNode{}, Links: []common.GraphLink{}}

	for _, w := range words {
		g.Nodes = append(g.Nodes, common.GraphNode{ID: wordNodeID(w.Position), Label: w.Word, Type: graphNodeWord})
	}

	seenFrame := make(map[string]struct{})
	seenLink := make(map[common.GraphLink]struct{})
	addLink := func(l common.GraphLink) {
		if _, ok := seenLink[l]; ok {
			return
		}
		seenLink[l] = struct{}{}
		g.Links = append(g.Links, l)
	}

	order := set.Words()
	for _, word := range order {
		for _, c := range winners[word.IWord] {
			if _, ok := seenFrame[c.FrameEntry]; !ok {
				seenFrame[c.FrameEntry] = struct{}{}
				g.Nodes = append(g.Nodes, common.GraphNode{ID: frameNodeID(c.FrameEntry), Label: c.FrameName, Type: graphNodeFrame})
			}
			addLink(common.GraphLink{Source: wordNodeID(word.IWord), Target: frameNodeID(c.FrameEntry), Type: RelationEvokes})
		}
	}

	for _, word := range order {
		for _, c := range winners[word.IWord] {
			for _, entry := range c.Pool.Entries() {
				if entry.IsSelf || entry.Level > levelSelf || entry.Frame == c.FrameEntry {
					continue
				}
				if !wonElsewhere(entry.Frame, word.IWord, winners) {
					continue
				}
				addLink(common.GraphLink{Source: frameNodeID(c.FrameEntry), Target: frameNodeID(entry.Frame), Type: graphLinkRel})
			}
		}
	}
	return g
}

func wonElsewhere(frame string, iword int, winners map[int][]*common.FrameCandidate) bool {
	for other, cs := range winners {
		if other == iword {
			continue
		}
		for _, c := range cs {
			if c.FrameEntry == frame {
				return true
			}
		}
	}
	return false
}
