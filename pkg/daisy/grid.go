package daisy

import (
	"github.com/FrameNetBrasil/daisy/pkg/common"
	"github.com/FrameNetBrasil/daisy/pkg/logger"
)

// GridBuilder assigns grid functions to tokens and groups them into clusters
// and punctuation-bounded windows.
type GridBuilder struct {
	tables *tables
}

func NewGridBuilder(cfg Config) *GridBuilder {
	return &GridBuilder{tables: newTables(cfg)}
}

// BuildWindows runs mapping, disambiguation, clustering and windowing.
// Window ids start at 1. Punctuation closes the current window and belongs
// to none.
func (g *GridBuilder) BuildWindows(tokens []common.Token) []*common.Window {
	components := g.mapFunctions(tokens)
	g.resolve(components)
	return g.windows(components)
}

func (g *GridBuilder) mapFunctions(tokens []common.Token) []*common.Component {
	out := make([]*common.Component, 0, len(tokens))
	for _, t := range tokens {
		fns := []string{g.tables.cfg.PunctuationFunction}
		if !t.IsPunctuation {
			fns = g.tables.functionsFor(t.POS)
		}
		out = append(out, &common.Component{Token: t, CandidateFunctions: fns})
	}
	return out
}

// resolve picks one function per component in a single greedy left-to-right
// pass. The previous component's choice is fixed; the next component
// contributes all of its candidates. Ties keep the first candidate.
func (g *GridBuilder) resolve(components []*common.Component) {
	for i, c := range components {
		if len(c.CandidateFunctions) == 1 {
			c.ResolvedFunction = c.CandidateFunctions[0]
			continue
		}

		best, bestScore := "", 0
		for k, fn := range c.CandidateFunctions {
			score := 0
			if i > 0 {
				score += g.tables.compatibility(components[i-1].ResolvedFunction, fn)
			}
			if i+1 < len(components) {
				for _, next := range components[i+1].CandidateFunctions {
					score += g.tables.compatibility(fn, next)
				}
			}
			if k == 0 || score > bestScore {
				best, bestScore = fn, score
			}
		}
		c.ResolvedFunction = best
	}
}

func (g *GridBuilder) windows(components []*common.Component) []*common.Window {
	var out []*common.Window
	window := &common.Window{ID: 1}
	var cluster *common.Cluster

	flush := func() {
		cluster = nil
		if len(window.Clusters) == 0 {
			return
		}
		out = append(out, window)
		window = &common.Window{ID: window.ID + 1}
	}

	for _, c := range components {
		if c.Token.IsPunctuation || c.ResolvedFunction == g.tables.cfg.PunctuationFunction {
			flush()
			continue
		}

		if cluster != nil && g.tables.accepts(cluster.Type, c.ResolvedFunction) {
			cluster.Components = append(cluster.Components, c)
			continue
		}

		clusterType, ok := g.tables.clusterOf[c.ResolvedFunction]
		if !ok {
			logger.Debug("[Daisy][Grid] Dropping component without cluster type", "word", c.Token.Word, "function", c.ResolvedFunction)
			continue
		}
		cluster = &common.Cluster{Type: clusterType, Components: []*common.Component{c}}
		window.Clusters = append(window.Clusters, cluster)
	}
	flush()

	return out
}
