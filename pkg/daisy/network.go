package daisy

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/FrameNetBrasil/daisy/pkg/common"
	"github.com/FrameNetBrasil/daisy/pkg/logger"
	"github.com/FrameNetBrasil/daisy/pkg/store"
	"github.com/FrameNetBrasil/daisy/pkg/trace"
)

const (
	levelSelf   = 1
	levelFECore = 3
	levelQualia = 4
)

// Search types select which relation families a pool expands.
const (
	SearchSelf = iota + 1
	SearchRelations
	SearchFECore
	SearchQualia
)

type BuildOptions struct {
	SearchType  int
	SearchDepth int
}

// NetworkBuilder fills every candidate's pool with the frames reachable from
// its own frame, then registers the other words that evoke those frames.
type NetworkBuilder struct {
	store    store.ReferenceStore
	tables   *tables
	parallel int
	observer
}

type NewNetworkBuilderParams struct {
	Store    store.ReferenceStore
	Config   Config
	Parallel int
	Tracer   trace.Tracer
}

func NewNetworkBuilder(params NewNetworkBuilderParams) *NetworkBuilder {
	parallel := params.Parallel
	if parallel <= 0 {
		parallel = 4
	}
	return &NetworkBuilder{
		store:    params.Store,
		tables:   newTables(params.Config),
		parallel: parallel,
		observer: observer{tracer: params.Tracer},
	}
}

// Build populates pools concurrently, one candidate per task, and scans for
// contributors once every pool exists.
func (b *NetworkBuilder) Build(ctx context.Context, set *common.CandidateSet, opts BuildOptions) error {
	if opts.SearchDepth <= 0 {
		opts.SearchDepth = b.tables.cfg.Network.DefaultDepth
	}
	candidates := set.Candidates()

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(b.parallel)
	for _, c := range candidates {
		g.Go(func() error {
			pool, err := b.buildPool(gCtx, c, opts)
			if err != nil {
				return err
			}
			c.Pool = pool
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	b.registerContributors(set)

	logger.Debug("[Daisy][Network] Built pools", "candidates", len(candidates), "searchType", opts.SearchType, "searchDepth", opts.SearchDepth)
	return nil
}

func (b *NetworkBuilder) buildPool(ctx context.Context, c *common.FrameCandidate, opts BuildOptions) (*common.Pool, error) {
	pool := common.NewPool()
	pool.Put(&common.PoolEntry{
		Frame:     c.FrameEntry,
		Factor:    1.0,
		BaseFrame: c.FrameEntry,
		Level:     levelSelf,
		IsSelf:    true,
	})

	if opts.SearchType >= SearchRelations {
		visited := map[string]struct{}{c.FrameEntry: {}}
		if err := b.expandRelations(ctx, pool, visited, c.FrameEntry, 1.0, 0, opts.SearchDepth, b.tables.cfg.Network.InitialValue); err != nil {
			return nil, err
		}
	}
	if opts.SearchType >= SearchFECore && b.tables.relationWeight(RelationFECore) > 0 {
		if err := b.expandFECore(ctx, pool, c.FrameEntry); err != nil {
			return nil, err
		}
	}
	if opts.SearchType >= SearchQualia && b.tables.relationWeight(RelationQualia) > 0 {
		if err := b.expandQualia(ctx, pool, c); err != nil {
			return nil, err
		}
	}
	return pool, nil
}

// expandRelations follows relations that point at frame. It goes deeper only
// while the hop count is below maxDepth and the remaining value is at least
// the configured floor.
func (b *NetworkBuilder) expandRelations(
	ctx context.Context,
	pool *common.Pool,
	visited map[string]struct{},
	frame string,
	factor float64,
	depth int,
	maxDepth int,
	value float64,
) error {
	if depth >= maxDepth || value < b.tables.cfg.Network.MinValue {
		return nil
	}

	relations, err := b.store.FrameRelations(ctx, frame, expansionRelations)
	if err != nil {
		return b.degrade(ctx, "Network", "frame_relations", err)
	}

	var next []string
	nextFactor := make(map[string]float64)
	for _, r := range relations {
		weight := b.tables.relationWeight(r.RelationType)
		if weight <= 0 || r.FromEntry == "" {
			continue
		}
		f := factor * weight
		// a frame reached again on a longer path keeps its shorter one
		if prev, ok := pool.Get(r.FromEntry); !ok || prev.Level > depth+1 {
			pool.Put(&common.PoolEntry{
				Frame:     r.FromEntry,
				Factor:    f,
				BaseFrame: frame,
				Level:     depth + 1,
			})
		}
		if _, ok := visited[r.FromEntry]; ok {
			continue
		}
		visited[r.FromEntry] = struct{}{}
		next = append(next, r.FromEntry)
		nextFactor[r.FromEntry] = f
	}
	trace.RecordExpandedFrames(b.tracer, next...)

	for _, related := range next {
		err := b.expandRelations(ctx, pool, visited, related, nextFactor[related], depth+1, maxDepth, value-b.tables.cfg.Network.ValueStep)
		if err != nil {
			return err
		}
	}
	return nil
}

func (b *NetworkBuilder) expandFECore(ctx context.Context, pool *common.Pool, frame string) error {
	constraints, err := b.store.FECoreConstraints(ctx, frame)
	if err != nil {
		return b.degrade(ctx, "Network", "fe_core_constraints", err)
	}
	for _, fc := range constraints {
		weight := b.tables.cfg.FECoreWeights[fc.CoreType]
		if weight <= 0 || fc.FrameEntry == "" {
			continue
		}
		pool.Put(&common.PoolEntry{
			Frame:     fc.FrameEntry,
			Factor:    weight,
			BaseFrame: frame,
			Level:     levelFECore,
		})
	}
	return nil
}

// expandQualia walks qualia relations breadth first from the candidate's
// lexical unit. Hits at depth d carry the depth's configured bonus.
func (b *NetworkBuilder) expandQualia(ctx context.Context, pool *common.Pool, c *common.FrameCandidate) error {
	maxDepth := b.tables.cfg.Network.MaxQualiaDepth
	visited := map[int64]struct{}{c.LexicalUnitID: {}}
	frontier := []int64{c.LexicalUnitID}

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		bonus := b.tables.cfg.QualiaBonuses[depth]
		var next []int64
		for _, id := range frontier {
			relations, err := b.store.QualiaRelations(ctx, id)
			if err != nil {
				if err := b.degrade(ctx, "Network", "qualia_relations", err); err != nil {
					return err
				}
				continue
			}
			for _, q := range relations {
				lu := q.Related
				if _, ok := visited[lu.ID]; ok {
					continue
				}
				visited[lu.ID] = struct{}{}
				next = append(next, lu.ID)
				if bonus <= 0 || lu.FrameEntry == "" {
					continue
				}
				pool.Put(&common.PoolEntry{
					Frame:     lu.FrameEntry,
					Factor:    bonus,
					BaseFrame: c.FrameEntry,
					Level:     levelQualia,
					IsQualia:  true,
				})
			}
		}
		frontier = next
	}
	return nil
}

// registerContributors links each pool entry to the other words that have a
// candidate for the entry's frame. Qualia entries look across windows, all
// others only inside the candidate's own window.
func (b *NetworkBuilder) registerContributors(set *common.CandidateSet) {
	byWindow := make(map[int][]*common.WordCandidates, len(set.Windows))
	for _, w := range set.Windows {
		byWindow[w.WindowID] = w.Words
	}
	all := set.Words()

	for _, word := range all {
		for _, c := range word.Candidates {
			for _, entry := range c.Pool.Entries() {
				scope := byWindow[c.WindowID]
				if entry.IsQualia {
					scope = all
				}
				for _, other := range scope {
					if other.IWord == c.IWord {
						continue
					}
					oc, ok := other.Get(entry.Frame)
					if !ok {
						continue
					}
					entry.AddContributor(common.Contributor{
						IWord:    other.IWord,
						Word:     other.Word,
						Frame:    entry.Frame,
						Energy:   oc.Energy,
						Level:    entry.Level,
						WindowID: other.WindowID,
						IsQualia: entry.IsQualia,
					})
				}
			}
		}
	}
}
