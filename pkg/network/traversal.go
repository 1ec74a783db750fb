package network

import (
	"context"
	"fmt"

	"github.com/FrameNetBrasil/daisy/internal/util"
	"github.com/FrameNetBrasil/daisy/pkg/common"
	"github.com/FrameNetBrasil/daisy/pkg/store"
)

type edgeKey struct {
	source, target int64
	relationType   string
}

// traversal is the state of one materialization walk. Node ids are assigned
// in visiting order, starting at 1.
type traversal struct {
	source   store.NetworkSource
	language int
	retries  int

	visited    map[int64]struct{}
	frameNodes map[int64]int64
	luNodes    map[int64]int64
	seenEdges  map[edgeKey]struct{}
	expanded   map[int64]struct{}

	nodes []common.NetworkNode
	edges []common.NetworkEdge

	frames       int
	lexicalUnits int
}

func newTraversal(source store.NetworkSource, language, retries int) *traversal {
	return &traversal{
		source:     source,
		language:   language,
		retries:    retries,
		visited:    make(map[int64]struct{}),
		frameNodes: make(map[int64]int64),
		luNodes:    make(map[int64]int64),
		seenEdges:  make(map[edgeKey]struct{}),
		expanded:   make(map[int64]struct{}),
	}
}

func (t *traversal) nextID() int64 {
	return int64(len(t.nodes) + 1)
}

func (t *traversal) frameNode(f common.Frame) int64 {
	if id, ok := t.frameNodes[f.ID]; ok {
		return id
	}
	id := t.nextID()
	label := f.Name
	if label == "" {
		label = f.Entry
	}
	t.nodes = append(t.nodes, common.NetworkNode{ID: id, Type: common.NodeTypeFrame, RefID: f.ID, Label: util.SanitizeLabel(label)})
	t.frameNodes[f.ID] = id
	t.frames++
	return id
}

func (t *traversal) lexicalUnitNode(lu common.LexicalUnit) int64 {
	if id, ok := t.luNodes[lu.ID]; ok {
		return id
	}
	id := t.nextID()
	t.nodes = append(t.nodes, common.NetworkNode{ID: id, Type: common.NodeTypeLexicalUnit, RefID: lu.ID, Label: util.SanitizeLabel(lu.Name)})
	t.luNodes[lu.ID] = id
	t.lexicalUnits++
	return id
}

func (t *traversal) edge(source, target int64, relationType string) {
	key := edgeKey{source: source, target: target, relationType: relationType}
	if _, ok := t.seenEdges[key]; ok {
		return
	}
	t.seenEdges[key] = struct{}{}
	t.edges = append(t.edges, common.NetworkEdge{SourceID: source, TargetID: target, RelationType: relationType})
}

// symmetricEdge stores an undirected relation once, whichever side it is
// reached from.
func (t *traversal) symmetricEdge(a, b int64, relationType string) {
	if _, ok := t.seenEdges[edgeKey{source: b, target: a, relationType: relationType}]; ok {
		return
	}
	t.edge(a, b, relationType)
}

// visit materializes frame f, its lexical units and their qualia links, then
// follows the frame's outgoing relations. Frames already visited are
// skipped, so relation cycles end.
func (t *traversal) visit(ctx context.Context, f common.Frame) error {
	if _, ok := t.visited[f.ID]; ok {
		return nil
	}
	t.visited[f.ID] = struct{}{}
	frameID := t.frameNode(f)

	lus, err := util.RetryWithContext(ctx, t.retries, func(ctx context.Context) ([]common.LexicalUnit, error) {
		return t.source.LexicalUnitsByFrame(ctx, f.ID, t.language)
	})
	if err != nil {
		return fmt.Errorf("failed to load lexical units of frame %s: %w", f.Entry, err)
	}
	for _, lu := range lus {
		luID := t.lexicalUnitNode(lu)
		t.edge(luID, frameID, common.EdgeTypeEvokes)
		if err := t.expandQualia(ctx, lu, luID); err != nil {
			return err
		}
	}

	relations, err := util.RetryWithContext(ctx, t.retries, func(ctx context.Context) ([]common.FrameRelation, error) {
		return t.source.RelationsFromFrame(ctx, f.ID)
	})
	if err != nil {
		return fmt.Errorf("failed to load relations of frame %s: %w", f.Entry, err)
	}
	for _, r := range relations {
		if r.ToID == 0 || r.RelationType == "" {
			continue
		}
		to := common.Frame{ID: r.ToID, Entry: r.ToEntry, Name: r.ToName}
		t.edge(frameID, t.frameNode(to), r.RelationType)
		if err := t.visit(ctx, to); err != nil {
			return err
		}
	}
	return nil
}

func (t *traversal) expandQualia(ctx context.Context, lu common.LexicalUnit, luID int64) error {
	if _, ok := t.expanded[lu.ID]; ok {
		return nil
	}
	t.expanded[lu.ID] = struct{}{}

	qualia, err := util.RetryWithContext(ctx, t.retries, func(ctx context.Context) ([]common.QualiaRelation, error) {
		return t.source.QualiaRelations(ctx, lu.ID)
	})
	if err != nil {
		return fmt.Errorf("failed to load qualia of lexical unit %d: %w", lu.ID, err)
	}
	for _, q := range qualia {
		if q.Related.ID == 0 || q.Related.ID == lu.ID {
			continue
		}
		t.symmetricEdge(luID, t.lexicalUnitNode(q.Related), common.EdgeTypeQualia)
	}
	return nil
}
