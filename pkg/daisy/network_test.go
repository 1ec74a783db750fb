package daisy

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/FrameNetBrasil/daisy/pkg/common"
	"github.com/FrameNetBrasil/daisy/pkg/trace"
)

func build(t *testing.T, s *fakeStore, cfg Config, set *common.CandidateSet, opts BuildOptions) {
	t.Helper()
	b := NewNetworkBuilder(NewNetworkBuilderParams{Store: s, Config: cfg, Parallel: 2})
	if err := b.Build(context.Background(), set, opts); err != nil {
		t.Fatal(err)
	}
}

func poolFrames(p *common.Pool) map[string]*common.PoolEntry {
	out := make(map[string]*common.PoolEntry)
	for _, e := range p.Entries() {
		out[e.Frame] = e
	}
	return out
}

func closeTo(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func chainStore() *fakeStore {
	s := newFakeStore()
	s.relation("inheritance", "B", "A")
	s.relation("inheritance", "C", "B")
	s.relation("inheritance", "D", "C")
	s.relation("inheritance", "E", "D")
	return s
}

func TestBuildSelfEntry(t *testing.T) {
	set := candidateSet(map[int][]wordFixture{1: {{0, "cat", []string{"Animals"}}}})
	build(t, newFakeStore(), DefaultConfig(), set, BuildOptions{SearchType: SearchSelf})

	c := findCandidate(set, 0, "Animals")
	entries := c.Pool.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected only the self entry, got %d", len(entries))
	}
	e := entries[0]
	if !e.IsSelf || e.Frame != "Animals" || e.Factor != 1.0 || e.Level != levelSelf {
		t.Fatalf("unexpected self entry %+v", e)
	}
}

func TestBuildRelationLimits(t *testing.T) {
	tests := []struct {
		name  string
		depth int
		want  []string
		miss  []string
	}{
		{"one hop", 1, []string{"B"}, []string{"C", "D", "E"}},
		{"default depth", 0, []string{"B", "C", "D"}, []string{"E"}},
		{"value floor stops a deep search", 10, []string{"B", "C", "D"}, []string{"E"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := candidateSet(map[int][]wordFixture{1: {{0, "a", []string{"A"}}}})
			build(t, chainStore(), DefaultConfig(), set, BuildOptions{SearchType: SearchRelations, SearchDepth: tt.depth})

			pool := poolFrames(findCandidate(set, 0, "A").Pool)
			for _, f := range tt.want {
				if _, ok := pool[f]; !ok {
					t.Fatalf("expected %s in pool", f)
				}
			}
			for _, f := range tt.miss {
				if _, ok := pool[f]; ok {
					t.Fatalf("did not expect %s in pool", f)
				}
			}
		})
	}
}

func TestBuildRelationFactors(t *testing.T) {
	set := candidateSet(map[int][]wordFixture{1: {{0, "a", []string{"A"}}}})
	build(t, chainStore(), DefaultConfig(), set, BuildOptions{SearchType: SearchRelations})

	pool := poolFrames(findCandidate(set, 0, "A").Pool)
	tests := []struct {
		frame  string
		factor float64
		level  int
		base   string
	}{
		{"B", 0.8, 1, "A"},
		{"C", 0.64, 2, "B"},
		{"D", 0.512, 3, "C"},
	}
	for _, tt := range tests {
		e := pool[tt.frame]
		if !closeTo(e.Factor, tt.factor) || e.Level != tt.level || e.BaseFrame != tt.base {
			t.Fatalf("%s: got %+v", tt.frame, e)
		}
		if e.Factor > 1 {
			t.Fatalf("factor above 1: %v", e.Factor)
		}
	}
}

func TestBuildSkipsZeroWeightRelations(t *testing.T) {
	s := newFakeStore()
	s.relation("uses", "B", "A")
	s.relation("subframe", "C", "A")
	cfg := DefaultConfig()
	cfg.RelationWeights["uses"] = 0

	set := candidateSet(map[int][]wordFixture{1: {{0, "a", []string{"A"}}}})
	build(t, s, cfg, set, BuildOptions{SearchType: SearchRelations})

	pool := poolFrames(findCandidate(set, 0, "A").Pool)
	if _, ok := pool["B"]; ok {
		t.Fatal("zero-weight relation must not add an entry")
	}
	if e, ok := pool["C"]; !ok || !closeTo(e.Factor, 0.6) {
		t.Fatalf("expected subframe entry, got %+v", e)
	}
}

func TestBuildTerminatesOnCycles(t *testing.T) {
	s := newFakeStore()
	s.relation("inheritance", "B", "A")
	s.relation("inheritance", "A", "B")
	s.relation("uses", "B", "B")

	set := candidateSet(map[int][]wordFixture{1: {{0, "a", []string{"A"}}}})
	build(t, s, DefaultConfig(), set, BuildOptions{SearchType: SearchRelations, SearchDepth: 10})

	pool := findCandidate(set, 0, "A").Pool
	if pool.Len() != 2 {
		t.Fatalf("expected self and B, got %d entries", pool.Len())
	}
	self, _ := pool.Get("A")
	if !self.IsSelf || self.Factor != 1.0 {
		t.Fatalf("self entry must never be replaced, got %+v", self)
	}
}

func TestBuildFECore(t *testing.T) {
	s := newFakeStore()
	s.fe["Giving"] = []common.FEConstraint{
		{FEName: "Donor", CoreType: "core", FrameEntry: "People"},
		{FEName: "Theme", CoreType: "core-unexpressed", FrameEntry: "Goods"},
		{FEName: "Time", CoreType: "peripheral", FrameEntry: "Calendric_unit"},
	}
	set := candidateSet(map[int][]wordFixture{1: {{0, "give", []string{"Giving"}}}})

	build(t, s, DefaultConfig(), set, BuildOptions{SearchType: SearchRelations})
	if findCandidate(set, 0, "Giving").Pool.Len() != 1 {
		t.Fatal("frame element constraints must not be followed below their search type")
	}

	build(t, s, DefaultConfig(), set, BuildOptions{SearchType: SearchFECore})
	pool := poolFrames(findCandidate(set, 0, "Giving").Pool)
	if e := pool["People"]; e == nil || e.Factor != 1.0 || e.Level != levelFECore {
		t.Fatalf("unexpected core entry %+v", e)
	}
	if e := pool["Goods"]; e == nil || e.Factor != 0.8 {
		t.Fatalf("unexpected core-unexpressed entry %+v", e)
	}
	if _, ok := pool["Calendric_unit"]; ok {
		t.Fatal("peripheral constraint must be skipped")
	}
}

func TestBuildQualia(t *testing.T) {
	s := newFakeStore()
	s.qualia[1] = []common.QualiaRelation{{AnchorID: 1, Related: common.LexicalUnit{ID: 50, FrameEntry: "Q1"}}}
	s.qualia[50] = []common.QualiaRelation{
		{AnchorID: 50, Related: common.LexicalUnit{ID: 1, FrameEntry: "Knife"}},
		{AnchorID: 50, Related: common.LexicalUnit{ID: 60, FrameEntry: "Q2"}},
	}
	s.qualia[60] = []common.QualiaRelation{{AnchorID: 60, Related: common.LexicalUnit{ID: 70, FrameEntry: "Q3"}}}

	set := candidateSet(map[int][]wordFixture{1: {{0, "knife", []string{"Knife"}}}})
	build(t, s, DefaultConfig(), set, BuildOptions{SearchType: SearchQualia})

	pool := poolFrames(findCandidate(set, 0, "Knife").Pool)
	tests := []struct {
		frame  string
		factor float64
	}{
		{"Q1", 0.5},
		{"Q2", 0.25},
	}
	for _, tt := range tests {
		e := pool[tt.frame]
		if e == nil || e.Factor != tt.factor || !e.IsQualia || e.Level != levelQualia {
			t.Fatalf("%s: unexpected entry %+v", tt.frame, e)
		}
	}
	if _, ok := pool["Q3"]; ok {
		t.Fatal("qualia search must stop at the maximum depth")
	}
	if !pool["Knife"].IsSelf {
		t.Fatal("qualia cycle must not replace the self entry")
	}
}

func TestBuildContributors(t *testing.T) {
	s := newFakeStore()
	s.relation("inheritance", "Vehicle", "Ground_vehicle")
	s.qualia[1] = []common.QualiaRelation{{AnchorID: 1, Related: common.LexicalUnit{ID: 99, FrameEntry: "Operate_vehicle"}}}

	set := candidateSet(map[int][]wordFixture{
		1: {
			{0, "car", []string{"Ground_vehicle"}},
			{1, "vehicle", []string{"Vehicle", "Transport"}},
		},
		2: {
			{3, "vehicles", []string{"Vehicle"}},
			{4, "driving", []string{"Operate_vehicle"}},
		},
	})
	build(t, s, DefaultConfig(), set, BuildOptions{SearchType: SearchQualia})

	pool := poolFrames(findCandidate(set, 0, "Ground_vehicle").Pool)

	related := pool["Vehicle"]
	if len(related.Contributors) != 1 {
		t.Fatalf("expected one same-window contributor, got %+v", related.Contributors)
	}
	got := related.Contributors[0]
	if got.IWord != 1 || got.Energy != 0.5 || got.WindowID != 1 || got.IsQualia {
		t.Fatalf("unexpected contributor %+v", got)
	}

	qualia := pool["Operate_vehicle"]
	if len(qualia.Contributors) != 1 || qualia.Contributors[0].IWord != 4 || !qualia.Contributors[0].IsQualia {
		t.Fatalf("expected cross-window qualia contributor, got %+v", qualia.Contributors)
	}

	if self := pool["Ground_vehicle"]; len(self.Contributors) != 0 {
		t.Fatalf("a word must not contribute to itself, got %+v", self.Contributors)
	}
}

func TestBuildDegradesOnStoreErrors(t *testing.T) {
	s := chainStore()
	s.errs["frame_relations"] = errors.New("connection reset")
	s.errs["fe_core_constraints"] = errors.New("connection reset")

	tr := trace.New()
	set := candidateSet(map[int][]wordFixture{1: {{0, "a", []string{"A"}}}})
	b := NewNetworkBuilder(NewNetworkBuilderParams{Store: s, Config: DefaultConfig(), Tracer: tr})
	if err := b.Build(context.Background(), set, BuildOptions{SearchType: SearchFECore}); err != nil {
		t.Fatalf("store errors must not fail the build: %v", err)
	}
	if findCandidate(set, 0, "A").Pool.Len() != 1 {
		t.Fatal("expected only the self entry")
	}
	if got := len(tr.Snapshot().StoreErrors); got != 2 {
		t.Fatalf("expected 2 traced errors, got %d", got)
	}
}

func TestBuildStopsOnCanceledContext(t *testing.T) {
	s := chainStore()
	s.errs["frame_relations"] = context.Canceled
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	set := candidateSet(map[int][]wordFixture{1: {{0, "a", []string{"A"}}}})
	b := NewNetworkBuilder(NewNetworkBuilderParams{Store: s, Config: DefaultConfig()})
	if err := b.Build(ctx, set, BuildOptions{SearchType: SearchRelations}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBuildRelationFamilySwitches(t *testing.T) {
	s := newFakeStore()
	s.fe["Hunting"] = []common.FEConstraint{{FEName: "Hunter", CoreType: "core", FrameEntry: "People"}}
	s.qualia[1] = []common.QualiaRelation{{AnchorID: 1, Related: common.LexicalUnit{ID: 50, FrameEntry: "Weapon"}}}

	tests := []struct {
		name    string
		weights map[string]float64
		want    []string
		miss    []string
	}{
		{"both on", nil, []string{"People", "Weapon"}, nil},
		{"fe-core off", map[string]float64{RelationFECore: 0}, []string{"Weapon"}, []string{"People"}},
		{"qualia off", map[string]float64{RelationQualia: 0}, []string{"People"}, []string{"Weapon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			for k, v := range tt.weights {
				cfg.RelationWeights[k] = v
			}
			set := candidateSet(map[int][]wordFixture{1: {{0, "hunt", []string{"Hunting"}}}})
			build(t, s, cfg, set, BuildOptions{SearchType: SearchQualia})

			pool := poolFrames(findCandidate(set, 0, "Hunting").Pool)
			for _, f := range tt.want {
				if _, ok := pool[f]; !ok {
					t.Fatalf("expected %s in pool", f)
				}
			}
			for _, f := range tt.miss {
				if _, ok := pool[f]; ok {
					t.Fatalf("%s must not be expanded", f)
				}
			}
		})
	}
}

func TestBuildKeepsShortestRelationPath(t *testing.T) {
	s := newFakeStore()
	s.relation("inheritance", "B", "A")
	s.relation("uses", "C", "A")
	s.relation("inheritance", "B", "C")

	set := candidateSet(map[int][]wordFixture{1: {{0, "a", []string{"A"}}}})
	build(t, s, DefaultConfig(), set, BuildOptions{SearchType: SearchRelations, SearchDepth: 3})

	pool := poolFrames(findCandidate(set, 0, "A").Pool)
	if e := pool["B"]; e == nil || e.Level != 1 || !closeTo(e.Factor, 0.8) || e.BaseFrame != "A" {
		t.Fatalf("direct relation replaced by a longer path: %+v", e)
	}
	if e := pool["C"]; e == nil || e.Level != 1 || !closeTo(e.Factor, 0.5) {
		t.Fatalf("unexpected entry for C: %+v", e)
	}
}
