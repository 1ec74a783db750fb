package daisy

import (
	"context"
	"slices"

	"github.com/FrameNetBrasil/daisy/pkg/common"
	"github.com/FrameNetBrasil/daisy/pkg/store"
	"github.com/FrameNetBrasil/daisy/pkg/trace"
)

// LexicalUnitMatcher turns window components into frame candidates.
type LexicalUnitMatcher struct {
	store  store.ReferenceStore
	tables *tables
	observer
}

func NewLexicalUnitMatcher(s store.ReferenceStore, cfg Config, tracer trace.Tracer) *LexicalUnitMatcher {
	return &LexicalUnitMatcher{store: s, tables: newTables(cfg), observer: observer{tracer: tracer}}
}

// Match looks up the lexical units of every component. Components with
// lemma candidates are matched by lemma name, the rest by word form. Words
// without candidates are left out. Each surviving candidate of a word starts
// with energy 1/N.
func (m *LexicalUnitMatcher) Match(ctx context.Context, windows []*common.Window, language int) (*common.CandidateSet, error) {
	set := &common.CandidateSet{Windows: make([]*common.WindowCandidates, 0, len(windows))}
	for _, w := range windows {
		wc := &common.WindowCandidates{WindowID: w.ID}
		for _, c := range w.Components() {
			word, err := m.matchComponent(ctx, c, w.ID, language)
			if err != nil {
				return nil, err
			}
			if word == nil {
				continue
			}
			wc.Words = append(wc.Words, word)
		}
		set.Windows = append(set.Windows, wc)
	}
	return set, nil
}

func (m *LexicalUnitMatcher) matchComponent(
	ctx context.Context,
	c *common.Component,
	windowID int,
	language int,
) (*common.WordCandidates, error) {
	var (
		lus   []common.LexicalUnit
		err   error
		query string
	)
	if names := c.Token.LemmaNames(); len(names) > 0 {
		query = "lexical_units_by_lemmas"
		lus, err = m.store.LexicalUnitsByLemmas(ctx, names, language)
	} else {
		query = "lexical_units_by_form"
		lus, err = m.store.LexicalUnitsByForm(ctx, normalizeForm(c.Token.Word), language)
	}
	if err != nil {
		if err := m.degrade(ctx, "LexicalUnits", query, err); err != nil {
			return nil, err
		}
		return nil, nil
	}

	word := common.NewWordCandidates(c.Token.Position, c.Token.Word, windowID)
	ids := make([]int64, 0, len(lus))
	for _, lu := range lus {
		if m.tables.cfg.FilterByPOS && !m.tables.posAllowed(c.ResolvedFunction, lu.POS) {
			continue
		}
		ids = append(ids, lu.ID)
		word.Put(&common.FrameCandidate{
			IWord:                 c.Token.Position,
			Word:                  c.Token.Word,
			WindowID:              windowID,
			LexicalUnitID:         lu.ID,
			LexicalUnitName:       lu.Name,
			LexicalUnitPOS:        lu.POS,
			FrameID:               lu.FrameID,
			FrameEntry:            lu.FrameEntry,
			FrameName:             lu.FrameName,
			IsMultiWordExpression: c.Token.IsMultiWordExpression || lu.IsMWE,
			IsDomainMember:        m.tables.cfg.Domain != "" && slices.Contains(lu.Domains, m.tables.cfg.Domain),
		})
	}
	trace.RecordQueriedLexicalUnits(m.tracer, ids...)

	if len(word.Candidates) == 0 {
		return nil, nil
	}
	energy := 1.0 / float64(len(word.Candidates))
	for _, cand := range word.Candidates {
		cand.Energy = energy
	}
	return word, nil
}
