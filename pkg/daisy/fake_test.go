package daisy

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/FrameNetBrasil/daisy/pkg/common"
)

// fakeStore is an in-memory ReferenceStore. Keys are lower-case.
type fakeStore struct {
	lemmas    map[string][]common.Lemma
	mwes      []common.MultiWordExpression
	lus       map[string][]common.LexicalUnit
	forms     map[string][]common.LexicalUnit
	relations map[string][]common.FrameRelation
	fe        map[string][]common.FEConstraint
	qualia    map[int64][]common.QualiaRelation
	errs      map[string]error

	mu    sync.Mutex
	calls map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		lemmas:    make(map[string][]common.Lemma),
		lus:       make(map[string][]common.LexicalUnit),
		forms:     make(map[string][]common.LexicalUnit),
		relations: make(map[string][]common.FrameRelation),
		fe:        make(map[string][]common.FEConstraint),
		qualia:    make(map[int64][]common.QualiaRelation),
		errs:      make(map[string]error),
		calls:     make(map[string]int),
	}
}

func (s *fakeStore) call(query string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[query]++
	return s.errs[query]
}

func (s *fakeStore) callCount(query string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[query]
}

// word registers a word form with a single lemma of the same id.
func (s *fakeStore) word(form string, lemmaID int64, lemma string) {
	s.lemmas[strings.ToLower(form)] = append(s.lemmas[strings.ToLower(form)], common.Lemma{ID: lemmaID, Name: lemma})
}

func (s *fakeStore) lu(lemma string, lus ...common.LexicalUnit) {
	for i := range lus {
		if lus[i].LemmaName == "" {
			lus[i].LemmaName = lemma
		}
	}
	s.lus[strings.ToLower(lemma)] = append(s.lus[strings.ToLower(lemma)], lus...)
}

func (s *fakeStore) relation(relType, from, to string) {
	s.relations[to] = append(s.relations[to], common.FrameRelation{RelationType: relType, FromEntry: from, ToEntry: to})
}

func (s *fakeStore) LemmasByForms(_ context.Context, forms []string, _ int) (map[string][]common.Lemma, error) {
	if err := s.call("lemmas_by_forms"); err != nil {
		return nil, err
	}
	out := make(map[string][]common.Lemma)
	for _, f := range forms {
		key := strings.ToLower(f)
		if l, ok := s.lemmas[key]; ok {
			out[key] = slices.Clone(l)
		}
	}
	return out, nil
}

func (s *fakeStore) MultiWordExpressions(context.Context, int) ([]common.MultiWordExpression, error) {
	if err := s.call("multi_word_expressions"); err != nil {
		return nil, err
	}
	return slices.Clone(s.mwes), nil
}

func (s *fakeStore) LexicalUnitsByLemmas(_ context.Context, lemmas []string, _ int) ([]common.LexicalUnit, error) {
	if err := s.call("lexical_units_by_lemmas"); err != nil {
		return nil, err
	}
	seen := make(map[int64]struct{})
	var out []common.LexicalUnit
	for _, l := range lemmas {
		for _, lu := range s.lus[strings.ToLower(l)] {
			if _, ok := seen[lu.ID]; ok {
				continue
			}
			seen[lu.ID] = struct{}{}
			out = append(out, lu)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) LexicalUnitsByForm(_ context.Context, form string, _ int) ([]common.LexicalUnit, error) {
	if err := s.call("lexical_units_by_form"); err != nil {
		return nil, err
	}
	return slices.Clone(s.forms[strings.ToLower(form)]), nil
}

func (s *fakeStore) FrameRelations(_ context.Context, frameEntry string, relationTypes []string) ([]common.FrameRelation, error) {
	if err := s.call("frame_relations"); err != nil {
		return nil, err
	}
	var out []common.FrameRelation
	for _, r := range s.relations[frameEntry] {
		if slices.Contains(relationTypes, r.RelationType) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeStore) FECoreConstraints(_ context.Context, frameEntry string) ([]common.FEConstraint, error) {
	if err := s.call("fe_core_constraints"); err != nil {
		return nil, err
	}
	return slices.Clone(s.fe[frameEntry]), nil
}

func (s *fakeStore) QualiaRelations(_ context.Context, lexicalUnitID int64) ([]common.QualiaRelation, error) {
	if err := s.call("qualia_relations"); err != nil {
		return nil, err
	}
	return slices.Clone(s.qualia[lexicalUnitID]), nil
}

// candidateSet builds a set by hand: one window per key of words, candidates
// given as (iword, frame entry) with energy 1/N per word.
type wordFixture struct {
	iword  int
	word   string
	frames []string
}

func candidateSet(windows map[int][]wordFixture) *common.CandidateSet {
	ids := make([]int, 0, len(windows))
	for id := range windows {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	set := &common.CandidateSet{}
	luID := int64(1)
	for _, id := range ids {
		wc := &common.WindowCandidates{WindowID: id}
		for _, ws := range windows[id] {
			w := common.NewWordCandidates(ws.iword, ws.word, id)
			for _, f := range ws.frames {
				w.Put(&common.FrameCandidate{
					IWord:           ws.iword,
					Word:            ws.word,
					WindowID:        id,
					LexicalUnitID:   luID,
					LexicalUnitName: ws.word + "." + f,
					FrameEntry:      f,
					FrameName:       f,
					Energy:          1.0 / float64(len(ws.frames)),
				})
				luID++
			}
			wc.Words = append(wc.Words, w)
		}
		set.Windows = append(set.Windows, wc)
	}
	return set
}

func findCandidate(set *common.CandidateSet, iword int, frame string) *common.FrameCandidate {
	for _, w := range set.Words() {
		if w.IWord != iword {
			continue
		}
		if c, ok := w.Get(frame); ok {
			return c
		}
	}
	return nil
}
