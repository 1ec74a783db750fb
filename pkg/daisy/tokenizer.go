package daisy

import (
	"context"
	"sort"
	"strings"

	"github.com/rivo/uniseg"

	"github.com/FrameNetBrasil/daisy/pkg/common"
	"github.com/FrameNetBrasil/daisy/pkg/logger"
	"github.com/FrameNetBrasil/daisy/pkg/store"
	"github.com/FrameNetBrasil/daisy/pkg/trace"
)

const posPunct = "PUNCT"

// Tokenizer turns words into tokens, merging runs that form a known
// multi-word expression into a single token.
type Tokenizer struct {
	store store.ReferenceStore
	observer
}

func NewTokenizer(s store.ReferenceStore, tracer trace.Tracer) *Tokenizer {
	return &Tokenizer{store: s, observer: observer{tracer: tracer}}
}

// Split breaks a sentence on Unicode word boundaries. Punctuation becomes one
// token per character and whitespace is dropped. It stands in for the parser
// when the parser is unavailable.
func Split(sentence string) []common.ParsedToken {
	out := make([]common.ParsedToken, 0)
	add := func(word string, punct bool) {
		tok := common.ParsedToken{
			Position:       len(out),
			Word:           word,
			Lemma:          word,
			ParentPosition: -1,
		}
		if punct {
			tok.POS = posPunct
		}
		out = append(out, tok)
	}

	state := -1
	rest := sentence
	var word string
	for len(rest) > 0 {
		word, rest, state = uniseg.FirstWordInString(rest, state)
		if strings.TrimSpace(word) == "" {
			continue
		}
		if isPunctuation(word) {
			for _, r := range word {
				add(string(r), true)
			}
			continue
		}
		add(word, false)
	}
	return out
}

// Tokenize splits a raw sentence and groups multi-word expressions.
func (t *Tokenizer) Tokenize(ctx context.Context, sentence string, language int) ([]common.Token, error) {
	return t.FromParsed(ctx, Split(sentence), language)
}

// FromParsed builds tokens from parser output. Lemma candidates are looked up
// for both the surface form and the parser's lemma.
func (t *Tokenizer) FromParsed(ctx context.Context, parsed []common.ParsedToken, language int) ([]common.Token, error) {
	if len(parsed) == 0 {
		return []common.Token{}, nil
	}

	words := make([]common.Token, 0, len(parsed))
	keys := make([]string, 0, 2*len(parsed))
	for _, p := range parsed {
		tok := common.Token{
			Position:           p.Position,
			Start:              p.Position,
			End:                p.Position + 1,
			Word:               p.Word,
			POS:                p.POS,
			DependencyRelation: p.DependencyRelation,
			ParentPosition:     p.ParentPosition,
			Children:           p.Children,
			IsPunctuation:      strings.EqualFold(p.POS, posPunct) || isPunctuation(p.Word),
		}
		words = append(words, tok)
		if tok.IsPunctuation {
			continue
		}
		keys = append(keys, normalizeForm(p.Word))
		if p.Lemma != "" {
			keys = append(keys, normalizeForm(p.Lemma))
		}
	}

	lemmas, err := t.store.LemmasByForms(ctx, keys, language)
	if err != nil {
		if err := t.degrade(ctx, "Tokenizer", "lemmas_by_forms", err); err != nil {
			return nil, err
		}
		lemmas = nil
	}
	for i, p := range parsed {
		if words[i].IsPunctuation {
			continue
		}
		words[i].Lemmas = mergeLemmas(lemmas[normalizeForm(p.Word)], lemmas[normalizeForm(p.Lemma)])
		trace.RecordQueriedLemmas(t.tracer, words[i].LemmaNames()...)
	}

	mwes, err := t.store.MultiWordExpressions(ctx, language)
	if err != nil {
		if err := t.degrade(ctx, "Tokenizer", "multi_word_expressions", err); err != nil {
			return nil, err
		}
		mwes = nil
	}

	return groupExpressions(words, newMWEIndex(mwes)), nil
}

func mergeLemmas(lists ...[]common.Lemma) []common.Lemma {
	var out []common.Lemma
	seen := make(map[int64]struct{})
	for _, list := range lists {
		for _, l := range list {
			if _, ok := seen[l.ID]; ok {
				continue
			}
			seen[l.ID] = struct{}{}
			out = append(out, l)
		}
	}
	return out
}

// mweIndex maps the lemma id of an expression's first word to the
// expressions starting with it, longest first.
type mweIndex map[int64][]common.MultiWordExpression

func newMWEIndex(mwes []common.MultiWordExpression) mweIndex {
	idx := make(mweIndex)
	for _, m := range mwes {
		if len(m.Parts) < 2 || !complete(m) {
			continue
		}
		first := m.Parts[0].LemmaID
		idx[first] = append(idx[first], m)
	}
	for _, list := range idx {
		sort.SliceStable(list, func(i, j int) bool {
			return len(list[i].Parts) > len(list[j].Parts)
		})
	}
	return idx
}

func complete(m common.MultiWordExpression) bool {
	if m.LemmaID == 0 {
		return false
	}
	for _, p := range m.Parts {
		if p.LemmaID == 0 {
			return false
		}
	}
	return true
}

// match returns the longest expression starting at words[i].
func (idx mweIndex) match(words []common.Token, i int) (common.MultiWordExpression, bool) {
	var best common.MultiWordExpression
	found := false
	for _, l := range words[i].Lemmas {
		for _, m := range idx[l.ID] {
			if found && len(m.Parts) <= len(best.Parts) {
				break
			}
			if matchesAt(words, i, m) {
				best, found = m, true
				break
			}
		}
	}
	return best, found
}

func matchesAt(words []common.Token, i int, m common.MultiWordExpression) bool {
	if i+len(m.Parts) > len(words) {
		return false
	}
	for k := 1; k < len(m.Parts); k++ {
		w := words[i+k]
		if w.IsPunctuation || !hasLemma(w, m.Parts[k].LemmaID) {
			return false
		}
	}
	return true
}

func hasLemma(t common.Token, id int64) bool {
	for _, l := range t.Lemmas {
		if l.ID == id {
			return true
		}
	}
	return false
}

func groupExpressions(words []common.Token, idx mweIndex) []common.Token {
	out := make([]common.Token, 0, len(words))
	for i := 0; i < len(words); {
		w := words[i]
		if w.IsPunctuation {
			out = append(out, w)
			i++
			continue
		}
		m, ok := idx.match(words, i)
		if !ok {
			out = append(out, w)
			i++
			continue
		}

		span := words[i : i+len(m.Parts)]
		forms := make([]string, 0, len(span))
		for _, s := range span {
			forms = append(forms, s.Word)
		}
		merged := w
		merged.End = span[len(span)-1].End
		merged.Word = strings.Join(forms, " ")
		merged.IsMultiWordExpression = true
		merged.Lemmas = []common.Lemma{{ID: m.LemmaID, Name: m.Name}}
		logger.Debug("[Daisy][Tokenizer] Matched multi-word expression", "mwe", m.Name, "start", merged.Start, "end", merged.End)

		out = append(out, merged)
		i += len(m.Parts)
	}
	return out
}
