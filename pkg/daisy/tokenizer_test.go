package daisy

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/FrameNetBrasil/daisy/pkg/common"
	"github.com/FrameNetBrasil/daisy/pkg/trace"
)

func words(tokens []common.Token) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, t.Word)
	}
	return out
}

func TestSplit(t *testing.T) {
	tests := []struct {
		sentence string
		want     []string
	}{
		{"The cat sat.", []string{"The", "cat", "sat", "."}},
		{"  ", nil},
		{"", nil},
		{"Wait... what?!", []string{"Wait", ".", ".", ".", "what", "?", "!"}},
		{"O gato, sentado.", []string{"O", "gato", ",", "sentado", "."}},
	}
	for _, tt := range tests {
		t.Run(tt.sentence, func(t *testing.T) {
			got := Split(tt.sentence)
			var forms []string
			for i, p := range got {
				if p.Position != i {
					t.Fatalf("position %d at index %d", p.Position, i)
				}
				forms = append(forms, p.Word)
			}
			if !reflect.DeepEqual(forms, tt.want) {
				t.Fatalf("got %q, want %q", forms, tt.want)
			}
		})
	}

	got := Split("The cat sat.")
	if got[3].POS != posPunct || got[0].POS != "" {
		t.Fatalf("unexpected POS tags %+v", got)
	}
}

func TestTokenizeEmptySentence(t *testing.T) {
	tok := NewTokenizer(newFakeStore(), nil)
	tokens, err := tok.Tokenize(context.Background(), "", 1)
	if err != nil || len(tokens) != 0 {
		t.Fatalf("expected no tokens, got %v %v", tokens, err)
	}
}

func TestTokenizerLemmaCandidates(t *testing.T) {
	s := newFakeStore()
	s.word("sat", 3, "sit")
	s.word("sit", 3, "sit")
	s.word("cat", 2, "cat")

	parsed := []common.ParsedToken{
		{Position: 0, Word: "Cat", Lemma: "cat", POS: "NOUN"},
		{Position: 1, Word: "sat", Lemma: "sit", POS: "VERB"},
		{Position: 2, Word: "zzz", Lemma: "zzz", POS: "X"},
	}
	tokens, err := NewTokenizer(s, nil).FromParsed(context.Background(), parsed, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(tokens[0].Lemmas, []common.Lemma{{ID: 2, Name: "cat"}}) {
		t.Fatalf("expected case-insensitive lemma match, got %+v", tokens[0].Lemmas)
	}
	if !reflect.DeepEqual(tokens[1].Lemmas, []common.Lemma{{ID: 3, Name: "sit"}}) {
		t.Fatalf("expected deduplicated lemma, got %+v", tokens[1].Lemmas)
	}
	if len(tokens[2].Lemmas) != 0 {
		t.Fatalf("expected no lemma for unknown word, got %+v", tokens[2].Lemmas)
	}
}

func TestTokenizerMultiWordExpressions(t *testing.T) {
	s := newFakeStore()
	s.word("take", 1, "take")
	s.word("off", 2, "off")
	s.word("now", 3, "now")
	s.word("again", 4, "again")
	s.mwes = []common.MultiWordExpression{
		{LemmaID: 10, Name: "take off", Parts: []common.MWEPart{{LemmaID: 1}, {LemmaID: 2}}},
		{LemmaID: 11, Name: "take off now", Parts: []common.MWEPart{{LemmaID: 1}, {LemmaID: 2}, {LemmaID: 3}}},
		{LemmaID: 12, Name: "now again broken", Parts: []common.MWEPart{{LemmaID: 3}, {LemmaID: 0}}},
	}

	tests := []struct {
		name     string
		sentence string
		want     []string
		mwe      []bool
	}{
		{"longest match wins", "take off now", []string{"take off now"}, []bool{true}},
		{"shorter match", "take off again", []string{"take off", "again"}, []bool{true, false}},
		{"punctuation breaks a match", "take, off", []string{"take", ",", "off"}, []bool{false, false, false}},
		{"corrupt pattern ignored", "now again", []string{"now", "again"}, []bool{false, false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := NewTokenizer(s, nil).Tokenize(context.Background(), tt.sentence, 1)
			if err != nil {
				t.Fatal(err)
			}
			if got := words(tokens); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
			for i, tok := range tokens {
				if tok.IsMultiWordExpression != tt.mwe[i] {
					t.Fatalf("token %d: mwe=%v", i, tok.IsMultiWordExpression)
				}
			}
		})
	}

	tokens, _ := NewTokenizer(s, nil).Tokenize(context.Background(), "take off again", 1)
	first := tokens[0]
	if first.Start != 0 || first.End != 2 || first.Position != 0 {
		t.Fatalf("unexpected span %+v", first)
	}
	if !reflect.DeepEqual(first.Lemmas, []common.Lemma{{ID: 10, Name: "take off"}}) {
		t.Fatalf("expected the expression's own lemma, got %+v", first.Lemmas)
	}
	if tokens[1].Position != 2 {
		t.Fatalf("expected following token to keep its parse position, got %d", tokens[1].Position)
	}
}

func TestTokenizerDegradesOnStoreErrors(t *testing.T) {
	s := newFakeStore()
	s.word("cat", 2, "cat")
	s.errs["lemmas_by_forms"] = errors.New("db down")
	s.errs["multi_word_expressions"] = errors.New("db down")

	tr := trace.New()
	tokens, err := NewTokenizer(s, tr).Tokenize(context.Background(), "cat", 1)
	if err != nil {
		t.Fatalf("store errors must not abort tokenization: %v", err)
	}
	if len(tokens) != 1 || len(tokens[0].Lemmas) != 0 {
		t.Fatalf("expected one token without lemmas, got %+v", tokens)
	}
	if got := len(tr.Snapshot().StoreErrors); got != 2 {
		t.Fatalf("expected both failures traced, got %d", got)
	}
}

func TestTokenizerStopsOnCanceledContext(t *testing.T) {
	s := newFakeStore()
	s.errs["lemmas_by_forms"] = context.Canceled
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewTokenizer(s, nil).Tokenize(ctx, "cat", 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
