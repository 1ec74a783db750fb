package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/FrameNetBrasil/daisy/pkg/common"
	"github.com/FrameNetBrasil/daisy/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type countingStore struct {
	calls   atomic.Int32
	fail    atomic.Bool
	release chan struct{}
}

func (s *countingStore) LemmasByForms(context.Context, []string, int) (map[string][]common.Lemma, error) {
	s.calls.Add(1)
	return map[string][]common.Lemma{"cat": {{ID: 1, Name: "cat"}}}, nil
}

func (s *countingStore) MultiWordExpressions(context.Context, int) ([]common.MultiWordExpression, error) {
	s.calls.Add(1)
	return []common.MultiWordExpression{{LemmaID: 1, Name: "take off", Parts: []common.MWEPart{{LemmaID: 2}}}}, nil
}

func (s *countingStore) LexicalUnitsByLemmas(ctx context.Context, _ []string, _ int) ([]common.LexicalUnit, error) {
	s.calls.Add(1)
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.fail.Load() {
		return nil, errors.New("db down")
	}
	return []common.LexicalUnit{{ID: 1, Name: "cat.n", FrameEntry: "frm_animals", Domains: []string{"MKNOB"}}}, nil
}

func (s *countingStore) LexicalUnitsByForm(context.Context, string, int) ([]common.LexicalUnit, error) {
	s.calls.Add(1)
	return nil, nil
}

func (s *countingStore) FrameRelations(context.Context, string, []string) ([]common.FrameRelation, error) {
	s.calls.Add(1)
	return []common.FrameRelation{{RelationType: "inheritance"}}, nil
}

func (s *countingStore) FECoreConstraints(context.Context, string) ([]common.FEConstraint, error) {
	s.calls.Add(1)
	return nil, nil
}

func (s *countingStore) QualiaRelations(context.Context, int64) ([]common.QualiaRelation, error) {
	s.calls.Add(1)
	return nil, nil
}

func TestCacheHitsAndNormalizesKeys(t *testing.T) {
	next := &countingStore{}
	m := metrics.New()
	c := New(next, WithMetrics(m))
	ctx := context.Background()

	if _, err := c.LexicalUnitsByLemmas(ctx, []string{"Cat", "sit"}, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := c.LexicalUnitsByLemmas(ctx, []string{"sit", "cat", "CAT"}, 1); err != nil {
		t.Fatal(err)
	}
	if got := next.calls.Load(); got != 1 {
		t.Fatalf("expected one backend call, got %d", got)
	}
	if _, err := c.LexicalUnitsByLemmas(ctx, []string{"cat", "sit"}, 2); err != nil {
		t.Fatal(err)
	}
	if got := next.calls.Load(); got != 2 {
		t.Fatalf("expected language to be part of the key, got %d calls", got)
	}
	if got := testutil.ToFloat64(m.CacheRequests.WithLabelValues(queryLUByLemmas, "hit")); got != 1 {
		t.Fatalf("expected 1 hit, got %v", got)
	}
}

func TestCacheExpires(t *testing.T) {
	next := &countingStore{}
	now := time.Unix(0, 0)
	c := New(next, WithTTL(time.Minute), WithClock(func() time.Time { return now }))
	ctx := context.Background()

	_, _ = c.FrameRelations(ctx, "frm_motion", []string{"uses", "inheritance"})
	_, _ = c.FrameRelations(ctx, "frm_motion", []string{"inheritance", "uses"})
	if got := next.calls.Load(); got != 1 {
		t.Fatalf("expected one backend call, got %d", got)
	}

	now = now.Add(2 * time.Minute)
	_, _ = c.FrameRelations(ctx, "frm_motion", []string{"inheritance", "uses"})
	if got := next.calls.Load(); got != 2 {
		t.Fatalf("expected expired entry to reload, got %d calls", got)
	}
}

func TestCacheDoesNotStoreErrors(t *testing.T) {
	next := &countingStore{}
	next.fail.Store(true)
	c := New(next)
	ctx := context.Background()

	if _, err := c.LexicalUnitsByLemmas(ctx, []string{"cat"}, 1); err == nil {
		t.Fatal("expected backend error")
	}
	next.fail.Store(false)
	lus, err := c.LexicalUnitsByLemmas(ctx, []string{"cat"}, 1)
	if err != nil || len(lus) != 1 {
		t.Fatalf("expected a fresh load, got %v %v", lus, err)
	}
	if c.Len() != 1 {
		t.Fatalf("expected one cached entry, got %d", c.Len())
	}
}

func TestCacheReturnsCopies(t *testing.T) {
	c := New(&countingStore{})
	ctx := context.Background()

	first, _ := c.LexicalUnitsByLemmas(ctx, []string{"cat"}, 1)
	first[0].Name = "mutated"
	first[0].Domains[0] = "mutated"

	second, _ := c.LexicalUnitsByLemmas(ctx, []string{"cat"}, 1)
	if second[0].Name != "cat.n" || second[0].Domains[0] != "MKNOB" {
		t.Fatalf("cached value was mutated: %+v", second[0])
	}

	lemmas, _ := c.LemmasByForms(ctx, []string{"cat"}, 1)
	lemmas["cat"][0].Name = "mutated"
	lemmas, _ = c.LemmasByForms(ctx, []string{"cat"}, 1)
	if lemmas["cat"][0].Name != "cat" {
		t.Fatalf("cached lemma map was mutated: %+v", lemmas)
	}
}

func TestCacheCollapsesConcurrentMisses(t *testing.T) {
	next := &countingStore{release: make(chan struct{})}
	c := New(next)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.LexicalUnitsByLemmas(ctx, []string{"cat"}, 1)
		}()
	}
	// Let the goroutines pile up on the in-flight call before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(next.release)
	wg.Wait()

	if got := next.calls.Load(); got != 1 {
		t.Fatalf("expected a single backend call, got %d", got)
	}
}

func TestInvalidate(t *testing.T) {
	next := &countingStore{}
	c := New(next)
	ctx := context.Background()

	_, _ = c.MultiWordExpressions(ctx, 1)
	c.Invalidate()
	if c.Len() != 0 {
		t.Fatalf("expected empty cache, got %d", c.Len())
	}
	_, _ = c.MultiWordExpressions(ctx, 1)
	if got := next.calls.Load(); got != 2 {
		t.Fatalf("expected reload after invalidate, got %d calls", got)
	}
}

func TestCacheCallerCancelDoesNotFailOthers(t *testing.T) {
	next := &countingStore{release: make(chan struct{})}
	c := New(next)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := c.LexicalUnitsByLemmas(ctxA, []string{"cat"}, 1)
		errA <- err
	}()
	// let A start the shared load before B joins it
	time.Sleep(20 * time.Millisecond)

	type result struct {
		lus []common.LexicalUnit
		err error
	}
	resB := make(chan result, 1)
	go func() {
		lus, err := c.LexicalUnitsByLemmas(context.Background(), []string{"cat"}, 1)
		resB <- result{lus, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	select {
	case err := <-errA:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected canceled caller to get context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("canceled caller still waiting")
	}

	close(next.release)
	select {
	case r := <-resB:
		if r.err != nil {
			t.Fatalf("second caller failed: %v", r.err)
		}
		if len(r.lus) != 1 || r.lus[0].Name != "cat.n" {
			t.Fatalf("unexpected units: %+v", r.lus)
		}
	case <-time.After(time.Second):
		t.Fatal("second caller never returned")
	}
	if got := next.calls.Load(); got != 1 {
		t.Fatalf("expected one shared backend call, got %d", got)
	}
}

func TestCacheLoadTimeout(t *testing.T) {
	next := &countingStore{release: make(chan struct{})}
	defer close(next.release)
	c := New(next, WithLoadTimeout(30*time.Millisecond))

	_, err := c.LexicalUnitsByLemmas(context.Background(), []string{"cat"}, 1)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
