package cache

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/FrameNetBrasil/daisy/pkg/common"
	"github.com/FrameNetBrasil/daisy/pkg/metrics"
	"github.com/FrameNetBrasil/daisy/pkg/store"
)

const (
	DefaultTTL         = 10 * time.Minute
	DefaultMWETTL      = time.Hour
	DefaultLoadTimeout = 30 * time.Second
)

const (
	queryLemmas        = "lemmas_by_forms"
	queryMWE           = "multi_word_expressions"
	queryLUByLemmas    = "lexical_units_by_lemmas"
	queryLUByForm      = "lexical_units_by_form"
	queryRelations     = "frame_relations"
	queryFEConstraints = "fe_core_constraints"
	queryQualia        = "qualia_relations"
)

type entry struct {
	value  any
	expiry time.Time
}

// CachedReferenceStore memoizes a ReferenceStore with a per-entry TTL.
// Concurrent misses on the same key share one backend call. Errors are
// never cached, and every result handed out is a copy.
type CachedReferenceStore struct {
	next store.ReferenceStore

	ttl         time.Duration
	mweTTL      time.Duration
	loadTimeout time.Duration
	metrics     *metrics.Collector
	now     func() time.Time

	mu         sync.RWMutex
	entries    map[string]entry
	generation uint64
	group      singleflight.Group
}

type Option func(*CachedReferenceStore)

func WithTTL(ttl time.Duration) Option {
	return func(c *CachedReferenceStore) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithMWETTL sets the TTL of the multi-word-expression index, which is
// large and changes rarely.
func WithMWETTL(ttl time.Duration) Option {
	return func(c *CachedReferenceStore) {
		if ttl > 0 {
			c.mweTTL = ttl
		}
	}
}

// WithLoadTimeout bounds a backend call. Callers stop waiting when their own
// context ends, but the shared call runs on until it returns or times out.
func WithLoadTimeout(d time.Duration) Option {
	return func(c *CachedReferenceStore) {
		if d > 0 {
			c.loadTimeout = d
		}
	}
}

func WithMetrics(m *metrics.Collector) Option {
	return func(c *CachedReferenceStore) {
		c.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *CachedReferenceStore) {
		if now != nil {
			c.now = now
		}
	}
}

func New(next store.ReferenceStore, opts ...Option) *CachedReferenceStore {
	c := &CachedReferenceStore{
		next:        next,
		ttl:         DefaultTTL,
		mweTTL:      DefaultMWETTL,
		loadTimeout: DefaultLoadTimeout,
		now:         time.Now,
		entries:     make(map[string]entry),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(c)
	}
	return c
}

// Invalidate drops every cached entry. Loads already in flight finish but
// do not repopulate the cache.
func (c *CachedReferenceStore) Invalidate() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.generation++
	c.mu.Unlock()
}

// Len reports the number of live entries.
func (c *CachedReferenceStore) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	n := 0
	for _, e := range c.entries {
		if now.Before(e.expiry) {
			n++
		}
	}
	return n
}

func (c *CachedReferenceStore) get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expiry) {
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && !c.now().Before(cur.expiry) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

func lookup[T any](
	ctx context.Context,
	c *CachedReferenceStore,
	query string,
	key string,
	ttl time.Duration,
	load func(ctx context.Context) (T, error),
	clone func(T) T,
) (T, error) {
	if v, ok := c.get(key); ok {
		c.metrics.CacheRequest(query, true)
		return clone(v.(T)), nil
	}
	c.metrics.CacheRequest(query, false)

	c.mu.RLock()
	gen := c.generation
	c.mu.RUnlock()

	// the load is shared by every waiter on key and outlives the caller that started it
	ch := c.group.DoChan(key, func() (any, error) {
		if v, ok := c.get(key); ok {
			return v, nil
		}

		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()
		v, err := load(loadCtx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.generation == gen {
			c.entries[key] = entry{value: v, expiry: c.now().Add(ttl)}
		}
		c.mu.Unlock()

		return v, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return clone(res.Val.(T)), nil
	}
}

func cacheKey(query string, language int, args ...string) string {
	return fmt.Sprintf("%s:%d:%s", query, language, strings.Join(args, "\x1f"))
}

func (c *CachedReferenceStore) LemmasByForms(
	ctx context.Context,
	forms []string,
	language int,
) (map[string][]common.Lemma, error) {
	keys := store.NormalizeNames(forms)
	return lookup(ctx, c, queryLemmas, cacheKey(queryLemmas, language, keys...), c.ttl,
		func(ctx context.Context) (map[string][]common.Lemma, error) {
			return c.next.LemmasByForms(ctx, keys, language)
		},
		cloneLemmaMap,
	)
}

func (c *CachedReferenceStore) MultiWordExpressions(ctx context.Context, language int) ([]common.MultiWordExpression, error) {
	return lookup(ctx, c, queryMWE, cacheKey(queryMWE, language), c.mweTTL,
		func(ctx context.Context) ([]common.MultiWordExpression, error) {
			return c.next.MultiWordExpressions(ctx, language)
		},
		cloneMWEs,
	)
}

func (c *CachedReferenceStore) LexicalUnitsByLemmas(
	ctx context.Context,
	lemmas []string,
	language int,
) ([]common.LexicalUnit, error) {
	keys := store.NormalizeNames(lemmas)
	return lookup(ctx, c, queryLUByLemmas, cacheKey(queryLUByLemmas, language, keys...), c.ttl,
		func(ctx context.Context) ([]common.LexicalUnit, error) {
			return c.next.LexicalUnitsByLemmas(ctx, keys, language)
		},
		cloneLexicalUnits,
	)
}

func (c *CachedReferenceStore) LexicalUnitsByForm(
	ctx context.Context,
	form string,
	language int,
) ([]common.LexicalUnit, error) {
	key := store.FoldKey(form)
	return lookup(ctx, c, queryLUByForm, cacheKey(queryLUByForm, language, key), c.ttl,
		func(ctx context.Context) ([]common.LexicalUnit, error) {
			return c.next.LexicalUnitsByForm(ctx, key, language)
		},
		cloneLexicalUnits,
	)
}

func (c *CachedReferenceStore) FrameRelations(
	ctx context.Context,
	frameEntry string,
	relationTypes []string,
) ([]common.FrameRelation, error) {
	types := slices.Sorted(slices.Values(store.DedupeStrings(relationTypes)))
	args := append([]string{frameEntry}, types...)
	return lookup(ctx, c, queryRelations, cacheKey(queryRelations, 0, args...), c.ttl,
		func(ctx context.Context) ([]common.FrameRelation, error) {
			return c.next.FrameRelations(ctx, frameEntry, types)
		},
		slices.Clone[[]common.FrameRelation],
	)
}

func (c *CachedReferenceStore) FECoreConstraints(ctx context.Context, frameEntry string) ([]common.FEConstraint, error) {
	return lookup(ctx, c, queryFEConstraints, cacheKey(queryFEConstraints, 0, frameEntry), c.ttl,
		func(ctx context.Context) ([]common.FEConstraint, error) {
			return c.next.FECoreConstraints(ctx, frameEntry)
		},
		slices.Clone[[]common.FEConstraint],
	)
}

func (c *CachedReferenceStore) QualiaRelations(ctx context.Context, lexicalUnitID int64) ([]common.QualiaRelation, error) {
	key := cacheKey(queryQualia, 0, fmt.Sprint(lexicalUnitID))
	return lookup(ctx, c, queryQualia, key, c.ttl,
		func(ctx context.Context) ([]common.QualiaRelation, error) {
			return c.next.QualiaRelations(ctx, lexicalUnitID)
		},
		cloneQualia,
	)
}

func cloneLemmaMap(in map[string][]common.Lemma) map[string][]common.Lemma {
	if in == nil {
		return nil
	}
	out := maps.Clone(in)
	for k, v := range out {
		out[k] = slices.Clone(v)
	}
	return out
}

func cloneMWEs(in []common.MultiWordExpression) []common.MultiWordExpression {
	out := slices.Clone(in)
	for i := range out {
		out[i].Parts = slices.Clone(out[i].Parts)
	}
	return out
}

func cloneLexicalUnits(in []common.LexicalUnit) []common.LexicalUnit {
	out := slices.Clone(in)
	for i := range out {
		out[i].Domains = slices.Clone(out[i].Domains)
	}
	return out
}

func cloneQualia(in []common.QualiaRelation) []common.QualiaRelation {
	out := slices.Clone(in)
	for i := range out {
		out[i].Related.Domains = slices.Clone(out[i].Related.Domains)
	}
	return out
}
