package trace

import (
	"slices"
	"sort"
	"sync"
)

type EventKind string

const (
	EventQueriedLemmas       EventKind = "queried_lemmas"
	EventQueriedLexicalUnits EventKind = "queried_lexical_units"
	EventExpandedFrames      EventKind = "expanded_frames"
	EventStoreError          EventKind = "store_error"
)

// Event is an extensible event envelope for pipeline tracing.
// Additive changes to this struct are backward compatible for implementers.
type Event struct {
	Kind EventKind

	Lemmas         []string
	LexicalUnitIDs []int64
	Frames         []string

	Query string
	Error string
}

// Tracer is a sink for pipeline tracing events.
//
// Implementers can forward events to logs, metrics, or custom post-processing.
type Tracer interface {
	Record(event Event)
}

// MultiTracer fan-outs trace events to multiple tracers.
type MultiTracer []Tracer

func (m MultiTracer) Record(event Event) {
	for _, t := range m {
		if t == nil {
			continue
		}
		t.Record(event)
	}
}

func RecordQueriedLemmas(t Tracer, lemmas ...string) {
	if t == nil {
		return
	}
	t.Record(Event{Kind: EventQueriedLemmas, Lemmas: lemmas})
}

func RecordQueriedLexicalUnits(t Tracer, ids ...int64) {
	if t == nil {
		return
	}
	t.Record(Event{Kind: EventQueriedLexicalUnits, LexicalUnitIDs: ids})
}

func RecordExpandedFrames(t Tracer, frames ...string) {
	if t == nil {
		return
	}
	t.Record(Event{Kind: EventExpandedFrames, Frames: frames})
}

// RecordStoreError notes a reference-store query that failed and was degraded
// to an empty result.
func RecordStoreError(t Tracer, query string, err error) {
	if t == nil || err == nil {
		return
	}
	t.Record(Event{Kind: EventStoreError, Query: query, Error: err.Error()})
}

// Trace collects what a disambiguation run looked up and which store calls
// degraded.
//
// Trace is safe for concurrent use.
type Trace struct {
	mu sync.Mutex

	lemmas         map[string]struct{}
	lexicalUnitIDs map[int64]struct{}
	frames         map[string]struct{}
	storeErrors    []StoreError
}

type StoreError struct {
	Query string `json:"query"`
	Error string `json:"error"`
}

type Snapshot struct {
	Lemmas         []string     `json:"lemmas"`
	LexicalUnitIDs []int64      `json:"lexicalUnitIds"`
	Frames         []string     `json:"frames"`
	StoreErrors    []StoreError `json:"storeErrors"`
}

func New() *Trace {
	return &Trace{
		lemmas:         make(map[string]struct{}),
		lexicalUnitIDs: make(map[int64]struct{}),
		frames:         make(map[string]struct{}),
	}
}

func (t *Trace) Record(event Event) {
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch event.Kind {
	case EventQueriedLemmas:
		for _, l := range event.Lemmas {
			if l == "" {
				continue
			}
			t.lemmas[l] = struct{}{}
		}
	case EventQueriedLexicalUnits:
		for _, id := range event.LexicalUnitIDs {
			if id == 0 {
				continue
			}
			t.lexicalUnitIDs[id] = struct{}{}
		}
	case EventExpandedFrames:
		for _, f := range event.Frames {
			if f == "" {
				continue
			}
			t.frames[f] = struct{}{}
		}
	case EventStoreError:
		t.storeErrors = append(t.storeErrors, StoreError{Query: event.Query, Error: event.Error})
	default:
		return
	}
}

func (t *Trace) Snapshot() Snapshot {
	if t == nil {
		return Snapshot{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	s := Snapshot{
		Lemmas:         make([]string, 0, len(t.lemmas)),
		LexicalUnitIDs: make([]int64, 0, len(t.lexicalUnitIDs)),
		Frames:         make([]string, 0, len(t.frames)),
		StoreErrors:    slices.Clone(t.storeErrors),
	}
	for l := range t.lemmas {
		s.Lemmas = append(s.Lemmas, l)
	}
	for id := range t.lexicalUnitIDs {
		s.LexicalUnitIDs = append(s.LexicalUnitIDs, id)
	}
	for f := range t.frames {
		s.Frames = append(s.Frames, f)
	}

	sort.Strings(s.Lemmas)
	slices.Sort(s.LexicalUnitIDs)
	sort.Strings(s.Frames)

	return s
}
