package daisy

import (
	"context"
	"errors"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/FrameNetBrasil/daisy/pkg/common"
	"github.com/FrameNetBrasil/daisy/pkg/logger"
	"github.com/FrameNetBrasil/daisy/pkg/metrics"
	"github.com/FrameNetBrasil/daisy/pkg/parser"
	"github.com/FrameNetBrasil/daisy/pkg/store"
	"github.com/FrameNetBrasil/daisy/pkg/trace"
)

var ErrInvalidRequest = errors.New("invalid disambiguation request")

type Request struct {
	Sentence    string            `json:"sentence" validate:"max=2000"`
	Language    int               `json:"language" validate:"required,min=1"`
	SearchType  int               `json:"searchType" validate:"min=1,max=4"`
	SearchDepth int               `json:"searchDepth" validate:"min=0,max=10"`
	GregNet     bool              `json:"gregnet"`
	Adjustments map[int64]float64 `json:"adjustments,omitempty"`
}

type ComponentReport struct {
	Position int    `json:"position"`
	Word     string `json:"word"`
	Function string `json:"function"`
	MWE      bool   `json:"mwe"`
}

type ClusterReport struct {
	Type       string            `json:"type"`
	Components []ComponentReport `json:"components"`
}

// WindowReport is the diagnostic view of one window: its clusters and the
// frame candidates of its words, pools included.
type WindowReport struct {
	ID       int                      `json:"id"`
	Clusters []ClusterReport          `json:"clusters"`
	Words    []*common.WordCandidates `json:"words"`
}

type Result struct {
	ID       string                           `json:"id"`
	Sentence string                           `json:"sentence"`
	Winners  map[int][]common.WinnerRecord    `json:"winners"`
	Weights  map[int][]common.CandidateWeight `json:"weights"`
	Windows  []WindowReport                   `json:"windows"`
	Graph    common.Graph                     `json:"graph"`
	Tokens   []common.ParsedToken             `json:"tokens"`
	Trace    trace.Snapshot                   `json:"trace"`
}

// Client runs the whole disambiguation pipeline for one sentence at a time.
// It is safe for concurrent use.
type Client struct {
	store    store.ReferenceStore
	parser   parser.Parser
	cfg      Config
	tables   *tables
	parallel int
	tracer   trace.Tracer
	metrics  *metrics.Collector
}

type NewClientParams struct {
	Store    store.ReferenceStore
	Parser   parser.Parser
	Config   Config
	Parallel int
	Tracer   trace.Tracer
	Metrics  *metrics.Collector
}

func NewClient(params NewClientParams) (*Client, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("daisy: store is required")
	}
	cfg := params.Config
	if cfg.DefaultFunction == "" && len(cfg.ClusterTypes) == 0 {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	parallel := params.Parallel
	if parallel <= 0 {
		parallel = 4
	}
	return &Client{
		store:    params.Store,
		parser:   params.Parser,
		cfg:      cfg,
		tables:   newTables(cfg),
		parallel: parallel,
		tracer:   params.Tracer,
		metrics:  params.Metrics,
	}, nil
}

func (c *Client) Config() Config {
	return c.cfg
}

func (r Request) validate() error {
	if r.Language <= 0 {
		return fmt.Errorf("%w: language must be positive", ErrInvalidRequest)
	}
	if r.SearchType < SearchSelf || r.SearchType > SearchQualia {
		return fmt.Errorf("%w: searchType must be between %d and %d", ErrInvalidRequest, SearchSelf, SearchQualia)
	}
	if r.SearchDepth < 0 {
		return fmt.Errorf("%w: searchDepth must not be negative", ErrInvalidRequest)
	}
	return nil
}

// Disambiguate selects the frames evoked by the words of req.Sentence.
// Store failures only shrink the result; the run aborts on an invalid request
// or a done context.
func (c *Client) Disambiguate(ctx context.Context, req Request) (res *Result, err error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() {
		c.metrics.ObserveDisambiguation(err, time.Since(start))
	}()

	id, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	runTrace := trace.New()
	tracer := trace.MultiTracer{runTrace, c.tracer}
	obs := observer{tracer: tracer, metrics: c.metrics}

	parsed := c.parse(ctx, req)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tokenizer := &Tokenizer{store: c.store, observer: obs}
	tokens, err := tokenizer.FromParsed(ctx, parsed, req.Language)
	if err != nil {
		return nil, err
	}

	windows := (&GridBuilder{tables: c.tables}).BuildWindows(tokens)

	matcher := &LexicalUnitMatcher{store: c.store, tables: c.tables, observer: obs}
	set, err := matcher.Match(ctx, windows, req.Language)
	if err != nil {
		return nil, err
	}

	builder := &NetworkBuilder{store: c.store, tables: c.tables, parallel: c.parallel, observer: obs}
	if err := builder.Build(ctx, set, BuildOptions{SearchType: req.SearchType, SearchDepth: req.SearchDepth}); err != nil {
		return nil, err
	}

	NewActivationEngine(c.cfg).Spread(set)
	sel := NewWinnerSelector(c.cfg).Select(set, parsed, SelectOptions{GregNet: req.GregNet, Adjustments: req.Adjustments})

	res = &Result{
		ID:       id,
		Sentence: req.Sentence,
		Winners:  sel.Winners,
		Weights:  sel.Weights,
		Windows:  windowReports(windows, set),
		Graph:    sel.Graph,
		Tokens:   parsed,
		Trace:    runTrace.Snapshot(),
	}

	logger.Info("[Daisy] Disambiguated sentence",
		"id", id,
		"tokens", len(parsed),
		"windows", len(windows),
		"winners", len(res.Winners),
		"storeErrors", len(res.Trace.StoreErrors),
		"duration", time.Since(start),
	)
	return res, nil
}

// parse asks the parser for a dependency parse and falls back to plain word
// splitting when it is missing or fails.
func (c *Client) parse(ctx context.Context, req Request) []common.ParsedToken {
	if c.parser == nil {
		return Split(req.Sentence)
	}
	parsed, err := c.parser.Parse(ctx, req.Sentence, req.Language)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("[Daisy] Parser failed, falling back to word splitting", "err", err)
		}
		return Split(req.Sentence)
	}
	if parsed == nil {
		return []common.ParsedToken{}
	}
	return parsed
}

func windowReports(windows []*common.Window, set *common.CandidateSet) []WindowReport {
	words := make(map[int][]*common.WordCandidates, len(set.Windows))
	for _, w := range set.Windows {
		words[w.WindowID] = w.Words
	}

	out := make([]WindowReport, 0, len(windows))
	for _, w := range windows {
		r := WindowReport{ID: w.ID, Clusters: make([]ClusterReport, 0, len(w.Clusters)), Words: words[w.ID]}
		if r.Words == nil {
			r.Words = []*common.WordCandidates{}
		}
		for _, cl := range w.Clusters {
			cr := ClusterReport{Type: cl.Type, Components: make([]ComponentReport, 0, len(cl.Components))}
			for _, comp := range cl.Components {
				cr.Components = append(cr.Components, ComponentReport{
					Position: comp.Token.Position,
					Word:     comp.Token.Word,
					Function: comp.ResolvedFunction,
					MWE:      comp.Token.IsMultiWordExpression,
				})
			}
			r.Clusters = append(r.Clusters, cr)
		}
		out = append(out, r)
	}
	return out
}
