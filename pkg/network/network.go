package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/FrameNetBrasil/daisy/internal/util"
	"github.com/FrameNetBrasil/daisy/pkg/common"
	"github.com/FrameNetBrasil/daisy/pkg/leaselock"
	"github.com/FrameNetBrasil/daisy/pkg/logger"
	"github.com/FrameNetBrasil/daisy/pkg/metrics"
	"github.com/FrameNetBrasil/daisy/pkg/store"
)

// SnapshotWriter stores a serialized network, e.g. in object storage.
type SnapshotWriter interface {
	PutSnapshot(ctx context.Context, key string, data []byte) error
}

// Summary reports what a rebuild wrote.
type Summary struct {
	Language     int           `json:"language"`
	Frames       int           `json:"frames"`
	LexicalUnits int           `json:"lexicalUnits"`
	Nodes        int           `json:"nodes"`
	Edges        int           `json:"edges"`
	SnapshotKey  string        `json:"snapshotKey,omitempty"`
	Duration     time.Duration `json:"duration"`
}

type Snapshot struct {
	Language    int                  `json:"language"`
	GeneratedAt time.Time            `json:"generatedAt"`
	Nodes       []common.NetworkNode `json:"nodes"`
	Edges       []common.NetworkEdge `json:"edges"`
}

// Materializer rebuilds the node/edge cache of a language from the reference
// store. Only one rebuild per language runs at a time across all processes.
type Materializer struct {
	source    store.NetworkSource
	writer    store.NetworkWriter
	locker    leaselock.Locker
	snapshots SnapshotWriter
	metrics   *metrics.Collector
	lockTTL   time.Duration
	retries   int
	now       func() time.Time
}

type NewMaterializerParams struct {
	Source    store.NetworkSource
	Writer    store.NetworkWriter
	Locker    leaselock.Locker
	Snapshots SnapshotWriter
	Metrics   *metrics.Collector
	LockTTL   time.Duration
	// MaxRetries bounds the attempts of every source query.
	MaxRetries int
}

func NewMaterializer(params NewMaterializerParams) (*Materializer, error) {
	if params.Source == nil || params.Writer == nil || params.Locker == nil {
		return nil, errors.New("network: source, writer and locker are required")
	}
	lockTTL := params.LockTTL
	if lockTTL <= 0 {
		lockTTL = 10 * time.Minute
	}
	retries := params.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	return &Materializer{
		source:    params.Source,
		writer:    params.Writer,
		locker:    params.Locker,
		snapshots: params.Snapshots,
		metrics:   params.Metrics,
		lockTTL:   lockTTL,
		retries:   retries,
		now:       time.Now,
	}, nil
}

// Rebuild replaces the cached network of language. It returns
// leaselock.ErrBusy without touching anything when another rebuild of the
// same language holds the lease.
func (m *Materializer) Rebuild(ctx context.Context, language int) (summary Summary, err error) {
	defer func() {
		switch {
		case errors.Is(err, leaselock.ErrBusy):
			m.metrics.ObserveRebuild("busy")
		case err != nil:
			m.metrics.ObserveRebuild("error")
		default:
			m.metrics.ObserveRebuild("ok")
		}
	}()

	key := leaselock.Key("network", language)
	err = m.locker.WithLease(ctx, key, leaselock.Options{TTL: m.lockTTL}, func(ctx context.Context) error {
		var err error
		summary, err = m.rebuild(ctx, language)
		return err
	})
	return summary, err
}

func (m *Materializer) rebuild(ctx context.Context, language int) (Summary, error) {
	start := m.now()
	logger.Info("[Network] Rebuilding network", "language", language)

	frames, err := m.source.Frames(ctx, language)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to load frames: %w", err)
	}

	t := newTraversal(m.source, language, m.retries)
	for _, f := range frames {
		if err := t.visit(ctx, f); err != nil {
			return Summary{}, err
		}
	}
	logger.Debug("[Network] Traversal finished", "language", language, "nodes", len(t.nodes), "edges", len(t.edges))

	err = util.RetryErrWithContext(ctx, m.retries, func(ctx context.Context) error {
		return m.writer.ReplaceNetwork(ctx, language, t.nodes, t.edges)
	})
	if err != nil {
		return Summary{}, fmt.Errorf("failed to save network: %w", err)
	}

	summary := Summary{
		Language:     language,
		Frames:       t.frames,
		LexicalUnits: t.lexicalUnits,
		Nodes:        len(t.nodes),
		Edges:        len(t.edges),
	}
	summary.SnapshotKey = m.snapshot(ctx, language, t)
	summary.Duration = m.now().Sub(start)

	logger.Info("[Network] Rebuilt network",
		"language", language,
		"frames", summary.Frames,
		"lexicalUnits", summary.LexicalUnits,
		"nodes", summary.Nodes,
		"edges", summary.Edges,
		"duration", summary.Duration,
	)
	return summary, nil
}

// snapshot uploads the network as JSON. A failed upload is logged and does
// not fail the rebuild, whose result is already committed.
func (m *Materializer) snapshot(ctx context.Context, language int, t *traversal) string {
	if m.snapshots == nil {
		return ""
	}
	generatedAt := m.now().UTC()
	data, err := json.Marshal(Snapshot{Language: language, GeneratedAt: generatedAt, Nodes: t.nodes, Edges: t.edges})
	if err != nil {
		logger.Warn("[Network] Failed to encode snapshot", "language", language, "err", err)
		return ""
	}
	key := SnapshotKey(language, generatedAt)
	if err := m.snapshots.PutSnapshot(ctx, key, data); err != nil {
		logger.Warn("[Network] Failed to upload snapshot", "language", language, "key", key, "err", err)
		return ""
	}
	return key
}

func SnapshotKey(language int, at time.Time) string {
	return fmt.Sprintf("networks/%d/%s.json", language, at.UTC().Format("20060102T150405Z"))
}
