package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/FrameNetBrasil/daisy/pkg/leaselock"
	"github.com/FrameNetBrasil/daisy/pkg/logger"
	"github.com/FrameNetBrasil/daisy/pkg/network"
)

// ErrMalformedMessage marks a message that can never succeed and is sent to
// the dead-letter queue without retries.
var ErrMalformedMessage = errors.New("malformed queue message")

type NetworkRebuildMsg struct {
	Language      int    `json:"language"`
	RequestedBy   string `json:"requestedBy,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
}

type Rebuilder interface {
	Rebuild(ctx context.Context, language int) (network.Summary, error)
}

func PublishNetworkRebuild(ctx context.Context, ch Publisher, msg NetworkRebuildMsg) error {
	if msg.Language <= 0 {
		return fmt.Errorf("%w: language must be positive", ErrMalformedMessage)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return PublishFIFO(ctx, ch, NetworkQueue, data, nil)
}

// ProcessNetworkMessage runs one rebuild job. A rebuild that finds the
// language already locked by another worker counts as done.
func ProcessNetworkMessage(ctx context.Context, rebuilder Rebuilder, body []byte) error {
	var msg NetworkRebuildMsg
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if msg.Language <= 0 {
		return fmt.Errorf("%w: language must be positive", ErrMalformedMessage)
	}

	summary, err := rebuilder.Rebuild(ctx, msg.Language)
	if errors.Is(err, leaselock.ErrBusy) {
		logger.Info("[Queue] Network rebuild already running, skipping", "language", msg.Language, "correlation_id", msg.CorrelationID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to rebuild network for language %d: %w", msg.Language, err)
	}

	logger.Info("[Queue] Network rebuilt",
		"language", summary.Language,
		"nodes", summary.Nodes,
		"edges", summary.Edges,
		"correlation_id", msg.CorrelationID,
	)
	return nil
}
