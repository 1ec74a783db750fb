package pgx

import (
	"context"
	"fmt"

	pgxv5 "github.com/jackc/pgx/v5"

	"github.com/FrameNetBrasil/daisy/pkg/common"
	"github.com/FrameNetBrasil/daisy/pkg/logger"
	"github.com/FrameNetBrasil/daisy/pkg/store"
)

var (
	nodeTable   = pgxv5.Identifier{"daisy_network_node"}
	edgeTable   = pgxv5.Identifier{"daisy_network_edge"}
	nodeColumns = []string{"language", "id", "node_type", "ref_id", "label"}
	edgeColumns = []string{"language", "source_id", "target_id", "relation_type"}
)

func (s *NetworkDBStore) Frames(ctx context.Context, language int) ([]common.Frame, error) {
	rows, err := s.conn.Query(ctx, framesSQL, language)
	if err != nil {
		return nil, fmt.Errorf("failed to query frames: %w", err)
	}
	defer rows.Close()

	var out []common.Frame
	for rows.Next() {
		var f common.Frame
		if err := rows.Scan(&f.ID, &f.Entry, &f.Name); err != nil {
			return nil, fmt.Errorf("failed to scan frame: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read frames: %w", err)
	}
	return out, nil
}

func (s *NetworkDBStore) LexicalUnitsByFrame(
	ctx context.Context,
	frameID int64,
	language int,
) ([]common.LexicalUnit, error) {
	rows, err := s.conn.Query(ctx, lexicalUnitsByFrameSQL, frameID, language)
	if err != nil {
		return nil, fmt.Errorf("failed to query lexical units of frame %d: %w", frameID, err)
	}
	return collectLexicalUnits(rows)
}

func (s *NetworkDBStore) RelationsFromFrame(ctx context.Context, frameID int64) ([]common.FrameRelation, error) {
	rows, err := s.conn.Query(ctx, relationsFromFrameSQL, frameID)
	if err != nil {
		return nil, fmt.Errorf("failed to query relations of frame %d: %w", frameID, err)
	}
	return collectFrameRelations(rows)
}

func (s *NetworkDBStore) QualiaRelations(ctx context.Context, lexicalUnitID int64) ([]common.QualiaRelation, error) {
	return s.reference.QualiaRelations(ctx, lexicalUnitID)
}

// ReplaceNetwork deletes the language's network and copies the new one in,
// chunk by chunk, inside a single transaction.
func (s *NetworkDBStore) ReplaceNetwork(
	ctx context.Context,
	language int,
	nodes []common.NetworkNode,
	edges []common.NetworkEdge,
) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, deleteEdgesSQL, language); err != nil {
		return fmt.Errorf("failed to clear network edges: %w", err)
	}
	if _, err := tx.Exec(ctx, deleteNodesSQL, language); err != nil {
		return fmt.Errorf("failed to clear network nodes: %w", err)
	}

	err = store.ChunkRange(len(nodes), s.chunkSize, func(start, end int) error {
		rows := nodeRows(language, nodes[start:end])
		logger.Debug("[Store][ReplaceNetwork] Copying nodes", "language", language, "nodes", len(rows))
		if _, err := tx.CopyFrom(ctx, nodeTable, nodeColumns, pgxv5.CopyFromRows(rows)); err != nil {
			return fmt.Errorf("failed to copy network nodes: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	err = store.ChunkRange(len(edges), s.chunkSize, func(start, end int) error {
		rows := edgeRows(language, edges[start:end])
		logger.Debug("[Store][ReplaceNetwork] Copying edges", "language", language, "edges", len(rows))
		if _, err := tx.CopyFrom(ctx, edgeTable, edgeColumns, pgxv5.CopyFromRows(rows)); err != nil {
			return fmt.Errorf("failed to copy network edges: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func nodeRows(language int, nodes []common.NetworkNode) [][]any {
	rows := make([][]any, 0, len(nodes))
	for _, n := range nodes {
		rows = append(rows, []any{int32(language), n.ID, n.Type, n.RefID, n.Label})
	}
	return rows
}

func edgeRows(language int, edges []common.NetworkEdge) [][]any {
	rows := make([][]any, 0, len(edges))
	for _, e := range edges {
		rows = append(rows, []any{int32(language), e.SourceID, e.TargetID, e.RelationType})
	}
	return rows
}

const framesSQL = `
SELECT f.id_frame, f.entry, f.name
FROM view_frame f
WHERE f.id_language = $1
ORDER BY f.id_frame;
`

const lexicalUnitsByFrameSQL = `
SELECT` + luColumns + `
FROM view_lu lu
WHERE lu.id_frame = $1
  AND lu.id_language = $2
ORDER BY lu.id_lu;
`

const relationsFromFrameSQL = `
SELECT` + frameRelationColumns + `
FROM view_frame_relation r
WHERE r.id_frame_from = $1
ORDER BY r.id_frame_to, r.relation_type;
`

const deleteEdgesSQL = `
DELETE FROM daisy_network_edge WHERE language = $1;
`

const deleteNodesSQL = `
DELETE FROM daisy_network_node WHERE language = $1;
`
