package store

import (
	"context"

	"github.com/FrameNetBrasil/daisy/pkg/common"
)

// ReferenceStore is the read-only view of the frame/lexical-unit database the
// disambiguation pipeline queries. Word forms and lemma names are compared
// case-insensitively.
type ReferenceStore interface {
	// LemmasByForms returns lemma candidates keyed by lower-cased word form.
	LemmasByForms(ctx context.Context, forms []string, language int) (map[string][]common.Lemma, error)
	MultiWordExpressions(ctx context.Context, language int) ([]common.MultiWordExpression, error)

	LexicalUnitsByLemmas(ctx context.Context, lemmas []string, language int) ([]common.LexicalUnit, error)
	// LexicalUnitsByForm is the fallback for words without lemma candidates:
	// lexical units whose name starts with the form.
	LexicalUnitsByForm(ctx context.Context, form string, language int) ([]common.LexicalUnit, error)

	// FrameRelations returns relations of the given types whose target is frameEntry.
	FrameRelations(ctx context.Context, frameEntry string, relationTypes []string) ([]common.FrameRelation, error)
	FECoreConstraints(ctx context.Context, frameEntry string) ([]common.FEConstraint, error)
	// QualiaRelations returns qualia relations on either side of the lexical unit.
	QualiaRelations(ctx context.Context, lexicalUnitID int64) ([]common.QualiaRelation, error)
}

// NetworkSource is what the network materialization job reads.
type NetworkSource interface {
	Frames(ctx context.Context, language int) ([]common.Frame, error)
	LexicalUnitsByFrame(ctx context.Context, frameID int64, language int) ([]common.LexicalUnit, error)
	RelationsFromFrame(ctx context.Context, frameID int64) ([]common.FrameRelation, error)
	QualiaRelations(ctx context.Context, lexicalUnitID int64) ([]common.QualiaRelation, error)
}

// NetworkWriter persists the materialized node/edge cache. Implementations
// are used by a single writer at a time.
type NetworkWriter interface {
	// ReplaceNetwork swaps the language's nodes and edges for the given ones
	// atomically. On error the previous network is left in place.
	ReplaceNetwork(ctx context.Context, language int, nodes []common.NetworkNode, edges []common.NetworkEdge) error
}
