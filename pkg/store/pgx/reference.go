package pgx

import (
	"context"
	"fmt"
	"strings"

	pgxv5 "github.com/jackc/pgx/v5"

	"github.com/FrameNetBrasil/daisy/pkg/common"
	"github.com/FrameNetBrasil/daisy/pkg/store"
)

func (s *ReferenceDBStore) LemmasByForms(
	ctx context.Context,
	forms []string,
	language int,
) (map[string][]common.Lemma, error) {
	keys := store.NormalizeNames(forms)
	out := make(map[string][]common.Lemma, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	rows, err := s.conn.Query(ctx, lemmasByFormsSQL, keys, language)
	if err != nil {
		return nil, fmt.Errorf("failed to query lemmas by form: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var form string
		var l common.Lemma
		if err := rows.Scan(&form, &l.ID, &l.Name); err != nil {
			return nil, fmt.Errorf("failed to scan lemma: %w", err)
		}
		key := store.FoldKey(form)
		out[key] = append(out[key], l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read lemmas: %w", err)
	}
	return out, nil
}

type mweRow struct {
	lemmaID   int64
	lemma     string
	partID    *int64
	partLemma *string
}

func (s *ReferenceDBStore) MultiWordExpressions(ctx context.Context, language int) ([]common.MultiWordExpression, error) {
	rows, err := s.conn.Query(ctx, multiWordExpressionsSQL, language)
	if err != nil {
		return nil, fmt.Errorf("failed to query multi-word expressions: %w", err)
	}
	defer rows.Close()

	var raw []mweRow
	for rows.Next() {
		var r mweRow
		if err := rows.Scan(&r.lemmaID, &r.lemma, &r.partID, &r.partLemma); err != nil {
			return nil, fmt.Errorf("failed to scan multi-word expression: %w", err)
		}
		raw = append(raw, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read multi-word expressions: %w", err)
	}
	return groupMultiWordExpressions(raw), nil
}

// groupMultiWordExpressions folds rows ordered by (lemma, position) into one
// expression per lemma. A missing part lemma is kept as LemmaID 0.
func groupMultiWordExpressions(rows []mweRow) []common.MultiWordExpression {
	var out []common.MultiWordExpression
	for _, r := range rows {
		if len(out) == 0 || out[len(out)-1].LemmaID != r.lemmaID {
			out = append(out, common.MultiWordExpression{LemmaID: r.lemmaID, Name: r.lemma})
		}
		part := common.MWEPart{}
		if r.partID != nil {
			part.LemmaID = *r.partID
		}
		if r.partLemma != nil {
			part.LemmaName = *r.partLemma
		}
		last := &out[len(out)-1]
		last.Parts = append(last.Parts, part)
	}
	return out
}

func (s *ReferenceDBStore) LexicalUnitsByLemmas(
	ctx context.Context,
	lemmas []string,
	language int,
) ([]common.LexicalUnit, error) {
	keys := store.NormalizeNames(lemmas)
	if len(keys) == 0 {
		return nil, nil
	}
	rows, err := s.conn.Query(ctx, lexicalUnitsByLemmasSQL, keys, language)
	if err != nil {
		return nil, fmt.Errorf("failed to query lexical units by lemma: %w", err)
	}
	return collectLexicalUnits(rows)
}

func (s *ReferenceDBStore) LexicalUnitsByForm(
	ctx context.Context,
	form string,
	language int,
) ([]common.LexicalUnit, error) {
	key := store.FoldKey(form)
	if key == "" {
		return nil, nil
	}
	rows, err := s.conn.Query(ctx, lexicalUnitsByFormSQL, likeEscaper.Replace(key), language)
	if err != nil {
		return nil, fmt.Errorf("failed to query lexical units by form: %w", err)
	}
	return collectLexicalUnits(rows)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func collectLexicalUnits(rows pgxv5.Rows) ([]common.LexicalUnit, error) {
	defer rows.Close()

	var out []common.LexicalUnit
	for rows.Next() {
		var lu common.LexicalUnit
		if err := rows.Scan(
			&lu.ID,
			&lu.Name,
			&lu.LemmaName,
			&lu.POS,
			&lu.FrameID,
			&lu.FrameEntry,
			&lu.FrameName,
			&lu.IsMWE,
			&lu.Domains,
		); err != nil {
			return nil, fmt.Errorf("failed to scan lexical unit: %w", err)
		}
		out = append(out, lu)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read lexical units: %w", err)
	}
	return out, nil
}

func (s *ReferenceDBStore) FrameRelations(
	ctx context.Context,
	frameEntry string,
	relationTypes []string,
) ([]common.FrameRelation, error) {
	if frameEntry == "" || len(relationTypes) == 0 {
		return nil, nil
	}
	rows, err := s.conn.Query(ctx, frameRelationsToSQL, frameEntry, relationTypes)
	if err != nil {
		return nil, fmt.Errorf("failed to query frame relations: %w", err)
	}
	return collectFrameRelations(rows)
}

func collectFrameRelations(rows pgxv5.Rows) ([]common.FrameRelation, error) {
	defer rows.Close()

	var out []common.FrameRelation
	for rows.Next() {
		var r common.FrameRelation
		if err := rows.Scan(
			&r.RelationType,
			&r.FromID,
			&r.FromEntry,
			&r.FromName,
			&r.ToID,
			&r.ToEntry,
			&r.ToName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan frame relation: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read frame relations: %w", err)
	}
	return out, nil
}

func (s *ReferenceDBStore) FECoreConstraints(ctx context.Context, frameEntry string) ([]common.FEConstraint, error) {
	if frameEntry == "" {
		return nil, nil
	}
	rows, err := s.conn.Query(ctx, feCoreConstraintsSQL, frameEntry)
	if err != nil {
		return nil, fmt.Errorf("failed to query frame element constraints: %w", err)
	}
	defer rows.Close()

	var out []common.FEConstraint
	for rows.Next() {
		var c common.FEConstraint
		if err := rows.Scan(&c.FEName, &c.CoreType, &c.FrameID, &c.FrameEntry, &c.FrameName); err != nil {
			return nil, fmt.Errorf("failed to scan frame element constraint: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read frame element constraints: %w", err)
	}
	return out, nil
}

func (s *ReferenceDBStore) QualiaRelations(ctx context.Context, lexicalUnitID int64) ([]common.QualiaRelation, error) {
	if lexicalUnitID == 0 {
		return nil, nil
	}
	rows, err := s.conn.Query(ctx, qualiaRelationsSQL, lexicalUnitID)
	if err != nil {
		return nil, fmt.Errorf("failed to query qualia relations: %w", err)
	}
	defer rows.Close()

	var out []common.QualiaRelation
	for rows.Next() {
		q := common.QualiaRelation{AnchorID: lexicalUnitID}
		lu := &q.Related
		if err := rows.Scan(
			&q.RelationType,
			&lu.ID,
			&lu.Name,
			&lu.LemmaName,
			&lu.POS,
			&lu.FrameID,
			&lu.FrameEntry,
			&lu.FrameName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan qualia relation: %w", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read qualia relations: %w", err)
	}
	return out, nil
}

const lemmasByFormsSQL = `
SELECT lower(wf.form), l.id_lemma, l.name
FROM view_wordform wf
JOIN view_lemma l ON l.id_lemma = wf.id_lemma
WHERE lower(wf.form) = ANY($1::text[])
  AND l.id_language = $2
ORDER BY lower(wf.form), l.id_lemma;
`

const multiWordExpressionsSQL = `
SELECT m.id_lemma, m.lemma, m.id_lemma_part, m.lemma_part
FROM view_lemma_mwe m
WHERE m.id_language = $1
ORDER BY m.id_lemma, m.position;
`

const luColumns = `
lu.id_lu, lu.name, lu.lemma_name, lu.pos,
lu.id_frame, lu.frame_entry, lu.frame_name, lu.is_mwe,
COALESCE(
  (SELECT array_agg(d.domain_entry ORDER BY d.domain_entry)
   FROM view_lu_domain d
   WHERE d.id_lu = lu.id_lu),
  '{}'::text[]
)`

const lexicalUnitsByLemmasSQL = `
SELECT` + luColumns + `
FROM view_lu lu
WHERE lower(lu.lemma_name) = ANY($1::text[])
  AND lu.id_language = $2
ORDER BY lu.id_lu;
`

const lexicalUnitsByFormSQL = `
SELECT` + luColumns + `
FROM view_lu lu
WHERE lower(lu.name) LIKE $1 || '.%'
  AND lu.id_language = $2
ORDER BY lu.id_lu;
`

const frameRelationColumns = `
r.relation_type,
r.id_frame_from, r.frame_from_entry, r.frame_from_name,
r.id_frame_to, r.frame_to_entry, r.frame_to_name`

const frameRelationsToSQL = `
SELECT` + frameRelationColumns + `
FROM view_frame_relation r
WHERE r.frame_to_entry = $1
  AND r.relation_type = ANY($2::text[])
ORDER BY r.id_frame_from, r.relation_type;
`

const feCoreConstraintsSQL = `
SELECT fe.name, fe.core_type, c.id_frame, c.frame_entry, c.frame_name
FROM view_fe_constraint c
JOIN view_frame_element fe ON fe.id_fe = c.id_fe
WHERE fe.frame_entry = $1
ORDER BY fe.id_fe, c.id_frame;
`

const qualiaColumns = `
lu.id_lu, lu.name, lu.lemma_name, lu.pos, lu.id_frame, lu.frame_entry, lu.frame_name`

const qualiaRelationsSQL = `
SELECT q.relation_type,` + qualiaColumns + `
FROM view_qualia_lu q
JOIN view_lu lu ON lu.id_lu = q.id_lu_to
WHERE q.id_lu_from = $1
UNION
SELECT q.relation_type,` + qualiaColumns + `
FROM view_qualia_lu q
JOIN view_lu lu ON lu.id_lu = q.id_lu_from
WHERE q.id_lu_to = $1
ORDER BY 2, 1;
`
