package parser

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/FrameNetBrasil/daisy/pkg/common"
)

const (
	conlluFields   = 10
	conlluEmpty    = "_"
	fieldSeparator = "\t"
)

// DecodeCoNLLU reads every sentence of a CoNLL-U document into one token
// sequence. Comments, multi-word token ranges and empty nodes are skipped.
// Positions become 0-based and run on across sentence boundaries, so each
// sentence's IDs and heads are shifted by the tokens before it. Every
// sentence root has parent -1.
func DecodeCoNLLU(doc string) ([]common.ParsedToken, error) {
	var tokens []common.ParsedToken

	scanner := bufio.NewScanner(strings.NewReader(doc))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	offset := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if text == "" {
			offset = len(tokens)
			continue
		}
		if strings.HasPrefix(text, "#") {
			continue
		}

		record := strings.Split(text, fieldSeparator)
		if len(record) != conlluFields {
			return nil, fmt.Errorf("line %d: expected %d fields, got %d", line, conlluFields, len(record))
		}
		if strings.Contains(record[0], "-") || strings.Contains(record[0], ".") {
			continue
		}

		tok, err := parseRow(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		tok.Position += offset
		if tok.ParentPosition >= 0 {
			tok.ParentPosition += offset
		}
		tokens = append(tokens, tok)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	linkChildren(tokens)
	return tokens, nil
}

func parseRow(record []string) (common.ParsedToken, error) {
	id, err := strconv.Atoi(record[0])
	if err != nil {
		return common.ParsedToken{}, fmt.Errorf("invalid id %q: %w", record[0], err)
	}
	head := 0
	if h := field(record[6]); h != "" {
		head, err = strconv.Atoi(h)
		if err != nil {
			return common.ParsedToken{}, fmt.Errorf("invalid head %q: %w", record[6], err)
		}
	}

	return common.ParsedToken{
		Position:           id - 1,
		Word:               field(record[1]),
		Lemma:              field(record[2]),
		POS:                field(record[3]),
		ParentPosition:     head - 1,
		DependencyRelation: field(record[7]),
	}, nil
}

func field(v string) string {
	if v == conlluEmpty {
		return ""
	}
	return v
}

func linkChildren(tokens []common.ParsedToken) {
	byPosition := make(map[int]int, len(tokens))
	for i, t := range tokens {
		byPosition[t.Position] = i
	}
	for _, t := range tokens {
		if t.ParentPosition < 0 {
			continue
		}
		if idx, ok := byPosition[t.ParentPosition]; ok {
			tokens[idx].Children = append(tokens[idx].Children, t.Position)
		}
	}
}
