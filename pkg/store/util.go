package store

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

func ChunkRange(total, chunkSize int, fn func(start, end int) error) error {
	if total <= 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = total
	}
	for start := 0; start < total; start += chunkSize {
		end := min(start+chunkSize, total)
		if err := fn(start, end); err != nil {
			return err
		}
	}
	return nil
}

func DedupeStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// FoldKey lower-cases a word form or lemma name the way the SQL side does
// with lower(), so Go and database keys agree.
func FoldKey(s string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(s))
}

// NormalizeNames folds, dedupes and sorts names so that equal lookups share
// one cache key and one SQL argument list.
func NormalizeNames(in []string) []string {
	folded := make([]string, 0, len(in))
	for _, s := range in {
		folded = append(folded, FoldKey(s))
	}
	out := DedupeStrings(folded)
	sort.Strings(out)
	return out
}
