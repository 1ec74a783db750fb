package common

import (
	"encoding/json"
	"sort"
)

// FrameCandidate is one (word, frame) hypothesis. Energy starts at 1/N for the
// N candidates of its word and is raised once by spreading activation.
type FrameCandidate struct {
	IWord                 int     `json:"iword"`
	Word                  string  `json:"word"`
	WindowID              int     `json:"windowId"`
	LexicalUnitID         int64   `json:"idLU"`
	LexicalUnitName       string  `json:"lu"`
	LexicalUnitPOS        string  `json:"pos"`
	FrameID               int64   `json:"idFrame"`
	FrameEntry            string  `json:"frameEntry"`
	FrameName             string  `json:"frameName"`
	IsMultiWordExpression bool    `json:"mwe"`
	IsDomainMember        bool    `json:"domain"`
	Energy                float64 `json:"energy"`
	Pool                  *Pool   `json:"pool"`
}

// Contributor is another word's candidate that evokes a pool entry's frame.
// Energy is the contributor's energy when it was registered.
type Contributor struct {
	IWord    int     `json:"iword"`
	Word     string  `json:"word"`
	Frame    string  `json:"frame"`
	Energy   float64 `json:"energy"`
	Level    int     `json:"level"`
	WindowID int     `json:"windowId"`
	IsQualia bool    `json:"isQualia"`
}

// PoolEntry is a frame reachable from a candidate's own frame.
type PoolEntry struct {
	Frame        string        `json:"frame"`
	Factor       float64       `json:"factor"`
	BaseFrame    string        `json:"baseFrame"`
	Level        int           `json:"level"`
	IsQualia     bool          `json:"isQualia"`
	IsSelf       bool          `json:"isSelf"`
	Contributors []Contributor `json:"contributors"`
}

// AddContributor registers c, replacing a previous contributor of the same word.
// Contributors stay ordered by word position.
func (p *PoolEntry) AddContributor(c Contributor) {
	for i := range p.Contributors {
		if p.Contributors[i].IWord == c.IWord {
			p.Contributors[i] = c
			return
		}
	}
	p.Contributors = append(p.Contributors, c)
	sort.SliceStable(p.Contributors, func(i, j int) bool {
		return p.Contributors[i].IWord < p.Contributors[j].IWord
	})
}

// Pool maps related-frame entries to pool entries, keeping insertion order.
// The zero value is not usable; create pools with NewPool.
type Pool struct {
	entries []*PoolEntry
	index   map[string]int
}

func NewPool() *Pool {
	return &Pool{index: make(map[string]int)}
}

// Put stores e under e.Frame. An existing entry is replaced in place (last
// write wins) unless it is the self entry, which is never replaced.
// It reports whether e was stored.
func (p *Pool) Put(e *PoolEntry) bool {
	if idx, ok := p.index[e.Frame]; ok {
		if p.entries[idx].IsSelf {
			return false
		}
		p.entries[idx] = e
		return true
	}
	p.index[e.Frame] = len(p.entries)
	p.entries = append(p.entries, e)
	return true
}

func (p *Pool) Get(frame string) (*PoolEntry, bool) {
	idx, ok := p.index[frame]
	if !ok {
		return nil, false
	}
	return p.entries[idx], true
}

func (p *Pool) Entries() []*PoolEntry {
	if p == nil {
		return nil
	}
	return p.entries
}

func (p *Pool) MarshalJSON() ([]byte, error) {
	entries := p.Entries()
	if entries == nil {
		entries = []*PoolEntry{}
	}
	return json.Marshal(entries)
}

func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.entries)
}

// WordCandidates holds the frame candidates of one word keyed by frame entry.
type WordCandidates struct {
	IWord      int               `json:"iword"`
	Word       string            `json:"word"`
	WindowID   int               `json:"windowId"`
	Candidates []*FrameCandidate `json:"candidates"`
	index      map[string]int
}

func NewWordCandidates(iword int, word string, windowID int) *WordCandidates {
	return &WordCandidates{
		IWord:    iword,
		Word:     word,
		WindowID: windowID,
		index:    make(map[string]int),
	}
}

// Put stores c under its frame entry. When the word already has a candidate for
// that frame the new one takes its slot and the old one is dropped.
func (w *WordCandidates) Put(c *FrameCandidate) {
	if idx, ok := w.index[c.FrameEntry]; ok {
		w.Candidates[idx] = c
		return
	}
	w.index[c.FrameEntry] = len(w.Candidates)
	w.Candidates = append(w.Candidates, c)
}

func (w *WordCandidates) Get(frameEntry string) (*FrameCandidate, bool) {
	idx, ok := w.index[frameEntry]
	if !ok {
		return nil, false
	}
	return w.Candidates[idx], true
}

// WindowCandidates holds the words of one window in sentence order.
type WindowCandidates struct {
	WindowID int               `json:"windowId"`
	Words    []*WordCandidates `json:"words"`
}

// CandidateSet is the lexical-unit matching output: windows, their words and
// the words' frame candidates, all in deterministic order.
type CandidateSet struct {
	Windows []*WindowCandidates `json:"windows"`
}

// Words returns every word of every window in order.
func (s *CandidateSet) Words() []*WordCandidates {
	out := make([]*WordCandidates, 0)
	if s == nil {
		return out
	}
	for _, w := range s.Windows {
		out = append(out, w.Words...)
	}
	return out
}

// Candidates returns every frame candidate in order.
func (s *CandidateSet) Candidates() []*FrameCandidate {
	out := make([]*FrameCandidate, 0)
	for _, w := range s.Words() {
		out = append(out, w.Candidates...)
	}
	return out
}

// WinnerRecord is one selected frame for a word.
type WinnerRecord struct {
	IDLexicalUnit    int64   `json:"idLU"`
	LexicalUnitName  string  `json:"lu"`
	FrameEntry       string  `json:"frameEntry"`
	FrameName        string  `json:"frameName"`
	Energy           float64 `json:"energy"`
	EquivalenceLabel string  `json:"equivalence"`
}

// CandidateWeight is a candidate's rounded final energy, as reported.
type CandidateWeight struct {
	IDLexicalUnit   int64   `json:"idLU"`
	LexicalUnitName string  `json:"lu"`
	FrameEntry      string  `json:"frameEntry"`
	Energy          float64 `json:"energy"`
	Excluded        bool    `json:"excluded"`
}

// Graph is the visualization graph of a disambiguation result.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Links []GraphLink `json:"links"`
}

type GraphNode struct {
	ID    string `json:"id"`
	Label string `json:"name"`
	Type  string `json:"type"`
}

type GraphLink struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}
