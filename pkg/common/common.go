package common

// ParsedToken is one row of dependency-parser output. Positions are 0-based
// within the sentence; ParentPosition is -1 for the root.
type ParsedToken struct {
	Position           int    `json:"position"`
	Word               string `json:"word"`
	Lemma              string `json:"lemma"`
	POS                string `json:"pos"`
	ParentPosition     int    `json:"parent"`
	DependencyRelation string `json:"rel"`
	Children           []int  `json:"children"`
}

// Lemma is a lemma candidate for a word form.
type Lemma struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// MultiWordExpression is a lemma made of several words, e.g. "take off".
// Parts are ordered; Parts[0] is the lemma the expression is indexed by.
// A part with LemmaID 0 means the lemma node is missing from the store.
type MultiWordExpression struct {
	LemmaID int64     `json:"lemmaId"`
	Name    string    `json:"name"`
	Parts   []MWEPart `json:"parts"`
}

type MWEPart struct {
	LemmaID   int64  `json:"lemmaId"`
	LemmaName string `json:"lemmaName"`
}

// Token is a unit handed to the grid stage: one parsed word, or several words
// merged by a multi-word-expression match. Start and End delimit the covered
// words of the parse as [Start, End).
type Token struct {
	Position              int     `json:"position"`
	Start                 int     `json:"start"`
	End                   int     `json:"end"`
	Word                  string  `json:"word"`
	POS                   string  `json:"pos"`
	DependencyRelation    string  `json:"rel"`
	ParentPosition        int     `json:"parent"`
	Children              []int   `json:"children"`
	IsMultiWordExpression bool    `json:"isMwe"`
	IsPunctuation         bool    `json:"isPunct"`
	Lemmas                []Lemma `json:"lemmas"`
}

// LemmaNames returns the names of the token's lemma candidates.
func (t Token) LemmaNames() []string {
	names := make([]string, 0, len(t.Lemmas))
	for _, l := range t.Lemmas {
		names = append(names, l.Name)
	}
	return names
}

// Component is a token inside the grid stage. ResolvedFunction is set once,
// by disambiguation, and read-only afterwards.
type Component struct {
	Token              Token    `json:"token"`
	CandidateFunctions []string `json:"candidateFunctions"`
	ResolvedFunction   string   `json:"resolvedFunction"`
}

// Cluster is an ordered run of components sharing a cluster type.
type Cluster struct {
	Type       string       `json:"type"`
	Components []*Component `json:"components"`
}

// Window is a punctuation-bounded sequence of clusters.
type Window struct {
	ID       int        `json:"id"`
	Clusters []*Cluster `json:"clusters"`
}

// Components flattens the window's clusters in order.
func (w *Window) Components() []*Component {
	out := make([]*Component, 0)
	for _, c := range w.Clusters {
		out = append(out, c.Components...)
	}
	return out
}

// Frame is a semantic frame of the reference store.
type Frame struct {
	ID    int64  `json:"id"`
	Entry string `json:"entry"`
	Name  string `json:"name"`
}

// LexicalUnit pairs a lemma and POS with the frame it evokes.
type LexicalUnit struct {
	ID         int64    `json:"id"`
	Name       string   `json:"name"`
	LemmaName  string   `json:"lemma"`
	POS        string   `json:"pos"`
	FrameID    int64    `json:"frameId"`
	FrameEntry string   `json:"frameEntry"`
	FrameName  string   `json:"frameName"`
	IsMWE      bool     `json:"isMwe"`
	Domains    []string `json:"domains"`
}

// FrameRelation is a typed frame-to-frame relation from one frame to another.
type FrameRelation struct {
	RelationType string `json:"relationType"`
	FromID       int64  `json:"fromId"`
	FromEntry    string `json:"fromEntry"`
	FromName     string `json:"fromName"`
	ToID         int64  `json:"toId"`
	ToEntry      string `json:"toEntry"`
	ToName       string `json:"toName"`
}

// FEConstraint is a frame-element constraint pointing at a frame.
type FEConstraint struct {
	FEName     string `json:"feName"`
	CoreType   string `json:"coreType"`
	FrameID    int64  `json:"frameId"`
	FrameEntry string `json:"frameEntry"`
	FrameName  string `json:"frameName"`
}

// QualiaRelation links an anchor lexical unit with a related one; the store
// returns it regardless of which side the anchor is on.
type QualiaRelation struct {
	RelationType string      `json:"relationType"`
	AnchorID     int64       `json:"anchorId"`
	Related      LexicalUnit `json:"related"`
}

// NetworkNode is a materialized frame or lexical unit node.
type NetworkNode struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	RefID int64  `json:"refId"`
	Label string `json:"label"`
}

// NetworkEdge is a materialized relation between two network nodes.
type NetworkEdge struct {
	SourceID     int64  `json:"source"`
	TargetID     int64  `json:"target"`
	RelationType string `json:"relationType"`
}

const (
	NodeTypeFrame       = "frame"
	NodeTypeLexicalUnit = "lu"

	EdgeTypeEvokes = "evokes"
	EdgeTypeQualia = "qualia"
)
