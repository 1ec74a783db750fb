package daisy

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ClusterType declares which grid functions may share a cluster.
type ClusterType struct {
	Name      string   `yaml:"name" json:"name"`
	Functions []string `yaml:"functions" json:"functions"`
}

type Bonuses struct {
	MWE    float64 `yaml:"mwe" json:"mwe"`
	Domain float64 `yaml:"domain" json:"domain"`
}

type NetworkConfig struct {
	// InitialValue is the budget a relation expansion starts with; every hop
	// spends ValueStep and expansion stops once it falls below MinValue.
	InitialValue   float64 `yaml:"initialValue" json:"initialValue"`
	ValueStep      float64 `yaml:"valueStep" json:"valueStep"`
	MinValue       float64 `yaml:"minValue" json:"minValue"`
	MaxQualiaDepth int     `yaml:"maxQualiaDepth" json:"maxQualiaDepth"`
	DefaultDepth   int     `yaml:"defaultDepth" json:"defaultDepth"`
}

type WinnerConfig struct {
	ExcludeVerbs bool   `yaml:"excludeVerbs" json:"excludeVerbs"`
	VerbMarker   string `yaml:"verbMarker" json:"verbMarker"`
}

type CacheConfig struct {
	TTLSeconds int `yaml:"ttlSeconds" json:"ttlSeconds"`
}

// Config holds every tunable table of the pipeline. It is loaded once and
// never mutated afterwards.
type Config struct {
	POSFunctions        map[string][]string       `yaml:"posFunctions" json:"posFunctions"`
	DefaultFunction     string                    `yaml:"defaultFunction" json:"defaultFunction"`
	PunctuationFunction string                    `yaml:"punctuationFunction" json:"punctuationFunction"`
	Compatibility       map[string]map[string]int `yaml:"compatibility" json:"compatibility"`
	ClusterTypes        []ClusterType             `yaml:"clusterTypes" json:"clusterTypes"`
	FunctionPOS         map[string][]string       `yaml:"functionPOS" json:"functionPOS"`

	RelationWeights map[string]float64 `yaml:"relationWeights" json:"relationWeights"`
	FECoreWeights   map[string]float64 `yaml:"feCoreWeights" json:"feCoreWeights"`
	Bonuses         Bonuses            `yaml:"bonuses" json:"bonuses"`
	QualiaBonuses   map[int]float64    `yaml:"qualiaBonuses" json:"qualiaBonuses"`
	Network         NetworkConfig      `yaml:"network" json:"network"`
	Winner          WinnerConfig       `yaml:"winner" json:"winner"`

	Domain              string      `yaml:"domain" json:"domain"`
	FilterByPOS         bool        `yaml:"filterByPOS" json:"filterByPOS"`
	WeightContributions bool        `yaml:"weightContributions" json:"weightContributions"`
	Cache               CacheConfig `yaml:"cache" json:"cache"`
}

// Relation types followed when expanding a candidate's frame.
var expansionRelations = []string{"inheritance", "perspective_on", "subframe", "uses"}

const (
	RelationQualia = "qualia"
	RelationFECore = "fe-core"
	RelationEvokes = "evokes"
)

func DefaultConfig() Config {
	return Config{
		POSFunctions: map[string][]string{
			"NOUN":  {"entity"},
			"PROPN": {"entity"},
			"PRON":  {"entity"},
			"NUM":   {"attribute", "entity"},
			"DET":   {"determiner"},
			"ADJ":   {"attribute"},
			"VERB":  {"event"},
			"AUX":   {"aux"},
			"ADV":   {"modifier"},
			"PART":  {"modifier", "relation"},
			"ADP":   {"relation"},
			"SCONJ": {"relation"},
			"CCONJ": {"relation"},
			"PUNCT": {"punct"},
		},
		DefaultFunction:     "entity",
		PunctuationFunction: "punct",
		Compatibility: map[string]map[string]int{
			"determiner": {"entity": 3, "attribute": 2},
			"attribute":  {"entity": 3, "modifier": 1},
			"entity":     {"event": 1, "relation": 2},
			"aux":        {"event": 3},
			"event":      {"modifier": 2, "relation": 1},
		},
		ClusterTypes: []ClusterType{
			{Name: "E", Functions: []string{"determiner", "attribute", "entity"}},
			{Name: "V", Functions: []string{"aux", "event", "modifier"}},
			{Name: "R", Functions: []string{"relation"}},
			{Name: "P", Functions: []string{"punct"}},
		},
		FunctionPOS: map[string][]string{
			"entity":     {"N", "PRON", "NUM"},
			"event":      {"V"},
			"attribute":  {"A", "NUM"},
			"modifier":   {"ADV"},
			"relation":   {"PREP", "SCON", "CCON"},
			"determiner": {"ART", "NUM", "PRON"},
		},
		RelationWeights: map[string]float64{
			"inheritance":    0.8,
			"perspective_on": 0.7,
			"subframe":       0.6,
			"uses":           0.5,
			RelationQualia:   0.5,
			RelationFECore:   0.5,
		},
		FECoreWeights: map[string]float64{
			"core":             1.0,
			"core-unexpressed": 0.8,
			"peripheral":       0,
			"extra-thematic":   0,
		},
		Bonuses:       Bonuses{MWE: 0.5, Domain: 0.2},
		QualiaBonuses: map[int]float64{1: 0.5, 2: 0.25},
		Network: NetworkConfig{
			InitialValue:   1.0,
			ValueStep:      0.25,
			MinValue:       0.3,
			MaxQualiaDepth: 2,
			DefaultDepth:   3,
		},
		Winner: WinnerConfig{ExcludeVerbs: false, VerbMarker: ".v"},
		Domain: "MKNOB",
		Cache:  CacheConfig{TTLSeconds: 600},
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig. Keys present in the
// file replace the defaults; map tables are merged key by key. An empty path
// returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return ParseConfig(data)
}

// ParseConfig is LoadConfig for an in-memory document.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.DefaultFunction == "" {
		return fmt.Errorf("config: defaultFunction is required")
	}
	if c.PunctuationFunction == "" {
		return fmt.Errorf("config: punctuationFunction is required")
	}
	if len(c.ClusterTypes) == 0 {
		return fmt.Errorf("config: at least one cluster type is required")
	}
	seen := make(map[string]struct{}, len(c.ClusterTypes))
	for _, ct := range c.ClusterTypes {
		if ct.Name == "" {
			return fmt.Errorf("config: cluster type without name")
		}
		if _, ok := seen[ct.Name]; ok {
			return fmt.Errorf("config: duplicate cluster type %q", ct.Name)
		}
		seen[ct.Name] = struct{}{}
	}
	for name, w := range c.RelationWeights {
		if w < 0 || w > 1 {
			return fmt.Errorf("config: relation weight %q out of range [0,1]: %v", name, w)
		}
	}
	if c.Network.ValueStep < 0 || c.Network.MaxQualiaDepth < 0 || c.Network.DefaultDepth < 0 {
		return fmt.Errorf("config: network limits must not be negative")
	}
	return nil
}

// tables is the lookup form of a Config, built once per client.
type tables struct {
	cfg Config

	posFunctions   map[string][]string
	clusterOf      map[string]string
	clusterMembers map[string]map[string]struct{}
	functionPOS    map[string]map[string]struct{}
}

func newTables(cfg Config) *tables {
	t := &tables{
		cfg:            cfg,
		posFunctions:   make(map[string][]string, len(cfg.POSFunctions)),
		clusterOf:      make(map[string]string),
		clusterMembers: make(map[string]map[string]struct{}, len(cfg.ClusterTypes)),
		functionPOS:    make(map[string]map[string]struct{}, len(cfg.FunctionPOS)),
	}
	for pos, fns := range cfg.POSFunctions {
		t.posFunctions[strings.ToUpper(pos)] = slices.Clone(fns)
	}
	for _, ct := range cfg.ClusterTypes {
		members := make(map[string]struct{}, len(ct.Functions))
		for _, fn := range ct.Functions {
			members[fn] = struct{}{}
			if _, ok := t.clusterOf[fn]; !ok {
				t.clusterOf[fn] = ct.Name
			}
		}
		t.clusterMembers[ct.Name] = members
	}
	for fn, posList := range cfg.FunctionPOS {
		set := make(map[string]struct{}, len(posList))
		for _, pos := range posList {
			set[strings.ToUpper(pos)] = struct{}{}
		}
		t.functionPOS[fn] = set
	}
	return t
}

// functionsFor maps a POS tag to its candidate grid functions.
func (t *tables) functionsFor(pos string) []string {
	if fns, ok := t.posFunctions[strings.ToUpper(pos)]; ok && len(fns) > 0 {
		return fns
	}
	return []string{t.cfg.DefaultFunction}
}

// compatibility looks a function pair up in either order.
func (t *tables) compatibility(a, b string) int {
	if row, ok := t.cfg.Compatibility[a]; ok {
		if v, ok := row[b]; ok {
			return v
		}
	}
	if row, ok := t.cfg.Compatibility[b]; ok {
		if v, ok := row[a]; ok {
			return v
		}
	}
	return 0
}

func (t *tables) accepts(clusterType, function string) bool {
	_, ok := t.clusterMembers[clusterType][function]
	return ok
}

// posAllowed reports whether a lexical unit POS fits a grid function. Functions
// without an expected POS accept everything.
func (t *tables) posAllowed(function, luPOS string) bool {
	set, ok := t.functionPOS[function]
	if !ok || len(set) == 0 {
		return true
	}
	_, ok = set[strings.ToUpper(luPOS)]
	return ok
}

func (t *tables) relationWeight(relationType string) float64 {
	return t.cfg.RelationWeights[relationType]
}
