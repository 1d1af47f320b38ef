// Package dictionary holds the static table of canonical metrics and resolves raw
// line-item labels onto it.
//
// Resolution order:
//  1. Exact match on the normalized label (case, punctuation and whitespace insensitive).
//  2. Token-overlap scoring against every alias; the best-scoring metric wins when it
//     clears the similarity threshold and no other metric ties with it.
//
// Callers depend on the Resolver interface only, so the matching strategy can be
// replaced without touching the pipeline.
package dictionary

import (
	"math"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v2"
)

// Kind tells the unit normalizer whether a metric rescales.
type Kind string

const (
	KindFlow  Kind = "flow"  // Scales with period length and unit hints (revenue)
	KindRatio Kind = "ratio" // Per-share or ratio, never rescaled (EPS)
)

// DefaultThreshold is the minimum fuzzy score accepted when none is configured.
const DefaultThreshold = 0.6

// MetricDefinition is one row of the dictionary.
type MetricDefinition struct {
	ID       string   `yaml:"id"`
	Label    string   `yaml:"label"`
	Kind     Kind     `yaml:"kind"`
	Expense  bool     `yaml:"expense"`  // Stored as a positive magnitude regardless of presentation sign
	Aliases  []string `yaml:"aliases"`  // Known textual variants
	Excludes []string `yaml:"excludes"` // A label containing any of these words never fuzzy-matches this metric
}

// Resolver is the resolve_alias capability.
type Resolver interface {
	Resolve(label string) (id string, ok bool)
}

type aliasEntry struct {
	pos    int
	tokens []string
}

// Dictionary is immutable after construction and safe for concurrent use.
type Dictionary struct {
	defs      []MetricDefinition
	index     map[string]int
	exact     map[string]int
	aliases   []aliasEntry
	excludes  []map[string]struct{}
	threshold float64
}

var _ Resolver = (*Dictionary)(nil)

// New validates the definitions and builds the lookup tables.
func New(defs []MetricDefinition, threshold float64) (*Dictionary, error) {
	if len(defs) == 0 {
		return nil, eris.New("metric dictionary is empty")
	}
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}

	d := &Dictionary{
		defs:      make([]MetricDefinition, len(defs)),
		index:     make(map[string]int, len(defs)),
		exact:     make(map[string]int),
		excludes:  make([]map[string]struct{}, len(defs)),
		threshold: threshold,
	}
	copy(d.defs, defs)

	for pos, def := range d.defs {
		if def.ID == "" {
			return nil, eris.Errorf("metric definition %d has no id", pos)
		}
		if _, dup := d.index[def.ID]; dup {
			return nil, eris.Errorf("duplicate metric id %q", def.ID)
		}
		if def.Kind != KindFlow && def.Kind != KindRatio {
			return nil, eris.Errorf("metric %q: unknown kind %q", def.ID, def.Kind)
		}
		if len(def.Aliases) == 0 {
			return nil, eris.Errorf("metric %q has no aliases", def.ID)
		}
		d.index[def.ID] = pos

		for _, alias := range append([]string{def.ID}, def.Aliases...) {
			tokens := Tokens(alias)
			if len(tokens) == 0 {
				return nil, eris.Errorf("metric %q: alias %q is empty after normalization", def.ID, alias)
			}
			key := Normalize(alias)
			if owner, taken := d.exact[key]; taken && owner != pos {
				return nil, eris.Errorf("alias %q claimed by both %q and %q", alias, d.defs[owner].ID, def.ID)
			}
			d.exact[key] = pos
			d.aliases = append(d.aliases, aliasEntry{pos: pos, tokens: tokens})
		}

		ex := make(map[string]struct{}, len(def.Excludes))
		for _, word := range def.Excludes {
			for _, t := range Tokens(word) {
				ex[t] = struct{}{}
			}
		}
		d.excludes[pos] = ex
	}
	return d, nil
}

// Resolve maps a raw label to a canonical metric ID. It has no side effects.
func (d *Dictionary) Resolve(label string) (string, bool) {
	tokens := Tokens(label)
	if len(tokens) == 0 {
		return "", false
	}
	if pos, ok := d.exact[strings.Join(tokens, " ")]; ok {
		return d.defs[pos].ID, true
	}

	best := make([]float64, len(d.defs))
	for _, a := range d.aliases {
		if d.excluded(a.pos, tokens) {
			continue
		}
		if s := similarity(tokens, a.tokens); s > best[a.pos] {
			best[a.pos] = s
		}
	}

	top, winner, tied := 0.0, -1, false
	for pos, s := range best {
		switch {
		case s > top+1e-9:
			top, winner, tied = s, pos, false
		case s > 0 && math.Abs(s-top) <= 1e-9:
			tied = true
		}
	}
	if winner < 0 || tied || top < d.threshold {
		return "", false
	}
	return d.defs[winner].ID, true
}

func (d *Dictionary) excluded(pos int, tokens []string) bool {
	ex := d.excludes[pos]
	if len(ex) == 0 {
		return false
	}
	for _, t := range tokens {
		if _, hit := ex[t]; hit {
			return true
		}
	}
	return false
}

// Definitions returns the metric definitions in dictionary order.
func (d *Dictionary) Definitions() []MetricDefinition {
	out := make([]MetricDefinition, len(d.defs))
	copy(out, d.defs)
	return out
}

// IDs returns canonical IDs in dictionary order. This order drives the dataset columns.
func (d *Dictionary) IDs() []string {
	ids := make([]string, len(d.defs))
	for i, def := range d.defs {
		ids[i] = def.ID
	}
	return ids
}

// Definition looks up a metric by canonical ID.
func (d *Dictionary) Definition(id string) (MetricDefinition, bool) {
	pos, ok := d.index[id]
	if !ok {
		return MetricDefinition{}, false
	}
	return d.defs[pos], true
}

// Threshold returns the fuzzy acceptance threshold in use.
func (d *Dictionary) Threshold() float64 { return d.threshold }

type file struct {
	Metrics []MetricDefinition `yaml:"metrics"`
}

// Load reads a YAML dictionary. A missing or empty file is a fatal configuration error.
func Load(path string, threshold float64) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read metric dictionary %s", path)
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "parse metric dictionary %s", path)
	}
	return New(f.Metrics, threshold)
}
