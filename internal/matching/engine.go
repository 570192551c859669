package matching

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
)

// Options tunes the engine. Zero thresholds and counts fall back to
// DefaultOptions; a zero SynergyBonus disables synergy.
type Options struct {
	DefaultTopN               int
	SynergyBonus              float64
	SynergyRequestThreshold   float64
	SynergyCandidateThreshold float64
	SynergyMinTags            int
}

func DefaultOptions() Options {
	return Options{
		DefaultTopN:               5,
		SynergyBonus:              5,
		SynergyRequestThreshold:   0.5,
		SynergyCandidateThreshold: 0.7,
		SynergyMinTags:            2,
	}
}

// Engine scores and ranks candidates against an Analysis.
type Engine struct {
	opts     Options
	synergy  []SynergyGroup
	conflict []ConflictPair
	logger   *slog.Logger
}

func NewEngine(opts Options, logger *slog.Logger) *Engine {
	d := DefaultOptions()
	if opts.DefaultTopN <= 0 {
		opts.DefaultTopN = d.DefaultTopN
	}
	if opts.SynergyMinTags <= 0 {
		opts.SynergyMinTags = d.SynergyMinTags
	}
	if opts.SynergyRequestThreshold <= 0 {
		opts.SynergyRequestThreshold = d.SynergyRequestThreshold
	}
	if opts.SynergyCandidateThreshold <= 0 {
		opts.SynergyCandidateThreshold = d.SynergyCandidateThreshold
	}
	return &Engine{
		opts:     opts,
		synergy:  DefaultSynergyGroups(),
		conflict: DefaultConflictPairs(),
		logger:   logger,
	}
}

// Normalize brings a raw attribute value onto the 0-1 scale. Values above 1
// are read as percentages.
func Normalize(v float64) float64 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v > 1 {
		v /= 100
	}
	return math.Min(v, 1)
}

// canonicalWeights folds prefixed and unprefixed duplicates, clamps weights
// to [0,1] and drops non-finite entries.
func canonicalWeights(soft SoftScores) map[string]float64 {
	out := make(map[string]float64, len(soft))
	for tag, w := range soft {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			continue
		}
		key := CanonicalTag(tag)
		if key == "" {
			continue
		}
		w = clamp(w)
		if prev, ok := out[key]; !ok || w > prev {
			out[key] = w
		}
	}
	return out
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// Score computes the weighted soft score plus synergy bonus for one candidate.
// Hard filters are not consulted.
func (e *Engine) Score(c Candidate, soft SoftScores) Result {
	weights := canonicalWeights(soft)

	tags := make([]string, 0, len(weights))
	for t := range weights {
		tags = append(tags, t)
	}
	sort.Strings(tags)

	result := Result{CandidateID: c.ID, Tags: make([]TagScore, 0, len(tags))}

	var weightedSum, totalWeight float64
	for _, tag := range tags {
		w := weights[tag]
		v := Normalize(c.Attribute(tag))
		ts := TagScore{Tag: tag, Weight: w, Value: v, Contribution: w * v}
		result.Tags = append(result.Tags, ts)
		weightedSum += ts.Contribution
		totalWeight += w
	}

	if totalWeight > 0 {
		result.Base = weightedSum / totalWeight * 100
	}

	var bonus float64
	for _, g := range e.synergy {
		if e.synergyApplies(g, weights, c) {
			bonus += e.opts.SynergyBonus
			result.Synergies = append(result.Synergies, g.Name)
		}
	}

	result.Breakdown = Breakdown{
		BaseScore:    int(math.Round(result.Base)),
		SynergyBonus: bonus,
	}
	result.Total = int(math.Min(100, math.Round(result.Base+bonus)))
	return result
}

func (e *Engine) synergyApplies(g SynergyGroup, weights map[string]float64, c Candidate) bool {
	var requested []string
	for _, tag := range g.Tags {
		if weights[tag] > e.opts.SynergyRequestThreshold {
			requested = append(requested, tag)
		}
	}
	if len(requested) < e.opts.SynergyMinTags {
		return false
	}
	for _, tag := range requested {
		if Normalize(c.Attribute(tag)) < e.opts.SynergyCandidateThreshold {
			return false
		}
	}
	return true
}

// Rank filters, scores and orders candidates. topN <= 0 uses the configured
// default. Ties are broken by base score, then by candidate ID.
func (e *Engine) Rank(candidates []Candidate, a Analysis, topN int) []Match {
	if topN <= 0 {
		topN = e.opts.DefaultTopN
	}

	eligible := ApplyHardFilters(candidates, a.HardFilters)
	matches := make([]Match, 0, len(eligible))
	for _, c := range eligible {
		r := e.Score(c, a.SoftScores)
		matches = append(matches, Match{Candidate: c, Result: r, Level: LevelFor(r.Total)})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		ri, rj := matches[i].Result, matches[j].Result
		if ri.Total != rj.Total {
			return ri.Total > rj.Total
		}
		if ri.Base != rj.Base {
			return ri.Base > rj.Base
		}
		return ri.CandidateID < rj.CandidateID
	})

	if len(matches) > topN {
		matches = matches[:topN]
	}
	for i := range matches {
		matches[i].Rank = i + 1
	}

	if e.logger != nil {
		e.logger.Debug("ranked candidates",
			"candidates", len(candidates),
			"eligible", len(eligible),
			"returned", len(matches),
		)
	}
	return matches
}

// Warnings lists conflicting tag pairs requested together. Conflicts never
// affect scores.
func (e *Engine) Warnings(soft SoftScores) []string {
	weights := canonicalWeights(soft)
	var out []string
	for _, p := range e.conflict {
		if weights[p.A] > e.opts.SynergyRequestThreshold && weights[p.B] > e.opts.SynergyRequestThreshold {
			out = append(out, fmt.Sprintf("conflicting tags requested: %s / %s", p.A, p.B))
		}
	}
	return out
}

// MatchedTag is a formatted top contribution.
type MatchedTag struct {
	Tag   string `json:"tag"`
	Match string `json:"match"`
}

// TopTags returns the n highest contributions, formatted as percentages.
func TopTags(r Result, n int) []MatchedTag {
	tags := make([]TagScore, len(r.Tags))
	copy(tags, r.Tags)
	sort.SliceStable(tags, func(i, j int) bool {
		return tags[i].Contribution > tags[j].Contribution
	})
	if n >= 0 && len(tags) > n {
		tags = tags[:n]
	}
	out := make([]MatchedTag, 0, len(tags))
	for _, t := range tags {
		out = append(out, MatchedTag{
			Tag:   strings.TrimPrefix(t.Tag, TagPrefix),
			Match: fmt.Sprintf("%d%%", int(math.Round(t.Value*100))),
		})
	}
	return out
}
