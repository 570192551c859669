package matching

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// TagPrefix is the legacy column prefix some records carry on soft tags
// ("tag_fresh"). Tags are compared without it.
const TagPrefix = "tag_"

// CanonicalTag lower-cases a tag and strips TagPrefix.
func CanonicalTag(tag string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(tag)), TagPrefix)
}

// StringList decodes from either a JSON string or an array of strings.
// Comma-separated strings are split.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = SplitList(s)
		return nil
	}
	var arr []string
	if err := json.Unmarshal(data, &arr); err != nil {
		return fmt.Errorf("string list: %w", err)
	}
	var out StringList
	for _, s := range arr {
		out = append(out, SplitList(s)...)
	}
	*l = out
	return nil
}

// SplitList splits a comma-separated value and drops empty entries.
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type HeightRange struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// HardFilters are mandatory constraints. A nil field does not filter, and
// boolean capabilities are only enforced when set to true.
type HardFilters struct {
	Gender            *string      `json:"gender,omitempty"`
	HeightCm          *HeightRange `json:"heightCm,omitempty"`
	BodyFrame         *string      `json:"bodyFrame,omitempty"`
	HairColor         StringList   `json:"hairColor,omitempty"`
	KidsFriendly      *bool        `json:"kidsFriendly,omitempty"`
	SFXMakeupOK       *bool        `json:"sfxMakeupOk,omitempty"`
	CosplayExperience *bool        `json:"cosplayExperience,omitempty"`
	HorrorReady       *bool        `json:"horrorReady,omitempty"`
	GamerNerd         *bool        `json:"gamerNerd,omitempty"`
	ActingMin         *float64     `json:"actingMin,omitempty"`
	SingingMin        *float64     `json:"singingMin,omitempty"`
}

// SoftScores maps a tag to its requested weight in [0,1].
type SoftScores map[string]float64

// Analysis is the structured reading of a casting brief.
type Analysis struct {
	HardFilters HardFilters `json:"hardFilters"`
	SoftScores  SoftScores  `json:"softScores"`
}

// Candidate is the view of a dancer the engine scores. Attribute values may
// be on a 0-1 or a 0-100 scale.
type Candidate struct {
	ID                string
	Gender            string
	HeightCm          float64
	BodyFrame         string
	HairColors        []string
	KidsFriendly      bool
	SFXMakeupOK       bool
	CosplayExperience bool
	HorrorReady       bool
	GamerNerd         bool
	Attributes        map[string]float64
}

// Attribute returns the candidate's value for tag. An exact key wins;
// otherwise keys are compared by CanonicalTag, so "warmCold", "warmcold" and
// "tag_warmCold" name the same attribute and the largest value is used.
func (c Candidate) Attribute(tag string) float64 {
	if v, ok := c.Attributes[tag]; ok && v != 0 {
		return v
	}
	key := CanonicalTag(tag)
	var best float64
	for k, v := range c.Attributes {
		if v > best && CanonicalTag(k) == key {
			best = v
		}
	}
	return best
}

// CanonicalAttributes re-keys attrs by CanonicalTag, keeping the largest
// value when several keys fold together.
func CanonicalAttributes(attrs map[string]float64) map[string]float64 {
	if attrs == nil {
		return nil
	}
	out := make(map[string]float64, len(attrs))
	for k, v := range attrs {
		key := CanonicalTag(k)
		if key == "" {
			continue
		}
		if prev, ok := out[key]; !ok || v > prev {
			out[key] = v
		}
	}
	return out
}

// TagScore is the contribution of one requested tag.
type TagScore struct {
	Tag          string  `json:"tag"`
	Weight       float64 `json:"weight"`
	Value        float64 `json:"value"`
	Contribution float64 `json:"contribution"`
}

type Breakdown struct {
	BaseScore    int     `json:"baseScore"`
	SynergyBonus float64 `json:"synergyBonus"`
}

// Result is the score of one candidate against one request.
type Result struct {
	CandidateID string     `json:"candidate_id"`
	Total       int        `json:"total"`
	Base        float64    `json:"base"`
	Breakdown   Breakdown  `json:"breakdown"`
	Tags        []TagScore `json:"tags"`
	Synergies   []string   `json:"synergies,omitempty"`
}

// Match is a ranked result.
type Match struct {
	Rank      int       `json:"rank"`
	Candidate Candidate `json:"-"`
	Result    Result    `json:"result"`
	Level     Level     `json:"level"`
}
