package matching

import "strings"

// ApplyHardFilters returns the candidates that pass every set constraint,
// preserving input order.
func ApplyHardFilters(candidates []Candidate, f HardFilters) []Candidate {
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if PassesHardFilters(c, f) {
			out = append(out, c)
		}
	}
	return out
}

// PassesHardFilters reports whether a single candidate satisfies f.
func PassesHardFilters(c Candidate, f HardFilters) bool {
	if f.Gender != nil && *f.Gender != "" && !strings.EqualFold(c.Gender, strings.TrimSpace(*f.Gender)) {
		return false
	}

	if f.HeightCm != nil {
		if f.HeightCm.Min != nil && *f.HeightCm.Min > 0 && c.HeightCm < *f.HeightCm.Min {
			return false
		}
		if f.HeightCm.Max != nil && *f.HeightCm.Max > 0 && c.HeightCm > *f.HeightCm.Max {
			return false
		}
	}

	if f.BodyFrame != nil && *f.BodyFrame != "" && !strings.EqualFold(c.BodyFrame, strings.TrimSpace(*f.BodyFrame)) {
		return false
	}

	if len(f.HairColor) > 0 && !anyColorMatches(f.HairColor, c.HairColors) {
		return false
	}

	if isTrue(f.KidsFriendly) && !c.KidsFriendly {
		return false
	}
	if isTrue(f.SFXMakeupOK) && !c.SFXMakeupOK {
		return false
	}
	if isTrue(f.CosplayExperience) && !c.CosplayExperience {
		return false
	}
	if isTrue(f.HorrorReady) && !c.HorrorReady {
		return false
	}
	if isTrue(f.GamerNerd) && !c.GamerNerd {
		return false
	}

	if !meetsMinimum(c.Attribute("acting"), f.ActingMin) {
		return false
	}
	if !meetsMinimum(c.Attribute("singing"), f.SingingMin) {
		return false
	}
	return true
}

func isTrue(b *bool) bool { return b != nil && *b }

func anyColorMatches(wanted, have []string) bool {
	for _, w := range wanted {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		for _, h := range have {
			if strings.EqualFold(w, strings.TrimSpace(h)) {
				return true
			}
		}
	}
	return false
}

// meetsMinimum compares skill levels on the 0-100 scale. Values in (0,1]
// are read as fractions.
func meetsMinimum(value float64, min *float64) bool {
	if min == nil || *min <= 0 {
		return true
	}
	return percent(value) >= percent(*min)
}

func percent(v float64) float64 {
	if v > 0 && v <= 1 {
		return v * 100
	}
	return v
}
