package analysis

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/MikeSquared-Agency/Casting/internal/matching"
)

var heightPattern = regexp.MustCompile(`키\s*(\d{3})\s*cm\s*(이상|이하|초과|미만)?`)

type softRule struct {
	words  []string
	scores map[string]float64
}

var (
	femaleWords = []string{"여성", "여자", "female"}
	maleWords   = []string{"남성", "남자", "male"}

	hairRules = []struct {
		color string
		words []string
	}{
		{"blonde", []string{"금발", "블론드", "blonde"}},
		{"pink", []string{"분홍", "핑크", "pink"}},
		{"blue", []string{"파란", "blue"}},
		{"red", []string{"빨강", "red"}},
	}

	kidsWords    = []string{"어린이", "키즈", "유아", "티니핑", "뽀로로", "kids", "children"}
	actingWords  = []string{"연기", "acting", "캐릭터", "character"}
	singingWords = []string{"노래", "가창", "singing", "싱어롱"}
	sfxWords     = []string{"특수분장", "좀비", "괴물", "sfx"}
	cosplayWords = []string{"코스프레", "cosplay", "리그오브레전드", "원신", "genshin"}
	horrorWords  = []string{"공포", "호러", "horror", "할로윈"}
	gamerWords   = []string{"게임", "게이머", "너드", "nerd"}

	softRules = []softRule{
		{[]string{"청량", "상쾌", "탄산", "fresh"}, map[string]float64{"tag_fresh": 0.95}},
		{[]string{"어두", "다크", "dark"}, map[string]float64{"tag_dark": 0.95}},
		{[]string{"섹시", "sexy", "관능"}, map[string]float64{"tag_sexy": 0.9}},
		{[]string{"귀여", "cute", "사랑스", "티니핑"}, map[string]float64{"tag_cute": 0.95}},
		{[]string{"우아", "elegant", "럭셔리", "샤넬"}, map[string]float64{"tag_elegant": 0.95}},
		{[]string{"스트릿", "street", "거리"}, map[string]float64{"tag_street": 0.9}},
		{[]string{"파워", "powerful", "강렬"}, map[string]float64{"tag_powerful": 0.9}},
		{[]string{"부드", "soft", "서정"}, map[string]float64{"tag_soft": 0.9}},
		{[]string{"활기", "energetic", "에너지", "신나"}, map[string]float64{"tag_energetic": 0.9}},
		{[]string{"차분", "calm", "절제"}, map[string]float64{"tag_calm": 0.9}},
		{[]string{"트렌디", "trendy", "최신"}, map[string]float64{"tag_trendy": 0.85}},
		{[]string{"클래식", "classic", "정통"}, map[string]float64{"tag_classic": 0.85}},
		{[]string{"실험", "experimental", "전위", "기괴"}, map[string]float64{"tag_experimental": 0.9}},
		{[]string{"광고", "commercial", "cf"}, map[string]float64{"tag_commercial": 0.8}},
		{[]string{"탄탄", "athletic", "운동"}, map[string]float64{"tag_athletic": 0.85}},
		{[]string{"슬림", "slim", "날씬"}, map[string]float64{"tag_slim": 0.85}},
		{[]string{"키 큰", "장신", "tall", "비율"}, map[string]float64{"tag_tall": 0.9}},
		{[]string{"젊", "young", "풋풋"}, map[string]float64{"tag_young": 0.85}},
		{[]string{"성숙", "mature", "노련"}, map[string]float64{"tag_mature": 0.85}},
		{[]string{"기술", "technical", "고난도"}, map[string]float64{"tag_technical": 0.9}},
		{[]string{"냉", "차가", "cold"}, map[string]float64{"warmCold": 0.9}},
		{[]string{"따뜻", "warm", "포근"}, map[string]float64{"warmCold": 0.1}},
		{[]string{"로봇", "robotic", "기계", "로보팅"}, map[string]float64{"organicRobotic": 0.95, "roboting": 0.9}},
		{[]string{"전통", "한복", "국악", "traditional"}, map[string]float64{"traditionalModern": 0.1, "koreanTraditional": 0.9}},
		{[]string{"현대", "모던", "modern"}, map[string]float64{"traditionalModern": 0.95}},
	}

	defaultSoftScores = matching.SoftScores{"tag_commercial": 0.7, "tag_trendy": 0.6, "tag_energetic": 0.6}
)

// KeywordAnalyzer reads a brief with a fixed Korean/English keyword table.
// It is deterministic and needs no network.
type KeywordAnalyzer struct{}

func (KeywordAnalyzer) Analyze(_ context.Context, prompt string) (*Result, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	return &Result{Analysis: AnalyzeKeywords(prompt), Source: SourceKeywords}, nil
}

func AnalyzeKeywords(prompt string) matching.Analysis {
	p := strings.ToLower(prompt)
	a := matching.Analysis{SoftScores: matching.SoftScores{}}
	hf := &a.HardFilters

	switch {
	case containsAny(p, femaleWords):
		hf.Gender = strPtr("female")
	case containsAny(p, maleWords):
		hf.Gender = strPtr("male")
	}

	if m := heightPattern.FindStringSubmatch(p); m != nil {
		h, _ := strconv.ParseFloat(m[1], 64)
		switch m[2] {
		case "이하", "미만":
			hf.HeightCm = &matching.HeightRange{Max: &h}
		default:
			hf.HeightCm = &matching.HeightRange{Min: &h}
		}
	}

	for _, r := range hairRules {
		if containsAny(p, r.words) {
			hf.HairColor = append(hf.HairColor, r.color)
		}
	}

	if containsAny(p, kidsWords) {
		hf.KidsFriendly = boolPtr(true)
	}
	if containsAny(p, actingWords) {
		hf.ActingMin = floatPtr(60)
		a.SoftScores["acting"] = 0.9
	}
	if containsAny(p, singingWords) {
		hf.SingingMin = floatPtr(50)
		a.SoftScores["singing"] = 0.85
	}
	if containsAny(p, sfxWords) {
		hf.SFXMakeupOK = boolPtr(true)
	}
	if containsAny(p, cosplayWords) {
		hf.CosplayExperience = boolPtr(true)
		a.SoftScores["gamerNerd"] = 0.8
	}
	if containsAny(p, horrorWords) {
		hf.HorrorReady = boolPtr(true)
		a.SoftScores["tag_dark"] = 0.95
		a.SoftScores["tag_experimental"] = 0.85
	}
	if containsAny(p, gamerWords) {
		hf.GamerNerd = boolPtr(true)
	}

	for _, r := range softRules {
		if !containsAny(p, r.words) {
			continue
		}
		for tag, v := range r.scores {
			a.SoftScores[tag] = v
		}
	}

	if len(a.SoftScores) == 0 {
		for tag, v := range defaultSoftScores {
			a.SoftScores[tag] = v
		}
	}
	return a
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if containsWord(s, w) {
			return true
		}
	}
	return false
}

// containsWord matches Hangul keywords as substrings, since particles attach
// to the stem. ASCII keywords must stand alone as a word, optionally with a
// plural "s", so "red" does not fire on "required".
func containsWord(s, w string) bool {
	if w == "" || !isASCII(w) {
		return strings.Contains(s, w)
	}
	for from := 0; from < len(s); {
		i := strings.Index(s[from:], w)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(w)
		if start == 0 || !isWordByte(s[start-1]) {
			if end < len(s) && s[end] == 's' {
				if end+1 == len(s) || !isWordByte(s[end+1]) {
					return true
				}
			}
			if end == len(s) || !isWordByte(s[end]) {
				return true
			}
		}
		from = start + 1
	}
	return false
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

func strPtr(s string) *string     { return &s }
func boolPtr(b bool) *bool        { return &b }
func floatPtr(f float64) *float64 { return &f }
