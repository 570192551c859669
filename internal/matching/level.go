package matching

// Level is the qualitative band of a total score.
type Level struct {
	Level string `json:"level"`
	Label string `json:"label"`
}

const (
	LevelPerfect   = "PERFECT"
	LevelExcellent = "EXCELLENT"
	LevelGood      = "GOOD"
	LevelFair      = "FAIR"
	LevelLow       = "LOW"
)

func LevelFor(total int) Level {
	switch {
	case total >= 90:
		return Level{LevelPerfect, "완벽한 매칭"}
	case total >= 75:
		return Level{LevelExcellent, "훌륭한 매칭"}
	case total >= 60:
		return Level{LevelGood, "좋은 매칭"}
	case total >= 40:
		return Level{LevelFair, "고려해볼 만함"}
	default:
		return Level{LevelLow, "낮은 적합도"}
	}
}
