package analysis

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/MikeSquared-Agency/Casting/internal/matching"
)

var (
	fenceOpen  = regexp.MustCompile("(?i)^```(?:json)?\\s*")
	fenceClose = regexp.MustCompile("\\s*```$")
	jsonObject = regexp.MustCompile(`(?s)\{.*\}`)
)

// ParseResponse reads model output into an Analysis. Markdown fences are
// stripped; when the text still does not decode, the outermost {...} block
// is tried. SoftScores is non-nil on success.
func ParseResponse(text string) (matching.Analysis, error) {
	var a matching.Analysis
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return a, ErrEmptyResponse
	}
	cleaned = fenceOpen.ReplaceAllString(cleaned, "")
	cleaned = fenceClose.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)

	if err := json.Unmarshal([]byte(cleaned), &a); err != nil {
		block := jsonObject.FindString(cleaned)
		if block == "" {
			return matching.Analysis{}, fmt.Errorf("%w: %v", ErrUnparseable, err)
		}
		a = matching.Analysis{}
		if err := json.Unmarshal([]byte(block), &a); err != nil {
			return matching.Analysis{}, fmt.Errorf("%w: %v", ErrUnparseable, err)
		}
	}
	if a.SoftScores == nil {
		a.SoftScores = matching.SoftScores{}
	}
	return a, nil
}
