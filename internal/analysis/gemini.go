package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.0-flash-exp"

const systemPrompt = `당신은 UTOPIA X의 댄서 캐스팅 디렉터입니다. 고객의 섭외 요청을 읽고 아래 JSON 하나만 출력하세요.

{
  "hardFilters": {
    "gender": "male" | "female" | null,
    "heightCm": {"min": number | null, "max": number | null},
    "bodyFrame": "slim" | "athletic" | "average" | null,
    "hairColor": [string] | null,
    "kidsFriendly": true | null,
    "actingMin": 0-100 | null,
    "singingMin": 0-100 | null,
    "sfxMakeupOk": true | null,
    "cosplayExperience": true | null,
    "horrorReady": true | null,
    "gamerNerd": true | null
  },
  "softScores": {
    "tag_fresh": 0.0-1.0, "tag_dark": 0.0-1.0, "tag_sexy": 0.0-1.0, "tag_cute": 0.0-1.0,
    "tag_elegant": 0.0-1.0, "tag_trendy": 0.0-1.0, "tag_classic": 0.0-1.0, "tag_experimental": 0.0-1.0,
    "tag_commercial": 0.0-1.0, "tag_athletic": 0.0-1.0, "tag_slim": 0.0-1.0, "tag_tall": 0.0-1.0,
    "tag_young": 0.0-1.0, "tag_mature": 0.0-1.0, "tag_technical": 0.0-1.0, "tag_powerful": 0.0-1.0,
    "tag_soft": 0.0-1.0, "tag_energetic": 0.0-1.0, "tag_calm": 0.0-1.0, "tag_street": 0.0-1.0
  }
}

규칙:
1. 마크다운 없이 순수 JSON만 출력합니다.
2. hardFilters는 반드시 충족해야 하는 조건입니다. 언급되지 않은 항목은 null로 둡니다.
3. softScores는 선호도 가중치입니다. 요청과 관련 없는 태그는 생략하거나 0으로 둡니다.
4. 키워드 매핑:
   - 여성/여자/female → gender "female", 남성/남자/male → gender "male"
   - "키 183cm 이상" → heightCm.min 183, "키 170cm 이하" → heightCm.max 170
   - 금발/블론드 → hairColor ["blonde"], 핑크/분홍 → ["pink"]
   - 어린이/키즈/유아 → kidsFriendly true
   - 연기/캐릭터 → actingMin 60 이상, 노래/싱어롱 → singingMin 50 이상
   - 특수분장/좀비 → sfxMakeupOk true, 코스프레 → cosplayExperience true
   - 공포/호러/할로윈 → horrorReady true, 게임/게이머 → gamerNerd true`

// generator is the part of the genai client the analyzer calls.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type GeminiAnalyzer struct {
	models  generator
	model   string
	timeout time.Duration
}

func NewGeminiAnalyzer(ctx context.Context, apiKey, model string, timeout time.Duration) (*GeminiAnalyzer, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newGeminiAnalyzer(client.Models, model, timeout), nil
}

func newGeminiAnalyzer(models generator, model string, timeout time.Duration) *GeminiAnalyzer {
	if model = strings.TrimSpace(model); model == "" {
		model = DefaultModel
	}
	return &GeminiAnalyzer{models: models, model: model, timeout: timeout}
}

func generationConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}},
		Temperature:       genai.Ptr[float32](0.3),
		TopK:              genai.Ptr[float32](40),
		TopP:              genai.Ptr[float32](0.95),
		MaxOutputTokens:   2048,
		ResponseMIMEType:  "application/json",
	}
}

func (g *GeminiAnalyzer) Analyze(ctx context.Context, prompt string) (*Result, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text("[고객 요청]\n"+prompt), generationConfig())
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	raw := responseText(resp)
	if raw == "" {
		return nil, ErrEmptyResponse
	}
	a, err := ParseResponse(raw)
	if err != nil {
		return nil, err
	}
	return &Result{Analysis: a, Raw: raw, Source: SourceGemini}, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || strings.TrimSpace(part.Text) == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(strings.TrimSpace(part.Text))
		}
	}
	return strings.TrimSpace(builder.String())
}
