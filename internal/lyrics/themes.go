package lyrics

import (
	"context"
	"fmt"
	"strings"

	"trackmeta/internal/services"
	"trackmeta/internal/services/llm"
)

const themeSystemPrompt = "You analyze song lyrics. Respond with a single JSON object only."

// Completer is the JSON completion surface of a provider client.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// LLMThemeExtractor asks a language model for lyric insights.
type LLMThemeExtractor struct {
	client Completer
}

// NewLLMThemeExtractor wraps client.
func NewLLMThemeExtractor(client Completer) *LLMThemeExtractor {
	return &LLMThemeExtractor{client: client}
}

type insightsWire struct {
	Themes         llm.StringList `json:"themes"`
	Language       string         `json:"language"`
	Explicit       llm.Flag       `json:"explicit"`
	MoodFromLyrics llm.StringList `json:"mood_from_lyrics"`
	GenreHints     llm.StringList `json:"genre_hints"`
}

// ExtractThemes classifies the lyrics excerpt.
func (x *LLMThemeExtractor) ExtractThemes(ctx context.Context, lyrics string) (Insights, error) {
	raw, err := x.client.CompleteJSON(ctx, themeSystemPrompt, themePrompt(lyrics))
	if err != nil {
		return Insights{}, err
	}
	return ParseInsights(raw)
}

// ParseInsights decodes a theme extraction answer.
func ParseInsights(raw string) (Insights, error) {
	var wire insightsWire
	if err := llm.DecodeLLMJSON(raw, &wire); err != nil {
		return Insights{}, services.Wrap(services.ErrValidation, "lyrics", "parse insights", "invalid theme payload", err)
	}
	return Insights{
		Themes:         wire.Themes.Clean(),
		Language:       strings.TrimSpace(wire.Language),
		Explicit:       bool(wire.Explicit),
		MoodFromLyrics: wire.MoodFromLyrics.Clean(),
		GenreHints:     wire.GenreHints.Clean(),
	}, nil
}

func themePrompt(lyrics string) string {
	return fmt.Sprintf(`Analyze these lyrics:

%s

Return JSON:
{
  "themes": ["theme1", "theme2"],
  "language": "en",
  "explicit": true/false,
  "mood_from_lyrics": ["mood1", "mood2"],
  "genre_hints": ["genre based on lyrical style"]
}`, strings.TrimSpace(lyrics))
}
