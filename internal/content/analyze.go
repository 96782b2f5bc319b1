package content

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/jackzampolin/memoir/internal/dispatch"
	"github.com/jackzampolin/memoir/internal/normalize"
)

// maxAnalysisInput bounds how much chapter text is sent for analysis.
const maxAnalysisInput = 12000

// Analysis is the structured reading of a chapter.
type Analysis struct {
	ChapterSummary  string   `json:"chapter_summary"`
	ThematicFraming string   `json:"thematic_framing"`
	KeyLessons      string   `json:"key_lessons"`
	AuthorVoice     string   `json:"author_voice"`
	ImagePrompts    []string `json:"image_prompts"`
	VideoScene      string   `json:"video_scene"`

	// Fallback is set when the canned analysis was returned instead of a
	// model response.
	Fallback bool `json:"fallback,omitempty"`
}

// Context returns the fields that travel with a generation request.
func (a *Analysis) Context() dispatch.Context {
	return dispatch.Context{
		ChapterSummary:  a.ChapterSummary,
		ThematicFraming: a.ThematicFraming,
		KeyLessons:      a.KeyLessons,
		AuthorVoice:     a.AuthorVoice,
	}
}

// fallbackAnalysis is returned whenever the service cannot produce one.
func fallbackAnalysis() *Analysis {
	return &Analysis{
		ChapterSummary:  "A chapter from the memoir.",
		ThematicFraming: "Memory, change, and what we carry forward.",
		KeyLessons:      "Every ending makes room for a new beginning.",
		AuthorVoice:     "Reflective and plainspoken.",
		ImagePrompts: []string{
			"A quiet landscape at golden hour, soft natural light, nostalgic mood",
			"An old family photograph resting on a wooden table by a window",
			"A winding road leading toward distant hills at dawn",
		},
		VideoScene: "Slow camera drift across a sunlit room filled with old keepsakes, dust in the light, a window opening onto fields.",
		Fallback:   true,
	}
}

// Analyze reads text and returns its structured analysis. It never fails for
// service reasons: when the service is unconfigured, unreachable, or answers
// with something unusable, the canned analysis is returned instead. Only
// cancellation of ctx is reported as an error.
func (s *Service) Analyze(ctx context.Context, text string) (*Analysis, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return fallbackAnalysis(), nil
	}

	reply, err := s.complete(ctx, analyzeSystemPrompt, truncate(text, maxAnalysisInput))
	if err == nil {
		var analysis *Analysis
		if analysis, err = parseAnalysis(reply); err == nil {
			return analysis, nil
		}
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if errors.Is(err, ErrNotConfigured) {
		s.logger.Debug("content service not configured, using canned analysis")
	} else {
		s.logger.Warn("analysis failed, using canned analysis", "error", err)
	}
	return fallbackAnalysis(), nil
}

// ScenePrompt writes a video scene description for text. On failure it falls
// back to the opening of the text itself.
func (s *Service) ScenePrompt(ctx context.Context, text string) string {
	text = strings.TrimSpace(text)
	reply, err := s.complete(ctx, sceneSystemPrompt, truncate(text, maxAnalysisInput))
	if err != nil {
		if !errors.Is(err, ErrNotConfigured) {
			s.logger.Warn("scene prompt failed, using source text", "error", err)
		}
		return truncate(text, 500)
	}
	return strings.TrimSpace(reply)
}

func parseAnalysis(reply string) (*Analysis, error) {
	raw, err := normalize.ExtractJSON(reply)
	if err != nil {
		return nil, fmt.Errorf("analysis is not JSON: %w", err)
	}
	if err := validateAnalysis(raw); err != nil {
		return nil, err
	}

	var analysis Analysis
	if err := json.Unmarshal(raw, &analysis); err != nil {
		return nil, fmt.Errorf("failed to decode analysis: %w", err)
	}
	return &analysis, nil
}

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func validateAnalysis(raw json.RawMessage) error {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("analysis.json", bytes.NewReader([]byte(analysisSchema))); err != nil {
			compileErr = fmt.Errorf("failed to load analysis schema: %w", err)
			return
		}
		compiledSchema, compileErr = compiler.Compile("analysis.json")
	})
	if compileErr != nil {
		return compileErr
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to decode analysis for validation: %w", err)
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return fmt.Errorf("analysis does not match schema: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
