// Package vision talks to multimodal models: it identifies furniture in a photo
// and performs instruction-driven image edits.
package vision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"furnicolor/internal/imaging"
)

// ErrMalformedResponse is returned when the model output is not the expected JSON object.
var ErrMalformedResponse = errors.New("vision: malformed analysis response")

const (
	// MaxVisionImageBytes is the largest inline payload sent to the model.
	MaxVisionImageBytes = 7 * 1024 * 1024
	defaultVisionModel  = "gemini-2.5-flash"

	analysisPrompt = `Analyze this image and identify the main piece of furniture. Return ONLY a JSON object with properties: "type" (short name like 'Sofa', 'Cabinet'), "material" (predominant material), and "description" (a brief 1-sentence physical description).`
)

// Analysis is the structured description of the furniture in a photo.
type Analysis struct {
	Type        string `json:"type"`
	Material    string `json:"material"`
	Description string `json:"description"`
}

// Placeholder is returned whenever the analysis service cannot be used,
// so the user can continue to the recolor step.
func Placeholder() Analysis {
	return Analysis{
		Type:        "模拟家具(API超限)",
		Material:    "默认材质",
		Description: "由于API配额限制，这是模拟的识别结果，您可以继续测试改色流程。",
	}
}

// Analyzer identifies furniture in an uploaded image.
type Analyzer interface {
	Analyze(ctx context.Context, src imaging.Source) (Analysis, error)
}

// contentGenerator is the part of the genai client used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiAnalyzer implements Analyzer with a JSON-schema constrained Gemini request.
type GeminiAnalyzer struct {
	models  contentGenerator
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiAnalyzer constructs a Gemini-powered furniture analyzer.
func NewGeminiAnalyzer(ctx context.Context, apiKey, model string, timeout time.Duration) (*GeminiAnalyzer, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("vision: gemini api key missing")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("vision: create genai client: %w", err)
	}
	a := newGeminiAnalyzer(client.Models, model, timeout)
	a.client = client
	return a, nil
}

func newGeminiAnalyzer(models contentGenerator, model string, timeout time.Duration) *GeminiAnalyzer {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GeminiAnalyzer{
		models:  models,
		model:   normalizeModel(model, defaultVisionModel),
		timeout: timeout,
	}
}

// Analyze sends the photo with the analysis prompt and parses the JSON reply.
func (g *GeminiAnalyzer) Analyze(ctx context.Context, src imaging.Source) (Analysis, error) {
	if len(src.Data) == 0 {
		return Analysis{}, imaging.ErrEmpty
	}
	if len(src.Data) > MaxVisionImageBytes {
		return Analysis{}, fmt.Errorf("vision: image exceeds %d bytes", MaxVisionImageBytes)
	}

	childCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			{InlineData: &genai.Blob{MIMEType: src.MIMEType, Data: src.Data}},
			genai.NewPartFromText(analysisPrompt),
		}, genai.RoleUser),
	}
	resp, err := g.models.GenerateContent(childCtx, g.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   analysisSchema(),
	})
	if err != nil {
		return Analysis{}, fmt.Errorf("vision: generate content: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return Analysis{}, fmt.Errorf("%w: no candidates", ErrMalformedResponse)
	}
	return parseAnalysis(resp.Text())
}

// ModelInfo summarises a model available to the configured key.
type ModelInfo struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name,omitempty"`
	Actions     []string `json:"actions,omitempty"`
}

// ListModels enumerates the models visible to the API key.
func (g *GeminiAnalyzer) ListModels(ctx context.Context) ([]ModelInfo, error) {
	if g == nil || g.client == nil {
		return nil, errors.New("vision: model listing unavailable")
	}
	var out []ModelInfo
	for m, err := range g.client.Models.All(ctx) {
		if err != nil {
			return nil, fmt.Errorf("vision: list models: %w", err)
		}
		out = append(out, ModelInfo{Name: m.Name, DisplayName: m.DisplayName, Actions: m.SupportedActions})
	}
	return out, nil
}

func analysisSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"type":        {Type: genai.TypeString},
			"material":    {Type: genai.TypeString},
			"description": {Type: genai.TypeString},
		},
		Required: []string{"type", "material", "description"},
	}
}

func parseAnalysis(text string) (Analysis, error) {
	text = strings.TrimSpace(text)
	var out Analysis
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start < 0 || end <= start {
			return Analysis{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil {
			return Analysis{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
	}
	if strings.TrimSpace(out.Type) == "" {
		return Analysis{}, fmt.Errorf("%w: missing type", ErrMalformedResponse)
	}
	return out, nil
}

// Degrading wraps an Analyzer so failures resolve to the placeholder analysis.
type Degrading struct {
	Analyzer Analyzer
	Logger   zerolog.Logger
}

// Analyze never returns an error; any failure yields Placeholder().
func (d Degrading) Analyze(ctx context.Context, src imaging.Source) (Analysis, error) {
	if d.Analyzer == nil {
		d.Logger.Warn().Msg("vision analyzer not configured, using placeholder analysis")
		return Placeholder(), nil
	}
	out, err := d.Analyzer.Analyze(ctx, src)
	if err != nil {
		d.Logger.Warn().Err(err).Msg("furniture analysis failed, using placeholder analysis")
		return Placeholder(), nil
	}
	return out, nil
}

func normalizeModel(model, fallback string) string {
	clean := strings.TrimSpace(model)
	clean = strings.TrimPrefix(clean, "models/")
	clean = strings.TrimSuffix(clean, "-latest")
	if clean == "" {
		return fallback
	}
	return clean
}
