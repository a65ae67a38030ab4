package vision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"furnicolor/internal/imaging"
)

// ErrNoImage is returned when an edit request produced no image part.
var ErrNoImage = errors.New("vision: edit returned no image")

const defaultEditModel = "gemini-2.5-flash-image"

// GeminiEditor applies a natural-language edit to a photo and returns the edited image.
type GeminiEditor struct {
	models  contentGenerator
	model   string
	timeout time.Duration
}

// NewGeminiEditor constructs an editor backed by a Gemini image model.
func NewGeminiEditor(ctx context.Context, apiKey, model string, timeout time.Duration) (*GeminiEditor, error) {
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
	return newGeminiEditor(client.Models, model, timeout), nil
}

func newGeminiEditor(models contentGenerator, model string, timeout time.Duration) *GeminiEditor {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &GeminiEditor{
		models:  models,
		model:   normalizeModel(model, defaultEditModel),
		timeout: timeout,
	}
}

// Name identifies the backend in logs and results.
func (g *GeminiEditor) Name() string { return "gemini:" + g.model }

// Edit sends the image and instruction and returns the first inline image of the reply.
func (g *GeminiEditor) Edit(ctx context.Context, src imaging.Source, instruction string) (imaging.Source, error) {
	if strings.TrimSpace(instruction) == "" {
		return imaging.Source{}, errors.New("vision: edit instruction is required")
	}
	if len(src.Data) == 0 {
		return imaging.Source{}, imaging.ErrEmpty
	}

	childCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			{InlineData: &genai.Blob{MIMEType: src.MIMEType, Data: src.Data}},
			genai.NewPartFromText(instruction),
		}, genai.RoleUser),
	}
	resp, err := g.models.GenerateContent(childCtx, g.model, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	})
	if err != nil {
		return imaging.Source{}, fmt.Errorf("vision: edit request: %w", err)
	}
	if resp == nil {
		return imaging.Source{}, ErrNoImage
	}

	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			mime := part.InlineData.MIMEType
			if strings.TrimSpace(mime) == "" {
				mime = "image/png"
			}
			return imaging.Source{Name: "edited" + extensionFor(mime), MIMEType: mime, Data: part.InlineData.Data}, nil
		}
	}
	return imaging.Source{}, ErrNoImage
}

func extensionFor(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
