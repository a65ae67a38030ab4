package recolor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"furnicolor/internal/imaging"
)

// Editor performs an instruction-driven edit of an image.
type Editor interface {
	Name() string
	Edit(ctx context.Context, src imaging.Source, instruction string) (imaging.Source, error)
}

// DirectEdit sends the photo and a recolor instruction to a multimodal model.
type DirectEdit struct {
	Editor Editor
}

// Name implements Strategy.
func (s *DirectEdit) Name() string {
	if s.Editor == nil {
		return "direct"
	}
	return "direct:" + s.Editor.Name()
}

// Recolor implements Strategy.
func (s *DirectEdit) Recolor(ctx context.Context, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}
	if s.Editor == nil {
		return Result{}, errors.New("recolor: direct edit backend not configured")
	}
	report(ctx, Progress{Stage: StageEditing})
	out, err := s.Editor.Edit(ctx, req.Source, EditInstruction(req))
	if err != nil {
		return Result{}, fmt.Errorf("recolor: direct edit: %w", err)
	}
	return Result{Data: out.Data, MIMEType: out.MIMEType, Strategy: s.Name()}, nil
}

// EditInstruction is the natural-language edit sent to the model.
func EditInstruction(req Request) string {
	furniture := strings.TrimSpace(req.FurnitureType)
	if furniture == "" {
		furniture = "furniture"
	}
	return fmt.Sprintf("Edit this image. Change the color of the %s to %s (Hex: %s). Keep the texture, lighting, and shadows exactly the same. Output the result as a realistic photo.",
		furniture, strings.TrimSpace(req.ColorDescription), strings.ToUpper(req.Hex))
}
