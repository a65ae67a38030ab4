package recolor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"strconv"
	"strings"

	"golang.org/x/image/draw"

	"furnicolor/internal/imaging"
)

// DefaultOpacities are the color, multiply and overlay pass strengths.
var DefaultOpacities = [3]float64{0.8, 0.4, 0.2}

// LocalCompositing tints the whole photo toward the swatch color with three
// blend passes of decreasing opacity. There is no segmentation: the tint
// applies to every pixel, not just the furniture.
type LocalCompositing struct {
	opacities [3]float64
}

// NewLocalCompositing validates the pass opacities. They must lie in (0, 1]
// and strictly decrease from the color pass to the overlay pass.
func NewLocalCompositing(opacities [3]float64) (*LocalCompositing, error) {
	for i, o := range opacities {
		if o <= 0 || o > 1 {
			return nil, fmt.Errorf("recolor: opacity %d out of range: %v", i, o)
		}
		if i > 0 && o >= opacities[i-1] {
			return nil, errors.New("recolor: compositing opacities must strictly decrease")
		}
	}
	return &LocalCompositing{opacities: opacities}, nil
}

// Name implements Strategy.
func (s *LocalCompositing) Name() string { return "local" }

// Recolor implements Strategy. On decode or encode failure the original bytes
// are returned together with the error.
func (s *LocalCompositing) Recolor(ctx context.Context, req Request) (Result, error) {
	original := Result{Data: req.Source.Data, MIMEType: req.Source.MIMEType, Strategy: s.Name()}
	if err := req.Validate(); err != nil {
		return original, err
	}
	target, err := ParseHex(req.Hex)
	if err != nil {
		return original, err
	}

	src, _, err := imaging.Decode(req.Source)
	if err != nil {
		return original, err
	}
	bounds := src.Bounds()
	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, src, bounds.Min, draw.Src)

	if err := ctx.Err(); err != nil {
		return original, err
	}
	s.apply(canvas, target)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return original, fmt.Errorf("recolor: encode png: %w", err)
	}
	return Result{Data: buf.Bytes(), MIMEType: "image/png", Strategy: s.Name()}, nil
}

type rgb struct{ r, g, b float64 }

func (s *LocalCompositing) apply(img *image.RGBA, target color.RGBA) {
	cs := rgb{float64(target.R) / 255, float64(target.G) / 255, float64(target.B) / 255}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			i := img.PixOffset(x, y)
			a := img.Pix[i+3]
			if a == 0 {
				continue
			}
			alpha := float64(a) / 255
			// image.RGBA is alpha-premultiplied.
			cb := rgb{
				float64(img.Pix[i]) / 255 / alpha,
				float64(img.Pix[i+1]) / 255 / alpha,
				float64(img.Pix[i+2]) / 255 / alpha,
			}
			cb = mix(cb, blendColor(cb, cs), s.opacities[0])
			cb = mix(cb, blendMultiply(cb, cs), s.opacities[1])
			cb = mix(cb, blendOverlay(cb, cs), s.opacities[2])
			img.Pix[i] = toByte(cb.r * alpha)
			img.Pix[i+1] = toByte(cb.g * alpha)
			img.Pix[i+2] = toByte(cb.b * alpha)
		}
	}
}

func mix(base, blended rgb, opacity float64) rgb {
	return rgb{
		base.r + (blended.r-base.r)*opacity,
		base.g + (blended.g-base.g)*opacity,
		base.b + (blended.b-base.b)*opacity,
	}
}

func lum(c rgb) float64 { return 0.3*c.r + 0.59*c.g + 0.11*c.b }

func clipColor(c rgb) rgb {
	l := lum(c)
	n := math.Min(c.r, math.Min(c.g, c.b))
	x := math.Max(c.r, math.Max(c.g, c.b))
	if n < 0 {
		c = rgb{l + (c.r-l)*l/(l-n), l + (c.g-l)*l/(l-n), l + (c.b-l)*l/(l-n)}
	}
	if x > 1 {
		c = rgb{l + (c.r-l)*(1-l)/(x-l), l + (c.g-l)*(1-l)/(x-l), l + (c.b-l)*(1-l)/(x-l)}
	}
	return c
}

// blendColor keeps the backdrop luminosity with the source hue and saturation.
func blendColor(cb, cs rgb) rgb {
	d := lum(cb) - lum(cs)
	return clipColor(rgb{cs.r + d, cs.g + d, cs.b + d})
}

func blendMultiply(cb, cs rgb) rgb {
	return rgb{cb.r * cs.r, cb.g * cs.g, cb.b * cs.b}
}

func blendOverlay(cb, cs rgb) rgb {
	return rgb{overlay(cb.r, cs.r), overlay(cb.g, cs.g), overlay(cb.b, cs.b)}
}

func overlay(b, s float64) float64 {
	if b <= 0.5 {
		return 2 * b * s
	}
	return 1 - 2*(1-b)*(1-s)
}

func toByte(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	default:
		return uint8(math.Round(v * 255))
	}
}

// ParseHex parses a #RRGGBB color.
func ParseHex(hex string) (color.RGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(h) != 6 {
		return color.RGBA{}, fmt.Errorf("recolor: invalid hex color %q", hex)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("recolor: invalid hex color %q", hex)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}
