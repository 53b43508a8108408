// Package prompt builds provider-ready prompts from raw user input and
// companion persona options. Enhancement is deterministic and never fails:
// unknown style or appearance keys fall back to the realistic/default preset
// so a typo in the client can't block a generation.
package prompt

import (
	"strings"

	"github.com/phuetz/MySoulmate-sub000/internal/provider"
)

// StylePreset wraps a prompt with a style-specific prefix and suffix.
type StylePreset struct {
	Prefix string
	Suffix string
}

const (
	defaultStyle      = "realistic"
	defaultAppearance = "default"

	// qualityMarkers are appended to every enhanced prompt regardless of
	// style. Fixed so the same request always produces the same prompt.
	qualityMarkers = "highly detailed, sharp focus, professional quality"
)

var stylePresets = map[string]StylePreset{
	"realistic": {
		Prefix: "professional photography, photorealistic",
		Suffix: "natural lighting, 85mm lens, shallow depth of field",
	},
	"anime": {
		Prefix: "anime artwork, cel shading",
		Suffix: "vibrant colors, clean line art, studio quality animation style",
	},
	"fantasy": {
		Prefix: "fantasy digital painting",
		Suffix: "dramatic lighting, intricate details, epic atmosphere",
	},
	"cyberpunk": {
		Prefix: "cyberpunk digital art",
		Suffix: "neon lighting, rain-slicked streets, futuristic cityscape",
	},
	"watercolor": {
		Prefix: "watercolor painting",
		Suffix: "soft brush strokes, paper texture, delicate color washes",
	},
}

var appearancePresets = map[string]string{
	"default":  "a young woman with long brown hair and warm expressive eyes",
	"blonde":   "a young woman with wavy blonde hair and bright blue eyes",
	"redhead":  "a young woman with fiery red hair and green eyes",
	"raven":    "a young woman with sleek black hair and dark eyes",
	"platinum": "a young woman with platinum silver hair and grey eyes",
}

// Enhancer composes enhanced prompts from style presets and companion
// persona details.
type Enhancer struct {
	styles      map[string]StylePreset
	appearances map[string]string
}

// New creates an Enhancer with the built-in presets.
func New() *Enhancer {
	return &Enhancer{
		styles:      stylePresets,
		appearances: appearancePresets,
	}
}

// Enhance builds the final provider-ready prompt. Composition order is
// fixed: style prefix, appearance, outfit, pose, setting, raw prompt, style
// suffix, quality markers. Empty optional clauses are skipped.
func (e *Enhancer) Enhance(raw string, opts provider.Options) string {
	style := e.stylePreset(opts.Style)

	parts := make([]string, 0, 8)
	parts = append(parts, style.Prefix)
	parts = append(parts, e.appearance(opts.Companion.Appearance))

	if outfit := strings.TrimSpace(opts.Companion.Outfit); outfit != "" {
		parts = append(parts, "wearing "+outfit)
	}
	if pose := strings.TrimSpace(opts.Companion.Pose); pose != "" {
		parts = append(parts, pose+" pose")
	}
	if setting := strings.TrimSpace(opts.Companion.Setting); setting != "" {
		parts = append(parts, "in "+setting)
	}
	if raw = strings.TrimSpace(raw); raw != "" {
		parts = append(parts, raw)
	}

	parts = append(parts, style.Suffix)
	parts = append(parts, qualityMarkers)

	return strings.Join(parts, ", ")
}

func (e *Enhancer) stylePreset(key string) StylePreset {
	if preset, ok := e.styles[strings.ToLower(strings.TrimSpace(key))]; ok {
		return preset
	}
	return e.styles[defaultStyle]
}

func (e *Enhancer) appearance(key string) string {
	if desc, ok := e.appearances[strings.ToLower(strings.TrimSpace(key))]; ok {
		return desc
	}
	return e.appearances[defaultAppearance]
}
