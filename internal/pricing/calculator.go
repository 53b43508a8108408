// Package pricing computes the coin cost of a generation before any provider
// is called, so an insufficient balance is rejected without spending a
// network round trip.
package pricing

import (
	"math"
	"strings"

	"github.com/phuetz/MySoulmate-sub000/internal/provider"
)

const (
	// DefaultBaseUnits is the cost of a standard-quality generation before
	// multipliers.
	DefaultBaseUnits = 10

	// largeImagePixels is the pixel-count threshold above which the size
	// multiplier applies.
	largeImagePixels = 1024 * 1024

	sizeMultiplierLarge = 1.5
)

// Quote is the priced breakdown for one generation request.
// TotalUnits is always at least 1.
type Quote struct {
	BaseUnits          int     `json:"baseUnits"`
	QualityMultiplier  float64 `json:"qualityMultiplier"`
	SizeMultiplier     float64 `json:"sizeMultiplier"`
	ProviderMultiplier float64 `json:"providerMultiplier"`
	TotalUnits         int64   `json:"totalUnits"`
}

// Calculator prices generation requests. It is pure and total: every input
// yields a quote, unknown quality levels and providers priced at 1x.
type Calculator struct {
	baseUnits           int
	providerMultipliers map[string]float64
}

// DefaultProviderMultipliers reflects relative provider expense. Overridable
// from configuration.
func DefaultProviderMultipliers() map[string]float64 {
	return map[string]float64{
		"pixelforge": 1.2,
		"openai":     1.0,
		"gemini":     0.8,
		"anthropic":  1.0,
	}
}

// New creates a Calculator. Zero or negative baseUnits falls back to
// DefaultBaseUnits; a nil multiplier map falls back to the defaults.
func New(baseUnits int, providerMultipliers map[string]float64) *Calculator {
	if baseUnits <= 0 {
		baseUnits = DefaultBaseUnits
	}
	if providerMultipliers == nil {
		providerMultipliers = DefaultProviderMultipliers()
	}
	return &Calculator{
		baseUnits:           baseUnits,
		providerMultipliers: providerMultipliers,
	}
}

// QuoteFor prices a single request from its options.
func (c *Calculator) QuoteFor(opts provider.Options) Quote {
	q := Quote{
		BaseUnits:          c.baseUnits,
		QualityMultiplier:  qualityMultiplier(opts.Quality),
		SizeMultiplier:     1.0,
		ProviderMultiplier: 1.0,
	}

	if opts.Width > 0 && opts.Height > 0 && opts.Width*opts.Height > largeImagePixels {
		q.SizeMultiplier = sizeMultiplierLarge
	}

	if m, ok := c.providerMultipliers[strings.ToLower(opts.Preferred)]; ok && m > 0 {
		q.ProviderMultiplier = m
	}

	total := float64(q.BaseUnits) * q.QualityMultiplier * q.SizeMultiplier * q.ProviderMultiplier
	q.TotalUnits = int64(math.Round(total))
	if q.TotalUnits < 1 {
		q.TotalUnits = 1
	}
	return q
}

func qualityMultiplier(quality string) float64 {
	switch strings.ToLower(quality) {
	case provider.QualityUltra:
		return 2.0
	case provider.QualityHD:
		return 1.5
	default:
		return 1.0
	}
}
