package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phuetz/MySoulmate-sub000/internal/config"
	"github.com/phuetz/MySoulmate-sub000/internal/provider"
	"github.com/phuetz/MySoulmate-sub000/internal/testhelpers"
)

type nullSink struct{}

func (nullSink) SaveImage(data []byte, mimeType string) (string, error) {
	return "https://cdn.example.com/out.png", nil
}

func TestBuildRegistry_ChainOrder(t *testing.T) {
	cfg := &config.Config{}
	cfg.Chains = config.ChainsConfig{
		Image:  []string{"pixelforge", "gemini", "openai"},
		Vision: []string{"gemini", "openai"},
		Text:   []string{"anthropic", "openai"},
	}

	registry := buildRegistry(cfg, nullSink{}, testhelpers.NewTestLogger())

	chains := registry.Providers()
	assert.Equal(t, []string{"pixelforge", "gemini", "openai"}, chains[provider.CapabilityImage])
	assert.Equal(t, []string{"gemini", "openai"}, chains[provider.CapabilityVision])

	streamers := registry.Streamers("")
	require.Len(t, streamers, 2)
	assert.Equal(t, "anthropic", streamers[0].ID())
	assert.Equal(t, "openai", streamers[1].ID())
}

func TestBuildRegistry_IgnoresUnknownNames(t *testing.T) {
	cfg := &config.Config{}
	cfg.Chains = config.ChainsConfig{
		Image: []string{"pixelforge", "stable-diffusion"},
		Text:  []string{"anthropic", "mistral"},
	}

	registry := buildRegistry(cfg, nullSink{}, testhelpers.NewTestLogger())

	assert.Equal(t, []string{"pixelforge"}, registry.Providers()[provider.CapabilityImage])
	assert.Len(t, registry.Streamers(""), 1)
}
