package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubAdapter struct {
	id         string
	configured bool
}

func (s *stubAdapter) ID() string       { return s.id }
func (s *stubAdapter) Configured() bool { return s.configured }
func (s *stubAdapter) Generate(ctx context.Context, prompt string, opts Options) (*Result, *Error) {
	return &Result{ProviderID: s.id}, nil
}

func TestRegistry_ChainOrderPreserved(t *testing.T) {
	r := NewRegistry()
	r.Register(CapabilityImage, &stubAdapter{id: "a"})
	r.Register(CapabilityImage, &stubAdapter{id: "b"})
	r.Register(CapabilityImage, &stubAdapter{id: "c"})

	chain := r.Chain(CapabilityImage, "")

	ids := chainIDs(chain)
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestRegistry_PreferredMovesToFront(t *testing.T) {
	r := NewRegistry()
	r.Register(CapabilityImage, &stubAdapter{id: "a"})
	r.Register(CapabilityImage, &stubAdapter{id: "b"})
	r.Register(CapabilityImage, &stubAdapter{id: "c"})

	chain := r.Chain(CapabilityImage, "b")

	assert.Equal(t, []string{"b", "a", "c"}, chainIDs(chain))
}

func TestRegistry_UnknownPreferredKeepsOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(CapabilityImage, &stubAdapter{id: "a"})
	r.Register(CapabilityImage, &stubAdapter{id: "b"})

	chain := r.Chain(CapabilityImage, "nope")

	assert.Equal(t, []string{"a", "b"}, chainIDs(chain))
}

func TestRegistry_EmptyCapability(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Chain(CapabilityVision, ""))
}

func TestRegistry_Lookup(t *testing.T) {
	r := NewRegistry()
	r.Register(CapabilityImage, &stubAdapter{id: "a"})

	assert.NotNil(t, r.Lookup("a"))
	assert.Nil(t, r.Lookup("missing"))
}

func TestValidCapability(t *testing.T) {
	assert.True(t, ValidCapability("image"))
	assert.True(t, ValidCapability("vision"))
	assert.True(t, ValidCapability("text"))
	assert.False(t, ValidCapability("audio"))
	assert.False(t, ValidCapability(""))
}

func TestError_Message(t *testing.T) {
	err := Fail("openai", ReasonUpstream, errors.New("status 500"))

	assert.Contains(t, err.Error(), "openai")
	assert.Contains(t, err.Error(), "upstream_error")
	assert.Contains(t, err.Error(), "status 500")
	assert.ErrorContains(t, err.Unwrap(), "status 500")
}

func TestError_NoInnerError(t *testing.T) {
	err := Fail("gemini", ReasonUnavailable, nil)

	assert.Equal(t, "provider gemini: unavailable", err.Error())
	assert.Nil(t, err.Unwrap())
}

func chainIDs(chain []Adapter) []string {
	ids := make([]string, 0, len(chain))
	for _, a := range chain {
		ids = append(ids, a.ID())
	}
	return ids
}
