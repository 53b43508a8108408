package provider

import (
	"context"
	"fmt"
)

// Capability identifies a logical kind of generation work. Each adapter
// declares which capabilities it serves; chains are built per capability.
type Capability string

const (
	CapabilityImage  Capability = "image"
	CapabilityVision Capability = "vision"
	CapabilityText   Capability = "text"
)

// ValidCapability reports whether the given string names a known capability.
func ValidCapability(s string) bool {
	switch Capability(s) {
	case CapabilityImage, CapabilityVision, CapabilityText:
		return true
	}
	return false
}

// Quality levels accepted in generation options. Unknown values are treated
// as standard rather than rejected.
const (
	QualityStandard = "standard"
	QualityHD       = "hd"
	QualityUltra    = "ultra"
)

// Companion carries the companion persona details that shape image prompts.
// All fields are optional; unknown appearance keys fall back to the default
// preset during prompt enhancement.
type Companion struct {
	Name       string `json:"name,omitempty"`
	Appearance string `json:"appearance,omitempty"`
	Outfit     string `json:"outfit,omitempty"`
	Pose       string `json:"pose,omitempty"`
	Setting    string `json:"setting,omitempty"`
}

// Options holds the caller-supplied knobs for a single generation request.
type Options struct {
	Style     string    `json:"style,omitempty"`
	Quality   string    `json:"quality,omitempty"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
	Preferred string    `json:"provider,omitempty"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	Companion Companion `json:"companion,omitempty"`
}

// Result is a successful provider outcome. Exactly one of ResourceURL or
// Text is meaningful depending on the capability: image generations carry a
// resource URL, vision and text carry text.
type Result struct {
	ProviderID  string
	ResourceURL string
	Text        string
	Metadata    map[string]string
}

// Reason classifies why an adapter failed. The orchestrator uses it for
// logging and metrics only; every reason triggers fallback to the next
// adapter in the chain.
type Reason string

const (
	// ReasonUnavailable means the adapter has no usable credentials or
	// configuration and never reached the network.
	ReasonUnavailable Reason = "unavailable"
	// ReasonTimeout means the call (or the polling budget for asynchronous
	// providers) was exhausted before a terminal answer arrived.
	ReasonTimeout Reason = "timeout"
	// ReasonUpstream means the provider answered with an error.
	ReasonUpstream Reason = "upstream_error"
	// ReasonBadResponse means the provider answered but the payload could
	// not be used (empty data, unexpected shape).
	ReasonBadResponse Reason = "bad_response"
)

// Error is the typed failure an adapter returns. Adapters never let internal
// errors escape in any other form: panics are not used and SDK errors are
// wrapped here so the orchestrator can treat every adapter uniformly.
type Error struct {
	ProviderID string
	Reason     Reason
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider %s: %s: %v", e.ProviderID, e.Reason, e.Err)
	}
	return fmt.Sprintf("provider %s: %s", e.ProviderID, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Fail builds a typed adapter failure.
func Fail(providerID string, reason Reason, err error) *Error {
	return &Error{ProviderID: providerID, Reason: reason, Err: err}
}

// Adapter is the uniform generation contract every provider implements.
//
// Generate always returns either a Result or a *Error; it must not panic and
// must honor ctx cancellation at every network suspension point.
type Adapter interface {
	ID() string
	// Configured reports whether the adapter has the credentials it needs.
	// Unconfigured adapters stay in the chain and fail fast with
	// ReasonUnavailable so fallback ordering remains deterministic.
	Configured() bool
	Generate(ctx context.Context, prompt string, opts Options) (*Result, *Error)
}

// ChatStreamer is implemented by adapters that can deliver text output
// token-by-token. The callback is invoked in generation order; returning an
// error from it aborts the upstream stream.
type ChatStreamer interface {
	ID() string
	Configured() bool
	StreamChat(ctx context.Context, prompt string, onToken func(token string) error) (full string, err error)
}
