package stream

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phuetz/MySoulmate-sub000/internal/monitoring"
	"github.com/phuetz/MySoulmate-sub000/internal/provider"
	"github.com/phuetz/MySoulmate-sub000/internal/testhelpers"
)

const defaultReply = "Thank you for your message. I am here for you, always."

type fakeStreamer struct {
	id         string
	configured bool
	tokens     []string
	failAfter  int // fail after emitting this many tokens; -1 never fails
}

func (f *fakeStreamer) ID() string       { return f.id }
func (f *fakeStreamer) Configured() bool { return f.configured }

func (f *fakeStreamer) StreamChat(ctx context.Context, prompt string, onToken func(string) error) (string, error) {
	var full strings.Builder
	for i, tok := range f.tokens {
		if f.failAfter >= 0 && i == f.failAfter {
			return "", errors.New("upstream reset")
		}
		if err := onToken(tok); err != nil {
			return "", err
		}
		full.WriteString(tok)
	}
	if f.failAfter >= 0 && f.failAfter >= len(f.tokens) {
		return "", errors.New("upstream reset")
	}
	return full.String(), nil
}

func newManager(streamers ...provider.ChatStreamer) *Manager {
	reg := provider.NewRegistry()
	for _, s := range streamers {
		reg.RegisterStreamer(s)
	}
	return NewManager(reg, defaultReply, time.Millisecond, monitoring.New(false), testhelpers.NewTestLogger())
}

func TestStream_SimulatedWhenNoLiveProvider(t *testing.T) {
	conn := &bufferConn{}
	m := newManager()

	result, err := m.Stream(context.Background(), "hello", "", conn)

	require.NoError(t, err)
	assert.Equal(t, SourceSimulated, result.Source)
	assert.Equal(t, defaultReply, result.FullText)

	events, _ := decodeWire(t, conn.String())
	require.NotEmpty(t, events)
	assert.Equal(t, "start", events[0].Type)

	var rebuilt strings.Builder
	tokens := 0
	for _, ev := range events {
		if ev.Type == "token" {
			rebuilt.WriteString(ev.Content)
			tokens++
		}
	}
	assert.Equal(t, defaultReply, rebuilt.String(), "concatenated tokens reconstruct the reply")
	assert.Equal(t, len(strings.Fields(defaultReply)), tokens)

	final := events[len(events)-1]
	assert.Equal(t, "complete", final.Type)
	assert.Equal(t, defaultReply, final.FullResponse)
	assert.Equal(t, tokens, final.TokenCount)
}

func TestStream_LiveProviderSuccess(t *testing.T) {
	conn := &bufferConn{}
	live := &fakeStreamer{
		id:         "anthropic",
		configured: true,
		tokens:     []string{"Hello", " there", "!"},
		failAfter:  -1,
	}
	m := newManager(live)

	result, err := m.Stream(context.Background(), "hi", "", conn)

	require.NoError(t, err)
	assert.Equal(t, SourceLive, result.Source)
	assert.Equal(t, "anthropic", result.ProviderID)
	assert.Equal(t, "Hello there!", result.FullText)
	assert.Equal(t, 3, result.TokenCount)

	events, _ := decodeWire(t, conn.String())
	final := events[len(events)-1]
	assert.Equal(t, "complete", final.Type)
	assert.Equal(t, "Hello there!", final.FullResponse)
}

func TestStream_MidStreamFailureFallsBackToSimulated(t *testing.T) {
	conn := &bufferConn{}
	live := &fakeStreamer{
		id:         "anthropic",
		configured: true,
		tokens:     []string{"I", " was", " about"},
		failAfter:  2,
	}
	m := newManager(live)

	result, err := m.Stream(context.Background(), "hi", "", conn)

	require.NoError(t, err)
	assert.Equal(t, SourceSimulated, result.Source)
	assert.Equal(t, defaultReply, result.FullText)

	events, _ := decodeWire(t, conn.String())
	var sawFallback bool
	terminal := 0
	prevCount := 0
	for _, ev := range events {
		switch ev.Type {
		case "error":
			if ev.Fallback {
				sawFallback = true
			} else {
				terminal++
			}
		case "complete":
			terminal++
		case "token":
			assert.Greater(t, ev.TokenCount, prevCount)
			prevCount = ev.TokenCount
		}
	}
	assert.True(t, sawFallback, "client must be told about the source switch")
	assert.Equal(t, 1, terminal, "exactly one terminal event")

	final := events[len(events)-1]
	assert.Equal(t, "complete", final.Type)
	assert.Equal(t, defaultReply, final.FullResponse, "full response reflects the replacement source only")
}

func TestStream_FailureBeforeTokensTriesNextStreamer(t *testing.T) {
	conn := &bufferConn{}
	broken := &fakeStreamer{id: "anthropic", configured: true, failAfter: 0}
	healthy := &fakeStreamer{
		id:         "openai",
		configured: true,
		tokens:     []string{"ok"},
		failAfter:  -1,
	}
	m := newManager(broken, healthy)

	result, err := m.Stream(context.Background(), "hi", "", conn)

	require.NoError(t, err)
	assert.Equal(t, SourceLive, result.Source)
	assert.Equal(t, "openai", result.ProviderID)

	events, _ := decodeWire(t, conn.String())
	for _, ev := range events {
		assert.NotEqual(t, "error", ev.Type, "silent failover must not surface an error event")
	}
}

func TestStream_SkipsUnconfiguredStreamers(t *testing.T) {
	conn := &bufferConn{}
	unconfigured := &fakeStreamer{id: "anthropic", configured: false}
	m := newManager(unconfigured)

	result, err := m.Stream(context.Background(), "hi", "", conn)

	require.NoError(t, err)
	assert.Equal(t, SourceSimulated, result.Source)
}

func TestStream_CancelledDuringSimulation(t *testing.T) {
	conn := &bufferConn{}
	reg := provider.NewRegistry()
	m := NewManager(reg, defaultReply, 50*time.Millisecond, monitoring.New(false), testhelpers.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := m.Stream(ctx, "hi", "", conn)

	require.ErrorIs(t, err, context.Canceled)

	events, _ := decodeWire(t, conn.String())
	for _, ev := range events {
		assert.NotEqual(t, "complete", ev.Type)
	}
}

func TestSimulate_ReconstructsExactText(t *testing.T) {
	conn := &bufferConn{}
	s := newSession(conn)
	require.NoError(t, s.Start())

	text := "Thank you for your message."
	require.NoError(t, Simulate(context.Background(), s, text, 0))
	require.NoError(t, s.Complete("stop"))

	events, _ := decodeWire(t, conn.String())
	var rebuilt strings.Builder
	tokens := 0
	for _, ev := range events {
		if ev.Type == "token" {
			rebuilt.WriteString(ev.Content)
			tokens++
		}
	}
	assert.Equal(t, text, rebuilt.String())
	assert.Equal(t, 5, tokens, "one token per word")
}
