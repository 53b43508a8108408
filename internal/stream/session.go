// Package stream frames token output into an SSE-style wire protocol with
// exactly-once termination. A session delivers tokens from either a live
// provider stream or a simulated word-by-word source; the consumer cannot
// tell them apart.
package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// Conn is the client-facing write side of a session. http.ResponseWriter
// based implementations flush after every event so intermediaries do not
// buffer the stream.
type Conn interface {
	io.Writer
	Flush() error
}

// keepAliveEvery is the token interval at which a protocol comment is
// emitted to defeat intermediary idle timeouts.
const keepAliveEvery = 10

// ErrSessionClosed is returned by emit methods after a terminal event.
var ErrSessionClosed = errors.New("stream: session already terminated")

// State tracks session progress. Terminal states never transition back.
type State int

const (
	StateOpen State = iota
	StateCompleted
	StateErrored
)

type startEvent struct {
	Type string `json:"type"`
}

type tokenEvent struct {
	Type       string `json:"type"`
	Content    string `json:"content"`
	TokenCount int    `json:"tokenCount"`
}

type completeEvent struct {
	Type         string `json:"type"`
	FullResponse string `json:"fullResponse"`
	TokenCount   int    `json:"tokenCount"`
	FinishReason string `json:"finishReason"`
}

type errorEvent struct {
	Type     string `json:"type"`
	Error    string `json:"error"`
	Fallback bool   `json:"fallback"`
}

// Session owns one client connection. Not safe for concurrent use; a
// session belongs to a single request goroutine.
type Session struct {
	id         string
	conn       Conn
	state      State
	tokenCount int
	full       strings.Builder
	logger     *slog.Logger
}

func NewSession(conn Conn, log *slog.Logger) *Session {
	id := uuid.NewString()
	return &Session{
		id:     id,
		conn:   conn,
		state:  StateOpen,
		logger: log.With("session_id", id),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State { return s.state }

// TokenCount returns the number of token events emitted so far.
func (s *Session) TokenCount() int { return s.tokenCount }

// FullResponse returns the text accumulated since the session started or
// since the last fallback notice.
func (s *Session) FullResponse() string { return s.full.String() }

// Start emits the opening event. Must be called exactly once before any
// token.
func (s *Session) Start() error {
	if s.state != StateOpen {
		return ErrSessionClosed
	}
	return s.writeEvent(startEvent{Type: "start"})
}

// EmitToken delivers one increment of text. The running tokenCount is
// strictly increasing; every tenth token is followed by a keep-alive
// comment.
func (s *Session) EmitToken(content string) error {
	if s.state != StateOpen {
		return ErrSessionClosed
	}
	s.tokenCount++
	s.full.WriteString(content)
	if err := s.writeEvent(tokenEvent{
		Type:       "token",
		Content:    content,
		TokenCount: s.tokenCount,
	}); err != nil {
		return err
	}
	if s.tokenCount%keepAliveEvery == 0 {
		return s.writeComment("keep-alive")
	}
	return nil
}

// Complete emits the single terminal success event carrying the full
// accumulated response, then closes the session.
func (s *Session) Complete(finishReason string) error {
	if s.state != StateOpen {
		return ErrSessionClosed
	}
	s.state = StateCompleted
	return s.writeEvent(completeEvent{
		Type:         "complete",
		FullResponse: s.full.String(),
		TokenCount:   s.tokenCount,
		FinishReason: finishReason,
	})
}

// Fail emits the single terminal error event, then closes the session.
func (s *Session) Fail(message string) error {
	if s.state != StateOpen {
		return ErrSessionClosed
	}
	s.state = StateErrored
	return s.writeEvent(errorEvent{
		Type:     "error",
		Error:    message,
		Fallback: false,
	})
}

// FallbackNotice emits a non-terminal error event with the fallback hint
// and resets the accumulated response. The session stays open and delivery
// restarts from the replacement source; tokenCount keeps increasing so the
// client sees one monotonic stream.
func (s *Session) FallbackNotice(message string) error {
	if s.state != StateOpen {
		return ErrSessionClosed
	}
	s.full.Reset()
	return s.writeEvent(errorEvent{
		Type:     "error",
		Error:    message,
		Fallback: true,
	})
}

func (s *Session) writeEvent(event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal stream event: %w", err)
	}
	if _, err := fmt.Fprintf(s.conn, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("write stream event: %w", err)
	}
	return s.conn.Flush()
}

func (s *Session) writeComment(comment string) error {
	if _, err := fmt.Fprintf(s.conn, ": %s\n\n", comment); err != nil {
		return fmt.Errorf("write stream comment: %w", err)
	}
	return s.conn.Flush()
}
