package testhelpers

import (
	"io"
	"log/slog"
)

// NewTestLogger returns a logger whose output is discarded. Constructors in
// this codebase require a logger, and tests have no use for the output.
func NewTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
