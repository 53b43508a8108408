package server

import (
	"fmt"
	"net/http"
	"time"
)

// streamWriteTimeout bounds each individual event write. Active streams stay
// alive indefinitely; a client that stops reading gets disconnected.
const streamWriteTimeout = 30 * time.Second

// sseConn adapts an http.ResponseWriter into a stream.Conn. A write deadline
// is set before every write so a stalled client cannot hold the handler
// goroutine forever.
type sseConn struct {
	w          http.ResponseWriter
	controller *http.ResponseController
}

func newSSEConn(w http.ResponseWriter) (*sseConn, error) {
	if _, ok := w.(http.Flusher); !ok {
		return nil, fmt.Errorf("streaming not supported by connection")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	return &sseConn{
		w:          w,
		controller: http.NewResponseController(w),
	}, nil
}

func (c *sseConn) Write(p []byte) (int, error) {
	_ = c.controller.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	return c.w.Write(p)
}

func (c *sseConn) Flush() error {
	return c.controller.Flush()
}
