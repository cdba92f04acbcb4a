// Package upstream - sse.go iterates server-sent events from a backend.
//
// DESIGN: One event at a time off a bufio.Scanner; "data:" lines carry the
// payload, a "[DONE]" sentinel ends the stream. Cancellation rides on the
// request context: the HTTP layer closes the body when the context ends,
// which fails the next read.
package upstream

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/remodlai/nova-gateway/internal/hooks"
)

// maxEventSize caps one SSE event (1MB). Backends chunk well below this.
const maxEventSize = 1024 * 1024

var doneSentinel = []byte("[DONE]")

// StreamResponse is a streaming backend response.
type StreamResponse struct {
	Header   http.Header
	Iterator hooks.StreamIterator
}

// sseIterator adapts an SSE response body into a StreamIterator.
type sseIterator struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
}

func newSSEIterator(body io.ReadCloser) *sseIterator {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), maxEventSize)
	return &sseIterator{body: body, scanner: scanner}
}

// Next returns the next event payload, io.EOF at stream end.
func (it *sseIterator) Next(ctx context.Context) ([]byte, error) {
	if it.done {
		return nil, io.EOF
	}
	for it.scanner.Scan() {
		if err := ctx.Err(); err != nil {
			it.done = true
			return nil, err
		}
		line := it.scanner.Bytes()
		if !bytes.HasPrefix(line, []byte("data:")) {
			// Comments, event names and blank separators carry no payload.
			continue
		}
		data := bytes.TrimSpace(line[len("data:"):])
		if len(data) == 0 {
			continue
		}
		if bytes.Equal(data, doneSentinel) {
			it.done = true
			return nil, io.EOF
		}
		// Scanner reuses its buffer; hand out a copy.
		chunk := make([]byte, len(data))
		copy(chunk, data)
		return chunk, nil
	}

	it.done = true
	if err := it.scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("upstream stream read failed: %w", err)
	}
	return nil, io.EOF
}

// Close releases the underlying connection.
func (it *sseIterator) Close() error {
	it.done = true
	return it.body.Close()
}

var _ hooks.StreamIterator = (*sseIterator)(nil)
