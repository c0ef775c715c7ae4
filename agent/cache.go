package agent

import (
	"sync"
	"time"
)

// RequestContext is the accumulated per-request state: the request
// snapshot taken at the headers event, the body chunks collected so far
// (in arrival order), and the last-seen response headers. A context
// exists from the request-headers event until a terminal event
// (complete, cancel, cancel-all, or connection teardown) removes it.
type RequestContext struct {
	Request   *Request
	Response  *Response // response-headers snapshot; nil until seen
	CreatedAt time.Time

	chunks   [][]byte
	bodySize int
}

// appendChunk stores one decoded body chunk. Chunks concatenate in
// arrival order; the wire chunk_index is informational only.
func (c *RequestContext) appendChunk(data []byte) {
	c.chunks = append(c.chunks, data)
	c.bodySize += len(data)
}

// body concatenates the accumulated chunks.
func (c *RequestContext) body() []byte {
	if len(c.chunks) == 1 {
		return c.chunks[0]
	}
	out := make([]byte, 0, c.bodySize)
	for _, chunk := range c.chunks {
		out = append(out, chunk...)
	}
	return out
}

// requestCache maps RequestKey to RequestContext for one connection.
// Dispatch is sequential per connection, but drain/shutdown clears caches
// from another goroutine, so access is mutex-guarded.
type requestCache struct {
	mu sync.Mutex
	m  map[RequestKey]*RequestContext
}

func newRequestCache() *requestCache {
	return &requestCache{m: make(map[RequestKey]*RequestContext)}
}

// putOnHeaders creates the context for a new request lifecycle. A
// duplicate headers event for a live key replaces the old context.
func (rc *requestCache) putOnHeaders(key RequestKey, req *Request) *RequestContext {
	ctx := &RequestContext{Request: req, CreatedAt: time.Now()}
	rc.mu.Lock()
	rc.m[key] = ctx
	rc.mu.Unlock()
	return ctx
}

// get returns the live context for key, or nil.
func (rc *requestCache) get(key RequestKey) *RequestContext {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.m[key]
}

// removeOnTerminal drops the context for key, returning it if present.
func (rc *requestCache) removeOnTerminal(key RequestKey) *RequestContext {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	ctx := rc.m[key]
	delete(rc.m, key)
	return ctx
}

// clear drops every context, returning the removed keys.
func (rc *requestCache) clear() []RequestKey {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	keys := make([]RequestKey, 0, len(rc.m))
	for k := range rc.m {
		keys = append(keys, k)
	}
	rc.m = make(map[RequestKey]*RequestContext)
	return keys
}

// size returns the number of live contexts.
func (rc *requestCache) size() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return len(rc.m)
}
