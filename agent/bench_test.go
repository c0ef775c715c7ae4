package agent

import (
	"context"
	"testing"
)

func BenchmarkDispatchRequestHeaders(b *testing.B) {
	d := newTestDispatcher(PassThrough{}, 0)
	ev := headersEvent("c", "GET", "/api/v1/items?id=1")

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		key := KeyV2(int64(i))
		d.handleRequestHeaders(context.Background(), key, ev, false)
		d.handleComplete(key, 200, 1)
	}
}

func BenchmarkBodyAccumulation(b *testing.B) {
	p := &probe{}
	d := newTestDispatcher(p, 0)
	chunk := make([]byte, 4096)

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		key := KeyV2(int64(i))
		d.handleRequestHeaders(context.Background(), key, headersEvent("", "POST", "/u"), true)
		d.handleRequestBody(context.Background(), key, chunk, false)
		d.handleRequestBody(context.Background(), key, chunk, true)
		d.handleComplete(key, 200, 1)
	}
}

func BenchmarkQueryParse(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		req := &Request{URI: "/search?q=term&page=2&tag=a&tag=b&raw=%2Fx"}
		_ = req.Query().Get("q")
	}
}
