package audit

import (
	"path/filepath"
	"testing"
)

func BenchmarkRecord(b *testing.B) {
	path := filepath.Join(b.TempDir(), "bench.jsonl")
	l, err := Open(path)
	if err != nil {
		b.Fatalf("open: %v", err)
	}
	defer l.Close()

	entry := Entry{
		TraceID:  "t-bench",
		ConnID:   "c1",
		Event:    "request_headers",
		Key:      "1",
		Decision: "allow",
	}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if err := l.Record(entry); err != nil {
			b.Fatalf("record: %v", err)
		}
	}
}
