package wire

import (
	"bytes"
	"testing"
)

// FuzzReadFrameV2 feeds arbitrary bytes to the frame reader: it must
// return a complete frame or an error, never panic, and never allocate
// beyond the declared limit.
func FuzzReadFrameV2(f *testing.F) {
	var seed bytes.Buffer
	w := NewWriter(&seed)
	w.WriteFrameV2(TagRequestHeaders, []byte(`{"request_id":1}`))
	f.Add(seed.Bytes())
	f.Add([]byte{0, 0, 0, 0})
	f.Add([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0x01})
	f.Add([]byte{0, 0, 0, 1, 0xF0})
	f.Add([]byte("not a frame at all"))

	f.Fuzz(func(t *testing.T, data []byte) {
		r := NewReader(bytes.NewReader(data), 1<<16)
		for i := 0; i < 4; i++ {
			tag, payload, err := r.ReadFrameV2()
			if err != nil {
				return
			}
			if len(payload) > 1<<16 {
				t.Fatalf("payload %d exceeds limit (tag 0x%02X)", len(payload), tag)
			}
		}
	})
}

// FuzzFrameV1RoundTrip checks that any payload under the limit survives
// a write/read cycle byte-identically.
func FuzzFrameV1RoundTrip(f *testing.F) {
	f.Add([]byte(`{"version":1}`))
	f.Add([]byte{})
	f.Add(bytes.Repeat([]byte{0xAB}, 1024))

	f.Fuzz(func(t *testing.T, payload []byte) {
		if len(payload) == 0 || len(payload) > MaxFrameV1 {
			t.Skip()
		}
		var buf bytes.Buffer
		if err := NewWriter(&buf).WriteFrameV1(payload); err != nil {
			t.Fatalf("write: %v", err)
		}
		got, err := NewReader(&buf, MaxFrameV1).ReadFrameV1()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if !bytes.Equal(got, payload) {
			t.Fatal("round trip mismatch")
		}
	})
}
