package wire

import (
	"testing"

	"github.com/agentgate/agentgate/protocol"
)

func TestEncodingByName(t *testing.T) {
	if enc, ok := EncodingByName("json"); !ok || enc.Name() != "json" {
		t.Fatal("json encoding not resolved")
	}
	if enc, ok := EncodingByName("cbor"); !ok || enc.Name() != "cbor" {
		t.Fatal("cbor encoding not resolved")
	}
	if _, ok := EncodingByName("msgpack"); ok {
		t.Fatal("unknown encoding resolved")
	}
}

func TestEncodingsRoundTripDecision(t *testing.T) {
	msg := protocol.DecisionMessageV2{
		RequestID: 42,
		Decision:  protocol.Decision{Type: protocol.DecisionBlock, Status: 403, Body: "nope"},
		RequestHeaders: []protocol.HeaderOp{
			{Op: protocol.HeaderOpSet, Name: "x-inspected", Value: "1"},
		},
	}

	for _, enc := range []Encoding{JSONEncoding{}, CBOREncoding{}} {
		data, err := enc.Marshal(msg)
		if err != nil {
			t.Fatalf("%s marshal: %v", enc.Name(), err)
		}
		var got protocol.DecisionMessageV2
		if err := enc.Unmarshal(data, &got); err != nil {
			t.Fatalf("%s unmarshal: %v", enc.Name(), err)
		}
		if got.RequestID != 42 || got.Decision.Type != protocol.DecisionBlock || got.Decision.Status != 403 {
			t.Fatalf("%s round trip mismatch: %+v", enc.Name(), got)
		}
		if len(got.RequestHeaders) != 1 || got.RequestHeaders[0].Name != "x-inspected" {
			t.Fatalf("%s header ops lost: %+v", enc.Name(), got.RequestHeaders)
		}
	}
}
