package protocol

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestBodyMutationPassThroughKeepsNullData(t *testing.T) {
	out, err := json.Marshal(BodyMutation{ChunkIndex: 3})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"data":null,"chunk_index":3}` {
		t.Fatalf("pass-through encoding = %s", out)
	}

	drop := ""
	out, _ = json.Marshal(BodyMutation{Data: &drop, ChunkIndex: 0})
	if string(out) != `{"data":"","chunk_index":0}` {
		t.Fatalf("drop encoding = %s", out)
	}
}

func TestAgentResponseOmitsEmptyFields(t *testing.T) {
	out, err := json.Marshal(AgentResponse{
		Version:  VersionV1,
		Decision: Decision{Type: DecisionAllow},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(out)
	for _, field := range []string{"request_headers", "response_headers", "routing_metadata", "audit", "needs_more", "body_mutation"} {
		if strings.Contains(s, field) {
			t.Fatalf("empty field %q leaked into %s", field, s)
		}
	}
	if s != `{"version":1,"decision":{"type":"allow"}}` {
		t.Fatalf("unexpected encoding: %s", s)
	}
}

func TestAuditEmpty(t *testing.T) {
	var a *Audit
	if !a.Empty() {
		t.Fatal("nil audit should be empty")
	}
	conf := 0.5
	if (&Audit{Confidence: &conf}).Empty() {
		t.Fatal("audit with confidence should not be empty")
	}
	if !(&Audit{}).Empty() {
		t.Fatal("zero audit should be empty")
	}
}

func TestUnknownFieldsIgnored(t *testing.T) {
	var ev RequestHeadersV2
	raw := `{"request_id":9,"has_body":true,"method":"GET","uri":"/x","headers":{},"metadata":{"correlation_id":"c"},"future_field":[1,2,3]}`
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.RequestID != 9 || !ev.HasBody || ev.Method != "GET" {
		t.Fatalf("decoded event mismatch: %+v", ev)
	}
}

func TestCapabilitiesAlwaysEmitFlags(t *testing.T) {
	out, err := json.Marshal(Capabilities{HandlesRequestHeaders: true})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(out)
	// False flags are meaningful in the handshake and must be present.
	for _, field := range []string{"handles_request_headers", "handles_request_body", "handles_response_headers", "handles_response_body", "supports_streaming", "supports_cancellation"} {
		if !strings.Contains(s, field) {
			t.Fatalf("flag %q missing from %s", field, s)
		}
	}
}
