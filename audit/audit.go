// Package audit provides an optional append-only decision trail. Every
// decision the runtime emits can be recorded as one JSONL line carrying
// a sequence number and a SHA-256 link to the previous line, making both
// tampering and truncation in the middle detectable with Verify. The
// runtime never reads the trail back; it is write-only evidence.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// GenesisHash is the prev_hash of the first entry in a new trail.
const GenesisHash = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

// Entry is one line in the hash-chained JSONL trail. All fields are
// scalars so json.Marshal field order is deterministic and hashing is
// reproducible. Seq starts at 1 and increments per line, surviving
// process restarts.
type Entry struct {
	Timestamp string `json:"ts"`
	Seq       int64  `json:"seq"`
	TraceID   string `json:"trace_id"`
	ConnID    string `json:"conn_id"`
	Event     string `json:"event"`
	Key       string `json:"request_key"`
	Decision  string `json:"decision"`
	Status    int    `json:"status,omitempty"`
	PrevHash  string `json:"prev_hash"`
}

// validate checks the fields the runtime always fills in. The decision
// vocabulary is closed: anything outside it means the line was not
// produced by the decision path.
func (e *Entry) validate() error {
	switch e.Decision {
	case "allow", "block", "redirect", "challenge":
	default:
		return fmt.Errorf("decision %q outside the wire vocabulary", e.Decision)
	}
	if e.ConnID == "" {
		return fmt.Errorf("missing conn_id")
	}
	if e.Event == "" {
		return fmt.Errorf("missing event")
	}
	return nil
}

// HashLine hashes one serialized JSONL line for chain linking.
func HashLine(line []byte) string {
	sum := sha256.Sum256(line)
	return "sha256:" + hex.EncodeToString(sum[:])
}
