package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

// Summary is the outcome of a trail verification: chain validity plus
// the per-decision and per-connection shape of what the trail records.
type Summary struct {
	Valid       bool           `json:"valid"`
	Lines       int            `json:"lines"`
	Decisions   map[string]int `json:"decisions,omitempty"`
	Connections int            `json:"connections,omitempty"`
	Error       string         `json:"error,omitempty"`
	ErrorLine   int            `json:"error_line,omitempty"`
}

func broken(line int, format string, args ...any) Summary {
	return Summary{Error: fmt.Sprintf(format, args...), ErrorLine: line}
}

// Verify walks a JSONL trail and checks three properties per line: the
// prev_hash link to the preceding line, the seq counter incrementing by
// one from 1, and the entry schema (decision vocabulary, required
// fields). On success the summary also reports how many decisions of
// each kind the trail holds and how many distinct connections produced
// them.
func Verify(path string) Summary {
	f, err := os.Open(path)
	if err != nil {
		return Summary{Error: fmt.Sprintf("open: %v", err)}
	}
	defer f.Close()

	decisions := make(map[string]int)
	conns := make(map[string]struct{})
	expectHash := GenesisHash
	var expectSeq int64 = 1

	lineNum := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()

		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			return broken(lineNum, "parse error: %v", err)
		}
		if entry.PrevHash != expectHash {
			return broken(lineNum, "hash chain broken: entry links %s", entry.PrevHash)
		}
		if entry.Seq != expectSeq {
			return broken(lineNum, "seq %d, want %d (trail truncated or spliced)", entry.Seq, expectSeq)
		}
		if err := entry.validate(); err != nil {
			return broken(lineNum, "invalid entry: %v", err)
		}

		decisions[entry.Decision]++
		conns[entry.ConnID] = struct{}{}
		expectHash = HashLine(line)
		expectSeq++
	}
	if err := scanner.Err(); err != nil {
		return Summary{Error: fmt.Sprintf("scan: %v", err), ErrorLine: lineNum}
	}

	return Summary{
		Valid:       true,
		Lines:       lineNum,
		Decisions:   decisions,
		Connections: len(conns),
	}
}
