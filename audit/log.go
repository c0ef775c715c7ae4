package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// tailWindow bounds how far back Open looks for the last complete line
// when recovering the chain tail. One trail line is a few hundred bytes,
// so this is generous.
const tailWindow = 64 << 10

// Log is the append-only JSONL decision trail. Records are buffered and
// flushed per entry; each entry's prev_hash is the hash of the previous
// line and its seq continues the recovered sequence.
type Log struct {
	mu       sync.Mutex
	path     string
	file     *os.File
	bw       *bufio.Writer
	prevHash string
	nextSeq  int64
}

// Open opens (or creates) a trail file for appending. An existing trail
// is not re-read in full: only the tail window is inspected to recover
// the previous line's hash and the sequence counter.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("audit: create directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("audit: open file: %w", err)
	}

	prevHash, nextSeq, err := recoverTail(file)
	if err != nil {
		file.Close()
		return nil, err
	}

	return &Log{
		path:     path,
		file:     file,
		bw:       bufio.NewWriter(file),
		prevHash: prevHash,
		nextSeq:  nextSeq,
	}, nil
}

// recoverTail reads at most tailWindow bytes from the end of the file
// and parses the last complete line, yielding the hash the next entry
// must reference and the next sequence number.
func recoverTail(file *os.File) (string, int64, error) {
	info, err := file.Stat()
	if err != nil {
		return "", 0, fmt.Errorf("audit: stat trail: %w", err)
	}
	if info.Size() == 0 {
		return GenesisHash, 1, nil
	}

	offset := info.Size() - tailWindow
	if offset < 0 {
		offset = 0
	}
	buf := make([]byte, info.Size()-offset)
	if _, err := file.ReadAt(buf, offset); err != nil && err != io.EOF {
		return "", 0, fmt.Errorf("audit: read trail tail: %w", err)
	}

	// Drop a trailing partial line (crash mid-write), then take the
	// last complete one.
	if n := bytes.LastIndexByte(buf, '\n'); n < 0 {
		return GenesisHash, 1, nil
	} else if n < len(buf)-1 {
		buf = buf[:n]
	}
	buf = bytes.TrimRight(buf, "\n")
	if i := bytes.LastIndexByte(buf, '\n'); i >= 0 {
		buf = buf[i+1:]
	}
	if len(buf) == 0 {
		return GenesisHash, 1, nil
	}

	var last Entry
	if err := json.Unmarshal(buf, &last); err != nil {
		return "", 0, fmt.Errorf("audit: trail tail is not a valid entry: %w", err)
	}
	return HashLine(buf), last.Seq + 1, nil
}

// Record appends one entry, filling in Seq, PrevHash, and (when empty)
// Timestamp. The buffered line is flushed before Record returns so the
// chain on disk never lags the in-memory tail.
func (l *Log) Record(entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	}
	entry.Seq = l.nextSeq
	entry.PrevHash = l.prevHash

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("audit: marshal entry: %w", err)
	}
	l.bw.Write(line)
	l.bw.WriteByte('\n')
	if err := l.bw.Flush(); err != nil {
		return fmt.Errorf("audit: write entry: %w", err)
	}

	l.prevHash = HashLine(line)
	l.nextSeq++
	return nil
}

// Path returns the trail file path.
func (l *Log) Path() string { return l.path }

// Close flushes and closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.bw.Flush(); err != nil {
		l.file.Close()
		return err
	}
	return l.file.Close()
}
