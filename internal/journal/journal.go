// Package journal records a navigation run as newline-delimited JSON, one
// entry per status, with sequence numbers assigned on append. A journal
// file can be reopened and appended to across runs.
package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrClosed is returned by Append after Close.
var ErrClosed = errors.New("journal closed")

// maxLineBytes bounds a single entry when reading.
const maxLineBytes = 1 << 20

// Entry is one journal line.
type Entry struct {
	Seq   uint64    `json:"seq"`
	RunID string    `json:"run_id,omitempty"`
	Kind  string    `json:"kind"`
	Index int       `json:"index"`
	Text  string    `json:"text"`
	Time  time.Time `json:"time"`
}

// Journal appends entries to a file.
type Journal struct {
	path string

	mu      sync.Mutex
	file    *os.File
	nextSeq uint64
	closed  bool
}

// Open opens or creates the journal at path. Existing entries are scanned so
// numbering continues after the highest sequence already written.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	existing, err := Read(path, 0)
	if err != nil {
		return nil, err
	}
	var maxSeq uint64
	for _, e := range existing {
		if e.Seq > maxSeq {
			maxSeq = e.Seq
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return &Journal{path: path, file: f, nextSeq: maxSeq + 1}, nil
}

// Append assigns the next sequence number to e and writes it.
func (j *Journal) Append(e *Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return ErrClosed
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	e.Seq = j.nextSeq

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}
	if _, err := j.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append entry: %w", err)
	}
	j.nextSeq++
	return nil
}

// LastSeq returns the sequence number of the last entry written, or 0.
func (j *Journal) LastSeq() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.nextSeq - 1
}

// Path returns the journal file path.
func (j *Journal) Path() string {
	return j.path
}

// Close flushes and closes the file. It is safe to call more than once.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true
	if err := j.file.Sync(); err != nil {
		j.file.Close()
		return err
	}
	return j.file.Close()
}

// Read returns the entries in path with Seq >= fromSeq, in file order. A
// missing file reads as empty. Malformed lines are skipped.
func Read(path string, fromSeq uint64) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	defer f.Close()

	entries := []Entry{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		if e.Seq >= fromSeq {
			entries = append(entries, e)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	return entries, nil
}
