// Package history persists the conversation as an append-only JSONL log.
package history

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Roles recorded in the log. The assistant writes as "you" so prompt
// rendering can address the model in second person.
const (
	RoleHuman     = "human"
	RoleAssistant = "you"
)

// tsLayout is ISO-8601 UTC with second precision and a literal Z.
const tsLayout = "2006-01-02T15:04:05Z"

// Record is one conversation entry: exactly {ts, role, content}.
type Record struct {
	TS      string `json:"ts"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Log is an append-only JSONL chat history with bounded trimming.
// Safe for concurrent use within one process; cross-process writers rely on
// the atomic rename in trim.
type Log struct {
	path     string
	maxTurns int

	mu  sync.Mutex
	now func() time.Time
}

// NewLog creates a Log at path, trimmed to maxTurns records on append.
// maxTurns <= 0 disables trimming.
func NewLog(path string, maxTurns int) *Log {
	return &Log{path: path, maxTurns: maxTurns, now: time.Now}
}

// Append writes one record and trims the log to the configured bound.
func (l *Log) Append(role, content string) error {
	if role != RoleHuman && role != RoleAssistant {
		return fmt.Errorf("invalid history role %q", role)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rec := Record{
		TS:      l.now().UTC().Format(tsLayout),
		Role:    role,
		Content: content,
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode history record: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open history log: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()
		return fmt.Errorf("append history record: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close history log: %w", err)
	}

	if l.maxTurns > 0 {
		return l.trimLocked(l.maxTurns)
	}
	return nil
}

// Tail returns the last limit well-formed records in file order.
// Malformed lines are skipped. A missing file yields an empty slice.
func (l *Log) Tail(limit int) ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tailLocked(limit)
}

func (l *Log) tailLocked(limit int) ([]Record, error) {
	if limit <= 0 {
		return []Record{}, nil
	}

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("open history log: %w", err)
	}
	defer func() { _ = f.Close() }()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		if rec.Role != RoleHuman && rec.Role != RoleAssistant {
			continue
		}
		records = append(records, rec)
		if len(records) > limit {
			records = records[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read history log: %w", err)
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// Trim rewrites the log to its most recent max records via a sibling temp
// file and atomic rename.
func (l *Log) Trim(max int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.trimLocked(max)
}

func (l *Log) trimLocked(max int) error {
	records, err := l.tailLocked(max)
	if err != nil {
		return err
	}

	var sb strings.Builder
	for _, rec := range records {
		line, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode history record: %w", err)
		}
		sb.Write(line)
		sb.WriteByte('\n')
	}

	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("write history temp file: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("replace history log: %w", err)
	}
	return nil
}

// FormatForPrompt renders records as "role: content" lines for inclusion in
// a prompt context block.
func FormatForPrompt(records []Record) string {
	var sb strings.Builder
	for _, rec := range records {
		sb.WriteString(rec.Role)
		sb.WriteString(": ")
		sb.WriteString(rec.Content)
		sb.WriteByte('\n')
	}
	return sb.String()
}
