// Package errors persists per-book failure records so a batch of
// binding jobs can be inspected and selectively retried later.
package errors

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"book-binder/internal/types"
)

// FailureRecord is one failed binding job.
type FailureRecord struct {
	// BookID identifies the book (bookizip name, EPUB path or server
	// book id).
	BookID     string           `json:"book_id"`
	Title      string           `json:"title"`
	Input      string           `json:"input"` // the original book reference
	Mode       types.OutputMode `json:"mode"`
	Stage      types.JobPhase   `json:"stage"`
	Diagnostic string           `json:"diagnostic"`
	Timestamp  time.Time        `json:"timestamp"`
	RetryCount int              `json:"retry_count"`
	LastRetry  time.Time        `json:"last_retry,omitempty"`
}

// Manager is a concurrency-safe failure registry persisted as JSON.
type Manager struct {
	baseDir  string
	mu       sync.RWMutex
	failures map[string]*FailureRecord // key: BookID
}

// NewManager creates a Manager under baseDir, defaulting to
// ~/.config/book-binder/failures.
func NewManager(baseDir string) (*Manager, error) {
	if baseDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(homeDir, ".config", "book-binder", "failures")
	}

	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create failures directory: %w", err)
	}

	m := &Manager{
		baseDir:  baseDir,
		failures: make(map[string]*FailureRecord),
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

// Record stores a failure, keeping the retry counters of an earlier
// record for the same book.
func (m *Manager) Record(bookID, title, input string, mode types.OutputMode, stage types.JobPhase, diagnostic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	record := &FailureRecord{
		BookID:     bookID,
		Title:      title,
		Input:      input,
		Mode:       mode,
		Stage:      stage,
		Diagnostic: diagnostic,
		Timestamp:  time.Now(),
	}
	if existing, ok := m.failures[bookID]; ok {
		record.RetryCount = existing.RetryCount
		record.LastRetry = existing.LastRetry
	}
	m.failures[bookID] = record

	return m.save()
}

// IncrementRetry bumps the retry counter for a book.
func (m *Manager) IncrementRetry(bookID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.failures[bookID]
	if !ok {
		return fmt.Errorf("failure record not found: %s", bookID)
	}
	record.RetryCount++
	record.LastRetry = time.Now()
	return m.save()
}

// Remove deletes a book's failure record, typically after a
// successful rebind.
func (m *Manager) Remove(bookID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.failures, bookID)
	return m.save()
}

// List returns copies of all failure records, newest first.
func (m *Manager) List() []*FailureRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]*FailureRecord, 0, len(m.failures))
	for _, record := range m.failures {
		recordCopy := *record
		records = append(records, &recordCopy)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
	return records
}

// Get returns a copy of one failure record.
func (m *Manager) Get(bookID string) (*FailureRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.failures[bookID]
	if !ok {
		return nil, false
	}
	recordCopy := *record
	return &recordCopy, true
}

// ClearAll removes every failure record.
func (m *Manager) ClearAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failures = make(map[string]*FailureRecord)
	return m.save()
}

// ExportBookIDs writes the failed book ids to a text file, one per
// line, for feeding back into a batch run.
func (m *Manager) ExportBookIDs(outputPath string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.failures))
	for id := range m.failures {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var sb strings.Builder
	for _, id := range ids {
		sb.WriteString(id)
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(outputPath, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write book IDs file: %w", err)
	}
	return nil
}

func (m *Manager) load() error {
	filePath := filepath.Join(m.baseDir, "failures.json")

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read failures file: %w", err)
	}

	var records []*FailureRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("failed to unmarshal failures: %w", err)
	}
	for _, record := range records {
		m.failures[record.BookID] = record
	}
	return nil
}

func (m *Manager) save() error {
	records := make([]*FailureRecord, 0, len(m.failures))
	for _, record := range m.failures {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].BookID < records[j].BookID
	})

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal failures: %w", err)
	}
	filePath := filepath.Join(m.baseDir, "failures.json")
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write failures file: %w", err)
	}
	return nil
}
