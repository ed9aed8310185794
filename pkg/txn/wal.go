package txn

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gqlite/gqlite/pkg/metrics"
)

const walFileName = "gqlite.wal"

// WALRecord is one append-only log entry. Statement records carry the
// operation metadata; undo records additionally carry the reverse mutation
// so recovery can roll unfinished transactions back.
type WALRecord struct {
	TxnID       ID            `json:"txn_id"`
	Seq         uint64        `json:"seq"`
	OpType      OperationType `json:"op_type"`
	Description string        `json:"description"`
	Timestamp   time.Time     `json:"timestamp"`
	Undo        *UndoOp       `json:"undo,omitempty"`
}

// WAL is the write-ahead log: JSON lines appended to a single file, fsynced
// before the in-memory mutation they describe is applied.
type WAL struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// OpenWAL opens or creates the WAL file inside the database directory.
func OpenWAL(dataDir string) (*WAL, error) {
	path := filepath.Join(dataDir, walFileName)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAL: %w", err)
	}
	return &WAL{file: file, path: path}, nil
}

// Append writes one record and fsyncs. Records appear in the file in fsync
// order.
func (w *WAL) Append(rec WALRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode WAL record: %w", err)
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.file.Write(data); err != nil {
		return fmt.Errorf("failed to append WAL record: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("failed to fsync WAL: %w", err)
	}
	metrics.WALAppendsTotal.Inc()
	return nil
}

// Close closes the WAL file.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

// ReadWAL scans every record in append order. A torn trailing line (crash
// mid-append) is skipped rather than treated as corruption.
func ReadWAL(dataDir string) ([]WALRecord, error) {
	path := filepath.Join(dataDir, walFileName)
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open WAL for recovery: %w", err)
	}
	defer file.Close()

	var records []WALRecord
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec WALRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			// Partial trailing record from an interrupted append.
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan WAL: %w", err)
	}
	return records, nil
}
