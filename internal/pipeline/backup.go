package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"hindsight/internal/qdrant"
)

// BackupWriter appends embedded chunks as JSONL so vectors can be
// re-imported without re-embedding. One dated file per day; restores are a
// separate concern.
type BackupWriter struct {
	dir string
}

// NewBackupWriter returns nil when no backup directory is configured, so
// callers can test the pointer instead of a flag.
func NewBackupWriter(dir string) *BackupWriter {
	if dir == "" {
		return nil
	}
	return &BackupWriter{dir: dir}
}

type backupRecord struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"sessionId"`
	ChunkIndex int       `json:"chunkIndex"`
	Text       string    `json:"text"`
	Vector     []float32 `json:"vector"`
}

// Append writes one line per chunk to today's backup file.
func (w *BackupWriter) Append(items []qdrant.ChunkItem) error {
	if w == nil || len(items) == 0 {
		return nil
	}
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("creating backup dir: %w", err)
	}

	name := fmt.Sprintf("sessions-%s.jsonl", time.Now().UTC().Format("2006-01-02"))
	f, err := os.OpenFile(filepath.Join(w.dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening backup file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, item := range items {
		rec := backupRecord{
			ID:         item.Payload.LogicalID(),
			SessionID:  item.Payload.SessionID,
			ChunkIndex: item.Payload.ChunkIndex,
			Text:       item.Payload.ChunkText,
			Vector:     item.Vector,
		}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("appending backup record: %w", err)
		}
	}
	return nil
}
