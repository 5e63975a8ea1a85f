package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hindsight/internal/config"
	"hindsight/internal/embedding"
	"hindsight/internal/logging"
	"hindsight/internal/qdrant"
	"hindsight/internal/session"
)

// Ingestor reads session transcripts from a directory and upserts their
// embedded chunks into the sessions collection. Idempotent at session
// granularity: the skip set comes from one bulk scroll, not per-file reads.
type Ingestor struct {
	store    *qdrant.Store
	embedder embedding.EmbeddingEngine
	chunker  *session.Chunker
	backup   *BackupWriter
	minMsg   int
}

// IngestSummary is one ingestion pass's outcome.
type IngestSummary struct {
	Processed int
	Skipped   int
	Errors    int
	Chunks    int
}

// NewIngestor wires an ingestor from configuration.
func NewIngestor(store *qdrant.Store, embedder embedding.EmbeddingEngine, cfg config.IngestConfig) *Ingestor {
	return &Ingestor{
		store:    store,
		embedder: embedder,
		chunker:  session.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap, cfg.MinChunkSize),
		backup:   NewBackupWriter(cfg.BackupPath),
		minMsg:   cfg.MinMessage,
	}
}

// Run ingests every not-yet-seen transcript under dir. Per-file failures
// are logged and counted; they never abort the pass.
func (in *Ingestor) Run(ctx context.Context, dir string) (IngestSummary, error) {
	var sum IngestSummary

	timer := logging.StartTimer(logging.CategoryIngest, "ingestion pass")
	defer timer.StopWithInfo()

	ingested, err := in.ingestedSet(ctx)
	if err != nil {
		return sum, err
	}

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		logging.Ingest("Sessions directory %s does not exist, nothing to ingest", dir)
		return sum, nil
	}
	if err != nil {
		return sum, fmt.Errorf("reading sessions dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}

		path := filepath.Join(dir, entry.Name())
		sessionID := session.IDFromPath(path)
		if ingested[sessionID] {
			sum.Skipped++
			continue
		}

		n, err := in.ingestFile(ctx, path, sessionID)
		if err != nil {
			logging.Ingest("Skipping %s: %v", entry.Name(), err)
			sum.Errors++
			continue
		}
		if n == 0 {
			logging.IngestDebug("Session %s produced no usable chunks", sessionID)
			sum.Skipped++
			continue
		}
		sum.Processed++
		sum.Chunks += n
	}

	logging.Ingest("Ingested %d sessions (%d chunks), skipped %d, %d errors",
		sum.Processed, sum.Chunks, sum.Skipped, sum.Errors)
	return sum, nil
}

// Rebuild drops and recreates the sessions collection before a full
// re-ingest.
func (in *Ingestor) Rebuild(ctx context.Context) error {
	logging.Ingest("Rebuilding sessions collection")
	return in.store.RebuildSessions(ctx)
}

func (in *Ingestor) ingestedSet(ctx context.Context) (map[string]bool, error) {
	ids, err := in.store.SessionIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing ingested sessions: %w", err)
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

// ingestFile parses, chunks, embeds and upserts one transcript. Returns
// the number of chunks written.
func (in *Ingestor) ingestFile(ctx context.Context, path, sessionID string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	messages, err := session.ParseTranscript(data, in.minMsg)
	if err != nil {
		return 0, err
	}
	if len(messages) == 0 {
		return 0, nil
	}

	chunks := in.chunker.Split(session.Clean(session.Flatten(messages)))
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := in.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding: %w", err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	date := fileDate(path)
	items := make([]qdrant.ChunkItem, len(chunks))
	for i, c := range chunks {
		items[i] = qdrant.ChunkItem{
			Vector: vectors[i],
			Payload: qdrant.ChunkPayload{
				SessionID:  sessionID,
				ChunkIndex: c.Index,
				ChunkText:  session.SanitizeUTF8(c.Text),
				Date:       date,
			},
		}
	}

	if err := in.store.UpsertChunks(ctx, items); err != nil {
		return 0, err
	}
	if err := in.backup.Append(items); err != nil {
		logging.Ingest("Backup append failed for %s: %v", sessionID, err)
	}

	logging.IngestDebug("Session %s: %d messages -> %d chunks", sessionID, len(messages), len(items))
	return len(items), nil
}

// fileDate is the transcript's timestamp: the file modification time, the
// closest thing to when the session happened.
func fileDate(path string) string {
	if info, err := os.Stat(path); err == nil {
		return info.ModTime().UTC().Format(time.RFC3339)
	}
	return time.Now().UTC().Format(time.RFC3339)
}
