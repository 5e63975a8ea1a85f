package config

// IngestConfig configures transcript ingestion and chunking.
type IngestConfig struct {
	// SessionsDir overrides where transcripts are read from. When empty
	// the workspace default <root>/.hindsight/logs/sessions is used.
	SessionsDir string `json:"sessions_dir,omitempty"`

	// Chunking parameters, in characters.
	ChunkSize    int `json:"chunk_size,omitempty"`      // Default: 1500
	ChunkOverlap int `json:"chunk_overlap,omitempty"`   // Default: 200
	MinChunkSize int `json:"min_chunk_size,omitempty"`  // Default: 100, shorter chunks are dropped
	MinMessage   int `json:"min_message_len,omitempty"` // Default: 10, shorter messages are dropped

	// UpsertBatchSize bounds how many points go to the vector store per
	// request.
	UpsertBatchSize int `json:"upsert_batch_size,omitempty"` // Default: 128

	// BackupPath, when set, appends every embedded chunk to a dated JSONL
	// file under this directory so vectors can be re-imported without
	// re-embedding.
	BackupPath string `json:"backup_path,omitempty"`
}

// GetIngestConfig returns ingestion settings with defaults applied.
func (c *UserConfig) GetIngestConfig() IngestConfig {
	var cfg IngestConfig
	if c.Ingest != nil {
		cfg = *c.Ingest
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = 1500
	}
	if cfg.ChunkOverlap == 0 {
		cfg.ChunkOverlap = 200
	}
	if cfg.MinChunkSize == 0 {
		cfg.MinChunkSize = 100
	}
	if cfg.MinMessage == 0 {
		cfg.MinMessage = 10
	}
	if cfg.UpsertBatchSize == 0 {
		cfg.UpsertBatchSize = 128
	}
	return cfg
}
