package qdrant

import (
	"context"
	"sort"

	"hindsight/internal/logging"
)

// =============================================================================
// DOMAIN STORE
// =============================================================================

// Store is the pipeline-facing facade over the raw client. It owns the three
// collections, point ID derivation and payload typing, and slices large
// writes into batches.
type Store struct {
	client *Client
	dims   int
	batch  int
}

// NewStore wraps a client. dims is the shared vector width, batch the upsert
// batch size.
func NewStore(client *Client, dims, batch int) *Store {
	if dims <= 0 {
		dims = 384
	}
	if batch <= 0 {
		batch = 128
	}
	return &Store{client: client, dims: dims, batch: batch}
}

// Client exposes the underlying client for health checks.
func (s *Store) Client() *Client { return s.client }

// EnsureSchema creates the three collections when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, name := range []string{CollectionSessions, CollectionReflections, CollectionRules} {
		if err := s.client.EnsureCollection(ctx, name, s.dims); err != nil {
			return err
		}
	}
	return nil
}

// RebuildSessions drops and recreates the sessions collection. Scores and
// chunks are lost; the caller re-ingests afterwards.
func (s *Store) RebuildSessions(ctx context.Context) error {
	if err := s.client.DropCollection(ctx, CollectionSessions); err != nil {
		return err
	}
	return s.client.EnsureCollection(ctx, CollectionSessions, s.dims)
}

// Counts returns per-collection point counts for stats output.
func (s *Store) Counts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int, 3)
	for _, name := range []string{CollectionSessions, CollectionReflections, CollectionRules} {
		n, err := s.client.Count(ctx, name, nil)
		if err != nil {
			return nil, err
		}
		counts[name] = n
	}
	return counts, nil
}

// =============================================================================
// SESSION CHUNKS
// =============================================================================

// ChunkItem couples a chunk payload with its vector for an upsert.
type ChunkItem struct {
	Vector  []float32
	Payload ChunkPayload
}

// StoredChunk is a chunk read back from the store.
type StoredChunk struct {
	ID    uint64
	Chunk ChunkPayload
}

// ScoredChunk is a chunk search hit.
type ScoredChunk struct {
	Score float64
	Chunk ChunkPayload
}

// UpsertChunks writes session chunks in batches. Point IDs derive from
// session ID and chunk index, so re-ingesting a session overwrites in place.
func (s *Store) UpsertChunks(ctx context.Context, items []ChunkItem) error {
	points := make([]Point, len(items))
	for i, item := range items {
		points[i] = Point{
			ID:      ChunkPointID(item.Payload.SessionID, item.Payload.ChunkIndex),
			Vector:  item.Vector,
			Payload: item.Payload.ToMap(),
		}
	}

	for start := 0; start < len(points); start += s.batch {
		end := start + s.batch
		if end > len(points) {
			end = len(points)
		}
		if err := s.client.Upsert(ctx, CollectionSessions, points[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// SearchChunks runs a similarity search over session chunks.
func (s *Store) SearchChunks(ctx context.Context, vector []float32, opts SearchOptions) ([]ScoredChunk, error) {
	hits, err := s.client.Search(ctx, CollectionSessions, vector, opts)
	if err != nil {
		return nil, err
	}
	out := make([]ScoredChunk, len(hits))
	for i, h := range hits {
		out[i] = ScoredChunk{Score: h.Score, Chunk: ChunkPayloadFrom(h.Payload)}
	}
	return out, nil
}

// AllChunks returns stored chunks matching the filter (nil for all).
func (s *Store) AllChunks(ctx context.Context, filter *Filter) ([]StoredChunk, error) {
	points, err := s.client.ScrollAll(ctx, CollectionSessions, filter, false)
	if err != nil {
		return nil, err
	}
	out := make([]StoredChunk, len(points))
	for i, p := range points {
		out[i] = StoredChunk{ID: p.ID, Chunk: ChunkPayloadFrom(p.Payload)}
	}
	return out, nil
}

// ChunksOf returns every stored chunk of a session ordered by chunk index.
func (s *Store) ChunksOf(ctx context.Context, sessionID string) ([]StoredChunk, error) {
	out, err := s.AllChunks(ctx, MustMatch(KeySessionID, sessionID))
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Chunk.ChunkIndex < out[j].Chunk.ChunkIndex })
	return out, nil
}

// SetQualities writes quality scores onto chunk points and clears their
// pending flag. Scores are grouped by value because one set-payload call
// applies a single payload to all its points.
func (s *Store) SetQualities(ctx context.Context, scores map[uint64]int) error {
	byScore := make(map[int][]uint64)
	for id, score := range scores {
		byScore[score] = append(byScore[score], id)
	}
	for score, ids := range byScore {
		payload := map[string]any{KeyQualityScore: score, KeyPendingScore: false}
		if err := s.client.SetPayload(ctx, CollectionSessions, payload, ids...); err != nil {
			return err
		}
	}
	logging.StoreDebug("Wrote %d quality scores in %d groups", len(scores), len(byScore))
	return nil
}

// SetQuality writes one chunk's quality score and clears its pending flag.
func (s *Store) SetQuality(ctx context.Context, id uint64, score int) error {
	payload := map[string]any{KeyQualityScore: score, KeyPendingScore: false}
	return s.client.SetPayload(ctx, CollectionSessions, payload, id)
}

// MarkPending flags chunks for deferred scoring, leaving any existing
// quality score untouched.
func (s *Store) MarkPending(ctx context.Context, ids ...uint64) error {
	payload := map[string]any{KeyPendingScore: true}
	return s.client.SetPayload(ctx, CollectionSessions, payload, ids...)
}

// SessionIDs returns the distinct session IDs present in the sessions
// collection, fetching only that payload field.
func (s *Store) SessionIDs(ctx context.Context) ([]string, error) {
	points, err := s.client.ScrollAll(ctx, CollectionSessions, nil, false, KeySessionID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var ids []string
	for _, p := range points {
		id := payloadString(p.Payload, KeySessionID)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// =============================================================================
// REFLECTIONS
// =============================================================================

// ScoredReflection is a reflection search hit.
type ScoredReflection struct {
	Score      float64
	Reflection ReflectionPayload
}

// UpsertReflection writes one reflection point. The logical ID combines
// session and signal so one session can carry several reflections.
func (s *Store) UpsertReflection(ctx context.Context, logicalID string, vector []float32, payload ReflectionPayload) error {
	point := Point{
		ID:      PointID(logicalID),
		Vector:  vector,
		Payload: payload.ToMap(),
	}
	return s.client.Upsert(ctx, CollectionReflections, []Point{point})
}

// SearchReflections runs a similarity search over reflections.
func (s *Store) SearchReflections(ctx context.Context, vector []float32, opts SearchOptions) ([]ScoredReflection, error) {
	hits, err := s.client.Search(ctx, CollectionReflections, vector, opts)
	if err != nil {
		return nil, err
	}
	out := make([]ScoredReflection, len(hits))
	for i, h := range hits {
		out[i] = ScoredReflection{Score: h.Score, Reflection: ReflectionPayloadFrom(h.Payload)}
	}
	return out, nil
}

// =============================================================================
// RULES MIRROR
// =============================================================================

// StoredRule is a rule point read back with its vector, as the dedupe check
// needs both.
type StoredRule struct {
	ID     uint64
	Vector []float32
	Rule   RulePayload
}

// UpsertRule mirrors one active rule into the rules collection.
func (s *Store) UpsertRule(ctx context.Context, vector []float32, payload RulePayload) error {
	point := Point{
		ID:      PointID(payload.RuleID),
		Vector:  vector,
		Payload: payload.ToMap(),
	}
	return s.client.Upsert(ctx, CollectionRules, []Point{point})
}

// ActiveRules returns every mirrored rule with vectors.
func (s *Store) ActiveRules(ctx context.Context) ([]StoredRule, error) {
	points, err := s.client.ScrollAll(ctx, CollectionRules, nil, true)
	if err != nil {
		return nil, err
	}
	out := make([]StoredRule, len(points))
	for i, p := range points {
		out[i] = StoredRule{ID: p.ID, Vector: p.Vector, Rule: RulePayloadFrom(p.Payload)}
	}
	return out, nil
}

// DeleteRules purges rules from the mirror. The registry row stays; only
// the vector point goes away.
func (s *Store) DeleteRules(ctx context.Context, ruleIDs ...string) error {
	ids := make([]uint64, len(ruleIDs))
	for i, rid := range ruleIDs {
		ids[i] = PointID(rid)
	}
	return s.client.DeletePoints(ctx, CollectionRules, ids...)
}

// ScoredRule is a mirrored-rule search hit.
type ScoredRule struct {
	Score float64
	Rule  RulePayload
}

// SearchRules runs a similarity search over mirrored rules.
func (s *Store) SearchRules(ctx context.Context, vector []float32, opts SearchOptions) ([]ScoredRule, error) {
	hits, err := s.client.Search(ctx, CollectionRules, vector, opts)
	if err != nil {
		return nil, err
	}
	out := make([]ScoredRule, len(hits))
	for i, h := range hits {
		out[i] = ScoredRule{Score: h.Score, Rule: RulePayloadFrom(h.Payload)}
	}
	return out, nil
}
