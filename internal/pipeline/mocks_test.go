package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"hindsight/internal/qdrant"
)

// ============================================================================
// TEST DOUBLES
// ============================================================================

type mockEmbedder struct {
	embedFn func(text string) ([]float32, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return m.embedFn(text)
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := m.embedFn(text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int { return 4 }
func (m *mockEmbedder) Name() string    { return "mock" }

func unitEmbedder() *mockEmbedder {
	return &mockEmbedder{embedFn: func(string) ([]float32, error) {
		return []float32{1, 0, 0, 0}, nil
	}}
}

// vectorByText gives each known text its own vector; unknown texts share a
// fallback axis.
func vectorByText(byText map[string][]float32) *mockEmbedder {
	return &mockEmbedder{embedFn: func(text string) ([]float32, error) {
		if v, ok := byText[text]; ok {
			return v, nil
		}
		return []float32{0, 0, 0, 1}, nil
	}}
}

// mockLLM is safe for the concurrent callers in the scorer and reinforcer.
type mockLLM struct {
	mu         sync.Mutex
	calls      int
	prompts    []string
	completeFn func(system, user string) (string, error)
}

func (m *mockLLM) Complete(ctx context.Context, prompt string) (string, error) {
	return m.CompleteWithSystem(ctx, "", prompt)
}

func (m *mockLLM) CompleteWithSystem(ctx context.Context, system, user string) (string, error) {
	m.mu.Lock()
	m.calls++
	m.prompts = append(m.prompts, user)
	fn := m.completeFn
	m.mu.Unlock()
	return fn(system, user)
}

func (m *mockLLM) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// ============================================================================
// FAKE QDRANT
// ============================================================================

type fakePoint struct {
	ID      uint64
	Payload map[string]any
}

type payloadCapture struct {
	Collection string
	Payload    map[string]any
	Points     []uint64
}

type upsertCapture struct {
	Collection string
	ID         uint64
	Payload    map[string]any
	Vector     []float32
}

type searchCapture struct {
	Collection string
	Limit      int
	Filter     *wireFilter
	Threshold  float64
}

// fakeQdrant serves the session-chunk surface the stages use. Scrolls
// evaluate the request filter against the seeded points; searches return the
// configured hits verbatim.
type fakeQdrant struct {
	mu         sync.Mutex
	points     []fakePoint
	searchHits []map[string]any

	searchReqs  []searchCapture
	payloadOps  []payloadCapture
	upserts     []upsertCapture
	failSearch  bool
	failPayload bool
	failScroll  bool
}

func (fq *fakeQdrant) addChunk(sid string, idx int, text string, quality int) *fakeQdrant {
	payload := map[string]any{
		qdrant.KeySessionID:  sid,
		qdrant.KeyChunkIndex: idx,
		qdrant.KeyChunkText:  text,
		qdrant.KeyDate:       time.Now().UTC().Format(time.RFC3339),
	}
	if quality >= 0 {
		payload[qdrant.KeyQualityScore] = quality
	}
	fq.mu.Lock()
	defer fq.mu.Unlock()
	fq.points = append(fq.points, fakePoint{ID: qdrant.ChunkPointID(sid, idx), Payload: payload})
	return fq
}

func (fq *fakeQdrant) setPayloadField(sid string, idx int, key string, value any) {
	id := qdrant.ChunkPointID(sid, idx)
	fq.mu.Lock()
	defer fq.mu.Unlock()
	for _, p := range fq.points {
		if p.ID == id {
			p.Payload[key] = value
		}
	}
}

func (fq *fakeQdrant) payloadWrites() []payloadCapture {
	fq.mu.Lock()
	defer fq.mu.Unlock()
	return append([]payloadCapture(nil), fq.payloadOps...)
}

func (fq *fakeQdrant) upsertedTo(collection string) []upsertCapture {
	fq.mu.Lock()
	defer fq.mu.Unlock()
	var out []upsertCapture
	for _, u := range fq.upserts {
		if u.Collection == collection {
			out = append(out, u)
		}
	}
	return out
}

// scoreWrites flattens payload ops into id -> written quality score.
func (fq *fakeQdrant) scoreWrites() map[uint64]int {
	out := make(map[uint64]int)
	for _, op := range fq.payloadWrites() {
		score, ok := op.Payload[qdrant.KeyQualityScore]
		if !ok {
			continue
		}
		for _, id := range op.Points {
			out[id] = int(score.(float64))
		}
	}
	return out
}

func (fq *fakeQdrant) pendingMarks() []uint64 {
	var out []uint64
	for _, op := range fq.payloadWrites() {
		if v, ok := op.Payload[qdrant.KeyPendingScore]; ok && v == true && len(op.Payload) == 1 {
			out = append(out, op.Points...)
		}
	}
	return out
}

// ----------------------------------------------------------------------------
// wire filter evaluation

type wireFilter struct {
	Must    []wireCond `json:"must"`
	MustNot []wireCond `json:"must_not"`
}

type wireCond struct {
	Key   string `json:"key"`
	Match *struct {
		Value any `json:"value"`
	} `json:"match"`
	Range *struct {
		GTE *float64 `json:"gte"`
		LTE *float64 `json:"lte"`
	} `json:"range"`
}

func (f *wireFilter) matches(payload map[string]any) bool {
	if f == nil {
		return true
	}
	for _, c := range f.Must {
		if !c.matches(payload) {
			return false
		}
	}
	for _, c := range f.MustNot {
		if c.matches(payload) {
			return false
		}
	}
	return true
}

func (c wireCond) matches(payload map[string]any) bool {
	v, ok := payload[c.Key]
	if !ok {
		return false
	}
	if c.Match != nil {
		return v == c.Match.Value
	}
	if c.Range != nil {
		f, ok := toFloat(v)
		if !ok {
			return false
		}
		if c.Range.GTE != nil && f < *c.Range.GTE {
			return false
		}
		if c.Range.LTE != nil && f > *c.Range.LTE {
			return false
		}
		return true
	}
	return true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

// ----------------------------------------------------------------------------
// HTTP plumbing

func newChunkStore(t *testing.T, fq *fakeQdrant) *qdrant.Store {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		collection := ""
		if len(parts) >= 2 {
			collection = parts[1]
		}

		fq.mu.Lock()
		defer fq.mu.Unlock()

		switch {
		case strings.HasSuffix(r.URL.Path, "/points/scroll"):
			if fq.failScroll {
				http.Error(w, "scroll unavailable", http.StatusInternalServerError)
				return
			}
			var body struct {
				Filter *wireFilter `json:"filter"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			matched := []map[string]any{}
			if collection == qdrant.CollectionSessions {
				for _, p := range fq.points {
					if body.Filter.matches(p.Payload) {
						matched = append(matched, map[string]any{"id": p.ID, "payload": p.Payload})
					}
				}
			}
			writeFakeResult(w, map[string]any{"points": matched, "next_page_offset": nil})

		case strings.HasSuffix(r.URL.Path, "/points/search"):
			if fq.failSearch {
				http.Error(w, "search unavailable", http.StatusInternalServerError)
				return
			}
			var body struct {
				Limit          int         `json:"limit"`
				Filter         *wireFilter `json:"filter"`
				ScoreThreshold float64     `json:"score_threshold"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			fq.searchReqs = append(fq.searchReqs, searchCapture{
				Collection: collection, Limit: body.Limit,
				Filter: body.Filter, Threshold: body.ScoreThreshold,
			})
			writeFakeResult(w, fq.searchHits)

		case strings.HasSuffix(r.URL.Path, "/points/payload"):
			if fq.failPayload {
				http.Error(w, "payload unavailable", http.StatusInternalServerError)
				return
			}
			var body struct {
				Payload map[string]any `json:"payload"`
				Points  []uint64       `json:"points"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			fq.payloadOps = append(fq.payloadOps, payloadCapture{
				Collection: collection, Payload: body.Payload, Points: body.Points,
			})
			writeFakeResult(w, true)

		case strings.HasSuffix(r.URL.Path, "/points/count"):
			writeFakeResult(w, map[string]any{"count": len(fq.points)})

		case strings.HasSuffix(r.URL.Path, "/points"):
			var body struct {
				Points []struct {
					ID      uint64         `json:"id"`
					Vector  []float32      `json:"vector"`
					Payload map[string]any `json:"payload"`
				} `json:"points"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			for _, p := range body.Points {
				fq.upserts = append(fq.upserts, upsertCapture{
					Collection: collection, ID: p.ID, Payload: p.Payload, Vector: p.Vector,
				})
			}
			writeFakeResult(w, true)

		default:
			writeFakeResult(w, true)
		}
	}))
	t.Cleanup(srv.Close)
	return qdrant.NewStore(qdrant.NewClient(qdrant.Config{URL: srv.URL}), 4, 16)
}

func writeFakeResult(w http.ResponseWriter, result any) {
	_ = json.NewEncoder(w).Encode(map[string]any{"result": result, "status": "ok", "time": 0.001})
}

// searchHit builds one scored search result carrying a chunk payload.
func searchHit(score float64, sid string, idx int, text string, quality int, date string) map[string]any {
	payload := map[string]any{
		qdrant.KeySessionID:  sid,
		qdrant.KeyChunkIndex: idx,
		qdrant.KeyChunkText:  text,
		qdrant.KeyDate:       date,
	}
	if quality >= 0 {
		payload[qdrant.KeyQualityScore] = quality
	}
	return map[string]any{
		"id":      qdrant.ChunkPointID(sid, idx),
		"score":   score,
		"payload": payload,
	}
}
