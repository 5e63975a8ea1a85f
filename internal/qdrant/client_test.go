package qdrant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{URL: srv.URL})
}

func writeResult(w http.ResponseWriter, result any) {
	resp := map[string]any{"result": result, "status": "ok", "time": 0.001}
	_ = json.NewEncoder(w).Encode(resp)
}

func TestEnsureCollection_CreatesWhenMissing(t *testing.T) {
	var created bool
	var createBody createCollectionRequest

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == "GET" && r.URL.Path == "/collections/sessions":
			if created {
				writeResult(w, map[string]any{"status": "green"})
				return
			}
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"status":{"error":"Not found: Collection sessions doesn't exist!"},"time":0}`)
		case r.Method == "PUT" && r.URL.Path == "/collections/sessions":
			if err := json.NewDecoder(r.Body).Decode(&createBody); err != nil {
				t.Errorf("decode create body: %v", err)
			}
			created = true
			writeResult(w, true)
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusInternalServerError)
		}
	})

	ctx := context.Background()
	if err := client.EnsureCollection(ctx, CollectionSessions, 384); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	if !created {
		t.Fatal("collection was not created")
	}
	if createBody.Vectors.Size != 384 || createBody.Vectors.Distance != "Cosine" {
		t.Errorf("wrong vector params: %+v", createBody.Vectors)
	}

	// Second call must not recreate.
	if err := client.EnsureCollection(ctx, CollectionSessions, 384); err != nil {
		t.Fatalf("EnsureCollection existing: %v", err)
	}
}

func TestSearch_SendsFilterAndThreshold(t *testing.T) {
	var gotBody searchRequest

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/sessions/points/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		writeResult(w, []map[string]any{
			{"id": 7, "score": 0.91, "payload": map[string]any{KeySessionID: "s1", KeyChunkIndex: 0, KeyChunkText: "hello"}},
		})
	})

	opts := SearchOptions{
		Limit:          5,
		Filter:         MustMatch(KeySessionID, "s1"),
		ScoreThreshold: 0.5,
	}
	hits, err := client.Search(context.Background(), CollectionSessions, []float32{0.1, 0.2}, opts)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if gotBody.Limit != 5 || !gotBody.WithPayload {
		t.Errorf("request: limit=%d with_payload=%v", gotBody.Limit, gotBody.WithPayload)
	}
	if gotBody.ScoreThreshold == nil || *gotBody.ScoreThreshold != 0.5 {
		t.Error("score threshold not sent")
	}
	if len(gotBody.Filter.Must) != 1 || gotBody.Filter.Must[0].Key != KeySessionID {
		t.Errorf("filter not sent: %+v", gotBody.Filter)
	}

	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].ID != 7 || hits[0].Score != 0.91 {
		t.Errorf("hit mismatch: %+v", hits[0])
	}
	chunk := ChunkPayloadFrom(hits[0].Payload)
	if chunk.SessionID != "s1" || chunk.ChunkText != "hello" {
		t.Errorf("payload decode mismatch: %+v", chunk)
	}
}

func TestScrollAll_Paginates(t *testing.T) {
	page := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req scrollRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		page++
		switch page {
		case 1:
			if req.Offset != nil {
				t.Errorf("first page should have no offset, got %v", req.Offset)
			}
			writeResult(w, scrollResult{
				Points: []ScrolledPoint{
					{ID: 1, Payload: map[string]any{KeySessionID: "a"}},
					{ID: 2, Payload: map[string]any{KeySessionID: "b"}},
				},
				NextPageOffset: float64(3),
			})
		case 2:
			if req.Offset == nil {
				t.Error("second page should carry the offset")
			}
			writeResult(w, scrollResult{
				Points:         []ScrolledPoint{{ID: 3, Payload: map[string]any{KeySessionID: "c"}}},
				NextPageOffset: nil,
			})
		default:
			t.Errorf("unexpected page %d", page)
		}
	})

	points, err := client.ScrollAll(context.Background(), CollectionSessions, nil, false)
	if err != nil {
		t.Fatalf("ScrollAll: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}
	if page != 2 {
		t.Errorf("expected 2 pages, got %d", page)
	}
}

func TestServerErrorSurfacesMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"status":{"error":"Wrong input: vector size 3"},"time":0}`)
	})

	_, err := client.Search(context.Background(), CollectionSessions, []float32{1, 2, 3}, SearchOptions{Limit: 1})
	if err == nil {
		t.Fatal("expected error")
	}
	var storeErr *StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected *StoreError, got %T", err)
	}
	if storeErr.Collection != CollectionSessions || storeErr.Op != "search" {
		t.Errorf("error context: %+v", storeErr)
	}
	if msg := storeErr.Error(); !strings.Contains(msg, "vector size 3") {
		t.Errorf("server message lost: %q", msg)
	}
}

func TestAPIKeyHeader(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("api-key")
		writeResult(w, true)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(Config{URL: srv.URL, APIKey: "secret"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
	if gotKey != "secret" {
		t.Errorf("api-key header: %q", gotKey)
	}
}

func TestPointID_Deterministic(t *testing.T) {
	a := PointID("rule-aabbccdd")
	b := PointID("rule-aabbccdd")
	if a != b {
		t.Error("PointID not deterministic")
	}
	if PointID("x") == PointID("y") {
		t.Error("distinct strings collided")
	}
	if ChunkPointID("s1", 0) == ChunkPointID("s1", 1) {
		t.Error("chunk indices collided")
	}
	if ChunkPointID("s1", 0) == ChunkPointID("s2", 0) {
		t.Error("sessions collided")
	}
}

func TestDo_ReadsEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if len(body) != 0 {
			t.Errorf("GET should have no body, got %s", body)
		}
		writeResult(w, countResult{Count: 42})
	})

	var result countResult
	if err := client.do(context.Background(), "GET", "/collections/x", nil, &result); err != nil {
		t.Fatalf("do: %v", err)
	}
	if result.Count != 42 {
		t.Errorf("expected 42, got %d", result.Count)
	}
}
