package qdrant

import (
	"context"
	"fmt"

	"hindsight/internal/logging"
)

// =============================================================================
// POINT OPERATIONS
// =============================================================================

// Point is one vector plus payload, addressed by a numeric ID.
type Point struct {
	ID      uint64         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload,omitempty"`
}

// ScoredPoint is a search hit.
type ScoredPoint struct {
	ID      uint64         `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// ScrolledPoint is a scroll page entry.
type ScrolledPoint struct {
	ID      uint64         `json:"id"`
	Payload map[string]any `json:"payload"`
	Vector  []float32      `json:"vector,omitempty"`
}

type upsertRequest struct {
	Points []Point `json:"points"`
}

// Upsert writes points with wait=true so subsequent searches see them.
func (c *Client) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	timer := logging.StartTimer(logging.CategoryStore, "Upsert")
	defer timer.StopWithInfo()

	path := fmt.Sprintf("/collections/%s/points?wait=true", collection)
	if err := c.do(ctx, "PUT", path, upsertRequest{Points: points}, nil); err != nil {
		return &StoreError{Op: "upsert", Collection: collection, Err: err}
	}
	return nil
}

// SearchOptions tunes a vector search.
type SearchOptions struct {
	Limit          int
	Filter         *Filter
	ScoreThreshold float64
}

type searchRequest struct {
	Vector         []float32 `json:"vector"`
	Limit          int       `json:"limit"`
	Filter         *Filter   `json:"filter,omitempty"`
	WithPayload    bool      `json:"with_payload"`
	ScoreThreshold *float64  `json:"score_threshold,omitempty"`
}

// Search runs a cosine similarity search and returns scored hits with
// payloads.
func (c *Client) Search(ctx context.Context, collection string, vector []float32, opts SearchOptions) ([]ScoredPoint, error) {
	if opts.Limit <= 0 {
		opts.Limit = 10
	}

	req := searchRequest{
		Vector:      vector,
		Limit:       opts.Limit,
		Filter:      opts.Filter,
		WithPayload: true,
	}
	if opts.ScoreThreshold > 0 {
		req.ScoreThreshold = &opts.ScoreThreshold
	}

	var hits []ScoredPoint
	path := fmt.Sprintf("/collections/%s/points/search", collection)
	if err := c.do(ctx, "POST", path, req, &hits); err != nil {
		return nil, &StoreError{Op: "search", Collection: collection, Err: err}
	}
	logging.StoreDebug("Search %s: %d hits (limit=%d)", collection, len(hits), opts.Limit)
	return hits, nil
}

// scrollPageSize bounds one scroll request.
const scrollPageSize = 256

type scrollRequest struct {
	Limit       int     `json:"limit"`
	Offset      any     `json:"offset,omitempty"`
	Filter      *Filter `json:"filter,omitempty"`
	WithPayload any     `json:"with_payload"`
	WithVector  bool    `json:"with_vector"`
}

type scrollResult struct {
	Points         []ScrolledPoint `json:"points"`
	NextPageOffset any             `json:"next_page_offset"`
}

// ScrollAll pages through every point matching the filter. When fields are
// given, only those payload fields come back. The pipeline's collections
// stay small (rules are capped, session counts are workspace scale), so
// accumulating is fine.
func (c *Client) ScrollAll(ctx context.Context, collection string, filter *Filter, withVector bool, fields ...string) ([]ScrolledPoint, error) {
	var all []ScrolledPoint
	var offset any

	withPayload := any(true)
	if len(fields) > 0 {
		withPayload = map[string]any{"include": fields}
	}

	path := fmt.Sprintf("/collections/%s/points/scroll", collection)
	for {
		req := scrollRequest{
			Limit:       scrollPageSize,
			Offset:      offset,
			Filter:      filter,
			WithPayload: withPayload,
			WithVector:  withVector,
		}

		var page scrollResult
		if err := c.do(ctx, "POST", path, req, &page); err != nil {
			return nil, &StoreError{Op: "scroll", Collection: collection, Err: err}
		}

		all = append(all, page.Points...)
		if page.NextPageOffset == nil || len(page.Points) == 0 {
			break
		}
		offset = page.NextPageOffset
	}

	logging.StoreDebug("Scroll %s: %d points", collection, len(all))
	return all, nil
}

type setPayloadRequest struct {
	Payload map[string]any `json:"payload"`
	Points  []uint64       `json:"points"`
}

// SetPayload merges payload fields into the given points.
func (c *Client) SetPayload(ctx context.Context, collection string, payload map[string]any, ids ...uint64) error {
	if len(ids) == 0 {
		return nil
	}
	path := fmt.Sprintf("/collections/%s/points/payload?wait=true", collection)
	req := setPayloadRequest{Payload: payload, Points: ids}
	if err := c.do(ctx, "POST", path, req, nil); err != nil {
		return &StoreError{Op: "set_payload", Collection: collection, Err: err}
	}
	return nil
}

type deletePointsRequest struct {
	Points []uint64 `json:"points,omitempty"`
	Filter *Filter  `json:"filter,omitempty"`
}

// DeletePoints removes points by ID.
func (c *Client) DeletePoints(ctx context.Context, collection string, ids ...uint64) error {
	if len(ids) == 0 {
		return nil
	}
	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", collection)
	if err := c.do(ctx, "POST", path, deletePointsRequest{Points: ids}, nil); err != nil {
		return &StoreError{Op: "delete", Collection: collection, Err: err}
	}
	logging.Store("Deleted %d points from %s", len(ids), collection)
	return nil
}

// DeleteByFilter removes every point matching the filter.
func (c *Client) DeleteByFilter(ctx context.Context, collection string, filter *Filter) error {
	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", collection)
	if err := c.do(ctx, "POST", path, deletePointsRequest{Filter: filter}, nil); err != nil {
		return &StoreError{Op: "delete_by_filter", Collection: collection, Err: err}
	}
	return nil
}
