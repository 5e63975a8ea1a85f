package qdrant

import (
	"context"
	"fmt"

	"hindsight/internal/logging"
)

// =============================================================================
// COLLECTION MANAGEMENT
// =============================================================================

// createCollectionRequest is the PUT /collections/{name} body.
type createCollectionRequest struct {
	Vectors vectorParams `json:"vectors"`
}

type vectorParams struct {
	Size     int    `json:"size"`
	Distance string `json:"distance"`
}

// EnsureCollection creates the collection if it does not exist. Existing
// collections are left untouched, whatever their parameters; recreating
// would destroy accumulated memory.
func (c *Client) EnsureCollection(ctx context.Context, name string, dims int) error {
	err := c.do(ctx, "GET", "/collections/"+name, nil, nil)
	if err == nil {
		logging.StoreDebug("Collection %s already exists", name)
		return nil
	}
	if !IsNotFound(err) {
		return &StoreError{Op: "get_collection", Collection: name, Err: err}
	}

	logging.Store("Creating collection %s (dims=%d, distance=Cosine)", name, dims)
	req := createCollectionRequest{
		Vectors: vectorParams{Size: dims, Distance: "Cosine"},
	}
	if err := c.do(ctx, "PUT", "/collections/"+name, req, nil); err != nil {
		return &StoreError{Op: "create_collection", Collection: name, Err: err}
	}
	return nil
}

// DropCollection deletes a collection and all its points.
func (c *Client) DropCollection(ctx context.Context, name string) error {
	if err := c.do(ctx, "DELETE", "/collections/"+name, nil, nil); err != nil {
		return &StoreError{Op: "drop_collection", Collection: name, Err: err}
	}
	logging.Store("Dropped collection %s", name)
	return nil
}

// countRequest is the POST /points/count body.
type countRequest struct {
	Exact  bool    `json:"exact"`
	Filter *Filter `json:"filter,omitempty"`
}

type countResult struct {
	Count int `json:"count"`
}

// Count returns the exact number of points matching the filter (nil filter
// counts the whole collection).
func (c *Client) Count(ctx context.Context, collection string, filter *Filter) (int, error) {
	req := countRequest{Exact: true, Filter: filter}
	var result countResult
	path := fmt.Sprintf("/collections/%s/points/count", collection)
	if err := c.do(ctx, "POST", path, req, &result); err != nil {
		return 0, &StoreError{Op: "count", Collection: collection, Err: err}
	}
	return result.Count, nil
}
