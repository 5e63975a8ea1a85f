package qdrant

import (
	"errors"
	"fmt"
	"net/http"
)

// StoreError reports a failed vector store operation. Stages treat it as
// retryable-next-run: affected sessions are skipped and stay unledgered.
type StoreError struct {
	Op         string
	Collection string
	Err        error
}

func (e *StoreError) Error() string {
	if e.Collection != "" {
		return fmt.Sprintf("qdrant: %s %s: %v", e.Op, e.Collection, e.Err)
	}
	return fmt.Sprintf("qdrant: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a 404 from the server, unwrapping any
// StoreError around it.
func IsNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.code == http.StatusNotFound
}
