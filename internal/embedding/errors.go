package embedding

import "fmt"

// EmbedError reports a failed or unusable embedding. Stages treat it as
// retryable-next-run: the session is skipped, not the whole pipeline.
type EmbedError struct {
	Engine string
	Op     string
	Reason string
	Err    error
}

func (e *EmbedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("embedding: %s %s: %s", e.Engine, e.Op, e.Reason)
	}
	return fmt.Sprintf("embedding: %s %s: %v", e.Engine, e.Op, e.Err)
}

func (e *EmbedError) Unwrap() error { return e.Err }
