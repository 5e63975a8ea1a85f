package config

import "fmt"

// ConfigError reports an unusable configuration: unreadable file, malformed
// JSON, or an out-of-range value. It is the only error class that aborts a
// pipeline run outright.
type ConfigError struct {
	Path   string // file involved, if any
	Field  string // offending option, if any
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	switch {
	case e.Field != "":
		return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
	case e.Err != nil:
		return fmt.Sprintf("config: %s: %s: %v", e.Path, e.Reason, e.Err)
	default:
		return fmt.Sprintf("config: %s: %s", e.Path, e.Reason)
	}
}

func (e *ConfigError) Unwrap() error { return e.Err }
