package registry

import "fmt"

// ConfigError is a registry load failure. It aborts a run before any tool starts.
type ConfigError struct {
	Code  string
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	switch {
	case e.Code != "" && e.Field != "":
		return fmt.Sprintf("linter %s: %s: %v", e.Code, e.Field, e.Err)
	case e.Code != "":
		return fmt.Sprintf("linter %s: %v", e.Code, e.Err)
	case e.Field != "":
		return fmt.Sprintf("%s: %v", e.Field, e.Err)
	default:
		return e.Err.Error()
	}
}

func (e *ConfigError) Unwrap() error { return e.Err }
