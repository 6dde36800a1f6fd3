package model

import "fmt"

// ConfigurationError reports a setup problem that prevents training or
// serving: an empty corpus, a class with no examples, a missing model file.
type ConfigurationError struct {
	Op  string
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %v", e.Op, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// ModelFormatError reports a model document that cannot be interpreted,
// usually because array dimensions disagree.
type ModelFormatError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ModelFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("model format error: %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("model format error: %s: %s", e.Field, e.Reason)
}

func (e *ModelFormatError) Unwrap() error {
	return e.Err
}

func formatErr(field, format string, args ...interface{}) error {
	return &ModelFormatError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
