package loader

import "fmt"

// ReadError indicates the source export could not be opened or parsed.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Errorf("read %s: %w", e.Path, e.Err).Error()
}

func (e *ReadError) Unwrap() error {
	return e.Err
}
