package treeexporter

import (
	"errors"
	"fmt"
)

// ErrNoRoot is returned when a trace is handed to the printer without any
// span in its root bucket.
var ErrNoRoot = errors.New("treeexporter: trace has no root span")

// WriteError is returned when a printed trace could not be written to the
// output. It is the only error ExportSpans ever returns.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("treeexporter: write to output failed: %v", e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
