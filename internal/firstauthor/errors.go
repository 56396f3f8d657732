package firstauthor

import (
	"errors"
	"fmt"
)

// ErrMalformedRecord marks an article whose metadata cannot be checked.
var ErrMalformedRecord = errors.New("malformed article record")

// MalformedRecordError describes why one article was excluded.
type MalformedRecordError struct {
	ID     string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("article %s: %s", e.ID, e.Reason)
}

func (e *MalformedRecordError) Unwrap() error {
	return ErrMalformedRecord
}
