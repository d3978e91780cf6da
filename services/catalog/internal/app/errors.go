package app

import (
	"errors"
	"fmt"
)

var (
	// ErrPDFFileRequired is returned when a create carries no PDF asset.
	ErrPDFFileRequired = errors.New("pdf file is required")

	// ErrTitleRequired is returned when a record has no title.
	ErrTitleRequired = errors.New("title is required")

	// ErrNotFound is returned when a lookup by id or slug yields nothing.
	ErrNotFound = errors.New("not found")

	// ErrUsernameUnavailable is returned when confirming a username that a
	// fresh check reports as taken.
	ErrUsernameUnavailable = errors.New("username is not available")

	// ErrUsernameTooShort is returned for candidates below the minimum length.
	ErrUsernameTooShort = errors.New("username must be at least 3 characters")
)

// PartialWriteError reports an asset that was uploaded before a later step
// of the same mutation failed. The stored object is orphaned; this layer
// does not clean it up. Key names the orphan.
type PartialWriteError struct {
	Key string
	Err error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("mutation failed after uploading %s: %v", e.Key, e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }

// TrackError reports a failed download-tracking attempt. Callers must treat
// it as non-fatal: the download itself proceeds. HistoryRecorded is true
// when the history row landed but the counter increment failed, leaving the
// counter eventually under-counted.
type TrackError struct {
	HistoryRecorded bool
	Err             error
}

func (e *TrackError) Error() string {
	if e.HistoryRecorded {
		return fmt.Sprintf("download recorded but counter increment failed: %v", e.Err)
	}
	return fmt.Sprintf("download tracking failed: %v", e.Err)
}

func (e *TrackError) Unwrap() error { return e.Err }
