// Package apperr defines the sentinel errors shared across Ansuz layers.
package apperr

import "errors"

var (
	// ErrNotFound means a referenced note path does not exist. During a sync
	// pass this is a benign race with external edits, not a failure.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists means a note create targeted an existing path.
	ErrAlreadyExists = errors.New("already exists")

	// ErrConflict means an optimistic-concurrency check failed on update.
	ErrConflict = errors.New("conflict")

	// ErrStorageUnavailable means the notes directory or the index store is
	// unreachable. The operation is aborted; prior index state stays intact.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrIndexCorrupt means the persisted index failed its integrity check.
	// Recovery discards the index and rebuilds it from the notes directory.
	ErrIndexCorrupt = errors.New("index corrupt")

	// ErrSyncTimeout means waiting for an in-flight sync pass exceeded the
	// configured bound. The caller may retry.
	ErrSyncTimeout = errors.New("sync wait timed out")
)
