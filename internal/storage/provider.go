// Package storage defines the notes-directory file-system abstraction.
package storage

import "github.com/starford/ansuz/internal/models"

// Provider is the interface for note file operations. The notes directory is
// owned by the user, not by Ansuz: external processes may create, edit, or
// delete files at any time, so List and Stat must reflect the live directory
// state on every call, never a cached view.
type Provider interface {
	// List returns the path and freshness signal of every markdown file under
	// the notes root. It stats files but never reads their content.
	List() ([]models.NoteMetadata, error)
	// Stat returns the current freshness signal for a single note.
	// Returns apperr.ErrNotFound if the file does not exist.
	Stat(path string) (models.NoteMetadata, error)
	// Read returns the raw bytes of the note at path (relative to the root).
	// Returns apperr.ErrNotFound if the file vanished since it was listed.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the note at path.
	// Returns apperr.ErrNotFound if the file does not exist.
	Delete(path string) error
}
