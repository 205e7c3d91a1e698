// Package models defines the domain types for Ansuz.
package models

import "time"

// Signal is the cheap change-detection proxy recorded for every note:
// the modification time and size observed when the file was last stat'd.
// Staleness is always an explicit comparison of two signals; content is
// never compared byte-for-byte.
type Signal struct {
	ModTime time.Time `json:"mod_time"`
	Size    int64     `json:"size"`
}

// Equal reports whether two signals describe the same observed state.
func (s Signal) Equal(o Signal) bool {
	return s.ModTime.Equal(o.ModTime) && s.Size == o.Size
}

// NoteMetadata is the lightweight record returned by list operations:
// the note's path plus its freshness signal. Listing never reads content.
type NoteMetadata struct {
	Path   string `json:"path"`
	Signal Signal `json:"signal"`
}
