package http

import "github.com/fyrsmithlabs/specd/internal/steering"

// CountSteeringNotes counts the parseable notes in the steering
// directory.
//
// Returns -1 if:
//   - store is nil (steering disabled)
//   - listing the notes directory fails
//
// A -1 in the health payload means "unknown", not zero; an empty
// directory legitimately reports 0.
func CountSteeringNotes(store *steering.Store) int {
	if store == nil {
		return -1
	}
	notes, err := store.List()
	if err != nil {
		return -1
	}
	return len(notes)
}
