package model

import "time"

// Note is a row of the `notes` table. OwnerID always comes from the
// authenticated identity, never from a client supplied field.
type Note struct {
	ID        string    // notes.id
	OwnerID   string    // notes.owner_id (references users.id)
	Title     string    // notes.title
	Content   string    // notes.content
	Color     string    // notes.color
	CreatedAt time.Time // notes.created_at
}
