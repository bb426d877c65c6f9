package models

// Content is the rich-text body of a note. It is large, frequently
// hand-edited, and the loser of a merge must stay recoverable, so Merger
// treats it specially (conflict branch instead of silent overwrite).
type Content struct {
	ItemHeader

	// NoteID is the owning note.
	NoteID string `json:"noteId"`

	// Data is the serialized editor payload.
	Data string `json:"data"`

	// DateEdited is the last hand-edit timestamp. Distinct from
	// DateModified, which also moves on bookkeeping writes.
	DateEdited int64 `json:"dateEdited,omitempty"`

	// DateResolved records the remote DateModified of the last conflict the
	// user resolved, so the same remote state is not re-raised. Local only.
	DateResolved int64 `json:"dateResolved,omitempty"`

	// Locked marks content that is still wrapped in the app's vault cipher
	// and cannot be compared textually.
	Locked bool `json:"locked,omitempty"`

	// Conflicted holds the divergent remote version pending user
	// resolution. A second divergent remote collapses into this same slot.
	Conflicted *Content `json:"conflicted,omitempty"`
}

// HasConflict reports whether the record carries an unresolved conflict
// branch.
func (c *Content) HasConflict() bool {
	return c != nil && c.Conflicted != nil
}

// IsValid reports whether the payload can participate in textual merge
// decisions. Locked or structurally empty content always loses to a valid
// side regardless of timestamps.
func (c *Content) IsValid() bool {
	return c != nil && !c.Locked && c.Data != ""
}
