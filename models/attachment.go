package models

// Attachment is attachment metadata. The binary lives in the file store,
// addressed by Hash; DateUploaded is the server's confirmation that the
// binary for this exact hash has been uploaded.
type Attachment struct {
	ItemHeader

	Hash     string `json:"hash"`
	Filename string `json:"filename,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Size     int64  `json:"size,omitempty"`

	// DateUploaded is authoritative for availability: a side with a newer
	// DateUploaded wins a merge regardless of metadata DateModified.
	DateUploaded int64 `json:"dateUploaded,omitempty"`

	// NoteIDs lists the notes referencing this attachment.
	NoteIDs []string `json:"noteIds,omitempty"`

	// Failed records the last upload error for this attachment. Local only.
	Failed string `json:"failed,omitempty"`
}

// Uploaded reports whether the binary upload has been confirmed.
func (a *Attachment) Uploaded() bool {
	return a != nil && a.DateUploaded > 0
}

// UnionNoteIDs returns the set union of two noteId lists, preserving the
// order of a with b's extras appended.
func UnionNoteIDs(a, b []string) []string {
	seen := make(map[string]struct{}, len(a))
	out := make([]string, 0, len(a)+len(b))
	for _, id := range a {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, id := range b {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
