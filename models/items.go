package models

// Syncable is the common surface every synced record exposes to the sync
// core. Collector reads it to decide dirtiness; Merger reads it to decide
// winners.
type Syncable interface {
	// ItemID is the stable, globally unique identifier of the record.
	ItemID() string

	// Kind is the closed item type of the record.
	Kind() ItemType

	// Modified is the monotonic local mutation timestamp in milliseconds.
	Modified() int64

	// IsDeleted reports whether the record is a soft-delete marker.
	IsDeleted() bool

	// IsLocalOnly reports whether the record must never leave the device.
	IsLocalOnly() bool

	// IsSynced reports whether the server has acknowledged this exact state.
	IsSynced() bool
}

// ItemHeader carries the sync bookkeeping shared by all record kinds.
// Synced and Remote are local flags only: they are stripped from the payload
// before encryption and re-stamped on the receiving side.
type ItemHeader struct {
	ID           string `json:"id"`
	Type         ItemType `json:"type"`
	DateCreated  int64  `json:"dateCreated,omitempty"`
	DateModified int64  `json:"dateModified"`
	Deleted      bool   `json:"deleted,omitempty"`
	LocalOnly    bool   `json:"localOnly,omitempty"`
	Synced       bool   `json:"synced,omitempty"`
	Remote       bool   `json:"remote,omitempty"`
}

func (h ItemHeader) ItemID() string    { return h.ID }

// SetID assigns the record id; the store uses it when persisting a record
// created without one.
func (h *ItemHeader) SetID(id string) { h.ID = id }

// SetSynced flips the server-acknowledged flag. The store treats the synced
// column as authoritative and re-stamps it on every read.
func (h *ItemHeader) SetSynced(v bool) { h.Synced = v }

// SetModified stamps the mutation timestamp; the store uses it when
// persisting a record that never set one.
func (h *ItemHeader) SetModified(ts int64) { h.DateModified = ts }

// SetRemote marks the record as originating from another device. Stamped on
// every item deserialized from the fetch stream.
func (h *ItemHeader) SetRemote(v bool) { h.Remote = v }

func (h ItemHeader) Kind() ItemType    { return h.Type }
func (h ItemHeader) Modified() int64   { return h.DateModified }
func (h ItemHeader) IsDeleted() bool   { return h.Deleted }
func (h ItemHeader) IsLocalOnly() bool { return h.LocalOnly }
func (h ItemHeader) IsSynced() bool    { return h.Synced }

// Note is note metadata. The body lives in a separate Content record
// referenced by ContentID.
type Note struct {
	ItemHeader
	Title     string `json:"title,omitempty"`
	Headline  string `json:"headline,omitempty"`
	ContentID string `json:"contentId,omitempty"`
	Pinned    bool   `json:"pinned,omitempty"`
	Favorite  bool   `json:"favorite,omitempty"`

	// Conflicted mirrors "this note has at least one unresolved content
	// conflict". Set by Merger, cleared by the app's resolution flow.
	Conflicted bool `json:"conflicted,omitempty"`
}

// Notebook groups notes.
type Notebook struct {
	ItemHeader
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// Setting is the per-account settings record. There is a single settings
// record per account; its ID is fixed by the application.
type Setting struct {
	ItemHeader
	Key   string `json:"key,omitempty"`
	Value string `json:"value,omitempty"`
}

// Relation links two records, e.g. a note to a notebook.
type Relation struct {
	ItemHeader
	FromID   string   `json:"fromId"`
	FromType ItemType `json:"fromType"`
	ToID     string   `json:"toId"`
	ToType   ItemType `json:"toType"`
}

// Tombstone substitutes for a localOnly record during collection: the other
// devices learn the id is gone without ever seeing its content.
type Tombstone struct {
	ID           string   `json:"id"`
	Type         ItemType `json:"type"`
	Deleted      bool     `json:"deleted"`
	DateModified int64    `json:"dateModified"`
}

// NewTombstone builds a deletion marker for the given record at now
// (milliseconds).
func NewTombstone(id string, t ItemType, now int64) Tombstone {
	return Tombstone{ID: id, Type: t, Deleted: true, DateModified: now}
}
