package models

import "fmt"

// ItemType identifies the kind of a syncable record. It is a closed set:
// Collector and Merger switch exhaustively over it, so adding a new syncable
// kind is a compile-time-visible change rather than a stringly-typed one.
type ItemType int

const (
	// ItemNote is note metadata (title, flags, contentId reference).
	ItemNote ItemType = 1

	// ItemNotebook is a notebook grouping notes.
	ItemNotebook ItemType = 2

	// ItemContent is the rich-text body of a note. Content is merged with
	// conflict detection instead of plain last-writer-wins.
	ItemContent ItemType = 3

	// ItemAttachment is attachment metadata. The binary itself lives in the
	// file store and is referenced by hash.
	ItemAttachment ItemType = 4

	// ItemSettings is the per-account settings record.
	ItemSettings ItemType = 5

	// ItemRelation links two records (e.g. note ↔ notebook).
	ItemRelation ItemType = 6
)

// AllItemTypes lists every syncable type in collection order: content is
// placed before note so that a note's content chunk is always emitted, and
// merged, before the note that references it.
var AllItemTypes = []ItemType{
	ItemSettings,
	ItemAttachment,
	ItemContent,
	ItemNote,
	ItemNotebook,
	ItemRelation,
}

// String returns the wire name of the item type.
func (t ItemType) String() string {
	switch t {
	case ItemNote:
		return "note"
	case ItemNotebook:
		return "notebook"
	case ItemContent:
		return "content"
	case ItemAttachment:
		return "attachment"
	case ItemSettings:
		return "settings"
	case ItemRelation:
		return "relation"
	default:
		return fmt.Sprintf("itemtype(%d)", int(t))
	}
}

// Collection returns the local collection name used to namespace queue ids
// ("<collection>:<id>").
func (t ItemType) Collection() string {
	switch t {
	case ItemNote:
		return "notes"
	case ItemNotebook:
		return "notebooks"
	case ItemContent:
		return "content"
	case ItemAttachment:
		return "attachments"
	case ItemSettings:
		return "settings"
	case ItemRelation:
		return "relations"
	default:
		return t.String()
	}
}

// ParseCollection maps a collection name back to an ItemType. Used to
// recover the type of a queued "<collection>:<id>" entry.
func ParseCollection(s string) (ItemType, error) {
	for _, t := range AllItemTypes {
		if t.Collection() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown collection %q", s)
}

// ParseItemType maps a wire name back to an ItemType. Returns an error for
// unknown names so malformed frames are rejected at the boundary.
func ParseItemType(s string) (ItemType, error) {
	switch s {
	case "note":
		return ItemNote, nil
	case "notebook":
		return ItemNotebook, nil
	case "content":
		return ItemContent, nil
	case "attachment":
		return ItemAttachment, nil
	case "settings":
		return ItemSettings, nil
	case "relation":
		return ItemRelation, nil
	default:
		return 0, fmt.Errorf("unknown item type %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler so ItemType serializes as its
// wire name inside JSON frames.
func (t ItemType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *ItemType) UnmarshalText(b []byte) error {
	parsed, err := ParseItemType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
