package store

const schema = `
	CREATE TABLE IF NOT EXISTS items (
		id            TEXT    NOT NULL,
		type          TEXT    NOT NULL,
		note_id       TEXT    NOT NULL DEFAULT '',
		hash          TEXT    NOT NULL DEFAULT '',
		date_modified INTEGER NOT NULL DEFAULT 0,
		date_uploaded INTEGER NOT NULL DEFAULT 0,
		synced        INTEGER NOT NULL DEFAULT 0,
		local_only    INTEGER NOT NULL DEFAULT 0,
		deleted       INTEGER NOT NULL DEFAULT 0,
		conflicted    INTEGER NOT NULL DEFAULT 0,
		payload       TEXT    NOT NULL,
		PRIMARY KEY (type, id)
	);

	CREATE INDEX IF NOT EXISTS idx_items_dirty
		ON items (type, synced, date_modified);

	CREATE INDEX IF NOT EXISTS idx_items_hash
		ON items (type, hash);

	CREATE TABLE IF NOT EXISTS kv (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`

const (
	putItem = `
		INSERT INTO items (
			id, type, note_id, hash,
			date_modified, date_uploaded,
			synced, local_only, deleted, conflicted,
			payload
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (type, id) DO UPDATE SET
			note_id       = excluded.note_id,
			hash          = excluded.hash,
			date_modified = excluded.date_modified,
			date_uploaded = excluded.date_uploaded,
			synced        = excluded.synced,
			local_only    = excluded.local_only,
			deleted       = excluded.deleted,
			conflicted    = excluded.conflicted,
			payload       = excluded.payload;`

	getItem = `
		SELECT synced, payload
		FROM items
		WHERE type = ? AND id = ?;`

	getItemByHash = `
		SELECT synced, payload
		FROM items
		WHERE type = ? AND hash = ?;`

	deleteItem = `
		DELETE FROM items
		WHERE type = ? AND id = ?;`

	markSynced = `
		UPDATE items SET synced = 1
		WHERE type = ? AND id = ?;`

	getKV = `
		SELECT value FROM kv WHERE key = ?;`

	setKV = `
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value;`

	deleteKV = `
		DELETE FROM kv WHERE key = ?;`
)
