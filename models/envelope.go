package models

// EncryptedEnvelope is the wire form of a single record: ciphertext plus the
// metadata needed to decrypt and migrate it. Opaque to Merger until
// decrypted with the key matching KeyVersion.
type EncryptedEnvelope struct {
	ID         string `json:"id"`
	Version    int    `json:"v"`
	KeyVersion int    `json:"keyVersion"`
	Cipher     string `json:"cipher"`
	IV         string `json:"iv"`
	Alg        string `json:"alg"`
	Length     int    `json:"length"`
}

// EnvelopeAlg is the only envelope algorithm this engine produces.
const EnvelopeAlg = "aes-256-gcm"

// SchemaVersion is stamped into every envelope's V field so older clients
// can migrate payloads before merging.
const SchemaVersion = 1

// Chunk is a bounded batch of encrypted items of one type: the unit of
// transport, memory bounding and retry.
type Chunk struct {
	Type  ItemType            `json:"type"`
	Count int                 `json:"count"`
	Items []EncryptedEnvelope `json:"items"`
}
