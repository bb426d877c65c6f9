package crypto

//go:generate mockgen -source=interfaces.go -destination=../mock/gateway_mock.go -package=mock

import "github.com/quillvault/syncengine/models"

// KeyInfo describes one generation of the account's data-encryption key.
// The raw key material never leaves the gateway.
type KeyInfo struct {
	Version int
}

// Gateway encrypts and decrypts syncable items with the account's versioned
// data-encryption keys. The keys themselves are derived outside the sync
// core (the auth flow hands the gateway an already-derived key set).
type Gateway interface {
	// Encrypt serializes item to JSON and encrypts it with the key of the
	// given version, returning a wire envelope stamped with that version.
	Encrypt(keyVersion int, item any) (models.EncryptedEnvelope, error)

	// Decrypt decrypts env with the key matching env.KeyVersion and
	// unmarshals the plaintext into target, which must be a non-nil
	// pointer. Returns ErrUnknownKeyVersion if no such key is held.
	Decrypt(env models.EncryptedEnvelope, target any) error

	// ListKeys returns the currently valid key versions, newest-first.
	ListKeys() []KeyInfo

	// AddKey rotates in a new key generation. Subsequent encryption uses
	// the newest version; older envelopes stay decryptable.
	AddKey(version int, key []byte) error
}
